package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
	"github.com/ClarenceChoo/Digital-Forensics/internal/queue"
	"github.com/ClarenceChoo/Digital-Forensics/internal/storage"
)

// App bundles the dependencies the HTTP handlers need.
type App struct {
	Repo    domain.ImageRepository
	Store   *storage.FileStore
	Queue   *queue.Queue
	Log     zerolog.Logger
	BaseURL string
}

func NewApp(repo domain.ImageRepository, store *storage.FileStore, q *queue.Queue, log zerolog.Logger, baseURL string) *App {
	return &App{
		Repo:    repo,
		Store:   store,
		Queue:   q,
		Log:     log,
		BaseURL: strings.TrimRight(baseURL, "/"),
	}
}

// imageEnvelope is the wire shape shared by every image endpoint: the record
// status at the top level, the projection under data, and error set only for
// failed records or rejected requests.
type imageEnvelope struct {
	Status string       `json:"status"`
	Data   imagePayload `json:"data"`
	Error  *string      `json:"error"`
}

type imagePayload struct {
	ImageID      string            `json:"image_id"`
	OriginalName string            `json:"original_name"`
	ProcessedAt  *string           `json:"processed_at"`
	Metadata     any               `json:"metadata"`
	Thumbnails   map[string]string `json:"thumbnails"`
}

type imageMetadataPayload struct {
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Format       string            `json:"format"`
	SizeBytes    int64             `json:"size_bytes"`
	FileDatetime string            `json:"file_datetime"`
	Caption      string            `json:"caption"`
	EXIF         map[string]string `json:"exif,omitempty"`
}

type errorEnvelope struct {
	Status string  `json:"status"`
	Data   any     `json:"data"`
	Error  *string `json:"error"`
}

// imageResponse projects a record into the response envelope. Metadata and
// thumbnail URLs appear only once the record reached success; processed_at is
// null until the record is terminal.
func (a *App) imageResponse(rec *domain.ImageRecord) imageEnvelope {
	payload := imagePayload{
		ImageID:      rec.ID,
		OriginalName: rec.OriginalName,
		Metadata:     struct{}{},
		Thumbnails:   map[string]string{},
	}
	if !rec.ProcessedAt.IsZero() {
		ts := isoUTC(rec.ProcessedAt)
		payload.ProcessedAt = &ts
	}
	if rec.Status == domain.StatusSuccess && rec.Metadata != nil {
		payload.Metadata = imageMetadataPayload{
			Width:        rec.Metadata.Width,
			Height:       rec.Metadata.Height,
			Format:       rec.Metadata.Format,
			SizeBytes:    rec.Metadata.SizeBytes,
			FileDatetime: isoUTC(rec.Metadata.FileDatetime),
			Caption:      rec.Metadata.Caption,
			EXIF:         rec.Metadata.EXIF,
		}
		for _, size := range domain.ThumbnailSizes {
			payload.Thumbnails[string(size)] = a.thumbnailURL(rec.ID, size)
		}
	}
	envelope := imageEnvelope{Status: string(rec.Status), Data: payload}
	if rec.Error != "" {
		msg := rec.Error
		envelope.Error = &msg
	}
	return envelope
}

func (a *App) thumbnailURL(imageID string, size domain.ThumbnailSize) string {
	return a.BaseURL + "/api/images/" + imageID + "/thumbnails/" + string(size)
}

func isoUTC(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, message string) {
	a.json(w, code, errorEnvelope{Status: "error", Error: &message})
}
