package handlers

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
	"github.com/ClarenceChoo/Digital-Forensics/internal/media"
	"github.com/ClarenceChoo/Digital-Forensics/internal/storage"
	"github.com/ClarenceChoo/Digital-Forensics/pkg/zip"
)

func newImageID() string {
	u := uuid.New()
	return "img" + hex.EncodeToString(u[:])[:10]
}

// ImagesUpload accepts a multipart JPG/PNG upload, persists the original,
// records the image as processing and queues the job. The response never
// waits for the pipeline.
func (a *App) ImagesUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		a.error(w, http.StatusBadRequest, "file field required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		a.error(w, http.StatusBadRequest, "could not read upload")
		return
	}
	if len(data) == 0 {
		a.error(w, http.StatusBadRequest, "empty file")
		return
	}
	format, err := media.Sniff(data)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			a.error(w, http.StatusBadRequest, "invalid file format")
		} else {
			a.error(w, http.StatusBadRequest, "invalid image file")
		}
		return
	}

	name := header.Filename
	if name == "" {
		name = "uploaded-image"
	}
	imageID := newImageID()
	key, err := a.Store.Write(r.Context(), storage.OriginalKey(imageID, format.Ext()), data)
	if err != nil {
		a.Log.Error().Err(err).Str("image_id", imageID).Msg("store original failed")
		a.error(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	record := &domain.ImageRecord{
		ID:           imageID,
		OriginalName: name,
		Status:       domain.StatusProcessing,
		OriginalKey:  key,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.Repo.Insert(r.Context(), record); err != nil {
		a.Log.Error().Err(err).Str("image_id", imageID).Msg("insert record failed")
		a.error(w, http.StatusInternalServerError, "failed to create image record")
		return
	}

	if err := a.Queue.Enqueue(imageID); err != nil {
		// The record is already visible, so close it out rather than
		// leaving it stuck in processing forever.
		now := time.Now().UTC()
		outcome := domain.FailureOutcome("processing queue full", now, now.Sub(record.CreatedAt).Seconds())
		if ferr := a.Repo.Finish(r.Context(), imageID, outcome); ferr != nil {
			a.Log.Error().Err(ferr).Str("image_id", imageID).Msg("mark queue-full failure failed")
		}
		a.error(w, http.StatusServiceUnavailable, "processing queue full")
		return
	}

	a.json(w, http.StatusAccepted, a.imageResponse(record))
}

// ImagesList returns every record, oldest upload first.
func (a *App) ImagesList(w http.ResponseWriter, r *http.Request) {
	records, err := a.Repo.List(r.Context())
	if err != nil {
		a.Log.Error().Err(err).Msg("list images failed")
		a.error(w, http.StatusInternalServerError, "failed to list images")
		return
	}
	out := make([]imageEnvelope, 0, len(records))
	for i := range records {
		out = append(out, a.imageResponse(&records[i]))
	}
	a.json(w, http.StatusOK, out)
}

func (a *App) ImageGet(w http.ResponseWriter, r *http.Request) {
	record, ok := a.loadImage(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, a.imageResponse(record))
}

// ImageThumbnail serves a generated thumbnail as raw JPEG bytes.
func (a *App) ImageThumbnail(w http.ResponseWriter, r *http.Request) {
	size := domain.ThumbnailSize(chi.URLParam(r, "size"))
	if !size.Valid() {
		a.error(w, http.StatusBadRequest, "thumbnail size must be small or medium")
		return
	}
	record, ok := a.loadImage(w, r)
	if !ok {
		return
	}
	key := record.ThumbnailKeys[size]
	if key == "" {
		a.error(w, http.StatusNotFound, "thumbnail not found")
		return
	}
	data, err := a.Store.Read(r.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "thumbnail not found")
			return
		}
		a.Log.Error().Err(err).Str("image_id", record.ID).Msg("read thumbnail failed")
		a.error(w, http.StatusInternalServerError, "failed to read thumbnail")
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ImageExport bundles the original upload and both thumbnails into a zip
// archive. Only available once processing succeeded.
func (a *App) ImageExport(w http.ResponseWriter, r *http.Request) {
	record, ok := a.loadImage(w, r)
	if !ok {
		return
	}
	if record.Status != domain.StatusSuccess {
		a.error(w, http.StatusConflict, "image has not been processed successfully")
		return
	}

	var entries []zip.Entry
	original, err := a.Store.Read(r.Context(), record.OriginalKey)
	if err != nil {
		a.Log.Error().Err(err).Str("image_id", record.ID).Msg("read original for export failed")
		a.error(w, http.StatusInternalServerError, "failed to read original image")
		return
	}
	format := "bin"
	if record.Metadata != nil && record.Metadata.Format != "" {
		format = record.Metadata.Format
	}
	entries = append(entries, zip.Entry{
		Name: fmt.Sprintf("%s-original.%s", record.ID, format),
		Data: original,
	})
	for _, size := range domain.ThumbnailSizes {
		key := record.ThumbnailKeys[size]
		if key == "" {
			continue
		}
		data, err := a.Store.Read(r.Context(), key)
		if err != nil {
			a.Log.Error().Err(err).Str("image_id", record.ID).Str("size", string(size)).Msg("read thumbnail for export failed")
			continue
		}
		entries = append(entries, zip.Entry{
			Name: fmt.Sprintf("%s-thumbnail-%s.jpg", record.ID, size),
			Data: data,
		})
	}

	archive, err := zip.Archive(entries)
	if err != nil {
		a.Log.Error().Err(err).Str("image_id", record.ID).Msg("build export archive failed")
		a.error(w, http.StatusInternalServerError, "failed to build archive")
		return
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.zip", record.ID))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

func (a *App) loadImage(w http.ResponseWriter, r *http.Request) (*domain.ImageRecord, bool) {
	imageID := chi.URLParam(r, "id")
	record, err := a.Repo.GetByID(r.Context(), imageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			a.error(w, http.StatusNotFound, "image not found")
			return nil, false
		}
		a.Log.Error().Err(err).Str("image_id", imageID).Msg("load image failed")
		a.error(w, http.StatusInternalServerError, "failed to load image")
		return nil, false
	}
	return record, true
}
