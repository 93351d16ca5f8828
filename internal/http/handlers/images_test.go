package handlers_test

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ClarenceChoo/Digital-Forensics/internal/adapter/repo"
	"github.com/ClarenceChoo/Digital-Forensics/internal/caption"
	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
	"github.com/ClarenceChoo/Digital-Forensics/internal/http/handlers"
	"github.com/ClarenceChoo/Digital-Forensics/internal/http/httpapi"
	"github.com/ClarenceChoo/Digital-Forensics/internal/infra"
	"github.com/ClarenceChoo/Digital-Forensics/internal/pipeline"
	"github.com/ClarenceChoo/Digital-Forensics/internal/queue"
	"github.com/ClarenceChoo/Digital-Forensics/internal/storage"
)

const testBaseURL = "http://api.test"

type testEnv struct {
	repo      *repo.Memory
	store     *storage.FileStore
	processor *pipeline.Processor
	queue     *queue.Queue
	router    http.Handler
}

// newTestEnv wires the full HTTP stack against an in-memory repository and a
// temp-dir file store. Workers are not started: tests drive the pipeline
// synchronously via env.process for deterministic assertions.
func newTestEnv(t *testing.T, queueCapacity int) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	memory := repo.NewMemory()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	processor := pipeline.NewProcessor(memory, store, caption.Fallback{}, time.Second, logger)
	q := queue.New(queueCapacity, processor, logger)
	app := handlers.NewApp(memory, store, q, logger, testBaseURL)
	cfg := &infra.Config{
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		RateLimitPerMin:    1000,
	}
	return &testEnv{
		repo:      memory,
		store:     store,
		processor: processor,
		queue:     q,
		router:    httpapi.NewRouter(app, cfg, logger),
	}
}

func (e *testEnv) process(imageID string) {
	e.processor.Process(context.Background(), imageID)
}

func (e *testEnv) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, filename string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}
	return e.do(t, http.MethodPost, "/api/images", buf, mw.FormDataContentType())
}

func decodeEnvelope(t *testing.T, body *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", body.String(), err)
	}
	return out
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 30, B: 30, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: 30, G: 30, B: 30, A: 255})
		}
	}
	buf := &bytes.Buffer{}
	if err := jpeg.Encode(buf, img, nil); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}
	return buf.Bytes()
}

func gifBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewPaletted(image.Rect(0, 0, 8, 8), []color.Color{color.Black, color.White})
	buf := &bytes.Buffer{}
	if err := gif.Encode(buf, img, nil); err != nil {
		t.Fatalf("encode gif: %v", err)
	}
	return buf.Bytes()
}

func TestUploadAccepted(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.upload(t, "photo.png", pngBytes(t, 640, 480))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202, body %s", rec.Code, rec.Body.String())
	}

	envelope := decodeEnvelope(t, rec.Body)
	if envelope["status"] != "processing" {
		t.Fatalf("status field = %v, want processing", envelope["status"])
	}
	if envelope["error"] != nil {
		t.Fatalf("error field = %v, want null", envelope["error"])
	}
	data := envelope["data"].(map[string]any)
	imageID, _ := data["image_id"].(string)
	if !strings.HasPrefix(imageID, "img") || len(imageID) != 13 {
		t.Fatalf("image_id = %q, want img prefix with 10 hex chars", imageID)
	}
	if data["original_name"] != "photo.png" {
		t.Fatalf("original_name = %v", data["original_name"])
	}
	if data["processed_at"] != nil {
		t.Fatalf("processed_at = %v, want null before processing", data["processed_at"])
	}
	if meta := data["metadata"].(map[string]any); len(meta) != 0 {
		t.Fatalf("metadata = %v, want empty", meta)
	}
	if thumbs := data["thumbnails"].(map[string]any); len(thumbs) != 0 {
		t.Fatalf("thumbnails = %v, want empty", thumbs)
	}
	if env.queue.Len() != 1 {
		t.Fatalf("queue length = %d, want 1", env.queue.Len())
	}
}

func TestUploadRejectsUnsupportedFormat(t *testing.T) {
	env := newTestEnv(t, 8)

	tests := []struct {
		name string
		data []byte
	}{
		{name: "gif", data: gifBytes(t)},
		{name: "garbage", data: []byte("definitely not an image")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.upload(t, tc.name, tc.data)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", rec.Code)
			}
		})
	}

	records, err := env.repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("rejected uploads created %d records", len(records))
	}
}

func TestUploadQueueFull(t *testing.T) {
	env := newTestEnv(t, 1)

	first := env.upload(t, "a.png", pngBytes(t, 32, 32))
	if first.Code != http.StatusAccepted {
		t.Fatalf("first upload status = %d, want 202", first.Code)
	}
	second := env.upload(t, "b.png", pngBytes(t, 32, 32))
	if second.Code != http.StatusServiceUnavailable {
		t.Fatalf("second upload status = %d, want 503", second.Code)
	}

	// The rejected upload must not linger in processing.
	records, err := env.repo.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("record count = %d, want 2", len(records))
	}
	rejected := records[1]
	if rejected.Status != domain.StatusFailed {
		t.Fatalf("rejected record status = %s, want failed", rejected.Status)
	}
	if rejected.Error == "" {
		t.Fatal("rejected record has no error message")
	}
}

func TestGetUnknownImage(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.do(t, http.MethodGet, "/api/images/imgdeadbeef00", nil, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestImageLifecycle(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.upload(t, "photo.png", pngBytes(t, 640, 480))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d", rec.Code)
	}
	envelope := decodeEnvelope(t, rec.Body)
	imageID := envelope["data"].(map[string]any)["image_id"].(string)

	env.process(imageID)

	got := env.do(t, http.MethodGet, "/api/images/"+imageID, nil, "")
	if got.Code != http.StatusOK {
		t.Fatalf("get status = %d", got.Code)
	}
	envelope = decodeEnvelope(t, got.Body)
	if envelope["status"] != "success" {
		t.Fatalf("status = %v, want success, body %s", envelope["status"], got.Body.String())
	}
	data := envelope["data"].(map[string]any)
	if data["processed_at"] == nil {
		t.Fatal("processed_at still null after success")
	}
	meta := data["metadata"].(map[string]any)
	if meta["width"].(float64) != 640 || meta["height"].(float64) != 480 {
		t.Fatalf("metadata dimensions = %vx%v", meta["width"], meta["height"])
	}
	if meta["format"] != "png" {
		t.Fatalf("metadata format = %v, want png", meta["format"])
	}
	if text, _ := meta["caption"].(string); text == "" {
		t.Fatal("caption missing from metadata")
	}
	thumbs := data["thumbnails"].(map[string]any)
	wantSmall := testBaseURL + "/api/images/" + imageID + "/thumbnails/small"
	if thumbs["small"] != wantSmall {
		t.Fatalf("small thumbnail url = %v, want %s", thumbs["small"], wantSmall)
	}
	wantMedium := testBaseURL + "/api/images/" + imageID + "/thumbnails/medium"
	if thumbs["medium"] != wantMedium {
		t.Fatalf("medium thumbnail url = %v, want %s", thumbs["medium"], wantMedium)
	}
}

// JPEG uploads must surface the normalized "jpg" format on the wire, not
// the codec's registered "jpeg" name.
func TestImageLifecycleJPEG(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.upload(t, "sample.jpg", jpegBytes(t, 640, 480))
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload status = %d", rec.Code)
	}
	imageID := decodeEnvelope(t, rec.Body)["data"].(map[string]any)["image_id"].(string)

	env.process(imageID)

	got := env.do(t, http.MethodGet, "/api/images/"+imageID, nil, "")
	if got.Code != http.StatusOK {
		t.Fatalf("get status = %d", got.Code)
	}
	envelope := decodeEnvelope(t, got.Body)
	if envelope["status"] != "success" {
		t.Fatalf("status = %v, body %s", envelope["status"], got.Body.String())
	}
	data := envelope["data"].(map[string]any)
	if data["original_name"] != "sample.jpg" {
		t.Fatalf("original_name = %v", data["original_name"])
	}
	meta := data["metadata"].(map[string]any)
	if meta["format"] != "jpg" {
		t.Fatalf("metadata format = %v, want jpg", meta["format"])
	}
	if meta["width"].(float64) != 640 || meta["height"].(float64) != 480 {
		t.Fatalf("metadata dimensions = %vx%v", meta["width"], meta["height"])
	}
}

func TestThumbnailEndpoint(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.upload(t, "photo.png", pngBytes(t, 640, 480))
	imageID := decodeEnvelope(t, rec.Body)["data"].(map[string]any)["image_id"].(string)
	env.process(imageID)

	tests := []struct {
		size string
		box  int
	}{
		{size: "small", box: 128},
		{size: "medium", box: 256},
	}
	for _, tc := range tests {
		t.Run(tc.size, func(t *testing.T) {
			res := env.do(t, http.MethodGet, "/api/images/"+imageID+"/thumbnails/"+tc.size, nil, "")
			if res.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", res.Code)
			}
			if ct := res.Header().Get("Content-Type"); ct != "image/jpeg" {
				t.Fatalf("content type = %q", ct)
			}
			img, err := jpeg.Decode(bytes.NewReader(res.Body.Bytes()))
			if err != nil {
				t.Fatalf("decode thumbnail: %v", err)
			}
			bounds := img.Bounds()
			if bounds.Dx() > tc.box || bounds.Dy() > tc.box {
				t.Fatalf("thumbnail %dx%d exceeds %d box", bounds.Dx(), bounds.Dy(), tc.box)
			}
		})
	}
}

func TestThumbnailBadSize(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.upload(t, "photo.png", pngBytes(t, 64, 64))
	imageID := decodeEnvelope(t, rec.Body)["data"].(map[string]any)["image_id"].(string)

	res := env.do(t, http.MethodGet, "/api/images/"+imageID+"/thumbnails/huge", nil, "")
	if res.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", res.Code)
	}
}

func TestThumbnailBeforeProcessing(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.upload(t, "photo.png", pngBytes(t, 64, 64))
	imageID := decodeEnvelope(t, rec.Body)["data"].(map[string]any)["image_id"].(string)

	res := env.do(t, http.MethodGet, "/api/images/"+imageID+"/thumbnails/small", nil, "")
	if res.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 while still processing", res.Code)
	}
}

func TestListImagesInUploadOrder(t *testing.T) {
	env := newTestEnv(t, 8)
	var ids []string
	for _, name := range []string{"one.png", "two.png", "three.png"} {
		rec := env.upload(t, name, pngBytes(t, 32, 32))
		ids = append(ids, decodeEnvelope(t, rec.Body)["data"].(map[string]any)["image_id"].(string))
	}
	env.process(ids[1])

	res := env.do(t, http.MethodGet, "/api/images", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	var list []map[string]any
	if err := json.Unmarshal(res.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(list) != 3 {
		t.Fatalf("list length = %d, want 3", len(list))
	}
	for i, envelope := range list {
		got := envelope["data"].(map[string]any)["image_id"]
		if got != ids[i] {
			t.Fatalf("list[%d] = %v, want %s", i, got, ids[i])
		}
	}
	if list[1]["status"] != "success" {
		t.Fatalf("processed record status = %v", list[1]["status"])
	}
}

func TestExportArchive(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.upload(t, "photo.png", pngBytes(t, 640, 480))
	imageID := decodeEnvelope(t, rec.Body)["data"].(map[string]any)["image_id"].(string)

	// Not yet processed.
	res := env.do(t, http.MethodGet, "/api/images/"+imageID+"/export", nil, "")
	if res.Code != http.StatusConflict {
		t.Fatalf("export before processing status = %d, want 409", res.Code)
	}

	env.process(imageID)

	res = env.do(t, http.MethodGet, "/api/images/"+imageID+"/export", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("export status = %d", res.Code)
	}
	if ct := res.Header().Get("Content-Type"); ct != "application/zip" {
		t.Fatalf("content type = %q", ct)
	}
	zr, err := zip.NewReader(bytes.NewReader(res.Body.Bytes()), int64(res.Body.Len()))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 3 {
		t.Fatalf("archive entries = %d, want original plus two thumbnails", len(zr.File))
	}
	names := make(map[string]bool, len(zr.File))
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{
		imageID + "-original.png",
		imageID + "-thumbnail-small.jpg",
		imageID + "-thumbnail-medium.jpg",
	} {
		if !names[want] {
			t.Fatalf("archive missing %s, have %v", want, names)
		}
	}
}

func TestFailedRecordProjection(t *testing.T) {
	env := newTestEnv(t, 8)
	rec := env.upload(t, "photo.png", pngBytes(t, 64, 64))
	imageID := decodeEnvelope(t, rec.Body)["data"].(map[string]any)["image_id"].(string)

	now := time.Now().UTC()
	err := env.repo.Finish(context.Background(), imageID, domain.FailureOutcome("original image not readable", now, 0.01))
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}

	res := env.do(t, http.MethodGet, "/api/images/"+imageID, nil, "")
	envelope := decodeEnvelope(t, res.Body)
	if envelope["status"] != "failed" {
		t.Fatalf("status = %v, want failed", envelope["status"])
	}
	if envelope["error"] != "original image not readable" {
		t.Fatalf("error = %v", envelope["error"])
	}
	data := envelope["data"].(map[string]any)
	if meta := data["metadata"].(map[string]any); len(meta) != 0 {
		t.Fatalf("failed record leaked metadata: %v", meta)
	}
	if thumbs := data["thumbnails"].(map[string]any); len(thumbs) != 0 {
		t.Fatalf("failed record leaked thumbnails: %v", thumbs)
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, 8)
	res := env.do(t, http.MethodGet, "/healthz", nil, "")
	if res.Code != http.StatusOK {
		t.Fatalf("status = %d", res.Code)
	}
	body := decodeEnvelope(t, res.Body)
	if body["status"] != "ok" {
		t.Fatalf("body = %v", body)
	}
}
