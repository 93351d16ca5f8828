package domain

import "time"

// ImageStatus enumerates the lifecycle states of an uploaded image.
type ImageStatus string

const (
	StatusProcessing ImageStatus = "processing"
	StatusSuccess    ImageStatus = "success"
	StatusFailed     ImageStatus = "failed"
)

// Terminal reports whether the status permits no further mutation.
func (s ImageStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ThumbnailSize names a generated thumbnail variant.
type ThumbnailSize string

const (
	ThumbnailSmall  ThumbnailSize = "small"
	ThumbnailMedium ThumbnailSize = "medium"
)

// ThumbnailSizes lists the variants every successful job produces, in a
// stable order.
var ThumbnailSizes = []ThumbnailSize{ThumbnailSmall, ThumbnailMedium}

// BoxFor returns the bounding box edge length in pixels for a size name.
func (s ThumbnailSize) BoxFor() int {
	if s == ThumbnailMedium {
		return 256
	}
	return 128
}

// Valid reports whether the size name is one the pipeline produces.
func (s ThumbnailSize) Valid() bool {
	return s == ThumbnailSmall || s == ThumbnailMedium
}

// ImageMetadata is the structured bag extracted by the pipeline. It is only
// populated on a successful terminal transition, together with the thumbnail
// keys, so readers never observe a half-processed record.
type ImageMetadata struct {
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	Format       string            `json:"format"`
	SizeBytes    int64             `json:"size_bytes"`
	FileDatetime time.Time         `json:"file_datetime"`
	Caption      string            `json:"caption"`
	EXIF         map[string]string `json:"exif,omitempty"`
}

// ImageRecord is the unit of state tracked per upload. It is created once by
// the upload handler with StatusProcessing and mutated exactly once more by
// the worker that owns the job.
type ImageRecord struct {
	ID           string
	OriginalName string
	Status       ImageStatus
	OriginalKey  string

	CreatedAt   time.Time
	ProcessedAt time.Time

	Metadata      *ImageMetadata
	ThumbnailKeys map[ThumbnailSize]string
	Error         string

	ProcessingDurationSeconds float64
}

// Outcome carries everything a terminal transition persists atomically.
// Exactly one of Metadata/Error is set depending on Status.
type Outcome struct {
	Status        ImageStatus
	Metadata      *ImageMetadata
	ThumbnailKeys map[ThumbnailSize]string
	Error         string
	ProcessedAt   time.Time
	Duration      float64
}

// SuccessOutcome builds the terminal payload for a processed image.
func SuccessOutcome(meta *ImageMetadata, thumbs map[ThumbnailSize]string, processedAt time.Time, duration float64) Outcome {
	return Outcome{
		Status:        StatusSuccess,
		Metadata:      meta,
		ThumbnailKeys: thumbs,
		ProcessedAt:   processedAt,
		Duration:      duration,
	}
}

// FailureOutcome builds the terminal payload for a job that could not be
// processed.
func FailureOutcome(cause string, processedAt time.Time, duration float64) Outcome {
	return Outcome{
		Status:      StatusFailed,
		Error:       cause,
		ProcessedAt: processedAt,
		Duration:    duration,
	}
}
