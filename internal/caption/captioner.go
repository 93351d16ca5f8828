package caption

import (
	"context"
	"image"
)

// Source is what a captioner gets to work with: the original upload bytes
// for remote providers and the decoded pixels for local analysis.
type Source struct {
	Data   []byte
	MIME   string
	Pixels image.Image
	Format string
	Width  int
	Height int
}

// Captioner produces a short text description of an image. Implementations
// that depend on an external model wrap failures in
// domain.ErrCaptionUnavailable; the pipeline recovers those with the
// deterministic fallback so captioning never fails a job.
type Captioner interface {
	Caption(ctx context.Context, src Source) (string, error)
}
