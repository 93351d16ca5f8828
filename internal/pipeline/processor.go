package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ClarenceChoo/Digital-Forensics/internal/caption"
	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
	"github.com/ClarenceChoo/Digital-Forensics/internal/media"
	"github.com/ClarenceChoo/Digital-Forensics/internal/storage"
)

// Processor runs one job end to end: decode the stored original, extract
// metadata and EXIF, generate both thumbnails, caption, and write the single
// terminal transition. A record handed to Process always ends up terminal;
// panics and unexpected errors become the failed state, never a crashed
// worker.
type Processor struct {
	repo           domain.ImageRepository
	store          *storage.FileStore
	captioner      caption.Captioner
	captionTimeout time.Duration
	logger         zerolog.Logger
}

// NewProcessor wires a processor. The captioner may be the fallback itself;
// either way a captioner failure is recovered with the deterministic
// fallback and never fails the job.
func NewProcessor(repo domain.ImageRepository, store *storage.FileStore, captioner caption.Captioner, captionTimeout time.Duration, logger zerolog.Logger) *Processor {
	if captionTimeout <= 0 {
		captionTimeout = 30 * time.Second
	}
	return &Processor{
		repo:           repo,
		store:          store,
		captioner:      captioner,
		captionTimeout: captionTimeout,
		logger:         logger,
	}
}

// Process runs the pipeline for one image identifier.
func (p *Processor) Process(ctx context.Context, imageID string) {
	started := time.Now().UTC()
	p.logger.Info().Str("image_id", imageID).Msg("pipeline: processing started")

	if err := p.runGuarded(ctx, imageID, started); err != nil {
		p.logger.Error().Err(err).Str("image_id", imageID).Msg("pipeline: processing failed")
		p.fail(ctx, imageID, started, err)
		return
	}
	p.logger.Info().
		Str("image_id", imageID).
		Dur("elapsed", time.Since(started)).
		Msg("pipeline: processing succeeded")
}

func (p *Processor) runGuarded(ctx context.Context, imageID string, started time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("unexpected processing failure: %v", r)
		}
	}()
	return p.run(ctx, imageID, started)
}

func (p *Processor) run(ctx context.Context, imageID string, started time.Time) error {
	record, err := p.repo.GetByID(ctx, imageID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			p.logger.Warn().Str("image_id", imageID).Msg("pipeline: record missing, dropping job")
			return nil
		}
		return fmt.Errorf("load record: %w", err)
	}
	if record.Status.Terminal() {
		return nil
	}

	data, err := p.store.Read(ctx, record.OriginalKey)
	if err != nil {
		return fmt.Errorf("original image not readable: %w", err)
	}

	img, format, err := media.Decode(data)
	if err != nil {
		// Format was validated at upload time; an unsupported format here
		// means the stored original no longer matches what was accepted.
		if errors.Is(err, domain.ErrUnsupportedFormat) {
			return fmt.Errorf("stored original failed format validation: %w", err)
		}
		return fmt.Errorf("invalid image file: %w", err)
	}

	bounds := img.Bounds()
	meta := &domain.ImageMetadata{
		Width:     bounds.Dx(),
		Height:    bounds.Dy(),
		Format:    format.Normalized(),
		SizeBytes: int64(len(data)),
		EXIF:      media.ExtractEXIF(data),
	}
	meta.FileDatetime = record.CreatedAt
	if _, mtime, err := p.store.Stat(ctx, record.OriginalKey); err == nil {
		meta.FileDatetime = mtime
	}

	thumbs := make(map[domain.ThumbnailSize]string, len(domain.ThumbnailSizes))
	for _, size := range domain.ThumbnailSizes {
		encoded, err := media.EncodeThumbnail(img, size.BoxFor())
		if err != nil {
			return fmt.Errorf("generate %s thumbnail: %w", size, err)
		}
		key, err := p.store.Write(ctx, storage.ThumbnailKey(imageID, size), encoded)
		if err != nil {
			return fmt.Errorf("store %s thumbnail: %w", size, err)
		}
		thumbs[size] = key
	}

	meta.Caption = p.caption(ctx, caption.Source{
		Data:   data,
		MIME:   "image/" + string(format),
		Pixels: img,
		Format: format.Normalized(),
		Width:  meta.Width,
		Height: meta.Height,
	})

	finished := time.Now().UTC()
	outcome := domain.SuccessOutcome(meta, thumbs, finished, finished.Sub(started).Seconds())
	if err := p.repo.Finish(ctx, imageID, outcome); err != nil {
		if errors.Is(err, domain.ErrAlreadyTerminal) {
			return nil
		}
		return fmt.Errorf("persist result: %w", err)
	}
	return nil
}

// caption asks the configured provider and falls back to the rule-based
// description on any error, so the field is always populated on success.
func (p *Processor) caption(ctx context.Context, src caption.Source) string {
	captionCtx, cancel := context.WithTimeout(ctx, p.captionTimeout)
	defer cancel()

	if text, err := p.captioner.Caption(captionCtx, src); err == nil && text != "" {
		return text
	} else if err != nil {
		p.logger.Warn().Err(err).Msg("pipeline: caption provider failed, using fallback")
	}

	text, _ := caption.Fallback{}.Caption(ctx, src)
	return text
}

func (p *Processor) fail(ctx context.Context, imageID string, started time.Time, cause error) {
	finished := time.Now().UTC()
	outcome := domain.FailureOutcome(cause.Error(), finished, finished.Sub(started).Seconds())
	if err := p.repo.Finish(ctx, imageID, outcome); err != nil && !errors.Is(err, domain.ErrAlreadyTerminal) {
		p.logger.Error().Err(err).Str("image_id", imageID).Msg("pipeline: failed to persist failure state")
	}
}
