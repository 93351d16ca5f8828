package repo

import (
	"context"
	"sync"

	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
)

// Memory implements domain.ImageRepository entirely in process. It is the
// default store when no DATABASE_URL is configured and the store used by
// tests. Records are cloned on every read so callers can never observe a
// partially applied terminal write.
type Memory struct {
	mu      sync.RWMutex
	records map[string]*domain.ImageRecord
	order   []string
}

// NewMemory creates an empty in-memory image repository.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]*domain.ImageRecord)}
}

func (m *Memory) Insert(ctx context.Context, record *domain.ImageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[record.ID]; ok {
		return domain.ErrAlreadyExists
	}
	m.records[record.ID] = cloneRecord(record)
	m.order = append(m.order, record.ID)
	return nil
}

func (m *Memory) GetByID(ctx context.Context, id string) (*domain.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneRecord(record), nil
}

func (m *Memory) List(ctx context.Context) ([]domain.ImageRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ImageRecord, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *cloneRecord(m.records[id]))
	}
	return out, nil
}

func (m *Memory) Finish(ctx context.Context, id string, outcome domain.Outcome) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.records[id]
	if !ok {
		return domain.ErrNotFound
	}
	if record.Status.Terminal() {
		return domain.ErrAlreadyTerminal
	}

	// Build the terminal record aside and swap it in whole, so a concurrent
	// reader holding an earlier clone never sees intermediate field writes.
	next := cloneRecord(record)
	next.Status = outcome.Status
	next.Metadata = cloneMetadata(outcome.Metadata)
	next.ThumbnailKeys = cloneKeys(outcome.ThumbnailKeys)
	next.Error = outcome.Error
	next.ProcessedAt = outcome.ProcessedAt
	next.ProcessingDurationSeconds = outcome.Duration
	m.records[id] = next
	return nil
}

func cloneRecord(record *domain.ImageRecord) *domain.ImageRecord {
	out := *record
	out.Metadata = cloneMetadata(record.Metadata)
	out.ThumbnailKeys = cloneKeys(record.ThumbnailKeys)
	return &out
}

func cloneMetadata(meta *domain.ImageMetadata) *domain.ImageMetadata {
	if meta == nil {
		return nil
	}
	out := *meta
	if meta.EXIF != nil {
		out.EXIF = make(map[string]string, len(meta.EXIF))
		for k, v := range meta.EXIF {
			out.EXIF[k] = v
		}
	}
	return &out
}

func cloneKeys(keys map[domain.ThumbnailSize]string) map[domain.ThumbnailSize]string {
	if keys == nil {
		return nil
	}
	out := make(map[domain.ThumbnailSize]string, len(keys))
	for k, v := range keys {
		out[k] = v
	}
	return out
}

var _ domain.ImageRepository = (*Memory)(nil)
