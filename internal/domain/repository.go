package domain

import "context"

// ImageRepository defines persistence for image records. All methods must be
// safe for concurrent use; Finish applies the one terminal transition a
// record ever receives, as a single atomic write.
type ImageRepository interface {
	// Insert stores a new record. Returns ErrAlreadyExists if the id is taken.
	Insert(ctx context.Context, record *ImageRecord) error
	// GetByID returns a snapshot of the record, or ErrNotFound.
	GetByID(ctx context.Context, id string) (*ImageRecord, error)
	// List returns snapshots of all records in insertion order.
	List(ctx context.Context) ([]ImageRecord, error)
	// Finish transitions a processing record to its terminal state. Returns
	// ErrNotFound for unknown ids and ErrAlreadyTerminal if the record has
	// already been finished.
	Finish(ctx context.Context, id string, outcome Outcome) error
}
