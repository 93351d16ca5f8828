package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrAlreadyTerminal    = errors.New("record already terminal")
	ErrUnsupportedFormat  = errors.New("unsupported image format")
	ErrDecodeFailed       = errors.New("image decode failed")
	ErrQueueFull          = errors.New("job queue full")
	ErrCaptionUnavailable = errors.New("caption provider unavailable")
)
