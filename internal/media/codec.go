package media

import (
	"bytes"
	"errors"
	"fmt"
	"image"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"github.com/ClarenceChoo/Digital-Forensics/internal/domain"
)

// Format identifies a decoded image format by its registered codec name.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

// Normalized returns the short lowercase name exposed in metadata.
func (f Format) Normalized() string {
	if f == FormatJPEG {
		return "jpg"
	}
	return string(f)
}

// Ext returns the file extension used under the originals storage area.
func (f Format) Ext() string {
	return f.Normalized()
}

// supported reports whether the pipeline accepts the format. GIF registers a
// decoder so well-formed GIF uploads are rejected as unsupported rather than
// as corrupt bytes.
func supported(name string) bool {
	return name == string(FormatJPEG) || name == string(FormatPNG)
}

// Sniff validates that data holds a decodable JPEG or PNG header without
// decoding pixel data. It distinguishes unsupported formats
// (domain.ErrUnsupportedFormat) from corrupt or truncated input
// (domain.ErrDecodeFailed).
func Sniff(data []byte) (Format, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("%w: empty file", domain.ErrDecodeFailed)
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return "", domain.ErrUnsupportedFormat
		}
		return "", fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}
	if !supported(name) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, name)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return "", fmt.Errorf("%w: zero-sized image", domain.ErrDecodeFailed)
	}
	return Format(name), nil
}

// Decode decodes the full pixel data, applying the same error taxonomy as
// Sniff.
func Decode(data []byte) (image.Image, Format, error) {
	img, name, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return nil, "", domain.ErrUnsupportedFormat
		}
		return nil, "", fmt.Errorf("%w: %v", domain.ErrDecodeFailed, err)
	}
	if !supported(name) {
		return nil, "", fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, name)
	}
	return img, Format(name), nil
}
