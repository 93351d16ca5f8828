package media

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/disintegration/imaging"
)

const thumbnailJPEGQuality = 90

// EncodeThumbnail scales src to fit within a box×box bounding box, preserving
// aspect ratio without cropping, and re-encodes it as JPEG. Sources with an
// alpha channel are flattened onto a white background first; JPEG cannot
// carry transparency.
func EncodeThumbnail(src image.Image, box int) ([]byte, error) {
	if box <= 0 {
		return nil, fmt.Errorf("thumbnail box must be positive, got %d", box)
	}
	thumb := imaging.Fit(flatten(src), box, box, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG, imaging.JPEGQuality(thumbnailJPEGQuality)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

func flatten(src image.Image) image.Image {
	if opaque, ok := src.(interface{ Opaque() bool }); ok && opaque.Opaque() {
		return src
	}
	bounds := src.Bounds()
	canvas := imaging.New(bounds.Dx(), bounds.Dy(), color.White)
	return imaging.OverlayCenter(canvas, src, 1.0)
}
