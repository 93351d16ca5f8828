package caption

import (
	"context"
	"fmt"
	"image"
	"strings"
)

// Fallback is the rule-based captioner used when no model-backed provider is
// configured and as the recovery path when one fails. Its output is
// deterministic for a given image.
type Fallback struct{}

func (Fallback) Caption(_ context.Context, src Source) (string, error) {
	format := strings.ToUpper(src.Format)
	orientation := "landscape"
	if src.Width < src.Height {
		orientation = "portrait"
	}
	if src.Pixels == nil {
		return fmt.Sprintf("A %s image with resolution %dx%d.", format, src.Width, src.Height), nil
	}
	label := brightnessLabel(meanLuminance(src.Pixels))
	return fmt.Sprintf("A %s %s %s image with resolution %dx%d.", label, orientation, format, src.Width, src.Height), nil
}

func brightnessLabel(value float64) string {
	switch {
	case value < 70:
		return "dark"
	case value > 180:
		return "bright"
	default:
		return "moderately lit"
	}
}

// meanLuminance samples up to a 64x64 grid of pixels; exact per-pixel stats
// are not worth the cost on large originals.
func meanLuminance(img image.Image) float64 {
	bounds := img.Bounds()
	stepX := bounds.Dx() / 64
	if stepX < 1 {
		stepX = 1
	}
	stepY := bounds.Dy() / 64
	if stepY < 1 {
		stepY = 1
	}

	var sum float64
	var count int
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			r, g, b, _ := img.At(x, y).RGBA()
			sum += 0.299*float64(r>>8) + 0.587*float64(g>>8) + 0.114*float64(b>>8)
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}

var _ Captioner = Fallback{}
