package codec

import (
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/nfnt/resize"
)

// Resizer resamples an image to an exact size.
type Resizer interface {
	Resize(img image.Image, width, height int) image.Image
	Name() string
}

// ImagingResizer uses disintegration/imaging with a Lanczos filter.
type ImagingResizer struct{}

func (ImagingResizer) Resize(img image.Image, width, height int) image.Image {
	return imaging.Resize(img, width, height, imaging.Lanczos)
}

func (ImagingResizer) Name() string { return "imaging" }

// NfntResizer uses nfnt/resize with Lanczos3 interpolation.
type NfntResizer struct{}

func (NfntResizer) Resize(img image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), img, resize.Lanczos3)
}

func (NfntResizer) Name() string { return "nfnt" }

// NewResizer returns the resampler registered under engine.
func NewResizer(engine string) (Resizer, error) {
	switch engine {
	case "", "imaging":
		return ImagingResizer{}, nil
	case "nfnt":
		return NfntResizer{}, nil
	default:
		return nil, fmt.Errorf("unknown resize engine: %s", engine)
	}
}

// FitWidth returns the target size for an image limited to maxWidth pixels,
// keeping the aspect ratio. The bool is false when no resize is needed.
func FitWidth(width, height, maxWidth int) (int, int, bool) {
	if width <= maxWidth {
		return width, height, false
	}
	newHeight := int(math.Round(float64(height) * float64(maxWidth) / float64(width)))
	if newHeight < 1 {
		newHeight = 1
	}
	return maxWidth, newHeight, true
}
