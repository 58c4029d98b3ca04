package codec

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/disintegration/imaging"
)

// ErrUnsupportedEncode is returned for containers whose encoder has no
// quality or compression setting.
var ErrUnsupportedEncode = errors.New("encoder does not support a quality setting")

// EncodeOptions controls the lossy re-encode.
type EncodeOptions struct {
	Quality  int  // 1..100, JPEG only
	Optimize bool // best PNG compression, optimized Huffman tables for libjpeg builds
}

// Encode writes img to w in the given container format.
func Encode(w io.Writer, img image.Image, format string, opts EncodeOptions) error {
	switch format {
	case "jpeg":
		return encodeJPEG(w, img, opts)
	case "png":
		level := png.DefaultCompression
		if opts.Optimize {
			level = png.BestCompression
		}
		return imaging.Encode(w, img, imaging.PNG, imaging.PNGCompressionLevel(level))
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedEncode, format)
	}
}

// SupportsQuality reports whether Encode accepts the format.
func SupportsQuality(format string) bool {
	return format == "jpeg" || format == "png"
}
