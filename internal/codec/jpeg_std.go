//go:build !libjpeg || !cgo

package codec

import (
	"image"
	"io"

	"github.com/disintegration/imaging"
)

// JPEGEncoder names the JPEG backend compiled into the binary.
const JPEGEncoder = "imaging"

// The pure Go encoder has no Huffman optimization; Optimize is ignored.
func encodeJPEG(w io.Writer, img image.Image, opts EncodeOptions) error {
	return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(opts.Quality))
}
