//go:build libjpeg && cgo

package codec

import (
	"image"
	"image/draw"
	"io"

	"github.com/pixiv/go-libjpeg/jpeg"
)

// JPEGEncoder names the JPEG backend compiled into the binary.
const JPEGEncoder = "libjpeg"

func encodeJPEG(w io.Writer, img image.Image, opts EncodeOptions) error {
	return jpeg.Encode(w, toEncodable(img), &jpeg.EncoderOptions{
		Quality:        opts.Quality,
		OptimizeCoding: opts.Optimize,
	})
}

// libjpeg only takes YCbCr, Gray and RGBA sources.
func toEncodable(img image.Image) image.Image {
	switch img.(type) {
	case *image.YCbCr, *image.Gray, *image.RGBA:
		return img
	}
	b := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, b.Min, draw.Src)
	return rgba
}
