// Package testutil builds image fixtures for tests.
package testutil

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// Gradient returns a w x h image with enough detail for lossy encoders to bite on.
func Gradient(w, h int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: uint8(x * 7), G: uint8(y * 3), B: uint8((x + y) * 5), A: 255})
		}
	}
	return img
}

// EncodeJPEG returns a w x h JPEG at the given quality.
func EncodeJPEG(t testing.TB, w, h, quality int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, Gradient(w, h), imaging.JPEG, imaging.JPEGQuality(quality)))
	return buf.Bytes()
}

// EncodePNG returns a w x h PNG.
func EncodePNG(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, Gradient(w, h), imaging.PNG))
	return buf.Bytes()
}

// EncodeGIF returns a w x h GIF.
func EncodeGIF(t testing.TB, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, Gradient(w, h), imaging.GIF))
	return buf.Bytes()
}

// WriteFile writes data to dir/name and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

// Dimensions decodes the header of path.
func Dimensions(t testing.TB, path string) (int, int) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	require.NoError(t, err)
	return cfg.Width, cfg.Height
}

// WithSoftwareTag inserts an APP1 EXIF segment whose IFD0 holds a single
// Software entry right after the SOI marker of jpegData.
func WithSoftwareTag(jpegData []byte, software string) []byte {
	value := append([]byte(software), 0)

	var tiff bytes.Buffer
	le := binary.LittleEndian
	tiff.WriteString("II")
	_ = binary.Write(&tiff, le, uint16(42))
	_ = binary.Write(&tiff, le, uint32(8)) // IFD0 offset
	_ = binary.Write(&tiff, le, uint16(1)) // entry count
	_ = binary.Write(&tiff, le, uint16(0x0131))
	_ = binary.Write(&tiff, le, uint16(2)) // ASCII
	_ = binary.Write(&tiff, le, uint32(len(value)))
	_ = binary.Write(&tiff, le, uint32(8+2+12+4)) // value follows the IFD
	_ = binary.Write(&tiff, le, uint32(0))        // no next IFD
	tiff.Write(value)

	payload := append([]byte("Exif\x00\x00"), tiff.Bytes()...)

	var out bytes.Buffer
	out.Write(jpegData[:2])
	out.Write([]byte{0xFF, 0xE1})
	_ = binary.Write(&out, binary.BigEndian, uint16(len(payload)+2))
	out.Write(payload)
	out.Write(jpegData[2:])
	return out.Bytes()
}
