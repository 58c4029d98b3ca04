package codec

import (
	"bytes"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestImage(w, h int) *image.NRGBA {
	return imaging.New(w, h, color.NRGBA{R: 120, G: 80, B: 200, A: 255})
}

func TestFitWidth(t *testing.T) {
	tests := []struct {
		name       string
		w, h, max  int
		wantW      int
		wantH      int
		wantResize bool
	}{
		{"narrower than limit", 640, 480, 800, 640, 480, false},
		{"exactly at limit", 800, 600, 800, 800, 600, false},
		{"landscape", 1600, 1200, 800, 800, 600, true},
		{"rounds down", 1000, 333, 800, 800, 266, true},
		{"rounds up", 1200, 901, 800, 800, 601, true},
		{"very flat keeps one row", 10000, 2, 800, 800, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h, resized := FitWidth(tt.w, tt.h, tt.max)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
			assert.Equal(t, tt.wantResize, resized)
		})
	}
}

func TestProbeReadsHeader(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "poha.png")
	require.NoError(t, imaging.Save(newTestImage(321, 123), path))

	info, err := Probe(path)
	require.NoError(t, err)
	assert.Equal(t, Info{Width: 321, Height: 123, Format: "png"}, info)
}

func TestProbeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a jpeg"), 0644))

	_, err := Probe(path)
	require.Error(t, err)
	assert.True(t, IsDecodeError(err))
}

func TestProbeMissingFile(t *testing.T) {
	_, err := Probe(filepath.Join(t.TempDir(), "nope.jpg"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
	assert.False(t, IsDecodeError(err))
}

func TestDecodeDetectsContainerNotExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "actually-png.jpg")
	var buf bytes.Buffer
	require.NoError(t, imaging.Encode(&buf, newTestImage(10, 10), imaging.PNG))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))

	img, format, err := DecodeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 10, img.Bounds().Dx())
}

func TestEncodeRoundTrip(t *testing.T) {
	for _, format := range []string{"jpeg", "png"} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			err := Encode(&buf, newTestImage(64, 48), format, EncodeOptions{Quality: 80, Optimize: true})
			require.NoError(t, err)

			info, err := ProbeReader(&buf)
			require.NoError(t, err)
			assert.Equal(t, format, info.Format)
			assert.Equal(t, 64, info.Width)
			assert.Equal(t, 48, info.Height)
		})
	}
}

func TestEncodeUnsupportedFormat(t *testing.T) {
	for _, format := range []string{"gif", "bmp", "tiff", "webp"} {
		err := Encode(&bytes.Buffer{}, newTestImage(4, 4), format, EncodeOptions{Quality: 80})
		assert.ErrorIs(t, err, ErrUnsupportedEncode, format)
		assert.False(t, SupportsQuality(format))
	}
	assert.True(t, SupportsQuality("jpeg"))
}

func TestJPEGQualityAffectsSize(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 200, 200))
	for y := 0; y < 200; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x ^ y), A: 255})
		}
	}

	var low, high bytes.Buffer
	require.NoError(t, Encode(&low, img, "jpeg", EncodeOptions{Quality: 20}))
	require.NoError(t, Encode(&high, img, "jpeg", EncodeOptions{Quality: 95}))
	assert.Less(t, low.Len(), high.Len())
}

func TestResizers(t *testing.T) {
	for _, engine := range []string{"imaging", "nfnt"} {
		t.Run(engine, func(t *testing.T) {
			r, err := NewResizer(engine)
			require.NoError(t, err)
			assert.Equal(t, engine, r.Name())

			out := r.Resize(newTestImage(1600, 900), 800, 450)
			require.NotNil(t, out)
			assert.Equal(t, 800, out.Bounds().Dx())
			assert.Equal(t, 450, out.Bounds().Dy())
		})
	}

	_, err := NewResizer("magick")
	assert.Error(t, err)
}
