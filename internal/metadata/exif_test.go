package metadata

import (
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgshrink-go/internal/logger"
	"imgshrink-go/internal/testutil"
)

func TestReadSoftwareTag(t *testing.T) {
	dir := t.TempDir()
	data := testutil.WithSoftwareTag(testutil.EncodeJPEG(t, 32, 32, 90), "imgshrink 1.0")
	path := testutil.WriteFile(t, dir, "marked.jpg", data)

	reader := NewEXIFReader(logger.Discard())
	info, err := reader.Read(path)
	require.NoError(t, err)
	assert.Equal(t, "imgshrink 1.0", info.Software)
	assert.Nil(t, info.DateTime)
	assert.True(t, info.Marked())
	assert.True(t, reader.HasMark(path))
}

func TestHasMarkWithoutEXIF(t *testing.T) {
	dir := t.TempDir()
	reader := NewEXIFReader(logger.Discard())

	plain := testutil.WriteFile(t, dir, "plain.jpg", testutil.EncodeJPEG(t, 16, 16, 90))
	assert.False(t, reader.HasMark(plain))

	other := testutil.WriteFile(t, dir, "other.jpg",
		testutil.WithSoftwareTag(testutil.EncodeJPEG(t, 16, 16, 90), "GIMP 2.10"))
	assert.False(t, reader.HasMark(other))

	png := testutil.WriteFile(t, dir, "pic.png", testutil.EncodePNG(t, 16, 16))
	assert.False(t, reader.SupportsFile(png))
	assert.False(t, reader.HasMark(png))
}

func TestParseEXIFDateTime(t *testing.T) {
	reader := NewEXIFReader(logger.Discard())

	got := reader.parseEXIFDateTime("2024:03:01 10:11:12")
	require.NotNil(t, got)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, 11, got.Minute())

	assert.Nil(t, reader.parseEXIFDateTime("yesterday"))
}

func TestExiftoolStamper(t *testing.T) {
	if _, err := exec.LookPath("exiftool"); err != nil {
		t.Skip("exiftool not installed")
	}

	dir := t.TempDir()
	src := testutil.WriteFile(t, dir, "src.jpg", testutil.EncodeJPEG(t, 16, 16, 90))
	dst := testutil.WriteFile(t, dir, "dst.jpg", testutil.EncodeJPEG(t, 16, 16, 80))

	stamper, err := NewExiftoolStamper(logger.Discard())
	require.NoError(t, err)
	defer stamper.Close()

	require.NoError(t, stamper.Stamp(src, dst))
	assert.True(t, NewEXIFReader(logger.Discard()).HasMark(dst))
}
