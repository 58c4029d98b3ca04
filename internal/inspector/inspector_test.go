package inspector

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgshrink-go/internal/codec"
	"imgshrink-go/internal/logger"
	"imgshrink-go/internal/testutil"
)

func TestInspectReportsExistingFiles(t *testing.T) {
	dir := t.TempDir()
	jpg := testutil.WriteFile(t, dir, "chole-bhature.jpg", testutil.EncodeJPEG(t, 1200, 900, 90))
	png := testutil.WriteFile(t, dir, "poha.png", testutil.EncodePNG(t, 300, 200))
	missing := filepath.Join(dir, "masala-dosa.jpg")

	var out bytes.Buffer
	files, err := New(&out, logger.Discard()).Inspect([]string{jpg, missing, png})
	require.NoError(t, err)
	require.Len(t, files, 2)

	jpgInfo, err := os.Stat(jpg)
	require.NoError(t, err)
	assert.Equal(t, 1200, files[0].Width)
	assert.Equal(t, 900, files[0].Height)
	assert.Equal(t, jpgInfo.Size(), files[0].Size)
	assert.Equal(t, "jpeg", files[0].Format)
	assert.Equal(t, "png", files[1].Format)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, files[0].Line(), lines[0])
	assert.True(t, strings.HasPrefix(lines[0], "chole-bhature.jpg: 1200x900 - "))
	assert.True(t, strings.HasPrefix(lines[1], "poha.png: 300x200 - "))
	assert.NotContains(t, out.String(), "masala-dosa")
}

func TestInspectNothingExists(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer

	files, err := New(&out, logger.Discard()).Inspect([]string{
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "b.jpg"),
	})
	require.NoError(t, err)
	assert.Empty(t, files)
	assert.Empty(t, out.String())
}

func TestInspectStopsAtUndecodableFile(t *testing.T) {
	dir := t.TempDir()
	good := testutil.WriteFile(t, dir, "good.jpg", testutil.EncodeJPEG(t, 10, 10, 90))
	bad := testutil.WriteFile(t, dir, "bad.jpg", []byte("not an image"))
	after := testutil.WriteFile(t, dir, "after.jpg", testutil.EncodeJPEG(t, 10, 10, 90))

	var out bytes.Buffer
	files, err := New(&out, logger.Discard()).Inspect([]string{good, bad, after})
	require.Error(t, err)
	assert.True(t, codec.IsDecodeError(err))
	assert.Contains(t, err.Error(), "bad.jpg")

	require.Len(t, files, 1)
	assert.Contains(t, out.String(), "good.jpg")
	assert.NotContains(t, out.String(), "after.jpg")
}

func TestLineFormat(t *testing.T) {
	f := ImageFile{Path: "images/poha.jpg", Width: 800, Height: 533, Size: 52429}
	assert.Equal(t, "poha.jpg: 800x533 - 51.2KB", f.Line())
}

func TestInspectLogsEXIFAtDebug(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "marked.jpg",
		testutil.WithSoftwareTag(testutil.EncodeJPEG(t, 20, 20, 90), "imgshrink"))

	var logs bytes.Buffer
	log := logrus.New()
	log.SetOutput(&logs)
	log.SetLevel(logrus.DebugLevel)

	var out bytes.Buffer
	_, err := New(&out, log).Inspect([]string{path})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), "marked=true")
}
