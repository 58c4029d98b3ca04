package watcher

import (
	"bytes"
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgshrink-go/internal/compressor"
	"imgshrink-go/internal/logger"
	"imgshrink-go/internal/report"
	"imgshrink-go/internal/testutil"
)

type processed struct {
	path string
	res  report.Result
	err  error
}

func startWatcher(t *testing.T, dir string) (*Watcher, <-chan processed) {
	t.Helper()

	params := compressor.Params{
		Directory:  dir,
		Policy:     compressor.DefaultPolicy(),
		Extensions: []string{".jpg", ".jpeg", ".png"},
		Workers:    1,
	}
	var out syncBuffer
	c := compressor.NewDefaultCompressor(&out, logger.Discard())
	w := New(c, params, logger.Discard(), 50*time.Millisecond)

	events := make(chan processed, 10)
	w.OnProcessed = func(path string, res report.Result, err error) {
		events <- processed{path: path, res: res, err: err}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})

	select {
	case <-w.Ready():
	case err := <-done:
		t.Fatalf("watcher exited early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("watcher never became ready")
	}
	return w, events
}

func TestWatcherCompressesExistingFilesFirst(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "old.jpg", testutil.EncodeJPEG(t, 1600, 1200, 95))

	startWatcher(t, dir)

	w, h := testutil.Dimensions(t, path)
	assert.Equal(t, 800, w)
	assert.Equal(t, 600, h)
}

func TestWatcherCompressesNewFile(t *testing.T) {
	dir := t.TempDir()
	_, events := startWatcher(t, dir)

	path := testutil.WriteFile(t, dir, "new.jpg", testutil.EncodeJPEG(t, 1200, 600, 95))

	select {
	case ev := <-events:
		require.NoError(t, ev.err)
		assert.Equal(t, path, ev.path)
		assert.True(t, ev.res.Resized)
	case <-time.After(10 * time.Second):
		t.Fatal("new file was not compressed")
	}

	w, h := testutil.Dimensions(t, path)
	assert.Equal(t, 800, w)
	assert.Equal(t, 400, h)

	// the replacement must not trigger another pass
	select {
	case ev := <-events:
		t.Fatalf("unexpected second pass for %s", ev.path)
	case <-time.After(500 * time.Millisecond):
	}
}

func TestWatcherIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	_, events := startWatcher(t, dir)

	testutil.WriteFile(t, dir, "notes.txt", []byte("hello"))
	testutil.WriteFile(t, dir, ".hidden.jpg", testutil.EncodeJPEG(t, 1200, 600, 95))

	select {
	case ev := <-events:
		t.Fatalf("unexpected pass for %s", ev.path)
	case <-time.After(500 * time.Millisecond):
	}
	w, _ := testutil.Dimensions(t, filepath.Join(dir, ".hidden.jpg"))
	assert.Equal(t, 1200, w)
}

func TestWatcherMissingDirectory(t *testing.T) {
	params := compressor.Params{Directory: filepath.Join(t.TempDir(), "missing")}
	c := compressor.NewDefaultCompressor(&bytes.Buffer{}, logger.Discard())
	err := New(c, params, logger.Discard(), 0).Run(context.Background())
	require.Error(t, err)
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}
