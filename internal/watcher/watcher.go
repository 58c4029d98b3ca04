package watcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"imgshrink-go/internal/compressor"
	"imgshrink-go/internal/logger"
	"imgshrink-go/internal/report"
)

// DefaultDebounce is the quiet period before a changed file is compressed.
const DefaultDebounce = 500 * time.Millisecond

// fileStamp identifies the bytes the watcher itself last wrote.
type fileStamp struct {
	size    int64
	modTime time.Time
}

// Watcher compresses a directory once and then re-compresses matching files
// as they are created or modified.
type Watcher struct {
	compressor compressor.Compressor
	params     compressor.Params
	logger     *logrus.Logger
	debounce   time.Duration

	// OnProcessed, when set, is called after every compression the watcher triggers.
	OnProcessed func(path string, res report.Result, err error)

	written map[string]fileStamp
	pending chan string
	ready   chan struct{}
}

// New creates a watcher for params.Directory.
func New(c compressor.Compressor, params compressor.Params, log *logrus.Logger, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		compressor: c,
		params:     params,
		logger:     log,
		debounce:   debounce,
		written:    make(map[string]fileStamp),
		pending:    make(chan string, 100),
		ready:      make(chan struct{}),
	}
}

// Ready is closed once the initial pass is done and events are being handled.
func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Run blocks until ctx is cancelled or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsWatcher.Close()

	if err := fsWatcher.Add(w.params.Directory); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", w.params.Directory, err)
	}

	rep, err := w.compressor.Compress(ctx, w.params)
	if err != nil {
		return fmt.Errorf("initial pass: %w", err)
	}
	for _, res := range rep.Results() {
		w.remember(filepath.Join(w.params.Directory, res.Filename))
	}

	logger.WithOperation(w.logger, "watch").Infof("Watching folder: %s", w.params.Directory)
	close(w.ready)

	return w.loop(ctx, fsWatcher)
}

func (w *Watcher) loop(ctx context.Context, fsWatcher *fsnotify.Watcher) error {
	timers := make(map[string]*time.Timer)
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if t, exists := timers[event.Name]; exists {
				t.Stop()
			}
			name := event.Name
			timers[name] = time.AfterFunc(w.debounce, func() {
				select {
				case w.pending <- name:
				case <-ctx.Done():
				}
			})

		case path := <-w.pending:
			delete(timers, path)
			w.process(ctx, path)

		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnf("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	base := filepath.Base(event.Name)
	// temp files of in-flight replacements
	if strings.HasPrefix(base, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(base))
	for _, e := range w.params.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (w *Watcher) process(ctx context.Context, path string) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if stamp, ok := w.written[path]; ok && stamp.size == info.Size() && stamp.modTime.Equal(info.ModTime()) {
		logger.WithFileOperation(w.logger, path, "watch").Debug("Ignoring own write")
		return
	}

	res, err := w.compressor.CompressFile(ctx, path, w.params)
	if err == nil && !res.DryRun {
		w.remember(path)
	}
	if w.OnProcessed != nil {
		w.OnProcessed(path, res, err)
	}
}

func (w *Watcher) remember(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	w.written[path] = fileStamp{size: info.Size(), modTime: info.ModTime()}
}
