package compressor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"imgshrink-go/internal/codec"
	"imgshrink-go/internal/logger"
	"imgshrink-go/internal/metadata"
	"imgshrink-go/internal/report"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DefaultCompressor is the default implementation of the Compressor interface.
type DefaultCompressor struct {
	out     io.Writer
	logger  *logrus.Logger
	resizer codec.Resizer
	exif    *metadata.EXIFReader
	stamper metadata.Stamper
	hooks   Hooks

	outMutex   sync.Mutex
	stampMutex sync.Mutex
}

// Option customizes a DefaultCompressor.
type Option func(*DefaultCompressor)

// WithResizer replaces the default imaging resampler.
func WithResizer(r codec.Resizer) Option {
	return func(c *DefaultCompressor) { c.resizer = r }
}

// WithStamper copies EXIF tags onto re-encoded JPEGs and marks them.
func WithStamper(s metadata.Stamper) Option {
	return func(c *DefaultCompressor) { c.stamper = s }
}

// WithHooks registers progress callbacks.
func WithHooks(h Hooks) Option {
	return func(c *DefaultCompressor) { c.hooks = h }
}

// NewDefaultCompressor creates a new DefaultCompressor printing its report lines to out.
func NewDefaultCompressor(out io.Writer, log *logrus.Logger, opts ...Option) *DefaultCompressor {
	c := &DefaultCompressor{
		out:     out,
		logger:  log,
		resizer: codec.ImagingResizer{},
		exif:    metadata.NewEXIFReader(log),
	}
	for _, opt := range opts {
		opt(c)
	}
	log.WithFields(logrus.Fields{
		"jpeg_encoder": codec.JPEGEncoder,
		"resizer":      c.resizer.Name(),
	}).Debug("Compressor initialized")
	return c
}

// Compress performs image compression according to the provided parameters.
func (c *DefaultCompressor) Compress(ctx context.Context, params Params) (*report.Report, error) {
	rep := report.New(params.Directory)
	defer rep.Finalize()

	c.printf("Scanning %s...\n", params.Directory)

	files, err := collectImageFiles(params.Directory, params.Extensions)
	if err != nil {
		return rep, fmt.Errorf("collect files: %w", err)
	}
	rep.SetFilesFound(len(files))
	if c.hooks.OnStart != nil {
		c.hooks.OnStart(rep)
	}
	c.logger.Debugf("Found %d image files in %s", len(files), params.Directory)

	var g errgroup.Group
	g.SetLimit(max(params.Workers, 1))

	for i, name := range files {
		if ctx.Err() != nil {
			break
		}
		i, name := i, name
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			c.processEntry(ctx, rep, i, filepath.Join(params.Directory, name), params)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return rep, err
	}
	return rep, nil
}

// CompressFile compresses a single file and prints its report line.
func (c *DefaultCompressor) CompressFile(ctx context.Context, path string, params Params) (report.Result, error) {
	if err := ctx.Err(); err != nil {
		return report.Result{Filename: filepath.Base(path)}, err
	}
	res, err := c.compressOne(path, params)
	if err != nil {
		fe := classify(filepath.Base(path), err)
		c.reportFailure(path, fe)
		return res, fe
	}
	c.reportResult(res)
	return res, nil
}

func (c *DefaultCompressor) processEntry(ctx context.Context, rep *report.Report, index int, path string, params Params) {
	res, err := c.CompressFile(ctx, path, params)
	if err != nil {
		fe := classify(res.Filename, err)
		rep.AddFailure(index, fe.Filename, string(fe.Kind), fe.Error())
		return
	}
	rep.AddResult(index, res)
}

func (c *DefaultCompressor) reportResult(res report.Result) {
	switch {
	case res.Skipped:
		c.printf("Skipped %s: already compressed\n", res.Filename)
	case res.DryRun:
		c.printf("Would compress %s: %.1fKB -> %.1fKB (Saved %.1fKB)\n",
			res.Filename, kb(res.OriginalSize), kb(res.NewSize), kb(res.Saved()))
	default:
		c.printf("Compressed %s: %.1fKB -> %.1fKB (Saved %.1fKB)\n",
			res.Filename, kb(res.OriginalSize), kb(res.NewSize), kb(res.Saved()))
	}

	logger.WithFileOperation(c.logger, res.Filename, "compress").WithFields(logrus.Fields{
		"original_size": res.OriginalSize,
		"new_size":      res.NewSize,
		"resized":       res.Resized,
		"width":         res.Width,
		"height":        res.Height,
	}).Debug("Image processed")

	if c.hooks.OnResult != nil {
		c.hooks.OnResult(res)
	}
}

func (c *DefaultCompressor) reportFailure(path string, fe *FileError) {
	c.printf("Error processing %s: %v\n", fe.Filename, fe)
	logger.WithFileOperation(c.logger, path, "compress").
		WithField("kind", fe.Kind).
		Errorf("Compression failed: %v", fe.Err)

	if c.hooks.OnFailure != nil {
		c.hooks.OnFailure(fe)
	}
}

// compressOne runs the decode, resize, encode pipeline for one file.
func (c *DefaultCompressor) compressOne(path string, params Params) (report.Result, error) {
	name := filepath.Base(path)
	res := report.Result{Filename: name}

	info, err := os.Stat(path)
	if err != nil {
		return res, err
	}
	res.OriginalSize = info.Size()

	if params.SkipMarked && c.exif.HasMark(path) {
		res.Skipped = true
		res.NewSize = res.OriginalSize
		return res, nil
	}

	img, format, err := codec.DecodeFile(path)
	if err != nil {
		return res, err
	}
	res.Format = format
	if !codec.SupportsQuality(format) {
		return res, fmt.Errorf("%w: %s", codec.ErrUnsupportedEncode, format)
	}

	bounds := img.Bounds()
	res.OriginalWidth, res.OriginalHeight = bounds.Dx(), bounds.Dy()

	width, height, resized := codec.FitWidth(res.OriginalWidth, res.OriginalHeight, params.Policy.MaxWidth)
	if resized {
		img = c.resizer.Resize(img, width, height)
	}
	res.Width, res.Height, res.Resized = width, height, resized

	opts := codec.EncodeOptions{Quality: params.Policy.Quality, Optimize: params.Policy.Optimize}
	encode := func(w io.Writer) error {
		return codec.Encode(w, img, format, opts)
	}

	if params.DryRun {
		cw := &countingWriter{}
		if err := encode(cw); err != nil {
			return res, err
		}
		res.NewSize = cw.n
		res.DryRun = true
		return res, nil
	}

	newSize, err := c.replaceFile(path, info.Mode().Perm(), format, encode)
	if err != nil {
		return res, err
	}
	res.NewSize = newSize
	return res, nil
}

// replaceFile encodes into a temp file next to path and renames it over
// path. On any failure the original is left untouched and the temp file removed.
// Symlinks are resolved first so the link stays and its target is replaced.
func (c *DefaultCompressor) replaceFile(path string, perm os.FileMode, format string, encode func(io.Writer) error) (int64, error) {
	path, err := filepath.EvalSymlinks(path)
	if err != nil {
		return 0, fmt.Errorf("resolve path: %w", err)
	}
	dir := filepath.Dir(path)
	base := filepath.Base(path)
	ext := filepath.Ext(base)

	tmp, err := os.CreateTemp(dir, "."+strings.TrimSuffix(base, ext)+".*"+ext)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	renamed := false
	defer func() {
		if !renamed {
			_ = os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriter(tmp)
	if err := encode(bw); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := bw.Flush(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return 0, fmt.Errorf("chmod temp file: %w", err)
	}

	if c.stamper != nil && format == "jpeg" {
		c.stampMutex.Lock()
		stampErr := c.stamper.Stamp(path, tmpPath)
		c.stampMutex.Unlock()
		if stampErr != nil {
			logger.WithFile(c.logger, path).Warnf("EXIF not copied/marked: %v", stampErr)
		}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return 0, fmt.Errorf("replace original: %w", err)
	}
	renamed = true

	st, err := os.Stat(path)
	if err != nil {
		return 0, fmt.Errorf("stat compressed file: %w", err)
	}
	return st.Size(), nil
}

// collectImageFiles lists the directory entries (non-recursive) with a
// supported extension, sorted by name.
func collectImageFiles(dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	extSet := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		extSet[strings.ToLower(e)] = struct{}{}
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := extSet[ext]; ok {
			files = append(files, entry.Name())
		}
	}
	return files, nil
}

func (c *DefaultCompressor) printf(format string, args ...any) {
	c.outMutex.Lock()
	defer c.outMutex.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func kb(n int64) float64 {
	return float64(n) / 1024
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}
