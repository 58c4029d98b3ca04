package inspector

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"imgshrink-go/internal/codec"
	"imgshrink-go/internal/logger"
	"imgshrink-go/internal/metadata"

	"github.com/sirupsen/logrus"
)

// ImageFile is one inspected image.
type ImageFile struct {
	Path   string `json:"path"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Size   int64  `json:"size"`
	Format string `json:"format"`
}

// Line renders the file as "<basename>: <w>x<h> - <size>KB".
func (f ImageFile) Line() string {
	return fmt.Sprintf("%s: %dx%d - %.1fKB", filepath.Base(f.Path), f.Width, f.Height, float64(f.Size)/1024)
}

// Inspector prints dimensions and sizes for a list of images.
type Inspector struct {
	out    io.Writer
	logger *logrus.Logger
	exif   *metadata.EXIFReader
}

// New returns an Inspector writing its lines to out.
func New(out io.Writer, log *logrus.Logger) *Inspector {
	return &Inspector{
		out:    out,
		logger: log,
		exif:   metadata.NewEXIFReader(log),
	}
}

// Inspect reports every path that exists, in order. Paths that cannot be
// stat'ed are skipped. The first file that is not a readable image stops
// the run; lines already written stay written.
func (i *Inspector) Inspect(paths []string) ([]ImageFile, error) {
	var files []ImageFile

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			i.logger.Debugf("Skipping %s: %v", path, err)
			continue
		}

		header, err := codec.Probe(path)
		if err != nil {
			return files, fmt.Errorf("inspect %s: %w", path, err)
		}

		file := ImageFile{
			Path:   path,
			Width:  header.Width,
			Height: header.Height,
			Size:   info.Size(),
			Format: header.Format,
		}
		files = append(files, file)

		if _, err := fmt.Fprintln(i.out, file.Line()); err != nil {
			return files, fmt.Errorf("write report line: %w", err)
		}

		if i.logger.IsLevelEnabled(logrus.DebugLevel) {
			i.logEXIF(path)
		}
	}

	return files, nil
}

func (i *Inspector) logEXIF(path string) {
	if !i.exif.SupportsFile(path) {
		return
	}
	entry := logger.WithFileOperation(i.logger, path, "inspect")
	info, err := i.exif.Read(path)
	if err != nil {
		entry.Debugf("No EXIF data: %v", err)
		return
	}
	fields := logrus.Fields{
		"software": info.Software,
		"marked":   info.Marked(),
	}
	if info.DateTime != nil {
		fields["date_time"] = info.DateTime.Format("2006-01-02 15:04:05")
	}
	entry.WithFields(fields).Debug("EXIF metadata")
}
