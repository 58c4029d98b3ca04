package metadata

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/sirupsen/logrus"
)

// SoftwareMark is written to the EXIF Software tag of stamped files.
const SoftwareMark = "imgshrink"

// EXIFInfo holds the handful of EXIF fields the tool cares about.
type EXIFInfo struct {
	Software string
	DateTime *time.Time
}

// Marked reports whether the Software tag carries SoftwareMark.
func (i *EXIFInfo) Marked() bool {
	return i != nil && strings.Contains(i.Software, SoftwareMark)
}

// EXIFReader reads EXIF metadata from image files.
type EXIFReader struct {
	logger logrus.FieldLogger
}

// NewEXIFReader returns a new EXIFReader.
func NewEXIFReader(logger logrus.FieldLogger) *EXIFReader {
	return &EXIFReader{logger: logger}
}

// SupportsFile reports whether the file can carry EXIF data readable by goexif.
func (e *EXIFReader) SupportsFile(filePath string) bool {
	ext := strings.ToLower(filepath.Ext(filePath))
	return slices.Contains([]string{".jpg", ".jpeg", ".tif", ".tiff"}, ext)
}

// Read extracts the Software and date tags from filePath.
func (e *EXIFReader) Read(filePath string) (*EXIFInfo, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	x, err := exif.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF: %w", err)
	}

	info := &EXIFInfo{}
	if tag, err := x.Get(exif.Software); err == nil {
		if val, err := tag.StringVal(); err == nil {
			info.Software = strings.TrimSpace(strings.TrimRight(val, "\x00"))
		}
	}

	if tm, err := x.DateTime(); err == nil {
		info.DateTime = &tm
	} else if field, err := x.Get(exif.DateTimeOriginal); err == nil {
		if dateStr, err := field.StringVal(); err == nil {
			info.DateTime = e.parseEXIFDateTime(dateStr)
		}
	}

	return info, nil
}

// HasMark returns true if the EXIF Software tag contains SoftwareMark.
// Files without EXIF are never marked.
func (e *EXIFReader) HasMark(filePath string) bool {
	if !e.SupportsFile(filePath) {
		return false
	}
	info, err := e.Read(filePath)
	if err != nil {
		e.logger.Debugf("No EXIF in %s: %v", filePath, err)
		return false
	}
	return info.Marked()
}

func (e *EXIFReader) parseEXIFDateTime(dateStr string) *time.Time {
	formats := []string{
		"2006:01:02 15:04:05",
		"2006-01-02 15:04:05",
		"2006:01:02",
		time.RFC3339,
	}

	for _, format := range formats {
		if date, err := time.Parse(format, strings.TrimSpace(dateStr)); err == nil {
			return &date
		}
	}

	e.logger.Debugf("Failed to parse date string: %s", dateStr)
	return nil
}
