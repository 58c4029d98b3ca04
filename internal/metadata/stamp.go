package metadata

import (
	"fmt"

	"github.com/barasher/go-exiftool"
	"github.com/sirupsen/logrus"
)

// Stamper transfers metadata from an original file onto its re-encoded copy.
type Stamper interface {
	Stamp(src, dst string) error
	Close() error
}

// copiedTags survive the re-encode; everything else is dropped with the old file.
var copiedTags = []string{
	"DateTimeOriginal",
	"CreateDate",
	"Make",
	"Model",
	"Orientation",
	"Artist",
	"Copyright",
}

// ExiftoolStamper drives a long-running exiftool process.
type ExiftoolStamper struct {
	et     *exiftool.Exiftool
	logger logrus.FieldLogger
}

// NewExiftoolStamper starts exiftool. It fails when the binary is not on PATH.
func NewExiftoolStamper(logger logrus.FieldLogger) (*ExiftoolStamper, error) {
	et, err := exiftool.NewExiftool()
	if err != nil {
		return nil, fmt.Errorf("start exiftool: %w", err)
	}
	return &ExiftoolStamper{et: et, logger: logger}, nil
}

// Stamp copies the core tags of src to dst and sets Software to SoftwareMark.
func (s *ExiftoolStamper) Stamp(src, dst string) error {
	originals := s.et.ExtractMetadata(src)
	if len(originals) == 0 {
		return fmt.Errorf("exiftool returned no metadata for %s", src)
	}
	if originals[0].Err != nil {
		return fmt.Errorf("exiftool read %s: %w", src, originals[0].Err)
	}

	out := exiftool.EmptyFileMetadata()
	out.File = dst
	for _, tag := range copiedTags {
		if val, err := originals[0].GetString(tag); err == nil && val != "" {
			out.SetString(tag, val)
		}
	}
	out.SetString("Software", SoftwareMark)

	batch := []exiftool.FileMetadata{out}
	s.et.WriteMetadata(batch)
	if batch[0].Err != nil {
		return fmt.Errorf("exiftool write %s: %w", dst, batch[0].Err)
	}

	s.logger.Debugf("Stamped %s with tags from %s", dst, src)
	return nil
}

// Close stops the exiftool process.
func (s *ExiftoolStamper) Close() error {
	return s.et.Close()
}
