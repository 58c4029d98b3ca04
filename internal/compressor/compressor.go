package compressor

import (
	"context"
	"errors"
	"io/fs"

	"imgshrink-go/internal/codec"
	"imgshrink-go/internal/report"
)

// Policy is the resize and quality policy applied to every file of a run.
type Policy struct {
	MaxWidth int
	Quality  int
	Optimize bool
}

// DefaultPolicy returns the 800px / quality 80 policy.
func DefaultPolicy() Policy {
	return Policy{MaxWidth: 800, Quality: 80, Optimize: true}
}

// Params defines parameters for one compression run.
type Params struct {
	Directory  string
	Policy     Policy
	Extensions []string // lower-case with leading dot
	Workers    int
	DryRun     bool
	SkipMarked bool
}

// Kind classifies a per-file failure.
type Kind string

const (
	KindNotFound          Kind = "not-found"
	KindDecode            Kind = "decode-error"
	KindEncodeUnsupported Kind = "encode-unsupported"
	KindIO                Kind = "io-error"
)

// FileError is the failure of a single file. It never aborts a run.
type FileError struct {
	Filename string
	Kind     Kind
	Err      error
}

func (e *FileError) Error() string {
	return e.Err.Error()
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// classify wraps err into a FileError, keeping an existing classification.
func classify(filename string, err error) *FileError {
	var fe *FileError
	if errors.As(err, &fe) {
		return fe
	}

	kind := KindIO
	switch {
	case errors.Is(err, fs.ErrNotExist):
		kind = KindNotFound
	case codec.IsDecodeError(err):
		kind = KindDecode
	case errors.Is(err, codec.ErrUnsupportedEncode):
		kind = KindEncodeUnsupported
	}
	return &FileError{Filename: filename, Kind: kind, Err: err}
}

// Hooks receive progress while a run is in flight. Any of them may be nil.
type Hooks struct {
	OnStart   func(rep *report.Report)
	OnResult  func(res report.Result)
	OnFailure func(err *FileError)
}

// Compressor defines the interface for image compression.
type Compressor interface {
	// Compress processes every matching file of params.Directory. Per-file
	// failures land in the report; the error is reserved for the run itself.
	Compress(ctx context.Context, params Params) (*report.Report, error)

	// CompressFile processes a single file with the same policy.
	CompressFile(ctx context.Context, path string, params Params) (report.Result, error)
}
