package compressor

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"imgshrink-go/internal/codec"
	"imgshrink-go/internal/config"
	"imgshrink-go/internal/metadata"
)

// ParamsFromConfig builds run parameters from the compress section. Unset
// max_width and quality fall back to DefaultPolicy.
func ParamsFromConfig(cfg config.CompressConfig) Params {
	policy := DefaultPolicy()
	if cfg.MaxWidth > 0 {
		policy.MaxWidth = cfg.MaxWidth
	}
	if cfg.Quality > 0 {
		policy.Quality = cfg.Quality
	}
	policy.Optimize = cfg.Optimize

	return Params{
		Directory:  cfg.Directory,
		Policy:     policy,
		Extensions: cfg.SupportedExtensions,
		Workers:    cfg.Workers,
		DryRun:     cfg.DryRun,
		SkipMarked: cfg.SkipMarked,
	}
}

// OptionsFromConfig resolves the resize engine and, when enabled, starts an
// exiftool stamper. The returned close func must be called when done.
func OptionsFromConfig(cfg config.CompressConfig, log *logrus.Logger) ([]Option, func() error, error) {
	resizer, err := codec.NewResizer(cfg.Engine)
	if err != nil {
		return nil, nil, err
	}
	opts := []Option{WithResizer(resizer)}
	closer := func() error { return nil }

	if cfg.StampMetadata && !cfg.DryRun {
		stamper, err := metadata.NewExiftoolStamper(log)
		if err != nil {
			return nil, nil, fmt.Errorf("stamp_metadata: %w", err)
		}
		opts = append(opts, WithStamper(stamper))
		closer = stamper.Close
	}
	return opts, closer, nil
}
