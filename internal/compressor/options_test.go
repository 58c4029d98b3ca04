package compressor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"imgshrink-go/internal/config"
	"imgshrink-go/internal/logger"
)

func TestParamsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Compress
	cfg.Workers = 3
	cfg.SkipMarked = true

	params := ParamsFromConfig(cfg)
	assert.Equal(t, "images", params.Directory)
	assert.Equal(t, DefaultPolicy(), params.Policy)
	assert.Equal(t, []string{".jpg", ".jpeg", ".png"}, params.Extensions)
	assert.Equal(t, 3, params.Workers)
	assert.True(t, params.SkipMarked)
	assert.False(t, params.DryRun)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Compress
	cfg.Engine = "nfnt"

	opts, closer, err := OptionsFromConfig(cfg, logger.Discard())
	require.NoError(t, err)
	require.NoError(t, closer())

	c := NewDefaultCompressor(nil, logger.Discard(), opts...)
	assert.Equal(t, "nfnt", c.resizer.Name())
	assert.Nil(t, c.stamper)

	cfg.Engine = "bogus"
	_, _, err = OptionsFromConfig(cfg, logger.Discard())
	assert.Error(t, err)
}

func TestParamsFromConfigFallsBackToDefaultPolicy(t *testing.T) {
	params := ParamsFromConfig(config.CompressConfig{Directory: "photos", Optimize: true})
	assert.Equal(t, DefaultPolicy(), params.Policy)

	params = ParamsFromConfig(config.CompressConfig{MaxWidth: 1024, Quality: 60})
	assert.Equal(t, Policy{MaxWidth: 1024, Quality: 60, Optimize: false}, params.Policy)
}
