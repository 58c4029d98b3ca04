package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the main configuration structure
type Config struct {
	Inspect  InspectConfig  `mapstructure:"inspect"`
	Compress CompressConfig `mapstructure:"compress"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// InspectConfig contains the inspector settings
type InspectConfig struct {
	Paths []string `mapstructure:"paths"`
}

// CompressConfig contains the compressor settings
type CompressConfig struct {
	Directory           string   `mapstructure:"directory"`
	MaxWidth            int      `mapstructure:"max_width"`
	Quality             int      `mapstructure:"quality"`
	Optimize            bool     `mapstructure:"optimize"`
	SupportedExtensions []string `mapstructure:"supported_extensions"`
	Engine              string   `mapstructure:"engine"` // imaging, nfnt
	Workers             int      `mapstructure:"workers"`
	DryRun              bool     `mapstructure:"dry_run"`
	SkipMarked          bool     `mapstructure:"skip_marked"`
	StampMetadata       bool     `mapstructure:"stamp_metadata"`
}

// WatchConfig contains settings for the directory watcher
type WatchConfig struct {
	DebounceMillis int `mapstructure:"debounce_ms"`
}

// ServerConfig contains settings for the web interface
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	FilePath   string `mapstructure:"file_path"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Inspect: InspectConfig{
			Paths: []string{
				"images/chole-bhature.jpg",
				"images/poha.jpg",
				"images/masala-dosa.jpg",
			},
		},
		Compress: CompressConfig{
			Directory:           "images",
			MaxWidth:            800,
			Quality:             80,
			Optimize:            true,
			SupportedExtensions: []string{".jpg", ".jpeg", ".png"},
			Engine:              "imaging",
			Workers:             1,
		},
		Watch: WatchConfig{
			DebounceMillis: 500,
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:      "info",
			FilePath:   "imgshrink.log",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		},
	}
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.imgshrink")
		v.AddConfigPath("/etc/imgshrink")
	}

	v.SetEnvPrefix("IMGSHRINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// bindEnvKeys registers every known key so AutomaticEnv can see values
// that are absent from the config file.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"inspect.paths",
		"compress.directory",
		"compress.max_width",
		"compress.quality",
		"compress.optimize",
		"compress.supported_extensions",
		"compress.engine",
		"compress.workers",
		"compress.dry_run",
		"compress.skip_marked",
		"compress.stamp_metadata",
		"watch.debounce_ms",
		"server.port",
		"logging.level",
		"logging.file_path",
		"logging.max_size",
		"logging.max_backups",
		"logging.max_age",
		"logging.compress",
	}
	for _, key := range keys {
		_ = v.BindEnv(key)
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Compress.MaxWidth <= 0 {
		return fmt.Errorf("max_width must be positive, got %d", c.Compress.MaxWidth)
	}

	if c.Compress.Quality < 1 || c.Compress.Quality > 100 {
		return fmt.Errorf("quality must be within 1..100, got %d", c.Compress.Quality)
	}

	validEngines := map[string]bool{
		"imaging": true,
		"nfnt":    true,
	}
	c.Compress.Engine = strings.ToLower(c.Compress.Engine)
	if c.Compress.Engine == "" {
		c.Compress.Engine = "imaging"
	}
	if !validEngines[c.Compress.Engine] {
		return fmt.Errorf("invalid engine: %s (valid: imaging, nfnt)", c.Compress.Engine)
	}

	if len(c.Compress.SupportedExtensions) == 0 {
		return fmt.Errorf("supported_extensions must not be empty")
	}
	c.Compress.SupportedExtensions = normalizeExtensions(c.Compress.SupportedExtensions)

	if c.Compress.Workers <= 0 {
		c.Compress.Workers = 1
	}
	if c.Watch.DebounceMillis <= 0 {
		c.Watch.DebounceMillis = 500
	}
	if c.Server.Port <= 0 {
		c.Server.Port = 8080
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	return nil
}

// IsImageExtension checks if the extension is one the compressor handles
func (c *Config) IsImageExtension(ext string) bool {
	ext = strings.ToLower(ext)
	for _, supportedExt := range c.Compress.SupportedExtensions {
		if ext == supportedExt {
			return true
		}
	}
	return false
}

// ExpandPath resolves environment variables and a leading ~ in path.
func ExpandPath(path string) string {
	expandedPath := os.ExpandEnv(path)
	if strings.HasPrefix(expandedPath, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return expandedPath
		}
		expandedPath = filepath.Join(home, expandedPath[1:])
	}
	return expandedPath
}

func normalizeExtensions(extensions []string) []string {
	normalized := make([]string, len(extensions))
	for i, ext := range extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		normalized[i] = ext
	}
	return normalized
}
