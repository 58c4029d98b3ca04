package main

import (
	"fmt"
	"os"

	"imgshrink-go/internal/config"
	"imgshrink-go/internal/logger"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// cliOptions holds the flag values of one command tree.
type cliOptions struct {
	cfgFile string
	verbose bool
	quiet   bool

	maxWidth   int
	quality    int
	workers    int
	dryRun     bool
	skipMarked bool
	engine     string
	reportPath string
	summary    bool

	port int
}

// newRootCmd builds the base command for the CLI.
func newRootCmd() *cobra.Command {
	opts := &cliOptions{}

	rootCmd := &cobra.Command{
		Use:   "imgshrink",
		Short: "Inspect and shrink the images of a directory",
		Long: `imgshrink prints the dimensions and sizes of images and compresses
a directory of images in place.

Features:
- Resizes anything wider than 800px, keeping the aspect ratio
- Re-encodes JPEG at quality 80 and PNG with maximum compression
- Writes through a temp file so originals are never half-written
- Optional parallel workers, dry-run mode and YAML run reports
- Watch mode and a small web interface with live progress`,
		Version:       fmt.Sprintf("%s (built %s)", version, buildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "enable verbose logging")
	rootCmd.PersistentFlags().BoolVar(&opts.quiet, "quiet", false, "suppress non-error output")

	rootCmd.AddCommand(newInspectCmd(opts))
	rootCmd.AddCommand(newCompressCmd(opts))
	rootCmd.AddCommand(newWatchCmd(opts))
	rootCmd.AddCommand(newServeCmd(opts))

	return rootCmd
}

func addCompressFlags(cmd *cobra.Command, opts *cliOptions) {
	cmd.Flags().IntVar(&opts.maxWidth, "max-width", 800, "maximum width in pixels")
	cmd.Flags().IntVar(&opts.quality, "quality", 80, "JPEG quality (1-100)")
	cmd.Flags().IntVar(&opts.workers, "workers", 1, "number of files processed concurrently")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "report what would be saved without touching files")
	cmd.Flags().BoolVar(&opts.skipMarked, "skip-marked", false, "skip JPEGs already marked as compressed")
	cmd.Flags().StringVar(&opts.engine, "engine", "imaging", "resize engine (imaging, nfnt)")
}

// loadConfig loads configuration and applies CLI overrides.
func loadConfig(cmd *cobra.Command, opts *cliOptions) (*config.Config, error) {
	cfg, err := config.LoadConfig(opts.cfgFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("max-width") {
		cfg.Compress.MaxWidth = opts.maxWidth
	}
	if flags.Changed("quality") {
		cfg.Compress.Quality = opts.quality
	}
	if flags.Changed("workers") {
		cfg.Compress.Workers = opts.workers
	}
	if flags.Changed("engine") {
		cfg.Compress.Engine = opts.engine
	}
	if opts.dryRun {
		cfg.Compress.DryRun = true
	}
	if opts.skipMarked {
		cfg.Compress.SkipMarked = true
	}
	if flags.Changed("port") {
		cfg.Server.Port = opts.port
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogger configures and returns a logger.
func setupLogger(cmd *cobra.Command, cfg *config.Config, opts *cliOptions) *logrus.Logger {
	loggerCfg := logger.LoggerConfig{
		Level:      cfg.Logging.Level,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
		Console:    !opts.quiet,
		ConsoleOut: cmd.ErrOrStderr(),
	}

	if opts.verbose {
		loggerCfg.Level = "debug"
	}
	if opts.quiet {
		loggerCfg.Level = "error"
	}

	log, err := logger.NewLogger(loggerCfg)
	if err != nil {
		log = logrus.New()
		log.SetOutput(cmd.ErrOrStderr())
		log.SetLevel(logrus.InfoLevel)
		log.Warnf("Falling back to default logger: %v", err)
	}

	return log
}

// dirExists returns true if the given path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
