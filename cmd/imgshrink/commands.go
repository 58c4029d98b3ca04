package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"imgshrink-go/internal/compressor"
	"imgshrink-go/internal/config"
	"imgshrink-go/internal/inspector"
	"imgshrink-go/internal/report"
	"imgshrink-go/internal/watcher"
	"imgshrink-go/internal/web"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// newInspectCmd prints dimensions and sizes of the given images.
func newInspectCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [paths...]",
		Short: "Print dimensions and file size of images",
		Long: `Prints "<name>: <width>x<height> - <size>KB" for every path that exists.
Missing paths are skipped silently; a file that is not an image stops the run.
Without arguments the paths listed under inspect.paths in the config are used.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			log := setupLogger(cmd, cfg, opts)

			paths := args
			if len(paths) == 0 {
				paths = cfg.Inspect.Paths
			}

			if _, err := inspector.New(cmd.OutOrStdout(), log).Inspect(paths); err != nil {
				return err
			}
			return nil
		},
	}
}

// newCompressCmd compresses every image of a directory in place.
func newCompressCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress [directory]",
		Short: "Resize and re-encode the images of a directory in place",
		Long: `Scans the directory (non-recursively) for .jpg, .jpeg and .png files,
shrinks anything wider than the maximum width and re-encodes it at the
configured quality. Files that fail are reported and skipped.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Compress.Directory = args[0]
			}
			cfg.Compress.Directory = config.ExpandPath(cfg.Compress.Directory)
			if !dirExists(cfg.Compress.Directory) {
				return fmt.Errorf("directory does not exist: %s", cfg.Compress.Directory)
			}

			log := setupLogger(cmd, cfg, opts)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, closeCompressor, err := newCompressor(cmd, cfg, log)
			if err != nil {
				return err
			}
			defer closeCompressor()

			rep, err := c.Compress(ctx, compressor.ParamsFromConfig(cfg.Compress))
			if err != nil {
				return fmt.Errorf("compression failed: %w", err)
			}

			return finishReport(cmd, rep, opts, log)
		},
	}

	addCompressFlags(cmd, opts)
	cmd.Flags().StringVar(&opts.reportPath, "report", "", "write a YAML report of the run to this file")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "print a summary after the run")
	return cmd
}

// newWatchCmd compresses a directory and keeps compressing new images.
func newWatchCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch [directory]",
		Short: "Compress a directory, then keep compressing images as they arrive",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if len(args) > 0 {
				cfg.Compress.Directory = args[0]
			}
			cfg.Compress.Directory = config.ExpandPath(cfg.Compress.Directory)
			if !dirExists(cfg.Compress.Directory) {
				return fmt.Errorf("directory does not exist: %s", cfg.Compress.Directory)
			}

			log := setupLogger(cmd, cfg, opts)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c, closeCompressor, err := newCompressor(cmd, cfg, log)
			if err != nil {
				return err
			}
			defer closeCompressor()

			debounce := time.Duration(cfg.Watch.DebounceMillis) * time.Millisecond
			w := watcher.New(c, compressor.ParamsFromConfig(cfg.Compress), log, debounce)
			if err := w.Run(ctx); err != nil {
				return fmt.Errorf("watch failed: %w", err)
			}
			return nil
		},
	}

	addCompressFlags(cmd, opts)
	return cmd
}

// newServeCmd starts the web interface server.
func newServeCmd(opts *cliOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start web interface server",
		Long: `Starts a web server exposing inspection and compression over HTTP.
Progress of a running compression is streamed on /ws.

Access the interface at http://localhost:<port> (default: 8080)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			log := setupLogger(cmd, cfg, opts)
			return runServe(cmd, cfg, log)
		},
	}

	cmd.Flags().IntVar(&opts.port, "port", 8080, "port to run web server on")
	return cmd
}

// runServe starts the web server and handles graceful shutdown.
func runServe(cmd *cobra.Command, cfg *config.Config, log *logrus.Logger) error {
	server := web.NewServer(cfg, log)
	out := cmd.OutOrStdout()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(cfg.Server.Port); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	fmt.Fprintf(out, "🚀 imgshrink web interface started!\n")
	fmt.Fprintf(out, "📱 Open your browser and go to: http://localhost:%d\n", cfg.Server.Port)
	fmt.Fprintf(out, "🛑 Press Ctrl+C to stop the server\n\n")

	select {
	case <-sigChan:
	case err := <-errChan:
		return fmt.Errorf("server failed to start: %w", err)
	}
	fmt.Fprintln(out, "\n🛑 Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	fmt.Fprintln(out, "✅ Server stopped gracefully")
	return nil
}

func newCompressor(cmd *cobra.Command, cfg *config.Config, log *logrus.Logger) (*compressor.DefaultCompressor, func() error, error) {
	options, closer, err := compressor.OptionsFromConfig(cfg.Compress, log)
	if err != nil {
		return nil, nil, err
	}
	return compressor.NewDefaultCompressor(cmd.OutOrStdout(), log, options...), closer, nil
}

// finishReport writes the optional YAML report and summary.
func finishReport(cmd *cobra.Command, rep *report.Report, opts *cliOptions, log *logrus.Logger) error {
	if opts.reportPath != "" {
		f, err := os.Create(opts.reportPath)
		if err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}
		if err := rep.WriteYAML(f); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		log.Infof("Report written to %s", opts.reportPath)
	}

	if opts.summary && !opts.quiet {
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "\n"+rep.Summary())
		fmt.Fprintln(out, rep.ErrorSummary())
	}
	return nil
}
