// scanxml is a command-line tool converting scanned documents into one XML file per document.
//
// Every document of the input directory is rasterized (PDF mode) or decoded (image folder mode),
// recognized page by page with an OCR engine, cleaned up and written as <output>/<title>.xml with
// its text, its table of contents and, for Volume_<vol>_<year> titles, its volume and year.
// Documents whose XML file already exists are skipped, so an interrupted run is resumed by
// starting it again.
//
// Configuration:
//
// Settings come from an optional YAML file, flags override it:
//
//	input_path: /data/scans
//	output_dir: /data/xml
//	mode: pdf            # pdf or img
//	workers: 10          # pages recognized in parallel
//	lang: fra
//	dpi: 300
//	engine: tesseract    # tesseract, gosseract or documentai
//	thread_limit: 1      # OpenMP threads per tesseract process
//	log_file: scanxml.log
//	log_level: debug
//	documentai:
//	  project_id: "your-gcp-project-id"
//	  location: "eu"
//	  processor_id: "your-processor-id"
//
// Usage:
//
//	scanxml -mode pdf -input scans/ -output xml/
//	scanxml -config scanxml.yml -workers 4
//
// Exit status is 0 when the run completed or was interrupted (SIGINT/SIGTERM), 1 when the
// configuration is invalid.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gardar/scanxml/pkg/batch"
	"github.com/gardar/scanxml/pkg/gdocai"
	"github.com/gardar/scanxml/pkg/ocr"
	"github.com/gardar/scanxml/pkg/ocr/tesseract"
	"github.com/gardar/scanxml/pkg/source"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("scanxml", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "Path to the YAML configuration file")
	input := fs.String("input", "", "Input directory (input_path)")
	output := fs.String("output", "", "Output directory for the XML files (output_dir)")
	mode := fs.String("mode", "", "Input layout: pdf or img")
	workers := fs.Int("workers", 0, "Pages recognized in parallel")
	lang := fs.String("lang", "", "Tesseract language code")
	dpi := fs.Int("dpi", 0, "Rasterization resolution for PDF pages")
	engineName := fs.String("engine", "", "OCR engine: tesseract, gosseract or documentai")
	threadLimit := fs.Int("thread-limit", 0, "Threads per recognition (OMP_THREAD_LIMIT)")
	logFile := fs.String("log-file", "", "Log file path")
	logLevel := fs.String("log-level", "", "Log level: debug, info, warn, error")
	ligatures := fs.Bool("expand-ligatures", false, "Replace œ with oe in the output text")
	transforms := fs.String("transforms", "", "Comma separated text transforms")
	tagTransforms := fs.String("tag-transforms", "", "Comma separated tag transforms")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := batch.DefaultConfig()
	if *configPath != "" {
		loaded, err := batch.LoadConfigFile(*configPath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	// Only flags given on the command line override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			cfg.InputPath = *input
		case "output":
			cfg.OutputDir = *output
		case "mode":
			cfg.Mode = *mode
		case "workers":
			cfg.Workers = *workers
		case "lang":
			cfg.Lang = *lang
		case "dpi":
			cfg.DPI = *dpi
		case "engine":
			cfg.Engine = *engineName
		case "thread-limit":
			cfg.ThreadLimit = *threadLimit
		case "log-file":
			cfg.LogFile = *logFile
		case "log-level":
			cfg.LogLevel = *logLevel
		case "expand-ligatures":
			cfg.ExpandLigatures = *ligatures
		case "transforms":
			cfg.Transforms = *transforms
		case "tag-transforms":
			cfg.TagTransforms = *tagTransforms
		}
	})
	cfg.Console = stdout

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Usage:")
		fs.PrintDefaults()
		return 1
	}

	logger, closeLog, err := newLogger(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m, _ := source.ParseMode(cfg.Mode)
	src, err := source.New(m, source.Options{DPI: cfg.DPI})
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	engine, closeEngine, err := newEngine(ctx, cfg)
	if err != nil {
		logger.Error("scanxml: engine", "engine", cfg.Engine, "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	defer closeEngine()

	res, err := batch.New(cfg, src, engine, logger).Run(ctx)
	if err != nil {
		logger.Error("scanxml: fatal", "error", err)
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	completed, skipped, failed := res.Count()
	fmt.Fprintf(stdout, "%d documents: %d written, %d skipped, %d failed\n", res.Total, completed, skipped, failed)
	if res.Interrupted {
		fmt.Fprintln(stdout, "Interrupted, run again to resume.")
	}
	for _, f := range res.Failed {
		fmt.Fprintf(stderr, "failed: %d %s: %v\n", f.ID, f.Name, f.Err)
	}
	return 0
}

// newLogger opens path in append mode and returns a text logger at level.
func newLogger(path, level string) (*slog.Logger, func(), error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "", "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn", "warning":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("unknown log level %q", level)
	}
	if path == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	logger := slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: lvl}))
	return logger, func() { f.Close() }, nil
}

// newEngine builds the engine named by cfg.Engine.
func newEngine(ctx context.Context, cfg batch.Config) (ocr.Engine, func(), error) {
	switch cfg.Engine {
	case batch.EngineTesseract:
		e, err := tesseract.NewCLI("")
		if err != nil {
			return nil, nil, err
		}
		return e, func() {}, nil
	case batch.EngineGosseract:
		return tesseract.NewClient(), func() {}, nil
	case batch.EngineDocumentAI:
		e, err := gdocai.NewEngine(ctx, cfg.DocumentAI)
		if err != nil {
			return nil, nil, err
		}
		return e, func() { e.Close() }, nil
	default:
		return nil, nil, errors.New("unknown engine " + cfg.Engine)
	}
}
