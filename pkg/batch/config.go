package batch

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gardar/scanxml/pkg/document"
	"github.com/gardar/scanxml/pkg/gdocai"
	"github.com/gardar/scanxml/pkg/ocr"
	"github.com/gardar/scanxml/pkg/pipeline"
	"github.com/gardar/scanxml/pkg/source"
)

// ErrInvalidConfig wraps every configuration error.
var ErrInvalidConfig = errors.New("invalid configuration")

// Engine names accepted by Config.Engine.
const (
	EngineTesseract  = "tesseract"
	EngineGosseract  = "gosseract"
	EngineDocumentAI = "documentai"
)

// Config holds the settings of one batch run. The YAML keys are those of
// the configuration file; command line flags override them.
type Config struct {
	InputPath       string        `yaml:"input_path"`
	OutputDir       string        `yaml:"output_dir"`
	Workers         int           `yaml:"workers"`
	Lang            string        `yaml:"lang"`
	Mode            string        `yaml:"mode"`
	DPI             int           `yaml:"dpi"`
	Engine          string        `yaml:"engine"`
	ThreadLimit     int           `yaml:"thread_limit"`
	LogFile         string        `yaml:"log_file"`
	LogLevel        string        `yaml:"log_level"`
	ExpandLigatures bool          `yaml:"expand_ligatures"`
	Transforms      string        `yaml:"transforms"`
	TagTransforms   string        `yaml:"tag_transforms"`
	DocumentAI      gdocai.Config `yaml:"documentai"`

	Console io.Writer `yaml:"-"` // Per-document progress lines, os.Stdout when nil
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		OutputDir:     ".",
		Workers:       ocr.DefaultConcurrency,
		Lang:          ocr.DefaultLanguage,
		DPI:           source.DefaultDPI,
		Engine:        EngineTesseract,
		ThreadLimit:   ocr.DefaultThreadLimit,
		LogFile:       "scanxml.log",
		LogLevel:      "debug",
		Transforms:    "page-markers,join-hyphens",
		TagTransforms: "volume-info",
	}
}

// LoadConfigFile reads a YAML file over DefaultConfig.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("%w: read %s: %v", ErrInvalidConfig, path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, path, err)
	}
	return cfg, nil
}

// Validate reports every problem of c at once. The returned error wraps
// ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	if c.InputPath == "" {
		errs = append(errs, errors.New("input_path is required"))
	} else if info, err := os.Stat(c.InputPath); err != nil {
		errs = append(errs, fmt.Errorf("input_path: %v", err))
	} else if !info.IsDir() {
		errs = append(errs, fmt.Errorf("input_path %s is not a directory", c.InputPath))
	}
	if c.Mode == "" {
		errs = append(errs, errors.New("mode is required (pdf or img)"))
	} else if _, err := source.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.DPI <= 0 {
		errs = append(errs, fmt.Errorf("dpi must be positive, got %d", c.DPI))
	}
	if c.ThreadLimit <= 0 {
		errs = append(errs, fmt.Errorf("thread_limit must be positive, got %d", c.ThreadLimit))
	}
	if strings.TrimSpace(c.Lang) == "" {
		errs = append(errs, errors.New("lang is required"))
	}
	switch c.Engine {
	case EngineTesseract, EngineGosseract:
	case EngineDocumentAI:
		if err := c.DocumentAI.Validate(); err != nil {
			errs = append(errs, err)
		}
	default:
		errs = append(errs, fmt.Errorf("unknown engine %q", c.Engine))
	}
	if _, err := pipeline.ParseTransforms(c.Transforms); err != nil {
		errs = append(errs, err)
	}
	if _, err := document.ParseTagTransforms(c.TagTransforms); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

func (c *Config) console() io.Writer {
	if c.Console == nil {
		return os.Stdout
	}
	return c.Console
}
