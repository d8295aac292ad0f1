// Package batch drives the conversion of every document of an input
// directory into its XML record.
//
// Documents are processed one after the other in listing order; the pages
// of a document are recognized in parallel. A document whose output file
// already exists is skipped, so an interrupted run resumes where it stopped
// when started again. A failing document is logged and the run continues.
package batch

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gardar/scanxml/pkg/document"
	"github.com/gardar/scanxml/pkg/ocr"
	"github.com/gardar/scanxml/pkg/pipeline"
	"github.com/gardar/scanxml/pkg/source"
	"github.com/gardar/scanxml/pkg/textnorm"
	"github.com/gardar/scanxml/pkg/toc"
)

// ErrDuplicateTitle marks a document whose title was already used by
// another document of the same run. Both would write the same output file.
var ErrDuplicateTitle = errors.New("duplicate document title")

// Failure is a document that could not be converted.
type Failure struct {
	ID   int
	Name string
	Err  error
}

// Result summarizes a run.
type Result struct {
	Total       int       // Documents listed
	Completed   []string  // Titles written during this run
	Skipped     []string  // Titles whose output already existed
	Failed      []Failure // Documents abandoned after an error
	Interrupted bool      // The context was canceled before the end of the listing
}

// Driver converts the documents of a source with one engine.
type Driver struct {
	cfg    Config
	src    source.ImageSource
	engine ocr.Engine
	logger *slog.Logger
}

// New returns a driver. A nil logger discards log records.
func New(cfg Config, src source.ImageSource, engine ocr.Engine, logger *slog.Logger) *Driver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Driver{cfg: cfg, src: src, engine: engine, logger: logger}
}

// run holds what Run resolves once before the document loop.
type run struct {
	*Driver
	writer        *document.Writer
	normalizer    *textnorm.Normalizer
	transforms    []pipeline.Transform
	tagTransforms []document.TagTransform
	total         int
}

// Run converts every document. It returns an error only when the run cannot
// start: invalid configuration, unusable output directory or input listing
// failure. Cancelling ctx stops the run between or during documents; the
// in-flight document is abandoned without output and Run returns a result
// with Interrupted set and a nil error.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	if err := d.cfg.Validate(); err != nil {
		return Result{}, err
	}
	if d.src == nil || d.engine == nil {
		return Result{}, fmt.Errorf("%w: source and engine are required", ErrInvalidConfig)
	}
	transforms, err := pipeline.ParseTransforms(d.cfg.Transforms)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	tagTransforms, err := document.ParseTagTransforms(d.cfg.TagTransforms)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	writer, err := document.NewWriter(d.cfg.OutputDir)
	if err != nil {
		return Result{}, err
	}
	entries, err := d.src.Documents(d.cfg.InputPath)
	if err != nil {
		return Result{}, fmt.Errorf("list documents: %w", err)
	}

	r := &run{
		Driver:        d,
		writer:        writer,
		normalizer:    textnorm.New(textnorm.Options{ExpandLigatures: d.cfg.ExpandLigatures}),
		transforms:    transforms,
		tagTransforms: tagTransforms,
		total:         len(entries),
	}
	res := Result{Total: len(entries)}
	d.logger.Info("batch started",
		"input", d.cfg.InputPath,
		"mode", d.cfg.Mode,
		"engine", d.engine.Name(),
		"documents", len(entries),
		"workers", d.cfg.Workers,
	)
	if d.cfg.Engine == EngineGosseract {
		// libtesseract reads OMP_THREAD_LIMIT once, when the process starts.
		if env := os.Getenv("OMP_THREAD_LIMIT"); env != strconv.Itoa(d.cfg.ThreadLimit) {
			d.logger.Warn("thread_limit is not applied by the gosseract engine, set OMP_THREAD_LIMIT before starting",
				"thread_limit", d.cfg.ThreadLimit,
				"OMP_THREAD_LIMIT", env,
			)
		}
	}
	start := time.Now()

	// Output paths only depend on the title; the first document of a title
	// owns it for the whole run.
	owners := map[string]string{}
	for id, entry := range entries {
		if ctx.Err() != nil {
			res.Interrupted = true
			break
		}
		title := r.normalizer.Normalize(entry.Name())
		log := d.logger.With("id", id, "title", title)

		if owner, dup := owners[title]; dup {
			err := fmt.Errorf("%w: %s and %s", ErrDuplicateTitle, owner, entry.Path())
			log.Error("document failed", "path", entry.Path(), "error", err)
			res.Failed = append(res.Failed, Failure{ID: id, Name: title, Err: err})
			continue
		}
		owners[title] = entry.Path()

		exists, err := writer.Exists(title)
		if err != nil {
			log.Error("check output", "error", err)
			res.Failed = append(res.Failed, Failure{ID: id, Name: title, Err: err})
			continue
		}
		if exists {
			log.Debug("output exists, skipping", "path", writer.Path(title))
			res.Skipped = append(res.Skipped, title)
			continue
		}

		if err := r.convert(ctx, log, id, title, entry); err != nil {
			if ctx.Err() != nil {
				log.Warn("interrupted, document abandoned")
				res.Interrupted = true
				break
			}
			log.Error("document failed", "path", entry.Path(), "error", err)
			res.Failed = append(res.Failed, Failure{ID: id, Name: title, Err: err})
			continue
		}
		res.Completed = append(res.Completed, title)
	}

	d.logger.Info("batch finished",
		"completed", len(res.Completed),
		"skipped", len(res.Skipped),
		"failed", len(res.Failed),
		"interrupted", res.Interrupted,
		"duration", time.Since(start),
	)
	return res, nil
}

// convert runs one document through load, recognition, post-processing,
// assembly and write.
func (r *run) convert(ctx context.Context, log *slog.Logger, id int, title string, entry source.Entry) error {
	start := time.Now()
	fmt.Fprintf(r.cfg.console(), "[%d/%d] %s\n", id+1, r.total, title)

	log.Debug("loading pages", "path", entry.Path())
	pages, err := entry.Load(ctx)
	if err != nil {
		return fmt.Errorf("load: %w", err)
	}
	images := make([]image.Image, len(pages))
	for i, p := range pages {
		images[i] = p.Image
	}

	log.Debug("recognizing", "pages", len(images))
	opts := ocr.Options{Language: r.cfg.Lang, ThreadLimit: r.cfg.ThreadLimit, DPI: r.cfg.DPI}
	results, err := ocr.RecognizeDocument(ctx, r.engine, images, opts, r.cfg.Workers)
	if err != nil {
		return fmt.Errorf("ocr: %w", err)
	}
	for _, res := range results {
		if res.Confidence >= 0 && res.Confidence < ocr.LowConfidence {
			log.Warn("low confidence page", "page", res.Index+1, "confidence", res.Confidence)
		}
	}

	body := pipeline.Join(pipeline.Apply(ocr.Texts(results), r.transforms...))

	contents, err := entry.TableOfContents()
	if err != nil {
		log.Warn("table of contents unavailable", "error", err)
		contents = toc.NotAvailable
	}

	tags := document.Assemble(id, title, r.normalizer.Normalize(body), r.normalizeLines(contents))
	tags = document.ApplyTransforms(tags, r.tagTransforms...)

	// Last chance to stop before the output becomes visible.
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := r.writer.Write(title, tags)
	if err != nil {
		return fmt.Errorf("write: %w", err)
	}

	elapsed := time.Since(start)
	log.Info("document written", "path", path, "pages", len(results), "duration", elapsed)
	fmt.Fprintf(r.cfg.console(), "[%d/%d] %s done in %s\n", id+1, r.total, title, elapsed.Round(time.Millisecond))
	return nil
}

// normalizeLines normalizes each table of contents line on its own so
// entries are never joined.
func (r *run) normalizeLines(contents string) string {
	lines := strings.Split(contents, "\n")
	for i, l := range lines {
		lines[i] = r.normalizer.Normalize(l)
	}
	return strings.Join(lines, "\n")
}

// Count returns the number of documents in each state.
func (r Result) Count() (completed, skipped, failed int) {
	return len(r.Completed), len(r.Skipped), len(r.Failed)
}

// Err joins the errors of failed documents, nil when none failed.
func (r Result) Err() error {
	errs := make([]error, len(r.Failed))
	for i, f := range r.Failed {
		errs[i] = fmt.Errorf("document %d (%s): %w", f.ID, f.Name, f.Err)
	}
	return errors.Join(errs...)
}
