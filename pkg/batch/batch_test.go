package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gardar/scanxml/pkg/ocr"
	"github.com/gardar/scanxml/pkg/source"
	"github.com/gardar/scanxml/pkg/toc"
)

// fakeEntry serves pages whose width encodes their text key.
type fakeEntry struct {
	name    string
	path    string
	keys    []int
	loadErr error
	toc     string
	tocErr  error
}

func (e *fakeEntry) Name() string { return e.name }
func (e *fakeEntry) Path() string {
	if e.path != "" {
		return e.path
	}
	return "/scans/" + e.name
}

func (e *fakeEntry) Load(ctx context.Context) ([]source.Page, error) {
	if e.loadErr != nil {
		return nil, e.loadErr
	}
	pages := make([]source.Page, len(e.keys))
	for i, k := range e.keys {
		pages[i] = source.Page{Number: i + 1, Image: image.NewGray(image.Rect(0, 0, k, 1))}
	}
	return pages, nil
}

func (e *fakeEntry) TableOfContents() (string, error) {
	if e.toc == "" && e.tocErr == nil {
		return toc.NotAvailable, nil
	}
	return e.toc, e.tocErr
}

type fakeSource struct {
	entries []source.Entry
}

func (s *fakeSource) Documents(root string) ([]source.Entry, error) {
	return s.entries, nil
}

// countingEngine returns texts[width] and counts its calls. onCall, when
// set, runs before each recognition.
type countingEngine struct {
	texts  map[int]string
	calls  atomic.Int32
	onCall func(width int)

	mu   sync.Mutex
	opts []ocr.Options
}

func (e *countingEngine) Name() string { return "counting" }

func (e *countingEngine) Recognize(ctx context.Context, img image.Image, opts ocr.Options) (ocr.PageResult, error) {
	e.calls.Add(1)
	w := img.Bounds().Dx()
	if e.onCall != nil {
		e.onCall(w)
	}
	if err := ctx.Err(); err != nil {
		return ocr.PageResult{}, err
	}
	e.mu.Lock()
	e.opts = append(e.opts, opts)
	e.mu.Unlock()
	text, ok := e.texts[w]
	if !ok {
		return ocr.PageResult{}, fmt.Errorf("no text for page key %d", w)
	}
	return ocr.PageResult{Text: text, Confidence: 90}, nil
}

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.InputPath = t.TempDir()
	cfg.OutputDir = filepath.Join(t.TempDir(), "out")
	cfg.Mode = "img"
	cfg.Workers = 3
	cfg.Console = &bytes.Buffer{}
	return cfg
}

func readOutput(t *testing.T, cfg Config, title string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(cfg.OutputDir, title+".xml"))
	if err != nil {
		t.Fatalf("read output of %s: %v", title, err)
	}
	return string(data)
}

func newEngine() *countingEngine {
	return &countingEngine{texts: map[int]string{
		1: "inter-\nnational",
		2: "suite",
		3: "Revue africaine",
	}}
}

func TestRunWritesDocuments(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{entries: []source.Entry{
		&fakeEntry{name: "Volume_1_1856", keys: []int{1, 2}, toc: "1      Avant-propos\n2      Notes"},
		&fakeEntry{name: "Revue", keys: []int{3}},
	}}
	engine := newEngine()

	res, err := New(cfg, src, engine, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c, s, f := res.Count(); c != 2 || s != 0 || f != 0 || res.Interrupted {
		t.Fatalf("unexpected result %+v", res)
	}

	out := readOutput(t, cfg, "Volume_1_1856")
	for _, want := range []string{
		"<id>0</id>",
		"<title>Volume_1_1856</title>",
		"<body>[p.1]\ninternational\n \n[p.2]\nsuite</body>",
		"<toc>1      Avant-propos\n2      Notes</toc>",
		"<vol>1</vol>",
		"<year>1856</year>",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}

	out = readOutput(t, cfg, "Revue")
	if !strings.Contains(out, "<id>1</id>") || !strings.Contains(out, "<toc>N/A</toc>") || strings.Contains(out, "<vol>") {
		t.Fatalf("unexpected output:\n%s", out)
	}

	for _, o := range engine.opts {
		if o.Language != "fra" || o.ThreadLimit != 1 || o.DPI != 300 {
			t.Fatalf("unexpected engine options %+v", o)
		}
	}
	if !strings.Contains(cfg.Console.(*bytes.Buffer).String(), "[2/2] Revue") {
		t.Fatalf("console summary missing: %q", cfg.Console.(*bytes.Buffer).String())
	}
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{entries: []source.Entry{
		&fakeEntry{name: "a", keys: []int{1}},
		&fakeEntry{name: "b", keys: []int{2, 3}},
	}}

	if _, err := New(cfg, src, newEngine(), nil).Run(context.Background()); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	first := readOutput(t, cfg, "b")

	engine := newEngine()
	res, err := New(cfg, src, engine, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if n := engine.calls.Load(); n != 0 {
		t.Fatalf("second run made %d OCR calls, want 0", n)
	}
	if len(res.Skipped) != 2 || len(res.Completed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	if readOutput(t, cfg, "b") != first {
		t.Fatal("output rewritten by the second run")
	}
}

func TestRunIsolatesFailures(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{entries: []source.Entry{
		&fakeEntry{name: "a", keys: []int{1}},
		&fakeEntry{name: "broken", loadErr: errors.New("corrupt scan")},
		&fakeEntry{name: "unknown-page", keys: []int{2, 42}},
		&fakeEntry{name: "c", keys: []int{3}},
	}}

	res, err := New(cfg, src, newEngine(), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Completed) != 2 || len(res.Failed) != 2 {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Failed[0].ID != 1 || res.Failed[1].ID != 2 {
		t.Fatalf("unexpected failures %+v", res.Failed)
	}
	if res.Err() == nil || !strings.Contains(res.Err().Error(), "corrupt scan") {
		t.Fatalf("Err() = %v", res.Err())
	}
	for _, name := range []string{"broken", "unknown-page"} {
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, name+".xml")); !os.IsNotExist(err) {
			t.Fatalf("failed document %s has an output file", name)
		}
	}
	readOutput(t, cfg, "c")
}

func TestRunDuplicateTitles(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{entries: []source.Entry{
		&fakeEntry{name: "Volume_1_1856", path: "/scans/alger/Volume_1_1856.pdf", keys: []int{1}},
		&fakeEntry{name: "Volume_1_1856", path: "/scans/oran/Volume_1_1856.pdf", keys: []int{2}},
		&fakeEntry{name: "Revue", keys: []int{3}},
	}}
	engine := newEngine()

	res, err := New(cfg, src, engine, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if c, s, f := res.Count(); c != 2 || s != 0 || f != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	failure := res.Failed[0]
	if failure.ID != 1 || !errors.Is(failure.Err, ErrDuplicateTitle) {
		t.Fatalf("unexpected failure %+v", failure)
	}
	if !strings.Contains(failure.Err.Error(), "/scans/alger/Volume_1_1856.pdf") ||
		!strings.Contains(failure.Err.Error(), "/scans/oran/Volume_1_1856.pdf") {
		t.Fatalf("error does not name both paths: %v", failure.Err)
	}
	if n := engine.calls.Load(); n != 2 {
		t.Fatalf("engine calls = %d, want 2", n)
	}
	if out := readOutput(t, cfg, "Volume_1_1856"); !strings.Contains(out, "international") {
		t.Fatalf("first document not kept:\n%s", out)
	}
}

func TestRunWarnsGosseractThreadLimit(t *testing.T) {
	t.Setenv("OMP_THREAD_LIMIT", "")
	cfg := testConfig(t)
	cfg.Engine = EngineGosseract
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	if _, err := New(cfg, &fakeSource{}, newEngine(), logger).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(logs.String(), "level=WARN") || !strings.Contains(logs.String(), "thread_limit=1") {
		t.Fatalf("missing thread limit warning: %q", logs.String())
	}

	t.Setenv("OMP_THREAD_LIMIT", "1")
	logs.Reset()
	if _, err := New(cfg, &fakeSource{}, newEngine(), logger).Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.Contains(logs.String(), "level=WARN") {
		t.Fatalf("unexpected warning: %q", logs.String())
	}
}

func TestRunEmptyDocument(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{entries: []source.Entry{&fakeEntry{name: "blank"}}}
	engine := newEngine()

	res, err := New(cfg, src, engine, nil).Run(context.Background())
	if err != nil || len(res.Completed) != 1 {
		t.Fatalf("Run = %+v, %v", res, err)
	}
	if engine.calls.Load() != 0 {
		t.Fatal("engine called for a document without pages")
	}
	if out := readOutput(t, cfg, "blank"); !strings.Contains(out, "<body></body>") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunTableOfContentsError(t *testing.T) {
	cfg := testConfig(t)
	src := &fakeSource{entries: []source.Entry{
		&fakeEntry{name: "a", keys: []int{1}, toc: toc.NotAvailable, tocErr: errors.New("bad xref")},
	}}
	res, err := New(cfg, src, newEngine(), nil).Run(context.Background())
	if err != nil || len(res.Completed) != 1 {
		t.Fatalf("Run = %+v, %v", res, err)
	}
	if out := readOutput(t, cfg, "a"); !strings.Contains(out, "<toc>N/A</toc>") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestRunInterrupted(t *testing.T) {
	cfg := testConfig(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine := newEngine()
	engine.onCall = func(width int) {
		if width == 2 {
			cancel()
		}
	}
	src := &fakeSource{entries: []source.Entry{
		&fakeEntry{name: "first", keys: []int{1}},
		&fakeEntry{name: "second", keys: []int{2}},
		&fakeEntry{name: "third", keys: []int{3}},
	}}

	res, err := New(cfg, src, engine, nil).Run(ctx)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Interrupted {
		t.Fatal("result not marked interrupted")
	}
	if len(res.Completed) != 1 || res.Completed[0] != "first" || len(res.Failed) != 0 {
		t.Fatalf("unexpected result %+v", res)
	}
	for _, name := range []string{"second", "third"} {
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, name+".xml")); !os.IsNotExist(err) {
			t.Fatalf("%s has an output file after interruption", name)
		}
	}

	// A new run resumes with the abandoned document.
	res, err = New(cfg, src, newEngine(), nil).Run(context.Background())
	if err != nil {
		t.Fatalf("resumed Run: %v", err)
	}
	if len(res.Skipped) != 1 || len(res.Completed) != 2 {
		t.Fatalf("unexpected resumed result %+v", res)
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Mode = ""
	engine := newEngine()
	_, err := New(cfg, &fakeSource{}, engine, nil).Run(context.Background())
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Run error = %v, want ErrInvalidConfig", err)
	}

	for _, mutate := range []func(*Config){
		func(c *Config) { c.Transforms = "page-markers,shout" },
		func(c *Config) { c.TagTransforms = "volume-info,reverse" },
	} {
		cfg := testConfig(t)
		mutate(&cfg)
		_, err := New(cfg, &fakeSource{}, engine, nil).Run(context.Background())
		if !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("Run error = %v, want ErrInvalidConfig", err)
		}
	}
	if n := engine.calls.Load(); n != 0 {
		t.Fatalf("engine called %d times for an invalid config", n)
	}
}
