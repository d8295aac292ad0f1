// Package toc renders the outline (bookmarks) of a PDF as a plain text table
// of contents.
//
// The outline tree gives (entry, title, destination page reference) triples;
// the page tree gives each page object's zero-based position. Joining the
// two yields "page  title" lines sorted by page number:
//
//	3      Avant-propos
//	17     Notice sur les fouilles de Tipasa
//	???    Entrée dont la destination est introuvable
//
// A document without outline renders as NotAvailable.
package toc

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// NotAvailable is the table of contents of a document without outline.
const NotAvailable = "N/A"

// Unresolved replaces the page number of an entry whose destination is not
// a page of the page tree.
const Unresolved = "???"

func init() {
	// Keep pdfcpu from writing its configuration under the user's home.
	api.DisableConfigDir()
}

// Entry is one outline item joined with its page.
type Entry struct {
	Title string
	Page  int // 1-based, 0 when unresolved
}

// ExtractFile reads the PDF at path and renders its outline. Read errors are
// returned together with NotAvailable so callers can log and carry on.
func ExtractFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return NotAvailable, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return NotAvailable, fmt.Errorf("pdfcpu read %s: %w", path, err)
	}
	entries, err := Entries(ctx)
	if err != nil {
		return NotAvailable, err
	}
	return Render(entries), nil
}

// Render formats entries sorted by page, unresolved ones last.
func Render(entries []Entry) string {
	if len(entries) == 0 {
		return NotAvailable
	}
	sorted := append([]Entry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if (a.Page == 0) != (b.Page == 0) {
			return b.Page == 0
		}
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.Title < b.Title
	})
	lines := make([]string, len(sorted))
	for i, e := range sorted {
		page := Unresolved
		if e.Page > 0 {
			page = strconv.Itoa(e.Page)
		}
		lines[i] = fmt.Sprintf("%-5s  %s", page, e.Title)
	}
	return strings.Join(lines, "\n")
}

// Entries joins the outline of ctx with its page tree.
func Entries(ctx *model.Context) ([]Entry, error) {
	root, err := ctx.Catalog()
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	w := &walker{ctx: ctx, root: root, seen: map[int]bool{}}

	outlines, err := ctx.DereferenceDict(root["Outlines"])
	if err != nil || outlines == nil {
		return nil, nil
	}
	items := w.outline(outlines["First"])
	if len(items) == 0 {
		return nil, nil
	}

	pages := map[int]int{}
	w.pageTree(root["Pages"], pages, map[int]bool{})

	entries := make([]Entry, len(items))
	for i, it := range items {
		entries[i] = Entry{Title: it.title}
		if idx, ok := pages[it.pageRef]; ok && it.pageRef > 0 {
			entries[i].Page = idx + 1
		}
	}
	return entries, nil
}

type outlineItem struct {
	title   string
	pageRef int // object number of the destination page, 0 when unknown
}

type walker struct {
	ctx  *model.Context
	root types.Dict
	seen map[int]bool
}

// outline walks a sibling chain (First/Next) depth first.
func (w *walker) outline(obj types.Object) []outlineItem {
	var items []outlineItem
	for obj != nil {
		if nr := objNr(obj); nr > 0 {
			if w.seen[nr] {
				break
			}
			w.seen[nr] = true
		}
		d, err := w.ctx.DereferenceDict(obj)
		if err != nil || d == nil {
			break
		}
		title, _ := w.ctx.DereferenceStringOrHexLiteral(d["Title"], model.V10, nil)
		// One entry per line: whitespace runs, line breaks included, become one space.
		title = strings.Join(strings.Fields(title), " ")
		ref := w.destination(d["Dest"])
		if ref == 0 {
			ref = w.action(d["A"])
		}
		items = append(items, outlineItem{title: title, pageRef: ref})
		items = append(items, w.outline(d["First"])...)
		obj = d["Next"]
	}
	return items
}

// maxDestDepth bounds the indirections (named destination, D entry,
// reference) followed for one destination. Deeper chains are cycles.
const maxDestDepth = 16

// destination resolves an explicit destination array, a named destination
// or a dictionary with a D entry to the object number of the target page.
func (w *walker) destination(obj types.Object) int {
	return w.resolve(obj, 0)
}

func (w *walker) resolve(obj types.Object, depth int) int {
	if obj == nil || depth > maxDestDepth {
		return 0
	}
	if nr := objNr(obj); nr > 0 {
		if o, err := w.ctx.Dereference(obj); err == nil {
			if _, isDict := o.(types.Dict); !isDict {
				obj = o
			}
		}
	}
	switch v := obj.(type) {
	case types.Array:
		if len(v) == 0 {
			return 0
		}
		return objNr(v[0])
	case types.Name:
		return w.resolve(w.named(string(v)), depth+1)
	case types.StringLiteral, types.HexLiteral:
		name, err := w.ctx.DereferenceStringOrHexLiteral(v, model.V10, nil)
		if err != nil {
			return 0
		}
		return w.resolve(w.named(name), depth+1)
	}
	d, err := w.ctx.DereferenceDict(obj)
	if err != nil || d == nil {
		return 0
	}
	if t := d.Type(); t != nil && *t == "Page" {
		return objNr(obj)
	}
	return w.resolve(d["D"], depth+1)
}

// named looks name up in the Dests name tree of the Names dictionary, then
// in the catalog's Dests dictionary.
func (w *walker) named(name string) types.Object {
	if err := w.ctx.LocateNameTree("Dests", false); err == nil {
		if node := w.ctx.Names["Dests"]; node != nil {
			if o, ok := node.Value(name); ok {
				return o
			}
			if o := w.nameTree(node.D, name, map[int]bool{}); o != nil {
				return o
			}
		}
	}
	dests, err := w.ctx.DereferenceDict(w.root["Dests"])
	if err != nil || dests == nil {
		return nil
	}
	return dests[name]
}

// nameTree searches the Names pairs and the Kids of a name tree node. The
// node cache of a context that was read but not validated only holds the
// root dictionary.
func (w *walker) nameTree(d types.Dict, name string, visited map[int]bool) types.Object {
	if d == nil {
		return nil
	}
	if names, err := w.ctx.DereferenceArray(d["Names"]); err == nil {
		for i := 0; i+1 < len(names); i += 2 {
			key, err := w.ctx.DereferenceStringOrHexLiteral(names[i], model.V10, nil)
			if err == nil && key == name {
				return names[i+1]
			}
		}
	}
	kids, err := w.ctx.DereferenceArray(d["Kids"])
	if err != nil {
		return nil
	}
	for _, kid := range kids {
		if nr := objNr(kid); nr > 0 {
			if visited[nr] {
				continue
			}
			visited[nr] = true
		}
		kd, err := w.ctx.DereferenceDict(kid)
		if err != nil {
			continue
		}
		if o := w.nameTree(kd, name, visited); o != nil {
			return o
		}
	}
	return nil
}

// action resolves a GoTo action dictionary.
func (w *walker) action(obj types.Object) int {
	d, err := w.ctx.DereferenceDict(obj)
	if err != nil || d == nil {
		return 0
	}
	if s := d.NameEntry("S"); s == nil || *s != "GoTo" {
		return 0
	}
	return w.destination(d["D"])
}

// pageTree assigns the next zero-based index to every page leaf under obj.
func (w *walker) pageTree(obj types.Object, pages map[int]int, visited map[int]bool) {
	nr := objNr(obj)
	if nr > 0 {
		if visited[nr] {
			return
		}
		visited[nr] = true
	}
	d, err := w.ctx.DereferenceDict(obj)
	if err != nil || d == nil {
		return
	}
	if t := d.Type(); t != nil && *t == "Pages" {
		kids, err := w.ctx.DereferenceArray(d["Kids"])
		if err != nil {
			return
		}
		for _, kid := range kids {
			w.pageTree(kid, pages, visited)
		}
		return
	}
	if nr > 0 {
		pages[nr] = len(pages)
	}
}

func objNr(obj types.Object) int {
	switch r := obj.(type) {
	case types.IndirectRef:
		return r.ObjectNumber.Value()
	case *types.IndirectRef:
		if r != nil {
			return r.ObjectNumber.Value()
		}
	}
	return 0
}
