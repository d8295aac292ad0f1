package toc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// buildPDF assembles objects numbered from 1 with a valid xref table.
func buildPDF(objects ...string) []byte {
	var b strings.Builder
	b.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, body := range objects {
		offsets[i+1] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n", len(objects)+1)
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&b, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return []byte(b.String())
}

func writePDF(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.pdf")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write pdf: %v", err)
	}
	return path
}

const page = "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] >>"

func TestExtractFileOutline(t *testing.T) {
	path := writePDF(t, buildPDF(
		"<< /Type /Catalog /Pages 2 0 R /Outlines 6 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R 5 0 R] /Count 3 >>",
		page,
		page,
		page,
		"<< /Type /Outlines /First 7 0 R /Last 9 0 R /Count 3 >>",
		"<< /Title (Conclusion) /Parent 6 0 R /Next 8 0 R /Dest [5 0 R /Fit] >>",
		"<< /Title (Avant-propos) /Parent 6 0 R /Prev 7 0 R /Next 9 0 R /A << /S /GoTo /D [3 0 R /XYZ 0 792 0] >> /First 10 0 R /Last 10 0 R /Count 1 >>",
		"<< /Title (Perdu) /Parent 6 0 R /Prev 8 0 R /Dest [6 0 R /Fit] >>",
		"<< /Title (Chapitre premier) /Parent 8 0 R /Dest [4 0 R /Fit] >>",
	))

	got, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	want := strings.Join([]string{
		"1      Avant-propos",
		"2      Chapitre premier",
		"3      Conclusion",
		"???    Perdu",
	}, "\n")
	if got != want {
		t.Fatalf("toc mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestExtractFileNestedPageTree(t *testing.T) {
	path := writePDF(t, buildPDF(
		"<< /Type /Catalog /Pages 2 0 R /Outlines 6 0 R >>",
		"<< /Type /Pages /Kids [3 0 R 5 0 R] /Count 3 >>",
		"<< /Type /Pages /Parent 2 0 R /Kids [4 0 R 7 0 R] /Count 2 >>",
		"<< /Type /Page /Parent 3 0 R /MediaBox [0 0 612 792] >>",
		page,
		"<< /Type /Outlines /First 8 0 R /Last 8 0 R /Count 1 >>",
		"<< /Type /Page /Parent 3 0 R /MediaBox [0 0 612 792] >>",
		"<< /Title (Index) /Parent 6 0 R /Dest [5 0 R /Fit] >>",
	))

	got, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if want := "3      Index"; got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestExtractFileWithoutOutline(t *testing.T) {
	path := writePDF(t, buildPDF(
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		page,
	))
	got, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	if got != NotAvailable {
		t.Fatalf("got %q, want %q", got, NotAvailable)
	}
}

func TestExtractFileMissing(t *testing.T) {
	got, err := ExtractFile(filepath.Join(t.TempDir(), "absent.pdf"))
	if err == nil {
		t.Fatal("expected an error for a missing file")
	}
	if got != NotAvailable {
		t.Fatalf("got %q, want %q", got, NotAvailable)
	}
}

func TestRender(t *testing.T) {
	tests := []struct {
		name    string
		entries []Entry
		want    string
	}{
		{"empty", nil, NotAvailable},
		{
			"sorted by page",
			[]Entry{{"Tables", 120}, {"Préface", 5}, {"Notes", 12}},
			"5      Préface\n12     Notes\n120    Tables",
		},
		{
			"unresolved last",
			[]Entry{{"Perdu", 0}, {"Début", 1}},
			"1      Début\n???    Perdu",
		},
		{
			"same page by title",
			[]Entry{{"b", 2}, {"a", 2}},
			"2      a\n2      b",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Render(tt.entries); got != tt.want {
				t.Fatalf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderDoesNotReorderInput(t *testing.T) {
	entries := []Entry{{"z", 9}, {"a", 1}}
	Render(entries)
	if entries[0].Title != "z" {
		t.Fatalf("input reordered: %+v", entries)
	}
}

func TestExtractFileNameTreeDestinations(t *testing.T) {
	path := writePDF(t, buildPDF(
		"<< /Type /Catalog /Pages 2 0 R /Outlines 5 0 R /Names << /Dests 7 0 R >> >>",
		"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 >>",
		page,
		page,
		"<< /Type /Outlines /First 6 0 R /Last 10 0 R /Count 2 >>",
		"<< /Title (Chapitre) /Parent 5 0 R /Next 10 0 R /Dest (chap1) >>",
		"<< /Kids [8 0 R 9 0 R] >>",
		"<< /Limits [(chap1) (chap1)] /Names [(chap1) [4 0 R /Fit]] >>",
		"<< /Limits [(intro) (intro)] /Names [(intro) << /D [3 0 R /XYZ 0 792 0] >>] >>",
		"<< /Title (Introduction) /Parent 5 0 R /Prev 6 0 R /A << /S /GoTo /D (intro) >> >>",
	))

	got, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	want := "1      Introduction\n2      Chapitre"
	if got != want {
		t.Fatalf("toc mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestExtractFileCyclicDestinations(t *testing.T) {
	path := writePDF(t, buildPDF(
		"<< /Type /Catalog /Pages 2 0 R /Outlines 4 0 R /Dests << /a /a /b /c /c /b >> >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		page,
		"<< /Type /Outlines /First 5 0 R /Last 8 0 R /Count 4 >>",
		"<< /Title (Boucle) /Parent 4 0 R /Next 6 0 R /Dest /a >>",
		"<< /Title (Ping-pong) /Parent 4 0 R /Prev 5 0 R /Next 7 0 R /Dest /b >>",
		"<< /Title (Auto) /Parent 4 0 R /Prev 6 0 R /Next 8 0 R /Dest 9 0 R >>",
		"<< /Title (Titre) /Parent 4 0 R /Prev 7 0 R /Dest [3 0 R /Fit] >>",
		"<< /D 9 0 R >>",
	))

	got, err := ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	want := strings.Join([]string{
		"1      Titre",
		"???    Auto",
		"???    Boucle",
		"???    Ping-pong",
	}, "\n")
	if got != want {
		t.Fatalf("toc mismatch\ngot:\n%s\nwant:\n%s", got, want)
	}
}
