package extractor

import (
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/parser"
)

func newTestExtractor() *Extractor {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), parser.Options{})
}

func TestFromPages_JoinsAndNormalizes(t *testing.T) {
	e := newTestExtractor()
	got, err := e.FromPages("cv.pdf", []string{
		"Jane  Doe\nSenior Engi-\nneer",
		"   \n\t",
		"Acme Corp, Zürich",
	})
	if err != nil {
		t.Fatalf("FromPages: %v", err)
	}
	want := "Jane Doe Senior Engineer Acme Corp, Zurich"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFromPages_CrossPageBoilerplate(t *testing.T) {
	e := newTestExtractor()
	got, err := e.FromPages("cv.pdf", []string{
		"Senior Engineer at Acme Corp Page",
		"7 Skills Go and Rust",
	})
	if err != nil {
		t.Fatalf("FromPages: %v", err)
	}
	want := "Senior Engineer at Acme Corp Skills Go and Rust"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestFromPages_BlankDocument(t *testing.T) {
	e := newTestExtractor()
	tests := []struct {
		name  string
		pages []string
	}{
		{"no pages", nil},
		{"whitespace pages", []string{"", "  \n ", "\t"}},
		{"only boilerplate", []string{"Page 1", "CONFIDENTIAL"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.FromPages("blank.pdf", tt.pages)
			var ee *ExtractionError
			if !errors.As(err, &ee) {
				t.Fatalf("expected ExtractionError, got %v", err)
			}
			if ee.Path != "blank.pdf" {
				t.Errorf("expected path blank.pdf, got %q", ee.Path)
			}
		})
	}

	_, err := e.FromPages("blank.pdf", []string{" "})
	if !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText, got %v", err)
	}
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "resume.txt")
	content := "Jane Doe\nSoftware Engineer at Acme Corp\f\fSkills: Go, Python, Kubernetes\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	e := newTestExtractor()
	got, err := e.ExtractFile(path)
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	want := "Jane Doe Software Engineer at Acme Corp Skills Go, Python, Kubernetes"
	if got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestExtractFile_PDF(t *testing.T) {
	e := newTestExtractor()
	got, err := e.ExtractFile(filepath.Join("testdata", "resume.pdf"))
	if err != nil {
		t.Fatalf("ExtractFile: %v", err)
	}
	for _, word := range []string{"Jane", "Doe", "Engineer", "Acme", "Corp", "Kubernetes", "B.Sc.", "Science"} {
		if !strings.Contains(got, word) {
			t.Errorf("expected %q in extracted text, got %q", word, got)
		}
	}
	if strings.Contains(got, "  ") || got != strings.TrimSpace(got) {
		t.Errorf("expected blank page to leave no whitespace runs, got %q", got)
	}
	if strings.Index(got, "Jane") > strings.Index(got, "Kubernetes") {
		t.Errorf("expected page order kept, got %q", got)
	}
}

func TestExtractFile_BlankPDF(t *testing.T) {
	e := newTestExtractor()
	path := filepath.Join("testdata", "blank.pdf")
	_, err := e.ExtractFile(path)
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Fatalf("expected ExtractionError, got %v", err)
	}
	if ee.Path != path {
		t.Errorf("expected path %s, got %q", path, ee.Path)
	}
	if !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText, got %v", err)
	}
}

func TestExtractFile_Errors(t *testing.T) {
	dir := t.TempDir()
	e := newTestExtractor()

	var ee *ExtractionError
	if _, err := e.ExtractFile(filepath.Join(dir, "missing.pdf")); !errors.As(err, &ee) {
		t.Errorf("expected ExtractionError for missing file, got %v", err)
	}

	blank := filepath.Join(dir, "blank.txt")
	if err := os.WriteFile(blank, []byte("  \f \n\f"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ExtractFile(blank); !errors.Is(err, ErrNoText) {
		t.Errorf("expected ErrNoText for blank document, got %v", err)
	}

	bad := filepath.Join(dir, "broken.pdf")
	if err := os.WriteFile(bad, []byte("%PDF-garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := e.ExtractFile(bad); !errors.As(err, &ee) {
		t.Errorf("expected ExtractionError for corrupt pdf, got %v", err)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	e := newTestExtractor()
	_, err := e.Extract(strings.NewReader("data"), "photo.png")
	if !errors.Is(err, parser.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}
	var ee *ExtractionError
	if !errors.As(err, &ee) {
		t.Errorf("expected ExtractionError, got %T", err)
	}
}
