// Package extractor turns an uploaded document into one normalized text.
package extractor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/normalize"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/parser"
)

// ErrNoText is wrapped by ExtractionError when every page is empty after
// normalization.
var ErrNoText = errors.New("no extractable text")

// ExtractionError reports a document that cannot yield text: unreadable,
// unsupported, without pages, or blank. It is a bad-input condition and is
// never retried.
type ExtractionError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("extract %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("extract %s: %s: %v", e.Path, e.Reason, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Extractor reads documents page by page and normalizes them.
type Extractor struct {
	norm *normalize.Normalizer
	opts parser.Options
	log  *slog.Logger
}

func New(log *slog.Logger, opts parser.Options) *Extractor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Extractor{norm: normalize.New(log), opts: opts, log: log}
}

// Normalizer exposes the normalizer used for page text.
func (e *Extractor) Normalizer() *normalize.Normalizer { return e.norm }

// ExtractFile extracts the normalized text of the document at path.
func (e *Extractor) ExtractFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", &ExtractionError{Path: path, Reason: "cannot open file", Err: err}
	}
	defer f.Close()
	return e.extract(f, path)
}

// Extract reads a document from r; filename selects the format.
func (e *Extractor) Extract(r io.Reader, filename string) (string, error) {
	return e.extract(r, filename)
}

func (e *Extractor) extract(r io.Reader, path string) (string, error) {
	p, err := parser.ForFile(filepath.Base(path), e.opts)
	if err != nil {
		return "", &ExtractionError{Path: path, Reason: "unsupported document type", Err: err}
	}
	pages, err := p.Pages(r, filepath.Base(path))
	if err != nil {
		return "", &ExtractionError{Path: path, Reason: "unreadable document", Err: err}
	}
	return e.FromPages(path, pages)
}

// FromPages skips blank pages, normalizes each remaining page, joins them with
// a single space and normalizes the result once more so boilerplate spanning
// a page boundary is also removed.
func (e *Extractor) FromPages(path string, pages []string) (string, error) {
	if len(pages) == 0 {
		return "", &ExtractionError{Path: path, Reason: "document has no pages"}
	}

	cleaned := make([]string, 0, len(pages))
	for i, page := range pages {
		if strings.TrimSpace(page) == "" {
			e.log.Debug("skipping blank page", "path", path, "page", i+1)
			continue
		}
		if text := e.norm.Normalize(page); text != "" {
			cleaned = append(cleaned, text)
		}
	}
	if len(cleaned) == 0 {
		return "", &ExtractionError{Path: path, Reason: "every page is empty", Err: ErrNoText}
	}

	text := e.norm.Normalize(strings.Join(cleaned, " "))
	if text == "" {
		return "", &ExtractionError{Path: path, Reason: "document is empty after cleanup", Err: ErrNoText}
	}
	e.log.Debug("document extracted", "path", path, "pages", len(pages), "kept", len(cleaned), "chars", len(text))
	return text, nil
}
