// Package parser extracts raw page text from uploaded resume documents.
// Parsers only recover text; cleaning is left to the normalizer.
package parser

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned by ForFile for extensions no parser handles.
var ErrUnsupported = errors.New("unsupported file extension")

// Parser returns the raw text of each page of a document, in document order.
// Pages may be empty or whitespace only.
type Parser interface {
	Pages(r io.Reader, filename string) ([]string, error)
}

// Options tunes parser behavior.
type Options struct {
	// FallbackPdftotext retries PDFs with the pdftotext binary when the
	// Go reader fails or finds no text.
	FallbackPdftotext bool
}

// SupportedExtensions lists file extensions this service can handle.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".docx":     true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".txt":      true,
}

// ForFile returns the appropriate parser for a filename.
func ForFile(filename string, opts Options) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFParser{FallbackPdftotext: opts.FallbackPdftotext}, nil
	case ".docx":
		return &DOCXParser{}, nil
	case ".md", ".markdown":
		return &MarkdownParser{}, nil
	case ".html", ".htm":
		return &HTMLParser{}, nil
	case ".txt":
		return &TextParser{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// sections groups lines into pages, starting a new page at each heading.
// Formats without physical pages use it so a long document still arrives
// as several page-sized pieces.
type sections struct {
	pages []string
	cur   strings.Builder
}

func (s *sections) heading(text string) {
	s.flush()
	s.line(text)
}

func (s *sections) line(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	if s.cur.Len() > 0 {
		s.cur.WriteString("\n")
	}
	s.cur.WriteString(text)
}

func (s *sections) flush() {
	if s.cur.Len() > 0 {
		s.pages = append(s.pages, s.cur.String())
		s.cur.Reset()
	}
}

func (s *sections) result() []string {
	s.flush()
	return s.pages
}
