package parser

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
)

// ErrNoPages is returned for a PDF without any page.
var ErrNoPages = errors.New("pdf has no pages")

// PDFParser handles PDF files. It tries the Go library first,
// then falls back to pdftotext if enabled and available.
type PDFParser struct {
	FallbackPdftotext bool
}

func (p *PDFParser) Pages(r io.Reader, filename string) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty pdf content")
	}

	pages, err := readPDFPages(data)
	if p.FallbackPdftotext && (err != nil || allBlank(pages)) {
		if alt, altErr := pdftotextPages(data); altErr == nil && !allBlank(alt) {
			return alt, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("extract pdf text: %w", err)
	}
	if len(pages) == 0 {
		return nil, ErrNoPages
	}
	return pages, nil
}

// readPDFPages returns one entry per page. A page whose content cannot be
// decoded yields an empty string rather than failing the document.
func readPDFPages(data []byte) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	n := reader.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, pageText(reader.Page(i)))
	}
	return pages, nil
}

func pageText(page pdflib.Page) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	if page.V.IsNull() {
		return ""
	}
	t, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return t
}

// pdftotextPages runs pdftotext on a temp copy; it cannot read stdin reliably.
func pdftotextPages(data []byte) ([]string, error) {
	tmp, err := os.CreateTemp("", "resumener-pdf-*.pdf")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	tmp.Close()

	out, err := exec.Command("pdftotext", "-layout", tmpPath, "-").Output()
	if err != nil {
		return nil, fmt.Errorf("pdftotext: %w", err)
	}
	return splitPages(string(out)), nil
}

func allBlank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}
