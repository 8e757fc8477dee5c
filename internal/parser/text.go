package parser

import (
	"io"
	"strings"
)

// TextParser handles plain text files. Form feeds separate pages, as in
// pdftotext output.
type TextParser struct{}

func (p *TextParser) Pages(r io.Reader, filename string) ([]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return splitPages(string(data)), nil
}

func splitPages(text string) []string {
	return strings.Split(text, "\f")
}
