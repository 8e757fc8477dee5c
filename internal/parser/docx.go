package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXParser handles .docx files. Each heading starts a new page.
type DOCXParser struct{}

func (p *DOCXParser) Pages(r io.Reader, filename string) ([]string, error) {
	// go-docx needs a ReaderAt and the size.
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	var s sections
	for _, item := range doc.Document.Body.Items {
		switch it := item.(type) {
		case *docx.Paragraph:
			text := docxParagraphText(it)
			if docxIsHeading(it) {
				s.heading(text)
			} else {
				s.line(text)
			}
		case *docx.Table:
			for _, row := range it.TableRows {
				var cells []string
				for _, cell := range row.TableCells {
					for _, para := range cell.Paragraphs {
						if t := docxParagraphText(para); t != "" {
							cells = append(cells, t)
						}
					}
				}
				s.line(strings.Join(cells, " "))
			}
		}
	}
	return s.result(), nil
}

func docxIsHeading(para *docx.Paragraph) bool {
	if para.Properties == nil || para.Properties.Style == nil {
		return false
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	return strings.HasPrefix(style, "heading") || style == "title"
}

func docxParagraphText(para *docx.Paragraph) string {
	var buf strings.Builder
	for _, child := range para.Children {
		run, ok := child.(*docx.Run)
		if !ok {
			continue
		}
		for _, rc := range run.Children {
			switch c := rc.(type) {
			case *docx.Text:
				buf.WriteString(c.Text)
			case *docx.Tab:
				buf.WriteString("\t")
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
