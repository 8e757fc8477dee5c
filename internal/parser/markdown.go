package parser

import (
	"bytes"
	"io"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownParser handles Markdown resumes using goldmark. Each heading
// starts a new page; the heading text is the first line of its page.
type MarkdownParser struct{}

func (p *MarkdownParser) Pages(r io.Reader, filename string) ([]string, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	var s sections
	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if h, ok := n.(*ast.Heading); ok {
			s.heading(extractText(h, src))
			continue
		}
		s.line(extractText(n, src))
	}
	return s.result(), nil
}

// extractText gets the text content of a goldmark AST node. Block children
// (list items, quoted paragraphs) are separated by line breaks.
func extractText(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		lines := n.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			buf.Write(line.Value(src))
		}
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch v := c.(type) {
		case *ast.Text:
			buf.Write(v.Value(src))
			if v.HardLineBreak() || v.SoftLineBreak() {
				buf.WriteByte('\n')
			}
		case *ast.String:
			buf.Write(v.Value)
		default:
			buf.WriteString(extractText(c, src))
			if c.Type() == ast.TypeBlock {
				buf.WriteByte('\n')
			}
		}
	}
	return strings.TrimSpace(buf.String())
}
