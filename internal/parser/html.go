package parser

import (
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// HTMLParser handles HTML resumes. Each heading starts a new page.
type HTMLParser struct{}

func (p *HTMLParser) Pages(r io.Reader, filename string) ([]string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var s sections
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "nav", "noscript", "template", "head":
				return
			case "h1", "h2", "h3", "h4", "h5", "h6":
				s.heading(textContent(n))
				return
			case "p", "li", "td", "th", "dt", "dd", "blockquote", "address", "pre":
				s.line(textContent(n))
				return
			}
		}
		if n.Type == html.TextNode {
			s.line(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if body := findBody(doc); body != nil {
		walk(body)
	} else {
		walk(doc)
	}
	return s.result(), nil
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			buf.WriteString(n.Data)
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "br":
				buf.WriteString("\n")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
		if n.Type == html.ElementNode && (n.Data == "span" || n.Data == "a" || n.Data == "li") {
			buf.WriteString(" ")
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

func findBody(n *html.Node) *html.Node {
	if n.Type == html.ElementNode && n.Data == "body" {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if b := findBody(c); b != nil {
			return b
		}
	}
	return nil
}
