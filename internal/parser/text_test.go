package parser

import (
	"strings"
	"testing"
)

func TestTextParser_FormFeedPages(t *testing.T) {
	input := "Jane Doe\nEngineer\fEducation\nB.Sc.\f"
	p := &TextParser{}
	pages, err := p.Pages(strings.NewReader(input), "resume.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Jane Doe\nEngineer", "Education\nB.Sc.", ""}
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %d: %q", len(want), len(pages), pages)
	}
	for i, w := range want {
		if pages[i] != w {
			t.Errorf("page[%d]: expected %q, got %q", i, w, pages[i])
		}
	}
}

func TestTextParser_EmptyInput(t *testing.T) {
	p := &TextParser{}
	pages, err := p.Pages(strings.NewReader(""), "empty.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pages) != 1 || pages[0] != "" {
		t.Errorf("expected a single empty page, got %q", pages)
	}
}

func TestTextParser_PreservesLineBreaks(t *testing.T) {
	// Hyphen repair downstream depends on the raw line breaks.
	p := &TextParser{}
	pages, err := p.Pages(strings.NewReader("experi-\nence"), "wrap.txt")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pages[0] != "experi-\nence" {
		t.Errorf("expected raw text, got %q", pages[0])
	}
}
