// Package normalize turns raw extracted document text into clean prose for
// tokenization. Normalization is an ordered list of rewriting stages; a stage
// that fails is logged and skipped, and the text it received is passed on.
package normalize

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
)

// Stage is one named rewriting step.
type Stage struct {
	Name  string
	Apply func(string) string
}

var (
	hyphenBreak = regexp.MustCompile(`(\w+)-\s*\n\s*(\w+)`)
	looseHyphen = regexp.MustCompile(`\s+-\s+`)

	boilerplate = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bpage\s*\d+\b`),
		regexp.MustCompile(`(?i)\bconfidential\b`),
		regexp.MustCompile(`(?i)\b\d{1,2}/\d{1,2}/\d{4}\b`),
		regexp.MustCompile(`(?i)^[\s\S]{0,50}resume[\s\S]{0,50}$`),
	}

	symbolRun  = regexp.MustCompile(`[_\-|/+~*=]{2,}`)
	disallowed = regexp.MustCompile(`[^\w\s@.,!?&%$#()\-]`)

	prefixedContact = regexp.MustCompile(`\b(?:email|phone|https?://)\S+\b`)
	emailAddress    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Z|a-z]{2,}\b`)
	webURL          = regexp.MustCompile(`https?://(?:[a-zA-Z]|[0-9]|[$-_@.&+]|[!*\\(),]|(?:%[0-9a-fA-F][0-9a-fA-F]))+`)
	bulletGlyph     = regexp.MustCompile(`[\x{2022}\x{25CF}\x{25E6}\x{2043}]`)
	longDigits      = regexp.MustCompile(`\d{10,}`)

	// What a link looks like once special_chars has dropped ':' and '/'.
	linkRemnant = regexp.MustCompile(`\bhttps?\s+\S+\.\S+|\bwww\.\S+`)
)

// DefaultStages returns the normalization stages in application order.
// Hyphen repair needs the raw line breaks, so it precedes transliteration and
// whitespace folding; contact redaction runs on folded text and is the last
// stage that removes content.
func DefaultStages() []Stage {
	return []Stage{
		{"control_chars", stripControl},
		{"hyphenation", repairHyphenation},
		{"transliterate", unidecode.Unidecode},
		{"whitespace", foldWhitespace},
		{"header_footer", stripBoilerplate},
		{"special_chars", stripSymbols},
		{"redact_prefixed", remove(prefixedContact, linkRemnant)},
		{"redact_email", remove(emailAddress)},
		{"redact_url", remove(webURL)},
		{"bullets", func(s string) string { return bulletGlyph.ReplaceAllString(s, " ") }},
		{"redact_phone", remove(longDigits)},
		{"tidy_whitespace", foldWhitespace},
	}
}

// Normalizer applies stages with per-stage fault isolation.
type Normalizer struct {
	stages []Stage
	log    *slog.Logger
}

// New returns a Normalizer with the default stages.
func New(log *slog.Logger) *Normalizer {
	return NewWithStages(log, DefaultStages()...)
}

func NewWithStages(log *slog.Logger, stages ...Stage) *Normalizer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Normalizer{stages: stages, log: log}
}

// Stages lists the stage names in order.
func (n *Normalizer) Stages() []string {
	names := make([]string, len(n.stages))
	for i, s := range n.stages {
		names[i] = s.Name
	}
	return names
}

// Normalize runs every stage in order. It never fails.
func (n *Normalizer) Normalize(text string) string {
	for _, s := range n.stages {
		out, err := n.apply(s, text)
		if err != nil {
			n.log.Warn("normalization stage failed", "stage", s.Name, "error", err)
			continue
		}
		text = out
	}
	return text
}

func (n *Normalizer) apply(s Stage, in string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Apply(in), nil
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\n', '\r', '\t':
			return r
		}
		if unicode.In(r, unicode.Cc, unicode.Cf) {
			return -1
		}
		return r
	}, s)
}

func repairHyphenation(s string) string {
	s = hyphenBreak.ReplaceAllString(s, "${1}${2}")
	return looseHyphen.ReplaceAllString(s, " ")
}

// foldWhitespace collapses every whitespace run, non-breaking spaces
// included, to a single space and trims the ends.
func foldWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func stripBoilerplate(s string) string {
	for _, re := range boilerplate {
		s = re.ReplaceAllString(s, "")
	}
	return s
}

func stripSymbols(s string) string {
	s = symbolRun.ReplaceAllString(s, " ")
	return disallowed.ReplaceAllString(s, "")
}

func remove(patterns ...*regexp.Regexp) func(string) string {
	return func(s string) string {
		for _, re := range patterns {
			s = re.ReplaceAllString(s, "")
		}
		return s
	}
}
