package model

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	unkToken = "[UNK]"
	clsToken = "[CLS]"
	sepToken = "[SEP]"
	padToken = "[PAD]"

	// maxCharsPerWord matches the BERT reference tokenizer: longer words map to [UNK].
	maxCharsPerWord = 100
)

// WordPiece is a BERT uncased tokenizer: basic tokenization (lower-casing,
// accent stripping, punctuation splitting) followed by greedy longest-match
// subword lookup.
type WordPiece struct {
	vocab     map[string]int
	lowercase bool
	unk       int
	cls       int
	sep       int
	pad       int
}

// LoadWordPiece reads a vocab.txt with one token per line; the line index is the id.
func LoadWordPiece(path string, lowercase bool) (*WordPiece, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &ModelNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("open vocab: %w", err)
	}
	defer f.Close()
	return NewWordPiece(f, lowercase)
}

// NewWordPiece builds a tokenizer from a vocabulary stream.
func NewWordPiece(r io.Reader, lowercase bool) (*WordPiece, error) {
	vocab := make(map[string]int)
	sc := bufio.NewScanner(r)
	id := 0
	for sc.Scan() {
		tok := strings.TrimRight(sc.Text(), "\r")
		if _, dup := vocab[tok]; !dup {
			vocab[tok] = id
		}
		id++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read vocab: %w", err)
	}

	wp := &WordPiece{vocab: vocab, lowercase: lowercase}
	for _, s := range []struct {
		tok string
		dst *int
	}{
		{unkToken, &wp.unk},
		{clsToken, &wp.cls},
		{sepToken, &wp.sep},
		{padToken, &wp.pad},
	} {
		v, ok := vocab[s.tok]
		if !ok {
			return nil, fmt.Errorf("vocab is missing special token %s", s.tok)
		}
		*s.dst = v
	}
	return wp, nil
}

func (w *WordPiece) CLS() int { return w.cls }
func (w *WordPiece) SEP() int { return w.sep }
func (w *WordPiece) PAD() int { return w.pad }
func (w *WordPiece) UNK() int { return w.unk }

// VocabSize is the number of distinct tokens.
func (w *WordPiece) VocabSize() int { return len(w.vocab) }

// EncodeWord tokenizes one whitespace-delimited word into subword ids without
// special tokens. Punctuation inside the word produces separate pieces.
// A word consisting only of characters the tokenizer drops returns nil.
func (w *WordPiece) EncodeWord(word string) []int {
	var ids []int
	for _, tok := range w.basicTokens(word) {
		ids = append(ids, w.wordPieces(tok)...)
	}
	return ids
}

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func (w *WordPiece) basicTokens(text string) []string {
	if w.lowercase {
		text = strings.ToLower(text)
		if s, _, err := transform.String(stripMarks, text); err == nil {
			text = s
		}
	}

	var out []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range text {
		switch {
		case r == 0 || r == unicode.ReplacementChar || isControl(r):
			continue
		case unicode.IsSpace(r):
			flush()
		case isPunct(r) || isCJK(r):
			flush()
			out = append(out, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return out
}

func (w *WordPiece) wordPieces(tok string) []int {
	rs := []rune(tok)
	if len(rs) > maxCharsPerWord {
		return []int{w.unk}
	}
	var ids []int
	for start := 0; start < len(rs); {
		end := len(rs)
		found := -1
		for ; end > start; end-- {
			piece := string(rs[start:end])
			if start > 0 {
				piece = "##" + piece
			}
			if id, ok := w.vocab[piece]; ok {
				found = id
				break
			}
		}
		if found < 0 {
			return []int{w.unk}
		}
		ids = append(ids, found)
		start = end
	}
	return ids
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.In(r, unicode.Cc, unicode.Cf)
}

// isPunct treats all non-alphanumeric ASCII as punctuation, as BERT does.
func isPunct(r rune) bool {
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) || (r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r)
}
