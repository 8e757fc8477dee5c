package ner

import (
	"fmt"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/model"
)

// Predictor is the part of a loaded model the aligner uses.
type Predictor interface {
	// EncodeWord splits one word into subword ids, without special tokens.
	EncodeWord(word string) []int
	// Specials returns the sequence start and end token ids.
	Specials() (cls, sep int)
	// Predict returns one label per position of ids.
	Predict(ids []int) ([]string, error)
	// MaxPositions is the longest sequence Predict accepts. Zero or less
	// means no limit.
	MaxPositions() int
}

// TokenizeAndPredict labels words with one label each. The sequence handed
// to the model holds at most maxLen positions including the two boundary
// tokens, so only a prefix of words may be labeled: the returned slice covers
// exactly that prefix and callers treat the remaining words as O.
//
// A word takes the label predicted for its first subword; continuation
// subwords and boundary positions are discarded. A word the tokenizer maps to
// no subwords is labeled O.
func TokenizeAndPredict(words []string, p Predictor, maxLen int) ([]string, error) {
	if maxLen < 3 {
		return nil, fmt.Errorf("max sequence length %d leaves no room for words", maxLen)
	}
	budget := maxLen - 2
	if len(words) > budget {
		words = words[:budget]
	}

	cls, sep := p.Specials()
	ids := make([]int, 1, maxLen)
	ids[0] = cls
	owners := make([]int, 1, maxLen)
	owners[0] = -1

	retained := 0
	for i, w := range words {
		room := budget - (len(ids) - 1)
		if room == 0 {
			break
		}
		pieces := p.EncodeWord(w)
		if len(pieces) > room {
			pieces = pieces[:room]
		}
		for _, id := range pieces {
			ids = append(ids, id)
			owners = append(owners, i)
		}
		retained = i + 1
	}
	ids = append(ids, sep)
	owners = append(owners, -1)

	predicted, err := p.Predict(ids)
	if err != nil {
		return nil, err
	}
	if len(predicted) != len(ids) {
		return nil, fmt.Errorf("model returned %d labels for %d positions", len(predicted), len(ids))
	}

	labels := make([]string, retained)
	assigned := make([]bool, retained)
	for pos, w := range owners {
		if w < 0 || assigned[w] {
			continue
		}
		labels[w] = predicted[pos]
		assigned[w] = true
	}
	for i := range labels {
		if !assigned[i] {
			labels[i] = model.Outside
		}
	}
	return labels, nil
}
