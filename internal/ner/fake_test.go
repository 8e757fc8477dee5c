package ner

import (
	"fmt"
	"strings"
	"sync"
)

const (
	fakeCLS = 1000
	fakeSEP = 1001
)

type piece struct {
	word  string
	first bool
}

// fakePredictor splits a word into as many pieces as it has '+' separated
// parts and labels the first piece of each word from labels. Boundary and
// continuation positions get B-NAME so a test notices if they leak through.
type fakePredictor struct {
	labels map[string]string
	err    error
	panics bool

	// positions rejects longer sequences the way a real checkpoint does.
	positions int

	mu     sync.Mutex
	pieces []piece
	calls  int
	maxIDs int
}

func (f *fakePredictor) EncodeWord(word string) []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if word == "∅" {
		return nil
	}
	parts := strings.Split(word, "+")
	ids := make([]int, len(parts))
	for i := range parts {
		ids[i] = len(f.pieces)
		f.pieces = append(f.pieces, piece{word: word, first: i == 0})
	}
	return ids
}

func (f *fakePredictor) Specials() (int, int) { return fakeCLS, fakeSEP }

func (f *fakePredictor) MaxPositions() int { return f.positions }

func (f *fakePredictor) Predict(ids []int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.maxIDs = max(f.maxIDs, len(ids))
	if f.panics {
		panic("index out of range")
	}
	if f.positions > 0 && len(ids) > f.positions {
		return nil, fmt.Errorf("sequence length %d exceeds %d positions", len(ids), f.positions)
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		if id == fakeCLS || id == fakeSEP || !f.pieces[id].first {
			out[i] = "B-NAME"
			continue
		}
		if l, ok := f.labels[f.pieces[id].word]; ok {
			out[i] = l
		} else {
			out[i] = "O"
		}
	}
	return out, nil
}

type fakeSource struct {
	p     Predictor
	err   error
	loads int
}

func (s fakeSource) Acquire() (Predictor, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.p, nil
}

func (s fakeSource) Loads() int { return s.loads }
