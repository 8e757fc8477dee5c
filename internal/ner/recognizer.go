// Package ner turns normalized resume text into entity mentions: words are
// labeled by the token classifier, grouped into BIO spans and deduplicated.
package ner

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/model"
)

// InferenceError is a transient failure while running the model. The call
// may be retried.
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string { return fmt.Sprintf("inference: %v", e.Err) }
func (e *InferenceError) Unwrap() error { return e.Err }

// Source hands out a predictor, loading the model when needed. Load
// failures (model.ModelNotFoundError, model.WeightLoadError) are returned
// unchanged.
type Source interface {
	Acquire() (Predictor, error)
	// Loads counts completed model loads.
	Loads() int
}

type managerSource struct {
	m *model.Manager
}

// ManagerSource adapts a model manager to a Source.
func ManagerSource(m *model.Manager) Source { return managerSource{m: m} }

func (s managerSource) Acquire() (Predictor, error) {
	h, err := s.m.Get()
	if err != nil {
		return nil, err
	}
	return h, nil
}

func (s managerSource) Loads() int { return s.m.Loads() }

// Options configures a Recognizer.
type Options struct {
	MaxSeqLength int
	// Windowed labels every word by running further predictions over the words
	// a single sequence could not hold.
	Windowed      bool
	MaxConcurrent int
	// MemorySoftLimit triggers a reclaim pass before inference when the
	// process uses more. Zero disables the check.
	MemorySoftLimit uint64
}

// Result is the outcome of one recognition call.
type Result struct {
	Entities     EntityMapping `json:"entities"`
	Words        int           `json:"words"`
	LabeledWords int           `json:"labeled_words"`
	Truncated    bool          `json:"truncated"`
}

// Recognizer runs the full text-to-entities path. It is safe for concurrent
// use; at most MaxConcurrent predictions run at once.
type Recognizer struct {
	src   Source
	opts  Options
	sem   chan struct{}
	guard *model.MemoryGuard
	stats *InferenceStats
	log   *slog.Logger

	mu        sync.Mutex
	seenLoads int
}

func NewRecognizer(src Source, opts Options, stats *InferenceStats, log *slog.Logger) *Recognizer {
	if opts.MaxSeqLength <= 0 {
		opts.MaxSeqLength = 128
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	if stats == nil {
		stats = NewInferenceStats(time.Hour)
	}
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Recognizer{
		src:   src,
		opts:  opts,
		sem:   make(chan struct{}, opts.MaxConcurrent),
		guard: model.NewMemoryGuard(opts.MemorySoftLimit),
		stats: stats,
		log:   log,
	}
}

// Stats returns the latency tracker.
func (r *Recognizer) Stats() *InferenceStats { return r.stats }

// Recognize extracts entities from normalized text. Memory is reclaimed
// before returning, whatever the outcome.
func (r *Recognizer) Recognize(text string) (Result, error) {
	defer model.Reclaim()

	words := strings.Fields(text)
	if len(words) == 0 {
		return Result{Entities: EntityMapping{}}, nil
	}

	r.guard.Check(r.log)
	p, err := r.src.Acquire()
	if err != nil {
		return Result{}, err
	}
	r.rebaseAfterLoad()

	start := time.Now()
	r.sem <- struct{}{}
	labels, err := r.label(words, p)
	<-r.sem
	if err != nil {
		r.stats.RecordFailure(time.Since(start))
		r.log.Error("inference failed", "words", len(words), "error", err)
		return Result{}, &InferenceError{Err: err}
	}

	res := Result{
		Entities:     Dedupe(Decode(words, labels)),
		Words:        len(words),
		LabeledWords: len(labels),
		Truncated:    len(labels) < len(words),
	}
	r.stats.Record(time.Since(start), len(words), res.Truncated)
	if res.Truncated {
		r.log.Warn("document truncated to model input length",
			"words", res.Words,
			"labeled_words", res.LabeledWords,
			"max_seq_length", r.opts.MaxSeqLength,
			"model_positions", p.MaxPositions(),
		)
	}
	return res, nil
}

// rebaseAfterLoad records the resident size of a model the first time it is
// seen.
func (r *Recognizer) rebaseAfterLoad() {
	n := r.src.Loads()
	r.mu.Lock()
	fresh := n != r.seenLoads
	r.seenLoads = n
	r.mu.Unlock()
	if fresh {
		r.guard.Rebase(r.log)
	}
}

func (r *Recognizer) label(words []string, p Predictor) (labels []string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			labels, err = nil, fmt.Errorf("predictor panic: %v", rec)
		}
	}()

	maxLen := sequenceLimit(r.opts.MaxSeqLength, p)
	labels, err = TokenizeAndPredict(words, p, maxLen)
	if err != nil || !r.opts.Windowed {
		return labels, err
	}
	for len(labels) < len(words) {
		next, err := TokenizeAndPredict(words[len(labels):], p, maxLen)
		if err != nil {
			return nil, err
		}
		if len(next) == 0 {
			return nil, errors.New("window made no progress")
		}
		labels = append(labels, next...)
	}
	return labels, nil
}

// sequenceLimit caps the configured sequence length at what the model's
// position embeddings can address.
func sequenceLimit(configured int, p Predictor) int {
	if positions := p.MaxPositions(); positions > 0 {
		return min(configured, positions)
	}
	return configured
}
