package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/ner"
)

// TextExtractor turns an uploaded document into cleaned text.
type TextExtractor interface {
	Extract(r io.Reader, filename string) (string, error)
}

// EntityRecognizer labels cleaned text.
type EntityRecognizer interface {
	Recognize(text string) (ner.Result, error)
}

// Worker runs the extract -> check -> recognize path for one document.
type Worker struct {
	ext     TextExtractor
	rec     EntityRecognizer
	minText int
	log     *slog.Logger
	backoff func(attempt int) time.Duration
}

func NewWorker(ext TextExtractor, rec EntityRecognizer, minTextLength int, log *slog.Logger) *Worker {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Worker{
		ext:     ext,
		rec:     rec,
		minText: minTextLength,
		log:     log,
		backoff: Backoff,
	}
}

// Run processes a document synchronously.
func (w *Worker) Run(ctx context.Context, r io.Reader, filename string) (ner.Result, error) {
	text, err := w.extract(r, filename)
	if err != nil {
		return ner.Result{}, err
	}
	return w.recognize(ctx, w.log.With("filename", filename), text, nil)
}

// Process runs a queued job to completion or failure.
func (w *Worker) Process(ctx context.Context, job *Job) {
	log := w.log.With("job_id", job.ID, "filename", job.Filename)

	// Phase 1: Extract
	job.SetStatus(StatusExtracting, "extracting")
	text, err := w.extract(bytes.NewReader(job.FileData()), job.Filename)
	if err != nil {
		log.Warn("extraction failed", "error", err)
		job.Fail(err)
		return
	}

	// Phase 2: Recognize
	job.SetStatus(StatusRecognizing, "recognizing")
	res, err := w.recognize(ctx, log, text, job.IncrAttempts)
	if err != nil {
		log.Error("recognition failed", "error", err)
		job.Fail(err)
		return
	}

	job.Complete(res)
	log.Info("job completed",
		"entity_types", len(res.Entities),
		"words", res.Words,
		"labeled_words", res.LabeledWords,
		"truncated", res.Truncated,
	)
}

func (w *Worker) extract(r io.Reader, filename string) (string, error) {
	text, err := w.ext.Extract(r, filename)
	if err != nil {
		return "", err
	}
	if n := utf8.RuneCountInString(text); n < w.minText {
		return "", &TextTooShortError{Length: n, Min: w.minText}
	}
	return text, nil
}

// recognize retries retryable failures up to MaxRetries attempts, waiting a
// jittered backoff between them.
func (w *Worker) recognize(ctx context.Context, log *slog.Logger, text string, onAttempt func()) (ner.Result, error) {
	var lastErr error
	for attempt := range MaxRetries {
		if onAttempt != nil {
			onAttempt()
		}
		res, err := w.rec.Recognize(text)
		if err == nil {
			return res, nil
		}
		lastErr = err
		if !IsRetryable(err) || attempt == MaxRetries-1 {
			break
		}
		log.Warn("retryable inference error", "attempt", attempt, "error", err)
		select {
		case <-time.After(w.backoff(attempt)):
		case <-ctx.Done():
			return ner.Result{}, ctx.Err()
		}
	}
	return ner.Result{}, lastErr
}
