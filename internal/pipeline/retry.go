package pipeline

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/unais0397/Resume-NER-Parser-Backend/internal/extractor"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/model"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/ner"
	"github.com/unais0397/Resume-NER-Parser-Backend/internal/parser"
)

// TextTooShortError rejects documents whose cleaned text is below the
// configured minimum length.
type TextTooShortError struct {
	Length int
	Min    int
}

func (e *TextTooShortError) Error() string {
	return fmt.Sprintf("extracted text too short: %d characters, need at least %d", e.Length, e.Min)
}

// ErrorKind groups failures by who can fix them.
type ErrorKind string

const (
	KindUnsupported ErrorKind = "unsupported_format"
	KindBadInput    ErrorKind = "bad_input"
	KindUnavailable ErrorKind = "model_unavailable"
	KindInference   ErrorKind = "inference"
	KindQueueFull   ErrorKind = "queue_full"
	KindInternal    ErrorKind = "internal"
)

// Failure is the client-facing description of an error.
type Failure struct {
	Kind      ErrorKind
	Message   string
	Retryable bool
}

// Classify maps a processing error onto a Failure. Model loading details stay
// in the logs; clients only learn the service is unavailable.
func Classify(err error) Failure {
	var (
		extErr   *extractor.ExtractionError
		shortErr *TextTooShortError
		nfErr    *model.ModelNotFoundError
		wlErr    *model.WeightLoadError
	)
	switch {
	case errors.Is(err, parser.ErrUnsupported):
		return Failure{Kind: KindUnsupported, Message: err.Error()}
	case errors.As(err, &shortErr), errors.As(err, &extErr):
		return Failure{Kind: KindBadInput, Message: "bad input document: " + err.Error()}
	case errors.As(err, &nfErr), errors.As(err, &wlErr):
		return Failure{Kind: KindUnavailable, Message: "service temporarily unavailable"}
	case errors.Is(err, ErrQueueFull):
		return Failure{Kind: KindQueueFull, Message: err.Error(), Retryable: true}
	case IsRetryable(err):
		return Failure{Kind: KindInference, Message: "inference failed", Retryable: true}
	default:
		return Failure{Kind: KindInternal, Message: "internal error"}
	}
}

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var infErr *ner.InferenceError
	return errors.As(err, &infErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

const MaxRetries = 3
