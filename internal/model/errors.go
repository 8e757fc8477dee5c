package model

import "fmt"

// ModelNotFoundError means a model asset (checkpoint or vocabulary) is missing.
// It is not retryable: extraction stays unavailable until the file is provided.
type ModelNotFoundError struct {
	Path string
}

func (e *ModelNotFoundError) Error() string {
	return fmt.Sprintf("model asset not found at %s", e.Path)
}

// WeightLoadError means the checkpoint exists but does not structurally match
// the constructed classifier.
type WeightLoadError struct {
	Tensor string
	Reason string
}

func (e *WeightLoadError) Error() string {
	if e.Tensor == "" {
		return fmt.Sprintf("load weights: %s", e.Reason)
	}
	return fmt.Sprintf("load weights: tensor %q: %s", e.Tensor, e.Reason)
}
