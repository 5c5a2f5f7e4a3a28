package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrLengthMismatch means the backend returned a different number of analyses than inputs
	ErrLengthMismatch = errors.New("analysis count does not match input count")
	ErrEmptyPayload   = errors.New("empty response payload")
	ErrNoJSONArray    = errors.New("no JSON array in response")
)

// EnrichmentError is the single failure of a whole batch request. There is no partial success.
type EnrichmentError struct {
	BatchSize int
	Err       error
}

func (e *EnrichmentError) Error() string {
	return fmt.Sprintf("ai enrichment of %d items failed: %v", e.BatchSize, e.Err)
}

func (e *EnrichmentError) Unwrap() error {
	return e.Err
}

func batchError(size int, err error) *EnrichmentError {
	return &EnrichmentError{BatchSize: size, Err: err}
}
