package rag

import (
	"errors"
	"fmt"
)

var (
	// ErrDimensionMismatch is returned when two vectors that must be compared differ in length.
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrInvalidTopK is returned when a retrieval is asked for a non-positive number of results.
	ErrInvalidTopK = errors.New("top_k must be positive")
)

// DimensionMismatchError describes which document carried a vector of the wrong length.
// It matches ErrDimensionMismatch with errors.Is.
type DimensionMismatchError struct {
	DocumentID string
	Expected   int
	Actual     int
}

func (e *DimensionMismatchError) Error() string {
	if e.DocumentID == "" {
		return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
	}
	return fmt.Sprintf("dimension mismatch for document %s: expected %d, got %d", e.DocumentID, e.Expected, e.Actual)
}

// Is reports whether target is ErrDimensionMismatch.
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}
