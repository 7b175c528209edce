package alignment

import (
	"fmt"
)

// EstimationError indicates that RANSAC could not produce a model of the
// requested kind. Projective failures are normally recovered internally by
// falling back to affine; this error surfaces only when the fallback also
// fails.
type EstimationError struct {
	Kind   Kind
	Points int
	Reason string
}

func (e *EstimationError) Error() string {
	return fmt.Sprintf("%s estimation failed on %d point pairs: %s", e.Kind, e.Points, e.Reason)
}

// NoValidAlignmentError indicates that every candidate model failed for an
// image. Fatal for that image only; batch processing continues.
type NoValidAlignmentError struct {
	Tried []Kind
}

func (e *NoValidAlignmentError) Error() string {
	return fmt.Sprintf("no candidate transform succeeded (tried %d models)", len(e.Tried))
}
