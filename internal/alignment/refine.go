package alignment

import (
	"errors"
	"image/color"

	"photo-align/internal/features"

	"gocv.io/x/gocv"
)

// Refine sharpens a first-pass transform by warping the target into the
// master frame, re-extracting features from the warped image, re-matching
// against the master's descriptors, and re-estimating on the refined
// pairs. Descriptors computed on a pre-aligned image are more reliable
// than descriptors computed on a distorted one.
//
// The refinement stage is composed onto the first pass as a homogeneous
// 3x3 multiplication. If the warped image produces too few matches, the
// first-pass transform is returned unchanged; refinement degrades
// gracefully rather than failing the alignment.
func Refine(masterSet *features.Set, target gocv.Mat, first Transform, kind Kind, robust bool) (Transform, error) {
	w, h := masterSet.Bounds.X, masterSet.Bounds.Y

	warped := WarpImage(target, first, w, h, gocv.BorderConstant, color.RGBA{})
	defer warped.Close()

	warpedSet, err := features.Extract(warped)
	if err != nil {
		var extractErr *features.ExtractionError
		if errors.As(err, &extractErr) {
			return first, nil
		}
		return first, err
	}
	defer warpedSet.Close()

	matches, err := features.MatchSets(warpedSet, masterSet, features.ModeRobust)
	if err != nil {
		var insufficient *features.InsufficientMatchesError
		if errors.As(err, &insufficient) {
			return first, nil
		}
		return first, err
	}
	matches = features.FilterCentered(matches, warpedSet, features.ModeRobust)

	src, dst := features.MatchedPoints(matches, warpedSet, masterSet)
	residual, _, err := Estimate(kind, src, dst, robust)
	if err != nil {
		return first, nil
	}

	return residual.ComposeWith(first), nil
}

// RefineCoarseToFine is the projective-specific variant: an affine first
// pass captures rotation and scale robustly, then a projective fit on the
// pre-aligned image captures only the residual perspective skew. This
// produces materially more stable homographies than fitting a single
// projective model directly to noisy raw matches.
func RefineCoarseToFine(masterSet *features.Set, target gocv.Mat, coarse Transform, robust bool) (Transform, error) {
	return Refine(masterSet, target, coarse, KindProjective, robust)
}
