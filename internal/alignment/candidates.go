package alignment

import (
	"image"

	"photo-align/internal/features"
	"photo-align/pkg/geometry"

	"gocv.io/x/gocv"
)

// Candidate is one scored alignment attempt: the model kind that was
// requested, the fitted transform, the match set it was fitted to, and its
// RMS reprojection error over that match set.
type Candidate struct {
	Kind      Kind
	Transform Transform
	Matches   []features.Match
	RMS       float64
}

// SelectOptions configures candidate selection.
type SelectOptions struct {
	Mode features.Mode
	// RefinementEnabled runs a second matching pass on the pre-warped
	// image for each candidate.
	RefinementEnabled bool
	// PerspectiveEnabled allows the projective model to compete.
	PerspectiveEnabled bool
	// SimpleMatchForced restricts selection to the similarity model,
	// for captures known to be frontal.
	SimpleMatchForced bool
}

// SelectBest runs the competing transform models and picks the one with
// the lowest RMS reprojection error. Error-driven selection lets a simple
// similarity fit win over an overfit projective one when the capture is in
// fact frontal. Returns NoValidAlignmentError if every model fails.
func SelectBest(target gocv.Mat, targetSet, masterSet *features.Set, opts SelectOptions) (*Candidate, error) {
	matches, err := features.MatchSets(targetSet, masterSet, opts.Mode)
	if err != nil {
		return nil, err
	}
	matches = features.FilterCentered(matches, targetSet, opts.Mode)

	src, dst := features.MatchedPoints(matches, targetSet, masterSet)
	robust := opts.Mode != features.ModeGreedy

	kinds := []Kind{KindSimilarity, KindAffine}
	if opts.PerspectiveEnabled {
		kinds = append(kinds, KindProjective)
	}
	if opts.SimpleMatchForced {
		kinds = []Kind{KindSimilarity}
	}

	var best *Candidate
	tried := make([]Kind, 0, len(kinds))

	for _, kind := range kinds {
		tried = append(tried, kind)

		transform, ok := fitCandidate(kind, src, dst, target, masterSet, robust, opts.RefinementEnabled)
		if !ok {
			continue
		}
		if !plausibleTransform(transform, targetSet.Bounds, masterSet.Bounds) {
			continue
		}

		rms := RMSError(transform, src, dst)
		if best == nil || rms < best.RMS {
			best = &Candidate{
				Kind:      kind,
				Transform: transform,
				Matches:   matches,
				RMS:       rms,
			}
		}
	}

	if best == nil {
		return nil, &NoValidAlignmentError{Tried: tried}
	}
	return best, nil
}

// plausibleTransform rejects geometrically degenerate fits: the affine part
// must be invertible, the warped target's bounding box must overlap the
// master canvas, and the warped target center must land within one canvas
// width/height of the frame.
func plausibleTransform(t Transform, targetBounds, masterBounds image.Point) bool {
	if t.Kind != KindProjective {
		if _, ok := t.Affine.Inverse(); !ok {
			return false
		}
	}

	w := float64(targetBounds.X)
	h := float64(targetBounds.Y)
	corners := []geometry.Point2D{
		{}, {X: w}, {X: w, Y: h}, {Y: h},
	}
	for i, c := range corners {
		corners[i] = t.Apply(c)
	}
	box := geometry.BoundingBox(corners)

	cw := float64(masterBounds.X)
	ch := float64(masterBounds.Y)
	if box.X >= cw || box.Y >= ch || box.X+box.Width <= 0 || box.Y+box.Height <= 0 {
		return false
	}

	loose := geometry.NewRect(-cw, -ch, 3*cw, 3*ch)
	return loose.Contains(t.Apply(geometry.Point2D{X: w / 2, Y: h / 2}))
}

// fitCandidate estimates one model, optionally refining it on a pre-warped
// image. The projective model with refinement uses the coarse-to-fine
// path: affine first, then the residual perspective on pre-aligned points.
func fitCandidate(kind Kind, src, dst []geometry.Point2D, target gocv.Mat, masterSet *features.Set, robust, refine bool) (Transform, bool) {
	if kind == KindProjective && refine {
		coarse, _, err := Estimate(KindAffine, src, dst, robust)
		if err != nil {
			return Transform{}, false
		}
		refined, err := RefineCoarseToFine(masterSet, target, coarse, robust)
		if err != nil {
			return Transform{}, false
		}
		return refined, true
	}

	transform, _, err := Estimate(kind, src, dst, robust)
	if err != nil {
		return Transform{}, false
	}

	if refine {
		refined, err := Refine(masterSet, target, transform, kind, robust)
		if err != nil {
			return Transform{}, false
		}
		return refined, true
	}
	return transform, true
}
