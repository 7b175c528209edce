package alignment

import (
	"fmt"
	"math"
	"math/rand"

	"photo-align/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// RANSAC parameters. The robust path uses a looser outlier threshold than
// the fast path because raw photo matches carry more noise than pre-aligned
// ones.
const (
	ransacIterations    = 2000
	robustThresholdPx   = 5.0
	fastThresholdPx     = 3.0
	minProjectiveInlier = 0.30
)

// Estimate fits a transform of the requested kind to paired point sets
// (src = target coordinates, dst = master coordinates) and reports the
// RANSAC inlier indices. A projective fit that fails or keeps fewer than
// 30% of the points as inliers falls back to affine on the same point set;
// projective models are numerically unstable with few or poorly
// distributed matches.
func Estimate(kind Kind, src, dst []geometry.Point2D, robust bool) (Transform, []int, error) {
	threshold := fastThresholdPx
	if robust {
		threshold = robustThresholdPx
	}

	switch kind {
	case KindSimilarity:
		t, inliers, err := estimateAffineRANSAC(src, dst, ransacIterations, threshold)
		if err != nil {
			return Transform{}, nil, &EstimationError{Kind: kind, Points: len(src), Reason: err.Error()}
		}
		return NewAffineTransform(KindSimilarity, projectToSimilarity(t)), inliers, nil

	case KindAffine:
		t, inliers, err := estimateAffineRANSAC(src, dst, ransacIterations, threshold)
		if err != nil {
			return Transform{}, nil, &EstimationError{Kind: kind, Points: len(src), Reason: err.Error()}
		}
		return NewAffineTransform(KindAffine, t), inliers, nil

	case KindProjective:
		h, inliers, err := estimateHomographyRANSAC(src, dst, ransacIterations, robustThresholdPx)
		if err == nil && float64(len(inliers)) >= minProjectiveInlier*float64(len(src)) {
			return NewProjectiveTransform(h), inliers, nil
		}
		// Fall back to affine on the same point set.
		t, inliers, err := estimateAffineRANSAC(src, dst, ransacIterations, robustThresholdPx)
		if err != nil {
			return Transform{}, nil, &EstimationError{Kind: kind, Points: len(src), Reason: err.Error()}
		}
		return NewAffineTransform(KindAffine, t), inliers, nil

	default:
		return Transform{}, nil, &EstimationError{Kind: kind, Points: len(src), Reason: "unknown model kind"}
	}
}

// estimateAffineRANSAC computes an affine transform using a pure Go RANSAC
// implementation for cross-version compatibility with gocv.
func estimateAffineRANSAC(srcPoints, dstPoints []geometry.Point2D, iterations int, threshold float64) (geometry.AffineTransform, []int, error) {
	if len(srcPoints) != len(dstPoints) {
		return geometry.AffineTransform{}, nil, fmt.Errorf("point count mismatch: %d vs %d", len(srcPoints), len(dstPoints))
	}
	if len(srcPoints) < 3 {
		return geometry.AffineTransform{}, nil, fmt.Errorf("need at least 3 points, got %d", len(srcPoints))
	}

	n := len(srcPoints)
	bestInliers := []int{}
	var bestTransform geometry.AffineTransform

	for iter := 0; iter < iterations; iter++ {
		// Randomly sample 3 points
		indices := rand.Perm(n)[:3]

		sample := make([]geometry.Point2D, 3)
		target := make([]geometry.Point2D, 3)
		for i, idx := range indices {
			sample[i] = srcPoints[idx]
			target[i] = dstPoints[idx]
		}

		transform, err := affineFromThreePoints(sample, target)
		if err != nil {
			continue
		}

		var inliers []int
		for i := range srcPoints {
			transformed := transform.Apply(srcPoints[i])
			if transformed.Distance(dstPoints[i]) < threshold {
				inliers = append(inliers, i)
			}
		}

		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			bestTransform = transform
		}
	}

	if len(bestInliers) < 3 {
		return geometry.AffineTransform{}, nil, fmt.Errorf("RANSAC failed to find enough inliers")
	}

	// Recompute transform using all inliers
	inlierSrc := make([]geometry.Point2D, len(bestInliers))
	inlierDst := make([]geometry.Point2D, len(bestInliers))
	for i, idx := range bestInliers {
		inlierSrc[i] = srcPoints[idx]
		inlierDst[i] = dstPoints[idx]
	}

	finalTransform, err := affineLeastSquares(inlierSrc, inlierDst)
	if err != nil {
		return bestTransform, bestInliers, nil
	}

	return finalTransform, bestInliers, nil
}

// affineFromThreePoints computes an affine transform from exactly 3 point pairs.
func affineFromThreePoints(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	if len(src) != 3 || len(dst) != 3 {
		return geometry.AffineTransform{}, fmt.Errorf("need exactly 3 points")
	}

	// Build matrix equation: [x', y'] = [a, b, tx; c, d, ty] * [x, y, 1]
	A := mat.NewDense(6, 6, nil)
	B := mat.NewVecDense(6, nil)

	for i := 0; i < 3; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		// x' = a*x + b*y + tx
		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, xp)

		// y' = c*x + d*y + ty
		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, yp)
	}

	var params mat.VecDense
	if err := params.SolveVec(A, B); err != nil {
		return geometry.AffineTransform{}, err
	}

	return geometry.AffineTransform{
		A:  params.AtVec(0),
		B:  params.AtVec(1),
		TX: params.AtVec(2),
		C:  params.AtVec(3),
		D:  params.AtVec(4),
		TY: params.AtVec(5),
	}, nil
}

// affineLeastSquares computes an affine transform from an overdetermined
// system using QR decomposition.
func affineLeastSquares(src, dst []geometry.Point2D) (geometry.AffineTransform, error) {
	n := len(src)
	if n < 3 {
		return geometry.AffineTransform{}, fmt.Errorf("need at least 3 points")
	}

	A := mat.NewDense(n*2, 6, nil)
	B := mat.NewVecDense(n*2, nil)

	for i := 0; i < n; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		B.SetVec(i*2, xp)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		B.SetVec(i*2+1, yp)
	}

	var qr mat.QR
	qr.Factorize(A)

	var params mat.VecDense
	if err := qr.SolveVecTo(&params, false, B); err != nil {
		return geometry.AffineTransform{}, err
	}

	return geometry.AffineTransform{
		A:  params.AtVec(0),
		B:  params.AtVec(1),
		TX: params.AtVec(2),
		C:  params.AtVec(3),
		D:  params.AtVec(4),
		TY: params.AtVec(5),
	}, nil
}

// projectToSimilarity projects an affine matrix onto the nearest
// rotation + uniform-scale + translation: the two axis scales are
// averaged, rotation is taken from the shear-free component, and a clean
// 2x3 matrix is rebuilt. Guarantees no skew for frontal captures.
func projectToSimilarity(t geometry.AffineTransform) geometry.AffineTransform {
	sx, sy := t.ScaleFactors()
	scale := (sx + sy) / 2
	theta := t.RotationAngle()

	cos := math.Cos(theta) * scale
	sin := math.Sin(theta) * scale
	return geometry.AffineTransform{
		A: cos, B: -sin, TX: t.TX,
		C: sin, D: cos, TY: t.TY,
	}
}
