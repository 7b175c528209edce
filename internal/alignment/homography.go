package alignment

import (
	"fmt"
	"math"
	"math/rand"

	"photo-align/pkg/geometry"

	"gonum.org/v1/gonum/mat"
)

// estimateHomographyRANSAC computes a 3x3 homography using a pure Go RANSAC
// implementation: 4-point minimal solves for hypotheses, then a normalized
// DLT refit over all inliers.
func estimateHomographyRANSAC(srcPoints, dstPoints []geometry.Point2D, iterations int, threshold float64) (geometry.Homography, []int, error) {
	if len(srcPoints) != len(dstPoints) {
		return geometry.Homography{}, nil, fmt.Errorf("point count mismatch: %d vs %d", len(srcPoints), len(dstPoints))
	}
	if len(srcPoints) < 4 {
		return geometry.Homography{}, nil, fmt.Errorf("need at least 4 points, got %d", len(srcPoints))
	}

	n := len(srcPoints)
	bestInliers := []int{}
	var bestH geometry.Homography

	for iter := 0; iter < iterations; iter++ {
		indices := rand.Perm(n)[:4]

		sample := make([]geometry.Point2D, 4)
		target := make([]geometry.Point2D, 4)
		for i, idx := range indices {
			sample[i] = srcPoints[idx]
			target[i] = dstPoints[idx]
		}

		h, err := homographyFromFourPoints(sample, target)
		if err != nil {
			continue
		}

		var inliers []int
		for i := range srcPoints {
			if h.Apply(srcPoints[i]).Distance(dstPoints[i]) < threshold {
				inliers = append(inliers, i)
			}
		}

		if len(inliers) > len(bestInliers) {
			bestInliers = inliers
			bestH = h
		}
	}

	if len(bestInliers) < 4 {
		return geometry.Homography{}, nil, fmt.Errorf("RANSAC failed to find enough inliers")
	}

	// Refit over all inliers with a normalized DLT.
	inlierSrc := make([]geometry.Point2D, len(bestInliers))
	inlierDst := make([]geometry.Point2D, len(bestInliers))
	for i, idx := range bestInliers {
		inlierSrc[i] = srcPoints[idx]
		inlierDst[i] = dstPoints[idx]
	}

	refined, err := homographyDLT(inlierSrc, inlierDst)
	if err != nil {
		return bestH, bestInliers, nil
	}
	return refined, bestInliers, nil
}

// homographyFromFourPoints solves the exact 8x8 linear system for a
// homography with h33 fixed to 1. Degenerate (e.g. collinear) samples make
// the system singular and return an error.
func homographyFromFourPoints(src, dst []geometry.Point2D) (geometry.Homography, error) {
	if len(src) != 4 || len(dst) != 4 {
		return geometry.Homography{}, fmt.Errorf("need exactly 4 points")
	}

	A := mat.NewDense(8, 8, nil)
	B := mat.NewVecDense(8, nil)

	for i := 0; i < 4; i++ {
		x, y := src[i].X, src[i].Y
		xp, yp := dst[i].X, dst[i].Y

		// xp = (h11 x + h12 y + h13) / (h31 x + h32 y + 1)
		A.Set(i*2, 0, x)
		A.Set(i*2, 1, y)
		A.Set(i*2, 2, 1)
		A.Set(i*2, 6, -x*xp)
		A.Set(i*2, 7, -y*xp)
		B.SetVec(i*2, xp)

		A.Set(i*2+1, 3, x)
		A.Set(i*2+1, 4, y)
		A.Set(i*2+1, 5, 1)
		A.Set(i*2+1, 6, -x*yp)
		A.Set(i*2+1, 7, -y*yp)
		B.SetVec(i*2+1, yp)
	}

	var h mat.VecDense
	if err := h.SolveVec(A, B); err != nil {
		return geometry.Homography{}, err
	}

	return geometry.Homography{
		{h.AtVec(0), h.AtVec(1), h.AtVec(2)},
		{h.AtVec(3), h.AtVec(4), h.AtVec(5)},
		{h.AtVec(6), h.AtVec(7), 1},
	}, nil
}

// homographyDLT computes a least-squares homography over N >= 4 point pairs
// using the normalized direct linear transform: points are translated to
// their centroid and scaled to mean distance sqrt(2), the 2Nx9 system's
// null space is taken from the SVD, and the result is denormalized.
func homographyDLT(src, dst []geometry.Point2D) (geometry.Homography, error) {
	n := len(src)
	if n < 4 {
		return geometry.Homography{}, fmt.Errorf("need at least 4 points")
	}

	srcNorm, srcT := normalizePoints(src)
	dstNorm, dstT := normalizePoints(dst)

	A := mat.NewDense(n*2, 9, nil)
	for i := 0; i < n; i++ {
		x, y := srcNorm[i].X, srcNorm[i].Y
		xp, yp := dstNorm[i].X, dstNorm[i].Y

		A.SetRow(i*2, []float64{-x, -y, -1, 0, 0, 0, x * xp, y * xp, xp})
		A.SetRow(i*2+1, []float64{0, 0, 0, -x, -y, -1, x * yp, y * yp, yp})
	}

	var svd mat.SVD
	if !svd.Factorize(A, mat.SVDFull) {
		return geometry.Homography{}, fmt.Errorf("SVD factorization failed")
	}

	var v mat.Dense
	svd.VTo(&v)

	// Null space = right singular vector of the smallest singular value.
	var hn geometry.Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			hn[i][j] = v.At(i*3+j, 8)
		}
	}

	// Denormalize: H = inv(Tdst) * Hn * Tsrc
	dstInv, ok := invertNormalization(dstT)
	if !ok {
		return geometry.Homography{}, fmt.Errorf("degenerate normalization")
	}
	h := dstInv.Compose(hn.Compose(srcT))

	if math.Abs(h[2][2]) < 1e-12 {
		return geometry.Homography{}, fmt.Errorf("degenerate homography")
	}
	return h.Normalize(), nil
}

// normalizePoints translates points to their centroid and scales them so
// the mean distance from the origin is sqrt(2). Returns the transformed
// points and the normalization matrix.
func normalizePoints(points []geometry.Point2D) ([]geometry.Point2D, geometry.Homography) {
	c := geometry.Centroid(points)

	var meanDist float64
	for _, p := range points {
		meanDist += p.Distance(c)
	}
	meanDist /= float64(len(points))

	scale := 1.0
	if meanDist > 1e-12 {
		scale = math.Sqrt2 / meanDist
	}

	t := geometry.Homography{
		{scale, 0, -scale * c.X},
		{0, scale, -scale * c.Y},
		{0, 0, 1},
	}

	out := make([]geometry.Point2D, len(points))
	for i, p := range points {
		out[i] = geometry.Point2D{X: scale * (p.X - c.X), Y: scale * (p.Y - c.Y)}
	}
	return out, t
}

// invertNormalization inverts a similarity normalization matrix of the form
// [s 0 tx; 0 s ty; 0 0 1].
func invertNormalization(t geometry.Homography) (geometry.Homography, bool) {
	s := t[0][0]
	if math.Abs(s) < 1e-12 {
		return geometry.Homography{}, false
	}
	return geometry.Homography{
		{1 / s, 0, -t[0][2] / s},
		{0, 1 / s, -t[1][2] / s},
		{0, 0, 1},
	}, true
}
