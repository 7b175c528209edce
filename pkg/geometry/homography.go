package geometry

import (
	"math"
)

// Homography represents a 3x3 projective transformation matrix in
// row-major order. Points are mapped with a homogeneous divide, so the
// matrix may encode perspective skew in addition to any affine motion.
type Homography [3][3]float64

// IdentityHomography returns the identity homography.
func IdentityHomography() Homography {
	return Homography{
		{1, 0, 0},
		{0, 1, 0},
		{0, 0, 1},
	}
}

// HomographyFromAffine embeds a 2x3 affine transform as [a b tx; c d ty; 0 0 1].
func HomographyFromAffine(t AffineTransform) Homography {
	return Homography{
		{t.A, t.B, t.TX},
		{t.C, t.D, t.TY},
		{0, 0, 1},
	}
}

// Apply maps a point through the homography, performing the homogeneous divide.
// Points mapped to the plane at infinity (w ~ 0) are returned unchanged.
func (h Homography) Apply(p Point2D) Point2D {
	w := h[2][0]*p.X + h[2][1]*p.Y + h[2][2]
	if math.Abs(w) < 1e-12 {
		return p
	}
	return Point2D{
		X: (h[0][0]*p.X + h[0][1]*p.Y + h[0][2]) / w,
		Y: (h[1][0]*p.X + h[1][1]*p.Y + h[1][2]) / w,
	}
}

// Compose returns this homography composed with another (this * other),
// i.e. the transform that applies other first, then this.
func (h Homography) Compose(other Homography) Homography {
	var out Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			var sum float64
			for k := 0; k < 3; k++ {
				sum += h[i][k] * other[k][j]
			}
			out[i][j] = sum
		}
	}
	return out
}

// IsAffine reports whether the bottom row is (0, 0, 1) within tolerance,
// meaning the homography carries no perspective component.
func (h Homography) IsAffine() bool {
	const eps = 1e-9
	return math.Abs(h[2][0]) < eps && math.Abs(h[2][1]) < eps &&
		math.Abs(h[2][2]-1) < eps
}

// ToAffine truncates the homography to its affine 2x3 part. The caller is
// expected to have checked IsAffine first; the bottom row is discarded.
func (h Homography) ToAffine() AffineTransform {
	return AffineTransform{
		A: h[0][0], B: h[0][1], TX: h[0][2],
		C: h[1][0], D: h[1][1], TY: h[1][2],
	}
}

// Normalize scales the matrix so that h[2][2] == 1. A homography is only
// defined up to scale, so this canonical form makes matrices comparable.
func (h Homography) Normalize() Homography {
	if math.Abs(h[2][2]) < 1e-12 {
		return h
	}
	inv := 1.0 / h[2][2]
	var out Homography
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			out[i][j] = h[i][j] * inv
		}
	}
	return out
}
