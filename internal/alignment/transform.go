// Package alignment estimates and refines geometric transforms that map
// target-image coordinates onto master-image coordinates.
package alignment

import (
	"math"

	"photo-align/pkg/geometry"
)

// Kind identifies the geometric model of a Transform.
type Kind int

const (
	// KindSimilarity is rotation + uniform scale + translation; no skew.
	KindSimilarity Kind = iota
	// KindAffine is a full 2x3 transform; allows shear and anisotropic scale.
	KindAffine
	// KindProjective is a 3x3 homography; allows perspective skew.
	KindProjective
)

func (k Kind) String() string {
	switch k {
	case KindSimilarity:
		return "similarity"
	case KindAffine:
		return "affine"
	case KindProjective:
		return "projective"
	default:
		return "unknown"
	}
}

// Transform is a tagged union over the three supported models. It always
// maps target-image coordinates to master-image coordinates. Affine holds
// the matrix for similarity and affine kinds; Homog for projective.
type Transform struct {
	Kind   Kind
	Affine geometry.AffineTransform
	Homog  geometry.Homography
}

// NewAffineTransform wraps a 2x3 matrix as an affine or similarity Transform.
func NewAffineTransform(kind Kind, t geometry.AffineTransform) Transform {
	return Transform{Kind: kind, Affine: t}
}

// NewProjectiveTransform wraps a homography as a projective Transform.
func NewProjectiveTransform(h geometry.Homography) Transform {
	return Transform{Kind: KindProjective, Homog: h.Normalize()}
}

// IdentityTransform returns the identity similarity transform.
func IdentityTransform() Transform {
	return Transform{Kind: KindSimilarity, Affine: geometry.Identity()}
}

// Apply maps a point through the transform, with a homogeneous divide for
// the projective kind.
func (t Transform) Apply(p geometry.Point2D) geometry.Point2D {
	if t.Kind == KindProjective {
		return t.Homog.Apply(p)
	}
	return t.Affine.Apply(p)
}

// Matrix3 returns the transform as a 3x3 homogeneous matrix, embedding
// affine kinds as [a b tx; c d ty; 0 0 1].
func (t Transform) Matrix3() geometry.Homography {
	if t.Kind == KindProjective {
		return t.Homog
	}
	return geometry.HomographyFromAffine(t.Affine)
}

// ComposeWith returns the transform that applies first, then t. The
// composition is done in homogeneous 3x3 form regardless of the operand
// kinds; if neither stage is projective the result is truncated back to
// a 2x3 matrix.
func (t Transform) ComposeWith(first Transform) Transform {
	combined := t.Matrix3().Compose(first.Matrix3())
	if t.Kind == KindProjective || first.Kind == KindProjective {
		return NewProjectiveTransform(combined)
	}
	kind := KindAffine
	if t.Kind == KindSimilarity && first.Kind == KindSimilarity {
		kind = KindSimilarity
	}
	return Transform{Kind: kind, Affine: combined.ToAffine()}
}

// RMSError computes the root-mean-square reprojection error of the
// transform over paired point sets: every src point is mapped and compared
// against its paired dst point.
func RMSError(t Transform, src, dst []geometry.Point2D) float64 {
	if len(src) == 0 || len(src) != len(dst) {
		return math.Inf(1)
	}
	var sum float64
	for i := range src {
		d := t.Apply(src[i]).Distance(dst[i])
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(src)))
}
