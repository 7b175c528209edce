package alignment

import (
	"math"
	"testing"

	"photo-align/pkg/geometry"

	"github.com/stretchr/testify/assert"
)

func TestComposePureTranslation(t *testing.T) {
	// Composing two translations must match applying the combined offset.
	first := NewAffineTransform(KindAffine, geometry.Translation(5, 7))
	second := NewAffineTransform(KindSimilarity, geometry.Translation(-2, 3))

	combined := second.ComposeWith(first)
	got := combined.Apply(geometry.Point2D{})
	assert.InDelta(t, 3, got.X, 1e-12)
	assert.InDelta(t, 10, got.Y, 1e-12)
}

func TestComposeKindPromotion(t *testing.T) {
	sim := NewAffineTransform(KindSimilarity, geometry.Rotation(0.1))
	aff := NewAffineTransform(KindAffine, geometry.Scale(1.2, 0.9))
	proj := NewProjectiveTransform(geometry.Homography{
		{1, 0, 0},
		{0, 1, 0},
		{0.0001, 0, 1},
	})

	assert.Equal(t, KindSimilarity, sim.ComposeWith(sim).Kind)
	assert.Equal(t, KindAffine, aff.ComposeWith(sim).Kind)
	assert.Equal(t, KindAffine, sim.ComposeWith(aff).Kind)
	assert.Equal(t, KindProjective, proj.ComposeWith(sim).Kind)
	assert.Equal(t, KindProjective, aff.ComposeWith(proj).Kind)
}

func TestComposeMatchesMatrixProduct(t *testing.T) {
	first := NewAffineTransform(KindAffine, geometry.AffineTransform{
		A: 1.1, B: 0.2, TX: 40, C: -0.1, D: 0.95, TY: -12,
	})
	second := NewAffineTransform(KindAffine, geometry.AffineTransform{
		A: 0.98, B: -0.05, TX: 3, C: 0.04, D: 1.02, TY: 8,
	})

	combined := second.ComposeWith(first)
	for _, p := range []geometry.Point2D{{X: 0, Y: 0}, {X: 100, Y: 50}, {X: -30, Y: 200}} {
		want := second.Apply(first.Apply(p))
		got := combined.Apply(p)
		assert.InDelta(t, want.X, got.X, 1e-9)
		assert.InDelta(t, want.Y, got.Y, 1e-9)
	}
}

func TestMatrix3Embedding(t *testing.T) {
	af := NewAffineTransform(KindAffine, geometry.AffineTransform{
		A: 2, B: 3, TX: 4, C: 5, D: 6, TY: 7,
	})
	m := af.Matrix3()
	assert.Equal(t, geometry.Homography{
		{2, 3, 4},
		{5, 6, 7},
		{0, 0, 1},
	}, m)
}

func TestRMSError(t *testing.T) {
	pts := []geometry.Point2D{{X: 0, Y: 0}, {X: 10, Y: 0}, {X: 0, Y: 10}}

	assert.InDelta(t, 0, RMSError(IdentityTransform(), pts, pts), 1e-12)

	shifted := make([]geometry.Point2D, len(pts))
	for i, p := range pts {
		shifted[i] = geometry.Point2D{X: p.X + 3, Y: p.Y + 4}
	}
	// Every point is off by exactly 5px.
	assert.InDelta(t, 5, RMSError(IdentityTransform(), pts, shifted), 1e-12)

	assert.True(t, math.IsInf(RMSError(IdentityTransform(), nil, nil), 1))
	assert.True(t, math.IsInf(RMSError(IdentityTransform(), pts, pts[:2]), 1))
}
