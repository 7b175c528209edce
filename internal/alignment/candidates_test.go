package alignment

import (
	"image"
	"testing"

	"photo-align/pkg/geometry"

	"github.com/stretchr/testify/assert"
)

func TestPlausibleTransform(t *testing.T) {
	target := image.Pt(800, 600)
	canvas := image.Pt(800, 600)

	assert.True(t, plausibleTransform(IdentityTransform(), target, canvas))
	assert.True(t, plausibleTransform(NewAffineTransform(
		KindSimilarity, geometry.Translation(40, -25)), target, canvas))

	// Singular affine part: collapses the image onto a line.
	assert.False(t, plausibleTransform(NewAffineTransform(
		KindAffine, geometry.Scale(0, 1)), target, canvas))

	// Warped bounding box entirely off the canvas.
	assert.False(t, plausibleTransform(NewAffineTransform(
		KindSimilarity, geometry.Translation(10000, 0)), target, canvas))
	assert.False(t, plausibleTransform(NewAffineTransform(
		KindSimilarity, geometry.Translation(0, -10000)), target, canvas))

	// Explosive scale overlaps the canvas but throws the image center far
	// outside any plausible frame.
	assert.False(t, plausibleTransform(NewAffineTransform(
		KindAffine, geometry.Scale(100, 100)), target, canvas))
}
