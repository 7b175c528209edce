package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAffineIdentity(t *testing.T) {
	id := Identity()
	p := Point2D{X: 12.5, Y: -3.25}
	assert.Equal(t, p, id.Apply(p))
}

func TestAffineApplyRotation(t *testing.T) {
	rot := Rotation(math.Pi / 2)
	got := rot.Apply(Point2D{X: 1, Y: 0})
	assert.InDelta(t, 0, got.X, 1e-12)
	assert.InDelta(t, 1, got.Y, 1e-12)
}

func TestAffineCompose(t *testing.T) {
	// Rotate then translate vs composed transform.
	rot := Rotation(math.Pi / 4)
	trans := Translation(10, -5)
	composed := trans.Compose(rot)

	p := Point2D{X: 3, Y: 7}
	want := trans.Apply(rot.Apply(p))
	got := composed.Apply(p)
	assert.InDelta(t, want.X, got.X, 1e-12)
	assert.InDelta(t, want.Y, got.Y, 1e-12)
}

func TestAffineInverse(t *testing.T) {
	tf := Translation(4, 9).Compose(Rotation(0.3).Compose(Scale(2, 2)))
	inv, ok := tf.Inverse()
	require.True(t, ok)

	p := Point2D{X: -2, Y: 5}
	back := inv.Apply(tf.Apply(p))
	assert.InDelta(t, p.X, back.X, 1e-9)
	assert.InDelta(t, p.Y, back.Y, 1e-9)
}

func TestAffineInverseSingular(t *testing.T) {
	_, ok := Scale(0, 1).Inverse()
	assert.False(t, ok)
}

func TestRotationAngleAndScale(t *testing.T) {
	tf := Rotation(0.2).Compose(Scale(1.5, 1.5))
	assert.InDelta(t, 0.2, tf.RotationAngle(), 1e-12)

	sx, sy := tf.ScaleFactors()
	assert.InDelta(t, 1.5, sx, 1e-12)
	assert.InDelta(t, 1.5, sy, 1e-12)
}

func TestCentroidAndBoundingBox(t *testing.T) {
	points := []Point2D{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 2}, {X: 0, Y: 2}}

	c := Centroid(points)
	assert.InDelta(t, 2, c.X, 1e-12)
	assert.InDelta(t, 1, c.Y, 1e-12)

	box := BoundingBox(points)
	assert.Equal(t, Rect{X: 0, Y: 0, Width: 4, Height: 2}, box)
}

func TestRectContains(t *testing.T) {
	r := NewRect(1, 1, 2, 2)
	assert.True(t, r.Contains(Point2D{X: 2, Y: 2}))
	assert.False(t, r.Contains(Point2D{X: 0.5, Y: 2}))
	assert.Equal(t, Point2D{X: 2, Y: 2}, r.Center())
}
