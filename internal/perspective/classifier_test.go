package perspective

import (
	"image"
	"image/color"
	"testing"

	"gocv.io/x/gocv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drawLine(img *gocv.Mat, x1, y1, x2, y2 int) {
	gocv.Line(img, image.Pt(x1, y1), image.Pt(x2, y2),
		color.RGBA{R: 255, G: 255, B: 255}, 2)
}

// gridImage renders an axis-aligned grid, the signature of a frontal
// capture of rectilinear content.
func gridImage() gocv.Mat {
	img := gocv.NewMatWithSize(480, 480, gocv.MatTypeCV8UC3)
	for pos := 40; pos < 480; pos += 60 {
		drawLine(&img, pos, 0, pos, 479)
		drawLine(&img, 0, pos, 479, pos)
	}
	return img
}

// diagonalImage renders only 45-degree strokes; none align with an axis.
func diagonalImage() gocv.Mat {
	img := gocv.NewMatWithSize(480, 480, gocv.MatTypeCV8UC3)
	for off := -400; off < 480; off += 60 {
		drawLine(&img, off, 0, off+479, 479)
	}
	return img
}

func TestClassifyFrontalGrid(t *testing.T) {
	img := gridImage()
	defer img.Close()

	sig, err := Classify(img)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, sig.Segments, minSegments)
	assert.Greater(t, sig.ExactRatio, 0.9)
	assert.True(t, sig.Frontal)
	assert.False(t, NeedsCorrection(img))
}

func TestClassifyDiagonalNeedsCorrection(t *testing.T) {
	img := diagonalImage()
	defer img.Close()

	sig, err := Classify(img)
	require.NoError(t, err)

	// No segment is near an axis, so at most the keypoint-spread
	// indicator fires and the frontal vote cannot carry.
	assert.InDelta(t, 0, sig.ExactRatio, 1e-9)
	assert.InDelta(t, 0, sig.NearRatio, 1e-9)
	assert.False(t, sig.Frontal)
	assert.True(t, NeedsCorrection(img))
}

func TestClassifyEmptyImage(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := Classify(empty)
	assert.Error(t, err)

	// Failure defaults to assuming distortion.
	assert.True(t, NeedsCorrection(empty))
}
