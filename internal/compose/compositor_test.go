package compose

import (
	"image"
	"testing"

	"photo-align/internal/alignment"
	"photo-align/pkg/geometry"

	"gocv.io/x/gocv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPadForAspect(t *testing.T) {
	cases := []struct {
		name                     string
		w, h, aw, ah             int
		top, bottom, left, right int
	}{
		{"no aspect requested", 100, 80, 0, 0, 0, 0, 0, 0},
		{"already matches", 160, 90, 16, 9, 0, 0, 0, 0},
		{"pad width evenly", 100, 100, 3, 2, 0, 0, 25, 25},
		{"pad height evenly", 100, 40, 16, 9, 8, 8, 0, 0},
		{"odd pad leans bottom", 100, 99, 1, 1, 0, 1, 0, 0},
		{"odd pad leans right", 99, 100, 1, 1, 0, 0, 0, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			top, bottom, left, right := PadForAspect(c.w, c.h, c.aw, c.ah)
			assert.Equal(t, c.top, top)
			assert.Equal(t, c.bottom, bottom)
			assert.Equal(t, c.left, left)
			assert.Equal(t, c.right, right)
		})
	}
}

func TestParseBorderPolicy(t *testing.T) {
	for _, s := range []string{"mirror", "mirror+feather", "feather", ""} {
		p, err := ParseBorderPolicy(s)
		require.NoError(t, err)
		assert.Equal(t, BorderMirrorFeather, p)
	}
	p, err := ParseBorderPolicy("opaque-black")
	require.NoError(t, err)
	assert.Equal(t, BorderOpaqueBlack, p)

	_, err = ParseBorderPolicy("transparent")
	assert.Error(t, err)
}

func shiftRight20() alignment.Transform {
	return alignment.NewAffineTransform(alignment.KindSimilarity, geometry.Translation(20, 0))
}

func TestWarpValidityMaskIsBinary(t *testing.T) {
	mask := WarpValidityMask(100, 80, shiftRight20(), 100, 80)
	defer mask.Close()

	require.Equal(t, 100, mask.Cols())
	require.Equal(t, 80, mask.Rows())

	// Columns left of the shifted content have no source pixels.
	assert.Equal(t, uint8(0), mask.GetUCharAt(40, 5))
	assert.Equal(t, uint8(0), mask.GetUCharAt(40, 15))
	assert.Equal(t, uint8(255), mask.GetUCharAt(40, 30))
	assert.Equal(t, uint8(255), mask.GetUCharAt(40, 95))
}

// twoTone builds a BGR image whose left half is dark gray and right half is
// light gray, so content and extrapolated border are distinguishable.
func twoTone(w, h int) gocv.Mat {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(50, 50, 50, 0),
		h, w, gocv.MatTypeCV8UC3)
	right := img.Region(image.Rect(w/2, 0, w, h))
	right.SetTo(gocv.NewScalar(200, 200, 200, 0))
	right.Close()
	return img
}

func TestCompositeOpaqueBlackBorder(t *testing.T) {
	target := twoTone(100, 80)
	defer target.Close()

	out, err := Composite(target, shiftRight20(), 100, 80, Options{Policy: BorderOpaqueBlack})
	require.NoError(t, err)
	defer out.Close()

	require.Equal(t, 100, out.Cols())
	require.Equal(t, 80, out.Rows())

	// Border region is pure black, content keeps its source values.
	border := out.GetVecbAt(40, 5)
	assert.Equal(t, uint8(0), border[0])
	assert.Equal(t, uint8(0), border[1])
	assert.Equal(t, uint8(0), border[2])

	dark := out.GetVecbAt(40, 40) // source x=20, left half
	assert.Equal(t, uint8(50), dark[0])
	light := out.GetVecbAt(40, 90) // source x=70, right half
	assert.Equal(t, uint8(200), light[0])
}

func TestCompositeMirrorFeatherKeepsContentSharp(t *testing.T) {
	target := twoTone(100, 80)
	defer target.Close()

	out, err := Composite(target, shiftRight20(), 100, 80, Options{Policy: BorderMirrorFeather})
	require.NoError(t, err)
	defer out.Close()

	// True content pixels pass through untouched even though the border
	// was blurred.
	dark := out.GetVecbAt(40, 40)
	assert.Equal(t, uint8(50), dark[0])
	light := out.GetVecbAt(40, 90)
	assert.Equal(t, uint8(200), light[0])

	// The synthetic border mirrors the dark half, so it is neither black
	// nor untouched content.
	border := out.GetVecbAt(40, 5)
	assert.InDelta(t, 50, float64(border[0]), 10)
	assert.NotEqual(t, uint8(0), border[0])
}

func TestCompositePadsToAspect(t *testing.T) {
	target := twoTone(100, 80)
	defer target.Close()

	out, err := Composite(target, alignment.IdentityTransform(), 100, 80, Options{
		AspectW: 1, AspectH: 1, Policy: BorderOpaqueBlack,
	})
	require.NoError(t, err)
	defer out.Close()

	assert.Equal(t, 100, out.Cols())
	assert.Equal(t, 100, out.Rows())

	// Padding added by the opaque policy is black.
	pad := out.GetVecbAt(2, 50)
	assert.Equal(t, uint8(0), pad[0])
}

func TestCompositeRejectsEmptyTarget(t *testing.T) {
	empty := gocv.NewMat()
	defer empty.Close()

	_, err := Composite(empty, alignment.IdentityTransform(), 100, 80, Options{})
	require.Error(t, err)

	var cerr *CompositionError
	assert.ErrorAs(t, err, &cerr)
}
