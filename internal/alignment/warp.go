package alignment

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// WarpImage warps src into a width x height canvas using the transform.
// Projective transforms get a full perspective warp; similarity and affine
// kinds use an affine warp. Out-of-bounds pixels are filled according to
// the border type and value.
func WarpImage(src gocv.Mat, t Transform, width, height int, border gocv.BorderType, value color.RGBA) gocv.Mat {
	dst := gocv.NewMat()

	if t.Kind == KindProjective {
		m := homographyToMat(t)
		defer m.Close()
		gocv.WarpPerspectiveWithParams(src, &dst, m, image.Pt(width, height),
			gocv.InterpolationLinear, border, value)
		return dst
	}

	m := affineToMat(t)
	defer m.Close()
	gocv.WarpAffineWithParams(src, &dst, m, image.Pt(width, height),
		gocv.InterpolationLinear, border, value)
	return dst
}

// affineToMat builds a 2x3 CV64F matrix for gocv from an affine transform.
func affineToMat(t Transform) gocv.Mat {
	m := gocv.NewMatWithSize(2, 3, gocv.MatTypeCV64F)
	m.SetDoubleAt(0, 0, t.Affine.A)
	m.SetDoubleAt(0, 1, t.Affine.B)
	m.SetDoubleAt(0, 2, t.Affine.TX)
	m.SetDoubleAt(1, 0, t.Affine.C)
	m.SetDoubleAt(1, 1, t.Affine.D)
	m.SetDoubleAt(1, 2, t.Affine.TY)
	return m
}

// homographyToMat builds a 3x3 CV64F matrix for gocv from a homography.
func homographyToMat(t Transform) gocv.Mat {
	m := gocv.NewMatWithSize(3, 3, gocv.MatTypeCV64F)
	h := t.Homog
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.SetDoubleAt(i, j, h[i][j])
		}
	}
	return m
}
