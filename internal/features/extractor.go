// Package features extracts keypoints and binary descriptors from images
// and matches them between a target and a reference image.
package features

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// Local-contrast equalization parameters. Applied before detection so that
// feature response stays stable under varying exposure between shots.
const (
	claheClipLimit = 2.0
	claheTileGrid  = 8
)

// Set holds the keypoints and descriptors extracted from one image.
// Descriptors are index-aligned with Keypoints. The caller owns the
// descriptor Mat and must Close the set when done.
type Set struct {
	Keypoints   []gocv.KeyPoint
	Descriptors gocv.Mat
	Bounds      image.Point // source image size (width, height)
}

// Close releases the native descriptor buffer.
func (s *Set) Close() {
	if s != nil {
		s.Descriptors.Close()
	}
}

// ExtractionError indicates that no descriptors could be produced from an
// image (blank or degenerate input). Fatal for that image only.
type ExtractionError struct {
	Width  int
	Height int
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("no feature descriptors found in %dx%d image", e.Width, e.Height)
}

// Extract converts an image to a keypoint+descriptor set: single-channel
// luminance, local adaptive histogram equalization, then an AKAZE detector.
func Extract(img gocv.Mat) (*Set, error) {
	if img.Empty() {
		return nil, &ExtractionError{}
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() >= 3 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	clahe := gocv.NewCLAHEWithParams(claheClipLimit, image.Pt(claheTileGrid, claheTileGrid))
	defer clahe.Close()

	equalized := gocv.NewMat()
	defer equalized.Close()
	clahe.Apply(gray, &equalized)

	akaze := gocv.NewAKAZE()
	defer akaze.Close()

	mask := gocv.NewMat()
	defer mask.Close()

	keypoints, descriptors := akaze.DetectAndCompute(equalized, mask)
	if len(keypoints) == 0 || descriptors.Empty() {
		descriptors.Close()
		return nil, &ExtractionError{Width: img.Cols(), Height: img.Rows()}
	}

	return &Set{
		Keypoints:   keypoints,
		Descriptors: descriptors,
		Bounds:      image.Pt(img.Cols(), img.Rows()),
	}, nil
}
