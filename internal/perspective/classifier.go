// Package perspective decides heuristically whether an image is a frontal
// capture or needs perspective correction before alignment.
package perspective

import (
	"fmt"
	"math"

	"photo-align/internal/features"

	"gocv.io/x/gocv"
)

// Angle tolerances for bucketing line segments against the horizontal and
// vertical axes.
const (
	exactAngleTolDeg = 5.0
	nearAngleTolDeg  = 15.0
)

// Thresholds for turning raw measurements into indicators.
const (
	exactRatioStrong   = 0.65
	exactRatioModerate = 0.45
	axisRatioStrong    = 0.80
	axisRatioModerate  = 0.60
	spreadCVStrong     = 0.35
	spreadCVModerate   = 0.60
	minSegments        = 8
)

// Signals holds the raw measurements the classifier combines. Exposed for
// diagnostics.
type Signals struct {
	Segments   int
	ExactRatio float64 // segments within ±5° of an axis
	NearRatio  float64 // segments within ±15° of an axis
	QuadrantCV float64 // coefficient of variation of keypoint density across quadrants
	Strong     int
	Moderate   int
	Frontal    bool
}

// NeedsCorrection reports whether the image appears perspective-distorted.
// Any internal failure defaults to true; assuming distortion is the safer
// call.
func NeedsCorrection(img gocv.Mat) bool {
	sig, err := Classify(img)
	if err != nil {
		return true
	}
	return !sig.Frontal
}

// Classify measures straight-segment axis alignment and keypoint spread,
// and votes the image frontal when two or more strong indicators (or three
// or more moderate ones) fire.
func Classify(img gocv.Mat) (*Signals, error) {
	if img.Empty() {
		return nil, fmt.Errorf("empty image")
	}

	sig := &Signals{}

	exact, near, total, err := segmentAngles(img)
	if err != nil {
		return nil, err
	}
	sig.Segments = total

	if total >= minSegments {
		sig.ExactRatio = float64(exact) / float64(total)
		sig.NearRatio = float64(exact+near) / float64(total)

		switch {
		case sig.ExactRatio >= exactRatioStrong:
			sig.Strong++
		case sig.ExactRatio >= exactRatioModerate:
			sig.Moderate++
		}
		switch {
		case sig.NearRatio >= axisRatioStrong:
			sig.Strong++
		case sig.NearRatio >= axisRatioModerate:
			sig.Moderate++
		}
	}

	cv, err := quadrantSpread(img)
	if err == nil {
		sig.QuadrantCV = cv
		switch {
		case cv <= spreadCVStrong:
			sig.Strong++
		case cv <= spreadCVModerate:
			sig.Moderate++
		}
	}

	// Strong indicators also count toward the moderate tally.
	sig.Frontal = sig.Strong >= 2 || sig.Strong+sig.Moderate >= 3
	return sig, nil
}

// segmentAngles detects straight segments with Canny + probabilistic Hough
// and buckets their angles into exact/near axis alignment.
func segmentAngles(img gocv.Mat) (exact, near, total int, err error) {
	gray := gocv.NewMat()
	defer gray.Close()
	if img.Channels() >= 3 {
		gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	} else {
		img.CopyTo(&gray)
	}

	edges := gocv.NewMat()
	defer edges.Close()
	gocv.Canny(gray, &edges, 50, 150)

	minDim := img.Cols()
	if img.Rows() < minDim {
		minDim = img.Rows()
	}
	minLen := float32(minDim) / 8
	if minLen < 20 {
		minLen = 20
	}

	lines := gocv.NewMat()
	defer lines.Close()
	gocv.HoughLinesPWithParams(edges, &lines, 1, math.Pi/180, 50, minLen, 10)

	for i := 0; i < lines.Rows(); i++ {
		seg := lines.GetVeciAt(i, 0)
		if len(seg) < 4 {
			continue
		}
		dx := float64(seg[2] - seg[0])
		dy := float64(seg[3] - seg[1])
		if dx == 0 && dy == 0 {
			continue
		}
		total++

		angle := math.Abs(math.Atan2(dy, dx)) * 180 / math.Pi // 0..180
		// Distance to the nearest horizontal/vertical axis.
		dev := math.Min(angle, math.Min(math.Abs(angle-90), math.Abs(angle-180)))
		switch {
		case dev <= exactAngleTolDeg:
			exact++
		case dev <= nearAngleTolDeg:
			near++
		}
	}
	return exact, near, total, nil
}

// quadrantSpread extracts keypoints and returns the coefficient of
// variation of their counts across the four image quadrants. Frontal
// captures of a centered subject distribute features evenly; oblique ones
// pile them into the near quadrants.
func quadrantSpread(img gocv.Mat) (float64, error) {
	set, err := features.Extract(img)
	if err != nil {
		return 0, err
	}
	defer set.Close()

	midX := float64(img.Cols()) / 2
	midY := float64(img.Rows()) / 2

	var counts [4]float64
	for _, kp := range set.Keypoints {
		q := 0
		if kp.X >= midX {
			q++
		}
		if kp.Y >= midY {
			q += 2
		}
		counts[q]++
	}

	mean := float64(len(set.Keypoints)) / 4
	if mean == 0 {
		return 0, fmt.Errorf("no keypoints")
	}
	var variance float64
	for _, c := range counts {
		d := c - mean
		variance += d * d
	}
	variance /= 4
	return math.Sqrt(variance) / mean, nil
}
