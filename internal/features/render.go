package features

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// matchColors is a palette of highly saturated colors cycled per match.
var matchColors = []color.RGBA{
	{255, 0, 0, 255},   // Red
	{0, 255, 0, 255},   // Green
	{0, 0, 255, 255},   // Blue
	{255, 255, 0, 255}, // Yellow
	{255, 0, 255, 255}, // Magenta
	{0, 255, 255, 255}, // Cyan
	{255, 128, 0, 255}, // Orange
	{128, 0, 255, 255}, // Purple
}

// RenderMatches draws matched keypoint pairs between the master (left) and
// target (right) images side by side, with connector lines. Used for
// diagnostics only; the returned Mat is owned by the caller.
func RenderMatches(master, target gocv.Mat, masterSet, targetSet *Set, matches []Match) gocv.Mat {
	mw, mh := master.Cols(), master.Rows()
	tw, th := target.Cols(), target.Rows()

	h := mh
	if th > h {
		h = th
	}
	canvas := gocv.NewMatWithSize(h, mw+tw, gocv.MatTypeCV8UC3)

	pasteBGR(&canvas, master, 0, 0)
	pasteBGR(&canvas, target, mw, 0)

	for i, m := range matches {
		col := matchColors[i%len(matchColors)]
		mk := masterSet.Keypoints[m.TrainIdx]
		tk := targetSet.Keypoints[m.QueryIdx]
		mp := image.Pt(int(mk.X), int(mk.Y))
		tp := image.Pt(int(tk.X)+mw, int(tk.Y))

		gocv.Circle(&canvas, mp, 4, col, 1)
		gocv.Circle(&canvas, tp, 4, col, 1)
		gocv.Line(&canvas, mp, tp, col, 1)
	}

	return canvas
}

// pasteBGR copies src into dst at the given offset, promoting grayscale
// images to 3 channels first.
func pasteBGR(dst *gocv.Mat, src gocv.Mat, x, y int) {
	bgr := gocv.NewMat()
	defer bgr.Close()
	if src.Channels() == 1 {
		gocv.CvtColor(src, &bgr, gocv.ColorGrayToBGR)
	} else {
		src.CopyTo(&bgr)
	}

	roi := dst.Region(image.Rect(x, y, x+bgr.Cols(), y+bgr.Rows()))
	defer roi.Close()
	bgr.CopyTo(&roi)
}
