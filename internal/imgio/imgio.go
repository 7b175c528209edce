// Package imgio loads and saves raster images, bridging Go image files and
// the native Mat buffers the engine works on.
package imgio

import (
	"fmt"
	_ "image/jpeg"
	_ "image/png"

	"github.com/disintegration/imaging"
	"gocv.io/x/gocv"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
)

// Load reads an image file into a BGR Mat. The caller owns the Mat.
func Load(path string) (gocv.Mat, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("open %s: %w", path, err)
	}

	rgb, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, fmt.Errorf("convert %s: %w", path, err)
	}
	defer rgb.Close()

	bgr := gocv.NewMat()
	gocv.CvtColor(rgb, &bgr, gocv.ColorRGBToBGR)
	return bgr, nil
}

// Save writes a BGR Mat to disk; the format follows the file extension.
func Save(path string, img gocv.Mat) error {
	if !gocv.IMWrite(path, img) {
		return fmt.Errorf("write %s failed", path)
	}
	return nil
}

// SavePreview writes a downscaled copy, capped at maxDim on the longer
// side. Used for debug visualizations that would otherwise be huge.
func SavePreview(path string, img gocv.Mat, maxDim int) error {
	goImg, err := img.ToImage()
	if err != nil {
		return fmt.Errorf("convert preview: %w", err)
	}

	bounds := goImg.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w > maxDim || h > maxDim {
		if w >= h {
			goImg = imaging.Resize(goImg, maxDim, 0, imaging.Lanczos)
		} else {
			goImg = imaging.Resize(goImg, 0, maxDim, imaging.Lanczos)
		}
	}

	if err := imaging.Save(goImg, path); err != nil {
		return fmt.Errorf("save preview %s: %w", path, err)
	}
	return nil
}
