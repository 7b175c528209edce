// Package compose warps an aligned target into the master frame, pads it
// to a requested aspect ratio, and fills the synthetic border region.
package compose

import (
	"fmt"
	"image"
	"image/color"

	"photo-align/internal/alignment"

	"gocv.io/x/gocv"
)

// BorderPolicy selects how extrapolated border pixels are filled.
type BorderPolicy int

const (
	// BorderMirrorFeather pads with reflected edge pixels and blurs the
	// synthetic region so the seam reads as soft background.
	BorderMirrorFeather BorderPolicy = iota
	// BorderOpaqueBlack pads with solid black, giving a hard
	// content/no-content boundary for an external edge-fill model.
	BorderOpaqueBlack
)

func (p BorderPolicy) String() string {
	switch p {
	case BorderOpaqueBlack:
		return "opaque-black"
	default:
		return "mirror+feather"
	}
}

// ParseBorderPolicy parses a policy name as used in configuration files.
func ParseBorderPolicy(s string) (BorderPolicy, error) {
	switch s {
	case "mirror", "mirror+feather", "feather", "":
		return BorderMirrorFeather, nil
	case "opaque-black", "black":
		return BorderOpaqueBlack, nil
	default:
		return BorderMirrorFeather, fmt.Errorf("unknown border policy %q", s)
	}
}

// Default Gaussian kernel for border feathering.
const defaultFeatherKernel = 35

// Options configures compositing.
type Options struct {
	// AspectW:AspectH is the requested output aspect ratio. Zero values
	// keep the master canvas aspect.
	AspectW int
	AspectH int
	Policy  BorderPolicy
	// FeatherKernel overrides the Gaussian kernel size; 0 uses the
	// default. Must be odd.
	FeatherKernel int
}

// CompositionError indicates a warp/pad size mismatch. It points at an
// invariant violation rather than bad input.
type CompositionError struct {
	Op     string
	Detail string
}

func (e *CompositionError) Error() string {
	return fmt.Sprintf("composition failed at %s: %s", e.Op, e.Detail)
}

// Composite warps the target into the master's canvas using the winning
// transform, pads the result to the requested aspect ratio with symmetric
// padding, and fills the border per the policy. A validity mask warped
// alongside the image separates true content from extrapolated pixels.
func Composite(target gocv.Mat, t alignment.Transform, canvasW, canvasH int, opts Options) (gocv.Mat, error) {
	if target.Empty() || canvasW <= 0 || canvasH <= 0 {
		return gocv.Mat{}, &CompositionError{Op: "warp", Detail: "empty target or degenerate canvas"}
	}

	imgBorder := gocv.BorderConstant
	if opts.Policy == BorderMirrorFeather {
		imgBorder = gocv.BorderReflect101
	}
	warped := alignment.WarpImage(target, t, canvasW, canvasH, imgBorder, color.RGBA{})
	defer warped.Close()

	// The mask is always warped with an opaque-black fill regardless of
	// policy; it marks true content only.
	mask := WarpValidityMask(target.Cols(), target.Rows(), t, canvasW, canvasH)
	defer mask.Close()

	if warped.Cols() != mask.Cols() || warped.Rows() != mask.Rows() {
		return gocv.Mat{}, &CompositionError{
			Op:     "mask",
			Detail: fmt.Sprintf("warp %dx%d vs mask %dx%d", warped.Cols(), warped.Rows(), mask.Cols(), mask.Rows()),
		}
	}

	top, bottom, left, right := PadForAspect(canvasW, canvasH, opts.AspectW, opts.AspectH)

	padded := gocv.NewMat()
	if opts.Policy == BorderOpaqueBlack {
		gocv.CopyMakeBorder(warped, &padded, top, bottom, left, right,
			gocv.BorderConstant, color.RGBA{})
		return padded, nil
	}
	gocv.CopyMakeBorder(warped, &padded, top, bottom, left, right,
		gocv.BorderReflect101, color.RGBA{})

	paddedMask := gocv.NewMat()
	defer paddedMask.Close()
	gocv.CopyMakeBorder(mask, &paddedMask, top, bottom, left, right,
		gocv.BorderConstant, color.RGBA{})

	if err := feather(&padded, paddedMask, opts.FeatherKernel); err != nil {
		padded.Close()
		return gocv.Mat{}, err
	}
	return padded, nil
}

// WarpValidityMask warps an all-255 mask of the target's size through the
// transform with an opaque-black out-of-bounds fill. Non-zero pixels mark
// true content; zero pixels are extrapolated border.
func WarpValidityMask(targetW, targetH int, t alignment.Transform, canvasW, canvasH int) gocv.Mat {
	full := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(255, 255, 255, 255),
		targetH, targetW, gocv.MatTypeCV8U)
	defer full.Close()

	warped := alignment.WarpImage(full, t, canvasW, canvasH, gocv.BorderConstant, color.RGBA{})

	// Interpolation leaves partial values along the content edge; snap
	// the mask back to binary.
	binary := gocv.NewMat()
	gocv.Threshold(warped, &binary, 127, 255, gocv.ThresholdBinary)
	warped.Close()
	return binary
}

// PadForAspect computes symmetric padding that grows the shorter warped
// dimension until the canvas satisfies the requested W:H aspect ratio.
// Rounding may leave a 1px asymmetry.
func PadForAspect(w, h, aspectW, aspectH int) (top, bottom, left, right int) {
	if aspectW <= 0 || aspectH <= 0 {
		return 0, 0, 0, 0
	}

	// Compare w/h against aspectW/aspectH without division.
	if w*aspectH < h*aspectW {
		// Too narrow: pad width.
		targetW := (h*aspectW + aspectH/2) / aspectH
		pad := targetW - w
		if pad < 0 {
			pad = 0
		}
		left = pad / 2
		right = pad - left
		return 0, 0, left, right
	}

	// Too short: pad height.
	targetH := (w*aspectH + aspectW/2) / aspectW
	pad := targetH - h
	if pad < 0 {
		pad = 0
	}
	top = pad / 2
	bottom = pad - top
	return top, bottom, 0, 0
}

// feather blurs a copy of the padded image and composites the blurred
// pixels back in wherever the validity mask is zero. True content stays
// sharp; the synthetic border becomes a soft blur instead of a hard seam.
func feather(padded *gocv.Mat, paddedMask gocv.Mat, kernel int) error {
	if kernel <= 0 {
		kernel = defaultFeatherKernel
	}
	if kernel%2 == 0 {
		kernel++
	}

	if padded.Cols() != paddedMask.Cols() || padded.Rows() != paddedMask.Rows() {
		return &CompositionError{
			Op:     "feather",
			Detail: fmt.Sprintf("image %dx%d vs mask %dx%d", padded.Cols(), padded.Rows(), paddedMask.Cols(), paddedMask.Rows()),
		}
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(*padded, &blurred, image.Pt(kernel, kernel), 0, 0, gocv.BorderDefault)

	borderMask := gocv.NewMat()
	defer borderMask.Close()
	gocv.BitwiseNot(paddedMask, &borderMask)

	blurred.CopyToWithMask(padded, borderMask)
	return nil
}
