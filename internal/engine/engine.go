// Package engine wires feature extraction, candidate selection, and
// compositing into the per-image alignment entry point.
package engine

import (
	"fmt"
	"log/slog"

	"photo-align/internal/alignment"
	"photo-align/internal/compose"
	"photo-align/internal/features"

	"gocv.io/x/gocv"
)

// Config is the per-image processing configuration handed in by the
// caller.
type Config struct {
	Mode               features.Mode
	RefinementEnabled  bool
	PerspectiveEnabled bool
	SimpleMatchForced  bool
	// AspectW:AspectH is the output aspect ratio; zero keeps the master's.
	AspectW int
	AspectH int
	Border  compose.BorderPolicy
	// FeatherKernel overrides the border blur kernel; 0 uses the default.
	FeatherKernel int
}

// DefaultConfig returns the standard strict-mode configuration.
func DefaultConfig() Config {
	return Config{
		Mode:               features.ModeStrict,
		RefinementEnabled:  true,
		PerspectiveEnabled: true,
		Border:             compose.BorderMirrorFeather,
	}
}

// Result is one aligned image: the winning transform, the composited
// output, and a debug visualization of the matched keypoints.
type Result struct {
	Transform alignment.Transform
	Kind      alignment.Kind
	Output    gocv.Mat
	Debug     gocv.Mat
	RMS       float64
	Matches   int
}

// Close releases the native image buffers.
func (r *Result) Close() {
	if r == nil {
		return
	}
	r.Output.Close()
	r.Debug.Close()
}

// Engine runs alignments. Constructing one verifies that the native vision
// library is usable, so callers hold an explicit readiness handle instead
// of polling global state.
type Engine struct {
	log *slog.Logger
}

// New creates an Engine, probing the native library once with a real call:
// a uniform BGR patch converted to grayscale must come back the same size
// and value. Equal channels weight to the same luminance, so any deviation
// means the native conversion path is broken.
func New(log *slog.Logger) (*Engine, error) {
	probe := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(120, 120, 120, 0),
		8, 8, gocv.MatTypeCV8UC3)
	defer probe.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(probe, &gray, gocv.ColorBGRToGray)

	if gray.Empty() || gray.Rows() != 8 || gray.Cols() != 8 ||
		gray.Channels() != 1 || gray.GetUCharAt(0, 0) != 120 {
		return nil, fmt.Errorf("native vision library unavailable")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{log: log}, nil
}

// ProcessImage aligns target onto master and composites the result.
// Both inputs stay owned by the caller. The returned Result owns its
// output Mats and must be closed.
func (e *Engine) ProcessImage(master, target gocv.Mat, cfg Config) (*Result, error) {
	masterSet, err := features.Extract(master)
	if err != nil {
		return nil, fmt.Errorf("master features: %w", err)
	}
	defer masterSet.Close()

	targetSet, err := features.Extract(target)
	if err != nil {
		return nil, fmt.Errorf("target features: %w", err)
	}
	defer targetSet.Close()

	candidate, err := alignment.SelectBest(target, targetSet, masterSet, alignment.SelectOptions{
		Mode:               cfg.Mode,
		RefinementEnabled:  cfg.RefinementEnabled,
		PerspectiveEnabled: cfg.PerspectiveEnabled,
		SimpleMatchForced:  cfg.SimpleMatchForced,
	})
	if err != nil {
		return nil, err
	}

	e.log.Debug("candidate selected",
		"model", candidate.Kind.String(),
		"matches", len(candidate.Matches),
		"rms", candidate.RMS)

	output, err := compose.Composite(target, candidate.Transform, master.Cols(), master.Rows(), compose.Options{
		AspectW:       cfg.AspectW,
		AspectH:       cfg.AspectH,
		Policy:        cfg.Border,
		FeatherKernel: cfg.FeatherKernel,
	})
	if err != nil {
		return nil, err
	}

	debug := features.RenderMatches(master, target, masterSet, targetSet, candidate.Matches)

	return &Result{
		Transform: candidate.Transform,
		Kind:      candidate.Kind,
		Output:    output,
		Debug:     debug,
		RMS:       candidate.RMS,
		Matches:   len(candidate.Matches),
	}, nil
}
