package engine

import (
	"context"

	"gocv.io/x/gocv"

	"photo-align/internal/alignment"
	"photo-align/internal/compose"
	"photo-align/internal/features"
)

// EnsembleCorrect re-aligns every processed output against the aligned
// master (the golden reference). The golden output has already absorbed
// the master's own geometric normalization, so a second affine pass
// against it removes residual per-frame drift that aligning against the
// raw master leaves behind. Individual failures keep that file's
// pre-correction result; the batch never aborts here.
func (e *Engine) EnsembleCorrect(ctx context.Context, run *BatchRun, cfg Config) {
	goldenSet, err := features.Extract(run.Golden.Output)
	if err != nil {
		e.log.Warn("ensemble pass skipped", "error", err)
		return
	}
	defer goldenSet.Close()

	canvasW := run.Golden.Output.Cols()
	canvasH := run.Golden.Output.Rows()

	for i := range run.Entries {
		if ctx.Err() != nil {
			return
		}
		entry := &run.Entries[i]
		if entry.Err != nil || entry.Result == nil {
			continue
		}

		corrected, rms, ok := e.correctAgainstGolden(goldenSet, entry, canvasW, canvasH, cfg)
		if !ok {
			continue
		}

		entry.Result.Output.Close()
		entry.Result.Output = corrected
		entry.FinalRMS = rms
		entry.Corrected = true
		e.log.Debug("ensemble corrected", "image", entry.ID,
			"first_rms", entry.FirstRMS, "final_rms", rms)
	}
}

// correctAgainstGolden runs the affine estimator+refiner path between the
// golden reference and one output, then composites again. Returns ok=false
// on any failure so the caller keeps the first-pass result.
func (e *Engine) correctAgainstGolden(goldenSet *features.Set, entry *Entry, canvasW, canvasH int, cfg Config) (corrected gocv.Mat, rms float64, ok bool) {
	output := entry.Result.Output

	outputSet, err := features.Extract(output)
	if err != nil {
		return gocv.Mat{}, 0, false
	}
	defer outputSet.Close()

	matches, err := features.MatchSets(outputSet, goldenSet, features.ModeRobust)
	if err != nil {
		return gocv.Mat{}, 0, false
	}
	matches = features.FilterCentered(matches, outputSet, features.ModeRobust)

	src, dst := features.MatchedPoints(matches, outputSet, goldenSet)
	transform, _, err := alignment.Estimate(alignment.KindAffine, src, dst, true)
	if err != nil {
		return gocv.Mat{}, 0, false
	}

	refined, err := alignment.Refine(goldenSet, output, transform, alignment.KindAffine, true)
	if err != nil {
		return gocv.Mat{}, 0, false
	}
	rms = alignment.RMSError(refined, src, dst)

	// The output already satisfies the requested aspect; only the drift
	// correction is applied here.
	result, err := compose.Composite(output, refined, canvasW, canvasH, compose.Options{
		Policy:        cfg.Border,
		FeatherKernel: cfg.FeatherKernel,
	})
	if err != nil {
		return gocv.Mat{}, 0, false
	}
	return result, rms, true
}
