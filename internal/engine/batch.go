package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"gocv.io/x/gocv"
)

// Item is one batch input. The image stays owned by the caller.
type Item struct {
	ID    string
	Image gocv.Mat
	// Frontal records the per-image classifier verdict. A frontal capture
	// skips the projective model regardless of the batch configuration.
	Frontal bool
}

// Entry is the per-image outcome of a batch run.
type Entry struct {
	ID        string
	Result    *Result
	Err       error
	FirstRMS  float64
	FinalRMS  float64
	Corrected bool
	Duration  time.Duration
}

// BatchOptions configures a batch run.
type BatchOptions struct {
	Config  Config
	Workers int
	// Ensemble re-aligns every output against the aligned master in a
	// second pass to tighten cross-frame consistency.
	Ensemble bool
}

// BatchRun holds the aligned master (the golden reference) and the
// per-target entries, in input order.
type BatchRun struct {
	Golden  *Result
	Entries []Entry
}

// Close releases all result buffers held by the run.
func (b *BatchRun) Close() {
	if b == nil {
		return
	}
	b.Golden.Close()
	for i := range b.Entries {
		b.Entries[i].Result.Close()
	}
}

// ProcessBatch aligns every item against the master. The master's own
// pass runs first, since every target alignment needs the master geometry
// fixed; targets then run on a worker pool, as no two share mutable
// state. Cancellation is advisory and only observed between images.
// Per-image failures are recorded in the entry, not propagated.
func (e *Engine) ProcessBatch(ctx context.Context, master gocv.Mat, items []Item, opts BatchOptions) (*BatchRun, error) {
	workers := opts.Workers
	if workers < 1 {
		workers = 1
	}

	// The master aligned against itself is frontal by construction.
	goldenCfg := opts.Config
	goldenCfg.SimpleMatchForced = true
	goldenCfg.PerspectiveEnabled = false

	golden, err := e.ProcessImage(master, master, goldenCfg)
	if err != nil {
		return nil, fmt.Errorf("master alignment: %w", err)
	}
	e.log.Info("golden reference established", "rms", golden.RMS)

	entries := make([]Entry, len(items))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				item := items[idx]
				if ctx.Err() != nil {
					entries[idx] = Entry{ID: item.ID, Err: ctx.Err()}
					continue
				}

				start := time.Now()
				result, err := e.ProcessImage(master, item.Image, itemConfig(opts.Config, item))
				entry := Entry{
					ID:       item.ID,
					Result:   result,
					Err:      err,
					Duration: time.Since(start),
				}
				if result != nil {
					entry.FirstRMS = result.RMS
					entry.FinalRMS = result.RMS
				}
				if err != nil {
					e.log.Warn("alignment failed", "image", item.ID, "error", err)
				}
				entries[idx] = entry
			}
		}()
	}

	for idx := range items {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	run := &BatchRun{Golden: golden, Entries: entries}

	if opts.Ensemble && ctx.Err() == nil {
		e.EnsembleCorrect(ctx, run, opts.Config)
	}
	return run, nil
}

// itemConfig derives the per-image configuration: the classifier verdict
// for a single frame overrides the batch-wide perspective setting.
func itemConfig(cfg Config, item Item) Config {
	if item.Frontal {
		cfg.PerspectiveEnabled = false
	}
	return cfg
}
