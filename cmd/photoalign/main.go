// Command photoalign aligns a batch of photos onto a master image so a
// logo or product holds the same position, scale, and perspective across
// every frame.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"photo-align/internal/compose"
	"photo-align/internal/config"
	"photo-align/internal/engine"
	"photo-align/internal/features"
	"photo-align/internal/imgio"
	"photo-align/internal/logging"
	"photo-align/internal/perspective"
	"photo-align/internal/report"
	"photo-align/internal/version"

	"github.com/spf13/cobra"
	"gocv.io/x/gocv"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath string

	rootCmd := &cobra.Command{
		Use:   "photoalign",
		Short: "photoalign registers batches of photos onto a master frame",
		Long: `photoalign detects features in a master photo and in each target photo,
estimates the best-fitting geometric transform, and composites every
target into the master's frame for timelapse and compositing work.`,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (yaml)")

	rootCmd.AddCommand(newRunCmd(&cfgPath))
	rootCmd.AddCommand(newClassifyCmd())
	rootCmd.AddCommand(newVersionCmd())
	return rootCmd
}

func newRunCmd(cfgPath *string) *cobra.Command {
	var (
		masterPath string
		outDir     string
		debugDir   string
	)

	cmd := &cobra.Command{
		Use:   "run [targets...]",
		Short: "Align a batch of target images against a master",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*cfgPath)
			if err != nil {
				return err
			}
			log := logging.New(cfg.Logging.Level, cfg.Logging.Format)
			return runBatch(cmd, log, cfg, masterPath, outDir, debugDir, args)
		},
	}
	cmd.Flags().StringVarP(&masterPath, "master", "m", "", "master image path")
	cmd.Flags().StringVarP(&outDir, "out", "o", "aligned", "output directory")
	cmd.Flags().StringVar(&debugDir, "debug-dir", "", "write match visualizations here")
	cmd.MarkFlagRequired("master")
	return cmd
}

func runBatch(cmd *cobra.Command, log *slog.Logger, cfg *config.Config, masterPath, outDir, debugDir string, targets []string) error {
	mode, err := features.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}
	border, err := compose.ParseBorderPolicy(cfg.Border)
	if err != nil {
		return err
	}
	aspectW, aspectH, err := cfg.ParseAspect()
	if err != nil {
		return err
	}

	eng, err := engine.New(log)
	if err != nil {
		return err
	}

	master, err := imgio.Load(masterPath)
	if err != nil {
		return err
	}
	defer master.Close()

	items := make([]engine.Item, 0, len(targets))
	defer func() {
		for _, it := range items {
			it.Image.Close()
		}
	}()
	for _, path := range targets {
		img, err := imgio.Load(path)
		if err != nil {
			return err
		}
		items = append(items, engine.Item{ID: path, Image: img})
	}

	engCfg := engine.Config{
		Mode:               mode,
		RefinementEnabled:  cfg.Refinement,
		PerspectiveEnabled: cfg.Perspective,
		SimpleMatchForced:  cfg.SimpleMatch,
		AspectW:            aspectW,
		AspectH:            aspectH,
		Border:             border,
		FeatherKernel:      cfg.Feather,
	}

	// The classifier runs once per image, before the batch; a frontal
	// capture skips the projective model for that image only.
	if cfg.Perspective {
		frontal := 0
		for i := range items {
			items[i].Frontal = !perspective.NeedsCorrection(items[i].Image)
			if items[i].Frontal {
				frontal++
				log.Debug("classified frontal", "image", items[i].ID)
			}
		}
		log.Info("perspective classification done",
			"frontal", frontal, "distorted", len(items)-frontal)
	}

	var store *report.Store
	var runID int64
	if cfg.Report != "" {
		store, err = report.Open(cfg.Report)
		if err != nil {
			return err
		}
		defer store.Close()
		if runID, err = store.StartRun(masterPath, cfg.Workers); err != nil {
			return err
		}
	}

	run, err := eng.ProcessBatch(cmd.Context(), master, items, engine.BatchOptions{
		Config:   engCfg,
		Workers:  cfg.Workers,
		Ensemble: cfg.Ensemble,
	})
	if err != nil {
		return err
	}
	defer run.Close()

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}

	okCount := 0
	for _, entry := range run.Entries {
		rec := report.ImageRecord{Image: entry.ID, Duration: entry.Duration}
		if entry.Err != nil {
			rec.Status = "failed"
			rec.Error = entry.Err.Error()
			log.Error("image failed", "image", entry.ID, "error", entry.Err)
		} else {
			rec.Status = "ok"
			rec.Model = entry.Result.Kind.String()
			rec.Matches = entry.Result.Matches
			rec.RMSFirst = entry.FirstRMS
			rec.RMSFinal = entry.FinalRMS
			rec.Corrected = entry.Corrected

			name := filepath.Base(entry.ID)
			if err := imgio.Save(filepath.Join(outDir, name), entry.Result.Output); err != nil {
				return err
			}
			if debugDir != "" {
				if err := os.MkdirAll(debugDir, 0o755); err != nil {
					return err
				}
				if err := imgio.SavePreview(filepath.Join(debugDir, name), entry.Result.Debug, 2000); err != nil {
					log.Warn("debug preview failed", "image", entry.ID, "error", err)
				}
			}
			okCount++
		}
		if store != nil {
			if err := store.RecordImage(runID, rec); err != nil {
				log.Warn("report write failed", "image", entry.ID, "error", err)
			}
		}
	}
	if store != nil {
		if err := store.FinishRun(runID); err != nil {
			log.Warn("report finish failed", "error", err)
		}
	}

	log.Info("batch complete", "ok", okCount, "failed", len(run.Entries)-okCount)
	return nil
}

func newClassifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "classify [images...]",
		Short: "Report whether images look frontal or perspective-distorted",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, path := range args {
				img, err := imgio.Load(path)
				if err != nil {
					return err
				}
				printClassification(path, img)
				img.Close()
			}
			return nil
		},
	}
}

func printClassification(path string, img gocv.Mat) {
	sig, err := perspective.Classify(img)
	if err != nil {
		fmt.Printf("%s: classification failed (%v), assuming perspective\n", path, err)
		return
	}
	verdict := "perspective"
	if sig.Frontal {
		verdict = "frontal"
	}
	fmt.Printf("%s: %s (segments=%d exact=%.2f near=%.2f spread=%.2f strong=%d moderate=%d)\n",
		path, verdict, sig.Segments, sig.ExactRatio, sig.NearRatio, sig.QuadrantCV, sig.Strong, sig.Moderate)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("photoalign %s (commit %s, built %s)\n",
				version.Version, version.GitCommit, version.BuildTime)
		},
	}
}
