// Command aligntest runs a single master/target alignment and prints results.
package main

import (
	"errors"
	"flag"
	"fmt"
	"math"
	"os"

	"photo-align/internal/alignment"
	"photo-align/internal/engine"
	"photo-align/internal/features"
	"photo-align/internal/imgio"
	"photo-align/internal/logging"
)

func main() {
	masterPath := flag.String("m", "", "Path to master image")
	targetPath := flag.String("t", "", "Path to target image")
	greedy := flag.Bool("greedy", false, "Use greedy (permissive) matching")
	noPerspective := flag.Bool("no-perspective", false, "Disable the projective model")
	noRefine := flag.Bool("no-refine", false, "Disable the refinement pass")
	debugOut := flag.String("debug", "", "Write match visualization to this path")
	outPath := flag.String("o", "", "Write composited output to this path")
	flag.Parse()

	if *masterPath == "" || *targetPath == "" {
		fmt.Println("Usage: aligntest -m <master> -t <target> [-greedy] [-no-perspective] [-o <out>]")
		os.Exit(1)
	}

	log := logging.New("debug", "text")
	eng, err := engine.New(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Engine init failed: %v\n", err)
		os.Exit(1)
	}

	master, err := imgio.Load(*masterPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load master: %v\n", err)
		os.Exit(1)
	}
	defer master.Close()

	target, err := imgio.Load(*targetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load target: %v\n", err)
		os.Exit(1)
	}
	defer target.Close()

	cfg := engine.DefaultConfig()
	if *greedy {
		cfg.Mode = features.ModeGreedy
	}
	cfg.PerspectiveEnabled = !*noPerspective
	cfg.RefinementEnabled = !*noRefine

	result, err := eng.ProcessImage(master, target, cfg)
	if err != nil {
		var insufficient *features.InsufficientMatchesError
		if errors.As(err, &insufficient) && !*greedy {
			fmt.Fprintf(os.Stderr, "Alignment failed: %v (retry with -greedy)\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Alignment failed: %v\n", err)
		}
		os.Exit(1)
	}
	defer result.Close()

	fmt.Printf("=== Alignment result ===\n")
	fmt.Printf("Model: %s\n", result.Kind)
	fmt.Printf("Matches: %d\n", result.Matches)
	fmt.Printf("RMS error: %.2f px\n", result.RMS)
	printTransform(result.Transform)

	if *outPath != "" {
		if err := imgio.Save(*outPath, result.Output); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save output: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Output written to %s\n", *outPath)
	}
	if *debugOut != "" {
		if err := imgio.Save(*debugOut, result.Debug); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save debug image: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Match visualization written to %s\n", *debugOut)
	}
}

func printTransform(t alignment.Transform) {
	if t.Kind == alignment.KindProjective {
		h := t.Homog
		fmt.Printf("Homography:\n")
		for i := 0; i < 3; i++ {
			fmt.Printf("  [%9.4f %9.4f %12.4f]\n", h[i][0], h[i][1], h[i][2])
		}
		return
	}

	a := t.Affine
	angle := a.RotationAngle() * 180 / math.Pi
	sx, sy := a.ScaleFactors()
	fmt.Printf("Rotation: %.4f°\n", angle)
	fmt.Printf("Scale: %.6f x %.6f\n", sx, sy)
	fmt.Printf("Translation: (%.1f, %.1f)\n", a.TX, a.TY)
}
