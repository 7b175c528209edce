package features

import (
	"fmt"
	"sort"

	"photo-align/pkg/geometry"

	"gocv.io/x/gocv"
)

// Mode controls how permissive descriptor matching is.
type Mode int

const (
	// ModeGreedy accepts ambiguous matches; used as a retry when strict
	// matching leaves too few correspondences.
	ModeGreedy Mode = iota
	// ModeStrict is the default matching mode.
	ModeStrict
	// ModeRobust is the partial/robust path used during refinement and
	// ensemble correction.
	ModeRobust
)

func (m Mode) String() string {
	switch m {
	case ModeGreedy:
		return "greedy"
	case ModeStrict:
		return "strict"
	case ModeRobust:
		return "robust"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name as used in configuration files.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "greedy":
		return ModeGreedy, nil
	case "strict", "":
		return ModeStrict, nil
	case "robust":
		return ModeRobust, nil
	default:
		return ModeStrict, fmt.Errorf("unknown match mode %q", s)
	}
}

// Ratio returns the Lowe ratio-test threshold for this mode.
func (m Mode) Ratio() float64 {
	switch m {
	case ModeGreedy:
		return 0.85
	case ModeRobust:
		return 0.80
	default:
		return 0.75
	}
}

// Floor returns the minimum number of surviving matches for this mode.
func (m Mode) Floor() int {
	switch m {
	case ModeGreedy:
		return 4
	case ModeRobust:
		return 10
	default:
		return 8
	}
}

// Match pairs a target (query) keypoint index with a master (train)
// keypoint index. A match is only produced if it survived the ratio test.
type Match struct {
	QueryIdx int
	TrainIdx int
	Distance float64
}

// InsufficientMatchesError reports that too few matches survived the ratio
// test. Carries the counts so callers can suggest a greedy-mode retry.
type InsufficientMatchesError struct {
	Got  int
	Need int
	Mode Mode
}

func (e *InsufficientMatchesError) Error() string {
	return fmt.Sprintf("only %d of %d required matches survived the ratio test (%s mode)",
		e.Got, e.Need, e.Mode)
}

// MatchSets finds good correspondences from query (target) descriptors to
// train (master) descriptors. For every query descriptor the two nearest
// train descriptors are found by Hamming distance, and the match is kept
// only if the best is markedly closer than the second best.
func MatchSets(query, train *Set, mode Mode) ([]Match, error) {
	matcher := gocv.NewBFMatcherWithParams(gocv.NormHamming, false)
	defer matcher.Close()

	knn := matcher.KnnMatch(query.Descriptors, train.Descriptors, 2)

	ratio := mode.Ratio()
	var good []Match
	for _, m := range knn {
		if len(m) < 2 {
			continue
		}
		if float64(m[0].Distance) < ratio*float64(m[1].Distance) {
			good = append(good, Match{
				QueryIdx: m[0].QueryIdx,
				TrainIdx: m[0].TrainIdx,
				Distance: float64(m[0].Distance),
			})
		}
	}

	sort.Slice(good, func(i, j int) bool {
		return good[i].Distance < good[j].Distance
	})

	if len(good) < mode.Floor() {
		return nil, &InsufficientMatchesError{Got: len(good), Need: mode.Floor(), Mode: mode}
	}
	return good, nil
}

// FilterCentered applies center-weighted filtering: when matches are
// plentiful, keep the cluster nearest the target image center. This
// disambiguates frames where the reference logo appears more than once,
// assuming the photographer centered the intended instance.
func FilterCentered(matches []Match, query *Set, mode Mode) []Match {
	floor := mode.Floor()
	if len(matches) <= floor*3/2 {
		return matches
	}

	frame := geometry.NewRect(0, 0, float64(query.Bounds.X), float64(query.Bounds.Y))
	center := frame.Center()

	byCenter := make([]Match, len(matches))
	copy(byCenter, matches)
	sort.Slice(byCenter, func(i, j int) bool {
		ki := query.Keypoints[byCenter[i].QueryIdx]
		kj := query.Keypoints[byCenter[j].QueryIdx]
		di := center.Distance(geometry.Point2D{X: ki.X, Y: ki.Y})
		dj := center.Distance(geometry.Point2D{X: kj.X, Y: kj.Y})
		return di < dj
	})

	// Keep the nearest 40%, but never drop below the mode floor.
	keep := len(byCenter) * 2 / 5
	if keep < floor {
		keep = floor
	}
	cluster := byCenter[:keep]

	// Re-rank the cluster by descriptor distance and cap the count.
	sort.Slice(cluster, func(i, j int) bool {
		return cluster[i].Distance < cluster[j].Distance
	})
	limit := 2 * floor
	if limit < 30 {
		limit = 30
	}
	if len(cluster) > limit {
		cluster = cluster[:limit]
	}
	return cluster
}

// MatchedPoints extracts the paired keypoint coordinates for a match set:
// src holds query (target) positions, dst holds train (master) positions.
func MatchedPoints(matches []Match, query, train *Set) (src, dst []geometry.Point2D) {
	src = make([]geometry.Point2D, len(matches))
	dst = make([]geometry.Point2D, len(matches))
	for i, m := range matches {
		qk := query.Keypoints[m.QueryIdx]
		tk := train.Keypoints[m.TrainIdx]
		src[i] = geometry.Point2D{X: qk.X, Y: qk.Y}
		dst[i] = geometry.Point2D{X: tk.X, Y: tk.Y}
	}
	return src, dst
}
