package features

import (
	"bytes"
	"errors"
	"image"
	"testing"

	"gocv.io/x/gocv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func descriptorMat(rows [][]byte) gocv.Mat {
	m := gocv.NewMatWithSize(len(rows), len(rows[0]), gocv.MatTypeCV8U)
	for i, row := range rows {
		for j, b := range row {
			m.SetUCharAt(i, j, b)
		}
	}
	return m
}

func rep(b byte) []byte {
	return bytes.Repeat([]byte{b}, 8)
}

// Train descriptors chosen so that any two are at least 32 bits apart. A
// query equal to one of them passes the ratio test (0 < ratio*32); the
// 0x33 pattern sits exactly 32 bits from all four and always fails.
func trainDescriptors() [][]byte {
	return [][]byte{rep(0x00), rep(0xFF), rep(0x0F), rep(0xF0)}
}

func syntheticSet(descriptors [][]byte) *Set {
	kps := make([]gocv.KeyPoint, len(descriptors))
	for i := range kps {
		kps[i] = gocv.KeyPoint{X: float64(i) * 10, Y: float64(i) * 10}
	}
	return &Set{
		Keypoints:   kps,
		Descriptors: descriptorMat(descriptors),
		Bounds:      image.Pt(800, 600),
	}
}

func TestMatchSetsRatioTest(t *testing.T) {
	train := syntheticSet(trainDescriptors())
	defer train.Close()

	// Four exact copies pass, three ambiguous descriptors are rejected.
	query := syntheticSet([][]byte{
		rep(0x00), rep(0xFF), rep(0x0F), rep(0xF0),
		rep(0x33), rep(0x33), rep(0x33),
	})
	defer query.Close()

	matches, err := MatchSets(query, train, ModeGreedy)
	require.NoError(t, err)
	require.Len(t, matches, 4)

	// Sorted by descriptor distance; exact copies are all at distance 0.
	for _, m := range matches {
		assert.Equal(t, 0.0, m.Distance)
		assert.Equal(t, m.QueryIdx, m.TrainIdx)
	}
}

func TestMatchSetsInsufficientMatches(t *testing.T) {
	train := syntheticSet(trainDescriptors())
	defer train.Close()

	// Only three queries survive the ratio test; strict mode needs eight.
	query := syntheticSet([][]byte{
		rep(0x00), rep(0xFF), rep(0x0F),
		rep(0x33), rep(0x33), rep(0x33), rep(0x33), rep(0x33),
	})
	defer query.Close()

	_, err := MatchSets(query, train, ModeStrict)
	require.Error(t, err)

	var insufficient *InsufficientMatchesError
	require.True(t, errors.As(err, &insufficient))
	assert.Equal(t, 3, insufficient.Got)
	assert.Equal(t, 8, insufficient.Need)
	assert.Equal(t, ModeStrict, insufficient.Mode)
}

func TestFilterCenteredPassThrough(t *testing.T) {
	query := &Set{Bounds: image.Pt(800, 600)}

	matches := make([]Match, 10)
	got := FilterCentered(matches, query, ModeStrict)
	// At or below 1.5x the floor nothing is filtered.
	assert.Len(t, got, 10)
}

func TestFilterCenteredKeepsCentralCluster(t *testing.T) {
	// 40 keypoints: the first 16 hug the image center, the rest sit in a
	// far corner. The filter must keep exactly the central 40%.
	kps := make([]gocv.KeyPoint, 40)
	for i := 0; i < 16; i++ {
		kps[i] = gocv.KeyPoint{X: 400 + float64(i), Y: 300}
	}
	for i := 16; i < 40; i++ {
		kps[i] = gocv.KeyPoint{X: 10 + float64(i), Y: 10}
	}
	query := &Set{Keypoints: kps, Bounds: image.Pt(800, 600)}

	matches := make([]Match, 40)
	for i := range matches {
		matches[i] = Match{QueryIdx: i, TrainIdx: i, Distance: float64(40 - i)}
	}

	got := FilterCentered(matches, query, ModeStrict)
	require.Len(t, got, 16)
	for _, m := range got {
		assert.Less(t, m.QueryIdx, 16, "kept a corner keypoint")
	}
	// Survivors are re-ranked by descriptor distance.
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i-1].Distance, got[i].Distance)
	}
}

func TestModeTables(t *testing.T) {
	cases := []struct {
		mode  Mode
		name  string
		ratio float64
		floor int
	}{
		{ModeGreedy, "greedy", 0.85, 4},
		{ModeStrict, "strict", 0.75, 8},
		{ModeRobust, "robust", 0.80, 10},
	}
	for _, c := range cases {
		assert.Equal(t, c.name, c.mode.String())
		assert.Equal(t, c.ratio, c.mode.Ratio())
		assert.Equal(t, c.floor, c.mode.Floor())

		parsed, err := ParseMode(c.name)
		require.NoError(t, err)
		assert.Equal(t, c.mode, parsed)
	}

	// Empty defaults to strict, unknown names fail.
	parsed, err := ParseMode("")
	require.NoError(t, err)
	assert.Equal(t, ModeStrict, parsed)

	_, err = ParseMode("fuzzy")
	assert.Error(t, err)
}

func TestMatchedPoints(t *testing.T) {
	query := &Set{Keypoints: []gocv.KeyPoint{{X: 1, Y: 2}, {X: 3, Y: 4}}}
	train := &Set{Keypoints: []gocv.KeyPoint{{X: 10, Y: 20}, {X: 30, Y: 40}}}

	src, dst := MatchedPoints([]Match{{QueryIdx: 1, TrainIdx: 0}}, query, train)
	require.Len(t, src, 1)
	assert.Equal(t, 3.0, src[0].X)
	assert.Equal(t, 4.0, src[0].Y)
	assert.Equal(t, 10.0, dst[0].X)
	assert.Equal(t, 20.0, dst[0].Y)
}
