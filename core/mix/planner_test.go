package mix

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"AutoMixFM/model"
)

func TestTempoRatio(t *testing.T) {
	tests := []struct {
		name     string
		outBPM   float64
		inBPM    float64
		expected float64
	}{
		{"slows the incoming track", 120, 125, 0.96},
		{"speeds the incoming track", 125, 120, 125.0 / 120.0},
		{"same tempo", 128, 128, 1},
		{"unknown outgoing", 0, 120, 1},
		{"unknown incoming", 120, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &model.Track{BPM: tt.outBPM}
			in := &model.Track{BPM: tt.inBPM}
			assert.InDelta(t, tt.expected, TempoRatio(out, in), 1e-9)
		})
	}
}

func TestNominalTransitionMs(t *testing.T) {
	// 16 beats at 120 BPM is 8 s.
	assert.Equal(t, int64(8000), nominalTransitionMs(120))

	// Very fast tempo clamps at the floor: 16 beats at 300 BPM is 3.2 s.
	assert.Equal(t, int64(ShortTransitionMs), nominalTransitionMs(300))

	// Very slow tempo clamps at the ceiling: 16 beats at 20 BPM is 48 s.
	assert.Equal(t, int64(2*LongTransitionMs), nominalTransitionMs(20))

	// Unknown tempo falls back to the medium length.
	assert.Equal(t, int64(MediumTransitionMs), nominalTransitionMs(0))
}

func TestPlanLongTracks(t *testing.T) {
	out := &model.Track{BPM: 120}
	in := &model.Track{BPM: 125}

	// Five-minute tracks: guard bands leave plenty of room, so the plan
	// keeps the full 8 s nominal transition.
	plan := Plan(out, in, 300000, 300000)

	assert.InDelta(t, 0.96, plan.TempoRatio, 1e-9)
	assert.Equal(t, int64(8000), plan.TransitionMs)
	assert.Equal(t, int64(300000-8000), plan.OutStartMs)
	assert.Equal(t, int64(300000), plan.OutEndMs)
	assert.Equal(t, int64(MinStartGuardMs), plan.InStartMs)
	assert.Equal(t, int64(MinStartGuardMs+8000), plan.InEndMs)
}

// Two 30-second tracks: after the 15 s guard bands there is only 15 s of
// room on either side, so the transition shrinks but stays at least the
// minimum.
func TestPlanShortTracks(t *testing.T) {
	out := &model.Track{BPM: 120}
	in := &model.Track{BPM: 125}

	plan := Plan(out, in, 30000, 30000)

	assert.LessOrEqual(t, plan.TransitionMs, int64(15000))
	assert.GreaterOrEqual(t, plan.TransitionMs, int64(ShortTransitionMs))
	assert.GreaterOrEqual(t, plan.OutStartMs, int64(0))
	assert.LessOrEqual(t, plan.InEndMs, int64(30000))
}

// Tracks shorter than the guard bands force the minimal crossfade rather
// than failing.
func TestPlanTinyTracks(t *testing.T) {
	out := &model.Track{BPM: 120}
	in := &model.Track{BPM: 118}

	plan := Plan(out, in, 10000, 10000)

	assert.Equal(t, int64(ShortTransitionMs), plan.TransitionMs)
	assert.GreaterOrEqual(t, plan.OutStartMs, int64(0))
	assert.LessOrEqual(t, plan.InStartMs, int64(10000))
	assert.LessOrEqual(t, plan.InEndMs, int64(10000))
	assert.LessOrEqual(t, plan.InStartMs, plan.InEndMs)
}

// The effective transition always lands inside the documented bounds,
// whatever the tempo.
func TestPlanBounds(t *testing.T) {
	for _, bpm := range []float64{0, 20, 60, 90, 120, 150, 174, 200, 300} {
		out := &model.Track{BPM: bpm}
		in := &model.Track{BPM: 128}
		plan := Plan(out, in, 240000, 240000)
		assert.GreaterOrEqual(t, plan.TransitionMs, int64(ShortTransitionMs), "bpm %v", bpm)
		assert.LessOrEqual(t, plan.TransitionMs, int64(2*LongTransitionMs), "bpm %v", bpm)
	}
}
