package harmony

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"AutoMixFM/model"
)

func TestTempoScore(t *testing.T) {
	// Within the tolerance the score is a full 1.0, not merely close.
	assert.Equal(t, 1.0, TempoScore(120, 120))
	assert.Equal(t, 1.0, TempoScore(120, 122))
	assert.Equal(t, 1.0, TempoScore(122, 120))

	// Beyond the tolerance the score decays with the ratio.
	s125 := TempoScore(120, 125)
	s140 := TempoScore(120, 140)
	s170 := TempoScore(120, 170)
	assert.Less(t, s125, 1.0)
	assert.Greater(t, s125, s140)
	assert.Greater(t, s140, s170)

	// Order of arguments does not matter.
	assert.Equal(t, TempoScore(120, 140), TempoScore(140, 120))

	// Unknown tempo scores zero.
	assert.Equal(t, 0.0, TempoScore(0, 120))
	assert.Equal(t, 0.0, TempoScore(120, 0))
	assert.Equal(t, 0.0, TempoScore(-1, 120))
}

func TestEnergyScore(t *testing.T) {
	assert.Equal(t, 1.0, EnergyScore(0.5, 0.5))

	near := EnergyScore(0.5, 0.55)
	far := EnergyScore(0.5, 0.9)
	assert.Less(t, near, 1.0)
	assert.Greater(t, near, far)

	assert.Equal(t, EnergyScore(0.2, 0.8), EnergyScore(0.8, 0.2))

	assert.Equal(t, 0.0, EnergyScore(0, 0.5))
	assert.Equal(t, 0.0, EnergyScore(0.5, 0))
}

func TestScore(t *testing.T) {
	compatible := func(bpm1, bpm2 float64) float64 {
		return Score(
			&model.Track{CamelotKey: "8A", BPM: bpm1, Energy: 0.5},
			&model.Track{CamelotKey: "8B", BPM: bpm2, Energy: 0.5},
		)
	}

	// Perfect match: +5 harmonic, +3 tempo, +1 energy.
	assert.InDelta(t, 9.0, compatible(120, 120), 1e-9)

	// Incompatible keys take the penalty but identical tempo and energy
	// still contribute.
	clash := Score(
		&model.Track{CamelotKey: "8A", BPM: 120, Energy: 0.5},
		&model.Track{CamelotKey: "3B", BPM: 120, Energy: 0.5},
	)
	assert.InDelta(t, 2.0, clash, 1e-9)

	// Unknown keys are treated like a clash, not a free pass.
	unknown := Score(
		&model.Track{BPM: 120, Energy: 0.5},
		&model.Track{BPM: 120, Energy: 0.5},
	)
	assert.InDelta(t, 2.0, unknown, 1e-9)

	// The score never goes negative even when everything is wrong.
	worst := Score(
		&model.Track{CamelotKey: "8A"},
		&model.Track{CamelotKey: "3B"},
	)
	assert.Equal(t, 0.0, worst)
}

// A DJ-obvious scenario: from an 8A track at 120 BPM, the harmonically
// adjacent track at nearly the same tempo must outrank both the clashing
// key and the big tempo jump.
func TestScoreRanking(t *testing.T) {
	current := &model.Track{CamelotKey: "8A", BPM: 120, Energy: 0.5}

	best := &model.Track{CamelotKey: "9A", BPM: 121, Energy: 0.52}
	tempoJump := &model.Track{CamelotKey: "8A", BPM: 160, Energy: 0.5}
	keyClash := &model.Track{CamelotKey: "2B", BPM: 120, Energy: 0.5}

	assert.Greater(t, Score(current, best), Score(current, tempoJump))
	assert.Greater(t, Score(current, best), Score(current, keyClash))
	assert.Greater(t, Score(current, tempoJump), Score(current, keyClash))
}
