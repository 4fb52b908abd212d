package harmony

import (
	"math"

	"AutoMixFM/model"
)

// Scoring weights. Harmonic fit dominates, tempo matters, energy nudges.
const (
	harmonicBonus   = 5.0
	harmonicPenalty = -2.0
	tempoWeight     = 3.0
	energyWeight    = 1.0

	// Detected BPMs jitter by a beat or two; treat that as identical.
	bpmTolerance = 2.0

	// Decay factors for the 1/(1+x*k) falloff curves.
	bpmPenaltyFactor    = 10.0
	energyPenaltyFactor = 5.0
)

// TempoScore rates how well two tempos mix, in [0, 1]. Differences within
// bpmTolerance score a full 1.0; beyond that the score decays with the
// tempo ratio. Unknown tempo on either side scores 0.
func TempoScore(bpm1, bpm2 float64) float64 {
	if bpm1 <= 0 || bpm2 <= 0 {
		return 0
	}
	if math.Abs(bpm1-bpm2) <= bpmTolerance {
		return 1.0
	}
	ratio := math.Max(bpm1, bpm2) / math.Min(bpm1, bpm2)
	score := 1.0 / (1.0 + (ratio-1)*bpmPenaltyFactor)
	return math.Max(0, score)
}

// EnergyScore rates how close two energy levels are, in [0, 1]. Unknown
// energy on either side scores 0.
func EnergyScore(e1, e2 float64) float64 {
	if e1 <= 0 || e2 <= 0 {
		return 0
	}
	score := 1.0 / (1.0 + math.Abs(e1-e2)*energyPenaltyFactor)
	return math.Max(0, score)
}

// Score rates the transition from current into next. Higher is better.
// Total over any pair of tracks: missing fields degrade the score, they
// never error.
func Score(current, next *model.Track) float64 {
	score := 0.0

	if CompatibleKeys(current.CamelotKey, next.CamelotKey) {
		score += harmonicBonus
	} else {
		score += harmonicPenalty
	}

	score += TempoScore(current.BPM, next.BPM) * tempoWeight
	score += EnergyScore(current.Energy, next.Energy) * energyWeight

	return math.Max(0, score)
}
