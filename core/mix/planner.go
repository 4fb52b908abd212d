package mix

import "AutoMixFM/model"

// Transition length policy, in milliseconds.
const (
	// ShortTransitionMs is the floor for any crossfade, and the forced
	// fallback when guard bands leave no room.
	ShortTransitionMs = 4000
	// MediumTransitionMs is the nominal length when the outgoing tempo is
	// unknown.
	MediumTransitionMs = 8000
	// LongTransitionMs caps the beat-derived nominal length at 2x this.
	LongTransitionMs = 16000

	// MinStartGuardMs protects the incoming track's intro: the crossfade
	// region starts this far into it.
	MinStartGuardMs = 15000
	// MinEndGuardMs protects the outgoing track's outro from being eaten
	// entirely by the transition.
	MinEndGuardMs = 15000

	// transitionBeats is how many beats of the outgoing track a nominal
	// transition spans.
	transitionBeats = 16
)

// TransitionPlan describes how one track crossfades into the next:
// the tempo adjustment for the incoming waveform, the effective
// transition length, and the segment windows to blend.
type TransitionPlan struct {
	// TempoRatio scales the incoming track's playback speed toward the
	// outgoing track's BPM. 1 means no adjustment.
	TempoRatio float64
	// TransitionMs is the effective crossfade length.
	TransitionMs int64
	// Outgoing segment: the tail [OutStartMs, OutEndMs) of the outgoing waveform.
	OutStartMs int64
	OutEndMs   int64
	// Incoming segment: [InStartMs, InEndMs) of the (tempo-adjusted)
	// incoming waveform, past its start guard.
	InStartMs int64
	InEndMs   int64
}

// TempoRatio returns outgoing.BPM / incoming.BPM, the stretch factor that
// brings the incoming track to the outgoing tempo. Invalid BPM on either
// side requests no tempo change.
func TempoRatio(outgoing, incoming *model.Track) float64 {
	if outgoing.BPM <= 0 || incoming.BPM <= 0 {
		return 1
	}
	return outgoing.BPM / incoming.BPM
}

// nominalTransitionMs is the duration of transitionBeats beats at the
// outgoing BPM, clamped to [ShortTransitionMs, 2*LongTransitionMs].
func nominalTransitionMs(bpm float64) int64 {
	if bpm <= 0 {
		return MediumTransitionMs
	}
	beatMs := 60000.0 / bpm
	nominal := int64(beatMs * transitionBeats)
	if nominal < ShortTransitionMs {
		return ShortTransitionMs
	}
	if nominal > 2*LongTransitionMs {
		return 2 * LongTransitionMs
	}
	return nominal
}

// Plan computes the transition between an adjacent playlist pair from
// metadata and waveform lengths alone. Guard bands keep the transition
// off the outgoing outro and the incoming intro; when the tracks are too
// short to honour them, the plan falls back to a minimal crossfade that
// eats into the guards rather than failing.
func Plan(outgoing, incoming *model.Track, outgoingLenMs, incomingLenMs int64) TransitionPlan {
	effective := nominalTransitionMs(outgoing.BPM)

	if limit := outgoingLenMs - MinEndGuardMs; effective > limit {
		effective = limit
	}
	if limit := incomingLenMs - MinStartGuardMs; effective > limit {
		effective = limit
	}
	if effective < ShortTransitionMs {
		effective = ShortTransitionMs
	}

	outStart := outgoingLenMs - effective
	if outStart < 0 {
		outStart = 0
	}

	inStart := int64(MinStartGuardMs)
	if inStart > incomingLenMs {
		inStart = incomingLenMs
	}
	inEnd := inStart + effective
	if inEnd > incomingLenMs {
		inEnd = incomingLenMs
	}

	return TransitionPlan{
		TempoRatio:   TempoRatio(outgoing, incoming),
		TransitionMs: effective,
		OutStartMs:   outStart,
		OutEndMs:     outgoingLenMs,
		InStartMs:    inStart,
		InEndMs:      inEnd,
	}
}
