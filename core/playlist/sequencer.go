package playlist

import (
	"math/rand"
	"os"
	"time"

	"AutoMixFM/core/harmony"
	"AutoMixFM/logger"
	"AutoMixFM/model"
)

// Sequencer orders a track pool into a playable sequence using greedy
// nearest-neighbour selection over the compatibility score. Greedy is a
// deliberate trade-off: fast, never backtracks, not globally optimal.
type Sequencer struct {
	rng *rand.Rand

	// fileExists is swappable so tests don't need real files on disk.
	fileExists func(path string) bool
}

// New creates a Sequencer around the given randomness source. The source
// drives seed-track selection and tie-breaking, so a fixed seed gives a
// reproducible sequence.
func New(rng *rand.Rand) *Sequencer {
	return &Sequencer{
		rng: rng,
		fileExists: func(path string) bool {
			_, err := os.Stat(path)
			return err == nil
		},
	}
}

// eligible filters the pool down to tracks with complete analysis data and
// a resolvable file. Incomplete tracks are dropped silently.
func (s *Sequencer) eligible(pool []*model.Track) []*model.Track {
	out := make([]*model.Track, 0, len(pool))
	for _, t := range pool {
		if !t.Eligible() {
			logger.Debug("track skipped, incomplete analysis data",
				logger.String("filename", t.Filename))
			continue
		}
		if !s.fileExists(t.FilePath) {
			logger.Debug("track skipped, source file missing",
				logger.String("filepath", t.FilePath))
			continue
		}
		out = append(out, t)
	}
	return out
}

// Sequence builds an ordered playlist from the pool, stopping once the
// accumulated duration reaches the target or no tracks remain. The result
// may fall short of the target; that is expected, not an error. No track
// appears twice.
func (s *Sequencer) Sequence(pool []*model.Track, target time.Duration) []*model.Track {
	remaining := s.eligible(pool)

	logger.Info("generating playlist",
		logger.Int("poolSize", len(pool)),
		logger.Int("eligible", len(remaining)),
		logger.Duration("target", target))

	if len(remaining) == 0 {
		return []*model.Track{}
	}

	seed := s.rng.Intn(len(remaining))
	current := remaining[seed]
	remaining = append(remaining[:seed], remaining[seed+1:]...)

	sequence := []*model.Track{current}
	accumulated := time.Duration(current.Duration * float64(time.Second))

	logger.Info("seed track selected",
		logger.String("filename", current.Filename),
		logger.Float64("bpm", current.BPM),
		logger.String("camelotKey", current.CamelotKey))

	for len(remaining) > 0 && accumulated < target {
		next, idx := s.pickNext(current, remaining)
		if next == nil {
			break
		}

		sequence = append(sequence, next)
		remaining = append(remaining[:idx], remaining[idx+1:]...)
		current = next
		accumulated += time.Duration(next.Duration * float64(time.Second))

		logger.Debug("track appended",
			logger.String("filename", next.Filename),
			logger.Float64("bpm", next.BPM),
			logger.String("camelotKey", next.CamelotKey),
			logger.Duration("accumulated", accumulated))
	}

	logger.Info("playlist generated",
		logger.Int("tracks", len(sequence)),
		logger.Duration("duration", accumulated))
	return sequence
}

// pickNext scores every candidate against current and returns the best.
// Exact ties are broken uniformly at random across all tied leaders.
func (s *Sequencer) pickNext(current *model.Track, candidates []*model.Track) (*model.Track, int) {
	if len(candidates) == 0 {
		return nil, -1
	}

	bestScore := -1.0
	var leaders []int
	for i, cand := range candidates {
		score := harmony.Score(current, cand)
		switch {
		case score > bestScore:
			bestScore = score
			leaders = leaders[:0]
			leaders = append(leaders, i)
		case score == bestScore:
			leaders = append(leaders, i)
		}
	}

	idx := leaders[s.rng.Intn(len(leaders))]
	return candidates[idx], idx
}
