package mix

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"AutoMixFM/core/audio"
	"AutoMixFM/logger"
	"AutoMixFM/model"
)

// ErrEmptyPlaylist is returned when a mix is requested with no tracks.
// A validation failure, not a processing error: do not retry.
var ErrEmptyPlaylist = errors.New("playlist is empty")

// fallbackTailMs is how much of the current track is kept when a
// transition fails and the mix degrades to a hard cut.
const fallbackTailMs = 5000

// Progress is one progress report from a running mix job.
type Progress struct {
	Percent  int
	Message  string
	Degraded bool // set when this report follows a recovered transition failure
}

// ProgressFunc receives progress reports. May be nil.
type ProgressFunc func(Progress)

// Result is the outcome of a completed assembly.
type Result struct {
	OutputFile string // filename only, collision-resistant
	OutputPath string
	DurationMs int64
	Degraded   int // transitions that fell back to the recovery path
}

// Assembler renders an ordered playlist into one continuous waveform
// through an audio.Processor.
type Assembler struct {
	proc      audio.Processor
	outputDir string
	bitrate   string

	now func() time.Time
}

// NewAssembler creates an Assembler writing exports into outputDir.
func NewAssembler(proc audio.Processor, outputDir, bitrate string) *Assembler {
	return &Assembler{
		proc:      proc,
		outputDir: outputDir,
		bitrate:   bitrate,
		now:       time.Now,
	}
}

// Assemble renders the playlist, reporting progress along the way.
//
// Failure semantics: an empty playlist or a first-track load failure is
// fatal — there is nothing to build on. A failure inside any later
// transition degrades that one seam (hard cut: last 5 s of the current
// track, then the unadjusted incoming track) and the job carries on.
// Export failure is fatal. The output is truncated to the target only
// after the loop, and never below the first track's length, so a target
// shorter than the first track still yields the whole first track.
func (a *Assembler) Assemble(ctx context.Context, playlist []*model.Track, target time.Duration, report ProgressFunc) (*Result, error) {
	if len(playlist) == 0 {
		return nil, ErrEmptyPlaylist
	}

	targetMs := target.Milliseconds()
	total := len(playlist)

	logger.Info("assembling mix",
		logger.Int("tracks", total),
		logger.Duration("target", target))

	current := playlist[0]
	currentClip, err := a.proc.Load(ctx, current.FilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load first track %q: %w", current.Filename, err)
	}
	mixClip := currentClip
	firstLenMs := currentClip.DurationMs()

	degraded := 0
	for i := 1; i < total; i++ {
		if mixClip.DurationMs() >= targetMs {
			logger.Info("target duration reached, stopping early",
				logger.Int64("durationMs", mixClip.DurationMs()))
			break
		}

		next := playlist[i]
		a.reportProgress(report, i, total, fmt.Sprintf("Mixing track %d of %d...", i+1, total), false)

		logger.Info("preparing transition",
			logger.String("from", current.Filename),
			logger.String("to", next.Filename))

		nextOriginal, err := a.proc.Load(ctx, next.FilePath)
		if err != nil {
			// Without the incoming waveform there is nothing to fall back
			// on; keep the mix as is and move past this track.
			logger.Error("failed to load incoming track, skipping",
				logger.String("filename", next.Filename),
				logger.ErrorField(err))
			degraded++
			a.reportProgress(report, i, total,
				fmt.Sprintf("Skipped %s: could not load audio.", next.Filename), true)
			continue
		}

		blended, stretched, err := a.transition(ctx, mixClip, currentClip, current, next, nextOriginal)
		if err != nil {
			logger.Error("transition failed, degrading to hard cut",
				logger.String("from", current.Filename),
				logger.String("to", next.Filename),
				logger.ErrorField(err))
			degraded++

			mixClip, err = a.hardCut(ctx, mixClip, currentClip, nextOriginal)
			if err != nil {
				return nil, fmt.Errorf("transition fallback failed: %w", err)
			}
			current = next
			currentClip = nextOriginal
			a.reportProgress(report, i, total,
				fmt.Sprintf("Transition into %s degraded to a cut.", next.Filename), true)
			continue
		}

		mixClip = blended
		current = next
		currentClip = stretched
	}

	// Truncate surplus past the target, but never into the first track:
	// the mix always carries at least its opening track whole.
	cutMs := targetMs
	if cutMs < firstLenMs {
		cutMs = firstLenMs
	}
	if mixClip.DurationMs() > cutMs {
		mixClip, err = a.proc.Slice(ctx, mixClip, 0, cutMs)
		if err != nil {
			return nil, fmt.Errorf("failed to truncate mix to target: %w", err)
		}
		logger.Info("mix truncated to target duration", logger.Int64("targetMs", cutMs))
	}

	filename := fmt.Sprintf("mix_%d_%s.mp3", a.now().Unix(), uuid.NewString()[:8])
	outputPath := filepath.Join(a.outputDir, filename)

	if err := a.proc.Export(ctx, mixClip, outputPath, "mp3", a.bitrate); err != nil {
		return nil, fmt.Errorf("failed to export mix: %w", err)
	}

	logger.Info("mix exported",
		logger.String("outputFile", filename),
		logger.Int64("durationMs", mixClip.DurationMs()),
		logger.Int("degradedTransitions", degraded))

	if report != nil {
		report(Progress{Percent: 100, Message: "Mix completed."})
	}

	return &Result{
		OutputFile: filename,
		OutputPath: outputPath,
		DurationMs: mixClip.DurationMs(),
		Degraded:   degraded,
	}, nil
}

// transition performs one full crossfade: tempo-adjust the incoming
// waveform, plan the overlap, replace the mix tail with the blended
// region, then append the rest of the incoming track. Returns the new
// mix and the adjusted incoming waveform (which becomes the next
// outgoing source).
func (a *Assembler) transition(ctx context.Context, mixClip, currentClip audio.Clip, current, next *model.Track, nextOriginal audio.Clip) (audio.Clip, audio.Clip, error) {
	ratio := TempoRatio(current, next)
	stretched, err := a.proc.TimeStretch(ctx, nextOriginal, ratio)
	if err != nil {
		return nil, nil, fmt.Errorf("time stretch (ratio %.4f): %w", ratio, err)
	}

	plan := Plan(current, next, currentClip.DurationMs(), stretched.DurationMs())

	logger.Debug("transition planned",
		logger.Float64("tempoRatio", plan.TempoRatio),
		logger.Int64("transitionMs", plan.TransitionMs),
		logger.Int64("inStartMs", plan.InStartMs),
		logger.Int64("inEndMs", plan.InEndMs))

	// The mix tail duplicates the outgoing track's tail; drop it and
	// rebuild that stretch as the blended overlap.
	trimmed, err := a.proc.Slice(ctx, mixClip, 0, mixClip.DurationMs()-plan.TransitionMs)
	if err != nil {
		return nil, nil, fmt.Errorf("trim mix tail: %w", err)
	}

	outSeg, err := a.proc.Slice(ctx, currentClip, plan.OutStartMs, plan.OutEndMs)
	if err != nil {
		return nil, nil, fmt.Errorf("slice outgoing segment: %w", err)
	}
	outSeg, err = a.proc.FadeOut(ctx, outSeg, plan.TransitionMs)
	if err != nil {
		return nil, nil, fmt.Errorf("fade out: %w", err)
	}

	inSeg, err := a.proc.Slice(ctx, stretched, plan.InStartMs, plan.InEndMs)
	if err != nil {
		return nil, nil, fmt.Errorf("slice incoming segment: %w", err)
	}
	inSeg, err = a.proc.FadeIn(ctx, inSeg, plan.TransitionMs)
	if err != nil {
		return nil, nil, fmt.Errorf("fade in: %w", err)
	}

	blended, err := a.proc.Overlay(ctx, outSeg, inSeg)
	if err != nil {
		return nil, nil, fmt.Errorf("overlay: %w", err)
	}

	result, err := a.proc.Concat(ctx, trimmed, blended)
	if err != nil {
		return nil, nil, fmt.Errorf("append blended segment: %w", err)
	}

	rest, err := a.proc.Slice(ctx, stretched, plan.InEndMs, stretched.DurationMs())
	if err != nil {
		return nil, nil, fmt.Errorf("slice incoming remainder: %w", err)
	}
	result, err = a.proc.Concat(ctx, result, rest)
	if err != nil {
		return nil, nil, fmt.Errorf("append incoming remainder: %w", err)
	}

	return result, stretched, nil
}

// hardCut is the degraded path: keep the last few seconds of the current
// track, then the incoming track wholesale, unadjusted.
func (a *Assembler) hardCut(ctx context.Context, mixClip, currentClip, nextOriginal audio.Clip) (audio.Clip, error) {
	tailStart := currentClip.DurationMs() - fallbackTailMs
	if tailStart < 0 {
		tailStart = 0
	}
	tail, err := a.proc.Slice(ctx, currentClip, tailStart, currentClip.DurationMs())
	if err != nil {
		return nil, err
	}
	out, err := a.proc.Concat(ctx, mixClip, tail)
	if err != nil {
		return nil, err
	}
	return a.proc.Concat(ctx, out, nextOriginal)
}

// reportProgress maps loop position onto a 5-95% band; 0 and 100 are
// reserved for job start and completion.
func (a *Assembler) reportProgress(report ProgressFunc, processed, total int, message string, degraded bool) {
	if report == nil {
		return
	}
	percent := int(float64(processed)/float64(total)*100 + 0.5)
	if percent < 5 {
		percent = 5
	}
	if percent > 95 {
		percent = 95
	}
	report(Progress{Percent: percent, Message: message, Degraded: degraded})
}
