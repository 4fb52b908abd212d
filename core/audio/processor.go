package audio

import "context"

// Clip is an opaque handle to a piece of audio held by a Processor.
// Callers only ever inspect its length; the samples stay inside the
// processing backend.
type Clip interface {
	DurationMs() int64
}

// Processor defines the audio processing operations the mix assembler
// consumes. The production implementation shells out to ffmpeg; tests use
// an in-memory fake.
type Processor interface {
	// Load decodes an audio file into a workable clip.
	Load(ctx context.Context, path string) (Clip, error)
	// TimeStretch changes playback speed by ratio while preserving pitch.
	// A ratio of 1 (or an invalid ratio) is a no-op.
	TimeStretch(ctx context.Context, clip Clip, ratio float64) (Clip, error)
	// Slice extracts [startMs, endMs) of the clip.
	Slice(ctx context.Context, clip Clip, startMs, endMs int64) (Clip, error)
	// FadeIn ramps volume up over the first durationMs of the clip.
	FadeIn(ctx context.Context, clip Clip, durationMs int64) (Clip, error)
	// FadeOut ramps volume down over the last durationMs of the clip.
	FadeOut(ctx context.Context, clip Clip, durationMs int64) (Clip, error)
	// Overlay mixes two clips sample-wise; the result is as long as the
	// longer input.
	Overlay(ctx context.Context, a, b Clip) (Clip, error)
	// Concat appends b after a.
	Concat(ctx context.Context, a, b Clip) (Clip, error)
	// Export encodes the clip to outputPath in the given format/bitrate.
	Export(ctx context.Context, clip Clip, outputPath, format, bitrate string) error
}
