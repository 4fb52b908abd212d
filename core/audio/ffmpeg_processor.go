package audio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"

	"AutoMixFM/logger"
)

// FFmpegProcessor implements Processor by shelling out to ffmpeg/ffprobe.
// Every operation renders into a fresh intermediate WAV under a private
// work directory; Cleanup removes the lot.
type FFmpegProcessor struct {
	ffmpegPath string
	workDir    string
	seq        atomic.Int64
}

// fileClip is a Clip backed by a WAV file in the processor's work directory.
type fileClip struct {
	path  string
	durMs int64
}

func (c *fileClip) DurationMs() int64 { return c.durMs }

// NewFFmpegProcessor creates a processor using the given ffmpeg binary.
// Intermediate files go into a fresh temp directory.
func NewFFmpegProcessor(ffmpegPath string) (*FFmpegProcessor, error) {
	workDir, err := os.MkdirTemp("", "automix-work-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, workDir: workDir}, nil
}

// Cleanup removes all intermediate files. Clips handed out before Cleanup
// become invalid.
func (p *FFmpegProcessor) Cleanup() error {
	return os.RemoveAll(p.workDir)
}

func (p *FFmpegProcessor) nextPath() string {
	n := p.seq.Add(1)
	return filepath.Join(p.workDir, fmt.Sprintf("clip_%06d.wav", n))
}

// run executes ffmpeg with the given arguments, capturing stderr for the
// error message.
func (p *FFmpegProcessor) run(ctx context.Context, args ...string) error {
	full := append([]string{"-y", "-hide_banner", "-loglevel", "error"}, args...)
	cmd := exec.CommandContext(ctx, p.ffmpegPath, full...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	logger.Debug("executing ffmpeg", logger.String("args", strings.Join(full, " ")))

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg failed: %w\nffmpeg error: %s", err, stderr.String())
	}
	return nil
}

// ffprobeOutput defines the structure of ffprobe's JSON format block.
type ffprobeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeDurationMs uses ffprobe to read the duration of an audio file.
func (p *FFmpegProcessor) ProbeDurationMs(ctx context.Context, path string) (int64, error) {
	ffprobePath := strings.Replace(p.ffmpegPath, "ffmpeg", "ffprobe", 1)

	args := []string{
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "json",
		path,
	}

	cmd := exec.CommandContext(ctx, ffprobePath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return 0, fmt.Errorf("ffprobe failed for %s: %w\nffprobe error: %s", path, err, stderr.String())
	}

	var probeData ffprobeOutput
	if err := json.Unmarshal(out.Bytes(), &probeData); err != nil {
		return 0, fmt.Errorf("failed to unmarshal ffprobe output for %s: %w", path, err)
	}
	if probeData.Format.Duration == "" {
		return 0, fmt.Errorf("duration not found in ffprobe output for %s", path)
	}
	seconds, err := strconv.ParseFloat(probeData.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse duration %q for %s: %w", probeData.Format.Duration, path, err)
	}
	return int64(seconds * 1000), nil
}

// render runs ffmpeg into a fresh work file and wraps it as a clip,
// probing the real output duration.
func (p *FFmpegProcessor) render(ctx context.Context, args []string) (Clip, error) {
	out := p.nextPath()
	args = append(args, out)
	if err := p.run(ctx, args...); err != nil {
		return nil, err
	}
	durMs, err := p.ProbeDurationMs(ctx, out)
	if err != nil {
		return nil, err
	}
	return &fileClip{path: out, durMs: durMs}, nil
}

// Load decodes any input into the canonical intermediate format
// (stereo 44.1 kHz WAV) so later filters and concat behave uniformly.
func (p *FFmpegProcessor) Load(ctx context.Context, path string) (Clip, error) {
	return p.render(ctx, []string{
		"-i", path,
		"-ac", "2",
		"-ar", "44100",
	})
}

// TimeStretch changes tempo via the atempo filter, chaining stages for
// ratios outside atempo's single-stage range of [0.5, 2.0].
func (p *FFmpegProcessor) TimeStretch(ctx context.Context, clip Clip, ratio float64) (Clip, error) {
	fc, ok := clip.(*fileClip)
	if !ok {
		return nil, fmt.Errorf("foreign clip type %T", clip)
	}
	if ratio <= 0 || ratio == 1 {
		return clip, nil
	}

	var stages []string
	r := ratio
	for r < 0.5 {
		stages = append(stages, "atempo=0.5")
		r /= 0.5
	}
	for r > 2.0 {
		stages = append(stages, "atempo=2.0")
		r /= 2.0
	}
	stages = append(stages, fmt.Sprintf("atempo=%.6f", r))

	return p.render(ctx, []string{
		"-i", fc.path,
		"-af", strings.Join(stages, ","),
	})
}

// Slice extracts [startMs, endMs) of the clip.
func (p *FFmpegProcessor) Slice(ctx context.Context, clip Clip, startMs, endMs int64) (Clip, error) {
	fc, ok := clip.(*fileClip)
	if !ok {
		return nil, fmt.Errorf("foreign clip type %T", clip)
	}
	if startMs < 0 {
		startMs = 0
	}
	if endMs > fc.durMs {
		endMs = fc.durMs
	}
	if endMs < startMs {
		endMs = startMs
	}
	return p.render(ctx, []string{
		"-i", fc.path,
		"-ss", msToSeconds(startMs),
		"-to", msToSeconds(endMs),
	})
}

// FadeIn ramps volume up over the first durationMs.
func (p *FFmpegProcessor) FadeIn(ctx context.Context, clip Clip, durationMs int64) (Clip, error) {
	fc, ok := clip.(*fileClip)
	if !ok {
		return nil, fmt.Errorf("foreign clip type %T", clip)
	}
	return p.render(ctx, []string{
		"-i", fc.path,
		"-af", fmt.Sprintf("afade=t=in:st=0:d=%s", msToSeconds(durationMs)),
	})
}

// FadeOut ramps volume down over the last durationMs.
func (p *FFmpegProcessor) FadeOut(ctx context.Context, clip Clip, durationMs int64) (Clip, error) {
	fc, ok := clip.(*fileClip)
	if !ok {
		return nil, fmt.Errorf("foreign clip type %T", clip)
	}
	start := fc.durMs - durationMs
	if start < 0 {
		start = 0
	}
	return p.render(ctx, []string{
		"-i", fc.path,
		"-af", fmt.Sprintf("afade=t=out:st=%s:d=%s", msToSeconds(start), msToSeconds(durationMs)),
	})
}

// Overlay mixes two clips without attenuating either input.
func (p *FFmpegProcessor) Overlay(ctx context.Context, a, b Clip) (Clip, error) {
	fa, ok := a.(*fileClip)
	if !ok {
		return nil, fmt.Errorf("foreign clip type %T", a)
	}
	fb, ok := b.(*fileClip)
	if !ok {
		return nil, fmt.Errorf("foreign clip type %T", b)
	}
	return p.render(ctx, []string{
		"-i", fa.path,
		"-i", fb.path,
		"-filter_complex", "amix=inputs=2:duration=longest:normalize=0",
	})
}

// Concat appends b after a.
func (p *FFmpegProcessor) Concat(ctx context.Context, a, b Clip) (Clip, error) {
	fa, ok := a.(*fileClip)
	if !ok {
		return nil, fmt.Errorf("foreign clip type %T", a)
	}
	fb, ok := b.(*fileClip)
	if !ok {
		return nil, fmt.Errorf("foreign clip type %T", b)
	}
	return p.render(ctx, []string{
		"-i", fa.path,
		"-i", fb.path,
		"-filter_complex", "[0:a][1:a]concat=n=2:v=0:a=1",
	})
}

// Export encodes the clip to its final container.
func (p *FFmpegProcessor) Export(ctx context.Context, clip Clip, outputPath, format, bitrate string) error {
	fc, ok := clip.(*fileClip)
	if !ok {
		return fmt.Errorf("foreign clip type %T", clip)
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return p.run(ctx,
		"-i", fc.path,
		"-b:a", bitrate,
		"-f", format,
		outputPath,
	)
}

func msToSeconds(ms int64) string {
	return strconv.FormatFloat(float64(ms)/1000.0, 'f', 3, 64)
}
