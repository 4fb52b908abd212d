package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"

	"AutoMixFM/core/harmony"
	"AutoMixFM/logger"
)

// Analysis is the result of analyzing one audio file. Zero BPM/Energy/
// Duration and an empty CamelotKey mean the property could not be
// determined; ErrorMessage is set when the whole record is unusable.
type Analysis struct {
	Filename     string  `json:"filename"`
	FilePath     string  `json:"filepath"`
	BPM          float64 `json:"bpm"`
	Key          string  `json:"key"`
	CamelotKey   string  `json:"camelotKey"`
	Energy       float64 `json:"energy"`
	Duration     float64 `json:"duration"` // seconds
	ErrorMessage string  `json:"errorMessage,omitempty"`
}

// Analyzer extracts tempo, key, energy and duration from an audio file.
type Analyzer interface {
	Analyze(ctx context.Context, path string) *Analysis
}

const (
	analysisSampleRate = 22050
	onsetFrameSize     = 2048
	onsetHopSize       = 512
)

// FFmpegAnalyzer decodes audio through ffmpeg and measures it with the
// DSP routines in this package.
type FFmpegAnalyzer struct {
	ffmpegPath string
}

// NewFFmpegAnalyzer creates an analyzer using the given ffmpeg binary.
func NewFFmpegAnalyzer(ffmpegPath string) *FFmpegAnalyzer {
	return &FFmpegAnalyzer{ffmpegPath: ffmpegPath}
}

// Analyze never returns nil; failures come back as a record with
// ErrorMessage set so a batch can skip bad files and keep going.
func (a *FFmpegAnalyzer) Analyze(ctx context.Context, path string) *Analysis {
	result := &Analysis{
		Filename: filepath.Base(path),
		FilePath: path,
	}

	if _, err := os.Stat(path); err != nil {
		result.ErrorMessage = fmt.Sprintf("file not found: %s", path)
		logger.Error("analysis failed", logger.String("filepath", path), logger.ErrorField(err))
		return result
	}

	logger.Info("analyzing audio", logger.String("filepath", path))

	samples, err := a.decodeMono(ctx, path)
	if err != nil {
		result.ErrorMessage = fmt.Sprintf("decode failed: %v", err)
		logger.Error("analysis failed", logger.String("filepath", path), logger.ErrorField(err))
		return result
	}
	if len(samples) == 0 {
		result.ErrorMessage = "decoded stream is empty"
		return result
	}

	result.Duration = float64(len(samples)) / analysisSampleRate

	onset := onsetEnvelope(samples, onsetFrameSize, onsetHopSize)
	result.BPM = estimateBPM(onset, analysisSampleRate, onsetHopSize)

	result.Key = detectKey(samples, analysisSampleRate)
	result.CamelotKey = harmony.KeyToCamelot(result.Key)

	energy := meanRMS(samples, onsetFrameSize, onsetHopSize)
	result.Energy = math.Round(energy*10000) / 10000

	logger.Info("analysis completed",
		logger.String("filename", result.Filename),
		logger.Float64("bpm", result.BPM),
		logger.String("key", result.Key),
		logger.String("camelotKey", result.CamelotKey),
		logger.Float64("energy", result.Energy),
		logger.Float64("duration", result.Duration))

	return result
}

// decodeMono has ffmpeg decode the file to raw mono float32 PCM at the
// analysis sample rate, streamed over stdout.
func (a *FFmpegAnalyzer) decodeMono(ctx context.Context, path string) ([]float32, error) {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", path,
		"-ac", "1",
		"-ar", fmt.Sprintf("%d", analysisSampleRate),
		"-f", "f32le",
		"-",
	}
	cmd := exec.CommandContext(ctx, a.ffmpegPath, args...)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("ffmpeg decode failed: %w\nffmpeg error: %s", err, stderr.String())
	}

	raw := out.Bytes()
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		bits := binary.LittleEndian.Uint32(raw[i*4:])
		samples[i] = math.Float32frombits(bits)
	}
	return samples, nil
}
