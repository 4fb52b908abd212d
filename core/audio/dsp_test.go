package audio

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextPow2(t *testing.T) {
	assert.Equal(t, 1, nextPow2(1))
	assert.Equal(t, 2, nextPow2(2))
	assert.Equal(t, 4, nextPow2(3))
	assert.Equal(t, 2048, nextPow2(2048))
	assert.Equal(t, 4096, nextPow2(2049))
}

// A pure sinusoid concentrates its FFT energy at the matching bin.
func TestFFTPureTone(t *testing.T) {
	n := 1024
	bin := 37
	x := make([]complex128, n)
	for i := range x {
		x[i] = complex(math.Sin(2*math.Pi*float64(bin)*float64(i)/float64(n)), 0)
	}

	spec := fft(x)

	peak := 0
	peakMag := 0.0
	for j := 1; j < n/2; j++ {
		if mag := cmplx.Abs(spec[j]); mag > peakMag {
			peakMag = mag
			peak = j
		}
	}
	assert.Equal(t, bin, peak)
	// A unit sine of length n carries n/2 magnitude at its bin.
	assert.InDelta(t, float64(n)/2, peakMag, 1.0)
}

func TestHannWindowShape(t *testing.T) {
	w := hannWindow(512)
	require.Len(t, w, 512)
	assert.InDelta(t, 0.0, w[0], 1e-9)
	assert.InDelta(t, 0.0, w[511], 1e-9)
	// Symmetric with the maximum in the middle.
	for i := 0; i < 256; i++ {
		assert.InDelta(t, w[i], w[511-i], 1e-9)
	}
	assert.Greater(t, w[255], 0.99)
}

func TestPearson(t *testing.T) {
	a := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 1.0, pearson(a, a), 1e-9)

	b := []float64{5, 4, 3, 2, 1}
	assert.InDelta(t, -1.0, pearson(a, b), 1e-9)

	// Constant input has no variance, so no correlation.
	c := []float64{2, 2, 2, 2, 2}
	assert.Equal(t, 0.0, pearson(a, c))

	// Length mismatch and empty input degrade to zero.
	assert.Equal(t, 0.0, pearson(a, []float64{1, 2}))
	assert.Equal(t, 0.0, pearson(nil, nil))
}

func TestMeanRMS(t *testing.T) {
	// Silence has zero energy.
	silence := make([]float32, 22050)
	assert.Equal(t, 0.0, meanRMS(silence, 2048, 512))

	// A full-scale square wave has RMS 1.
	loud := make([]float32, 22050)
	for i := range loud {
		if i%2 == 0 {
			loud[i] = 1
		} else {
			loud[i] = -1
		}
	}
	assert.InDelta(t, 1.0, meanRMS(loud, 2048, 512), 1e-6)

	// Quieter signal, lower energy.
	quiet := make([]float32, 22050)
	for i := range quiet {
		quiet[i] = 0.1 * loud[i]
	}
	assert.Less(t, meanRMS(quiet, 2048, 512), meanRMS(loud, 2048, 512))

	// Too short for a single frame.
	assert.Equal(t, 0.0, meanRMS(make([]float32, 100), 2048, 512))
}

func TestEstimateBPMTooShort(t *testing.T) {
	assert.Equal(t, 0.0, estimateBPM(make([]float64, 50), analysisSampleRate, onsetHopSize))
	assert.Equal(t, 0.0, estimateBPM(nil, analysisSampleRate, onsetHopSize))
}

// An impulse train in the onset envelope is the cleanest possible beat
// grid; the estimator must recover its period.
func TestEstimateBPMImpulseTrain(t *testing.T) {
	const lag = 21 // ~123 BPM at 22050 Hz / 512 hop
	onset := make([]float64, 800)
	for i := 0; i < len(onset); i += lag {
		onset[i] = 1.0
	}

	expected := 60.0 / (float64(lag) * float64(onsetHopSize) / float64(analysisSampleRate))
	expected = math.Round(expected*100) / 100

	got := estimateBPM(onset, analysisSampleRate, onsetHopSize)
	assert.InDelta(t, expected, got, 0.01)
}

// Octave normalization folds out-of-range estimates into 60-200 BPM.
func TestEstimateBPMStaysInRange(t *testing.T) {
	for _, lag := range []int{13, 17, 25, 33, 40} {
		onset := make([]float64, 800)
		for i := 0; i < len(onset); i += lag {
			onset[i] = 1.0
		}
		bpm := estimateBPM(onset, analysisSampleRate, onsetHopSize)
		assert.GreaterOrEqual(t, bpm, 60.0, "lag %d", lag)
		assert.LessOrEqual(t, bpm, 200.0, "lag %d", lag)
	}
}

// The onset envelope spikes where the signal's spectrum changes.
func TestOnsetEnvelopeDetectsOnsets(t *testing.T) {
	sampleRate := analysisSampleRate
	samples := make([]float32, sampleRate) // 1 s
	// Silence for the first half, a tone for the second.
	for i := sampleRate / 2; i < sampleRate; i++ {
		samples[i] = float32(0.8 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	onset := onsetEnvelope(samples, onsetFrameSize, onsetHopSize)
	require.NotEmpty(t, onset)

	// The strongest flux lands where the tone starts.
	onsetFrame := (sampleRate / 2) / onsetHopSize
	peak := 0
	for i := range onset {
		if onset[i] > onset[peak] {
			peak = i
		}
	}
	assert.InDelta(t, float64(onsetFrame), float64(peak), 4)
}

// A pure A4 tone dominates the A pitch class, so the detected key is
// built on A.
func TestDetectKeyPureTone(t *testing.T) {
	sampleRate := analysisSampleRate
	samples := make([]float32, 3*sampleRate)
	for i := range samples {
		samples[i] = float32(0.7 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	key := detectKey(samples, sampleRate)
	assert.Contains(t, []string{"A", "Am"}, key)
}

func TestDetectKeyTooShort(t *testing.T) {
	assert.Equal(t, "", detectKey(make([]float32, 100), analysisSampleRate))
}
