package audio

import (
	"math"
	"math/cmplx"
)

// Pure-Go signal analysis backing the Analyzer: spectral-flux onset
// envelope with autocorrelation for tempo, FFT chroma against
// Krumhansl-style key profiles for musical key, mean RMS for energy.

func nextPow2(n int) int {
	v := 1
	for v < n {
		v <<= 1
	}
	return v
}

// fft is an iterative radix-2 Cooley-Tukey transform. len(x) must be a
// power of two.
func fft(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	copy(out, x)
	if n <= 1 {
		return out
	}

	// Bit reversal permutation
	j := 0
	for i := 0; i < n-1; i++ {
		if i < j {
			out[i], out[j] = out[j], out[i]
		}
		m := n >> 1
		for j >= m && m > 0 {
			j -= m
			m >>= 1
		}
		j += m
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		step := -2 * math.Pi / float64(size)
		wLen := complex(math.Cos(step), math.Sin(step))
		for i := 0; i < n; i += size {
			w := complex(1, 0)
			for k := 0; k < half; k++ {
				u := out[i+k]
				v := out[i+k+half] * w
				out[i+k] = u + v
				out[i+k+half] = u - v
				w *= wLen
			}
		}
	}
	return out
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// onsetEnvelope computes a spectral-flux curve: per frame, the sum of
// positive magnitude increases across bins.
func onsetEnvelope(samples []float32, frameSize, hopSize int) []float64 {
	n := len(samples)
	numFrames := (n - frameSize) / hopSize
	if numFrames <= 0 {
		return nil
	}
	fftSize := nextPow2(frameSize)
	window := hannWindow(frameSize)
	onset := make([]float64, numFrames)
	prevMag := make([]float64, fftSize/2+1)
	mag := make([]float64, fftSize/2+1)
	frame := make([]complex128, fftSize) // reused across frames

	for i := 0; i < numFrames; i++ {
		start := i * hopSize
		for k := range frame {
			frame[k] = 0
		}
		for j := 0; j < frameSize && start+j < n; j++ {
			frame[j] = complex(float64(samples[start+j])*window[j], 0)
		}
		spec := fft(frame)
		for j := 0; j <= fftSize/2; j++ {
			mag[j] = cmplx.Abs(spec[j])
		}
		flux := 0.0
		for j := range mag {
			if d := mag[j] - prevMag[j]; d > 0 {
				flux += d
			}
		}
		onset[i] = flux
		copy(prevMag, mag)
	}
	return onset
}

// estimateBPM finds the dominant beat period by autocorrelating the onset
// envelope over lags covering 60-200 BPM, with a mild perceptual bias
// toward the 120 BPM region to suppress octave errors.
func estimateBPM(onset []float64, sampleRate, hopSize int) float64 {
	if len(onset) < 100 {
		return 0
	}

	minLag := sampleRate * 60 / (200 * hopSize)
	maxLag := sampleRate * 60 / (60 * hopSize)
	if maxLag >= len(onset) {
		maxLag = len(onset) - 1
	}
	if minLag < 1 {
		minLag = 1
	}

	bestLag := minLag
	bestCorr := -1.0
	for lag := minLag; lag <= maxLag; lag++ {
		corr := 0.0
		count := 0
		for i := 0; i+lag < len(onset); i++ {
			corr += onset[i] * onset[i+lag]
			count++
		}
		if count > 0 {
			corr /= float64(count)
		}

		bpmApprox := 60.0 / (float64(lag) * float64(hopSize) / float64(sampleRate))
		weight := math.Exp(-0.5 * math.Pow((bpmApprox-120.0)/40.0, 2))
		weightedCorr := corr * (0.8 + 0.2*weight)

		if weightedCorr > bestCorr {
			bestCorr = weightedCorr
			bestLag = lag
		}
	}

	beatPeriodSec := float64(bestLag) * float64(hopSize) / float64(sampleRate)
	if beatPeriodSec <= 0 {
		return 0
	}
	bpm := 60.0 / beatPeriodSec

	for bpm > 200 {
		bpm /= 2
	}
	for bpm < 60 {
		bpm *= 2
	}
	return math.Round(bpm*100) / 100
}

// meanRMS is the average root-mean-square level over fixed frames, a
// simple loudness/intensity proxy.
func meanRMS(samples []float32, frameSize, hopSize int) float64 {
	n := len(samples)
	numFrames := (n - frameSize) / hopSize
	if numFrames <= 0 {
		return 0
	}
	total := 0.0
	for i := 0; i < numFrames; i++ {
		start := i * hopSize
		sum := 0.0
		count := 0
		for j := 0; j < frameSize && start+j < n; j++ {
			v := float64(samples[start+j])
			sum += v * v
			count++
		}
		if count > 0 {
			total += math.Sqrt(sum / float64(count))
		}
	}
	return total / float64(numFrames)
}

var (
	noteNames  = []string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}
	majProfile = []float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minProfile = []float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

// detectKey folds the spectrum into a 12-bin chroma and correlates every
// rotation against major/minor key profiles. Returns a key label such as
// "Am" or "F#", or "" when nothing correlates.
func detectKey(samples []float32, sampleRate int) string {
	frameSize := 4096
	hopSize := 2048
	n := len(samples)
	numFrames := (n - frameSize) / hopSize
	if numFrames <= 0 {
		return ""
	}

	fftSize := nextPow2(frameSize)
	window := hannWindow(frameSize)
	chroma := make([]float64, 12)
	frame := make([]complex128, fftSize)

	for i := 0; i < numFrames; i++ {
		start := i * hopSize
		for k := range frame {
			frame[k] = 0
		}
		for j := 0; j < frameSize && start+j < n; j++ {
			frame[j] = complex(float64(samples[start+j])*window[j], 0)
		}
		spec := fft(frame)
		for bin := 1; bin <= fftSize/2; bin++ {
			freq := float64(bin) * float64(sampleRate) / float64(fftSize)
			if freq < 65 || freq > 4000 {
				continue
			}
			semitones := 12 * math.Log2(freq/261.63)
			pc := ((int(math.Round(semitones)) % 12) + 12) % 12
			chroma[pc] += cmplx.Abs(spec[bin])
		}
	}

	bestCorr := math.Inf(-1)
	bestKey := ""
	for rot := 0; rot < 12; rot++ {
		rolled := make([]float64, 12)
		for j := 0; j < 12; j++ {
			rolled[j] = chroma[(j+rot)%12]
		}
		if corr := pearson(rolled, majProfile); corr > bestCorr {
			bestCorr = corr
			bestKey = noteNames[rot]
		}
		if corr := pearson(rolled, minProfile); corr > bestCorr {
			bestCorr = corr
			bestKey = noteNames[rot] + "m"
		}
	}
	return bestKey
}

func pearson(a, b []float64) float64 {
	n := len(a)
	if n == 0 || n != len(b) {
		return 0
	}
	var sumA, sumB, sumAB, sumA2, sumB2 float64
	for i := 0; i < n; i++ {
		sumA += a[i]
		sumB += b[i]
		sumAB += a[i] * b[i]
		sumA2 += a[i] * a[i]
		sumB2 += b[i] * b[i]
	}
	num := float64(n)*sumAB - sumA*sumB
	den := math.Sqrt((float64(n)*sumA2 - sumA*sumA) * (float64(n)*sumB2 - sumB*sumB))
	if den < 1e-12 {
		return 0
	}
	return num / den
}
