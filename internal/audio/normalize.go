package audio

import "math"

// PeakTarget is the fraction of full scale the loudest sample is scaled to
const PeakTarget = 0.95

// NormalizePeak scales a 16-bit PCM buffer so its loudest sample sits at
// PeakTarget of full scale. Samples are mapped to [-1, 1] by dividing by 32768
// and mapped back asymmetrically (negative * 32768, non-negative * 32767),
// truncating toward zero. Silence is returned unchanged.
// The input is never modified.
func NormalizePeak(pcm []byte) ([]byte, error) {
	samples, err := BytesToSamples(pcm)
	if err != nil {
		return nil, err
	}

	floats := make([]float64, len(samples))
	maxVal := 0.0
	for i, sample := range samples {
		floats[i] = float64(sample) / 32768.0
		if abs := math.Abs(floats[i]); abs > maxVal {
			maxVal = abs
		}
	}

	if maxVal == 0 {
		out := make([]byte, len(pcm))
		copy(out, pcm)
		return out, nil
	}

	multiplier := PeakTarget / maxVal
	for i, f := range floats {
		v := math.Max(-1, math.Min(1, f*multiplier))
		if v < 0 {
			samples[i] = int16(v * 32768)
		} else {
			samples[i] = int16(v * 32767)
		}
	}

	return SamplesToBytes(samples), nil
}
