package audio

// Stats summarizes a PCM buffer for diagnosing quiet or clipped output
type Stats struct {
	Samples        int     `json:"samples"`
	Max            int16   `json:"max"`
	Min            int16   `json:"min"`
	AvgAmplitude   float64 `json:"avg_amplitude"`
	RMS            float64 `json:"rms"`
	PercentNonZero float64 `json:"percent_non_zero"`
	DynamicRange   float64 `json:"dynamic_range_percent"` // Max as a percentage of 32767
}

// IsSilent reports whether every sample was zero
func (s Stats) IsSilent() bool {
	return s.Max == 0 && s.Min == 0
}

// Analyze computes Stats over a 16-bit PCM buffer
func Analyze(pcm []byte) (Stats, error) {
	samples, err := BytesToSamples(pcm)
	if err != nil {
		return Stats{}, err
	}
	return AnalyzeSamples(samples), nil
}

// AnalyzeSamples computes Stats over already decoded samples
func AnalyzeSamples(samples []int16) Stats {
	stats := Stats{Samples: len(samples)}
	if len(samples) == 0 {
		return stats
	}

	var sum float64
	nonZero := 0
	for _, sample := range samples {
		if sample > stats.Max {
			stats.Max = sample
		}
		if sample < stats.Min {
			stats.Min = sample
		}
		abs := float64(sample)
		if abs < 0 {
			abs = -abs
		}
		sum += abs
		if sample != 0 {
			nonZero++
		}
	}

	stats.AvgAmplitude = sum / float64(len(samples))
	stats.RMS = CalculateRMS(samples)
	stats.PercentNonZero = float64(nonZero) / float64(len(samples)) * 100
	stats.DynamicRange = float64(stats.Max) / 32767 * 100

	return stats
}
