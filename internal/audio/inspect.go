package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	wav "github.com/youpy/go-wav"
)

// FileInfo is the report produced by InspectFile
type FileInfo struct {
	Path          string        `json:"path"`
	SampleRate    uint32        `json:"sample_rate"`
	Channels      uint16        `json:"channels"`
	BitsPerSample uint16        `json:"bits_per_sample"`
	Frames        int           `json:"frames"`
	Duration      time.Duration `json:"duration"`
	Stats         Stats         `json:"stats"` // first channel only
}

// InspectFile parses a WAV file with an independent RIFF reader and analyzes
// its first channel.
func InspectFile(path string) (*FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	reader := wav.NewReader(f)
	format, err := reader.Format()
	if err != nil {
		return nil, fmt.Errorf("failed to read WAV format: %w", err)
	}
	if format.BitsPerSample != 16 {
		return nil, fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", format.BitsPerSample)
	}

	var samples []int16
	for {
		batch, err := reader.ReadSamples()
		for _, s := range batch {
			samples = append(samples, int16(s.Values[0]))
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read WAV samples: %w", err)
		}
	}

	info := &FileInfo{
		Path:          path,
		SampleRate:    format.SampleRate,
		Channels:      format.NumChannels,
		BitsPerSample: format.BitsPerSample,
		Frames:        len(samples),
		Stats:         AnalyzeSamples(samples),
	}
	if format.SampleRate > 0 {
		info.Duration = time.Duration(len(samples)) * time.Second / time.Duration(format.SampleRate)
	}

	return info, nil
}
