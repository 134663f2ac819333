package audio

import (
	"fmt"
	"os"
)

// WriteOptions controls how a PCM payload is persisted
type WriteOptions struct {
	Format    Format
	Normalize bool
}

// WriteResult describes a written WAV file
type WriteResult struct {
	Path      string
	FileBytes int   // header + payload
	DataBytes int   // payload only
	Stats     Stats // analysis of the payload before normalization
}

// WriteWAVFile optionally peak-normalizes pcm, wraps it in a WAV container and
// writes it to path. Nothing is written if any step fails.
func WriteWAVFile(path string, pcm []byte, opts WriteOptions) (*WriteResult, error) {
	stats, err := Analyze(pcm)
	if err != nil {
		return nil, err
	}

	payload := pcm
	if opts.Normalize {
		payload, err = NormalizePeak(pcm)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize audio: %w", err)
		}
	}

	wav, err := EncodeWAV(payload, opts.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to encode WAV: %w", err)
	}

	if err := os.WriteFile(path, wav, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write %s: %w", path, err)
	}

	return &WriteResult{
		Path:      path,
		FileBytes: len(wav),
		DataBytes: len(payload),
		Stats:     stats,
	}, nil
}
