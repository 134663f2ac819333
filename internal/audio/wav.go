package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// WAVHeaderSize is the size of the canonical RIFF/WAVE header
const WAVHeaderSize = 44

// ErrMisalignedPCM is returned when a PCM payload does not hold a whole number of frames
var ErrMisalignedPCM = errors.New("pcm length is not a multiple of the frame size")

// Format describes a linear PCM stream
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DefaultFormat is what the Gemini audio models emit: mono, 24kHz, 16-bit
var DefaultFormat = Format{SampleRate: 24000, Channels: 1, BitsPerSample: 16}

// FrameSize returns the number of bytes per frame (one sample for every channel)
func (f Format) FrameSize() int {
	return f.Channels * f.BitsPerSample / 8
}

// ByteRate returns the number of payload bytes per second
func (f Format) ByteRate() int {
	return f.SampleRate * f.FrameSize()
}

// Validate checks that the format can be written into a WAV header
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("channel count must be positive, got %d", f.Channels)
	}
	if f.BitsPerSample != 16 {
		return fmt.Errorf("unsupported bit depth: %d (only 16-bit is supported)", f.BitsPerSample)
	}
	return nil
}

// wavHeader mirrors the 44-byte canonical header layout
type wavHeader struct {
	ChunkID       [4]byte // "RIFF"
	ChunkSize     uint32  // 36 + data length
	Format        [4]byte // "WAVE"
	Subchunk1ID   [4]byte // "fmt "
	Subchunk1Size uint32  // 16 for PCM
	AudioFormat   uint16  // 1 for PCM
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32 // SampleRate * NumChannels * BitsPerSample / 8
	BlockAlign    uint16 // NumChannels * BitsPerSample / 8
	BitsPerSample uint16
	Subchunk2ID   [4]byte // "data"
	Subchunk2Size uint32  // data length
}

// EncodeWAV wraps a PCM payload in a canonical WAV container.
// The result is exactly WAVHeaderSize + len(pcm) bytes.
func EncodeWAV(pcm []byte, format Format) ([]byte, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if len(pcm)%format.FrameSize() != 0 {
		return nil, fmt.Errorf("%w: %d bytes, frame size %d", ErrMisalignedPCM, len(pcm), format.FrameSize())
	}

	dataSize := uint32(len(pcm))
	header := wavHeader{
		ChunkID:       [4]byte{'R', 'I', 'F', 'F'},
		ChunkSize:     36 + dataSize,
		Format:        [4]byte{'W', 'A', 'V', 'E'},
		Subchunk1ID:   [4]byte{'f', 'm', 't', ' '},
		Subchunk1Size: 16,
		AudioFormat:   1,
		NumChannels:   uint16(format.Channels),
		SampleRate:    uint32(format.SampleRate),
		ByteRate:      uint32(format.ByteRate()),
		BlockAlign:    uint16(format.FrameSize()),
		BitsPerSample: uint16(format.BitsPerSample),
		Subchunk2ID:   [4]byte{'d', 'a', 't', 'a'},
		Subchunk2Size: dataSize,
	}

	buf := bytes.NewBuffer(make([]byte, 0, WAVHeaderSize+len(pcm)))
	if err := binary.Write(buf, binary.LittleEndian, header); err != nil {
		return nil, fmt.Errorf("failed to write WAV header: %w", err)
	}
	buf.Write(pcm)

	return buf.Bytes(), nil
}

// DecodeWAV splits a canonical WAV container back into its PCM payload and format
func DecodeWAV(data []byte) ([]byte, Format, error) {
	if len(data) < WAVHeaderSize {
		return nil, Format{}, fmt.Errorf("WAV data too short: need at least %d bytes, got %d", WAVHeaderSize, len(data))
	}

	var header wavHeader
	if err := binary.Read(bytes.NewReader(data[:WAVHeaderSize]), binary.LittleEndian, &header); err != nil {
		return nil, Format{}, fmt.Errorf("failed to read WAV header: %w", err)
	}

	switch {
	case string(header.ChunkID[:]) != "RIFF":
		return nil, Format{}, fmt.Errorf("invalid WAV file: missing RIFF header")
	case string(header.Format[:]) != "WAVE":
		return nil, Format{}, fmt.Errorf("invalid WAV file: missing WAVE format")
	case string(header.Subchunk1ID[:]) != "fmt ":
		return nil, Format{}, fmt.Errorf("invalid WAV file: missing fmt chunk")
	case string(header.Subchunk2ID[:]) != "data":
		return nil, Format{}, fmt.Errorf("invalid WAV file: missing data chunk")
	case header.AudioFormat != 1:
		return nil, Format{}, fmt.Errorf("unsupported audio format: %d (only PCM is supported)", header.AudioFormat)
	}

	if uint64(header.Subchunk2Size) > uint64(len(data)-WAVHeaderSize) {
		return nil, Format{}, fmt.Errorf("WAV data truncated: header declares %d bytes, have %d", header.Subchunk2Size, len(data)-WAVHeaderSize)
	}
	end := WAVHeaderSize + int(header.Subchunk2Size)

	format := Format{
		SampleRate:    int(header.SampleRate),
		Channels:      int(header.NumChannels),
		BitsPerSample: int(header.BitsPerSample),
	}

	pcm := make([]byte, header.Subchunk2Size)
	copy(pcm, data[WAVHeaderSize:end])

	return pcm, format, nil
}
