package audio

import (
	"sync"
)

// ChunkList accumulates PCM chunks for one turn in arrival order
type ChunkList struct {
	chunks [][]byte
	size   int
	mu     sync.RWMutex
}

// NewChunkList creates an empty chunk list
func NewChunkList() *ChunkList {
	return &ChunkList{}
}

// Append adds a chunk to the end of the list.
// The list keeps its own copy so callers may reuse data.
func (cl *ChunkList) Append(data []byte) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	chunk := make([]byte, len(data))
	copy(chunk, data)
	cl.chunks = append(cl.chunks, chunk)
	cl.size += len(chunk)
}

// Concat returns every chunk joined in arrival order
func (cl *ChunkList) Concat() []byte {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	out := make([]byte, 0, cl.size)
	for _, chunk := range cl.chunks {
		out = append(out, chunk...)
	}
	return out
}

// Len returns the number of chunks
func (cl *ChunkList) Len() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.chunks)
}

// Size returns the total number of bytes held
func (cl *ChunkList) Size() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return cl.size
}

// Reset clears the list
func (cl *ChunkList) Reset() {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	cl.chunks = nil
	cl.size = 0
}

// IsEmpty returns true if no chunks have been appended since the last Reset
func (cl *ChunkList) IsEmpty() bool {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.chunks) == 0
}
