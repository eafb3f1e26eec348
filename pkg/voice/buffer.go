package voice

import (
	"sync"
	"time"
)

// ChunkBuffer accumulates inbound audio fragments for one session in
// arrival order. The owning session is the only writer; the internal
// mutex keeps Flush and Append from interleaving so a flush always sees
// a consistent prefix and later fragments land in the next flush.
type ChunkBuffer struct {
	mu          sync.Mutex
	data        []byte
	chunkCount  int
	lastSeq     uint64
	lastFlush   time.Time
	maxBytes    int
	maxInterval time.Duration
}

// NewChunkBuffer creates a buffer with the given flush policy. now is
// the session start; the first interval flush is measured from it.
func NewChunkBuffer(maxBytes int, maxInterval time.Duration, now time.Time) *ChunkBuffer {
	return &ChunkBuffer{
		data:        make([]byte, 0, maxBytes),
		lastFlush:   now,
		maxBytes:    maxBytes,
		maxInterval: maxInterval,
	}
}

// Append adds one fragment in arrival order
func (b *ChunkBuffer) Append(data []byte, seq uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data = append(b.data, data...)
	b.chunkCount++
	if seq > b.lastSeq {
		b.lastSeq = seq
	}
}

// ShouldFlush reports whether either flush condition is met: size at or
// past the byte threshold, or the interval elapsed since the last flush.
func (b *ChunkBuffer) ShouldFlush(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		return false
	}
	if len(b.data) >= b.maxBytes {
		return true
	}
	return now.Sub(b.lastFlush) >= b.maxInterval
}

// Flush concatenates everything buffered into one blob and clears the
// buffer before returning, so a concurrent Append can never land in the
// blob being processed. Returns nil when empty.
func (b *ChunkBuffer) Flush(now time.Time) []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) == 0 {
		b.lastFlush = now
		return nil
	}
	blob := b.data
	b.data = make([]byte, 0, b.maxBytes)
	b.chunkCount = 0
	b.lastFlush = now
	return blob
}

// Len returns the buffered byte count
func (b *ChunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// Chunks returns the buffered fragment count
func (b *ChunkBuffer) Chunks() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.chunkCount
}

// LastSequence returns the highest sequence number seen
func (b *ChunkBuffer) LastSequence() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastSeq
}
