package voice

import (
	"bytes"
	"testing"
	"time"
)

func TestChunkBufferSizeThresholdBoundary(t *testing.T) {
	now := time.Now()
	b := NewChunkBuffer(1024, time.Hour, now)

	// one byte under the threshold: no flush
	b.Append(make([]byte, 1023), 1)
	if b.ShouldFlush(now) {
		t.Error("expected no flush at threshold-1 bytes")
	}

	// reaching the threshold flushes
	b.Append(make([]byte, 1), 2)
	if !b.ShouldFlush(now) {
		t.Error("expected flush at threshold bytes")
	}
}

func TestChunkBufferIntervalFlush(t *testing.T) {
	start := time.Now()
	b := NewChunkBuffer(1<<20, 3*time.Second, start)

	b.Append([]byte("audio"), 1)
	if b.ShouldFlush(start.Add(2 * time.Second)) {
		t.Error("expected no flush before the interval elapses")
	}
	if !b.ShouldFlush(start.Add(3 * time.Second)) {
		t.Error("expected flush once the interval elapses")
	}
}

func TestChunkBufferEmptyNeverFlushes(t *testing.T) {
	start := time.Now()
	b := NewChunkBuffer(1024, time.Millisecond, start)
	if b.ShouldFlush(start.Add(time.Hour)) {
		t.Error("empty buffer must not flush")
	}
	if blob := b.Flush(start.Add(time.Hour)); blob != nil {
		t.Errorf("expected nil blob from empty flush, got %d bytes", len(blob))
	}
}

func TestChunkBufferFlushConcatenatesAndClears(t *testing.T) {
	now := time.Now()
	b := NewChunkBuffer(1024, time.Hour, now)

	b.Append([]byte("one"), 1)
	b.Append([]byte("two"), 2)
	b.Append([]byte("three"), 3)

	blob := b.Flush(now)
	if !bytes.Equal(blob, []byte("onetwothree")) {
		t.Errorf("unexpected blob: %q", blob)
	}
	if b.Len() != 0 || b.Chunks() != 0 {
		t.Errorf("buffer not cleared: len=%d chunks=%d", b.Len(), b.Chunks())
	}
	if b.LastSequence() != 3 {
		t.Errorf("expected last sequence 3, got %d", b.LastSequence())
	}

	// interval timer resets on flush
	if b.ShouldFlush(now) {
		t.Error("expected no flush right after flushing")
	}
	b.Append([]byte("later"), 4)
	if b.ShouldFlush(now.Add(time.Second)) {
		t.Error("interval should be measured from the last flush")
	}
}
