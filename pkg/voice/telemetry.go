package voice

import (
	"sync"
	"time"
)

// Telemetry per-session rolling quality metrics. Used for reporting and
// the persisted session summary, never for control flow.
type Telemetry struct {
	mu                    sync.Mutex
	windowSize            int
	latencies             []time.Duration
	audioQuality          float64
	transcriptionAccuracy float64
	connectionStability   float64
	turnCount             int
	flushCount            int
	droppedFlushes        int
	chunksReceived        uint64
}

// TelemetrySnapshot point-in-time copy of the metrics
type TelemetrySnapshot struct {
	AvgLatencyMs          float64
	AudioQuality          float64
	TranscriptionAccuracy float64
	ConnectionStability   float64
	TurnCount             int
	FlushCount            int
	DroppedFlushes        int
	ChunksReceived        uint64
}

// ewmaAlpha weight of the newest transcription confidence sample
const ewmaAlpha = 0.3

// NewTelemetry creates a telemetry record with a bounded latency window
func NewTelemetry(windowSize int) *Telemetry {
	if windowSize <= 0 {
		windowSize = 20
	}
	return &Telemetry{
		windowSize:          windowSize,
		latencies:           make([]time.Duration, 0, windowSize),
		connectionStability: 1.0,
	}
}

// RecordLatency adds a turn latency sample, evicting the oldest once the
// window is full.
func (t *Telemetry) RecordLatency(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.latencies) == t.windowSize {
		t.latencies = t.latencies[1:]
	}
	t.latencies = append(t.latencies, d)
}

// RecordTranscription folds a transcription confidence into the accuracy EWMA
func (t *Telemetry) RecordTranscription(confidence float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.transcriptionAccuracy == 0 {
		t.transcriptionAccuracy = confidence
		return
	}
	t.transcriptionAccuracy = ewmaAlpha*confidence + (1-ewmaAlpha)*t.transcriptionAccuracy
}

// RecordFlush counts a processed flush
func (t *Telemetry) RecordFlush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.flushCount++
}

// RecordDroppedFlush counts a flush dropped on adapter failure
func (t *Telemetry) RecordDroppedFlush() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.droppedFlushes++
}

// RecordTurn counts a completed conversational turn
func (t *Telemetry) RecordTurn() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.turnCount++
}

// RecordChunk counts one received audio fragment
func (t *Telemetry) RecordChunk() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunksReceived++
}

// ApplyQualityReport stores client-reported quality measurements
func (t *Telemetry) ApplyQualityReport(audioQuality, connectionStability float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if audioQuality > 0 {
		t.audioQuality = audioQuality
	}
	if connectionStability > 0 {
		t.connectionStability = connectionStability
	}
}

// Snapshot returns a copy of the current metrics
func (t *Telemetry) Snapshot() TelemetrySnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	var avg float64
	if len(t.latencies) > 0 {
		var sum time.Duration
		for _, d := range t.latencies {
			sum += d
		}
		avg = float64(sum.Milliseconds()) / float64(len(t.latencies))
	}
	return TelemetrySnapshot{
		AvgLatencyMs:          avg,
		AudioQuality:          t.audioQuality,
		TranscriptionAccuracy: t.transcriptionAccuracy,
		ConnectionStability:   t.connectionStability,
		TurnCount:             t.turnCount,
		FlushCount:            t.flushCount,
		DroppedFlushes:        t.droppedFlushes,
		ChunksReceived:        t.chunksReceived,
	}
}
