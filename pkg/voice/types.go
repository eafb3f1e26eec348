package voice

import (
	"encoding/json"
	"fmt"

	"github.com/bytedance/sonic"
)

// Client-to-server event types
const (
	EventStartSession   = "start-session"
	EventAudioChunk     = "audio-chunk"
	EventTextInput      = "text-input"
	EventEndSession     = "end-session"
	EventChangeLanguage = "change-language"
	EventQualityReport  = "quality-report"
	EventLocationUpdate = "location-update"
)

// Server-to-client event types
const (
	EventSessionStarted    = "session-started"
	EventChunkReceived     = "chunk-received"
	EventTranscription     = "transcription"
	EventAIResponse        = "ai-response"
	EventEmergencyDetected = "emergency-detected"
	EventSessionEnded      = "session-ended"
	EventSessionError      = "session-error"
)

// Envelope inbound event envelope; payload stays raw until the event
// type is known.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// DecodeEnvelope parses an inbound frame
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("malformed event: %w", err)
	}
	if env.Type == "" {
		return nil, fmt.Errorf("event missing type")
	}
	return &env, nil
}

// Decode unmarshals the payload into v
func (e *Envelope) Decode(v interface{}) error {
	if len(e.Payload) == 0 {
		return nil
	}
	if err := sonic.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("malformed %s payload: %w", e.Type, err)
	}
	return nil
}

// EncodeEvent builds an outbound frame
func EncodeEvent(eventType string, payload interface{}) ([]byte, error) {
	return sonic.Marshal(struct {
		Type    string      `json:"type"`
		Payload interface{} `json:"payload,omitempty"`
	}{Type: eventType, Payload: payload})
}

// StartSessionPayload opens a session on the current connection.
// EmergencyDetectionEnabled defaults to true when omitted.
type StartSessionPayload struct {
	Language                  string `json:"language"`
	EmergencyDetectionEnabled *bool  `json:"emergencyDetectionEnabled,omitempty"`
	AudioQuality              string `json:"audioQuality,omitempty"`
}

// AudioChunkPayload one inbound audio fragment; Data is base64 on the wire
type AudioChunkPayload struct {
	Data           []byte `json:"data"`
	SequenceNumber uint64 `json:"sequenceNumber"`
	Timestamp      int64  `json:"timestamp,omitempty"`
}

// TextInputPayload typed input, bypasses audio buffering
type TextInputPayload struct {
	Text string `json:"text"`
}

// ChangeLanguagePayload switches the session language
type ChangeLanguagePayload struct {
	Language string `json:"language"`
}

// QualityReportPayload client-side quality measurements
type QualityReportPayload struct {
	AudioQuality        float64 `json:"audioQuality"`
	ConnectionStability float64 `json:"connectionStability"`
}

// LocationUpdatePayload last-known location for emergency context
type LocationUpdatePayload struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label,omitempty"`
}

// SessionStartedPayload confirms session creation
type SessionStartedPayload struct {
	SessionID string `json:"sessionId"`
	Language  string `json:"language"`
}

// ChunkReceivedPayload acknowledges one audio fragment
type ChunkReceivedPayload struct {
	SequenceNumber uint64 `json:"sequenceNumber"`
}

// TranscriptionPayload partial or final transcription text
type TranscriptionPayload struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	IsPartial  bool    `json:"isPartial"`
}

// AIResponsePayload one conversational reply with synthesized audio
type AIResponsePayload struct {
	Text        string   `json:"text"`
	Intent      string   `json:"intent"`
	Confidence  float64  `json:"confidence"`
	Actions     []string `json:"actions,omitempty"`
	Audio       []byte   `json:"audio,omitempty"`
	AudioFormat string   `json:"audioFormat,omitempty"`
}

// EmergencyDetectedPayload immediate emergency acknowledgment
type EmergencyDetectedPayload struct {
	Type          string  `json:"type"`
	Confidence    float64 `json:"confidence"`
	UrgencyLevel  string  `json:"urgencyLevel"`
	AudioResponse []byte  `json:"audioResponse,omitempty"`
	AudioFormat   string  `json:"audioFormat,omitempty"`
}

// SessionEndedPayload closes out a session
type SessionEndedPayload struct {
	Duration float64 `json:"duration"` // seconds
}

// SessionErrorPayload non-fatal error surfaced to the client
type SessionErrorPayload struct {
	Error string `json:"error"`
}
