package call

import "time"

// EventType names the inputs produced by the voice vendor SDK.
type EventType string

const (
	EventCallStart   EventType = "call-start"
	EventCallEnd     EventType = "call-end"
	EventMessage     EventType = "message"
	EventSpeechStart EventType = "speech-start"
	EventSpeechEnd   EventType = "speech-end"
	EventError       EventType = "error"
)

// Valid reports whether t is a recognised vendor event.
func (t EventType) Valid() bool {
	switch t {
	case EventCallStart, EventCallEnd, EventMessage, EventSpeechStart, EventSpeechEnd, EventError:
		return true
	default:
		return false
	}
}

// VendorMessage mirrors the vendor's "message" payload. Only transcript
// messages with TranscriptType "final" are kept.
type VendorMessage struct {
	Type           string `json:"type"`
	TranscriptType string `json:"transcriptType,omitempty"`
	Role           Role   `json:"role,omitempty"`
	Transcript     string `json:"transcript,omitempty"`
}

// IsFinalTranscript reports whether the message carries a finalized segment.
func (m VendorMessage) IsFinalTranscript() bool {
	return m.Type == "transcript" && m.TranscriptType == "final"
}

// Event is a single vendor callback delivered to a call.
type Event struct {
	Type    EventType      `json:"type"`
	Message *VendorMessage `json:"message,omitempty"`
	Error   string         `json:"error,omitempty"`
}

// Update is what subscribers of a call receive.
type Update struct {
	Kind      string    `json:"kind"`
	CallID    string    `json:"callId"`
	Status    Status    `json:"status,omitempty"`
	Speaking  *bool     `json:"speaking,omitempty"`
	Entry     *Entry    `json:"entry,omitempty"`
	Redirect  string    `json:"redirect,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Update kinds.
const (
	UpdateStatus     = "status"
	UpdateTranscript = "transcript"
	UpdateSpeech     = "speech"
	UpdateRedirect   = "redirect"
	UpdateError      = "error"
)
