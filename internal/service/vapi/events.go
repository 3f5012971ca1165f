package vapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/zhouzirui/prepx/backend/internal/model/call"
)

// ErrIgnoredMessage marks server messages that do not map to a call event,
// e.g. tool calls or volume levels.
var ErrIgnoredMessage = errors.New("vapi: message ignored")

type serverEnvelope struct {
	Message serverMessage `json:"message"`
}

type serverMessage struct {
	Type           string `json:"type"`
	Status         string `json:"status"`
	Role           string `json:"role"`
	TranscriptType string `json:"transcriptType"`
	Transcript     string `json:"transcript"`
	EndedReason    string `json:"endedReason"`
	Error          string `json:"error"`
	Call           struct {
		ID       string            `json:"id"`
		Metadata map[string]string `json:"metadata"`
	} `json:"call"`
}

// ServerEvent is a webhook message translated to a call event.
type ServerEvent struct {
	CallID       string
	VendorCallID string
	Event        call.Event
}

// ParseServerMessage decodes a webhook body. Messages that carry nothing for
// the call state return ErrIgnoredMessage.
func ParseServerMessage(body []byte) (ServerEvent, error) {
	var env serverEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return ServerEvent{}, fmt.Errorf("vapi: decode server message: %w", err)
	}
	msg := env.Message

	out := ServerEvent{
		CallID:       msg.Call.Metadata[MetadataCallID],
		VendorCallID: msg.Call.ID,
	}

	switch msg.Type {
	case "status-update":
		switch msg.Status {
		case "in-progress":
			out.Event = call.Event{Type: call.EventCallStart}
		case "ended":
			out.Event = call.Event{Type: call.EventCallEnd}
		default:
			return out, ErrIgnoredMessage
		}
	case "end-of-call-report":
		out.Event = call.Event{Type: call.EventCallEnd}
	case "transcript", "transcript[transcriptType=\"final\"]":
		transcriptType := msg.TranscriptType
		if transcriptType == "" && strings.Contains(msg.Type, "final") {
			transcriptType = "final"
		}
		out.Event = call.Event{Type: call.EventMessage, Message: &call.VendorMessage{
			Type:           "transcript",
			TranscriptType: transcriptType,
			Role:           call.Role(msg.Role),
			Transcript:     msg.Transcript,
		}}
	case "speech-update":
		switch msg.Status {
		case "started":
			out.Event = call.Event{Type: call.EventSpeechStart}
		case "stopped":
			out.Event = call.Event{Type: call.EventSpeechEnd}
		default:
			return out, ErrIgnoredMessage
		}
	case "hang":
		// 助手响应迟缓的提示，通话仍在继续
		log.Printf("[vapi] assistant hang reported call=%s vendorCall=%s", out.CallID, out.VendorCallID)
		return out, ErrIgnoredMessage
	case "error":
		reason := firstNonEmpty(msg.Error, msg.EndedReason, msg.Type)
		out.Event = call.Event{Type: call.EventError, Error: reason}
	default:
		return out, ErrIgnoredMessage
	}

	if out.CallID == "" && out.VendorCallID == "" {
		return out, errors.New("vapi: server message without call reference")
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
