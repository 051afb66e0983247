// Package event decodes voice-platform webhook payloads and classifies them
// into the closed set of kinds the relay knows how to answer.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformed is returned when a payload is not valid JSON.
var ErrMalformed = errors.New("event: malformed payload")

// Kind is the closed classification of an inbound event.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindUserTurn
	KindToolCall
	KindStatusUpdate
	KindTranscript
	KindInformational
)

func (k Kind) String() string {
	switch k {
	case KindUserTurn:
		return "user-turn"
	case KindToolCall:
		return "tool-call"
	case KindStatusUpdate:
		return "status-update"
	case KindTranscript:
		return "transcript"
	case KindInformational:
		return "informational"
	default:
		return "unrecognized"
	}
}

// TypeUnknown is reported when a payload carries no type discriminant.
const TypeUnknown = "unknown"

// StatusEnded is the status value signalling call termination.
const StatusEnded = "ended"

var kindsByType = map[string]Kind{
	"assistant-request":   KindUserTurn,
	"function-call":       KindToolCall,
	"tool-calls":          KindToolCall,
	"status-update":       KindStatusUpdate,
	"transcript":          KindTranscript,
	"hang":                KindInformational,
	"speech-update":       KindInformational,
	"conversation-update": KindInformational,
	"end-of-call-report":  KindInformational,
	"user-interrupted":    KindInformational,
	"model-output":        KindInformational,
	"voice-input":         KindInformational,
}

// Classify maps a raw type discriminant onto a Kind.
func Classify(eventType string) Kind {
	if k, ok := kindsByType[eventType]; ok {
		return k
	}
	return KindUnrecognized
}

// Event is one decoded webhook payload. Fields are looked up lazily because
// the platform nests the same logical field at different depths.
type Event struct {
	Type string
	Kind Kind

	root object
}

// Parse decodes raw into an Event. Valid JSON that is not an object yields an
// unrecognized event rather than an error.
func Parse(raw []byte) (Event, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	root, _ := v.(map[string]any)
	ev := Event{root: object(root)}
	ev.Type = ev.lookupString(path{"type"})
	if ev.Type == "" {
		ev.Type = TypeUnknown
	}
	ev.Kind = Classify(ev.Type)
	return ev, nil
}
