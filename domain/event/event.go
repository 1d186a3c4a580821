// Package event defines the push frames emitted to live connections.
// Frames are JSON on the wire; the payload shape depends on the kind.
package event

import (
	"chatwire/domain"
	"encoding/json"
)

// Kind discriminates push frames on the wire.
type Kind string

const (
	// KindPresence carries the complete set of online identity ids.
	KindPresence Kind = "presence"
	// KindMessage carries one full persisted message record.
	KindMessage Kind = "message"
)

// Event is one frame pushed from the server to a connected client.
type Event struct {
	Kind    Kind            `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewPresence builds a presence frame from the current online set.
func NewPresence(online []string) Event {
	payload, _ := json.Marshal(online)
	return Event{Kind: KindPresence, Payload: payload}
}

// NewMessage builds a message frame from a persisted record.
func NewMessage(msg domain.Message) Event {
	payload, _ := json.Marshal(msg)
	return Event{Kind: KindMessage, Payload: payload}
}

// PresenceSet decodes the payload of a presence frame.
func (e Event) PresenceSet() ([]string, error) {
	var online []string
	err := json.Unmarshal(e.Payload, &online)
	return online, err
}

// Message decodes the payload of a message frame.
func (e Event) Message() (domain.Message, error) {
	var msg domain.Message
	err := json.Unmarshal(e.Payload, &msg)
	return msg, err
}
