// Package projection builds local conversation timelines from history
// fetches and live pushes. Handles ordering and deduplication.
// Does not emit events or talk to the network directly.
package projection

import (
	"chatwire/domain"

	"github.com/google/uuid"
)

// Timeline is the local view of one conversation. It is not safe for
// concurrent use, callers hold their own lock.
type Timeline struct {
	Peer string

	messages []domain.Message
	seen     map[uuid.UUID]struct{}
}

func NewTimeline(peer string) *Timeline {
	return &Timeline{
		Peer: peer,
		seen: make(map[uuid.UUID]struct{}),
	}
}

// Append adds a pushed or locally sent message. Duplicates are dropped, so
// a push racing a history fetch cannot double a line.
func (t *Timeline) Append(msg domain.Message) bool {
	if _, ok := t.seen[msg.ID]; ok {
		return false
	}
	t.seen[msg.ID] = struct{}{}
	t.messages = append(t.messages, msg)
	return true
}

// Rebase replaces the timeline with a fetched history while keeping any
// message that arrived after the fetch was answered. The server order is
// authoritative, later arrivals are strictly newer and stay at the tail.
func (t *Timeline) Rebase(history []domain.Message) {
	merged := make([]domain.Message, 0, len(history)+len(t.messages))
	seen := make(map[uuid.UUID]struct{}, len(history)+len(t.messages))
	for _, msg := range history {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		seen[msg.ID] = struct{}{}
		merged = append(merged, msg)
	}
	for _, msg := range t.messages {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		seen[msg.ID] = struct{}{}
		merged = append(merged, msg)
	}
	t.messages = merged
	t.seen = seen
}

// Messages returns a copy, the timeline keeps sole ownership of its slice.
func (t *Timeline) Messages() []domain.Message {
	out := make([]domain.Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Len reports how many messages are currently on the timeline.
func (t *Timeline) Len() int { return len(t.messages) }
