package domain

import "strings"

// ConversationKey derives the canonical key for the unordered identity
// pair (a, b). Both orderings map to the same key, so one conversation
// owns a single chronological message sequence in storage.
func ConversationKey(a, b string) string {
	if strings.Compare(a, b) > 0 {
		a, b = b, a
	}
	return a + "|" + b
}

// PeerOf returns the other side of a conversation relative to self.
func (m Message) PeerOf(self string) string {
	if m.SenderID == self {
		return m.ReceiverID
	}
	return m.SenderID
}
