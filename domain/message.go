// Package domain contains core concepts of the messaging system.
// This file defines Message events and related rules.
// Messages are immutable and validated by the domain.
package domain

import (
	"github.com/google/uuid"
	"time"
)

// Message represents an immutable chat event between two identities.
// Either Text or ImageRef may be empty, never both.
type Message struct {
	ID         uuid.UUID `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text,omitempty"`
	ImageRef   string    `json:"imageRef,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Empty reports whether the message carries no payload at all.
func (m Message) Empty() bool {
	return m.Text == "" && m.ImageRef == ""
}
