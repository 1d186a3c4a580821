// Package domain contains core concepts of the messaging system.
// This file defines Identity entities and related invariants.
// No runtime, network, or UI logic should be added here.
package domain

import "time"

// Identity is a verified, stable user reference used to address
// connections and messages. The ID is opaque and immutable once issued
// by the account store.
type Identity struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	AvatarRef   string    `json:"avatarRef,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
