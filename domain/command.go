package domain

// SendCommand is the validated intent to deliver a message from one
// identity to another. CreatedAt is always assigned server-side.
type SendCommand struct {
	SenderID   string
	ReceiverID string
	Text       string
	ImageRef   string
}

// HistoryCommand asks for the conversation between two identities,
// oldest first. Any window limit is a store concern, not the caller's.
type HistoryCommand struct {
	SelfID string
	PeerID string
}
