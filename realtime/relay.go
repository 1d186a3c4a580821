package realtime

import (
	"chatwire/domain"
	"chatwire/domain/event"
	"chatwire/errors"
	"chatwire/observability"
	"chatwire/repositories"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/abadojack/whatlanggo"
	"github.com/google/uuid"
)

// Masker sanitizes message text before it is persisted or delivered.
type Masker interface {
	Censor(original string) (string, []string)
}

// Indexer makes persisted messages searchable. Indexing is best effort,
// a failure never blocks delivery.
type Indexer interface {
	IndexMessage(msg domain.Message) error
}

// Relay turns send commands into durable, delivered messages.
// Persistence is the commit point: a message exists once stored, whether
// or not anyone was online to receive the push.
type Relay struct {
	log      *slog.Logger
	registry *Registry
	messages repositories.IMessageRepository
	users    repositories.IUserRepository
	masker   Masker
	indexer  Indexer
	stats    *observability.Stats
}

func NewRelay(log *slog.Logger, registry *Registry,
	messages repositories.IMessageRepository, users repositories.IUserRepository,
	masker Masker, indexer Indexer, stats *observability.Stats) *Relay {
	return &Relay{
		log:      log,
		registry: registry,
		messages: messages,
		users:    users,
		masker:   masker,
		indexer:  indexer,
		stats:    stats,
	}
}

// Send validates, persists and then best-effort pushes one message.
// The returned record carries the server-assigned id and timestamp.
// A persistence failure means no record exists and nothing was pushed.
func (r *Relay) Send(_ context.Context, cmd domain.SendCommand) (domain.Message, error) {
	if cmd.Text == "" && cmd.ImageRef == "" {
		return domain.Message{}, errors.ErrEmptyMessage
	}

	if _, err := r.users.GetIdentity(cmd.ReceiverID); err != nil {
		return domain.Message{}, fmt.Errorf("%w: %s", errors.ErrUnknownReceiver, cmd.ReceiverID)
	}

	text := cmd.Text
	if text != "" {
		sanitized, censoredWords := r.masker.Censor(text)
		if len(censoredWords) > 0 {
			info := whatlanggo.Detect(text)
			r.log.Warn("Censored outbound message",
				slog.String("sender", cmd.SenderID),
				slog.Int("words", len(censoredWords)),
				slog.String("lang", info.Lang.Iso6391()))
			r.stats.IncrCensored()
		}
		text = sanitized
	}

	message := domain.Message{
		ID:         uuid.New(),
		SenderID:   cmd.SenderID,
		ReceiverID: cmd.ReceiverID,
		Text:       text,
		ImageRef:   cmd.ImageRef,
		CreatedAt:  time.Now().UTC(),
	}

	if err := r.messages.StoreMessage(message); err != nil {
		return domain.Message{}, fmt.Errorf("persisting message: %w", err)
	}
	r.stats.IncrRelayed()

	if err := r.indexer.IndexMessage(message); err != nil {
		r.log.Warn("Indexing failed, message stays searchable-by-history only",
			slog.String("message", message.ID.String()),
			slog.Any("error", err))
	}

	r.push(message)

	return message, nil
}

// History returns the conversation between the caller and a peer in
// creation order. This is the recovery path for every push the receiver
// missed while offline.
func (r *Relay) History(_ context.Context, cmd domain.HistoryCommand) ([]domain.Message, error) {
	return r.messages.GetConversation(cmd.SelfID, cmd.PeerID)
}

// push delivers the persisted message to each of the receiver's live
// connections. An offline receiver is the normal case, not an error; a
// failed write to a live socket is logged and dropped, the receiver
// recovers through History.
func (r *Relay) push(message domain.Message) {
	conns := r.registry.ConnectionsFor(message.ReceiverID)
	if len(conns) == 0 {
		r.log.Debug("Receiver offline, skipping push",
			slog.String("receiver", message.ReceiverID))
		return
	}

	frame := event.NewMessage(message)
	for _, conn := range conns {
		if err := conn.Push(frame); err != nil {
			r.log.Warn("Message push failed",
				slog.String("connection", conn.ID()),
				slog.String("receiver", message.ReceiverID),
				slog.Any("error", err))
			r.stats.IncrPushFailures()
			continue
		}
		r.stats.IncrPushed()
	}
}
