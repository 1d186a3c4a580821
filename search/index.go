// Package search maintains a full-text index over message text so a
// participant can find old messages without scrolling whole histories.
package search

import (
	"chatwire/domain"
	"context"
	"fmt"
	"log/slog"

	"github.com/blugelabs/bluge"
)

// Hit is one search result; Text is the stored sanitized message text.
type Hit struct {
	MessageID string  `json:"messageId"`
	SenderID  string  `json:"senderId"`
	Text      string  `json:"text"`
	Score     float64 `json:"score"`
}

// Index wraps a bluge writer. Every persisted message with text gets a
// document; image-only messages are skipped, there is nothing to match.
type Index struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewIndex(writer *bluge.Writer, log *slog.Logger) *Index {
	return &Index{writer: writer, log: log}
}

// IndexMessage makes one message searchable. The participant field is
// multivalued so either side of the conversation can match it.
func (i *Index) IndexMessage(msg domain.Message) error {
	if msg.Text == "" {
		return nil
	}

	doc := bluge.NewDocument(msg.ID.String()).
		AddField(bluge.NewTextField("text", msg.Text).StoreValue()).
		AddField(bluge.NewKeywordField("sender", msg.SenderID).StoreValue()).
		AddField(bluge.NewKeywordField("conversation", domain.ConversationKey(msg.SenderID, msg.ReceiverID))).
		AddField(bluge.NewKeywordField("participant", msg.SenderID)).
		AddField(bluge.NewKeywordField("participant", msg.ReceiverID)).
		AddField(bluge.NewDateTimeField("created_at", msg.CreatedAt))

	if err := i.writer.Update(doc.ID(), doc); err != nil {
		return fmt.Errorf("indexing message %s: %w", msg.ID, err)
	}
	return nil
}

// Search returns the best matches for a query among the caller's
// messages. When peerID is set the scope narrows to that conversation.
func (i *Index) Search(ctx context.Context, selfID, peerID, query string, limit int) ([]Hit, error) {
	q := bluge.NewBooleanQuery().
		AddMust(bluge.NewMatchQuery(query).SetField("text")).
		AddMust(bluge.NewTermQuery(selfID).SetField("participant"))
	if peerID != "" {
		q.AddMust(bluge.NewTermQuery(domain.ConversationKey(selfID, peerID)).SetField("conversation"))
	}

	reader, err := i.writer.Reader()
	if err != nil {
		return nil, fmt.Errorf("opening index reader: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	iterator, err := reader.Search(ctx, bluge.NewTopNSearch(limit, q))
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}

	var hits []Hit
	for {
		match, err := iterator.Next()
		if err != nil {
			return nil, err
		}
		if match == nil {
			break
		}

		hit := Hit{Score: match.Score}
		err = match.VisitStoredFields(func(field string, value []byte) bool {
			switch field {
			case "_id":
				hit.MessageID = string(value)
			case "sender":
				hit.SenderID = string(value)
			case "text":
				hit.Text = string(value)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
		hits = append(hits, hit)
	}

	i.log.Debug("Search completed",
		slog.String("self", selfID),
		slog.Int("hits", len(hits)))
	return hits, nil
}
