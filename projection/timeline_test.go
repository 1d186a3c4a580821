package projection

import (
	"testing"
	"time"

	"chatwire/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func entry(text string) domain.Message {
	return domain.Message{
		ID:        uuid.New(),
		SenderID:  "alice",
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
}

func TestTimeline_Append_Deduplicates(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")

	first := entry("Hello Bob")
	req.True(timeline.Append(first))
	req.True(timeline.Append(entry("Hi again")))

	// The same push delivered twice lands once
	req.False(timeline.Append(first))

	got := timeline.Messages()
	req.Len(got, 2)
	req.Equal("Hello Bob", got[0].Text)
	req.Equal("Hi again", got[1].Text)
}

func TestTimeline_Rebase_Keeps_Late_Arrivals(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")

	older := entry("from history")
	shared := entry("seen by both")
	late := entry("pushed during the fetch")

	// Pushes that raced the history fetch
	timeline.Append(shared)
	timeline.Append(late)

	// The fetched history carries the authoritative order
	timeline.Rebase([]domain.Message{older, shared})

	got := timeline.Messages()
	req.Len(got, 3)
	req.Equal([]string{"from history", "seen by both", "pushed during the fetch"},
		[]string{got[0].Text, got[1].Text, got[2].Text})

	// Rebase rebuilt the dedupe set as well
	req.False(timeline.Append(late))
	req.Equal(3, timeline.Len())
}

func TestTimeline_Messages_Returns_A_Copy(t *testing.T) {
	req := require.New(t)
	timeline := NewTimeline("alice")
	timeline.Append(entry("original"))

	leaked := timeline.Messages()
	leaked[0].Text = "mutated"

	req.Equal("original", timeline.Messages()[0].Text)
}
