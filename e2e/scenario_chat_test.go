package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/stretchr/testify/suite"

	"chatwire/domain"
)

type testChatDeliverySuite struct {
	BaseChatSuite
}

func TestChatDeliverySuite(t *testing.T) {
	suite.Run(t, &testChatDeliverySuite{})
}

func (s *testChatDeliverySuite) TestOfflineCatchUpFlow() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	ada := s.NewUser(s.T(), "Ada")
	linus := s.NewUser(s.T(), "Linus")

	// --- STEP 0: BOTH USERS GO ONLINE ---
	s.Run("Step 0: Connect both users", func() {
		s.Require().NoError(ada.Connect(ctx))
		s.Require().NoError(linus.Connect(ctx))

		// Presence sentinels: each side must observe the other before any
		// delivery check means anything
		s.Eventually(func() bool {
			return lo.Contains(ada.Online(), linus.SelfID()) &&
				lo.Contains(linus.Online(), ada.SelfID())
		}, 10*time.Second, 100*time.Millisecond, "Presence never converged on both sides")
	})

	// --- STEP 1: LIVE DELIVERY ---
	s.Run("Step 1: Live push reaches the open conversation", func() {
		_, err := linus.SelectConversation(ctx, ada.SelfID())
		s.Require().NoError(err)

		_, err = ada.Send(ctx, linus.SelfID(), "hi", "")
		s.Require().NoError(err)

		s.Eventually(func() bool {
			return len(linus.Transcript()) == 1
		}, 10*time.Second, 100*time.Millisecond, "Push never reached the receiver")
		s.Require().Equal("hi", linus.Transcript()[0].Text)
		s.T().Log("Verified: live push delivered to the open conversation")
	})

	// --- STEP 2: OFFLINE BUFFERING ---
	s.Run("Step 2: Messages sent while offline are not lost", func() {
		linus.Disconnect()

		_, err := ada.Send(ctx, linus.SelfID(), "you there?", "")
		s.Require().NoError(err)

		// The receiver is gone, nothing may arrive locally
		s.Require().Len(linus.Transcript(), 1, "A push arrived on a disconnected store")
	})

	// --- STEP 3: CATCH-UP ON RECONNECT ---
	s.Run("Step 3: Reconnect recovers the missed message", func() {
		s.Require().NoError(linus.Connect(ctx))

		s.Eventually(func() bool {
			return len(linus.Transcript()) == 2
		}, 10*time.Second, 100*time.Millisecond, "History catch-up never completed")

		transcript := linus.Transcript()
		s.Dump("transcript after catch-up", transcript)
		s.Require().Equal([]string{"hi", "you there?"},
			lo.Map(transcript, func(m domain.Message, _ int) string { return m.Text }))
		s.T().Log("Success: missed message recovered in order")
	})
}

func (s *testChatDeliverySuite) TestSearchSpansTheConversation() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	grace := s.NewUser(s.T(), "Grace")
	alan := s.NewUser(s.T(), "Alan")

	_, err := grace.Send(ctx, alan.SelfID(), "rendezvous at the harbour", "")
	s.Require().NoError(err)

	// Fresh identities scope the query, reruns cannot collide
	hits, err := grace.Search(ctx, alan.SelfID(), "rendezvous")
	s.Require().NoError(err)
	s.Require().Len(hits, 1)
	s.Require().Equal(grace.SelfID(), hits[0].SenderID)
	s.Dump("search hits", hits)
}
