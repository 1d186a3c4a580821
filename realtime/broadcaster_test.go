package realtime

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"chatwire/domain/event"
	"chatwire/observability"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func startBroadcaster(t *testing.T, registry *Registry) {
	t.Helper()
	broadcaster := NewBroadcaster(logs.GetLoggerFromLevel(slog.LevelDebug), registry,
		observability.NewStats(slog.Default()))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() {
		_ = broadcaster.Run(ctx)
	}()
}

// lastPresenceSet decodes the most recent presence frame a connection saw.
func lastPresenceSet(t *testing.T, conn *fakeConn) ([]string, bool) {
	t.Helper()
	frames := conn.pushed()
	for i := len(frames) - 1; i >= 0; i-- {
		if frames[i].Kind != event.KindPresence {
			continue
		}
		online, err := frames[i].PresenceSet()
		require.NoError(t, err)
		return online, true
	}
	return nil, false
}

func TestBroadcaster_Sends_Full_Online_Set_To_Every_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	startBroadcaster(t, registry)

	u1 := newFakeConn("u1")
	u2 := newFakeConn("u2")

	// When two identities come online
	registry.Register(u1)
	registry.Register(u2)

	// Then every connection eventually sees the complete set
	req.Eventually(func() bool {
		for _, conn := range []*fakeConn{u1, u2} {
			online, ok := lastPresenceSet(t, conn)
			if !ok || len(online) != 2 {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	online, _ := lastPresenceSet(t, u1)
	req.ElementsMatch([]string{"u1", "u2"}, online)
}

func TestBroadcaster_Reflects_Departures(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	startBroadcaster(t, registry)

	u1 := newFakeConn("u1")
	u2 := newFakeConn("u2")
	registry.Register(u1)
	registry.Register(u2)

	// When u2 drops its only connection
	registry.Unregister("u2", u2.ID())

	// Then u1 eventually sees a set without u2
	req.Eventually(func() bool {
		online, ok := lastPresenceSet(t, u1)
		return ok && len(online) == 1 && online[0] == "u1"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestBroadcaster_Survives_A_Failing_Connection(t *testing.T) {
	req := require.New(t)
	registry := NewRegistry()
	startBroadcaster(t, registry)

	broken := newFakeConn("u1")
	broken.failPush = true
	healthy := newFakeConn("u2")

	registry.Register(broken)
	registry.Register(healthy)

	// The healthy connection still receives the broadcast
	req.Eventually(func() bool {
		online, ok := lastPresenceSet(t, healthy)
		return ok && len(online) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
