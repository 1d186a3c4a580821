package realtime

import (
	"chatwire/domain/event"
	"chatwire/observability"
	"context"
	"log/slog"
	"time"
)

// defaultSnapshotInterval bounds how stale a client's online set can get
// if it ever misses a change-triggered broadcast.
const defaultSnapshotInterval = 1 * time.Minute

// Broadcaster watches the registry and pushes the full online-identity set
// to every live connection whenever membership changed. The full set is
// sent every time, never a delta, so clients reconcile trivially after a
// missed event or a reconnect.
type Broadcaster struct {
	log              *slog.Logger
	registry         *Registry
	stats            *observability.Stats
	snapshotInterval time.Duration
}

func NewBroadcaster(log *slog.Logger, registry *Registry, stats *observability.Stats) *Broadcaster {
	return &Broadcaster{
		log:              log,
		registry:         registry,
		stats:            stats,
		snapshotInterval: defaultSnapshotInterval,
	}
}

// Run consumes registry change notifications until the context is done.
// A slow ticker re-sends the current snapshot as a safety net.
func (w *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.registry.Changes():
			w.broadcast()
		case <-ticker.C:
			w.broadcast()
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence broadcast")
			return nil
		}
	}
}

// broadcast recomputes the online set and fans it out to every connection.
// A failed push is logged and counted, never retried here; the connection
// will be reaped by its own transport lifecycle.
func (w *Broadcaster) broadcast() {
	online := w.registry.OnlineIdentities()
	frame := event.NewPresence(online)

	for _, conn := range w.registry.AllConnections() {
		if err := conn.Push(frame); err != nil {
			w.log.Warn("Presence push failed",
				slog.String("connection", conn.ID()),
				slog.String("identity", conn.IdentityID()),
				slog.Any("error", err))
			w.stats.IncrPushFailures()
		}
	}
	w.stats.IncrBroadcasts()
}
