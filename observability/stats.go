// Package observability aggregates live counters for the heartbeat worker
// and the debug inspector.
package observability

import (
	"log/slog"
	"runtime"
	"sync/atomic"
)

// Snapshot is a point-in-time view of the counters, served as JSON
// by the debug inspector.
type Snapshot struct {
	LiveConnections  int64  `json:"live_connections"`
	Broadcasts       uint64 `json:"broadcasts"`
	MessagesRelayed  uint64 `json:"messages_relayed"`
	MessagesPushed   uint64 `json:"messages_pushed"`
	PushFailures     uint64 `json:"push_failures"`
	CensoredMessages uint64 `json:"censored_messages"`
	AllocMemMb       uint64 `json:"alloc_mem_mb"`
	NumGC            uint32 `json:"num_gc"`
}

// Stats holds the process-wide counters. All mutation goes through
// atomic increments so the hot paths never contend on a lock.
type Stats struct {
	log *slog.Logger

	connections  int64
	broadcasts   uint64
	relayed      uint64
	pushed       uint64
	pushFailures uint64
	censored     uint64
}

func NewStats(log *slog.Logger) *Stats {
	return &Stats{log: log}
}

// ConnOpened bumps the live-connection gauge.
func (s *Stats) ConnOpened() {
	atomic.AddInt64(&s.connections, 1)
}

// ConnClosed decrements the live-connection gauge.
func (s *Stats) ConnClosed() {
	atomic.AddInt64(&s.connections, -1)
}

func (s *Stats) IncrBroadcasts() {
	atomic.AddUint64(&s.broadcasts, 1)
}

func (s *Stats) IncrRelayed() {
	atomic.AddUint64(&s.relayed, 1)
}

func (s *Stats) IncrPushed() {
	atomic.AddUint64(&s.pushed, 1)
}

func (s *Stats) IncrPushFailures() {
	atomic.AddUint64(&s.pushFailures, 1)
}

func (s *Stats) IncrCensored() {
	atomic.AddUint64(&s.censored, 1)
}

// Snapshot reads every counter plus the Go memory stats.
func (s *Stats) Snapshot() Snapshot {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	snapshot := Snapshot{
		LiveConnections:  atomic.LoadInt64(&s.connections),
		Broadcasts:       atomic.LoadUint64(&s.broadcasts),
		MessagesRelayed:  atomic.LoadUint64(&s.relayed),
		MessagesPushed:   atomic.LoadUint64(&s.pushed),
		PushFailures:     atomic.LoadUint64(&s.pushFailures),
		CensoredMessages: atomic.LoadUint64(&s.censored),
		AllocMemMb:       m.Alloc / 1024 / 1024,
		NumGC:            m.NumGC,
	}

	s.log.Debug("Stats snapshot",
		"live_connections", snapshot.LiveConnections,
		"messages_relayed", snapshot.MessagesRelayed,
		"push_failures", snapshot.PushFailures,
	)

	return snapshot
}
