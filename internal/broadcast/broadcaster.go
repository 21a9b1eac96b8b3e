package broadcast

import (
	"log/slog"

	"github.com/avollmer/chatrelay/internal/metrics"
	"github.com/avollmer/chatrelay/internal/registry"
)

// Target selects the recipients of a broadcast.
type Target struct {
	// Exclude skips the named client id when non-empty.
	Exclude string
	// Preference restricts delivery to clients whose stored preference is an
	// exact match. Nil means no filter: every client receives the message.
	// A pointer to the empty string selects only clients with no preference.
	Preference *string
}

// All targets every connected client.
func All() Target {
	return Target{}
}

// Preference targets only clients whose preference equals p. Pass the empty
// string to target clients that never set a preference.
func Preference(p string) Target {
	return Target{Preference: &p}
}

// Broadcaster delivers messages to registry entries, best-effort. Failures
// are never surfaced to the caller; they are logged and converted into
// evictions.
type Broadcaster struct {
	registry *registry.Registry
}

func New(reg *registry.Registry) *Broadcaster {
	return &Broadcaster{registry: reg}
}

// Broadcast sends msg to every snapshot entry matching target, in snapshot
// order. Clients whose send fails are evicted exactly once after the scan;
// eviction races between concurrent broadcasts are harmless because
// Registry.DisconnectConn removes an entry at most once.
func (b *Broadcaster) Broadcast(msg string, target Target) {
	snapshot := b.registry.Snapshot()

	var failed []registry.Entry
	for _, e := range snapshot {
		if target.Exclude != "" && e.ClientID == target.Exclude {
			continue
		}
		if target.Preference != nil && e.Preference != *target.Preference {
			continue
		}
		if err := e.Conn.Send(msg); err != nil {
			slog.Warn("Broadcast send failed, marking client for eviction",
				"client_id", e.ClientID, "error", err)
			metrics.SendFailuresTotal.Inc()
			failed = append(failed, e)
		}
	}

	for _, e := range failed {
		b.evict(e.ClientID, e.Conn)
	}

	metrics.BroadcastsTotal.Inc()
}

// SendDirect delivers msg to a single client. A failed send evicts the
// client; an unknown client id is a no-op.
func (b *Broadcaster) SendDirect(clientID, msg string) {
	conn, ok := b.registry.Lookup(clientID)
	if !ok {
		return
	}

	if err := conn.Send(msg); err != nil {
		slog.Warn("Direct send failed, evicting client", "client_id", clientID, "error", err)
		metrics.SendFailuresTotal.Inc()
		b.evict(clientID, conn)
	}
}

// evict removes the client from the registry and closes its transport handle
// so the peer's read loop unblocks instead of lingering half-dead. Removal
// is connection-precise: a concurrent reconnect under the same id must not
// lose its fresh entry to a stale eviction.
func (b *Broadcaster) evict(clientID string, conn registry.Connection) {
	if b.registry.DisconnectConn(clientID, conn) {
		metrics.EvictionsTotal.Inc()
		slog.Info("Client evicted after failed send", "client_id", clientID)
	}
	_ = conn.Close()
}
