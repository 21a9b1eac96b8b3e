package registry

import (
	"log/slog"
	"sort"
	"sync"

	"github.com/avollmer/chatrelay/internal/metrics"
)

// Connection is the transport handle the registry routes messages to.
// The transport layer owns the connection lifecycle; the registry only owns
// the client id association.
type Connection interface {
	// Send delivers one text message. It returns an error when the peer is
	// gone or the transport buffer is exhausted; a failed send triggers
	// eviction of the client.
	Send(text string) error
	Close() error
}

// Entry is one live registration as seen by a snapshot.
type Entry struct {
	ClientID   string
	Conn       Connection
	Preference string
}

type entry struct {
	conn       Connection
	preference string
}

// Registry is the authoritative mapping from client id to connection and
// preference. Client ids are client-supplied and not validated for
// uniqueness: a colliding Connect overwrites the prior entry.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Connect registers the pair, overwriting any prior entry for the same id.
// The displaced connection, if any, is returned so the caller can close it.
func (r *Registry) Connect(clientID string, conn Connection) Connection {
	r.mu.Lock()
	prev, existed := r.entries[clientID]
	r.entries[clientID] = entry{conn: conn}
	size := len(r.entries)
	r.mu.Unlock()

	metrics.ConnectedClients.Set(float64(size))
	slog.Debug("Client registered", "client_id", clientID, "total_clients", size)

	if existed {
		slog.Warn("Client id collision, previous connection displaced", "client_id", clientID)
		return prev.conn
	}
	return nil
}

// Disconnect removes the entry if present. It is idempotent: disconnecting
// an absent id is a no-op. The return value reports whether an entry was
// actually removed.
func (r *Registry) Disconnect(clientID string) bool {
	r.mu.Lock()
	_, existed := r.entries[clientID]
	if existed {
		delete(r.entries, clientID)
	}
	size := len(r.entries)
	r.mu.Unlock()

	if existed {
		metrics.ConnectedClients.Set(float64(size))
		slog.Debug("Client unregistered", "client_id", clientID, "total_clients", size)
	}
	return existed
}

// DisconnectConn removes the entry only while it still routes to conn. A
// session torn down after its connection was displaced by a colliding
// Connect (or evicted) must not remove the successor's entry.
func (r *Registry) DisconnectConn(clientID string, conn Connection) bool {
	r.mu.Lock()
	e, existed := r.entries[clientID]
	removed := existed && e.conn == conn
	if removed {
		delete(r.entries, clientID)
	}
	size := len(r.entries)
	r.mu.Unlock()

	if removed {
		metrics.ConnectedClients.Set(float64(size))
		slog.Debug("Client unregistered", "client_id", clientID, "total_clients", size)
	}
	return removed
}

// SetPreference upserts the preference for a connected client. Setting a
// preference for an id that is not connected is a tolerated no-op.
func (r *Registry) SetPreference(clientID, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[clientID]
	if !ok {
		return
	}
	e.preference = value
	r.entries[clientID] = e
}

// Preference returns the stored preference for a client. The second return
// value is false when the client is not connected.
func (r *Registry) Preference(clientID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[clientID]
	if !ok {
		return "", false
	}
	return e.preference, true
}

// Lookup returns the connection for a single client id.
func (r *Registry) Lookup(clientID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[clientID]
	if !ok {
		return nil, false
	}
	return e.conn, true
}

// Snapshot returns a point-in-time copy of the live membership, ordered by
// client id. Mutations after Snapshot returns do not affect the returned
// slice, which is what makes lock-free broadcast iteration safe.
func (r *Registry) Snapshot() []Entry {
	r.mu.RLock()
	out := make([]Entry, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, Entry{ClientID: id, Conn: e.conn, Preference: e.preference})
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Size returns the current live connection count.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Drain removes every entry and returns them, for shutdown teardown. The
// caller is responsible for closing the returned connections.
func (r *Registry) Drain() []Entry {
	r.mu.Lock()
	out := make([]Entry, 0, len(r.entries))
	for id, e := range r.entries {
		out = append(out, Entry{ClientID: id, Conn: e.conn, Preference: e.preference})
	}
	r.entries = make(map[string]entry)
	r.mu.Unlock()

	metrics.ConnectedClients.Set(0)
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}
