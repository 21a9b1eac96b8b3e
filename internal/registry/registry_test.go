package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	sent   []string
	closed bool
}

func (f *fakeConn) Send(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func TestRegistry_ConnectAndSize(t *testing.T) {
	r := New()
	assert.Equal(t, 0, r.Size())

	r.Connect("a", &fakeConn{})
	r.Connect("b", &fakeConn{})
	assert.Equal(t, 2, r.Size())
}

func TestRegistry_ConnectOverwritesColliding(t *testing.T) {
	r := New()
	first := &fakeConn{}
	second := &fakeConn{}

	displaced := r.Connect("a", first)
	assert.Nil(t, displaced)

	displaced = r.Connect("a", second)
	assert.Same(t, first, displaced, "colliding connect should return the displaced connection")
	assert.Equal(t, 1, r.Size())

	conn, ok := r.Lookup("a")
	require.True(t, ok)
	assert.Same(t, second, conn)
}

func TestRegistry_DisconnectIsIdempotent(t *testing.T) {
	r := New()
	r.Connect("a", &fakeConn{})

	assert.True(t, r.Disconnect("a"))
	assert.False(t, r.Disconnect("a"), "second disconnect must be a no-op")
	assert.Equal(t, 0, r.Size())
}

func TestRegistry_DisconnectConn(t *testing.T) {
	r := New()
	first := &fakeConn{}
	second := &fakeConn{}

	r.Connect("a", first)
	r.Connect("a", second)

	assert.False(t, r.DisconnectConn("a", first), "stale handle must not remove the successor entry")
	assert.Equal(t, 1, r.Size())

	assert.True(t, r.DisconnectConn("a", second))
	assert.Equal(t, 0, r.Size())
}

func TestRegistry_SetPreference(t *testing.T) {
	r := New()
	r.Connect("a", &fakeConn{})

	r.SetPreference("a", "fr")
	pref, ok := r.Preference("a")
	require.True(t, ok)
	assert.Equal(t, "fr", pref)

	// Updating while connected overwrites
	r.SetPreference("a", "de")
	pref, _ = r.Preference("a")
	assert.Equal(t, "de", pref)

	// No-op for unknown clients
	r.SetPreference("ghost", "fr")
	_, ok = r.Preference("ghost")
	assert.False(t, ok)
}

func TestRegistry_PreferenceSurvivesUntilDisconnect(t *testing.T) {
	r := New()
	r.Connect("a", &fakeConn{})
	r.SetPreference("a", "fr")
	r.Disconnect("a")

	r.Connect("a", &fakeConn{})
	pref, ok := r.Preference("a")
	require.True(t, ok)
	assert.Equal(t, "", pref, "preference must not survive a disconnect")
}

func TestRegistry_SnapshotIsOrderedCopy(t *testing.T) {
	r := New()
	r.Connect("c", &fakeConn{})
	r.Connect("a", &fakeConn{})
	r.Connect("b", &fakeConn{})
	r.SetPreference("b", "es")

	snap := r.Snapshot()
	require.Len(t, snap, 3)
	assert.Equal(t, "a", snap[0].ClientID)
	assert.Equal(t, "b", snap[1].ClientID)
	assert.Equal(t, "c", snap[2].ClientID)
	assert.Equal(t, "es", snap[1].Preference)

	// Mutations after the snapshot must not be visible in it
	r.Disconnect("a")
	r.SetPreference("b", "fr")
	assert.Equal(t, "a", snap[0].ClientID)
	assert.Equal(t, "es", snap[1].Preference)
}

func TestRegistry_SnapshotExcludesRemovedClients(t *testing.T) {
	r := New()
	r.Connect("a", &fakeConn{})
	r.Connect("b", &fakeConn{})
	r.Disconnect("b")

	snap := r.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, "a", snap[0].ClientID)
}

func TestRegistry_Drain(t *testing.T) {
	r := New()
	r.Connect("a", &fakeConn{})
	r.Connect("b", &fakeConn{})

	drained := r.Drain()
	assert.Len(t, drained, 2)
	assert.Equal(t, 0, r.Size())
	assert.Empty(t, r.Drain())
}

// Exercises connect/disconnect/preference/snapshot under heavy interleaving.
// Run with -race; correctness here is the absence of data races and of
// half-added entries in any snapshot.
func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := New()
	var wg sync.WaitGroup

	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			id := fmt.Sprintf("client-%d", n)
			for n := 0; n < 200; n++ {
				r.Connect(id, &fakeConn{})
				r.SetPreference(id, "fr")
				r.Disconnect(id)
			}
		}(i)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for n := 0; n < 500; n++ {
			for _, e := range r.Snapshot() {
				require.NotNil(t, e.Conn, "snapshot must never contain a half-added entry")
				require.NotEmpty(t, e.ClientID)
			}
			r.Size()
		}
	}()

	wg.Wait()
	assert.Equal(t, 0, r.Size())
}
