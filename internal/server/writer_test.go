package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestConnPair returns the server and client halves of a live WebSocket
// connection backed by an httptest server.
func newTestConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	serverConns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return <-serverConns, client
}

func TestWSConn_SendDeliversToPeer(t *testing.T) {
	serverConn, client := newTestConnPair(t)
	conn := newWSConn(serverConn, clockwork.NewRealClock())
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, conn.Send("hello"))

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := client.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, "hello", string(msg))
}

func TestWSConn_SendAfterCloseFails(t *testing.T) {
	serverConn, _ := newTestConnPair(t)
	conn := newWSConn(serverConn, clockwork.NewRealClock())

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send("too late"), errConnClosed)
}

func TestWSConn_CloseIsIdempotent(t *testing.T) {
	serverConn, _ := newTestConnPair(t)
	conn := newWSConn(serverConn, clockwork.NewRealClock())

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
}

func TestWSConn_PeerSeesNormalCloseFrame(t *testing.T) {
	serverConn, client := newTestConnPair(t)
	conn := newWSConn(serverConn, clockwork.NewRealClock())

	require.NoError(t, conn.Close())

	client.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := client.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure),
		"peer should observe a normal close frame, got %v", err)
}

func TestWSConn_SendFailsWhenBufferFull(t *testing.T) {
	// Constructed without a write goroutine so nothing drains the buffer.
	c := &wsConn{
		sendCh: make(chan string, sendBufferSize),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}

	for i := 0; i < sendBufferSize; i++ {
		require.NoError(t, c.Send("msg"))
	}
	assert.ErrorIs(t, c.Send("overflow"), errSendBufferFull)
}

func TestWSConn_KeepalivePing(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Now())
	serverConn, client := newTestConnPair(t)
	conn := newWSConn(serverConn, clock)
	t.Cleanup(func() { conn.Close() })

	pings := make(chan struct{}, 1)
	client.SetPingHandler(func(string) error {
		select {
		case pings <- struct{}{}:
		default:
		}
		return nil
	})

	// The ping handler only runs from the client's read loop.
	go func() {
		for {
			if _, _, err := client.ReadMessage(); err != nil {
				return
			}
		}
	}()

	clock.BlockUntil(1)
	clock.Advance(pingInterval)

	select {
	case <-pings:
	case <-time.After(time.Second):
		t.Fatal("expected a keepalive ping after the ping interval elapsed")
	}
}
