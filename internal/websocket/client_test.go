package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"realtime-chat/internal/hub"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// newTestServer upgrades every request and hands the client to serve.
func newTestServer(t *testing.T, opts Options, serve func(c *Client)) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(conn, opts, zap.NewNop())
		go c.WritePump()
		serve(c)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClient_Echo(t *testing.T) {
	conn := newTestServer(t, Options{}, func(c *Client) {
		c.ReadPump(func(frame []byte) {
			_ = c.Send(frame)
		})
		_ = c.Close()
	})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"event":"ping"}`)))
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, got, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, `{"event":"ping"}`, string(got))
}

func TestClient_CloseFlushesQueuedFrames(t *testing.T) {
	conn := newTestServer(t, Options{}, func(c *Client) {
		_ = c.Send([]byte("one"))
		_ = c.Send([]byte("two"))
		_ = c.Close()
		<-c.Done()
	})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for _, want := range []string{"one", "two"} {
		_, got, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestClient_ReadLimitClosesConnection(t *testing.T) {
	done := make(chan struct{})
	conn := newTestServer(t, Options{MaxMessageSize: 16}, func(c *Client) {
		c.ReadPump(func([]byte) {})
		close(done)
		_ = c.Close()
	})

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("x", 64))))
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("read pump did not stop on oversized frame")
	}
}

func TestClient_SendIsNonBlocking(t *testing.T) {
	c := NewClient(nil, Options{SendBuffer: 2}, zap.NewNop())

	assert.NoError(t, c.Send([]byte("a")))
	assert.NoError(t, c.Send([]byte("b")))
	assert.ErrorIs(t, c.Send([]byte("c")), hub.ErrBackpressure)

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.ErrorIs(t, c.Send([]byte("d")), hub.ErrClosed)
}

func TestClient_IDs(t *testing.T) {
	a := NewClient(nil, Options{}, zap.NewNop())
	b := NewClient(nil, Options{}, zap.NewNop())
	assert.Len(t, a.ID(), 21)
	assert.NotEqual(t, a.ID(), b.ID())
}
