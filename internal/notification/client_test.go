package notification

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// dialTestConn upgrades a loopback websocket and returns both ends.
func dialTestConn(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{}
	conns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	clientConn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { clientConn.Close() })

	select {
	case serverConn := <-conns:
		return serverConn, clientConn
	case <-time.After(time.Second):
		t.Fatal("websocket upgrade did not complete")
		return nil, nil
	}
}

func TestReadPumpExitsAfterBroadcasterStop(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	b.Start()
	b.Stop()

	serverConn, clientConn := dialTestConn(t)
	c := &Client{
		tenantID: uuid.New(),
		conn:     serverConn,
		send:     make(chan []byte, sendBufferSize),
		logger:   zap.NewNop(),
	}

	pumpDone := make(chan struct{})
	go func() {
		c.readPump(b)
		close(pumpDone)
	}()

	// The station disconnects after the hub stopped; nothing drains
	// unregister anymore, so the pump must exit via the done signal.
	clientConn.Close()

	select {
	case <-pumpDone:
	case <-time.After(2 * time.Second):
		t.Fatal("readPump did not exit after the broadcaster stopped")
	}
}

func TestServeClientAfterStopClosesConnection(t *testing.T) {
	b := NewBroadcaster(zap.NewNop())
	b.Start()
	b.Stop()

	serverConn, clientConn := dialTestConn(t)
	ServeClient(b, uuid.New(), serverConn, zap.NewNop())

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := clientConn.ReadMessage()
	require.Error(t, err)
}
