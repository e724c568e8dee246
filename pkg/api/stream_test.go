package api

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostpulse/hostpulse/pkg/models"
)

func dialStream(t *testing.T, env *testEnv) (*websocket.Conn, func()) {
	t.Helper()

	server := httptest.NewServer(env.server.Router())

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/stream"

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	if resp != nil {
		_ = resp.Body.Close()
	}

	return conn, func() {
		_ = conn.Close()
		server.Close()
	}
}

func TestStreamReceivesBroadcast(t *testing.T) {
	env := newTestEnv(t)

	conn, cleanup := dialStream(t, env)
	defer cleanup()

	// Registration happens on the server handler goroutine after the
	// handshake, so keep broadcasting until the subscriber sees a frame.
	stop := make(chan struct{})
	defer close(stop)

	go func() {
		ticker := time.NewTicker(20 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				env.server.Broadcast()
			}
		}
	}()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	var payload HostPayload
	require.NoError(t, conn.ReadJSON(&payload))

	assert.Equal(t, env.hostID, payload.ID)
	assert.Equal(t, models.HostOffline, payload.Status)
}

func TestStreamClosedOnServerStop(t *testing.T) {
	env := newTestEnv(t)

	conn, cleanup := dialStream(t, env)
	defer cleanup()

	require.NoError(t, env.server.Stop(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}
