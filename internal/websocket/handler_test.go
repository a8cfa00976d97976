package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SoCo-NP/SoCo/internal/compilelock"
	"github.com/SoCo-NP/SoCo/internal/hub"
	"github.com/SoCo-NP/SoCo/internal/router"
	"github.com/SoCo-NP/SoCo/internal/session"
)

func startRelay(t *testing.T) *hub.Hub {
	t.Helper()
	h := hub.NewHub(session.NewRegistry(), compilelock.NewTable(), router.NewRouter(), hub.Options{})
	require.NoError(t, h.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		defer cancel()
		_ = h.Stop(ctx)
	})
	return h
}

func TestNewHandler_NilTarget(t *testing.T) {
	_, err := NewHandler(nil, HandlerOptions{})
	assert.ErrorIs(t, err, ErrNilTarget)
}

func TestHandler_PlainHTTPRejected(t *testing.T) {
	h, err := NewHandler(newEchoTarget(), HandlerOptions{})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_OriginPolicy(t *testing.T) {
	url := startGateway(t, newEchoTarget(), HandlerOptions{
		CheckOrigin: func(r *http.Request) bool { return r.Header.Get("Origin") == "http://classroom.local" },
	})

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header.Set("Origin", "http://classroom.local")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestHandler_SessionsJoinTheRelay(t *testing.T) {
	relay := startRelay(t)
	url := startGateway(t, relay, HandlerOptions{})

	alice := dialGateway(t, url)
	require.NoError(t, alice.WriteMessage(websocket.TextMessage, []byte("JOIN|alice|Professor")))
	assert.Equal(t, "INFO|Welcome alice", readText(t, alice))
	assert.Equal(t, "ROLE_INFO|alice|Professor", readText(t, alice))

	bob := dialGateway(t, url)
	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte("JOIN|bob|Student")))
	assert.Equal(t, "INFO|Welcome bob", readText(t, bob))
	assert.Equal(t, "ROLE_INFO|bob|Student", readText(t, bob))
	assert.Equal(t, "ROLE_INFO|alice|Professor", readText(t, bob))
	assert.Equal(t, "ROLE_INFO|bob|Student", readText(t, alice))

	require.NoError(t, bob.WriteMessage(websocket.TextMessage, []byte("COMPILE_REQ|/ws/Main.java|bob")))
	assert.Equal(t, "COMPILE_GRANTED|/ws/Main.java|bob", readText(t, bob))
	assert.Equal(t, "COMPILE_GRANTED|/ws/Main.java|bob", readText(t, alice))

	require.NoError(t, bob.Close())
	assert.Equal(t, "COMPILE_RELEASE|/ws/Main.java|bob", readText(t, alice))
	assert.Eventually(t, func() bool { return relay.SessionCount() == 1 }, waitFor, 10*time.Millisecond)
}

func TestHandler_Heartbeat(t *testing.T) {
	url := startGateway(t, newEchoTarget(), HandlerOptions{
		PingInterval: 20 * time.Millisecond,
		Connection:   ConnectionOptions{ReadTimeout: time.Second},
	})
	conn := dialGateway(t, url)

	var pings atomic.Int32
	conn.SetPingHandler(func(data string) error {
		pings.Add(1)
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	assert.Eventually(t, func() bool { return pings.Load() >= 3 }, waitFor, 10*time.Millisecond)
}
