package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/avalonserve/avalond/internal/registry"
)

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newTestService() *Service {
	reg := registry.New(42, DefaultConfig().RoomDefaults, nil, testLogger())
	return NewService(reg, testLogger())
}

// newTestServer brings up a websocket endpoint backed by a fresh registry.
// The janitor is disabled; pruning has its own tests.
func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	cfg := DefaultConfig()
	cfg.PruneInterval = 0
	srv := NewServer(newTestService(), cfg, testLogger())
	go srv.run()

	ts := httptest.NewServer(http.HandlerFunc(srv.handleWebSocket))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
		ts.Close()
	})

	return srv, "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, messageType MessageType, data any) {
	t.Helper()

	msg, err := NewMessage(messageType, data)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

// readUntil reads messages until one of the wanted type arrives, discarding
// anything else. Broadcast-heavy flows interleave state snapshots with the
// message a test actually cares about.
func readUntil(t *testing.T, conn *websocket.Conn, want MessageType) *Message {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		var msg Message
		err := conn.ReadJSON(&msg)
		require.NoError(t, err, "waiting for %s", want)
		if msg.Type == want {
			return &msg
		}
	}
}

func decodeData[T any](t *testing.T, msg *Message) T {
	t.Helper()

	var out T
	require.NoError(t, json.Unmarshal(msg.Data, &out))
	return out
}

// createTestRoom drives the room creation flow and returns the creator's
// connection alongside the room code and identity.
func createTestRoom(t *testing.T, url, name string) (*websocket.Conn, RoomCreatedData) {
	t.Helper()

	conn := dial(t, url)
	send(t, conn, MessageTypeCreateRoom, CreateRoomData{Name: name})
	created := decodeData[RoomCreatedData](t, readUntil(t, conn, MessageTypeRoomCreated))
	require.Len(t, created.RoomCode, 6)
	require.NotEmpty(t, created.Identity)
	return conn, created
}

func joinTestRoom(t *testing.T, url, code, name string) (*websocket.Conn, JoinedData) {
	t.Helper()

	conn := dial(t, url)
	send(t, conn, MessageTypeJoinRoom, JoinRoomData{Name: name, RoomCode: code})
	joined := decodeData[JoinedData](t, readUntil(t, conn, MessageTypeJoined))
	require.Equal(t, code, joined.RoomCode)
	return conn, joined
}
