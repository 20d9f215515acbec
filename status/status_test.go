package status

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/chewxy/math32"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) (string, json.RawMessage) {
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg struct {
		Kind string          `json:"kind"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg.Kind, msg.Data
}

func TestHubReplayAndBroadcast(t *testing.T) {
	h := NewHub()
	defer h.Close()

	h.Status("loaded", INFO, 0)
	conn := dial(t, h)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	kind, data := readEnvelope(t, conn)
	assert.Equal(t, KIND_STATUS, kind)
	var st status
	require.NoError(t, json.Unmarshal(data, &st))
	assert.Equal(t, "loaded", st.Message)

	require.NoError(t, h.Publish(KIND_FRAME, map[string]int{"tick": 7}))
	kind, data = readEnvelope(t, conn)
	assert.Equal(t, KIND_FRAME, kind)
	assert.JSONEq(t, `{"tick":7}`, string(data))
}

func TestHubClientDisconnect(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 5*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.NoError(t, h.Publish(KIND_FRAME, 1))
}

func TestStatusSanitizesProgress(t *testing.T) {
	h := NewHub()
	h.Status("loading", PROGRESS, math32.Inf(1))

	var msg struct {
		Data status `json:"data"`
	}
	require.NoError(t, json.Unmarshal(h.Last(KIND_STATUS), &msg))
	assert.Equal(t, float32(0), msg.Data.Progress)
	assert.Equal(t, PROGRESS, msg.Data.Type)
}
