package web

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jal-drishti/streamd/internal/envelope"
	"github.com/jal-drishti/streamd/internal/logger"
	"github.com/jal-drishti/streamd/internal/source"
)

func dialWS(t *testing.T, ts *httptest.Server, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestStreamHandshakeAndBroadcast(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	conn := dialWS(t, ts, "/ws/stream")

	// The hub greets each client on join.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var greeting map[string]interface{}
	require.NoError(t, conn.ReadJSON(&greeting))
	assert.Equal(t, "system", greeting["type"])
	assert.Equal(t, "connected", greeting["status"])
	assert.Nil(t, greeting["payload"])

	// Wait for registration to be visible, then broadcast.
	require.Eventually(t, func() bool {
		return srv.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	srv.hub.Broadcast(envelope.NewSystem(envelope.StatusSafeMode, "inference degraded"))

	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "safe_mode", msg["status"])
}

func TestHubRemovesDisconnectedClient(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	conn := dialWS(t, ts, "/ws/stream")
	require.Eventually(t, func() bool {
		return srv.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return srv.hub.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestUploadInjectsIntoPushSource(t *testing.T) {
	push := source.NewPushSource(source.PushSourceConfig{}, logger.NewNopLogger())
	defer push.Stop()

	srv, _ := newTestServer(t)
	srv.push = push

	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	conn := dialWS(t, ts, "/ws/upload")

	frame := source.Frame{Data: make([]byte, 8*6*3), Width: 8, Height: 6}
	jpegData, err := source.EncodeJPEG(frame, 85)
	require.NoError(t, err)

	payload, err := json.Marshal(uploadMessage{Frame: base64.StdEncoding.EncodeToString(jpegData)})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack uploadAck
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "ok", ack.Status)

	got, err := push.Read()
	require.NoError(t, err)
	assert.Equal(t, 8, got.Width)
	assert.Equal(t, 6, got.Height)
	assert.Len(t, got.Data, 8*6*3)
}

func TestUploadRejectsBadPayload(t *testing.T) {
	push := source.NewPushSource(source.PushSourceConfig{}, logger.NewNopLogger())
	defer push.Stop()

	srv, _ := newTestServer(t)
	srv.push = push

	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	conn := dialWS(t, ts, "/ws/upload")
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"frame":"not base64!!"}`)))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ack uploadAck
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, "error", ack.Status)
}

func TestHealthEndpointCountsClients(t *testing.T) {
	srv, _ := newTestServer(t)
	ts := httptest.NewServer(srv.router)
	defer ts.Close()

	dialWS(t, ts, "/ws/stream")
	require.Eventually(t, func() bool {
		return srv.hub.ClientCount() == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, float64(1), body["clients"])
}
