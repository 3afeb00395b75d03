package glue

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/devicelab-dev/wallet-glue-runner/pkg/core"
)

type recordingHandler struct {
	mu    sync.Mutex
	calls []string
	last  map[string]interface{}
	errs  map[string]error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{last: make(map[string]interface{}), errs: make(map[string]error)}
}

func (h *recordingHandler) record(name string, action interface{}) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, name)
	h.last[name] = action
	return h.errs[name]
}

func (h *recordingHandler) names() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.calls...)
}

func (h *recordingHandler) RequestAccounts(_ context.Context, a *RequestAccounts) error {
	return h.record(ActionRequestAccounts, a)
}
func (h *recordingHandler) SignMessage(_ context.Context, a *SignMessage) error {
	return h.record(ActionSignMessage, a)
}
func (h *recordingHandler) SignTransaction(_ context.Context, a *SignTransaction) error {
	return h.record(ActionSignTransaction, a)
}
func (h *recordingHandler) SendTransaction(_ context.Context, a *SendTransaction) error {
	return h.record(ActionSendTransaction, a)
}
func (h *recordingHandler) SwitchEthereumChain(_ context.Context, a *SwitchEthereumChain) error {
	return h.record(ActionSwitchEthereumChain, a)
}
func (h *recordingHandler) ActivateChain(_ context.Context, a *ActivateChain) error {
	return h.record(ActionActivateChain, a)
}
func (h *recordingHandler) Report(_ context.Context, a *Report) error {
	return h.record(ActionReport, a)
}

func startServer(t *testing.T, h Handler) *Server {
	t.Helper()
	srv := NewServer(ServerConfig{Host: "127.0.0.1"})
	require.NoError(t, srv.Start(h))
	t.Cleanup(func() { _ = srv.Close(context.Background()) })
	return srv
}

func dial(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(srv.URL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) []byte {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	return data
}

func TestServerURL(t *testing.T) {
	srv := NewServer(ServerConfig{Host: "0.0.0.0", Port: 3001, AdvertiseHost: "192.168.2.197"})
	assert.Equal(t, "ws://192.168.2.197:3001/", srv.URL())
}

func TestServerRepliesToActions(t *testing.T) {
	h := newRecordingHandler()
	srv := startServer(t, h)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"id":7,"action":"requestAccounts","params":{"uuid":"abc","action":"approve"}}`)))

	data := readFrame(t, conn)
	assert.Equal(t, int64(7), gjson.GetBytes(data, "id").Int())
	assert.True(t, gjson.GetBytes(data, "ok").Bool())
	assert.False(t, gjson.GetBytes(data, "error").Exists())

	h.mu.Lock()
	ra := h.last[ActionRequestAccounts].(*RequestAccounts)
	h.mu.Unlock()
	assert.Equal(t, CorrelationID("abc"), ra.UUID)
}

func TestServerRepliesWithHandlerErrors(t *testing.T) {
	h := newRecordingHandler()
	h.errs[ActionSignMessage] = core.NotImplemented("signMessage")
	srv := startServer(t, h)
	conn := dial(t, srv)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":"a","action":"signMessage","params":{}}`)))
	data := readFrame(t, conn)
	assert.Equal(t, "a", gjson.GetBytes(data, "id").String())
	assert.Equal(t, "signMessage not implemented", gjson.GetBytes(data, "error").String())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"id":2,"action":"nope"}`)))
	data = readFrame(t, conn)
	assert.Equal(t, "unknown action", gjson.GetBytes(data, "error").String())
}

func TestServerHoldsEventsUntilFirstClient(t *testing.T) {
	srv := startServer(t, newRecordingHandler())

	require.NoError(t, srv.Emit(&RequestAccountsEvent{UUID: "early"}))
	conn := dial(t, srv)

	data := readFrame(t, conn)
	assert.Equal(t, "requestaccounts", gjson.GetBytes(data, "event").String())
	assert.Equal(t, "early", gjson.GetBytes(data, "uuid").String())
}

func TestServerBroadcastsEvents(t *testing.T) {
	srv := startServer(t, newRecordingHandler())
	a := dial(t, srv)
	b := dial(t, srv)
	require.Eventually(t, func() bool { return srv.Clients() == 2 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Emit(&SignMessageEvent{UUID: "m1", Message: "hello"}))

	for _, conn := range []*websocket.Conn{a, b} {
		data := readFrame(t, conn)
		assert.Equal(t, "signmessage", gjson.GetBytes(data, "event").String())
		assert.Equal(t, "hello", gjson.GetBytes(data, "data.message").String())
	}
}

func TestServerCloseDropsClients(t *testing.T) {
	srv := NewServer(ServerConfig{Host: "127.0.0.1"})
	require.NoError(t, srv.Start(newRecordingHandler()))
	conn := dial(t, srv)
	require.Eventually(t, func() bool { return srv.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, srv.Close(context.Background()))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
	assert.Equal(t, 0, srv.Clients())
}

func TestServerStartRequiresHandler(t *testing.T) {
	assert.Error(t, NewServer(ServerConfig{Host: "127.0.0.1"}).Start(nil))
}
