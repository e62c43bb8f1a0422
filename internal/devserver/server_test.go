package devserver

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giantswarm/hotpatch/internal/metrics"
	"github.com/giantswarm/hotpatch/internal/protocol"
	"github.com/giantswarm/hotpatch/internal/resource"
)

func startServer(t *testing.T, cfg Config) (*Server, *httptest.Server) {
	t.Helper()
	srv := New(cfg)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Close()
		ts.Close()
	})
	return srv, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/hmr"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readFrame(t *testing.T, ws *websocket.Conn) protocol.Frame {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	frame, err := protocol.DecodeFrame(data)
	require.NoError(t, err)
	return frame
}

func waitCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestServer_PublishReachesSubscribersOnly(t *testing.T) {
	srv, ts := startServer(t, Config{})
	page := resource.Resource{Path: "app/page.js"}
	other := resource.Resource{Path: "app/other.js"}

	subscribed := dial(t, ts)
	require.NoError(t, subscribed.WriteJSON(protocol.Subscribe(page)))
	require.NoError(t, srv.WaitForSubscribers(waitCtx(t), page, 1))

	assert.Equal(t, 0, srv.Publish(protocol.ServerMessage{Resource: other, Type: protocol.TypeRestart}))
	assert.Equal(t, 1, srv.Publish(protocol.ServerMessage{Resource: page, Type: protocol.TypeRestart}))

	frame := readFrame(t, subscribed)
	assert.False(t, frame.Batch)
	require.Len(t, frame.Messages, 1)
	assert.Equal(t, protocol.TypeRestart, frame.Messages[0].Type)
	assert.Equal(t, page, frame.Messages[0].Resource)
}

func TestServer_PublishBatchFiltersPerConnection(t *testing.T) {
	srv, ts := startServer(t, Config{})
	a := resource.Resource{Path: "a.js"}
	b := resource.Resource{Path: "b.js"}

	ws := dial(t, ts)
	require.NoError(t, ws.WriteJSON(protocol.Subscribe(a)))
	require.NoError(t, srv.WaitForSubscribers(waitCtx(t), a, 1))

	n := srv.PublishBatch([]protocol.ServerMessage{
		{Resource: a, Type: protocol.TypeIssues},
		{Resource: b, Type: protocol.TypeIssues},
		{Resource: a, Type: protocol.TypeRestart},
	})
	assert.Equal(t, 1, n)

	frame := readFrame(t, ws)
	assert.True(t, frame.Batch)
	require.Len(t, frame.Messages, 2)
	assert.Equal(t, protocol.TypeIssues, frame.Messages[0].Type)
	assert.Equal(t, protocol.TypeRestart, frame.Messages[1].Type)
}

func TestServer_Unsubscribe(t *testing.T) {
	srv, ts := startServer(t, Config{})
	a := resource.Resource{Path: "a.js", Headers: map[string]string{"accept": "*/*"}}

	ws := dial(t, ts)
	require.NoError(t, ws.WriteJSON(protocol.Subscribe(a)))
	require.NoError(t, srv.WaitForSubscribers(waitCtx(t), a, 1))

	require.NoError(t, ws.WriteJSON(protocol.Unsubscribe(a)))
	require.Eventually(t, func() bool { return srv.Subscribers(a) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestServer_MissingResourceAnsweredWithNotFound(t *testing.T) {
	gone := resource.Resource{Path: "gone.js"}
	srv, ts := startServer(t, Config{Missing: []resource.Resource{gone}})

	ws := dial(t, ts)
	require.NoError(t, ws.WriteJSON(protocol.Subscribe(gone)))

	frame := readFrame(t, ws)
	require.Len(t, frame.Messages, 1)
	assert.Equal(t, protocol.TypeNotFound, frame.Messages[0].Type)
	assert.Equal(t, gone, frame.Messages[0].Resource)
	assert.Equal(t, 0, srv.Subscribers(gone))

	srv.SetMissing(gone, false)
	require.NoError(t, ws.WriteJSON(protocol.Subscribe(gone)))
	require.NoError(t, srv.WaitForSubscribers(waitCtx(t), gone, 1))
}

func TestServer_HTTPRoutes(t *testing.T) {
	rec := metrics.NewRecorder()
	_, ts := startServer(t, Config{Metrics: rec})

	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))

	resp, err = http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "hotpatch_devserver_connections")
}
