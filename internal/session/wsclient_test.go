package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// echoServer upgrades every request to a WebSocket and records every
// frame it receives as a decoded wireFrame, so tests can assert on
// what WsClient actually put on the wire.
type echoServer struct {
	upgrader websocket.Upgrader
	received chan wireFrame
}

func newEchoServer() *echoServer {
	return &echoServer{received: make(chan wireFrame, 64)}
}

func (s *echoServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	for {
		var frame wireFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		s.received <- frame
	}
}

func startEchoServer(t *testing.T) (*httptest.Server, *echoServer) {
	t.Helper()
	srv := newEchoServer()
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts, srv
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestWsClient_ConnectAuthenticateAndEventRoundTrip(t *testing.T) {
	ts, srv := startEchoServer(t)

	client := NewWsClient(WsClientConfig{}, nil)
	ctx := context.Background()

	require.NoError(t, client.Connect(ctx, wsURL(ts.URL)))
	require.NoError(t, client.Authenticate(ctx, []byte("secret-token")))

	authFrame := <-srv.received
	assert.Equal(t, "authenticate", authFrame.Op)
	var authPayload struct {
		Token []byte `json:"token"`
	}
	require.NoError(t, json.Unmarshal(authFrame.Payload, &authPayload))
	assert.Equal(t, "secret-token", string(authPayload.Token))

	var remoteId types.RemoteTimelineId
	remoteId[0] = 7
	require.NoError(t, client.OpenTimeline(ctx, remoteId))

	openFrame := <-srv.received
	assert.Equal(t, "open_timeline", openFrame.Op)

	boundId, ok := client.BoundTimeline()
	require.True(t, ok)
	assert.Equal(t, remoteId, boundId)

	key, err := client.AttrKey(ctx, types.ScopeEvent, "event.name")
	require.NoError(t, err)
	assert.Equal(t, types.ScopeEvent, key.Scope)
	<-srv.received // attr_key frame

	// A second AttrKey for the same (scope, key) must not hit the wire
	// again; the client caches the handle locally.
	key2, err := client.AttrKey(ctx, types.ScopeEvent, "event.name")
	require.NoError(t, err)
	assert.Equal(t, key, key2)

	tick := types.TickFromDuration(42)
	require.NoError(t, client.Event(ctx, &tick, []AttrPair{{Key: key, Value: types.StringValue("hi")}}))

	eventFrame := <-srv.received
	assert.Equal(t, "event", eventFrame.Op)

	require.NoError(t, client.Flush(ctx))
	flushFrame := <-srv.received
	assert.Equal(t, "flush", flushFrame.Op)

	assert.NoError(t, client.Close())
}

func TestWsClient_SendBeforeConnectFails(t *testing.T) {
	client := NewWsClient(WsClientConfig{}, nil)
	err := client.Authenticate(context.Background(), []byte("x"))
	assert.Error(t, err)
}

func TestWsClient_ConnectFailsFastOnBadEndpoint(t *testing.T) {
	client := NewWsClient(WsClientConfig{HandshakeTimeout: 200 * time.Millisecond}, nil)
	err := client.Connect(context.Background(), "ws://127.0.0.1:1")
	assert.Error(t, err)
}

var _ Client = (*WsClient)(nil)
