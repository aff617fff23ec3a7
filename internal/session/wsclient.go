package session

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// WsClientConfig configures the WebSocket-backed Client.
type WsClientConfig struct {
	// HandshakeTimeout bounds the initial WebSocket upgrade.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration
}

func (c WsClientConfig) withDefaults() WsClientConfig {
	if c.HandshakeTimeout == 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 5 * time.Second
	}
	return c
}

// WsClient is the concrete session.Client implementation used by
// default: a single persistent WebSocket connection to the remote
// ingest service, with each contract call framed as a small JSON
// envelope. Exclusively owned by the ingest consumer (spec §5); no
// internal locking is required by that ownership rule, but a mutex
// still guards the write side since gorilla/websocket connections are
// not safe for concurrent writers and Flush can race a late Event.
type WsClient struct {
	config WsClientConfig
	logger logrus.FieldLogger

	dialer *websocket.Dialer
	conn   *websocket.Conn

	writeMu sync.Mutex
	bound   struct {
		mu sync.RWMutex
		id types.RemoteTimelineId
		ok bool
	}

	nextKeyHandle uint64
	eventKeys     sync.Map // string -> uint64
	timelineKeys  sync.Map // string -> uint64
}

// NewWsClient builds a WsClient. The connection is not established
// until Connect is called.
func NewWsClient(config WsClientConfig, logger logrus.FieldLogger) *WsClient {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &WsClient{
		config: config.withDefaults(),
		logger: logger,
		dialer: &websocket.Dialer{
			HandshakeTimeout: config.withDefaults().HandshakeTimeout,
		},
	}
}

type wireFrame struct {
	Op      string          `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Connect dials endpoint, which is either a ws:// or wss:// URL or a
// bare host:port (dialed as ws://host:port).
func (c *WsClient) Connect(ctx context.Context, endpoint string) error {
	url := endpoint
	if !strings.Contains(url, "://") {
		url = "ws://" + url
	}
	conn, _, err := c.dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("session: connect to %s: %w", endpoint, err)
	}
	c.conn = conn
	c.logger.WithField("endpoint", endpoint).Info("ingest session connected")
	return nil
}

func (c *WsClient) Authenticate(ctx context.Context, token []byte) error {
	return c.send(wireFrame{Op: "authenticate", Payload: json.RawMessage(mustJSON(map[string]any{
		"token": token,
	}))})
}

func (c *WsClient) OpenTimeline(ctx context.Context, id types.RemoteTimelineId) error {
	if err := c.send(wireFrame{Op: "open_timeline", Payload: json.RawMessage(mustJSON(map[string]any{
		"timeline_id": id.String(),
	}))}); err != nil {
		return err
	}
	c.bound.mu.Lock()
	c.bound.id = id
	c.bound.ok = true
	c.bound.mu.Unlock()
	return nil
}

func (c *WsClient) BoundTimeline() (types.RemoteTimelineId, bool) {
	c.bound.mu.RLock()
	defer c.bound.mu.RUnlock()
	return c.bound.id, c.bound.ok
}

func (c *WsClient) AttrKey(ctx context.Context, scope types.AttrScope, key string) (types.AttributeKey, error) {
	table := &c.eventKeys
	if scope == types.ScopeTimeline {
		table = &c.timelineKeys
	}

	if v, ok := table.Load(key); ok {
		return types.AttributeKey{Scope: scope, Handle: v.(uint64)}, nil
	}

	handle := atomic.AddUint64(&c.nextKeyHandle, 1)
	if err := c.send(wireFrame{Op: "attr_key", Payload: json.RawMessage(mustJSON(map[string]any{
		"scope": scope.String(),
		"key":   key,
	}))}); err != nil {
		return types.AttributeKey{}, err
	}

	table.Store(key, handle)
	return types.AttributeKey{Scope: scope, Handle: handle}, nil
}

func (c *WsClient) TimelineMetadata(ctx context.Context, pairs []AttrPair) error {
	for _, p := range pairs {
		if err := c.send(wireFrame{Op: "timeline_metadata", Payload: json.RawMessage(mustJSON(wirePair(p)))}); err != nil {
			return err
		}
	}
	return nil
}

func (c *WsClient) Event(ctx context.Context, tick *BigTick, pairs []AttrPair) error {
	wirePairs := make([]any, 0, len(pairs))
	for _, p := range pairs {
		wirePairs = append(wirePairs, wirePair(p))
	}
	var tickNanos *big.Int
	if tick != nil {
		tickNanos = tick.Nanos()
	} else {
		tickNanos = big.NewInt(0)
	}
	return c.send(wireFrame{Op: "event", Payload: json.RawMessage(mustJSON(map[string]any{
		"tick_ns": tickNanos.String(),
		"pairs":   wirePairs,
	}))})
}

func (c *WsClient) Flush(ctx context.Context) error {
	return c.send(wireFrame{Op: "flush"})
}

func (c *WsClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *WsClient) send(frame wireFrame) error {
	if c.conn == nil {
		return fmt.Errorf("session: not connected")
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(frame)
}

func wirePair(p AttrPair) map[string]any {
	return map[string]any{
		"key":   p.Key.Handle,
		"scope": p.Key.Scope.String(),
		"value": wireValue(p.Value),
	}
}

func wireValue(v types.AttributeValue) map[string]any {
	switch v.Kind {
	case types.AttrString:
		return map[string]any{"kind": "string", "value": v.Str}
	case types.AttrInteger:
		return map[string]any{"kind": "integer", "value": v.Int}
	case types.AttrBigInt:
		s := "0"
		if v.BigInt != nil {
			s = v.BigInt.String()
		}
		return map[string]any{"kind": "bigint", "value": s}
	case types.AttrFloat:
		return map[string]any{"kind": "float", "value": v.Float}
	case types.AttrBool:
		return map[string]any{"kind": "bool", "value": v.Bool}
	case types.AttrTimestamp:
		return map[string]any{"kind": "timestamp", "value": v.TimestampNanos}
	case types.AttrLogicalTime:
		return map[string]any{"kind": "logical_time", "value": v.LogicalTime}
	case types.AttrTimelineId:
		return map[string]any{"kind": "timeline_id", "value": v.TimelineId.String()}
	default:
		return map[string]any{"kind": "unknown"}
	}
}

func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// Every value passed to mustJSON is built from this package's
		// own primitive types; a marshal failure means a caller
		// passed something unsupported, a programming error.
		panic(fmt.Sprintf("session: marshal wire frame: %v", err))
	}
	return b
}
