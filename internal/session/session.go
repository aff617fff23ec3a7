// Package session defines the downstream contract this module
// requires from the remote ingest service's network client (spec
// §6), plus a concrete implementation over a persistent WebSocket
// connection.
//
// The wire protocol and authentication handshake of the remote
// service are an external collaborator (spec §1); this package only
// fixes the shape of the calls the ingest consumer makes and ships
// one concrete, usable client so the module is exercisable
// end-to-end.
package session

import (
	"context"

	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// Client is the downstream session contract (spec §6). A Client is
// owned exclusively by the ingest consumer; it is never shared
// across goroutines (spec §5).
type Client interface {
	// Connect establishes an unauthenticated session to endpoint.
	Connect(ctx context.Context, endpoint string) error

	// Authenticate upgrades an unauthenticated session using an
	// opaque token.
	Authenticate(ctx context.Context, token []byte) error

	// OpenTimeline sets the session's currently bound timeline.
	OpenTimeline(ctx context.Context, id types.RemoteTimelineId) error

	// BoundTimeline returns the remote id of the currently bound
	// timeline, and false if no timeline is bound yet.
	BoundTimeline() (types.RemoteTimelineId, bool)

	// AttrKey returns the opaque handle for (scope, key), allocating
	// one on the remote side if this is the first use of the string
	// in that scope (spec §4.1).
	AttrKey(ctx context.Context, scope types.AttrScope, key string) (types.AttributeKey, error)

	// TimelineMetadata writes pairs onto the currently bound
	// timeline. The remote API is per-pair (spec §4.6): each pair in
	// pairs is written as one request internally.
	TimelineMetadata(ctx context.Context, pairs []AttrPair) error

	// Event emits one event on the currently bound timeline.
	Event(ctx context.Context, tickNanos *BigTick, pairs []AttrPair) error

	// Flush drains buffered writes.
	Flush(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}

// AttrPair is one (key, value) pair as written to the remote
// session.
type AttrPair struct {
	Key   types.AttributeKey
	Value types.AttributeValue
}

// BigTick carries a tick's full-precision nanosecond count to the
// wire, since spec §3 models Tick as 128-bit.
type BigTick = types.Tick
