// Package types holds the data model shared across the ingest
// pipeline: ticks, span ids, timeline identity, the attribute value
// union, captured fields, and the record envelope that flows from
// the producer front end to the ingest consumer (spec §3).
package types

import (
	"encoding/binary"
	"math/big"

	"github.com/google/uuid"

	"github.com/auxoncorp/modality-tracing-go/pkg/facade"
)

// Tick is a monotonic duration since process start, expressed as
// nanoseconds. It holds an arbitrary-precision integer, standing in
// for spec §3's 128-bit value, because the remote encoding and the
// LogicalTime packing only accept a u64, and this module must be able
// to represent (and gracefully drop) ticks that don't fit.
type Tick struct {
	ns big.Int
}

// TickFromDuration builds a Tick from an elapsed time.Duration, the
// normal case for every producer-stamped record.
func TickFromDuration(elapsed int64) Tick {
	var t Tick
	t.ns.SetInt64(elapsed)
	return t
}

// TickFromNanos builds a Tick directly from an arbitrary-precision
// nanosecond count, used by tests that must exercise the u64
// overflow boundary (spec §8: "tick values exceeding u64
// nanoseconds").
func TickFromNanos(ns *big.Int) Tick {
	var t Tick
	t.ns.Set(ns)
	return t
}

// AsUint64 returns the tick's nanosecond count narrowed to u64, and
// false if the tick does not fit (spec §4.5: "skipped if tick
// overflows u64").
func (t Tick) AsUint64() (uint64, bool) {
	if t.ns.Sign() < 0 || !t.ns.IsUint64() {
		return 0, false
	}
	return t.ns.Uint64(), true
}

// Nanos returns a copy of the tick's nanosecond count.
func (t Tick) Nanos() *big.Int {
	return new(big.Int).Set(&t.ns)
}

// LocalSpanId is a process-wide, non-zero 64-bit span identifier
// allocated by the producer front end on new-span and id-change
// (spec §3). The zero value is never valid.
type LocalSpanId uint64

// UserTimelineInfo identifies the logical timeline a producer
// context belongs to (spec §3).
type UserTimelineInfo struct {
	Name   string
	UserId uint64
}

// RunId is a random 128-bit identifier generated once per process
// initialization (spec §3). It doubles as the namespace for
// RemoteTimelineId derivation and is published as timeline metadata.
type RunId uuid.UUID

// NewRunId generates a fresh random RunId.
func NewRunId() (RunId, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return RunId{}, err
	}
	return RunId(id), nil
}

func (r RunId) String() string {
	return uuid.UUID(r).String()
}

// RemoteTimelineId is a 128-bit identifier derived deterministically
// from (run_id, user_id) via a namespaced v5-style UUID construction
// (spec §3): SHA-1 over run_id || user_id in native byte order,
// namespaced under run_id.
type RemoteTimelineId uuid.UUID

// DeriveRemoteTimelineId computes the RemoteTimelineId for (run,
// userId). The same (run, userId) pair always yields the same id;
// distinct userIds within a run yield distinct ids with cryptographic
// probability (spec §3 invariant).
//
// "Native byte order" in the originating Rust implementation means
// the host's byte order (little-endian on every platform this module
// targets); this port fixes little-endian explicitly so the
// derivation is reproducible across machines rather than merely
// reproducible on one.
func DeriveRemoteTimelineId(run RunId, userId uint64) RemoteTimelineId {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], userId)
	return RemoteTimelineId(uuid.NewSHA1(uuid.UUID(run), buf[:]))
}

func (id RemoteTimelineId) String() string {
	return uuid.UUID(id).String()
}

// AttrScope distinguishes the two independently-interned key
// namespaces (spec §4.1).
type AttrScope int

const (
	ScopeEvent AttrScope = iota
	ScopeTimeline
)

func (s AttrScope) String() string {
	if s == ScopeTimeline {
		return "timeline"
	}
	return "event"
}

// AttributeKey is the opaque handle the remote session returns for a
// given (scope, string) pair (spec §3). Equal strings in the same
// scope always map to equal handles within one session.
type AttributeKey struct {
	Scope  AttrScope
	Handle uint64
}

// AttrValueKind enumerates the tagged union's variants (spec §3).
type AttrValueKind int

const (
	AttrString AttrValueKind = iota
	AttrInteger
	AttrBigInt
	AttrFloat
	AttrBool
	AttrTimestamp
	AttrLogicalTime
	AttrTimelineId
)

// AttributeValue is the tagged union over the remote wire's value
// kinds. Only one of the typed fields is meaningful, selected by
// Kind.
type AttributeValue struct {
	Kind AttrValueKind

	Str            string
	Int            int64
	BigInt         *big.Int
	Float          float64
	Bool           bool
	TimestampNanos uint64
	LogicalTime    []uint64
	TimelineId     RemoteTimelineId
}

func StringValue(s string) AttributeValue           { return AttributeValue{Kind: AttrString, Str: s} }
func IntegerValue(i int64) AttributeValue            { return AttributeValue{Kind: AttrInteger, Int: i} }
func BigIntValue(i *big.Int) AttributeValue          { return AttributeValue{Kind: AttrBigInt, BigInt: i} }
func FloatValue(f float64) AttributeValue            { return AttributeValue{Kind: AttrFloat, Float: f} }
func BoolValue(b bool) AttributeValue                { return AttributeValue{Kind: AttrBool, Bool: b} }
func TimestampValue(ns uint64) AttributeValue        { return AttributeValue{Kind: AttrTimestamp, TimestampNanos: ns} }
func TimelineIdValue(id RemoteTimelineId) AttributeValue {
	return AttributeValue{Kind: AttrTimelineId, TimelineId: id}
}

// UnaryLogicalTime builds a LogicalTime attribute holding a single
// tick value, the form used for event.internal.rs.tick (spec §4.5).
func UnaryLogicalTime(tick uint64) AttributeValue {
	return AttributeValue{Kind: AttrLogicalTime, LogicalTime: []uint64{tick}}
}

// CapturedValueKind enumerates the captured-field variants (spec
// §3). Debug-formattable façade values are coerced to String at
// capture time (spec §4.3), so Debug is not a captured-field kind.
type CapturedValueKind int

const (
	CapturedString CapturedValueKind = iota
	CapturedFloat
	CapturedInteger
	CapturedUnsigned
	CapturedBool
)

// CapturedValue is one field value inside a CapturedFields map.
type CapturedValue struct {
	Kind  CapturedValueKind
	Str   string
	Float float64
	Int   int64
	Uint  uint64
	Bool  bool
}

// CapturedFields is the per-record field bag captured by the
// producer's visitor (spec §3, §4.3). Insertion order is irrelevant;
// a later assignment to the same name overwrites the earlier one.
type CapturedFields map[string]CapturedValue

// FromFacadeField coerces a facade.FieldValue into a CapturedValue,
// implementing the type coercions of spec §4.3. For facade.FieldDebug,
// value.Str is taken as the already-formatted debug rendering.
func FromFacadeField(value facade.FieldValue) CapturedValue {
	switch value.Kind {
	case facade.FieldString:
		return CapturedValue{Kind: CapturedString, Str: value.Str}
	case facade.FieldInt64:
		return CapturedValue{Kind: CapturedInteger, Int: value.Int}
	case facade.FieldUint64:
		return CapturedValue{Kind: CapturedUnsigned, Uint: value.Uint}
	case facade.FieldFloat64:
		return CapturedValue{Kind: CapturedFloat, Float: value.Float}
	case facade.FieldBool:
		return CapturedValue{Kind: CapturedBool, Bool: value.Boolean}
	case facade.FieldDebug:
		fallthrough
	default:
		return CapturedValue{Kind: CapturedString, Str: value.Str}
	}
}

// MessageKind enumerates the record envelope's message variants
// (spec §3).
type MessageKind int

const (
	MsgNewSpan MessageKind = iota
	MsgRecord
	MsgFollowsFrom
	MsgEvent
	MsgEnter
	MsgExit
	MsgClose
	MsgIdChange
)

// Message is the tagged union of callback payloads a producer can
// enqueue (spec §3).
type Message struct {
	Kind MessageKind

	// NewSpan, Record, Enter, Exit, Close.
	Span LocalSpanId
	// NewSpan, Event: the façade's static metadata reference.
	Metadata *facade.Metadata
	// NewSpan, Record, Event: captured fields.
	Fields CapturedFields
	// FollowsFrom: the span being followed.
	Follows LocalSpanId
	// IdChange.
	OldId LocalSpanId
	NewId LocalSpanId
}

// Envelope is the queued item a producer hands to the ingest
// consumer (spec §3).
type Envelope struct {
	Message        Message
	Tick           Tick
	TimelineName   string
	UserTimelineId uint64
}
