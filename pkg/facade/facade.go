// Package facade defines the contract this module expects from the
// in-process tracing façade it attaches to. The façade itself is
// external collaborator; this package only fixes the shape of the
// callbacks and values it hands us (spec §6, upstream contract).
package facade

// SpanId identifies a span from the façade's point of view. The
// façade is free to reuse or renumber ids (see IdChange); this
// module's own process-wide LocalSpanId (pkg/types) is allocated
// independently on each callback that introduces one.
type SpanId uint64

// Level mirrors the façade's severity levels, lowercased on the wire
// (spec §4.5: event.severity <- lowercased level string).
type Level string

const (
	LevelTrace Level = "trace"
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Metadata is the façade's static, long-lived description of a span
// or event call site. The façade hands this by reference; this
// module stores that reference in the record envelope rather than
// copying its fields (spec §9).
type Metadata struct {
	Name       string
	Level      Level
	ModulePath string
	File       string
	Line       uint32
}

// FieldValue is the façade's typed field value, covering the
// visitor sub-protocol's five primitive kinds plus debug-formatted
// values (spec §4.3).
type FieldValue struct {
	Kind FieldKind

	Str     string
	Float   float64
	Int     int64
	Uint    uint64
	Boolean bool
}

// FieldKind enumerates the façade visitor's field record_* variants.
type FieldKind int

const (
	FieldDebug FieldKind = iota
	FieldString
	FieldInt64
	FieldUint64
	FieldFloat64
	FieldBool
)

// FieldVisitor is the façade's per-record visitor sub-protocol. The
// façade calls exactly one of these methods per captured field.
type FieldVisitor interface {
	RecordDebug(name, formatted string)
	RecordStr(name, value string)
	RecordI64(name string, value int64)
	RecordU64(name string, value uint64)
	RecordF64(name string, value float64)
	RecordBool(name string, value bool)
}

// Subscriber is the callback surface this module implements so the
// façade can drive it (spec §4.8, §6). Every method is synchronous,
// non-blocking, and infallible from the façade's point of view: the
// façade never learns about per-record failures (spec §7).
type Subscriber interface {
	// Enabled is always true for this module; no level filtering
	// happens inside the core (spec §4.8).
	Enabled(metadata *Metadata) bool

	// OnNewSpan is called when the façade opens a new span. attrs is
	// visited via visit before OnNewSpan returns.
	OnNewSpan(metadata *Metadata, span SpanId, visit func(FieldVisitor))

	// OnRecord adds fields to an already-open span. Spec §4.5 treats
	// this as a no-op in the translator, but the façade still calls
	// it and expects the visitor to be driven.
	OnRecord(span SpanId, visit func(FieldVisitor))

	// OnFollowsFrom records a causal edge between two spans. Also a
	// translator no-op per spec §4.5.
	OnFollowsFrom(span, follows SpanId)

	// OnEvent is called for a point-in-time event with its own
	// metadata and fields.
	OnEvent(metadata *Metadata, visit func(FieldVisitor))

	OnEnter(span SpanId)
	OnExit(span SpanId)
	OnClose(span SpanId)
	OnIdChange(old, new SpanId)
}
