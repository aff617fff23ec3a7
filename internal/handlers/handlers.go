// Package handlers implements the per-key attribute transformer
// table and its fallback rule (spec §4.4), grounded on the original
// Rust implementation's attr_handlers.rs function-table design.
package handlers

import (
	"math/big"
	"strings"

	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// Handler transforms one captured field into a (remote key, remote
// value) pair. run is supplied so handlers that need it (the
// cross-timeline pointer handler) can derive a RemoteTimelineId
// without a closure per call.
type Handler func(key string, value types.CapturedValue, run types.RunId) (string, types.AttributeValue)

// Table is the configured set of per-key handlers (spec §4.4). The
// zero Table has no handlers and every field falls through to
// Fallback.
type Table struct {
	byKey map[string]Handler
}

// NewTable builds a Table from key -> Handler pairs. Passing no pairs
// yields a Table where every field uses the fallback rule.
func NewTable(entries map[string]Handler) *Table {
	t := &Table{byKey: make(map[string]Handler, len(entries))}
	for k, h := range entries {
		t.byKey[k] = h
	}
	return t
}

// Default builds the Table of default handlers described in spec
// §4.4.
func Default() *Table {
	return NewTable(map[string]Handler{
		"timestamp":                     Timestamp,
		"interaction.remote_timestamp":  RemoteTimestamp,
		"interaction.remote_timeline_id": RemoteTimelineId,
		"name":                          Name,
		"message":                       Name,
		"severity":                      Severity,
		"source.module":                 SourceModule,
		"source.file":                   SourceFile,
	})
}

// Apply runs key's handler if one matches exactly, otherwise the
// fallback rule (spec §4.4).
func (t *Table) Apply(key string, value types.CapturedValue, run types.RunId) (string, types.AttributeValue) {
	if t != nil {
		if h, ok := t.byKey[key]; ok {
			return h(key, value, run)
		}
	}
	return Fallback(key, value)
}

// Fallback coerces a captured value to a remote value by type and
// prefixes the key with "event." unless it already has that prefix.
// Unconfigurable (spec §4.4).
func Fallback(key string, value types.CapturedValue) (string, types.AttributeValue) {
	return fallbackKey(key), coerce(value)
}

func fallbackKey(key string) string {
	const prefix = "event."
	if strings.HasPrefix(key, prefix) {
		return key
	}
	return prefix + key
}

func coerce(value types.CapturedValue) types.AttributeValue {
	switch value.Kind {
	case types.CapturedString:
		return types.StringValue(value.Str)
	case types.CapturedFloat:
		return types.FloatValue(value.Float)
	case types.CapturedInteger:
		return types.IntegerValue(value.Int)
	case types.CapturedUnsigned:
		// Unsigned values fit in the wire's signed Integer kind
		// unless they exceed int64's range, in which case they're
		// promoted to BigInt to avoid silent truncation/sign flip.
		if value.Uint <= uint64(1<<63-1) {
			return types.IntegerValue(int64(value.Uint))
		}
		return types.BigIntValue(new(big.Int).SetUint64(value.Uint))
	case types.CapturedBool:
		return types.BoolValue(value.Bool)
	default:
		return types.StringValue("")
	}
}

// Timestamp promotes a non-negative integer/big-integer captured
// value to a Timestamp; existing timestamps pass through unchanged
// (spec §4.4). Negative integers are NOT promoted (spec §8 boundary
// behavior): they pass through as Integer.
func Timestamp(_ string, value types.CapturedValue, _ types.RunId) (string, types.AttributeValue) {
	return "event.timestamp", timestampInner(value)
}

// RemoteTimestamp is Timestamp's twin for the cross-timeline
// interaction field (spec §4.4).
func RemoteTimestamp(_ string, value types.CapturedValue, _ types.RunId) (string, types.AttributeValue) {
	return "event.interaction.remote_timestamp", timestampInner(value)
}

func timestampInner(value types.CapturedValue) types.AttributeValue {
	switch value.Kind {
	case types.CapturedInteger:
		if value.Int >= 0 {
			return types.TimestampValue(uint64(value.Int))
		}
		return types.IntegerValue(value.Int)
	case types.CapturedUnsigned:
		return types.TimestampValue(value.Uint)
	default:
		return coerce(value)
	}
}

// RemoteTimelineId derives a TimelineId attribute from an unsigned
// 64-bit captured value, reinterpreting it as a user-id under run
// (spec §4.4). Any other captured kind is coerced by type instead.
func RemoteTimelineId(_ string, value types.CapturedValue, run types.RunId) (string, types.AttributeValue) {
	var v types.AttributeValue
	if value.Kind == types.CapturedUnsigned {
		v = types.TimelineIdValue(types.DeriveRemoteTimelineId(run, value.Uint))
	} else {
		v = coerce(value)
	}
	return "event.interaction.remote_timeline_id", v
}

// Name renames a captured "name"/"message" field to event.name (spec
// §4.4).
func Name(_ string, value types.CapturedValue, _ types.RunId) (string, types.AttributeValue) {
	return "event.name", coerce(value)
}

// Severity renames a captured "severity" field to event.severity.
func Severity(_ string, value types.CapturedValue, _ types.RunId) (string, types.AttributeValue) {
	return "event.severity", coerce(value)
}

// SourceModule renames a captured "source.module" field.
func SourceModule(_ string, value types.CapturedValue, _ types.RunId) (string, types.AttributeValue) {
	return "event.source.module", coerce(value)
}

// SourceFile renames a captured "source.file" field.
func SourceFile(_ string, value types.CapturedValue, _ types.RunId) (string, types.AttributeValue) {
	return "event.source.file", coerce(value)
}
