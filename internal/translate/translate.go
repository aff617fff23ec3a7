// Package translate converts a captured record into an ordered list
// of (AttributeKey, AttributeValue) pairs ready to send to the
// remote session (spec §4.5), applying the handler table, filling
// reserved-attribute defaults, and packing per-message additions.
package translate

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/auxoncorp/modality-tracing-go/internal/handlers"
	"github.com/auxoncorp/modality-tracing-go/internal/spanstate"
	apperrors "github.com/auxoncorp/modality-tracing-go/pkg/errors"
	"github.com/auxoncorp/modality-tracing-go/pkg/facade"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// Pair is one (remote key string, value) pair awaiting key
// interning. The translator works in terms of string keys; the
// caller (the ingest consumer) interns them via internal/interning
// immediately before transmission (spec §4.5 step 3).
type Pair struct {
	Key   string
	Value types.AttributeValue
}

// Translator converts envelopes into wire-ready attribute pairs.
type Translator struct {
	handlers *handlers.Table
	names    *spanstate.Table
	run      types.RunId
	now      func() time.Time
}

// New builds a Translator. handlerTable may be nil, meaning every
// field goes through the fallback rule.
func New(handlerTable *handlers.Table, names *spanstate.Table, run types.RunId) *Translator {
	return &Translator{handlers: handlerTable, names: names, run: run, now: time.Now}
}

// Translate converts one envelope's message into an ordered Pair
// list with string keys (spec §4.5). The caller is responsible for
// interning each Pair's key. The span-name table updates on NewSpan/
// Close/IdChange are applied here, since they're intrinsic to
// translation.
func (tr *Translator) Translate(env *types.Envelope) ([]Pair, error) {
	msg := &env.Message

	switch msg.Kind {
	case types.MsgNewSpan:
		return tr.translateNewSpan(env)
	case types.MsgEvent:
		return tr.translateEvent(env)
	case types.MsgEnter:
		return tr.translateEnterExit(env, "enter: ", "span:enter")
	case types.MsgExit:
		return tr.translateEnterExit(env, "exit: ", "span:exit")
	case types.MsgRecord, types.MsgFollowsFrom:
		// Deliberate no-ops: the remote representation does not
		// currently admit post-facto additions to an already-emitted
		// span-open record (spec §4.5).
		return nil, nil
	case types.MsgClose:
		tr.names.Remove(msg.Span)
		return nil, nil
	case types.MsgIdChange:
		tr.names.Rename(msg.OldId, msg.NewId)
		return nil, nil
	default:
		return nil, apperrors.UnexpectedFailure("translate", "translate", fmt.Sprintf("unknown message kind %d", msg.Kind), nil)
	}
}

func (tr *Translator) translateNewSpan(env *types.Envelope) ([]Pair, error) {
	msg := &env.Message
	pairs := make([]Pair, 0, 8)

	spanName := firstNonEmpty(
		stringField(msg.Fields, "name"),
		stringField(msg.Fields, "message"),
		metadataName(msg.Metadata),
	)
	pairs = append(pairs, Pair{"event.name", types.StringValue(spanName)})

	kind := "span:defined"
	if v, ok := stringFieldOk(msg.Fields, "modality.kind"); ok {
		kind = v
	}
	pairs = append(pairs, Pair{"event.internal.rs.kind", types.StringValue(kind)})

	spanIdValue := spanIdAttrValue(msg.Fields, msg.Span)
	pairs = append(pairs, Pair{"event.internal.rs.span_id", spanIdValue})

	tr.names.Set(msg.Span, spanName)

	pairs = tr.packCommon(pairs, msg.Metadata, msg.Fields, env.Tick)
	return pairs, nil
}

func (tr *Translator) translateEvent(env *types.Envelope) ([]Pair, error) {
	msg := &env.Message
	pairs := make([]Pair, 0, 8)

	kind := "event"
	if v, ok := stringFieldOk(msg.Fields, "modality.kind"); ok {
		kind = v
	}
	pairs = append(pairs, Pair{"event.internal.rs.kind", types.StringValue(kind)})

	pairs = tr.packCommon(pairs, msg.Metadata, msg.Fields, env.Tick)
	return pairs, nil
}

// translateEnterExit builds an Enter/Exit record. These deliberately
// omit pack_common / metadata (spec §4.5).
func (tr *Translator) translateEnterExit(env *types.Envelope, namePrefix, kind string) ([]Pair, error) {
	msg := &env.Message
	pairs := make([]Pair, 0, 4)

	if name, ok := tr.names.Lookup(msg.Span); ok {
		pairs = append(pairs, Pair{"event.name", types.StringValue(namePrefix + name)})
	}
	pairs = append(pairs, Pair{"event.internal.rs.kind", types.StringValue(kind)})
	pairs = append(pairs, Pair{"event.internal.rs.span_id", types.BigIntValue(new(big.Int).SetUint64(uint64(msg.Span)))})

	if tickU64, ok := env.Tick.AsUint64(); ok {
		pairs = append(pairs, Pair{"event.internal.rs.tick", types.UnaryLogicalTime(tickU64)})
	}
	return pairs, nil
}

// packCommon runs every captured field through handler-or-fallback,
// then fills reserved attributes from metadata where still absent
// (spec §4.5). Keys already present in pairs count as present, so
// every key appears at most once in the result.
func (tr *Translator) packCommon(pairs []Pair, metadata *facade.Metadata, fields types.CapturedFields, tick types.Tick) []Pair {
	bag := make(map[string]types.AttributeValue, len(pairs)+len(fields))
	order := make([]string, 0, len(pairs)+len(fields))

	for _, p := range pairs {
		if _, exists := bag[p.Key]; !exists {
			order = append(order, p.Key)
		}
		bag[p.Key] = p.Value
	}

	for name, value := range fields {
		key, attrVal := tr.handlers.Apply(name, value, tr.run)
		if _, exists := bag[key]; !exists {
			order = append(order, key)
		}
		bag[key] = attrVal
	}

	fillDefault := func(key string, value types.AttributeValue, ok bool) {
		if !ok {
			return
		}
		if _, exists := bag[key]; exists {
			return
		}
		bag[key] = value
		order = append(order, key)
	}

	if metadata != nil {
		fillDefault("event.name", types.StringValue(metadata.Name), metadata.Name != "")
		fillDefault("event.severity", types.StringValue(strings.ToLower(string(metadata.Level))), metadata.Level != "")
		fillDefault("event.source.module", types.StringValue(metadata.ModulePath), metadata.ModulePath != "")
		fillDefault("event.source.file", types.StringValue(metadata.File), metadata.File != "")
		fillDefault("event.source.line", types.IntegerValue(int64(metadata.Line)), metadata.Line != 0)
	}

	if tickU64, ok := tick.AsUint64(); ok {
		fillDefault("event.internal.rs.tick", types.UnaryLogicalTime(tickU64), true)
	}

	if nowNanos, ok := wallClockNanos(tr.now()); ok {
		fillDefault("event.timestamp", types.TimestampValue(nowNanos), true)
	}

	packed := make([]Pair, 0, len(order))
	for _, key := range order {
		packed = append(packed, Pair{Key: key, Value: bag[key]})
	}
	return packed
}

func wallClockNanos(t time.Time) (uint64, bool) {
	nanos := t.UnixNano()
	if nanos < 0 {
		return 0, false
	}
	return uint64(nanos), true
}

func stringField(fields types.CapturedFields, name string) string {
	v, _ := stringFieldOk(fields, name)
	return v
}

func stringFieldOk(fields types.CapturedFields, name string) (string, bool) {
	if fields == nil {
		return "", false
	}
	v, ok := fields[name]
	if !ok || v.Kind != types.CapturedString {
		return "", false
	}
	return v.Str, true
}

func metadataName(metadata *facade.Metadata) string {
	if metadata == nil {
		return ""
	}
	return metadata.Name
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func spanIdAttrValue(fields types.CapturedFields, local types.LocalSpanId) types.AttributeValue {
	if fields != nil {
		if v, ok := fields["modality.span_id"]; ok {
			switch v.Kind {
			case types.CapturedInteger:
				return types.BigIntValue(big.NewInt(v.Int))
			case types.CapturedUnsigned:
				return types.BigIntValue(new(big.Int).SetUint64(v.Uint))
			}
		}
	}
	return types.BigIntValue(new(big.Int).SetUint64(uint64(local)))
}
