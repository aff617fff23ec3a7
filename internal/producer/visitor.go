package producer

import (
	"github.com/auxoncorp/modality-tracing-go/pkg/facade"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// capture implements facade.FieldVisitor over an owned CapturedFields
// bag (spec §4.3). A capture value is created fresh per callback and
// handed off to exactly one envelope; it is never reused.
type capture struct {
	fields types.CapturedFields
}

func newCapture() *capture {
	return &capture{fields: make(types.CapturedFields)}
}

func (c *capture) RecordDebug(name, formatted string) {
	c.fields[name] = types.CapturedValue{Kind: types.CapturedString, Str: formatted}
}

func (c *capture) RecordStr(name, value string) {
	c.fields[name] = types.CapturedValue{Kind: types.CapturedString, Str: value}
}

func (c *capture) RecordI64(name string, value int64) {
	c.fields[name] = types.CapturedValue{Kind: types.CapturedInteger, Int: value}
}

func (c *capture) RecordU64(name string, value uint64) {
	c.fields[name] = types.CapturedValue{Kind: types.CapturedUnsigned, Uint: value}
}

func (c *capture) RecordF64(name string, value float64) {
	c.fields[name] = types.CapturedValue{Kind: types.CapturedFloat, Float: value}
}

func (c *capture) RecordBool(name string, value bool) {
	c.fields[name] = types.CapturedValue{Kind: types.CapturedBool, Bool: value}
}

var _ facade.FieldVisitor = (*capture)(nil)

// captureFields drives visit against a fresh capture and returns its
// field bag.
func captureFields(visit func(facade.FieldVisitor)) types.CapturedFields {
	c := newCapture()
	if visit != nil {
		visit(c)
	}
	return c.fields
}
