package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auxoncorp/modality-tracing-go/pkg/facade"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

func TestCaptureFields_RecordsEachFieldKindByType(t *testing.T) {
	fields := captureFields(func(v facade.FieldVisitor) {
		v.RecordStr("s", "hello")
		v.RecordDebug("d", "{debug}")
		v.RecordI64("i", -7)
		v.RecordU64("u", 7)
		v.RecordF64("f", 1.5)
		v.RecordBool("b", true)
	})

	assert.Equal(t, types.CapturedValue{Kind: types.CapturedString, Str: "hello"}, fields["s"])
	assert.Equal(t, types.CapturedValue{Kind: types.CapturedString, Str: "{debug}"}, fields["d"])
	assert.Equal(t, types.CapturedValue{Kind: types.CapturedInteger, Int: -7}, fields["i"])
	assert.Equal(t, types.CapturedValue{Kind: types.CapturedUnsigned, Uint: 7}, fields["u"])
	assert.Equal(t, types.CapturedValue{Kind: types.CapturedFloat, Float: 1.5}, fields["f"])
	assert.Equal(t, types.CapturedValue{Kind: types.CapturedBool, Bool: true}, fields["b"])
}

func TestCaptureFields_NilVisitYieldsEmptyBag(t *testing.T) {
	fields := captureFields(nil)
	assert.Empty(t, fields)
}

func TestCaptureFields_LaterWriteToSameNameOverwrites(t *testing.T) {
	fields := captureFields(func(v facade.FieldVisitor) {
		v.RecordI64("x", 1)
		v.RecordStr("x", "two")
	})

	assert.Equal(t, types.CapturedValue{Kind: types.CapturedString, Str: "two"}, fields["x"])
}
