package producer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auxoncorp/modality-tracing-go/pkg/facade"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

func fixedIdentifier(name string, userId uint64) Identifier {
	return func() types.UserTimelineInfo {
		return types.UserTimelineInfo{Name: name, UserId: userId}
	}
}

func TestFrontend_OnNewSpanAllocatesDistinctLocalIds(t *testing.T) {
	queue := make(chan *types.Envelope, 8)
	f := NewFrontend(queue, fixedIdentifier("t", 1))

	f.OnNewSpan(&facade.Metadata{Name: "s1"}, facade.SpanId(10), nil)
	f.OnNewSpan(&facade.Metadata{Name: "s2"}, facade.SpanId(20), nil)

	env1 := <-queue
	env2 := <-queue

	assert.NotEqual(t, env1.Message.Span, env2.Message.Span)
	assert.NotZero(t, env1.Message.Span)
	assert.NotZero(t, env2.Message.Span)
}

func TestFrontend_OnEnterUsesMappedLocalId(t *testing.T) {
	queue := make(chan *types.Envelope, 8)
	f := NewFrontend(queue, fixedIdentifier("t", 1))

	f.OnNewSpan(&facade.Metadata{Name: "s"}, facade.SpanId(10), nil)
	newSpanEnv := <-queue

	f.OnEnter(facade.SpanId(10))
	enterEnv := <-queue

	assert.Equal(t, newSpanEnv.Message.Span, enterEnv.Message.Span)
}

func TestFrontend_OnIdChangeRemapsToNewLocalId(t *testing.T) {
	queue := make(chan *types.Envelope, 8)
	f := NewFrontend(queue, fixedIdentifier("t", 1))

	f.OnNewSpan(&facade.Metadata{Name: "s"}, facade.SpanId(10), nil)
	newSpanEnv := <-queue

	f.OnIdChange(facade.SpanId(10), facade.SpanId(99))
	idChangeEnv := <-queue

	require.Equal(t, types.MsgIdChange, idChangeEnv.Message.Kind)
	assert.Equal(t, newSpanEnv.Message.Span, idChangeEnv.Message.OldId)
	assert.NotEqual(t, idChangeEnv.Message.OldId, idChangeEnv.Message.NewId)

	f.OnEnter(facade.SpanId(99))
	enterEnv := <-queue
	assert.Equal(t, idChangeEnv.Message.NewId, enterEnv.Message.Span)

	// the old façade id must no longer resolve to anything after the
	// rename: a stray OnEnter(10) would now report the zero value.
	f.OnEnter(facade.SpanId(10))
	staleEnv := <-queue
	assert.Zero(t, staleEnv.Message.Span)
}

func TestFrontend_OnCloseForgetsMapping(t *testing.T) {
	queue := make(chan *types.Envelope, 8)
	f := NewFrontend(queue, fixedIdentifier("t", 1))

	f.OnNewSpan(&facade.Metadata{Name: "s"}, facade.SpanId(10), nil)
	<-queue

	f.OnClose(facade.SpanId(10))
	closeEnv := <-queue
	assert.NotZero(t, closeEnv.Message.Span)

	f.OnEnter(facade.SpanId(10))
	afterCloseEnv := <-queue
	assert.Zero(t, afterCloseEnv.Message.Span, "a closed span's façade id must not resolve to its old local id")
}

func TestFrontend_EnabledAlwaysTrue(t *testing.T) {
	queue := make(chan *types.Envelope, 1)
	f := NewFrontend(queue, fixedIdentifier("t", 1))
	assert.True(t, f.Enabled(nil))
	assert.True(t, f.Enabled(&facade.Metadata{}))
}

func TestFrontend_MissingIdentifierWarnsOnceAndDropsRecords(t *testing.T) {
	queue := make(chan *types.Envelope, 8)
	f := NewFrontend(queue, nil)

	var warnings int
	f.stderr = func(string) { warnings++ }

	f.OnEvent(&facade.Metadata{Name: "e"}, nil)
	f.OnEvent(&facade.Metadata{Name: "e"}, nil)

	assert.Equal(t, 1, warnings, "the missing-identifier warning must latch after the first occurrence")
	assert.Empty(t, queue)
}

func TestFrontend_FullQueueWarnsOnceAndDropsRecord(t *testing.T) {
	queue := make(chan *types.Envelope, 1)
	f := NewFrontend(queue, fixedIdentifier("t", 1))

	var warnings int
	f.stderr = func(string) { warnings++ }

	f.OnEvent(&facade.Metadata{Name: "e1"}, nil) // fills the queue
	f.OnEvent(&facade.Metadata{Name: "e2"}, nil) // queue full, dropped+warned
	f.OnEvent(&facade.Metadata{Name: "e3"}, nil) // still latched

	assert.Equal(t, 1, warnings)
	assert.Len(t, queue, 1)
}

func TestFrontend_ImplementsSubscriber(t *testing.T) {
	var _ facade.Subscriber = (*Frontend)(nil)
}
