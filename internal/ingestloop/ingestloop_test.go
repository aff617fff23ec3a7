package ingestloop

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auxoncorp/modality-tracing-go/internal/binder"
	"github.com/auxoncorp/modality-tracing-go/internal/handlers"
	"github.com/auxoncorp/modality-tracing-go/internal/interning"
	"github.com/auxoncorp/modality-tracing-go/internal/session"
	"github.com/auxoncorp/modality-tracing-go/internal/spanstate"
	"github.com/auxoncorp/modality-tracing-go/internal/timelinelru"
	"github.com/auxoncorp/modality-tracing-go/internal/translate"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

type harness struct {
	loop     *Loop
	client   *session.FakeClient
	queue    chan *types.Envelope
	shutdown chan struct{}
}

func newHarness(t *testing.T, queueSize int) *harness {
	t.Helper()
	run, err := types.NewRunId()
	require.NoError(t, err)

	client := session.NewFakeClient()
	lru := timelinelru.New(8)
	in := interning.New(client)
	b := binder.New(client, lru, in, run, nil)
	tr := translate.New(handlers.Default(), spanstate.New(), run)

	queue := make(chan *types.Envelope, queueSize)
	shutdown := make(chan struct{})

	loop := New(Config{
		Queue:      queue,
		Shutdown:   shutdown,
		Client:     client,
		Binder:     b,
		Translator: tr,
		Interner:   in,
	})

	return &harness{loop: loop, client: client, queue: queue, shutdown: shutdown}
}

func newSpanEnvelope(userId uint64, name string) *types.Envelope {
	return &types.Envelope{
		Message: types.Message{
			Kind: types.MsgNewSpan,
			Span: 1,
			Fields: types.CapturedFields{
				"name": {Kind: types.CapturedString, Str: name},
			},
		},
		Tick:           types.TickFromDuration(1),
		TimelineName:   name,
		UserTimelineId: userId,
	}
}

func newEventEnvelope(userId uint64, timeline string) *types.Envelope {
	return &types.Envelope{
		Message: types.Message{
			Kind: types.MsgEvent,
			Fields: types.CapturedFields{
				"message": {Kind: types.CapturedString, Str: "hi"},
			},
		},
		Tick:           types.TickFromDuration(2),
		TimelineName:   timeline,
		UserTimelineId: userId,
	}
}

func TestRun_ProcessesEnvelopesAndTransmitsEvents(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	go h.loop.Run(ctx)

	h.queue <- newSpanEnvelope(1, "thread-a")
	h.queue <- newEventEnvelope(1, "thread-a")

	require.Eventually(t, func() bool { return h.client.EventCount() >= 2 }, time.Second, time.Millisecond)

	close(h.shutdown)
	<-h.loop.Done()

	assert.Equal(t, 1, h.client.FlushCount)
}

func TestRun_DrainsBufferedEnvelopesOnShutdown(t *testing.T) {
	// spec §8 scenario 4: shutdown drains buffered events before flush.
	h := newHarness(t, 1024)
	ctx := context.Background()

	const n = 1000
	for i := 0; i < n; i++ {
		h.queue <- newEventEnvelope(1, "thread-a")
	}

	go h.loop.Run(ctx)
	close(h.shutdown)
	<-h.loop.Done()

	assert.Equal(t, n, h.client.EventCount(), "every buffered envelope must be processed before the consumer exits")
	assert.Equal(t, 1, h.client.FlushCount)
}

func TestRun_DropsRecordOnPerEnvelopeErrorAndContinues(t *testing.T) {
	h := newHarness(t, 4)
	ctx := context.Background()

	go h.loop.Run(ctx)

	h.client.FailNextEvent = assert.AnError
	h.queue <- newEventEnvelope(1, "thread-a")
	h.queue <- newEventEnvelope(2, "thread-b")

	require.Eventually(t, func() bool { return h.client.EventCount() >= 1 }, time.Second, time.Millisecond)

	close(h.shutdown)
	<-h.loop.Done()

	assert.Equal(t, 1, h.client.EventCount(), "the failed envelope should be dropped, not retried, while the next one still succeeds")
}
