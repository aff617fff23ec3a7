package producer

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/auxoncorp/modality-tracing-go/pkg/facade"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// Frontend implements facade.Subscriber (spec §4.8): the synchronous,
// non-blocking hook every producer context calls into. Its queue send
// is non-blocking, and it never returns an error to the façade (spec
// §7).
//
// The façade is free to reuse or renumber its own SpanId values (spec
// §3), so Frontend keeps an independent map from facade.SpanId to the
// process-wide types.LocalSpanId it allocates on NewSpan/IdChange.
type Frontend struct {
	queue      chan<- *types.Envelope
	identifier Identifier
	start      time.Time

	nextSpanID uint64 // atomic, allocated from 1

	idsMu sync.Mutex
	ids   map[facade.SpanId]types.LocalSpanId

	warnIdentifierOnce sync.Once
	warnShutdownOnce   sync.Once

	stderr func(string)
}

// NewFrontend builds a Frontend that enqueues onto queue. A nil
// identifier makes every record drop with a one-shot warning; the root
// package's Init defaults it to DefaultIdentifier.
func NewFrontend(queue chan<- *types.Envelope, identifier Identifier) *Frontend {
	return &Frontend{
		queue:      queue,
		identifier: identifier,
		start:      time.Now(),
		ids:        make(map[facade.SpanId]types.LocalSpanId),
		stderr: func(msg string) {
			fmt.Fprintln(os.Stderr, msg)
		},
	}
}

func (f *Frontend) allocateSpanID() types.LocalSpanId {
	return types.LocalSpanId(atomic.AddUint64(&f.nextSpanID, 1))
}

func (f *Frontend) bind(span facade.SpanId, local types.LocalSpanId) {
	f.idsMu.Lock()
	f.ids[span] = local
	f.idsMu.Unlock()
}

func (f *Frontend) lookup(span facade.SpanId) types.LocalSpanId {
	f.idsMu.Lock()
	defer f.idsMu.Unlock()
	return f.ids[span]
}

func (f *Frontend) forget(span facade.SpanId) {
	f.idsMu.Lock()
	delete(f.ids, span)
	f.idsMu.Unlock()
}

func (f *Frontend) tick() types.Tick {
	return types.TickFromDuration(int64(time.Since(f.start)))
}

// enqueue wraps msg into an envelope stamped with the current tick and
// timeline identity, and sends it on the queue. If the identifier is
// unset, the record is dropped with a one-shot warning. The send is
// non-blocking: when the queue buffer is full the record is dropped,
// with a one-shot warning on a distinct latch. The queue is not closed
// on shutdown, so records sent after shutdown are accepted into the
// buffer without a warning until it fills.
func (f *Frontend) enqueue(msg types.Message) {
	if f.identifier == nil {
		f.warnIdentifierOnce.Do(func() {
			f.stderr("modality: no timeline identifier configured, dropping records")
		})
		return
	}

	info := f.identifier()
	env := &types.Envelope{
		Message:        msg,
		Tick:           f.tick(),
		TimelineName:   info.Name,
		UserTimelineId: info.UserId,
	}

	select {
	case f.queue <- env:
	default:
		f.warnShutdownOnce.Do(func() {
			f.stderr("modality: ingest queue closed or full, dropping record")
		})
	}
}

// Enabled always returns true; no level filtering happens inside the
// core (spec §4.8).
func (f *Frontend) Enabled(metadata *facade.Metadata) bool {
	return true
}

func (f *Frontend) OnNewSpan(metadata *facade.Metadata, span facade.SpanId, visit func(facade.FieldVisitor)) {
	local := f.allocateSpanID()
	f.bind(span, local)
	fields := captureFields(visit)
	f.enqueue(types.Message{Kind: types.MsgNewSpan, Span: local, Metadata: metadata, Fields: fields})
}

func (f *Frontend) OnRecord(span facade.SpanId, visit func(facade.FieldVisitor)) {
	fields := captureFields(visit)
	f.enqueue(types.Message{Kind: types.MsgRecord, Span: f.lookup(span), Fields: fields})
}

func (f *Frontend) OnFollowsFrom(span, follows facade.SpanId) {
	f.enqueue(types.Message{Kind: types.MsgFollowsFrom, Span: f.lookup(span), Follows: f.lookup(follows)})
}

func (f *Frontend) OnEvent(metadata *facade.Metadata, visit func(facade.FieldVisitor)) {
	fields := captureFields(visit)
	f.enqueue(types.Message{Kind: types.MsgEvent, Metadata: metadata, Fields: fields})
}

func (f *Frontend) OnEnter(span facade.SpanId) {
	f.enqueue(types.Message{Kind: types.MsgEnter, Span: f.lookup(span)})
}

func (f *Frontend) OnExit(span facade.SpanId) {
	f.enqueue(types.Message{Kind: types.MsgExit, Span: f.lookup(span)})
}

func (f *Frontend) OnClose(span facade.SpanId) {
	local := f.lookup(span)
	f.forget(span)
	f.enqueue(types.Message{Kind: types.MsgClose, Span: local})
}

// OnIdChange allocates a fresh LocalSpanId for new, remaps the
// façade-side tracking table, and enqueues the rename (spec §3, §4.5).
func (f *Frontend) OnIdChange(old, new facade.SpanId) {
	oldLocal := f.lookup(old)
	newLocal := f.allocateSpanID()
	f.forget(old)
	f.bind(new, newLocal)
	f.enqueue(types.Message{Kind: types.MsgIdChange, OldId: oldLocal, NewId: newLocal})
}

var _ facade.Subscriber = (*Frontend)(nil)
