package session

import (
	"context"
	"sync"

	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// FakeClient is an in-memory Client used by tests (and by anyone
// embedding this module against a test harness instead of a live
// remote service). It records every call it receives so tests can
// assert on ordering, content, and counts (spec §8's testable
// properties).
type FakeClient struct {
	mu sync.Mutex

	Connected     bool
	Endpoint      string
	Authenticated bool
	AuthToken     []byte

	boundId types.RemoteTimelineId
	bound   bool

	OpenTimelineCalls []types.RemoteTimelineId
	MetadataWrites    []AttrPair
	Events            []FakeEvent
	FlushCount        int
	Closed            bool

	nextHandle map[types.AttrScope]uint64
	keys       map[types.AttrScope]map[string]types.AttributeKey

	// FailNextAttrKey, if set, makes the next AttrKey call fail once
	// (and then resets), for exercising the per-record
	// unexpected-failure path (spec §7).
	FailNextAttrKey error
	FailNextEvent   error
}

// FakeEvent is one recorded call to Event.
type FakeEvent struct {
	Timeline types.RemoteTimelineId
	Tick     types.Tick
	Pairs    []AttrPair
}

// NewFakeClient builds an empty FakeClient.
func NewFakeClient() *FakeClient {
	return &FakeClient{
		nextHandle: make(map[types.AttrScope]uint64),
		keys:       make(map[types.AttrScope]map[string]types.AttributeKey),
	}
}

func (f *FakeClient) Connect(ctx context.Context, endpoint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Connected = true
	f.Endpoint = endpoint
	return nil
}

func (f *FakeClient) Authenticate(ctx context.Context, token []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Authenticated = true
	f.AuthToken = token
	return nil
}

func (f *FakeClient) OpenTimeline(ctx context.Context, id types.RemoteTimelineId) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.boundId = id
	f.bound = true
	f.OpenTimelineCalls = append(f.OpenTimelineCalls, id)
	return nil
}

func (f *FakeClient) BoundTimeline() (types.RemoteTimelineId, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.boundId, f.bound
}

func (f *FakeClient) AttrKey(ctx context.Context, scope types.AttrScope, key string) (types.AttributeKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNextAttrKey != nil {
		err := f.FailNextAttrKey
		f.FailNextAttrKey = nil
		return types.AttributeKey{}, err
	}

	if f.keys[scope] == nil {
		f.keys[scope] = make(map[string]types.AttributeKey)
	}
	if existing, ok := f.keys[scope][key]; ok {
		return existing, nil
	}
	f.nextHandle[scope]++
	k := types.AttributeKey{Scope: scope, Handle: f.nextHandle[scope]}
	f.keys[scope][key] = k
	return k, nil
}

func (f *FakeClient) TimelineMetadata(ctx context.Context, pairs []AttrPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MetadataWrites = append(f.MetadataWrites, pairs...)
	return nil
}

func (f *FakeClient) Event(ctx context.Context, tick *BigTick, pairs []AttrPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.FailNextEvent != nil {
		err := f.FailNextEvent
		f.FailNextEvent = nil
		return err
	}

	ev := FakeEvent{Timeline: f.boundId, Pairs: append([]AttrPair(nil), pairs...)}
	if tick != nil {
		ev.Tick = *tick
	}
	f.Events = append(f.Events, ev)
	return nil
}

func (f *FakeClient) Flush(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.FlushCount++
	return nil
}

func (f *FakeClient) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Closed = true
	return nil
}

// EventCount returns the number of events recorded so far, safe for
// concurrent use with the consumer goroutine still running.
func (f *FakeClient) EventCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Events)
}

var _ Client = (*FakeClient)(nil)
