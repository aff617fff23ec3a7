// Package binder implements the timeline binder state machine (spec
// §4.6): before any record is transmitted, it ensures the session is
// bound to the correct remote timeline for the envelope's
// user_timeline_id, registering metadata on first use.
//
// The phased shape here — check cache, act outside any lock, record
// the result — mirrors the teacher's pkg/circuit breaker's
// pre-check/execute/post-register split, adapted from a pass/fail
// gate to a cache-hit/miss gate.
package binder

import (
	"context"

	"github.com/auxoncorp/modality-tracing-go/internal/interning"
	"github.com/auxoncorp/modality-tracing-go/internal/metrics"
	"github.com/auxoncorp/modality-tracing-go/internal/session"
	"github.com/auxoncorp/modality-tracing-go/internal/timelinelru"
	apperrors "github.com/auxoncorp/modality-tracing-go/pkg/errors"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// Outcome records which branch of the state machine a Bind call took,
// exposed for tests and metrics (spec §4.6).
type Outcome int

const (
	ResidentBound Outcome = iota
	ResidentRebind
	Miss
)

// Binder is the single writer of the remote session's "current
// timeline" state (spec §4.6); there is no concurrency on this state
// because it is only ever driven by the ingest consumer goroutine.
type Binder struct {
	client   session.Client
	lru      *timelinelru.LRU
	interner *interning.Interner
	run      types.RunId
	metrics  *metrics.Metrics

	// GlobalMetadata is the configured options set (spec §4.6), sent
	// on every Miss bind after timeline.name and the synthetic
	// timeline.run_id entry, which registerMetadata adds itself.
	GlobalMetadata []MetadataPair
}

// MetadataPair is one timeline-metadata key/value pair, keyed by
// plain string (interned by Bind immediately before the write).
type MetadataPair struct {
	Key   string
	Value types.AttributeValue
}

// New builds a Binder. m may be nil, disabling instrumentation.
func New(client session.Client, lru *timelinelru.LRU, interner *interning.Interner, run types.RunId, m *metrics.Metrics) *Binder {
	return &Binder{client: client, lru: lru, interner: interner, run: run, metrics: m}
}

func (b *Binder) countOutcome(outcome Outcome) {
	if b.metrics == nil {
		return
	}
	switch outcome {
	case ResidentBound:
		b.metrics.TimelineBinds.WithLabelValues("resident_bound").Inc()
	case ResidentRebind:
		b.metrics.TimelineBinds.WithLabelValues("resident_rebind").Inc()
	case Miss:
		b.metrics.TimelineBinds.WithLabelValues("miss").Inc()
	}
}

// Bind ensures the session is bound to the remote timeline for
// userId, registering metadata on first use, and returns which branch
// it took.
func (b *Binder) Bind(ctx context.Context, userId uint64, timelineName string) (Outcome, error) {
	remoteId, hit, token := b.lru.Query(userId)

	if hit {
		if bound, ok := b.client.BoundTimeline(); ok && bound == remoteId {
			b.countOutcome(ResidentBound)
			return ResidentBound, nil
		}
		if err := b.client.OpenTimeline(ctx, remoteId); err != nil {
			return ResidentRebind, apperrors.UnexpectedFailure("binder", "open_timeline", "failed to rebind resident timeline", err)
		}
		b.countOutcome(ResidentRebind)
		return ResidentRebind, nil
	}

	if token.Kind() == timelinelru.TokenEvict && b.metrics != nil {
		b.metrics.LRUEvictions.Inc()
	}

	remoteId = types.DeriveRemoteTimelineId(b.run, userId)

	if err := b.registerMetadata(ctx, remoteId, timelineName); err != nil {
		return Miss, err
	}

	b.lru.Insert(userId, remoteId, token)
	b.countOutcome(Miss)
	return Miss, nil
}

// registerMetadata opens remoteId (if the session isn't already bound
// to it) and writes the metadata pairs onto it. One open per miss,
// guarded exactly like the original's
// `if self.client.bound_timeline() != timeline_id` check (spec §6:
// "write pairs onto the currently bound timeline").
func (b *Binder) registerMetadata(ctx context.Context, remoteId types.RemoteTimelineId, timelineName string) error {
	if bound, ok := b.client.BoundTimeline(); !ok || bound != remoteId {
		if err := b.client.OpenTimeline(ctx, remoteId); err != nil {
			return apperrors.UnexpectedFailure("binder", "open_timeline", "failed to open timeline for metadata registration", err)
		}
	}

	pairs := make([]session.AttrPair, 0, len(b.GlobalMetadata)+2)
	all := append([]MetadataPair{{Key: "timeline.name", Value: types.StringValue(timelineName)},
		{Key: "timeline.run_id", Value: types.StringValue(b.run.String())}}, b.GlobalMetadata...)

	for _, p := range all {
		key, err := b.interner.Intern(ctx, types.ScopeTimeline, p.Key)
		if err != nil {
			return err
		}
		pairs = append(pairs, session.AttrPair{Key: key, Value: p.Value})
	}

	if err := b.client.TimelineMetadata(ctx, pairs); err != nil {
		return apperrors.UnexpectedFailure("binder", "timeline_metadata", "failed to register timeline metadata", err)
	}
	return nil
}
