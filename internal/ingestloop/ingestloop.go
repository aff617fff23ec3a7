// Package ingestloop implements the single consumer task that owns
// the network session and all mutable caches (spec §4.7, §5): it
// drains an unbounded multi-producer, single-consumer queue of record
// envelopes, running each through the binder and translator before
// transmitting, and drains-then-flushes on shutdown.
package ingestloop

import (
	"context"

	"github.com/auxoncorp/modality-tracing-go/internal/binder"
	"github.com/auxoncorp/modality-tracing-go/internal/interning"
	"github.com/auxoncorp/modality-tracing-go/internal/metrics"
	"github.com/auxoncorp/modality-tracing-go/internal/session"
	"github.com/auxoncorp/modality-tracing-go/internal/translate"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"

	"github.com/sirupsen/logrus"
)

// Loop is the single consumer task (spec §4.7). It is never accessed
// concurrently with itself; Run is meant to be called from exactly
// one goroutine.
type Loop struct {
	queue    <-chan *types.Envelope
	shutdown <-chan struct{}
	done     chan struct{}

	client     session.Client
	binder     *binder.Binder
	translator *translate.Translator
	interner   *interning.Interner
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
}

// Config bundles Loop's collaborators.
type Config struct {
	Queue      <-chan *types.Envelope
	Shutdown   <-chan struct{}
	Client     session.Client
	Binder     *binder.Binder
	Translator *translate.Translator
	Interner   *interning.Interner
	Metrics    *metrics.Metrics
	Log        logrus.FieldLogger
}

// New builds a Loop from cfg. A nil cfg.Metrics disables instrumentation.
func New(cfg Config) *Loop {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loop{
		queue:      cfg.Queue,
		shutdown:   cfg.Shutdown,
		done:       make(chan struct{}),
		client:     cfg.Client,
		binder:     cfg.Binder,
		translator: cfg.Translator,
		interner:   cfg.Interner,
		metrics:    cfg.Metrics,
		log:        log,
	}
}

// Done returns a channel closed once Run has drained and flushed
// following a shutdown signal.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Run is the main loop (spec §4.7): concurrently await either the
// next envelope or the shutdown signal. On shutdown, stop accepting
// new envelopes, drain whatever is already queued, flush the session,
// and return.
func (l *Loop) Run(ctx context.Context) {
	defer close(l.done)

	for {
		select {
		case env, ok := <-l.queue:
			if !ok {
				l.flush(ctx)
				return
			}
			l.process(ctx, env)

		case <-l.shutdown:
			l.drain(ctx)
			l.flush(ctx)
			return
		}
	}
}

// drain consumes whatever is already buffered in the queue without
// blocking for more, per spec §4.7's shutdown sequence.
func (l *Loop) drain(ctx context.Context) {
	for {
		select {
		case env, ok := <-l.queue:
			if !ok {
				return
			}
			l.process(ctx, env)
		default:
			return
		}
	}
}

func (l *Loop) flush(ctx context.Context) {
	if err := l.client.Flush(ctx); err != nil {
		l.log.WithError(err).Warn("ingestloop: flush on shutdown failed")
	}
}

// process runs one envelope through binder, translator, interning and
// transmission. Per spec §4.7, every per-envelope error is logged and
// dropped; the consumer never crashes on a bad record.
func (l *Loop) process(ctx context.Context, env *types.Envelope) {
	if l.metrics != nil {
		l.metrics.QueueDepth.Set(float64(len(l.queue)))
	}

	if _, err := l.binder.Bind(ctx, env.UserTimelineId, env.TimelineName); err != nil {
		l.log.WithError(err).WithField("user_timeline_id", env.UserTimelineId).Warn("ingestloop: bind failed, dropping record")
		l.countDrop(err)
		return
	}

	pairs, err := l.translator.Translate(env)
	if err != nil {
		l.log.WithError(err).Warn("ingestloop: translate failed, dropping record")
		l.countDrop(err)
		return
	}
	if len(pairs) == 0 {
		return
	}

	wirePairs := make([]session.AttrPair, 0, len(pairs))
	for _, p := range pairs {
		key, err := l.interner.Intern(ctx, types.ScopeEvent, p.Key)
		if err != nil {
			l.log.WithError(err).WithField("key", p.Key).Warn("ingestloop: key interning failed, dropping record")
			l.countDrop(err)
			return
		}
		wirePairs = append(wirePairs, session.AttrPair{Key: key, Value: p.Value})
	}

	tick := env.Tick
	if err := l.client.Event(ctx, &tick, wirePairs); err != nil {
		l.log.WithError(err).Warn("ingestloop: event transmission failed, dropping record")
		l.countDrop(err)
		return
	}

	if l.metrics != nil {
		l.metrics.RecordsSent.Inc()
	}
}

func (l *Loop) countDrop(err error) {
	if l.metrics == nil {
		return
	}
	l.metrics.CountDrop(err)
}
