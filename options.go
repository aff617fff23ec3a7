package modality

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/auxoncorp/modality-tracing-go/internal/handlers"
	"github.com/auxoncorp/modality-tracing-go/internal/producer"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// MetadataEntry is one user-supplied timeline metadata pair (spec
// §6: "additional metadata (list of key/value): each key
// auto-prefixed with timeline. unless already prefixed").
type MetadataEntry struct {
	Key   string
	Value types.AttributeValue
}

// Options is the configured option set, filled zero-value-first by
// Init and then overridden by each Option in order, the same shape
// NewDispatcher fills DispatcherConfig in the teacher.
type Options struct {
	Endpoint         string
	AuthToken        []byte
	RootTimelineName string
	Metadata         []MetadataEntry
	Identifier       producer.Identifier
	LRUCapacity      int
	Handlers         *handlers.Table
	Logger           logrus.FieldLogger
	QueueSize        int
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	MetricsRegistry  prometheus.Registerer
}

// Option mutates an Options value being built up by Init.
type Option func(*Options)

// WithEndpoint overrides the remote service's host:port; the default
// is localhost on this module's implementation port (spec §6).
func WithEndpoint(endpoint string) Option {
	return func(o *Options) { o.Endpoint = endpoint }
}

// WithAuthToken sets the opaque auth token; required, absent ⇒ init
// fails with AuthRequired (spec §6, §7).
func WithAuthToken(token []byte) Option {
	return func(o *Options) { o.AuthToken = token }
}

// WithRootTimelineName seeds the process's default timeline.name
// metadata (spec §6).
func WithRootTimelineName(name string) Option {
	return func(o *Options) { o.RootTimelineName = name }
}

// WithMetadata appends additional timeline metadata pairs. Keys not
// already prefixed with "timeline." are prefixed automatically (spec
// §6).
func WithMetadata(key string, value types.AttributeValue) Option {
	return func(o *Options) {
		o.Metadata = append(o.Metadata, MetadataEntry{Key: normalizeMetadataKey(key), Value: value})
	}
}

func normalizeMetadataKey(key string) string {
	const prefix = "timeline."
	if strings.HasPrefix(key, prefix) {
		return key
	}
	return prefix + key
}

// WithTimelineIdentifier overrides the default thread-based identifier
// (spec §6).
func WithTimelineIdentifier(identifier producer.Identifier) Option {
	return func(o *Options) { o.Identifier = identifier }
}

// WithLRUCapacity overrides the timeline residency cache's capacity
// (default 64, spec §6).
func WithLRUCapacity(capacity int) Option {
	return func(o *Options) { o.LRUCapacity = capacity }
}

// WithHandlers replaces the default attribute-handler table wholesale
// (spec §4.4, §6). The fallback rule is never configurable.
func WithHandlers(table *handlers.Table) Option {
	return func(o *Options) { o.Handlers = table }
}

// WithLogger overrides the structured logger used by the consumer and
// session; defaults to logrus's standard logger.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(o *Options) { o.Logger = logger }
}

// WithQueueSize overrides the ingest queue's buffer capacity. The
// queue is conceptually unbounded (spec §4.7); a finite Go channel
// buffer is a pragmatic stand-in sized generously enough that a
// producer burst is absorbed without the queue-full warning path
// triggering under normal load.
func WithQueueSize(size int) Option {
	return func(o *Options) { o.QueueSize = size }
}

// WithHandshakeTimeout overrides the WebSocket session's connect
// timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *Options) { o.HandshakeTimeout = d }
}

// WithWriteTimeout overrides the WebSocket session's per-frame write
// timeout.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *Options) { o.WriteTimeout = d }
}

// WithMetricsRegistry enables Prometheus instrumentation (ingest queue
// depth, per-record drop counters, timeline bind/rebind/evict
// counters) by registering it against reg. Unset by default, leaving
// the binder and consumer uninstrumented.
func WithMetricsRegistry(reg prometheus.Registerer) Option {
	return func(o *Options) { o.MetricsRegistry = reg }
}

func defaultOptions() Options {
	return Options{
		Endpoint:    "localhost:8765",
		LRUCapacity: 64,
		QueueSize:   4096,
		Logger:      logrus.StandardLogger(),
	}
}
