// Package modality is the public surface of the ingest pipeline: it
// attaches a producer front end to an in-process tracing façade and
// drives a single background consumer that streams translated
// records to a remote ingest service over a persistent session (spec
// §1, §4.9).
package modality

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/auxoncorp/modality-tracing-go/internal/binder"
	"github.com/auxoncorp/modality-tracing-go/internal/handlers"
	"github.com/auxoncorp/modality-tracing-go/internal/ingestloop"
	"github.com/auxoncorp/modality-tracing-go/internal/interning"
	"github.com/auxoncorp/modality-tracing-go/internal/metrics"
	"github.com/auxoncorp/modality-tracing-go/internal/producer"
	"github.com/auxoncorp/modality-tracing-go/internal/session"
	"github.com/auxoncorp/modality-tracing-go/internal/spanstate"
	"github.com/auxoncorp/modality-tracing-go/internal/timelinelru"
	"github.com/auxoncorp/modality-tracing-go/internal/translate"
	apperrors "github.com/auxoncorp/modality-tracing-go/pkg/errors"
	"github.com/auxoncorp/modality-tracing-go/pkg/facade"
	"github.com/auxoncorp/modality-tracing-go/pkg/types"
)

// bootstrapUserId is the synthetic user-id used to derive and bind
// the root timeline at init time, before any producer context has
// reported its own identity (spec §4.9: "bind an initial timeline so
// later open-timeline calls are legal").
const bootstrapUserId uint64 = 0

var initMu sync.Mutex
var initialized bool

// newClient is overridden in tests so Init's wiring can be exercised
// against a session.FakeClient instead of dialing a real WebSocket.
var newClient = func(cfg session.WsClientConfig, log logrus.FieldLogger) session.Client {
	return session.NewWsClient(cfg, log)
}

// Handle is returned by Init; it is the caller's handle on a running
// ingest pipeline (spec §4.9). It also implements facade.Subscriber,
// so it can be registered directly with the façade.
type Handle struct {
	facade.Subscriber

	runId    types.RunId
	client   session.Client
	loop     *ingestloop.Loop
	queue    chan *types.Envelope
	shutdown chan struct{}

	shutdownOnce sync.Once
	log          logrus.FieldLogger
}

// Init establishes a session, spawns the single ingest consumer, and
// returns a Handle wrapping the producer front end (spec §4.9).
// Calling Init while a previous Handle from this process is still
// live returns InitializedTwice; the caller must Shutdown it first.
func Init(ctx context.Context, opts ...Option) (*Handle, error) {
	initMu.Lock()
	defer initMu.Unlock()

	if initialized {
		return nil, apperrors.InitializedTwice("modality", "init")
	}

	options := defaultOptions()
	for _, opt := range opts {
		opt(&options)
	}

	if len(options.AuthToken) == 0 {
		return nil, apperrors.AuthRequired("modality", "init")
	}

	log := options.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}

	runId, err := types.NewRunId()
	if err != nil {
		return nil, apperrors.UnexpectedFailure("modality", "init", "failed to generate run id", err)
	}

	client := newClient(session.WsClientConfig{
		HandshakeTimeout: options.HandshakeTimeout,
		WriteTimeout:     options.WriteTimeout,
	}, log)

	if err := client.Connect(ctx, options.Endpoint); err != nil {
		return nil, apperrors.UnexpectedFailure("modality", "init", "failed to connect to remote ingest service", err)
	}
	if err := client.Authenticate(ctx, options.AuthToken); err != nil {
		return nil, apperrors.AuthFailed("modality", "init", err)
	}

	// Instrumentation is opt-in: WithMetricsRegistry supplies the
	// prometheus.Registerer to register against; absent that, Init
	// runs uninstrumented.
	var m *metrics.Metrics
	if options.MetricsRegistry != nil {
		m = metrics.New(options.MetricsRegistry)
	}

	names := spanstate.New()
	in := interning.New(client)
	lru := timelinelru.New(options.LRUCapacity)
	b := binder.New(client, lru, in, runId, m)
	b.GlobalMetadata = globalMetadataPairs(options)

	if err := bootstrapRootTimeline(ctx, client, b, runId, options.RootTimelineName); err != nil {
		return nil, err
	}

	tr := translate.New(handlerTable(options), names, runId)

	queue := make(chan *types.Envelope, options.QueueSize)
	shutdown := make(chan struct{})

	loop := ingestloop.New(ingestloop.Config{
		Queue:      queue,
		Shutdown:   shutdown,
		Client:     client,
		Binder:     b,
		Translator: tr,
		Interner:   in,
		Metrics:    m,
		Log:        log,
	})

	go loop.Run(ctx)

	identifier := options.Identifier
	if identifier == nil {
		identifier = producer.DefaultIdentifier
	}
	frontend := producer.NewFrontend(queue, identifier)

	initialized = true

	return &Handle{
		Subscriber: frontend,
		runId:      runId,
		client:     client,
		loop:       loop,
		queue:      queue,
		shutdown:   shutdown,
		log:        log,
	}, nil
}

// RunId returns the process-lifetime run id this Handle was
// initialized with.
func (h *Handle) RunId() types.RunId {
	return h.runId
}

// Shutdown sends the one-shot shutdown signal, waits for the consumer
// to drain and flush, and releases the session (spec §4.9). Shutdown
// is idempotent; a second call only closes the session again. The wait
// for the consumer does not observe ctx, and the result is always that
// of closing the session.
func (h *Handle) Shutdown(ctx context.Context) error {
	h.shutdownOnce.Do(func() {
		close(h.shutdown)
		<-h.loop.Done()

		initMu.Lock()
		initialized = false
		initMu.Unlock()
	})

	return h.client.Close()
}

func handlerTable(options Options) *handlers.Table {
	if options.Handlers != nil {
		return options.Handlers
	}
	return handlers.Default()
}

func globalMetadataPairs(options Options) []binder.MetadataPair {
	pairs := make([]binder.MetadataPair, 0, len(options.Metadata))
	for _, entry := range options.Metadata {
		pairs = append(pairs, binder.MetadataPair{Key: entry.Key, Value: entry.Value})
	}
	return pairs
}

// bootstrapRootTimeline opens and registers metadata for the
// synthetic root timeline (bootstrapUserId) so later open-timeline
// calls made by the binder for real producer contexts land on an
// already-legal session (spec §4.9).
func bootstrapRootTimeline(ctx context.Context, client session.Client, b *binder.Binder, runId types.RunId, rootName string) error {
	if rootName == "" {
		rootName = "root"
	}
	if _, err := b.Bind(ctx, bootstrapUserId, rootName); err != nil {
		return apperrors.UnexpectedFailure("modality", "init", "failed to bind root timeline", err)
	}
	return nil
}
