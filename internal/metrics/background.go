package metrics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/LavishGent/remoteguard/internal/types"
)

const defaultPublishInterval = 30 * time.Second

// BackgroundPublisher pushes health gauges on a fixed interval and whenever
// Trigger is called. Publishing always happens on the loop goroutine.
type BackgroundPublisher struct {
	publisher types.Publisher
	logger    *slog.Logger
	health    func() *types.PublisherHealthMetrics
	trigger   chan struct{}
	cancel    context.CancelFunc
	done      chan struct{}
	stopOnce  sync.Once
	interval  time.Duration
}

func NewBackgroundPublisher(
	publisher types.Publisher,
	interval time.Duration,
	health func() *types.PublisherHealthMetrics,
	logger *slog.Logger,
) *BackgroundPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = defaultPublishInterval
	}
	return &BackgroundPublisher{
		publisher: publisher,
		logger:    logger.With("component", "metrics-background"),
		health:    health,
		trigger:   make(chan struct{}, 1),
		interval:  interval,
	}
}

// Start launches the loop. It ends when ctx is cancelled or Stop is called,
// publishing once more on the way out.
func (b *BackgroundPublisher) Start(ctx context.Context) {
	ctx, b.cancel = context.WithCancel(ctx)
	b.done = make(chan struct{})
	go b.run(ctx)
	b.logger.Info("Background metrics publisher started", "interval", b.interval)
}

func (b *BackgroundPublisher) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel == nil {
			return
		}
		b.cancel()
		<-b.done
		b.logger.Info("Background metrics publisher stopped")
	})
}

// Trigger requests a publish ahead of the next tick. Requests made while one
// is pending are coalesced.
func (b *BackgroundPublisher) Trigger() {
	select {
	case b.trigger <- struct{}{}:
	default:
	}
}

// PublishNow publishes on the caller's goroutine.
func (b *BackgroundPublisher) PublishNow() {
	b.publish()
}

// TransitionRecorder returns a recorder that triggers a publish on every
// circuit breaker transition, so dashboards see an opened breaker promptly.
func (b *BackgroundPublisher) TransitionRecorder() types.MetricsRecorder {
	return transitionRecorder{background: b}
}

func (b *BackgroundPublisher) run(ctx context.Context) {
	defer close(b.done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.publish()
			return
		case <-ticker.C:
			b.publish()
		case <-b.trigger:
			b.publish()
		}
	}
}

func (b *BackgroundPublisher) publish() {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in metrics publisher", "panic", r)
		}
	}()

	if b.health == nil {
		return
	}
	if m := b.health(); m != nil {
		b.publisher.PublishHealthMetrics(m)
	}
}

type transitionRecorder struct {
	NoOpRecorder
	background *BackgroundPublisher
}

func (r transitionRecorder) RecordCircuitBreakerStateChange(name, from, to string) {
	r.background.Trigger()
}

// TrackerHealth builds a health function from a tracker snapshot. circuitState
// and cachedEntries may be nil.
func TrackerHealth(
	tracker *Tracker,
	circuitState func() string,
	cachedEntries func() int64,
) func() *types.PublisherHealthMetrics {
	return func() *types.PublisherHealthMetrics {
		snapshot := tracker.Snapshot()
		health := &types.PublisherHealthMetrics{
			Executions:       snapshot.Executions,
			SuccessRatio:     snapshot.SuccessRatio(),
			CacheHitRatio:    snapshot.CacheHitRatio(),
			AverageLatencyMs: snapshot.AvgLatencyMs,
			CircuitState:     "closed",
		}
		if circuitState != nil {
			health.CircuitState = circuitState()
		}
		health.CircuitOpen = health.CircuitState == "open"
		if cachedEntries != nil {
			health.CachedEntries = cachedEntries()
		}
		return health
	}
}
