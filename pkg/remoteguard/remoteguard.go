package remoteguard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/LavishGent/remoteguard/internal/cache"
	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/fallback"
	"github.com/LavishGent/remoteguard/internal/metrics"
	"github.com/LavishGent/remoteguard/internal/metrics/datadog"
	"github.com/LavishGent/remoteguard/internal/metrics/prometheus"
	"github.com/LavishGent/remoteguard/internal/resilience"
	"github.com/LavishGent/remoteguard/internal/types"
)

const entryCountTimeout = 5 * time.Second

// Client wires the resilient execution service, the analysis cache and the
// fallback orchestrator around one configuration.
type Client struct {
	config       *config.Config
	logger       *slog.Logger
	tracker      *metrics.Tracker
	recorder     types.MetricsRecorder
	publisher    types.Publisher
	background   *metrics.BackgroundPublisher
	service      *resilience.Service
	cache        *cache.Manager
	orchestrator *fallback.Orchestrator
	closeOnce    sync.Once
	closeErr     error
}

// New creates a client with the default configuration.
func New(opts ...ClientOption) (*Client, error) {
	return NewFromConfig(config.DefaultConfig(), opts...)
}

// NewFromFile creates a client from a JSON config file with environment overrides.
func NewFromFile(path string, opts ...ClientOption) (*Client, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// NewFromConfig creates a client from cfg. A nil cfg uses the defaults.
func NewFromConfig(cfg *config.Config, opts ...ClientOption) (*Client, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfgCopy := *cfg
	cfg = &cfgCopy

	o := &clientOptions{}
	for _, opt := range opts {
		opt(o)
	}
	o.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := o.slogLogger
	if logger == nil && o.logger != nil {
		logger = slog.New(slogAdapter{logger: o.logger})
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		config:  cfg,
		logger:  logger.With("component", "remoteguard"),
		tracker: metrics.NewTracker(),
	}

	if err := c.initMetrics(o, logger); err != nil {
		return nil, err
	}

	c.service = resilience.NewService(cfg,
		resilience.WithLogger(logger),
		resilience.WithMetrics(c.recorder),
	)

	managerOpts := []cache.ManagerOption{
		cache.WithManagerLogger(logger),
		cache.WithManagerMetrics(c.recorder),
	}
	if o.serializer != nil {
		managerOpts = append(managerOpts, cache.WithSerializer(o.serializer))
	}
	manager, err := cache.NewManager(cfg.Cache, managerOpts...)
	if err != nil {
		_ = c.publisher.Close()
		return nil, fmt.Errorf("failed to create analysis cache: %w", err)
	}
	c.cache = manager

	c.orchestrator = fallback.New(manager,
		fallback.WithLogger(logger),
		fallback.WithMetrics(c.recorder),
	)

	if c.background != nil {
		c.background.Start(context.Background())
	}

	return c, nil
}

// initMetrics builds the recorder chain: the in-process tracker, any caller
// recorder, a publishing recorder and Prometheus when enabled.
func (c *Client) initMetrics(o *clientOptions, logger *slog.Logger) error {
	recorders := []types.MetricsRecorder{c.tracker, o.metrics}
	c.publisher = metrics.NewNoOpPublisher()

	mc := c.config.Metrics
	if mc.Enabled {
		switch {
		case o.publisher != nil:
			c.publisher = o.publisher
		case mc.DataDog.Enabled:
			publisher, err := datadog.NewPublisher(&mc.DataDog, c.logger)
			if err != nil {
				return fmt.Errorf("failed to create DataDog publisher: %w", err)
			}
			c.publisher = publisher
		default:
			c.publisher = metrics.NewLoggingPublisher(c.logger)
		}
		c.background = metrics.NewBackgroundPublisher(
			c.publisher,
			mc.PublishInterval,
			metrics.TrackerHealth(c.tracker, c.circuitState, c.cachedEntryCount),
			logger,
		)
		recorders = append(recorders,
			metrics.NewPublishingRecorder(c.publisher),
			c.background.TransitionRecorder(),
		)
	}

	if mc.Prometheus.Enabled {
		reg := o.registerer
		if reg == nil {
			reg = prom.DefaultRegisterer
		}
		rec, err := prometheus.NewRecorder(reg, mc.Prometheus)
		if err != nil {
			_ = c.publisher.Close()
			return fmt.Errorf("failed to register Prometheus metrics: %w", err)
		}
		recorders = append(recorders, rec)
	}

	c.recorder = metrics.NewMulti(recorders...)
	return nil
}

func (c *Client) circuitState() string {
	return c.service.CircuitState().String()
}

func (c *Client) cachedEntryCount() int64 {
	timer := metrics.NewTimer(c.publisher, "cache.enumerate.duration", metrics.LevelTag(c.cache.Level().String()))

	ctx, cancel := context.WithTimeout(context.Background(), entryCountTimeout)
	defer cancel()
	entries, err := c.cache.Entries(ctx)
	timer.StopErr(err)
	if err != nil {
		return 0
	}
	return int64(len(entries))
}

// Service returns the resilient execution service.
func (c *Client) Service() *Service {
	return c.service
}

// Orchestrator returns the fallback orchestrator.
func (c *Client) Orchestrator() *Orchestrator {
	return c.orchestrator
}

// CircuitBreakerStats returns a snapshot of the remote call breaker.
func (c *Client) CircuitBreakerStats() CircuitBreakerStats {
	return c.service.CircuitBreakerStats()
}

// BulkheadStats returns the concurrency limiter counters.
func (c *Client) BulkheadStats() BulkheadStats {
	return c.service.BulkheadStats()
}

// ResetCircuitBreaker closes the breaker and clears its failure count.
func (c *Client) ResetCircuitBreaker() {
	c.service.ResetCircuitBreaker()
	c.logger.Info("Circuit breaker reset manually")
}

func (c *Client) CacheStatistics(ctx context.Context) (CacheStatistics, error) {
	return c.orchestrator.CacheStatistics(ctx)
}

func (c *Client) ClearCache(ctx context.Context, key string) error {
	return c.orchestrator.ClearCache(ctx, key)
}

func (c *Client) ClearAllCache(ctx context.Context) error {
	return c.orchestrator.ClearAllCache(ctx)
}

// CreateUserGuidance turns err into messages and flags for a presentation layer.
func (c *Client) CreateUserGuidance(err error, operationContext string) UserGuidance {
	return c.orchestrator.CreateUserGuidance(err, operationContext)
}

// Metrics returns a snapshot of the in-process metrics tracker.
func (c *Client) Metrics() MetricsSnapshot {
	return c.tracker.Snapshot()
}

// Close stops background publishing and releases the cache and publisher.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.background != nil {
			c.background.Stop()
		}
		var errs []error
		if err := c.cache.Close(); err != nil {
			errs = append(errs, err)
		}
		if err := c.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
		c.closeErr = errors.Join(errs...)
	})
	return c.closeErr
}

// Config returns a default configuration that can be modified before creating a client.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *config.Config {
	return config.ForTesting()
}
