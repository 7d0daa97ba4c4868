package datadog

import (
	"sync"
	"testing"

	"github.com/DataDog/datadog-go/v5/statsd"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/types"
)

type recordingClient struct {
	*statsd.NoOpClient

	mu     sync.Mutex
	gauges map[string]float64
	incrs  map[string][]string
	events []*statsd.Event
	closed bool
}

func newRecordingClient() *recordingClient {
	return &recordingClient{
		NoOpClient: &statsd.NoOpClient{},
		gauges:     make(map[string]float64),
		incrs:      make(map[string][]string),
	}
}

func (c *recordingClient) Gauge(name string, value float64, tags []string, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges[name] = value
	return nil
}

func (c *recordingClient) Incr(name string, tags []string, rate float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.incrs[name] = tags
	return nil
}

func (c *recordingClient) Event(e *statsd.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
	return nil
}

func (c *recordingClient) Close() error {
	c.closed = true
	return nil
}

func TestNewPublisherDisabled(t *testing.T) {
	pub, err := NewPublisher(&config.DataDogConfig{Enabled: false}, nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if _, ok := pub.(*NoOpPublisher); !ok {
		t.Errorf("NewPublisher() = %T, want *NoOpPublisher", pub)
	}

	pub, err = NewPublisher(nil, nil)
	if err != nil || pub == nil {
		t.Fatalf("NewPublisher(nil) = %v, %v", pub, err)
	}
}

func TestNewPublisherEnabled(t *testing.T) {
	// statsd uses UDP, so creating a client does not require a running agent.
	pub, err := NewPublisher(&config.DataDogConfig{
		Enabled:   true,
		AgentHost: "127.0.0.1",
		Port:      8125,
		Prefix:    "remoteguard",
		Tags:      []string{"env:test"},
	}, nil)
	if err != nil {
		t.Fatalf("NewPublisher() error = %v", err)
	}
	if _, ok := pub.(*Publisher); !ok {
		t.Errorf("NewPublisher() = %T, want *Publisher", pub)
	}
	pub.Incr("execution.count")
	if err := pub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

func TestPublisherMergesBaseTags(t *testing.T) {
	client := newRecordingClient()
	pub := newWithClient(client, []string{"env:test"}, nil)

	pub.Incr("execution.count", "operation:analyze")
	pub.Incr("retry.count")

	if got := client.incrs["execution.count"]; len(got) != 2 || got[0] != "env:test" || got[1] != "operation:analyze" {
		t.Errorf("execution.count tags = %v, want [env:test operation:analyze]", got)
	}
	if got := client.incrs["retry.count"]; len(got) != 1 || got[0] != "env:test" {
		t.Errorf("retry.count tags = %v, want [env:test]", got)
	}

	// Merging must not alias the base tag slice.
	pub.Incr("a", "x:1")
	pub.Incr("b", "y:2")
	if client.incrs["a"][1] != "x:1" {
		t.Errorf("tags of first call were overwritten: %v", client.incrs["a"])
	}
}

func TestPublisherHealthMetrics(t *testing.T) {
	client := newRecordingClient()
	pub := newWithClient(client, nil, nil)

	pub.PublishHealthMetrics(nil)
	if len(client.gauges) != 0 {
		t.Fatal("nil metrics should publish nothing")
	}

	pub.PublishHealthMetrics(&types.PublisherHealthMetrics{
		CircuitState:     "open",
		CircuitOpen:      true,
		Executions:       42,
		SuccessRatio:     1.7,
		CacheHitRatio:    -0.2,
		AverageLatencyMs: -5,
		CachedEntries:    3,
	})

	want := map[string]float64{
		"executions.total":              42,
		"executions.success_ratio":      1,
		"executions.average_latency_ms": 0,
		"cache.entries":                 3,
		"cache.hit_ratio":               0,
		"circuit_breaker.open":          1,
	}
	for name, value := range want {
		if got, ok := client.gauges[name]; !ok || got != value {
			t.Errorf("gauge %s = %v (present %v), want %v", name, got, ok, value)
		}
	}
}

func TestPublisherEventAndClose(t *testing.T) {
	client := newRecordingClient()
	pub := newWithClient(client, []string{"env:test"}, nil)

	pub.Event("Circuit breaker opened", "remote", "warning", "breaker:remote")
	if len(client.events) != 1 {
		t.Fatalf("events = %d, want 1", len(client.events))
	}
	if client.events[0].AlertType != statsd.Warning {
		t.Errorf("AlertType = %v, want warning", client.events[0].AlertType)
	}

	if err := pub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if !client.closed {
		t.Error("Close() did not close the client")
	}
}

func TestNoOpPublisher(t *testing.T) {
	pub := NewNoOpPublisher()
	pub.Gauge("g", 1)
	pub.PublishHealthMetrics(&types.PublisherHealthMetrics{})
	if err := pub.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
