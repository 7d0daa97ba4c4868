package metrics

import (
	"sync/atomic"
	"time"

	"github.com/LavishGent/remoteguard/internal/types"
)

// Timer reports the duration of one operation as a timing metric. Only the
// first Stop or StopErr publishes.
type Timer struct {
	publisher types.Publisher
	started   time.Time
	name      string
	tags      []string
	stopped   atomic.Bool
}

func NewTimer(publisher types.Publisher, name string, tags ...string) *Timer {
	if publisher == nil {
		publisher = NewNoOpPublisher()
	}
	return &Timer{publisher: publisher, name: name, tags: tags, started: time.Now()}
}

func (t *Timer) Elapsed() time.Duration {
	return time.Since(t.started)
}

func (t *Timer) Stop() time.Duration {
	return t.report(t.tags)
}

// StopErr publishes with a status tag derived from err.
func (t *Timer) StopErr(err error) time.Duration {
	tags := append(t.tags[:len(t.tags):len(t.tags)], StatusTag(outcome(err == nil)))
	return t.report(tags)
}

func (t *Timer) report(tags []string) time.Duration {
	elapsed := t.Elapsed()
	if t.stopped.CompareAndSwap(false, true) {
		t.publisher.Timing(t.name, elapsed, tags...)
	}
	return elapsed
}
