package resilience

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/LavishGent/remoteguard/internal/config"
	"github.com/LavishGent/remoteguard/internal/types"
)

const (
	defaultBulkheadConcurrency = 20
	defaultBulkheadWait        = time.Second
)

// BulkheadExecutor is satisfied by Bulkhead and DisabledBulkhead.
type BulkheadExecutor interface {
	ExecuteCtx(ctx context.Context, fn func(context.Context) error) error
	Stats() BulkheadStats
}

// Bulkhead caps concurrent calls to the remote service. A caller that finds
// every slot taken joins a bounded wait queue; a full queue rejects at once
// with ErrBulkheadFull and a wait longer than the acquire timeout fails with
// ErrBulkheadTimeout. Both are reported as ClassUnavailable.
type Bulkhead struct {
	slots    chan struct{}
	maxWait  time.Duration
	capacity int
	queueCap int

	running         atomic.Int32
	waiting         atomic.Int32
	executed        atomic.Int64
	rejectedFull    atomic.Int64
	rejectedTimeout atomic.Int64
	waitNanos       atomic.Int64
}

// NewBulkhead builds a bulkhead from cfg. A non-positive MaxConcurrent or
// AcquireTimeout takes the default; a negative MaxQueue means no queue.
func NewBulkhead(cfg config.BulkheadConfig) *Bulkhead {
	b := &Bulkhead{
		capacity: cfg.MaxConcurrent,
		queueCap: max(cfg.MaxQueue, 0),
		maxWait:  cfg.AcquireTimeout,
	}
	if b.capacity <= 0 {
		b.capacity = defaultBulkheadConcurrency
	}
	if b.maxWait <= 0 {
		b.maxWait = defaultBulkheadWait
	}
	b.slots = make(chan struct{}, b.capacity)
	return b
}

// ExecuteCtx runs fn once a slot is held. fn is not invoked when no slot
// could be obtained.
func (b *Bulkhead) ExecuteCtx(ctx context.Context, fn func(context.Context) error) error {
	if err := b.enter(ctx); err != nil {
		return err
	}
	b.running.Add(1)
	defer func() {
		b.running.Add(-1)
		<-b.slots
	}()

	err := fn(ctx)
	b.executed.Add(1)
	return err
}

func (b *Bulkhead) enter(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return types.NewCancellationError(err)
	}

	select {
	case b.slots <- struct{}{}:
		return nil
	default:
	}

	if int(b.waiting.Add(1)) > b.queueCap {
		b.waiting.Add(-1)
		b.rejectedFull.Add(1)
		return types.ErrBulkheadFull
	}
	queuedAt := time.Now()
	defer func() {
		b.waiting.Add(-1)
		b.waitNanos.Add(int64(time.Since(queuedAt)))
	}()

	timer := time.NewTimer(b.maxWait)
	defer timer.Stop()

	select {
	case b.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return types.NewCancellationError(ctx.Err())
	case <-timer.C:
		b.rejectedTimeout.Add(1)
		return types.ErrBulkheadTimeout
	}
}

// Stats returns current occupancy and lifetime counters.
func (b *Bulkhead) Stats() BulkheadStats {
	return BulkheadStats{
		MaxConcurrent:   b.capacity,
		MaxQueue:        b.queueCap,
		Active:          int(b.running.Load()),
		Queued:          int(b.waiting.Load()),
		Available:       b.capacity - len(b.slots),
		TotalExecuted:   b.executed.Load(),
		RejectedFull:    b.rejectedFull.Load(),
		RejectedTimeout: b.rejectedTimeout.Load(),
		TotalQueueWait:  time.Duration(b.waitNanos.Load()),
	}
}

// BulkheadStats is a point-in-time view of a bulkhead. TotalQueueWait sums
// the time callers spent queued, whether or not they got a slot.
type BulkheadStats struct {
	TotalQueueWait  time.Duration
	TotalExecuted   int64
	RejectedFull    int64
	RejectedTimeout int64
	MaxConcurrent   int
	MaxQueue        int
	Active          int
	Queued          int
	Available       int
}

// TotalRejected counts callers turned away for either reason.
func (s BulkheadStats) TotalRejected() int64 {
	return s.RejectedFull + s.RejectedTimeout
}

// DisabledBulkhead admits every call.
type DisabledBulkhead struct{}

// NewDisabledBulkhead returns a bulkhead that never limits.
func NewDisabledBulkhead() *DisabledBulkhead {
	return &DisabledBulkhead{}
}

func (b *DisabledBulkhead) ExecuteCtx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func (b *DisabledBulkhead) Stats() BulkheadStats { return BulkheadStats{} }
