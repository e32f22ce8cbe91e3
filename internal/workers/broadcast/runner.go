package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"vanguard/internal/metrics"
	"vanguard/internal/ports"
)

// Queue buffers events between the audit pipeline and the notification workers.
type Queue struct {
	events chan ports.Event
	log    *slog.Logger
}

var _ ports.Broadcaster = (*Queue)(nil)

func NewQueue(size int, log *slog.Logger) *Queue {
	if size < 1 {
		size = 1
	}
	return &Queue{events: make(chan ports.Event, size), log: log}
}

// Publish never blocks; when the queue is full the event is dropped.
func (q *Queue) Publish(ev ports.Event) {
	select {
	case q.events <- ev:
	default:
		metrics.NotificationFailures.Inc()
		q.log.Warn("broadcast queue full, dropping event", "type", ev.Type, "target", ev.Target)
	}
}

// Run starts concurrency workers delivering queued events, one attempt each,
// and blocks until ctx is done and every worker has finished its current
// delivery.
func Run(ctx context.Context, q *Queue, notifier ports.Notifier, concurrency int, timeout time.Duration) {
	if concurrency < 1 {
		return
	}
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case ev := <-q.events:
					deliver(ctx, q.log, notifier, ev, timeout, idx)
				}
			}
		}(i)
	}
	wg.Wait()
}

// deliver is bounded by timeout only, so a shutdown does not cut off the
// attempt in hand.
func deliver(ctx context.Context, log *slog.Logger, notifier ports.Notifier, ev ports.Event, timeout time.Duration, worker int) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := notifier.Notify(ctx, ev); err != nil {
		metrics.NotificationFailures.Inc()
		log.Warn("broadcast failed", "worker", worker, "type", ev.Type, "target", ev.Target, "err", err)
	}
}
