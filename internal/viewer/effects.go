package viewer

import (
	"context"
	"sync"

	"go.uber.org/atomic"

	"github.com/i474232898/forecast-viewer/internal/metrics"
)

// effectRunner writes location changes to the store one at a time, in the
// order they were dispatched. The queue is unbounded so the loop never
// waits on the store.
type effectRunner struct {
	store   LocationStore
	metrics *metrics.Collector
	writes  *atomic.Uint64

	mu    sync.Mutex
	queue []string
	wake  chan struct{}
}

func newEffectRunner(store LocationStore, m *metrics.Collector, writes *atomic.Uint64) *effectRunner {
	return &effectRunner{
		store:   store,
		metrics: m,
		writes:  writes,
		wake:    make(chan struct{}, 1),
	}
}

func (e *effectRunner) enqueue(key string) {
	e.mu.Lock()
	e.queue = append(e.queue, key)
	e.mu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}
}

func (e *effectRunner) next() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.queue) == 0 {
		return "", false
	}
	key := e.queue[0]
	e.queue = e.queue[1:]
	return key, true
}

func (e *effectRunner) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		}
		for {
			key, ok := e.next()
			if !ok {
				break
			}
			e.store.Write(key)
			e.writes.Inc()
			e.metrics.RecordEffectWrite("ok")
		}
	}
}
