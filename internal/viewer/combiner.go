package viewer

import (
	"sync"

	"github.com/i474232898/forecast-viewer/internal/metrics"
)

const subscriberBuffer = 16

// ready reports whether every signal has produced a value. The catalog,
// status, selection and effect tick start with a value; the location and
// forecast only have one once the first epoch resolved and settled.
func (g *graph) ready() bool {
	return g.resolver.resolved && g.fetcher.settled
}

// flush emits one snapshot for everything that changed while handling the
// last event.
func (g *graph) flush() {
	if !g.dirty || !g.ready() {
		return
	}
	g.dirty = false

	vm := ViewModel{
		CatalogLoaded:      g.catalog.loaded,
		Catalog:            g.catalog.locations,
		CurrentLocationKey: g.resolver.current,
		Forecast:           g.fetcher.result,
		IsLoading:          g.status.loading,
		ErrorMessage:       g.status.errMsg,
		SelectedIndex:      g.selector.index,
		SelectedPeriod:     g.selector.period,
		LastEffectTick:     g.effectTick,
	}
	g.stats.snapshots.Inc()
	g.metrics.RecordSnapshot()
	g.view.publish(vm)
}

// broadcaster holds the latest snapshot and fans it out to subscribers.
type broadcaster struct {
	metrics *metrics.Collector

	mu      sync.RWMutex
	current ViewModel
	ready   bool
	version uint64
	subs    map[int]chan ViewModel
	nextID  int
	closed  bool
}

func newBroadcaster(m *metrics.Collector) *broadcaster {
	return &broadcaster{
		metrics: m,
		subs:    make(map[int]chan ViewModel),
	}
}

func (b *broadcaster) publish(vm ViewModel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.version++
	vm.Version = b.version
	b.current = vm
	b.ready = true

	for _, ch := range b.subs {
		offer(ch, vm)
	}
}

// offer delivers vm, dropping the oldest buffered snapshot if ch is full.
func offer(ch chan ViewModel, vm ViewModel) {
	select {
	case ch <- vm:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- vm:
	default:
	}
}

func (b *broadcaster) latest() (ViewModel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current, b.ready
}

func (b *broadcaster) subscribe() (<-chan ViewModel, func()) {
	ch := make(chan ViewModel, subscriberBuffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	if b.ready {
		ch <- b.current
	}
	b.metrics.SubscriberAdded()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[id]; !ok {
				return
			}
			delete(b.subs, id)
			close(ch)
			b.metrics.SubscriberRemoved()
		})
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
		b.metrics.SubscriberRemoved()
	}
}
