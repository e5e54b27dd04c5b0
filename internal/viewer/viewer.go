// Package viewer turns location, catalog and selection signals into a single
// stream of ViewModel snapshots.
//
// All state lives in one graph owned by a single loop goroutine. Timers,
// fetches and store notifications run elsewhere and report back as events;
// every asynchronous result carries the generation it was started under and
// is dropped when that generation is no longer current.
package viewer

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/atomic"
)

const eventBuffer = 64

// Viewer is one forecast-viewing session.
type Viewer struct {
	cfg     Config
	deps    Deps
	session string

	events chan interface{}
	closed chan struct{}

	effects *effectRunner
	view    *broadcaster
	stats   *counters

	started   atomic.Bool
	startOnce sync.Once
	closeOnce sync.Once
	cancel    context.CancelFunc
	unwatch   func()
	wg        sync.WaitGroup
}

type counters struct {
	epochs       atomic.Uint64
	staleResults atomic.Uint64
	snapshots    atomic.Uint64
	effectWrites atomic.Uint64
}

// New creates a viewer. It does nothing until Start is called.
func New(cfg Config, deps Deps) *Viewer {
	if cfg.SettleWindow <= 0 {
		cfg.SettleWindow = DefaultSettleWindow
	}
	v := &Viewer{
		cfg:     cfg,
		deps:    deps,
		session: uuid.NewString(),
		events:  make(chan interface{}, eventBuffer),
		closed:  make(chan struct{}),
		stats:   &counters{},
	}
	v.view = newBroadcaster(deps.Metrics)
	v.effects = newEffectRunner(deps.Store, deps.Metrics, &v.stats.effectWrites)
	return v
}

// Session returns the session id used in logs.
func (v *Viewer) Session() string {
	return v.session
}

// Start loads the catalog, reads the persisted location and begins
// producing snapshots. Calling Start more than once has no effect.
func (v *Viewer) Start(ctx context.Context) {
	v.startOnce.Do(func() {
		ctx, v.cancel = context.WithCancel(ctx)
		v.started.Store(true)

		v.unwatch = v.deps.Store.Watch(func(key string) {
			v.post(externalChanged{key: key})
		})
		initial := v.deps.Store.Current()

		g := newGraph(ctx, v, initial)

		v.wg.Add(3)
		go func() {
			defer v.wg.Done()
			v.effects.run(ctx)
		}()
		go func() {
			defer v.wg.Done()
			v.loadCatalog(ctx)
		}()
		go func() {
			defer v.wg.Done()
			v.loop(ctx, g)
		}()

		log.Printf("viewer[%s]: started with location %q", v.session, initial)
	})
}

// Close stops the session: pending timers and in-flight fetches are
// abandoned and subscriber channels are closed.
func (v *Viewer) Close() {
	v.closeOnce.Do(func() {
		close(v.closed)
		if v.cancel != nil {
			v.cancel()
		}
		if v.unwatch != nil {
			v.unwatch()
		}
		v.wg.Wait()
		v.view.close()
		log.Printf("viewer[%s]: closed", v.session)
	})
}

// SetLocation persists a new current location; "" clears it.
func (v *Viewer) SetLocation(key string) error {
	return v.dispatch(setLocation{key: key})
}

// SelectPeriod makes the period at index the selected one.
func (v *Viewer) SelectPeriod(index int) error {
	return v.dispatch(selectPeriod{index: index})
}

// dispatch posts a user action. Actions are rejected until Start has run.
func (v *Viewer) dispatch(ev interface{}) error {
	select {
	case <-v.closed:
		return ErrClosed
	default:
	}
	if !v.started.Load() {
		return ErrNotStarted
	}
	if !v.post(ev) {
		return ErrClosed
	}
	return nil
}

// Subscribe returns a channel of snapshots, starting with the latest one if
// the view is already synchronized. Slow readers only miss intermediate
// snapshots, never the latest. The returned func unsubscribes.
func (v *Viewer) Subscribe() (<-chan ViewModel, func()) {
	return v.view.subscribe()
}

// Snapshot returns the latest snapshot, or false before the first one.
func (v *Viewer) Snapshot() (ViewModel, bool) {
	return v.view.latest()
}

// Stats returns the session counters.
func (v *Viewer) Stats() Stats {
	return Stats{
		Session:      v.session,
		Epochs:       v.stats.epochs.Load(),
		StaleResults: v.stats.staleResults.Load(),
		Snapshots:    v.stats.snapshots.Load(),
		EffectWrites: v.stats.effectWrites.Load(),
	}
}

// post hands an event to the loop. It reports false once the viewer is closed.
func (v *Viewer) post(ev interface{}) bool {
	select {
	case <-v.closed:
		return false
	default:
	}
	select {
	case v.events <- ev:
		return true
	case <-v.closed:
		return false
	}
}

func (v *Viewer) loop(ctx context.Context, g *graph) {
	defer g.shutdown()

	g.flush()
	for {
		select {
		case <-ctx.Done():
			return
		case <-v.closed:
			return
		case ev := <-v.events:
			g.handle(ev)
			g.flush()
		}
	}
}
