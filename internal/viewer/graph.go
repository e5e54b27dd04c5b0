package viewer

import (
	"context"
	"log"
	"time"

	"github.com/i474232898/forecast-viewer/internal/metrics"
)

// graph is the state of every derived signal. Only the loop goroutine
// touches it.
type graph struct {
	ctx          context.Context
	session      string
	settleWindow time.Duration
	post         func(interface{}) bool
	forecaster   Forecaster
	effects      *effectRunner
	view         *broadcaster
	metrics      *metrics.Collector
	stats        *counters

	catalog    catalogState
	resolver   resolverState
	fetcher    fetcherState
	selector   selectorState
	status     statusState
	effectTick uint64

	// dirty is set whenever a constituent signal emits and cleared by flush.
	dirty bool
}

func newGraph(ctx context.Context, v *Viewer, initial string) *graph {
	g := &graph{
		ctx:          ctx,
		session:      v.session,
		settleWindow: v.cfg.SettleWindow,
		post:         v.post,
		forecaster:   v.deps.Forecaster,
		effects:      v.effects,
		view:         v.view,
		metrics:      v.deps.Metrics,
		stats:        v.stats,
		selector:     selectorState{index: -1},
	}
	// The value present at load time is applied without a settle delay.
	g.resolve(initial)
	return g
}

func (g *graph) handle(ev interface{}) {
	switch ev := ev.(type) {
	case catalogLoaded:
		g.catalog.load(ev.locations)
		g.dirty = true
	case externalChanged:
		g.observeExternal(ev.key)
	case settleElapsed:
		g.onSettled(ev)
	case forecastDone:
		g.onForecastDone(ev)
	case setLocation:
		g.effectTick++
		g.dirty = true
		g.effects.enqueue(ev.key)
	case selectPeriod:
		if g.selector.choose(g.fetcher.result, ev.index) {
			g.dirty = true
		}
	default:
		log.Printf("viewer[%s]: unknown event %T", g.session, ev)
	}
}

// shutdown abandons the pending settle timer and the in-flight fetch.
func (g *graph) shutdown() {
	if g.resolver.timer != nil {
		g.resolver.timer.Stop()
		g.resolver.timer = nil
	}
	if g.fetcher.cancel != nil {
		g.fetcher.cancel()
		g.fetcher.cancel = nil
	}
}
