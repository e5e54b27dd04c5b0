package viewer

import (
	"context"
	"log"

	"github.com/i474232898/forecast-viewer/internal/weather"
)

// fetcherState tracks the forecast of the current epoch. gen is bumped for
// every epoch; a completion is applied only if it carries the current gen.
type fetcherState struct {
	gen     uint64
	cancel  context.CancelFunc
	result  *ForecastResult
	settled bool
}

// startFetch supersedes any in-flight fetch and starts the one for key.
// The superseded request is also cancelled, but its completion would be
// dropped either way.
func (g *graph) startFetch(key string) {
	f := &g.fetcher
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}

	if key == "" {
		g.applyForecast(nil)
		return
	}

	ctx, cancel := context.WithCancel(g.ctx)
	f.cancel = cancel
	gen := f.gen
	forecaster := g.forecaster
	post := g.post
	go func() {
		periods, err := forecaster.FetchForecast(ctx, key)
		post(forecastDone{gen: gen, key: key, periods: periods, err: err})
	}()
}

func (g *graph) onForecastDone(ev forecastDone) {
	f := &g.fetcher
	if ev.gen != f.gen {
		g.stats.staleResults.Inc()
		g.metrics.RecordStaleResult()
		log.Printf("viewer[%s]: discarding stale forecast for %q", g.session, ev.key)
		return
	}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}

	if ev.err != nil {
		log.Printf("viewer[%s]: forecast for %q failed: %v", g.session, ev.key, ev.err)
		g.metrics.RecordForecastOutcome("error")
		g.applyForecast(&ForecastResult{Error: NetworkErrorMessage})
		return
	}

	periods := ev.periods
	if periods == nil {
		periods = []weather.ForecastPeriod{}
	}
	if len(periods) == 0 {
		g.metrics.RecordForecastOutcome("empty")
	} else {
		g.metrics.RecordForecastOutcome("success")
	}
	g.applyForecast(&ForecastResult{Periods: periods})
}

// applyForecast replaces the forecast and re-derives selection and status.
func (g *graph) applyForecast(r *ForecastResult) {
	g.fetcher.result = r
	g.fetcher.settled = true
	g.dirty = true

	g.selector.reset(r)
	if r != nil {
		g.status.onOutcome(r)
	}
}
