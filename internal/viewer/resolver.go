package viewer

import (
	"log"
	"time"
)

// resolverState debounces external location changes. gen identifies the
// only settle timer whose expiry may still resolve.
type resolverState struct {
	gen      uint64
	timer    *time.Timer
	current  string
	resolved bool
}

// observeExternal reacts to a change of the persisted location. A cleared
// location resolves at once; a new location waits out the settle window and
// is superseded by any later change.
func (g *graph) observeExternal(key string) {
	r := &g.resolver
	r.gen++
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}

	if key == "" {
		g.resolve("")
		return
	}

	gen := r.gen
	r.timer = time.AfterFunc(g.settleWindow, func() {
		g.post(settleElapsed{gen: gen, key: key})
	})
}

func (g *graph) onSettled(ev settleElapsed) {
	if ev.gen != g.resolver.gen {
		return
	}
	g.resolver.timer = nil
	g.resolve(ev.key)
}

// resolve opens a new epoch for key unless key is already the current one.
func (g *graph) resolve(key string) {
	r := &g.resolver
	if r.resolved && r.current == key {
		return
	}
	r.current = key
	r.resolved = true
	g.dirty = true

	g.stats.epochs.Inc()
	g.metrics.RecordEpoch()
	log.Printf("viewer[%s]: location resolved to %q", g.session, key)

	g.status.onResolved(key)
	g.startFetch(key)
}
