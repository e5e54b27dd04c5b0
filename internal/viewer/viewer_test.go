package viewer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/i474232898/forecast-viewer/internal/metrics"
	"github.com/i474232898/forecast-viewer/internal/store"
	"github.com/i474232898/forecast-viewer/internal/weather"
)

const waitTimeout = 2 * time.Second

type fakeCatalog struct {
	entries []weather.CatalogEntry
	err     error
}

func (f *fakeCatalog) FetchCatalog(ctx context.Context) ([]weather.CatalogEntry, error) {
	return f.entries, f.err
}

// behavior scripts the forecaster's answer for one key. A non-nil gate holds
// the answer until it is closed; the answer is returned even if the request
// was cancelled in the meantime, like a response that was already on the wire.
type behavior struct {
	periods []weather.ForecastPeriod
	err     error
	gate    chan struct{}
}

type fakeForecaster struct {
	mu        sync.Mutex
	calls     []string
	behaviors map[string]behavior
	started   chan string
}

func newFakeForecaster(behaviors map[string]behavior) *fakeForecaster {
	return &fakeForecaster{
		behaviors: behaviors,
		started:   make(chan string, 64),
	}
}

func (f *fakeForecaster) FetchForecast(ctx context.Context, key string) ([]weather.ForecastPeriod, error) {
	f.mu.Lock()
	f.calls = append(f.calls, key)
	b := f.behaviors[key]
	f.mu.Unlock()

	f.started <- key
	if b.gate != nil {
		<-b.gate
	}
	return b.periods, b.err
}

func (f *fakeForecaster) callList() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeForecaster) waitStarted(t *testing.T, key string) {
	t.Helper()
	timeout := time.After(waitTimeout)
	for {
		select {
		case got := <-f.started:
			if got == key {
				return
			}
		case <-timeout:
			t.Fatalf("forecast for %q was never requested", key)
		}
	}
}

func periodsNamed(names ...string) []weather.ForecastPeriod {
	out := make([]weather.ForecastPeriod, 0, len(names))
	for i, n := range names {
		temp := 60 + i
		out = append(out, weather.ForecastPeriod{
			Number:      i + 1,
			Name:        n,
			ShortName:   weather.ShortName(n),
			IsDaytime:   true,
			Temperature: &temp,
		})
	}
	return out
}

func newTestViewer(t *testing.T, initial string, settle time.Duration, catalog weather.CatalogSource, forecaster Forecaster) (*Viewer, *store.URLStore) {
	t.Helper()
	query := ""
	if initial != "" {
		query = store.ParamLatLng + "=" + initial
	}
	st, err := store.NewURLStore(query, 0, 0)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if catalog == nil {
		catalog = &fakeCatalog{}
	}
	v := New(Config{SettleWindow: settle}, Deps{
		Catalog:    catalog,
		Forecaster: forecaster,
		Store:      st,
		Metrics:    metrics.NewCollector("test", prometheus.NewRegistry()),
	})
	v.Start(context.Background())
	t.Cleanup(v.Close)
	return v, st
}

// waitView polls the latest snapshot until pred holds.
func waitView(t *testing.T, v *Viewer, pred func(ViewModel) bool) ViewModel {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		vm, ok := v.Snapshot()
		if ok && pred(vm) {
			return vm
		}
		if time.Now().After(deadline) {
			t.Fatalf("view never reached expected state; last snapshot (ready=%v): %+v", ok, vm)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func waitStats(t *testing.T, v *Viewer, pred func(Stats) bool) Stats {
	t.Helper()
	deadline := time.Now().Add(waitTimeout)
	for {
		st := v.Stats()
		if pred(st) {
			return st
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats never reached expected state: %+v", st)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func hasForecast(vm ViewModel) bool {
	return vm.Forecast != nil && !vm.IsLoading
}

type rawSource struct {
	raw []weather.RawPeriod
}

func (r rawSource) FetchPoints(ctx context.Context, key string) (weather.Points, error) {
	return weather.Points{Forecast: "https://api.weather.gov/gridpoints/STO/41,68/forecast"}, nil
}

func (r rawSource) FetchForecast(ctx context.Context, p weather.Points) ([]weather.RawPeriod, error) {
	return r.raw, nil
}

func TestSelectLocationEndToEnd(t *testing.T) {
	start := time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC)
	raw := make([]weather.RawPeriod, 0, 4)
	for i, name := range []string{"Monday", "Monday Night", "Tuesday", "Tuesday Night"} {
		raw = append(raw, weather.RawPeriod{
			Number:      i + 1,
			Name:        name,
			StartTime:   start.Add(time.Duration(i) * 12 * time.Hour),
			IsDaytime:   i%2 == 0,
			Temperature: 80 - 10*i,
		})
	}
	catalog := &fakeCatalog{entries: []weather.CatalogEntry{{State: "CA", City: "Sacramento", Lon: -121.5, Lat: 38.58}}}
	svc := weather.NewService(rawSource{raw: raw}, rawSource{raw: raw}, nil)

	v, st := newTestViewer(t, "", 20*time.Millisecond, catalog, svc)

	vm := waitView(t, v, func(vm ViewModel) bool { return vm.CatalogLoaded })
	if len(vm.Catalog) != 1 || vm.Catalog[0].CoordinateKey != "-121.5,38.58" || vm.Catalog[0].DisplayName != "CA - Sacramento" {
		t.Fatalf("unexpected catalog %+v", vm.Catalog)
	}
	if vm.CurrentLocationKey != "" || vm.Forecast != nil || vm.IsLoading {
		t.Fatalf("expected empty initial view, got %+v", vm)
	}

	if err := v.SetLocation(vm.Catalog[0].CoordinateKey); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}

	vm = waitView(t, v, func(vm ViewModel) bool {
		return vm.CurrentLocationKey == "-121.5,38.58" && hasForecast(vm)
	})
	if got := len(vm.Forecast.Periods); got != 2 {
		t.Fatalf("expected 2 merged periods, got %d", got)
	}
	if vm.SelectedIndex != 0 || vm.SelectedPeriod == nil {
		t.Fatalf("expected first period selected, got index %d", vm.SelectedIndex)
	}
	if diff := cmp.Diff(vm.Forecast.Periods[0], *vm.SelectedPeriod); diff != "" {
		t.Fatalf("selected period mismatch (-forecast[0] +selected):\n%s", diff)
	}
	if p := vm.Forecast.Periods[1]; p.ShortName != "Tue" || p.TemperatureMin == nil || *p.TemperatureMin != 50 {
		t.Fatalf("unexpected second period %+v", p)
	}
	if sp := vm.SelectedPeriod; sp.DetailTemperature == nil || *sp.DetailTemperature != 80 || sp.DetailPrecipitation != "- -" {
		t.Fatalf("unexpected detail projection %v %q", sp.DetailTemperature, sp.DetailPrecipitation)
	}
	if vm.LastEffectTick != 1 || vm.ErrorMessage != "" {
		t.Fatalf("unexpected tick %d / error %q", vm.LastEffectTick, vm.ErrorMessage)
	}
	if st.Current() != "-121.5,38.58" {
		t.Fatalf("store not updated, got %q", st.Current())
	}
}

func TestClearLocationWhileFetching(t *testing.T) {
	gate := make(chan struct{})
	fc := newFakeForecaster(map[string]behavior{
		"-121.5,38.58": {periods: periodsNamed("Today", "Tonight"), gate: gate},
	})
	v, _ := newTestViewer(t, "", 10*time.Millisecond, nil, fc)

	if err := v.SetLocation("-121.5,38.58"); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	fc.waitStarted(t, "-121.5,38.58")
	waitView(t, v, func(vm ViewModel) bool { return vm.CurrentLocationKey == "-121.5,38.58" && vm.IsLoading })

	if err := v.SetLocation(""); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	vm := waitView(t, v, func(vm ViewModel) bool { return vm.CurrentLocationKey == "" })
	if vm.IsLoading || vm.Forecast != nil || vm.SelectedPeriod != nil {
		t.Fatalf("expected cleared view, got %+v", vm)
	}

	close(gate)
	waitStats(t, v, func(s Stats) bool { return s.StaleResults == 1 })

	vm, _ = v.Snapshot()
	if vm.Forecast != nil || vm.IsLoading || vm.ErrorMessage != "" {
		t.Fatalf("stale result leaked into view: %+v", vm)
	}
}

func TestNewEpochDiscardsPreviousOutcome(t *testing.T) {
	gate := make(chan struct{})
	fc := newFakeForecaster(map[string]behavior{
		"1,1": {err: errors.New("upstream down"), gate: gate},
		"2,2": {periods: periodsNamed("Today")},
	})
	v, _ := newTestViewer(t, "", 10*time.Millisecond, nil, fc)

	if err := v.SetLocation("1,1"); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	fc.waitStarted(t, "1,1")

	if err := v.SetLocation("2,2"); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	vm := waitView(t, v, func(vm ViewModel) bool { return vm.CurrentLocationKey == "2,2" && hasForecast(vm) })
	if vm.Forecast.Periods[0].Name != "Today" {
		t.Fatalf("unexpected forecast %+v", vm.Forecast)
	}

	close(gate)
	waitStats(t, v, func(s Stats) bool { return s.StaleResults == 1 })

	vm, _ = v.Snapshot()
	if vm.ErrorMessage != "" || vm.Forecast.Failed() || vm.CurrentLocationKey != "2,2" {
		t.Fatalf("superseded failure leaked into view: %+v", vm)
	}
}

func TestExternalChangesSettleToLatest(t *testing.T) {
	fc := newFakeForecaster(map[string]behavior{
		"3,3": {periods: periodsNamed("Today")},
	})
	v, st := newTestViewer(t, "", 50*time.Millisecond, nil, fc)
	waitView(t, v, func(ViewModel) bool { return true })

	for _, key := range []string{"1,1", "2,2", "3,3"} {
		if err := st.Navigate("latLng=" + key); err != nil {
			t.Fatalf("Navigate: %v", err)
		}
	}

	vm := waitView(t, v, func(vm ViewModel) bool { return vm.CurrentLocationKey == "3,3" && hasForecast(vm) })
	if diff := cmp.Diff([]string{"3,3"}, fc.callList()); diff != "" {
		t.Fatalf("fetches mismatch (-want +got):\n%s", diff)
	}
	if vm.LastEffectTick != 0 {
		t.Fatalf("navigation must not count as an effect, got tick %d", vm.LastEffectTick)
	}
	if s := v.Stats(); s.Epochs != 2 {
		t.Fatalf("expected 2 epochs (initial and settled), got %d", s.Epochs)
	}
}

func TestRepeatedKeyDoesNotRefetch(t *testing.T) {
	fc := newFakeForecaster(map[string]behavior{
		"1,1": {periods: periodsNamed("Today")},
	})
	v, st := newTestViewer(t, "1,1", 10*time.Millisecond, nil, fc)
	waitView(t, v, hasForecast)

	// Changing an unrelated parameter keeps the location.
	if err := st.Navigate("latLng=1,1&units=si"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	// Leave and come back within one settle window.
	if err := st.Navigate("latLng=2,2"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	if err := st.Navigate("latLng=1,1"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if got := len(fc.callList()); got != 1 {
		t.Fatalf("expected a single fetch, got %d", got)
	}
	if s := v.Stats(); s.Epochs != 1 {
		t.Fatalf("expected 1 epoch, got %d", s.Epochs)
	}
}

func TestInitialLocationSkipsSettleWindow(t *testing.T) {
	fc := newFakeForecaster(map[string]behavior{
		"1,1": {periods: periodsNamed("Today")},
	})
	v, _ := newTestViewer(t, "1,1", time.Hour, nil, fc)

	vm := waitView(t, v, hasForecast)
	if vm.CurrentLocationKey != "1,1" {
		t.Fatalf("unexpected key %q", vm.CurrentLocationKey)
	}
}

func TestSynchronizationBarrier(t *testing.T) {
	gate := make(chan struct{})
	fc := newFakeForecaster(map[string]behavior{
		"1,1": {periods: periodsNamed("Today"), gate: gate},
	})
	catalog := &fakeCatalog{entries: []weather.CatalogEntry{{City: "Atlanta", State: "Georgia", Lon: -84.39, Lat: 33.76}}}
	v, _ := newTestViewer(t, "1,1", 10*time.Millisecond, catalog, fc)

	updates, unsubscribe := v.Subscribe()
	defer unsubscribe()

	fc.waitStarted(t, "1,1")
	time.Sleep(20 * time.Millisecond)
	if _, ok := v.Snapshot(); ok {
		t.Fatal("snapshot emitted before the first forecast settled")
	}

	close(gate)
	select {
	case vm := <-updates:
		if vm.Forecast == nil || vm.IsLoading || vm.CurrentLocationKey != "1,1" {
			t.Fatalf("first snapshot not synchronized: %+v", vm)
		}
		if vm.Version != 1 {
			t.Fatalf("expected version 1, got %d", vm.Version)
		}
	case <-time.After(waitTimeout):
		t.Fatal("no snapshot after forecast settled")
	}
}

func TestSelectPeriod(t *testing.T) {
	fc := newFakeForecaster(map[string]behavior{
		"1,1": {periods: periodsNamed("Today", "Tonight", "Tuesday")},
		"2,2": {periods: periodsNamed("Wednesday", "Thursday")},
	})
	v, st := newTestViewer(t, "", 10*time.Millisecond, nil, fc)
	waitView(t, v, func(ViewModel) bool { return true })

	// Nothing to select without a forecast.
	if err := v.SelectPeriod(0); err != nil {
		t.Fatalf("SelectPeriod: %v", err)
	}

	if err := v.SetLocation("1,1"); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	vm := waitView(t, v, func(vm ViewModel) bool { return vm.CurrentLocationKey == "1,1" && hasForecast(vm) })
	if vm.SelectedIndex != 0 {
		t.Fatalf("expected default selection 0, got %d", vm.SelectedIndex)
	}

	if err := v.SelectPeriod(2); err != nil {
		t.Fatalf("SelectPeriod: %v", err)
	}
	vm = waitView(t, v, func(vm ViewModel) bool { return vm.SelectedIndex == 2 })
	if vm.SelectedPeriod == nil || vm.SelectedPeriod.Name != "Tuesday" {
		t.Fatalf("unexpected selected period %+v", vm.SelectedPeriod)
	}

	// Out-of-range selections change nothing and emit nothing.
	snapshots := v.Stats().Snapshots
	if err := v.SelectPeriod(7); err != nil {
		t.Fatalf("SelectPeriod: %v", err)
	}
	if err := v.SelectPeriod(-1); err != nil {
		t.Fatalf("SelectPeriod: %v", err)
	}
	if err := v.SelectPeriod(1); err != nil {
		t.Fatalf("SelectPeriod: %v", err)
	}
	waitView(t, v, func(vm ViewModel) bool { return vm.SelectedIndex == 1 })
	if got := v.Stats().Snapshots; got != snapshots+1 {
		t.Fatalf("expected exactly one new snapshot, got %d", got-snapshots)
	}

	// A new forecast resets the selection.
	if err := st.Navigate("latLng=2,2"); err != nil {
		t.Fatalf("Navigate: %v", err)
	}
	vm = waitView(t, v, func(vm ViewModel) bool { return vm.CurrentLocationKey == "2,2" && hasForecast(vm) })
	if vm.SelectedIndex != 0 || vm.SelectedPeriod == nil || vm.SelectedPeriod.Name != "Wednesday" {
		t.Fatalf("expected selection reset to first period, got %d %+v", vm.SelectedIndex, vm.SelectedPeriod)
	}
}

func TestForecastFailure(t *testing.T) {
	gate := make(chan struct{})
	fc := newFakeForecaster(map[string]behavior{
		"1,1": {err: errors.New("points lookup failed")},
		"2,2": {periods: periodsNamed("Today"), gate: gate},
	})
	v, _ := newTestViewer(t, "", 10*time.Millisecond, nil, fc)

	if err := v.SetLocation("1,1"); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	vm := waitView(t, v, func(vm ViewModel) bool { return vm.CurrentLocationKey == "1,1" && hasForecast(vm) })
	if !vm.Forecast.Failed() || vm.ErrorMessage != NetworkErrorMessage {
		t.Fatalf("expected network error, got %+v", vm)
	}
	if vm.SelectedPeriod != nil || vm.SelectedIndex != -1 {
		t.Fatalf("expected no selection on error, got %d", vm.SelectedIndex)
	}

	// The next attempt clears the error as soon as it starts.
	if err := v.SetLocation("2,2"); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	vm = waitView(t, v, func(vm ViewModel) bool { return vm.CurrentLocationKey == "2,2" })
	if !vm.IsLoading || vm.ErrorMessage != "" {
		t.Fatalf("expected loading without error, got loading=%v error=%q", vm.IsLoading, vm.ErrorMessage)
	}

	close(gate)
	vm = waitView(t, v, hasForecast)
	if vm.ErrorMessage != "" || vm.Forecast.Failed() {
		t.Fatalf("unexpected error after success: %+v", vm)
	}
}

func TestEmptyForecast(t *testing.T) {
	fc := newFakeForecaster(map[string]behavior{"1,1": {}})
	v, _ := newTestViewer(t, "1,1", 10*time.Millisecond, nil, fc)

	vm := waitView(t, v, hasForecast)
	if vm.Forecast.Failed() || vm.Forecast.Periods == nil || len(vm.Forecast.Periods) != 0 {
		t.Fatalf("expected empty forecast, got %+v", vm.Forecast)
	}
	if vm.SelectedPeriod != nil || vm.ErrorMessage != "" {
		t.Fatalf("unexpected selection or error: %+v", vm)
	}
}

func TestCatalogFailureStaysLoading(t *testing.T) {
	v, _ := newTestViewer(t, "", 10*time.Millisecond, &fakeCatalog{err: errors.New("catalog down")}, newFakeForecaster(nil))

	waitView(t, v, func(ViewModel) bool { return true })
	time.Sleep(20 * time.Millisecond)
	vm, _ := v.Snapshot()
	if vm.CatalogLoaded || vm.Catalog != nil {
		t.Fatalf("catalog should stay loading, got %+v", vm)
	}
}

func TestLocationWritesKeepDispatchOrder(t *testing.T) {
	fc := newFakeForecaster(nil)
	v, st := newTestViewer(t, "", 10*time.Millisecond, nil, fc)

	var want []string
	for i := 0; i < 20; i++ {
		key := fmt.Sprintf("%d,%d", i, i)
		want = append(want, key)
		if err := v.SetLocation(key); err != nil {
			t.Fatalf("SetLocation: %v", err)
		}
	}
	want = append(want, "")
	if err := v.SetLocation(""); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}

	waitStats(t, v, func(s Stats) bool { return s.EffectWrites == uint64(len(want)) })
	waitView(t, v, func(vm ViewModel) bool { return vm.LastEffectTick == uint64(len(want)) })

	entries, err := st.History()
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	got := make([]string, 0, len(entries))
	for _, e := range entries {
		got = append(got, e.LatLng)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("write order mismatch (-want +got):\n%s", diff)
	}
}

func TestCloseEndsSession(t *testing.T) {
	v, _ := newTestViewer(t, "", 10*time.Millisecond, nil, newFakeForecaster(nil))
	waitView(t, v, func(ViewModel) bool { return true })

	updates, _ := v.Subscribe()
	<-updates // current snapshot

	v.Close()
	if err := v.SetLocation("1,1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := v.SelectPeriod(0); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if _, ok := <-updates; ok {
		t.Fatal("expected subscription to be closed")
	}
}

func TestBroadcasterKeepsLatest(t *testing.T) {
	b := newBroadcaster(nil)
	updates, unsubscribe := b.subscribe()

	for i := 0; i < subscriberBuffer+5; i++ {
		b.publish(ViewModel{SelectedIndex: i})
	}

	var last ViewModel
	count := 0
	for len(updates) > 0 {
		last = <-updates
		count++
	}
	if count != subscriberBuffer {
		t.Fatalf("expected %d buffered snapshots, got %d", subscriberBuffer, count)
	}
	if last.Version != uint64(subscriberBuffer+5) || last.SelectedIndex != subscriberBuffer+4 {
		t.Fatalf("expected latest snapshot last, got %+v", last)
	}

	unsubscribe()
	unsubscribe()
	if _, ok := <-updates; ok {
		t.Fatal("expected closed channel after unsubscribe")
	}
}

func TestActionsBeforeStart(t *testing.T) {
	st, err := store.NewURLStore("", 0, 0)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	v := New(Config{}, Deps{Catalog: &fakeCatalog{}, Forecaster: newFakeForecaster(nil), Store: st})

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 2*eventBuffer; i++ {
			if err := v.SetLocation("1,1"); !errors.Is(err, ErrNotStarted) {
				t.Errorf("SetLocation: expected ErrNotStarted, got %v", err)
				return
			}
		}
		if err := v.SelectPeriod(0); !errors.Is(err, ErrNotStarted) {
			t.Errorf("SelectPeriod: expected ErrNotStarted, got %v", err)
		}
	}()
	select {
	case <-done:
	case <-time.After(waitTimeout):
		t.Fatal("actions blocked before Start")
	}

	v.Close()
	if err := v.SetLocation("1,1"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after Close, got %v", err)
	}
}
