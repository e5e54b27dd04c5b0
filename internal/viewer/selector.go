package viewer

import "github.com/i474232898/forecast-viewer/internal/weather"

// selectorState is the selected period of the current forecast. index is -1
// when nothing can be selected.
type selectorState struct {
	index  int
	period *weather.ForecastPeriod
}

// reset selects the first period of a new forecast, or nothing when r has no
// selectable periods.
func (s *selectorState) reset(r *ForecastResult) {
	if !r.usable() {
		s.index = -1
		s.period = nil
		return
	}
	s.set(r, 0)
}

// choose applies a user selection against the current forecast. Selections
// are ignored while there is nothing to select or when out of range.
func (s *selectorState) choose(r *ForecastResult, index int) bool {
	if !r.usable() || index < 0 || index >= len(r.Periods) {
		return false
	}
	s.set(r, index)
	return true
}

func (s *selectorState) set(r *ForecastResult, index int) {
	p := r.Periods[index]
	s.index = index
	s.period = &p
}
