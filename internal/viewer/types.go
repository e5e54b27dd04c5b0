package viewer

import (
	"context"
	"errors"
	"time"

	"github.com/i474232898/forecast-viewer/internal/metrics"
	"github.com/i474232898/forecast-viewer/internal/weather"
)

// NetworkErrorMessage is the user-facing message of a failed forecast.
const NetworkErrorMessage = "Network request failed!"

// DefaultSettleWindow is how long an externally changed location is held
// before it is resolved.
const DefaultSettleWindow = 300 * time.Millisecond

var (
	ErrClosed     = errors.New("viewer closed")
	ErrNotStarted = errors.New("viewer not started")
	ErrNotReady   = errors.New("view not synchronized yet")
)

// Forecaster runs the forecast pipeline for one coordinate key.
type Forecaster interface {
	FetchForecast(ctx context.Context, key string) ([]weather.ForecastPeriod, error)
}

// LocationStore is the persisted current-location store.
type LocationStore interface {
	// Current returns the persisted key, "" meaning no location.
	Current() string
	// Write persists a new key.
	Write(key string)
	// Watch calls fn with every new persisted key until the returned func is called.
	Watch(fn func(key string)) func()
}

// Config tunes the viewer.
type Config struct {
	SettleWindow time.Duration
}

// Deps are the external collaborators of the viewer.
type Deps struct {
	Catalog    weather.CatalogSource
	Forecaster Forecaster
	Store      LocationStore
	Metrics    *metrics.Collector
}

// ForecastResult is the outcome of one epoch: either periods or a failure.
// A nil *ForecastResult means no location is selected.
type ForecastResult struct {
	Periods []weather.ForecastPeriod `json:"periods"`
	Error   string                   `json:"error,omitempty"`
}

// Failed reports whether r is the error variant.
func (r *ForecastResult) Failed() bool {
	return r != nil && r.Error != ""
}

// usable reports whether periods can be selected from r.
func (r *ForecastResult) usable() bool {
	return r != nil && !r.Failed() && len(r.Periods) > 0
}

// ViewModel is one synchronized snapshot of every signal, handed to rendering.
// Snapshots share slices with each other and must be treated as read-only.
type ViewModel struct {
	Version            uint64                  `json:"version"`
	CatalogLoaded      bool                    `json:"catalogLoaded"`
	Catalog            []weather.Location      `json:"catalog"`
	CurrentLocationKey string                  `json:"currentLocationKey"`
	Forecast           *ForecastResult         `json:"forecast"`
	IsLoading          bool                    `json:"isLoading"`
	ErrorMessage       string                  `json:"errorMessage,omitempty"`
	SelectedIndex      int                     `json:"selectedIndex"`
	SelectedPeriod     *weather.ForecastPeriod `json:"selectedPeriod"`
	LastEffectTick     uint64                  `json:"lastEffectTick"`
}

// Stats are session counters.
type Stats struct {
	Session      string `json:"session"`
	Epochs       uint64 `json:"epochs"`
	StaleResults uint64 `json:"staleResults"`
	Snapshots    uint64 `json:"snapshots"`
	EffectWrites uint64 `json:"effectWrites"`
}

// events processed by the graph loop
type (
	catalogLoaded struct {
		locations []weather.Location
	}
	externalChanged struct {
		key string
	}
	settleElapsed struct {
		gen uint64
		key string
	}
	forecastDone struct {
		gen     uint64
		key     string
		periods []weather.ForecastPeriod
		err     error
	}
	setLocation struct {
		key string
	}
	selectPeriod struct {
		index int
	}
)
