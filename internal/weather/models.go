package weather

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// MaxPeriods is the number of merged forecast periods kept per forecast.
const MaxPeriods = 7

// ErrInvalidCoordinateKey is returned when a key is not of the form "lon,lat".
var ErrInvalidCoordinateKey = errors.New("invalid coordinate key")

// locationNamespace seeds deterministic location ids.
var locationNamespace = uuid.MustParse("6f1c2f0e-5b7a-4b7e-9d5c-2a1e8c3f4b10")

// Location is a selectable place from the catalog. Immutable once loaded.
type Location struct {
	ID            string  `json:"id"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	Lon           float64 `json:"lon"`
	Lat           float64 `json:"lat"`
	DisplayName   string  `json:"displayName"`
	CoordinateKey string  `json:"latLng"`
}

// CatalogEntry is a raw record of the location catalog source.
type CatalogEntry struct {
	City  string  `json:"city"`
	State string  `json:"state"`
	Lon   float64 `json:"lon"`
	Lat   float64 `json:"lat"`
}

// NewLocation decorates a raw catalog record with its display name, key and id.
func NewLocation(e CatalogEntry) Location {
	key := CoordinateKey(e.Lon, e.Lat)
	return Location{
		ID:            uuid.NewSHA1(locationNamespace, []byte(key)).String(),
		City:          e.City,
		State:         e.State,
		Lon:           e.Lon,
		Lat:           e.Lat,
		DisplayName:   e.State + " - " + e.City,
		CoordinateKey: key,
	}
}

// CoordinateKey returns the canonical "lon,lat" encoding of a coordinate.
func CoordinateKey(lon, lat float64) string {
	return strconv.FormatFloat(lon, 'f', -1, 64) + "," + strconv.FormatFloat(lat, 'f', -1, 64)
}

// ParseCoordinateKey splits a "lon,lat" key back into its components.
func ParseCoordinateKey(key string) (lon, lat float64, err error) {
	lonStr, latStr, ok := strings.Cut(key, ",")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCoordinateKey, key)
	}
	lon, err = strconv.ParseFloat(strings.TrimSpace(lonStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCoordinateKey, key)
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidCoordinateKey, key)
	}
	if lon < -180 || lon > 180 || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("%w: %q out of range", ErrInvalidCoordinateKey, key)
	}
	return lon, lat, nil
}

// Points is the provider-specific grid reference for a coordinate.
type Points struct {
	// Forecast is the URL of the forecast resource for the point.
	Forecast string `json:"forecast"`
	GridID   string `json:"gridId,omitempty"`
	GridX    int    `json:"gridX,omitempty"`
	GridY    int    `json:"gridY,omitempty"`
}

// RawPeriod is one forecast period as delivered by the forecast source.
type RawPeriod struct {
	Number              int
	Name                string
	StartTime           time.Time
	EndTime             time.Time
	IsDaytime           bool
	Temperature         int
	TemperatureUnit     string
	PrecipitationChance *int
	Humidity            *int
	WindSpeed           string
	WindDirection       string
	Icon                string
	ShortForecast       string
	DetailedForecast    string
}

// AirQualitySample is one entry of an air-quality forecast.
type AirQualitySample struct {
	Time time.Time
	AQI  int
}

// ForecastPeriod is a merged, display-ready forecast period.
//
// Temperature is the daytime high and TemperatureMin the paired night low;
// either may be absent for an unpaired period.
type ForecastPeriod struct {
	Number              int       `json:"number"`
	Name                string    `json:"name"`
	ShortName           string    `json:"shortName"`
	StartTime           time.Time `json:"startTime"`
	EndTime             time.Time `json:"endTime"`
	IsDaytime           bool      `json:"isDaytime"`
	Temperature         *int      `json:"temperature,omitempty"`
	TemperatureMin      *int      `json:"temperatureMin,omitempty"`
	TemperatureUnit     string    `json:"temperatureUnit"`
	PrecipitationChance *int      `json:"precipitationChance,omitempty"`
	Humidity            *int      `json:"humidity,omitempty"`
	WindSpeed           string    `json:"windSpeed"`
	WindDirection       string    `json:"windDirection"`
	Icon                string    `json:"icon"`
	ShortSummary        string    `json:"shortForecast"`
	DetailedSummary     string    `json:"detailedForecast"`
	AirQualityIndex     *int      `json:"aqi,omitempty"`
	AirQualityLabel     string    `json:"aqiTxt,omitempty"`

	// Detail view projections, filled by ApplyDetails.
	DetailTemperature   *int   `json:"detailTemperature,omitempty"`
	DetailPrecipitation string `json:"detailPrecipitation"`
}

// DisplayTemperature is the headline temperature of the detail view.
func (p ForecastPeriod) DisplayTemperature() *int {
	if p.Temperature != nil {
		return p.Temperature
	}
	return p.TemperatureMin
}

// PrecipitationText renders the precipitation chance for the detail view.
func (p ForecastPeriod) PrecipitationText() string {
	if p.PrecipitationChance == nil || *p.PrecipitationChance == 0 {
		return "- -"
	}
	return strconv.Itoa(*p.PrecipitationChance) + "%"
}
