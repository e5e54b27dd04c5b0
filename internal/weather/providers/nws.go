package providers

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-viewer/internal/weather"
)

// NWSProvider implements weather.PointsSource and weather.ForecastSource for
// the National Weather Service API (api.weather.gov).
type NWSProvider struct {
	name    string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewNWSProvider(cfg HTTPClientConfig, baseURL string) *NWSProvider {
	return &NWSProvider{
		name:    "nws",
		baseURL: strings.TrimRight(baseURL, "/"),
		httpCfg: cfg,
		circuit: newCircuitBreaker("nws"),
	}
}

// FetchPoints resolves a "lon,lat" key through /points/{lat},{lon}.
func (p *NWSProvider) FetchPoints(ctx context.Context, key string) (weather.Points, error) {
	lon, lat, err := weather.ParseCoordinateKey(key)
	if err != nil {
		return weather.Points{}, err
	}

	u := fmt.Sprintf("%s/points/%.4f,%.4f", p.baseURL, lat, lon)

	var payload struct {
		Properties struct {
			Forecast string `json:"forecast"`
			GridID   string `json:"gridId"`
			GridX    int    `json:"gridX"`
			GridY    int    `json:"gridY"`
		} `json:"properties"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.name+"_points", u, &payload); err != nil {
		return weather.Points{}, err
	}
	if payload.Properties.Forecast == "" {
		return weather.Points{}, fmt.Errorf("nws points response for %s has no forecast url", key)
	}

	return weather.Points{
		Forecast: payload.Properties.Forecast,
		GridID:   payload.Properties.GridID,
		GridX:    payload.Properties.GridX,
		GridY:    payload.Properties.GridY,
	}, nil
}

// FetchForecast fetches the periods at points.Forecast.
func (p *NWSProvider) FetchForecast(ctx context.Context, points weather.Points) ([]weather.RawPeriod, error) {
	if points.Forecast == "" {
		return nil, fmt.Errorf("nws forecast url is empty")
	}

	type quantity struct {
		Value *float64 `json:"value"`
	}
	var payload struct {
		Properties struct {
			Periods []struct {
				Number                     int       `json:"number"`
				Name                       string    `json:"name"`
				StartTime                  time.Time `json:"startTime"`
				EndTime                    time.Time `json:"endTime"`
				IsDaytime                  bool      `json:"isDaytime"`
				Temperature                float64   `json:"temperature"`
				TemperatureUnit            string    `json:"temperatureUnit"`
				ProbabilityOfPrecipitation quantity  `json:"probabilityOfPrecipitation"`
				RelativeHumidity           quantity  `json:"relativeHumidity"`
				WindSpeed                  string    `json:"windSpeed"`
				WindDirection              string    `json:"windDirection"`
				Icon                       string    `json:"icon"`
				ShortForecast              string    `json:"shortForecast"`
				DetailedForecast           string    `json:"detailedForecast"`
			} `json:"periods"`
		} `json:"properties"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.name+"_forecast", points.Forecast, &payload); err != nil {
		return nil, err
	}

	periods := make([]weather.RawPeriod, 0, len(payload.Properties.Periods))
	for _, item := range payload.Properties.Periods {
		periods = append(periods, weather.RawPeriod{
			Number:              item.Number,
			Name:                item.Name,
			StartTime:           item.StartTime,
			EndTime:             item.EndTime,
			IsDaytime:           item.IsDaytime,
			Temperature:         int(math.Round(item.Temperature)),
			TemperatureUnit:     item.TemperatureUnit,
			PrecipitationChance: roundPtr(item.ProbabilityOfPrecipitation.Value),
			Humidity:            roundPtr(item.RelativeHumidity.Value),
			WindSpeed:           item.WindSpeed,
			WindDirection:       item.WindDirection,
			Icon:                item.Icon,
			ShortForecast:       item.ShortForecast,
			DetailedForecast:    item.DetailedForecast,
		})
	}
	return periods, nil
}

func roundPtr(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Round(*v))
	return &n
}

var (
	_ weather.PointsSource   = (*NWSProvider)(nil)
	_ weather.ForecastSource = (*NWSProvider)(nil)
)
