package providers

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-viewer/internal/weather"
)

// OpenWeatherAirQualityProvider implements weather.AirQualitySource for the
// OpenWeatherMap air pollution forecast.
type OpenWeatherAirQualityProvider struct {
	name    string
	apiKey  string
	baseURL string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewOpenWeatherAirQualityProvider(cfg HTTPClientConfig, baseURL, apiKey string) *OpenWeatherAirQualityProvider {
	return &OpenWeatherAirQualityProvider{
		name:    "openweather_air_pollution",
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/") + "/data/2.5/air_pollution/forecast",
		httpCfg: cfg,
		circuit: newCircuitBreaker("openweather"),
	}
}

func (p *OpenWeatherAirQualityProvider) FetchAirQuality(ctx context.Context, lat, lon float64) ([]weather.AirQualitySample, error) {
	if p.apiKey == "" {
		return nil, fmt.Errorf("openweather api key is not configured")
	}

	values := url.Values{}
	values.Set("lat", fmt.Sprintf("%g", lat))
	values.Set("lon", fmt.Sprintf("%g", lon))
	values.Set("appid", p.apiKey)
	u := fmt.Sprintf("%s?%s", p.baseURL, values.Encode())

	var payload struct {
		List []struct {
			Dt   int64 `json:"dt"`
			Main struct {
				AQI int `json:"aqi"`
			} `json:"main"`
		} `json:"list"`
	}
	if err := getJSON(ctx, p.httpCfg, p.circuit, p.name, u, &payload); err != nil {
		return nil, err
	}

	samples := make([]weather.AirQualitySample, 0, len(payload.List))
	for _, item := range payload.List {
		samples = append(samples, weather.AirQualitySample{
			Time: time.Unix(item.Dt, 0).UTC(),
			AQI:  item.Main.AQI,
		})
	}
	return samples, nil
}

var _ weather.AirQualitySource = (*OpenWeatherAirQualityProvider)(nil)
