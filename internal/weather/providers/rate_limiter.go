package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/i474232898/forecast-viewer/internal/weather"
)

// RateLimitedNWS wraps the points and forecast sources of one upstream with a
// shared limiter, so a burst of location changes cannot flood the API.
type RateLimitedNWS struct {
	points    weather.PointsSource
	forecasts weather.ForecastSource
	limiter   *rate.Limiter
}

// NewRateLimitedNWS creates a limited wrapper allowing rps requests per second
// with bursts of up to burst requests.
func NewRateLimitedNWS(points weather.PointsSource, forecasts weather.ForecastSource, rps float64, burst int) *RateLimitedNWS {
	return &RateLimitedNWS{
		points:    points,
		forecasts: forecasts,
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedNWS) FetchPoints(ctx context.Context, key string) (weather.Points, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return weather.Points{}, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.points.FetchPoints(ctx, key)
}

func (r *RateLimitedNWS) FetchForecast(ctx context.Context, points weather.Points) ([]weather.RawPeriod, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.forecasts.FetchForecast(ctx, points)
}

// RateLimitedAirQuality wraps an AirQualitySource with rate limiting.
type RateLimitedAirQuality struct {
	source  weather.AirQualitySource
	limiter *rate.Limiter
}

func NewRateLimitedAirQuality(source weather.AirQualitySource, rps float64, burst int) *RateLimitedAirQuality {
	return &RateLimitedAirQuality{
		source:  source,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimitedAirQuality) FetchAirQuality(ctx context.Context, lat, lon float64) ([]weather.AirQualitySample, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait canceled: %w", err)
	}
	return r.source.FetchAirQuality(ctx, lat, lon)
}

var (
	_ weather.PointsSource     = (*RateLimitedNWS)(nil)
	_ weather.ForecastSource   = (*RateLimitedNWS)(nil)
	_ weather.AirQualitySource = (*RateLimitedAirQuality)(nil)
)
