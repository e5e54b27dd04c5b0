package weather

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"
)

// Service runs the forecast pipeline for one coordinate: points lookup and
// air-quality forecast concurrently, then the forecast fetch, then the
// period transforms.
type Service struct {
	points     PointsSource
	forecasts  ForecastSource
	airQuality AirQualitySource
}

// NewService creates a new Service. airQuality may be nil, in which case
// periods are never enriched with AQI data.
func NewService(points PointsSource, forecasts ForecastSource, airQuality AirQualitySource) *Service {
	return &Service{
		points:     points,
		forecasts:  forecasts,
		airQuality: airQuality,
	}
}

// FetchForecast fetches and transforms the forecast for a coordinate key.
// Any upstream failure fails the whole pipeline.
func (s *Service) FetchForecast(ctx context.Context, key string) ([]ForecastPeriod, error) {
	lon, lat, err := ParseCoordinateKey(key)
	if err != nil {
		return nil, err
	}

	var (
		points  Points
		samples []AirQualitySample
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.points.FetchPoints(gctx, key)
		if err != nil {
			return fmt.Errorf("points lookup for %s: %w", key, err)
		}
		points = p
		return nil
	})
	if s.airQuality != nil {
		g.Go(func() error {
			aq, err := s.airQuality.FetchAirQuality(gctx, lat, lon)
			if err != nil {
				return fmt.Errorf("air quality for %s: %w", key, err)
			}
			samples = aq
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	raw, err := s.forecasts.FetchForecast(ctx, points)
	if err != nil {
		return nil, fmt.Errorf("forecast for %s: %w", key, err)
	}

	periods := MergeDayNight(raw)
	ApplyAirQuality(periods, samples)
	ApplyShortNames(periods)
	ApplyDetails(periods)

	log.Printf("weather: forecast for %s: %d raw periods, %d merged, %d aqi samples", key, len(raw), len(periods), len(samples))
	return periods, nil
}
