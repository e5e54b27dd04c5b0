package weather

import (
	"context"
)

// CatalogSource delivers the list of selectable locations.
type CatalogSource interface {
	FetchCatalog(ctx context.Context) ([]CatalogEntry, error)
}

// PointsSource resolves a coordinate key to a forecast grid reference.
type PointsSource interface {
	FetchPoints(ctx context.Context, key string) (Points, error)
}

// ForecastSource fetches the raw periods referenced by a points lookup.
type ForecastSource interface {
	FetchForecast(ctx context.Context, points Points) ([]RawPeriod, error)
}

// AirQualitySource fetches an air-quality forecast for a coordinate.
type AirQualitySource interface {
	FetchAirQuality(ctx context.Context, lat, lon float64) ([]AirQualitySample, error)
}
