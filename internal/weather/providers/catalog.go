package providers

import (
	"context"

	"github.com/sony/gobreaker"

	"github.com/i474232898/forecast-viewer/internal/weather"
)

// DefaultCatalogURL lists the US state capitals.
const DefaultCatalogURL = "https://raw.githubusercontent.com/vega/vega/main/docs/data/us-state-capitals.json"

// StateCapitalsCatalog implements weather.CatalogSource for a JSON array of
// {city, state, lon, lat} records.
type StateCapitalsCatalog struct {
	name    string
	url     string
	httpCfg HTTPClientConfig
	circuit *gobreaker.CircuitBreaker
}

func NewStateCapitalsCatalog(cfg HTTPClientConfig, url string) *StateCapitalsCatalog {
	if url == "" {
		url = DefaultCatalogURL
	}
	return &StateCapitalsCatalog{
		name:    "state_capitals",
		url:     url,
		httpCfg: cfg,
		circuit: newCircuitBreaker("catalog"),
	}
}

func (c *StateCapitalsCatalog) FetchCatalog(ctx context.Context) ([]weather.CatalogEntry, error) {
	var entries []weather.CatalogEntry
	if err := getJSON(ctx, c.httpCfg, c.circuit, c.name, c.url, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

var _ weather.CatalogSource = (*StateCapitalsCatalog)(nil)
