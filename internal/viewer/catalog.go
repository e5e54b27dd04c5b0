package viewer

import (
	"context"
	"log"

	"github.com/i474232898/forecast-viewer/internal/weather"
)

// catalogState is nil until the catalog loads; an empty but non-nil slice
// means a loaded, empty catalog.
type catalogState struct {
	locations []weather.Location
	loaded    bool
}

func (c *catalogState) load(locations []weather.Location) {
	if locations == nil {
		locations = []weather.Location{}
	}
	c.locations = locations
	c.loaded = true
}

// loadCatalog fetches the catalog once. On failure the catalog simply stays
// in its loading state for the rest of the session.
func (v *Viewer) loadCatalog(ctx context.Context) {
	entries, err := v.deps.Catalog.FetchCatalog(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("viewer[%s]: catalog load failed, catalog stays loading: %v", v.session, err)
		}
		return
	}

	locations := make([]weather.Location, 0, len(entries))
	for _, e := range entries {
		locations = append(locations, weather.NewLocation(e))
	}
	log.Printf("viewer[%s]: catalog loaded with %d locations", v.session, len(locations))
	v.post(catalogLoaded{locations: locations})
}
