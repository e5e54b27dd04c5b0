package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"

	"github.com/i474232898/forecast-viewer/internal/store"
	"github.com/i474232898/forecast-viewer/internal/viewer"
	"github.com/i474232898/forecast-viewer/internal/weather"
)

const streamHeartbeat = 15 * time.Second

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// coordkey accepts "" (no location) or a "lon,lat" key.
	_ = v.RegisterValidation("coordkey", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, _, err := weather.ParseCoordinateKey(s)
		return err == nil
	})
	return v
}

// Session is the action and view surface of a viewer.
type Session interface {
	SetLocation(key string) error
	SelectPeriod(index int) error
	Snapshot() (viewer.ViewModel, bool)
	Subscribe() (<-chan viewer.ViewModel, func())
}

// URL is the navigable location store.
type URL interface {
	Navigate(rawQuery string) error
	Query() string
	History() ([]store.Entry, error)
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, session Session, url URL) {
	v1 := app.Group("/api/v1")

	v1.Get("/locations", func(c *fiber.Ctx) error {
		vm, ok := session.Snapshot()
		if !ok || !vm.CatalogLoaded {
			return c.JSON(fiber.Map{
				"loaded":    false,
				"locations": []weather.Location{},
			})
		}
		return c.JSON(fiber.Map{
			"loaded":    true,
			"locations": vm.Catalog,
		})
	})

	v1.Get("/view", func(c *fiber.Ctx) error {
		vm, ok := session.Snapshot()
		if !ok {
			return fiber.NewError(fiber.StatusServiceUnavailable, viewer.ErrNotReady.Error())
		}
		return c.JSON(vm)
	})

	v1.Get("/view/stream", func(c *fiber.Ctx) error {
		return streamView(c, session)
	})

	v1.Post("/location", func(c *fiber.Ctx) error {
		var req locationRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return accepted(c, session.SetLocation(req.key()))
	})

	v1.Delete("/location", func(c *fiber.Ctx) error {
		return accepted(c, session.SetLocation(""))
	})

	v1.Post("/period", func(c *fiber.Ctx) error {
		var req periodRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return accepted(c, session.SelectPeriod(*req.Index))
	})

	// navigate replaces the URL query, as typing or pasting a URL would.
	v1.Post("/navigate", func(c *fiber.Ctx) error {
		q := navigateQuery{LatLng: c.Query(store.ParamLatLng)}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := url.Navigate(string(c.Request().URI().QueryString())); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		return c.JSON(fiber.Map{"query": url.Query()})
	})

	v1.Get("/history", func(c *fiber.Ctx) error {
		entries, err := url.History()
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "no navigation history")
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to read navigation history")
		}
		return c.JSON(fiber.Map{
			"query":   url.Query(),
			"entries": entries,
		})
	})
}

// RegisterMetrics exposes the Prometheus registry at /metrics.
func RegisterMetrics(app *fiber.App, gatherer prometheus.Gatherer) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
}

// locationRequest is the body of a set-location action. A null or empty
// latLng clears the location.
type locationRequest struct {
	LatLng *string `json:"latLng" validate:"omitempty,coordkey"`
}

func (r locationRequest) key() string {
	if r.LatLng == nil {
		return ""
	}
	return *r.LatLng
}

// periodRequest is the body of a select-period action.
type periodRequest struct {
	Index *int `json:"index" validate:"required,gte=0"`
}

type navigateQuery struct {
	LatLng string `validate:"coordkey"`
}

func accepted(c *fiber.Ctx, err error) error {
	if err != nil {
		if errors.Is(err, viewer.ErrClosed) || errors.Is(err, viewer.ErrNotStarted) {
			return fiber.NewError(fiber.StatusServiceUnavailable, err.Error())
		}
		return fiber.NewError(fiber.StatusInternalServerError, err.Error())
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"accepted": true})
}

// streamView writes every snapshot as a server-sent event until the client
// goes away or the session closes.
func streamView(c *fiber.Ctx, session Session) error {
	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	updates, unsubscribe := session.Subscribe()
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer unsubscribe()

		heartbeat := time.NewTicker(streamHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case vm, ok := <-updates:
				if !ok {
					return
				}
				data, err := json.Marshal(vm)
				if err != nil {
					log.Printf("httpapi: failed to encode view snapshot: %v", err)
					return
				}
				fmt.Fprintf(w, "id: %d\nevent: view\ndata: %s\n\n", vm.Version, data)
			case <-heartbeat.C:
				fmt.Fprint(w, ": ping\n\n")
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}))
	return nil
}
