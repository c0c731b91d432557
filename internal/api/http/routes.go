package httpapi

import (
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/astro-viewing-conditions/internal/conditions"
	"github.com/i474232898/astro-viewing-conditions/internal/geo"
	"github.com/i474232898/astro-viewing-conditions/internal/weather"
)

var validate = validator.New()

// conditionsResponse is a snapshot plus its freshness as seen by the server.
type conditionsResponse struct {
	conditions.ViewingConditions
	Stale      bool  `json:"stale"`
	AgeSeconds int64 `json:"ageSeconds"`
}

type dayResponse struct {
	conditions.DayView
	FetchedAt time.Time        `json:"fetchedAt"`
	Location  weather.Location `json:"location"`
	Stale     bool             `json:"stale"`
}

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *conditions.Service) {
	v1 := app.Group("/api/v1")

	respond := func(c *fiber.Ctx, vc conditions.ViewingConditions) error {
		now := service.Now()
		return c.JSON(conditionsResponse{
			ViewingConditions: vc,
			Stale:             vc.IsStale(now, service.StaleAfter()),
			AgeSeconds:        int64(vc.Age(now).Seconds()),
		})
	}

	v1.Get("/conditions", func(c *fiber.Ctx) error {
		locReq, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		vc, err := service.LatestOrRefresh(c.UserContext(), locReq.toLocation())
		if err != nil {
			return toHTTPError(err, "no viewing conditions for requested location")
		}
		return respond(c, vc)
	})

	v1.Post("/conditions/refresh", func(c *fiber.Ctx) error {
		locReq, err := parseLocationQuery(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		vc, err := service.Refresh(c.UserContext(), locReq.toLocation())
		if err != nil {
			return toHTTPError(err, "no viewing conditions for requested location")
		}
		return respond(c, vc)
	})

	v1.Get("/conditions/day", func(c *fiber.Ctx) error {
		var req dayQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		vc, view, err := service.Day(c.UserContext(), req.Location.toLocation(), req.Day, req.Upcoming)
		if err != nil {
			return toHTTPError(err, "no viewing conditions for requested location")
		}

		return c.JSON(dayResponse{
			DayView:   view,
			FetchedAt: vc.FetchedAt,
			Location:  vc.Location,
			Stale:     vc.IsStale(service.Now(), service.StaleAfter()),
		})
	})

	v1.Get("/conditions/history", func(c *fiber.Ctx) error {
		var req historyQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		loc := req.Location.toLocation()
		snapshots, err := service.History(c.UserContext(), loc, req.From, req.To)
		if err != nil {
			return toHTTPError(err, "no viewing conditions history for requested range")
		}

		return c.JSON(fiber.Map{
			"location":  loc,
			"from":      req.From,
			"to":        req.To,
			"snapshots": snapshots,
		})
	})

	v1.Get("/locations/search", func(c *fiber.Ctx) error {
		q := searchQuery{Query: c.Query("q")}
		if err := validate.Struct(q); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		places, err := service.Search(c.UserContext(), q.Query)
		if err != nil {
			return toHTTPError(err, "")
		}

		results := make([]fiber.Map, 0, len(places))
		for _, p := range places {
			results = append(results, fiber.Map{
				"displayName": p.DisplayName(),
				"place":       p,
			})
		}
		return c.JSON(fiber.Map{"query": q.Query, "results": results})
	})
}

// locationQuery holds query parameters for identifying a location.
type locationQuery struct {
	Lat  *float64 `query:"lat" validate:"required,gte=-90,lte=90"`
	Lon  *float64 `query:"lon" validate:"required,gte=-180,lte=180"`
	Name string   `query:"name" validate:"max=120"`
	Zone string   `query:"tz" validate:"omitempty,timezone"`
}

func (l locationQuery) toLocation() weather.Location {
	return weather.Location{
		Name:       l.Name,
		Coordinate: geo.Coordinate{Latitude: *l.Lat, Longitude: *l.Lon},
		TimeZone:   l.Zone,
	}
}

func parseLocationQuery(c *fiber.Ctx) (locationQuery, error) {
	var q locationQuery
	if err := c.QueryParser(&q); err != nil {
		return q, err
	}

	if err := validate.Struct(q); err != nil {
		return q, err
	}

	return q, nil
}

// dayQuery holds query parameters for the day view endpoint.
type dayQuery struct {
	Location locationQuery `query:"-"`
	Day      int           `query:"day" validate:"gte=0,lt=7"`
	Upcoming bool          `query:"upcoming"`
}

func (d *dayQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	d.Location = loc

	if err := c.QueryParser(d); err != nil {
		return err
	}
	return validate.Struct(d)
}

// historyQuery holds query parameters for the history endpoint.
type historyQuery struct {
	Location locationQuery
	From     time.Time `validate:"required"`
	To       time.Time `validate:"required,gtefield=From"`
}

func (h *historyQuery) bind(c *fiber.Ctx) error {
	loc, err := parseLocationQuery(c)
	if err != nil {
		return err
	}
	h.Location = loc

	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return errors.New("from and to query parameters are required")
	}

	from, err := parseTime(fromStr)
	if err != nil {
		return err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return err
	}

	h.From = from
	h.To = to
	return nil
}

type searchQuery struct {
	Query string `validate:"required,min=2,max=100"`
}

// parseTime tries to parse either RFC3339 or Unix seconds.
func parseTime(s string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	if unix, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Unix(unix, 0).UTC(), nil
	}
	return time.Time{}, errors.New("invalid time format; use RFC3339 or unix seconds")
}
