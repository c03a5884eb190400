package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/i474232898/weather-etl/internal/logger"
	"github.com/i474232898/weather-etl/internal/warehouse"
)

var validate = validator.New()

const defaultHottestLimit = 3

// Analytics is the read-only query surface served over HTTP.
type Analytics interface {
	Summarize(ctx context.Context) (warehouse.Summary, error)
	CityStats(ctx context.Context) ([]warehouse.CityStat, error)
	HottestHours(ctx context.Context, limit int) ([]warehouse.HotHour, error)
}

// NewApp builds the Fiber app with the shared error handler, JSON codec and middleware.
func NewApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "weather-etl",
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			code := fiber.StatusInternalServerError
			var e *fiber.Error
			if errors.As(err, &e) {
				code = e.Code
			}
			return c.Status(code).JSON(fiber.Map{
				"error":   true,
				"message": err.Error(),
			})
		},
	})

	app.Use(fiberlogger.New())
	app.Use(recover.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"service": "weather-etl",
		})
	})
	return app
}

// RegisterRoutes wires the warehouse handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, analytics Analytics) {
	v1 := app.Group("/api/v1/warehouse")

	v1.Get("/summary", func(c *fiber.Ctx) error {
		summary, err := analytics.Summarize(c.UserContext())
		if err != nil {
			return queryFailed(err)
		}
		return c.JSON(summary)
	})

	v1.Get("/cities", func(c *fiber.Ctx) error {
		stats, err := analytics.CityStats(c.UserContext())
		if err != nil {
			return queryFailed(err)
		}
		if stats == nil {
			stats = []warehouse.CityStat{}
		}
		return c.JSON(fiber.Map{"cities": stats})
	})

	v1.Get("/hottest", func(c *fiber.Ctx) error {
		var req hottestQuery
		if err := req.bind(c); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		hours, err := analytics.HottestHours(c.UserContext(), req.Limit)
		if err != nil {
			return queryFailed(err)
		}
		if hours == nil {
			hours = []warehouse.HotHour{}
		}
		return c.JSON(fiber.Map{
			"limit": req.Limit,
			"hours": hours,
		})
	})
}

func queryFailed(err error) error {
	logger.Errorf("warehouse query failed: %v", err)
	return fiber.NewError(fiber.StatusInternalServerError, "warehouse query failed")
}

// hottestQuery holds query parameters for the hottest-hours endpoint.
type hottestQuery struct {
	Limit int `validate:"gte=1,lte=24"`
}

func (h *hottestQuery) bind(c *fiber.Ctx) error {
	raw := c.Query("limit")
	if raw == "" {
		h.Limit = defaultHottestLimit
		return nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return errors.New("limit must be an integer")
	}
	h.Limit = n
	return nil
}
