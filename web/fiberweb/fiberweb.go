// Package fiberweb serves the order desk on fiber.
package fiberweb

import (
	"context"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/kcmvp/orderdesk/web"
)

const requestIDKey = "request_id"

type Server struct {
	app *fiber.App
}

var _ web.Server = (*Server)(nil)

func New(h *web.Handler) *Server {
	app := fiber.New(fiber.Config{AppName: "orderdesk"})
	app.Use(recoverer.New(), fiber.Handler(requestID), accessLog(h))

	app.Get(web.PathPage, func(c fiber.Ctx) error {
		return write(c, h.Page(c))
	})
	app.Post(web.PathPage, rateLimit(h), func(c fiber.Ctx) error {
		form, err := url.ParseQuery(string(c.Body()))
		if err != nil {
			form = nil
		}
		return write(c, h.SubmitForm(c, form, id(c)))
	})
	app.Get(web.PathOrders, func(c fiber.Ctx) error {
		return write(c, h.Recent(c, query(c)))
	})
	app.Post(web.PathOrders, rateLimit(h), func(c fiber.Ctx) error {
		return write(c, h.SubmitJSON(c, c.Body(), id(c)))
	})
	app.Get(web.PathHealth, func(c fiber.Ctx) error {
		return write(c, h.Health(c))
	})
	return &Server{app: app}
}

// App exposes the fiber application, mainly for app.Test.
func (s *Server) App() *fiber.App {
	return s.app
}

func (s *Server) Serve(addr string) error {
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.app.ShutdownWithContext(ctx)
}

func write(c fiber.Ctx, r web.Reply) error {
	if r.HTML != nil {
		c.Set(fiber.HeaderContentType, web.MIMEHTML)
		return c.Status(r.Status).Send(r.HTML)
	}
	return c.Status(r.Status).JSON(r.Body)
}

func query(c fiber.Ctx) url.Values {
	u, err := url.Parse(c.OriginalURL())
	if err != nil {
		return url.Values{}
	}
	return u.Query()
}

func id(c fiber.Ctx) string {
	if v, ok := c.Locals(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func requestID(c fiber.Ctx) error {
	rid := web.RequestID(c.Get(web.HeaderRequestID))
	c.Locals(requestIDKey, rid)
	c.Set(web.HeaderRequestID, rid)
	return c.Next()
}

func rateLimit(h *web.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		if h.Limiter().Allow(c.IP()) {
			return c.Next()
		}
		return write(c, h.RateLimited(c, web.IsHTML(c.Path())))
	}
}

func accessLog(h *web.Handler) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()
		err := c.Next()
		logger := h.Logger(id(c))
		logger.Info().
			Str("method", c.Method()).
			Str("path", c.Path()).
			Int("status", c.Response().StatusCode()).
			Dur("dur", time.Since(start)).
			Err(err).
			Msg("request")
		return err
	}
}
