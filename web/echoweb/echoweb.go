// Package echoweb serves the order desk on echo.
package echoweb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/kcmvp/orderdesk/web"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/samber/mo"
)

type Server struct {
	e *echo.Echo
}

var _ web.Server = (*Server)(nil)

func New(h *web.Handler) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator:    uuid.NewString,
		TargetHeader: web.HeaderRequestID,
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger := h.Logger(v.RequestID)
			logger.Info().
				Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("dur", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.RateLimiterWithConfig(rateLimiterConfig(h)))

	e.GET(web.PathPage, func(c echo.Context) error {
		return write(c, h.Page(c.Request().Context()))
	})
	e.POST(web.PathPage, func(c echo.Context) error {
		form, err := c.FormParams()
		if err != nil {
			form = nil
		}
		return write(c, h.SubmitForm(c.Request().Context(), form, requestID(c)))
	})
	e.GET(web.PathOrders, func(c echo.Context) error {
		return write(c, h.Recent(c.Request().Context(), c.QueryParams()))
	})
	e.POST(web.PathOrders, func(c echo.Context) error {
		bts := mo.TupleToResult(io.ReadAll(c.Request().Body))
		if bts.IsError() {
			return c.JSON(http.StatusBadRequest, web.ErrorBody{Errors: []string{"failed to read request body"}})
		}
		return write(c, h.SubmitJSON(c.Request().Context(), bts.MustGet(), requestID(c)))
	})
	e.GET(web.PathHealth, func(c echo.Context) error {
		return write(c, h.Health(c.Request().Context()))
	})
	return &Server{e: e}
}

// rateLimiterConfig limits submissions per client IP with echo's own limiter,
// sized like the handler's.
func rateLimiterConfig(h *web.Handler) middleware.RateLimiterConfig {
	limit, burst := h.Limiter().Rate()
	deny := func(c echo.Context, _ string, _ error) error {
		return write(c, h.RateLimited(c.Request().Context(), web.IsHTML(c.Path())))
	}
	return middleware.RateLimiterConfig{
		Skipper: func(c echo.Context) bool {
			return c.Request().Method != http.MethodPost
		},
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      limit,
				Burst:     burst,
				ExpiresIn: 3 * time.Minute,
			}),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return deny(c, "", err)
		},
		DenyHandler: deny,
	}
}

// Handler exposes the routes as a plain http.Handler.
func (s *Server) Handler() http.Handler {
	return s.e
}

func (s *Server) Serve(addr string) error {
	if err := s.e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func requestID(c echo.Context) string {
	return c.Response().Header().Get(echo.HeaderXRequestID)
}

func write(c echo.Context, r web.Reply) error {
	if r.HTML != nil {
		return c.HTMLBlob(r.Status, r.HTML)
	}
	return c.JSON(r.Status, r.Body)
}
