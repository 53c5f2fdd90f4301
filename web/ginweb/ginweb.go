// Package ginweb serves the order desk on gin.
package ginweb

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kcmvp/orderdesk/web"
	"github.com/samber/mo"
)

const requestIDKey = "request_id"

type Server struct {
	engine *gin.Engine
	srv    *http.Server
}

var _ web.Server = (*Server)(nil)

func New(h *web.Handler) *Server {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestID(), accessLog(h))

	r.GET(web.PathPage, func(c *gin.Context) {
		write(c, h.Page(c.Request.Context()))
	})
	r.POST(web.PathPage, rateLimit(h), func(c *gin.Context) {
		if err := c.Request.ParseForm(); err != nil {
			write(c, h.SubmitForm(c.Request.Context(), nil, c.GetString(requestIDKey)))
			return
		}
		write(c, h.SubmitForm(c.Request.Context(), c.Request.PostForm, c.GetString(requestIDKey)))
	})
	r.GET(web.PathOrders, func(c *gin.Context) {
		write(c, h.Recent(c.Request.Context(), c.Request.URL.Query()))
	})
	r.POST(web.PathOrders, rateLimit(h), func(c *gin.Context) {
		bts := mo.TupleToResult[[]byte](io.ReadAll(c.Request.Body))
		if bts.IsError() {
			c.AbortWithStatusJSON(http.StatusBadRequest, web.ErrorBody{Errors: []string{bts.Error().Error()}})
			return
		}
		write(c, h.SubmitJSON(c.Request.Context(), bts.MustGet(), c.GetString(requestIDKey)))
	})
	r.GET(web.PathHealth, func(c *gin.Context) {
		write(c, h.Health(c.Request.Context()))
	})

	return &Server{
		engine: r,
		srv:    &http.Server{Handler: r, ReadHeaderTimeout: 10 * time.Second},
	}
}

// Handler exposes the routes as a plain http.Handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) Serve(addr string) error {
	s.srv.Addr = addr
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func write(c *gin.Context, r web.Reply) {
	if r.HTML != nil {
		c.Data(r.Status, web.MIMEHTML, r.HTML)
		return
	}
	c.JSON(r.Status, r.Body)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := web.RequestID(c.GetHeader(web.HeaderRequestID))
		c.Set(requestIDKey, id)
		c.Header(web.HeaderRequestID, id)
		c.Next()
	}
}

func rateLimit(h *web.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.Limiter().Allow(c.ClientIP()) {
			c.Next()
			return
		}
		write(c, h.RateLimited(c.Request.Context(), web.IsHTML(c.FullPath())))
		c.Abort()
	}
}

func accessLog(h *web.Handler) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger := h.Logger(c.GetString(requestIDKey))
		logger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("dur", time.Since(start)).
			Msg("request")
	}
}
