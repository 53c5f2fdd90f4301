// Package web holds the order desk routes independent of the HTTP engine.
// The ginweb, echoweb and fiberweb packages mount them on a concrete engine.
package web

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/kcmvp/orderdesk"
	"github.com/kcmvp/orderdesk/constraint"
	"github.com/kcmvp/orderdesk/entity"
	"github.com/kcmvp/orderdesk/intake"
	"github.com/kcmvp/orderdesk/store"
	"github.com/kcmvp/orderdesk/validator"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

// Routes served by every engine.
const (
	PathPage   = "/"
	PathOrders = "/api/orders"
	PathHealth = "/healthz"

	HeaderRequestID = "X-Request-ID"
	MIMEHTML        = "text/html; charset=utf-8"
)

// MaxLimit caps the number of orders one listing may return.
const MaxLimit = 500

// User facing messages.
const (
	MsgSaved         = "Order saved successfully!"
	MsgNoRecords     = "No records yet."
	MsgListFailed    = "Could not fetch rows from the database."
	MsgUnavailable   = "The database is unavailable, please try again."
	MsgSaveFailed    = "The order could not be saved."
	MsgInvalidJSON   = "Request body is not a valid JSON object"
	MsgInvalidLimit  = "limit must be an integer between 1 and 500"
	MsgRateLimited   = "Too many submissions, please slow down."
	MsgInternalError = "Internal server error"
)

//go:embed templates/page.html
var templates embed.FS

var page = template.Must(template.ParseFS(templates, "templates/page.html"))

var limitField = orderdesk.NewField[int]("limit", constraint.Between(1, MaxLimit)).
	Optional().
	Normalize(validator.NormalizeText).
	Message(MsgInvalidLimit)

// Server is an HTTP engine serving the order desk routes.
type Server interface {
	// Serve blocks until the server stops. A server stopped by Shutdown returns nil.
	Serve(addr string) error
	Shutdown(ctx context.Context) error
}

// IsHTML reports whether a route answers with the HTML page.
func IsHTML(path string) bool {
	return path == PathPage
}

// Options tune the routes.
type Options struct {
	// RecentLimit is the number of orders shown on the page and listed by default.
	RecentLimit int
	// Rate is the number of submissions per second allowed for one client.
	Rate float64
	// Burst is the number of submissions one client may send at once.
	Burst int
}

// OptionsFrom reads the server section of the configuration.
func OptionsFrom(v *viper.Viper) Options {
	return Options{
		RecentLimit: v.GetInt("server.recent_limit"),
		Rate:        v.GetFloat64("server.rate_limit"),
		Burst:       v.GetInt("server.burst"),
	}
}

func (o Options) withDefaults() Options {
	if o.RecentLimit <= 0 || o.RecentLimit > MaxLimit {
		o.RecentLimit = intake.DefaultLimit
	}
	if o.Rate <= 0 {
		o.Rate = 1
	}
	if o.Burst <= 0 {
		o.Burst = 5
	}
	return o
}

// Reply is an engine independent response.
type Reply struct {
	Status int
	// Body is encoded as JSON unless HTML is set.
	Body any
	HTML []byte
}

// ErrorBody is the JSON shape of every failed API call.
type ErrorBody struct {
	Errors []string `json:"errors"`
}

// Handler implements the routes on top of the intake service.
type Handler struct {
	svc     *intake.Service
	opts    Options
	logger  zerolog.Logger
	limiter *Limiter
}

func NewHandler(svc *intake.Service, opts Options, logger zerolog.Logger) *Handler {
	opts = opts.withDefaults()
	return &Handler{
		svc:     svc,
		opts:    opts,
		logger:  logger.With().Str("component", "web").Logger(),
		limiter: NewLimiter(opts.Rate, opts.Burst),
	}
}

func (h *Handler) Options() Options {
	return h.opts
}

// Limiter is the per client limiter guarding submissions.
func (h *Handler) Limiter() *Limiter {
	return h.limiter
}

// Logger returns the logger tagged with the request id.
func (h *Handler) Logger(requestID string) zerolog.Logger {
	return h.logger.With().Str("request_id", requestID).Logger()
}

// RequestID returns the id sent by the client, or a new one.
func RequestID(header string) string {
	if header != "" && len(header) <= 128 {
		return header
	}
	return uuid.NewString()
}

// StatusOf maps an error of the pipeline to an HTTP status.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if _, ok := orderdesk.AsValidationError(err); ok {
		return http.StatusBadRequest
	}
	switch {
	case errors.Is(err, store.ErrInvalidLimit):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrConnection):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// messagesOf returns what the user is told about err. Database details stay in the log.
func messagesOf(err error) []string {
	if msgs := validator.Messages(err); msgs != nil {
		return msgs
	}
	switch StatusOf(err) {
	case http.StatusServiceUnavailable:
		return []string{MsgUnavailable}
	case http.StatusBadRequest:
		return []string{err.Error()}
	default:
		return []string{MsgSaveFailed}
	}
}

// SubmitJSON handles POST /api/orders.
func (h *Handler) SubmitJSON(ctx context.Context, body []byte, requestID string) Reply {
	if !gjson.ValidBytes(body) || !gjson.ParseBytes(body).IsObject() {
		return Reply{Status: http.StatusBadRequest, Body: ErrorBody{Errors: []string{MsgInvalidJSON}}}
	}
	logger := h.Logger(requestID)
	receipt, err := h.svc.Submit(ctx, orderdesk.JSONSource(string(body)))
	if err != nil {
		logger.Warn().Err(err).Msg("submission failed")
		return Reply{Status: StatusOf(err), Body: ErrorBody{Errors: messagesOf(err)}}
	}
	logger.Info().Int64("order_id", receipt.OrderID).Msg("submission saved")
	return Reply{Status: http.StatusCreated, Body: receipt}
}

// Recent handles GET /api/orders?limit=N.
func (h *Handler) Recent(ctx context.Context, query url.Values) Reply {
	res, found := limitField.Validate(orderdesk.ValuesSource(query))
	if res.IsError() {
		return Reply{Status: http.StatusBadRequest, Body: ErrorBody{Errors: []string{MsgInvalidLimit}}}
	}
	limit := h.opts.RecentLimit
	if found {
		limit = res.MustGet()
	}
	orders, err := h.svc.Recent(ctx, limit)
	if err != nil {
		return Reply{Status: StatusOf(err), Body: ErrorBody{Errors: []string{MsgListFailed}}}
	}
	return Reply{Status: http.StatusOK, Body: orders}
}

// Health handles GET /healthz.
func (h *Handler) Health(ctx context.Context) Reply {
	if err := h.svc.Healthy(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("health check failed")
		return Reply{Status: http.StatusServiceUnavailable, Body: map[string]string{"status": "unavailable"}}
	}
	return Reply{Status: http.StatusOK, Body: map[string]string{"status": "ok"}}
}

// Page handles GET /.
func (h *Handler) Page(ctx context.Context) Reply {
	return h.render(ctx, http.StatusOK, pageData{})
}

// SubmitForm handles POST /. The page is rendered again with either the
// confirmation or every problem found, keeping what the user typed on failure.
func (h *Handler) SubmitForm(ctx context.Context, form url.Values, requestID string) Reply {
	logger := h.Logger(requestID)
	receipt, err := h.svc.Submit(ctx, orderdesk.ValuesSource(form))
	if err != nil {
		logger.Warn().Err(err).Msg("form submission failed")
		return h.render(ctx, StatusOf(err), pageData{Errors: messagesOf(err), Form: flatten(form)})
	}
	logger.Info().Int64("order_id", receipt.OrderID).Msg("form submission saved")
	return h.render(ctx, http.StatusOK, pageData{Success: MsgSaved})
}

// RateLimited is the reply for a client over its submission budget.
func (h *Handler) RateLimited(ctx context.Context, html bool) Reply {
	if html {
		return h.render(ctx, http.StatusTooManyRequests, pageData{Errors: []string{MsgRateLimited}})
	}
	return Reply{Status: http.StatusTooManyRequests, Body: ErrorBody{Errors: []string{MsgRateLimited}}}
}

type pageData struct {
	Success   string
	Errors    []string
	Form      map[string]string
	Orders    []entity.Order
	ListError string
}

func (h *Handler) render(ctx context.Context, status int, data pageData) Reply {
	if data.Form == nil {
		data.Form = map[string]string{}
	}
	orders, err := h.svc.Recent(ctx, h.opts.RecentLimit)
	if err != nil {
		data.ListError = MsgListFailed
	}
	data.Orders = orders
	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		h.logger.Error().Err(err).Msg("render page")
		return Reply{Status: http.StatusInternalServerError, HTML: []byte(MsgInternalError)}
	}
	return Reply{Status: status, HTML: buf.Bytes()}
}

func flatten(form url.Values) map[string]string {
	m := make(map[string]string, len(form))
	for k := range form {
		m[k] = form.Get(k)
	}
	return m
}
