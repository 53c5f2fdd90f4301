// Package intake runs the order pipeline: clean and validate raw input, persist
// the order when it is valid, and read back the most recent orders.
package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/kcmvp/orderdesk"
	"github.com/kcmvp/orderdesk/entity"
	"github.com/kcmvp/orderdesk/validator"
	"github.com/rs/zerolog"
)

// DefaultLimit is the number of orders shown when the caller does not ask for a specific count.
const DefaultLimit = 50

// ErrUnavailable is returned by Healthy when the repository cannot report its health.
var ErrUnavailable = errors.New("repository health is unknown")

// Repository persists orders. *store.Store satisfies it.
type Repository interface {
	Create(ctx context.Context, order entity.Order) (int64, error)
	ListRecent(ctx context.Context, limit int) ([]entity.Order, error)
}

// Pinger is implemented by repositories that can report whether the database is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Receipt confirms a persisted order.
type Receipt struct {
	OrderID int64        `json:"order_id"`
	Order   entity.Order `json:"order"`
}

// Service is safe for concurrent use when its Repository is.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger.With().Str("component", "intake").Logger()}
}

// Submit validates the raw input from src and, only when it is valid, creates the order.
// A validation failure is returned as *orderdesk.ValidationError and the repository is not called.
// Persistence failures are logged and returned unchanged, so callers can classify them.
func (s *Service) Submit(ctx context.Context, src orderdesk.Source) (Receipt, error) {
	res := validator.ValidateSource(src)
	if res.IsError() {
		s.logger.Debug().Strs("errors", validator.Messages(res.Error())).Msg("order rejected")
		return Receipt{}, res.Error()
	}
	order := res.MustGet()
	id, err := s.repo.Create(ctx, order)
	if err != nil {
		s.logger.Error().Err(err).Str("email", order.Email).Msg("order not saved")
		return Receipt{}, err
	}
	order.OrderID = id
	s.logger.Info().Int64("order_id", id).Msg("order saved")
	return Receipt{OrderID: id, Order: order}, nil
}

// SubmitDraft is Submit for a Draft.
func (s *Service) SubmitDraft(ctx context.Context, draft validator.Draft) (Receipt, error) {
	return s.Submit(ctx, draft.Source())
}

// Recent returns at most limit orders, newest first. A limit of 0 means DefaultLimit.
func (s *Service) Recent(ctx context.Context, limit int) ([]entity.Order, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	orders, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		s.logger.Error().Err(err).Int("limit", limit).Msg("recent orders unavailable")
		return nil, err
	}
	return orders, nil
}

// Healthy pings the repository.
func (s *Service) Healthy(ctx context.Context) error {
	p, ok := s.repo.(Pinger)
	if !ok {
		return ErrUnavailable
	}
	if err := p.Ping(ctx); err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	return nil
}
