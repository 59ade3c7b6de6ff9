// Package settings serves admin-managed key/value configuration.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
)

// KeyTicketBasePrice holds the undiscounted price of one ticket.
const KeyTicketBasePrice = "ticket_base_price"

// Service reads and writes settings.
type Service struct {
	store            store.Store
	defaultBasePrice decimal.Decimal
}

// NewService creates a settings service. defaultBasePrice applies while the
// ticket price has never been set.
func NewService(st store.Store, defaultBasePrice decimal.Decimal) *Service {
	return &Service{store: st, defaultBasePrice: defaultBasePrice}
}

// Get returns the setting stored under key.
func (s *Service) Get(ctx context.Context, key string) (*model.Setting, error) {
	var st *model.Setting
	err := s.store.View(ctx, func(q store.Queries) error {
		var err error
		st, err = q.GetSetting(ctx, key)
		return err
	})
	return st, err
}

// Set creates or replaces a setting.
func (s *Service) Set(ctx context.Context, key, value, description, updatedBy string) (*model.Setting, error) {
	if key == "" {
		return nil, fmt.Errorf("setting key: %w", model.ErrInvalidArgument)
	}
	st := &model.Setting{
		Key:         key,
		Value:       value,
		Description: description,
		UpdatedBy:   updatedBy,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := s.store.InTx(ctx, func(q store.Queries) error {
		return q.PutSetting(ctx, st)
	}); err != nil {
		return nil, err
	}
	slog.Info("setting updated", "key", key, "value", value, "by", updatedBy)
	return st, nil
}

// TicketBasePrice returns the configured ticket price, or the default.
func (s *Service) TicketBasePrice(ctx context.Context) (decimal.Decimal, error) {
	st, err := s.Get(ctx, KeyTicketBasePrice)
	if errors.Is(err, model.ErrNotFound) {
		return s.defaultBasePrice, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	price, err := decimal.NewFromString(st.Value)
	if err != nil {
		slog.Warn("malformed ticket base price, using default", "value", st.Value, "err", err)
		return s.defaultBasePrice, nil
	}
	return price, nil
}

// SetTicketBasePrice updates the ticket price.
func (s *Service) SetTicketBasePrice(ctx context.Context, price decimal.Decimal, updatedBy string) (*model.Setting, error) {
	if !price.IsPositive() {
		return nil, fmt.Errorf("ticket price %s must be positive: %w", price, model.ErrInvalidArgument)
	}
	return s.Set(ctx, KeyTicketBasePrice, price.String(), "Base price of one ticket", updatedBy)
}
