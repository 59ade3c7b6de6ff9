// Package wheel implements the prize wheel: weighted selection over the
// active prize set, paid for with chances.
package wheel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luckyspin/rewards-engine/internal/chance"
	"github.com/luckyspin/rewards-engine/internal/fairness"
	"github.com/luckyspin/rewards-engine/internal/ledger"
	"github.com/luckyspin/rewards-engine/internal/metrics"
	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
)

// SpinCost is the number of chances one spin consumes.
const SpinCost = 2

// Engine spins the wheel and manages its prizes.
type Engine struct {
	store store.Store
	rng   fairness.Source
}

// NewEngine creates a wheel engine. rng must be fairness.Secure() outside
// tests.
func NewEngine(st store.Store, rng fairness.Source) *Engine {
	return &Engine{store: st, rng: rng}
}

// Select picks a prize by cumulative probability. prizes must be ordered by
// Order; r is uniform in [0,1). When the probabilities sum below one and r
// lands past the last bound, the last prize wins.
func Select(prizes []model.WheelPrize, r decimal.Decimal) model.WheelPrize {
	cum := decimal.Zero
	for _, p := range prizes {
		cum = cum.Add(p.Probability)
		if r.LessThan(cum) {
			return p
		}
	}
	return prizes[len(prizes)-1]
}

// SpinResult is the outcome of one spin.
type SpinResult struct {
	Spin      model.WheelSpin  `json:"spin"`
	Prize     model.WheelPrize `json:"prize"`
	Remaining int              `json:"remaining_chances"`
}

// Spin consumes SpinCost chances, draws a prize and pays it out.
func (e *Engine) Spin(ctx context.Context, userID string) (*SpinResult, error) {
	var (
		res  SpinResult
		paid *model.Transaction
	)
	err := e.store.InTx(ctx, func(q store.Queries) error {
		paid = nil
		// An empty wheel must not cost the user anything.
		prizes, err := q.ListWheelPrizes(ctx, true)
		if err != nil {
			return err
		}
		if len(prizes) == 0 {
			return model.ErrNoPrizesConfigured
		}

		consumed, err := chance.ConsumeTx(ctx, q, userID, SpinCost, model.UsedForWheel)
		if err != nil {
			return err
		}
		res.Remaining = consumed.Remaining

		prize := Select(prizes, fairness.Fraction(e.rng))
		res.Prize = prize
		res.Spin = model.WheelSpin{
			ID:          uuid.New().String(),
			UserID:      userID,
			PrizeID:     prize.ID,
			ChancesUsed: SpinCost,
			Result: model.PrizeSnapshot{
				PrizeID: prize.ID,
				Name:    prize.Name,
				Type:    prize.Type,
				Value:   prize.Value,
			},
			CreatedAt: time.Now().UTC(),
		}
		if err := q.InsertWheelSpin(ctx, &res.Spin); err != nil {
			return err
		}

		switch prize.Type {
		case model.PrizeCash:
			if !prize.Value.IsPositive() {
				return nil
			}
			paid, err = ledger.CreditTx(ctx, q, userID, prize.Value, model.TxPrize, map[string]string{
				"source":   "wheel",
				"prize_id": prize.ID,
				"spin_id":  res.Spin.ID,
			})
			return err
		case model.PrizeChance:
			n := int(prize.Value.IntPart())
			for i := 0; i < n; i++ {
				if _, err := chance.GrantTx(ctx, q, userID, model.SourcePrize, prize.ID); err != nil {
					return err
				}
			}
			res.Remaining += n
		default:
			// TICKET and GOLD are fulfilled manually.
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if paid != nil {
		ledger.Observe(paid)
	}
	metrics.WheelSpins.WithLabelValues(string(res.Prize.Type)).Inc()
	slog.Info("wheel spun", "user", userID, "prize", res.Prize.Name, "type", res.Prize.Type)
	return &res, nil
}

// PrizeInput creates a wheel prize.
type PrizeInput struct {
	Name        string          `json:"name"`
	Type        model.PrizeType `json:"type"`
	Value       decimal.Decimal `json:"value"`
	Probability decimal.Decimal `json:"probability"`
	Order       int             `json:"order"`
}

// PrizeUpdate is a partial update; nil fields are left unchanged.
type PrizeUpdate struct {
	Name        *string          `json:"name,omitempty"`
	Type        *model.PrizeType `json:"type,omitempty"`
	Value       *decimal.Decimal `json:"value,omitempty"`
	Probability *decimal.Decimal `json:"probability,omitempty"`
	Order       *int             `json:"order,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

func validatePrize(p *model.WheelPrize) error {
	if p.Name == "" {
		return fmt.Errorf("prize name is required: %w", model.ErrInvalidArgument)
	}
	switch p.Type {
	case model.PrizeCash, model.PrizeChance, model.PrizeTicket, model.PrizeGold:
	default:
		return fmt.Errorf("wheel prize type %q: %w", p.Type, model.ErrInvalidArgument)
	}
	if p.Value.IsNegative() {
		return fmt.Errorf("prize value %s: %w", p.Value, model.ErrInvalidArgument)
	}
	if p.Type == model.PrizeChance && !p.Value.Equal(p.Value.Truncate(0)) {
		return fmt.Errorf("chance prize value %s must be whole: %w", p.Value, model.ErrInvalidArgument)
	}
	if p.Probability.IsNegative() || p.Probability.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("probability %s outside [0,1]: %w", p.Probability, model.ErrInvalidArgument)
	}
	return nil
}

// CreatePrize adds an active prize to the wheel.
func (e *Engine) CreatePrize(ctx context.Context, in PrizeInput) (*model.WheelPrize, error) {
	p := &model.WheelPrize{
		ID:          uuid.New().String(),
		Name:        in.Name,
		Type:        in.Type,
		Value:       in.Value,
		Probability: in.Probability,
		Order:       in.Order,
		IsActive:    true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := validatePrize(p); err != nil {
		return nil, err
	}
	if err := e.store.InTx(ctx, func(q store.Queries) error {
		return q.InsertWheelPrize(ctx, p)
	}); err != nil {
		return nil, err
	}
	slog.Info("wheel prize created", "prize_id", p.ID, "name", p.Name, "probability", p.Probability.String())
	return p, nil
}

// UpdatePrize applies a partial update to a prize.
func (e *Engine) UpdatePrize(ctx context.Context, id string, u PrizeUpdate) (*model.WheelPrize, error) {
	var p *model.WheelPrize
	err := e.store.InTx(ctx, func(q store.Queries) error {
		var err error
		if p, err = q.GetWheelPrize(ctx, id); err != nil {
			return err
		}
		if u.Name != nil {
			p.Name = *u.Name
		}
		if u.Type != nil {
			p.Type = *u.Type
		}
		if u.Value != nil {
			p.Value = *u.Value
		}
		if u.Probability != nil {
			p.Probability = *u.Probability
		}
		if u.Order != nil {
			p.Order = *u.Order
		}
		if u.IsActive != nil {
			p.IsActive = *u.IsActive
		}
		if err := validatePrize(p); err != nil {
			return err
		}
		return q.UpdateWheelPrize(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	slog.Info("wheel prize updated", "prize_id", id)
	return p, nil
}

// ActivePrizes returns the active prize set in wheel order.
func (e *Engine) ActivePrizes(ctx context.Context) ([]model.WheelPrize, error) {
	var out []model.WheelPrize
	err := e.store.View(ctx, func(q store.Queries) error {
		var err error
		out, err = q.ListWheelPrizes(ctx, true)
		return err
	})
	return out, err
}

// UserSpins returns a user's spins, newest first.
func (e *Engine) UserSpins(ctx context.Context, userID string, p model.Page) ([]model.WheelSpin, model.Pagination, error) {
	var (
		out   []model.WheelSpin
		total int
	)
	err := e.store.View(ctx, func(q store.Queries) error {
		var err error
		out, total, err = q.ListWheelSpins(ctx, userID, p)
		return err
	})
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return out, model.NewPagination(p, total), nil
}
