// Package slide implements the number-guess slide game. LIVE plays draw a
// fresh secure target per play; AUTO plays guess the shared round target an
// admin set, and the first correct guess wins the round.
package slide

import (
	"context"
	"errors"
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
	"github.com/luckyspin/rewards-engine/internal/notify"
	"github.com/luckyspin/rewards-engine/internal/store"
)

const (
	// PlayCost is the number of chances one play consumes.
	PlayCost  = 1
	// MinNumber is the lowest number a player may guess.
	MinNumber = 1
	// MaxNumber is the highest number a player may guess.
	MaxNumber = 100
)

// Config holds the payouts and the AUTO round lifetime.
type Config struct {
	LivePayout decimal.Decimal
	AutoPayout decimal.Decimal
	RoundTTL   time.Duration
}

// DefaultConfig returns the standard payouts and a 24h round.
func DefaultConfig() Config {
	return Config{
		LivePayout: decimal.NewFromInt(100_000),
		AutoPayout: decimal.NewFromInt(500_000),
		RoundTTL:   24 * time.Hour,
	}
}

// Engine plays slide games.
type Engine struct {
	store store.Store
	rng   fairness.Source
	pub   notify.Publisher
	cfg   Config
	now   func() time.Time
}

// NewEngine creates a slide engine. pub may be nil.
func NewEngine(st store.Store, rng fairness.Source, pub notify.Publisher, cfg Config) *Engine {
	return &Engine{store: st, rng: rng, pub: pub, cfg: cfg, now: time.Now}
}

func validNumber(n int) error {
	if n < MinNumber || n > MaxNumber {
		return fmt.Errorf("number %d outside [%d,%d]: %w", n, MinNumber, MaxNumber, model.ErrInvalidArgument)
	}
	return nil
}

// Result is the public broadcast of one play.
type Result struct {
	GameID       string          `json:"gameId"`
	UserID       string          `json:"userId"`
	UserNumber   int             `json:"userNumber"`
	TargetNumber int             `json:"targetNumber"`
	IsWinner     bool            `json:"isWinner"`
	Mode         model.SlideMode `json:"mode"`
}

// Play spends one chance on a guess.
func (e *Engine) Play(ctx context.Context, userID string, userNumber int, mode model.SlideMode) (*model.SlideGame, error) {
	if err := validNumber(userNumber); err != nil {
		return nil, err
	}
	if mode != model.SlideLive && mode != model.SlideAuto {
		return nil, fmt.Errorf("slide mode %q: %w", mode, model.ErrInvalidArgument)
	}

	var (
		game *model.SlideGame
		paid *model.Transaction
	)
	err := e.store.InTx(ctx, func(q store.Queries) error {
		paid = nil
		now := e.now().UTC()
		game = &model.SlideGame{
			ID:          uuid.New().String(),
			UserID:      userID,
			Mode:        mode,
			UserNumber:  userNumber,
			ChancesUsed: PlayCost,
			Payout:      decimal.Zero,
			CreatedAt:   now,
		}

		payout := e.cfg.LivePayout
		if mode == model.SlideAuto {
			// Resolve the round before spending anything.
			round, err := q.CurrentSlideRound(ctx, now)
			if errors.Is(err, model.ErrNotFound) {
				return model.ErrNoTargetSet
			}
			if err != nil {
				return err
			}
			game.RoundID = round.ID
			game.TargetNumber = round.TargetNumber
			payout = e.cfg.AutoPayout
		}

		if _, err := chance.ConsumeTx(ctx, q, userID, PlayCost, model.UsedForSlide); err != nil {
			return err
		}
		if mode == model.SlideLive {
			game.TargetNumber = fairness.Between(e.rng, MinNumber, MaxNumber)
		}
		game.IsWinner = game.UserNumber == game.TargetNumber

		if game.IsWinner {
			if mode == model.SlideAuto {
				if err := q.MarkSlideRoundWon(ctx, game.RoundID, userID, now); err != nil {
					return err
				}
			}
			game.Payout = payout
		}
		if err := q.InsertSlideGame(ctx, game); err != nil {
			return err
		}
		if game.IsWinner && payout.IsPositive() {
			var err error
			paid, err = ledger.CreditTx(ctx, q, userID, payout, model.TxPrize, map[string]string{
				"source":  "slide",
				"mode":    string(mode),
				"game_id": game.ID,
			})
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if paid != nil {
		ledger.Observe(paid)
	}
	outcome := "lose"
	if game.IsWinner {
		outcome = "win"
		slog.Info("slide won", "user", userID, "mode", mode, "target", game.TargetNumber, "payout", game.Payout.String())
	}
	metrics.SlidePlays.WithLabelValues(string(mode), outcome).Inc()
	notify.Publish(ctx, e.pub, notify.EventSlideResult, Result{
		GameID:       game.ID,
		UserID:       userID,
		UserNumber:   userNumber,
		TargetNumber: game.TargetNumber,
		IsWinner:     game.IsWinner,
		Mode:         mode,
	})
	return game, nil
}

// SetTarget opens a new AUTO round, superseding any open one.
func (e *Engine) SetTarget(ctx context.Context, target int) (*model.SlideRound, error) {
	if err := validNumber(target); err != nil {
		return nil, err
	}
	now := e.now().UTC()
	r := &model.SlideRound{
		ID:           uuid.New().String(),
		TargetNumber: target,
		CreatedAt:    now,
		ExpiresAt:    now.Add(e.cfg.RoundTTL),
	}
	if err := e.store.InTx(ctx, func(q store.Queries) error {
		return q.InsertSlideRound(ctx, r)
	}); err != nil {
		return nil, err
	}
	slog.Info("slide target set", "round_id", r.ID, "expires_at", r.ExpiresAt)
	notify.Publish(ctx, e.pub, notify.EventNewTarget, map[string]int{"targetNumber": target})
	return r, nil
}

// CurrentTarget returns the open AUTO round, or nil if there is none.
func (e *Engine) CurrentTarget(ctx context.Context) (*model.SlideRound, error) {
	var r *model.SlideRound
	err := e.store.View(ctx, func(q store.Queries) error {
		var err error
		r, err = q.CurrentSlideRound(ctx, e.now().UTC())
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		return err
	})
	return r, err
}

// RecentWinners returns the latest winning plays, newest first.
func (e *Engine) RecentWinners(ctx context.Context, limit int) ([]model.SlideGame, error) {
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	var out []model.SlideGame
	err := e.store.View(ctx, func(q store.Queries) error {
		var err error
		out, err = q.RecentSlideWinners(ctx, limit)
		return err
	})
	return out, err
}

// UserGames returns a user's plays, newest first.
func (e *Engine) UserGames(ctx context.Context, userID string, p model.Page) ([]model.SlideGame, model.Pagination, error) {
	var (
		out   []model.SlideGame
		total int
	)
	err := e.store.View(ctx, func(q store.Queries) error {
		var err error
		out, total, err = q.ListSlideGames(ctx, userID, p)
		return err
	})
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return out, model.NewPagination(p, total), nil
}
