// Package chance owns the consumable chance tokens spent on games.
package chance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/luckyspin/rewards-engine/internal/metrics"
	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
)

// Result reports a successful consumption.
type Result struct {
	Consumed  int `json:"consumed"`
	Remaining int `json:"remaining"`
}

// Bank grants and consumes chances.
type Bank struct {
	store store.Store
}

// NewBank creates a chance bank over st.
func NewBank(st store.Store) *Bank {
	return &Bank{store: st}
}

// GrantTx creates an unused chance inside an open unit of work.
func GrantTx(ctx context.Context, q store.Queries, userID, source, sourceID string) (*model.Chance, error) {
	c := &model.Chance{
		ID:        uuid.New().String(),
		UserID:    userID,
		Source:    source,
		SourceID:  sourceID,
		CreatedAt: time.Now().UTC(),
	}
	if err := q.InsertChance(ctx, c); err != nil {
		return nil, err
	}
	metrics.ChancesGranted.WithLabelValues(source).Inc()
	return c, nil
}

// ConsumeTx marks the count oldest unused chances as used. The caller's unit
// of work must not have written anything it cannot roll back: on
// ErrInsufficientChances nothing is marked.
func ConsumeTx(ctx context.Context, q store.Queries, userID string, count int, usedFor string) (Result, error) {
	if count <= 0 {
		return Result{}, fmt.Errorf("consume %d chances: %w", count, model.ErrInvalidArgument)
	}
	// The wallet row lock serializes every chance mutation for the user.
	if _, err := q.LockWallet(ctx, userID); err != nil {
		return Result{}, err
	}
	sum, err := q.ChanceSummary(ctx, userID)
	if err != nil {
		return Result{}, err
	}
	if sum.Available < count {
		return Result{}, fmt.Errorf("need %d chances, have %d: %w", count, sum.Available, model.ErrInsufficientChances)
	}

	ids, err := q.OldestUnusedChances(ctx, userID, count)
	if err != nil {
		return Result{}, err
	}
	n, err := q.MarkChancesUsed(ctx, ids, usedFor, time.Now().UTC())
	if err != nil {
		return Result{}, err
	}
	if n != count {
		return Result{}, fmt.Errorf("marked %d of %d chances: %w", n, count, model.ErrInsufficientChances)
	}
	metrics.ChancesConsumed.WithLabelValues(usedFor).Add(float64(count))
	return Result{Consumed: count, Remaining: sum.Available - count}, nil
}

// Grant creates an unused chance for userID.
func (b *Bank) Grant(ctx context.Context, userID, source, sourceID string) (*model.Chance, error) {
	var c *model.Chance
	err := b.store.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockWallet(ctx, userID); err != nil {
			return err
		}
		var err error
		c, err = GrantTx(ctx, q, userID, source, sourceID)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("chance granted", "user", userID, "source", source, "source_id", sourceID)
	return c, nil
}

// Available counts the user's unused chances.
func (b *Bank) Available(ctx context.Context, userID string) (int, error) {
	sum, err := b.Summary(ctx, userID)
	return sum.Available, err
}

// Consume spends count chances, oldest first, all or nothing.
func (b *Bank) Consume(ctx context.Context, userID string, count int, usedFor string) (Result, error) {
	var res Result
	err := b.store.InTx(ctx, func(q store.Queries) error {
		var err error
		res, err = ConsumeTx(ctx, q, userID, count, usedFor)
		return err
	})
	return res, err
}

// Summary returns total, used and available counts.
func (b *Bank) Summary(ctx context.Context, userID string) (model.ChanceSummary, error) {
	var sum model.ChanceSummary
	err := b.store.View(ctx, func(q store.Queries) error {
		var err error
		sum, err = q.ChanceSummary(ctx, userID)
		return err
	})
	return sum, err
}

// History pages through the user's chances, newest first.
func (b *Bank) History(ctx context.Context, userID string, p model.Page) ([]model.Chance, model.Pagination, error) {
	var (
		list  []model.Chance
		total int
	)
	err := b.store.View(ctx, func(q store.Queries) error {
		var err error
		list, total, err = q.ListChances(ctx, userID, p)
		return err
	})
	if err != nil {
		return nil, model.Pagination{}, err
	}
	return list, model.NewPagination(p, total), nil
}
