// Package ticket prices and sells lottery tickets. Each ticket grants one
// chance.
package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luckyspin/rewards-engine/internal/chance"
	"github.com/luckyspin/rewards-engine/internal/ledger"
	"github.com/luckyspin/rewards-engine/internal/metrics"
	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
)

// MaxPerPurchase bounds a single purchase.
const MaxPerPurchase = 100

var hundred = decimal.NewFromInt(100)

// Price returns the price of the index-th ticket (1-based) in one purchase
// and the discount applied.
func Price(base decimal.Decimal, index int) (decimal.Decimal, int) {
	var pct int
	switch {
	case index <= 1:
		pct = 0
	case index == 2:
		pct = 20
	case index == 3:
		pct = 30
	default:
		pct = 40
	}
	return base.Mul(decimal.NewFromInt(int64(100 - pct))).Div(hundred), pct
}

// Quote is the total price of n tickets bought together.
func Quote(base decimal.Decimal, n int) decimal.Decimal {
	total := decimal.Zero
	for i := 1; i <= n; i++ {
		p, _ := Price(base, i)
		total = total.Add(p)
	}
	return total
}

// PriceSource supplies the current base price.
type PriceSource interface {
	TicketBasePrice(ctx context.Context) (decimal.Decimal, error)
}

// Receipt is the outcome of a purchase.
type Receipt struct {
	Tickets        []model.Ticket     `json:"tickets"`
	TotalPrice     decimal.Decimal    `json:"total_price"`
	ChancesGranted int                `json:"chances_granted"`
	Transaction    *model.Transaction `json:"transaction"`
}

// Service sells tickets.
type Service struct {
	store  store.Store
	prices PriceSource
}

// NewService creates a ticket service.
func NewService(st store.Store, prices PriceSource) *Service {
	return &Service{store: st, prices: prices}
}

// Quote prices n tickets at the current base price.
func (s *Service) Quote(ctx context.Context, n int) (decimal.Decimal, decimal.Decimal, error) {
	if n < 1 || n > MaxPerPurchase {
		return decimal.Zero, decimal.Zero, fmt.Errorf("ticket count %d: %w", n, model.ErrInvalidArgument)
	}
	base, err := s.prices.TicketBasePrice(ctx)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return base, Quote(base, n), nil
}

// Purchase debits the quoted total, creates n tickets and grants one chance
// per ticket, all in one unit of work. lotteryID is optional.
func (s *Service) Purchase(ctx context.Context, userID string, n int, lotteryID string) (*Receipt, error) {
	base, total, err := s.Quote(ctx, n)
	if err != nil {
		return nil, err
	}

	rc := &Receipt{TotalPrice: total, ChancesGranted: n}
	err = s.store.InTx(ctx, func(q store.Queries) error {
		// Lottery before wallet, the same lock order as entry and draw.
		if lotteryID != "" {
			l, err := q.LockLottery(ctx, lotteryID)
			if err != nil {
				return err
			}
			if l.Status == model.LotteryDrawing || l.Status == model.LotteryCompleted {
				return fmt.Errorf("lottery %s is %s: %w", lotteryID, l.Status, model.ErrInvalidState)
			}
		}

		// DebitTx checks the balance before anything is written.
		tx, err := ledger.DebitTx(ctx, q, userID, total, model.TxTicketPurchase, map[string]string{
			"count":      strconv.Itoa(n),
			"lottery_id": lotteryID,
		})
		if err != nil {
			return err
		}
		rc.Transaction = tx

		now := time.Now().UTC()
		rc.Tickets = make([]model.Ticket, 0, n)
		for i := 1; i <= n; i++ {
			price, pct := Price(base, i)
			t := model.Ticket{
				ID:              uuid.New().String(),
				UserID:          userID,
				LotteryID:       lotteryID,
				BasePrice:       base,
				DiscountPercent: pct,
				FinalPrice:      price,
				ChanceGranted:   true,
				CreatedAt:       now,
			}
			if err := q.InsertTicket(ctx, &t); err != nil {
				return err
			}
			if _, err := chance.GrantTx(ctx, q, userID, model.SourceTicket, t.ID); err != nil {
				return err
			}
			rc.Tickets = append(rc.Tickets, t)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ledger.Observe(rc.Transaction)
	metrics.TicketsSold.Add(float64(n))
	slog.Info("tickets purchased",
		"user", userID,
		"count", n,
		"lottery_id", lotteryID,
		"total", total.String(),
	)
	return rc, nil
}

// UserTickets lists the user's tickets, optionally for one lottery.
func (s *Service) UserTickets(ctx context.Context, userID, lotteryID string) ([]model.Ticket, error) {
	var out []model.Ticket
	err := s.store.View(ctx, func(q store.Queries) error {
		var err error
		out, err = q.ListTickets(ctx, userID, lotteryID)
		return err
	})
	if out == nil {
		out = []model.Ticket{}
	}
	return out, err
}
