// Package lottery runs the lottery lifecycle: creation with prize bands,
// entry, the secure draw, prize distribution and non-winner cashback.
//
// Draw lifecycle (monotonic):
//
//	UPCOMING → ACTIVE → DRAWING → COMPLETED
//
// A draw runs in one unit of work holding the lottery row lock, so a
// concurrent draw of the same lottery waits and then fails the
// ACTIVE → DRAWING compare-and-set.
package lottery

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
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
	// EntryCost is the number of chances one entry consumes.
	EntryCost = 5
	// ChancePrizeCount is the number of chances a CHANCE band awards.
	ChancePrizeCount = 2
	// CashbackPercent of each ticket's final price is refunded to non-winners.
	CashbackPercent = 20
	// topEntries is the number of ranked entries returned by Details.
	topEntries = 10
)

// Engine owns the Lottery, LotteryEntry and Prize lifecycle.
type Engine struct {
	store store.Store
	rng   fairness.Source
	pub   notify.Publisher
}

// NewEngine creates a lottery engine. rng must be fairness.Secure() outside
// tests. pub may be nil.
func NewEngine(st store.Store, rng fairness.Source, pub notify.Publisher) *Engine {
	return &Engine{store: st, rng: rng, pub: pub}
}

// PrizeBand describes one rank band of a new lottery.
type PrizeBand struct {
	Type     model.PrizeType  `json:"type"`
	Name     string           `json:"name"`
	RankFrom int              `json:"rank_from"`
	RankTo   int              `json:"rank_to"`
	Value    *decimal.Decimal `json:"value,omitempty"`
}

func cash(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

// DefaultPrizes are the bands every lottery gets unless others are given.
func DefaultPrizes() []PrizeBand {
	return []PrizeBand{
		{Type: model.PrizeCash, Name: "Rank 1 cash prize", RankFrom: 1, RankTo: 1, Value: cash(10_000_000)},
		{Type: model.PrizeCash, Name: "Rank 2 cash prize", RankFrom: 2, RankTo: 2, Value: cash(5_000_000)},
		{Type: model.PrizeCash, Name: "Rank 3 cash prize", RankFrom: 3, RankTo: 3, Value: cash(3_000_000)},
		{Type: model.PrizeCash, Name: "Rank 4 cash prize", RankFrom: 4, RankTo: 4, Value: cash(2_000_000)},
		{Type: model.PrizeCar, Name: "Car", RankFrom: 5, RankTo: 5},
		{Type: model.PrizeGold, Name: "9 grams of gold", RankFrom: 6, RankTo: 10},
		{Type: model.PrizeGold, Name: "2 grams of gold", RankFrom: 11, RankTo: 100},
		{Type: model.PrizeChance, Name: "2 wheel chances", RankFrom: 101, RankTo: 1000},
	}
}

// validateBands checks bands are well formed and do not overlap. bands must
// be sorted by RankFrom.
func validateBands(bands []PrizeBand) error {
	prevTo := 0
	for _, b := range bands {
		switch b.Type {
		case model.PrizeCash, model.PrizeCar, model.PrizeGold, model.PrizeChance:
		default:
			return fmt.Errorf("prize type %q: %w", b.Type, model.ErrInvalidArgument)
		}
		if b.RankFrom < 1 || b.RankTo < b.RankFrom {
			return fmt.Errorf("prize band [%d,%d]: %w", b.RankFrom, b.RankTo, model.ErrInvalidArgument)
		}
		if b.RankFrom <= prevTo {
			return fmt.Errorf("prize band [%d,%d] overlaps previous band: %w", b.RankFrom, b.RankTo, model.ErrInvalidArgument)
		}
		if b.Type == model.PrizeCash && (b.Value == nil || !b.Value.IsPositive()) {
			return fmt.Errorf("cash band [%d,%d] needs a positive value: %w", b.RankFrom, b.RankTo, model.ErrInvalidArgument)
		}
		prevTo = b.RankTo
	}
	return nil
}

// CreateInput is the admin request to schedule a lottery.
type CreateInput struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	StartDate   time.Time   `json:"start_date"`
	EndDate     time.Time   `json:"end_date"`
	DrawDate    *time.Time  `json:"draw_date,omitempty"`
	MaxEntries  *int        `json:"max_entries,omitempty"`
	Prizes      []PrizeBand `json:"prizes,omitempty"`
}

// Create schedules an UPCOMING lottery with its prize bands.
func (e *Engine) Create(ctx context.Context, in CreateInput) (*model.Lottery, []model.Prize, error) {
	if in.Title == "" {
		return nil, nil, fmt.Errorf("title is required: %w", model.ErrInvalidArgument)
	}
	if !in.EndDate.After(in.StartDate) {
		return nil, nil, fmt.Errorf("end date must follow start date: %w", model.ErrInvalidArgument)
	}
	if in.MaxEntries != nil && *in.MaxEntries < 1 {
		return nil, nil, fmt.Errorf("max entries %d: %w", *in.MaxEntries, model.ErrInvalidArgument)
	}
	bands := slices.Clone(in.Prizes)
	if len(bands) == 0 {
		bands = DefaultPrizes()
	}
	slices.SortFunc(bands, func(a, b PrizeBand) int { return cmp.Compare(a.RankFrom, b.RankFrom) })
	if err := validateBands(bands); err != nil {
		return nil, nil, err
	}

	l := &model.Lottery{
		ID:          uuid.New().String(),
		Title:       in.Title,
		Description: in.Description,
		Status:      model.LotteryUpcoming,
		StartDate:   in.StartDate.UTC(),
		EndDate:     in.EndDate.UTC(),
		DrawDate:    in.DrawDate,
		MaxEntries:  in.MaxEntries,
		CreatedAt:   time.Now().UTC(),
	}
	prizes := make([]model.Prize, 0, len(bands))
	err := e.store.InTx(ctx, func(q store.Queries) error {
		if err := q.InsertLottery(ctx, l); err != nil {
			return err
		}
		for _, b := range bands {
			p := model.Prize{
				ID:        uuid.New().String(),
				LotteryID: l.ID,
				Type:      b.Type,
				Name:      b.Name,
				RankFrom:  b.RankFrom,
				RankTo:    b.RankTo,
				Value:     b.Value,
			}
			if err := q.InsertPrize(ctx, &p); err != nil {
				return err
			}
			prizes = append(prizes, p)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("lottery created", "lottery_id", l.ID, "title", l.Title, "bands", len(prizes))
	return l, prizes, nil
}

// Activate opens an UPCOMING lottery for entries.
func (e *Engine) Activate(ctx context.Context, lotteryID string) (*model.Lottery, error) {
	var l *model.Lottery
	err := e.store.InTx(ctx, func(q store.Queries) error {
		if err := q.TransitionLottery(ctx, lotteryID, model.LotteryUpcoming, model.LotteryActive, nil); err != nil {
			return err
		}
		var err error
		l, err = q.GetLottery(ctx, lotteryID)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("lottery activated", "lottery_id", lotteryID)
	return l, nil
}

// Enter spends EntryCost chances and records the user's single entry. The
// whole operation is one unit of work: a failed entry spends no chances.
func (e *Engine) Enter(ctx context.Context, userID, lotteryID string) (*model.LotteryEntry, error) {
	var entry *model.LotteryEntry
	err := e.store.InTx(ctx, func(q store.Queries) error {
		// Lottery row first, then the wallet row: the draw uses the same order.
		l, err := q.LockLottery(ctx, lotteryID)
		if err != nil {
			return err
		}
		if l.Status != model.LotteryActive {
			return fmt.Errorf("lottery %s is %s: %w", lotteryID, l.Status, model.ErrInvalidState)
		}
		switch _, err := q.GetEntry(ctx, lotteryID, userID); {
		case err == nil:
			return fmt.Errorf("user %s already entered %s: %w", userID, lotteryID, model.ErrDuplicateEntry)
		case !errors.Is(err, model.ErrNotFound):
			return err
		}
		if l.MaxEntries != nil {
			n, err := q.CountEntries(ctx, lotteryID)
			if err != nil {
				return err
			}
			if n >= *l.MaxEntries {
				return fmt.Errorf("lottery %s has %d entries: %w", lotteryID, n, model.ErrLotteryFull)
			}
		}

		if _, err := chance.ConsumeTx(ctx, q, userID, EntryCost, model.UsedForLottery); err != nil {
			return err
		}

		entry = &model.LotteryEntry{
			ID:          uuid.New().String(),
			LotteryID:   lotteryID,
			UserID:      userID,
			ChancesUsed: EntryCost,
			CreatedAt:   time.Now().UTC(),
		}
		// The unique constraint is the final arbiter against racing entries.
		return q.InsertEntry(ctx, entry)
	})
	if err != nil {
		return nil, err
	}
	metrics.LotteryEntries.Inc()
	slog.Info("lottery entered", "lottery_id", lotteryID, "user", userID, "entry_id", entry.ID)
	return entry, nil
}

// DrawResult summarizes a completed draw.
type DrawResult struct {
	LotteryID      string    `json:"lottery_id"`
	TotalEntries   int       `json:"total_entries"`
	Winners        int       `json:"winners"`
	CashbackPaid   int       `json:"cashback_tickets"`
	CashbackAmount string    `json:"cashback_amount"`
	DrawnAt        time.Time `json:"drawn_at"`
}

// Draw ranks every entry with a secure shuffle, pays the prize bands, pays
// cashback to non-winners and completes the lottery.
func (e *Engine) Draw(ctx context.Context, lotteryID string) (*DrawResult, error) {
	start := time.Now()
	res := &DrawResult{LotteryID: lotteryID}
	var paid []*model.Transaction

	err := e.store.InTx(ctx, func(q store.Queries) error {
		paid = paid[:0]
		l, err := q.LockLottery(ctx, lotteryID)
		if err != nil {
			return err
		}
		if l.Status != model.LotteryActive {
			return fmt.Errorf("lottery %s is %s: %w", lotteryID, l.Status, model.ErrInvalidState)
		}
		if err := q.TransitionLottery(ctx, lotteryID, model.LotteryActive, model.LotteryDrawing, nil); err != nil {
			return err
		}

		entries, err := q.ListEntries(ctx, lotteryID)
		if err != nil {
			return err
		}
		res.TotalEntries = len(entries)

		if len(entries) > 0 {
			fairness.Shuffle(e.rng, entries)
			for i := range entries {
				rank := i + 1
				if err := q.SetEntryRank(ctx, entries[i].ID, rank); err != nil {
					return err
				}
				entries[i].Rank = &rank
			}

			txs, winners, err := distribute(ctx, q, lotteryID, entries)
			if err != nil {
				return err
			}
			paid = append(paid, txs...)
			res.Winners = winners

			txs, err = payCashbackTx(ctx, q, lotteryID, entries)
			if err != nil {
				return err
			}
			paid = append(paid, txs...)
			res.CashbackPaid, res.CashbackAmount = cashbackTotals(txs)
		} else {
			res.CashbackAmount = "0"
		}

		res.DrawnAt = time.Now().UTC()
		return q.TransitionLottery(ctx, lotteryID, model.LotteryDrawing, model.LotteryCompleted, &res.DrawnAt)
	})
	if err != nil {
		return nil, err
	}

	for _, t := range paid {
		ledger.Observe(t)
	}
	metrics.DrawLatency.Observe(time.Since(start).Seconds())
	metrics.DrawnEntries.Add(float64(res.TotalEntries))
	slog.Info("lottery drawn",
		"lottery_id", lotteryID,
		"entries", res.TotalEntries,
		"winners", res.Winners,
		"cashback_tickets", res.CashbackPaid,
		"cashback_amount", res.CashbackAmount,
	)
	notify.Publish(ctx, e.pub, notify.EventDrawCompleted, res)
	return res, nil
}

// distribute links ranked entries to their prize band and pays automated
// prizes. entries must be ranked and ordered by rank.
func distribute(ctx context.Context, q store.Queries, lotteryID string, entries []model.LotteryEntry) ([]*model.Transaction, int, error) {
	prizes, err := q.ListPrizes(ctx, lotteryID)
	if err != nil {
		return nil, 0, err
	}

	var paid []*model.Transaction
	winners := 0
	for _, p := range prizes {
		for rank := p.RankFrom; rank <= p.RankTo && rank <= len(entries); rank++ {
			en := &entries[rank-1]
			if err := q.SetEntryPrize(ctx, en.ID, p.ID); err != nil {
				return nil, 0, err
			}
			en.PrizeID = p.ID
			winners++

			switch p.Type {
			case model.PrizeCash:
				if p.Value == nil || !p.Value.IsPositive() {
					continue
				}
				t, err := ledger.CreditTx(ctx, q, en.UserID, *p.Value, model.TxPrize, map[string]string{
					"lottery_id": lotteryID,
					"prize_id":   p.ID,
					"rank":       strconv.Itoa(rank),
				})
				if err != nil {
					return nil, 0, err
				}
				paid = append(paid, t)
			case model.PrizeChance:
				if _, err := q.LockWallet(ctx, en.UserID); err != nil {
					return nil, 0, err
				}
				for i := 0; i < ChancePrizeCount; i++ {
					if _, err := chance.GrantTx(ctx, q, en.UserID, model.SourcePrize, lotteryID); err != nil {
						return nil, 0, err
					}
				}
			default:
				// CAR and GOLD are fulfilled manually by an admin.
			}
		}
	}
	return paid, winners, nil
}

var cashbackRate = decimal.NewFromInt(CashbackPercent).Div(decimal.NewFromInt(100))

// payCashbackTx refunds CashbackPercent of every uncashed ticket the
// non-winning entrants bought for the lottery. The per-ticket flag makes it
// safe to run more than once.
func payCashbackTx(ctx context.Context, q store.Queries, lotteryID string, entries []model.LotteryEntry) ([]*model.Transaction, error) {
	var paid []*model.Transaction
	for _, en := range entries {
		if en.PrizeID != "" {
			continue
		}
		if _, err := q.LockWallet(ctx, en.UserID); err != nil {
			return nil, err
		}
		tickets, err := q.UncashedTickets(ctx, lotteryID, en.UserID)
		if err != nil {
			return nil, err
		}
		for _, tk := range tickets {
			ok, err := q.MarkCashbackGiven(ctx, tk.ID)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			amount := tk.FinalPrice.Mul(cashbackRate)
			if !amount.IsPositive() {
				continue
			}
			t, err := ledger.CreditTx(ctx, q, en.UserID, amount, model.TxCashback, map[string]string{
				"lottery_id": lotteryID,
				"ticket_id":  tk.ID,
			})
			if err != nil {
				return nil, err
			}
			paid = append(paid, t)
		}
	}
	return paid, nil
}

func cashbackTotals(txs []*model.Transaction) (int, string) {
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.Amount)
	}
	return len(txs), total.String()
}

// CashbackResult reports a standalone cashback run.
type CashbackResult struct {
	LotteryID string `json:"lottery_id"`
	Tickets   int    `json:"tickets"`
	Amount    string `json:"amount"`
}

// PayCashback runs the non-winner cashback step for a completed lottery.
// Tickets already refunded are skipped, so repeated runs pay nothing twice.
func (e *Engine) PayCashback(ctx context.Context, lotteryID string) (*CashbackResult, error) {
	var paid []*model.Transaction
	err := e.store.InTx(ctx, func(q store.Queries) error {
		l, err := q.LockLottery(ctx, lotteryID)
		if err != nil {
			return err
		}
		if l.Status != model.LotteryCompleted {
			return fmt.Errorf("lottery %s is %s: %w", lotteryID, l.Status, model.ErrInvalidState)
		}
		entries, err := q.ListEntries(ctx, lotteryID)
		if err != nil {
			return err
		}
		paid, err = payCashbackTx(ctx, q, lotteryID, entries)
		return err
	})
	if err != nil {
		return nil, err
	}
	for _, t := range paid {
		ledger.Observe(t)
	}
	n, amount := cashbackTotals(paid)
	slog.Info("cashback paid", "lottery_id", lotteryID, "tickets", n, "amount", amount)
	return &CashbackResult{LotteryID: lotteryID, Tickets: n, Amount: amount}, nil
}
