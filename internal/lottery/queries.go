package lottery

import (
	"context"
	"errors"

	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
)

// Summary is a lottery with its entry count.
type Summary struct {
	model.Lottery
	Entries int `json:"entries"`
}

// List returns lotteries, optionally filtered by status.
func (e *Engine) List(ctx context.Context, status model.LotteryStatus) ([]Summary, error) {
	var out []Summary
	err := e.store.View(ctx, func(q store.Queries) error {
		ls, err := q.ListLotteries(ctx, status)
		if err != nil {
			return err
		}
		out = make([]Summary, 0, len(ls))
		for _, l := range ls {
			n, err := q.CountEntries(ctx, l.ID)
			if err != nil {
				return err
			}
			out = append(out, Summary{Lottery: l, Entries: n})
		}
		return nil
	})
	return out, err
}

// Details is the public view of one lottery.
type Details struct {
	model.Lottery
	Prizes     []model.Prize        `json:"prizes"`
	TopEntries []model.LotteryEntry `json:"top_entries"`
	Entries    int                  `json:"entries"`
}

// Details returns a lottery with its prize bands, the top ranked entries and
// its entry count.
func (e *Engine) Details(ctx context.Context, lotteryID string) (*Details, error) {
	var d Details
	err := e.store.View(ctx, func(q store.Queries) error {
		l, err := q.GetLottery(ctx, lotteryID)
		if err != nil {
			return err
		}
		d.Lottery = *l
		if d.Prizes, err = q.ListPrizes(ctx, lotteryID); err != nil {
			return err
		}
		entries, err := q.ListEntries(ctx, lotteryID)
		if err != nil {
			return err
		}
		d.Entries = len(entries)
		d.TopEntries = make([]model.LotteryEntry, 0, topEntries)
		for _, en := range entries {
			if en.Rank == nil || len(d.TopEntries) == topEntries {
				break
			}
			d.TopEntries = append(d.TopEntries, en)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// UserEntry returns the user's entry in a lottery, nil if they have not
// entered.
func (e *Engine) UserEntry(ctx context.Context, userID, lotteryID string) (*model.LotteryEntry, error) {
	var entry *model.LotteryEntry
	err := e.store.View(ctx, func(q store.Queries) error {
		if _, err := q.GetLottery(ctx, lotteryID); err != nil {
			return err
		}
		en, err := q.GetEntry(ctx, lotteryID, userID)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		entry = en
		return err
	})
	return entry, err
}

// UserLottery is a lottery annotated with the user's participation.
type UserLottery struct {
	model.Lottery
	HasEntered bool                `json:"has_entered"`
	Entry      *model.LotteryEntry `json:"entry,omitempty"`
}

// UserLotteries lists every lottery, marking those the user entered.
func (e *Engine) UserLotteries(ctx context.Context, userID string) ([]UserLottery, error) {
	var out []UserLottery
	err := e.store.View(ctx, func(q store.Queries) error {
		ls, err := q.ListLotteries(ctx, "")
		if err != nil {
			return err
		}
		entries, err := q.ListUserEntries(ctx, userID)
		if err != nil {
			return err
		}
		byLottery := make(map[string]model.LotteryEntry, len(entries))
		for _, en := range entries {
			byLottery[en.LotteryID] = en
		}
		out = make([]UserLottery, 0, len(ls))
		for _, l := range ls {
			ul := UserLottery{Lottery: l}
			if en, ok := byLottery[l.ID]; ok {
				ul.HasEntered = true
				ul.Entry = &en
			}
			out = append(out, ul)
		}
		return nil
	})
	return out, err
}
