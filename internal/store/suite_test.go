package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
)

// runSuite exercises the behaviour every Store implementation must share.
// newStore must return an empty store.
func runSuite(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("BalanceNeverNegative", func(t *testing.T) { testBalanceNeverNegative(t, newStore(t)) })
	t.Run("RollbackDiscardsWrites", func(t *testing.T) { testRollback(t, newStore(t)) })
	t.Run("ViewIsReadOnly", func(t *testing.T) { testViewReadOnly(t, newStore(t)) })
	t.Run("ChancesFIFO", func(t *testing.T) { testChancesFIFO(t, newStore(t)) })
	t.Run("LotteryTransition", func(t *testing.T) { testLotteryTransition(t, newStore(t)) })
	t.Run("DuplicateEntry", func(t *testing.T) { testDuplicateEntry(t, newStore(t)) })
	t.Run("CashbackFlagOnce", func(t *testing.T) { testCashbackFlag(t, newStore(t)) })
	t.Run("SlideRoundLifecycle", func(t *testing.T) { testSlideRound(t, newStore(t)) })
	t.Run("TransactionFilter", func(t *testing.T) { testTransactionFilter(t, newStore(t)) })
	t.Run("ReferralUniqueness", func(t *testing.T) { testReferralUniqueness(t, newStore(t)) })
	t.Run("Settings", func(t *testing.T) { testSettings(t, newStore(t)) })
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func now() time.Time { return time.Now().UTC().Truncate(time.Microsecond) }

func testBalanceNeverNegative(t *testing.T, s store.Store) {
	ctx := context.Background()

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		if _, err := q.LockWallet(ctx, "u1"); err != nil {
			return err
		}
		return q.AdjustBalance(ctx, "u1", d("100"))
	}))

	err := s.InTx(ctx, func(q store.Queries) error {
		return q.AdjustBalance(ctx, "u1", d("-100.01"))
	})
	assert.ErrorIs(t, err, model.ErrInsufficientFunds)

	require.NoError(t, s.View(ctx, func(q store.Queries) error {
		bal, err := q.GetBalance(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, bal.Equal(d("100")), "balance = %s", bal)

		unknown, err := q.GetBalance(ctx, "nobody")
		require.NoError(t, err)
		assert.True(t, unknown.IsZero())
		return nil
	}))
}

func testRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.InTx(ctx, func(q store.Queries) error {
		if err := q.AdjustBalance(ctx, "u1", d("50")); err != nil {
			return err
		}
		if err := q.InsertChance(ctx, &model.Chance{ID: "c1", UserID: "u1", Source: model.SourceTicket, CreatedAt: now()}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.NoError(t, s.View(ctx, func(q store.Queries) error {
		bal, _ := q.GetBalance(ctx, "u1")
		assert.True(t, bal.IsZero())
		sum, err := q.ChanceSummary(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, 0, sum.Total)
		return nil
	}))
}

func testViewReadOnly(t *testing.T, s store.Store) {
	ctx := context.Background()
	err := s.View(ctx, func(q store.Queries) error {
		return q.AdjustBalance(ctx, "u1", d("1"))
	})
	assert.Error(t, err)
}

func testChancesFIFO(t *testing.T, s store.Store) {
	ctx := context.Background()
	base := now()

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		for i, id := range []string{"a", "b", "c", "d"} {
			c := &model.Chance{ID: id, UserID: "u1", Source: model.SourceTicket, CreatedAt: base.Add(time.Duration(i) * time.Second)}
			if err := q.InsertChance(ctx, c); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		ids, err := q.OldestUnusedChances(ctx, "u1", 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, ids)

		n, err := q.MarkChancesUsed(ctx, ids, model.UsedForWheel, base)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		// Already used rows are not counted twice.
		n, err = q.MarkChancesUsed(ctx, ids, model.UsedForWheel, base)
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		return nil
	}))

	require.NoError(t, s.View(ctx, func(q store.Queries) error {
		sum, err := q.ChanceSummary(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, model.ChanceSummary{Total: 4, Used: 2, Available: 2}, sum)

		ids, err := q.OldestUnusedChances(ctx, "u1", 10)
		require.NoError(t, err)
		assert.Equal(t, []string{"c", "d"}, ids)

		list, total, err := q.ListChances(ctx, "u1", model.Page{Number: 1, Limit: 3})
		require.NoError(t, err)
		assert.Equal(t, 4, total)
		require.Len(t, list, 3)
		assert.Equal(t, "d", list[0].ID, "history is newest first")
		return nil
	}))
}

func seedLottery(t *testing.T, s store.Store, id string, status model.LotteryStatus) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		return q.InsertLottery(ctx, &model.Lottery{
			ID: id, Title: "Weekly", Status: status,
			StartDate: now(), EndDate: now().Add(24 * time.Hour), CreatedAt: now(),
		})
	}))
}

func testLotteryTransition(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedLottery(t, s, "l1", model.LotteryActive)

	drawn := now()
	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		return q.TransitionLottery(ctx, "l1", model.LotteryActive, model.LotteryDrawing, nil)
	}))

	err := s.InTx(ctx, func(q store.Queries) error {
		return q.TransitionLottery(ctx, "l1", model.LotteryActive, model.LotteryDrawing, nil)
	})
	assert.ErrorIs(t, err, model.ErrInvalidState)

	err = s.InTx(ctx, func(q store.Queries) error {
		return q.TransitionLottery(ctx, "missing", model.LotteryActive, model.LotteryDrawing, nil)
	})
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		return q.TransitionLottery(ctx, "l1", model.LotteryDrawing, model.LotteryCompleted, &drawn)
	}))

	require.NoError(t, s.View(ctx, func(q store.Queries) error {
		l, err := q.GetLottery(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, model.LotteryCompleted, l.Status)
		require.NotNil(t, l.DrawDate)
		assert.True(t, l.DrawDate.Equal(drawn))
		return nil
	}))
}

func testDuplicateEntry(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedLottery(t, s, "l1", model.LotteryActive)

	insert := func(id string) error {
		return s.InTx(ctx, func(q store.Queries) error {
			return q.InsertEntry(ctx, &model.LotteryEntry{ID: id, LotteryID: "l1", UserID: "u1", ChancesUsed: 5, CreatedAt: now()})
		})
	}
	require.NoError(t, insert("e1"))
	assert.ErrorIs(t, insert("e2"), model.ErrDuplicateEntry)

	require.NoError(t, s.View(ctx, func(q store.Queries) error {
		n, err := q.CountEntries(ctx, "l1")
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		return nil
	}))
}

func testCashbackFlag(t *testing.T, s store.Store) {
	ctx := context.Background()
	seedLottery(t, s, "l1", model.LotteryActive)

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		return q.InsertTicket(ctx, &model.Ticket{
			ID: "t1", UserID: "u1", LotteryID: "l1",
			BasePrice: d("100000"), FinalPrice: d("100000"), CreatedAt: now(),
		})
	}))

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		ts, err := q.UncashedTickets(ctx, "l1", "u1")
		require.NoError(t, err)
		require.Len(t, ts, 1)

		ok, err := q.MarkCashbackGiven(ctx, "t1")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = q.MarkCashbackGiven(ctx, "t1")
		require.NoError(t, err)
		assert.False(t, ok)
		return nil
	}))

	require.NoError(t, s.View(ctx, func(q store.Queries) error {
		ts, err := q.UncashedTickets(ctx, "l1", "u1")
		require.NoError(t, err)
		assert.Empty(t, ts)
		return nil
	}))
}

func testSlideRound(t *testing.T, s store.Store) {
	ctx := context.Background()
	at := now()

	err := s.InTx(ctx, func(q store.Queries) error {
		_, err := q.CurrentSlideRound(ctx, at)
		return err
	})
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		if err := q.InsertSlideRound(ctx, &model.SlideRound{ID: "r1", TargetNumber: 10, CreatedAt: at, ExpiresAt: at.Add(time.Hour)}); err != nil {
			return err
		}
		return q.InsertSlideRound(ctx, &model.SlideRound{ID: "r2", TargetNumber: 42, CreatedAt: at.Add(time.Second), ExpiresAt: at.Add(time.Hour)})
	}))

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		r, err := q.CurrentSlideRound(ctx, at.Add(2*time.Second))
		require.NoError(t, err)
		assert.Equal(t, "r2", r.ID)
		assert.Equal(t, 42, r.TargetNumber)
		return q.MarkSlideRoundWon(ctx, "r2", "u1", at.Add(2*time.Second))
	}))

	err = s.InTx(ctx, func(q store.Queries) error {
		return q.MarkSlideRoundWon(ctx, "r2", "u2", at.Add(3*time.Second))
	})
	assert.ErrorIs(t, err, model.ErrInvalidState)

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		// r1 was superseded by r2 and stays closed after r2 is won.
		_, err := q.CurrentSlideRound(ctx, at.Add(3*time.Second))
		assert.ErrorIs(t, err, model.ErrNotFound)
		return nil
	}))

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		return q.InsertSlideRound(ctx, &model.SlideRound{ID: "r3", TargetNumber: 7, CreatedAt: at.Add(4 * time.Second), ExpiresAt: at.Add(time.Hour)})
	}))
	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		r, err := q.CurrentSlideRound(ctx, at.Add(5*time.Second))
		require.NoError(t, err)
		assert.Equal(t, "r3", r.ID)

		_, err = q.CurrentSlideRound(ctx, at.Add(2*time.Hour))
		assert.ErrorIs(t, err, model.ErrNotFound)
		return nil
	}))
}

func testTransactionFilter(t *testing.T, s store.Store) {
	ctx := context.Background()
	at := now()

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		txs := []model.Transaction{
			{ID: "t1", UserID: "u1", Type: model.TxDeposit, Amount: d("10"), Status: model.StatusCompleted},
			{ID: "t2", UserID: "u1", Type: model.TxWithdrawal, Amount: d("5"), Status: model.StatusPending, Metadata: map[string]string{"k": "v"}},
			{ID: "t3", UserID: "u2", Type: model.TxDeposit, Amount: d("7"), Status: model.StatusCompleted},
		}
		for i := range txs {
			txs[i].CreatedAt = at.Add(time.Duration(i) * time.Second)
			txs[i].UpdatedAt = txs[i].CreatedAt
			if err := q.InsertTransaction(ctx, &txs[i]); err != nil {
				return err
			}
		}
		return nil
	}))

	require.NoError(t, s.View(ctx, func(q store.Queries) error {
		all, total, err := q.ListTransactions(ctx, model.TransactionFilter{})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, all, 3)
		assert.Equal(t, "t3", all[0].ID)

		pending, total, err := q.ListTransactions(ctx, model.TransactionFilter{Type: model.TxWithdrawal, Status: model.StatusPending})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		assert.Equal(t, "v", pending[0].Metadata["k"])

		mine, total, err := q.ListTransactions(ctx, model.TransactionFilter{UserID: "u1", Page: model.Page{Number: 2, Limit: 1}})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, mine, 1)
		assert.Equal(t, "t1", mine[0].ID)
		return nil
	}))
}

func testReferralUniqueness(t *testing.T, s store.Store) {
	ctx := context.Background()
	at := now()

	require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
		return q.InsertReferralCode(ctx, &model.ReferralCode{UserID: "u1", Code: "ABCD1234", CreatedAt: at})
	}))
	err := s.InTx(ctx, func(q store.Queries) error {
		return q.InsertReferralCode(ctx, &model.ReferralCode{UserID: "u2", Code: "ABCD1234", CreatedAt: at})
	})
	assert.ErrorIs(t, err, model.ErrDuplicateEntry)

	ref := func(id, referred string) error {
		return s.InTx(ctx, func(q store.Queries) error {
			return q.InsertReferral(ctx, &model.Referral{
				ID: id, ReferrerID: "u1", ReferredID: referred, Code: "ABCD1234",
				IPAddress: "10.0.0.1", IsActive: true, CreatedAt: at,
			})
		})
	}
	require.NoError(t, ref("r1", "u3"))
	assert.ErrorIs(t, ref("r2", "u3"), model.ErrDuplicateEntry)

	require.NoError(t, s.View(ctx, func(q store.Queries) error {
		rc, err := q.FindReferralCode(ctx, "ABCD1234")
		require.NoError(t, err)
		assert.Equal(t, "u1", rc.UserID)

		n, err := q.CountReferralsFrom(ctx, "u1", "10.0.0.1", "")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = q.CountReferralsFrom(ctx, "u1", "", "")
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		return nil
	}))
}

func testSettings(t *testing.T, s store.Store) {
	ctx := context.Background()

	err := s.View(ctx, func(q store.Queries) error {
		_, err := q.GetSetting(ctx, "ticket_base_price")
		return err
	})
	assert.ErrorIs(t, err, model.ErrNotFound)

	for _, v := range []string{"100000", "150000"} {
		require.NoError(t, s.InTx(ctx, func(q store.Queries) error {
			return q.PutSetting(ctx, &model.Setting{Key: "ticket_base_price", Value: v, UpdatedBy: "admin", UpdatedAt: now()})
		}))
	}

	require.NoError(t, s.View(ctx, func(q store.Queries) error {
		st, err := q.GetSetting(ctx, "ticket_base_price")
		require.NoError(t, err)
		assert.Equal(t, "150000", st.Value)
		return nil
	}))
}
