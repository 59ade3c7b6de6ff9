package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luckyspin/rewards-engine/internal/fairness"
	"github.com/luckyspin/rewards-engine/internal/ledger"
	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
)

func d(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func newLedger(t *testing.T) *ledger.Ledger {
	t.Helper()
	return ledger.New(store.NewMemoryStore())
}

func TestCreditDebit_BalanceProperty(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	src := fairness.NewSeeded(3)

	expected := decimal.Zero
	for i := 0; i < 200; i++ {
		amount := d(int64(fairness.Between(src, 1, 1000)))
		if src.Intn(2) == 0 {
			_, err := l.Credit(ctx, "u1", amount, model.TxDeposit, nil)
			require.NoError(t, err)
			expected = expected.Add(amount)
		} else {
			_, err := l.Debit(ctx, "u1", amount, model.TxTicketPurchase, nil)
			if expected.LessThan(amount) {
				require.ErrorIs(t, err, model.ErrInsufficientFunds)
			} else {
				require.NoError(t, err)
				expected = expected.Sub(amount)
			}
		}

		bal, err := l.Balance(ctx, "u1")
		require.NoError(t, err)
		require.True(t, bal.Equal(expected), "step %d: balance %s, want %s", i, bal, expected)
		require.False(t, bal.IsNegative())
	}
}

func TestCredit_RecordsCompletedTransaction(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	tx, err := l.Credit(ctx, "u1", d(500), model.TxPrize, map[string]string{"lottery_id": "l1"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, tx.Status)
	assert.Equal(t, "l1", tx.Metadata["lottery_id"])

	txs, page, err := l.Transactions(ctx, model.TransactionFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, tx.ID, txs[0].ID)
}

func TestCreditDebit_RejectInvalidArguments(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.Credit(ctx, "u1", decimal.Zero, model.TxDeposit, nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = l.Debit(ctx, "u1", d(-5), model.TxTicketPurchase, nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)

	_, err = l.Credit(ctx, "u1", d(5), model.TransactionType("BONUS"), nil)
	assert.ErrorIs(t, err, model.ErrInvalidArgument)
}

func TestDebit_InsufficientFundsLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, err := l.Deposit(ctx, "u1", d(100))
	require.NoError(t, err)

	_, err = l.Debit(ctx, "u1", d(101), model.TxTicketPurchase, nil)
	require.ErrorIs(t, err, model.ErrInsufficientFunds)

	_, page, err := l.Transactions(ctx, model.TransactionFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total, "failed debit must not write a transaction")
}

func TestWithdraw_ApproveDoesNotMoveMoneyAgain(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, err := l.Deposit(ctx, "u1", d(1000))
	require.NoError(t, err)

	w, err := l.Withdraw(ctx, "u1", d(400))
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, w.Status)

	bal, _ := l.Balance(ctx, "u1")
	assert.True(t, bal.Equal(d(600)), "funds reserved at request time, got %s", bal)

	approved, err := l.ApproveWithdrawal(ctx, w.ID, "admin1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, approved.Status)
	assert.Equal(t, "admin1", approved.Metadata["approved_by"])
	assert.NotEmpty(t, approved.Metadata["approved_at"])

	bal, _ = l.Balance(ctx, "u1")
	assert.True(t, bal.Equal(d(600)), "approval must not charge twice, got %s", bal)

	_, err = l.ApproveWithdrawal(ctx, w.ID, "admin1")
	assert.ErrorIs(t, err, model.ErrInvalidState)
	_, err = l.RejectWithdrawal(ctx, w.ID, "admin1")
	assert.ErrorIs(t, err, model.ErrInvalidState)
}

func TestWithdraw_RejectRefunds(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, err := l.Deposit(ctx, "u1", d(1000))
	require.NoError(t, err)

	w, err := l.Withdraw(ctx, "u1", d(1000))
	require.NoError(t, err)

	rejected, err := l.RejectWithdrawal(ctx, w.ID, "admin1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, rejected.Status)
	assert.Equal(t, "admin1", rejected.Metadata["rejected_by"])

	bal, _ := l.Balance(ctx, "u1")
	assert.True(t, bal.Equal(d(1000)), "reject refunds the reservation, got %s", bal)
}

func TestApprove_Errors(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)

	_, err := l.ApproveWithdrawal(ctx, "missing", "admin1")
	assert.ErrorIs(t, err, model.ErrNotFound)

	dep, err := l.Deposit(ctx, "u1", d(10))
	require.NoError(t, err)
	_, err = l.ApproveWithdrawal(ctx, dep.ID, "admin1")
	assert.ErrorIs(t, err, model.ErrInvalidState, "deposits are not withdrawals")
}

func TestDebit_ConcurrentNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	l := newLedger(t)
	_, err := l.Deposit(ctx, "u1", d(10))
	require.NoError(t, err)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Debit(ctx, "u1", d(1), model.TxTicketPurchase, nil); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, ok)
	bal, _ := l.Balance(ctx, "u1")
	assert.True(t, bal.IsZero())
}
