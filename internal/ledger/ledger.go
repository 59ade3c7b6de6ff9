// Package ledger owns wallet balances and the transaction log. Every balance
// change goes through Credit or Debit and is paired with one Transaction.
//
// All monetary values use shopspring/decimal, never float64 for money.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/luckyspin/rewards-engine/internal/metrics"
	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
)

// Ledger moves money between the platform and user wallets.
type Ledger struct {
	store store.Store
}

// New creates a ledger over st.
func New(st store.Store) *Ledger {
	return &Ledger{store: st}
}

func validate(amount decimal.Decimal, typ model.TransactionType) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount %s must be positive: %w", amount, model.ErrInvalidArgument)
	}
	if !typ.Valid() {
		return fmt.Errorf("transaction type %q: %w", typ, model.ErrInvalidArgument)
	}
	return nil
}

// CreditTx credits amount to the user's wallet inside an open unit of work.
func CreditTx(ctx context.Context, q store.Queries, userID string, amount decimal.Decimal, typ model.TransactionType, meta map[string]string) (*model.Transaction, error) {
	if err := validate(amount, typ); err != nil {
		return nil, err
	}
	if _, err := q.LockWallet(ctx, userID); err != nil {
		return nil, err
	}
	if err := q.AdjustBalance(ctx, userID, amount); err != nil {
		return nil, fmt.Errorf("credit %s: %w", userID, err)
	}
	return record(ctx, q, userID, amount, typ, model.StatusCompleted, meta)
}

// DebitTx debits amount from the user's wallet inside an open unit of work.
// Withdrawals are recorded PENDING with the funds already reserved.
func DebitTx(ctx context.Context, q store.Queries, userID string, amount decimal.Decimal, typ model.TransactionType, meta map[string]string) (*model.Transaction, error) {
	if err := validate(amount, typ); err != nil {
		return nil, err
	}
	bal, err := q.LockWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if bal.LessThan(amount) {
		return nil, fmt.Errorf("debit %s of %s with balance %s: %w", userID, amount, bal, model.ErrInsufficientFunds)
	}
	if err := q.AdjustBalance(ctx, userID, amount.Neg()); err != nil {
		return nil, fmt.Errorf("debit %s: %w", userID, err)
	}

	status := model.StatusCompleted
	if typ == model.TxWithdrawal {
		status = model.StatusPending
	}
	return record(ctx, q, userID, amount, typ, status, meta)
}

func record(ctx context.Context, q store.Queries, userID string, amount decimal.Decimal, typ model.TransactionType, status model.TransactionStatus, meta map[string]string) (*model.Transaction, error) {
	now := time.Now().UTC()
	t := &model.Transaction{
		ID:        uuid.New().String(),
		UserID:    userID,
		Type:      typ,
		Amount:    amount,
		Status:    status,
		Metadata:  maps.Clone(meta),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if t.Metadata == nil {
		t.Metadata = map[string]string{}
	}
	if err := q.InsertTransaction(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Observe records a committed transaction in metrics.
func Observe(t *model.Transaction) {
	metrics.LedgerTransactions.WithLabelValues(string(t.Type), string(t.Status)).Inc()
	metrics.AddAmount(metrics.LedgerAmount, string(t.Type), t.Amount)
}

// Credit creates a COMPLETED transaction and increments the balance atomically.
func (l *Ledger) Credit(ctx context.Context, userID string, amount decimal.Decimal, typ model.TransactionType, meta map[string]string) (*model.Transaction, error) {
	var t *model.Transaction
	err := l.store.InTx(ctx, func(q store.Queries) error {
		var err error
		t, err = CreditTx(ctx, q, userID, amount, typ, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	Observe(t)
	slog.Info("wallet credited", "tx_id", t.ID, "user", userID, "type", typ, "amount", amount.String())
	return t, nil
}

// Debit decrements the balance and records the transaction atomically.
func (l *Ledger) Debit(ctx context.Context, userID string, amount decimal.Decimal, typ model.TransactionType, meta map[string]string) (*model.Transaction, error) {
	var t *model.Transaction
	err := l.store.InTx(ctx, func(q store.Queries) error {
		var err error
		t, err = DebitTx(ctx, q, userID, amount, typ, meta)
		return err
	})
	if err != nil {
		return nil, err
	}
	Observe(t)
	slog.Info("wallet debited", "tx_id", t.ID, "user", userID, "type", typ, "amount", amount.String(), "status", t.Status)
	return t, nil
}

// Deposit credits a user-initiated deposit.
func (l *Ledger) Deposit(ctx context.Context, userID string, amount decimal.Decimal) (*model.Transaction, error) {
	return l.Credit(ctx, userID, amount, model.TxDeposit, map[string]string{"method": "manual"})
}

// Withdraw reserves amount and opens a PENDING withdrawal for admin review.
func (l *Ledger) Withdraw(ctx context.Context, userID string, amount decimal.Decimal) (*model.Transaction, error) {
	return l.Debit(ctx, userID, amount, model.TxWithdrawal, nil)
}

func lockPendingWithdrawal(ctx context.Context, q store.Queries, txID string) (*model.Transaction, error) {
	t, err := q.LockTransaction(ctx, txID)
	if err != nil {
		return nil, err
	}
	if t.Type != model.TxWithdrawal || t.Status != model.StatusPending {
		return nil, fmt.Errorf("transaction %s is %s %s: %w", txID, t.Status, t.Type, model.ErrInvalidState)
	}
	return t, nil
}

// ApproveWithdrawal completes a PENDING withdrawal. The funds were reserved
// at request time, so no money moves.
func (l *Ledger) ApproveWithdrawal(ctx context.Context, txID, approverID string) (*model.Transaction, error) {
	var t *model.Transaction
	err := l.store.InTx(ctx, func(q store.Queries) error {
		var err error
		if t, err = lockPendingWithdrawal(ctx, q, txID); err != nil {
			return err
		}
		now := time.Now().UTC()
		t.Metadata = maps.Clone(t.Metadata)
		if t.Metadata == nil {
			t.Metadata = map[string]string{}
		}
		t.Metadata["approved_by"] = approverID
		t.Metadata["approved_at"] = now.Format(time.RFC3339)
		t.Status = model.StatusCompleted
		t.UpdatedAt = now
		return q.UpdateTransactionStatus(ctx, txID, t.Status, t.Metadata)
	})
	if err != nil {
		return nil, err
	}
	metrics.LedgerTransactions.WithLabelValues(string(t.Type), string(t.Status)).Inc()
	slog.Info("withdrawal approved", "tx_id", txID, "approver", approverID, "amount", t.Amount.String())
	return t, nil
}

// RejectWithdrawal cancels a PENDING withdrawal and refunds the reserved
// amount in the same unit of work.
func (l *Ledger) RejectWithdrawal(ctx context.Context, txID, approverID string) (*model.Transaction, error) {
	var t *model.Transaction
	err := l.store.InTx(ctx, func(q store.Queries) error {
		var err error
		if t, err = lockPendingWithdrawal(ctx, q, txID); err != nil {
			return err
		}
		if _, err := q.LockWallet(ctx, t.UserID); err != nil {
			return err
		}
		if err := q.AdjustBalance(ctx, t.UserID, t.Amount); err != nil {
			return fmt.Errorf("refund %s: %w", txID, err)
		}
		now := time.Now().UTC()
		t.Metadata = maps.Clone(t.Metadata)
		if t.Metadata == nil {
			t.Metadata = map[string]string{}
		}
		t.Metadata["rejected_by"] = approverID
		t.Metadata["rejected_at"] = now.Format(time.RFC3339)
		t.Status = model.StatusCancelled
		t.UpdatedAt = now
		return q.UpdateTransactionStatus(ctx, txID, t.Status, t.Metadata)
	})
	if err != nil {
		return nil, err
	}
	metrics.LedgerTransactions.WithLabelValues(string(t.Type), string(t.Status)).Inc()
	slog.Info("withdrawal rejected", "tx_id", txID, "approver", approverID, "refund", t.Amount.String())
	return t, nil
}

// Balance returns the user's current balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (decimal.Decimal, error) {
	var bal decimal.Decimal
	err := l.store.View(ctx, func(q store.Queries) error {
		var err error
		bal, err = q.GetBalance(ctx, userID)
		return err
	})
	return bal, err
}

// Transactions lists transactions matching f, newest first.
func (l *Ledger) Transactions(ctx context.Context, f model.TransactionFilter) ([]model.Transaction, model.Pagination, error) {
	var (
		txs   []model.Transaction
		total int
	)
	err := l.store.View(ctx, func(q store.Queries) error {
		var err error
		txs, total, err = q.ListTransactions(ctx, f)
		return err
	})
	if err != nil {
		return nil, model.Pagination{}, err
	}
	if txs == nil {
		txs = []model.Transaction{}
	}
	return txs, model.NewPagination(f.Page, total), nil
}
