package httpapi

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/luckyspin/rewards-engine/internal/model"
)

// AmountRequest is the JSON body for deposits and withdrawals.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// GetBalance handles GET /api/v1/wallet/balance
func (a *API) GetBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := a.Ledger.Balance(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user_id": userID(r), "balance": bal})
}

// Deposit handles POST /api/v1/wallet/deposit
func (a *API) Deposit(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := a.Ledger.Deposit(r.Context(), userID(r), req.Amount)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// Withdraw handles POST /api/v1/wallet/withdraw. The withdrawal stays
// PENDING until an admin approves or rejects it.
func (a *API) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req AmountRequest
	if !decode(w, r, &req) {
		return
	}
	t, err := a.Ledger.Withdraw(r.Context(), userID(r), req.Amount)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, t)
}

// MyTransactions handles GET /api/v1/wallet/transactions
func (a *API) MyTransactions(w http.ResponseWriter, r *http.Request) {
	txs, p, err := a.Ledger.Transactions(r.Context(), model.TransactionFilter{
		UserID: userID(r),
		Type:   model.TransactionType(r.URL.Query().Get("type")),
		Page:   pageFrom(r),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writePage(w, txs, p)
}

// ChanceSummary handles GET /api/v1/chances
func (a *API) ChanceSummary(w http.ResponseWriter, r *http.Request) {
	s, err := a.Chances.Summary(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// ChanceHistory handles GET /api/v1/chances/history
func (a *API) ChanceHistory(w http.ResponseWriter, r *http.Request) {
	cs, p, err := a.Chances.History(r.Context(), userID(r), pageFrom(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writePage(w, cs, p)
}

// QuoteTickets handles GET /api/v1/tickets/quote?quantity=n
func (a *API) QuoteTickets(w http.ResponseWriter, r *http.Request) {
	n := queryInt(r, "quantity")
	base, total, err := a.Tickets.Quote(r.Context(), n)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"quantity":    n,
		"base_price":  base,
		"total_price": total,
	})
}

// PurchaseRequest is the JSON body for POST /tickets.
type PurchaseRequest struct {
	Quantity  int    `json:"quantity"`
	LotteryID string `json:"lottery_id,omitempty"`
}

// PurchaseTickets handles POST /api/v1/tickets
func (a *API) PurchaseTickets(w http.ResponseWriter, r *http.Request) {
	var req PurchaseRequest
	if !decode(w, r, &req) {
		return
	}
	rc, err := a.Tickets.Purchase(r.Context(), userID(r), req.Quantity, req.LotteryID)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rc)
}

// MyTickets handles GET /api/v1/tickets?lottery_id=
func (a *API) MyTickets(w http.ResponseWriter, r *http.Request) {
	ts, err := a.Tickets.UserTickets(r.Context(), userID(r), r.URL.Query().Get("lottery_id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if ts == nil {
		ts = []model.Ticket{}
	}
	writeJSON(w, http.StatusOK, ts)
}
