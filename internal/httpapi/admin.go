package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/luckyspin/rewards-engine/internal/lottery"
	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
	"github.com/luckyspin/rewards-engine/internal/wheel"
)

// Dashboard handles GET /api/v1/admin/dashboard
func (a *API) Dashboard(w http.ResponseWriter, r *http.Request) {
	var stats model.DashboardStats
	err := a.Store.View(r.Context(), func(q store.Queries) error {
		var err error
		stats, err = q.DashboardStats(r.Context())
		return err
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// AllTransactions handles GET /api/v1/admin/transactions?user_id=&type=&status=
func (a *API) AllTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	txs, p, err := a.Ledger.Transactions(r.Context(), model.TransactionFilter{
		UserID: q.Get("user_id"),
		Type:   model.TransactionType(q.Get("type")),
		Status: model.TransactionStatus(q.Get("status")),
		Page:   pageFrom(r),
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writePage(w, txs, p)
}

// ApproveWithdrawal handles POST /api/v1/admin/withdrawals/{txID}/approve
func (a *API) ApproveWithdrawal(w http.ResponseWriter, r *http.Request) {
	t, err := a.Ledger.ApproveWithdrawal(r.Context(), chi.URLParam(r, "txID"), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// RejectWithdrawal handles POST /api/v1/admin/withdrawals/{txID}/reject
func (a *API) RejectWithdrawal(w http.ResponseWriter, r *http.Request) {
	t, err := a.Ledger.RejectWithdrawal(r.Context(), chi.URLParam(r, "txID"), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// --- Settings ---

// SettingRequest is the JSON body for PUT /admin/settings/{key}.
type SettingRequest struct {
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// GetSetting handles GET /api/v1/admin/settings/{key}
func (a *API) GetSetting(w http.ResponseWriter, r *http.Request) {
	s, err := a.Settings.Get(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// PutSetting handles PUT /api/v1/admin/settings/{key}
func (a *API) PutSetting(w http.ResponseWriter, r *http.Request) {
	var req SettingRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := a.Settings.Set(r.Context(), chi.URLParam(r, "key"), req.Value, req.Description, userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// TicketPriceRequest is the JSON body for PUT /admin/ticket-price.
type TicketPriceRequest struct {
	Price decimal.Decimal `json:"price"`
}

// GetTicketPrice handles GET /api/v1/admin/ticket-price
func (a *API) GetTicketPrice(w http.ResponseWriter, r *http.Request) {
	p, err := a.Settings.TicketBasePrice(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"price": p})
}

// SetTicketPrice handles PUT /api/v1/admin/ticket-price
func (a *API) SetTicketPrice(w http.ResponseWriter, r *http.Request) {
	var req TicketPriceRequest
	if !decode(w, r, &req) {
		return
	}
	s, err := a.Settings.SetTicketBasePrice(r.Context(), req.Price, userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// --- Lotteries ---

// CreateLottery handles POST /api/v1/admin/lotteries
func (a *API) CreateLottery(w http.ResponseWriter, r *http.Request) {
	var req lottery.CreateInput
	if !decode(w, r, &req) {
		return
	}
	l, prizes, err := a.Lotteries.Create(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"lottery": l, "prizes": prizes})
}

// ActivateLottery handles POST /api/v1/admin/lotteries/{lotteryID}/activate
func (a *API) ActivateLottery(w http.ResponseWriter, r *http.Request) {
	l, err := a.Lotteries.Activate(r.Context(), chi.URLParam(r, "lotteryID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// DrawLottery handles POST /api/v1/admin/lotteries/{lotteryID}/draw
func (a *API) DrawLottery(w http.ResponseWriter, r *http.Request) {
	res, err := a.Lotteries.Draw(r.Context(), chi.URLParam(r, "lotteryID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// PayCashback handles POST /api/v1/admin/lotteries/{lotteryID}/cashback
func (a *API) PayCashback(w http.ResponseWriter, r *http.Request) {
	res, err := a.Lotteries.PayCashback(r.Context(), chi.URLParam(r, "lotteryID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// --- Wheel ---

// CreateWheelPrize handles POST /api/v1/admin/wheel/prizes
func (a *API) CreateWheelPrize(w http.ResponseWriter, r *http.Request) {
	var req wheel.PrizeInput
	if !decode(w, r, &req) {
		return
	}
	p, err := a.Wheel.CreatePrize(r.Context(), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UpdateWheelPrize handles PATCH /api/v1/admin/wheel/prizes/{prizeID}
func (a *API) UpdateWheelPrize(w http.ResponseWriter, r *http.Request) {
	var req wheel.PrizeUpdate
	if !decode(w, r, &req) {
		return
	}
	p, err := a.Wheel.UpdatePrize(r.Context(), chi.URLParam(r, "prizeID"), req)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// --- Slide ---

// SetTargetRequest is the JSON body for POST /admin/slide/target.
type SetTargetRequest struct {
	TargetNumber int `json:"target_number"`
}

// SetSlideTarget handles POST /api/v1/admin/slide/target
func (a *API) SetSlideTarget(w http.ResponseWriter, r *http.Request) {
	var req SetTargetRequest
	if !decode(w, r, &req) {
		return
	}
	round, err := a.Slide.SetTarget(r.Context(), req.TargetNumber)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, round)
}
