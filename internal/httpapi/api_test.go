package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"

	"github.com/luckyspin/rewards-engine/internal/chance"
	"github.com/luckyspin/rewards-engine/internal/fairness"
	"github.com/luckyspin/rewards-engine/internal/httpapi"
	"github.com/luckyspin/rewards-engine/internal/ledger"
	"github.com/luckyspin/rewards-engine/internal/lottery"
	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/referral"
	"github.com/luckyspin/rewards-engine/internal/settings"
	"github.com/luckyspin/rewards-engine/internal/slide"
	"github.com/luckyspin/rewards-engine/internal/store"
	"github.com/luckyspin/rewards-engine/internal/ticket"
	"github.com/luckyspin/rewards-engine/internal/wheel"
)

const testSecret = "test-secret"

// newTestEnv creates the API over an in-memory store.
func newTestEnv(t *testing.T) (*store.MemoryStore, chi.Router) {
	t.Helper()
	ms := store.NewMemoryStore()
	rng := fairness.NewSeeded(11)
	cfg := settings.NewService(ms, decimal.NewFromInt(100000))
	api := httpapi.New(httpapi.Deps{
		Store:     ms,
		Ledger:    ledger.New(ms),
		Chances:   chance.NewBank(ms),
		Tickets:   ticket.NewService(ms, cfg),
		Settings:  cfg,
		Lotteries: lottery.NewEngine(ms, rng, nil),
		Wheel:     wheel.NewEngine(ms, rng),
		Slide:     slide.NewEngine(ms, rng, nil, slide.DefaultConfig()),
		Referrals: referral.NewService(ms, rng, "http://localhost:3000"),
		Auth:      httpapi.NewAuthenticator(testSecret),
	})
	return ms, api.Router()
}

func token(t *testing.T, userID, role string, ttl time.Duration) string {
	t.Helper()
	claims := httpapi.Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return s
}

func do(t *testing.T, router chi.Router, method, path, tok string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

// --- Auth ---

func TestAuth_RejectsMissingAndBadTokens(t *testing.T) {
	_, router := newTestEnv(t)

	if w := do(t, router, "GET", "/api/v1/wallet/balance", "", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
	expired := token(t, "u1", "", -time.Minute)
	if w := do(t, router, "GET", "/api/v1/wallet/balance", expired, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %d", w.Code)
	}

	forged, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, httpapi.Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("other-secret"))
	if w := do(t, router, "GET", "/api/v1/wallet/balance", forged, nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", w.Code)
	}
}

func TestAuth_AdminRoutesNeedRole(t *testing.T) {
	_, router := newTestEnv(t)

	user := token(t, "u1", "", time.Hour)
	if w := do(t, router, "GET", "/api/v1/admin/dashboard", user, nil); w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-admin, got %d", w.Code)
	}
	admin := token(t, "root", httpapi.RoleAdmin, time.Hour)
	if w := do(t, router, "GET", "/api/v1/admin/dashboard", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200 for admin, got %d: %s", w.Code, w.Body.String())
	}
}

func TestHealth_IsPublic(t *testing.T) {
	_, router := newTestEnv(t)
	if w := do(t, router, "GET", "/health", "", nil); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

// --- Wallet ---

func TestWallet_DepositWithdrawApprove(t *testing.T) {
	_, router := newTestEnv(t)
	user := token(t, "u1", "", time.Hour)
	admin := token(t, "root", httpapi.RoleAdmin, time.Hour)

	w := do(t, router, "POST", "/api/v1/wallet/deposit", user, httpapi.AmountRequest{Amount: decimal.NewFromInt(5000)})
	if w.Code != http.StatusCreated {
		t.Fatalf("deposit: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "POST", "/api/v1/wallet/withdraw", user, httpapi.AmountRequest{Amount: decimal.NewFromInt(9000)})
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("overdraw: expected 422, got %d", w.Code)
	}

	w = do(t, router, "POST", "/api/v1/wallet/withdraw", user, httpapi.AmountRequest{Amount: decimal.NewFromInt(2000)})
	if w.Code != http.StatusAccepted {
		t.Fatalf("withdraw: expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var pending model.Transaction
	decodeBody(t, w, &pending)
	if pending.Status != model.StatusPending {
		t.Fatalf("expected PENDING, got %s", pending.Status)
	}

	w = do(t, router, "POST", "/api/v1/admin/withdrawals/"+pending.ID+"/approve", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("approve: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	w = do(t, router, "POST", "/api/v1/admin/withdrawals/"+pending.ID+"/reject", admin, nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("reject after approve: expected 409, got %d", w.Code)
	}

	w = do(t, router, "GET", "/api/v1/wallet/balance", user, nil)
	var bal struct {
		Balance decimal.Decimal `json:"balance"`
	}
	decodeBody(t, w, &bal)
	if !bal.Balance.Equal(decimal.NewFromInt(3000)) {
		t.Fatalf("expected balance 3000, got %s", bal.Balance)
	}

	w = do(t, router, "GET", "/api/v1/wallet/transactions?limit=1", user, nil)
	var page struct {
		Items      []model.Transaction `json:"items"`
		Pagination model.Pagination    `json:"pagination"`
	}
	decodeBody(t, w, &page)
	if len(page.Items) != 1 || page.Pagination.Total != 2 {
		t.Fatalf("expected 1 of 2 transactions, got %d of %d", len(page.Items), page.Pagination.Total)
	}
}

func TestAdmin_Dashboard(t *testing.T) {
	_, router := newTestEnv(t)
	user := token(t, "u1", "", time.Hour)
	admin := token(t, "root", httpapi.RoleAdmin, time.Hour)

	do(t, router, "POST", "/api/v1/wallet/deposit", user, httpapi.AmountRequest{Amount: decimal.NewFromInt(5000)})
	do(t, router, "POST", "/api/v1/wallet/withdraw", user, httpapi.AmountRequest{Amount: decimal.NewFromInt(1000)})

	w := do(t, router, "GET", "/api/v1/admin/dashboard", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("dashboard: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var stats model.DashboardStats
	decodeBody(t, w, &stats)
	if stats.Wallets != 1 || stats.Transactions != 2 || stats.PendingWithdrawals != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if !stats.TotalDeposits.Equal(decimal.NewFromInt(5000)) || !stats.TotalBalance.Equal(decimal.NewFromInt(4000)) {
		t.Fatalf("unexpected sums: deposits %s balance %s", stats.TotalDeposits, stats.TotalBalance)
	}
}

func TestWallet_InvalidBody(t *testing.T) {
	_, router := newTestEnv(t)
	req := httptest.NewRequest("POST", "/api/v1/wallet/deposit", bytes.NewBufferString("{"))
	req.Header.Set("Authorization", "Bearer "+token(t, "u1", "", time.Hour))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

// --- Tickets → lottery flow ---

func TestLotteryFlow_PurchaseEnterDraw(t *testing.T) {
	_, router := newTestEnv(t)
	user := token(t, "u1", "", time.Hour)
	admin := token(t, "root", httpapi.RoleAdmin, time.Hour)

	w := do(t, router, "GET", "/api/v1/tickets/quote?quantity=5", user, nil)
	var quote struct {
		Total decimal.Decimal `json:"total_price"`
	}
	decodeBody(t, w, &quote)
	if !quote.Total.Equal(decimal.NewFromInt(370000)) {
		t.Fatalf("expected quote 370000, got %s", quote.Total)
	}

	do(t, router, "POST", "/api/v1/wallet/deposit", user, httpapi.AmountRequest{Amount: decimal.NewFromInt(370000)})
	w = do(t, router, "POST", "/api/v1/tickets", user, httpapi.PurchaseRequest{Quantity: 5})
	if w.Code != http.StatusCreated {
		t.Fatalf("purchase: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	now := time.Now()
	w = do(t, router, "POST", "/api/v1/admin/lotteries", admin, lottery.CreateInput{
		Title: "Weekly", StartDate: now.Add(-time.Hour), EndDate: now.Add(time.Hour),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create lottery: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Lottery model.Lottery `json:"lottery"`
	}
	decodeBody(t, w, &created)
	id := created.Lottery.ID

	if w := do(t, router, "POST", "/api/v1/lotteries/"+id+"/enter", user, nil); w.Code != http.StatusConflict {
		t.Fatalf("enter upcoming: expected 409, got %d", w.Code)
	}
	if w := do(t, router, "POST", "/api/v1/admin/lotteries/"+id+"/activate", admin, nil); w.Code != http.StatusOK {
		t.Fatalf("activate: expected 200, got %d", w.Code)
	}
	if w := do(t, router, "POST", "/api/v1/lotteries/"+id+"/enter", user, nil); w.Code != http.StatusCreated {
		t.Fatalf("enter: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, "POST", "/api/v1/lotteries/"+id+"/enter", user, nil); w.Code != http.StatusConflict {
		t.Fatalf("duplicate enter: expected 409, got %d", w.Code)
	}

	w = do(t, router, "POST", "/api/v1/admin/lotteries/"+id+"/draw", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("draw: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res lottery.DrawResult
	decodeBody(t, w, &res)
	if res.TotalEntries != 1 || res.Winners != 1 {
		t.Fatalf("unexpected draw result %+v", res)
	}

	w = do(t, router, "GET", "/api/v1/lotteries/"+id+"/entry", user, nil)
	var entry struct {
		HasEntered bool               `json:"has_entered"`
		Entry      model.LotteryEntry `json:"entry"`
	}
	decodeBody(t, w, &entry)
	if !entry.HasEntered || entry.Entry.Rank == nil || *entry.Entry.Rank != 1 {
		t.Fatalf("expected rank 1 entry, got %+v", entry)
	}

	// Rank 1 wins the 10,000,000 default cash band.
	w = do(t, router, "GET", "/api/v1/wallet/balance", user, nil)
	var bal struct {
		Balance decimal.Decimal `json:"balance"`
	}
	decodeBody(t, w, &bal)
	if !bal.Balance.Equal(decimal.NewFromInt(10_000_000)) {
		t.Fatalf("expected 10000000, got %s", bal.Balance)
	}

	if w := do(t, router, "GET", "/api/v1/lotteries/missing", user, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

// --- Games ---

func TestWheel_SpinWithoutPrizes(t *testing.T) {
	ms, router := newTestEnv(t)
	user := token(t, "u1", "", time.Hour)
	bank := chance.NewBank(ms)
	for i := 0; i < 2; i++ {
		bank.Grant(context.Background(), "u1", model.SourceTicket, "")
	}

	if w := do(t, router, "POST", "/api/v1/wheel/spin", user, nil); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 with no prizes, got %d", w.Code)
	}

	admin := token(t, "root", httpapi.RoleAdmin, time.Hour)
	w := do(t, router, "POST", "/api/v1/admin/wheel/prizes", admin, wheel.PrizeInput{
		Name: "1k", Type: model.PrizeCash, Value: decimal.NewFromInt(1000), Probability: decimal.NewFromInt(1),
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create prize: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, "POST", "/api/v1/wheel/spin", user, nil); w.Code != http.StatusOK {
		t.Fatalf("spin: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := do(t, router, "POST", "/api/v1/wheel/spin", user, nil); w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("spin without chances: expected 422, got %d", w.Code)
	}
}

func TestSlide_TargetAndPlay(t *testing.T) {
	ms, router := newTestEnv(t)
	user := token(t, "u1", "", time.Hour)
	admin := token(t, "root", httpapi.RoleAdmin, time.Hour)
	chance.NewBank(ms).Grant(context.Background(), "u1", model.SourceTicket, "")

	if w := do(t, router, "POST", "/api/v1/slide/play", user, httpapi.PlayRequest{UserNumber: 42, Mode: model.SlideAuto}); w.Code != http.StatusConflict {
		t.Fatalf("expected 409 with no target, got %d", w.Code)
	}
	if w := do(t, router, "POST", "/api/v1/admin/slide/target", admin, httpapi.SetTargetRequest{TargetNumber: 42}); w.Code != http.StatusCreated {
		t.Fatalf("set target: expected 201, got %d", w.Code)
	}
	w := do(t, router, "POST", "/api/v1/slide/play", user, httpapi.PlayRequest{UserNumber: 42, Mode: model.SlideAuto})
	if w.Code != http.StatusOK {
		t.Fatalf("play: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var g model.SlideGame
	decodeBody(t, w, &g)
	if !g.IsWinner {
		t.Fatal("expected a win")
	}

	w = do(t, router, "GET", "/api/v1/slide/winners", user, nil)
	var winners []model.SlideGame
	decodeBody(t, w, &winners)
	if len(winners) != 1 {
		t.Fatalf("expected 1 winner, got %d", len(winners))
	}
}

func TestReferral_RegisterAndStats(t *testing.T) {
	_, router := newTestEnv(t)
	alice := token(t, "alice", "", time.Hour)
	bob := token(t, "bob", "", time.Hour)

	w := do(t, router, "GET", "/api/v1/referrals/code", alice, nil)
	var code referral.CodeInfo
	decodeBody(t, w, &code)
	if len(code.Code) != 8 {
		t.Fatalf("expected 8-char code, got %q", code.Code)
	}

	if w := do(t, router, "POST", "/api/v1/referrals", alice, httpapi.RegisterReferralRequest{Code: code.Code}); w.Code != http.StatusBadRequest {
		t.Fatalf("self referral: expected 400, got %d", w.Code)
	}
	if w := do(t, router, "POST", "/api/v1/referrals", bob, httpapi.RegisterReferralRequest{Code: code.Code}); w.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d: %s", w.Code, w.Body.String())
	}

	w = do(t, router, "GET", "/api/v1/referrals/stats", alice, nil)
	var stats referral.Stats
	decodeBody(t, w, &stats)
	if stats.TotalReferrals != 1 || stats.TotalChancesGranted != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestSettings_TicketPrice(t *testing.T) {
	_, router := newTestEnv(t)
	admin := token(t, "root", httpapi.RoleAdmin, time.Hour)

	if w := do(t, router, "PUT", "/api/v1/admin/ticket-price", admin, httpapi.TicketPriceRequest{Price: decimal.Zero}); w.Code != http.StatusBadRequest {
		t.Fatalf("zero price: expected 400, got %d", w.Code)
	}
	if w := do(t, router, "PUT", "/api/v1/admin/ticket-price", admin, httpapi.TicketPriceRequest{Price: decimal.NewFromInt(50000)}); w.Code != http.StatusOK {
		t.Fatalf("set price: expected 200, got %d", w.Code)
	}
	w := do(t, router, "GET", "/api/v1/admin/settings/ticket_base_price", admin, nil)
	var s model.Setting
	decodeBody(t, w, &s)
	if s.Value != "50000" || s.UpdatedBy != "root" {
		t.Fatalf("unexpected setting %+v", s)
	}
	if w := do(t, router, "GET", "/api/v1/admin/settings/unknown", admin, nil); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
