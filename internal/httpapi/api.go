// Package httpapi exposes the rewards engine over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/luckyspin/rewards-engine/internal/chance"
	"github.com/luckyspin/rewards-engine/internal/ledger"
	"github.com/luckyspin/rewards-engine/internal/lottery"
	"github.com/luckyspin/rewards-engine/internal/metrics"
	"github.com/luckyspin/rewards-engine/internal/referral"
	"github.com/luckyspin/rewards-engine/internal/settings"
	"github.com/luckyspin/rewards-engine/internal/slide"
	"github.com/luckyspin/rewards-engine/internal/store"
	"github.com/luckyspin/rewards-engine/internal/ticket"
	"github.com/luckyspin/rewards-engine/internal/wheel"
)

// Deps are the services behind the API.
type Deps struct {
	Store     store.Store
	Ledger    *ledger.Ledger
	Chances   *chance.Bank
	Tickets   *ticket.Service
	Settings  *settings.Service
	Lotteries *lottery.Engine
	Wheel     *wheel.Engine
	Slide     *slide.Engine
	Referrals *referral.Service
	Auth      *Authenticator

	// WS upgrades observers to the event stream. Optional.
	WS http.HandlerFunc
}

// API holds the HTTP handlers.
type API struct {
	Deps
}

// New creates the API.
func New(d Deps) *API {
	return &API{Deps: d}
}

// Router builds the full HTTP router.
func (a *API) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(metrics.Middleware)
	r.Use(cors)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","service":"rewards-engine"}`))
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if a.WS != nil {
			// Public, unauthenticated: events carry no private data.
			r.Get("/ws", a.WS)
		}

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(30 * time.Second))
			r.Use(a.Auth.Middleware)
			a.userRoutes(r)
			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				a.adminRoutes(r)
			})
		})
	})
	return r
}

func (a *API) userRoutes(r chi.Router) {
	r.Get("/wallet/balance", a.GetBalance)
	r.Post("/wallet/deposit", a.Deposit)
	r.Post("/wallet/withdraw", a.Withdraw)
	r.Get("/wallet/transactions", a.MyTransactions)

	r.Get("/chances", a.ChanceSummary)
	r.Get("/chances/history", a.ChanceHistory)

	r.Get("/tickets/quote", a.QuoteTickets)
	r.Post("/tickets", a.PurchaseTickets)
	r.Get("/tickets", a.MyTickets)

	r.Get("/lotteries", a.ListLotteries)
	r.Get("/lotteries/mine", a.MyLotteries)
	r.Get("/lotteries/{lotteryID}", a.GetLottery)
	r.Get("/lotteries/{lotteryID}/entry", a.MyEntry)
	r.Post("/lotteries/{lotteryID}/enter", a.EnterLottery)

	r.Get("/wheel/prizes", a.WheelPrizes)
	r.Post("/wheel/spin", a.SpinWheel)
	r.Get("/wheel/spins", a.MySpins)

	r.Get("/slide/target", a.SlideTarget)
	r.Get("/slide/winners", a.SlideWinners)
	r.Post("/slide/play", a.PlaySlide)
	r.Get("/slide/games", a.MySlideGames)

	r.Get("/referrals/code", a.ReferralCode)
	r.Get("/referrals/stats", a.ReferralStats)
	r.Get("/referrals/referrer", a.MyReferrer)
	r.Post("/referrals", a.RegisterReferral)
}

func (a *API) adminRoutes(r chi.Router) {
	r.Get("/dashboard", a.Dashboard)
	r.Get("/transactions", a.AllTransactions)
	r.Post("/withdrawals/{txID}/approve", a.ApproveWithdrawal)
	r.Post("/withdrawals/{txID}/reject", a.RejectWithdrawal)

	r.Get("/settings/{key}", a.GetSetting)
	r.Put("/settings/{key}", a.PutSetting)
	r.Get("/ticket-price", a.GetTicketPrice)
	r.Put("/ticket-price", a.SetTicketPrice)

	r.Post("/lotteries", a.CreateLottery)
	r.Post("/lotteries/{lotteryID}/activate", a.ActivateLottery)
	r.Post("/lotteries/{lotteryID}/draw", a.DrawLottery)
	r.Post("/lotteries/{lotteryID}/cashback", a.PayCashback)

	r.Post("/wheel/prizes", a.CreateWheelPrize)
	r.Patch("/wheel/prizes/{prizeID}", a.UpdateWheelPrize)

	r.Post("/slide/target", a.SetSlideTarget)
}

// cors allows cross-origin requests from the frontend.
func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
