package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/luckyspin/rewards-engine/internal/model"
)

// --- Lotteries ---

// ListLotteries handles GET /api/v1/lotteries?status=
func (a *API) ListLotteries(w http.ResponseWriter, r *http.Request) {
	ls, err := a.Lotteries.List(r.Context(), model.LotteryStatus(r.URL.Query().Get("status")))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

// GetLottery handles GET /api/v1/lotteries/{lotteryID}
func (a *API) GetLottery(w http.ResponseWriter, r *http.Request) {
	d, err := a.Lotteries.Details(r.Context(), chi.URLParam(r, "lotteryID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, d)
}

// MyEntry handles GET /api/v1/lotteries/{lotteryID}/entry
func (a *API) MyEntry(w http.ResponseWriter, r *http.Request) {
	e, err := a.Lotteries.UserEntry(r.Context(), userID(r), chi.URLParam(r, "lotteryID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"has_entered": e != nil, "entry": e})
}

// EnterLottery handles POST /api/v1/lotteries/{lotteryID}/enter
func (a *API) EnterLottery(w http.ResponseWriter, r *http.Request) {
	e, err := a.Lotteries.Enter(r.Context(), userID(r), chi.URLParam(r, "lotteryID"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

// MyLotteries handles GET /api/v1/lotteries/mine
func (a *API) MyLotteries(w http.ResponseWriter, r *http.Request) {
	ls, err := a.Lotteries.UserLotteries(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ls)
}

// --- Wheel ---

// WheelPrizes handles GET /api/v1/wheel/prizes
func (a *API) WheelPrizes(w http.ResponseWriter, r *http.Request) {
	ps, err := a.Wheel.ActivePrizes(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if ps == nil {
		ps = []model.WheelPrize{}
	}
	writeJSON(w, http.StatusOK, ps)
}

// SpinWheel handles POST /api/v1/wheel/spin
func (a *API) SpinWheel(w http.ResponseWriter, r *http.Request) {
	res, err := a.Wheel.Spin(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// MySpins handles GET /api/v1/wheel/spins
func (a *API) MySpins(w http.ResponseWriter, r *http.Request) {
	spins, p, err := a.Wheel.UserSpins(r.Context(), userID(r), pageFrom(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writePage(w, spins, p)
}

// --- Slide ---

// SlideTarget handles GET /api/v1/slide/target
func (a *API) SlideTarget(w http.ResponseWriter, r *http.Request) {
	round, err := a.Slide.CurrentTarget(r.Context())
	if err != nil {
		fail(w, r, err)
		return
	}
	if round == nil {
		writeJSON(w, http.StatusOK, map[string]any{"target_number": nil, "message": "no target set"})
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// SlideWinners handles GET /api/v1/slide/winners?limit=
func (a *API) SlideWinners(w http.ResponseWriter, r *http.Request) {
	gs, err := a.Slide.RecentWinners(r.Context(), queryInt(r, "limit"))
	if err != nil {
		fail(w, r, err)
		return
	}
	if gs == nil {
		gs = []model.SlideGame{}
	}
	writeJSON(w, http.StatusOK, gs)
}

// PlayRequest is the JSON body for POST /slide/play.
type PlayRequest struct {
	UserNumber int             `json:"user_number"`
	Mode       model.SlideMode `json:"mode"`
}

// PlaySlide handles POST /api/v1/slide/play
func (a *API) PlaySlide(w http.ResponseWriter, r *http.Request) {
	var req PlayRequest
	if !decode(w, r, &req) {
		return
	}
	g, err := a.Slide.Play(r.Context(), userID(r), req.UserNumber, req.Mode)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

// MySlideGames handles GET /api/v1/slide/games
func (a *API) MySlideGames(w http.ResponseWriter, r *http.Request) {
	gs, p, err := a.Slide.UserGames(r.Context(), userID(r), pageFrom(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writePage(w, gs, p)
}
