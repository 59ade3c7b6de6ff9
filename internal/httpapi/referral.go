package httpapi

import (
	"net"
	"net/http"
)

// ReferralCode handles GET /api/v1/referrals/code
func (a *API) ReferralCode(w http.ResponseWriter, r *http.Request) {
	info, err := a.Referrals.Code(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// ReferralStats handles GET /api/v1/referrals/stats
func (a *API) ReferralStats(w http.ResponseWriter, r *http.Request) {
	s, err := a.Referrals.Stats(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// MyReferrer handles GET /api/v1/referrals/referrer
func (a *API) MyReferrer(w http.ResponseWriter, r *http.Request) {
	ref, err := a.Referrals.Referrer(r.Context(), userID(r))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"referral": ref})
}

// RegisterReferralRequest is the JSON body for POST /referrals.
type RegisterReferralRequest struct {
	Code              string `json:"referral_code"`
	DeviceFingerprint string `json:"device_fingerprint,omitempty"`
}

// RegisterReferral handles POST /api/v1/referrals. The client address comes
// from the connection (after RealIP), never from the body.
func (a *API) RegisterReferral(w http.ResponseWriter, r *http.Request) {
	var req RegisterReferralRequest
	if !decode(w, r, &req) {
		return
	}
	ref, err := a.Referrals.Register(r.Context(), userID(r), req.Code, clientIP(r), req.DeviceFingerprint)
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ref)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
