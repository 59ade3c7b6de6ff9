// Package referral links new users to the user who invited them and rewards
// the referrer with a chance.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/luckyspin/rewards-engine/internal/chance"
	"github.com/luckyspin/rewards-engine/internal/fairness"
	"github.com/luckyspin/rewards-engine/internal/metrics"
	"github.com/luckyspin/rewards-engine/internal/model"
	"github.com/luckyspin/rewards-engine/internal/store"
)

const (
	codeLength   = 8
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeAttempts = 5
	recentLimit  = 10
)

// Service manages referral codes and registrations.
type Service struct {
	store       store.Store
	rng         fairness.Source
	frontendURL string
}

// NewService creates a referral service. Links are built on frontendURL.
func NewService(st store.Store, rng fairness.Source, frontendURL string) *Service {
	return &Service{store: st, rng: rng, frontendURL: strings.TrimRight(frontendURL, "/")}
}

func (s *Service) newCode() string {
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[s.rng.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// CodeInfo is a user's shareable code and link.
type CodeInfo struct {
	Code string `json:"referral_code"`
	Link string `json:"referral_link"`
}

func (s *Service) info(code string) *CodeInfo {
	return &CodeInfo{Code: code, Link: s.frontendURL + "/register?ref=" + code}
}

// Code returns the user's referral code, generating it on first use.
func (s *Service) Code(ctx context.Context, userID string) (*CodeInfo, error) {
	var rc *model.ReferralCode
	err := s.store.View(ctx, func(q store.Queries) error {
		var err error
		rc, err = q.GetReferralCode(ctx, userID)
		return err
	})
	if err == nil {
		return s.info(rc.Code), nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}

	for attempt := 0; attempt < codeAttempts; attempt++ {
		err = s.store.InTx(ctx, func(q store.Queries) error {
			existing, err := q.GetReferralCode(ctx, userID)
			if err == nil {
				rc = existing
				return nil
			}
			if !errors.Is(err, model.ErrNotFound) {
				return err
			}
			rc = &model.ReferralCode{UserID: userID, Code: s.newCode(), CreatedAt: time.Now().UTC()}
			return q.InsertReferralCode(ctx, rc)
		})
		// A clash is either another code or a concurrent first call; retry.
		if errors.Is(err, model.ErrDuplicateEntry) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return s.info(rc.Code), nil
	}
	return nil, fmt.Errorf("generate referral code for %s: %w", userID, err)
}

// Register records that userID was referred by the owner of code and grants
// the referrer one chance. Referrals sharing an IP address or device with
// earlier referrals of the same referrer are accepted but flagged.
func (s *Service) Register(ctx context.Context, userID, code, ip, device string) (*model.Referral, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, fmt.Errorf("referral code is required: %w", model.ErrInvalidArgument)
	}

	var ref *model.Referral
	err := s.store.InTx(ctx, func(q store.Queries) error {
		rc, err := q.FindReferralCode(ctx, code)
		if err != nil {
			return err
		}
		if rc.UserID == userID {
			return fmt.Errorf("cannot refer yourself: %w", model.ErrInvalidArgument)
		}
		switch _, err := q.GetReferralByReferred(ctx, userID); {
		case err == nil:
			return fmt.Errorf("user %s already has a referrer: %w", userID, model.ErrDuplicateEntry)
		case !errors.Is(err, model.ErrNotFound):
			return err
		}

		same, err := q.CountReferralsFrom(ctx, rc.UserID, ip, device)
		if err != nil {
			return err
		}
		ref = &model.Referral{
			ID:                uuid.New().String(),
			ReferrerID:        rc.UserID,
			ReferredID:        userID,
			Code:              code,
			IPAddress:         ip,
			DeviceFingerprint: device,
			Suspicious:        same > 0,
			IsActive:          true,
			CreatedAt:         time.Now().UTC(),
		}
		if err := q.InsertReferral(ctx, ref); err != nil {
			return err
		}

		if _, err := q.LockWallet(ctx, rc.UserID); err != nil {
			return err
		}
		if _, err := chance.GrantTx(ctx, q, rc.UserID, model.SourceReferral, ref.ID); err != nil {
			return err
		}
		if err := q.MarkReferralChanceGranted(ctx, ref.ID); err != nil {
			return err
		}
		ref.ChanceGranted = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Referrals.WithLabelValues(strconv.FormatBool(ref.Suspicious)).Inc()
	if ref.Suspicious {
		slog.Warn("suspicious referral",
			"referrer", ref.ReferrerID,
			"referred", userID,
			"ip", ip,
			"device", device,
		)
	} else {
		slog.Info("referral registered", "referrer", ref.ReferrerID, "referred", userID)
	}
	return ref, nil
}

// Stats summarizes a referrer's activity.
type Stats struct {
	TotalReferrals      int              `json:"total_referrals"`
	ActiveReferrals     int              `json:"active_referrals"`
	TotalChancesGranted int              `json:"total_chances_granted"`
	RecentReferrals     []model.Referral `json:"recent_referrals"`
}

// Stats returns the user's referral counts and most recent referrals.
func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	var st Stats
	err := s.store.View(ctx, func(q store.Queries) error {
		all, total, err := q.ListReferrals(ctx, userID, 0)
		if err != nil {
			return err
		}
		st.TotalReferrals = total
		for _, r := range all {
			if r.IsActive {
				st.ActiveReferrals++
			}
		}
		if len(all) > recentLimit {
			all = all[:recentLimit]
		}
		st.RecentReferrals = all
		st.TotalChancesGranted, err = q.CountChancesBySource(ctx, userID, model.SourceReferral)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// Referrer returns the referral that brought userID in, nil if none.
func (s *Service) Referrer(ctx context.Context, userID string) (*model.Referral, error) {
	var ref *model.Referral
	err := s.store.View(ctx, func(q store.Queries) error {
		r, err := q.GetReferralByReferred(ctx, userID)
		if errors.Is(err, model.ErrNotFound) {
			return nil
		}
		ref = r
		return err
	})
	return ref, err
}
