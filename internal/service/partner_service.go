package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/mmynk/choremates/internal/apperr"
	"github.com/mmynk/choremates/internal/auth"
	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/realtime"
	"github.com/mmynk/choremates/internal/storage"
)

// PartnerInfo is the caller's view of their partner link.
type PartnerInfo struct {
	HasPartner  bool   `json:"has_partner"`
	PartnerID   string `json:"partner_id,omitempty"`
	PartnerName string `json:"partner_name,omitempty"`
}

// RetryOptions bound GetPartnerInfoWithRetry.
type RetryOptions struct {
	Retries uint          // Retries after the first attempt
	Delay   time.Duration // Constant spacing between attempts
}

// DefaultRetryOptions allows 3 retries two seconds apart.
var DefaultRetryOptions = RetryOptions{Retries: 3, Delay: 2 * time.Second}

// PartnerService reads and clears the partner link.
type PartnerService struct {
	deps  Deps
	retry RetryOptions
}

// NewPartnerService creates a new PartnerService.
func NewPartnerService(deps Deps, retry RetryOptions) *PartnerService {
	return &PartnerService{deps: deps.withDefaults(), retry: retry}
}

// Profile returns the caller's own profile.
func (s *PartnerService) Profile(ctx context.Context, userID string) (*models.Profile, error) {
	const op = "Profile"
	if err := requireCaller(op, userID); err != nil {
		return nil, err
	}
	profile, err := s.deps.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, storeError(op, err)
	}
	return profile, nil
}

// GetPartnerInfo reads the caller's profile, then the partner's. The two reads
// are not a transaction: if the partner row vanishes in between, the caller is
// reported as having no partner.
func (s *PartnerService) GetPartnerInfo(ctx context.Context, userID string) (*PartnerInfo, error) {
	const op = "GetPartnerInfo"
	if err := requireCaller(op, userID); err != nil {
		return nil, err
	}

	profile, err := s.deps.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if !profile.HasPartner() {
		return &PartnerInfo{}, nil
	}

	partner, err := s.deps.Store.GetProfile(ctx, *profile.PartnerID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			slog.Warn("Partner profile missing, reporting no partner", "user_id", userID, "partner_id", *profile.PartnerID)
			return &PartnerInfo{}, nil
		}
		return nil, storeError(op, err)
	}

	return &PartnerInfo{
		HasPartner:  true,
		PartnerID:   partner.ID,
		PartnerName: partner.DisplayName,
	}, nil
}

// GetPartnerInfoWithRetry retries transient failures of GetPartnerInfo.
// Client errors and expired credentials are returned at once.
func (s *PartnerService) GetPartnerInfoWithRetry(ctx context.Context, userID string) (*PartnerInfo, error) {
	attempt := 0
	return backoff.Retry(ctx, func() (*PartnerInfo, error) {
		attempt++
		info, err := s.GetPartnerInfo(ctx, userID)
		if err == nil {
			return info, nil
		}
		if !retryable(err) {
			return nil, backoff.Permanent(err)
		}
		slog.Warn("GetPartnerInfo failed, retrying", "user_id", userID, "attempt", attempt, "error", err)
		return nil, err
	},
		backoff.WithBackOff(backoff.NewConstantBackOff(s.retry.Delay)),
		backoff.WithMaxTries(s.retry.Retries+1),
	)
}

// retryable reports whether err is a backend failure worth another attempt.
func retryable(err error) bool {
	if apperr.KindOf(err) != apperr.KindPersistence {
		return false
	}
	return !isAuthExpiry(err)
}

func isAuthExpiry(err error) bool {
	if errors.Is(err, auth.ErrExpiredToken) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "jwt expired") || strings.Contains(msg, "token is expired")
}

// Unlink clears the link on both profiles in one atomic store operation and
// stops sharing the couple's chores.
func (s *PartnerService) Unlink(ctx context.Context, userID string) error {
	const op = "Unlink"
	if err := requireCaller(op, userID); err != nil {
		return err
	}

	partnerID, err := s.deps.Store.UnlinkPartners(ctx, userID)
	if err != nil {
		appErr := storeError(op, err)
		if apperr.KindOf(appErr) == apperr.KindPersistence {
			slog.Error("Unlink failed", "user_id", userID, "error", err)
		}
		return appErr
	}

	for _, id := range []string{userID, partnerID} {
		s.deps.Publisher.Publish(realtime.Event{
			Table:   realtime.TableProfiles,
			Type:    realtime.Update,
			Columns: map[string]string{"id": id},
		})
	}
	s.deps.Publisher.Publish(realtime.Event{
		Table:   realtime.TableChores,
		Type:    realtime.Update,
		Columns: map[string]string{"owner_id": userID, "partner_id": partnerID},
	})
	slog.Info("Partners unlinked", "user_id", userID, "partner_id", partnerID)
	return nil
}
