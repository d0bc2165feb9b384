package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/mmynk/choremates/internal/apperr"
	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/realtime"
	"github.com/mmynk/choremates/internal/storage"
)

// DefaultInviteTTL is how long a new invitation stays usable.
const DefaultInviteTTL = 7 * 24 * time.Hour

var inviteCodePattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// ValidInviteCode reports whether code has the invitation code format.
func ValidInviteCode(code string) bool {
	return inviteCodePattern.MatchString(code)
}

// NewInviteCode returns a random version 4 UUID without hyphens.
func NewInviteCode() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// MaskEmail keeps the first character of the local part: j***@x.com.
func MaskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || local == "" || domain == "" {
		return "***"
	}
	_, size := utf8.DecodeRuneInString(local)
	return local[:size] + "***@" + domain
}

// InvitationOptions configures an InvitationService.
type InvitationOptions struct {
	TTL          time.Duration
	PublicURL    string // Base URL the invite link points at
	QRServiceURL string // Image service; the invite URL is appended query-escaped
}

// Invitation is an invitation plus the links a client shows for it.
type Invitation struct {
	*models.PartnerInvitation
	InviteURL string `json:"invite_url"`
	QRCodeURL string `json:"qr_code_url"`
}

// InvitationDetails is what anyone holding a code may see.
type InvitationDetails struct {
	*models.PartnerInvitation
	InviterName  string `json:"inviter_name"`
	InviterEmail string `json:"inviter_email"` // Masked
}

// InvitationService manages partner invitations.
type InvitationService struct {
	deps Deps
	opts InvitationOptions
}

// NewInvitationService creates a new InvitationService.
func NewInvitationService(deps Deps, opts InvitationOptions) *InvitationService {
	if opts.TTL <= 0 {
		opts.TTL = DefaultInviteTTL
	}
	return &InvitationService{deps: deps.withDefaults(), opts: opts}
}

func (s *InvitationService) decorate(inv *models.PartnerInvitation) *Invitation {
	link := strings.TrimRight(s.opts.PublicURL, "/") + "/invite/" + inv.InviteCode
	out := &Invitation{PartnerInvitation: inv, InviteURL: link}
	if s.opts.QRServiceURL != "" {
		out.QRCodeURL = s.opts.QRServiceURL + url.QueryEscape(link)
	}
	return out
}

// CreateInvitation creates a pending invitation for inviterID.
func (s *InvitationService) CreateInvitation(ctx context.Context, inviterID, inviteeEmail string) (*Invitation, error) {
	const op = "CreateInvitation"
	if err := requireCaller(op, inviterID); err != nil {
		return nil, err
	}
	inviteeEmail = strings.TrimSpace(inviteeEmail)
	if err := validateVar(op, "invitee_email", inviteeEmail, "omitempty,email"); err != nil {
		return nil, err
	}

	profile, err := s.deps.Store.GetProfile(ctx, inviterID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if profile.HasPartner() {
		return nil, apperr.Validation(op, "you already have a partner")
	}

	now := s.deps.Now().UTC()
	inv := &models.PartnerInvitation{
		ID:         uuid.New().String(),
		InviterID:  inviterID,
		InviteCode: NewInviteCode(),
		Status:     models.InvitationPending,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.opts.TTL),
	}
	if inviteeEmail != "" {
		inv.InviteeEmail = &inviteeEmail
	}

	if err := s.deps.Store.CreateInvitation(ctx, inv); err != nil {
		slog.Error("CreateInvitation failed", "inviter_id", inviterID, "error", err)
		return nil, storeError(op, err)
	}

	s.deps.Metrics.InvitationsCreated.Inc()
	s.publish(realtime.Insert, inv)
	slog.Info("Invitation created", "invitation_id", inv.ID, "inviter_id", inviterID, "expires_at", inv.ExpiresAt)

	return s.decorate(inv), nil
}

// ListInvitations returns every invitation inviterID created, newest first.
func (s *InvitationService) ListInvitations(ctx context.Context, inviterID string) ([]*Invitation, error) {
	const op = "ListInvitations"
	if err := requireCaller(op, inviterID); err != nil {
		return nil, err
	}

	invs, err := s.deps.Store.ListInvitationsByInviter(ctx, inviterID)
	if err != nil {
		slog.Error("ListInvitations failed", "inviter_id", inviterID, "error", err)
		return nil, storeError(op, err)
	}

	out := make([]*Invitation, 0, len(invs))
	for _, inv := range invs {
		out = append(out, s.decorate(inv))
	}
	return out, nil
}

// CurrentInvitation returns the first pending, unexpired invitation in the
// inviter's list, or a NotFound error.
func (s *InvitationService) CurrentInvitation(ctx context.Context, inviterID string) (*Invitation, error) {
	invs, err := s.ListInvitations(ctx, inviterID)
	if err != nil {
		return nil, err
	}
	now := s.deps.Now()
	for _, inv := range invs {
		if inv.Usable(now) {
			return inv, nil
		}
	}
	return nil, apperr.NotFound("CurrentInvitation", "no active invitation")
}

// GetInvitation returns the public details of a usable invitation. Malformed,
// unknown, expired and no-longer-pending codes all report NotFound.
func (s *InvitationService) GetInvitation(ctx context.Context, code string) (*InvitationDetails, error) {
	const op = "GetInvitation"
	if !ValidInviteCode(code) {
		return nil, apperr.NotFound(op, "invitation not found")
	}

	inv, err := s.deps.Store.GetInvitationByCode(ctx, code)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, apperr.NotFound(op, "invitation not found")
		}
		slog.Error("GetInvitation failed", "error", err)
		return nil, apperr.Persistence(op, err)
	}
	if !inv.Usable(s.deps.Now()) {
		return nil, apperr.NotFound(op, "invitation not found or expired")
	}

	inviter, err := s.deps.Store.GetProfile(ctx, inv.InviterID)
	if err != nil {
		return nil, storeError(op, err)
	}

	if inv.InviteeEmail != nil {
		masked := MaskEmail(*inv.InviteeEmail)
		inv.InviteeEmail = &masked
	}
	return &InvitationDetails{
		PartnerInvitation: inv,
		InviterName:       inviter.DisplayName,
		InviterEmail:      MaskEmail(inviter.Email),
	}, nil
}

// AcceptInvitation links accepterID with the invitation's inviter. The link
// itself is one atomic store operation, so of several concurrent accepts for
// the same code exactly one succeeds and the others get a Conflict.
func (s *InvitationService) AcceptInvitation(ctx context.Context, code, accepterID string) (*models.LinkResult, error) {
	const op = "AcceptInvitation"
	if err := requireCaller(op, accepterID); err != nil {
		return nil, err
	}
	if !ValidInviteCode(code) {
		return nil, apperr.Validation(op, "invalid invitation code")
	}

	result, err := s.deps.Store.LinkPartners(ctx, code, accepterID, s.deps.Now().UTC())
	if err != nil {
		appErr := storeError(op, err)
		switch apperr.KindOf(appErr) {
		case apperr.KindConflict:
			s.deps.Metrics.AcceptConflicts.Inc()
			slog.Warn("AcceptInvitation conflict", "accepter_id", accepterID, "error", err)
		case apperr.KindNotFound:
			appErr = apperr.NotFound(op, "invitation not found")
		case apperr.KindValidation:
			slog.Warn("AcceptInvitation rejected", "accepter_id", accepterID, "error", err)
		default:
			slog.Error("AcceptInvitation failed", "accepter_id", accepterID, "error", err)
		}
		return nil, appErr
	}

	s.deps.Metrics.InvitationsAccepted.Inc()
	s.announceLink(result.PartnerID, accepterID)
	slog.Info("Invitation accepted",
		"inviter_id", result.PartnerID,
		"accepter_id", accepterID,
		"shared_chores", result.SharedChoresCount,
	)
	return result, nil
}

// CancelInvitation withdraws one of the inviter's pending invitations.
func (s *InvitationService) CancelInvitation(ctx context.Context, inviterID, code string) error {
	const op = "CancelInvitation"
	if err := requireCaller(op, inviterID); err != nil {
		return err
	}
	if !ValidInviteCode(code) {
		return apperr.Validation(op, "invalid invitation code")
	}

	if err := s.deps.Store.CancelInvitation(ctx, code, inviterID); err != nil {
		appErr := storeError(op, err)
		if apperr.KindOf(appErr) == apperr.KindPersistence {
			slog.Error("CancelInvitation failed", "inviter_id", inviterID, "error", err)
		}
		return appErr
	}

	s.deps.Publisher.Publish(realtime.Event{
		Table:   realtime.TableInvitations,
		Type:    realtime.Update,
		Columns: map[string]string{"inviter_id": inviterID},
	})
	slog.Info("Invitation cancelled", "inviter_id", inviterID)
	return nil
}

func (s *InvitationService) publish(t realtime.EventType, inv *models.PartnerInvitation) {
	s.deps.Publisher.Publish(realtime.Event{
		Table:   realtime.TableInvitations,
		Type:    t,
		Columns: map[string]string{"inviter_id": inv.InviterID},
		Record:  inv,
	})
}

// announceLink tells both partners' sessions to reload profile, invitation
// and chore state.
func (s *InvitationService) announceLink(inviterID, accepterID string) {
	for _, id := range []string{inviterID, accepterID} {
		s.deps.Publisher.Publish(realtime.Event{
			Table:   realtime.TableProfiles,
			Type:    realtime.Update,
			Columns: map[string]string{"id": id},
		})
	}
	s.deps.Publisher.Publish(realtime.Event{
		Table:   realtime.TableInvitations,
		Type:    realtime.Update,
		Columns: map[string]string{"inviter_id": inviterID},
	})
	s.deps.Publisher.Publish(realtime.Event{
		Table:   realtime.TableChores,
		Type:    realtime.Update,
		Columns: map[string]string{"owner_id": inviterID, "partner_id": accepterID},
	})
}

