package models

import "time"

// InvitationStatus is the lifecycle state of a PartnerInvitation.
type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "pending"
	InvitationAccepted  InvitationStatus = "accepted"
	InvitationExpired   InvitationStatus = "expired"
	InvitationCancelled InvitationStatus = "cancelled"
)

// Terminal reports whether no further transition can leave the status.
func (s InvitationStatus) Terminal() bool {
	return s != InvitationPending
}

// PartnerInvitation lets one user link their profile to another's.
//
// Invitations start pending and move exactly once to accepted, expired or
// cancelled.
type PartnerInvitation struct {
	// ID is the unique identifier for the invitation (UUID format).
	ID string `json:"id"`

	// InviterID is the profile that created the invitation.
	InviterID string `json:"inviter_id"`

	// InviteCode is 32 lowercase hex characters (a UUIDv4 without hyphens).
	InviteCode string `json:"invite_code"`

	// InviteeEmail is informational only; acceptance does not check it.
	InviteeEmail *string `json:"invitee_email"`

	Status     InvitationStatus `json:"status"`
	CreatedAt  time.Time        `json:"created_at"`
	ExpiresAt  time.Time        `json:"expires_at"`
	AcceptedBy *string          `json:"accepted_by"`
	AcceptedAt *time.Time       `json:"accepted_at"`
}

// Usable reports whether the invitation is pending and not past its expiry.
func (i *PartnerInvitation) Usable(now time.Time) bool {
	return i.Status == InvitationPending && now.Before(i.ExpiresAt)
}

// LinkResult is what the atomic link procedure reports back to the accepter.
type LinkResult struct {
	PartnerID         string `json:"partner_id"`
	PartnerName       string `json:"partner_name"`
	SharedChoresCount int    `json:"shared_chores_count"`
}
