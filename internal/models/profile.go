package models

import "time"

// Profile is the public side of a user: display name and partner link.
//
// The partner link is symmetric in intent (A.PartnerID == B.ID implies
// B.PartnerID == A.ID) but readers must tolerate a transient one-sided link.
type Profile struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email,omitempty"`
	PartnerID   *string   `json:"partner_id"`
	CreatedAt   time.Time `json:"created_at"`
}

// HasPartner reports whether the profile points at a partner.
func (p *Profile) HasPartner() bool {
	return p != nil && p.PartnerID != nil && *p.PartnerID != ""
}
