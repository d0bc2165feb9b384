// Package models defines the core domain models for choremates.
//
// # Models
//
//   - Profile: a user's public identity and partner link
//   - PartnerInvitation: a time-boxed, single-use code linking two profiles
//   - Chore: a shared household task
//   - ChoreCompletion: the record of a chore being marked done
//   - ThankYou: a short message tied (optionally) to a chore
//   - User: a local password account, only used by the password auth path
//
// # Design Principles
//
// 1. Relationships are ID strings, never pointers between models.
// 2. Nullable columns are pointers (PartnerID, AcceptedBy, ChoreID).
// 3. Timestamps are UTC time.Time; each storage backend converts as needed.
// 4. JSON tags follow the backend column names so rows decode directly.
package models
