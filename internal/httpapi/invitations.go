package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmynk/choremates/internal/middleware"
	"github.com/mmynk/choremates/internal/service"
)

// InvitationHandler serves the partner invitation endpoints.
type InvitationHandler struct {
	invitations *service.InvitationService
}

// NewInvitationHandler creates a new InvitationHandler.
func NewInvitationHandler(invitations *service.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitations: invitations}
}

type createInvitationRequest struct {
	InviteeEmail string `json:"invitee_email"`
}

// List returns the caller's invitations.
func (h *InvitationHandler) List(w http.ResponseWriter, r *http.Request) {
	invs, err := h.invitations.ListInvitations(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, invs)
}

// Current returns the caller's usable invitation, or 404 when there is none.
func (h *InvitationHandler) Current(w http.ResponseWriter, r *http.Request) {
	inv, err := h.invitations.CurrentInvitation(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// Create issues a new invitation. The body is optional.
func (h *InvitationHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createInvitationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	inv, err := h.invitations.CreateInvitation(r.Context(), middleware.GetUserID(r.Context()), req.InviteeEmail)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, inv)
}

// Get returns the public details of a usable invitation.
func (h *InvitationHandler) Get(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	if !service.ValidInviteCode(code) {
		respondError(w, http.StatusBadRequest, "invalid invitation code")
		return
	}

	details, err := h.invitations.GetInvitation(r.Context(), code)
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, details)
}

// Accept links the caller with the inviter.
func (h *InvitationHandler) Accept(w http.ResponseWriter, r *http.Request) {
	result, err := h.invitations.AcceptInvitation(r.Context(), chi.URLParam(r, "code"), middleware.GetUserID(r.Context()))
	if err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Cancel withdraws one of the caller's pending invitations.
func (h *InvitationHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.invitations.CancelInvitation(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "code")); err != nil {
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, nil)
}
