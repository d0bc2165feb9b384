package rpc

import (
	"time"

	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/service"
	"github.com/mmynk/choremates/internal/tally"
)

// Auth

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	PartnerID   string    `json:"partner_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type AuthResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

// Partner

type GetPartnerInfoRequest struct{}

type GetPartnerInfoResponse struct {
	Partner *service.PartnerInfo `json:"partner"`
}

type UnlinkRequest struct{}

type UnlinkResponse struct{}

// Chores

type CreateChoreRequest struct {
	Title string `json:"title"`
}

type ChoreResponse struct {
	Chore *models.Chore `json:"chore"`
}

type ListChoresRequest struct{}

type ListChoresResponse struct {
	Chores []*models.Chore `json:"chores"`
}

type UpdateChoreRequest struct {
	ChoreID string `json:"chore_id"`
	Title   string `json:"title"`
}

type SetDoneRequest struct {
	ChoreID string `json:"chore_id"`
	Done    bool   `json:"done"`
}

type SetDoneResponse struct {
	Chore      *models.Chore           `json:"chore"`
	Completion *models.ChoreCompletion `json:"completion,omitempty"`
}

type DeleteChoreRequest struct {
	ChoreID string `json:"chore_id"`
}

type DeleteChoreResponse struct{}

type GetChoreBalanceRequest struct{}

type GetChoreBalanceResponse struct {
	Members  []tally.MemberBalance `json:"members"`
	Catchups []tally.Catchup       `json:"catchups"`
}

// Thank-yous

type SendThankYouRequest = service.SendThankYouInput

type SendThankYouForCompletionRequest struct {
	CompletionID string `json:"completion_id"`
	Message      string `json:"message"`
}

type ThankYouResponse struct {
	ThankYou *models.ThankYou `json:"thank_you"`
}

type GetHistoryRequest = service.HistoryOptions

type GetHistoryResponse struct {
	ThankYous []*models.ThankYou `json:"thank_yous"`
}

type GetStatsRequest struct{}

type GetStatsResponse struct {
	Stats *models.ThankYouStats `json:"stats"`
}
