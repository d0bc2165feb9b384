package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/mmynk/choremates/internal/apperr"
	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/realtime"
	"github.com/mmynk/choremates/internal/tally"
)

// History paging limits.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// SendThankYouInput is the body of a thank-you.
type SendThankYouInput struct {
	ToID    string  `json:"to_id" validate:"required,uuid"`
	ChoreID *string `json:"chore_id,omitempty" validate:"omitempty,uuid"`
	Message string  `json:"message" validate:"required,min=1,max=500"`
}

// HistoryOptions pages through thank-you history.
type HistoryOptions struct {
	Limit  int    `json:"limit" validate:"gte=0"`
	Offset int    `json:"offset" validate:"gte=0"`
	Type   string `json:"type" validate:"omitempty,oneof=sent received all"`
}

// ThankYouService sends and lists thank-you messages.
type ThankYouService struct {
	deps Deps
}

// NewThankYouService creates a new ThankYouService.
func NewThankYouService(deps Deps) *ThankYouService {
	return &ThankYouService{deps: deps.withDefaults()}
}

// SendThankYou records a message from fromID to input.ToID.
func (s *ThankYouService) SendThankYou(ctx context.Context, fromID string, input SendThankYouInput) (*models.ThankYou, error) {
	const op = "SendThankYou"
	if err := requireCaller(op, fromID); err != nil {
		return nil, err
	}
	input.Message = strings.TrimSpace(input.Message)
	if err := validateStruct(op, input); err != nil {
		return nil, err
	}
	if input.ToID == fromID {
		return nil, apperr.Validation(op, "you cannot thank yourself")
	}

	msg := &models.ThankYou{
		ID:        uuid.New().String(),
		FromID:    fromID,
		ToID:      input.ToID,
		Message:   input.Message,
		ChoreID:   input.ChoreID,
		CreatedAt: s.deps.Now().UTC(),
	}
	if err := s.deps.Store.CreateThankYou(ctx, msg); err != nil {
		slog.Error("SendThankYou failed", "from_id", fromID, "to_id", input.ToID, "error", err)
		return nil, apperr.Persistence(op, err)
	}

	s.deps.Metrics.ThanksSent.Inc()
	s.deps.Publisher.Publish(realtime.Event{
		Table: realtime.TableThanks,
		Type:  realtime.Insert,
		Columns: map[string]string{
			"from_id": msg.FromID,
			"to_id":   msg.ToID,
		},
		Record: msg,
	})
	slog.Info("Thank-you sent", "thanks_id", msg.ID, "from_id", fromID, "to_id", msg.ToID)
	return msg, nil
}

// SendThankYouForChore thanks whoever made the completion. The sender must be
// the chore's owner or partner.
func (s *ThankYouService) SendThankYouForChore(ctx context.Context, fromID, completionID string, input SendThankYouInput) (*models.ThankYou, error) {
	const op = "SendThankYouForChore"
	if err := requireCaller(op, fromID); err != nil {
		return nil, err
	}
	if err := validateVar(op, "completion_id", completionID, "required,uuid"); err != nil {
		return nil, err
	}

	completion, err := s.deps.Store.GetCompletion(ctx, completionID)
	if err != nil {
		return nil, storeError(op, err)
	}
	chore, err := s.deps.Store.GetChore(ctx, completion.ChoreID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if !chore.InvolvesUser(fromID) {
		return nil, apperr.Authorization(op, "not a party to this chore")
	}

	input.ToID = completion.CompletedBy
	input.ChoreID = &chore.ID
	return s.SendThankYou(ctx, fromID, input)
}

// GetThankYouHistory lists userID's messages newest first.
func (s *ThankYouService) GetThankYouHistory(ctx context.Context, userID string, opts HistoryOptions) ([]*models.ThankYou, error) {
	const op = "GetThankYouHistory"
	if err := requireCaller(op, userID); err != nil {
		return nil, err
	}
	if err := validateStruct(op, opts); err != nil {
		return nil, err
	}

	filter := models.ThankYouFilter{
		UserID:    userID,
		Direction: models.ThankYouDirection(opts.Type),
		Limit:     min(opts.Limit, MaxHistoryLimit),
		Offset:    opts.Offset,
	}
	if filter.Direction == "" {
		filter.Direction = models.ThanksAll
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultHistoryLimit
	}

	msgs, err := s.deps.Store.ListThankYous(ctx, filter)
	if err != nil {
		slog.Error("GetThankYouHistory failed", "user_id", userID, "error", err)
		return nil, apperr.Persistence(op, err)
	}
	return msgs, nil
}

// GetThankYouStats counts the messages userID sent and received.
func (s *ThankYouService) GetThankYouStats(ctx context.Context, userID string) (*models.ThankYouStats, error) {
	const op = "GetThankYouStats"
	if err := requireCaller(op, userID); err != nil {
		return nil, err
	}
	sent, received, err := s.deps.Store.CountThankYous(ctx, userID)
	if err != nil {
		return nil, apperr.Persistence(op, err)
	}
	stats := tally.Stats(sent, received)
	return &stats, nil
}
