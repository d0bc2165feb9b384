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

// MaxOpenChores caps unfinished chores per owner.
const MaxOpenChores = 10

// ErrChoreLimitReached is returned when an owner already has MaxOpenChores
// unfinished chores.
var ErrChoreLimitReached = &apperr.Error{
	Kind:    apperr.KindValidation,
	Op:      "ChoreLimitReached",
	Message: "you can have at most 10 unfinished chores",
}

const choreTitleTag = "required,min=1,max=100"

// ChoreBalance is the household's completion tally.
type ChoreBalance struct {
	Members  []tally.MemberBalance `json:"members"`
	Catchups []tally.Catchup       `json:"catchups"`
}

// ChoreService manages chores and their completions.
type ChoreService struct {
	deps Deps
}

// NewChoreService creates a new ChoreService.
func NewChoreService(deps Deps) *ChoreService {
	return &ChoreService{deps: deps.withDefaults()}
}

// CreateChore adds a chore owned by ownerID, shared with the owner's partner
// if one is linked.
func (s *ChoreService) CreateChore(ctx context.Context, ownerID, title string) (*models.Chore, error) {
	const op = "CreateChore"
	if err := requireCaller(op, ownerID); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if err := validateVar(op, "title", title, choreTitleTag); err != nil {
		return nil, err
	}

	open, err := s.deps.Store.CountOpenChores(ctx, ownerID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if open >= MaxOpenChores {
		return nil, ErrChoreLimitReached
	}

	profile, err := s.deps.Store.GetProfile(ctx, ownerID)
	if err != nil {
		return nil, storeError(op, err)
	}

	chore := &models.Chore{
		ID:        uuid.New().String(),
		OwnerID:   ownerID,
		PartnerID: profile.PartnerID,
		Title:     title,
		CreatedAt: s.deps.Now().UTC(),
	}
	if err := s.deps.Store.CreateChore(ctx, chore); err != nil {
		slog.Error("CreateChore failed", "owner_id", ownerID, "error", err)
		return nil, storeError(op, err)
	}

	s.publish(realtime.Insert, chore)
	slog.Info("Chore created", "chore_id", chore.ID, "owner_id", ownerID, "shared", chore.PartnerID != nil)
	return chore, nil
}

// ListChores returns chores owned by or shared with userID, newest first.
func (s *ChoreService) ListChores(ctx context.Context, userID string) ([]*models.Chore, error) {
	const op = "ListChores"
	if err := requireCaller(op, userID); err != nil {
		return nil, err
	}
	chores, err := s.deps.Store.ListChores(ctx, userID)
	if err != nil {
		slog.Error("ListChores failed", "user_id", userID, "error", err)
		return nil, storeError(op, err)
	}
	return chores, nil
}

// getForParty loads a chore and checks userID is its owner or partner.
func (s *ChoreService) getForParty(ctx context.Context, op, userID, choreID string) (*models.Chore, error) {
	if err := requireCaller(op, userID); err != nil {
		return nil, err
	}
	if err := validateVar(op, "chore_id", choreID, "required,uuid"); err != nil {
		return nil, err
	}
	chore, err := s.deps.Store.GetChore(ctx, choreID)
	if err != nil {
		return nil, storeError(op, err)
	}
	if !chore.InvolvesUser(userID) {
		return nil, apperr.Authorization(op, "not your chore")
	}
	return chore, nil
}

// UpdateChore renames a chore. Either party may rename it.
func (s *ChoreService) UpdateChore(ctx context.Context, userID, choreID, title string) (*models.Chore, error) {
	const op = "UpdateChore"
	chore, err := s.getForParty(ctx, op, userID, choreID)
	if err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if err := validateVar(op, "title", title, choreTitleTag); err != nil {
		return nil, err
	}

	if err := s.deps.Store.UpdateChoreTitle(ctx, choreID, title); err != nil {
		return nil, storeError(op, err)
	}
	chore.Title = title

	s.publish(realtime.Update, chore)
	return chore, nil
}

// SetDone marks a chore done or reopens it. Marking it done records a
// completion by userID, which is returned.
func (s *ChoreService) SetDone(ctx context.Context, userID, choreID string, done bool) (*models.Chore, *models.ChoreCompletion, error) {
	const op = "SetDone"
	chore, err := s.getForParty(ctx, op, userID, choreID)
	if err != nil {
		return nil, nil, err
	}
	if chore.Done == done {
		return chore, nil, nil
	}

	var completion *models.ChoreCompletion
	if done {
		completion = &models.ChoreCompletion{
			ID:          uuid.New().String(),
			ChoreID:     chore.ID,
			CompletedBy: userID,
			CompletedAt: s.deps.Now().UTC(),
		}
	} else {
		open, err := s.deps.Store.CountOpenChores(ctx, chore.OwnerID)
		if err != nil {
			return nil, nil, storeError(op, err)
		}
		if open >= MaxOpenChores {
			return nil, nil, ErrChoreLimitReached
		}
	}

	if err := s.deps.Store.SetChoreDone(ctx, chore.ID, done, completion); err != nil {
		appErr := storeError(op, err)
		if apperr.KindOf(appErr) == apperr.KindPersistence {
			slog.Error("SetDone failed", "chore_id", chore.ID, "error", err)
		} else {
			slog.Warn("SetDone lost a race", "chore_id", chore.ID, "user_id", userID, "error", err)
		}
		return nil, nil, appErr
	}
	chore.Done = done

	if done {
		s.deps.Metrics.ChoresCompleted.Inc()
		slog.Info("Chore completed", "chore_id", chore.ID, "completed_by", userID)
	}
	s.publish(realtime.Update, chore)
	return chore, completion, nil
}

// DeleteChore removes a chore. Only the owner may delete it.
func (s *ChoreService) DeleteChore(ctx context.Context, userID, choreID string) error {
	const op = "DeleteChore"
	chore, err := s.getForParty(ctx, op, userID, choreID)
	if err != nil {
		return err
	}
	if chore.OwnerID != userID {
		return apperr.Authorization(op, "only the owner can delete a chore")
	}

	if err := s.deps.Store.DeleteChore(ctx, chore.ID); err != nil {
		return storeError(op, err)
	}

	s.publish(realtime.Delete, chore)
	slog.Info("Chore deleted", "chore_id", chore.ID, "owner_id", userID)
	return nil
}

// ChoreBalance tallies completions for the caller and their partner.
func (s *ChoreService) ChoreBalance(ctx context.Context, userID string) (*ChoreBalance, error) {
	const op = "ChoreBalance"
	if err := requireCaller(op, userID); err != nil {
		return nil, err
	}

	profile, err := s.deps.Store.GetProfile(ctx, userID)
	if err != nil {
		return nil, storeError(op, err)
	}
	members := []string{userID}
	if profile.HasPartner() {
		members = append(members, *profile.PartnerID)
	}

	completions, err := s.deps.Store.ListCompletionsByUsers(ctx, members)
	if err != nil {
		return nil, storeError(op, err)
	}

	balances, catchups, err := tally.ChoreBalance(members, completions)
	if err != nil {
		return nil, apperr.Validation(op, "%v", err)
	}
	return &ChoreBalance{Members: balances, Catchups: catchups}, nil
}

func (s *ChoreService) publish(t realtime.EventType, c *models.Chore) {
	s.deps.Publisher.Publish(realtime.Event{
		Table: realtime.TableChores,
		Type:  t,
		Columns: map[string]string{
			"id":         c.ID,
			"owner_id":   c.OwnerID,
			"partner_id": ptrValue(c.PartnerID),
		},
		Record: c,
	})
}
