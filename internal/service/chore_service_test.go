package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/choremates/internal/apperr"
	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/realtime"
	"github.com/mmynk/choremates/internal/storage/memory"
)

func TestCreateChoreValidation(t *testing.T) {
	f := newFixture(t)
	svc := NewChoreService(f.deps())
	ctx := context.Background()
	owner := f.user(t, "alice")

	tests := []struct {
		name    string
		title   string
		wantErr bool
	}{
		{"empty", "", true},
		{"whitespace", "   ", true},
		{"too long", strings.Repeat("x", 101), true},
		{"max length", strings.Repeat("x", 100), false},
		{"normal", "Take out trash", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chore, err := svc.CreateChore(ctx, owner, tt.title)
			if tt.wantErr {
				assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, strings.TrimSpace(tt.title), chore.Title)
			assert.Nil(t, chore.PartnerID)
		})
	}
}

func TestCreateChoreLimit(t *testing.T) {
	f := newFixture(t)
	svc := NewChoreService(f.deps())
	ctx := context.Background()
	owner := f.user(t, "alice")

	var first string
	for i := 0; i < MaxOpenChores; i++ {
		c, err := svc.CreateChore(ctx, owner, fmt.Sprintf("chore %d", i))
		require.NoError(t, err)
		if i == 0 {
			first = c.ID
		}
	}

	_, err := svc.CreateChore(ctx, owner, "one too many")
	assert.True(t, errors.Is(err, ErrChoreLimitReached))
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, _, err = svc.SetDone(ctx, owner, first, true)
	require.NoError(t, err)
	_, err = svc.CreateChore(ctx, owner, "fits now")
	require.NoError(t, err)

	_, _, err = svc.SetDone(ctx, owner, first, false)
	assert.True(t, errors.Is(err, ErrChoreLimitReached), "reopening must respect the limit")
}

func TestChoresAreSharedWithPartner(t *testing.T) {
	f := newFixture(t)
	svc := NewChoreService(f.deps())
	ctx := context.Background()
	a, b := f.couple(t)

	sub := f.broker.Subscribe("test", realtime.Filter{Table: realtime.TableChores, Column: "partner_id", Value: b})
	defer sub.Unsubscribe()

	chore, err := svc.CreateChore(ctx, a, "Dishes")
	require.NoError(t, err)
	require.NotNil(t, chore.PartnerID)
	assert.Equal(t, b, *chore.PartnerID)

	e := receive(t, sub)
	assert.Equal(t, realtime.Insert, e.Type)
	assert.Equal(t, a, e.Columns["owner_id"])

	f.clock.Advance(time.Second)
	own, err := svc.CreateChore(ctx, b, "Laundry")
	require.NoError(t, err)

	list, err := svc.ListChores(ctx, b)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, own.ID, list[0].ID)
	assert.Equal(t, chore.ID, list[1].ID)
}

func TestUpdateAndCompleteChore(t *testing.T) {
	f := newFixture(t)
	svc := NewChoreService(f.deps())
	ctx := context.Background()
	a, b := f.couple(t)
	outsider := f.user(t, "eve")

	chore, err := svc.CreateChore(ctx, a, "Dishes")
	require.NoError(t, err)

	renamed, err := svc.UpdateChore(ctx, b, chore.ID, "Dishes and pans")
	require.NoError(t, err)
	assert.Equal(t, "Dishes and pans", renamed.Title)

	_, err = svc.UpdateChore(ctx, outsider, chore.ID, "mine now")
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	_, err = svc.UpdateChore(ctx, a, chore.ID, "")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	_, err = svc.UpdateChore(ctx, a, uuid.New().String(), "missing")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	_, err = svc.UpdateChore(ctx, a, "not-a-uuid", "missing")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	done, completion, err := svc.SetDone(ctx, b, chore.ID, true)
	require.NoError(t, err)
	assert.True(t, done.Done)
	require.NotNil(t, completion)
	assert.Equal(t, b, completion.CompletedBy)
	assert.Equal(t, chore.ID, completion.ChoreID)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.ChoresCompleted))

	again, second, err := svc.SetDone(ctx, a, chore.ID, true)
	require.NoError(t, err)
	assert.True(t, again.Done)
	assert.Nil(t, second, "already done chores record no new completion")

	stored, err := f.store.GetCompletion(ctx, completion.ID)
	require.NoError(t, err)
	assert.Equal(t, b, stored.CompletedBy)
}

func TestDeleteChore(t *testing.T) {
	f := newFixture(t)
	svc := NewChoreService(f.deps())
	ctx := context.Background()
	a, b := f.couple(t)

	chore, err := svc.CreateChore(ctx, a, "Dishes")
	require.NoError(t, err)

	err = svc.DeleteChore(ctx, b, chore.ID)
	assert.Equal(t, apperr.KindAuthorization, apperr.KindOf(err))

	require.NoError(t, svc.DeleteChore(ctx, a, chore.ID))

	err = svc.DeleteChore(ctx, a, chore.ID)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestChoreBalance(t *testing.T) {
	f := newFixture(t)
	svc := NewChoreService(f.deps())
	ctx := context.Background()
	a, b := f.couple(t)

	for i, who := range []string{a, a, a, b} {
		c, err := svc.CreateChore(ctx, a, fmt.Sprintf("chore %d", i))
		require.NoError(t, err)
		_, _, err = svc.SetDone(ctx, who, c.ID, true)
		require.NoError(t, err)
	}

	balance, err := svc.ChoreBalance(ctx, b)
	require.NoError(t, err)
	require.Len(t, balance.Members, 2)
	assert.Equal(t, b, balance.Members[0].UserID)
	assert.Equal(t, 1, balance.Members[0].Completed)
	assert.Equal(t, 3, balance.Members[1].Completed)
	require.Len(t, balance.Catchups, 1)
	assert.Equal(t, b, balance.Catchups[0].From)
	assert.Equal(t, 1, balance.Catchups[0].Chores)

	solo := f.user(t, "solo")
	balance, err = svc.ChoreBalance(ctx, solo)
	require.NoError(t, err)
	require.Len(t, balance.Members, 1)
	assert.Empty(t, balance.Catchups)
}

// lockstepStore holds every GetChore until `parties` callers have read the
// chore, so they all see it open before any of them writes.
type lockstepStore struct {
	*memory.Store
	arrived sync.WaitGroup
}

func (s *lockstepStore) GetChore(ctx context.Context, id string) (*models.Chore, error) {
	c, err := s.Store.GetChore(ctx, id)
	s.arrived.Done()
	s.arrived.Wait()
	return c, err
}

func TestSetDoneCompletesOnceUnderRace(t *testing.T) {
	f := newFixture(t)
	owner, partner := f.couple(t)
	ctx := context.Background()

	chore, err := NewChoreService(f.deps()).CreateChore(ctx, owner, "Dishes")
	require.NoError(t, err)

	store := &lockstepStore{Store: f.store}
	store.arrived.Add(2)
	svc := NewChoreService(f.depsWith(store))

	var (
		mu          sync.Mutex
		completions []*models.ChoreCompletion
		errs        []error
	)
	var g errgroup.Group
	for _, actor := range []string{owner, partner} {
		g.Go(func() error {
			_, completion, err := svc.SetDone(ctx, actor, chore.ID, true)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
			} else {
				completions = append(completions, completion)
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	require.Len(t, completions, 1)
	require.Len(t, errs, 1)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(errs[0]))

	stored, err := f.store.ListCompletionsByUsers(ctx, []string{owner, partner})
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	balance, err := NewChoreService(f.deps()).ChoreBalance(ctx, owner)
	require.NoError(t, err)
	total := 0
	for _, m := range balance.Members {
		total += m.Completed
	}
	assert.Equal(t, 1, total)
}
