package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/choremates/internal/apperr"
	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/storage/memory"
)

func TestCleanupJobIsIdempotent(t *testing.T) {
	f := newFixture(t)
	invites := f.invitations()
	job := NewCleanupJob(f.deps())
	ctx := context.Background()

	stale, err := invites.CreateInvitation(ctx, f.user(t, "a"), "")
	require.NoError(t, err)
	_, err = invites.CreateInvitation(ctx, f.user(t, "b"), "")
	require.NoError(t, err)
	f.clock.Advance(DefaultInviteTTL)
	fresh, err := invites.CreateInvitation(ctx, f.user(t, "c"), "")
	require.NoError(t, err)

	n, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	got, err := f.store.GetInvitationByCode(ctx, stale.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationExpired, got.Status)

	got, err = f.store.GetInvitationByCode(ctx, fresh.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, got.Status)

	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.CleanupRuns.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.InvitationsExpired))
}

func TestCleanupJobConcurrentRuns(t *testing.T) {
	f := newFixture(t)
	invites := f.invitations()
	job := NewCleanupJob(f.deps())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := invites.CreateInvitation(ctx, f.user(t, "x"), "")
		require.NoError(t, err)
	}
	f.clock.Advance(DefaultInviteTTL + time.Hour)

	var (
		mu    sync.Mutex
		total int
		wg    sync.WaitGroup
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := job.Run(ctx)
			assert.NoError(t, err)
			mu.Lock()
			total += n
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 5, total)
}

type brokenCleanupStore struct {
	*memory.Store
}

func (brokenCleanupStore) CleanupExpiredInvitations(context.Context, time.Time) (int, error) {
	return 0, errors.New("database is locked")
}

func TestCleanupJobReportsFailure(t *testing.T) {
	f := newFixture(t)
	job := NewCleanupJob(f.depsWith(brokenCleanupStore{f.store}))

	_, err := job.Run(context.Background())
	assert.Equal(t, apperr.KindPersistence, apperr.KindOf(err))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CleanupRuns.WithLabelValues("error")))
}

func TestCleanupJobStart(t *testing.T) {
	f := newFixture(t)
	invites := f.invitations()
	job := NewCleanupJob(f.deps())

	inv, err := invites.CreateInvitation(context.Background(), f.user(t, "a"), "")
	require.NoError(t, err)
	f.clock.Advance(DefaultInviteTTL)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- job.Start(ctx, 5*time.Millisecond) }()

	assert.Eventually(t, func() bool {
		got, err := f.store.GetInvitationByCode(context.Background(), inv.InviteCode)
		return err == nil && got.Status == models.InvitationExpired
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
