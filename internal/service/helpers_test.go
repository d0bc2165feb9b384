package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/choremates/internal/metrics"
	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/realtime"
	"github.com/mmynk/choremates/internal/storage"
	"github.com/mmynk/choremates/internal/storage/memory"
)

// clock is a manually advanced time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store   *memory.Store
	broker  *realtime.Broker
	metrics *metrics.Collector
	clock   *clock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   memory.New(),
		broker:  realtime.NewBroker(),
		metrics: metrics.NewCollector("test"),
		clock:   newClock(),
	}
	t.Cleanup(f.broker.Close)
	return f
}

func (f *fixture) deps() Deps {
	return f.depsWith(f.store)
}

func (f *fixture) depsWith(store storage.Store) Deps {
	return Deps{
		Store:     store,
		Publisher: f.broker,
		Metrics:   f.metrics,
		Now:       f.clock.Now,
	}
}

func (f *fixture) invitations() *InvitationService {
	return NewInvitationService(f.deps(), InvitationOptions{
		TTL:          DefaultInviteTTL,
		PublicURL:    "https://choremates.test/",
		QRServiceURL: "https://qr.test/?data=",
	})
}

// user creates a profile and returns its ID.
func (f *fixture) user(t *testing.T, name string) string {
	t.Helper()
	id := uuid.New().String()
	require.NoError(t, f.store.CreateProfile(context.Background(), &models.Profile{
		ID:          id,
		DisplayName: name,
		Email:       name + "@example.com",
	}))
	return id
}

// couple links two new users through an accepted invitation.
func (f *fixture) couple(t *testing.T) (string, string) {
	t.Helper()
	ctx := context.Background()
	a, b := f.user(t, "alice"), f.user(t, "bob")
	svc := f.invitations()
	inv, err := svc.CreateInvitation(ctx, a, "")
	require.NoError(t, err)
	_, err = svc.AcceptInvitation(ctx, inv.InviteCode, b)
	require.NoError(t, err)
	return a, b
}

func receive(t *testing.T, s *realtime.Subscription) realtime.Event {
	t.Helper()
	select {
	case e := <-s.C:
		return e
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return realtime.Event{}
	}
}
