package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/choremates/internal/apperr"
	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/realtime"
)

func TestInviteCodesMatchFormat(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()
	inviter := f.user(t, "alice")

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		inv, err := svc.CreateInvitation(ctx, inviter, "")
		require.NoError(t, err)
		assert.Regexp(t, `^[a-f0-9]{32}$`, inv.InviteCode)
		assert.False(t, seen[inv.InviteCode], "duplicate code %s", inv.InviteCode)
		seen[inv.InviteCode] = true
	}

	for i := 0; i < 1000; i++ {
		assert.True(t, ValidInviteCode(NewInviteCode()))
	}
}

func TestCreateInvitation(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()
	inviter := f.user(t, "alice")

	inv, err := svc.CreateInvitation(ctx, inviter, "bob@example.com")
	require.NoError(t, err)

	assert.Equal(t, models.InvitationPending, inv.Status)
	assert.Equal(t, inviter, inv.InviterID)
	assert.Equal(t, f.clock.Now().Add(7*24*time.Hour), inv.ExpiresAt)
	require.NotNil(t, inv.InviteeEmail)
	assert.Equal(t, "bob@example.com", *inv.InviteeEmail)
	assert.Equal(t, "https://choremates.test/invite/"+inv.InviteCode, inv.InviteURL)
	assert.True(t, strings.HasPrefix(inv.QRCodeURL, "https://qr.test/?data=https%3A%2F%2Fchoremates.test%2Finvite%2F"), inv.QRCodeURL)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.InvitationsCreated))
}

func TestCreateInvitationValidation(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()

	t.Run("malformed email", func(t *testing.T) {
		_, err := svc.CreateInvitation(ctx, f.user(t, "carol"), "not-an-email")
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("already partnered", func(t *testing.T) {
		a, _ := f.couple(t)
		_, err := svc.CreateInvitation(ctx, a, "")
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := svc.CreateInvitation(ctx, "", "")
		assert.True(t, errors.Is(err, apperr.ErrUnauthenticated))
	})

	t.Run("unknown inviter", func(t *testing.T) {
		_, err := svc.CreateInvitation(ctx, "5d1f0b1e-9a0a-4c4e-8f59-6a3b1b1f2c3d", "")
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})
}

func TestGetInvitationDetails(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()
	inviter := f.user(t, "john")

	inv, err := svc.CreateInvitation(ctx, inviter, "mary@example.com")
	require.NoError(t, err)

	details, err := svc.GetInvitation(ctx, inv.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, details.Status)
	assert.Equal(t, "john", details.InviterName)
	assert.Equal(t, "j***@example.com", details.InviterEmail)
	require.NotNil(t, details.InviteeEmail)
	assert.Equal(t, "m***@example.com", *details.InviteeEmail)
}

func TestGetInvitationNotFound(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()

	pending := func() string {
		inv, err := svc.CreateInvitation(ctx, f.user(t, "inviter"), "")
		require.NoError(t, err)
		return inv.InviteCode
	}

	expired := pending()
	accepted := pending()
	_, err := svc.AcceptInvitation(ctx, accepted, f.user(t, "accepter"))
	require.NoError(t, err)

	cancelledInv, err := svc.CreateInvitation(ctx, f.user(t, "canceller"), "")
	require.NoError(t, err)
	require.NoError(t, svc.CancelInvitation(ctx, cancelledInv.InviterID, cancelledInv.InviteCode))

	valid := pending()
	f.clock.Advance(DefaultInviteTTL - time.Second)
	_, err = svc.GetInvitation(ctx, valid)
	require.NoError(t, err, "still usable just before expiry")
	f.clock.Advance(time.Second)

	tests := []struct {
		name string
		code string
	}{
		{"empty", ""},
		{"too short", strings.Repeat("a", 31)},
		{"too long", strings.Repeat("a", 33)},
		{"uppercase", strings.ToUpper(NewInviteCode())},
		{"hyphenated", "0f8fad5b-d9cb-469f-a165-70867728950e"},
		{"non-hex", strings.Repeat("g", 32)},
		{"unknown", NewInviteCode()},
		{"expired", expired},
		{"accepted", accepted},
		{"cancelled", cancelledInv.InviteCode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetInvitation(ctx, tt.code)
			assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err), "err = %v", err)
		})
	}
}

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"john@x.com":      "j***@x.com",
		"a@example.org":   "a***@example.org",
		"no-at-sign":      "***",
		"@example.com":    "***",
		"":                "***",
		"jane.doe@ex.com": "j***@ex.com",
		"élodie@example.com": "é***@example.com",
		"田中@example.jp":      "田***@example.jp",
	}
	for in, want := range tests {
		got := MaskEmail(in)
		assert.Equal(t, want, got, "MaskEmail(%q)", in)
		assert.True(t, utf8.ValidString(got), "MaskEmail(%q) = %q is not valid UTF-8", in, got)
	}
}

func TestAcceptInvitation(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()
	inviter, accepter := f.user(t, "alice"), f.user(t, "bob")

	chores := NewChoreService(f.deps())
	_, err := chores.CreateChore(ctx, inviter, "Dishes")
	require.NoError(t, err)
	_, err = chores.CreateChore(ctx, accepter, "Laundry")
	require.NoError(t, err)

	inv, err := svc.CreateInvitation(ctx, inviter, "")
	require.NoError(t, err)

	profiles := f.broker.Subscribe("test", realtime.Filter{Table: realtime.TableProfiles})
	defer profiles.Unsubscribe()

	result, err := svc.AcceptInvitation(ctx, inv.InviteCode, accepter)
	require.NoError(t, err)
	assert.Equal(t, inviter, result.PartnerID)
	assert.Equal(t, "alice", result.PartnerName)
	assert.Equal(t, 2, result.SharedChoresCount)

	a, err := f.store.GetProfile(ctx, inviter)
	require.NoError(t, err)
	b, err := f.store.GetProfile(ctx, accepter)
	require.NoError(t, err)
	assert.Equal(t, accepter, *a.PartnerID)
	assert.Equal(t, inviter, *b.PartnerID)

	updated := map[string]bool{}
	updated[receive(t, profiles).Columns["id"]] = true
	updated[receive(t, profiles).Columns["id"]] = true
	assert.Equal(t, map[string]bool{inviter: true, accepter: true}, updated)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.InvitationsAccepted))
}

func TestAcceptInvitationErrors(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()

	t.Run("unauthenticated", func(t *testing.T) {
		_, err := svc.AcceptInvitation(ctx, NewInviteCode(), "")
		assert.Equal(t, apperr.KindUnauthenticated, apperr.KindOf(err))
	})

	t.Run("malformed code", func(t *testing.T) {
		_, err := svc.AcceptInvitation(ctx, "nope", f.user(t, "x"))
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := svc.AcceptInvitation(ctx, NewInviteCode(), f.user(t, "x"))
		assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	})

	t.Run("own invitation", func(t *testing.T) {
		inviter := f.user(t, "self")
		inv, err := svc.CreateInvitation(ctx, inviter, "")
		require.NoError(t, err)
		_, err = svc.AcceptInvitation(ctx, inv.InviteCode, inviter)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("accepter already partnered", func(t *testing.T) {
		_, partnered := f.couple(t)
		inv, err := svc.CreateInvitation(ctx, f.user(t, "lonely"), "")
		require.NoError(t, err)
		_, err = svc.AcceptInvitation(ctx, inv.InviteCode, partnered)
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})

	t.Run("accepter without profile", func(t *testing.T) {
		inv, err := svc.CreateInvitation(ctx, f.user(t, "host"), "")
		require.NoError(t, err)
		_, err = svc.AcceptInvitation(ctx, inv.InviteCode, uuid.New().String())
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
		assert.Contains(t, apperr.PublicMessage(err), "profile")

		// The invitation is untouched and still reachable.
		_, err = svc.GetInvitation(ctx, inv.InviteCode)
		assert.NoError(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		inv, err := svc.CreateInvitation(ctx, f.user(t, "slow"), "")
		require.NoError(t, err)
		f.clock.Advance(DefaultInviteTTL)
		_, err = svc.AcceptInvitation(ctx, inv.InviteCode, f.user(t, "late"))
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))
	})
}

func TestAcceptInvitationAtMostOnce(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()

	inv, err := svc.CreateInvitation(ctx, f.user(t, "alice"), "")
	require.NoError(t, err)

	const accepters = 16
	ids := make([]string, accepters)
	for i := range ids {
		ids[i] = f.user(t, "suitor")
	}

	errs := make([]error, accepters)
	var g errgroup.Group
	for i, id := range ids {
		g.Go(func() error {
			_, errs[i] = svc.AcceptInvitation(ctx, inv.InviteCode, id)
			return nil
		})
	}
	require.NoError(t, g.Wait())

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		assert.Equal(t, apperr.KindConflict, apperr.KindOf(err), "err = %v", err)
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, float64(accepters-1), testutil.ToFloat64(f.metrics.AcceptConflicts))
}

func TestCancelInvitation(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()
	inviter := f.user(t, "alice")

	inv, err := svc.CreateInvitation(ctx, inviter, "")
	require.NoError(t, err)

	err = svc.CancelInvitation(ctx, f.user(t, "mallory"), inv.InviteCode)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	require.NoError(t, svc.CancelInvitation(ctx, inviter, inv.InviteCode))

	err = svc.CancelInvitation(ctx, inviter, inv.InviteCode)
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	_, err = svc.AcceptInvitation(ctx, inv.InviteCode, f.user(t, "bob"))
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(err))

	err = svc.CancelInvitation(ctx, inviter, "bad")
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestListAndCurrentInvitation(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()
	inviter := f.user(t, "alice")

	_, err := svc.CurrentInvitation(ctx, inviter)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	first, err := svc.CreateInvitation(ctx, inviter, "")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := svc.CreateInvitation(ctx, inviter, "")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	third, err := svc.CreateInvitation(ctx, inviter, "")
	require.NoError(t, err)
	require.NoError(t, svc.CancelInvitation(ctx, inviter, third.InviteCode))

	list, err := svc.ListInvitations(ctx, inviter)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, first.ID, list[2].ID)
	assert.Equal(t, models.InvitationCancelled, list[0].Status)

	current, err := svc.CurrentInvitation(ctx, inviter)
	require.NoError(t, err)
	assert.Equal(t, second.ID, current.ID)

	others, err := svc.ListInvitations(ctx, f.user(t, "bob"))
	require.NoError(t, err)
	assert.Empty(t, others)
}
