package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/choremates/internal/apperr"
	"github.com/mmynk/choremates/internal/models"
)

func TestScenarioInviteAndAccept(t *testing.T) {
	f := newFixture(t)
	svc := f.invitations()
	ctx := context.Background()
	u1, u2 := f.user(t, "Uma"), f.user(t, "Vic")

	inv, err := svc.CreateInvitation(ctx, u1, "")
	require.NoError(t, err)

	details, err := svc.GetInvitation(ctx, inv.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, models.InvitationPending, details.Status)
	assert.Equal(t, "Uma", details.InviterName)

	result, err := svc.AcceptInvitation(ctx, inv.InviteCode, u2)
	require.NoError(t, err)
	assert.Equal(t, &models.LinkResult{PartnerID: u1, PartnerName: "Uma", SharedChoresCount: 0}, result)

	_, err = svc.GetInvitation(ctx, inv.InviteCode)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
}

func TestScenarioThankAndReadHistory(t *testing.T) {
	f := newFixture(t)
	svc := NewThankYouService(f.deps())
	ctx := context.Background()
	u1, u2 := f.user(t, "Uma"), f.user(t, "Vic")

	_, err := svc.SendThankYou(ctx, u2, SendThankYouInput{ToID: u1, Message: "older"})
	require.NoError(t, err)
	f.clock.Advance(1)

	msg, err := svc.SendThankYou(ctx, u1, SendThankYouInput{ToID: u2, Message: "thanks"})
	require.NoError(t, err)

	history, err := svc.GetThankYouHistory(ctx, u2, HistoryOptions{Type: "received", Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, history)
	assert.Equal(t, msg.ID, history[0].ID)
	assert.Equal(t, "thanks", history[0].Message)
}
