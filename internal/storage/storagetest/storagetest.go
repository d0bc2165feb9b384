// Package storagetest holds behaviour checks every storage.Store backend
// must pass. Backend packages call Run from their own tests.
package storagetest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/choremates/internal/models"
	"github.com/mmynk/choremates/internal/storage"
)

// Factory returns a fresh, empty store. Run closes it.
type Factory func(t *testing.T) storage.Store

// Run executes the conformance suite against stores built by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Run("profiles", func(t *testing.T) { testProfiles(t, newStore(t)) })
	t.Run("link partners", func(t *testing.T) { testLinkPartners(t, newStore(t)) })
	t.Run("link partners without accepter profile", func(t *testing.T) { testLinkMissingAccepter(t, newStore(t)) })
	t.Run("link partners is accept-once", func(t *testing.T) { testLinkConcurrent(t, newStore(t)) })
	t.Run("unlink partners", func(t *testing.T) { testUnlink(t, newStore(t)) })
	t.Run("cancel invitation", func(t *testing.T) { testCancel(t, newStore(t)) })
	t.Run("cleanup expired", func(t *testing.T) { testCleanup(t, newStore(t)) })
	t.Run("chores", func(t *testing.T) { testChores(t, newStore(t)) })
	t.Run("chore done is complete-once", func(t *testing.T) { testChoreDoneConcurrent(t, newStore(t)) })
	t.Run("thank yous", func(t *testing.T) { testThankYous(t, newStore(t)) })
}

func code() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

func mustProfile(t *testing.T, s storage.Store, name string) *models.Profile {
	t.Helper()
	p := &models.Profile{ID: uuid.New().String(), DisplayName: name, Email: strings.ToLower(name) + "@example.com"}
	if err := s.CreateProfile(context.Background(), p); err != nil {
		t.Fatalf("CreateProfile(%s) failed: %v", name, err)
	}
	return p
}

func mustInvite(t *testing.T, s storage.Store, inviterID string, createdAt time.Time, ttl time.Duration) *models.PartnerInvitation {
	t.Helper()
	inv := &models.PartnerInvitation{
		InviterID:  inviterID,
		InviteCode: code(),
		Status:     models.InvitationPending,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(ttl),
	}
	if err := s.CreateInvitation(context.Background(), inv); err != nil {
		t.Fatalf("CreateInvitation failed: %v", err)
	}
	return inv
}

func testProfiles(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	p := mustProfile(t, s, "Alice")
	got, err := s.GetProfile(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProfile failed: %v", err)
	}
	if got.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want Alice", got.DisplayName)
	}
	if got.HasPartner() {
		t.Error("new profile should not have a partner")
	}

	_, err = s.GetProfile(ctx, uuid.New().String())
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetProfile(missing) error = %v, want ErrNotFound", err)
	}
}

func testLinkPartners(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	alice := mustProfile(t, s, "Alice")
	bob := mustProfile(t, s, "Bob")

	chore := &models.Chore{OwnerID: alice.ID, Title: "Dishes"}
	if err := s.CreateChore(ctx, chore); err != nil {
		t.Fatalf("CreateChore failed: %v", err)
	}

	inv := mustInvite(t, s, alice.ID, now, 7*24*time.Hour)

	res, err := s.LinkPartners(ctx, inv.InviteCode, bob.ID, now)
	if err != nil {
		t.Fatalf("LinkPartners failed: %v", err)
	}
	if res.PartnerID != alice.ID || res.PartnerName != "Alice" {
		t.Errorf("LinkPartners result = %+v", res)
	}
	if res.SharedChoresCount != 1 {
		t.Errorf("SharedChoresCount = %d, want 1", res.SharedChoresCount)
	}

	a, _ := s.GetProfile(ctx, alice.ID)
	b, _ := s.GetProfile(ctx, bob.ID)
	if !a.HasPartner() || *a.PartnerID != bob.ID {
		t.Errorf("alice.partner_id = %v, want %s", a.PartnerID, bob.ID)
	}
	if !b.HasPartner() || *b.PartnerID != alice.ID {
		t.Errorf("bob.partner_id = %v, want %s", b.PartnerID, alice.ID)
	}

	got, err := s.GetInvitationByCode(ctx, inv.InviteCode)
	if err != nil {
		t.Fatalf("GetInvitationByCode failed: %v", err)
	}
	if got.Status != models.InvitationAccepted {
		t.Errorf("status = %s, want accepted", got.Status)
	}
	if got.AcceptedBy == nil || *got.AcceptedBy != bob.ID || got.AcceptedAt == nil {
		t.Errorf("accepted_by/accepted_at not recorded: %+v", got)
	}

	// A second accept must fail: the invitation is no longer pending.
	carol := mustProfile(t, s, "Carol")
	if _, err := s.LinkPartners(ctx, inv.InviteCode, carol.ID, now); !errors.Is(err, storage.ErrInvitationUnavailable) {
		t.Errorf("second LinkPartners error = %v, want ErrInvitationUnavailable", err)
	}

	// Already partnered inviter cannot link again through a fresh invitation.
	inv2 := mustInvite(t, s, alice.ID, now, time.Hour)
	if _, err := s.LinkPartners(ctx, inv2.InviteCode, carol.ID, now); !errors.Is(err, storage.ErrAlreadyPartnered) {
		t.Errorf("LinkPartners with partnered inviter error = %v, want ErrAlreadyPartnered", err)
	}

	// Self acceptance.
	dave := mustProfile(t, s, "Dave")
	inv3 := mustInvite(t, s, dave.ID, now, time.Hour)
	if _, err := s.LinkPartners(ctx, inv3.InviteCode, dave.ID, now); !errors.Is(err, storage.ErrSelfInvitation) {
		t.Errorf("self LinkPartners error = %v, want ErrSelfInvitation", err)
	}

	// Expired by time even though still pending.
	inv4 := mustInvite(t, s, dave.ID, now.Add(-2*time.Hour), time.Hour)
	if _, err := s.LinkPartners(ctx, inv4.InviteCode, carol.ID, now); !errors.Is(err, storage.ErrInvitationUnavailable) {
		t.Errorf("expired LinkPartners error = %v, want ErrInvitationUnavailable", err)
	}

	if _, err := s.LinkPartners(ctx, code(), carol.ID, now); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("unknown code LinkPartners error = %v, want ErrNotFound", err)
	}
}

func testLinkMissingAccepter(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	inviter := mustProfile(t, s, "Inviter")
	inv := mustInvite(t, s, inviter.ID, now, time.Hour)

	_, err := s.LinkPartners(ctx, inv.InviteCode, uuid.New().String(), now)
	if !errors.Is(err, storage.ErrProfileNotFound) {
		t.Fatalf("LinkPartners error = %v, want ErrProfileNotFound", err)
	}
	if errors.Is(err, storage.ErrNotFound) {
		t.Error("a missing accepter must not read as a missing invitation")
	}

	got, err := s.GetInvitationByCode(ctx, inv.InviteCode)
	if err != nil {
		t.Fatalf("GetInvitationByCode failed: %v", err)
	}
	if got.Status != models.InvitationPending {
		t.Errorf("status = %s, want pending", got.Status)
	}
}

func testLinkConcurrent(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	inviter := mustProfile(t, s, "Inviter")
	inv := mustInvite(t, s, inviter.ID, now, time.Hour)

	const n = 8
	accepters := make([]*models.Profile, n)
	for i := range accepters {
		accepters[i] = mustProfile(t, s, "Accepter"+uuid.New().String()[:6])
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		others    []error
	)
	for _, a := range accepters {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, err := s.LinkPartners(ctx, inv.InviteCode, id, now)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			others = append(others, err)
		}(a.ID)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	for _, err := range others {
		if !errors.Is(err, storage.ErrInvitationUnavailable) && !errors.Is(err, storage.ErrAlreadyPartnered) {
			t.Errorf("losing accept error = %v, want a conflict", err)
		}
	}
}

func testUnlink(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	alice := mustProfile(t, s, "Alice")
	bob := mustProfile(t, s, "Bob")
	chore := &models.Chore{OwnerID: bob.ID, Title: "Laundry"}
	if err := s.CreateChore(ctx, chore); err != nil {
		t.Fatalf("CreateChore failed: %v", err)
	}
	inv := mustInvite(t, s, alice.ID, now, time.Hour)
	if _, err := s.LinkPartners(ctx, inv.InviteCode, bob.ID, now); err != nil {
		t.Fatalf("LinkPartners failed: %v", err)
	}

	former, err := s.UnlinkPartners(ctx, bob.ID)
	if err != nil {
		t.Fatalf("UnlinkPartners failed: %v", err)
	}
	if former != alice.ID {
		t.Errorf("former partner = %s, want %s", former, alice.ID)
	}

	for _, id := range []string{alice.ID, bob.ID} {
		p, err := s.GetProfile(ctx, id)
		if err != nil {
			t.Fatalf("GetProfile failed: %v", err)
		}
		if p.HasPartner() {
			t.Errorf("profile %s still linked to %v", p.DisplayName, *p.PartnerID)
		}
	}

	c, err := s.GetChore(ctx, chore.ID)
	if err != nil {
		t.Fatalf("GetChore failed: %v", err)
	}
	if c.PartnerID != nil {
		t.Errorf("chore still shared with %s", *c.PartnerID)
	}

	if _, err := s.UnlinkPartners(ctx, bob.ID); !errors.Is(err, storage.ErrNoPartner) {
		t.Errorf("second UnlinkPartners error = %v, want ErrNoPartner", err)
	}
}

func testCancel(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	alice := mustProfile(t, s, "Alice")
	bob := mustProfile(t, s, "Bob")
	inv := mustInvite(t, s, alice.ID, now, time.Hour)

	if err := s.CancelInvitation(ctx, inv.InviteCode, bob.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("CancelInvitation by stranger error = %v, want ErrNotFound", err)
	}
	if err := s.CancelInvitation(ctx, inv.InviteCode, alice.ID); err != nil {
		t.Fatalf("CancelInvitation failed: %v", err)
	}
	if err := s.CancelInvitation(ctx, inv.InviteCode, alice.ID); !errors.Is(err, storage.ErrInvitationUnavailable) {
		t.Errorf("second CancelInvitation error = %v, want ErrInvitationUnavailable", err)
	}
	if _, err := s.LinkPartners(ctx, inv.InviteCode, bob.ID, now); !errors.Is(err, storage.ErrInvitationUnavailable) {
		t.Errorf("LinkPartners on cancelled error = %v, want ErrInvitationUnavailable", err)
	}
}

func testCleanup(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()
	now := time.Now().UTC()

	alice := mustProfile(t, s, "Alice")
	stale := mustInvite(t, s, alice.ID, now.Add(-8*24*time.Hour), 7*24*time.Hour)
	fresh := mustInvite(t, s, alice.ID, now, 7*24*time.Hour)

	n, err := s.CleanupExpiredInvitations(ctx, now)
	if err != nil {
		t.Fatalf("CleanupExpiredInvitations failed: %v", err)
	}
	if n != 1 {
		t.Errorf("first cleanup expired %d, want 1", n)
	}

	n, err = s.CleanupExpiredInvitations(ctx, now)
	if err != nil {
		t.Fatalf("second CleanupExpiredInvitations failed: %v", err)
	}
	if n != 0 {
		t.Errorf("second cleanup expired %d, want 0", n)
	}

	got, _ := s.GetInvitationByCode(ctx, stale.InviteCode)
	if got.Status != models.InvitationExpired {
		t.Errorf("stale status = %s, want expired", got.Status)
	}
	got, _ = s.GetInvitationByCode(ctx, fresh.InviteCode)
	if got.Status != models.InvitationPending {
		t.Errorf("fresh status = %s, want pending", got.Status)
	}

	list, err := s.ListInvitationsByInviter(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListInvitationsByInviter failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("listed %d invitations, want 2", len(list))
	}
	if list[0].InviteCode != fresh.InviteCode {
		t.Error("expected newest invitation first")
	}
}

func testChores(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	alice := mustProfile(t, s, "Alice")
	bob := mustProfile(t, s, "Bob")

	first := &models.Chore{OwnerID: alice.ID, Title: "Vacuum", CreatedAt: time.Now().UTC().Add(-time.Minute)}
	second := &models.Chore{OwnerID: bob.ID, PartnerID: &alice.ID, Title: "Groceries"}
	for _, c := range []*models.Chore{first, second} {
		if err := s.CreateChore(ctx, c); err != nil {
			t.Fatalf("CreateChore failed: %v", err)
		}
	}

	list, err := s.ListChores(ctx, alice.ID)
	if err != nil {
		t.Fatalf("ListChores failed: %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID {
		t.Fatalf("ListChores = %d chores (first %v), want 2 newest first", len(list), list)
	}

	open, err := s.CountOpenChores(ctx, alice.ID)
	if err != nil || open != 1 {
		t.Errorf("CountOpenChores = %d, %v; want 1", open, err)
	}

	if err := s.UpdateChoreTitle(ctx, first.ID, "Vacuum upstairs"); err != nil {
		t.Fatalf("UpdateChoreTitle failed: %v", err)
	}

	completion := &models.ChoreCompletion{CompletedBy: alice.ID}
	if err := s.SetChoreDone(ctx, first.ID, true, completion); err != nil {
		t.Fatalf("SetChoreDone failed: %v", err)
	}
	if completion.ID == "" {
		t.Error("expected completion ID to be generated")
	}

	got, err := s.GetChore(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetChore failed: %v", err)
	}
	if !got.Done || got.Title != "Vacuum upstairs" {
		t.Errorf("GetChore = %+v", got)
	}

	open, _ = s.CountOpenChores(ctx, alice.ID)
	if open != 0 {
		t.Errorf("CountOpenChores after done = %d, want 0", open)
	}

	gotCompletion, err := s.GetCompletion(ctx, completion.ID)
	if err != nil {
		t.Fatalf("GetCompletion failed: %v", err)
	}
	if gotCompletion.ChoreID != first.ID || gotCompletion.CompletedBy != alice.ID {
		t.Errorf("GetCompletion = %+v", gotCompletion)
	}

	byUsers, err := s.ListCompletionsByUsers(ctx, []string{alice.ID, bob.ID})
	if err != nil || len(byUsers) != 1 {
		t.Errorf("ListCompletionsByUsers = %d, %v; want 1", len(byUsers), err)
	}

	if err := s.DeleteChore(ctx, first.ID); err != nil {
		t.Fatalf("DeleteChore failed: %v", err)
	}
	if _, err := s.GetChore(ctx, first.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetChore after delete error = %v, want ErrNotFound", err)
	}
	if _, err := s.GetCompletion(ctx, completion.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetCompletion after delete error = %v, want ErrNotFound", err)
	}
	if err := s.DeleteChore(ctx, first.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("second DeleteChore error = %v, want ErrNotFound", err)
	}
}

func testChoreDoneConcurrent(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	owner := mustProfile(t, s, "Owner")
	partner := mustProfile(t, s, "Partner")
	chore := &models.Chore{OwnerID: owner.ID, PartnerID: &partner.ID, Title: "Dishes"}
	if err := s.CreateChore(ctx, chore); err != nil {
		t.Fatalf("CreateChore failed: %v", err)
	}

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		others    []error
	)
	for i := range n {
		actor := owner.ID
		if i%2 == 1 {
			actor = partner.ID
		}
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			err := s.SetChoreDone(ctx, chore.ID, true, &models.ChoreCompletion{CompletedBy: id})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			others = append(others, err)
		}(actor)
	}
	wg.Wait()

	if successes != 1 {
		t.Fatalf("successes = %d, want exactly 1", successes)
	}
	for _, err := range others {
		if !errors.Is(err, storage.ErrChoreStateChanged) {
			t.Errorf("losing SetChoreDone error = %v, want ErrChoreStateChanged", err)
		}
	}

	completions, err := s.ListCompletionsByUsers(ctx, []string{owner.ID, partner.ID})
	if err != nil {
		t.Fatalf("ListCompletionsByUsers failed: %v", err)
	}
	if len(completions) != 1 {
		t.Errorf("stored %d completions for one chore, want 1", len(completions))
	}

	// Reopening is the opposite transition and goes through exactly once too.
	if err := s.SetChoreDone(ctx, chore.ID, false, nil); err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if err := s.SetChoreDone(ctx, chore.ID, false, nil); !errors.Is(err, storage.ErrChoreStateChanged) {
		t.Errorf("second reopen error = %v, want ErrChoreStateChanged", err)
	}
	if err := s.SetChoreDone(ctx, uuid.New().String(), true, nil); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("SetChoreDone on missing chore error = %v, want ErrNotFound", err)
	}
}

func testThankYous(t *testing.T, s storage.Store) {
	defer s.Close()
	ctx := context.Background()

	alice := mustProfile(t, s, "Alice")
	bob := mustProfile(t, s, "Bob")

	base := time.Now().UTC().Add(-time.Hour)
	msgs := []*models.ThankYou{
		{FromID: alice.ID, ToID: bob.ID, Message: "one", CreatedAt: base},
		{FromID: bob.ID, ToID: alice.ID, Message: "two", CreatedAt: base.Add(time.Minute)},
		{FromID: alice.ID, ToID: bob.ID, Message: "three", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, m := range msgs {
		if err := s.CreateThankYou(ctx, m); err != nil {
			t.Fatalf("CreateThankYou failed: %v", err)
		}
	}

	sent, err := s.ListThankYous(ctx, models.ThankYouFilter{UserID: alice.ID, Direction: models.ThanksSent})
	if err != nil {
		t.Fatalf("ListThankYous(sent) failed: %v", err)
	}
	if len(sent) != 2 || sent[0].Message != "three" || sent[1].Message != "one" {
		t.Errorf("sent = %v, want [three one]", messages(sent))
	}

	received, _ := s.ListThankYous(ctx, models.ThankYouFilter{UserID: alice.ID, Direction: models.ThanksReceived})
	if len(received) != 1 || received[0].Message != "two" {
		t.Errorf("received = %v, want [two]", messages(received))
	}

	all, _ := s.ListThankYous(ctx, models.ThankYouFilter{UserID: alice.ID, Direction: models.ThanksAll})
	if got := messages(all); strings.Join(got, ",") != "three,two,one" {
		t.Errorf("all = %v, want [three two one]", got)
	}

	page, _ := s.ListThankYous(ctx, models.ThankYouFilter{UserID: alice.ID, Direction: models.ThanksAll, Limit: 1, Offset: 1})
	if got := messages(page); strings.Join(got, ",") != "two" {
		t.Errorf("page = %v, want [two]", got)
	}

	sentN, receivedN, err := s.CountThankYous(ctx, alice.ID)
	if err != nil {
		t.Fatalf("CountThankYous failed: %v", err)
	}
	if sentN != 2 || receivedN != 1 {
		t.Errorf("CountThankYous = %d/%d, want 2/1", sentN, receivedN)
	}
}

func messages(ms []*models.ThankYou) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Message
	}
	return out
}
