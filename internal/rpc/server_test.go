package rpc

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/choremates/internal/auth"
	"github.com/mmynk/choremates/internal/metrics"
	"github.com/mmynk/choremates/internal/realtime"
	"github.com/mmynk/choremates/internal/service"
	"github.com/mmynk/choremates/internal/storage/sqlite"
)

type testEnv struct {
	server      *httptest.Server
	invitations *service.InvitationService
}

// setupTestServer serves every procedure against a temp SQLite database.
func setupTestServer(t *testing.T) *testEnv {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	broker := realtime.NewBroker()
	deps := service.Deps{Store: store, Publisher: broker, Metrics: metrics.NewCollector("test")}
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)

	srv := &Server{
		Auth:     NewAuthHandler(auth.NewPasswordAuthenticator(store), jwtManager, nil),
		Partners: service.NewPartnerService(deps, service.RetryOptions{Retries: 1}),
		Chores:   service.NewChoreService(deps),
		Thanks:   service.NewThankYouService(deps),
		Verifier: jwtManager,
		Metrics:  deps.Metrics,
	}

	mux := http.NewServeMux()
	srv.Mount(mux)
	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		server.Close()
		broker.Close()
		store.Close()
	})

	return &testEnv{
		server:      server,
		invitations: service.NewInvitationService(deps, service.InvitationOptions{}),
	}
}

func call[Req, Res any](t *testing.T, env *testEnv, procedure, token string, msg *Req) (*Res, error) {
	t.Helper()
	client := connect.NewClient[Req, Res](http.DefaultClient, env.server.URL+procedure, ClientOptions()...)
	req := connect.NewRequest(msg)
	if token != "" {
		req.Header().Set("Authorization", "Bearer "+token)
	}
	resp, err := client.CallUnary(context.Background(), req)
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}

func register(t *testing.T, env *testEnv, email, name string) *AuthResponse {
	t.Helper()
	resp, err := call[RegisterRequest, AuthResponse](t, env, RegisterProcedure, "", &RegisterRequest{
		Email:       email,
		DisplayName: name,
		Password:    "password123",
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	return resp
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", want)
	}
	if got := connect.CodeOf(err); got != want {
		t.Errorf("code = %v, want %v (err: %v)", got, want, err)
	}
}

// link partners two registered users through an accepted invitation.
func link(t *testing.T, env *testEnv, inviterID, accepterID string) {
	t.Helper()
	ctx := context.Background()
	inv, err := env.invitations.CreateInvitation(ctx, inviterID, "")
	if err != nil {
		t.Fatalf("CreateInvitation failed: %v", err)
	}
	if _, err := env.invitations.AcceptInvitation(ctx, inv.InviteCode, accepterID); err != nil {
		t.Fatalf("AcceptInvitation failed: %v", err)
	}
}

func TestRegisterAndLogin(t *testing.T) {
	env := setupTestServer(t)

	reg := register(t, env, "alice@example.com", "Alice")
	if reg.Token == "" {
		t.Fatal("expected token")
	}
	if reg.User.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q, want Alice", reg.User.DisplayName)
	}

	login, err := call[LoginRequest, AuthResponse](t, env, LoginProcedure, "", &LoginRequest{
		Email:    "alice@example.com",
		Password: "password123",
	})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.User.ID != reg.User.ID {
		t.Errorf("Login user = %q, want %q", login.User.ID, reg.User.ID)
	}

	me, err := call[GetCurrentUserRequest, GetCurrentUserResponse](t, env, GetCurrentUserProcedure, login.Token, &GetCurrentUserRequest{})
	if err != nil {
		t.Fatalf("GetCurrentUser failed: %v", err)
	}
	if me.User.Email != "alice@example.com" || me.User.PartnerID != "" {
		t.Errorf("GetCurrentUser = %+v", me.User)
	}
}

func TestAuthErrors(t *testing.T) {
	env := setupTestServer(t)
	register(t, env, "alice@example.com", "Alice")

	_, err := call[RegisterRequest, AuthResponse](t, env, RegisterProcedure, "", &RegisterRequest{
		Email: "alice@example.com", DisplayName: "Again", Password: "password123",
	})
	assertCode(t, err, connect.CodeAlreadyExists)

	_, err = call[RegisterRequest, AuthResponse](t, env, RegisterProcedure, "", &RegisterRequest{
		Email: "bob@example.com", DisplayName: "Bob", Password: "short",
	})
	assertCode(t, err, connect.CodeInvalidArgument)

	_, err = call[LoginRequest, AuthResponse](t, env, LoginProcedure, "", &LoginRequest{
		Email: "alice@example.com", Password: "wrong-password",
	})
	assertCode(t, err, connect.CodeUnauthenticated)

	_, err = call[ListChoresRequest, ListChoresResponse](t, env, ListChoresProcedure, "", &ListChoresRequest{})
	assertCode(t, err, connect.CodeUnauthenticated)

	_, err = call[ListChoresRequest, ListChoresResponse](t, env, ListChoresProcedure, "garbage", &ListChoresRequest{})
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestChoreLifecycle(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice@example.com", "Alice")
	bob := register(t, env, "bob@example.com", "Bob")
	link(t, env, alice.User.ID, bob.User.ID)

	partner, err := call[GetPartnerInfoRequest, GetPartnerInfoResponse](t, env, GetPartnerInfoProcedure, bob.Token, &GetPartnerInfoRequest{})
	if err != nil {
		t.Fatalf("GetPartnerInfo failed: %v", err)
	}
	if !partner.Partner.HasPartner || partner.Partner.PartnerName != "Alice" {
		t.Errorf("partner = %+v", partner.Partner)
	}

	created, err := call[CreateChoreRequest, ChoreResponse](t, env, CreateChoreProcedure, alice.Token, &CreateChoreRequest{Title: "Dishes"})
	if err != nil {
		t.Fatalf("CreateChore failed: %v", err)
	}
	if created.Chore.PartnerID == nil || *created.Chore.PartnerID != bob.User.ID {
		t.Errorf("chore not shared with partner: %+v", created.Chore)
	}

	_, err = call[CreateChoreRequest, ChoreResponse](t, env, CreateChoreProcedure, alice.Token, &CreateChoreRequest{Title: ""})
	assertCode(t, err, connect.CodeInvalidArgument)

	list, err := call[ListChoresRequest, ListChoresResponse](t, env, ListChoresProcedure, bob.Token, &ListChoresRequest{})
	if err != nil {
		t.Fatalf("ListChores failed: %v", err)
	}
	if len(list.Chores) != 1 {
		t.Fatalf("expected 1 chore, got %d", len(list.Chores))
	}

	done, err := call[SetDoneRequest, SetDoneResponse](t, env, SetDoneProcedure, bob.Token, &SetDoneRequest{ChoreID: created.Chore.ID, Done: true})
	if err != nil {
		t.Fatalf("SetDone failed: %v", err)
	}
	if done.Completion == nil || done.Completion.CompletedBy != bob.User.ID {
		t.Fatalf("completion = %+v", done.Completion)
	}

	thanks, err := call[SendThankYouForCompletionRequest, ThankYouResponse](t, env, SendThankYouForCompletionProcedure, alice.Token, &SendThankYouForCompletionRequest{
		CompletionID: done.Completion.ID,
		Message:      "sparkling!",
	})
	if err != nil {
		t.Fatalf("SendThankYouForCompletion failed: %v", err)
	}
	if thanks.ThankYou.ToID != bob.User.ID {
		t.Errorf("thanks went to %q, want bob", thanks.ThankYou.ToID)
	}

	history, err := call[GetHistoryRequest, GetHistoryResponse](t, env, GetHistoryProcedure, bob.Token, &GetHistoryRequest{Type: "received", Limit: 10})
	if err != nil {
		t.Fatalf("GetHistory failed: %v", err)
	}
	if len(history.ThankYous) != 1 || history.ThankYous[0].Message != "sparkling!" {
		t.Errorf("history = %+v", history.ThankYous)
	}

	stats, err := call[GetStatsRequest, GetStatsResponse](t, env, GetStatsProcedure, alice.Token, &GetStatsRequest{})
	if err != nil {
		t.Fatalf("GetStats failed: %v", err)
	}
	if stats.Stats.Sent != 1 || stats.Stats.Received != 0 || stats.Stats.Total != 1 {
		t.Errorf("stats = %+v", stats.Stats)
	}

	balance, err := call[GetChoreBalanceRequest, GetChoreBalanceResponse](t, env, GetChoreBalanceProcedure, alice.Token, &GetChoreBalanceRequest{})
	if err != nil {
		t.Fatalf("GetChoreBalance failed: %v", err)
	}
	if len(balance.Catchups) != 1 || balance.Catchups[0].From != alice.User.ID {
		t.Errorf("catchups = %+v", balance.Catchups)
	}

	_, err = call[DeleteChoreRequest, DeleteChoreResponse](t, env, DeleteChoreProcedure, bob.Token, &DeleteChoreRequest{ChoreID: created.Chore.ID})
	assertCode(t, err, connect.CodePermissionDenied)

	if _, err := call[DeleteChoreRequest, DeleteChoreResponse](t, env, DeleteChoreProcedure, alice.Token, &DeleteChoreRequest{ChoreID: created.Chore.ID}); err != nil {
		t.Fatalf("DeleteChore failed: %v", err)
	}
}

func TestUnlinkProcedure(t *testing.T) {
	env := setupTestServer(t)
	alice := register(t, env, "alice@example.com", "Alice")
	bob := register(t, env, "bob@example.com", "Bob")
	link(t, env, alice.User.ID, bob.User.ID)

	if _, err := call[UnlinkRequest, UnlinkResponse](t, env, UnlinkProcedure, alice.Token, &UnlinkRequest{}); err != nil {
		t.Fatalf("Unlink failed: %v", err)
	}

	info, err := call[GetPartnerInfoRequest, GetPartnerInfoResponse](t, env, GetPartnerInfoProcedure, bob.Token, &GetPartnerInfoRequest{})
	if err != nil {
		t.Fatalf("GetPartnerInfo failed: %v", err)
	}
	if info.Partner.HasPartner {
		t.Error("bob still linked after unlink")
	}

	_, err = call[UnlinkRequest, UnlinkResponse](t, env, UnlinkProcedure, alice.Token, &UnlinkRequest{})
	assertCode(t, err, connect.CodeFailedPrecondition)
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	err := connectError(errors.New("pq: relation \"secret_table\" does not exist"))
	var ce *connect.Error
	if !errors.As(err, &ce) {
		t.Fatalf("expected connect error, got %T", err)
	}
	if ce.Code() != connect.CodeInternal || ce.Message() != "internal error" {
		t.Errorf("got %v %q", ce.Code(), ce.Message())
	}
}
