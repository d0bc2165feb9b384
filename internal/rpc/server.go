package rpc

import (
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/choremates/internal/auth"
	"github.com/mmynk/choremates/internal/metrics"
	"github.com/mmynk/choremates/internal/middleware"
	"github.com/mmynk/choremates/internal/service"
)

// Procedure paths.
const (
	RegisterProcedure       = "/choremates.v1.AuthService/Register"
	LoginProcedure          = "/choremates.v1.AuthService/Login"
	GetCurrentUserProcedure = "/choremates.v1.AuthService/GetCurrentUser"

	GetPartnerInfoProcedure = "/choremates.v1.PartnerService/GetPartnerInfo"
	UnlinkProcedure         = "/choremates.v1.PartnerService/Unlink"

	CreateChoreProcedure     = "/choremates.v1.ChoreService/CreateChore"
	ListChoresProcedure      = "/choremates.v1.ChoreService/ListChores"
	UpdateChoreProcedure     = "/choremates.v1.ChoreService/UpdateChore"
	SetDoneProcedure         = "/choremates.v1.ChoreService/SetDone"
	DeleteChoreProcedure     = "/choremates.v1.ChoreService/DeleteChore"
	GetChoreBalanceProcedure = "/choremates.v1.ChoreService/GetChoreBalance"

	SendThankYouProcedure              = "/choremates.v1.ThankYouService/SendThankYou"
	SendThankYouForCompletionProcedure = "/choremates.v1.ThankYouService/SendThankYouForCompletion"
	GetHistoryProcedure                = "/choremates.v1.ThankYouService/GetHistory"
	GetStatsProcedure                  = "/choremates.v1.ThankYouService/GetStats"
)

// Router is the subset of http.ServeMux and chi.Router that Mount needs.
type Router interface {
	Handle(pattern string, handler http.Handler)
}

// Server wires the services to Connect procedures. Auth may be nil when the
// backend manages accounts itself; Register and Login are then not mounted.
type Server struct {
	Auth     *AuthHandler
	Partners *service.PartnerService
	Chores   *service.ChoreService
	Thanks   *service.ThankYouService

	Verifier auth.Verifier
	Metrics  *metrics.Collector
	Logger   *slog.Logger
}

// Mount registers every procedure on r.
func (s *Server) Mount(r Router) {
	base := []connect.Interceptor{}
	if s.Metrics != nil {
		base = append(base, middleware.MetricsInterceptor(s.Metrics))
	}
	public := connect.WithInterceptors(append(base, middleware.OptionalAuth(s.Verifier), middleware.LoggingInterceptor(s.Logger))...)
	authed := connect.WithInterceptors(append(base, middleware.RequireAuth(s.Verifier), middleware.LoggingInterceptor(s.Logger))...)
	codec := connect.WithCodec(Codec{})

	if s.Auth != nil {
		r.Handle(RegisterProcedure, connect.NewUnaryHandler(RegisterProcedure, s.Auth.Register, codec, public))
		r.Handle(LoginProcedure, connect.NewUnaryHandler(LoginProcedure, s.Auth.Login, codec, public))
	}
	r.Handle(GetCurrentUserProcedure, connect.NewUnaryHandler(GetCurrentUserProcedure, s.getCurrentUser, codec, authed))

	r.Handle(GetPartnerInfoProcedure, connect.NewUnaryHandler(GetPartnerInfoProcedure, s.getPartnerInfo, codec, authed))
	r.Handle(UnlinkProcedure, connect.NewUnaryHandler(UnlinkProcedure, s.unlink, codec, authed))

	r.Handle(CreateChoreProcedure, connect.NewUnaryHandler(CreateChoreProcedure, s.createChore, codec, authed))
	r.Handle(ListChoresProcedure, connect.NewUnaryHandler(ListChoresProcedure, s.listChores, codec, authed))
	r.Handle(UpdateChoreProcedure, connect.NewUnaryHandler(UpdateChoreProcedure, s.updateChore, codec, authed))
	r.Handle(SetDoneProcedure, connect.NewUnaryHandler(SetDoneProcedure, s.setDone, codec, authed))
	r.Handle(DeleteChoreProcedure, connect.NewUnaryHandler(DeleteChoreProcedure, s.deleteChore, codec, authed))
	r.Handle(GetChoreBalanceProcedure, connect.NewUnaryHandler(GetChoreBalanceProcedure, s.getChoreBalance, codec, authed))

	r.Handle(SendThankYouProcedure, connect.NewUnaryHandler(SendThankYouProcedure, s.sendThankYou, codec, authed))
	r.Handle(SendThankYouForCompletionProcedure, connect.NewUnaryHandler(SendThankYouForCompletionProcedure, s.sendThankYouForCompletion, codec, authed))
	r.Handle(GetHistoryProcedure, connect.NewUnaryHandler(GetHistoryProcedure, s.getHistory, codec, authed))
	r.Handle(GetStatsProcedure, connect.NewUnaryHandler(GetStatsProcedure, s.getStats, codec, authed))
}
