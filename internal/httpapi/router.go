// Package httpapi serves the REST endpoints, the websocket feed and the
// Connect procedures behind one chi router.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/mmynk/choremates/internal/auth"
	"github.com/mmynk/choremates/internal/metrics"
	"github.com/mmynk/choremates/internal/middleware"
	"github.com/mmynk/choremates/internal/realtime"
	"github.com/mmynk/choremates/internal/rpc"
	"github.com/mmynk/choremates/internal/service"
)

// Options configures NewRouter. RPC and StaticDir are optional.
type Options struct {
	Invitations *service.InvitationService
	Partners    *service.PartnerService
	Chores      *service.ChoreService
	Broker      *realtime.Broker
	Verifier    auth.Verifier
	Metrics     *metrics.Collector
	RPC         *rpc.Server

	StaticDir      string
	AllowedOrigins []string
	Logger         *slog.Logger
}

// NewRouter builds the HTTP handler for the whole server.
func NewRouter(opts Options) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(logger))
	if opts.Metrics != nil {
		r.Use(opts.Metrics.Middleware)
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Connect-Protocol-Version", "Connect-Timeout-Ms"},
		ExposedHeaders:   []string{"Connect-Protocol-Version", "Connect-Timeout-Ms"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		r.Handle("/metrics", opts.Metrics.Handler())
	}

	invitations := NewInvitationHandler(opts.Invitations)
	feed := realtime.NewFeed(opts.Broker, feedLoaders(opts), originChecker(opts.AllowedOrigins))

	r.Route("/api", func(r chi.Router) {
		r.Get("/invitations/{code}", invitations.Get)

		r.Group(func(r chi.Router) {
			r.Use(requireUser(opts.Verifier))
			r.Get("/invitations", invitations.List)
			r.Get("/invitations/current", invitations.Current)
			r.Post("/invitations", invitations.Create)
			r.Post("/invitations/{code}", invitations.Accept)
			r.Delete("/invitations/{code}", invitations.Cancel)
			r.Get("/realtime", func(w http.ResponseWriter, r *http.Request) {
				feed.Serve(w, r, middleware.GetUserID(r.Context()))
			})
		})
	})

	if opts.RPC != nil {
		opts.RPC.Mount(r)
	}
	if opts.StaticDir != "" {
		r.NotFound(staticHandler(opts.StaticDir))
	}

	return r
}

// feedLoaders refetches the state a websocket client shows after a change.
func feedLoaders(opts Options) map[string]realtime.Loader {
	return map[string]realtime.Loader{
		realtime.TableChores: func(ctx context.Context, userID string) (any, error) {
			return opts.Chores.ListChores(ctx, userID)
		},
		realtime.TableProfiles: func(ctx context.Context, userID string) (any, error) {
			return opts.Partners.GetPartnerInfo(ctx, userID)
		},
		realtime.TableInvitations: func(ctx context.Context, userID string) (any, error) {
			return opts.Invitations.ListInvitations(ctx, userID)
		},
	}
}

// originChecker allows websocket handshakes from the configured origins. A
// wildcard entry allows any origin; an empty list falls back to same-origin.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || slices.Contains(allowed, "*") || slices.Contains(allowed, origin)
	}
}
