// Package app assembles the choremates server from a Config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
	"golang.org/x/sync/errgroup"

	"github.com/mmynk/choremates/internal/auth"
	"github.com/mmynk/choremates/internal/config"
	"github.com/mmynk/choremates/internal/httpapi"
	"github.com/mmynk/choremates/internal/metrics"
	"github.com/mmynk/choremates/internal/realtime"
	"github.com/mmynk/choremates/internal/rpc"
	"github.com/mmynk/choremates/internal/service"
	"github.com/mmynk/choremates/internal/storage"
	"github.com/mmynk/choremates/internal/storage/memory"
	"github.com/mmynk/choremates/internal/storage/sqlite"
	"github.com/mmynk/choremates/internal/storage/supabase"
)

const shutdownTimeout = 10 * time.Second

// App holds the wired components of a running server.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    storage.Store
	broker   *realtime.Broker
	metrics  *metrics.Collector
	verifier auth.Verifier
	users    storage.UserStore

	Invitations *service.InvitationService
	Partners    *service.PartnerService
	Chores      *service.ChoreService
	Thanks      *service.ThankYouService
	Cleanup     *service.CleanupJob
}

// OpenStore opens the configured backend and the verifier that matches it.
// users is nil when the backend manages accounts itself.
func OpenStore(cfg *config.Config) (store storage.Store, verifier auth.Verifier, users storage.UserStore, err error) {
	switch cfg.Backend {
	case config.BackendMemory:
		// Demo mode: any UUID is accepted as a bearer token.
		return memory.New(), auth.MockVerifier{}, nil, nil

	case config.BackendSupabase:
		s, err := supabase.New(supabase.Config{URL: cfg.SupabaseURL, ServiceKey: cfg.SupabaseServiceKey})
		if err != nil {
			return nil, nil, nil, err
		}
		key := cfg.SupabaseAnonKey
		if key == "" {
			key = cfg.SupabaseServiceKey
		}
		v, err := auth.NewSupabaseVerifier(cfg.SupabaseURL, key)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, v, nil, nil

	default:
		s, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, nil, nil, err
		}
		return s, auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL), s, nil
	}
}

// New opens the backend and builds every service.
func New(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	store, verifier, users, err := OpenStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	collector := metrics.NewCollector("choremates")
	broker := realtime.NewBroker(realtime.WithMetrics(collector))
	deps := service.Deps{Store: store, Publisher: broker, Metrics: collector}

	return &App{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		broker:   broker,
		metrics:  collector,
		verifier: verifier,
		users:    users,

		Invitations: service.NewInvitationService(deps, service.InvitationOptions{
			TTL:          cfg.InviteTTL,
			PublicURL:    cfg.PublicURL,
			QRServiceURL: cfg.QRServiceURL,
		}),
		Partners: service.NewPartnerService(deps, service.RetryOptions{
			Retries: cfg.PartnerRetries,
			Delay:   cfg.PartnerRetryDelay,
		}),
		Chores:  service.NewChoreService(deps),
		Thanks:  service.NewThankYouService(deps),
		Cleanup: service.NewCleanupJob(deps),
	}, nil
}

// Handler returns the HTTP handler serving REST, websocket and Connect
// traffic. It speaks HTTP/2 without TLS so Connect clients can stream.
func (a *App) Handler() http.Handler {
	srv := &rpc.Server{
		Partners: a.Partners,
		Chores:   a.Chores,
		Thanks:   a.Thanks,
		Verifier: a.verifier,
		Metrics:  a.metrics,
		Logger:   a.logger,
	}
	if jwtManager, ok := a.verifier.(*auth.JWTManager); ok && a.users != nil {
		srv.Auth = rpc.NewAuthHandler(auth.NewPasswordAuthenticator(a.users), jwtManager, a.logger)
	}

	router := httpapi.NewRouter(httpapi.Options{
		Invitations:    a.Invitations,
		Partners:       a.Partners,
		Chores:         a.Chores,
		Broker:         a.broker,
		Verifier:       a.verifier,
		Metrics:        a.metrics,
		RPC:            srv,
		StaticDir:      a.cfg.StaticPath,
		AllowedOrigins: a.cfg.AllowedOrigins,
		Logger:         a.logger,
	})
	return h2c.NewHandler(router, &http2.Server{})
}

// Run serves HTTP and runs the invitation cleanup job until ctx is cancelled,
// then shuts both down.
func (a *App) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              ":" + a.cfg.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("Server starting", "address", httpServer.Addr, "backend", a.cfg.Backend)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.Cleanup.Start(ctx, a.cfg.CleanupInterval)
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the broker and the store.
func (a *App) Close() error {
	a.broker.Close()
	return a.store.Close()
}
