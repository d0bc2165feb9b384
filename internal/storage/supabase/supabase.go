// Package supabase implements storage.Store on top of a hosted PostgREST
// backend. Multi-row procedures run server-side as database functions (see
// schema.sql) so their atomicity does not depend on this process.
package supabase

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"github.com/supabase-community/postgrest-go"

	"github.com/mmynk/choremates/internal/storage"
)

// Schema is the DDL and procedure set this store expects.
//
//go:embed schema.sql
var Schema string

var _ storage.Store = (*Store)(nil)

// Config locates the hosted backend.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co.
	URL string
	// ServiceKey is the service-role key; requests bypass row-level security
	// and the services enforce ownership instead.
	ServiceKey string
	// Schema defaults to "public".
	Schema string
}

// Store talks to PostgREST through postgrest-go. Calls pass through a
// circuit breaker so an unreachable backend fails fast.
type Store struct {
	client  *postgrest.Client
	breaker *gobreaker.CircuitBreaker

	// rpcMu serializes Rpc calls: postgrest.Client reports their transport
	// errors through the shared ClientError field.
	rpcMu sync.Mutex
}

// New builds a Store. It does not contact the backend.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, errors.New("supabase url and service key are required")
	}
	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}

	client := postgrest.NewClient(strings.TrimRight(cfg.URL, "/")+"/rest/v1", schema, map[string]string{
		"apikey":        cfg.ServiceKey,
		"Authorization": "Bearer " + cfg.ServiceKey,
	})
	if client.ClientError != nil {
		return nil, fmt.Errorf("failed to create postgrest client: %w", client.ClientError)
	}

	return &Store{
		client:  client,
		breaker: newBreaker("postgrest"),
	}, nil
}

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.8
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
		// Domain outcomes are answers from a healthy backend.
		IsSuccessful: func(err error) bool {
			return err == nil || isDomainError(err)
		},
	})
}

func isDomainError(err error) bool {
	return errors.Is(err, storage.ErrNotFound) ||
		errors.Is(err, storage.ErrInvitationUnavailable) ||
		errors.Is(err, storage.ErrAlreadyPartnered) ||
		errors.Is(err, storage.ErrSelfInvitation) ||
		errors.Is(err, storage.ErrNoPartner) ||
		errors.Is(err, storage.ErrProfileNotFound) ||
		errors.Is(err, storage.ErrChoreStateChanged)
}

// do runs fn through the breaker.
func (s *Store) do(fn func() error) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	return err
}

// Close is a no-op; the HTTP client holds no resources worth releasing.
func (s *Store) Close() error { return nil }

// rpcError is the body PostgREST returns when a function raises.
type rpcError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// procedureErrors maps exception messages raised in schema.sql to storage errors.
var procedureErrors = map[string]error{
	"invitation_not_found":   storage.ErrNotFound,
	"invitation_unavailable": storage.ErrInvitationUnavailable,
	"self_invitation":        storage.ErrSelfInvitation,
	"already_partnered":      storage.ErrAlreadyPartnered,
	"no_partner":             storage.ErrNoPartner,
	"profile_not_found":      storage.ErrProfileNotFound,
}

// rpc calls a database function and decodes its JSON result into out.
func (s *Store) rpc(name string, args map[string]any, out any) error {
	return s.do(func() error {
		s.rpcMu.Lock()
		s.client.ClientError = nil
		body := s.client.Rpc(name, "", args)
		clientErr := s.client.ClientError
		s.rpcMu.Unlock()

		if clientErr != nil {
			return fmt.Errorf("rpc %s: %w", name, clientErr)
		}
		return decodeRPC(name, body, out)
	})
}

// decodeRPC separates PostgREST error bodies from results.
func decodeRPC(name, body string, out any) error {
	trimmed := strings.TrimSpace(body)
	if strings.HasPrefix(trimmed, "{") {
		var rerr rpcError
		if err := json.Unmarshal([]byte(trimmed), &rerr); err == nil && rerr.Code != "" && rerr.Message != "" {
			if mapped, ok := procedureErrors[rerr.Message]; ok {
				return mapped
			}
			return fmt.Errorf("rpc %s: (%s) %s", name, rerr.Code, rerr.Message)
		}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal([]byte(trimmed), out); err != nil {
		return fmt.Errorf("rpc %s: failed to decode result: %w", name, err)
	}
	return nil
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
