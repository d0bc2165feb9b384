// Package rpc exposes the choremates services over Connect with a JSON codec.
// Messages are plain Go structs; there is no generated protobuf code.
package rpc

import (
	"encoding/json"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/choremates/internal/apperr"
	"github.com/mmynk/choremates/internal/auth"
)

// Codec marshals messages with encoding/json. Registering it under "json"
// replaces connect's protojson codec, which only handles proto messages.
type Codec struct{}

func (Codec) Name() string { return "json" }

func (Codec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (Codec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

// ClientOptions are the options a Go client needs to talk to these handlers.
func ClientOptions() []connect.ClientOption {
	return []connect.ClientOption{connect.WithCodec(Codec{})}
}

// connectError maps a service error to a Connect error carrying only the
// caller-safe message.
func connectError(err error) error {
	if err == nil {
		return nil
	}
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce
	}

	code := connect.CodeInternal
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		code = connect.CodeInvalidArgument
	case apperr.KindNotFound:
		code = connect.CodeNotFound
	case apperr.KindAuthorization:
		code = connect.CodePermissionDenied
	case apperr.KindConflict:
		code = connect.CodeFailedPrecondition
	case apperr.KindUnauthenticated:
		code = connect.CodeUnauthenticated
	case apperr.KindPersistence:
		code = connect.CodeInternal
	default:
		slog.Error("Unclassified error", "error", err)
	}
	return connect.NewError(code, errors.New(apperr.PublicMessage(err)))
}

// authError maps authenticator errors.
func authError(err error) error {
	switch {
	case errors.Is(err, auth.ErrEmailExists):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auth.ErrInvalidCredentials):
		return connect.NewError(connect.CodeUnauthenticated, err)
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}
