package rpc

import (
	"context"
	"errors"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/choremates/internal/auth"
	"github.com/mmynk/choremates/internal/middleware"
	"github.com/mmynk/choremates/internal/models"
)

// AuthHandler serves Register and Login for password accounts.
type AuthHandler struct {
	authenticator auth.Authenticator
	jwtManager    *auth.JWTManager
	logger        *slog.Logger
}

// NewAuthHandler creates a new authentication handler.
func NewAuthHandler(authenticator auth.Authenticator, jwtManager *auth.JWTManager, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authenticator: authenticator,
		jwtManager:    jwtManager,
		logger:        logger,
	}
}

func userFromModel(u *models.User) *User {
	return &User{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		CreatedAt:   u.CreatedAt,
	}
}

// Register creates a new user account and its profile.
func (h *AuthHandler) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[AuthResponse], error) {
	h.logger.Info("Register request", "email", req.Msg.Email)

	if req.Msg.Email == "" || req.Msg.DisplayName == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("email and display name are required"))
	}

	user, err := h.authenticator.Register(ctx, req.Msg.Email, req.Msg.DisplayName, req.Msg.Password)
	if err != nil {
		h.logger.Warn("Registration failed", "email", req.Msg.Email, "error", err)
		return nil, authError(err)
	}

	token, err := h.jwtManager.Generate(user)
	if err != nil {
		h.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}

	h.logger.Info("User registered successfully", "user_id", user.ID)
	return connect.NewResponse(&AuthResponse{User: userFromModel(user), Token: token}), nil
}

// Login authenticates a user and returns a JWT token.
func (h *AuthHandler) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[AuthResponse], error) {
	h.logger.Info("Login request", "email", req.Msg.Email)

	if req.Msg.Email == "" || req.Msg.Password == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, auth.ErrInvalidCredentials)
	}

	user, err := h.authenticator.Authenticate(ctx, req.Msg.Email, req.Msg.Password)
	if err != nil {
		h.logger.Warn("Login failed", "email", req.Msg.Email, "error", err)
		return nil, authError(err)
	}

	token, err := h.jwtManager.Generate(user)
	if err != nil {
		h.logger.Error("Failed to generate token", "user_id", user.ID, "error", err)
		return nil, connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}

	h.logger.Info("User logged in successfully", "user_id", user.ID)
	return connect.NewResponse(&AuthResponse{User: userFromModel(user), Token: token}), nil
}

// getCurrentUser reports the caller's profile. It works for every identity
// backend, since profiles exist for hosted and password accounts alike.
func (s *Server) getCurrentUser(ctx context.Context, _ *connect.Request[GetCurrentUserRequest]) (*connect.Response[GetCurrentUserResponse], error) {
	userID := middleware.GetUserID(ctx)
	profile, err := s.Partners.Profile(ctx, userID)
	if err != nil {
		return nil, connectError(err)
	}

	user := &User{
		ID:          profile.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		CreatedAt:   profile.CreatedAt,
	}
	if user.Email == "" {
		user.Email = middleware.GetEmail(ctx)
	}
	if profile.PartnerID != nil {
		user.PartnerID = *profile.PartnerID
	}
	return connect.NewResponse(&GetCurrentUserResponse{User: user}), nil
}
