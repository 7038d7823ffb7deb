// Package services – AuthService
//
// AuthService fronts the identity provider for the auth endpoints. It keeps
// the provider and the profiles table in step: registration creates the
// profile row, and the "current user" endpoint answers from that row.
package services

import (
	"context"
	"errors"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-codereview-backend/internal/apperror"
	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/identity"
)

// AuthService implements register, login, refresh, logout and "who am I".
type AuthService struct {
	Identity identity.Provider
	Profiles *ProfileService
}

// Register creates the identity and its profile. username becomes the
// profile's full name.
func (s *AuthService) Register(ctx context.Context, email, password, username string) (*domain.Profile, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Register")
	defer span.End()

	if strings.TrimSpace(email) == "" || password == "" || strings.TrimSpace(username) == "" {
		return nil, ErrRegisterFields
	}
	u, err := s.Identity.Register(ctx, email, password)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", u.ID))
	return s.Profiles.Ensure(ctx, u.ID, u.Email, username)
}

// Login authenticates and returns the session. The user must have a profile.
func (s *AuthService) Login(ctx context.Context, email, password string) (identity.Session, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Login")
	defer span.End()

	if strings.TrimSpace(email) == "" || password == "" {
		return identity.Session{}, ErrLoginFields
	}
	sess, err := s.Identity.Authenticate(ctx, email, password)
	if err != nil {
		return identity.Session{}, err
	}
	span.SetAttributes(attribute.String("user.id", sess.User.ID))

	p, err := s.Profiles.Get(ctx, sess.User.ID)
	if err != nil {
		return identity.Session{}, err
	}
	if p == nil {
		return identity.Session{}, ErrProfileNotFound
	}
	if p.Email != "" {
		sess.User.Email = p.Email
	}
	return sess, nil
}

// Me returns the profile row of the authenticated user.
func (s *AuthService) Me(ctx context.Context, userID string) (*domain.Profile, error) {
	tr := otel.Tracer("services/AuthService")
	ctx, span := tr.Start(ctx, "Me", trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	p, err := s.Profiles.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProfileNotFound
	}
	return p, nil
}

// Refresh exchanges a refresh token for a new session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (identity.Session, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return identity.Session{}, apperror.ValidationFailed("refresh_token", "Refresh token is required")
	}
	return s.Identity.Refresh(ctx, refreshToken)
}

// Logout revokes accessToken when one is given. Rejected tokens are not an
// error for the caller; only provider outages are.
func (s *AuthService) Logout(ctx context.Context, accessToken string) error {
	if strings.TrimSpace(accessToken) == "" {
		return nil
	}
	err := s.Identity.SignOut(ctx, accessToken)
	if err != nil && errors.Is(err, apperror.ErrUnauthorized) {
		return nil
	}
	return err
}
