// Package identity authenticates users and validates bearer tokens.
//
// Two Provider implementations exist. LocalProvider keeps bcrypt-hashed
// credentials in the application database and issues HS256 JWTs itself.
// RemoteProvider delegates to a GoTrue-compatible auth server (Supabase) over
// HTTP. Handlers and middleware only see the Provider interface.
package identity

import (
	"context"

	"github.com/tbourn/go-codereview-backend/internal/apperror"
)

// User is the identity attached to a verified token.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the credential pair handed to a client after login.
type Session struct {
	User         User   `json:"-"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"` // seconds
}

// Verifier validates an access token.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (User, error)
}

// Provider is the full identity contract used by the auth service.
type Provider interface {
	Verifier
	Register(ctx context.Context, email, password string) (User, error)
	Authenticate(ctx context.Context, email, password string) (Session, error)
	Refresh(ctx context.Context, refreshToken string) (Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// Errors returned by providers. They carry client-safe messages.
var (
	ErrInvalidCredentials = apperror.Unauthorized("Invalid email or password")
	ErrInvalidToken       = apperror.Unauthorized("Invalid or expired token")
	ErrEmailTaken         = apperror.Conflict("User already registered")
	ErrWeakPassword       = apperror.ValidationFailed("password", "Password must be at least 6 characters")
	ErrInvalidEmail       = apperror.ValidationFailed("email", "Invalid email address")
)

// MinPasswordLen is the shortest password accepted at registration.
const MinPasswordLen = 6
