package identity

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/tbourn/go-codereview-backend/internal/apperror"
	"github.com/tbourn/go-codereview-backend/internal/repo"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"
)

// LocalOptions configures a LocalProvider.
type LocalOptions struct {
	Secret     string
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	BcryptCost int
	// Revocations defaults to an in-memory list.
	Revocations Revocations
	// Now is overridable in tests.
	Now func() time.Time
}

// LocalProvider stores credentials in the application database and signs its
// own HS256 tokens.
type LocalProvider struct {
	db      *gorm.DB
	secret  []byte
	issuer  string
	access  time.Duration
	refresh time.Duration
	cost    int
	revoked Revocations
	now     func() time.Time
}

type claims struct {
	Type  string `json:"typ"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// NewLocalProvider validates opts and returns a provider bound to db.
func NewLocalProvider(db *gorm.DB, opts LocalOptions) (*LocalProvider, error) {
	if db == nil {
		return nil, errors.New("identity: nil db")
	}
	if len(opts.Secret) < 16 {
		return nil, errors.New("identity: JWT secret must be at least 16 characters")
	}
	if opts.Issuer == "" {
		opts.Issuer = "codereview"
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = bcrypt.DefaultCost
	}
	if opts.BcryptCost < bcrypt.MinCost || opts.BcryptCost > bcrypt.MaxCost {
		return nil, fmt.Errorf("identity: bcrypt cost %d out of range", opts.BcryptCost)
	}
	if opts.Revocations == nil {
		opts.Revocations = NewMemoryRevocations()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &LocalProvider{
		db:      db,
		secret:  []byte(opts.Secret),
		issuer:  opts.Issuer,
		access:  opts.AccessTTL,
		refresh: opts.RefreshTTL,
		cost:    opts.BcryptCost,
		revoked: opts.Revocations,
		now:     opts.Now,
	}, nil
}

// Register creates a credential. The returned user id is also the profile id.
func (p *LocalProvider) Register(ctx context.Context, email, password string) (User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return User{}, err
	}
	if len(password) < MinPasswordLen {
		return User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), p.cost)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}
	c, err := repo.CreateCredential(ctx, p.db, email, string(hash))
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return User{}, ErrEmailTaken
		}
		return User{}, apperror.Store(err)
	}
	return User{ID: c.ID, Email: c.Email}, nil
}

// Authenticate checks the password and issues a fresh session.
func (p *LocalProvider) Authenticate(ctx context.Context, email, password string) (Session, error) {
	c, err := repo.GetCredentialByEmail(ctx, p.db, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, apperror.Store(err)
	}
	if bcrypt.CompareHashAndPassword([]byte(c.PasswordHash), []byte(password)) != nil {
		return Session{}, ErrInvalidCredentials
	}
	return p.issue(User{ID: c.ID, Email: c.Email})
}

// Verify accepts only unexpired, unrevoked access tokens.
func (p *LocalProvider) Verify(ctx context.Context, accessToken string) (User, error) {
	c, err := p.parse(ctx, accessToken, tokenAccess)
	if err != nil {
		return User{}, err
	}
	return User{ID: c.Subject, Email: c.Email}, nil
}

// Refresh exchanges a refresh token for a new session and revokes the old
// refresh token. Each refresh token yields at most one session, also under
// concurrent use.
func (p *LocalProvider) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	c, err := p.parse(ctx, refreshToken, tokenRefresh)
	if err != nil {
		return Session{}, err
	}
	first, err := p.revoked.Revoke(ctx, c.ID, p.remaining(c))
	if err != nil {
		return Session{}, fmt.Errorf("revoke refresh token: %w", err)
	}
	if !first {
		return Session{}, ErrInvalidToken
	}
	return p.issue(User{ID: c.Subject, Email: c.Email})
}

// SignOut revokes the access token. Unknown or expired tokens are ignored.
func (p *LocalProvider) SignOut(ctx context.Context, accessToken string) error {
	c, err := p.parse(ctx, accessToken, tokenAccess)
	if err != nil {
		return nil
	}
	_, err = p.revoked.Revoke(ctx, c.ID, p.remaining(c))
	return err
}

func (p *LocalProvider) issue(u User) (Session, error) {
	access, err := p.sign(u, tokenAccess, p.access)
	if err != nil {
		return Session{}, err
	}
	refresh, err := p.sign(u, tokenRefresh, p.refresh)
	if err != nil {
		return Session{}, err
	}
	return Session{
		User:         u,
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(p.access / time.Second),
	}, nil
}

func (p *LocalProvider) sign(u User, typ string, ttl time.Duration) (string, error) {
	now := p.now()
	c := claims{
		Type:  typ,
		Email: u.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   u.ID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (p *LocalProvider) parse(ctx context.Context, raw, typ string) (*claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrInvalidToken
	}
	c := &claims{}
	_, err := jwt.ParseWithClaims(raw, c, func(*jwt.Token) (any, error) {
		return p.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(p.now),
	)
	if err != nil || c.Type != typ || c.Subject == "" || c.ID == "" {
		return nil, ErrInvalidToken
	}
	revoked, err := p.revoked.IsRevoked(ctx, c.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}
	return c, nil
}

func (p *LocalProvider) remaining(c *claims) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return c.ExpiresAt.Sub(p.now())
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
