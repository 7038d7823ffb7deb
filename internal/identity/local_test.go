package identity

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-codereview-backend/internal/apperror"
	"github.com/tbourn/go-codereview-backend/internal/domain"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "identity.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	require.NoError(t, db.AutoMigrate(&domain.Credential{}))
	return db
}

func newLocal(t *testing.T, now func() time.Time) *LocalProvider {
	t.Helper()
	p, err := NewLocalProvider(newTestDB(t), LocalOptions{
		Secret:     testSecret,
		Issuer:     "test",
		AccessTTL:  time.Hour,
		RefreshTTL: 24 * time.Hour,
		BcryptCost: bcrypt.MinCost,
		Now:        now,
	})
	require.NoError(t, err)
	return p
}

func TestNewLocalProvider_Validation(t *testing.T) {
	db := newTestDB(t)

	_, err := NewLocalProvider(nil, LocalOptions{Secret: testSecret})
	assert.Error(t, err)

	_, err = NewLocalProvider(db, LocalOptions{Secret: "short"})
	assert.Error(t, err)

	_, err = NewLocalProvider(db, LocalOptions{Secret: testSecret, BcryptCost: 99})
	assert.Error(t, err)

	p, err := NewLocalProvider(db, LocalOptions{Secret: testSecret})
	require.NoError(t, err)
	assert.Equal(t, "codereview", p.issuer)
	assert.Equal(t, bcrypt.DefaultCost, p.cost)
}

func TestLocal_RegisterAuthenticateVerify(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t, nil)

	u, err := p.Register(ctx, " Ada@Example.com ", "secret1")
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "ada@example.com", u.Email)

	_, err = p.Register(ctx, "ada@example.com", "another")
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = p.Authenticate(ctx, "ada@example.com", "wrong")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	_, err = p.Authenticate(ctx, "nobody@example.com", "secret1")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)

	s, err := p.Authenticate(ctx, "ADA@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, int64(3600), s.ExpiresIn)
	assert.Equal(t, u, s.User)

	got, err := p.Verify(ctx, s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u, got)

	// A refresh token is not an access token.
	_, err = p.Verify(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocal_RegisterValidation(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t, nil)

	_, err := p.Register(ctx, "not-an-email", "secret1")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = p.Register(ctx, "Ada <ada@example.com>", "secret1")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = p.Register(ctx, "ada@example.com", "12345")
	assert.ErrorIs(t, err, apperror.ErrValidation)
	msg, _ := apperror.Message(err)
	assert.Equal(t, "Password must be at least 6 characters", msg)
}

func TestLocal_VerifyRejectsBadTokens(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t, nil)
	u, err := p.Register(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"empty":   "",
		"garbage": "not.a.jwt",
	} {
		_, err := p.Verify(ctx, tok)
		assert.ErrorIs(t, err, ErrInvalidToken, name)
	}

	// Signed with another secret.
	other, err := NewLocalProvider(p.db, LocalOptions{Secret: "ffffffffffffffffffffffffffffffff", Issuer: "test"})
	require.NoError(t, err)
	forged, err := other.sign(u, tokenAccess, time.Hour)
	require.NoError(t, err)
	_, err = p.Verify(ctx, forged)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Wrong algorithm.
	none := jwt.NewWithClaims(jwt.SigningMethodNone, claims{Type: tokenAccess, RegisteredClaims: jwt.RegisteredClaims{
		ID: "x", Subject: u.ID, Issuer: "test", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}})
	raw, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = p.Verify(ctx, raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestLocal_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	clock := func() time.Time { return now }
	p := newLocal(t, clock)

	_, err := p.Register(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	s, err := p.Authenticate(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	_, err = p.Verify(ctx, s.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The refresh token outlives the access token.
	s2, err := p.Refresh(ctx, s.RefreshToken)
	require.NoError(t, err)
	_, err = p.Verify(ctx, s2.AccessToken)
	assert.NoError(t, err)
}

func TestLocal_RefreshRotatesAndSignOutRevokes(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t, nil)
	_, err := p.Register(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	s, err := p.Authenticate(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	s2, err := p.Refresh(ctx, s.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, s.RefreshToken, s2.RefreshToken)

	_, err = p.Refresh(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "used refresh token must not be accepted twice")

	_, err = p.Refresh(ctx, s2.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	require.NoError(t, p.SignOut(ctx, s2.AccessToken))
	_, err = p.Verify(ctx, s2.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// The earlier access token is independent of the signed-out one.
	_, err = p.Verify(ctx, s.AccessToken)
	assert.NoError(t, err)

	assert.NoError(t, p.SignOut(ctx, "garbage"))
}

// lateRevocations reports every id as unrevoked on lookup, modelling a second
// refresh that passed the check before the first one recorded its revoke.
type lateRevocations struct{ *MemoryRevocations }

func (lateRevocations) IsRevoked(context.Context, string) (bool, error) { return false, nil }

func TestLocal_RefreshRaceYieldsOneSession(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t, nil)
	_, err := p.Register(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	s, err := p.Authenticate(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	p.revoked = lateRevocations{NewMemoryRevocations()}
	_, err = p.Refresh(ctx, s.RefreshToken)
	require.NoError(t, err)
	_, err = p.Refresh(ctx, s.RefreshToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "the revoke itself must reject the replay")
}

func TestLocal_ConcurrentRefreshHasOneWinner(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t, nil)
	_, err := p.Register(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	s, err := p.Authenticate(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	const n = 16
	var wg sync.WaitGroup
	var wins, rejected atomic.Int32
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Refresh(ctx, s.RefreshToken)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, ErrInvalidToken):
				rejected.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
	assert.Equal(t, int32(n-1), rejected.Load())
}

type failingRevocations struct{}

func (failingRevocations) Revoke(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func (failingRevocations) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}

func TestLocal_RevocationStoreErrorsSurface(t *testing.T) {
	ctx := context.Background()
	p := newLocal(t, nil)
	_, err := p.Register(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)
	s, err := p.Authenticate(ctx, "ada@example.com", "secret1")
	require.NoError(t, err)

	p.revoked = failingRevocations{}
	_, err = p.Verify(ctx, s.AccessToken)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperror.ErrUnauthorized)
}
