package identity

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-codereview-backend/internal/config"
)

// FromConfig builds the configured Provider. The returned closer releases
// the Redis connection when one was opened and is always safe to call.
func FromConfig(ctx context.Context, cfg config.IdentityConfig, db *gorm.DB) (Provider, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case "remote":
		p, err := NewRemoteProvider(cfg.URL, cfg.Key, 15*time.Second)
		return p, noop, err
	case "local", "":
	default:
		return nil, noop, fmt.Errorf("identity: unknown provider %q", cfg.Provider)
	}

	var (
		revocations Revocations = NewMemoryRevocations()
		closer                  = noop
	)
	if cfg.RedisURL != "" {
		client, err := NewRedisClient(cfg.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("identity: redis: %w", err)
		}
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, noop, fmt.Errorf("identity: redis ping: %w", err)
		}
		revocations = NewRedisRevocations(client)
		closer = client.Close
	}

	p, err := NewLocalProvider(db, LocalOptions{
		Secret:      cfg.JWTSecret,
		Issuer:      cfg.JWTIssuer,
		AccessTTL:   cfg.AccessTTL,
		RefreshTTL:  cfg.RefreshTTL,
		BcryptCost:  cfg.BcryptCost,
		Revocations: revocations,
	})
	if err != nil {
		_ = closer()
		return nil, noop, err
	}
	return p, closer, nil
}
