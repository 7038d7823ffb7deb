package repo

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-codereview-backend/internal/domain"
)

// CreateCredential stores a new login. Emails are compared lower-cased.
// A taken email surfaces as ErrDuplicate.
func CreateCredential(ctx context.Context, db *gorm.DB, email, passwordHash string) (*domain.Credential, error) {
	now := time.Now().UTC()
	c := &domain.Credential{
		ID:           uuid.NewString(),
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: passwordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		if IsDuplicate(err) {
			return nil, ErrDuplicate
		}
		return nil, err
	}
	return c, nil
}

// GetCredentialByEmail returns the login for email, or ErrNotFound.
func GetCredentialByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Credential, error) {
	var c domain.Credential
	err := db.WithContext(ctx).
		Where("email = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}
