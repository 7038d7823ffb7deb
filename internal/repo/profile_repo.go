package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-codereview-backend/internal/domain"
)

// GetProfile returns the profile keyed by userID, or ErrNotFound.
func GetProfile(ctx context.Context, db *gorm.DB, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := db.WithContext(ctx).Where("id = ?", userID).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertProfile inserts p, or on an id conflict overwrites only the listed
// columns (plus updated_at). The stored row is returned.
func UpsertProfile(ctx context.Context, db *gorm.DB, p *domain.Profile, columns ...string) (*domain.Profile, error) {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	cols := append(append([]string{}, columns...), "updated_at")
	err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(cols),
	}).Create(p).Error
	if err != nil {
		return nil, err
	}
	return GetProfile(ctx, db, p.ID)
}

// EnsureProfile inserts p unless a profile with the same id exists.
func EnsureProfile(ctx context.Context, db *gorm.DB, p *domain.Profile) error {
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	return db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(p).Error
}

// UpdateProfileImage sets the image URL of an existing profile. It returns
// ErrNotFound when the user has no profile yet.
func UpdateProfileImage(ctx context.Context, db *gorm.DB, userID, url string) (*domain.Profile, error) {
	res := db.WithContext(ctx).
		Model(&domain.Profile{}).
		Where("id = ?", userID).
		Updates(map[string]any{"profile_image_url": url, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return GetProfile(ctx, db, userID)
}
