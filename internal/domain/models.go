// Package domain defines the persistence models for profiles, code reviews,
// review feedback and local credentials. These types are mapped with GORM and
// form the core data layer of the code review service.
package domain

import (
	"time"

	"gorm.io/datatypes"
)

// Profile is the per-user record kept alongside the identity provider's user.
// Its ID is the provider's opaque user id.
//
// Fields:
//   - ID: identity-provider user id (primary key).
//   - Email / FullName / ProgrammingExperience / Role / ProfileImageURL: user-editable.
//   - SurveyCompleted / SurveyCompletedAt: set only when the onboarding survey is completed.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
type Profile struct {
	ID                    string     `json:"id"                     gorm:"type:varchar(64);primaryKey"`
	Email                 string     `json:"email"                  gorm:"type:varchar(255)"`
	FullName              string     `json:"full_name"              gorm:"type:varchar(255)"`
	ProgrammingExperience string     `json:"programming_experience" gorm:"type:varchar(64)"`
	Role                  string     `json:"role"                   gorm:"type:varchar(64)"`
	ProfileImageURL       string     `json:"profile_image_url"      gorm:"type:text"`
	SurveyCompleted       bool       `json:"survey_completed"       gorm:"not null;default:false"`
	SurveyCompletedAt     *time.Time `json:"survey_completed_at"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Profile.
func (Profile) TableName() string { return "profiles" }

// Review is a code snippet submitted by a user together with the analysis
// produced for it. Reviews are immutable once created and are only ever read
// or deleted scoped by (id, user_id).
//
// Fields:
//   - ID: UUID primary key (char(36)).
//   - UserID: owner; indexed together with CreatedAt for newest-first listing.
//   - AISuggestions: the analysis record, stored as a JSON column.
//   - Score: mirrors AISuggestions.Score, always within [0,100].
type Review struct {
	ID            string                       `json:"id"             gorm:"type:char(36);primaryKey"`
	UserID        string                       `json:"user_id"        gorm:"type:varchar(64);not null;index:idx_user_reviews,priority:1"`
	Title         string                       `json:"title"          gorm:"type:varchar(255);not null"`
	CodeSnippet   string                       `json:"code_snippet"   gorm:"type:text;not null"`
	Language      string                       `json:"language"       gorm:"type:varchar(32);not null;default:'javascript'"`
	AISuggestions datatypes.JSONType[Analysis] `json:"ai_suggestions"`
	Score         int                          `json:"score"          gorm:"not null;default:0;check:score BETWEEN 0 AND 100"`
	CreatedAt     time.Time                    `json:"created_at"     gorm:"index:idx_user_reviews,priority:2"`
}

// TableName returns the database table name for Review.
func (Review) TableName() string { return "reviews" }

// Analysis returns the decoded analysis record.
func (r Review) Analysis() Analysis { return r.AISuggestions.Data() }

// Feedback is a user's structured rating of a single review. At most one
// feedback row exists per review (unique index on review_id).
type Feedback struct {
	ID                string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ReviewID          string    `json:"review_id"   gorm:"type:char(36);not null;uniqueIndex:ux_feedback_review"`
	AccuracyRating    int       `json:"accuracy"    gorm:"not null;check:accuracy_rating BETWEEN 1 AND 10"`
	HelpfulnessRating int       `json:"helpfulness" gorm:"not null;check:helpfulness_rating BETWEEN 1 AND 10"`
	TrustRating       int       `json:"trust"       gorm:"not null;check:trust_rating BETWEEN 1 AND 10"`
	TimeSpentSeconds  int       `json:"time_spent"  gorm:"not null;default:0;check:time_spent_seconds >= 0"`
	Comments          *string   `json:"comments"    gorm:"type:text"`
	CreatedAt         time.Time `json:"created_at"`

	// Review is the rated review. Feedback goes away with it.
	Review Review `json:"-" gorm:"foreignKey:ReviewID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }

// Credential is a locally managed login used when the service acts as its
// own identity provider.
type Credential struct {
	ID           string    `gorm:"type:char(36);primaryKey"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex:ux_credentials_email"`
	PasswordHash string    `gorm:"type:varchar(255);not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the database table name for Credential.
func (Credential) TableName() string { return "credentials" }
