// Package services defines the business logic for code reviews, feedback,
// profiles and authentication. This file centralizes the service-level error
// values so that they can be consistently returned by service methods and
// checked by callers.
//
// Every value is an *apperror.AppError: callers classify with errors.Is on the
// apperror kinds (ErrNotFound, ErrValidation, ...) and translation into HTTP
// status codes is performed at the handler layer.
package services

import (
	"github.com/tbourn/go-codereview-backend/internal/analysis"
	"github.com/tbourn/go-codereview-backend/internal/apperror"
)

// Review errors.
var (
	// ErrReviewNotFound indicates that the review does not exist or is not
	// owned by the current user. The two cases are indistinguishable.
	ErrReviewNotFound = apperror.NotFound("Review not found")

	// ErrEmptyInput is returned when the submitted code snippet is blank.
	ErrEmptyInput = analysis.ErrEmptyInput

	// ErrTitleRequired is returned when the submitted title is blank.
	ErrTitleRequired = apperror.ValidationFailed("title", "Title is required")

	// ErrInvalidFocus is returned for an unknown analysis focus.
	ErrInvalidFocus = apperror.ValidationFailed("focus", "Focus must be one of general, security, performance")
)

// Feedback errors.
var (
	ErrFeedbackNotFound = apperror.NotFound("Feedback not found")
	ErrFeedbackExists   = apperror.Conflict("Feedback already submitted for this review")

	ErrInvalidAccuracy    = apperror.ValidationFailed("accuracy", "Accuracy rating must be 1-10")
	ErrInvalidHelpfulness = apperror.ValidationFailed("helpfulness", "Helpfulness rating must be 1-10")
	ErrInvalidTrust       = apperror.ValidationFailed("trust", "Trust rating must be 1-10")
	ErrInvalidTimeSpent   = apperror.ValidationFailed("time_spent", "Time spent must be zero or more seconds")
)

// Profile and auth errors.
var (
	ErrProfileNotFound  = apperror.NotFound("User profile not found")
	ErrImageURLRequired = apperror.ValidationFailed("profile_image_url", "Image URL is required")

	ErrRegisterFields = apperror.ValidationFailed("", "Email, password, and username are required")
	ErrLoginFields    = apperror.ValidationFailed("", "Email and password are required")
)
