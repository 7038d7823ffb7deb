package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/http/middleware"
	"github.com/tbourn/go-codereview-backend/internal/services"
)

// ProfileRequest carries editable profile fields. Omitted fields keep their
// stored value.
type ProfileRequest struct {
	FullName              *string `json:"full_name,omitempty" example:"Ada Lovelace"`
	ProgrammingExperience *string `json:"programming_experience,omitempty" example:"3-5 years"`
	Role                  *string `json:"role,omitempty" example:"Backend engineer"`
	ProfileImageURL       *string `json:"profile_image_url,omitempty" example:"https://cdn.example.com/ada.png"`
}

func (r ProfileRequest) fields() services.ProfileFields {
	return services.ProfileFields{
		FullName:              r.FullName,
		ProgrammingExperience: r.ProgrammingExperience,
		Role:                  r.Role,
		ProfileImageURL:       r.ProfileImageURL,
	}
}

// ProfileImageRequest is the payload of POST /profiles/image.
type ProfileImageRequest struct {
	ProfileImageURL string `json:"profile_image_url" example:"https://cdn.example.com/ada.png"`
}

// ProfileResponse wraps a profile. Profile is an empty object when the user
// has none yet.
type ProfileResponse struct {
	Message string `json:"message,omitempty" example:"Profile updated successfully"`
	Profile any    `json:"profile"`
}

func profileBody(msg string, p *domain.Profile) ProfileResponse {
	if p == nil {
		return ProfileResponse{Message: msg, Profile: struct{}{}}
	}
	return ProfileResponse{Message: msg, Profile: p}
}

// GetProfile godoc
// @ID          getProfile
// @Summary     Get my profile
// @Tags        Profiles
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.ProfileResponse
// @Router      /profiles [get]
func (h *Handlers) GetProfile(c *gin.Context) {
	p, err := h.profiles.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, profileBody("", p))
}

// CompleteSurvey godoc
// @ID          completeSurvey
// @Summary     Save the onboarding survey
// @Description Upserts the profile and marks the survey as completed.
// @Tags        Profiles
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.ProfileRequest  true  "Profile fields"
// @Success     200   {object}  handlers.ProfileResponse
// @Router      /profiles [put]
func (h *Handlers) CompleteSurvey(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	p, err := h.profiles.CompleteSurvey(c.Request.Context(), middleware.UserID(c), middleware.UserEmail(c), req.fields())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, profileBody("Profile updated successfully", p))
}

// UpdateProfile godoc
// @ID          updateProfile
// @Summary     Edit my profile
// @Description Upserts the supplied fields without touching the survey flags.
// @Tags        Profiles
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.ProfileRequest  true  "Profile fields"
// @Success     200   {object}  handlers.ProfileResponse
// @Router      /profiles [patch]
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	p, err := h.profiles.Update(c.Request.Context(), middleware.UserID(c), middleware.UserEmail(c), req.fields())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, profileBody("Profile updated successfully", p))
}

// UpdateProfileImage godoc
// @ID          updateProfileImage
// @Summary     Set my profile image
// @Tags        Profiles
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.ProfileImageRequest  true  "Image URL"
// @Success     200   {object}  handlers.ProfileResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Image URL is required"
// @Failure     404   {object}  handlers.ErrorResponse  "User profile not found"
// @Router      /profiles/image [post]
func (h *Handlers) UpdateProfileImage(c *gin.Context) {
	var req ProfileImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	p, err := h.profiles.UpdateImage(c.Request.Context(), middleware.UserID(c), req.ProfileImageURL)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, profileBody("Profile image updated", p))
}
