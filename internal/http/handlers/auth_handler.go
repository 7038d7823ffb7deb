package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-codereview-backend/internal/http/middleware"
	"github.com/tbourn/go-codereview-backend/internal/identity"
)

// RegisterRequest is the sign-up payload.
type RegisterRequest struct {
	Email    string `json:"email" example:"dev@example.com"`
	Password string `json:"password" example:"s3cret!"`
	Username string `json:"username" example:"Ada Lovelace"`
}

// LoginRequest is the sign-in payload.
type LoginRequest struct {
	Email    string `json:"email" example:"dev@example.com"`
	Password string `json:"password" example:"s3cret!"`
}

// RefreshRequest exchanges a refresh token for a new session.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" example:"eyJhbGciOi..."`
}

// RegisteredUser is the user summary returned after registration.
type RegisteredUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// RegisterResponse is returned by POST /auth/register.
type RegisterResponse struct {
	Message string         `json:"message" example:"User registered successfully"`
	User    RegisteredUser `json:"user"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Message string           `json:"message" example:"Login successful"`
	User    identity.User    `json:"user"`
	Session identity.Session `json:"session"`
}

// SessionResponse is returned by POST /auth/refresh.
type SessionResponse struct {
	Session identity.Session `json:"session"`
}

// Register godoc
// @ID          register
// @Summary     Register a new user
// @Description Creates the identity and its profile. The username becomes the profile's full name.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RegisterRequest  true  "Credentials"
// @Success     201   {object}  handlers.RegisterResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Missing or invalid fields"
// @Failure     409   {object}  handlers.ErrorResponse  "Email already registered"
// @Failure     500   {object}  handlers.ErrorResponse  "Identity service or store unavailable"
// @Router      /auth/register [post]
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	p, err := h.auth.Register(c.Request.Context(), req.Email, req.Password, req.Username)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, RegisterResponse{
		Message: "User registered successfully",
		User:    RegisteredUser{ID: p.ID, Email: p.Email, FullName: p.FullName},
	})
}

// Login godoc
// @ID          login
// @Summary     Sign in
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.LoginRequest  true  "Credentials"
// @Success     200   {object}  handlers.LoginResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Missing fields"
// @Failure     401   {object}  handlers.ErrorResponse  "Invalid email or password"
// @Failure     404   {object}  handlers.ErrorResponse  "User profile not found"
// @Failure     500   {object}  handlers.ErrorResponse  "Identity service or store unavailable"
// @Router      /auth/login [post]
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	sess, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, LoginResponse{Message: "Login successful", User: sess.User, Session: sess})
}

// Refresh godoc
// @ID          refreshSession
// @Summary     Refresh a session
// @Description Rotates the refresh token; the old one stops working.
// @Tags        Auth
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.RefreshRequest  true  "Refresh token"
// @Success     200   {object}  handlers.SessionResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Failure     500   {object}  handlers.ErrorResponse
// @Router      /auth/refresh [post]
func (h *Handlers) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	sess, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, SessionResponse{Session: sess})
}

// Me godoc
// @ID          currentUser
// @Summary     Current user's profile
// @Tags        Auth
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  domain.Profile
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse  "User profile not found"
// @Router      /auth/user [get]
func (h *Handlers) Me(c *gin.Context) {
	p, err := h.auth.Me(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, p)
}

// Logout godoc
// @ID          logout
// @Summary     Sign out
// @Description Revokes the bearer token when one is sent. Succeeds without a token.
// @Tags        Auth
// @Produce     json
// @Success     200  {object}  handlers.MessageResponse
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /auth/logout [post]
func (h *Handlers) Logout(c *gin.Context) {
	tok, _ := middleware.BearerToken(c)
	if err := h.auth.Logout(c.Request.Context(), tok); err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "Logged out successfully"})
}
