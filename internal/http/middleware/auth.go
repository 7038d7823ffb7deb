package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-codereview-backend/internal/apperror"
	"github.com/tbourn/go-codereview-backend/internal/identity"
)

// Gin context keys set by RequireAuth.
const (
	CtxUserID      = "userID"
	CtxUserEmail   = "userEmail"
	CtxAccessToken = "accessToken"
)

// Messages returned by RequireAuth.
const (
	MsgNoToken      = "No token provided"
	MsgInvalidToken = "Invalid or expired token"
)

// BearerToken extracts the token of an "Authorization: Bearer <token>" header.
func BearerToken(c *gin.Context) (string, bool) {
	h := strings.TrimSpace(c.GetHeader("Authorization"))
	scheme, tok, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	tok = strings.TrimSpace(tok)
	return tok, tok != ""
}

// RequireAuth rejects requests without a valid bearer token. On success the
// user id, email and raw token are stored in the Gin context and the
// request-scoped logger gains a user_id field.
//
//   - missing or malformed header: 401 "No token provided"
//   - token rejected by the provider: 401 "Invalid or expired token"
//   - provider unreachable: 500 with the provider's message
func RequireAuth(v identity.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := BearerToken(c)
		if !ok {
			abortJSON(c, http.StatusUnauthorized, "unauthorized", MsgNoToken)
			return
		}

		u, err := v.Verify(c.Request.Context(), tok)
		if err != nil {
			switch {
			case errors.Is(err, apperror.ErrUnauthorized):
				abortJSON(c, http.StatusUnauthorized, "unauthorized", MsgInvalidToken)
			case errors.Is(err, apperror.ErrUpstream):
				msg, _ := apperror.Message(err)
				abortJSON(c, http.StatusInternalServerError, "upstream_error", msg)
			default:
				LoggerFrom(c).Error().Err(err).Msg("token verification failed")
				abortJSON(c, http.StatusInternalServerError, "internal_error", "Internal server error")
			}
			return
		}

		c.Set(CtxUserID, u.ID)
		c.Set(CtxUserEmail, u.Email)
		c.Set(CtxAccessToken, tok)
		setLogger(c, LoggerFrom(c).With().Str("user_id", u.ID).Logger())
		trace.SpanFromContext(c.Request.Context()).SetAttributes(attribute.String("user.id", u.ID))

		c.Next()
	}
}

// UserID returns the authenticated user id, or "" outside RequireAuth.
func UserID(c *gin.Context) string { return c.GetString(CtxUserID) }

// UserEmail returns the authenticated user's email.
func UserEmail(c *gin.Context) string { return c.GetString(CtxUserEmail) }
