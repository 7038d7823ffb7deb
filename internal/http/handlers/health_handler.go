package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Message     string    `json:"message" example:"Server is running!"`
	Timestamp   time.Time `json:"timestamp"`
	Environment string    `json:"environment" example:"development"`
}

// Health godoc
// @ID          health
// @Summary     API health
// @Tags        Health
// @Produce     json
// @Success     200  {object}  handlers.HealthResponse
// @Router      /health [get]
func (h *Handlers) Health(c *gin.Context) {
	ok(c, http.StatusOK, HealthResponse{
		Message:     "Server is running!",
		Timestamp:   h.now().UTC(),
		Environment: h.Environment,
	})
}
