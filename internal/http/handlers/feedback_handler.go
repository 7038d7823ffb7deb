// Feedback HTTP handlers.
//
//   - POST /reviews/{id}/feedback  (rate a review once)
//   - GET  /reviews/{id}/feedback
//   - GET  /statistics             (averages across all users)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/http/middleware"
	"github.com/tbourn/go-codereview-backend/internal/services"
)

// SubmitFeedbackRequest carries the ratings of one review. Ratings are 1-10;
// time_spent is in seconds.
type SubmitFeedbackRequest struct {
	Accuracy    int     `json:"accuracy" example:"8"`
	Helpfulness int     `json:"helpfulness" example:"7"`
	Trust       int     `json:"trust" example:"9"`
	TimeSpent   int     `json:"time_spent" example:"45"`
	Comments    *string `json:"comments,omitempty" example:"Spot on about the SQL injection"`
}

// SubmitFeedbackResponse is returned by POST /reviews/{id}/feedback.
type SubmitFeedbackResponse struct {
	Message  string           `json:"message" example:"Feedback submitted successfully"`
	Feedback *domain.Feedback `json:"feedback"`
}

// FeedbackResponse is returned by GET /reviews/{id}/feedback.
type FeedbackResponse struct {
	Feedback *domain.Feedback `json:"feedback"`
}

// StatisticsResponse is returned by GET /statistics.
type StatisticsResponse struct {
	Statistics services.Statistics `json:"statistics"`
}

// SubmitFeedback godoc
// @ID          submitFeedback
// @Summary     Rate a review
// @Description Stores accuracy, helpfulness and trust ratings (1-10). A review accepts one feedback.
// @Tags        Feedback
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      string                          true  "Review ID"  format(uuid)
// @Param       body  body      handlers.SubmitFeedbackRequest  true  "Ratings"
// @Success     201   {object}  handlers.SubmitFeedbackResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Rating out of range"
// @Failure     404   {object}  handlers.ErrorResponse  "Review not found"
// @Failure     409   {object}  handlers.ErrorResponse  "Feedback already submitted"
// @Router      /reviews/{id}/feedback [post]
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	fb, err := h.feedback.Submit(c.Request.Context(), middleware.UserID(c), c.Param("id"), services.FeedbackInput{
		Accuracy:    req.Accuracy,
		Helpfulness: req.Helpfulness,
		Trust:       req.Trust,
		TimeSpent:   req.TimeSpent,
		Comments:    req.Comments,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusCreated, SubmitFeedbackResponse{Message: "Feedback submitted successfully", Feedback: fb})
}

// GetFeedback godoc
// @ID          getFeedback
// @Summary     Get the feedback of a review
// @Tags        Feedback
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Review ID"  format(uuid)
// @Success     200  {object}  handlers.FeedbackResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Review or feedback not found"
// @Router      /reviews/{id}/feedback [get]
func (h *Handlers) GetFeedback(c *gin.Context) {
	fb, err := h.feedback.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, FeedbackResponse{Feedback: fb})
}

// Statistics godoc
// @ID          feedbackStatistics
// @Summary     Feedback statistics
// @Description Averages over every feedback row, rounded to two decimals. Zeros when there is none.
// @Tags        Feedback
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object}  handlers.StatisticsResponse
// @Router      /statistics [get]
func (h *Handlers) Statistics(c *gin.Context) {
	st, err := h.feedback.Statistics(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, StatisticsResponse{Statistics: st})
}
