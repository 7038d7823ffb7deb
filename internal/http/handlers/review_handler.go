// Review HTTP handlers.
//
//   - POST   /reviews       (analyze code and store the review, idempotent)
//   - GET    /reviews       (paginated list, weak ETag)
//   - GET    /reviews/{id}  (full review row)
//   - DELETE /reviews/{id}
//
// Every route is scoped to the authenticated user; a review owned by someone
// else is reported exactly like a missing one.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-codereview-backend/internal/domain"
	"github.com/tbourn/go-codereview-backend/internal/http/middleware"
	"github.com/tbourn/go-codereview-backend/internal/services"
	"github.com/tbourn/go-codereview-backend/internal/utils"
)

const (
	defaultReviewLimit = 10
	maxReviewLimit     = 100
)

// CreateReviewRequest is the payload of POST /reviews.
type CreateReviewRequest struct {
	Code     string `json:"code" example:"function add(a, b) { return a + b }"`
	Title    string `json:"title" example:"Adder"`
	Language string `json:"language,omitempty" example:"javascript"`
	// Focus narrows the analysis: general (default), security or performance.
	Focus string `json:"focus,omitempty" example:"security"`
}

// ReviewSummary is the review subset returned on creation.
type ReviewSummary struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Score    int             `json:"score"`
	Analysis domain.Analysis `json:"analysis"`
}

// CreateReviewResponse is returned by POST /reviews.
type CreateReviewResponse struct {
	Message string        `json:"message" example:"Code analysis complete"`
	Review  ReviewSummary `json:"review"`
}

// ReviewPagination describes the page returned by GET /reviews.
type ReviewPagination struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int   `json:"pages"`
}

// ListReviewsResponse is returned by GET /reviews.
type ListReviewsResponse struct {
	Reviews    []domain.Review  `json:"reviews"`
	Pagination ReviewPagination `json:"pagination"`
}

// CreateReview godoc
// @ID          createReview
// @Summary     Analyze a code snippet
// @Description Runs the LLM analysis and stores the review. With an Idempotency-Key, a retry
// @Description returns the stored review with Idempotency-Replayed: true and no new analysis.
// @Tags        Reviews
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string                        false  "Key for safe retries"
// @Param       body             body    handlers.CreateReviewRequest  true   "Code to review"
// @Success     201  {object}  handlers.CreateReviewResponse
// @Header      201  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Code or title missing"
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     429  {object}  handlers.ErrorResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Analysis failed upstream"
// @Router      /reviews [post]
func (h *Handlers) CreateReview(c *gin.Context) {
	var req CreateReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	rv, replayed, err := h.reviews.CreateIdempotent(c.Request.Context(), middleware.UserID(c), key, services.CreateReviewInput{
		Title:    req.Title,
		Code:     req.Code,
		Language: req.Language,
		Focus:    req.Focus,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	if replayed {
		c.Header(middleware.HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusCreated, CreateReviewResponse{
		Message: "Code analysis complete",
		Review: ReviewSummary{
			ID:       rv.ID,
			Title:    rv.Title,
			Score:    rv.Score,
			Analysis: rv.Analysis(),
		},
	})
}

// ListReviews godoc
// @ID          listReviews
// @Summary     List my reviews
// @Description Newest first. Sends a weak ETag; If-None-Match with the same value yields 304.
// @Tags        Reviews
// @Produce     json
// @Security    BearerAuth
// @Param       page           query   int     false  "Page number"     minimum(1) default(1)
// @Param       limit          query   int     false  "Items per page"  minimum(1) maximum(100) default(10)
// @Param       If-None-Match  header  string  false  "Previously returned ETag"
// @Success     200  {object}  handlers.ListReviewsResponse
// @Header      200  {string}  ETag  "Weak validator of the page"
// @Success     304  {string}  string  "Not Modified"
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /reviews [get]
func (h *Handlers) ListReviews(c *gin.Context) {
	ctx := c.Request.Context()
	uid := middleware.UserID(c)
	page, limit := utils.PageParams(c.Query("page"), c.Query("limit"), defaultReviewLimit, maxReviewLimit)

	// Best effort: a failing fingerprint only disables caching.
	if count, newest, err := h.reviews.Fingerprint(ctx, uid); err == nil {
		var ts int64
		if newest != nil {
			ts = newest.UnixNano()
		}
		etag := fmt.Sprintf(`W/"reviews:%s:%d:%d:%d:%d"`, uid, page, limit, count, ts)
		c.Header("ETag", etag)
		if c.GetHeader("If-None-Match") == etag {
			c.Status(http.StatusNotModified)
			return
		}
	}

	items, total, err := h.reviews.List(ctx, uid, page, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, ListReviewsResponse{
		Reviews: items,
		Pagination: ReviewPagination{
			Page:  page,
			Limit: limit,
			Total: total,
			Pages: utils.TotalPages(total, limit),
		},
	})
}

// GetReview godoc
// @ID          getReview
// @Summary     Get one review
// @Tags        Reviews
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Review ID"  format(uuid)
// @Success     200  {object}  domain.Review
// @Failure     404  {object}  handlers.ErrorResponse  "Review not found"
// @Router      /reviews/{id} [get]
func (h *Handlers) GetReview(c *gin.Context) {
	rv, err := h.reviews.Get(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, rv)
}

// DeleteReview godoc
// @ID          deleteReview
// @Summary     Delete a review
// @Description Deletes the review and its feedback.
// @Tags        Reviews
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      string  true  "Review ID"  format(uuid)
// @Success     200  {object}  handlers.MessageResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Review not found"
// @Router      /reviews/{id} [delete]
func (h *Handlers) DeleteReview(c *gin.Context) {
	if err := h.reviews.Delete(c.Request.Context(), middleware.UserID(c), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	ok(c, http.StatusOK, MessageResponse{Message: "Review deleted successfully"})
}
