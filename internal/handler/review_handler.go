package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/litdeck/litdeck/internal/model"
	"github.com/litdeck/litdeck/internal/pkg/errcode"
	"github.com/litdeck/litdeck/internal/pkg/response"
	"github.com/litdeck/litdeck/internal/service"
)

type ReviewHandler struct {
	reviews *service.ReviewService
}

func NewReviewHandler(reviews *service.ReviewService) *ReviewHandler {
	return &ReviewHandler{reviews: reviews}
}

type gradeRequest struct {
	Status string `json:"status"`
}

func (h *ReviewHandler) GradeNote(c *gin.Context) {
	var req gradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	rec, err := h.reviews.GradeNote(c.Request.Context(), getUserID(c), c.Param("note_id"), req.Status)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, recordBody(rec))
}

func (h *ReviewHandler) GradeCard(c *gin.Context) {
	var req gradeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	rec, err := h.reviews.GradeCard(c.Request.Context(), getUserID(c), c.Param("note_id"), c.Param("card_id"), req.Status)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, recordBody(rec))
}

type reconcileRequest struct {
	ReviewEaseFactor      *float64 `json:"review_ease_factor"`
	ReviewIntervalSeconds *int64   `json:"review_interval_seconds"`
	ReviewRepetitions     *int     `json:"review_repetitions"`
	NextReviewAt          *int64   `json:"next_review_at"`
	LastReviewedAt        *int64   `json:"last_reviewed_at"`
}

func (h *ReviewHandler) Reconcile(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	state, err := h.reviews.Reconcile(c.Request.Context(), getUserID(c), c.Param("note_id"), &model.ReviewSnapshot{
		EaseFactor:      req.ReviewEaseFactor,
		IntervalSeconds: req.ReviewIntervalSeconds,
		Repetitions:     req.ReviewRepetitions,
		NextReviewAt:    req.NextReviewAt,
		LastReviewedAt:  req.LastReviewedAt,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, stateBody(state))
}

func recordBody(rec *model.ReviewRecord) gin.H {
	body := stateBody(rec.State)
	body["streak"] = rec.Streak
	return body
}

func stateBody(state model.ReviewState) gin.H {
	return gin.H{
		"review_ease_factor":      state.EaseFactor,
		"review_interval_seconds": state.IntervalSeconds,
		"review_repetitions":      state.Repetitions,
		"next_review_at":          state.NextReviewAt,
		"last_reviewed_at":        state.LastReviewedAt,
	}
}
