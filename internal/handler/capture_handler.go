package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/litdeck/litdeck/internal/model"
	"github.com/litdeck/litdeck/internal/pkg/errcode"
	"github.com/litdeck/litdeck/internal/pkg/response"
	"github.com/litdeck/litdeck/internal/service"
)

type CaptureHandler struct {
	capture *service.CaptureService
}

func NewCaptureHandler(capture *service.CaptureService) *CaptureHandler {
	return &CaptureHandler{capture: capture}
}

type captureRequest struct {
	URL          string `json:"url"`
	Content      string `json:"content"`
	Topic        string `json:"topic"`
	Requirements string `json:"requirements"`
}

func (h *CaptureHandler) Submit(c *gin.Context) {
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	job, err := h.capture.Submit(c.Request.Context(), getUserID(c), service.SubmitRequest{
		URL:          req.URL,
		Content:      req.Content,
		Topic:        req.Topic,
		Requirements: req.Requirements,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *CaptureHandler) Status(c *gin.Context) {
	job, err := h.capture.Status(c.Request.Context(), getUserID(c), c.Param("job_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	body := gin.H{
		"job_id": job.ID,
		"status": job.Status,
		"url":    job.URL,
		"ctime":  job.Ctime,
		"mtime":  job.Mtime,
	}
	if job.Topic != "" {
		body["topic"] = job.Topic
	}
	if job.Requirements != "" {
		body["requirements"] = job.Requirements
	}
	// Result fields only exist once the job reached a terminal status.
	switch job.Status {
	case model.JobStatusCompleted:
		body["result"] = gin.H{
			"note_id": job.ResultNoteID,
			"topic":   job.ResultTopic,
			"summary": job.ResultSummary,
			"cards":   job.ResultCards,
		}
	case model.JobStatusFailed:
		body["error_message"] = job.ErrorMessage
	}
	response.Success(c, body)
}
