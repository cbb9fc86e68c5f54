package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/litdeck/litdeck/internal/model"
	"github.com/litdeck/litdeck/internal/pkg/errcode"
	"github.com/litdeck/litdeck/internal/pkg/response"
	"github.com/litdeck/litdeck/internal/service"
)

type NoteHandler struct {
	notes *service.NoteService
}

func NewNoteHandler(notes *service.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

func (h *NoteHandler) List(c *gin.Context) {
	summaries, err := h.notes.List(c.Request.Context(), getUserID(c))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"notes": summaries})
}

func (h *NoteHandler) Get(c *gin.Context) {
	note, err := h.notes.Get(c.Request.Context(), getUserID(c), c.Param("note_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, noteBody(note))
}

func (h *NoteHandler) GetByURL(c *gin.Context) {
	note, err := h.notes.GetByURL(c.Request.Context(), getUserID(c), c.Query("url"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, noteBody(note))
}

type addCardRequest struct {
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Extra string   `json:"extra"`
	Tags  []string `json:"tags"`
}

func (h *NoteHandler) AddCard(c *gin.Context) {
	var req addCardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	card, err := h.notes.AddCard(c.Request.Context(), getUserID(c), c.Param("note_id"), model.Card{
		Front: req.Front,
		Back:  req.Back,
		Extra: req.Extra,
		Tags:  req.Tags,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"card": card})
}

func (h *NoteHandler) DeleteCard(c *gin.Context) {
	err := h.notes.DeleteCard(c.Request.Context(), getUserID(c), c.Param("note_id"), c.Param("card_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

func (h *NoteHandler) GenerateSummary(c *gin.Context) {
	summary, err := h.notes.GenerateSummary(c.Request.Context(), getUserID(c), c.Param("note_id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"summary": summary})
}

func (h *NoteHandler) Search(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	summaries, err := h.notes.SemanticSearch(c.Request.Context(), getUserID(c), c.Query("q"), limit)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"notes": summaries})
}

func noteBody(note *model.Note) gin.H {
	return gin.H{
		"note_id":    note.NoteID,
		"source_url": note.SourceURL,
		"topic":      note.Topic,
		"summary":    note.Summary,
		"cards":      note.Cards,
		"review": gin.H{
			"last_reviewed_at":        note.LastReviewedAt,
			"last_review_status":      note.LastReviewStatus,
			"review_interval_seconds": note.ReviewIntervalSeconds,
			"review_ease_factor":      note.ReviewEaseFactor,
			"review_repetitions":      note.ReviewRepetitions,
			"next_review_at":          note.NextReviewAt,
		},
		"ctime": note.Ctime,
		"mtime": note.Mtime,
	}
}
