package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/litdeck/litdeck/internal/middleware"
)

type RouterDeps struct {
	Auth             *AuthHandler
	Capture          *CaptureHandler
	Notes            *NoteHandler
	Reviews          *ReviewHandler
	JWTSecret        []byte
	RateLimitSeconds int
}

func RegisterRoutes(api *gin.RouterGroup, deps RouterDeps) {
	api.POST("/auth/register", deps.Auth.Register)
	api.POST("/auth/login", deps.Auth.Login)

	authGroup := api.Group("")
	authGroup.Use(middleware.JWTAuth(deps.JWTSecret))

	captureGroup := authGroup.Group("")
	if deps.RateLimitSeconds > 0 {
		captureGroup.Use(middleware.RateLimit(time.Duration(deps.RateLimitSeconds) * time.Second))
	}
	captureGroup.POST("/capture", deps.Capture.Submit)
	authGroup.GET("/capture/jobs/:job_id", deps.Capture.Status)

	authGroup.GET("/notes", deps.Notes.List)
	authGroup.GET("/notes/search", deps.Notes.Search)
	authGroup.GET("/notes/by-url", deps.Notes.GetByURL)
	authGroup.GET("/notes/:note_id", deps.Notes.Get)
	authGroup.POST("/notes/:note_id/cards", deps.Notes.AddCard)
	authGroup.DELETE("/notes/:note_id/cards/:card_id", deps.Notes.DeleteCard)
	authGroup.POST("/notes/:note_id/summary", deps.Notes.GenerateSummary)

	authGroup.POST("/notes/:note_id/review", deps.Reviews.GradeNote)
	authGroup.POST("/notes/:note_id/cards/:card_id/review", deps.Reviews.GradeCard)
	authGroup.PATCH("/notes/:note_id/review", deps.Reviews.Reconcile)
}
