package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/litdeck/litdeck/internal/handler"
	"github.com/litdeck/litdeck/internal/middleware"
	"github.com/litdeck/litdeck/internal/repo"
	"github.com/litdeck/litdeck/internal/service"
	"github.com/litdeck/litdeck/test/testutil"
)

func TestCaptureHandlerStatusEchoesSubmission(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	jobs := repo.NewCaptureJobRepo(db)
	capture := service.NewCaptureService(jobs, nil, nil, service.CaptureConfig{})
	h := handler.NewCaptureHandler(capture)

	job, err := capture.Submit(context.Background(), "user-h-1", service.SubmitRequest{
		URL:          "https://example.com/handler",
		Content:      "captured text",
		Topic:        "algebra",
		Requirements: "focus on proofs",
	})
	require.NoError(t, err)

	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/api/v1/capture/jobs/"+job.ID, nil)
	c.Params = gin.Params{{Key: "job_id", Value: job.ID}}
	c.Set(middleware.ContextUserIDKey, "user-h-1")

	h.Status(c)

	body := rec.Body.String()
	require.Contains(t, body, `"status":"pending"`)
	require.Contains(t, body, `"url":"https://example.com/handler"`)
	require.Contains(t, body, `"topic":"algebra"`)
	require.Contains(t, body, `"requirements":"focus on proofs"`)
	require.NotContains(t, body, `"result"`)
}
