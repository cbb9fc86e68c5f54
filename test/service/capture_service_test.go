package service_test

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
	"github.com/litdeck/litdeck/internal/repo"
	"github.com/litdeck/litdeck/internal/service"
	"github.com/litdeck/litdeck/test/testutil"
)

type captureNotifier struct {
	ids []string
}

func (n *captureNotifier) Notify(jobID string) {
	n.ids = append(n.ids, jobID)
}

func TestCaptureServiceSubmitAndStatus(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	jobs := repo.NewCaptureJobRepo(db)
	notifier := &captureNotifier{}
	capture := service.NewCaptureService(jobs, nil, notifier, service.CaptureConfig{
		JobTTLSeconds:   600,
		MaxContentChars: 100,
	})

	job, err := capture.Submit(context.Background(), "user-cap-1", service.SubmitRequest{
		URL:     "https://example.com/article",
		Content: strings.Repeat("x", 500),
		Topic:   "testing",
	})
	require.NoError(t, err)
	require.Equal(t, model.JobStatusPending, job.Status)
	require.Len(t, job.Payload.Content, 100, "content must be truncated to the configured limit")
	require.Equal(t, []string{job.ID}, notifier.ids)
	require.Greater(t, job.ExpiresAt, job.Ctime)

	fetched, err := capture.Status(context.Background(), "user-cap-1", job.ID)
	require.NoError(t, err)
	require.Equal(t, job.ID, fetched.ID)

	// Someone else's job reads as not found.
	_, err = capture.Status(context.Background(), "user-cap-2", job.ID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	_, err = capture.Status(context.Background(), "user-cap-1", "missing-job")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestCaptureServiceTruncatesOnRuneBoundary(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	jobs := repo.NewCaptureJobRepo(db)
	capture := service.NewCaptureService(jobs, nil, nil, service.CaptureConfig{
		JobTTLSeconds:   600,
		MaxContentChars: 100,
	})

	// 3 bytes per rune, so the 100 byte limit lands mid-rune.
	job, err := capture.Submit(context.Background(), "user-cap-4", service.SubmitRequest{
		URL:     "https://example.com/cjk",
		Content: strings.Repeat("数", 60),
	})
	require.NoError(t, err)
	require.LessOrEqual(t, len(job.Payload.Content), 100)
	require.True(t, utf8.ValidString(job.Payload.Content), "truncation must not split a rune")
}

func TestCaptureServiceRejectsBadInput(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	jobs := repo.NewCaptureJobRepo(db)
	capture := service.NewCaptureService(jobs, nil, nil, service.CaptureConfig{})

	cases := []service.SubmitRequest{
		{URL: "ftp://example.com/file", Content: "content"},
		{URL: "not a url", Content: "content"},
		{URL: "", Content: "content"},
		{URL: "https://example.com", Content: "   "},
	}
	for _, req := range cases {
		_, err := capture.Submit(context.Background(), "user-cap-3", req)
		require.ErrorIs(t, err, appErr.ErrInvalid)
	}
}
