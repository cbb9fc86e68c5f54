package service

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/litdeck/litdeck/internal/filestore"
	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
	"github.com/litdeck/litdeck/internal/pkg/textutil"
	"github.com/litdeck/litdeck/internal/pkg/timeutil"
	"github.com/litdeck/litdeck/internal/repo"
)

// JobNotifier wakes the generation pool for a freshly submitted job.
type JobNotifier interface {
	Notify(jobID string)
}

type SubmitRequest struct {
	URL          string
	Content      string
	Topic        string
	Requirements string
}

type CaptureConfig struct {
	JobTTLSeconds   int64
	MaxContentChars int
}

type CaptureService struct {
	jobs     *repo.CaptureJobRepo
	archive  filestore.Store
	notifier JobNotifier
	cfg      CaptureConfig
}

func NewCaptureService(jobs *repo.CaptureJobRepo, archive filestore.Store, notifier JobNotifier, cfg CaptureConfig) *CaptureService {
	if cfg.JobTTLSeconds <= 0 {
		cfg.JobTTLSeconds = 600
	}
	if cfg.MaxContentChars <= 0 {
		cfg.MaxContentChars = 8000
	}
	return &CaptureService{jobs: jobs, archive: archive, notifier: notifier, cfg: cfg}
}

// Submit validates a capture request, persists a pending job and wakes the
// worker pool. The returned job is in pending status; the caller polls for
// the outcome.
func (s *CaptureService) Submit(ctx context.Context, ownerID string, req SubmitRequest) (*model.CaptureJob, error) {
	pageURL := strings.TrimSpace(req.URL)
	if !isHTTPURL(pageURL) {
		return nil, appErr.ErrInvalid
	}
	content := strings.TrimSpace(req.Content)
	if content == "" {
		return nil, appErr.ErrInvalid
	}
	content = textutil.TruncateBytes(content, s.cfg.MaxContentChars)

	now := timeutil.NowMilli()
	job := &model.CaptureJob{
		ID:           newID(),
		OwnerID:      ownerID,
		URL:          pageURL,
		Topic:        strings.TrimSpace(req.Topic),
		Requirements: strings.TrimSpace(req.Requirements),
		Status:       model.JobStatusPending,
		Payload: model.CapturePayload{
			Content:      content,
			Topic:        strings.TrimSpace(req.Topic),
			Requirements: strings.TrimSpace(req.Requirements),
		},
		Ctime:     now,
		Mtime:     now,
		ExpiresAt: now + s.cfg.JobTTLSeconds*1000,
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, err
	}
	s.archivePayload(ctx, job)
	if s.notifier != nil {
		s.notifier.Notify(job.ID)
	}
	return job, nil
}

// Status returns a job to its owner. A job owned by someone else reads as
// not found so job ids leak nothing.
func (s *CaptureService) Status(ctx context.Context, ownerID, jobID string) (*model.CaptureJob, error) {
	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.OwnerID != ownerID {
		return nil, appErr.ErrNotFound
	}
	return job, nil
}

func (s *CaptureService) archivePayload(ctx context.Context, job *model.CaptureJob) {
	if s.archive == nil {
		return
	}
	data, err := json.Marshal(job.Payload)
	if err != nil {
		return
	}
	key := job.ID + ".json"
	if err := s.archive.Save(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		// Archival is best effort, the job row carries everything needed.
		logutil.GetLogger(ctx).Warn("archive capture payload failed",
			zap.String("job_id", job.ID), zap.Error(err))
	}
}

func isHTTPURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
