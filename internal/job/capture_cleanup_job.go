package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/litdeck/litdeck/internal/repo"
)

// CaptureCleanupJob reclaims capture job rows past their retention window.
// A job in any status is removed once expires_at has passed; results live on
// in the notes table.
type CaptureCleanupJob struct {
	jobRepo *repo.CaptureJobRepo
}

func NewCaptureCleanupJob(jobRepo *repo.CaptureJobRepo) *CaptureCleanupJob {
	return &CaptureCleanupJob{jobRepo: jobRepo}
}

func (j *CaptureCleanupJob) Name() string {
	return "capture_cleanup"
}

func (j *CaptureCleanupJob) Run(ctx context.Context) error {
	if j.jobRepo == nil {
		return nil
	}
	removed, err := j.jobRepo.DeleteExpired(ctx, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("expired capture jobs removed", zap.Int64("count", removed))
	}
	return nil
}
