package job

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/litdeck/litdeck/internal/repo"
)

// Notifier re-delivers a job id to the generation pool.
type Notifier interface {
	Notify(jobID string)
}

// PendingSweepJob re-dispatches pending capture jobs that were dropped on a
// full queue or lost to a restart. The worker's conditional claim makes a
// duplicate delivery harmless.
type PendingSweepJob struct {
	jobRepo  *repo.CaptureJobRepo
	notifier Notifier
	minAge   time.Duration
	batch    int
}

func NewPendingSweepJob(jobRepo *repo.CaptureJobRepo, notifier Notifier, minAge time.Duration) *PendingSweepJob {
	return &PendingSweepJob{jobRepo: jobRepo, notifier: notifier, minAge: minAge, batch: 100}
}

func (j *PendingSweepJob) Name() string {
	return "pending_sweep"
}

func (j *PendingSweepJob) Run(ctx context.Context) error {
	if j.jobRepo == nil || j.notifier == nil {
		return nil
	}
	minAge := j.minAge
	if minAge <= 0 {
		minAge = time.Minute
	}
	cutoff := time.Now().Add(-minAge).UnixMilli()
	stale, err := j.jobRepo.ListStalePending(ctx, cutoff, j.batch)
	if err != nil {
		return err
	}
	for _, job := range stale {
		j.notifier.Notify(job.ID)
	}
	if len(stale) > 0 {
		logutil.GetLogger(ctx).Info("stale pending jobs re-dispatched", zap.Int("count", len(stale)))
	}
	return nil
}
