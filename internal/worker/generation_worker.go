package worker

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/litdeck/litdeck/internal/ai"
	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
)

// JobStore is the slice of the job repository the worker needs.
type JobStore interface {
	Get(ctx context.Context, jobID string) (*model.CaptureJob, error)
	TransitionStatus(ctx context.Context, jobID, from, to string, mtime int64) error
	CompleteWithResult(ctx context.Context, jobID string, noteID, topic, summary string, cards []model.Card, mtime int64) error
	FailWithError(ctx context.Context, jobID, message string, mtime int64) error
}

// NoteStore is the slice of the note repository the worker needs.
type NoteStore interface {
	GetByURL(ctx context.Context, ownerID, sourceURL string) (*model.Note, error)
	Create(ctx context.Context, note *model.Note) error
	UpdateCards(ctx context.Context, ownerID, noteID string, cards []model.Card, summary *string, mtime int64) error
}

// StackBuilder produces a card stack from captured content.
type StackBuilder interface {
	BuildStack(ctx context.Context, content, topic, requirements string) (*ai.Stack, error)
}

type Config struct {
	Concurrency  int
	QueueSize    int
	DedupeSize   int
	DedupeTTL    time.Duration
	BuildTimeout time.Duration
}

func (c *Config) fill() {
	if c.Concurrency <= 0 {
		c.Concurrency = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 128
	}
	if c.DedupeSize <= 0 {
		c.DedupeSize = 256
	}
	if c.DedupeTTL <= 0 {
		c.DedupeTTL = 30 * time.Minute
	}
	if c.BuildTimeout <= 0 {
		c.BuildTimeout = 3 * time.Minute
	}
}

// GenerationWorker consumes capture jobs and turns them into notes. Delivery
// is at least once: a job id may arrive twice (submit plus sweep), so the
// worker claims each job with a conditional status update and treats a lost
// claim as someone else's success.
type GenerationWorker struct {
	jobs    JobStore
	notes   NoteStore
	builder StackBuilder
	dedupe  *expirable.LRU[string, *ai.Stack]
	queue   chan string
	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	cfg     Config
	clock   func() time.Time
}

func NewGenerationWorker(jobs JobStore, notes NoteStore, builder StackBuilder, cfg Config, clock func() time.Time) *GenerationWorker {
	cfg.fill()
	if clock == nil {
		clock = time.Now
	}
	return &GenerationWorker{
		jobs:    jobs,
		notes:   notes,
		builder: builder,
		dedupe:  expirable.NewLRU[string, *ai.Stack](cfg.DedupeSize, nil, cfg.DedupeTTL),
		queue:   make(chan string, cfg.QueueSize),
		cfg:     cfg,
		clock:   clock,
	}
}

func (w *GenerationWorker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.Concurrency; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}
}

func (w *GenerationWorker) Stop() {
	w.closeMu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.closeMu.Unlock()
	w.wg.Wait()
}

// Notify hands a job id to the worker pool without blocking. A full or
// already closed queue is not an error: the pending sweep re-delivers
// anything that was dropped.
func (w *GenerationWorker) Notify(jobID string) {
	w.closeMu.RLock()
	defer w.closeMu.RUnlock()
	if w.closed {
		logutil.GetLogger(context.Background()).Warn("worker stopped, job deferred to sweep",
			zap.String("job_id", jobID))
		return
	}
	select {
	case w.queue <- jobID:
	default:
		logutil.GetLogger(context.Background()).Warn("generation queue full, job deferred to sweep",
			zap.String("job_id", jobID))
	}
}

func (w *GenerationWorker) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case jobID, ok := <-w.queue:
			if !ok {
				return
			}
			if err := w.Process(ctx, jobID); err != nil {
				logutil.GetLogger(ctx).Error("process capture job failed",
					zap.String("job_id", jobID), zap.Error(err))
			}
		}
	}
}

// Process runs one capture job end to end. Only repository and infrastructure
// failures are returned; generation failures land on the job row instead.
func (w *GenerationWorker) Process(ctx context.Context, jobID string) error {
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", jobID))

	job, err := w.jobs.Get(ctx, jobID)
	if appErr.IsNotFound(err) {
		logger.Debug("job vanished before processing")
		return nil
	}
	if err != nil {
		return err
	}
	if job.Status != model.JobStatusPending {
		logger.Debug("job not pending, nothing to do", zap.String("status", job.Status))
		return nil
	}

	err = w.jobs.TransitionStatus(ctx, jobID, model.JobStatusPending, model.JobStatusProcessing, w.now())
	if appErr.IsPrecondition(err) {
		logger.Debug("job claimed elsewhere")
		return nil
	}
	if err != nil {
		return err
	}

	stack, err := w.buildStack(ctx, job)
	if err != nil {
		logger.Warn("generation failed", zap.Error(err))
		failErr := w.jobs.FailWithError(ctx, jobID, err.Error(), w.now())
		if failErr != nil && !appErr.IsPrecondition(failErr) {
			return failErr
		}
		return nil
	}

	noteID, err := w.storeStack(ctx, job, stack)
	if err != nil {
		logger.Error("store generated stack failed", zap.Error(err))
		failErr := w.jobs.FailWithError(ctx, jobID, "failed to store generated cards", w.now())
		if failErr != nil && !appErr.IsPrecondition(failErr) {
			return failErr
		}
		return nil
	}

	err = w.jobs.CompleteWithResult(ctx, jobID, noteID, stack.Topic, stack.Summary, stack.Cards, w.now())
	if appErr.IsPrecondition(err) {
		// The job moved on without us, likely reclaimed after expiry. The
		// note itself is already saved.
		logger.Warn("job no longer processing at completion", zap.String("note_id", noteID))
		return nil
	}
	if err != nil {
		return err
	}
	logger.Info("capture job completed",
		zap.String("note_id", noteID), zap.Int("cards", len(stack.Cards)))
	return nil
}

func (w *GenerationWorker) buildStack(ctx context.Context, job *model.CaptureJob) (*ai.Stack, error) {
	key := dedupeKey(job.Payload)
	if cached, ok := w.dedupe.Get(key); ok {
		return withFreshCardIDs(cached), nil
	}

	buildCtx, cancel := context.WithTimeout(ctx, w.cfg.BuildTimeout)
	defer cancel()
	stack, err := w.builder.BuildStack(buildCtx, job.Payload.Content, job.Payload.Topic, job.Payload.Requirements)
	if err != nil {
		return nil, err
	}
	w.dedupe.Add(key, stack)
	return withFreshCardIDs(stack), nil
}

func (w *GenerationWorker) storeStack(ctx context.Context, job *model.CaptureJob, stack *ai.Stack) (string, error) {
	now := w.now()
	existing, err := w.notes.GetByURL(ctx, job.OwnerID, job.URL)
	if err == nil {
		merged := append(append([]model.Card{}, existing.Cards...), stack.Cards...)
		if err := w.notes.UpdateCards(ctx, job.OwnerID, existing.NoteID, merged, nil, now); err != nil {
			return "", err
		}
		return existing.NoteID, nil
	}
	if !appErr.IsNotFound(err) {
		return "", err
	}

	note := &model.Note{
		NoteID:    newID(),
		OwnerID:   job.OwnerID,
		SourceURL: job.URL,
		Topic:     stack.Topic,
		Summary:   stack.Summary,
		Cards:     stack.Cards,
		Ctime:     now,
		Mtime:     now,
	}
	if err := w.notes.Create(ctx, note); err != nil {
		if appErr.IsConflict(err) {
			// Lost a create race with another worker on the same url.
			winner, getErr := w.notes.GetByURL(ctx, job.OwnerID, job.URL)
			if getErr != nil {
				return "", getErr
			}
			merged := append(append([]model.Card{}, winner.Cards...), stack.Cards...)
			if err := w.notes.UpdateCards(ctx, job.OwnerID, winner.NoteID, merged, nil, now); err != nil {
				return "", err
			}
			return winner.NoteID, nil
		}
		return "", err
	}
	return note.NoteID, nil
}

func (w *GenerationWorker) now() int64 {
	return w.clock().UnixMilli()
}

// withFreshCardIDs copies a stack and assigns new card ids, so a cached stack
// never shares ids across notes.
func withFreshCardIDs(stack *ai.Stack) *ai.Stack {
	out := &ai.Stack{
		Topic:   stack.Topic,
		Summary: stack.Summary,
		Cards:   make([]model.Card, len(stack.Cards)),
	}
	for i, card := range stack.Cards {
		card.ID = newID()
		out.Cards[i] = card
	}
	return out
}

func dedupeKey(payload model.CapturePayload) string {
	h := sha256.New()
	h.Write([]byte(payload.Content))
	h.Write([]byte{0})
	h.Write([]byte(payload.Topic))
	h.Write([]byte{0})
	h.Write([]byte(payload.Requirements))
	return hex.EncodeToString(h.Sum(nil))
}

func newID() string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	return hex.EncodeToString(bytes)
}
