package review

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/litdeck/litdeck/internal/model"
	"github.com/litdeck/litdeck/internal/srs"
)

// PushFunc delivers one graded state to the server of record.
type PushFunc func(ctx context.Context, rec *model.ReviewRecord, grade srs.Grade) error

// AckFunc is called after a successful push with the record's mtime.
type AckFunc func(key model.ReviewKey, mtime int64)

type syncTask struct {
	rec   model.ReviewRecord
	grade srs.Grade
}

// AsyncSyncer delivers grades in the background. Grading never waits on the
// network: a full queue drops the task and the next grade for the same key
// carries the latest state anyway.
type AsyncSyncer struct {
	push        PushFunc
	ack         AckFunc
	tasks       chan syncTask
	wg          sync.WaitGroup
	maxAttempts int
	backoff     time.Duration
	pushTimeout time.Duration
}

func NewAsyncSyncer(push PushFunc, ack AckFunc) *AsyncSyncer {
	s := &AsyncSyncer{
		push:        push,
		ack:         ack,
		tasks:       make(chan syncTask, 256),
		maxAttempts: 3,
		backoff:     500 * time.Millisecond,
		pushTimeout: 10 * time.Second,
	}
	s.wg.Add(1)
	go s.run()
	return s
}

func (s *AsyncSyncer) Enqueue(rec model.ReviewRecord, grade srs.Grade) {
	select {
	case s.tasks <- syncTask{rec: rec, grade: grade}:
	default:
		logutil.GetLogger(context.Background()).Warn("review sync queue full, dropping task",
			zap.String("key", rec.Key.String()))
	}
}

// Close drains the queue and stops the worker.
func (s *AsyncSyncer) Close() {
	close(s.tasks)
	s.wg.Wait()
}

func (s *AsyncSyncer) run() {
	defer s.wg.Done()
	for task := range s.tasks {
		s.deliver(task)
	}
}

func (s *AsyncSyncer) deliver(task syncTask) {
	logger := logutil.GetLogger(context.Background())
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.pushTimeout)
		err := s.push(ctx, &task.rec, task.grade)
		cancel()
		if err == nil {
			if s.ack != nil {
				s.ack(task.rec.Key, task.rec.Mtime)
			}
			return
		}
		lastErr = err
		if attempt < s.maxAttempts {
			time.Sleep(s.backoff * time.Duration(attempt))
		}
	}
	// Best effort only. The state is already durable locally.
	logger.Warn("review sync failed",
		zap.String("key", task.rec.Key.String()),
		zap.Int("attempts", s.maxAttempts),
		zap.Error(lastErr))
}
