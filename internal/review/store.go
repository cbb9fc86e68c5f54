package review

import (
	"context"
	"sync"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
	"github.com/litdeck/litdeck/internal/srs"
)

// Persister is the durable side of the store.
type Persister interface {
	Upsert(ctx context.Context, rec *model.ReviewRecord) error
	Get(ctx context.Context, key model.ReviewKey) (*model.ReviewRecord, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*model.ReviewRecord, error)
	Delete(ctx context.Context, key model.ReviewKey) error
}

// Syncer pushes graded states toward the server of record. Enqueue must not
// block; delivery is best effort and failures never surface to the caller.
type Syncer interface {
	Enqueue(rec model.ReviewRecord, grade srs.Grade)
}

type entry struct {
	rec model.ReviewRecord
	// dirty marks a local grade not yet acknowledged by the syncer. While
	// set, remote snapshots do not overwrite this entry.
	dirty bool
}

// Store keeps review states in memory, persists every change, and feeds the
// syncer after each grade. All methods are safe for concurrent use.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	repo    Persister
	sched   *srs.Scheduler
	syncer  Syncer
	clock   func() time.Time
}

func NewStore(repo Persister, sched *srs.Scheduler, syncer Syncer, clock func() time.Time) *Store {
	if clock == nil {
		clock = time.Now
	}
	return &Store{
		entries: make(map[string]*entry),
		repo:    repo,
		sched:   sched,
		syncer:  syncer,
		clock:   clock,
	}
}

// GetOrInit returns the state for a key, creating it when absent. A fresh
// state starts from the remote snapshot field by field, falling back to the
// scheduler's initial state for anything the snapshot does not carry. The
// second return reports whether the state was created by this call.
func (s *Store) GetOrInit(ctx context.Context, key model.ReviewKey, snapshot *model.ReviewSnapshot) (model.ReviewState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, err := s.loadLocked(ctx, key)
	if err == nil {
		return ent.rec.State, false, nil
	}
	if !appErr.IsNotFound(err) {
		return model.ReviewState{}, false, err
	}

	state := s.sched.InitialState()
	applySnapshot(&state, snapshot)
	rec := model.ReviewRecord{
		Key:   key,
		State: state,
		Mtime: s.clock().UnixMilli(),
	}
	if err := s.repo.Upsert(ctx, &rec); err != nil {
		return model.ReviewState{}, false, err
	}
	s.entries[key.String()] = &entry{rec: rec}
	return state, true, nil
}

// Reconcile merges a remote snapshot into local state. It is idempotent and
// never moves state backward under a pending local grade: an entry that is
// dirty keeps its local values until the syncer acknowledges them.
func (s *Store) Reconcile(ctx context.Context, key model.ReviewKey, snapshot *model.ReviewSnapshot) (model.ReviewState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, err := s.loadLocked(ctx, key)
	if appErr.IsNotFound(err) {
		state := s.sched.InitialState()
		applySnapshot(&state, snapshot)
		rec := model.ReviewRecord{
			Key:   key,
			State: state,
			Mtime: s.clock().UnixMilli(),
		}
		if err := s.repo.Upsert(ctx, &rec); err != nil {
			return model.ReviewState{}, err
		}
		s.entries[key.String()] = &entry{rec: rec}
		return state, nil
	}
	if err != nil {
		return model.ReviewState{}, err
	}
	if ent.dirty {
		logutil.GetLogger(ctx).Debug("skip reconcile for dirty entry", zap.String("key", key.String()))
		return ent.rec.State, nil
	}

	merged := ent.rec.State
	applySnapshot(&merged, snapshot)
	if merged.Equal(ent.rec.State) {
		return ent.rec.State, nil
	}
	ent.rec.State = merged
	ent.rec.Mtime = s.clock().UnixMilli()
	if err := s.repo.Upsert(ctx, &ent.rec); err != nil {
		return model.ReviewState{}, err
	}
	return merged, nil
}

// Grade applies one review grade, persists the result and hands it to the
// syncer. The returned record carries the updated streak.
func (s *Store) Grade(ctx context.Context, key model.ReviewKey, grade srs.Grade) (model.ReviewRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ent, err := s.loadLocked(ctx, key)
	if appErr.IsNotFound(err) {
		state := s.sched.InitialState()
		ent = &entry{rec: model.ReviewRecord{Key: key, State: state}}
		s.entries[key.String()] = ent
	} else if err != nil {
		return model.ReviewRecord{}, err
	}

	ent.rec.State = s.sched.Schedule(ent.rec.State, grade)
	if grade == srs.GradeHard {
		ent.rec.Streak = 0
	} else {
		ent.rec.Streak++
	}
	ent.rec.Mtime = s.clock().UnixMilli()
	ent.dirty = true
	if err := s.repo.Upsert(ctx, &ent.rec); err != nil {
		return model.ReviewRecord{}, err
	}
	if s.syncer != nil {
		s.syncer.Enqueue(ent.rec, grade)
	}
	return ent.rec, nil
}

// Ack clears the dirty flag once the syncer delivered a grade, unless a newer
// local grade landed in the meantime.
func (s *Store) Ack(key model.ReviewKey, mtime int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ent, ok := s.entries[key.String()]
	if !ok {
		return
	}
	if ent.rec.Mtime <= mtime {
		ent.dirty = false
	}
}

// Prune drops states whose reviewable no longer exists. live reports whether
// a key still maps to a real card or note.
func (s *Store) Prune(ctx context.Context, ownerID string, live func(key model.ReviewKey) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, rec := range recs {
		if live(rec.Key) {
			continue
		}
		if err := s.repo.Delete(ctx, rec.Key); err != nil {
			return removed, err
		}
		delete(s.entries, rec.Key.String())
		removed++
	}
	if removed > 0 {
		logutil.GetLogger(ctx).Info("pruned orphan review states",
			zap.String("owner_id", ownerID), zap.Int("removed", removed))
	}
	return removed, nil
}

func (s *Store) loadLocked(ctx context.Context, key model.ReviewKey) (*entry, error) {
	if ent, ok := s.entries[key.String()]; ok {
		return ent, nil
	}
	rec, err := s.repo.Get(ctx, key)
	if err != nil {
		return nil, err
	}
	ent := &entry{rec: *rec}
	s.entries[key.String()] = ent
	return ent, nil
}

func applySnapshot(state *model.ReviewState, snapshot *model.ReviewSnapshot) {
	if snapshot == nil {
		return
	}
	if snapshot.EaseFactor != nil && *snapshot.EaseFactor > 0 {
		state.EaseFactor = *snapshot.EaseFactor
	}
	if snapshot.IntervalSeconds != nil && *snapshot.IntervalSeconds > 0 {
		state.IntervalSeconds = *snapshot.IntervalSeconds
	}
	if snapshot.Repetitions != nil && *snapshot.Repetitions >= 0 {
		state.Repetitions = *snapshot.Repetitions
	}
	if snapshot.NextReviewAt != nil && *snapshot.NextReviewAt > 0 {
		state.NextReviewAt = *snapshot.NextReviewAt
	}
	if snapshot.LastReviewedAt != nil && *snapshot.LastReviewedAt > 0 {
		state.LastReviewedAt = *snapshot.LastReviewedAt
	}
}
