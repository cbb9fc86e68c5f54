package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/litdeck/litdeck/internal/ai"
	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
)

type fakeJobStore struct {
	mu   sync.Mutex
	jobs map[string]*model.CaptureJob
}

func newFakeJobStore(jobs ...*model.CaptureJob) *fakeJobStore {
	s := &fakeJobStore{jobs: map[string]*model.CaptureJob{}}
	for _, job := range jobs {
		s.jobs[job.ID] = job
	}
	return s
}

func (s *fakeJobStore) Get(ctx context.Context, jobID string) (*model.CaptureJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return nil, appErr.ErrNotFound
	}
	copied := *job
	return &copied, nil
}

func (s *fakeJobStore) TransitionStatus(ctx context.Context, jobID, from, to string, mtime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != from {
		return appErr.ErrPrecondition
	}
	job.Status = to
	job.Mtime = mtime
	return nil
}

func (s *fakeJobStore) CompleteWithResult(ctx context.Context, jobID string, noteID, topic, summary string, cards []model.Card, mtime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != model.JobStatusProcessing {
		return appErr.ErrPrecondition
	}
	job.Status = model.JobStatusCompleted
	job.ResultNoteID = noteID
	job.ResultTopic = topic
	job.ResultSummary = summary
	job.ResultCards = cards
	job.Mtime = mtime
	return nil
}

func (s *fakeJobStore) FailWithError(ctx context.Context, jobID, message string, mtime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok || job.Status != model.JobStatusProcessing {
		return appErr.ErrPrecondition
	}
	job.Status = model.JobStatusFailed
	job.ErrorMessage = message
	job.Mtime = mtime
	return nil
}

type fakeNoteStore struct {
	mu    sync.Mutex
	notes map[string]*model.Note
}

func newFakeNoteStore() *fakeNoteStore {
	return &fakeNoteStore{notes: map[string]*model.Note{}}
}

func (s *fakeNoteStore) GetByURL(ctx context.Context, ownerID, sourceURL string) (*model.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, note := range s.notes {
		if note.OwnerID == ownerID && note.SourceURL == sourceURL {
			copied := *note
			return &copied, nil
		}
	}
	return nil, appErr.ErrNotFound
}

func (s *fakeNoteStore) Create(ctx context.Context, note *model.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.notes {
		if existing.OwnerID == note.OwnerID && existing.SourceURL == note.SourceURL {
			return appErr.ErrConflict
		}
	}
	copied := *note
	s.notes[note.NoteID] = &copied
	return nil
}

func (s *fakeNoteStore) UpdateCards(ctx context.Context, ownerID, noteID string, cards []model.Card, summary *string, mtime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	note, ok := s.notes[noteID]
	if !ok || note.OwnerID != ownerID {
		return appErr.ErrNotFound
	}
	note.Cards = cards
	note.Mtime = mtime
	return nil
}

type stubBuilder struct {
	mu    sync.Mutex
	calls int
	stack *ai.Stack
	err   error
}

func (b *stubBuilder) BuildStack(ctx context.Context, content, topic, requirements string) (*ai.Stack, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls++
	if b.err != nil {
		return nil, b.err
	}
	copied := *b.stack
	copied.Cards = append([]model.Card{}, b.stack.Cards...)
	return &copied, nil
}

func (b *stubBuilder) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func pendingJob(id, owner, url, content string) *model.CaptureJob {
	return &model.CaptureJob{
		ID:      id,
		OwnerID: owner,
		URL:     url,
		Status:  model.JobStatusPending,
		Payload: model.CapturePayload{Content: content},
	}
}

func validStack() *ai.Stack {
	return &ai.Stack{
		Topic:   "Go concurrency",
		Summary: "Goroutines and channels.",
		Cards: []model.Card{
			{Front: "What starts a goroutine?", Back: "The go statement."},
			{Front: "What synchronizes goroutines?", Back: "Channels."},
		},
	}
}

func newTestWorker(jobs JobStore, notes NoteStore, builder StackBuilder) *GenerationWorker {
	return NewGenerationWorker(jobs, notes, builder, Config{}, func() time.Time {
		return time.Unix(1_700_000_000, 0)
	})
}

func TestProcessCompletesJob(t *testing.T) {
	jobs := newFakeJobStore(pendingJob("j1", "u1", "https://example.com/go", "goroutines..."))
	notes := newFakeNoteStore()
	builder := &stubBuilder{stack: validStack()}
	w := newTestWorker(jobs, notes, builder)

	require.NoError(t, w.Process(context.Background(), "j1"))

	job, err := jobs.Get(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, job.Status)
	require.NotEmpty(t, job.ResultNoteID)
	require.Equal(t, "Go concurrency", job.ResultTopic)
	require.Len(t, job.ResultCards, 2)

	note, err := notes.GetByURL(context.Background(), "u1", "https://example.com/go")
	require.NoError(t, err)
	require.Equal(t, job.ResultNoteID, note.NoteID)
	require.Len(t, note.Cards, 2)
	for _, card := range note.Cards {
		require.NotEmpty(t, card.ID)
	}
}

func TestProcessSkipsNonPendingJob(t *testing.T) {
	job := pendingJob("j1", "u1", "https://example.com", "c")
	job.Status = model.JobStatusCompleted
	jobs := newFakeJobStore(job)
	builder := &stubBuilder{stack: validStack()}
	w := newTestWorker(jobs, newFakeNoteStore(), builder)

	require.NoError(t, w.Process(context.Background(), "j1"))
	require.Equal(t, 0, builder.callCount())
}

func TestProcessSkipsMissingJob(t *testing.T) {
	w := newTestWorker(newFakeJobStore(), newFakeNoteStore(), &stubBuilder{stack: validStack()})
	require.NoError(t, w.Process(context.Background(), "nope"))
}

func TestProcessMarksFailedOnGenerationError(t *testing.T) {
	jobs := newFakeJobStore(pendingJob("j1", "u1", "https://example.com", "c"))
	notes := newFakeNoteStore()
	builder := &stubBuilder{err: errors.New("parse stack: invalid character")}
	w := newTestWorker(jobs, notes, builder)

	require.NoError(t, w.Process(context.Background(), "j1"))

	job, err := jobs.Get(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusFailed, job.Status)
	require.Contains(t, job.ErrorMessage, "parse stack")
	_, err = notes.GetByURL(context.Background(), "u1", "https://example.com")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestProcessAppendsToExistingNote(t *testing.T) {
	jobs := newFakeJobStore(pendingJob("j1", "u1", "https://example.com/go", "more content"))
	notes := newFakeNoteStore()
	existing := &model.Note{
		NoteID:    "n1",
		OwnerID:   "u1",
		SourceURL: "https://example.com/go",
		Topic:     "Go",
		Cards:     []model.Card{{ID: "c0", Front: "old", Back: "card"}},
	}
	require.NoError(t, notes.Create(context.Background(), existing))

	w := newTestWorker(jobs, notes, &stubBuilder{stack: validStack()})
	require.NoError(t, w.Process(context.Background(), "j1"))

	job, err := jobs.Get(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, "n1", job.ResultNoteID)

	note, err := notes.GetByURL(context.Background(), "u1", "https://example.com/go")
	require.NoError(t, err)
	require.Len(t, note.Cards, 3)
	require.Equal(t, "c0", note.Cards[0].ID)
}

func TestProcessDedupesIdenticalPayloads(t *testing.T) {
	jobs := newFakeJobStore(
		pendingJob("j1", "u1", "https://example.com/a", "same content"),
		pendingJob("j2", "u2", "https://example.com/b", "same content"),
	)
	notes := newFakeNoteStore()
	builder := &stubBuilder{stack: validStack()}
	w := newTestWorker(jobs, notes, builder)

	require.NoError(t, w.Process(context.Background(), "j1"))
	require.NoError(t, w.Process(context.Background(), "j2"))
	require.Equal(t, 1, builder.callCount())

	first, err := notes.GetByURL(context.Background(), "u1", "https://example.com/a")
	require.NoError(t, err)
	second, err := notes.GetByURL(context.Background(), "u2", "https://example.com/b")
	require.NoError(t, err)
	require.NotEqual(t, first.Cards[0].ID, second.Cards[0].ID, "cached stacks must get fresh card ids")
}

// raceNoteStore hides existing notes from the first lookup, simulating a
// concurrent worker creating the note between lookup and insert.
type raceNoteStore struct {
	*fakeNoteStore
	raceMu sync.Mutex
	missed bool
}

func (s *raceNoteStore) GetByURL(ctx context.Context, ownerID, sourceURL string) (*model.Note, error) {
	s.raceMu.Lock()
	first := !s.missed
	s.missed = true
	s.raceMu.Unlock()
	if first {
		return nil, appErr.ErrNotFound
	}
	return s.fakeNoteStore.GetByURL(ctx, ownerID, sourceURL)
}

func TestProcessRecoversFromCreateRace(t *testing.T) {
	jobs := newFakeJobStore(pendingJob("j1", "u1", "https://example.com/go", "content"))
	inner := newFakeNoteStore()
	winner := &model.Note{
		NoteID:    "n-winner",
		OwnerID:   "u1",
		SourceURL: "https://example.com/go",
		Cards:     []model.Card{{ID: "c0", Front: "old", Back: "card"}},
	}
	require.NoError(t, inner.Create(context.Background(), winner))
	notes := &raceNoteStore{fakeNoteStore: inner}

	w := newTestWorker(jobs, notes, &stubBuilder{stack: validStack()})
	require.NoError(t, w.Process(context.Background(), "j1"))

	job, err := jobs.Get(context.Background(), "j1")
	require.NoError(t, err)
	require.Equal(t, model.JobStatusCompleted, job.Status)
	require.Equal(t, "n-winner", job.ResultNoteID, "the losing worker must merge into the winner's note")

	note, err := inner.GetByURL(context.Background(), "u1", "https://example.com/go")
	require.NoError(t, err)
	require.Len(t, note.Cards, 3)
	require.Equal(t, "c0", note.Cards[0].ID)
}

func TestNotifyAfterStopIsDropped(t *testing.T) {
	w := newTestWorker(newFakeJobStore(), newFakeNoteStore(), &stubBuilder{stack: validStack()})
	w.Start(context.Background())
	w.Stop()
	require.NotPanics(t, func() {
		w.Notify("late-job")
	})
}

func TestNotifyAndStartProcessQueue(t *testing.T) {
	jobs := newFakeJobStore(pendingJob("j1", "u1", "https://example.com", "content"))
	notes := newFakeNoteStore()
	w := newTestWorker(jobs, notes, &stubBuilder{stack: validStack()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	w.Notify("j1")

	require.Eventually(t, func() bool {
		job, err := jobs.Get(context.Background(), "j1")
		return err == nil && job.Status == model.JobStatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
	w.Stop()
}
