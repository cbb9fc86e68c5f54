package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
	"github.com/litdeck/litdeck/internal/pkg/timeutil"
	"github.com/litdeck/litdeck/internal/repo"
	"github.com/litdeck/litdeck/internal/review"
	"github.com/litdeck/litdeck/internal/service"
	"github.com/litdeck/litdeck/internal/srs"
	"github.com/litdeck/litdeck/test/testutil"
)

// inlineSyncer runs the production mirror push synchronously so the test can
// assert on the note row without timing games.
type inlineSyncer struct {
	push  review.PushFunc
	store *review.Store
}

func (s *inlineSyncer) Enqueue(rec model.ReviewRecord, grade srs.Grade) {
	if err := s.push(context.Background(), &rec, grade); err == nil {
		s.store.Ack(rec.Key, rec.Mtime)
	}
}

func TestReviewServiceGradeNoteMirrorsToNote(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	notes := repo.NewNoteRepo(db)
	states := repo.NewReviewStateRepo(db)
	now := timeutil.NowMilli()
	note := &model.Note{
		NoteID:    "note-review-1",
		OwnerID:   "user-rv-1",
		SourceURL: "https://example.com/review",
		Cards:     []model.Card{{ID: "card-1", Front: "f", Back: "b"}},
		Ctime:     now,
		Mtime:     now,
	}
	require.NoError(t, notes.Create(context.Background(), note))

	sched := srs.NewScheduler(srs.DefaultConfig(), nil)
	syncer := &inlineSyncer{push: service.NoteReviewMirror(notes)}
	store := review.NewStore(states, sched, syncer, nil)
	syncer.store = store
	reviews := service.NewReviewService(notes, store)

	rec, err := reviews.GradeNote(context.Background(), "user-rv-1", note.NoteID, "good")
	require.NoError(t, err)
	require.Equal(t, 1, rec.Streak)
	require.Equal(t, 1, rec.State.Repetitions)

	mirrored, err := notes.Get(context.Background(), "user-rv-1", note.NoteID)
	require.NoError(t, err)
	require.Equal(t, "good", mirrored.LastReviewStatus)
	require.Equal(t, rec.State.NextReviewAt, mirrored.NextReviewAt)

	// Card grades track their own state and never touch the note mirror.
	cardRec, err := reviews.GradeCard(context.Background(), "user-rv-1", note.NoteID, "card-1", "easy")
	require.NoError(t, err)
	require.Equal(t, 1, cardRec.Streak)

	afterCard, err := notes.Get(context.Background(), "user-rv-1", note.NoteID)
	require.NoError(t, err)
	require.Equal(t, "good", afterCard.LastReviewStatus)
	require.Equal(t, mirrored.NextReviewAt, afterCard.NextReviewAt)
	require.Equal(t, mirrored.ReviewEaseFactor, afterCard.ReviewEaseFactor)

	_, err = reviews.GradeCard(context.Background(), "user-rv-1", note.NoteID, "missing-card", "good")
	require.ErrorIs(t, err, appErr.ErrNotFound)

	_, err = reviews.GradeNote(context.Background(), "user-rv-1", note.NoteID, "amazing")
	require.ErrorIs(t, err, appErr.ErrInvalid)
}
