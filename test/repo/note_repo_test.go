package repo_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
	"github.com/litdeck/litdeck/internal/pkg/timeutil"
	"github.com/litdeck/litdeck/internal/repo"
	"github.com/litdeck/litdeck/test/testutil"
)

func TestNoteRepoCRUDAndIsolation(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	notes := repo.NewNoteRepo(db)
	now := timeutil.NowMilli()
	note := &model.Note{
		NoteID:    "note-crud-1",
		OwnerID:   "user-1",
		SourceURL: "https://example.com/notes",
		Topic:     "topic",
		Summary:   "summary",
		Cards:     []model.Card{{ID: "c1", Front: "front", Back: "back", Tags: []string{"go"}}},
		Ctime:     now,
		Mtime:     now,
	}
	require.NoError(t, notes.Create(context.Background(), note))
	require.ErrorIs(t, notes.Create(context.Background(), note), appErr.ErrConflict)

	// A fresh id for the same (owner, url) still collides; this is what the
	// worker's create-race recovery relies on.
	dup := *note
	dup.NoteID = "note-crud-1-dup"
	require.ErrorIs(t, notes.Create(context.Background(), &dup), appErr.ErrConflict)

	fetched, err := notes.Get(context.Background(), "user-1", note.NoteID)
	require.NoError(t, err)
	require.Equal(t, "topic", fetched.Topic)
	require.Len(t, fetched.Cards, 1)
	require.Equal(t, []string{"go"}, fetched.Cards[0].Tags)

	// Another owner cannot see the note.
	_, err = notes.Get(context.Background(), "user-2", note.NoteID)
	require.ErrorIs(t, err, appErr.ErrNotFound)

	byURL, err := notes.GetByURL(context.Background(), "user-1", note.SourceURL)
	require.NoError(t, err)
	require.Equal(t, note.NoteID, byURL.NoteID)

	cards := append(fetched.Cards, model.Card{ID: "c2", Front: "f2", Back: "b2"})
	require.NoError(t, notes.UpdateCards(context.Background(), "user-1", note.NoteID, cards, nil, timeutil.NowMilli()))

	state := model.ReviewState{
		EaseFactor:      2.36,
		IntervalSeconds: 259200,
		Repetitions:     2,
		NextReviewAt:    now + 259200*1000,
		LastReviewedAt:  now,
	}
	require.NoError(t, notes.UpdateReview(context.Background(), "user-1", note.NoteID, state, "good", timeutil.NowMilli()))

	fetched, err = notes.Get(context.Background(), "user-1", note.NoteID)
	require.NoError(t, err)
	require.Len(t, fetched.Cards, 2)
	require.Equal(t, 2.36, fetched.ReviewEaseFactor)
	require.Equal(t, "good", fetched.LastReviewStatus)

	listed, err := notes.ListByOwner(context.Background(), "user-1")
	require.NoError(t, err)
	require.NotEmpty(t, listed)
}
