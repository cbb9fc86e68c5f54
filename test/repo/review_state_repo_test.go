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

func TestReviewStateRepoUpsertAndDelete(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()

	states := repo.NewReviewStateRepo(db)
	key := model.ReviewKey{OwnerID: "user-rs-1", SourceType: model.SourceTypeNote, SourceID: "note-1", CardID: "card-1"}
	rec := &model.ReviewRecord{
		Key: key,
		State: model.ReviewState{
			EaseFactor:      2.5,
			IntervalSeconds: 86400,
			Repetitions:     1,
			NextReviewAt:    timeutil.NowMilli() + 86400*1000,
			LastReviewedAt:  timeutil.NowMilli(),
		},
		Streak: 1,
		Mtime:  timeutil.NowMilli(),
	}
	require.NoError(t, states.Upsert(context.Background(), rec))

	rec.State.Repetitions = 2
	rec.Streak = 2
	require.NoError(t, states.Upsert(context.Background(), rec))

	fetched, err := states.Get(context.Background(), key)
	require.NoError(t, err)
	require.Equal(t, 2, fetched.State.Repetitions)
	require.Equal(t, 2, fetched.Streak)

	owners, err := states.ListOwners(context.Background())
	require.NoError(t, err)
	require.Contains(t, owners, "user-rs-1")

	listed, err := states.ListByOwner(context.Background(), "user-rs-1")
	require.NoError(t, err)
	require.Len(t, listed, 1)

	require.NoError(t, states.Delete(context.Background(), key))
	_, err = states.Get(context.Background(), key)
	require.ErrorIs(t, err, appErr.ErrNotFound)
}
