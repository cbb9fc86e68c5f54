package job

import (
	"context"

	"github.com/litdeck/litdeck/internal/model"
	"github.com/litdeck/litdeck/internal/repo"
	"github.com/litdeck/litdeck/internal/review"
)

// ReviewPruneJob drops review states whose note or card no longer exists.
type ReviewPruneJob struct {
	stateRepo *repo.ReviewStateRepo
	noteRepo  *repo.NoteRepo
	store     *review.Store
}

func NewReviewPruneJob(stateRepo *repo.ReviewStateRepo, noteRepo *repo.NoteRepo, store *review.Store) *ReviewPruneJob {
	return &ReviewPruneJob{stateRepo: stateRepo, noteRepo: noteRepo, store: store}
}

func (j *ReviewPruneJob) Name() string {
	return "review_prune"
}

func (j *ReviewPruneJob) Run(ctx context.Context) error {
	if j.stateRepo == nil || j.noteRepo == nil || j.store == nil {
		return nil
	}
	owners, err := j.stateRepo.ListOwners(ctx)
	if err != nil {
		return err
	}
	for _, owner := range owners {
		live, err := j.liveKeys(ctx, owner)
		if err != nil {
			return err
		}
		if _, err := j.store.Prune(ctx, owner, func(key model.ReviewKey) bool {
			if key.SourceType != model.SourceTypeNote {
				// Only note-backed states have a liveness source here.
				return true
			}
			return live[key.SourceID+"/"+key.CardID]
		}); err != nil {
			return err
		}
	}
	return nil
}

func (j *ReviewPruneJob) liveKeys(ctx context.Context, ownerID string) (map[string]bool, error) {
	notes, err := j.noteRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	live := make(map[string]bool)
	for _, note := range notes {
		live[note.NoteID+"/"] = true
		for _, card := range note.Cards {
			live[note.NoteID+"/"+card.ID] = true
		}
	}
	return live, nil
}
