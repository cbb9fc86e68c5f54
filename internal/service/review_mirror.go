package service

import (
	"context"

	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
	"github.com/litdeck/litdeck/internal/repo"
	"github.com/litdeck/litdeck/internal/review"
	"github.com/litdeck/litdeck/internal/srs"
)

// NoteReviewMirror returns the sync push that copies note-level grades onto
// the note row's review columns. Card-level grades keep their own state rows
// and never touch the note mirror; they report success immediately so the
// store's dirty flag still clears.
func NoteReviewMirror(notes *repo.NoteRepo) review.PushFunc {
	return func(ctx context.Context, rec *model.ReviewRecord, grade srs.Grade) error {
		if rec.Key.CardID != "" || rec.Key.SourceType != model.SourceTypeNote {
			return nil
		}
		err := notes.UpdateReview(ctx, rec.Key.OwnerID, rec.Key.SourceID, rec.State, string(grade), rec.Mtime)
		if appErr.IsNotFound(err) {
			// Note deleted after the grade, nothing left to mirror.
			return nil
		}
		return err
	}
}
