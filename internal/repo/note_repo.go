package repo

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/didi/gendry/builder"

	"github.com/litdeck/litdeck/internal/model"
	"github.com/litdeck/litdeck/internal/pkg/dbutil"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
)

var noteColumns = []string{
	"note_id", "owner_id", "source_url", "topic", "summary", "cards_json",
	"last_reviewed_at", "last_review_status", "review_interval_seconds",
	"review_ease_factor", "review_repetitions", "next_review_at",
	"ctime", "mtime",
}

type NoteRepo struct {
	db *sql.DB
}

func NewNoteRepo(db *sql.DB) *NoteRepo {
	return &NoteRepo{db: db}
}

func (r *NoteRepo) Create(ctx context.Context, note *model.Note) error {
	cardsJSON, err := json.Marshal(note.Cards)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"note_id":                 note.NoteID,
		"owner_id":                note.OwnerID,
		"source_url":              note.SourceURL,
		"topic":                   note.Topic,
		"summary":                 note.Summary,
		"cards_json":              string(cardsJSON),
		"last_reviewed_at":        note.LastReviewedAt,
		"last_review_status":      note.LastReviewStatus,
		"review_interval_seconds": note.ReviewIntervalSeconds,
		"review_ease_factor":      note.ReviewEaseFactor,
		"review_repetitions":      note.ReviewRepetitions,
		"next_review_at":          note.NextReviewAt,
		"ctime":                   note.Ctime,
		"mtime":                   note.Mtime,
	}
	sqlStr, args, err := builder.BuildInsert("notes", []map[string]interface{}{data})
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	_, err = r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		if dbutil.IsConflict(err) {
			return appErr.ErrConflict
		}
		return err
	}
	return nil
}

func (r *NoteRepo) Get(ctx context.Context, ownerID, noteID string) (*model.Note, error) {
	return r.getOne(ctx, map[string]interface{}{"owner_id": ownerID, "note_id": noteID})
}

func (r *NoteRepo) GetByURL(ctx context.Context, ownerID, sourceURL string) (*model.Note, error) {
	return r.getOne(ctx, map[string]interface{}{
		"owner_id":   ownerID,
		"source_url": sourceURL,
		"_limit":     []uint{1},
	})
}

func (r *NoteRepo) getOne(ctx context.Context, where map[string]interface{}) (*model.Note, error) {
	sqlStr, args, err := builder.BuildSelect("notes", where, noteColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanNote(rows)
}

func (r *NoteRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.Note, error) {
	where := map[string]interface{}{
		"owner_id": ownerID,
		"_orderby": "mtime desc",
	}
	sqlStr, args, err := builder.BuildSelect("notes", where, noteColumns)
	if err != nil {
		return nil, err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	rows, err := r.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var notes []*model.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, rows.Err()
}

// UpdateCards replaces the card list; summary is only touched when non-nil.
func (r *NoteRepo) UpdateCards(ctx context.Context, ownerID, noteID string, cards []model.Card, summary *string, mtime int64) error {
	cardsJSON, err := json.Marshal(cards)
	if err != nil {
		return err
	}
	update := map[string]interface{}{
		"cards_json": string(cardsJSON),
		"mtime":      mtime,
	}
	if summary != nil {
		update["summary"] = *summary
	}
	return r.updateOne(ctx, ownerID, noteID, update)
}

func (r *NoteRepo) UpdateSummary(ctx context.Context, ownerID, noteID, summary string, mtime int64) error {
	return r.updateOne(ctx, ownerID, noteID, map[string]interface{}{
		"summary": summary,
		"mtime":   mtime,
	})
}

func (r *NoteRepo) UpdateReview(ctx context.Context, ownerID, noteID string, state model.ReviewState, status string, mtime int64) error {
	return r.updateOne(ctx, ownerID, noteID, map[string]interface{}{
		"last_reviewed_at":        state.LastReviewedAt,
		"last_review_status":      status,
		"review_interval_seconds": state.IntervalSeconds,
		"review_ease_factor":      state.EaseFactor,
		"review_repetitions":      state.Repetitions,
		"next_review_at":          state.NextReviewAt,
		"mtime":                   mtime,
	})
}

func (r *NoteRepo) updateOne(ctx context.Context, ownerID, noteID string, update map[string]interface{}) error {
	where := map[string]interface{}{"owner_id": ownerID, "note_id": noteID}
	sqlStr, args, err := builder.BuildUpdate("notes", where, update)
	if err != nil {
		return err
	}
	sqlStr, args = dbutil.Finalize(sqlStr, args)
	result, err := r.db.ExecContext(ctx, sqlStr, args...)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrNotFound
	}
	return nil
}

func scanNote(rows *sql.Rows) (*model.Note, error) {
	var note model.Note
	var cardsJSON string
	if err := rows.Scan(
		&note.NoteID,
		&note.OwnerID,
		&note.SourceURL,
		&note.Topic,
		&note.Summary,
		&cardsJSON,
		&note.LastReviewedAt,
		&note.LastReviewStatus,
		&note.ReviewIntervalSeconds,
		&note.ReviewEaseFactor,
		&note.ReviewRepetitions,
		&note.NextReviewAt,
		&note.Ctime,
		&note.Mtime,
	); err != nil {
		return nil, err
	}
	if cardsJSON != "" {
		if err := json.Unmarshal([]byte(cardsJSON), &note.Cards); err != nil {
			return nil, err
		}
	}
	return &note, nil
}
