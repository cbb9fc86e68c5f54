package repo

import (
	"context"
	"database/sql"

	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
)

type ReviewStateRepo struct {
	db *sql.DB
}

func NewReviewStateRepo(db *sql.DB) *ReviewStateRepo {
	return &ReviewStateRepo{db: db}
}

// Upsert writes one review record, replacing any existing row for the key.
func (r *ReviewStateRepo) Upsert(ctx context.Context, rec *model.ReviewRecord) error {
	const query = `INSERT INTO review_states
		(owner_id, source_type, source_id, card_id, ease_factor, interval_seconds, repetitions, next_review_at, last_reviewed_at, streak, mtime)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (owner_id, source_type, source_id, card_id) DO UPDATE SET
			ease_factor = EXCLUDED.ease_factor,
			interval_seconds = EXCLUDED.interval_seconds,
			repetitions = EXCLUDED.repetitions,
			next_review_at = EXCLUDED.next_review_at,
			last_reviewed_at = EXCLUDED.last_reviewed_at,
			streak = EXCLUDED.streak,
			mtime = EXCLUDED.mtime`
	_, err := r.db.ExecContext(ctx, query,
		rec.Key.OwnerID, rec.Key.SourceType, rec.Key.SourceID, rec.Key.CardID,
		rec.State.EaseFactor, rec.State.IntervalSeconds, rec.State.Repetitions,
		rec.State.NextReviewAt, rec.State.LastReviewedAt, rec.Streak, rec.Mtime)
	return err
}

func (r *ReviewStateRepo) Get(ctx context.Context, key model.ReviewKey) (*model.ReviewRecord, error) {
	const query = `SELECT owner_id, source_type, source_id, card_id, ease_factor, interval_seconds, repetitions, next_review_at, last_reviewed_at, streak, mtime
		FROM review_states
		WHERE owner_id = $1 AND source_type = $2 AND source_id = $3 AND card_id = $4`
	rows, err := r.db.QueryContext(ctx, query, key.OwnerID, key.SourceType, key.SourceID, key.CardID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	if !rows.Next() {
		return nil, appErr.ErrNotFound
	}
	return scanReviewRecord(rows)
}

func (r *ReviewStateRepo) ListByOwner(ctx context.Context, ownerID string) ([]*model.ReviewRecord, error) {
	const query = `SELECT owner_id, source_type, source_id, card_id, ease_factor, interval_seconds, repetitions, next_review_at, last_reviewed_at, streak, mtime
		FROM review_states WHERE owner_id = $1`
	rows, err := r.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var recs []*model.ReviewRecord
	for rows.Next() {
		rec, err := scanReviewRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

func (r *ReviewStateRepo) ListOwners(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT owner_id FROM review_states`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var owners []string
	for rows.Next() {
		var owner string
		if err := rows.Scan(&owner); err != nil {
			return nil, err
		}
		owners = append(owners, owner)
	}
	return owners, rows.Err()
}

func (r *ReviewStateRepo) Delete(ctx context.Context, key model.ReviewKey) error {
	const query = `DELETE FROM review_states
		WHERE owner_id = $1 AND source_type = $2 AND source_id = $3 AND card_id = $4`
	_, err := r.db.ExecContext(ctx, query, key.OwnerID, key.SourceType, key.SourceID, key.CardID)
	return err
}

func scanReviewRecord(rows *sql.Rows) (*model.ReviewRecord, error) {
	var rec model.ReviewRecord
	if err := rows.Scan(
		&rec.Key.OwnerID,
		&rec.Key.SourceType,
		&rec.Key.SourceID,
		&rec.Key.CardID,
		&rec.State.EaseFactor,
		&rec.State.IntervalSeconds,
		&rec.State.Repetitions,
		&rec.State.NextReviewAt,
		&rec.State.LastReviewedAt,
		&rec.Streak,
		&rec.Mtime,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}
