package repo

import (
	"context"
	"database/sql"

	"github.com/pgvector/pgvector-go"

	"github.com/litdeck/litdeck/internal/model"
)

type NoteEmbeddingRepo struct {
	db *sql.DB
}

func NewNoteEmbeddingRepo(db *sql.DB) *NoteEmbeddingRepo {
	return &NoteEmbeddingRepo{db: db}
}

func (r *NoteEmbeddingRepo) Save(ctx context.Context, item *model.NoteEmbedding) error {
	const query = `
		INSERT INTO note_embeddings (note_id, owner_id, embedding, content_hash, mtime)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (note_id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			content_hash = EXCLUDED.content_hash,
			mtime = EXCLUDED.mtime
	`
	_, err := r.db.ExecContext(ctx, query,
		item.NoteID,
		item.OwnerID,
		pgvector.NewVector(item.Embedding),
		item.ContentHash,
		item.Mtime,
	)
	return err
}

func (r *NoteEmbeddingRepo) GetHash(ctx context.Context, noteID string) (string, bool, error) {
	const query = `SELECT content_hash FROM note_embeddings WHERE note_id = $1`
	row := r.db.QueryRowContext(ctx, query, noteID)
	var hash string
	if err := row.Scan(&hash); err != nil {
		if err == sql.ErrNoRows {
			return "", false, nil
		}
		return "", false, err
	}
	return hash, true, nil
}

// SearchNearest returns the owner's note ids ordered by cosine distance to
// the query vector, closest first.
func (r *NoteEmbeddingRepo) SearchNearest(ctx context.Context, ownerID string, query []float32, limit int) ([]string, error) {
	const sqlStr = `
		SELECT note_id
		FROM note_embeddings
		WHERE owner_id = $1
		ORDER BY embedding <=> $2
		LIMIT $3
	`
	rows, err := r.db.QueryContext(ctx, sqlStr, ownerID, pgvector.NewVector(query), limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *NoteEmbeddingRepo) Delete(ctx context.Context, noteID string) error {
	const query = `DELETE FROM note_embeddings WHERE note_id = $1`
	_, err := r.db.ExecContext(ctx, query, noteID)
	return err
}
