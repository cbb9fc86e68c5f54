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

var captureJobColumns = []string{
	"id", "owner_id", "url", "topic", "requirements", "status",
	"payload_json", "result_note_id", "result_topic", "result_summary",
	"result_cards_json", "error_message", "ctime", "mtime", "expires_at",
}

type CaptureJobRepo struct {
	db *sql.DB
}

func NewCaptureJobRepo(db *sql.DB) *CaptureJobRepo {
	return &CaptureJobRepo{db: db}
}

func (r *CaptureJobRepo) Create(ctx context.Context, job *model.CaptureJob) error {
	payloadJSON, err := json.Marshal(job.Payload)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"id":                job.ID,
		"owner_id":          job.OwnerID,
		"url":               job.URL,
		"topic":             job.Topic,
		"requirements":      job.Requirements,
		"status":            job.Status,
		"payload_json":      string(payloadJSON),
		"result_note_id":    "",
		"result_topic":      "",
		"result_summary":    "",
		"result_cards_json": "[]",
		"error_message":     "",
		"ctime":             job.Ctime,
		"mtime":             job.Mtime,
		"expires_at":        job.ExpiresAt,
	}
	sqlStr, args, err := builder.BuildInsert("capture_jobs", []map[string]interface{}{data})
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

func (r *CaptureJobRepo) Get(ctx context.Context, jobID string) (*model.CaptureJob, error) {
	sqlStr, args, err := builder.BuildSelect("capture_jobs", map[string]interface{}{"id": jobID}, captureJobColumns)
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
	return scanCaptureJob(rows)
}

// TransitionStatus moves a job from one status to another only when it is
// still in the expected status. ErrPrecondition means someone else got there
// first.
func (r *CaptureJobRepo) TransitionStatus(ctx context.Context, jobID, from, to string, mtime int64) error {
	const query = `UPDATE capture_jobs SET status = $1, mtime = $2 WHERE id = $3 AND status = $4`
	result, err := r.db.ExecContext(ctx, query, to, mtime, jobID, from)
	if err != nil {
		return err
	}
	return checkPrecondition(result)
}

// CompleteWithResult finalizes a processing job with its generated output.
func (r *CaptureJobRepo) CompleteWithResult(ctx context.Context, jobID string, noteID, topic, summary string, cards []model.Card, mtime int64) error {
	cardsJSON, err := json.Marshal(cards)
	if err != nil {
		return err
	}
	const query = `UPDATE capture_jobs
		SET status = $1, result_note_id = $2, result_topic = $3, result_summary = $4, result_cards_json = $5, mtime = $6
		WHERE id = $7 AND status = $8`
	result, err := r.db.ExecContext(ctx, query,
		model.JobStatusCompleted, noteID, topic, summary, string(cardsJSON), mtime,
		jobID, model.JobStatusProcessing)
	if err != nil {
		return err
	}
	return checkPrecondition(result)
}

// FailWithError marks a processing job failed and records why.
func (r *CaptureJobRepo) FailWithError(ctx context.Context, jobID, message string, mtime int64) error {
	const query = `UPDATE capture_jobs
		SET status = $1, error_message = $2, mtime = $3
		WHERE id = $4 AND status = $5`
	result, err := r.db.ExecContext(ctx, query,
		model.JobStatusFailed, message, mtime, jobID, model.JobStatusProcessing)
	if err != nil {
		return err
	}
	return checkPrecondition(result)
}

// ListStalePending returns pending jobs not touched since olderThanMtime, so
// the sweep can re-dispatch work lost to a crash.
func (r *CaptureJobRepo) ListStalePending(ctx context.Context, olderThanMtime int64, limit int) ([]*model.CaptureJob, error) {
	const query = `SELECT id, owner_id, url, topic, requirements, status,
		payload_json, result_note_id, result_topic, result_summary,
		result_cards_json, error_message, ctime, mtime, expires_at
		FROM capture_jobs WHERE status = $1 AND mtime < $2 ORDER BY mtime ASC LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, model.JobStatusPending, olderThanMtime, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var jobs []*model.CaptureJob
	for rows.Next() {
		job, err := scanCaptureJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// DeleteExpired removes jobs whose retention window has passed.
func (r *CaptureJobRepo) DeleteExpired(ctx context.Context, now int64) (int64, error) {
	const query = `DELETE FROM capture_jobs WHERE expires_at < $1`
	result, err := r.db.ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func checkPrecondition(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return appErr.ErrPrecondition
	}
	return nil
}

func scanCaptureJob(rows *sql.Rows) (*model.CaptureJob, error) {
	var job model.CaptureJob
	var payloadJSON, cardsJSON string
	if err := rows.Scan(
		&job.ID,
		&job.OwnerID,
		&job.URL,
		&job.Topic,
		&job.Requirements,
		&job.Status,
		&payloadJSON,
		&job.ResultNoteID,
		&job.ResultTopic,
		&job.ResultSummary,
		&cardsJSON,
		&job.ErrorMessage,
		&job.Ctime,
		&job.Mtime,
		&job.ExpiresAt,
	); err != nil {
		return nil, err
	}
	if payloadJSON != "" {
		if err := json.Unmarshal([]byte(payloadJSON), &job.Payload); err != nil {
			return nil, err
		}
	}
	if cardsJSON != "" {
		if err := json.Unmarshal([]byte(cardsJSON), &job.ResultCards); err != nil {
			return nil, err
		}
	}
	return &job, nil
}
