package service

import (
	"context"

	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
	"github.com/litdeck/litdeck/internal/repo"
	"github.com/litdeck/litdeck/internal/review"
	"github.com/litdeck/litdeck/internal/srs"
)

// ReviewService grades notes and cards through the review store. The note
// row keeps a mirror of its review fields; grading first seeds the store
// from that mirror so an older deployment's data is not lost.
type ReviewService struct {
	notes *repo.NoteRepo
	store *review.Store
}

func NewReviewService(notes *repo.NoteRepo, store *review.Store) *ReviewService {
	return &ReviewService{notes: notes, store: store}
}

// GradeNote applies one grade to the note as a whole.
func (s *ReviewService) GradeNote(ctx context.Context, ownerID, noteID, gradeStr string) (*model.ReviewRecord, error) {
	grade, ok := srs.ParseGrade(gradeStr)
	if !ok {
		return nil, appErr.ErrInvalid
	}
	note, err := s.notes.Get(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}
	key := model.ReviewKey{OwnerID: ownerID, SourceType: model.SourceTypeNote, SourceID: noteID}
	if _, _, err := s.store.GetOrInit(ctx, key, snapshotFromNote(note)); err != nil {
		return nil, err
	}
	rec, err := s.store.Grade(ctx, key, grade)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GradeCard applies one grade to a single card inside a note.
func (s *ReviewService) GradeCard(ctx context.Context, ownerID, noteID, cardID, gradeStr string) (*model.ReviewRecord, error) {
	grade, ok := srs.ParseGrade(gradeStr)
	if !ok {
		return nil, appErr.ErrInvalid
	}
	note, err := s.notes.Get(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}
	found := false
	for _, card := range note.Cards {
		if card.ID == cardID {
			found = true
			break
		}
	}
	if !found {
		return nil, appErr.ErrNotFound
	}
	key := model.ReviewKey{OwnerID: ownerID, SourceType: model.SourceTypeNote, SourceID: noteID, CardID: cardID}
	if _, _, err := s.store.GetOrInit(ctx, key, nil); err != nil {
		return nil, err
	}
	rec, err := s.store.Grade(ctx, key, grade)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Reconcile merges a client-held snapshot into the note's review state, for
// clients that graded offline and replay their last known values.
func (s *ReviewService) Reconcile(ctx context.Context, ownerID, noteID string, snapshot *model.ReviewSnapshot) (model.ReviewState, error) {
	if _, err := s.notes.Get(ctx, ownerID, noteID); err != nil {
		return model.ReviewState{}, err
	}
	key := model.ReviewKey{OwnerID: ownerID, SourceType: model.SourceTypeNote, SourceID: noteID}
	return s.store.Reconcile(ctx, key, snapshot)
}

// snapshotFromNote lifts the note's mirror columns into a snapshot; zero
// values read as absent.
func snapshotFromNote(note *model.Note) *model.ReviewSnapshot {
	snapshot := &model.ReviewSnapshot{}
	if note.ReviewEaseFactor > 0 {
		v := note.ReviewEaseFactor
		snapshot.EaseFactor = &v
	}
	if note.ReviewIntervalSeconds > 0 {
		v := note.ReviewIntervalSeconds
		snapshot.IntervalSeconds = &v
	}
	if note.ReviewRepetitions > 0 {
		v := note.ReviewRepetitions
		snapshot.Repetitions = &v
	}
	if note.NextReviewAt > 0 {
		v := note.NextReviewAt
		snapshot.NextReviewAt = &v
	}
	if note.LastReviewedAt > 0 {
		v := note.LastReviewedAt
		snapshot.LastReviewedAt = &v
	}
	return snapshot
}
