package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/litdeck/litdeck/internal/ai"
	"github.com/litdeck/litdeck/internal/model"
	appErr "github.com/litdeck/litdeck/internal/pkg/errors"
	"github.com/litdeck/litdeck/internal/pkg/timeutil"
	"github.com/litdeck/litdeck/internal/repo"
)

const (
	embedTaskDocument = "RETRIEVAL_DOCUMENT"
	embedTaskQuery    = "RETRIEVAL_QUERY"

	embedInputTokenBudget = 1600
)

type NoteService struct {
	notes      *repo.NoteRepo
	embeddings *repo.NoteEmbeddingRepo
	manager    *ai.Manager
	chunker    *ai.Chunker
}

func NewNoteService(notes *repo.NoteRepo, embeddings *repo.NoteEmbeddingRepo, manager *ai.Manager, chunker *ai.Chunker) *NoteService {
	return &NoteService{notes: notes, embeddings: embeddings, manager: manager, chunker: chunker}
}

func (s *NoteService) Get(ctx context.Context, ownerID, noteID string) (*model.Note, error) {
	return s.notes.Get(ctx, ownerID, noteID)
}

func (s *NoteService) GetByURL(ctx context.Context, ownerID, sourceURL string) (*model.Note, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return nil, appErr.ErrInvalid
	}
	return s.notes.GetByURL(ctx, ownerID, sourceURL)
}

func (s *NoteService) List(ctx context.Context, ownerID string) ([]*model.NoteSummary, error) {
	notes, err := s.notes.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	summaries := make([]*model.NoteSummary, 0, len(notes))
	for _, note := range notes {
		summaries = append(summaries, &model.NoteSummary{
			NoteID:       note.NoteID,
			SourceURL:    note.SourceURL,
			Topic:        note.Topic,
			Summary:      note.Summary,
			CardCount:    len(note.Cards),
			NextReviewAt: note.NextReviewAt,
			Ctime:        note.Ctime,
			Mtime:        note.Mtime,
		})
	}
	return summaries, nil
}

// AddCard appends one hand-written card to a note.
func (s *NoteService) AddCard(ctx context.Context, ownerID, noteID string, card model.Card) (*model.Card, error) {
	card.Front = strings.TrimSpace(card.Front)
	card.Back = strings.TrimSpace(card.Back)
	if card.Front == "" || card.Back == "" {
		return nil, appErr.ErrInvalid
	}
	card.Extra = strings.TrimSpace(card.Extra)
	tags := make([]string, 0, len(card.Tags))
	for _, tag := range card.Tags {
		if t := strings.TrimSpace(tag); t != "" {
			tags = append(tags, t)
		}
	}
	card.Tags = tags
	card.ID = newID()

	note, err := s.notes.Get(ctx, ownerID, noteID)
	if err != nil {
		return nil, err
	}
	cards := append(append([]model.Card{}, note.Cards...), card)
	if err := s.notes.UpdateCards(ctx, ownerID, noteID, cards, nil, timeutil.NowMilli()); err != nil {
		return nil, err
	}
	s.reindexAsync(ownerID, noteID)
	return &card, nil
}

func (s *NoteService) DeleteCard(ctx context.Context, ownerID, noteID, cardID string) error {
	note, err := s.notes.Get(ctx, ownerID, noteID)
	if err != nil {
		return err
	}
	cards := make([]model.Card, 0, len(note.Cards))
	found := false
	for _, card := range note.Cards {
		if card.ID == cardID {
			found = true
			continue
		}
		cards = append(cards, card)
	}
	if !found {
		return appErr.ErrNotFound
	}
	if err := s.notes.UpdateCards(ctx, ownerID, noteID, cards, nil, timeutil.NowMilli()); err != nil {
		return err
	}
	s.reindexAsync(ownerID, noteID)
	return nil
}

// GenerateSummary asks the model for a fresh summary of the note's material
// and stores it on the note.
func (s *NoteService) GenerateSummary(ctx context.Context, ownerID, noteID string) (string, error) {
	if s.manager == nil {
		return "", appErr.ErrUpstream
	}
	note, err := s.notes.Get(ctx, ownerID, noteID)
	if err != nil {
		return "", err
	}
	summary, err := s.manager.Summarize(ctx, noteText(note))
	if err != nil {
		return "", appErr.ErrUpstream
	}
	if err := s.notes.UpdateSummary(ctx, ownerID, noteID, summary, timeutil.NowMilli()); err != nil {
		return "", err
	}
	s.reindexAsync(ownerID, noteID)
	return summary, nil
}

// SemanticSearch ranks the owner's notes by vector distance to the query.
func (s *NoteService) SemanticSearch(ctx context.Context, ownerID, query string, limit int) ([]*model.NoteSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErr.ErrInvalid
	}
	if s.manager == nil || s.embeddings == nil {
		return nil, appErr.ErrUpstream
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	vector, err := s.manager.Embed(ctx, query, embedTaskQuery)
	if err != nil {
		return nil, appErr.ErrUpstream
	}
	ids, err := s.embeddings.SearchNearest(ctx, ownerID, vector, limit)
	if err != nil {
		return nil, err
	}
	summaries := make([]*model.NoteSummary, 0, len(ids))
	for _, id := range ids {
		note, err := s.notes.Get(ctx, ownerID, id)
		if appErr.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, &model.NoteSummary{
			NoteID:       note.NoteID,
			SourceURL:    note.SourceURL,
			Topic:        note.Topic,
			Summary:      note.Summary,
			CardCount:    len(note.Cards),
			NextReviewAt: note.NextReviewAt,
			Ctime:        note.Ctime,
			Mtime:        note.Mtime,
		})
	}
	return summaries, nil
}

// Reindex refreshes a note's embedding when its content changed.
func (s *NoteService) Reindex(ctx context.Context, ownerID, noteID string) error {
	if s.manager == nil || s.embeddings == nil {
		return nil
	}
	note, err := s.notes.Get(ctx, ownerID, noteID)
	if err != nil {
		return err
	}
	text := s.embeddingInput(ctx, note)
	if text == "" {
		return nil
	}
	sum := sha256.Sum256([]byte(text))
	hash := hex.EncodeToString(sum[:])
	prev, ok, err := s.embeddings.GetHash(ctx, noteID)
	if err != nil {
		return err
	}
	if ok && prev == hash {
		return nil
	}
	vector, err := s.manager.Embed(ctx, text, embedTaskDocument)
	if err != nil {
		return err
	}
	return s.embeddings.Save(ctx, &model.NoteEmbedding{
		NoteID:      noteID,
		OwnerID:     ownerID,
		Embedding:   vector,
		ContentHash: hash,
		Mtime:       timeutil.NowMilli(),
	})
}

func (s *NoteService) reindexAsync(ownerID, noteID string) {
	if s.manager == nil || s.embeddings == nil {
		return
	}
	go func() {
		ctx := context.Background()
		if err := s.Reindex(ctx, ownerID, noteID); err != nil {
			logutil.GetLogger(ctx).Warn("note reindex failed",
				zap.String("note_id", noteID), zap.Error(err))
		}
	}()
}

// embeddingInput flattens a note to markdown and keeps the leading chunks so
// the text stays inside the embedding budget.
func (s *NoteService) embeddingInput(ctx context.Context, note *model.Note) string {
	text := noteText(note)
	if s.chunker == nil {
		return text
	}
	chunks := s.chunker.Chunk(ctx, text)
	var sb strings.Builder
	budget := embedInputTokenBudget
	for _, chunk := range chunks {
		if chunk.TokenCount > budget {
			break
		}
		budget -= chunk.TokenCount
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(chunk.Content)
	}
	if sb.Len() == 0 && len(chunks) > 0 {
		return chunks[0].Content
	}
	return sb.String()
}

func noteText(note *model.Note) string {
	var sb strings.Builder
	if note.Topic != "" {
		sb.WriteString("# " + note.Topic + "\n\n")
	}
	if note.Summary != "" {
		sb.WriteString(note.Summary + "\n\n")
	}
	for _, card := range note.Cards {
		sb.WriteString("- " + card.Front + "\n")
		sb.WriteString("  " + card.Back + "\n")
	}
	return strings.TrimSpace(sb.String())
}
