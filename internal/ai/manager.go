package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/litdeck/litdeck/internal/model"
	"github.com/litdeck/litdeck/internal/pkg/textutil"
)

type ManagerConfig struct {
	Timeout       int
	MaxInputChars int
}

// Stack is one generation result: a topic, a short summary and the
// flashcards distilled from the captured content.
type Stack struct {
	Topic   string
	Summary string
	Cards   []model.Card
}

type stackPayload struct {
	Topic   string        `json:"topic"`
	Summary string        `json:"summary"`
	Cards   []cardPayload `json:"cards"`
}

type cardPayload struct {
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Extra string   `json:"extra"`
	Tags  []string `json:"tags"`
}

type Manager struct {
	generator  IGenerator
	summarizer IGenerator
	embedder   IEmbedder
	cfg        ManagerConfig
}

func NewManager(generator IGenerator, summarizer IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	return &Manager{
		generator:  generator,
		summarizer: summarizer,
		embedder:   embedder,
		cfg:        cfg,
	}
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	return m.embedder.Embed(ctx, text, taskType)
}

// BuildStack turns captured page content into a card stack. The model is
// asked for strict JSON; the response is still defensively unfenced and
// re-parsed because models wrap output in markdown more often than not.
func (m *Manager) BuildStack(ctx context.Context, content, topic, requirements string) (*Stack, error) {
	if m.generator == nil {
		return nil, fmt.Errorf("generator not configured")
	}
	prompt := buildStackPrompt(m.truncate(content), topic, requirements)
	result, err := m.generateText(ctx, m.generator, prompt)
	if err != nil {
		return nil, err
	}
	return parseStack(result)
}

func (m *Manager) Summarize(ctx context.Context, text string) (string, error) {
	gen := m.summarizer
	if gen == nil {
		gen = m.generator
	}
	if gen == nil {
		return "", fmt.Errorf("summarizer not configured")
	}
	prompt := fmt.Sprintf(`You are a helpful assistant.
Summarize the following study note into a concise paragraph (2-4 sentences).
- Use the same language as the content.
- Keep factual accuracy and key points.
- Output ONLY the summary text.

CONTENT:
%s`, m.truncate(text))
	return m.generateText(ctx, gen, prompt)
}

func (m *Manager) generateText(ctx context.Context, gen IGenerator, prompt string) (string, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(m.cfg.Timeout)*time.Second)
		defer cancel()
	}
	resp, err := gen.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(resp)
	if text == "" {
		return "", fmt.Errorf("empty ai response")
	}
	return text, nil
}

func (m *Manager) truncate(text string) string {
	return textutil.TruncateBytes(text, m.cfg.MaxInputChars)
}

func (m *Manager) EmbeddingModelName() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func buildStackPrompt(content, topic, requirements string) string {
	var sb strings.Builder
	sb.WriteString(`You are a study assistant that turns web content into spaced-repetition flashcards.
From the content below, produce a JSON object with this exact shape:
{"topic": "...", "summary": "...", "cards": [{"front": "...", "back": "...", "extra": "...", "tags": ["..."]}]}
- "topic" is a short title for the material.
- "summary" is 2-4 sentences.
- Each card tests ONE atomic fact or concept; front is the question, back is the answer.
- "extra" holds optional context and may be empty; "tags" may be empty.
- Produce between 3 and 20 cards.
- Use the same language as the content.
- Output ONLY the JSON object. No markdown fences, no commentary.
`)
	if topic != "" {
		sb.WriteString("\nThe user wants the cards focused on this topic: " + topic + "\n")
	}
	if requirements != "" {
		sb.WriteString("\nAdditional user requirements: " + requirements + "\n")
	}
	sb.WriteString("\nCONTENT:\n")
	sb.WriteString(content)
	return sb.String()
}

func parseStack(output string) (*Stack, error) {
	clean := stripFences(output)
	start := strings.Index(clean, "{")
	end := strings.LastIndex(clean, "}")
	if start >= 0 && end > start {
		clean = clean[start : end+1]
	}
	var payload stackPayload
	if err := json.Unmarshal([]byte(clean), &payload); err != nil {
		return nil, fmt.Errorf("parse stack: %w", err)
	}
	stack := &Stack{
		Topic:   strings.TrimSpace(payload.Topic),
		Summary: strings.TrimSpace(payload.Summary),
	}
	for _, card := range payload.Cards {
		front := strings.TrimSpace(card.Front)
		back := strings.TrimSpace(card.Back)
		if front == "" || back == "" {
			continue
		}
		tags := make([]string, 0, len(card.Tags))
		for _, tag := range card.Tags {
			if t := strings.TrimSpace(tag); t != "" {
				tags = append(tags, t)
			}
		}
		stack.Cards = append(stack.Cards, model.Card{
			Front: front,
			Back:  back,
			Extra: strings.TrimSpace(card.Extra),
			Tags:  tags,
		})
	}
	if len(stack.Cards) == 0 {
		return nil, fmt.Errorf("no valid cards in response")
	}
	return stack, nil
}

func stripFences(output string) string {
	clean := strings.TrimSpace(output)
	clean = strings.TrimPrefix(clean, "```json")
	clean = strings.TrimPrefix(clean, "```")
	clean = strings.TrimSuffix(clean, "```")
	clean = strings.TrimSpace(clean)
	// Some models wrap the whole object in a stray pair of quotes.
	if len(clean) >= 2 && clean[0] == '"' && clean[len(clean)-1] == '"' && strings.Contains(clean, "{") {
		clean = strings.TrimSpace(clean[1 : len(clean)-1])
	}
	return clean
}
