package ai

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"go.uber.org/zap"
)

// Chunk is one embedding-sized slice of a markdown document.
type Chunk struct {
	Content    string
	TokenCount int
	Position   int
}

const (
	chunkTokenBudget  = 400
	chunkOverlapLimit = 80
)

// Chunker splits markdown along heading and block boundaries so each piece
// stays inside an embedding-friendly token budget. Adjacent text chunks keep
// a small overlap so context survives the cut.
type Chunker struct{}

func NewChunker() *Chunker {
	return &Chunker{}
}

func (c *Chunker) Chunk(ctx context.Context, markdown string) []Chunk {
	logger := logutil.GetLogger(ctx)
	md := goldmark.New()
	reader := text.NewReader([]byte(markdown))
	doc := md.Parser().Parse(reader)

	var chunks []Chunk
	var current []string
	var currentTokens int
	var currentHeading string
	position := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		content := strings.Join(current, "\n\n")
		if currentHeading != "" {
			content = "Heading: " + currentHeading + "\n" + content
		}
		chunks = append(chunks, Chunk{
			Content:    content,
			TokenCount: estimateTokens(content),
			Position:   position,
		})
		if len(current) > 1 {
			overlapTokens := 0
			var overlap []string
			for i := len(current) - 1; i >= 0; i-- {
				t := estimateTokens(current[i])
				if overlapTokens+t > chunkOverlapLimit {
					break
				}
				overlapTokens += t
				overlap = append([]string{current[i]}, overlap...)
			}
			current = overlap
			currentTokens = overlapTokens
		} else {
			current = nil
			currentTokens = 0
		}
		position++
	}

	for node := doc.FirstChild(); node != nil; node = node.NextSibling() {
		switch n := node.(type) {
		case *ast.Heading:
			if n.Level == 1 || n.Level == 2 {
				flush()
				currentHeading = string(n.Text(reader.Source()))
			} else {
				txt := string(n.Text(reader.Source()))
				current = append(current, txt)
				currentTokens += estimateTokens(txt)
			}
		case *ast.FencedCodeBlock:
			lang := string(n.Language(reader.Source()))
			var code strings.Builder
			for i := 0; i < n.Lines().Len(); i++ {
				line := n.Lines().At(i)
				code.Write(line.Value(reader.Source()))
			}
			block := "```" + lang + "\n" + code.String() + "\n```"
			tokens := estimateTokens(block)
			if currentTokens+tokens > chunkTokenBudget {
				flush()
			}
			current = append(current, block)
			currentTokens += tokens
		default:
			txt := extractText(node, reader.Source())
			if txt == "" {
				continue
			}
			tokens := estimateTokens(txt)
			if currentTokens+tokens > chunkTokenBudget {
				flush()
			}
			current = append(current, txt)
			currentTokens += tokens
		}
	}
	flush()
	logger.Debug("markdown chunking completed", zap.Int("size", len(markdown)), zap.Int("chunks", len(chunks)))
	return chunks
}

func estimateTokens(text string) int {
	// Rough heuristic: one token per word for latin text, one per rune for CJK.
	count := 0
	for _, r := range text {
		if r > 127 {
			count++
		}
	}
	count += len(strings.Fields(text))
	if count == 0 && len(text) > 0 {
		return 1
	}
	return count
}

func extractText(n ast.Node, source []byte) string {
	var sb strings.Builder
	ast.Walk(n, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if node.Kind() == ast.KindText {
			sb.Write(node.(*ast.Text).Segment.Value(source))
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(sb.String())
}
