package ai

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseStackPlainJSON(t *testing.T) {
	raw := `{"topic":"Go slices","summary":"How slices work.","cards":[{"front":"What backs a slice?","back":"An array.","tags":["go"]},{"front":"len vs cap?","back":"Length vs capacity.","extra":"cap >= len"}]}`
	stack, err := parseStack(raw)
	require.NoError(t, err)
	require.Equal(t, "Go slices", stack.Topic)
	require.Len(t, stack.Cards, 2)
	require.Equal(t, "An array.", stack.Cards[0].Back)
	require.Equal(t, "cap >= len", stack.Cards[1].Extra)
}

func TestParseStackStripsFences(t *testing.T) {
	raw := "```json\n{\"topic\":\"t\",\"summary\":\"s\",\"cards\":[{\"front\":\"f\",\"back\":\"b\"}]}\n```"
	stack, err := parseStack(raw)
	require.NoError(t, err)
	require.Len(t, stack.Cards, 1)
}

func TestParseStackIgnoresSurroundingProse(t *testing.T) {
	raw := `Here you go:
{"topic":"t","summary":"s","cards":[{"front":"f","back":"b"}]}
Hope this helps!`
	stack, err := parseStack(raw)
	require.NoError(t, err)
	require.Len(t, stack.Cards, 1)
}

func TestParseStackDropsInvalidCards(t *testing.T) {
	raw := `{"topic":"t","summary":"s","cards":[{"front":"  ","back":"b"},{"front":"f","back":""},{"front":"keep","back":"this","tags":[" go ",""]}]}`
	stack, err := parseStack(raw)
	require.NoError(t, err)
	require.Len(t, stack.Cards, 1)
	require.Equal(t, "keep", stack.Cards[0].Front)
	require.Equal(t, []string{"go"}, stack.Cards[0].Tags)
}

func TestParseStackNoCards(t *testing.T) {
	_, err := parseStack(`{"topic":"t","summary":"s","cards":[]}`)
	require.Error(t, err)

	_, err = parseStack(`not json at all`)
	require.Error(t, err)
}

func TestChunkerSplitsOnHeadings(t *testing.T) {
	md := `# Part one

Some intro text about the first part.

# Part two

Details of the second part.

` + "```go\nfunc main() {}\n```"
	chunks := NewChunker().Chunk(context.Background(), md)
	require.GreaterOrEqual(t, len(chunks), 2)
	require.Contains(t, chunks[0].Content, "Part one")
	for i, chunk := range chunks {
		require.Equal(t, i, chunk.Position)
		require.Greater(t, chunk.TokenCount, 0)
	}
}
