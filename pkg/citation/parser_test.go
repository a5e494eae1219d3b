package citation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParagraph(t *testing.T) {
	tests := []struct {
		name      string
		paragraph string
		want      Paragraph
	}{
		{
			name:      "plain text only",
			paragraph: "No references here.",
			want: Paragraph{
				{Kind: KindText, Content: "No references here."},
			},
		},
		{
			name:      "interleaved citations",
			paragraph: "The sky is blue [1]. It rains [2].",
			want: Paragraph{
				{Kind: KindText, Content: "The sky is blue "},
				{Kind: KindCitation, Number: 1, Raw: "[1]"},
				{Kind: KindText, Content: ". It rains "},
				{Kind: KindCitation, Number: 2, Raw: "[2]"},
				{Kind: KindText, Content: "."},
			},
		},
		{
			name:      "citation at start",
			paragraph: "[3] leads",
			want: Paragraph{
				{Kind: KindCitation, Number: 3, Raw: "[3]"},
				{Kind: KindText, Content: " leads"},
			},
		},
		{
			name:      "citation at end",
			paragraph: "trails [12]",
			want: Paragraph{
				{Kind: KindText, Content: "trails "},
				{Kind: KindCitation, Number: 12, Raw: "[12]"},
			},
		},
		{
			name:      "adjacent citations",
			paragraph: "[1][2]",
			want: Paragraph{
				{Kind: KindCitation, Number: 1, Raw: "[1]"},
				{Kind: KindCitation, Number: 2, Raw: "[2]"},
			},
		},
		{
			name:      "unclosed bracket stays literal",
			paragraph: "broken [12 token",
			want: Paragraph{
				{Kind: KindText, Content: "broken [12 token"},
			},
		},
		{
			name:      "non-numeric bracket stays literal",
			paragraph: "see [ref] for details",
			want: Paragraph{
				{Kind: KindText, Content: "see [ref] for details"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseParagraph(tt.paragraph))
		})
	}
}

func TestParseAnswerStripsEmphasis(t *testing.T) {
	paragraphs := ParseAnswer("**Bold** claim [1]")
	require.Len(t, paragraphs, 1)
	assert.Equal(t, Paragraph{
		{Kind: KindText, Content: "Bold claim "},
		{Kind: KindCitation, Number: 1, Raw: "[1]"},
	}, paragraphs[0])
}

func TestParseAnswerParagraphSplit(t *testing.T) {
	paragraphs := ParseAnswer("First [1].\n\n\n\nSecond [2].")
	require.Len(t, paragraphs, 2)
	assert.Equal(t, []int{1, 2}, Numbers(paragraphs))
}

func TestParseAnswerDropsBlankParagraphs(t *testing.T) {
	paragraphs := ParseAnswer("only one\n\n   \n\n")
	require.Len(t, paragraphs, 1)
	assert.Equal(t, "only one", paragraphs[0][0].Content)
}

func TestParseAnswerEmpty(t *testing.T) {
	assert.Empty(t, ParseAnswer(""))
	assert.Empty(t, ParseAnswer("\n\n"))
}

func TestParseIsIdempotentOnCleanText(t *testing.T) {
	input := "Alpha [1] beta [2] gamma."
	first := ParseParagraph(input)

	// Re-render the parsed form and parse again.
	var rendered string
	for _, s := range first {
		if s.Kind == KindCitation {
			rendered += s.Raw
			continue
		}
		rendered += s.Content
	}
	assert.Equal(t, input, rendered)
	assert.Equal(t, first, ParseParagraph(rendered))
}
