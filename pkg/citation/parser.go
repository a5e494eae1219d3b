// Package citation parses generated answer text into plain-text and
// citation-reference segments. A citation token is a bracketed decimal
// number such as [3] and refers to the 3rd entry of the source list.
package citation

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind discriminates segment variants.
type Kind string

const (
	KindText     Kind = "text"
	KindCitation Kind = "citation"
)

// Segment is one parsed run of a paragraph: either literal text or a
// citation reference. For citations, Number holds the parsed value and Raw
// the exact matched token; Content carries the text for text segments.
type Segment struct {
	Kind    Kind
	Content string
	Number  int
	Raw     string
}

// Paragraph is an ordered run of segments between two blank lines.
type Paragraph []Segment

var citationPattern = regexp.MustCompile(`\[(\d+)\]`)

// ParseAnswer splits answer text into paragraphs and parses each one.
// Double-asterisk emphasis markers are stripped before segmentation (the
// renderer does not interpret markdown bold). Paragraphs that are blank
// after trimming are dropped.
func ParseAnswer(text string) []Paragraph {
	cleaned := strings.ReplaceAll(text, "**", "")

	var paragraphs []Paragraph
	for _, p := range strings.Split(cleaned, "\n\n") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		paragraphs = append(paragraphs, ParseParagraph(p))
	}
	return paragraphs
}

// ParseParagraph scans one paragraph left to right for citation tokens and
// returns the mixed segment sequence. Text runs between matches are kept
// verbatim; empty runs are omitted. A malformed token such as "[12" never
// matches and stays literal text.
func ParseParagraph(paragraph string) Paragraph {
	var segments Paragraph
	last := 0

	for _, m := range citationPattern.FindAllStringSubmatchIndex(paragraph, -1) {
		start, end := m[0], m[1]
		if start > last {
			segments = append(segments, Segment{
				Kind:    KindText,
				Content: paragraph[last:start],
			})
		}

		raw := paragraph[start:end]
		number, err := strconv.Atoi(paragraph[m[2]:m[3]])
		if err != nil {
			// Digits longer than an int; keep the token literal.
			segments = append(segments, Segment{Kind: KindText, Content: raw})
			last = end
			continue
		}

		segments = append(segments, Segment{
			Kind:   KindCitation,
			Number: number,
			Raw:    raw,
		})
		last = end
	}

	if last < len(paragraph) {
		segments = append(segments, Segment{
			Kind:    KindText,
			Content: paragraph[last:],
		})
	}
	return segments
}

// Numbers returns the citation numbers of a parsed answer in order of
// appearance, duplicates included.
func Numbers(paragraphs []Paragraph) []int {
	var numbers []int
	for _, p := range paragraphs {
		for _, s := range p {
			if s.Kind == KindCitation {
				numbers = append(numbers, s.Number)
			}
		}
	}
	return numbers
}
