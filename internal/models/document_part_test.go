package models

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTree() DocumentPart {
	return &ArticlePart{
		Title: "Quarterly Report",
		Parts: []DocumentPart{
			&TextPart{Text: "Summary of the quarter."},
			&TablePart{
				Caption: "Revenue",
				Rows: []*TableRowPart{
					{Cells: []string{"Region", "Total"}},
					{Cells: []string{"EMEA", "1.2M"}},
				},
			},
			&LinkPart{URI: "https://example.com/details", Text: "Details"},
			&FilePart{URI: "https://example.com/q3.pdf", Name: "q3.pdf", ContentType: "application/pdf", Size: 52100},
		},
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	encoded, err := EncodePart(sampleTree())
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"kind":"article"`)

	decoded, err := DecodePart(encoded)
	require.NoError(t, err)

	article, ok := decoded.(*ArticlePart)
	require.True(t, ok)
	assert.Equal(t, "Quarterly Report", article.Title)
	require.Len(t, article.Parts, 4)

	assert.Equal(t, PartKindText, article.Parts[0].Kind())

	table, ok := article.Parts[1].(*TablePart)
	require.True(t, ok)
	assert.Equal(t, "Revenue", table.Caption)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"EMEA", "1.2M"}, table.Rows[1].Cells)

	link, ok := article.Parts[2].(*LinkPart)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/details", link.URI)

	file, ok := article.Parts[3].(*FilePart)
	require.True(t, ok)
	assert.Equal(t, int64(52100), file.Size)
}

func TestDecodeUnknownDiscriminatorFails(t *testing.T) {
	_, err := DecodePart([]byte(`{"kind":"carousel","items":[]}`))
	require.Error(t, err)
	assert.Equal(t, ErrorKindParse, ClassifyError(err))
	assert.Contains(t, err.Error(), "carousel")
}

func TestDecodeMissingDiscriminatorFails(t *testing.T) {
	_, err := DecodePart([]byte(`{"title":"No Kind Here","parts":[]}`))
	require.Error(t, err)
	assert.Equal(t, ErrorKindParse, ClassifyError(err))
}

func TestDecodeUnknownNestedDiscriminatorFails(t *testing.T) {
	data := []byte(`{"kind":"article","title":"Outer","parts":[{"kind":"widget"}]}`)
	_, err := DecodePart(data)
	require.Error(t, err, "an unknown kind anywhere in the tree fails the whole decode")
}

func TestDecodeTableRejectsNonRowChild(t *testing.T) {
	data := []byte(`{"kind":"table","rows":[{"kind":"text","text":"not a row"}]}`)
	_, err := DecodePart(data)
	require.Error(t, err)
}

func TestBriefSummary(t *testing.T) {
	summary := sampleTree().BriefSummary()
	assert.Contains(t, summary, "Quarterly Report")
	assert.Contains(t, summary, "Revenue")
	assert.False(t, IsMalformedSummary(summary))
}

func TestBriefSummaryTruncatesOnRuneBoundary(t *testing.T) {
	// 39 ASCII bytes followed by a three-byte rune straddling the 40-byte
	// preview cut; the truncated preview must stay valid UTF-8
	part := &TextPart{Text: strings.Repeat("a", 39) + "日本語の本文が続きます"}

	summary := part.BriefSummary()
	assert.True(t, utf8.ValidString(summary), "preview must not split a rune")
	assert.Contains(t, summary, "...")
}

func TestBriefSummaryDepthCap(t *testing.T) {
	// Nest articles beyond the recursion cap; the summary must degrade to a
	// malformed marker instead of recursing forever
	root := &ArticlePart{Title: "level-0"}
	current := root
	for i := 0; i < maxSummaryDepth+2; i++ {
		child := &ArticlePart{Title: "nested"}
		current.Parts = []DocumentPart{child}
		current = child
	}
	current.Parts = []DocumentPart{&TextPart{Text: "leaf"}}

	summary := root.BriefSummary()
	assert.True(t, IsMalformedSummary(summary))
}

func TestCollectLinks(t *testing.T) {
	links := CollectLinks(sampleTree())
	require.Len(t, links, 1)
	assert.Equal(t, "https://example.com/details", links[0].URI)

	assert.Empty(t, CollectLinks(&TextPart{Text: "no links"}))
	assert.Empty(t, CollectLinks(nil))
}
