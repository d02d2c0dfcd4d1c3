// -----------------------------------------------------------------------
// Document Part Model - tagged variant tree for parsed page content
// -----------------------------------------------------------------------

package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

// PartKind is the discriminator tag identifying a concrete DocumentPart variant
type PartKind string

const (
	PartKindAutodetect PartKind = "autodetect"
	PartKindArticle    PartKind = "article"
	PartKindTable      PartKind = "table"
	PartKindTableRow   PartKind = "table_row"
	PartKindLink       PartKind = "link"
	PartKindFile       PartKind = "file"
	PartKindText       PartKind = "text"
)

// maxSummaryDepth bounds recursive summaries so a malformed or cyclic tree
// degrades to a marker string instead of exhausting the stack.
const maxSummaryDepth = 8

// DocumentPart is the closed set of parsed content variants. Composite parts
// (article, table) enumerate children; leaves return nil.
type DocumentPart interface {
	// Kind returns the discriminator tag for serialization dispatch
	Kind() PartKind

	// BriefSummary returns a short human-readable description for logs and
	// diagnostics. Pure and side-effect free.
	BriefSummary() string

	// Children returns the nested parts of a composite variant, nil for leaves
	Children() []DocumentPart
}

// AutodetectPart is the root placeholder used when the expected content shape
// is unknown; it resolves to a concrete variant at parse time.
type AutodetectPart struct{}

func (p *AutodetectPart) Kind() PartKind           { return PartKindAutodetect }
func (p *AutodetectPart) BriefSummary() string     { return "autodetect" }
func (p *AutodetectPart) Children() []DocumentPart { return nil }

// ArticlePart represents long-form page content with mixed children
type ArticlePart struct {
	Title string         `json:"title,omitempty"`
	Parts []DocumentPart `json:"-"`
}

func (p *ArticlePart) Kind() PartKind           { return PartKindArticle }
func (p *ArticlePart) Children() []DocumentPart { return p.Parts }

func (p *ArticlePart) BriefSummary() string {
	return p.briefSummary(0)
}

func (p *ArticlePart) briefSummary(depth int) string {
	if depth >= maxSummaryDepth {
		return malformedSummary
	}
	title := p.Title
	if title == "" {
		title = "untitled"
	}
	return fmt.Sprintf("article %q (%s)", title, summarizeChildren(p.Parts, depth+1))
}

// TablePart represents tabular content composed of rows
type TablePart struct {
	Caption string          `json:"caption,omitempty"`
	Rows    []*TableRowPart `json:"-"`
}

func (p *TablePart) Kind() PartKind { return PartKindTable }

func (p *TablePart) Children() []DocumentPart {
	children := make([]DocumentPart, 0, len(p.Rows))
	for _, row := range p.Rows {
		children = append(children, row)
	}
	return children
}

func (p *TablePart) BriefSummary() string {
	return p.briefSummary(0)
}

func (p *TablePart) briefSummary(depth int) string {
	if depth >= maxSummaryDepth {
		return malformedSummary
	}
	if p.Caption != "" {
		return fmt.Sprintf("table %q with %d rows", p.Caption, len(p.Rows))
	}
	return fmt.Sprintf("table with %d rows", len(p.Rows))
}

// TableRowPart represents a single table row of cell values
type TableRowPart struct {
	Cells []string `json:"cells"`
}

func (p *TableRowPart) Kind() PartKind           { return PartKindTableRow }
func (p *TableRowPart) Children() []DocumentPart { return nil }

func (p *TableRowPart) BriefSummary() string {
	return fmt.Sprintf("row with %d cells", len(p.Cells))
}

// LinkPart represents a discovered hyperlink. Both fields are optional.
type LinkPart struct {
	URI  string `json:"uri,omitempty"`
	Text string `json:"text,omitempty"`
}

func (p *LinkPart) Kind() PartKind           { return PartKindLink }
func (p *LinkPart) Children() []DocumentPart { return nil }

func (p *LinkPart) BriefSummary() string {
	switch {
	case p.URI != "" && p.Text != "":
		return fmt.Sprintf("link %q -> %s", p.Text, p.URI)
	case p.URI != "":
		return "link -> " + p.URI
	case p.Text != "":
		return fmt.Sprintf("link %q (no uri)", p.Text)
	default:
		return "empty link"
	}
}

// FilePart represents a downloadable file reference
type FilePart struct {
	URI         string `json:"uri,omitempty"`
	Name        string `json:"name,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Size        int64  `json:"size,omitempty"`
}

func (p *FilePart) Kind() PartKind           { return PartKindFile }
func (p *FilePart) Children() []DocumentPart { return nil }

func (p *FilePart) BriefSummary() string {
	name := p.Name
	if name == "" {
		name = p.URI
	}
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("file %q (%d bytes)", name, p.Size)
}

// TextPart represents a plain text fragment
type TextPart struct {
	Text string `json:"text"`
}

func (p *TextPart) Kind() PartKind           { return PartKindText }
func (p *TextPart) Children() []DocumentPart { return nil }

func (p *TextPart) BriefSummary() string {
	const maxPreview = 40
	text := strings.TrimSpace(p.Text)
	if len(text) > maxPreview {
		// Back up to a rune boundary so the preview stays valid UTF-8
		cut := maxPreview
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut] + "..."
	}
	return fmt.Sprintf("text %q", text)
}

const malformedSummary = "[malformed: summary depth limit exceeded]"

// summarizeChildren joins child summaries, recursing into composites with depth
// tracking so a malformed tree surfaces as a marker rather than a crash.
func summarizeChildren(parts []DocumentPart, depth int) string {
	if len(parts) == 0 {
		return "empty"
	}
	if depth >= maxSummaryDepth {
		return malformedSummary
	}

	summaries := make([]string, 0, len(parts))
	for _, part := range parts {
		switch v := part.(type) {
		case *ArticlePart:
			summaries = append(summaries, v.briefSummary(depth))
		case *TablePart:
			summaries = append(summaries, v.briefSummary(depth))
		default:
			summaries = append(summaries, part.BriefSummary())
		}
	}
	return strings.Join(summaries, ", ")
}

// IsMalformedSummary reports whether a summary hit the recursion depth cap
func IsMalformedSummary(summary string) bool {
	return strings.Contains(summary, malformedSummary)
}

// partEnvelope carries the discriminator alongside the raw variant payload
type partEnvelope struct {
	Kind PartKind `json:"kind"`
}

// EncodePart serializes a DocumentPart to JSON with its discriminator tag.
// Every encoded instance carries the "kind" field.
func EncodePart(part DocumentPart) ([]byte, error) {
	if part == nil {
		return nil, fmt.Errorf("cannot encode nil document part")
	}

	switch v := part.(type) {
	case *AutodetectPart:
		return json.Marshal(struct {
			Kind PartKind `json:"kind"`
		}{v.Kind()})
	case *ArticlePart:
		children := make([]json.RawMessage, 0, len(v.Parts))
		for _, child := range v.Parts {
			encoded, err := EncodePart(child)
			if err != nil {
				return nil, err
			}
			children = append(children, encoded)
		}
		return json.Marshal(struct {
			Kind  PartKind          `json:"kind"`
			Title string            `json:"title,omitempty"`
			Parts []json.RawMessage `json:"parts"`
		}{v.Kind(), v.Title, children})
	case *TablePart:
		rows := make([]json.RawMessage, 0, len(v.Rows))
		for _, row := range v.Rows {
			encoded, err := EncodePart(row)
			if err != nil {
				return nil, err
			}
			rows = append(rows, encoded)
		}
		return json.Marshal(struct {
			Kind    PartKind          `json:"kind"`
			Caption string            `json:"caption,omitempty"`
			Rows    []json.RawMessage `json:"rows"`
		}{v.Kind(), v.Caption, rows})
	case *TableRowPart:
		return json.Marshal(struct {
			Kind  PartKind `json:"kind"`
			Cells []string `json:"cells"`
		}{v.Kind(), v.Cells})
	case *LinkPart:
		return json.Marshal(struct {
			Kind PartKind `json:"kind"`
			URI  string   `json:"uri,omitempty"`
			Text string   `json:"text,omitempty"`
		}{v.Kind(), v.URI, v.Text})
	case *FilePart:
		return json.Marshal(struct {
			Kind        PartKind `json:"kind"`
			URI         string   `json:"uri,omitempty"`
			Name        string   `json:"name,omitempty"`
			ContentType string   `json:"content_type,omitempty"`
			Size        int64    `json:"size,omitempty"`
		}{v.Kind(), v.URI, v.Name, v.ContentType, v.Size})
	case *TextPart:
		return json.Marshal(struct {
			Kind PartKind `json:"kind"`
			Text string   `json:"text"`
		}{v.Kind(), v.Text})
	default:
		return nil, fmt.Errorf("unknown document part type %T", part)
	}
}

// DecodePart deserializes a DocumentPart, dispatching purely on the "kind"
// discriminator. An unknown or missing discriminator is a hard decode failure,
// never a default variant.
func DecodePart(data []byte) (DocumentPart, error) {
	var envelope partEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, NewCrawlError(ErrorKindParse, "decode document part", err)
	}
	if envelope.Kind == "" {
		return nil, NewCrawlError(ErrorKindParse, "decode document part",
			fmt.Errorf("missing discriminator field %q", "kind"))
	}

	switch envelope.Kind {
	case PartKindAutodetect:
		return &AutodetectPart{}, nil
	case PartKindArticle:
		var raw struct {
			Title string            `json:"title"`
			Parts []json.RawMessage `json:"parts"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, NewCrawlError(ErrorKindParse, "decode article part", err)
		}
		part := &ArticlePart{Title: raw.Title}
		for _, child := range raw.Parts {
			decoded, err := DecodePart(child)
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, decoded)
		}
		return part, nil
	case PartKindTable:
		var raw struct {
			Caption string            `json:"caption"`
			Rows    []json.RawMessage `json:"rows"`
		}
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, NewCrawlError(ErrorKindParse, "decode table part", err)
		}
		part := &TablePart{Caption: raw.Caption}
		for _, rowData := range raw.Rows {
			decoded, err := DecodePart(rowData)
			if err != nil {
				return nil, err
			}
			row, ok := decoded.(*TableRowPart)
			if !ok {
				return nil, NewCrawlError(ErrorKindParse, "decode table part",
					fmt.Errorf("table row has kind %q, want %q", decoded.Kind(), PartKindTableRow))
			}
			part.Rows = append(part.Rows, row)
		}
		return part, nil
	case PartKindTableRow:
		var part TableRowPart
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, NewCrawlError(ErrorKindParse, "decode table row part", err)
		}
		return &part, nil
	case PartKindLink:
		var part LinkPart
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, NewCrawlError(ErrorKindParse, "decode link part", err)
		}
		return &part, nil
	case PartKindFile:
		var part FilePart
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, NewCrawlError(ErrorKindParse, "decode file part", err)
		}
		return &part, nil
	case PartKindText:
		var part TextPart
		if err := json.Unmarshal(data, &part); err != nil {
			return nil, NewCrawlError(ErrorKindParse, "decode text part", err)
		}
		return &part, nil
	default:
		return nil, NewCrawlError(ErrorKindParse, "decode document part",
			fmt.Errorf("unknown discriminator %q", envelope.Kind))
	}
}

// CollectLinks walks a part tree and returns every LinkPart found, in document
// order. The walk is depth-bounded the same way summaries are.
func CollectLinks(root DocumentPart) []*LinkPart {
	var links []*LinkPart
	collectLinks(root, 0, &links)
	return links
}

func collectLinks(part DocumentPart, depth int, out *[]*LinkPart) {
	if part == nil || depth >= maxSummaryDepth {
		return
	}
	if link, ok := part.(*LinkPart); ok {
		*out = append(*out, link)
		return
	}
	for _, child := range part.Children() {
		collectLinks(child, depth+1, out)
	}
}
