// -----------------------------------------------------------------------
// Parser - HTML to document part tree conversion
// -----------------------------------------------------------------------

package crawler

import (
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/common"
	"github.com/ternarybob/spinneret/internal/models"
)

// Parser converts fetched HTML into a typed document part tree. The expected
// part kind steers extraction; autodetect resolves to a concrete kind so the
// resulting tree never contains an autodetect node.
type Parser struct {
	logger arbor.ILogger
}

// NewParser creates a new document parser
func NewParser(logger arbor.ILogger) *Parser {
	return &Parser{logger: logger}
}

// blockPageMarkers are phrases that identify an anti-bot or access-denied
// interstitial rather than real content
var blockPageMarkers = []string{
	"access denied",
	"are you a robot",
	"captcha",
	"attention required",
	"verify you are human",
	"request blocked",
	"enable javascript and cookies",
}

// Parse builds a document part tree from HTML. It returns the root part plus
// an anomaly flag when the page looks suspicious; both can be non-nil at once
// since an anomalous page still parses. A nil root only occurs with an error.
func (p *Parser) Parse(htmlContent, sourceURI string, expected models.PartKind) (models.DocumentPart, *models.Anomaly, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return nil, nil, models.NewCrawlError(models.ErrorKindParse, "parse html", err)
	}

	anomaly := p.detectAnomaly(doc)

	root, err := p.buildTree(doc, sourceURI, expected)
	if err != nil {
		return nil, anomaly, err
	}

	p.logger.Debug().
		Str("uri", sourceURI).
		Str("expected", string(expected)).
		Str("root_kind", string(root.Kind())).
		Msg("Document parsed")

	return root, anomaly, nil
}

func (p *Parser) buildTree(doc *goquery.Document, sourceURI string, expected models.PartKind) (models.DocumentPart, error) {
	switch expected {
	case models.PartKindArticle:
		return p.parseArticle(doc, sourceURI)
	case models.PartKindTable:
		return p.parseTables(doc, sourceURI)
	case models.PartKindLink:
		return p.parseLinkIndex(doc, sourceURI)
	case models.PartKindText:
		return &models.TextPart{Text: p.extractText(doc)}, nil
	case models.PartKindAutodetect, models.PartKind(""):
		return p.autodetect(doc, sourceURI)
	default:
		// File and table_row are never valid as an expected root kind
		return nil, models.NewCrawlError(models.ErrorKindParse, "unsupported expected part kind "+string(expected), nil)
	}
}

// autodetect picks the dominant structure: table-heavy pages become tables,
// everything else parses as an article
func (p *Parser) autodetect(doc *goquery.Document, sourceURI string) (models.DocumentPart, error) {
	tableRows := doc.Find("table tr").Length()
	paragraphs := doc.Find("p").Length()

	if tableRows > 0 && tableRows > paragraphs {
		return p.parseTables(doc, sourceURI)
	}
	return p.parseArticle(doc, sourceURI)
}

// parseArticle extracts the main content as markdown text plus the page's
// links, under an article root
func (p *Parser) parseArticle(doc *goquery.Document, sourceURI string) (models.DocumentPart, error) {
	title := p.extractTitle(doc)
	links := p.extractLinks(doc, sourceURI)

	content := p.mainContent(doc)
	contentHTML, err := content.Html()
	if err != nil {
		return nil, models.NewCrawlError(models.ErrorKindParse, "extract main content", err)
	}

	converter := md.NewConverter(sourceURI, true, nil)
	markdown, err := converter.ConvertString(contentHTML)
	if err != nil {
		return nil, models.NewCrawlError(models.ErrorKindParse, "convert to markdown", err)
	}

	parts := make([]models.DocumentPart, 0, len(links)+1)
	if markdown = strings.TrimSpace(markdown); markdown != "" {
		parts = append(parts, &models.TextPart{Text: markdown})
	}
	for _, link := range links {
		parts = append(parts, link)
	}

	return &models.ArticlePart{Title: title, Parts: parts}, nil
}

// parseTables extracts every table on the page. A single table becomes the
// root; multiple tables sit under an article root so all survive.
func (p *Parser) parseTables(doc *goquery.Document, sourceURI string) (models.DocumentPart, error) {
	var tables []models.DocumentPart

	doc.Find("table").Each(func(i int, table *goquery.Selection) {
		part := &models.TablePart{
			Caption: strings.TrimSpace(table.Find("caption").First().Text()),
		}
		table.Find("tr").Each(func(j int, row *goquery.Selection) {
			tableRow := &models.TableRowPart{}
			row.Find("td, th").Each(func(k int, cell *goquery.Selection) {
				tableRow.Cells = append(tableRow.Cells, strings.TrimSpace(cell.Text()))
			})
			if len(tableRow.Cells) > 0 {
				part.Rows = append(part.Rows, tableRow)
			}
		})
		tables = append(tables, part)
	})

	switch len(tables) {
	case 0:
		// Fall back to article extraction rather than failing the crawl
		p.logger.Debug().Str("uri", sourceURI).Msg("No table found, falling back to article")
		return p.parseArticle(doc, sourceURI)
	case 1:
		return tables[0], nil
	default:
		return &models.ArticlePart{Title: p.extractTitle(doc), Parts: tables}, nil
	}
}

// parseLinkIndex returns an article root holding only the page's links
func (p *Parser) parseLinkIndex(doc *goquery.Document, sourceURI string) (models.DocumentPart, error) {
	links := p.extractLinks(doc, sourceURI)
	parts := make([]models.DocumentPart, 0, len(links))
	for _, link := range links {
		parts = append(parts, link)
	}
	return &models.ArticlePart{Title: p.extractTitle(doc), Parts: parts}, nil
}

// extractTitle extracts the page title from various sources
func (p *Parser) extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	if ogTitle, exists := doc.Find("meta[property='og:title']").Attr("content"); exists && strings.TrimSpace(ogTitle) != "" {
		return strings.TrimSpace(ogTitle)
	}
	if h1 := strings.TrimSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	return ""
}

// extractLinks collects anchor links, resolving relative hrefs against the
// source URI and skipping javascript:, mailto: and fragment-only targets
func (p *Parser) extractLinks(doc *goquery.Document, sourceURI string) []*models.LinkPart {
	var links []*models.LinkPart

	doc.Find("a[href]").Each(func(i int, s *goquery.Selection) {
		href, exists := s.Attr("href")
		if !exists || href == "" {
			return
		}
		if strings.HasPrefix(href, "javascript:") ||
			strings.HasPrefix(href, "mailto:") ||
			strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "#") {
			return
		}

		links = append(links, &models.LinkPart{
			URI:  common.ResolveReference(sourceURI, href),
			Text: strings.TrimSpace(s.Text()),
		})
	})

	return links
}

// mainContent returns the primary content selection with boilerplate removed
func (p *Parser) mainContent(doc *goquery.Document) *goquery.Selection {
	doc.Find("script, style, noscript, nav, header, footer, aside").Remove()

	main := doc.Find("main, article, [role=main]").First()
	if main.Length() > 0 {
		return main
	}
	return doc.Find("body")
}

// extractText returns the page's plain text with whitespace collapsed
func (p *Parser) extractText(doc *goquery.Document) string {
	text := p.mainContent(doc).Text()
	return strings.Join(strings.Fields(text), " ")
}

// detectAnomaly flags empty bodies and anti-bot interstitials
func (p *Parser) detectAnomaly(doc *goquery.Document) *models.Anomaly {
	bodyText := strings.TrimSpace(doc.Find("body").Text())
	if bodyText == "" {
		return &models.Anomaly{Type: models.AnomalyEmptyBody, Detail: "page body contains no text"}
	}

	haystack := strings.ToLower(doc.Find("title").Text() + " " + bodyText)
	// Only inspect the head of the page so a legitimate article mentioning
	// these phrases deep in its text is not flagged
	if len(haystack) > 2048 {
		haystack = haystack[:2048]
	}
	for _, marker := range blockPageMarkers {
		if strings.Contains(haystack, marker) {
			return &models.Anomaly{Type: models.AnomalyBlockPage, Detail: "block page marker: " + marker}
		}
	}
	return nil
}
