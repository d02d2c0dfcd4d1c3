package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// ContinuationKind selects the link-following policy attached to a request
type ContinuationKind string

const (
	ContinuationNone       ContinuationKind = "none"
	ContinuationDomainOnly ContinuationKind = "domain_only"
	ContinuationAllLinks   ContinuationKind = "all_links"
)

// UIActionType identifies a pre-fetch page interaction
type UIActionType string

const (
	UIActionClick  UIActionType = "click"
	UIActionInput  UIActionType = "type"
	UIActionWait   UIActionType = "wait"
	UIActionScroll UIActionType = "scroll"
)

// UIAction is one scripted interaction executed on the rendered page before
// content capture (click a selector, type into a field, wait, scroll).
type UIAction struct {
	Action   UIActionType `json:"action" yaml:"action"`
	Selector string       `json:"selector,omitempty" yaml:"selector,omitempty"`
	Value    string       `json:"value,omitempty" yaml:"value,omitempty"`
	WaitMs   int          `json:"wait_ms,omitempty" yaml:"wait_ms,omitempty"`
}

// CrawlRequest identifies a fetch target together with the policy for handling
// its result. CrawlID is immutable once set and shared across a lineage;
// CorrelationID is unique per attempt (retries get a new one, same CrawlID).
type CrawlRequest struct {
	URI                  string           `json:"uri"`
	CorrelationID        string           `json:"correlation_id"`
	CrawlID              string           `json:"crawl_id"`
	ContinuationStrategy ContinuationKind `json:"continuation_strategy"`
	ExpectedPart         PartKind         `json:"expected_part"` // autodetect when the shape is unknown
	UIActions            []UIAction       `json:"ui_actions,omitempty"`
	URLSkipList          []string         `json:"url_skip_list,omitempty"`
	DownloadRawContent   bool             `json:"download_raw_content"`
	CreatedAt            time.Time        `json:"created_at"`
}

// Validate checks the request invariants before processing
func (r *CrawlRequest) Validate() error {
	if r.URI == "" {
		return NewCrawlError(ErrorKindConfig, "validate request", fmt.Errorf("uri is required"))
	}
	if r.CorrelationID == "" {
		return NewCrawlError(ErrorKindConfig, "validate request", fmt.Errorf("correlation_id is required"))
	}
	if r.CrawlID == "" {
		return NewCrawlError(ErrorKindConfig, "validate request", fmt.Errorf("crawl_id is required"))
	}
	return nil
}

// Document holds one completed fetch's parsed tree plus optional raw source
type Document struct {
	Root          DocumentPart
	HasRawContent bool
	RawContent    []byte
}

// documentWire is the serialized form of Document; Root is carried as an
// encoded part so the discriminator survives the trip.
type documentWire struct {
	Root          json.RawMessage `json:"root"`
	HasRawContent bool            `json:"has_raw_content"`
	RawContent    []byte          `json:"raw_content,omitempty"`
}

// MarshalJSON encodes the document with its part tree discriminators intact
func (d *Document) MarshalJSON() ([]byte, error) {
	encoded, err := EncodePart(d.Root)
	if err != nil {
		return nil, err
	}
	return json.Marshal(documentWire{
		Root:          encoded,
		HasRawContent: d.HasRawContent,
		RawContent:    d.RawContent,
	})
}

// UnmarshalJSON decodes the document, failing hard on unknown discriminators
func (d *Document) UnmarshalJSON(data []byte) error {
	var wire documentWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return NewCrawlError(ErrorKindParse, "decode document", err)
	}
	root, err := DecodePart(wire.Root)
	if err != nil {
		return err
	}
	d.Root = root
	d.HasRawContent = wire.HasRawContent
	d.RawContent = wire.RawContent
	return nil
}

// CrawlResponse is the published success outcome of one crawl attempt. Every
// response carries both identifiers of the originating request.
type CrawlResponse struct {
	ID            string        `json:"id"`
	URI           string        `json:"uri"`
	CorrelationID string        `json:"correlation_id"`
	CrawlID       string        `json:"crawl_id"`
	Document      *Document     `json:"document"`
	Anomaly       *Anomaly      `json:"anomaly,omitempty"`
	Duration      time.Duration `json:"duration"`
	CompletedAt   time.Time     `json:"completed_at"`
}

// CrawlFailure is the published failure record for one crawl attempt: the
// classified error kind and the original request identifiers, not a stack trace.
type CrawlFailure struct {
	URI           string    `json:"uri"`
	CorrelationID string    `json:"correlation_id"`
	CrawlID       string    `json:"crawl_id"`
	ErrorKind     ErrorKind `json:"error_kind"`
	Message       string    `json:"message"`
	FailedAt      time.Time `json:"failed_at"`
}

// CrawlStatus tracks the lifecycle of one crawl attempt
type CrawlStatus string

const (
	CrawlStatusReceived   CrawlStatus = "received"
	CrawlStatusThrottled  CrawlStatus = "throttled"
	CrawlStatusFetching   CrawlStatus = "fetching"
	CrawlStatusParsed     CrawlStatus = "parsed"
	CrawlStatusContinuing CrawlStatus = "continuing"
	CrawlStatusCompleted  CrawlStatus = "completed"
	CrawlStatusFailed     CrawlStatus = "failed"
)

// Crawl pairs a request with its in-progress state. It is the runtime unit of
// lifecycle tracking for the orchestrator and cache, not a persisted aggregate.
type Crawl struct {
	Request     *CrawlRequest
	Status      CrawlStatus
	StartedAt   time.Time
	CompletedAt time.Time
	Error       string
}

// NewCrawl begins lifecycle tracking for a received request
func NewCrawl(request *CrawlRequest) *Crawl {
	return &Crawl{
		Request:   request,
		Status:    CrawlStatusReceived,
		StartedAt: time.Now(),
	}
}

// Terminal reports whether the crawl has reached a final state. A terminal
// crawl already had its outcome published and its delivery settled.
func (c *Crawl) Terminal() bool {
	switch c.Status {
	case CrawlStatusThrottled, CrawlStatusCompleted, CrawlStatusFailed:
		return true
	}
	return false
}

// AnomalyType classifies a suspicious fetch or parse condition
type AnomalyType string

const (
	AnomalyBlockPage    AnomalyType = "block_page"
	AnomalyEmptyBody    AnomalyType = "empty_body"
	AnomalyMalformedDoc AnomalyType = "malformed_document"
)

// Anomaly flags an abnormal condition on a fetch or parse. Recorded for
// observability only; never used for control flow beyond reporting.
type Anomaly struct {
	Type   AnomalyType `json:"type"`
	Detail string      `json:"detail,omitempty"`
}
