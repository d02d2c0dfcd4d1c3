package models

import (
	"errors"
	"fmt"
)

// ErrThrottled is the recoverable backpressure signal returned when a fetch is
// rejected by the per-URI throttle. It is surfaced to the request source as
// "retry later" and is never published as a failure record.
var ErrThrottled = errors.New("request throttled")

// ErrorKind classifies a crawl error for failure records and metrics
type ErrorKind string

const (
	ErrorKindParse        ErrorKind = "parse"
	ErrorKindFetch        ErrorKind = "fetch"
	ErrorKindDownload     ErrorKind = "download"
	ErrorKindPageLoad     ErrorKind = "page_load"
	ErrorKindCache        ErrorKind = "cache"
	ErrorKindPublish      ErrorKind = "publish"
	ErrorKindThrottle     ErrorKind = "throttle"
	ErrorKindConfig       ErrorKind = "config"
	ErrorKindContinuation ErrorKind = "continuation"
	ErrorKindUnknown      ErrorKind = "unknown"
)

// CrawlError is a classified error raised by a crawl step. The orchestrator
// publishes the kind and operation in failure records, never raw stack traces.
type CrawlError struct {
	ErrKind ErrorKind
	Op      string
	Err     error
}

// NewCrawlError wraps an error with a classification and the failing operation
func NewCrawlError(kind ErrorKind, op string, err error) *CrawlError {
	return &CrawlError{ErrKind: kind, Op: op, Err: err}
}

func (e *CrawlError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.ErrKind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.ErrKind, e.Op, e.Err)
}

func (e *CrawlError) Unwrap() error {
	return e.Err
}

// Kind returns the error classification
func (e *CrawlError) Kind() ErrorKind {
	return e.ErrKind
}

// ClassifyError resolves the ErrorKind of any error. Throttle rejections keep
// their distinct kind so callers can tell backpressure from substantive failure.
func ClassifyError(err error) ErrorKind {
	if err == nil {
		return ErrorKindUnknown
	}
	if errors.Is(err, ErrThrottled) {
		return ErrorKindThrottle
	}
	var crawlErr *CrawlError
	if errors.As(err, &crawlErr) {
		return crawlErr.ErrKind
	}
	return ErrorKindUnknown
}

// IsThrottled reports whether an error is the throttle backpressure signal
func IsThrottled(err error) bool {
	return errors.Is(err, ErrThrottled)
}
