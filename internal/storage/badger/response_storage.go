package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// responseRecord is the persisted form of a CrawlResponse. The document part
// tree is carried as encoded JSON so the discriminator tags survive storage.
type responseRecord struct {
	ID            string `badgerhold:"key"`
	URI           string
	CorrelationID string
	CrawlID       string `badgerholdIndex:"CrawlID"`
	Payload       []byte
	CompletedAt   time.Time
}

// failureRecord is the persisted form of a CrawlFailure
type failureRecord struct {
	CorrelationID string `badgerhold:"key"`
	URI           string
	CrawlID       string `badgerholdIndex:"CrawlID"`
	ErrorKind     string
	Message       string
	FailedAt      time.Time
}

// ResponseStorage implements the ResponseStorage interface for Badger
type ResponseStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewResponseStorage creates a new ResponseStorage instance
func NewResponseStorage(db *BadgerDB, logger arbor.ILogger) interfaces.ResponseStorage {
	return &ResponseStorage{
		db:     db,
		logger: logger,
	}
}

// SaveResponse persists a completed crawl result. Saves are idempotent by
// response ID so redelivered requests do not duplicate records.
func (s *ResponseStorage) SaveResponse(ctx context.Context, response *models.CrawlResponse) error {
	payload, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}

	record := &responseRecord{
		ID:            response.ID,
		URI:           response.URI,
		CorrelationID: response.CorrelationID,
		CrawlID:       response.CrawlID,
		Payload:       payload,
		CompletedAt:   response.CompletedAt,
	}

	if err := s.db.Store().Upsert(record.ID, record); err != nil {
		return fmt.Errorf("failed to save response: %w", err)
	}

	s.logger.Debug().
		Str("response_id", response.ID).
		Str("crawl_id", response.CrawlID).
		Str("uri", response.URI).
		Msg("Response saved")

	return nil
}

// SaveFailure persists a failure record keyed by correlation ID
func (s *ResponseStorage) SaveFailure(ctx context.Context, failure *models.CrawlFailure) error {
	record := &failureRecord{
		CorrelationID: failure.CorrelationID,
		URI:           failure.URI,
		CrawlID:       failure.CrawlID,
		ErrorKind:     string(failure.ErrorKind),
		Message:       failure.Message,
		FailedAt:      failure.FailedAt,
	}

	if err := s.db.Store().Upsert(record.CorrelationID, record); err != nil {
		return fmt.Errorf("failed to save failure record: %w", err)
	}

	return nil
}

// GetResponse retrieves a response by ID
func (s *ResponseStorage) GetResponse(ctx context.Context, id string) (*models.CrawlResponse, error) {
	var record responseRecord
	err := s.db.Store().Get(id, &record)
	if err == badgerhold.ErrNotFound {
		return nil, interfaces.ErrKeyNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}

	return decodeResponse(&record)
}

// ListResponsesByCrawl returns all responses for one crawl lineage
func (s *ResponseStorage) ListResponsesByCrawl(ctx context.Context, crawlID string) ([]*models.CrawlResponse, error) {
	var records []responseRecord
	err := s.db.Store().Find(&records, badgerhold.Where("CrawlID").Eq(crawlID).Index("CrawlID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}

	responses := make([]*models.CrawlResponse, 0, len(records))
	for i := range records {
		response, err := decodeResponse(&records[i])
		if err != nil {
			s.logger.Warn().Err(err).Str("response_id", records[i].ID).Msg("Skipping undecodable response record")
			continue
		}
		responses = append(responses, response)
	}
	return responses, nil
}

// ListFailuresByCrawl returns all failure records for one crawl lineage
func (s *ResponseStorage) ListFailuresByCrawl(ctx context.Context, crawlID string) ([]*models.CrawlFailure, error) {
	var records []failureRecord
	err := s.db.Store().Find(&records, badgerhold.Where("CrawlID").Eq(crawlID).Index("CrawlID"))
	if err != nil {
		return nil, fmt.Errorf("failed to list failure records: %w", err)
	}

	failures := make([]*models.CrawlFailure, 0, len(records))
	for _, record := range records {
		failures = append(failures, &models.CrawlFailure{
			URI:           record.URI,
			CorrelationID: record.CorrelationID,
			CrawlID:       record.CrawlID,
			ErrorKind:     models.ErrorKind(record.ErrorKind),
			Message:       record.Message,
			FailedAt:      record.FailedAt,
		})
	}
	return failures, nil
}

func decodeResponse(record *responseRecord) (*models.CrawlResponse, error) {
	var response models.CrawlResponse
	if err := json.Unmarshal(record.Payload, &response); err != nil {
		return nil, fmt.Errorf("failed to decode response payload: %w", err)
	}
	return &response, nil
}
