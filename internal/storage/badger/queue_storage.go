package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/spinneret/internal/interfaces"
	"github.com/ternarybob/spinneret/internal/models"
)

// queuedRequest is the internal structure stored in Badger. VisibleAt drives
// at-least-once delivery: a received request becomes invisible for the
// visibility timeout and reappears if never acknowledged.
type queuedRequest struct {
	ID           string              `json:"id"`
	Body         models.CrawlRequest `json:"body"`
	EnqueuedAt   time.Time           `json:"enqueued_at"`
	VisibleAt    time.Time           `json:"visible_at"`
	ReceiveCount int                 `json:"receive_count"`
}

// RequestQueue implements a persistent crawl request queue using BadgerDB.
// It serves as both the orchestrator's request source and the publisher's
// continuation sink.
type RequestQueue struct {
	db                *BadgerDB
	logger            arbor.ILogger
	queueName         string
	visibilityTimeout time.Duration
	maxReceive        int
	retryDelay        time.Duration
}

// NewRequestQueue creates a new Badger-backed request queue
func NewRequestQueue(db *BadgerDB, logger arbor.ILogger, queueName string, visibilityTimeout time.Duration, maxReceive int, retryDelay time.Duration) (*RequestQueue, error) {
	if db == nil {
		return nil, errors.New("badger db is required")
	}
	if queueName == "" {
		return nil, errors.New("queue name is required")
	}
	if visibilityTimeout <= 0 {
		visibilityTimeout = 5 * time.Minute
	}
	if maxReceive <= 0 {
		maxReceive = 3
	}
	if retryDelay <= 0 {
		retryDelay = 15 * time.Second
	}

	return &RequestQueue{
		db:                db,
		logger:            logger,
		queueName:         queueName,
		visibilityTimeout: visibilityTimeout,
		maxReceive:        maxReceive,
		retryDelay:        retryDelay,
	}, nil
}

// Enqueue adds requests to the queue, immediately visible
func (q *RequestQueue) Enqueue(ctx context.Context, requests ...*models.CrawlRequest) error {
	return q.db.Badger().Update(func(txn *badgerdb.Txn) error {
		for _, request := range requests {
			qReq := queuedRequest{
				ID:           request.CorrelationID,
				Body:         *request,
				EnqueuedAt:   time.Now(),
				VisibleAt:    time.Now(),
				ReceiveCount: 0,
			}

			data, err := json.Marshal(qReq)
			if err != nil {
				return fmt.Errorf("failed to marshal queued request: %w", err)
			}

			if err := txn.Set(q.msgKey(qReq.ID), data); err != nil {
				return err
			}
			if err := txn.Set(q.indexKey(qReq.VisibleAt, qReq.ID), []byte{}); err != nil {
				return err
			}
		}
		return nil
	})
}

// Receive pulls the next visible request from the queue. The returned Ack
// removes the request; Retry makes it visible again after the retry delay
// without consuming a delivery attempt (used for throttle rejections).
func (q *RequestQueue) Receive(ctx context.Context) (*interfaces.ReceivedRequest, error) {
	var qReq queuedRequest
	var msgID string
	var oldIndexKey []byte

	err := q.db.Badger().Update(func(txn *badgerdb.Txn) error {
		// Iterate over the visibility index to find a ready request. Keys are
		// ordered by timestamp, so the first future entry ends the scan.
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		prefix := []byte(fmt.Sprintf("queue:%s:index:", q.queueName))
		it := txn.NewIterator(opts)
		defer it.Close()

		now := time.Now()
		found := false

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)

			ts, id, err := q.parseIndexKey(key)
			if err != nil {
				continue // Skip invalid keys
			}

			if ts.After(now) {
				break
			}

			msgKey := q.msgKey(id)
			itemMsg, err := txn.Get(msgKey)
			if err != nil {
				if err == badgerdb.ErrKeyNotFound {
					// Index exists but request doesn't - clean up the index
					if err := txn.Delete(key); err != nil {
						return err
					}
					continue
				}
				return err
			}

			if err := itemMsg.Value(func(val []byte) error {
				return json.Unmarshal(val, &qReq)
			}); err != nil {
				return err
			}

			// Dead-letter poison requests instead of looping on them
			if qReq.ReceiveCount >= q.maxReceive {
				q.logger.Warn().
					Str("correlation_id", qReq.ID).
					Str("uri", qReq.Body.URI).
					Int("receive_count", qReq.ReceiveCount).
					Msg("Request exceeded max receive count, dropping")
				if err := txn.Delete(key); err != nil {
					return err
				}
				if err := txn.Delete(msgKey); err != nil {
					return err
				}
				continue
			}

			found = true
			msgID = id
			oldIndexKey = key
			break
		}

		if !found {
			return interfaces.ErrNoRequest
		}

		// Claim: bump receive count and push visibility into the future
		qReq.ReceiveCount++
		qReq.VisibleAt = time.Now().Add(q.visibilityTimeout)

		newData, err := json.Marshal(qReq)
		if err != nil {
			return err
		}
		if err := txn.Set(q.msgKey(msgID), newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil {
			return err
		}
		return txn.Set(q.indexKey(qReq.VisibleAt, msgID), []byte{})
	})

	if err != nil {
		return nil, err
	}

	request := qReq.Body

	return &interfaces.ReceivedRequest{
		Request: &request,
		Ack: func() error {
			return q.remove(msgID)
		},
		Retry: func() error {
			return q.release(msgID)
		},
	}, nil
}

// remove deletes a request and its visibility index entry
func (q *RequestQueue) remove(id string) error {
	return q.db.Badger().Update(func(txn *badgerdb.Txn) error {
		msgKey := q.msgKey(id)
		item, err := txn.Get(msgKey)
		if err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return nil // Already removed
			}
			return err
		}

		var current queuedRequest
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &current)
		}); err != nil {
			return err
		}

		if err := txn.Delete(q.indexKey(current.VisibleAt, id)); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Delete(msgKey)
	})
}

// release makes a request visible again after the retry delay. The delivery
// attempt is handed back so throttle retries never reach the dead-letter cap.
func (q *RequestQueue) release(id string) error {
	return q.db.Badger().Update(func(txn *badgerdb.Txn) error {
		msgKey := q.msgKey(id)
		item, err := txn.Get(msgKey)
		if err != nil {
			if err == badgerdb.ErrKeyNotFound {
				return nil
			}
			return err
		}

		var current queuedRequest
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &current)
		}); err != nil {
			return err
		}

		oldIndexKey := q.indexKey(current.VisibleAt, id)

		if current.ReceiveCount > 0 {
			current.ReceiveCount--
		}
		current.VisibleAt = time.Now().Add(q.retryDelay)

		newData, err := json.Marshal(current)
		if err != nil {
			return err
		}
		if err := txn.Set(msgKey, newData); err != nil {
			return err
		}
		if err := txn.Delete(oldIndexKey); err != nil && err != badgerdb.ErrKeyNotFound {
			return err
		}
		return txn.Set(q.indexKey(current.VisibleAt, id), []byte{})
	})
}

// Helpers

func (q *RequestQueue) msgKey(id string) []byte {
	return []byte(fmt.Sprintf("queue:%s:msg:%s", q.queueName, id))
}

func (q *RequestQueue) indexKey(visibleAt time.Time, id string) []byte {
	ts := visibleAt.UnixNano()
	// Zero pad to 20 digits to ensure string sorting works like number sorting
	return []byte(fmt.Sprintf("queue:%s:index:%020d:%s", q.queueName, ts, id))
}

func (q *RequestQueue) parseIndexKey(key []byte) (time.Time, string, error) {
	prefixStr := fmt.Sprintf("queue:%s:index:", q.queueName)
	if len(key) <= len(prefixStr) {
		return time.Time{}, "", fmt.Errorf("invalid key length")
	}

	suffix := string(key[len(prefixStr):])
	if len(suffix) < 21 { // 20 digits + 1 colon
		return time.Time{}, "", fmt.Errorf("invalid suffix length")
	}

	tsStr := suffix[:20]
	id := suffix[21:]

	var ts int64
	if _, err := fmt.Sscanf(tsStr, "%d", &ts); err != nil {
		return time.Time{}, "", err
	}

	return time.Unix(0, ts), id, nil
}
