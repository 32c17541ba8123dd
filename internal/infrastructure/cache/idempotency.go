package cache

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"facturation/internal/core/apperror"
)

// IdempotencyStatus represents the state of an idempotent operation.
type IdempotencyStatus string

const (
	IdempotencyStatusPending IdempotencyStatus = "pending"
	IdempotencyStatusSuccess IdempotencyStatus = "success"
	IdempotencyStatusFailed  IdempotencyStatus = "failed"
)

// stalePending is how long a pending key blocks retries before it is reclaimed.
const stalePending = time.Minute

// IdempotencyRecord stores the result of an idempotent operation.
type IdempotencyRecord struct {
	Key         string
	Operation   string
	Status      IdempotencyStatus
	RequestHash string
	Response    []byte
	StatusCode  int
	ContentType string
	UpdatedAt   time.Time
}

// IdempotencyReplay is the cached HTTP response for replay.
type IdempotencyReplay struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// IdempotencyStore keeps idempotency keys in memory for ttl.
type IdempotencyStore struct {
	mu      sync.Mutex
	records *gocache.Cache
}

// NewIdempotencyStore creates a store whose keys expire after ttl.
func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{
		records: gocache.New(ttl, 2*ttl),
	}
}

// AcquireKey attempts to acquire an idempotency key.
// Returns:
//   - (nil, nil) if key acquired
//   - (replay, nil) if the operation already completed (success or failed)
//   - (nil, error) if the key is in flight or was used for a different request
func (s *IdempotencyStore) AcquireKey(key, operation, requestHash string) (*IdempotencyReplay, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	v, found := s.records.Get(key)
	if !found {
		s.records.SetDefault(key, &IdempotencyRecord{
			Key:         key,
			Operation:   operation,
			Status:      IdempotencyStatusPending,
			RequestHash: requestHash,
			UpdatedAt:   now,
		})
		return nil, nil
	}

	record := v.(*IdempotencyRecord)
	if record.Operation != operation || record.RequestHash != requestHash {
		return nil, apperror.NewIdempotencyMismatch(key).
			WithDetail("stored_operation", record.Operation).
			WithDetail("request_operation", operation)
	}

	switch record.Status {
	case IdempotencyStatusSuccess, IdempotencyStatusFailed:
		return &IdempotencyReplay{
			StatusCode:  normalizeReplayStatus(record.StatusCode),
			ContentType: normalizeReplayContentType(record.ContentType),
			Body:        record.Response,
		}, nil
	default:
		if now.Sub(record.UpdatedAt) > stalePending {
			record.UpdatedAt = now
			return nil, nil
		}
		return nil, apperror.NewIdempotencyConflict(key)
	}
}

// CompleteKey marks an idempotency key as completed with HTTP response.
func (s *IdempotencyStore) CompleteKey(key string, statusCode int, contentType string, response any) error {
	body, err := json.Marshal(response)
	if err != nil {
		return fmt.Errorf("marshal response: %w", err)
	}
	s.finish(key, IdempotencyStatusSuccess, statusCode, contentType, body)
	return nil
}

// FailKey marks an idempotency key as failed with HTTP response.
func (s *IdempotencyStore) FailKey(key string, statusCode int, contentType string, response any) {
	body, err := json.Marshal(response)
	if err != nil {
		body, _ = json.Marshal(map[string]string{"error": err.Error()})
	}
	s.finish(key, IdempotencyStatusFailed, statusCode, contentType, body)
}

func (s *IdempotencyStore) finish(key string, status IdempotencyStatus, statusCode int, contentType string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, found := s.records.Get(key)
	if !found {
		return
	}
	record := *v.(*IdempotencyRecord)
	record.Status = status
	record.StatusCode = statusCode
	record.ContentType = contentType
	record.Response = body
	record.UpdatedAt = time.Now()
	s.records.SetDefault(key, &record)
}

func normalizeReplayStatus(code int) int {
	if code < 100 || code > 599 {
		return http.StatusOK
	}
	return code
}

func normalizeReplayContentType(ct string) string {
	if ct == "" {
		return "application/json"
	}
	return ct
}
