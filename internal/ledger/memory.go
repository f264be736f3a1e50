package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kelsos/approvals/internal/models"
)

// MemoryStore keeps records in process. Used by tests and dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records []models.ApprovalRecord
	now     func() time.Time

	// InsertErr, when set, fails every Insert.
	InsertErr error
	inserts   int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

// WithClock replaces the timestamp source.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Insert(_ context.Context, entry Entry) (models.ApprovalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.InsertErr != nil {
		return models.ApprovalRecord{}, s.InsertErr
	}

	record := models.ApprovalRecord{
		ID:            uuid.NewString(),
		WalletAddress: entry.WalletAddress,
		Amount:        entry.Amount,
		TxHash:        entry.TxHash,
		Timestamp:     s.now(),
		Status:        entry.Status,
	}
	s.records = append(s.records, record)
	return record, nil
}

func (s *MemoryStore) List(_ context.Context, filter Filter) ([]models.ApprovalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.ApprovalRecord, 0, len(s.records))
	for _, r := range s.records {
		if filter.WalletAddress != "" && r.WalletAddress != filter.WalletAddress {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// Inserts returns the number of Insert calls, successful or not.
func (s *MemoryStore) Inserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.inserts
}
