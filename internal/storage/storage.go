package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kelsos/approvals/internal/ledger"
	"github.com/kelsos/approvals/internal/models"
)

const ledgerFileName = ledger.Collection + ".json"

// GetAppDataDir returns the application data directory, creating it if needed.
// An empty override selects ~/.approvals.
func GetAppDataDir(override string) (string, error) {
	appDataDir := override
	if appDataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		appDataDir = filepath.Join(homeDir, ".approvals")
	}

	if err := os.MkdirAll(appDataDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create app data directory: %w", err)
	}

	return appDataDir, nil
}

// FileStore keeps the ledger as a JSON array in a single file. Writes go
// through a temporary file and a rename so a crash never leaves a torn file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

var _ ledger.Store = (*FileStore)(nil)

// NewFileStore opens (without reading) the ledger file inside dir.
func NewFileStore(dir string) (*FileStore, error) {
	appDataDir, err := GetAppDataDir(dir)
	if err != nil {
		return nil, err
	}
	return &FileStore{path: filepath.Join(appDataDir, ledgerFileName)}, nil
}

// Path returns the ledger file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Insert(_ context.Context, entry ledger.Entry) (models.ApprovalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return models.ApprovalRecord{}, err
	}

	record := models.ApprovalRecord{
		ID:            uuid.NewString(),
		WalletAddress: entry.WalletAddress,
		Amount:        entry.Amount,
		TxHash:        entry.TxHash,
		Timestamp:     time.Now().UTC(),
		Status:        entry.Status,
	}
	if err := s.save(append(records, record)); err != nil {
		return models.ApprovalRecord{}, err
	}
	return record, nil
}

func (s *FileStore) List(_ context.Context, filter ledger.Filter) ([]models.ApprovalRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	if filter.WalletAddress == "" {
		return records, nil
	}

	out := make([]models.ApprovalRecord, 0, len(records))
	for _, r := range records {
		if r.WalletAddress == filter.WalletAddress {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *FileStore) load() ([]models.ApprovalRecord, error) {
	if _, statErr := os.Stat(s.path); os.IsNotExist(statErr) {
		return []models.ApprovalRecord{}, nil
	}

	fileData, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger file: %w", err)
	}
	if len(fileData) == 0 {
		return []models.ApprovalRecord{}, nil
	}

	var records []models.ApprovalRecord
	if err := json.Unmarshal(fileData, &records); err != nil {
		return nil, fmt.Errorf("failed to unmarshal ledger file: %w", err)
	}
	return records, nil
}

func (s *FileStore) save(records []models.ApprovalRecord) error {
	jsonData, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, jsonData, 0600); err != nil {
		return fmt.Errorf("failed to write ledger file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace ledger file: %w", err)
	}
	return nil
}
