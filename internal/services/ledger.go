package services

import (
	"context"
	"fmt"
	"time"

	"github.com/kelsos/approvals/internal/client"
	"github.com/kelsos/approvals/internal/config"
	"github.com/kelsos/approvals/internal/ledger"
	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/storage"
)

// LedgerService is the approval ledger over the configured backend.
type LedgerService struct {
	*ledger.Ledger
	backend string
	store   ledger.Store
}

type pinger interface {
	Ping(ctx context.Context) error
}

type closer interface {
	Close() error
}

// OpenLedger opens the backend selected by cfg.LedgerBackend.
func OpenLedger(ctx context.Context, cfg *config.Config) (*LedgerService, error) {
	var store ledger.Store

	switch cfg.LedgerBackend {
	case config.LedgerFile:
		fs, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		logger.Debug("Using ledger file %s", fs.Path())
		store = fs

	case config.LedgerPostgres:
		pg, err := storage.OpenPostgres(ctx, cfg.LedgerDSN)
		if err != nil {
			return nil, err
		}
		store = pg

	case config.LedgerREST:
		api := client.NewAPIClient(cfg.LedgerURL, cfg.LedgerKey)
		if !api.WaitForAPIReady(ctx, 5, 2*time.Second) {
			return nil, fmt.Errorf("ledger API at %s is not reachable", cfg.LedgerURL)
		}
		store = storage.NewRESTStore(api)

	default:
		return nil, fmt.Errorf("unknown ledger backend: %q", cfg.LedgerBackend)
	}

	logger.Info("Ledger backend: %s", cfg.LedgerBackend)
	return NewLedgerService(cfg.LedgerBackend, store), nil
}

// NewLedgerService wraps an already opened store.
func NewLedgerService(backend string, store ledger.Store) *LedgerService {
	return &LedgerService{Ledger: ledger.New(store), backend: backend, store: store}
}

// Ping checks the backend when it is remote.
func (s *LedgerService) Ping(ctx context.Context) error {
	if p, ok := s.store.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("%s ledger: %w", s.backend, err)
		}
	}
	return nil
}

// Close releases the backend connection, if any.
func (s *LedgerService) Close() error {
	if c, ok := s.store.(closer); ok {
		return c.Close()
	}
	return nil
}
