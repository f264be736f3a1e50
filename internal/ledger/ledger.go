// Package ledger is the durable record of completed authorizations.
// Records are created once and never updated or deleted.
package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/kelsos/approvals/internal/apperr"
	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/metrics"
	"github.com/kelsos/approvals/internal/models"
)

// Collection is the logical collection holding approval records.
const Collection = "approvals"

// Entry is an authorization about to be recorded. Id and timestamp are
// assigned by the store.
type Entry struct {
	WalletAddress string
	Amount        string
	TxHash        string
	Status        string
}

// Filter narrows a listing; the zero value matches every record.
type Filter struct {
	WalletAddress string
}

// Store is a key/value document store reachable over the network.
type Store interface {
	// Insert persists entry and returns it with the store-assigned id and
	// server-observed timestamp.
	Insert(ctx context.Context, entry Entry) (models.ApprovalRecord, error)
	// List returns the records matching filter.
	List(ctx context.Context, filter Filter) ([]models.ApprovalRecord, error)
}

// Ledger validates entries and delegates persistence to a Store.
type Ledger struct {
	store Store
}

// New creates a ledger over store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Record validates entry and stores it, returning the assigned id.
// Invalid entries never reach the store.
func (l *Ledger) Record(ctx context.Context, entry Entry) (string, error) {
	if entry.Status == "" {
		entry.Status = models.StatusApproved
	}
	if err := Validate(entry); err != nil {
		return "", err
	}

	record, err := l.store.Insert(ctx, entry)
	metrics.RecordLedgerWrite(err == nil)
	if err != nil {
		logger.Error("Error saving approval: %v", err)
		return "", fmt.Errorf("save approval: %w", err)
	}

	logger.Info("Approval saved with ID: %s", record.ID)
	return record.ID, nil
}

// ListAll returns every stored record.
func (l *Ledger) ListAll(ctx context.Context) ([]models.ApprovalRecord, error) {
	records, err := l.store.List(ctx, Filter{})
	if err != nil {
		logger.Error("Error getting approvals: %v", err)
		return nil, fmt.Errorf("list approvals: %w", err)
	}
	return records, nil
}

// ListByWallet returns the records whose wallet address equals address
// exactly, as stored.
func (l *Ledger) ListByWallet(ctx context.Context, address string) ([]models.ApprovalRecord, error) {
	records, err := l.store.List(ctx, Filter{WalletAddress: address})
	if err != nil {
		logger.Error("Error getting approvals by wallet: %v", err)
		return nil, fmt.Errorf("list approvals for %s: %w", address, err)
	}
	return records, nil
}

// Validate checks that every required field of entry is present and well formed.
func Validate(entry Entry) error {
	var problems []string

	if !common.IsHexAddress(entry.WalletAddress) {
		problems = append(problems, fmt.Sprintf("walletAddress %q is not an address", entry.WalletAddress))
	}
	if amount, err := decimal.NewFromString(strings.TrimSpace(entry.Amount)); err != nil {
		problems = append(problems, fmt.Sprintf("amount %q is not a decimal", entry.Amount))
	} else if !amount.IsPositive() {
		problems = append(problems, "amount must be positive")
	}
	if len(entry.TxHash) != 66 || !strings.HasPrefix(entry.TxHash, "0x") {
		problems = append(problems, fmt.Sprintf("txHash %q is not a transaction hash", entry.TxHash))
	}
	if entry.Status == "" {
		problems = append(problems, "status is required")
	}

	if len(problems) > 0 {
		return apperr.New(apperr.InvalidRecord, "invalid approval record: %s", strings.Join(problems, "; "))
	}
	return nil
}
