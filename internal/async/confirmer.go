// Package async waits for broadcast transactions to be mined.
package async

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/models"
	"github.com/kelsos/approvals/internal/wallet"
)

// ErrReverted is returned when a transaction was mined with a failure status.
var ErrReverted = errors.New("transaction reverted")

// ErrNotConfirmed is returned when the timeout expires before a receipt appears.
var ErrNotConfirmed = errors.New("transaction not confirmed")

// DefaultPollInterval is how often the receipt is polled.
const DefaultPollInterval = 2 * time.Second

// DefaultTimeout bounds how long a single transaction is awaited.
const DefaultTimeout = 2 * time.Minute

// Confirmer polls eth_getTransactionReceipt until the transaction is mined.
type Confirmer struct {
	provider     wallet.Provider
	pollInterval time.Duration
	timeout      time.Duration
}

// NewConfirmer creates a confirmer; zero durations fall back to the defaults.
func NewConfirmer(provider wallet.Provider, pollInterval, timeout time.Duration) *Confirmer {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Confirmer{
		provider:     provider,
		pollInterval: pollInterval,
		timeout:      timeout,
	}
}

// Wait blocks until the receipt for hash is available, ctx is done or the
// timeout expires. A mined-but-reverted transaction returns the receipt
// together with ErrReverted.
func (c *Confirmer) Wait(ctx context.Context, hash common.Hash) (*models.Receipt, error) {
	wctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.receipt(wctx, hash)
		if err != nil {
			if ctxErr := wctx.Err(); ctxErr != nil {
				return nil, c.expired(ctx, hash, ctxErr)
			}
			return nil, err
		}
		if receipt != nil {
			logger.Debug("Transaction %s mined after %v (status %d)", hash.Hex(), time.Since(start), uint64(receipt.Status))
			if !receipt.Succeeded() {
				return receipt, ErrReverted
			}
			return receipt, nil
		}

		select {
		case <-wctx.Done():
			return nil, c.expired(ctx, hash, wctx.Err())
		case <-ticker.C:
		}
	}
}

func (c *Confirmer) receipt(ctx context.Context, hash common.Hash) (*models.Receipt, error) {
	var receipt *models.Receipt
	if err := c.provider.Request(ctx, "eth_getTransactionReceipt", &receipt, hash); err != nil {
		return nil, err
	}
	return receipt, nil
}

func (c *Confirmer) expired(parent context.Context, hash common.Hash, cause error) error {
	if parent.Err() != nil {
		return parent.Err()
	}
	return fmt.Errorf("%w: %s after %s: %v", ErrNotConfirmed, hash.Hex(), c.timeout, cause)
}
