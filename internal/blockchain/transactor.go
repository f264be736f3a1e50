package blockchain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/models"
	"github.com/kelsos/approvals/internal/wallet"
)

// Transactor hands transactions to the wallet for signing and broadcast.
type Transactor struct {
	provider wallet.Provider
}

// NewTransactor creates a transactor over the wallet provider.
func NewTransactor(provider wallet.Provider) *Transactor {
	return &Transactor{provider: provider}
}

// Send submits a contract call from the connected account with fixed gas
// settings and returns the broadcast transaction hash. The provider error is
// returned untouched so callers can attach their own phase.
func (t *Transactor) Send(ctx context.Context, from, to common.Address, data []byte, gas models.Gas) (common.Hash, error) {
	tx := models.TxRequest{
		From: from,
		To:   to,
		Data: data,
		Gas:  hexutil.Uint64(gas.Limit),
	}
	if gas.Price != nil {
		tx.GasPrice = (*hexutil.Big)(gas.Price)
	}

	var hash common.Hash
	if err := t.provider.Request(ctx, "eth_sendTransaction", &hash, tx); err != nil {
		return common.Hash{}, err
	}

	logger.Fields("from", from.Hex(), "to", to.Hex(), "tx", hash.Hex(), "gas", gas.Limit).Msg("transaction broadcast")
	return hash, nil
}
