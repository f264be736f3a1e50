package blockchain

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/kelsos/approvals/internal/apperr"
	"github.com/kelsos/approvals/internal/config"
	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/models"
	"github.com/kelsos/approvals/internal/wallet"
)

// Guard keeps the wallet on the configured target network. While the last
// check failed, Healthy reports false and every caller of
// EnsureTargetChain gets NetworkMismatch until a check succeeds.
type Guard struct {
	provider wallet.Provider
	target   models.ChainParams
	targetID *big.Int

	mu       sync.Mutex
	mismatch error
}

// NewGuard creates a guard for the given target network.
func NewGuard(provider wallet.Provider, target models.ChainParams) (*Guard, error) {
	id, ok := config.ParseChainID(target.ChainID)
	if !ok {
		return nil, apperr.New(apperr.NetworkMismatch, "invalid target chain id %q", target.ChainID)
	}
	return &Guard{provider: provider, target: target, targetID: id}, nil
}

// Target returns the registration parameters of the target network.
func (g *Guard) Target() models.ChainParams {
	return g.target
}

// Healthy reports whether the last check left the wallet on the target chain.
func (g *Guard) Healthy() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.mismatch == nil
}

// EnsureTargetChain switches (and, if necessary, registers) the target
// network. It issues only eth_chainId when the wallet is already there.
func (g *Guard) EnsureTargetChain(ctx context.Context) error {
	if g.provider == nil {
		return apperr.New(apperr.WalletUnavailable, "Please install MetaMask")
	}

	onTarget, err := g.onTarget(ctx)
	if err != nil {
		return g.fail(apperr.Wrap(apperr.NetworkMismatch, apperr.PhaseNetwork, err).
			WithMessage("Unable to read the wallet network: %v", err))
	}
	if onTarget {
		return g.ok()
	}

	logger.Info("Wallet is not on %s, requesting a network switch", g.target.ChainName)

	err = g.switchChain(ctx)
	if err == nil {
		return g.ok()
	}

	if !isUnrecognizedChain(err) {
		return g.fail(apperr.Wrap(apperr.NetworkMismatch, apperr.PhaseNetwork, err).
			WithMessage("Please switch to %s in your wallet", g.target.ChainName))
	}

	logger.Info("Registering %s with the wallet", g.target.ChainName)
	if err := g.provider.Request(ctx, "wallet_addEthereumChain", nil, g.target); err != nil {
		return g.fail(apperr.Wrap(apperr.NetworkMismatch, apperr.PhaseNetwork, err).
			WithMessage("Failed to add %s to wallet", g.target.ChainName))
	}

	if err := g.switchChain(ctx); err != nil {
		return g.fail(apperr.Wrap(apperr.NetworkMismatch, apperr.PhaseNetwork, err).
			WithMessage("Please switch to %s in your wallet", g.target.ChainName))
	}
	return g.ok()
}

func (g *Guard) onTarget(ctx context.Context) (bool, error) {
	var current string
	if err := g.provider.Request(ctx, "eth_chainId", &current); err != nil {
		return false, err
	}
	id, ok := config.ParseChainID(current)
	if !ok {
		return false, errors.New("wallet returned malformed chain id " + current)
	}
	return id.Cmp(g.targetID) == 0, nil
}

func (g *Guard) switchChain(ctx context.Context) error {
	return g.provider.Request(ctx, "wallet_switchEthereumChain", nil, models.SwitchChainParams{ChainID: g.target.ChainID})
}

func (g *Guard) ok() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mismatch = nil
	return nil
}

func (g *Guard) fail(err error) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.mismatch = err
	logger.Warn("Network check failed: %v", err)
	return err
}

func isUnrecognizedChain(err error) bool {
	var coded interface{ ErrorCode() int }
	return errors.As(err, &coded) && coded.ErrorCode() == models.UnrecognizedChainCode
}
