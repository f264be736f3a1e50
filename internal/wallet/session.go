package wallet

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kelsos/approvals/internal/apperr"
	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/models"
)

// ChainGuard keeps the provider on the target network.
type ChainGuard interface {
	EnsureTargetChain(ctx context.Context) error
}

// OwnerReader returns the application contract's owner of record.
type OwnerReader interface {
	Owner(ctx context.Context) (common.Address, error)
}

// Session is the single connected-wallet identity. It is passed explicitly
// to every workflow; only the session itself mutates account and role.
type Session struct {
	provider Provider
	guard    ChainGuard
	owners   OwnerReader

	mu        sync.RWMutex
	account   common.Address
	connected bool
	role      models.Role
}

// NewSession creates a disconnected session. provider may be nil, in which
// case Connect fails with WalletUnavailable.
func NewSession(provider Provider, guard ChainGuard, owners OwnerReader) *Session {
	return &Session{
		provider: provider,
		guard:    guard,
		owners:   owners,
		role:     models.RoleUnknown,
	}
}

// Provider returns the wallet provider bound to this session.
func (s *Session) Provider() Provider {
	return s.provider
}

// Connect requests account access and binds the first returned account.
func (s *Session) Connect(ctx context.Context) (common.Address, error) {
	if s.provider == nil {
		return common.Address{}, apperr.New(apperr.WalletUnavailable, "Please install MetaMask")
	}

	if err := s.guard.EnsureTargetChain(ctx); err != nil {
		return common.Address{}, err
	}

	var accounts []string
	if err := s.provider.Request(ctx, "eth_requestAccounts", &accounts); err != nil {
		return common.Address{}, apperr.Wrap(apperr.ConnectionRejected, apperr.PhaseConnect, err).
			WithMessage("Failed to connect wallet: %v", err)
	}
	if len(accounts) == 0 {
		return common.Address{}, apperr.New(apperr.ConnectionRejected, "Failed to connect wallet: no accounts returned")
	}
	if !common.IsHexAddress(accounts[0]) {
		return common.Address{}, apperr.New(apperr.ConnectionRejected, "Failed to connect wallet: invalid account %q", accounts[0])
	}

	account := common.HexToAddress(accounts[0])
	s.bind(account)
	logger.Info("Wallet connected: %s", account.Hex())
	return account, nil
}

// SwitchAccount handles an accountsChanged event from the provider.
// The role is recomputed immediately for the new account.
func (s *Session) SwitchAccount(ctx context.Context, account common.Address) (models.Role, error) {
	s.bind(account)
	logger.Info("Wallet account changed: %s", account.Hex())
	return s.ResolveRole(ctx)
}

// Disconnect clears the account and the derived role.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = common.Address{}
	s.connected = false
	s.role = models.RoleUnknown
}

func (s *Session) bind(account common.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
	s.connected = true
	s.role = models.RoleUnknown
}

// Account returns the connected account.
func (s *Session) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.connected
}

// Role returns the role last resolved for the current account.
func (s *Session) Role() models.Role {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.role
}

// ResolveRole queries the contract owner and derives the role of the
// connected account. The result is discarded if the account changed while
// the query was in flight.
func (s *Session) ResolveRole(ctx context.Context) (models.Role, error) {
	account, ok := s.Account()
	if !ok {
		return models.RoleUnknown, apperr.New(apperr.WalletUnavailable, "wallet not connected")
	}

	if err := s.guard.EnsureTargetChain(ctx); err != nil {
		return models.RoleUnknown, err
	}

	owner, err := s.owners.Owner(ctx)
	if err != nil {
		return models.RoleUnknown, err
	}

	role := DeriveRole(account, owner)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected || s.account != account {
		return s.role, nil
	}
	s.role = role
	logger.Debug("Resolved role %s for %s (owner %s)", role, account.Hex(), owner.Hex())
	return role, nil
}

// DeriveRole is owner iff account equals the owner of record. Addresses are
// compared as bytes, so checksum casing never matters.
func DeriveRole(account, owner common.Address) models.Role {
	if account == (common.Address{}) {
		return models.RoleUnknown
	}
	if account == owner {
		return models.RoleOwner
	}
	return models.RoleUser
}
