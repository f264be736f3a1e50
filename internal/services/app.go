package services

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kelsos/approvals/internal/approval"
	"github.com/kelsos/approvals/internal/async"
	"github.com/kelsos/approvals/internal/blockchain"
	"github.com/kelsos/approvals/internal/config"
	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/transfer"
	"github.com/kelsos/approvals/internal/wallet"
)

// App wires the wallet session, the chain access and the ledger for one
// operator process.
type App struct {
	provider  wallet.Provider
	session   *wallet.Session
	ledger    *LedgerService
	gateway   *approval.Gateway
	transfers *transfer.Workflow
}

// NewApp dials the wallet provider and opens the ledger.
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	provider, err := wallet.Dial(ctx, cfg.WalletURL)
	if err != nil {
		return nil, err
	}

	ledgerService, err := OpenLedger(ctx, cfg)
	if err != nil {
		provider.Close()
		return nil, err
	}

	app, err := NewAppWithProvider(cfg, provider, ledgerService)
	if err != nil {
		provider.Close()
		ledgerService.Close()
		return nil, err
	}
	return app, nil
}

// NewAppWithProvider wires an app over an existing provider and ledger.
func NewAppWithProvider(cfg *config.Config, provider wallet.Provider, ledgerService *LedgerService) (*App, error) {
	guard, err := blockchain.NewGuard(provider, cfg.ChainParams())
	if err != nil {
		return nil, err
	}

	authGas, err := cfg.AuthorizationGas()
	if err != nil {
		return nil, err
	}
	transferGas, err := cfg.TransferGas()
	if err != nil {
		return nil, err
	}

	contracts := blockchain.NewContracts(provider,
		common.HexToAddress(cfg.TokenAddress),
		common.HexToAddress(cfg.ContractAddress),
		cfg.TokenDecimals)
	transactor := blockchain.NewTransactor(provider)
	confirmer := async.NewConfirmer(provider, cfg.PollInterval, cfg.ConfirmTimeout)

	return &App{
		provider:  provider,
		session:   wallet.NewSession(provider, guard, contracts),
		ledger:    ledgerService,
		gateway:   approval.NewGateway(guard, contracts, transactor, confirmer, ledgerService, authGas, cfg.TokenSymbol),
		transfers: transfer.NewWorkflow(guard, contracts, transactor, confirmer, transferGas, cfg.TokenSymbol),
	}, nil
}

func (a *App) Session() *wallet.Session {
	return a.session
}

func (a *App) Ledger() *LedgerService {
	return a.ledger
}

func (a *App) Gateway() *approval.Gateway {
	return a.gateway
}

func (a *App) Transfers() *transfer.Workflow {
	return a.transfers
}

// Connect binds the wallet account and resolves its role. A failed owner
// read fails the connection so the role is never left unknown.
func (a *App) Connect(ctx context.Context) (common.Address, error) {
	account, err := a.session.Connect(ctx)
	if err != nil {
		return common.Address{}, err
	}
	role, err := a.session.ResolveRole(ctx)
	if err != nil {
		logger.Error("Could not resolve role for %s: %v", account.Hex(), err)
		return account, err
	}
	logger.Info("Connected %s as %s", account.Hex(), role)
	return account, nil
}

// Cleanup releases the provider and ledger connections.
func (a *App) Cleanup() {
	a.session.Disconnect()
	if c, ok := a.provider.(interface{ Close() }); ok {
		c.Close()
	}
	if err := a.ledger.Close(); err != nil {
		logger.Warn("Error closing ledger: %v", err)
	}
}
