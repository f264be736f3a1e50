// Package transfer moves tokens out of an authorized account through the
// application contract. Only the contract owner may run it.
package transfer

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kelsos/approvals/internal/apperr"
	"github.com/kelsos/approvals/internal/blockchain"
	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/metrics"
	"github.com/kelsos/approvals/internal/models"
	"github.com/kelsos/approvals/internal/wallet"
)

// Identity is the operator session.
type Identity interface {
	Account() (common.Address, bool)
	Role() models.Role
}

// Sender broadcasts a contract call.
type Sender interface {
	Send(ctx context.Context, from, to common.Address, data []byte, gas models.Gas) (common.Hash, error)
}

// Waiter blocks until a transaction is mined.
type Waiter interface {
	Wait(ctx context.Context, hash common.Hash) (*models.Receipt, error)
}

// Request names the account to move funds out of.
type Request struct {
	Source common.Address
	// Destination is informational. The contract pays the calling owner;
	// when empty it defaults to the operator account.
	Destination common.Address
	Amount      string
}

// Result describes a broadcast and mined transfer.
type Result struct {
	Source      common.Address
	Destination common.Address
	Amount      string
	Balance     models.TokenAmount
	Allowance   *models.TokenAmount
	TxHash      common.Hash
	Message     string
}

// Workflow runs privileged transfers.
type Workflow struct {
	guard     wallet.ChainGuard
	contracts *blockchain.Contracts
	sender    Sender
	waiter    Waiter
	gas       models.Gas
	symbol    string
}

// NewWorkflow wires the workflow. gas is the transfer gas, which is set
// higher than the authorization gas.
func NewWorkflow(guard wallet.ChainGuard, contracts *blockchain.Contracts, sender Sender, waiter Waiter, gas models.Gas, symbol string) *Workflow {
	if symbol == "" {
		symbol = "USDT"
	}
	return &Workflow{
		guard:     guard,
		contracts: contracts,
		sender:    sender,
		waiter:    waiter,
		gas:       gas,
		symbol:    symbol,
	}
}

// Transfer moves amount out of req.Source.
//
// The source's allowance toward the contract is read and logged but not
// enforced; only the balance is checked before broadcasting.
func (w *Workflow) Transfer(ctx context.Context, id Identity, req Request) (*Result, error) {
	res, err := w.transfer(ctx, id, req)
	metrics.RecordTransfer(outcome(err))
	if err != nil {
		logger.Error("Transfer error: %v", err)
		return res, err
	}
	return res, nil
}

func (w *Workflow) transfer(ctx context.Context, id Identity, req Request) (*Result, error) {
	if !id.Role().IsPrivileged() {
		return nil, apperr.New(apperr.NotAuthorized, "Only the contract owner can transfer funds")
	}
	operator, ok := id.Account()
	if !ok {
		return nil, apperr.New(apperr.WalletUnavailable, "Please connect your wallet")
	}
	if req.Source == (common.Address{}) {
		return nil, apperr.New(apperr.InvalidAddress, "Please enter the user address to transfer from")
	}
	if req.Destination == (common.Address{}) {
		req.Destination = operator
	}

	if err := w.guard.EnsureTargetChain(ctx); err != nil {
		return nil, err
	}

	amount := strings.TrimSpace(req.Amount)
	wei, err := blockchain.ParseUnits(amount, w.contracts.Decimals())
	if err != nil {
		return nil, err
	}
	if wei.Sign() == 0 {
		return nil, apperr.New(apperr.InvalidAmount, "Please enter an amount greater than zero")
	}

	decimals := w.contracts.Decimals()
	balance, err := w.contracts.BalanceOf(ctx, req.Source)
	if err != nil {
		return nil, err
	}
	res := &Result{
		Source:      req.Source,
		Destination: req.Destination,
		Amount:      amount,
		Balance:     models.TokenAmount{Wei: balance, Human: blockchain.FormatUnits(balance, decimals)},
	}
	if balance.Cmp(wei) < 0 {
		return res, apperr.New(apperr.InsufficientBalance, "Insufficient balance. Available: %s %s, Required: %s %s",
			res.Balance.Human, w.symbol, amount, w.symbol)
	}

	allowance, err := w.contracts.Allowance(ctx, req.Source, w.contracts.Application())
	if err != nil {
		logger.Warn("Could not read allowance of %s: %v", req.Source.Hex(), err)
	} else {
		res.Allowance = &models.TokenAmount{Wei: allowance, Human: blockchain.FormatUnits(allowance, decimals)}
		logger.Info("Allowance of %s toward the contract: %s %s", req.Source.Hex(), res.Allowance.Human, w.symbol)
		if allowance.Cmp(wei) < 0 {
			logger.Warn("Allowance of %s is below the transfer amount; submitting anyway", req.Source.Hex())
		}
	}

	if req.Destination != operator {
		logger.Warn("Contract pays the calling owner %s; destination %s is recorded only", operator.Hex(), req.Destination.Hex())
	}

	data, err := w.contracts.PackTransferFunds(req.Source, wei)
	if err != nil {
		return res, apperr.Wrap(apperr.TransferFailed, apperr.PhaseTransfer, err)
	}
	hash, err := w.sender.Send(ctx, operator, w.contracts.Application(), data, w.gas)
	if err != nil {
		return res, apperr.Wrap(apperr.TransferFailed, apperr.PhaseTransfer, err)
	}
	res.TxHash = hash

	if _, err := w.waiter.Wait(ctx, hash); err != nil {
		return res, apperr.Wrap(apperr.TransferFailed, apperr.PhaseTransfer, err).WithTxHash(hash.Hex())
	}

	res.Message = "Transfer successful!"
	logger.Fields("source", req.Source.Hex(), "destination", req.Destination.Hex(), "amount", amount,
		"tx", hash.Hex()).Msg("transfer confirmed")
	return res, nil
}

func outcome(err error) string {
	switch apperr.KindOf(err) {
	case "":
		if err != nil {
			return "error"
		}
		return "success"
	case apperr.NotAuthorized:
		return "not_authorized"
	case apperr.InsufficientBalance:
		return "insufficient_balance"
	case apperr.TransferFailed:
		return "failed"
	default:
		return "rejected"
	}
}
