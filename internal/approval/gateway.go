// Package approval runs the two-phase token authorization: an allowance
// grant naming the application contract, then the contract's finalize call,
// then one ledger record. The two transactions are strictly sequential.
package approval

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/kelsos/approvals/internal/apperr"
	"github.com/kelsos/approvals/internal/async"
	"github.com/kelsos/approvals/internal/blockchain"
	"github.com/kelsos/approvals/internal/ledger"
	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/metrics"
	"github.com/kelsos/approvals/internal/models"
	"github.com/kelsos/approvals/internal/wallet"
)

// Identity is the connected account a request is made for.
type Identity interface {
	Account() (common.Address, bool)
}

// Sender broadcasts a contract call from the connected account.
type Sender interface {
	Send(ctx context.Context, from, to common.Address, data []byte, gas models.Gas) (common.Hash, error)
}

// Waiter blocks until a broadcast transaction is mined.
type Waiter interface {
	Wait(ctx context.Context, hash common.Hash) (*models.Receipt, error)
}

// Recorder persists a completed authorization.
type Recorder interface {
	Record(ctx context.Context, entry ledger.Entry) (string, error)
}

// Request is the pre-populated form of an authorization.
type Request struct {
	Account common.Address
	Balance models.TokenAmount
	// Amount defaults to the full balance. It is advisory; the caller may
	// change it and nothing limits it to the balance.
	Amount string
}

// Outcome is the single terminal report of an Authorize call.
type Outcome struct {
	Account     common.Address
	Amount      string
	State       State
	FailedPhase string
	AllowanceTx common.Hash
	FinalizeTx  common.Hash
	RecordID    string
	Message     string
	Err         error
}

// Succeeded reports whether the authorization was confirmed and recorded.
func (o *Outcome) Succeeded() bool {
	return o.State == StateRecorded
}

// Gateway performs authorizations for the session account.
type Gateway struct {
	guard     wallet.ChainGuard
	contracts *blockchain.Contracts
	sender    Sender
	waiter    Waiter
	recorder  Recorder
	gas       models.Gas
	symbol    string

	mu       sync.Mutex
	inflight map[common.Address]struct{}
}

// NewGateway wires the gateway. gas is used for both transactions.
func NewGateway(guard wallet.ChainGuard, contracts *blockchain.Contracts, sender Sender, waiter Waiter, recorder Recorder, gas models.Gas, symbol string) *Gateway {
	if symbol == "" {
		symbol = "USDT"
	}
	return &Gateway{
		guard:     guard,
		contracts: contracts,
		sender:    sender,
		waiter:    waiter,
		recorder:  recorder,
		gas:       gas,
		symbol:    symbol,
		inflight:  make(map[common.Address]struct{}),
	}
}

// Prepare reads the account balance and pre-populates the amount with it.
func (g *Gateway) Prepare(ctx context.Context, id Identity) (*Request, error) {
	account, ok := id.Account()
	if !ok {
		return nil, apperr.New(apperr.WalletUnavailable, "Please connect your wallet")
	}
	if err := g.guard.EnsureTargetChain(ctx); err != nil {
		return nil, err
	}

	balance, err := g.contracts.BalanceOf(ctx, account)
	if err != nil {
		return nil, err
	}

	human := blockchain.FormatUnits(balance, g.contracts.Decimals())
	return &Request{
		Account: account,
		Balance: models.TokenAmount{Wei: balance, Human: human},
		Amount:  human,
	}, nil
}

// Authorize grants the application contract an allowance of amount and then
// finalizes it with the contract. The ledger is written with the finalize
// transaction hash, and success is reported only after that write.
//
// The returned Outcome is never nil and always holds a terminal state; the
// error is the same as Outcome.Err.
func (g *Gateway) Authorize(ctx context.Context, id Identity, amount string, progress Progress) (*Outcome, error) {
	r := &run{state: StateIdle, progress: progress}
	out := &Outcome{Amount: strings.TrimSpace(amount)}

	account, ok := id.Account()
	if !ok {
		return g.finish(r, out, apperr.New(apperr.WalletUnavailable, "Please connect your wallet"))
	}
	out.Account = account

	if !g.acquire(account) {
		return g.finish(r, out, apperr.New(apperr.AuthorizationInFlight,
			"An approval for %s is already in progress", account.Hex()))
	}
	defer g.release(account)

	wei, err := g.fetch(ctx, r, out)
	if err != nil {
		return g.finish(r, out, err)
	}
	if err := g.allowance(ctx, r, out, wei); err != nil {
		return g.finish(r, out, err)
	}
	if err := g.finalize(ctx, r, out, wei); err != nil {
		return g.finish(r, out, err)
	}
	return g.finish(r, out, g.record(ctx, r, out))
}

func (g *Gateway) fetch(ctx context.Context, r *run, out *Outcome) (*big.Int, error) {
	if err := r.advance(StateFetchingState, ""); err != nil {
		return nil, err
	}
	if err := g.guard.EnsureTargetChain(ctx); err != nil {
		return nil, err
	}

	wei, err := blockchain.ParseUnits(out.Amount, g.contracts.Decimals())
	if err != nil {
		return nil, err
	}
	if wei.Sign() == 0 {
		return nil, apperr.New(apperr.InvalidAmount, "Please enter an amount greater than zero")
	}

	balance, err := g.contracts.BalanceOf(ctx, out.Account)
	if err != nil {
		return nil, err
	}
	if balance.Cmp(wei) < 0 {
		logger.Warn("Approving %s %s for %s with a balance of only %s", out.Amount, g.symbol,
			out.Account.Hex(), blockchain.FormatUnits(balance, g.contracts.Decimals()))
	}
	return wei, nil
}

func (g *Gateway) allowance(ctx context.Context, r *run, out *Outcome, wei *big.Int) error {
	if err := r.advance(StateAllowancePending, fmt.Sprintf("Approving %s contract...", g.symbol)); err != nil {
		return err
	}

	data, err := g.contracts.PackApprove(wei)
	if err != nil {
		return apperr.Wrap(apperr.AllowancePhaseFailed, apperr.PhaseAllowance, err)
	}
	hash, err := g.sender.Send(ctx, out.Account, g.contracts.Token(), data, g.gas)
	if err != nil {
		return apperr.Wrap(apperr.AllowancePhaseFailed, apperr.PhaseAllowance, err)
	}
	out.AllowanceTx = hash

	if err := g.confirm(ctx, blockchain.MethodApprove, hash); err != nil {
		return apperr.Wrap(apperr.AllowancePhaseFailed, apperr.PhaseAllowance, err).WithTxHash(hash.Hex())
	}

	return r.advance(StateAllowanceConfirmed,
		fmt.Sprintf("%s approval successful! Now finalizing with contract...", g.symbol))
}

func (g *Gateway) finalize(ctx context.Context, r *run, out *Outcome, wei *big.Int) error {
	if err := r.advance(StateFinalizePending, ""); err != nil {
		return err
	}

	data, err := g.contracts.PackApproveContract(wei)
	if err != nil {
		return apperr.Wrap(apperr.FinalizePhaseFailed, apperr.PhaseFinalize, err)
	}
	hash, err := g.sender.Send(ctx, out.Account, g.contracts.Application(), data, g.gas)
	if err != nil {
		return apperr.Wrap(apperr.FinalizePhaseFailed, apperr.PhaseFinalize, err)
	}
	out.FinalizeTx = hash

	if err := g.confirm(ctx, blockchain.MethodApproveContract, hash); err != nil {
		return apperr.Wrap(apperr.FinalizePhaseFailed, apperr.PhaseFinalize, err).WithTxHash(hash.Hex())
	}

	return r.advance(StateFinalizeConfirmed, "")
}

func (g *Gateway) record(ctx context.Context, r *run, out *Outcome) error {
	id, err := g.recorder.Record(ctx, ledger.Entry{
		WalletAddress: out.Account.Hex(),
		Amount:        out.Amount,
		TxHash:        out.FinalizeTx.Hex(),
		Status:        models.StatusApproved,
	})
	if err != nil {
		if advErr := r.advance(StateUnrecorded, ""); advErr != nil {
			return advErr
		}
		return apperr.Wrap(apperr.LedgerWriteFailed, apperr.PhaseLedger, err).WithTxHash(out.FinalizeTx.Hex())
	}
	out.RecordID = id

	return r.advance(StateRecorded, "Approval successful!")
}

func (g *Gateway) confirm(ctx context.Context, method string, hash common.Hash) error {
	start := time.Now()
	_, err := g.waiter.Wait(ctx, hash)
	if err == nil || errors.Is(err, async.ErrReverted) {
		metrics.ObserveConfirmation(method, time.Since(start))
	}
	return err
}

// finish moves the run to its terminal state, fills the outcome and
// reports it exactly once.
func (g *Gateway) finish(r *run, out *Outcome, err error) (*Outcome, error) {
	last := r.state
	if err != nil && !r.state.Terminal() {
		r.state = StateFailed
	}
	out.State = r.state
	out.Err = err

	if err != nil {
		out.FailedPhase = phaseOf(last)
		var e *apperr.Error
		if errors.As(err, &e) && e.Phase != "" {
			out.FailedPhase = e.Phase
		}
		out.Message = apperr.UserMessage(err)
		if r.progress != nil {
			r.progress(out.State, out.Message)
		}
		logger.Fields("account", out.Account.Hex(), "state", string(out.State), "phase", out.FailedPhase,
			"allowance_tx", hashOrEmpty(out.AllowanceTx), "finalize_tx", hashOrEmpty(out.FinalizeTx)).
			Msg("authorization failed: " + err.Error())
	} else {
		out.Message = "Approval successful!"
		logger.Fields("account", out.Account.Hex(), "amount", out.Amount, "finalize_tx", out.FinalizeTx.Hex(),
			"record", out.RecordID).Msg("authorization recorded")
	}

	metrics.RecordAuthorization(string(out.State), out.FailedPhase)
	return out, err
}

func (g *Gateway) acquire(account common.Address) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.inflight[account]; busy {
		return false
	}
	g.inflight[account] = struct{}{}
	return true
}

func (g *Gateway) release(account common.Address) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inflight, account)
}

// phaseOf names the phase that was running while the request sat in s.
func phaseOf(s State) string {
	switch s {
	case StateFetchingState:
		return apperr.PhaseFetch
	case StateAllowancePending:
		return apperr.PhaseAllowance
	case StateAllowanceConfirmed, StateFinalizePending:
		return apperr.PhaseFinalize
	case StateFinalizeConfirmed, StateUnrecorded:
		return apperr.PhaseLedger
	default:
		return ""
	}
}

func hashOrEmpty(h common.Hash) string {
	if h == (common.Hash{}) {
		return ""
	}
	return h.Hex()
}
