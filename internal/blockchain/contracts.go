package blockchain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/kelsos/approvals/internal/apperr"
	"github.com/kelsos/approvals/internal/models"
	"github.com/kelsos/approvals/internal/wallet"
)

// TokenABI covers the token-standard calls used by the workflows.
const TokenABI = `[
	{"constant":true,"inputs":[{"name":"_owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"balance","type":"uint256"}],"type":"function"},
	{"constant":true,"inputs":[{"name":"_owner","type":"address"},{"name":"_spender","type":"address"}],"name":"allowance","outputs":[{"name":"remaining","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"_spender","type":"address"},{"name":"_value","type":"uint256"}],"name":"approve","outputs":[{"name":"success","type":"bool"}],"type":"function"}
]`

// ApplicationABI covers the application contract's owner query, finalize
// call and privileged transfer.
const ApplicationABI = `[
	{"constant":true,"inputs":[],"name":"owner","outputs":[{"name":"","type":"address"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"amount","type":"uint256"}],"name":"approveContract","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"}],"name":"transferFunds","outputs":[],"type":"function"}
]`

// Contract method names.
const (
	MethodBalanceOf       = "balanceOf"
	MethodAllowance       = "allowance"
	MethodApprove         = "approve"
	MethodOwner           = "owner"
	MethodApproveContract = "approveContract"
	MethodTransferFunds   = "transferFunds"
)

var (
	tokenABI       = mustParseABI(TokenABI)
	applicationABI = mustParseABI(ApplicationABI)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("parse abi: %v", err))
	}
	return parsed
}

// TokenContractABI returns the parsed token ABI.
func TokenContractABI() abi.ABI { return tokenABI }

// ApplicationContractABI returns the parsed application ABI.
func ApplicationContractABI() abi.ABI { return applicationABI }

// Contracts performs read queries against the token and the application
// contract, and encodes their state-changing calls.
type Contracts struct {
	provider    wallet.Provider
	token       common.Address
	application common.Address
	decimals    int32
}

// NewContracts binds the token and application contract addresses.
func NewContracts(provider wallet.Provider, token, application common.Address, decimals int32) *Contracts {
	return &Contracts{
		provider:    provider,
		token:       token,
		application: application,
		decimals:    decimals,
	}
}

// Token returns the token contract address.
func (c *Contracts) Token() common.Address { return c.token }

// Application returns the application contract address.
func (c *Contracts) Application() common.Address { return c.application }

// Decimals returns the token's declared precision.
func (c *Contracts) Decimals() int32 { return c.decimals }

// BalanceOf returns the token balance of account in smallest units.
func (c *Contracts) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.readUint(ctx, c.token, tokenABI, MethodBalanceOf, account)
}

// Allowance returns how much spender may move on behalf of owner.
func (c *Contracts) Allowance(ctx context.Context, owner, spender common.Address) (*big.Int, error) {
	return c.readUint(ctx, c.token, tokenABI, MethodAllowance, owner, spender)
}

// Owner returns the application contract's registered owner.
func (c *Contracts) Owner(ctx context.Context) (common.Address, error) {
	out, err := c.read(ctx, c.application, applicationABI, MethodOwner)
	if err != nil {
		return common.Address{}, err
	}
	owner, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, apperr.New(apperr.ChainCallFailed, "unexpected owner() result type %T", out[0])
	}
	return owner, nil
}

// PackApprove encodes the allowance grant naming the application contract.
func (c *Contracts) PackApprove(amount *big.Int) ([]byte, error) {
	return tokenABI.Pack(MethodApprove, c.application, amount)
}

// PackApproveContract encodes the application's finalize call.
func (c *Contracts) PackApproveContract(amount *big.Int) ([]byte, error) {
	return applicationABI.Pack(MethodApproveContract, amount)
}

// PackTransferFunds encodes the privileged move out of source.
func (c *Contracts) PackTransferFunds(source common.Address, amount *big.Int) ([]byte, error) {
	return applicationABI.Pack(MethodTransferFunds, source, amount)
}

func (c *Contracts) readUint(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) (*big.Int, error) {
	out, err := c.read(ctx, to, contract, method, args...)
	if err != nil {
		return nil, err
	}
	value, ok := out[0].(*big.Int)
	if !ok {
		return nil, apperr.New(apperr.ChainCallFailed, "unexpected %s() result type %T", method, out[0])
	}
	return value, nil
}

func (c *Contracts) read(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.ChainCallFailed, apperr.PhaseFetch, err).
			WithMessage("encode %s: %v", method, err)
	}

	var raw hexutil.Bytes
	call := models.CallRequest{To: to, Data: data}
	if err := c.provider.Request(ctx, "eth_call", &raw, call, "latest"); err != nil {
		return nil, apperr.Wrap(apperr.ChainCallFailed, apperr.PhaseFetch, err).
			WithMessage("%s query failed: %v", method, err)
	}

	out, err := contract.Unpack(method, raw)
	if err != nil {
		return nil, apperr.Wrap(apperr.ChainCallFailed, apperr.PhaseFetch, err).
			WithMessage("decode %s result: %v", method, err)
	}
	if len(out) == 0 {
		return nil, apperr.New(apperr.ChainCallFailed, "%s returned no data", method)
	}
	return out, nil
}
