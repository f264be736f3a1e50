// Package chaintest provides an in-memory wallet provider backed by a
// scripted token and application contract, for exercising the workflows
// without a node.
package chaintest

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/kelsos/approvals/internal/blockchain"
	"github.com/kelsos/approvals/internal/models"
	"github.com/kelsos/approvals/internal/wallet"
)

// Well-known addresses used across tests.
var (
	Token       = common.HexToAddress("0x55d398326f99059fF775485246999027B3197955")
	Application = common.HexToAddress("0x797f35192418d62d4c7167f49f3f3934122659ef")
	Owner       = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	Alice       = common.HexToAddress("0x00000000000000000000000000000000000000a1")
	Bob         = common.HexToAddress("0x00000000000000000000000000000000000000b0")
)

// SentTx is a transaction the chain accepted through eth_sendTransaction.
type SentTx struct {
	Method   string
	From     common.Address
	To       common.Address
	Args     []interface{}
	Hash     common.Hash
	Gas      uint64
	GasPrice *big.Int
}

// Chain is a scripted wallet provider. All exported maps may be edited by
// tests before the first request.
type Chain struct {
	mu sync.Mutex

	ChainID     string
	KnownChains map[string]bool
	Accounts    []string
	Owner       common.Address
	Balances    map[common.Address]*big.Int
	Allowances  map[common.Address]map[common.Address]*big.Int

	// Fail makes an RPC method, or a contract method submitted through
	// eth_sendTransaction, return the given error.
	Fail map[string]error
	// Revert makes a contract method mine with a failure status.
	Revert map[string]bool
	// Pending makes a contract method never produce a receipt.
	Pending map[string]bool

	calls    map[string]int
	sent     []SentTx
	receipts map[common.Hash]*models.Receipt
	nonce    int64
}

// New returns a chain on BSC mainnet with Owner as the contract owner.
func New() *Chain {
	return &Chain{
		ChainID:     "0x38",
		KnownChains: map[string]bool{"0x38": true, "0x1": true},
		Accounts:    []string{Alice.Hex()},
		Owner:       Owner,
		Balances:    map[common.Address]*big.Int{},
		Allowances:  map[common.Address]map[common.Address]*big.Int{},
		Fail:        map[string]error{},
		Revert:      map[string]bool{},
		Pending:     map[string]bool{},
		calls:       map[string]int{},
		receipts:    map[common.Hash]*models.Receipt{},
	}
}

// Rejected is the provider error for a request the user declined.
func Rejected() error {
	return &wallet.ProviderError{Code: wallet.UserRejectedCode, Message: "User denied transaction signature."}
}

// SetBalance sets a token balance in human units (18 decimals).
func (c *Chain) SetBalance(account common.Address, human string) {
	wei, err := blockchain.ParseUnits(human, 18)
	if err != nil {
		panic(err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Balances[account] = wei
}

// Balance returns a token balance in smallest units.
func (c *Chain) Balance(account common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balanceLocked(account)
}

// Calls returns how many times an RPC method was requested.
func (c *Chain) Calls(method string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[method]
}

// TotalCalls returns the number of requests of any method.
func (c *Chain) TotalCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 0
	for _, n := range c.calls {
		total += n
	}
	return total
}

// Sent returns the accepted transactions in broadcast order.
func (c *Chain) Sent() []SentTx {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]SentTx(nil), c.sent...)
}

// SentMethods returns the contract method of each accepted transaction.
func (c *Chain) SentMethods() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	methods := make([]string, 0, len(c.sent))
	for _, tx := range c.sent {
		methods = append(methods, tx.Method)
	}
	return methods
}

// Request implements wallet.Provider. Params and results round-trip through
// JSON so tests see the same encoding a real endpoint would produce.
func (c *Chain) Request(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	var wire []json.RawMessage
	if err := json.Unmarshal(raw, &wire); err != nil {
		return err
	}

	c.mu.Lock()
	c.calls[method]++
	if err := c.Fail[method]; err != nil {
		c.mu.Unlock()
		return err
	}
	out, err := c.dispatch(method, wire)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	if result == nil {
		return nil
	}
	encoded, err := json.Marshal(out)
	if err != nil {
		return err
	}
	return json.Unmarshal(encoded, result)
}

func (c *Chain) dispatch(method string, params []json.RawMessage) (interface{}, error) {
	switch method {
	case "eth_chainId":
		return c.ChainID, nil
	case "eth_requestAccounts", "eth_accounts":
		return c.Accounts, nil
	case "wallet_switchEthereumChain":
		var p models.SwitchChainParams
		if err := decodeParam(params, 0, &p); err != nil {
			return nil, err
		}
		id := strings.ToLower(p.ChainID)
		if !c.KnownChains[id] {
			return nil, &wallet.ProviderError{Code: models.UnrecognizedChainCode, Message: "Unrecognized chain ID " + p.ChainID}
		}
		c.ChainID = id
		return nil, nil
	case "wallet_addEthereumChain":
		var p models.ChainParams
		if err := decodeParam(params, 0, &p); err != nil {
			return nil, err
		}
		c.KnownChains[strings.ToLower(p.ChainID)] = true
		return nil, nil
	case "eth_call":
		var call models.CallRequest
		if err := decodeParam(params, 0, &call); err != nil {
			return nil, err
		}
		return c.call(call)
	case "eth_sendTransaction":
		var tx models.TxRequest
		if err := decodeParam(params, 0, &tx); err != nil {
			return nil, err
		}
		return c.send(tx)
	case "eth_getTransactionReceipt":
		var hash common.Hash
		if err := decodeParam(params, 0, &hash); err != nil {
			return nil, err
		}
		return c.receipts[hash], nil
	default:
		return nil, &wallet.ProviderError{Code: -32601, Message: "method not supported: " + method}
	}
}

func (c *Chain) call(call models.CallRequest) (interface{}, error) {
	contract, method, args, err := c.decode(call.To, call.Data)
	if err != nil {
		return nil, err
	}

	var values []interface{}
	switch method.Name {
	case blockchain.MethodBalanceOf:
		values = []interface{}{c.balanceLocked(args[0].(common.Address))}
	case blockchain.MethodAllowance:
		values = []interface{}{c.allowanceLocked(args[0].(common.Address), args[1].(common.Address))}
	case blockchain.MethodOwner:
		values = []interface{}{c.Owner}
	default:
		return nil, &wallet.ProviderError{Code: -32000, Message: "execution reverted"}
	}

	packed, err := contract.Methods[method.Name].Outputs.Pack(values...)
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(packed), nil
}

func (c *Chain) send(tx models.TxRequest) (interface{}, error) {
	_, method, args, err := c.decode(tx.To, tx.Data)
	if err != nil {
		return nil, err
	}
	if err := c.Fail[method.Name]; err != nil {
		return nil, err
	}

	c.nonce++
	hash := common.BigToHash(big.NewInt(0x1000 + c.nonce))
	sent := SentTx{
		Method: method.Name,
		From:   tx.From,
		To:     tx.To,
		Args:   args,
		Hash:   hash,
		Gas:    uint64(tx.Gas),
	}
	if tx.GasPrice != nil {
		sent.GasPrice = tx.GasPrice.ToInt()
	}
	c.sent = append(c.sent, sent)

	if c.Pending[method.Name] {
		return hash, nil
	}

	status := hexutil.Uint64(models.ReceiptStatusSuccessful)
	if c.Revert[method.Name] {
		status = 0
	} else {
		c.apply(sent)
	}
	c.receipts[hash] = &models.Receipt{
		TransactionHash: hash,
		BlockNumber:     (*hexutil.Big)(big.NewInt(40_000_000 + c.nonce)),
		GasUsed:         hexutil.Uint64(tx.Gas) / 2,
		Status:          status,
	}
	return hash, nil
}

func (c *Chain) apply(tx SentTx) {
	switch tx.Method {
	case blockchain.MethodApprove:
		spender := tx.Args[0].(common.Address)
		if c.Allowances[tx.From] == nil {
			c.Allowances[tx.From] = map[common.Address]*big.Int{}
		}
		c.Allowances[tx.From][spender] = new(big.Int).Set(tx.Args[1].(*big.Int))
	case blockchain.MethodTransferFunds:
		source := tx.Args[0].(common.Address)
		amount := tx.Args[1].(*big.Int)
		c.Balances[source] = new(big.Int).Sub(c.balanceLocked(source), amount)
		c.Balances[tx.From] = new(big.Int).Add(c.balanceLocked(tx.From), amount)
	}
}

func (c *Chain) decode(to common.Address, data []byte) (abi.ABI, *abi.Method, []interface{}, error) {
	var contract abi.ABI
	switch to {
	case Token:
		contract = blockchain.TokenContractABI()
	case Application:
		contract = blockchain.ApplicationContractABI()
	default:
		return abi.ABI{}, nil, nil, &wallet.ProviderError{Code: -32000, Message: "no contract at " + to.Hex()}
	}
	if len(data) < 4 {
		return abi.ABI{}, nil, nil, fmt.Errorf("calldata too short")
	}
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return abi.ABI{}, nil, nil, err
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return abi.ABI{}, nil, nil, err
	}
	return contract, method, args, nil
}

func (c *Chain) balanceLocked(account common.Address) *big.Int {
	if b, ok := c.Balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (c *Chain) allowanceLocked(owner, spender common.Address) *big.Int {
	if a, ok := c.Allowances[owner][spender]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

func decodeParam(params []json.RawMessage, i int, dst interface{}) error {
	if len(params) <= i {
		return fmt.Errorf("missing param %d", i)
	}
	return json.Unmarshal(params[i], dst)
}
