package models

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Gas holds the fixed gas price and limit used for a class of calls
type Gas struct {
	Price *big.Int
	Limit uint64
}

// TxRequest is the eth_sendTransaction payload handed to the wallet for signing
type TxRequest struct {
	From     common.Address `json:"from"`
	To       common.Address `json:"to"`
	Data     hexutil.Bytes  `json:"data"`
	Gas      hexutil.Uint64 `json:"gas"`
	GasPrice *hexutil.Big   `json:"gasPrice,omitempty"`
	Value    *hexutil.Big   `json:"value,omitempty"`
}

// CallRequest is the eth_call payload for read-only contract queries
type CallRequest struct {
	From *common.Address `json:"from,omitempty"`
	To   common.Address  `json:"to"`
	Data hexutil.Bytes   `json:"data"`
}

// Receipt is the subset of a transaction receipt the workflows inspect
type Receipt struct {
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     *hexutil.Big   `json:"blockNumber"`
	GasUsed         hexutil.Uint64 `json:"gasUsed"`
	Status          hexutil.Uint64 `json:"status"`
}

// ReceiptStatusSuccessful mirrors the EIP-658 success status
const ReceiptStatusSuccessful = 1

// Succeeded reports whether the transaction executed without reverting
func (r *Receipt) Succeeded() bool {
	return r != nil && uint64(r.Status) == ReceiptStatusSuccessful
}
