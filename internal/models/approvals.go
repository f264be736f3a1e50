package models

import "time"

// StatusApproved is the only status produced by the authorization workflow
const StatusApproved = "approved"

// ApprovalRecord is a persisted, immutable authorization ledger entry
type ApprovalRecord struct {
	ID            string    `json:"id" db:"id"`
	WalletAddress string    `json:"walletAddress" db:"wallet_address"`
	Amount        string    `json:"amount" db:"amount"`
	TxHash        string    `json:"txHash" db:"tx_hash"`
	Timestamp     time.Time `json:"timestamp" db:"timestamp"`
	Status        string    `json:"status" db:"status"`
}
