package models

import "math/big"

// TokenAmount pairs a smallest-unit value with its human representation
type TokenAmount struct {
	Wei   *big.Int `json:"-"`
	Human string   `json:"amount"`
}
