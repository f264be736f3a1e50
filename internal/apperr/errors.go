// Package apperr defines the single error shape used by every on-chain,
// wallet and ledger operation.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a failure. Kinds are comparable with errors.Is:
//
//	errors.Is(err, apperr.NotAuthorized)
type Kind string

func (k Kind) Error() string { return string(k) }

const (
	WalletUnavailable     Kind = "wallet unavailable"
	ConnectionRejected    Kind = "connection rejected"
	NetworkMismatch       Kind = "network mismatch"
	ChainCallFailed       Kind = "chain call failed"
	AllowancePhaseFailed  Kind = "allowance phase failed"
	FinalizePhaseFailed   Kind = "finalize phase failed"
	LedgerWriteFailed     Kind = "ledger write failed"
	NotAuthorized         Kind = "not authorized"
	InsufficientBalance   Kind = "insufficient balance"
	TransferFailed        Kind = "transfer failed"
	InvalidAmount         Kind = "invalid amount"
	InvalidRecord         Kind = "invalid record"
	InvalidAddress        Kind = "invalid address"
	AuthorizationInFlight Kind = "authorization in flight"
)

// Phase names the step of a workflow an error belongs to.
const (
	PhaseNetwork   = "network"
	PhaseConnect   = "connect"
	PhaseRole      = "role"
	PhaseFetch     = "fetch"
	PhaseAllowance = "allowance"
	PhaseFinalize  = "finalize"
	PhaseLedger    = "ledger"
	PhaseTransfer  = "transfer"
)

// Error is the normalized failure carried through the engine. Code, Data
// and TxHash are optional; they are populated whenever the wallet provider
// or the chain reported them.
type Error struct {
	Kind    Kind
	Phase   string
	Message string
	Code    *int
	Data    interface{}
	TxHash  string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Phase != "" {
		fmt.Fprintf(&b, " [%s]", e.Phase)
	}
	if msg := e.message(); msg != "" {
		b.WriteString(": ")
		b.WriteString(msg)
	}
	if e.Code != nil {
		fmt.Fprintf(&b, " (code %d)", *e.Code)
	}
	if e.TxHash != "" {
		fmt.Fprintf(&b, " tx=%s", e.TxHash)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches a Kind so callers never need a type assertion.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

func (e *Error) message() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return ""
}

// New creates an error of the given kind with a human message.
func New(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches kind and phase to err, lifting the machine code and data
// payload out of provider errors (anything exposing ErrorCode/ErrorData,
// which includes go-ethereum rpc errors).
func Wrap(kind Kind, phase string, err error) *Error {
	e := &Error{Kind: kind, Phase: phase, Err: err}
	if err == nil {
		return e
	}

	var coded interface{ ErrorCode() int }
	if errors.As(err, &coded) {
		code := coded.ErrorCode()
		e.Code = &code
	}
	var withData interface{ ErrorData() interface{} }
	if errors.As(err, &withData) {
		e.Data = withData.ErrorData()
	}
	var inner *Error
	if errors.As(err, &inner) {
		if e.TxHash == "" {
			e.TxHash = inner.TxHash
		}
		if e.Code == nil {
			e.Code = inner.Code
		}
		if e.Data == nil {
			e.Data = inner.Data
		}
	}
	return e
}

// WithTxHash records the hash of a broadcast transaction.
func (e *Error) WithTxHash(hash string) *Error {
	e.TxHash = hash
	return e
}

// WithMessage replaces the human message.
func (e *Error) WithMessage(format string, args ...interface{}) *Error {
	e.Message = fmt.Sprintf(format, args...)
	return e
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// UserMessage renders the status line shown to the user for err.
// A confirmed-but-unrecorded approval never shares the shape of a failed
// transaction.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return err.Error()
	}

	switch e.Kind {
	case AllowancePhaseFailed:
		return chainFailure("Error during approval (allowance step)", e)
	case FinalizePhaseFailed:
		return chainFailure("Error during approval (finalize step)", e)
	case TransferFailed:
		return chainFailure("Error during transfer", e)
	case LedgerWriteFailed:
		return fmt.Sprintf("Approval confirmed on-chain (tx %s) but could not be recorded in the ledger: %s. Manual reconciliation required.",
			e.TxHash, e.message())
	case NetworkMismatch, WalletUnavailable, ConnectionRejected, NotAuthorized, InsufficientBalance, InvalidAmount, InvalidAddress, AuthorizationInFlight:
		return e.message()
	default:
		if e.Phase != "" {
			return fmt.Sprintf("Error fetching data (%s): %s", e.Phase, e.message())
		}
		return e.message()
	}
}

func chainFailure(prefix string, e *Error) string {
	msg := e.message()
	if msg == "" {
		msg = "Unknown error"
	}
	out := prefix + ": " + msg
	if e.Data != nil {
		if raw, err := json.Marshal(e.Data); err == nil {
			out += " Data: " + string(raw)
		}
	}
	if e.TxHash != "" {
		out += " Transaction Hash: " + e.TxHash
	}
	return out
}
