// Package wallet talks to the user's wallet provider and owns the connected
// session identity.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/kelsos/approvals/internal/apperr"
	"github.com/kelsos/approvals/internal/logger"
)

// Provider is the EIP-1193 request boundary of a wallet: account access,
// chain selection, signing and broadcasting, plus read-only chain queries.
type Provider interface {
	Request(ctx context.Context, method string, result interface{}, params ...interface{}) error
}

// ProviderError is the normalized error object returned by a wallet.
type ProviderError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *ProviderError) Error() string {
	return e.Message
}

// ErrorCode returns the provider's machine code (e.g. 4001 user rejected).
func (e *ProviderError) ErrorCode() int { return e.Code }

// ErrorData returns the provider-specific payload, if any.
func (e *ProviderError) ErrorData() interface{} { return e.Data }

// UserRejectedCode is the EIP-1193 code for a request declined by the user.
const UserRejectedCode = 4001

// RPCProvider is a Provider backed by a JSON-RPC wallet endpoint.
type RPCProvider struct {
	client *rpc.Client
	url    string
}

// Dial connects to a wallet endpoint (http, https, ws or wss).
func Dial(ctx context.Context, url string) (*RPCProvider, error) {
	if url == "" {
		return nil, apperr.New(apperr.WalletUnavailable, "Please install or configure a wallet provider")
	}

	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, apperr.Wrap(apperr.WalletUnavailable, apperr.PhaseConnect, err).
			WithMessage("wallet provider at %s is unreachable: %v", url, err)
	}

	logger.Debug("Connected to wallet provider at %s", url)
	return &RPCProvider{client: client, url: url}, nil
}

// Request performs a single JSON-RPC call and normalizes its error.
func (p *RPCProvider) Request(ctx context.Context, method string, result interface{}, params ...interface{}) error {
	start := time.Now()
	err := p.client.CallContext(ctx, result, method, params...)
	logger.Debug("Wallet request %s completed in %v", method, time.Since(start))
	if err != nil {
		return normalizeError(method, err)
	}
	return nil
}

// Close releases the underlying connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}

func normalizeError(method string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	out := &ProviderError{Message: err.Error()}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		out.Code = rpcErr.ErrorCode()
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		out.Data = dataErr.ErrorData()
	}
	if out.Message == "" {
		out.Message = fmt.Sprintf("%s failed", method)
	}
	return out
}
