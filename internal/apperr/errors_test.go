package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type providerErr struct {
	code int
	data interface{}
}

func (p providerErr) Error() string          { return "execution reverted" }
func (p providerErr) ErrorCode() int         { return p.code }
func (p providerErr) ErrorData() interface{} { return p.data }

func TestWrapLiftsProviderPayload(t *testing.T) {
	err := Wrap(AllowancePhaseFailed, PhaseAllowance, providerErr{code: -32000, data: "0x08c379a0"}).
		WithTxHash("0xabc")

	require.NotNil(t, err.Code)
	assert.Equal(t, -32000, *err.Code)
	assert.Equal(t, "0x08c379a0", err.Data)
	assert.True(t, errors.Is(err, AllowancePhaseFailed))
	assert.False(t, errors.Is(err, FinalizePhaseFailed))
	assert.Equal(t, AllowancePhaseFailed, KindOf(fmt.Errorf("outer: %w", err)))
}

func TestWrapInheritsInnerTxHash(t *testing.T) {
	inner := Wrap(ChainCallFailed, PhaseFinalize, errors.New("reverted")).WithTxHash("0xfeed")
	outer := Wrap(FinalizePhaseFailed, PhaseFinalize, inner)

	assert.Equal(t, "0xfeed", outer.TxHash)
}

func TestUserMessageChainFailureShape(t *testing.T) {
	err := Wrap(FinalizePhaseFailed, PhaseFinalize, providerErr{code: 3, data: map[string]string{"reason": "nope"}}).
		WithTxHash("0x01")

	msg := UserMessage(err)
	assert.Equal(t, `Error during approval (finalize step): execution reverted Data: {"reason":"nope"} Transaction Hash: 0x01`, msg)
}

func TestUserMessageLedgerFailureIsDistinct(t *testing.T) {
	err := Wrap(LedgerWriteFailed, PhaseLedger, errors.New("store offline")).WithTxHash("0x02")

	msg := UserMessage(err)
	assert.Contains(t, msg, "confirmed on-chain (tx 0x02)")
	assert.Contains(t, msg, "store offline")
	assert.NotContains(t, msg, "Error during approval")
}

func TestUserMessagePlainErrors(t *testing.T) {
	assert.Equal(t, "", UserMessage(nil))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
	assert.Equal(t, "Only the contract owner can transfer funds",
		UserMessage(New(NotAuthorized, "Only the contract owner can transfer funds")))
}
