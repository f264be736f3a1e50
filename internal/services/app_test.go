package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kelsos/approvals/internal/apperr"
	"github.com/kelsos/approvals/internal/approval"
	"github.com/kelsos/approvals/internal/chaintest"
	"github.com/kelsos/approvals/internal/config"
	"github.com/kelsos/approvals/internal/models"
	"github.com/kelsos/approvals/internal/services"
	"github.com/kelsos/approvals/internal/transfer"
)

func newApp(t *testing.T, account string) (*chaintest.Chain, *services.App) {
	t.Helper()
	cfg := config.NewConfig()
	cfg.LedgerBackend = config.LedgerFile
	cfg.DataDir = t.TempDir()
	cfg.PollInterval = time.Millisecond
	cfg.ConfirmTimeout = time.Second

	chain := chaintest.New()
	chain.Accounts = []string{account}

	ls, err := services.OpenLedger(context.Background(), cfg)
	require.NoError(t, err)

	app, err := services.NewAppWithProvider(cfg, chain, ls)
	require.NoError(t, err)
	t.Cleanup(app.Cleanup)
	return chain, app
}

func TestAuthorizationIsPersistedToTheFileLedger(t *testing.T) {
	chain, app := newApp(t, chaintest.Alice.Hex())
	chain.SetBalance(chaintest.Alice, "25")
	ctx := context.Background()

	account, err := app.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, chaintest.Alice, account)
	assert.Equal(t, models.RoleUser, app.Session().Role())

	req, err := app.Gateway().Prepare(ctx, app.Session())
	require.NoError(t, err)
	assert.Equal(t, "25", req.Amount)

	out, err := app.Gateway().Authorize(ctx, app.Session(), req.Amount, nil)
	require.NoError(t, err)
	assert.Equal(t, approval.StateRecorded, out.State)

	records, err := app.Ledger().ListByWallet(ctx, chaintest.Alice.Hex())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, out.FinalizeTx.Hex(), records[0].TxHash)
	assert.Equal(t, "25", records[0].Amount)
	assert.Equal(t, models.StatusApproved, records[0].Status)
}

func TestOwnerTransfersAfterAuthorization(t *testing.T) {
	chain, app := newApp(t, chaintest.Owner.Hex())
	chain.SetBalance(chaintest.Bob, "40")
	ctx := context.Background()

	_, err := app.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.RoleOwner, app.Session().Role())

	res, err := app.Transfers().Transfer(ctx, app.Session(), transfer.Request{Source: chaintest.Bob, Amount: "15"})

	require.NoError(t, err)
	assert.Equal(t, "Transfer successful!", res.Message)
	assert.Equal(t, "25000000000000000000", chain.Balance(chaintest.Bob).String())
}

func TestConnectFailsWhenOwnerReadFails(t *testing.T) {
	chain, app := newApp(t, chaintest.Owner.Hex())
	chain.SetBalance(chaintest.Bob, "40")
	chain.Fail["eth_call"] = errors.New("node unavailable")
	ctx := context.Background()

	_, err := app.Connect(ctx)

	require.Error(t, err)
	assert.Equal(t, apperr.ChainCallFailed, apperr.KindOf(err))
	assert.Equal(t, models.RoleUnknown, app.Session().Role())

	delete(chain.Fail, "eth_call")
	account, err := app.Connect(ctx)
	require.NoError(t, err)
	assert.Equal(t, chaintest.Owner, account)
	assert.Equal(t, models.RoleOwner, app.Session().Role())

	_, err = app.Transfers().Transfer(ctx, app.Session(), transfer.Request{Source: chaintest.Bob, Amount: "15"})
	require.NoError(t, err)
}

func TestOpenLedgerRejectsUnknownBackend(t *testing.T) {
	cfg := config.NewConfig()
	cfg.LedgerBackend = "s3"

	_, err := services.OpenLedger(context.Background(), cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown ledger backend")
}
