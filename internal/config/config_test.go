package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	id, err := cfg.ChainIDBig()
	require.NoError(t, err)
	assert.Equal(t, int64(56), id.Int64())

	authGas, err := cfg.AuthorizationGas()
	require.NoError(t, err)
	assert.Equal(t, "2000000000", authGas.Price.String())
	assert.Equal(t, uint64(60000), authGas.Limit)

	transferGas, err := cfg.TransferGas()
	require.NoError(t, err)
	assert.True(t, transferGas.Price.Cmp(authGas.Price) > 0)
	assert.Greater(t, transferGas.Limit, authGas.Limit)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("APPROVALS_CHAIN_ID", "97")
	t.Setenv("APPROVALS_GAS_PRICE_GWEI", "1.5")
	t.Setenv("APPROVALS_CONFIRM_TIMEOUT", "30")
	t.Setenv("APPROVALS_POLL_INTERVAL", "250")
	t.Setenv("APPROVALS_LEDGER_BACKEND", "postgres")
	t.Setenv("APPROVALS_LEDGER_DSN", "postgres://localhost/approvals")
	t.Setenv("APPROVALS_PUSHGATEWAY_URL", "http://localhost:9091")

	cfg := NewConfig()
	cfg.LoadFromEnvironment()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "0x61", cfg.ChainParams().ChainID)
	assert.Equal(t, 30*time.Second, cfg.ConfirmTimeout)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	assert.Equal(t, "http://localhost:9091", cfg.PushgatewayURL)

	authGas, err := cfg.AuthorizationGas()
	require.NoError(t, err)
	assert.Equal(t, "1500000000", authGas.Price.String())
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"bad chain id":       func(c *Config) { c.ChainID = "0xzz" },
		"bad token":          func(c *Config) { c.TokenAddress = "usdt" },
		"zero gas limit":     func(c *Config) { c.GasLimit = 0 },
		"negative gas":       func(c *Config) { c.TransferGasPriceGwei = "-1" },
		"rest without url":   func(c *Config) { c.LedgerBackend = LedgerREST },
		"unknown backend":    func(c *Config) { c.LedgerBackend = "firestore" },
		"zero poll interval": func(c *Config) { c.PollInterval = 0 },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := NewConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestParseChainID(t *testing.T) {
	hex, ok := ParseChainID("0x38")
	require.True(t, ok)
	dec, ok := ParseChainID("56")
	require.True(t, ok)
	assert.Equal(t, 0, hex.Cmp(dec))

	_, ok = ParseChainID("")
	assert.False(t, ok)
}
