package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/kelsos/approvals/internal/models"
)

// Ledger backends
const (
	LedgerFile     = "file"
	LedgerPostgres = "postgres"
	LedgerREST     = "rest"
)

// Config holds all application configuration
type Config struct {
	// Target network
	ChainID      string
	ChainName    string
	ChainRPCURL  string
	ExplorerURL  string
	CurrencyName string
	CurrencySym  string

	// Wallet provider endpoint (JSON-RPC, http(s) or ws(s))
	WalletURL string

	// Contracts
	TokenAddress    string
	ContractAddress string
	TokenDecimals   int32
	TokenSymbol     string

	// Gas settings
	GasPriceGwei         string
	GasLimit             uint64
	TransferGasPriceGwei string
	TransferGasLimit     uint64

	// Confirmation settings
	ConfirmTimeout time.Duration
	PollInterval   time.Duration

	// Ledger settings
	LedgerBackend string
	LedgerDSN     string
	LedgerURL     string
	LedgerKey     string
	DataDir       string

	// Operator view
	ListenAddr string

	// Pushgateway for metrics of short-lived commands; empty disables pushing
	PushgatewayURL string
}

// NewConfig creates a new configuration with default values
func NewConfig() *Config {
	return &Config{
		ChainID:              "0x38",
		ChainName:            "Binance Smart Chain Mainnet",
		ChainRPCURL:          "https://bsc-dataseed.binance.org/",
		ExplorerURL:          "https://bscscan.com",
		CurrencyName:         "BNB",
		CurrencySym:          "BNB",
		WalletURL:            "http://localhost:1248",
		TokenAddress:         "0x55d398326f99059fF775485246999027B3197955",
		ContractAddress:      "0x797f35192418d62d4c7167f49f3f3934122659ef",
		TokenDecimals:        18,
		TokenSymbol:          "USDT",
		GasPriceGwei:         "2",
		GasLimit:             60000,
		TransferGasPriceGwei: "3",
		TransferGasLimit:     150000,
		ConfirmTimeout:       2 * time.Minute,
		PollInterval:         2 * time.Second,
		LedgerBackend:        LedgerFile,
		ListenAddr:           ":8080",
	}
}

// LoadFromEnvironment loads configuration from environment variables
func (c *Config) LoadFromEnvironment() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	setString("APPROVALS_CHAIN_ID", &c.ChainID)
	setString("APPROVALS_CHAIN_NAME", &c.ChainName)
	setString("APPROVALS_CHAIN_RPC_URL", &c.ChainRPCURL)
	setString("APPROVALS_EXPLORER_URL", &c.ExplorerURL)
	setString("APPROVALS_WALLET_URL", &c.WalletURL)
	setString("APPROVALS_TOKEN_ADDRESS", &c.TokenAddress)
	setString("APPROVALS_CONTRACT_ADDRESS", &c.ContractAddress)
	setString("APPROVALS_TOKEN_SYMBOL", &c.TokenSymbol)
	setString("APPROVALS_GAS_PRICE_GWEI", &c.GasPriceGwei)
	setString("APPROVALS_TRANSFER_GAS_PRICE_GWEI", &c.TransferGasPriceGwei)
	setString("APPROVALS_LEDGER_BACKEND", &c.LedgerBackend)
	setString("APPROVALS_LEDGER_DSN", &c.LedgerDSN)
	setString("APPROVALS_LEDGER_URL", &c.LedgerURL)
	setString("APPROVALS_LEDGER_KEY", &c.LedgerKey)
	setString("APPROVALS_DATA_DIR", &c.DataDir)
	setString("APPROVALS_LISTEN_ADDR", &c.ListenAddr)
	setString("APPROVALS_PUSHGATEWAY_URL", &c.PushgatewayURL)

	if decimals := os.Getenv("APPROVALS_TOKEN_DECIMALS"); decimals != "" {
		if d, err := strconv.ParseInt(decimals, 10, 32); err == nil {
			c.TokenDecimals = int32(d)
		}
	}

	if limit := os.Getenv("APPROVALS_GAS_LIMIT"); limit != "" {
		if l, err := strconv.ParseUint(limit, 10, 64); err == nil {
			c.GasLimit = l
		}
	}

	if limit := os.Getenv("APPROVALS_TRANSFER_GAS_LIMIT"); limit != "" {
		if l, err := strconv.ParseUint(limit, 10, 64); err == nil {
			c.TransferGasLimit = l
		}
	}

	if timeout := os.Getenv("APPROVALS_CONFIRM_TIMEOUT"); timeout != "" {
		if t, err := strconv.Atoi(timeout); err == nil {
			c.ConfirmTimeout = time.Duration(t) * time.Second
		}
	}

	if interval := os.Getenv("APPROVALS_POLL_INTERVAL"); interval != "" {
		if i, err := strconv.Atoi(interval); err == nil {
			c.PollInterval = time.Duration(i) * time.Millisecond
		}
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := c.ChainIDBig(); err != nil {
		return err
	}

	if !common.IsHexAddress(c.TokenAddress) {
		return fmt.Errorf("token address is not a valid address: %q", c.TokenAddress)
	}

	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("contract address is not a valid address: %q", c.ContractAddress)
	}

	if c.TokenDecimals < 0 || c.TokenDecimals > 36 {
		return fmt.Errorf("token decimals must be between 0 and 36, got: %d", c.TokenDecimals)
	}

	if _, err := c.AuthorizationGas(); err != nil {
		return err
	}

	if _, err := c.TransferGas(); err != nil {
		return err
	}

	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirmation timeout must be positive, got: %s", c.ConfirmTimeout)
	}

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got: %s", c.PollInterval)
	}

	switch c.LedgerBackend {
	case LedgerFile:
	case LedgerPostgres:
		if c.LedgerDSN == "" {
			return fmt.Errorf("postgres ledger requires APPROVALS_LEDGER_DSN")
		}
	case LedgerREST:
		if c.LedgerURL == "" {
			return fmt.Errorf("rest ledger requires APPROVALS_LEDGER_URL")
		}
	default:
		return fmt.Errorf("unknown ledger backend: %q", c.LedgerBackend)
	}

	return nil
}

// ChainIDBig parses the configured chain identifier (hex with 0x prefix, or decimal)
func (c *Config) ChainIDBig() (*big.Int, error) {
	id, ok := ParseChainID(c.ChainID)
	if !ok {
		return nil, fmt.Errorf("invalid chain id: %q", c.ChainID)
	}
	return id, nil
}

// ParseChainID accepts "0x38" and "56" alike
func ParseChainID(s string) (*big.Int, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if strings.HasPrefix(s, "0x") {
		return new(big.Int).SetString(s[2:], 16)
	}
	return new(big.Int).SetString(s, 10)
}

// ChainParams returns the registration payload for the target network
func (c *Config) ChainParams() models.ChainParams {
	id, ok := ParseChainID(c.ChainID)
	chainID := c.ChainID
	if ok {
		chainID = fmt.Sprintf("0x%x", id)
	}
	params := models.ChainParams{
		ChainID:   chainID,
		ChainName: c.ChainName,
		NativeCurrency: models.NativeCurrency{
			Name:     c.CurrencyName,
			Symbol:   c.CurrencySym,
			Decimals: 18,
		},
		RPCURLs: []string{c.ChainRPCURL},
	}
	if c.ExplorerURL != "" {
		params.BlockExplorerURLs = []string{c.ExplorerURL}
	}
	return params
}

// AuthorizationGas is the fixed gas used for the allowance and finalize calls
func (c *Config) AuthorizationGas() (models.Gas, error) {
	return gas(c.GasPriceGwei, c.GasLimit)
}

// TransferGas is the fixed gas used for privileged transfers
func (c *Config) TransferGas() (models.Gas, error) {
	return gas(c.TransferGasPriceGwei, c.TransferGasLimit)
}

func gas(priceGwei string, limit uint64) (models.Gas, error) {
	price, err := decimal.NewFromString(priceGwei)
	if err != nil {
		return models.Gas{}, fmt.Errorf("invalid gas price %q: %w", priceGwei, err)
	}
	if !price.IsPositive() {
		return models.Gas{}, fmt.Errorf("gas price must be positive, got: %s", priceGwei)
	}
	if limit == 0 {
		return models.Gas{}, fmt.Errorf("gas limit must be positive")
	}
	return models.Gas{Price: price.Shift(9).BigInt(), Limit: limit}, nil
}
