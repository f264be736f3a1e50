package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kelsos/approvals/internal/config"
	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/metrics"
	"github.com/kelsos/approvals/internal/utils"
)

// flags that override the environment
type overrides struct {
	walletURL     string
	ledgerBackend string
	dataDir       string
	chainID       string
}

func (o overrides) apply(cfg *config.Config) {
	if o.walletURL != "" {
		cfg.WalletURL = o.walletURL
	}
	if o.ledgerBackend != "" {
		cfg.LedgerBackend = o.ledgerBackend
	}
	if o.dataDir != "" {
		cfg.DataDir = o.dataDir
	}
	if o.chainID != "" {
		cfg.ChainID = o.chainID
	}
}

func main() {
	utils.LoadEnvironment()
	logger.Init()
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg := config.NewConfig()
	var flags overrides

	rootCmd := &cobra.Command{
		Use:   "approvals",
		Short: "USDT approval and transfer operator tool",
		Long: `approvals connects to a wallet provider, authorizes the application contract
to move the account's USDT, records each authorization in a ledger and lets
the contract owner transfer authorized funds.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg.LoadFromEnvironment()
			flags.apply(cfg)
			return cfg.Validate()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.walletURL, "wallet-url", "w", "", "Wallet provider endpoint (default: APPROVALS_WALLET_URL)")
	rootCmd.PersistentFlags().StringVarP(&flags.ledgerBackend, "ledger", "l", "", "Ledger backend: file, postgres or rest (default: APPROVALS_LEDGER_BACKEND)")
	rootCmd.PersistentFlags().StringVarP(&flags.dataDir, "data-dir", "", "", "Directory for the file ledger and logs (default: ~/.approvals)")
	rootCmd.PersistentFlags().StringVarP(&flags.chainID, "chain-id", "", "", "Target chain id, hex or decimal (default: 0x38)")

	rootCmd.AddCommand(
		newConnectCmd(cfg),
		newRoleCmd(cfg),
		newApproveCmd(cfg),
		newTransferCmd(cfg),
		newLedgerCmd(cfg),
		newAdminCmd(cfg),
		newServeCmd(cfg),
	)

	err := rootCmd.ExecuteContext(ctx)
	pushMetrics(cfg)
	if err != nil {
		stop()
		logger.Close()
		os.Exit(1)
	}
}

// pushMetrics hands the collected counters to the Pushgateway, if one is
// configured. The signal context may already be cancelled here.
func pushMetrics(cfg *config.Config) {
	if cfg.PushgatewayURL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := metrics.Push(ctx, cfg.PushgatewayURL, "approvals"); err != nil {
		logger.Warn("%v", err)
		return
	}
	logger.Debug("Metrics pushed to %s", cfg.PushgatewayURL)
}
