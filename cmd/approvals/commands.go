package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/kelsos/approvals/internal/admin"
	"github.com/kelsos/approvals/internal/apperr"
	"github.com/kelsos/approvals/internal/approval"
	"github.com/kelsos/approvals/internal/backup"
	"github.com/kelsos/approvals/internal/config"
	"github.com/kelsos/approvals/internal/httpapi"
	"github.com/kelsos/approvals/internal/logger"
	"github.com/kelsos/approvals/internal/models"
	"github.com/kelsos/approvals/internal/services"
	"github.com/kelsos/approvals/internal/storage"
	"github.com/kelsos/approvals/internal/transfer"
	"github.com/kelsos/approvals/internal/tui"
)

// userError keeps the status line the operator sees while still failing
// the command.
func userError(err error) error {
	fmt.Println(apperr.UserMessage(err))
	return err
}

func newConnectCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "connect",
		Short: "Connect the wallet and show the account, role and balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := services.NewApp(cmd.Context(), cfg)
			if err != nil {
				return userError(err)
			}
			defer app.Cleanup()

			account, err := app.Connect(cmd.Context())
			if err != nil {
				return userError(err)
			}
			req, err := app.Gateway().Prepare(cmd.Context(), app.Session())
			if err != nil {
				return userError(err)
			}

			fmt.Printf("Connected: %s\n", account.Hex())
			fmt.Printf("Role: %s\n", app.Session().Role())
			fmt.Printf("Balance: %s %s\n", req.Balance.Human, cfg.TokenSymbol)
			return nil
		},
	}
}

func newRoleCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "role",
		Short: "Print whether the connected account is the contract owner",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := services.NewApp(cmd.Context(), cfg)
			if err != nil {
				return userError(err)
			}
			defer app.Cleanup()

			if _, err := app.Connect(cmd.Context()); err != nil {
				return userError(err)
			}
			fmt.Println(app.Session().Role())
			return nil
		},
	}
}

func newApproveCmd(cfg *config.Config) *cobra.Command {
	var amount string

	cmd := &cobra.Command{
		Use:   "approve",
		Short: "Authorize the application contract to move the connected account's tokens",
		Long: `approve grants the application contract an allowance on the token, asks the
contract to finalize it and records the authorization in the ledger.
Without --amount the full current balance is authorized.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := services.NewApp(cmd.Context(), cfg)
			if err != nil {
				return userError(err)
			}
			defer app.Cleanup()

			if _, err := app.Connect(cmd.Context()); err != nil {
				return userError(err)
			}

			req, err := app.Gateway().Prepare(cmd.Context(), app.Session())
			if err != nil {
				return userError(err)
			}
			fmt.Printf("Balance: %s %s\n", req.Balance.Human, cfg.TokenSymbol)
			if amount == "" {
				amount = req.Amount
			}

			out, err := app.Gateway().Authorize(cmd.Context(), app.Session(), amount,
				func(state approval.State, message string) {
					fmt.Println(message)
				})
			if err != nil {
				return err
			}

			fmt.Printf("Transaction: %s\n", admin.ExplorerTxURL(cfg.ExplorerURL, out.FinalizeTx.Hex()))
			fmt.Printf("Ledger record: %s\n", out.RecordID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount to authorize in token units (default: full balance)")
	return cmd
}

func newTransferCmd(cfg *config.Config) *cobra.Command {
	var from, to, amount string

	cmd := &cobra.Command{
		Use:   "transfer",
		Short: "Move authorized tokens out of an account (contract owner only)",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := transfer.Request{Amount: amount}
			if from != "" {
				if !common.IsHexAddress(from) {
					return userError(apperr.New(apperr.InvalidAddress, "Invalid source address: %s", from))
				}
				req.Source = common.HexToAddress(from)
			}
			if to != "" {
				if !common.IsHexAddress(to) {
					return userError(apperr.New(apperr.InvalidAddress, "Invalid destination address: %s", to))
				}
				req.Destination = common.HexToAddress(to)
			}

			app, err := services.NewApp(cmd.Context(), cfg)
			if err != nil {
				return userError(err)
			}
			defer app.Cleanup()

			if _, err := app.Connect(cmd.Context()); err != nil {
				return userError(err)
			}

			res, err := app.Transfers().Transfer(cmd.Context(), app.Session(), req)
			if err != nil {
				return userError(err)
			}

			fmt.Println(res.Message)
			fmt.Printf("Transaction: %s\n", admin.ExplorerTxURL(cfg.ExplorerURL, res.TxHash.Hex()))
			return nil
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "", "Account to transfer from")
	cmd.Flags().StringVarP(&to, "to", "t", "", "Destination shown in the log (the contract pays the owner)")
	cmd.Flags().StringVarP(&amount, "amount", "a", "", "Amount in token units")
	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newLedgerCmd(cfg *config.Config) *cobra.Command {
	ledgerCmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the approval ledger",
	}

	var wallet, sortBy string
	var asc bool
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded approvals",
		RunE: func(cmd *cobra.Command, args []string) error {
			sorter, err := parseSorter(sortBy, asc)
			if err != nil {
				return err
			}

			ls, err := services.OpenLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer ls.Close()

			lister := admin.Lister(ls)
			if wallet != "" {
				if !common.IsHexAddress(wallet) {
					return apperr.New(apperr.InvalidAddress, "Invalid wallet address: %s", wallet)
				}
				lister = walletLister{ls: ls, wallet: common.HexToAddress(wallet).Hex()}
			}

			records, err := admin.View(cmd.Context(), lister, sorter)
			if err != nil {
				return err
			}

			fmt.Println(renderRecords(records, cfg.TokenSymbol))
			return nil
		},
	}
	listCmd.Flags().StringVarP(&wallet, "wallet", "", "", "Only show approvals of this wallet")
	listCmd.Flags().StringVarP(&sortBy, "sort", "s", string(admin.FieldTimestamp), "Sort field: walletAddress, amount, timestamp or status")
	listCmd.Flags().BoolVarP(&asc, "asc", "", false, "Sort ascending")

	var backupDir string
	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Archive a ledger snapshot and the operator logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			ls, err := services.OpenLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer ls.Close()

			dataDir, err := storage.GetAppDataDir(cfg.DataDir)
			if err != nil {
				return err
			}
			backupFile, err := backup.CreateBackup(cmd.Context(), ls, dataDir, backupDir)
			if err != nil {
				return err
			}
			fmt.Printf("Backup created: %s\n", backupFile)
			return nil
		},
	}
	backupCmd.Flags().StringVarP(&backupDir, "backup-dir", "", "", "Directory where the backup will be stored (default: ~/backups)")

	ledgerCmd.AddCommand(listCmd, backupCmd)
	return ledgerCmd
}

func newAdminCmd(cfg *config.Config) *cobra.Command {
	var sortBy string
	var asc bool

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Interactive dashboard over the approval ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			sorter, err := parseSorter(sortBy, asc)
			if err != nil {
				return err
			}

			dataDir, err := storage.GetAppDataDir(cfg.DataDir)
			if err != nil {
				return err
			}
			if err := logger.InitFileOnly(filepath.Join(dataDir, "logs")); err != nil {
				return err
			}

			ls, err := services.OpenLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer ls.Close()

			return tui.NewDashboard(cmd.Context(), ls.ListAll, sorter, cfg.TokenSymbol).Run()
		},
	}

	cmd.Flags().StringVarP(&sortBy, "sort", "s", string(admin.FieldTimestamp), "Initial sort field")
	cmd.Flags().BoolVarP(&asc, "asc", "", false, "Initial sort ascending")
	return cmd
}

func newServeCmd(cfg *config.Config) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only operator view and metrics over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = cfg.ListenAddr
			}

			ls, err := services.OpenLedger(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer ls.Close()

			return httpapi.NewServer(ls, ls.Ping).ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "", "", "Listen address (default: APPROVALS_LISTEN_ADDR or :8080)")
	return cmd
}

// walletLister narrows the admin view to one wallet.
type walletLister struct {
	ls     *services.LedgerService
	wallet string
}

func (w walletLister) ListAll(ctx context.Context) ([]models.ApprovalRecord, error) {
	return w.ls.ListByWallet(ctx, w.wallet)
}

func parseSorter(field string, asc bool) (admin.Sorter, error) {
	f, ok := admin.ParseField(field)
	if !ok {
		return admin.Sorter{}, fmt.Errorf("unknown sort field: %q", field)
	}
	s := admin.Sorter{Field: f, Direction: admin.Desc}
	if asc {
		s.Direction = admin.Asc
	}
	return s, nil
}

func renderRecords(records []models.ApprovalRecord, symbol string) string {
	if len(records) == 0 {
		return "No approval data found"
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.WalletAddress,
			r.Amount,
			admin.FormatTimestamp(r.Timestamp),
			r.Status,
			r.TxHash,
		})
	}

	sum := admin.Summarize(records)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers("WALLET ADDRESS", "AMOUNT ("+strings.ToUpper(symbol)+")", "TIMESTAMP", "STATUS", "TRANSACTION").
		Rows(rows...)

	return fmt.Sprintf("%s\n%d approvals, %d wallets, %s %s total",
		t.Render(), sum.Count, sum.Wallets, sum.Total.String(), symbol)
}
