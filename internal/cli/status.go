package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/scamradar/internal/control"
	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/infra/chain/etherscan"
	"github.com/vietddude/scamradar/internal/infra/storage"
)

var (
	approvalsPage  int
	approvalsLimit int
	historyLimit   int
	historyJSON    bool
	txsPage        int
	txsLimit       int
	txsJSON        bool
)

var approvalsCmd = &cobra.Command{
	Use:   "approvals <address>",
	Short: "List the token approvals an account has granted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *control.App) error {
			approvals, err := app.Service().Approvals(cmd.Context(), args[0], approvalsPage, approvalsLimit)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), approvals)
		})
	},
}

var transactionsCmd = &cobra.Command{
	Use:   "transactions <address>",
	Short: "List an account's recent transactions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *control.App) error {
			txs, err := app.Service().Transactions(cmd.Context(), args[0], txsPage, txsLimit)
			if err != nil {
				return err
			}
			if txsJSON {
				return printJSON(cmd.OutOrStdout(), txs)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.Debug)
			_, _ = fmt.Fprintln(w, "HASH\tTIME\tDIR\tCOUNTERPARTY\tVALUE (ETH)")
			for _, tx := range txs {
				counterparty := tx.From
				if tx.Direction == domain.DirectionOut {
					counterparty = tx.To
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%.6f\n",
					tx.Hash, time.Unix(tx.Timestamp, 0).UTC().Format(time.RFC3339), tx.Direction, counterparty, tx.ValueETH)
			}
			return w.Flush()
		})
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <address>",
	Short: "Show stored detections for an address",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *control.App) error {
			detections, err := app.Service().History(cmd.Context(), args[0], historyLimit)
			if err != nil {
				return err
			}
			if historyJSON {
				return printJSON(cmd.OutOrStdout(), detections)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', tabwriter.Debug)
			_, _ = fmt.Fprintln(w, "ID\tTASK\tMODE\tPROBABILITY\tCREATED")
			for _, d := range detections {
				prob := "-"
				if d.Probability != nil {
					prob = fmt.Sprintf("%.4f", *d.Probability)
				}
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					d.ID, d.Task, d.Mode, prob, d.CreatedAt.Format(time.RFC3339))
			}
			return w.Flush()
		})
	},
}

func init() {
	approvalsCmd.Flags().IntVar(&approvalsPage, "page", 1, "result page")
	approvalsCmd.Flags().IntVar(&approvalsLimit, "limit", 100, "approval events per page")
	transactionsCmd.Flags().IntVar(&txsPage, "page", 1, "result page")
	transactionsCmd.Flags().IntVar(&txsLimit, "limit", etherscan.DefaultHistoryLimit, "transactions per page")
	transactionsCmd.Flags().BoolVar(&txsJSON, "json", false, "print JSON instead of a table")
	historyCmd.Flags().IntVar(&historyLimit, "limit", storage.DefaultListLimit, "maximum detections")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "print JSON instead of a table")

	rootCmd.AddCommand(approvalsCmd, transactionsCmd, historyCmd)
}
