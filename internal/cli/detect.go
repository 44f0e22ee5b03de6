package cli

import (
	"github.com/spf13/cobra"

	"github.com/vietddude/scamradar/internal/control"
	"github.com/vietddude/scamradar/internal/detection/service"
)

var accountReq service.AccountRequest

var accountCmd = &cobra.Command{
	Use:   "account <address>",
	Short: "Score an account from its recent token transfers",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		req := accountReq
		req.Address = args[0]
		return withApp(cmd.Context(), func(app *control.App) error {
			res, err := app.Service().DetectAccount(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

var txReq service.TransactionRequest

var txCmd = &cobra.Command{
	Use:   "tx",
	Short: "Score a mined transaction by hash or a pending one by its fields",
	Example: `  scamradar tx --hash 0x5c50...e1f3 --explain
  scamradar tx --from 0xabc... --to 0xdef... --input 0xa22cb465... --gas-price 20000000000`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd.Context(), func(app *control.App) error {
			res, err := app.Service().DetectTransaction(cmd.Context(), txReq)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		})
	},
}

func init() {
	f := accountCmd.Flags()
	f.BoolVar(&accountReq.Explain, "explain", false, "attach feature attributions")
	f.BoolVar(&accountReq.ExplainWithLLM, "llm", false, "attach a natural-language explanation (requires --explain)")

	f = txCmd.Flags()
	f.StringVar(&txReq.Hash, "hash", "", "transaction hash")
	f.StringVar(&txReq.From, "from", "", "sender of a pending transaction")
	f.StringVar(&txReq.To, "to", "", "recipient of a pending transaction")
	f.StringVar(&txReq.Value, "value", "", "value in wei")
	f.StringVar(&txReq.GasPrice, "gas-price", "", "gas price in wei")
	f.StringVar(&txReq.GasUsed, "gas-used", "", "gas used")
	f.Int64Var(&txReq.Timestamp, "timestamp", 0, "unix timestamp (default now)")
	f.StringSliceVar(&txReq.FunctionCall, "function", nil, "called function names")
	f.StringVar(&txReq.Input, "input", "", "calldata, used when --function is not given")
	f.StringVar(&txReq.ContractAddress, "contract", "", "NFT contract address")
	f.StringVar(&txReq.TokenValue, "token-value", "", "token amount")
	f.BoolVar(&txReq.Explain, "explain", false, "attach feature attributions")
	f.BoolVar(&txReq.ExplainWithLLM, "llm", false, "attach a natural-language explanation (requires --explain)")

	rootCmd.AddCommand(accountCmd, txCmd)
}
