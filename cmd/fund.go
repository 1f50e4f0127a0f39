package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fundnav/internal/api"
)

var fundCmd = &cobra.Command{
	Use:   "fund <code>",
	Short: "Print the NAV history of a fund as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		start, _ := cmd.Flags().GetString("start-date")
		end, _ := cmd.Flags().GetString("end-date")

		res, err := newService(cfg).Fund(cmd.Context(), args[0], start, end)
		if err != nil {
			return eris.Wrapf(err, "fund %s", args[0])
		}
		return printJSON(os.Stdout, api.NewFundResponse(res))
	},
}

func init() {
	fundCmd.Flags().String("start-date", "", "first date, YYYY-MM-DD (default: one lookback window ago)")
	fundCmd.Flags().String("end-date", "", "last date, YYYY-MM-DD (default: today)")
	rootCmd.AddCommand(fundCmd)
}
