package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fundnav/internal/api"
	"github.com/sells-group/fundnav/internal/portfolio"
)

var portfolioCmd = &cobra.Command{
	Use:   "portfolio",
	Short: "Value a portfolio of fund holdings over time",
	Long: `Reads holdings from a YAML file and prints the merged portfolio curve as JSON.

Holdings file:

  start_date: 2024-01-01
  items:
    - code: "000001"
      shares: 1000
    - code: "110011"
      shares: 250.5`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("query"); err != nil {
			return err
		}

		path, _ := cmd.Flags().GetString("file")
		req, err := loadHoldings(path)
		if err != nil {
			return err
		}
		if v, _ := cmd.Flags().GetString("start-date"); v != "" {
			req.StartDate = v
		}
		if v, _ := cmd.Flags().GetString("end-date"); v != "" {
			req.EndDate = v
		}

		rep, err := newService(cfg).Portfolio(cmd.Context(), req)
		if err != nil {
			return eris.Wrap(err, "portfolio")
		}
		return printJSON(os.Stdout, api.NewPortfolioResponse(rep))
	},
}

// loadHoldings reads a portfolio request from a YAML (or JSON) file.
func loadHoldings(path string) (portfolio.Request, error) {
	var req portfolio.Request
	data, err := os.ReadFile(path)
	if err != nil {
		return req, eris.Wrap(err, "portfolio: read holdings")
	}
	if err := yaml.Unmarshal(data, &req); err != nil {
		return req, eris.Wrap(err, "portfolio: parse holdings")
	}
	return req, nil
}

func init() {
	portfolioCmd.Flags().StringP("file", "f", "holdings.yaml", "holdings file")
	portfolioCmd.Flags().String("start-date", "", "override the holdings file start date")
	portfolioCmd.Flags().String("end-date", "", "override the holdings file end date")
	rootCmd.AddCommand(portfolioCmd)
}
