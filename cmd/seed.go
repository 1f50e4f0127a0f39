package main

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/fundnav/internal/config"
	"github.com/sells-group/fundnav/internal/nav"
	"github.com/sells-group/fundnav/internal/seed"
	"github.com/sells-group/fundnav/internal/store"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed fund data into the database",
	Long:  "Loads the fund directory into fund_info and daily NAV history into fund_nav_daily. Both jobs are idempotent.",
}

var seedFundsCmd = &cobra.Command{
	Use:   "funds",
	Short: "Load the fund directory from the rank listing",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := cfg.Validate("seed"); err != nil {
			return err
		}
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := newSeeder(cfg, st).Funds(ctx)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	},
}

var seedNavCmd = &cobra.Command{
	Use:   "nav",
	Short: "Load daily NAV history for every known fund",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if v, _ := cmd.Flags().GetInt("batch-size"); v > 0 {
			cfg.Seed.FundBatchSize = v
		}
		if v, _ := cmd.Flags().GetInt("concurrency"); v > 0 {
			cfg.Seed.Concurrency = v
		}
		if cmd.Flags().Changed("strict-pages") {
			cfg.Seed.StrictPages, _ = cmd.Flags().GetBool("strict-pages")
		}
		if err := cfg.Validate("seed"); err != nil {
			return err
		}

		start, _ := cmd.Flags().GetString("start-date")
		end, _ := cmd.Flags().GetString("end-date")
		rng, err := seedRange(cfg.Seed, start, end, time.Now())
		if err != nil {
			return err
		}

		ctx := cmd.Context()
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := newSeeder(cfg, st).Nav(ctx, rng)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, res)
	},
}

func newSeeder(c *config.Config, st store.Store) *seed.Seeder {
	return seed.New(newUpstream(c), st, seed.Config{
		FundBatchSize:     c.Seed.FundBatchSize,
		UpsertBatchSize:   c.Seed.UpsertBatchSize,
		FundInfoBatchSize: c.Seed.FundInfoBatchSize,
		Concurrency:       c.Seed.Concurrency,
		FundTypes:         c.Seed.FundTypes,
		StrictPages:       c.Seed.StrictPages,
	})
}

// seedRange resolves the NAV window in the configured seed timezone. The
// default window is the last seed.lookback_days days.
func seedRange(sc config.SeedConfig, start, end string, now time.Time) (nav.DateRange, error) {
	loc := time.UTC
	if sc.TimeZone != "" {
		l, err := time.LoadLocation(sc.TimeZone)
		if err != nil {
			return nav.DateRange{}, eris.Wrapf(err, "seed: load timezone %q", sc.TimeZone)
		}
		loc = l
	}
	return nav.ResolveRange(start, end, now.In(loc), sc.LookbackDays)
}

func init() {
	seedNavCmd.Flags().String("start-date", "", "first NAV date, YYYY-MM-DD (default: seed.lookback_days ago)")
	seedNavCmd.Flags().String("end-date", "", "last NAV date, YYYY-MM-DD (default: today)")
	seedNavCmd.Flags().Int("batch-size", 0, "funds per chunk (default from config)")
	seedNavCmd.Flags().Int("concurrency", 0, "concurrent fund fetches per chunk (default from config)")
	seedNavCmd.Flags().Bool("strict-pages", false, "count funds with failed pages as errors")

	seedCmd.AddCommand(seedFundsCmd)
	seedCmd.AddCommand(seedNavCmd)
	rootCmd.AddCommand(seedCmd)
}
