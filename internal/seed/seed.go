// Package seed loads the fund directory and daily NAV history into the store.
package seed

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/fanout"
	"github.com/sells-group/fundnav/internal/nav"
	"github.com/sells-group/fundnav/internal/outcome"
	"github.com/sells-group/fundnav/internal/store"
)

// Run kinds recorded in the sync log.
const (
	KindFunds = "funds"
	KindNav   = "nav"
)

// Source is the upstream used for seeding. *eastmoney.Client implements it.
type Source interface {
	Collect(ctx context.Context, code string, rng nav.DateRange) outcome.Outcome[[]nav.RawRecord]
	ListFunds(ctx context.Context, fundTypes []string) ([]nav.Fund, error)
}

// Config controls seeding batch sizes and concurrency.
type Config struct {
	FundBatchSize     int
	UpsertBatchSize   int
	FundInfoBatchSize int
	Concurrency       int
	FundTypes         []string
	// StrictPages counts a fund with any failed page as a fund error.
	StrictPages bool
}

// Seeder runs the seeding jobs.
type Seeder struct {
	src Source
	st  store.Store
	cfg Config
	log *zap.Logger
}

// New creates a Seeder, filling unset config fields with defaults.
func New(src Source, st store.Store, cfg Config) *Seeder {
	if cfg.FundBatchSize <= 0 {
		cfg.FundBatchSize = 200
	}
	if cfg.UpsertBatchSize <= 0 {
		cfg.UpsertBatchSize = store.DefaultNavBatchSize
	}
	if cfg.FundInfoBatchSize <= 0 {
		cfg.FundInfoBatchSize = store.DefaultFundBatchSize
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = fanout.DefaultLimit
	}
	return &Seeder{
		src: src,
		st:  st,
		cfg: cfg,
		log: zap.L().With(zap.String("component", "seed")),
	}
}

// FundsResult summarizes a fund directory seed.
type FundsResult struct {
	Funds  int                `json:"funds"`
	Upsert store.UpsertResult `json:"upsert"`
}

// Funds loads the rank listing into fund_info.
func (s *Seeder) Funds(ctx context.Context) (*FundsResult, error) {
	run, err := s.st.StartRun(ctx, KindFunds, map[string]any{"fund_types": s.cfg.FundTypes})
	if err != nil {
		return nil, err
	}

	funds, err := s.src.ListFunds(ctx, s.cfg.FundTypes)
	if err != nil {
		s.fail(ctx, run, err)
		return nil, eris.Wrap(err, "seed: list funds")
	}

	res, err := s.st.UpsertFunds(ctx, funds, s.cfg.FundInfoBatchSize)
	if err != nil {
		s.fail(ctx, run, err)
		return nil, eris.Wrap(err, "seed: upsert funds")
	}

	out := &FundsResult{Funds: len(funds), Upsert: res}
	s.log.Info("fund directory seeded",
		zap.Int("funds", out.Funds),
		zap.Int64("rows", res.Rows),
		zap.Int("failed_batches", res.FailedBatches),
	)
	s.complete(ctx, run, store.RunResult{RowsSynced: res.Rows, Errors: res.FailedBatches})
	return out, nil
}

// NavResult summarizes a NAV seed.
type NavResult struct {
	Funds         int   `json:"funds"`
	Chunks        int   `json:"chunks"`
	Rows          int64 `json:"rows"`
	FundErrors    int   `json:"fund_errors"`
	FailedBatches int   `json:"failed_batches"`
}

// Nav collects NAV history for every stored fund within rng and upserts it.
// Funds are processed in chunks of FundBatchSize; within a chunk up to
// Concurrency funds are collected at once. A failing fund is counted and
// skipped.
func (s *Seeder) Nav(ctx context.Context, rng nav.DateRange) (*NavResult, error) {
	run, err := s.st.StartRun(ctx, KindNav, map[string]any{
		"start_date": rng.StartParam(),
		"end_date":   rng.EndParam(),
	})
	if err != nil {
		return nil, err
	}

	ids, err := s.st.ListFundIDs(ctx)
	if err != nil {
		s.fail(ctx, run, err)
		return nil, eris.Wrap(err, "seed: list fund ids")
	}

	out := &NavResult{Funds: len(ids)}
	started := time.Now()
	for lo := 0; lo < len(ids); lo += s.cfg.FundBatchSize {
		if err := ctx.Err(); err != nil {
			s.fail(ctx, run, err)
			return out, eris.Wrap(err, "seed: nav")
		}
		chunk := ids[lo:min(lo+s.cfg.FundBatchSize, len(ids))]
		out.Chunks++

		rows, fundErrors := s.collectChunk(ctx, chunk, rng)
		out.FundErrors += fundErrors

		res, err := s.st.UpsertNav(ctx, rows, s.cfg.UpsertBatchSize)
		if err != nil {
			s.fail(ctx, run, err)
			return out, eris.Wrap(err, "seed: upsert nav")
		}
		out.Rows += res.Rows
		out.FailedBatches += res.FailedBatches

		s.log.Info("nav chunk done",
			zap.Int("chunk", out.Chunks),
			zap.Int("funds", len(chunk)),
			zap.Int("rows", len(rows)),
			zap.Int64("total_rows", out.Rows),
			zap.Int("fund_errors", out.FundErrors),
		)
	}

	s.log.Info("nav seed complete",
		zap.Int("funds", out.Funds),
		zap.Int64("rows", out.Rows),
		zap.Int("fund_errors", out.FundErrors),
		zap.Int("failed_batches", out.FailedBatches),
		zap.Duration("elapsed", time.Since(started)),
	)
	s.complete(ctx, run, store.RunResult{
		RowsSynced: out.Rows,
		Errors:     out.FundErrors + out.FailedBatches,
		Metadata: map[string]any{
			"start_date":     rng.StartParam(),
			"end_date":       rng.EndParam(),
			"funds":          out.Funds,
			"fund_errors":    out.FundErrors,
			"failed_batches": out.FailedBatches,
		},
	})
	return out, nil
}

func (s *Seeder) collectChunk(ctx context.Context, ids []string, rng nav.DateRange) ([]nav.UpsertRow, int) {
	results := fanout.Map(ctx, s.cfg.Concurrency, ids, func(ctx context.Context, id string) outcome.Outcome[[]nav.RawRecord] {
		return s.src.Collect(ctx, id, rng)
	})

	var rows []nav.UpsertRow
	fundErrors := 0
	for i, res := range results {
		id := ids[i]
		if !res.Ok() {
			fundErrors++
			s.log.Debug("fund collect failed", zap.String("fund_id", id), zap.Error(res.Err))
			continue
		}
		if s.cfg.StrictPages && len(res.Diagnostics.PageErrors) > 0 {
			fundErrors++
			s.log.Debug("fund had page errors",
				zap.String("fund_id", id),
				zap.Strings("page_errors", res.Diagnostics.PageErrors),
			)
			continue
		}
		rows = append(rows, nav.BuildRows(id, res.Value)...)
	}
	return rows, fundErrors
}

func (s *Seeder) complete(ctx context.Context, run *store.Run, res store.RunResult) {
	if err := s.st.CompleteRun(ctx, run.ID, res); err != nil {
		s.log.Warn("failed to record run completion", zap.String("run_id", run.ID), zap.Error(err))
	}
}

func (s *Seeder) fail(ctx context.Context, run *store.Run, cause error) {
	// The run context may already be canceled.
	if err := s.st.FailRun(context.WithoutCancel(ctx), run.ID, cause.Error()); err != nil {
		s.log.Warn("failed to record run failure", zap.String("run_id", run.ID), zap.Error(err))
	}
}
