// Package portfolio answers fund and portfolio queries on demand: it collects
// NAV history per fund, builds typed series and merges them into a portfolio
// valuation curve.
package portfolio

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/fanout"
	"github.com/sells-group/fundnav/internal/nav"
	"github.com/sells-group/fundnav/internal/outcome"
)

// Source is the upstream used by the service. *eastmoney.Client implements it.
type Source interface {
	Collect(ctx context.Context, code string, rng nav.DateRange) outcome.Outcome[[]nav.RawRecord]
	ResolveName(ctx context.Context, code string) outcome.Outcome[string]
}

// Config controls query defaults.
type Config struct {
	LookbackDays    int
	FundConcurrency int
	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// Service runs fund, portfolio and name queries.
type Service struct {
	src Source
	cfg Config
	log *zap.Logger
}

// NewService creates a Service.
func NewService(src Source, cfg Config) *Service {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = nav.DefaultLookbackDays
	}
	if cfg.FundConcurrency <= 0 {
		cfg.FundConcurrency = fanout.DefaultLimit
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		src: src,
		cfg: cfg,
		log: zap.L().With(zap.String("component", "portfolio")),
	}
}

// Range resolves optional query bounds against today.
func (s *Service) Range(start, end string) (nav.DateRange, error) {
	return nav.ResolveRange(start, end, s.cfg.Now(), s.cfg.LookbackDays)
}

// FundResult is the NAV series of a single fund.
type FundResult struct {
	Code        string
	Range       nav.DateRange
	Series      nav.FundSeries
	Diagnostics outcome.Diagnostics
}

// Fund collects the NAV history of code. On an upstream failure the returned
// result is still non-nil and carries the diagnostics; the error is an
// *outcome.Error. An empty upstream result is KindNoData.
func (s *Service) Fund(ctx context.Context, code, start, end string) (*FundResult, error) {
	rng, err := s.Range(start, end)
	if err != nil {
		return nil, err
	}

	res := s.src.Collect(ctx, code, rng)
	out := &FundResult{Code: code, Range: rng, Diagnostics: res.Diagnostics}
	if !res.Ok() {
		return out, res.Err
	}
	if len(res.Value) == 0 {
		return out, outcome.NewError(outcome.KindNoData, "no data found", nil)
	}
	out.Series = nav.BuildSeries(code, res.Value, nil)
	return out, nil
}

// NameResult holds resolved names and per-code failures.
type NameResult struct {
	Names       map[string]string
	Errors      []Warning
	Diagnostics map[string]outcome.Diagnostics
}

// Name resolves a single fund name.
func (s *Service) Name(ctx context.Context, code string) (string, outcome.Diagnostics, error) {
	res := s.src.ResolveName(ctx, code)
	name, err := res.Unwrap()
	return name, res.Diagnostics, err
}

// Names resolves several fund names concurrently. Empty codes are skipped; a
// failing code is reported in Errors and never fails the batch.
func (s *Service) Names(ctx context.Context, codes []string) (*NameResult, error) {
	var clean []string
	for _, c := range codes {
		if c = strings.TrimSpace(c); c != "" {
			clean = append(clean, c)
		}
	}
	if len(clean) == 0 {
		return nil, outcome.NewError(outcome.KindValidation, "codes are required", nil)
	}

	results := fanout.Map(ctx, s.cfg.FundConcurrency, clean, s.src.ResolveName)

	out := &NameResult{
		Names:       make(map[string]string, len(clean)),
		Errors:      []Warning{},
		Diagnostics: make(map[string]outcome.Diagnostics, len(clean)),
	}
	for i, res := range results {
		code := clean[i]
		out.Diagnostics[code] = res.Diagnostics
		if !res.Ok() {
			out.Errors = append(out.Errors, newWarning(code, res.Err))
			continue
		}
		out.Names[code] = res.Value
	}
	return out, nil
}
