package portfolio

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/fanout"
	"github.com/sells-group/fundnav/internal/nav"
	"github.com/sells-group/fundnav/internal/outcome"
)

// Item is one holding of a portfolio request.
type Item struct {
	Code   string  `json:"code" yaml:"code"`
	Shares float64 `json:"shares" yaml:"shares"`
}

// Request is a portfolio query. Empty dates use the service defaults.
type Request struct {
	Items     []Item `json:"items" yaml:"items"`
	StartDate string `json:"start_date,omitempty" yaml:"start_date"`
	EndDate   string `json:"end_date,omitempty" yaml:"end_date"`
}

// Warning records a fund that was excluded from the portfolio.
type Warning struct {
	Code  string       `json:"code"`
	Kind  outcome.Kind `json:"-"`
	Error string       `json:"error"`
}

func newWarning(code string, err *outcome.Error) Warning {
	return Warning{Code: code, Kind: err.Kind, Error: err.Error()}
}

// Class distinguishes why a portfolio could not be built.
type Class int

const (
	// ClassNoData means every fund came back empty for the range.
	ClassNoData Class = iota + 1
	// ClassDegraded means at least one fund failed for another reason.
	ClassDegraded
)

func (c Class) String() string {
	switch c {
	case ClassNoData:
		return "no_data"
	case ClassDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Failure is returned when no fund series survived.
type Failure struct {
	Class       Class
	Message     string
	Warnings    []Warning
	Diagnostics map[string]outcome.Diagnostics
}

func (f *Failure) Error() string {
	return fmt.Sprintf("portfolio: %s: %s", f.Class, f.Message)
}

// Report is a successful portfolio query.
type Report struct {
	Range          nav.DateRange
	BaseValue      float64
	BaseTotalValue float64
	Points         []nav.PortfolioPoint
	Funds          []nav.FundSeries
	Diagnostics    map[string]outcome.Diagnostics
	Warnings       []Warning
}

// Portfolio fetches every holding concurrently and merges the series. Funds
// that fail are reported as warnings and excluded. When none survive the
// error is a *Failure; invalid input yields a KindValidation *outcome.Error.
func (s *Service) Portfolio(ctx context.Context, req Request) (*Report, error) {
	items := make([]Item, 0, len(req.Items))
	for _, it := range req.Items {
		it.Code = strings.TrimSpace(it.Code)
		if it.Code == "" || it.Shares <= 0 {
			continue
		}
		items = append(items, it)
	}
	if len(items) == 0 {
		return nil, outcome.NewError(outcome.KindValidation, "portfolio items are required", nil)
	}

	rng, err := s.Range(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	results := fanout.Map(ctx, s.cfg.FundConcurrency, items, func(ctx context.Context, it Item) outcome.Outcome[[]nav.RawRecord] {
		return s.src.Collect(ctx, it.Code, rng)
	})

	diags := make(map[string]outcome.Diagnostics, len(items))
	var warnings []Warning
	var series []nav.FundSeries
	for i, res := range results {
		it := items[i]
		diags[it.Code] = res.Diagnostics
		if !res.Ok() {
			warnings = append(warnings, newWarning(it.Code, res.Err))
			continue
		}
		if len(res.Value) == 0 {
			warnings = append(warnings, newWarning(it.Code, outcome.NewError(outcome.KindNoData, "no data found", nil)))
			continue
		}
		shares := it.Shares
		series = append(series, nav.BuildSeries(it.Code, res.Value, &shares))
	}

	for _, w := range warnings {
		s.log.Warn("fund excluded from portfolio",
			zap.String("code", w.Code),
			zap.Stringer("kind", w.Kind),
			zap.String("error", w.Error),
		)
	}

	if len(series) == 0 {
		return nil, &Failure{
			Class:       classify(warnings),
			Message:     "no fund series available",
			Warnings:    warnings,
			Diagnostics: diags,
		}
	}

	points := nav.Aggregate(series)
	if len(points) == 0 {
		return nil, &Failure{
			Class:       ClassNoData,
			Message:     "no dates found",
			Warnings:    warnings,
			Diagnostics: diags,
		}
	}

	base, baseTotal := nav.Bases(points)
	return &Report{
		Range:          rng,
		BaseValue:      base,
		BaseTotalValue: baseTotal,
		Points:         points,
		Funds:          series,
		Diagnostics:    diags,
		Warnings:       warnings,
	}, nil
}

func classify(warnings []Warning) Class {
	for _, w := range warnings {
		if w.Kind != outcome.KindNoData {
			return ClassDegraded
		}
	}
	return ClassNoData
}
