package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/nav"
	"github.com/sells-group/fundnav/internal/outcome"
	"github.com/sells-group/fundnav/internal/portfolio"
)

const nameCacheControl = "public, max-age=86400"

type errorResponse struct {
	Error     string              `json:"error"`
	Details   []portfolio.Warning `json:"details,omitempty"`
	DebugInfo any                 `json:"debug_info,omitempty"`
}

type navPoint struct {
	Date            string   `json:"date"`
	Value           *float64 `json:"value"`
	CumulativeValue *float64 `json:"cumulative_value"`
	Amount          *float64 `json:"amount,omitempty"`
}

// FundResponse is the JSON body of a fund query.
type FundResponse struct {
	FundCode  string              `json:"fund_code"`
	Data      []navPoint          `json:"data"`
	DebugInfo outcome.Diagnostics `json:"debug_info"`
}

type portfolioPoint struct {
	Date                 string  `json:"date"`
	TotalValue           float64 `json:"total_value"`
	PerformanceValue     float64 `json:"performance_value"`
	NormalizedValue      float64 `json:"normalized_value"`
	NormalizedTotalValue float64 `json:"normalized_total_value"`
}

type portfolioSummary struct {
	StartDate      string           `json:"start_date"`
	EndDate        string           `json:"end_date"`
	BaseValue      float64          `json:"base_value"`
	BaseTotalValue float64          `json:"base_total_value"`
	Data           []portfolioPoint `json:"data"`
}

type fundSeries struct {
	Code   string     `json:"code"`
	Shares float64    `json:"shares"`
	Data   []navPoint `json:"data"`
}

// PortfolioResponse is the JSON body of a portfolio query.
type PortfolioResponse struct {
	Portfolio portfolioSummary               `json:"portfolio"`
	Funds     []fundSeries                   `json:"funds"`
	DebugInfo map[string]outcome.Diagnostics `json:"debug_info"`
	Warnings  []portfolio.Warning            `json:"warnings,omitempty"`
}

type fundNameResponse struct {
	FundCode  string              `json:"fund_code"`
	FundName  string              `json:"fund_name"`
	DebugInfo outcome.Diagnostics `json:"debug_info"`
}

type batchNameRequest struct {
	Codes []string `json:"codes"`
}

type batchNameResponse struct {
	Names     map[string]string              `json:"names"`
	Errors    []portfolio.Warning            `json:"errors"`
	DebugInfo map[string]outcome.Diagnostics `json:"debug_info"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFund(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	q := r.URL.Query()

	res, err := s.svc.Fund(r.Context(), code, q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		var diag any
		if res != nil {
			diag = res.Diagnostics
		}
		switch outcome.KindOf(err) {
		case outcome.KindValidation:
			writeError(w, http.StatusBadRequest, errorResponse{Error: message(err)})
		case outcome.KindNoData:
			writeError(w, http.StatusNotFound, errorResponse{Error: "No data found", DebugInfo: diag})
		default:
			s.log.Warn("fund query failed", zap.String("code", code), zap.Error(err))
			writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), DebugInfo: diag})
		}
		return
	}

	writeJSON(w, http.StatusOK, NewFundResponse(res))
}

func (s *Server) handlePortfolio(w http.ResponseWriter, r *http.Request) {
	var req portfolio.Request
	if !decodeRequest(w, r, &req) {
		return
	}

	rep, err := s.svc.Portfolio(r.Context(), req)
	if err != nil {
		var f *portfolio.Failure
		switch {
		case errors.As(err, &f):
			status, msg := http.StatusBadGateway, "Portfolio fetch failed"
			if f.Class == portfolio.ClassNoData {
				status, msg = http.StatusNotFound, "No data found for requested date range"
			}
			writeError(w, status, errorResponse{Error: msg, Details: f.Warnings, DebugInfo: f.Diagnostics})
		case outcome.KindOf(err) == outcome.KindValidation:
			writeError(w, http.StatusBadRequest, errorResponse{Error: message(err)})
		default:
			s.log.Error("portfolio query failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		}
		return
	}

	writeJSON(w, http.StatusOK, NewPortfolioResponse(rep))
}

func (s *Server) handleFundName(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	name, diag, err := s.svc.Name(r.Context(), code)
	if err != nil {
		if outcome.IsNoData(err) {
			writeError(w, http.StatusNotFound, errorResponse{Error: "No fund name found", DebugInfo: diag})
			return
		}
		writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error(), DebugInfo: diag})
		return
	}

	w.Header().Set("Cache-Control", nameCacheControl)
	writeJSON(w, http.StatusOK, fundNameResponse{FundCode: code, FundName: name, DebugInfo: diag})
}

func (s *Server) handleFundNameBatch(w http.ResponseWriter, r *http.Request) {
	var req batchNameRequest
	if !decodeRequest(w, r, &req) {
		return
	}

	res, err := s.svc.Names(r.Context(), req.Codes)
	if err != nil {
		if outcome.KindOf(err) == outcome.KindValidation {
			writeError(w, http.StatusBadRequest, errorResponse{Error: message(err)})
			return
		}
		writeError(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	w.Header().Set("Cache-Control", nameCacheControl)
	writeJSON(w, http.StatusOK, batchNameResponse{
		Names:     res.Names,
		Errors:    res.Errors,
		DebugInfo: res.Diagnostics,
	})
}

// NewFundResponse renders a fund query result.
func NewFundResponse(res *portfolio.FundResult) FundResponse {
	return FundResponse{
		FundCode:  res.Code,
		Data:      navPoints(res.Series.Records, false),
		DebugInfo: res.Diagnostics,
	}
}

// NewPortfolioResponse renders a portfolio report.
func NewPortfolioResponse(rep *portfolio.Report) PortfolioResponse {
	points := make([]portfolioPoint, len(rep.Points))
	for i, p := range rep.Points {
		points[i] = portfolioPoint{
			Date:                 nav.FormatDate(p.Date),
			TotalValue:           p.TotalValue,
			PerformanceValue:     p.PerformanceValue,
			NormalizedValue:      p.NormalizedValue,
			NormalizedTotalValue: p.NormalizedTotalValue,
		}
	}
	funds := make([]fundSeries, len(rep.Funds))
	for i, fs := range rep.Funds {
		funds[i] = fundSeries{Code: fs.Code, Shares: fs.Shares, Data: navPoints(fs.Records, true)}
	}
	return PortfolioResponse{
		Portfolio: portfolioSummary{
			StartDate:      rep.Range.StartParam(),
			EndDate:        rep.Range.EndParam(),
			BaseValue:      rep.BaseValue,
			BaseTotalValue: rep.BaseTotalValue,
			Data:           points,
		},
		Funds:     funds,
		DebugInfo: rep.Diagnostics,
		Warnings:  rep.Warnings,
	}
}

func navPoints(recs []nav.NavRecord, withAmount bool) []navPoint {
	out := make([]navPoint, len(recs))
	for i, rec := range recs {
		p := navPoint{
			Date:            nav.FormatDate(rec.Date),
			Value:           toFloat(rec.NetValue),
			CumulativeValue: toFloat(rec.CumulativeValue),
		}
		if withAmount {
			amount := rec.Amount
			p.Amount = &amount
		}
		out[i] = p
	}
	return out
}

func toFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}

// message returns the bare message of a classified error for client display.
func message(err error) string {
	var e *outcome.Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
