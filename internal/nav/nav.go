// Package nav holds the fund net-asset-value domain: raw upstream records, typed
// per-fund series, the portfolio aggregation, and the rows persisted by the
// seeding path.
package nav

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the upstream and API date format.
const DateLayout = "2006-01-02"

// Field is a raw upstream value. The NAV API usually sends strings, but numbers
// and nulls show up too; all of them decode without failing the page.
type Field string

// UnmarshalJSON accepts a JSON string, number, bool or null.
func (f *Field) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	switch {
	case s == "null":
		*f = ""
	case strings.HasPrefix(s, `"`):
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		*f = Field(str)
	default:
		*f = Field(s)
	}
	return nil
}

// String returns the trimmed value.
func (f Field) String() string { return strings.TrimSpace(string(f)) }

// RawRecord is one entry of the upstream LSJZList.
type RawRecord struct {
	Date            Field `json:"FSRQ"`
	NetValue        Field `json:"DWJZ"`
	CumulativeValue Field `json:"LJJZ"`
}

// NavRecord is a parsed NAV observation. At least one of NetValue and
// CumulativeValue is valid. Amount is NetValue * shares when the series was
// built with shares.
type NavRecord struct {
	Date            time.Time
	NetValue        decimal.NullDecimal
	CumulativeValue decimal.NullDecimal
	Amount          float64
}

// FundSeries is a date-ascending NAV series for one fund.
type FundSeries struct {
	Code    string
	Shares  float64
	Records []NavRecord
}

// PortfolioPoint is one day of the merged portfolio curve.
type PortfolioPoint struct {
	Date                 time.Time
	TotalValue           float64
	PerformanceValue     float64
	NormalizedValue      float64
	NormalizedTotalValue float64
}

// UpsertRow is the unit persisted into fund_nav_daily, keyed by (FundID, NavDate).
type UpsertRow struct {
	FundID                string
	NavDate               time.Time
	NetAssetValue         decimal.NullDecimal
	AccumulatedAssetValue decimal.NullDecimal
}

// Fund is a fund_info row.
type Fund struct {
	ID   string
	Name string
}

// Day truncates t to its calendar date in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDate renders t as YYYY-MM-DD, or "" for the zero time.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
