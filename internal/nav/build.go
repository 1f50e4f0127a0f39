package nav

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// BuildSeries turns raw upstream records into a date-ascending series. Records
// without a valid date, with no usable value, or with a value that is present
// but not numeric are dropped silently. Duplicate dates are kept. When shares
// is non-nil each record's Amount is NetValue * shares.
func BuildSeries(code string, raw []RawRecord, shares *float64) FundSeries {
	s := FundSeries{Code: code}
	if shares != nil {
		s.Shares = *shares
	}

	records := make([]NavRecord, 0, len(raw))
	for _, r := range raw {
		rec, ok := parseRecord(r)
		if !ok {
			continue
		}
		if shares != nil && rec.NetValue.Valid {
			rec.Amount = rec.NetValue.Decimal.InexactFloat64() * *shares
		}
		records = append(records, rec)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Date.Before(records[j].Date)
	})
	s.Records = records
	return s
}

// BuildRows applies the BuildSeries record rules and returns upsert rows for
// fund_nav_daily, in upstream order.
func BuildRows(fundID string, raw []RawRecord) []UpsertRow {
	rows := make([]UpsertRow, 0, len(raw))
	for _, r := range raw {
		rec, ok := parseRecord(r)
		if !ok {
			continue
		}
		rows = append(rows, UpsertRow{
			FundID:                fundID,
			NavDate:               rec.Date,
			NetAssetValue:         rec.NetValue,
			AccumulatedAssetValue: rec.CumulativeValue,
		})
	}
	return rows
}

func parseRecord(r RawRecord) (NavRecord, bool) {
	ds := r.Date.String()
	if ds == "" {
		return NavRecord{}, false
	}
	date, err := time.Parse(DateLayout, ds)
	if err != nil {
		return NavRecord{}, false
	}

	net, ok := parseValue(r.NetValue)
	if !ok {
		return NavRecord{}, false
	}
	cum, ok := parseValue(r.CumulativeValue)
	if !ok {
		return NavRecord{}, false
	}
	if !net.Valid && !cum.Valid {
		return NavRecord{}, false
	}

	return NavRecord{Date: date, NetValue: net, CumulativeValue: cum}, true
}

// parseValue returns an invalid NullDecimal for an empty field and ok=false
// for a present value that is not a decimal.
func parseValue(f Field) (decimal.NullDecimal, bool) {
	s := f.String()
	if s == "" {
		return decimal.NullDecimal{}, true
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.NullDecimal{}, false
	}
	return decimal.NewNullDecimal(d), true
}
