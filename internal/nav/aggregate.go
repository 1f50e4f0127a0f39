package nav

import (
	"sort"
	"time"
)

// Aggregate outer-joins the series by date and returns one point per date in
// the union, ascending. A series with no record on a date contributes nothing
// to that date; there is no carry-forward. If a series repeats a date, its last
// record for that date is used.
//
// Normalization divides every point by the first point's values; a zero base
// yields 0 for every normalized value.
func Aggregate(series []FundSeries) []PortfolioPoint {
	byDate := make([]map[time.Time]NavRecord, len(series))
	seen := make(map[time.Time]struct{})
	for i, s := range series {
		m := make(map[time.Time]NavRecord, len(s.Records))
		for _, r := range s.Records {
			d := Day(r.Date)
			m[d] = r
			seen[d] = struct{}{}
		}
		byDate[i] = m
	}
	if len(seen) == 0 {
		return nil
	}

	dates := make([]time.Time, 0, len(seen))
	for d := range seen {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	points := make([]PortfolioPoint, len(dates))
	for i, d := range dates {
		p := PortfolioPoint{Date: d}
		for j, s := range series {
			rec, ok := byDate[j][d]
			if !ok {
				continue
			}
			p.TotalValue += rec.Amount
			if rec.CumulativeValue.Valid {
				p.PerformanceValue += rec.CumulativeValue.Decimal.InexactFloat64() * s.Shares
			}
		}
		points[i] = p
	}

	base, baseTotal := Bases(points)
	for i := range points {
		points[i].NormalizedValue = ratio(points[i].PerformanceValue, base)
		points[i].NormalizedTotalValue = ratio(points[i].TotalValue, baseTotal)
	}
	return points
}

// Bases returns the performance and total values of the earliest point, or
// zeros when points is empty.
func Bases(points []PortfolioPoint) (base, baseTotal float64) {
	if len(points) == 0 {
		return 0, 0
	}
	return points[0].PerformanceValue, points[0].TotalValue
}

func ratio(v, base float64) float64 {
	if base == 0 {
		return 0
	}
	return v / base
}
