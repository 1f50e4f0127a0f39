package nav

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(code string, shares float64, recs ...RawRecord) FundSeries {
	return BuildSeries(code, recs, &shares)
}

func TestAggregate_OuterJoin(t *testing.T) {
	a := series("A", 10,
		raw("2024-01-01", "1.0", "1.5"),
		raw("2024-01-02", "1.1", "1.6"),
	)
	b := series("B", 5,
		raw("2024-01-02", "2.0", "2.0"),
		raw("2024-01-03", "2.2", "2.2"),
	)

	points := Aggregate([]FundSeries{a, b})
	require.Len(t, points, 3)
	assert.Equal(t, date("2024-01-01"), points[0].Date)
	assert.Equal(t, date("2024-01-02"), points[1].Date)
	assert.Equal(t, date("2024-01-03"), points[2].Date)

	// 01-01: only A
	assert.InDelta(t, 10.0, points[0].TotalValue, 1e-9)
	assert.InDelta(t, 15.0, points[0].PerformanceValue, 1e-9)
	// 01-02: both
	assert.InDelta(t, 21.0, points[1].TotalValue, 1e-9)
	assert.InDelta(t, 26.0, points[1].PerformanceValue, 1e-9)
	// 01-03: only B, no carry-forward of A
	assert.InDelta(t, 11.0, points[2].TotalValue, 1e-9)
	assert.InDelta(t, 11.0, points[2].PerformanceValue, 1e-9)

	assert.Equal(t, 1.0, points[0].NormalizedValue)
	assert.Equal(t, 1.0, points[0].NormalizedTotalValue)
	assert.InDelta(t, 26.0/15.0, points[1].NormalizedValue, 1e-9)
	assert.InDelta(t, 21.0/10.0, points[1].NormalizedTotalValue, 1e-9)
}

func TestAggregate_MergeCompleteness(t *testing.T) {
	a := series("A", 1, raw("2024-03-01", "1", "1"), raw("2024-03-05", "1", "1"))
	b := series("B", 1, raw("2024-03-02", "1", "1"), raw("2024-03-05", "1", "1"))
	c := series("C", 1, raw("2024-02-28", "1", "1"))

	want := map[time.Time]bool{}
	for _, s := range []FundSeries{a, b, c} {
		for _, r := range s.Records {
			want[r.Date] = true
		}
	}

	points := Aggregate([]FundSeries{a, b, c})
	got := map[time.Time]bool{}
	for _, p := range points {
		got[p.Date] = true
	}
	assert.Equal(t, want, got)
	assert.Len(t, points, 4)
}

func TestAggregate_ZeroBase(t *testing.T) {
	// First date has no cumulative value, so the performance base is zero.
	a := series("A", 10,
		raw("2024-01-01", "1.0", ""),
		raw("2024-01-02", "1.1", "1.6"),
	)

	points := Aggregate([]FundSeries{a})
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Equal(t, 0.0, p.NormalizedValue)
	}
	assert.Equal(t, 1.0, points[0].NormalizedTotalValue)
}

func TestAggregate_ZeroShares(t *testing.T) {
	a := series("A", 0, raw("2024-01-01", "1.0", "1.0"))
	points := Aggregate([]FundSeries{a})
	require.Len(t, points, 1)
	assert.Equal(t, 0.0, points[0].NormalizedValue)
	assert.Equal(t, 0.0, points[0].NormalizedTotalValue)
}

func TestAggregate_DuplicateDateLastWins(t *testing.T) {
	a := series("A", 1,
		raw("2024-01-01", "1.0", "1.0"),
		raw("2024-01-01", "2.0", "2.0"),
	)
	points := Aggregate([]FundSeries{a})
	require.Len(t, points, 1)
	assert.InDelta(t, 2.0, points[0].TotalValue, 1e-9)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil))
	assert.Empty(t, Aggregate([]FundSeries{{Code: "A", Shares: 1}}))

	base, total := Bases(nil)
	assert.Zero(t, base)
	assert.Zero(t, total)
}
