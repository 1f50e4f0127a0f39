package nav

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func raw(d, net, cum string) RawRecord {
	return RawRecord{Date: Field(d), NetValue: Field(net), CumulativeValue: Field(cum)}
}

func TestField_UnmarshalJSON(t *testing.T) {
	var recs []RawRecord
	payload := `[
		{"FSRQ":"2024-01-02","DWJZ":"1.2345","LJJZ":"2.5"},
		{"FSRQ":"2024-01-03","DWJZ":1.5,"LJJZ":null},
		{"FSRQ":"2024-01-04","DWJZ":" 1.6 ","LJJZ":""}
	]`
	require.NoError(t, json.Unmarshal([]byte(payload), &recs))
	require.Len(t, recs, 3)

	assert.Equal(t, "1.2345", recs[0].NetValue.String())
	assert.Equal(t, "1.5", recs[1].NetValue.String())
	assert.Equal(t, "", recs[1].CumulativeValue.String())
	assert.Equal(t, "1.6", recs[2].NetValue.String())
}

func TestBuildSeries_SortsAndParses(t *testing.T) {
	s := BuildSeries("000001", []RawRecord{
		raw("2024-01-03", "1.30", "2.30"),
		raw("2024-01-01", "1.10", "2.10"),
		raw("2024-01-02", "1.20", ""),
	}, nil)

	assert.Equal(t, "000001", s.Code)
	require.Len(t, s.Records, 3)
	for i, want := range []time.Time{date("2024-01-01"), date("2024-01-02"), date("2024-01-03")} {
		assert.Equal(t, want, s.Records[i].Date)
	}

	assert.True(t, s.Records[1].NetValue.Valid)
	assert.Equal(t, "1.2", s.Records[1].NetValue.Decimal.String())
	assert.False(t, s.Records[1].CumulativeValue.Valid)
	assert.Zero(t, s.Records[0].Amount)
}

func TestBuildSeries_DropsMalformed(t *testing.T) {
	s := BuildSeries("000001", []RawRecord{
		raw("2024-01-01", "1.0", "1.0"),
		raw("", "1.0", "1.0"),           // no date
		raw("01/02/2024", "1.0", "1.0"), // bad date
		raw("2024-01-03", "", ""),       // no values
		raw("2024-01-04", "abc", "1.0"), // non-numeric net value
		raw("2024-01-05", "1.0", "--"),  // non-numeric cumulative value
		raw("2024-01-06", "", "1.7"),    // cumulative only
	}, nil)

	require.Len(t, s.Records, 2)
	assert.Equal(t, date("2024-01-01"), s.Records[0].Date)
	assert.Equal(t, date("2024-01-06"), s.Records[1].Date)
	assert.False(t, s.Records[1].NetValue.Valid)
	assert.True(t, s.Records[1].CumulativeValue.Valid)
}

func TestBuildSeries_KeepsDuplicateDates(t *testing.T) {
	s := BuildSeries("000001", []RawRecord{
		raw("2024-01-02", "1.0", "1.0"),
		raw("2024-01-01", "0.9", "0.9"),
		raw("2024-01-02", "1.1", "1.1"),
	}, nil)

	require.Len(t, s.Records, 3)
	assert.Equal(t, "1", s.Records[1].NetValue.Decimal.String())
	assert.Equal(t, "1.1", s.Records[2].NetValue.Decimal.String())
}

func TestBuildSeries_Amount(t *testing.T) {
	shares := 200.0
	s := BuildSeries("110022", []RawRecord{
		raw("2024-01-01", "1.5", "2.0"),
		raw("2024-01-02", "", "2.1"),
	}, &shares)

	require.Len(t, s.Records, 2)
	assert.Equal(t, 200.0, s.Shares)
	assert.InDelta(t, 300.0, s.Records[0].Amount, 1e-9)
	assert.Zero(t, s.Records[1].Amount)
}

func TestBuildSeries_FortyFiveRecords(t *testing.T) {
	var recs []RawRecord
	for i := 45; i >= 1; i-- {
		d := date("2024-01-01").AddDate(0, 0, i)
		recs = append(recs, raw(d.Format(DateLayout), fmt.Sprintf("1.%03d", i), ""))
	}

	s := BuildSeries("000001", recs, nil)
	require.Len(t, s.Records, 45)
	for i := 1; i < len(s.Records); i++ {
		assert.True(t, s.Records[i-1].Date.Before(s.Records[i].Date))
	}
}

func TestBuildRows(t *testing.T) {
	rows := BuildRows("000001", []RawRecord{
		raw("2024-02-09", "1.0123", "3.2100"),
		raw("2024-02-10", "", ""),
		raw("2024-02-12", "", "3.3"),
	})

	require.Len(t, rows, 2)
	assert.Equal(t, "000001", rows[0].FundID)
	assert.Equal(t, date("2024-02-09"), rows[0].NavDate)
	assert.Equal(t, "1.0123", rows[0].NetAssetValue.Decimal.String())
	assert.Equal(t, "3.21", rows[0].AccumulatedAssetValue.Decimal.String())
	assert.False(t, rows[1].NetAssetValue.Valid)
}
