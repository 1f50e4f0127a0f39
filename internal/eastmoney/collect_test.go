package eastmoney

import (
	"context"
	"net/http"
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fundnav/internal/nav"
	"github.com/sells-group/fundnav/internal/outcome"
)

func pageTags(recs []nav.RawRecord) []string {
	seen := map[string]bool{}
	for _, r := range recs {
		// DWJZ is "1.<page>"
		seen[r.NetValue.String()] = true
	}
	var out []string
	for k := range seen {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func TestCollect_AllPages(t *testing.T) {
	var calls atomic.Int32
	srv := navServer{total: 45, perPage: 20}
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		// last page is partial
		if r.URL.Query().Get("pageIndex") == "3" {
			navServer{total: 45, perPage: 5}.ServeHTTP(w, r)
			return
		}
		srv.ServeHTTP(w, r)
	}), 20)

	res := c.Collect(context.Background(), "000001", testRange)
	require.True(t, res.Ok(), "unexpected failure: %v", res.Err)
	assert.Len(t, res.Value, 45)
	assert.Equal(t, int32(3), calls.Load())
	assert.Empty(t, res.Diagnostics.PageErrors)

	series := nav.BuildSeries("000001", res.Value, nil)
	assert.Len(t, series.Records, 45)
	for i := 1; i < len(series.Records); i++ {
		assert.False(t, series.Records[i].Date.Before(series.Records[i-1].Date))
	}
}

func TestCollect_PartialPageFailures(t *testing.T) {
	c := newTestClient(t, navServer{total: 100, perPage: 20, fail: map[int]bool{3: true, 4: true}}, 20)

	res := c.Collect(context.Background(), "000001", testRange)
	require.True(t, res.Ok(), "unexpected failure: %v", res.Err)
	assert.Len(t, res.Value, 60)
	assert.Equal(t, []string{"1.001", "1.002", "1.005"}, pageTags(res.Value))

	require.Len(t, res.Diagnostics.PageErrors, 2)
	assert.Contains(t, res.Diagnostics.PageErrors[0], "page 3:")
	assert.Contains(t, res.Diagnostics.PageErrors[1], "page 4:")
	assert.Contains(t, res.Diagnostics.PageErrors[0], "busy")
}

func TestCollect_FirstPageFailureIsFatal(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		navServer{total: 100, perPage: 20, fail: map[int]bool{1: true}}.ServeHTTP(w, r)
	}), 20)

	res := c.Collect(context.Background(), "000001", testRange)
	require.False(t, res.Ok())
	assert.Equal(t, outcome.KindAPI, res.Err.Kind)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCollect_ZeroTotal(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"ErrCode":0,"TotalCount":0,"Data":{"LSJZList":[]}}`))
	}), 20)

	res := c.Collect(context.Background(), "000001", testRange)
	require.True(t, res.Ok())
	assert.NotNil(t, res.Value)
	assert.Empty(t, res.Value)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCollect_NoDataWhenEveryPageEmpty(t *testing.T) {
	c := newTestClient(t, navServer{total: 40, perPage: 0}, 20)

	res := c.Collect(context.Background(), "000001", testRange)
	require.False(t, res.Ok())
	assert.Equal(t, outcome.KindNoData, res.Err.Kind)
}

func TestCollect_NoDataWhenLaterPagesFail(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pageIndex") == "1" {
			w.Write([]byte(`{"ErrCode":0,"TotalCount":40,"Data":{"LSJZList":[]}}`))
			return
		}
		w.WriteHeader(http.StatusBadGateway)
	}), 20)

	res := c.Collect(context.Background(), "000001", testRange)
	require.False(t, res.Ok())
	assert.Equal(t, outcome.KindNoData, res.Err.Kind)
	assert.Len(t, res.Diagnostics.PageErrors, 1)
}

func TestCollect_SinglePage(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		navServer{total: 7, perPage: 7}.ServeHTTP(w, r)
	}), 20)

	res := c.Collect(context.Background(), "000001", testRange)
	require.True(t, res.Ok())
	assert.Len(t, res.Value, 7)
	assert.Equal(t, int32(1), calls.Load())
}

func TestCollect_CanceledContext(t *testing.T) {
	c := newTestClient(t, navServer{total: 100, perPage: 20}, 20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := c.Collect(ctx, "000001", testRange)
	require.False(t, res.Ok())
	assert.Equal(t, outcome.KindNetwork, res.Err.Kind)
}

func TestCollect_NullBodyIsNotEmptySuccess(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("null"))
	}), 20)

	res := c.Collect(context.Background(), "000001", testRange)
	require.False(t, res.Ok())
	assert.Equal(t, outcome.KindParse, res.Err.Kind)
}
