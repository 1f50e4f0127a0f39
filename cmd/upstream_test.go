package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/fundnav/internal/config"
	"github.com/sells-group/fundnav/internal/nav"
)

func TestNewUpstream_Headers(t *testing.T) {
	var mu sync.Mutex
	seen := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen[r.URL.Path] = r.Header.Get("Referer") + "|" + r.Header.Get("User-Agent")
		mu.Unlock()

		switch r.URL.Path {
		case "/lsjz":
			fmt.Fprint(w, `{"ErrCode":0,"TotalCount":1,"Data":{"LSJZList":[{"FSRQ":"2024-01-02","DWJZ":"1.0","LJJZ":"2.0"}]}}`)
		case "/search":
			fmt.Fprint(w, `{"ErrCode":0,"Datas":[{"CATEGORY":700,"NAME":"华夏成长混合"}]}`)
		}
	}))
	defer srv.Close()

	c := &config.Config{Upstream: config.UpstreamConfig{
		NavURL:            srv.URL + "/lsjz",
		SearchURL:         srv.URL + "/search",
		RankURL:           srv.URL + "/rank",
		Referer:           "https://fund.eastmoney.com/",
		RankReferer:       "https://fund.eastmoney.com/fund.html",
		UserAgent:         "fundnav-test",
		TimeoutSecs:       5,
		SearchTimeoutSecs: 5,
		RankTimeoutSecs:   5,
		PageSize:          20,
		MaxConcurrency:    4,
		MaxAttempts:       1,
	}}
	client := newUpstream(c)

	res := client.Collect(context.Background(), "000001", nav.DateRange{})
	require.True(t, res.Ok(), "%v", res.Err)
	assert.Len(t, res.Value, 1)

	name := client.ResolveName(context.Background(), "000001")
	require.True(t, name.Ok(), "%v", name.Err)
	assert.Equal(t, "华夏成长混合", name.Value)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "https://fund.eastmoney.com/|fundnav-test", seen["/lsjz"])
	assert.Equal(t, "https://fund.eastmoney.com/|fundnav-test", seen["/search"])
}
