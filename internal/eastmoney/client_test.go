package eastmoney

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/fetcher"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// navServer fakes the lsjz endpoint. total is the reported TotalCount; pages
// listed in fail answer with an API error; each page carries perPage records
// dated by page and position.
type navServer struct {
	total   int
	perPage int
	fail    map[int]bool
}

func (s navServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("pageIndex"))
	if s.fail[page] {
		fmt.Fprintf(w, `{"ErrCode":-999,"ErrMsg":"busy","TotalCount":%d,"Data":""}`, s.total)
		return
	}
	var recs []string
	for i := 0; i < s.perPage; i++ {
		d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, (page-1)*s.perPage+i)
		recs = append(recs, fmt.Sprintf(`{"FSRQ":%q,"DWJZ":"1.%03d","LJJZ":"2.%03d"}`, d.Format("2006-01-02"), page, page))
	}
	fmt.Fprintf(w, `{"ErrCode":0,"ErrMsg":"","TotalCount":%d,"Data":{"LSJZList":[%s]}}`, s.total, strings.Join(recs, ","))
}

func newTestClient(t *testing.T, h http.Handler, pageSize int) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	f := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Timeout: 5 * time.Second})
	return New(Config{
		NavURL:         srv.URL + "/f10/lsjz",
		SearchURL:      srv.URL + "/search",
		RankURL:        srv.URL + "/rank?op=ph&dt=kf",
		PageSize:       pageSize,
		MaxConcurrency: 4,
	}, Fetchers{NAV: f})
}
