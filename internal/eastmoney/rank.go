package eastmoney

import (
	"context"
	"encoding/json"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/fanout"
	"github.com/sells-group/fundnav/internal/nav"
	"github.com/sells-group/fundnav/internal/outcome"
)

var (
	datasRe  = regexp.MustCompile(`(?s)datas:\[(.*?)\]`)
	quotedRe = regexp.MustCompile(`"(.*?)"`)
)

// fallbackFundType is queried when every configured type comes back empty.
const fallbackFundType = "all"

// ListFunds walks the rank listing for each fund type and returns the union of
// funds sorted by code. The first name seen for a code wins. A failing type is
// logged and skipped.
func (c *Client) ListFunds(ctx context.Context, fundTypes []string) ([]nav.Fund, error) {
	if len(fundTypes) == 0 {
		fundTypes = DefaultFundTypes
	}

	type result struct {
		funds []nav.Fund
		err   error
	}
	results := fanout.Map(ctx, c.cfg.MaxConcurrency, fundTypes, func(ctx context.Context, ft string) result {
		funds, err := c.fetchRank(ctx, ft)
		return result{funds: funds, err: err}
	})

	seen := make(map[string]string)
	for i, r := range results {
		if r.err != nil {
			c.log.Warn("rank listing failed", zap.String("fund_type", fundTypes[i]), zap.Error(r.err))
			continue
		}
		merge(seen, r.funds)
	}

	if len(seen) == 0 {
		funds, err := c.fetchRank(ctx, fallbackFundType)
		if err != nil {
			return nil, eris.Wrap(err, "eastmoney: list funds")
		}
		merge(seen, funds)
	}
	if len(seen) == 0 {
		return nil, outcome.NewError(outcome.KindNoData, "rank listing returned no funds", nil)
	}

	out := make([]nav.Fund, 0, len(seen))
	for code, name := range seen {
		out = append(out, nav.Fund{ID: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func merge(seen map[string]string, funds []nav.Fund) {
	for _, f := range funds {
		if _, ok := seen[f.ID]; !ok {
			seen[f.ID] = f.Name
		}
	}
}

func (c *Client) fetchRank(ctx context.Context, fundType string) ([]nav.Fund, error) {
	resp, err := c.rank.Get(ctx, c.cfg.RankURL, url.Values{"ft": {fundType}})
	if err != nil {
		return nil, eris.Wrapf(err, "eastmoney: rank %s", fundType)
	}
	if !resp.OK() {
		return nil, eris.Errorf("eastmoney: rank %s: http status %d", fundType, resp.StatusCode)
	}
	return parseRank(string(resp.Body)), nil
}

// parseRank extracts funds from the JavaScript rank payload
// (var rankData = {datas:["000001,name,...", ...], ...}).
func parseRank(body string) []nav.Fund {
	m := datasRe.FindStringSubmatch(body)
	if m == nil {
		return nil
	}

	var entries []string
	if err := json.Unmarshal([]byte("["+m[1]+"]"), &entries); err != nil {
		for _, q := range quotedRe.FindAllStringSubmatch(m[1], -1) {
			entries = append(entries, q[1])
		}
	}

	funds := make([]nav.Fund, 0, len(entries))
	for _, e := range entries {
		fields := strings.Split(e, ",")
		code := strings.TrimSpace(fields[0])
		name := NormalizeName(pickName(fields))
		if code == "" || name == "" {
			continue
		}
		funds = append(funds, nav.Fund{ID: code, Name: name})
	}
	return funds
}

// pickName returns the first of fields[1:6] containing a Han character, or
// fields[1] when none does.
func pickName(fields []string) string {
	if len(fields) < 2 {
		return ""
	}
	for i := 1; i < len(fields) && i < 6; i++ {
		if hasHan(fields[i]) {
			return fields[i]
		}
	}
	return fields[1]
}

func hasHan(s string) bool {
	for _, r := range s {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}
