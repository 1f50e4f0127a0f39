package eastmoney

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/fundnav/internal/fetcher"
	"github.com/sells-group/fundnav/internal/nav"
	"github.com/sells-group/fundnav/internal/outcome"
)

// fundCategory is the search result category for open-end funds.
const fundCategory = "700"

type searchEnvelope struct {
	ErrCode *int         `json:"ErrCode"`
	ErrMsg  string       `json:"ErrMsg"`
	Datas   []searchItem `json:"Datas"`
}

type searchItem struct {
	Category nav.Field `json:"CATEGORY"`
	Name     nav.Field `json:"NAME"`
}

// ResolveName looks up the display name of a fund code. A search with no fund
// entry yields a KindNoData failure.
func (c *Client) ResolveName(ctx context.Context, code string) outcome.Outcome[string] {
	params := url.Values{"m": {"1"}, "key": {code}}
	diag := outcome.Diagnostics{RequestURL: requestURL(c.cfg.SearchURL, params)}

	resp, err := c.search.Get(ctx, c.cfg.SearchURL, params)
	if err != nil {
		return outcome.Failure[string](outcome.NewError(outcome.KindNetwork, "request failed", err), diag)
	}
	diag.RequestURL = resp.URL
	diag.HTTPStatus = resp.StatusCode

	env, decodeErr := fetcher.DecodeBody[searchEnvelope](resp)
	if decodeErr == nil {
		diag.ErrCode = env.ErrCode
		diag.ErrMsg = env.ErrMsg
	}

	if !resp.OK() {
		if decodeErr == nil && env.ErrCode != nil && *env.ErrCode != 0 {
			return outcome.Failure[string](outcome.NewAPIError(*env.ErrCode, env.ErrMsg), diag)
		}
		return outcome.Failure[string](outcome.NewError(outcome.KindNetwork, fmt.Sprintf("http status %d", resp.StatusCode), nil), diag)
	}
	if decodeErr != nil {
		return outcome.Failure[string](outcome.NewError(outcome.KindParse, "response is not a JSON envelope", decodeErr), diag)
	}
	if env.ErrCode != nil && *env.ErrCode != 0 {
		return outcome.Failure[string](outcome.NewAPIError(*env.ErrCode, env.ErrMsg), diag)
	}

	for _, item := range env.Datas {
		if item.Category.String() != fundCategory {
			continue
		}
		if name := NormalizeName(item.Name.String()); name != "" {
			return outcome.Success(name, diag)
		}
		break
	}
	return outcome.Failure[string](outcome.NewError(outcome.KindNoData, "fund not found: "+code, nil), diag)
}

// NormalizeName folds full-width characters and trims surrounding space.
func NormalizeName(s string) string {
	return strings.TrimSpace(norm.NFKC.String(s))
}
