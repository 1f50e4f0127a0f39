package eastmoney

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/sells-group/fundnav/internal/fetcher"
	"github.com/sells-group/fundnav/internal/nav"
	"github.com/sells-group/fundnav/internal/outcome"
)

// Page is one decoded page of NAV history.
type Page struct {
	TotalCount int
	Records    []nav.RawRecord
}

// navEnvelope is the lsjz response body. Data is kept raw because the upstream
// sends a non-object there on some error responses.
type navEnvelope struct {
	ErrCode    *int            `json:"ErrCode"`
	ErrMsg     string          `json:"ErrMsg"`
	TotalCount int             `json:"TotalCount"`
	Data       json.RawMessage `json:"Data"`
}

type lsjzData struct {
	LSJZList []nav.RawRecord `json:"LSJZList"`
}

func (e *navEnvelope) records() ([]nav.RawRecord, error) {
	d := bytes.TrimSpace(e.Data)
	if len(d) == 0 || d[0] != '{' {
		return nil, nil
	}
	var data lsjzData
	if err := json.Unmarshal(d, &data); err != nil {
		return nil, err
	}
	return data.LSJZList, nil
}

// FetchPage requests one page of NAV history for code. It never returns a Go
// error; every failure is classified in the outcome.
func (c *Client) FetchPage(ctx context.Context, code string, pageIndex, pageSize int, rng nav.DateRange) outcome.Outcome[Page] {
	params := url.Values{
		"fundCode":  {code},
		"pageIndex": {strconv.Itoa(pageIndex)},
		"pageSize":  {strconv.Itoa(pageSize)},
		"startDate": {rng.StartParam()},
		"endDate":   {rng.EndParam()},
	}
	diag := outcome.Diagnostics{
		RequestURL: requestURL(c.cfg.NavURL, params),
		Params:     flatten(params),
	}

	resp, err := c.nav.Get(ctx, c.cfg.NavURL, params)
	if err != nil {
		return outcome.Failure[Page](outcome.NewError(outcome.KindNetwork, "request failed", err), diag)
	}
	diag.RequestURL = resp.URL
	diag.HTTPStatus = resp.StatusCode

	env, decodeErr := fetcher.DecodeBody[navEnvelope](resp)
	if decodeErr == nil {
		diag.ErrCode = env.ErrCode
		diag.ErrMsg = env.ErrMsg
	}

	if !resp.OK() {
		if decodeErr == nil && env.ErrCode != nil && *env.ErrCode != 0 {
			return outcome.Failure[Page](outcome.NewAPIError(*env.ErrCode, env.ErrMsg), diag)
		}
		return outcome.Failure[Page](outcome.NewError(outcome.KindNetwork, fmt.Sprintf("http status %d", resp.StatusCode), nil), diag)
	}
	if decodeErr != nil {
		return outcome.Failure[Page](outcome.NewError(outcome.KindParse, "response is not a JSON envelope", decodeErr), diag)
	}
	if env.ErrCode != nil && *env.ErrCode != 0 {
		return outcome.Failure[Page](outcome.NewAPIError(*env.ErrCode, env.ErrMsg), diag)
	}

	records, err := env.records()
	if err != nil {
		return outcome.Failure[Page](outcome.NewError(outcome.KindParse, "decode LSJZList", err), diag)
	}
	return outcome.Success(Page{TotalCount: env.TotalCount, Records: records}, diag)
}
