package eastmoney

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/fanout"
	"github.com/sells-group/fundnav/internal/nav"
	"github.com/sells-group/fundnav/internal/outcome"
)

// Collect fetches every page of NAV history for code within rng.
//
// Page 1 is fetched alone to learn TotalCount; a failure there is returned
// as-is. Pages 2..N are fetched with at most MaxConcurrency requests in
// flight. A failing later page is recorded in Diagnostics.PageErrors and
// contributes no records. Record order across pages is unspecified.
func (c *Client) Collect(ctx context.Context, code string, rng nav.DateRange) outcome.Outcome[[]nav.RawRecord] {
	size := c.cfg.PageSize
	first := c.FetchPage(ctx, code, 1, size, rng)
	diag := first.Diagnostics
	if !first.Ok() {
		return outcome.Failure[[]nav.RawRecord](first.Err, diag)
	}

	total := first.Value.TotalCount
	if total <= 0 {
		return outcome.Success([]nav.RawRecord{}, diag)
	}

	records := append([]nav.RawRecord{}, first.Value.Records...)

	pages := (total + size - 1) / size
	if pages > 1 {
		results := fanout.Range(ctx, c.cfg.MaxConcurrency, 2, pages, func(ctx context.Context, page int) outcome.Outcome[Page] {
			return c.FetchPage(ctx, code, page, size, rng)
		})
		for i, res := range results {
			if !res.Ok() {
				diag.PageErrors = append(diag.PageErrors, fmt.Sprintf("page %d: %s", i+2, res.Err))
				continue
			}
			records = append(records, res.Value.Records...)
		}
		if len(diag.PageErrors) > 0 {
			c.log.Warn("partial page failures",
				zap.String("code", code),
				zap.Int("pages", pages),
				zap.Int("failed", len(diag.PageErrors)),
			)
		}
	}

	if len(records) == 0 {
		return outcome.Failure[[]nav.RawRecord](outcome.NewError(outcome.KindNoData, "no data found", nil), diag)
	}
	return outcome.Success(records, diag)
}
