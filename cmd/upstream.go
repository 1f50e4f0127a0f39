package main

import (
	"time"

	"github.com/sells-group/fundnav/internal/config"
	"github.com/sells-group/fundnav/internal/eastmoney"
	"github.com/sells-group/fundnav/internal/fetcher"
	"github.com/sells-group/fundnav/internal/portfolio"
	"github.com/sells-group/fundnav/internal/resilience"
)

// newUpstream builds the eastmoney client. Each endpoint gets its own fetcher
// because the Referer and timeout differ.
func newUpstream(c *config.Config) *eastmoney.Client {
	up := c.Upstream
	retry := resilience.UpstreamRetry(up.MaxAttempts, up.InitialBackoffMs, up.MaxBackoffMs)

	newFetcher := func(referer string, timeoutSecs int) fetcher.Fetcher {
		return fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Headers: map[string]string{
				"Referer":    referer,
				"User-Agent": up.UserAgent,
			},
			Timeout:           time.Duration(timeoutSecs) * time.Second,
			MaxAttempts:       up.MaxAttempts,
			RequestsPerSecond: up.RequestsPerSecond,
			Retry:             &retry,
		})
	}

	return eastmoney.New(eastmoney.Config{
		NavURL:         up.NavURL,
		SearchURL:      up.SearchURL,
		RankURL:        up.RankURL,
		PageSize:       up.PageSize,
		MaxConcurrency: up.MaxConcurrency,
	}, eastmoney.Fetchers{
		NAV:    newFetcher(up.Referer, up.TimeoutSecs),
		Search: newFetcher(up.Referer, up.SearchTimeoutSecs),
		Rank:   newFetcher(up.RankReferer, up.RankTimeoutSecs),
	})
}

func newService(c *config.Config) *portfolio.Service {
	return portfolio.NewService(newUpstream(c), portfolio.Config{
		LookbackDays:    c.Portfolio.LookbackDays,
		FundConcurrency: c.Portfolio.FundConcurrency,
	})
}
