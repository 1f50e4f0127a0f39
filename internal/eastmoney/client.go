// Package eastmoney is the client for the eastmoney fund endpoints: the paged
// NAV history API, the fund search API and the open-fund rank listing.
package eastmoney

import (
	"net/url"

	"go.uber.org/zap"

	"github.com/sells-group/fundnav/internal/fanout"
	"github.com/sells-group/fundnav/internal/fetcher"
)

// Default endpoints.
const (
	DefaultNavURL    = "https://api.fund.eastmoney.com/f10/lsjz"
	DefaultSearchURL = "https://fundsuggest.eastmoney.com/FundSearch/api/FundSearchAPI.ashx"
	DefaultRankURL   = "http://fund.eastmoney.com/data/rankhandler.aspx?op=ph&dt=kf&rs=&gs=0&sc=zzf&st=desc&pi=1&pn=30000&dx=1"

	DefaultPageSize = 20
)

// DefaultFundTypes are the rank listing categories walked by ListFunds.
var DefaultFundTypes = []string{"gp", "hh", "zq", "zs", "qdii", "lof", "fof"}

// Config holds the client endpoints and paging parameters.
type Config struct {
	NavURL         string
	SearchURL      string
	RankURL        string
	PageSize       int
	MaxConcurrency int
}

// Fetchers are the transports used per endpoint. The endpoints expect
// different Referer headers and timeouts, so each gets its own fetcher.
// A nil Search or Rank falls back to NAV.
type Fetchers struct {
	NAV    fetcher.Fetcher
	Search fetcher.Fetcher
	Rank   fetcher.Fetcher
}

// Client talks to the eastmoney endpoints. It is safe for concurrent use.
type Client struct {
	cfg    Config
	nav    fetcher.Fetcher
	search fetcher.Fetcher
	rank   fetcher.Fetcher
	log    *zap.Logger
}

// New creates a Client, filling unset config fields with defaults.
func New(cfg Config, f Fetchers) *Client {
	if cfg.NavURL == "" {
		cfg.NavURL = DefaultNavURL
	}
	if cfg.SearchURL == "" {
		cfg.SearchURL = DefaultSearchURL
	}
	if cfg.RankURL == "" {
		cfg.RankURL = DefaultRankURL
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultPageSize
	}
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = fanout.DefaultLimit
	}
	if f.Search == nil {
		f.Search = f.NAV
	}
	if f.Rank == nil {
		f.Rank = f.NAV
	}
	return &Client{
		cfg:    cfg,
		nav:    f.NAV,
		search: f.Search,
		rank:   f.Rank,
		log:    zap.L().With(zap.String("component", "eastmoney")),
	}
}

// requestURL renders the URL a request would have used, for diagnostics when
// the transport failed before a response existed.
func requestURL(base string, params url.Values) string {
	u, err := url.Parse(base)
	if err != nil {
		return base
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func flatten(params url.Values) map[string]string {
	out := make(map[string]string, len(params))
	for k := range params {
		out[k] = params.Get(k)
	}
	return out
}
