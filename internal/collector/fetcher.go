package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"MarketFeed/internal/model"
)

// ErrNoData is returned internally when a source answers with an empty payload.
var ErrNoData = errors.New("no data returned")

// Adapter is a market data source. Both methods are total: any network or
// decoding failure collapses to a nil quote or an empty slice.
type Adapter interface {
	Name() string
	GetQuote(ctx context.Context, symbol string) *model.Quote
	GetHistory(ctx context.Context, symbol string, interval model.Interval, lookback time.Duration) []model.Candle
}

// newHTTPClient builds a client with optional proxy support.
func newHTTPClient(proxyURL string, timeout time.Duration) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}
