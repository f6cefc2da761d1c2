package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"MarketFeed/internal/model"
)

// DefaultYahooURL is the public Yahoo Finance chart host.
const DefaultYahooURL = "https://query1.finance.yahoo.com"

// YahooAdapter is the general quote adapter backed by the Yahoo Finance chart API.
// It covers equities, indices, futures, commodities, FX and crypto.
type YahooAdapter struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
	now       func() time.Time
}

// NewYahooAdapter creates a new Yahoo Finance adapter.
func NewYahooAdapter(baseURL, proxyURL string, timeout time.Duration) *YahooAdapter {
	if baseURL == "" {
		baseURL = DefaultYahooURL
	}
	return &YahooAdapter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(proxyURL, timeout),
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
		},
		now: time.Now,
	}
}

func (a *YahooAdapter) Name() string { return "yahoo" }

func (a *YahooAdapter) yahooSymbol(symbol string) string {
	if mapped, ok := a.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooInterval maps an internal interval to the chart API granularity.
func yahooInterval(iv model.Interval) string {
	switch iv {
	case model.Interval1h:
		return "60m"
	default:
		return string(iv)
	}
}

// yahooChart is the response structure from Yahoo Finance chart API.
// OHLCV entries are pointers because the API emits null for missing bars.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol              string  `json:"symbol"`
				ShortName           string  `json:"shortName"`
				LongName            string  `json:"longName"`
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				RegularMarketTime   int64   `json:"regularMarketTime"`
				RegularMarketVolume float64 `json:"regularMarketVolume"`
				ChartPreviousClose  float64 `json:"chartPreviousClose"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// GetQuote returns the regular market price, or nil.
func (a *YahooAdapter) GetQuote(ctx context.Context, symbol string) *model.Quote {
	q, err := a.fetchQuote(ctx, symbol)
	if err != nil {
		log.Printf("[WARN] yahoo quote %s: %v", symbol, err)
		return nil
	}
	return q
}

// GetHistory returns bars from now-lookback until now, or an empty slice.
func (a *YahooAdapter) GetHistory(ctx context.Context, symbol string, interval model.Interval, lookback time.Duration) []model.Candle {
	now := a.now()
	params := url.Values{}
	params.Set("interval", yahooInterval(interval))
	params.Set("period1", strconv.FormatInt(now.Add(-lookback).Unix(), 10))
	params.Set("period2", strconv.FormatInt(now.Unix(), 10))

	chart, err := a.fetchChart(ctx, symbol, params)
	if err != nil {
		log.Printf("[WARN] yahoo chart %s %s: %v", symbol, interval, err)
		return nil
	}
	return chartCandles(chart)
}

func (a *YahooAdapter) fetchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	params := url.Values{}
	params.Set("interval", "1d")
	params.Set("range", "1d")
	chart, err := a.fetchChart(ctx, symbol, params)
	if err != nil {
		return nil, err
	}
	meta := chart.Chart.Result[0].Meta

	price := meta.RegularMarketPrice
	asOf := a.now().UTC()
	if meta.RegularMarketTime > 0 {
		asOf = time.Unix(meta.RegularMarketTime, 0).UTC()
	}
	if price <= 0 {
		bars := chartCandles(chart)
		if len(bars) == 0 {
			return nil, ErrNoData
		}
		last := bars[len(bars)-1]
		price, asOf = last.Close, last.PeriodStart
	}

	name := meta.ShortName
	if name == "" {
		name = meta.LongName
	}
	if name == "" {
		name = symbol
	}
	q := &model.Quote{
		Symbol:      symbol,
		Price:       price,
		AsOf:        asOf,
		DisplayName: name,
		Source:      a.Name(),
	}
	if meta.RegularMarketVolume > 0 {
		v := meta.RegularMarketVolume
		q.Volume = &v
	}
	if meta.ChartPreviousClose > 0 {
		pct := (price - meta.ChartPreviousClose) / meta.ChartPreviousClose * 100
		q.ChangePercent = &pct
	}
	if !q.Valid() {
		return nil, ErrNoData
	}
	return q, nil
}

func (a *YahooAdapter) fetchChart(ctx context.Context, symbol string, params url.Values) (*yahooChart, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s", a.BaseURL, url.PathEscape(a.yahooSymbol(symbol)), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("yahoo: status %d, body: %s", resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, ErrNoData
	}
	return &chart, nil
}

// chartCandles converts the first chart result into candles, dropping bars with a null close.
func chartCandles(chart *yahooChart) []model.Candle {
	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil
	}
	quote := result.Indicators.Quote[0]
	at := func(s []*float64, i int) (float64, bool) {
		if i >= len(s) || s[i] == nil {
			return 0, false
		}
		return *s[i], true
	}

	bars := make([]model.Candle, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c, ok := at(quote.Close, i)
		if !ok || c <= 0 {
			continue // null bars (holidays, halts)
		}
		o, ok := at(quote.Open, i)
		if !ok {
			o = c
		}
		h, ok := at(quote.High, i)
		if !ok {
			h = c
		}
		l, ok := at(quote.Low, i)
		if !ok {
			l = c
		}
		v, _ := at(quote.Volume, i)
		bars = append(bars, model.Candle{
			PeriodStart: time.Unix(ts, 0).UTC(),
			Open:        o,
			High:        max(h, o, c),
			Low:         min(l, o, c),
			Close:       c,
			Volume:      v,
			Price:       c,
		})
	}

	sort.Slice(bars, func(i, j int) bool { return bars[i].PeriodStart.Before(bars[j].PeriodStart) })
	return bars
}
