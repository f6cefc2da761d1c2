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
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"MarketFeed/internal/model"
)

// DefaultBinanceURL is the public spot REST endpoint.
const DefaultBinanceURL = "https://api.binance.com"

// maxKlineLimit is the largest page the klines endpoint serves.
const maxKlineLimit = 1000

// BinanceAdapter is the crypto adapter backed by the Binance spot REST API.
type BinanceAdapter struct {
	BaseURL string
	Client  *http.Client
}

// NewBinanceAdapter creates a crypto adapter with optional proxy support.
func NewBinanceAdapter(baseURL, proxyURL string, timeout time.Duration) *BinanceAdapter {
	if baseURL == "" {
		baseURL = DefaultBinanceURL
	}
	return &BinanceAdapter{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  newHTTPClient(proxyURL, timeout),
	}
}

func (a *BinanceAdapter) Name() string { return "binance" }

// ExchangeSymbol maps a canonical pair such as BTC-USD to the exchange-native BTCUSDT.
func ExchangeSymbol(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	switch {
	case strings.HasSuffix(s, "-USDT"):
		return strings.TrimSuffix(s, "-USDT") + "USDT"
	case strings.HasSuffix(s, "-USD"):
		return strings.TrimSuffix(s, "-USD") + "USDT"
	default:
		return strings.ReplaceAll(s, "-", "")
	}
}

// binanceTicker is the subset of the 24hr ticker payload we use.
type binanceTicker struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	Volume             string `json:"volume"`
	PriceChangePercent string `json:"priceChangePercent"`
	CloseTime          int64  `json:"closeTime"`
}

// GetQuote returns the latest 24h ticker price, or nil.
func (a *BinanceAdapter) GetQuote(ctx context.Context, symbol string) *model.Quote {
	q, err := a.fetchQuote(ctx, symbol)
	if err != nil {
		log.Printf("[WARN] binance quote %s: %v", symbol, err)
		return nil
	}
	return q
}

// GetHistory returns klines covering lookback, or an empty slice.
func (a *BinanceAdapter) GetHistory(ctx context.Context, symbol string, interval model.Interval, lookback time.Duration) []model.Candle {
	candles, err := a.fetchKlines(ctx, symbol, interval, lookback)
	if err != nil {
		log.Printf("[WARN] binance klines %s %s: %v", symbol, interval, err)
		return nil
	}
	return candles
}

func (a *BinanceAdapter) fetchQuote(ctx context.Context, symbol string) (*model.Quote, error) {
	endpoint := fmt.Sprintf("%s/api/v3/ticker/24hr?symbol=%s", a.BaseURL, url.QueryEscape(ExchangeSymbol(symbol)))
	body, err := a.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	var t binanceTicker
	if err := json.Unmarshal(body, &t); err != nil {
		return nil, fmt.Errorf("decode ticker: %w", err)
	}
	price, err := parseDecimal(t.LastPrice)
	if err != nil {
		return nil, fmt.Errorf("lastPrice: %w", err)
	}
	q := &model.Quote{
		Symbol:      symbol,
		Price:       price,
		AsOf:        time.UnixMilli(t.CloseTime).UTC(),
		DisplayName: symbol,
		Source:      a.Name(),
	}
	if t.CloseTime == 0 {
		q.AsOf = time.Now().UTC()
	}
	if v, err := parseDecimal(t.Volume); err == nil {
		q.Volume = &v
	}
	if v, err := parseDecimal(t.PriceChangePercent); err == nil {
		q.ChangePercent = &v
	}
	if !q.Valid() {
		return nil, ErrNoData
	}
	return q, nil
}

func (a *BinanceAdapter) fetchKlines(ctx context.Context, symbol string, interval model.Interval, lookback time.Duration) ([]model.Candle, error) {
	limit := klineLimit(interval, lookback)
	endpoint := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=%s&limit=%d",
		a.BaseURL, url.QueryEscape(ExchangeSymbol(symbol)), string(interval), limit)
	body, err := a.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	// Each row: [openTime, open, high, low, close, volume, closeTime, ...]
	var rows [][]json.RawMessage
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode klines: %w", err)
	}
	candles := make([]model.Candle, 0, len(rows))
	for i, row := range rows {
		c, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("kline %d: %w", i, err)
		}
		candles = append(candles, c)
	}
	sort.Slice(candles, func(i, j int) bool { return candles[i].PeriodStart.Before(candles[j].PeriodStart) })
	return candles, nil
}

func (a *BinanceAdapter) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("binance fetch: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("binance read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("binance: status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func parseKline(row []json.RawMessage) (model.Candle, error) {
	if len(row) < 6 {
		return model.Candle{}, fmt.Errorf("short row (%d fields)", len(row))
	}
	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return model.Candle{}, fmt.Errorf("open time: %w", err)
	}
	vals := make([]float64, 5)
	for i := range vals {
		var s string
		if err := json.Unmarshal(row[i+1], &s); err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		v, err := parseDecimal(s)
		if err != nil {
			return model.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return model.Candle{
		PeriodStart: time.UnixMilli(openTime).UTC(),
		Open:        vals[0],
		High:        vals[1],
		Low:         vals[2],
		Close:       vals[3],
		Volume:      vals[4],
		Price:       vals[3],
	}, nil
}

// klineLimit converts a lookback window into a candle count within the endpoint cap.
func klineLimit(interval model.Interval, lookback time.Duration) int {
	width := interval.Duration()
	if width <= 0 {
		return 1
	}
	n := int((lookback + width - 1) / width)
	if n < 1 {
		n = 1
	}
	if n > maxKlineLimit {
		n = maxKlineLimit
	}
	return n
}

func parseDecimal(s string) (float64, error) {
	if s == "" {
		return 0, ErrNoData
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	f, _ := d.Float64()
	return f, nil
}

