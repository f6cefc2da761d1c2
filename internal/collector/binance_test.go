package collector

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketFeed/internal/model"
)

func TestExchangeSymbol(t *testing.T) {
	assert.Equal(t, "BTCUSDT", ExchangeSymbol("BTC-USD"))
	assert.Equal(t, "ETHUSDT", ExchangeSymbol("eth-usd"))
	assert.Equal(t, "SOLUSDT", ExchangeSymbol("SOL-USDT"))
}

func TestKlineLimit(t *testing.T) {
	assert.Equal(t, 288, klineLimit(model.Interval5m, 24*time.Hour))
	assert.Equal(t, 168, klineLimit(model.Interval1h, 7*24*time.Hour))
	assert.Equal(t, 1000, klineLimit(model.Interval5m, 30*24*time.Hour))
	assert.Equal(t, 1, klineLimit(model.Interval1d, time.Minute))
}

func TestBinanceAdapter_GetQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/ticker/24hr", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","lastPrice":"64123.45000000","volume":"1234.5","priceChangePercent":"-1.25","closeTime":1714996800000}`))
	}))
	defer srv.Close()

	a := NewBinanceAdapter(srv.URL, "", time.Second)
	q := a.GetQuote(context.Background(), "BTC-USD")
	require.NotNil(t, q)
	assert.InDelta(t, 64123.45, q.Price, 1e-9)
	require.NotNil(t, q.Volume)
	assert.InDelta(t, 1234.5, *q.Volume, 1e-9)
	require.NotNil(t, q.ChangePercent)
	assert.InDelta(t, -1.25, *q.ChangePercent, 1e-9)
	assert.Equal(t, time.UnixMilli(1714996800000).UTC(), q.AsOf)
	assert.Equal(t, "binance", q.Source)
}

func TestBinanceAdapter_QuoteFailuresCollapseToNil(t *testing.T) {
	bodies := map[string]int{
		`{"code":-1121,"msg":"Invalid symbol."}`: http.StatusBadRequest,
		`not json`:                               http.StatusOK,
		`{"lastPrice":"0.00"}`:                   http.StatusOK,
		`{"lastPrice":"abc"}`:                    http.StatusOK,
	}
	for body, status := range bodies {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(body))
		}))
		a := NewBinanceAdapter(srv.URL, "", time.Second)
		assert.Nil(t, a.GetQuote(context.Background(), "BTC-USD"), body)
		srv.Close()
	}
}

func TestBinanceAdapter_GetHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "5m", r.URL.Query().Get("interval"))
		assert.Equal(t, "288", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[
			[1714997100000,"101.0","103.0","100.5","102.0","10.0",1714997399999,"0",1,"0","0","0"],
			[1714996800000,"100.0","102.0","99.0","101.0","12.5",1714997099999,"0",1,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	a := NewBinanceAdapter(srv.URL, "", time.Second)
	got := a.GetHistory(context.Background(), "BTC-USD", model.Interval5m, 24*time.Hour)
	require.Len(t, got, 2)
	assert.Equal(t, time.UnixMilli(1714996800000).UTC(), got[0].PeriodStart)
	assert.Equal(t, 101.0, got[0].Close)
	assert.Equal(t, got[0].Close, got[0].Price)
	assert.Equal(t, 12.5, got[0].Volume)
	assert.Equal(t, 103.0, got[1].High)
}

func TestBinanceAdapter_MalformedKlinesAreEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[[1714996800000,"100.0"]]`))
	}))
	defer srv.Close()
	a := NewBinanceAdapter(srv.URL, "", time.Second)
	assert.Empty(t, a.GetHistory(context.Background(), "BTC-USD", model.Interval1d, 24*time.Hour))
}

func TestBinanceAdapter_NetworkErrorIsEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()
	a := NewBinanceAdapter(url, "", time.Second)
	assert.Nil(t, a.GetQuote(context.Background(), "BTC-USD"))
	assert.Empty(t, a.GetHistory(context.Background(), "BTC-USD", model.Interval1d, 24*time.Hour))
}
