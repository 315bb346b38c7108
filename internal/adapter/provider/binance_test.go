package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

// One 1d kline as Binance returns it: open time, then OHLCV as strings.
func kline(open string) string {
	return fmt.Sprintf(`[[1709251200000,"%s","46000","44000","45500","1234.5",1709337599999,"0","0","0","0","0"]]`, open)
}

func newBinance(t *testing.T, handler http.HandlerFunc) *BinanceProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	p := NewBinanceProvider(zerolog.Nop())
	p.BaseURL = srv.URL
	return p
}

func TestBinanceFetchHistorical(t *testing.T) {
	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	p := newBinance(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v3/klines", r.URL.Path)
		assert.Equal(t, "1d", r.URL.Query().Get("interval"))
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, fmt.Sprintf("%d", day.UnixMilli()), r.URL.Query().Get("startTime"))

		switch r.URL.Query().Get("symbol") {
		case "BTCEUR":
			w.Write([]byte(kline("45000.50")))
		case "BTCUSDT":
			w.Write([]byte(kline("48900.00")))
		default:
			t.Errorf("unexpected symbol %s", r.URL.Query().Get("symbol"))
		}
	})

	q, err := p.FetchHistorical(context.Background(), "bitcoin", day)
	require.NoError(t, err)

	assert.True(t, q.EUR.Equal(decimal.RequireFromString("45000.50")))
	assert.True(t, q.USD.Equal(decimal.RequireFromString("48900.00")))
}

func TestBinanceFetchHistorical_UnknownSymbol(t *testing.T) {
	p := newBinance(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected for an unmapped symbol")
	})

	_, err := p.FetchHistorical(context.Background(), "cardano", time.Now().AddDate(0, 0, -1))
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestBinanceFetchHistorical_NoCandle(t *testing.T) {
	p := newBinance(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	_, err := p.FetchHistorical(context.Background(), "bitcoin", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.ErrorIs(t, err, domain.ErrPriceUnavailable)
}

func TestBinanceFetchHistorical_HTTPError(t *testing.T) {
	p := newBinance(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := p.FetchHistorical(context.Background(), "bitcoin", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrPriceUnavailable)
}
