package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

const binanceBaseURL = "https://api.binance.com"

// BinanceProvider fetches historical prices from Binance daily candles. Each
// day's price is the candle's open, read once per quote currency. It speaks
// CoinGecko coin IDs on the outside and maps them to Binance pairs.
type BinanceProvider struct {
	Client     *http.Client
	BaseURL    string
	EURSymbols map[string]string
	USDSymbols map[string]string
	Log        zerolog.Logger
}

// NewBinanceProvider creates a new Binance provider.
func NewBinanceProvider(log zerolog.Logger) *BinanceProvider {
	return &BinanceProvider{
		Client:  &http.Client{Timeout: 15 * time.Second},
		BaseURL: binanceBaseURL,
		EURSymbols: map[string]string{
			"bitcoin":  "BTCEUR",
			"ethereum": "ETHEUR",
			"solana":   "SOLEUR",
			"dogecoin": "DOGEEUR",
		},
		USDSymbols: map[string]string{
			"bitcoin":  "BTCUSDT",
			"ethereum": "ETHUSDT",
			"solana":   "SOLUSDT",
			"dogecoin": "DOGEUSDT",
		},
		Log: log,
	}
}

func (p *BinanceProvider) Name() string { return "binance" }

// FetchHistorical returns the day's open price in EUR and USDT for one coin.
// Unknown symbols and days without a candle yield ErrPriceUnavailable.
func (p *BinanceProvider) FetchHistorical(ctx context.Context, providerID string, day time.Time) (domain.Quote, error) {
	eurSymbol, okEUR := p.EURSymbols[providerID]
	usdSymbol, okUSD := p.USDSymbols[providerID]
	if !okEUR || !okUSD {
		return domain.Quote{}, fmt.Errorf("no binance pair for %s: %w", providerID, domain.ErrPriceUnavailable)
	}

	eur, err := p.fetchDailyOpen(ctx, eurSymbol, day)
	if err != nil {
		return domain.Quote{}, err
	}
	usd, err := p.fetchDailyOpen(ctx, usdSymbol, day)
	if err != nil {
		return domain.Quote{}, err
	}
	return domain.Quote{EUR: eur, USD: usd}, nil
}

// fetchDailyOpen asks for the single 1d candle covering the day, midnight
// UTC to midnight UTC, and returns its open price.
func (p *BinanceProvider) fetchDailyOpen(ctx context.Context, symbol string, day time.Time) (decimal.Decimal, error) {
	start := domain.CacheDay(day).UnixMilli()
	end := start + 24*time.Hour.Milliseconds()

	u := fmt.Sprintf("%s/api/v3/klines?symbol=%s&interval=1d&startTime=%d&endTime=%d&limit=1",
		p.BaseURL, symbol, start, end)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Decimal{}, err
	}
	resp, err := p.Client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("binance request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return decimal.Decimal{}, fmt.Errorf("binance returned status %d", resp.StatusCode)
	}

	// Each kline is a mixed array; index 1 is the open price as a string.
	var klines [][]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&klines); err != nil {
		return decimal.Decimal{}, fmt.Errorf("binance decode: %w", err)
	}
	if len(klines) == 0 || len(klines[0]) < 2 {
		return decimal.Decimal{}, fmt.Errorf("no binance candle for %s on %s: %w",
			symbol, day.Format("2006-01-02"), domain.ErrPriceUnavailable)
	}

	var open string
	if err := json.Unmarshal(klines[0][1], &open); err != nil {
		return decimal.Decimal{}, fmt.Errorf("binance open price: %w", err)
	}
	d, err := decimal.NewFromString(open)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("binance open price %q: %w", open, err)
	}
	return d, nil
}
