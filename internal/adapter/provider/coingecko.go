package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

const coingeckoBaseURL = "https://api.coingecko.com/api/v3"

// CoinGeckoProvider quotes assets via the CoinGecko public API: a batched
// simple-price endpoint for current prices and a per-day history endpoint
// for past ones. Symbols are CoinGecko coin IDs ("bitcoin", "solana").
type CoinGeckoProvider struct {
	Client  *http.Client
	BaseURL string
	Log     zerolog.Logger
}

// NewCoinGeckoProvider creates a new CoinGecko provider.
func NewCoinGeckoProvider(log zerolog.Logger) *CoinGeckoProvider {
	return &CoinGeckoProvider{
		Client:  &http.Client{Timeout: 15 * time.Second},
		BaseURL: coingeckoBaseURL,
		Log:     log,
	}
}

func (p *CoinGeckoProvider) Name() string { return "coingecko" }

// FetchSpot returns current EUR and USD quotes for the given coin IDs in one
// batched call. IDs the API does not quote are simply absent from the result.
func (p *CoinGeckoProvider) FetchSpot(ctx context.Context, providerIDs []string) (map[string]domain.Quote, error) {
	u := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=eur,usd",
		p.BaseURL, url.QueryEscape(strings.Join(providerIDs, ",")))

	var payload map[string]map[string]json.Number
	if err := p.getJSON(ctx, u, &payload); err != nil {
		return nil, err
	}

	quotes := make(map[string]domain.Quote, len(payload))
	for id, prices := range payload {
		eur, okEUR := parsePrice(prices["eur"])
		usd, okUSD := parsePrice(prices["usd"])
		if !okEUR || !okUSD {
			p.Log.Warn().Str("provider_id", id).Msg("coingecko quote missing a currency, skipped")
			continue
		}
		quotes[id] = domain.Quote{EUR: eur, USD: usd}
	}
	return quotes, nil
}

// coinHistory is the subset of the /coins/{id}/history response we read.
type coinHistory struct {
	MarketData *struct {
		CurrentPrice map[string]json.Number `json:"current_price"`
	} `json:"market_data"`
}

// FetchHistorical returns the EUR and USD prices of one coin on a calendar
// day. The endpoint wants dd-mm-yyyy and answers with that day's snapshot;
// days without market data yield ErrPriceUnavailable.
func (p *CoinGeckoProvider) FetchHistorical(ctx context.Context, providerID string, day time.Time) (domain.Quote, error) {
	u := fmt.Sprintf("%s/coins/%s/history?date=%s",
		p.BaseURL, url.PathEscape(providerID), day.UTC().Format("02-01-2006"))

	var payload coinHistory
	if err := p.getJSON(ctx, u, &payload); err != nil {
		return domain.Quote{}, err
	}
	if payload.MarketData == nil {
		return domain.Quote{}, fmt.Errorf("coingecko history for %s on %s: %w",
			providerID, day.Format("2006-01-02"), domain.ErrPriceUnavailable)
	}

	eur, okEUR := parsePrice(payload.MarketData.CurrentPrice["eur"])
	usd, okUSD := parsePrice(payload.MarketData.CurrentPrice["usd"])
	if !okEUR || !okUSD {
		return domain.Quote{}, fmt.Errorf("coingecko history for %s on %s: %w",
			providerID, day.Format("2006-01-02"), domain.ErrPriceUnavailable)
	}
	return domain.Quote{EUR: eur, USD: usd}, nil
}

func (p *CoinGeckoProvider) getJSON(ctx context.Context, u string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return fmt.Errorf("coingecko request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("coingecko returned status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("coingecko decode: %w", err)
	}
	return nil
}

func parsePrice(n json.Number) (decimal.Decimal, bool) {
	if n == "" {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(n.String())
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}
