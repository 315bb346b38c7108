package pricing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/tlacombe/dcaplanner/internal/domain"
)

// SpotProvider fetches current prices for a batch of provider symbols.
// Implementations may return a subset of the requested symbols; missing
// entries are not an error.
type SpotProvider interface {
	FetchSpot(ctx context.Context, providerIDs []string) (map[string]domain.Quote, error)
}

// HistoricalProvider fetches the price of one symbol on a past calendar day.
type HistoricalProvider interface {
	FetchHistorical(ctx context.Context, providerID string, day time.Time) (domain.Quote, error)
}

// Service resolves prices for plan computation. Current prices live in an
// in-memory session map fed by RefreshSpot; past prices go through the
// write-once cache and fall back to the historical provider. Concurrent
// lookups for the same (symbol, day) collapse into one upstream call.
type Service struct {
	Spot       SpotProvider
	Historical HistoricalProvider
	Cache      domain.PriceCacheRepository
	Now        func() time.Time
	Log        zerolog.Logger

	group singleflight.Group

	mu   sync.RWMutex
	spot map[string]domain.Quote
}

// NewService creates a new pricing Service instance
func NewService(spot SpotProvider, hist HistoricalProvider, cache domain.PriceCacheRepository, log zerolog.Logger) *Service {
	return &Service{
		Spot:       spot,
		Historical: hist,
		Cache:      cache,
		Now:        time.Now,
		Log:        log,
		spot:       make(map[string]domain.Quote),
	}
}

// RefreshSpot fetches fresh current prices for the given symbols and merges
// them into the session map. A symbol that cannot be quoted keeps its last
// known value; only a wholesale provider failure is returned as an error.
func (s *Service) RefreshSpot(ctx context.Context, providerIDs []string) error {
	if len(providerIDs) == 0 {
		return nil
	}
	quotes, err := s.Spot.FetchSpot(ctx, providerIDs)
	if err != nil {
		return fmt.Errorf("fetch spot prices: %w", err)
	}

	s.mu.Lock()
	for id, q := range quotes {
		s.spot[id] = q
	}
	s.mu.Unlock()

	if len(quotes) < len(providerIDs) {
		s.Log.Warn().
			Int("requested", len(providerIDs)).
			Int("quoted", len(quotes)).
			Msg("spot refresh returned a partial quote set")
	}
	return nil
}

// SpotPrice returns the last refreshed current quote for providerID, or the
// unavailable sentinel if no refresh has quoted it yet.
func (s *Service) SpotPrice(providerID string) domain.Price {
	s.mu.RLock()
	q, ok := s.spot[providerID]
	s.mu.RUnlock()
	if !ok {
		return domain.UnavailablePrice()
	}
	return domain.KnownPrice(q)
}

// PriceAt resolves the price of providerID on a calendar day. Future days are
// unavailable by definition. Today resolves from the spot session map, with a
// one-off provider fetch when the map has no entry yet. Past days read the
// cache first and fall back to the historical provider, populating the cache
// on the way out. Resolution failures degrade to unavailable rather than
// erroring: the caller decides what an unavailable price means.
func (s *Service) PriceAt(ctx context.Context, userID, providerID string, at time.Time) domain.Price {
	day := domain.CacheDay(at)
	today := domain.CacheDay(s.Now())

	if day.After(today) {
		return domain.UnavailablePrice()
	}
	if day.Equal(today) {
		return s.todayPrice(ctx, providerID)
	}
	return s.historicalPrice(ctx, userID, providerID, day)
}

func (s *Service) todayPrice(ctx context.Context, providerID string) domain.Price {
	if p := s.SpotPrice(providerID); p.Known {
		return p
	}

	v, err, _ := s.group.Do("spot|"+providerID, func() (interface{}, error) {
		quotes, err := s.Spot.FetchSpot(ctx, []string{providerID})
		if err != nil {
			return nil, err
		}
		q, ok := quotes[providerID]
		if !ok {
			return nil, domain.ErrPriceUnavailable
		}
		s.mu.Lock()
		s.spot[providerID] = q
		s.mu.Unlock()
		return q, nil
	})
	if err != nil {
		s.Log.Warn().Err(err).Str("provider_id", providerID).Msg("spot price unavailable")
		return domain.UnavailablePrice()
	}
	return domain.KnownPrice(v.(domain.Quote))
}

func (s *Service) historicalPrice(ctx context.Context, userID, providerID string, day time.Time) domain.Price {
	entry, err := s.Cache.Get(ctx, userID, providerID, day)
	if err != nil {
		s.Log.Warn().Err(err).Str("provider_id", providerID).Msg("price cache read failed")
	}
	if entry != nil {
		return domain.KnownPrice(domain.Quote{EUR: entry.EUR, USD: entry.USD})
	}

	key := providerID + "|" + day.Format("2006-01-02")
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		q, err := s.Historical.FetchHistorical(ctx, providerID, day)
		if err != nil {
			return nil, err
		}
		put := &domain.PriceCacheEntry{ProviderID: providerID, Day: day, EUR: q.EUR, USD: q.USD}
		if err := s.Cache.Put(ctx, userID, put); err != nil {
			// The price itself is good; a failed cache write only costs a refetch.
			s.Log.Warn().Err(err).Str("provider_id", providerID).Msg("price cache write failed")
		}
		return q, nil
	})
	if err != nil {
		s.Log.Warn().
			Err(err).
			Str("provider_id", providerID).
			Str("day", day.Format("2006-01-02")).
			Msg("historical price unavailable")
		return domain.UnavailablePrice()
	}
	return domain.KnownPrice(v.(domain.Quote))
}
