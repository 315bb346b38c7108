package refresh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tlacombe/dcaplanner/internal/domain"
	"github.com/tlacombe/dcaplanner/internal/usecase/pricing"
)

type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) List(ctx context.Context, userID string) ([]*domain.Asset, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Asset), args.Error(1)
}

func (m *MockAssetRepository) Get(ctx context.Context, userID, assetID string) (*domain.Asset, error) {
	args := m.Called(ctx, userID, assetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Asset), args.Error(1)
}

func (m *MockAssetRepository) Put(ctx context.Context, userID string, asset *domain.Asset) error {
	args := m.Called(ctx, userID, asset)
	return args.Error(0)
}

func (m *MockAssetRepository) Delete(ctx context.Context, userID, assetID string) error {
	args := m.Called(ctx, userID, assetID)
	return args.Error(0)
}

func (m *MockAssetRepository) AppendPurchase(ctx context.Context, userID, assetID string, p *domain.Purchase) error {
	args := m.Called(ctx, userID, assetID, p)
	return args.Error(0)
}

func (m *MockAssetRepository) DeletePurchasesForWeek(ctx context.Context, userID string, weekIndex int) (int, error) {
	args := m.Called(ctx, userID, weekIndex)
	return args.Int(0), args.Error(1)
}

func (m *MockAssetRepository) UpdateReferencePrice(ctx context.Context, userID, assetID string, price decimal.Decimal) error {
	args := m.Called(ctx, userID, assetID, price)
	return args.Error(0)
}

func (m *MockAssetRepository) ReplaceTiers(ctx context.Context, userID, assetID string, tiers []domain.Tier) error {
	args := m.Called(ctx, userID, assetID, tiers)
	return args.Error(0)
}

var _ domain.AssetRepository = (*MockAssetRepository)(nil)

// spotStub serves fixed quotes, optionally blocking until released.
type spotStub struct {
	quotes map[string]domain.Quote
	err    error
	block  chan struct{}
}

func (s *spotStub) FetchSpot(ctx context.Context, providerIDs []string) (map[string]domain.Quote, error) {
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return s.quotes, nil
}

type noHistoricals struct{}

func (noHistoricals) FetchHistorical(ctx context.Context, providerID string, day time.Time) (domain.Quote, error) {
	return domain.Quote{}, domain.ErrPriceUnavailable
}

type noCache struct{}

func (noCache) Get(ctx context.Context, userID, providerID string, day time.Time) (*domain.PriceCacheEntry, error) {
	return nil, nil
}

func (noCache) Put(ctx context.Context, userID string, entry *domain.PriceCacheEntry) error {
	return nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func testAssets() []*domain.Asset {
	return []*domain.Asset{
		{ID: "btc", ProviderID: "bitcoin"},
		{ID: "eth", ProviderID: "ethereum"},
	}
}

func newRefresher(repo *MockAssetRepository, spot *spotStub) *Refresher {
	prices := pricing.NewService(spot, noHistoricals{}, noCache{}, zerolog.Nop())
	return NewRefresher(repo, prices, "user-1", zerolog.Nop())
}

func TestTick_UpdatesReferencePrices(t *testing.T) {
	repo := new(MockAssetRepository)
	spot := &spotStub{quotes: map[string]domain.Quote{
		"bitcoin":  {EUR: dec("47000"), USD: dec("51000")},
		"ethereum": {EUR: dec("2800"), USD: dec("3050")},
	}}
	r := newRefresher(repo, spot)

	repo.On("List", mock.Anything, "user-1").Return(testAssets(), nil)
	repo.On("UpdateReferencePrice", mock.Anything, "user-1", "btc", dec("47000")).Return(nil).Once()
	repo.On("UpdateReferencePrice", mock.Anything, "user-1", "eth", dec("2800")).Return(nil).Once()

	assert.True(t, r.Tick(context.Background()))
	repo.AssertExpectations(t)
}

func TestTick_UnquotedAssetKeepsItsReferencePrice(t *testing.T) {
	repo := new(MockAssetRepository)
	spot := &spotStub{quotes: map[string]domain.Quote{
		"bitcoin": {EUR: dec("47000"), USD: dec("51000")},
	}}
	r := newRefresher(repo, spot)

	repo.On("List", mock.Anything, "user-1").Return(testAssets(), nil)
	repo.On("UpdateReferencePrice", mock.Anything, "user-1", "btc", dec("47000")).Return(nil).Once()

	assert.True(t, r.Tick(context.Background()))
	repo.AssertNotCalled(t, "UpdateReferencePrice", mock.Anything, "user-1", "eth", mock.Anything)
}

func TestTick_ProviderFailureDoesNotKillTheLoop(t *testing.T) {
	repo := new(MockAssetRepository)
	r := newRefresher(repo, &spotStub{err: errors.New("rate limited")})

	repo.On("List", mock.Anything, "user-1").Return(testAssets(), nil)

	assert.True(t, r.Tick(context.Background()), "a failed fetch is still a completed tick")
	repo.AssertNotCalled(t, "UpdateReferencePrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTick_EmptyPortfolioFetchesNothing(t *testing.T) {
	repo := new(MockAssetRepository)
	spot := &spotStub{quotes: map[string]domain.Quote{}}
	r := newRefresher(repo, spot)

	repo.On("List", mock.Anything, "user-1").Return([]*domain.Asset{}, nil)

	assert.True(t, r.Tick(context.Background()))
	repo.AssertNotCalled(t, "UpdateReferencePrice", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestTick_OverlappingTickIsSkipped(t *testing.T) {
	repo := new(MockAssetRepository)
	spot := &spotStub{
		quotes: map[string]domain.Quote{"bitcoin": {EUR: dec("47000"), USD: dec("51000")}},
		block:  make(chan struct{}),
	}
	r := newRefresher(repo, spot)

	repo.On("List", mock.Anything, "user-1").Return([]*domain.Asset{{ID: "btc", ProviderID: "bitcoin"}}, nil)
	repo.On("UpdateReferencePrice", mock.Anything, "user-1", "btc", mock.Anything).Return(nil)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.Tick(context.Background())
	}()

	// Wait for the first tick to be parked inside the fetch.
	require.Eventually(t, func() bool {
		return r.running.Load()
	}, time.Second, 5*time.Millisecond)

	assert.False(t, r.Tick(context.Background()), "re-entrant tick must be skipped")

	close(spot.block)
	wg.Wait()
}
