package refresh

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/tlacombe/dcaplanner/internal/domain"
	"github.com/tlacombe/dcaplanner/internal/usecase/pricing"
)

// Refresher periodically pulls fresh spot prices for the user's portfolio and
// rolls them into each asset's reference price. A tick that fires while the
// previous one is still fetching is skipped, never queued.
type Refresher struct {
	AssetRepo    domain.AssetRepository
	Prices       *pricing.Service
	UserID       string
	FetchTimeout time.Duration
	OnRefresh    func(ctx context.Context) // called after each completed cycle
	Log          zerolog.Logger

	cron    *cron.Cron
	running atomic.Bool
}

// NewRefresher creates a new Refresher instance
func NewRefresher(assetRepo domain.AssetRepository, prices *pricing.Service, userID string, log zerolog.Logger) *Refresher {
	return &Refresher{
		AssetRepo:    assetRepo,
		Prices:       prices,
		UserID:       userID,
		FetchTimeout: 30 * time.Second,
		Log:          log,
		cron:         cron.New(cron.WithSeconds()),
	}
}

// Start schedules the refresh on the given cron spec ("0 * * * * *" for
// once a minute, seconds field included) and runs one refresh immediately.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	if _, err := r.cron.AddFunc(spec, func() { r.Tick(ctx) }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	r.cron.Start()
	r.Log.Info().Str("spec", spec).Msg("price refresh started")

	r.Tick(ctx)
	return nil
}

// Stop halts the schedule and waits for an in-flight refresh to finish.
func (r *Refresher) Stop() {
	stopCtx := r.cron.Stop()
	<-stopCtx.Done()
	r.Log.Info().Msg("price refresh stopped")
}

// Tick runs one refresh cycle. Returns false when it was skipped because a
// previous cycle is still in flight.
func (r *Refresher) Tick(ctx context.Context) bool {
	if !r.running.CompareAndSwap(false, true) {
		r.Log.Warn().Msg("previous refresh still running, tick skipped")
		return false
	}
	defer r.running.Store(false)

	ctx, cancel := context.WithTimeout(ctx, r.FetchTimeout)
	defer cancel()

	assets, err := r.AssetRepo.List(ctx, r.UserID)
	if err != nil {
		r.Log.Error().Err(err).Msg("refresh could not list assets")
		return true
	}
	if len(assets) == 0 {
		return true
	}

	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ProviderID)
	}
	if err := r.Prices.RefreshSpot(ctx, ids); err != nil {
		// Next tick tries again; a failed fetch never kills the loop.
		r.Log.Warn().Err(err).Msg("spot refresh failed")
		return true
	}

	for _, asset := range assets {
		price := r.Prices.SpotPrice(asset.ProviderID)
		if !price.Known {
			continue
		}
		if err := r.AssetRepo.UpdateReferencePrice(ctx, r.UserID, asset.ID, price.Quote.EUR); err != nil {
			r.Log.Warn().Err(err).Str("asset", asset.ID).Msg("reference price update failed")
			continue
		}
	}

	r.Log.Debug().Int("assets", len(assets)).Msg("spot prices refreshed")
	if r.OnRefresh != nil {
		r.OnRefresh(ctx)
	}
	return true
}
