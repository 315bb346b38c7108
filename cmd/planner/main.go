package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/tlacombe/dcaplanner/internal/adapter/provider"
	"github.com/tlacombe/dcaplanner/internal/adapter/repository/postgres"
	"github.com/tlacombe/dcaplanner/internal/config"
	"github.com/tlacombe/dcaplanner/internal/refresh"
	"github.com/tlacombe/dcaplanner/internal/usecase/planner"
	"github.com/tlacombe/dcaplanner/internal/usecase/pricing"
	"github.com/tlacombe/dcaplanner/internal/usecase/schedule"
	"github.com/tlacombe/dcaplanner/internal/usecase/seeder"
	"github.com/tlacombe/dcaplanner/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	// .env is optional; real environment variables win either way.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(logger.Config{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	logger.SetGlobalLogger(log)

	// 1. Database
	db, err := postgres.NewDB(cfg.Database.ConnectionString)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	// 2. Repositories
	configRepo := postgres.NewConfigRepository(db)
	assetRepo := postgres.NewAssetRepository(db)
	cacheRepo := postgres.NewPriceCacheRepository(db)

	// 3. Price providers
	coingecko := provider.NewCoinGeckoProvider(log)
	var historical pricing.HistoricalProvider = coingecko
	if cfg.Pricing.HistoricalProvider == "binance" {
		historical = provider.NewBinanceProvider(log)
	}
	prices := pricing.NewService(coingecko, historical, cacheRepo, log)

	// 4. Services
	userID := cfg.User.ID
	plannerService := planner.NewService(configRepo, assetRepo, prices, log)

	if err := seeder.NewPortfolioSeeder(configRepo, assetRepo, log).Seed(ctx, userID); err != nil {
		log.Fatal().Err(err).Msg("failed to seed default portfolio")
	}

	// 5. Background refresh
	refresher := refresh.NewRefresher(assetRepo, prices, userID, log)
	refresher.FetchTimeout = time.Duration(cfg.Pricing.FetchTimeoutSec) * time.Second
	refresher.OnRefresh = func(ctx context.Context) {
		logCurrentPlan(ctx, plannerService, userID)
	}
	if err := refresher.Start(ctx, cfg.Pricing.RefreshCron); err != nil {
		log.Fatal().Err(err).Msg("failed to start price refresh")
	}

	waitForShutdown()
	refresher.Stop()
	log.Info().Msg("planner stopped")
}

// logCurrentPlan computes and logs the plan for the configured current week,
// the user's view of what to buy.
func logCurrentPlan(ctx context.Context, svc *planner.Service, userID string) {
	cfg, err := svc.ConfigRepo.Get(ctx, userID)
	if err != nil {
		svc.Log.Error().Err(err).Msg("could not load config for plan")
		return
	}

	plan, err := svc.ComputeWeeklyPlan(ctx, userID, cfg.CurrentWeek)
	if err != nil {
		svc.Log.Error().Err(err).Msg("could not compute weekly plan")
		return
	}

	// Confirming weeks is manual, so the tracked week can lag the calendar.
	anchors := schedule.WeekAnchors(cfg.StartDate, cfg.DurationWeeks)
	if calendarWeek := schedule.WeekIndexAt(anchors, svc.Now()); calendarWeek > cfg.CurrentWeek {
		svc.Log.Warn().
			Int("current_week", cfg.CurrentWeek).
			Int("calendar_week", calendarWeek).
			Msg("plan is behind the calendar, pending confirmations")
	}

	evt := svc.Log.Info().
		Int("week", plan.WeekIndex).
		Bool("future", plan.FutureWeek).
		Str("planned", plan.PlannedThisWeek.String()).
		Str("total_real", plan.TotalReal.String())
	for _, a := range plan.Assets {
		if a.Available {
			evt = evt.Str(a.AssetID, a.RealAmount.StringFixed(2)+"@"+a.Price.String())
		} else {
			evt = evt.Str(a.AssetID, "unavailable")
		}
	}
	evt.Msg("weekly plan")

	projection, err := svc.ProjectNextWeek(ctx, userID)
	if err != nil {
		svc.Log.Error().Err(err).Msg("could not project next week")
		return
	}
	if projection.Complete {
		svc.Log.Info().Msg("plan complete")
		return
	}
	svc.Log.Info().
		Str("remaining_capital", projection.RemainingCapital.String()).
		Int("remaining_weeks", projection.RemainingWeeks).
		Str("next_planned", projection.NextPlanned.String()).
		Msg("next week projection")
}

// waitForShutdown blocks until SIGTERM or SIGINT
func waitForShutdown() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
}
