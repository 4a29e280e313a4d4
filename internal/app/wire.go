package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/arbot-io/arbot/internal/allocation"
	s3blob "github.com/arbot-io/arbot/internal/blob/s3"
	redisc "github.com/arbot-io/arbot/internal/cache/redis"
	"github.com/arbot-io/arbot/internal/config"
	"github.com/arbot-io/arbot/internal/domain"
	"github.com/arbot-io/arbot/internal/engine"
	"github.com/arbot-io/arbot/internal/exchange"
	"github.com/arbot-io/arbot/internal/execution"
	"github.com/arbot-io/arbot/internal/fees"
	"github.com/arbot-io/arbot/internal/ledger"
	"github.com/arbot-io/arbot/internal/liquidity"
	"github.com/arbot-io/arbot/internal/notify"
	"github.com/arbot-io/arbot/internal/risk"
	"github.com/arbot-io/arbot/internal/router"
	"github.com/arbot-io/arbot/internal/server"
	"github.com/arbot-io/arbot/internal/server/handler"
	"github.com/arbot-io/arbot/internal/server/ws"
	"github.com/arbot-io/arbot/internal/store/memory"
	"github.com/arbot-io/arbot/internal/store/postgres"
	"github.com/arbot-io/arbot/internal/variant"
)

// Dependencies is the fully wired object graph handed to the mode runners.
// Optional components are nil when their backing service is not configured.
type Dependencies struct {
	Engine    *engine.Engine
	Books     *ledger.Ledger
	Variants  *variant.Tester
	Predictor *allocation.Predictor
	Trades    domain.TradeStore
	Venues    []string

	Bus      domain.SignalBus // nil in paper mode
	Hub      *ws.Hub          // nil without a bus
	Server   *server.Server   // nil when the API is disabled
	Relay    *notify.Relay    // nil without senders and a bus
	Archiver *s3blob.Archiver // nil when S3 is disabled
}

// Wire builds the dependency graph for the configured mode. Paper mode runs
// fully in memory; run and server modes connect Postgres and Redis. The
// returned cleanup closes external connections and is safe to call once.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	paper := strings.ToLower(cfg.Mode) == "paper"

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, func() {}, err
	}

	// Durable stores, or their in-memory counterparts in paper mode.
	var (
		trades    domain.TradeStore
		balances  domain.BalanceStore
		varStore  domain.VariantStore
		pairStats domain.PairStatStore
	)
	if paper {
		memTrades := memory.NewTradeStore()
		trades = memTrades
		balances = memory.NewBalanceStore()
		varStore = memory.NewVariantStore()
		pairStats = memory.NewPairStatStore(memTrades)
	} else {
		pg, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("app: connect postgres: %w", err))
		}
		closers = append(closers, pg.Close)
		if cfg.Postgres.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("app: migrate: %w", err))
			}
		}
		trades = postgres.NewTradeStore(pg.Pool())
		balances = postgres.NewBalanceStore(pg.Pool())
		varStore = postgres.NewVariantStore(pg.Pool())
		pairStats = postgres.NewPairStatStore(pg.Pool())
	}

	// Redis backs the rate limiter, quote mirror and signal bus outside paper
	// mode.
	var (
		limiter    domain.RateLimiter
		quoteCache domain.QuoteCache
		bus        domain.SignalBus
	)
	if !paper {
		rc, err := redisc.New(ctx, redisc.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("app: connect redis: %w", err))
		}
		closers = append(closers, func() { _ = rc.Close() })

		limits := make(map[string]redisc.VenueLimit, len(cfg.Venues.Names))
		for _, name := range cfg.Venues.Names {
			limits[name] = redisc.VenueLimit{
				Requests: cfg.Venues.RateLimitPerSec,
				Window:   time.Second,
			}
		}
		limiter = redisc.NewRateLimiter(rc, limits, redisc.VenueLimit{})
		quoteCache = redisc.NewQuoteCache(rc, 0)
		bus = redisc.NewSignalBus(rc)
	}

	// Venue clients. The paper venue simulates fills in every mode; live
	// connectors register here when a venue integration lands. Each client is
	// rate limited and mirrors fetched books into the quote cache.
	clients := make([]domain.ExchangeClient, 0, len(cfg.Venues.Names))
	for _, name := range cfg.Venues.Names {
		var client domain.ExchangeClient = exchange.NewPaper(exchange.PaperConfig{
			Name:            name,
			Balances:        domain.Balances{"USDT": cfg.Ledger.InitialQuoteUSD},
			FeePct:          cfg.Venues.PaperFeePct,
			FillSlippagePct: cfg.Venues.PaperSlippagePct,
		})
		client = exchange.WithRateLimit(client, limiter)
		client = exchange.WithQuoteMirror(client, quoteCache, logger)
		clients = append(clients, client)
	}
	dir := exchange.NewDirectory(clients...)

	model := fees.Default()

	riskCfg := risk.DefaultConfig()
	riskCfg.MinSpreadPct = cfg.Risk.MinSpreadPct
	riskCfg.RiskThreshold = cfg.Risk.RiskThreshold
	riskCfg.PositionSizeCapUSD = cfg.Risk.PositionSizeCapUSD
	gate := risk.NewGate(riskCfg, model, logger)

	optimizer := fees.NewOptimizer(model)

	liqCfg := liquidity.DefaultConfig()
	if cfg.Router.MaxDepthLevels > 0 {
		liqCfg.MaxDepthLevels = cfg.Router.MaxDepthLevels
	}
	if cfg.Router.MaxSlippagePct > 0 {
		liqCfg.MaxSlippagePct = cfg.Router.MaxSlippagePct
	}
	analyzer := liquidity.NewAnalyzer(liqCfg)

	orders := router.New(router.Config{
		LargeOrderThreshold: cfg.Router.LargeOrderThreshold,
		EnableVWAP:          cfg.Router.EnableVWAP,
		EnableTWAP:          cfg.Router.EnableTWAP,
		TWAPSlices:          cfg.Router.TWAPSlices,
		TWAPIntervalMs:      cfg.Router.TWAPIntervalMs,
		MinOrderSize:        cfg.Router.MinOrderSize,
		SlippageTolerance:   cfg.Router.SlippageTolerance,
	}, analyzer, logger)

	protocol := execution.NewProtocol(execution.Config{
		MaxSellRetries:    cfg.Execution.MaxSellRetries,
		RetryDelay:        cfg.Execution.RetryDelay.Duration,
		MaxInFlightTrades: cfg.Execution.MaxInFlightTrades,
	}, dir, nil, logger)

	books := ledger.New(ledger.Config{
		Venues:          cfg.Venues.Names,
		InitialQuoteUSD: cfg.Ledger.InitialQuoteUSD,
	}, model, logger)
	books.AttachStores(trades, balances)
	if err := books.Load(ctx); err != nil {
		return fail(fmt.Errorf("app: load ledger: %w", err))
	}

	variants := make([]domain.Variant, 0, len(cfg.Variants))
	for _, v := range cfg.Variants {
		variants = append(variants, domain.Variant{
			Name: v.Name,
			Params: domain.VariantParams{
				MinSpreadPct:       v.MinSpreadPct,
				RiskThreshold:      v.RiskThreshold,
				PositionSizeCapUSD: v.PositionSizeCapUSD,
			},
		})
	}
	tester, err := variant.NewTester(variant.Config{
		RotationInterval: cfg.Testing.RotationInterval.Duration,
		MinSampleSize:    cfg.Testing.MinSampleSize,
	}, variants, logger)
	if err != nil {
		return fail(fmt.Errorf("app: build variants: %w", err))
	}
	tester.AttachStore(varStore)
	if err := tester.Load(ctx); err != nil {
		return fail(fmt.Errorf("app: load variants: %w", err))
	}

	allocCfg := allocation.DefaultConfig()
	allocCfg.ReserveUSD = cfg.Allocation.ReserveUSD
	allocCfg.MinBalancePerVenueUSD = cfg.Allocation.MinBalancePerVenueUSD
	allocCfg.MaxBalancePerVenueUSD = cfg.Allocation.MaxBalancePerVenueUSD
	allocCfg.MinKeepBalanceUSD = cfg.Allocation.MinKeepBalanceUSD
	allocCfg.MinTransferUSD = cfg.Allocation.MinTransferUSD
	allocCfg.RebalanceThresholdPct = cfg.Allocation.RebalanceThresholdPct
	if cfg.Allocation.LookbackDays > 0 {
		allocCfg.LookbackDays = cfg.Allocation.LookbackDays
	}
	predictor := allocation.NewPredictor(allocCfg, pairStats, logger)

	eng := engine.New(engine.Config{
		AutoExecute:      cfg.Engine.AutoExecute,
		OrderBookDepth:   cfg.Engine.OrderBookDepth,
		RecentLimit:      cfg.Engine.RecentLimit,
		RotationInterval: cfg.Testing.RotationInterval.Duration,
	}, gate, optimizer, orders, protocol, books, tester, dir, bus, logger)

	deps := &Dependencies{
		Engine:    eng,
		Books:     books,
		Variants:  tester,
		Predictor: predictor,
		Trades:    trades,
		Venues:    cfg.Venues.Names,
		Bus:       bus,
	}

	// Notifications ride the bus, so they are only available with Redis.
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	if len(senders) > 0 && bus != nil {
		notifier := notify.NewNotifier(senders, cfg.Notify.Events, logger)
		deps.Relay = notify.NewRelay(notifier, bus, logger)
	}

	if cfg.S3.Enabled {
		blobClient, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("app: connect object storage: %w", err))
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(blobClient), trades, logger)
	}

	if cfg.Server.Enabled {
		if bus != nil {
			deps.Hub = ws.NewHub(bus, logger)
		}
		handlers := server.Handlers{
			Health:        handler.NewHealthHandler(logger),
			Opportunities: handler.NewOpportunityHandler(eng, logger),
			Trades:        handler.NewTradeHandler(eng, trades, logger),
			Performance:   handler.NewPerformanceHandler(books, logger),
			Variants:      handler.NewVariantHandler(tester, logger),
			Allocation:    handler.NewAllocationHandler(predictor, books, cfg.Venues.Names, logger),
		}
		deps.Server = server.New(server.Config{
			Port:        cfg.Server.Port,
			CORSOrigins: cfg.Server.CORSOrigins,
			APIKey:      cfg.Server.APIKey,
		}, handlers, deps.Hub, logger)
	}

	return deps, cleanup, nil
}
