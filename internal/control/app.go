// Package control assembles the detector from configuration and manages
// its lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/vietddude/scamradar/internal/api"
	"github.com/vietddude/scamradar/internal/core/config"
	"github.com/vietddude/scamradar/internal/core/domain"
	"github.com/vietddude/scamradar/internal/core/worker"
	"github.com/vietddude/scamradar/internal/detection/explain"
	"github.com/vietddude/scamradar/internal/detection/features"
	"github.com/vietddude/scamradar/internal/detection/metrics"
	"github.com/vietddude/scamradar/internal/detection/model"
	"github.com/vietddude/scamradar/internal/detection/normalize"
	"github.com/vietddude/scamradar/internal/detection/service"
	"github.com/vietddude/scamradar/internal/health"
	"github.com/vietddude/scamradar/internal/infra/cache"
	"github.com/vietddude/scamradar/internal/infra/chain/etherscan"
	"github.com/vietddude/scamradar/internal/infra/chain/rarible"
	redisclient "github.com/vietddude/scamradar/internal/infra/redis"
	"github.com/vietddude/scamradar/internal/infra/rpc/provider"
	"github.com/vietddude/scamradar/internal/infra/rpc/routing"
	"github.com/vietddude/scamradar/internal/infra/storage"
	"github.com/vietddude/scamradar/internal/infra/storage/memory"
	"github.com/vietddude/scamradar/internal/infra/storage/postgres"
)

const (
	apiEtherscan = "etherscan"
	apiRarible   = "rarible"

	// negativeSetName is the shared Redis set of contracts without statistics.
	negativeSetName = "rarible:not_found"
)

// App owns every long-lived component of the detector.
type App struct {
	cfg          *config.AppConfig
	service      *service.Service
	healthServer *health.Server
	apiServer    *http.Server
	store        storage.DetectionRepository
	providers    []*provider.HTTPProvider
	db           *postgres.DB
	redisClient  *redisclient.Client
	negative     *cache.MirroredSet
	log          *slog.Logger
}

// NewApp builds the pipeline. Only the model artifact and an explicitly
// configured database are fatal; Redis and the optional artifacts degrade.
func NewApp(ctx context.Context, cfg *config.AppConfig) (*App, error) {
	a := &App{cfg: cfg, log: slog.Default().With("component", "app")}

	m, err := model.Load(cfg.Model.Weights)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	a.log.Info("Model loaded", "path", cfg.Model.Weights, "input_dim", m.InputDim(), "tasks", m.Tasks())

	var stats normalize.TrainingStats
	if cfg.Model.Stats != "" {
		stats, err = normalize.LoadStats(cfg.Model.Stats)
		if err != nil {
			a.log.Warn("Training statistics unavailable, using fallback scaling", "error", err)
			stats = nil
		}
	}

	// Upstreams
	ring := routing.NewKeyRing()
	ring.Register(routing.NewKeyPool(apiEtherscan, cfg.Etherscan.Keys, cfg.Etherscan.RatePerKey))
	ring.Register(routing.NewKeyPool(apiRarible, cfg.Rarible.Keys, cfg.Rarible.RatePerKey))

	esProvider := provider.NewHTTPProvider(apiEtherscan, cfg.Etherscan.BaseURL, cfg.Etherscan.Timeout).
		WithMetrics(metrics.Upstream{})
	rbProvider := provider.NewHTTPProvider(apiRarible, cfg.Rarible.BaseURL, cfg.Rarible.Timeout).
		WithMetrics(metrics.Upstream{})
	a.providers = []*provider.HTTPProvider{esProvider, rbProvider}

	esClient := etherscan.NewClient(esProvider, cfg.Etherscan.ChainID)
	esPool := ring.Pool(apiEtherscan)
	fetcher := etherscan.NewFetcher(esClient, esPool, etherscan.FetcherConfig{
		MaxPerCategory: cfg.Etherscan.MaxPerCategory,
		MaxTotal:       cfg.Etherscan.MaxTotal,
		Backoff:        routing.DefaultBackoff,
	})

	// Negative collection cache, mirrored to Redis when configured
	negative := a.negativeCache(ctx)

	rbClient := rarible.NewClient(rbProvider, ring.Pool(apiRarible), rarible.Options{
		Blockchain:  cfg.Rarible.Blockchain,
		USDPerETH:   cfg.Rarible.USDPerETH,
		USDFallback: cfg.Rarible.USDFallback == nil || *cfg.Rarible.USDFallback,
		Metrics:     metrics.Enrichment{},
	})
	enricher := rarible.NewEnricher(rbClient, rarible.EnricherOptions{
		Negative: negative,
		Positive: cache.NewMemo[domain.CollectionStats](cfg.Rarible.StatsTTL),
		Timeout:  cfg.Rarible.EnrichTimeout,
		Metrics:  metrics.Enrichment{},
	})

	// Attribution
	method, err := explain.ParseMethod(cfg.Explain.Strategy)
	if err != nil {
		return nil, err
	}
	background := explain.NewBackground(cfg.Explain.BackgroundSize, time.Now().UnixNano())
	explainer := explain.New(method, m, background, explain.ShapleyOptions{
		Permutations: cfg.Explain.Permutations,
		Tolerance:    cfg.Explain.Tolerance,
		Sigmoid:      cfg.Explain.Sigmoid,
		Seed:         time.Now().UnixNano(),
	})

	var narrator service.Narrator
	switch cfg.Explain.Narrator {
	case "template":
		narrator = service.TemplateNarrator{}
	case "none", "":
	default:
		return nil, fmt.Errorf("unknown narrator %q", cfg.Explain.Narrator)
	}

	store, err := a.detectionStore(ctx)
	if err != nil {
		return nil, err
	}
	a.store = store

	a.service, err = service.New(service.Options{
		Fetcher:          fetcher,
		Transactions:     etherscan.NewTxLookup(esClient, esPool),
		Approvals:        etherscan.NewApprovalAuditor(esClient, esPool),
		Activity:         etherscan.NewTxHistory(esClient, esPool),
		Enricher:         enricher,
		Scaler:           normalize.New(stats),
		Classifier:       m,
		Explainer:        explainer,
		Background:       background,
		Narrator:         narrator,
		Store:            store,
		Negative:         negative,
		AccountNames:     featureNames(cfg.Model.AccountFeatures, features.AccountNames),
		TransactionNames: featureNames(cfg.Model.TransactionFeatures, features.TransactionNames),
		Timeout:          cfg.RequestTimeout,
	})
	if err != nil {
		return nil, err
	}

	// Ops endpoints
	monitor := health.NewMonitor(true, esProvider, rbProvider)
	if a.db != nil {
		monitor.AddCheck("database", a.db.Health)
	}
	if a.redisClient != nil {
		monitor.AddCheck("redis", a.redisClient.Ping)
	}
	a.healthServer = health.NewServer(monitor, cfg.Server.Port)

	if cfg.Server.APIPort > 0 {
		a.apiServer = &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.APIPort),
			Handler:           api.SetupRouter(a.service),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return a, nil
}

func (a *App) negativeCache(ctx context.Context) cache.NegativeSet {
	if !a.cfg.Redis.Enabled() {
		return cache.NewMemorySet()
	}
	rc, err := redisclient.NewClient(a.cfg.Redis)
	if err != nil {
		a.log.Warn("Redis unavailable, negative cache is process-local", "error", err)
		return cache.NewMemorySet()
	}
	a.redisClient = rc

	set := cache.NewMirroredSet(rc, negativeSetName)
	if err := set.Warm(ctx); err != nil {
		a.log.Warn("Failed to warm negative cache", "error", err)
	}
	a.log.Info("Negative cache mirrored to Redis", "contracts", set.Size())
	a.negative = set
	return set
}

func (a *App) detectionStore(ctx context.Context) (storage.DetectionRepository, error) {
	if !a.cfg.Database.Enabled() {
		a.log.Info("Using Memory storage")
		return memory.NewDetectionRepo(), nil
	}
	db, err := postgres.NewDB(ctx, a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	a.db = db
	a.log.Info("Using PostgreSQL storage")
	return postgres.NewDetectionRepo(db), nil
}

func featureNames(path string, fallback []string) []string {
	if path == "" {
		return fallback
	}
	names, err := model.LoadFeatureNames(path)
	if err != nil || len(names) != len(fallback) {
		slog.Warn("Using built-in feature names", "path", path, "loaded", len(names), "error", err)
		return fallback
	}
	return names
}

// Service returns the detection orchestrator.
func (a *App) Service() *service.Service {
	return a.service
}

// Start runs the HTTP listeners in the background.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
	}()

	if a.apiServer != nil {
		go func() {
			a.log.Info("Detection API listening", "addr", a.apiServer.Addr)
			if err := a.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.log.Error("API server failed", "error", err)
			}
		}()
	}

	if a.db != nil {
		a.db.StartMetricsCollector(ctx)
	}
	if a.cfg.Retention > 0 {
		go worker.NewPruner(a.cfg.Retention, a.store).Start(ctx)
	}
	return nil
}

// Stop shuts the listeners down and releases connections.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping detector...")
	var errs []error

	if a.apiServer != nil {
		if err := a.apiServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("api server: %w", err))
		}
	}
	if a.healthServer != nil {
		if err := a.healthServer.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("health server: %w", err))
		}
	}
	a.Close()
	return errors.Join(errs...)
}

// Close releases connections without touching the listeners. One-shot
// commands use it instead of Stop.
func (a *App) Close() {
	for _, p := range a.providers {
		_ = p.Close()
	}
	if a.negative != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.negative.Flush(ctx); err != nil {
			a.log.Warn("Failed to flush negative cache", "error", err)
		}
		cancel()
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("Failed to close database", "error", err)
		}
	}
}
