package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vkarpovich/shopglance/internal/badge"
	"github.com/vkarpovich/shopglance/internal/cache"
	"github.com/vkarpovich/shopglance/internal/config"
	"github.com/vkarpovich/shopglance/internal/logging"
	"github.com/vkarpovich/shopglance/internal/lookup"
	"github.com/vkarpovich/shopglance/internal/marketplace"
	"github.com/vkarpovich/shopglance/internal/metrics"
	"github.com/vkarpovich/shopglance/internal/scan"
	"github.com/vkarpovich/shopglance/internal/server"
)

func main() {
	var (
		configFile = flag.String("config", "", "path to server configuration file")
		envPrefix  = flag.String("env-prefix", "SHOPGLANCE", "environment variable prefix")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loader := config.NewLoader(*envPrefix, *configFile)
	cfg, err := loader.Load(ctx)
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger, err := logging.New(cfg.Server.Logging)
	if err != nil {
		log.Fatalf("failed to configure logger: %v", err)
	}

	retention, err := cfg.Server.Cache.Retention()
	if err != nil {
		log.Fatalf("invalid cache retention: %v", err)
	}

	promRegistry := prometheus.NewRegistry()
	recorder := metrics.NewRecorder(promRegistry)

	store := buildOfferStore(logger.With(slog.String("component", "cache_factory")), cfg.Server.Cache, retention)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := store.Close(shutdownCtx); err != nil {
			logger.Error("cache shutdown failed", slog.Any("error", err))
		}
	}()

	offers := cache.New(cache.Config{
		Store:     store,
		Retention: retention,
		KeyPrefix: cfg.Server.Cache.KeyPrefix,
		Logger:    logger,
		Metrics:   recorder,
	})

	strategies := config.DefaultStrategies()
	if path := strings.TrimSpace(cfg.Server.Scan.SelectorsFile); path != "" {
		loaded, err := config.LoadStrategies(path)
		if err != nil {
			logger.Warn("selectors file rejected, using built-in strategies",
				slog.String("path", path), slog.Any("error", err))
		} else {
			strategies = loaded
		}
	}

	proxy := marketplace.NewHTTPProxy(marketplace.HTTPProxyConfig{
		Referer:   cfg.Server.Marketplace.BaseURL + "/",
		UserAgent: cfg.Server.Marketplace.UserAgent,
		Timeout:   cfg.Server.Marketplace.Timeout(),
		Logger:    logger,
	})
	client := marketplace.NewClient(marketplace.ClientConfig{
		Proxy:      proxy,
		Parser:     marketplace.NewParser(searchSelectors(strategies.Marketplace)),
		BaseURL:    cfg.Server.Marketplace.BaseURL,
		SearchPath: cfg.Server.Marketplace.SearchPath,
		Logger:     logger,
	})

	orchestrator := lookup.New(lookup.Config{
		Cache:   offers,
		Client:  client,
		Logger:  logger,
		Metrics: recorder,
	})

	renderer, err := badge.New(cfg.Server.Badge.TemplateFile)
	if err != nil {
		logger.Error("badge template setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	pipeline, err := scan.NewPipeline(logger, scan.PipelineOptions{
		Strategies:   strategies,
		Renderer:     renderer,
		Lookup:       orchestrator,
		Offers:       offers,
		Metrics:      recorder,
		StartupDelay: cfg.Server.Scan.StartupDelay(),
		MissDelay:    cfg.Server.Scan.MissDelay(),
	})
	if err != nil {
		logger.Error("scan pipeline setup failed", slog.Any("error", err))
		os.Exit(1)
	}

	if path := strings.TrimSpace(cfg.Server.Scan.SelectorsFile); path != "" {
		watcher, err := config.WatchSelectors(ctx, path, func(next config.Strategies) {
			if err := pipeline.Reload(next); err != nil {
				logger.Error("selector reload rejected", slog.Any("error", err))
			}
		}, func(err error) {
			if err != nil {
				logger.Error("selectors watcher error", slog.Any("error", err))
			}
		})
		if err != nil {
			logger.Error("selectors watcher setup failed", slog.Any("error", err))
		} else {
			defer watcher.Stop()
		}
	}

	handler := server.NewHandler(server.HandlerConfig{
		Augmenter: pipeline,
		Lookup:    orchestrator,
		Metrics:   recorder.Handler(),
		Logger:    logger,
	})

	srv, err := server.New(cfg, logger, handler)
	if err != nil {
		logger.Error("unable to construct server", slog.Any("error", err))
		os.Exit(1)
	}

	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server terminated unexpectedly", slog.Any("error", err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Info("server shutdown complete")
}

// buildOfferStore selects the cache backend. Redis failures fall back to the
// in-process store so the service still starts; caching degrades, lookups
// keep working.
func buildOfferStore(logger *slog.Logger, cfg config.CacheConfig, retention time.Duration) cache.Store {
	backend := strings.TrimSpace(strings.ToLower(cfg.Backend))
	switch backend {
	case "", "memory":
		logger.Info("using memory offer cache", slog.Duration("retention", retention))
		return cache.NewMemory()
	case "redis":
		store, err := cache.NewRedis(cache.RedisConfig{
			Address:  cfg.Redis.Address,
			Username: cfg.Redis.Username,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TLS: cache.RedisTLSConfig{
				Enabled: cfg.Redis.TLS.Enabled,
				CAFile:  cfg.Redis.TLS.CAFile,
			},
		}, retention)
		if err != nil {
			logger.Error("redis cache initialization failed", slog.Any("error", err))
			logger.Info("falling back to memory cache")
			return cache.NewMemory()
		}
		logger.Info("using redis offer cache", slog.String("address", cfg.Redis.Address))
		return store
	default:
		logger.Warn("unsupported cache backend, defaulting to memory", slog.String("backend", cfg.Backend))
		return cache.NewMemory()
	}
}

// searchSelectors converts the configured marketplace vocabulary, falling
// back to the built-in selector for any field left empty.
func searchSelectors(cfg config.MarketplaceSelectors) marketplace.Selectors {
	sel := marketplace.DefaultSelectors()
	if cfg.NoResults != "" {
		sel.NoResults = cfg.NoResults
	}
	if cfg.ResultsList != "" {
		sel.ResultsList = cfg.ResultsList
	}
	if cfg.ModelCard != "" {
		sel.ModelCard = cfg.ModelCard
	}
	if cfg.ShopCard != "" {
		sel.ShopCard = cfg.ShopCard
	}
	if cfg.ModelPrice != "" {
		sel.ModelPrice = cfg.ModelPrice
	}
	if cfg.ShopPrice != "" {
		sel.ShopPrice = cfg.ShopPrice
	}
	if cfg.ShopCountLink != "" {
		sel.ShopCountLink = cfg.ShopCountLink
	}
	if cfg.Pagination != "" {
		sel.Pagination = cfg.Pagination
	}
	if cfg.PageLinks != "" {
		sel.PageLinks = cfg.PageLinks
	}
	return sel
}
