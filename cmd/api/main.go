package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rzzdr/options-engine/config"
	"github.com/rzzdr/options-engine/internal/marketdata"
	"github.com/rzzdr/options-engine/internal/risk"
	"github.com/rzzdr/options-engine/internal/valuation"
	"github.com/rzzdr/options-engine/pkg/api"
	"github.com/rzzdr/options-engine/pkg/metrics"
	"github.com/rzzdr/options-engine/pkg/utils/backpressure"
	"github.com/rzzdr/options-engine/pkg/utils/circuit"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	"golang.org/x/sync/errgroup"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
)

func main() {
	flag.Parse()
	if *configFile != "" {
		os.Setenv(config.ConfigPathEnv, *configFile)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger("api.main").Fatalf("Failed to load configuration: %v", err)
	}

	logger.InitConfig(cfg.App.Logger())
	log := logger.GetLogger("api.main")
	log.Infof("Starting %s API service", cfg.App.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder(nil)

	overload, err := backpressure.ParseStrategy(cfg.Pricing.Overload)
	if err != nil {
		log.Fatalf("Invalid pricing configuration: %v", err)
	}
	engine := valuation.NewEngine(valuation.Config{
		TreeSteps:     cfg.Pricing.TreeSteps,
		Simulations:   cfg.Pricing.Simulations,
		Seed:          cfg.Pricing.Seed,
		MaxConcurrent: cfg.Pricing.MaxConcurrent,
		Overload:      overload,
	}, recorder)

	varMethod, err := risk.ParseVaRMethod(cfg.Risk.VaRMethod)
	if err != nil {
		log.Fatalf("Invalid risk configuration: %v", err)
	}

	handlers := api.NewHandlers(engine, newProvider(cfg.MarketData, recorder), api.RiskSettings{
		Method:           varMethod,
		ConfidenceLevel:  cfg.Risk.VaRConfidenceLevel,
		HistoricalWindow: cfg.Risk.HistoricalDays,
		SimulationRuns:   cfg.Risk.SimulationRuns,
		Seed:             cfg.Pricing.Seed,
	}, recorder)

	apiServer := api.NewServer(api.Config{
		Host:           cfg.API.Host,
		Port:           cfg.API.Port,
		ReadTimeout:    cfg.API.ReadTimeout,
		WriteTimeout:   cfg.API.WriteTimeout,
		RateLimit:      cfg.API.RateLimit,
		RateBurst:      cfg.API.RateBurst,
		AllowedOrigins: cfg.API.CORS.AllowedOrigins,
	}, handlers, recorder)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(apiServer.Start)

	var promServer *metrics.PrometheusServer
	if cfg.Metrics.Prometheus.Enabled {
		promServer = metrics.NewPrometheusServer(cfg.Metrics.Prometheus.Port, recorder)
		g.Go(promServer.Start)
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("Initiating shutdown")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		defer cancel()

		if err := apiServer.Stop(shutdownCtx); err != nil {
			log.Errorf("API server shutdown error: %v", err)
		}
		if promServer != nil {
			if err := promServer.Stop(shutdownCtx); err != nil {
				log.Errorf("Prometheus server shutdown error: %v", err)
			}
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Errorf("Service stopped with error: %v", err)
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}

func newProvider(cfg config.MarketDataConfig, recorder *metrics.Recorder) marketdata.Provider {
	if cfg.Source == "csv" {
		return marketdata.CSVProvider{Path: cfg.CSVPath}
	}

	var provider marketdata.Provider = marketdata.NewYahooProvider(marketdata.YahooConfig{
		BaseURL:   cfg.BaseURL,
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		RateBurst: cfg.RateBurst,
		Breaker: circuit.Config{
			MaxRequests:  cfg.Breaker.MaxRequests,
			Interval:     cfg.Breaker.Interval,
			Timeout:      cfg.Breaker.Timeout,
			FailureRatio: cfg.Breaker.FailureRatio,
			MinRequests:  cfg.Breaker.MinRequests,
		},
	}, recorder)
	if cfg.CacheTTL > 0 {
		provider = marketdata.NewCachedProvider(provider, cfg.CacheTTL, cfg.CacheSize)
	}
	return provider
}
