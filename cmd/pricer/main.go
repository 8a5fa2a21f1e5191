package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rzzdr/options-engine/config"
	"github.com/rzzdr/options-engine/internal/kafka"
	"github.com/rzzdr/options-engine/internal/valuation"
	"github.com/rzzdr/options-engine/internal/worker"
	"github.com/rzzdr/options-engine/pkg/metrics"
	"github.com/rzzdr/options-engine/pkg/utils/backpressure"
	"github.com/rzzdr/options-engine/pkg/utils/logger"
	"golang.org/x/sync/errgroup"
)

var (
	configFile   = flag.String("config", "", "Path to configuration file")
	createTopics = flag.Bool("create-topics", false, "Create the request and result topics before consuming")
)

func main() {
	flag.Parse()
	if *configFile != "" {
		os.Setenv(config.ConfigPathEnv, *configFile)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.GetLogger("pricer.main").Fatalf("Failed to load configuration: %v", err)
	}

	logger.InitConfig(cfg.App.Logger())
	log := logger.GetLogger("pricer.main")
	log.Info("Starting options pricing worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	recorder := metrics.NewRecorder(nil)

	kafkaClient, err := kafka.NewClient(&kafka.Config{
		Brokers:      cfg.Kafka.Brokers,
		GroupID:      cfg.Kafka.GroupID,
		WriteTimeout: cfg.Kafka.WriteTimeout,
		ReadTimeout:  cfg.Kafka.ReadTimeout,
		MaxAttempts:  cfg.Kafka.MaxAttempts,
		MaxWait:      time.Second,
	})
	if err != nil {
		log.Fatalf("Failed to create Kafka client: %v", err)
	}

	topics := cfg.Kafka.Topics
	if *createTopics {
		for _, topic := range []string{topics.PricingRequests, topics.PricingResults} {
			if err := kafkaClient.EnsureTopicExists(ctx, topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
				log.Fatalf("Failed to create topic %s: %v", topic, err)
			}
		}
	}

	producer, err := kafkaClient.NewProducer(topics.PricingResults)
	if err != nil {
		log.Fatalf("Failed to create producer: %v", err)
	}
	defer producer.Close()

	consumer, err := kafkaClient.NewConsumer(topics.PricingRequests)
	if err != nil {
		log.Fatalf("Failed to create consumer: %v", err)
	}
	defer consumer.Close()

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
	w := worker.New(engine, producer, topics.PricingRequests, recorder)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return consumer.ConsumeMessages(gctx, w.HandleMessage)
	})

	if cfg.Metrics.Prometheus.Enabled {
		promServer := metrics.NewPrometheusServer(cfg.Metrics.Prometheus.Port, recorder)
		g.Go(promServer.Start)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return promServer.Stop(shutdownCtx)
		})
	}

	log.Infof("Consuming %s, publishing to %s", topics.PricingRequests, topics.PricingResults)
	if err := g.Wait(); err != nil {
		log.Errorf("Worker stopped with error: %v", err)
		os.Exit(1)
	}
	log.Info("Shutdown complete")
}
