package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/cache"
	kafkautils "github.com/nimeshabuddhika/fraud-scoring-relay/pkg/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/utils"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/fraud-relay/configs"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/fraud-relay/internal/handlers"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/fraud-relay/internal/services"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const limiterKey = "fraud_relay:scoring_rate"

// main initializes and runs the fraud scoring relay.
func main() {
	// Initialize global logger with default configuration
	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync() // Ensure all buffered logs are flushed on exit

	// Load configuration from environment and optional config file
	cfg, err := configs.Load(logger)
	if err != nil {
		logger.Fatal("failed_to_load_config", zap.Error(err))
	}

	// Create a context that can be canceled for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.KafkaInitTopics {
		topics := []kafkautils.TopicConfig{
			{Topic: cfg.KafkaInputTopic, NumPartitions: cfg.KafkaPartition, ReplicationFactor: 1},
			{
				Topic:             cfg.KafkaOutputTopic,
				NumPartitions:     cfg.KafkaPartition,
				ReplicationFactor: 1,
				Config:            kafkautils.RetentionConfig(cfg.KafkaAlertRetention),
			},
		}
		if !utils.IsEmpty(cfg.KafkaDLQTopic) {
			topics = append(topics, kafkautils.TopicConfig{
				Topic:             cfg.KafkaDLQTopic,
				NumPartitions:     cfg.KafkaPartition,
				ReplicationFactor: 1,
				Config:            kafkautils.RetentionConfig(cfg.KafkaDLQRetention),
			})
		}
		err = kafkautils.InitKafkaTopics(ctx, logger, kafkautils.KafkaConfig{
			BootstrapServers: cfg.KafkaBrokers,
			Topics:           topics,
		})
		if err != nil {
			logger.Fatal("failed_to_init_kafka_topics", zap.Error(err))
		}
	}

	// Optional Redis client so the scoring rate limit is shared across the consumer group
	var redisClient *redis.Client
	if !utils.IsEmpty(cfg.RedisAddr) {
		client, redisCloser, err := cache.New(ctx, cache.Config{Addr: cfg.RedisAddr})
		if err != nil {
			logger.Fatal("failed_to_connect_redis", zap.Error(err))
		}
		defer redisCloser()
		redisClient = client
		logger.Info("redis_client_initialized", zap.String("addr", cfg.RedisAddr))
	}
	var limiter *pkg.DistributedLimiter
	if cfg.MlRateLimitPerSec > 0 {
		limiter = pkg.NewDistributedLimiter(redisClient, limiterKey, cfg.MlRateLimitPerSec, cfg.MlRequestBurst, time.Second, logger)
	}

	scorer := services.NewFraudScoringService(services.FraudScoringConfig{
		Logger:   logger,
		BaseURL:  cfg.ScoringEndpointURL,
		Timeout:  cfg.ScoringTimeout,
		MaxConns: cfg.MaxConcurrentScoring,
	})
	if health, err := scorer.Health(ctx); err != nil {
		logger.Warn("scoring_service_not_ready", zap.String("url", cfg.ScoringEndpointURL), zap.Error(err))
	} else {
		logger.Info("scoring_service_ready",
			zap.String("service", health.Service),
			zap.Bool("model_loaded", health.ModelLoaded),
			zap.Bool("using_mock_model", health.UsingMockModel))
	}

	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.KafkaBrokers,
		"group.id":           cfg.KafkaConsumerGroup,
		"auto.offset.reset":  cfg.KafkaAutoOffsetReset,
		"enable.auto.commit": false, // offsets are committed by the relay after alerts are delivered
	})
	if err != nil {
		logger.Fatal("failed_to_create_kafka_consumer", zap.Error(err))
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  cfg.KafkaBrokers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		logger.Fatal("failed_to_create_kafka_producer", zap.Error(err))
	}
	// Drain librdkafka's own events so error/log events never fill its queue
	go func() {
		for ev := range producer.Events() {
			if kerr, ok := ev.(kafka.Error); ok {
				logger.Warn("kafka_producer_event", zap.Error(kerr))
			}
		}
	}()

	relay := services.NewKafkaTransactionRelay(services.KafkaTransactionRelayConfig{
		Logger: logger,
		Config: cfg,
		Source: consumer,
		Scorer: scorer,
		Publisher: services.NewKafkaAlertPublisher(services.KafkaAlertPublisherConfig{
			Logger:   logger,
			Producer: producer,
			Topic:    cfg.KafkaOutputTopic,
			Timeout:  cfg.PublishTimeout,
		}),
		DeadLetters: services.NewKafkaDeadLetterPublisher(services.KafkaDeadLetterPublisherConfig{
			Logger:   logger,
			Producer: producer,
			Topic:    cfg.KafkaDLQTopic,
			Timeout:  cfg.PublishTimeout,
		}),
		Limiter: limiter,
	})

	// Health and metrics endpoint
	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: handlers.NewRouter(logger, relay)}
	go func() {
		logger.Info("metrics_server_started", zap.String("addr", cfg.MetricsAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics_server_error", zap.Error(err))
		}
	}()

	relayDone := make(chan error, 1)
	go func() { relayDone <- relay.Run(ctx) }()

	// Handle graceful shutdown on SIGINT or SIGTERM
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case osSignal := <-sigChan:
		logger.Info("shutdown_signal_received", zap.String("signal", osSignal.String()))
		cancel()
		if err := <-relayDone; err != nil {
			logger.Error("relay_drain_failed", zap.Error(err))
		}
	case err := <-relayDone:
		logger.Error("relay_exited", zap.Error(err))
	}

	if remaining := producer.Flush(int(cfg.PublishTimeout.Milliseconds())); remaining > 0 {
		logger.Warn("kafka_producer_unflushed", zap.Int("messages", remaining))
	}
	producer.Close()
	if err := consumer.Close(); err != nil {
		logger.Error("failed_to_close_kafka_consumer", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("metrics_server_shutdown_error", zap.Error(err))
	}
	logger.Info("service_shutdown_completed")
}
