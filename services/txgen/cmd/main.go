package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	kafkautils "github.com/nimeshabuddhika/fraud-scoring-relay/pkg/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/txgen/internal/generator"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	brokers    string
	topic      string
	count      int
	fraudRatio float64
	delay      time.Duration
	seed       uint64
	initTopics bool
	partitions int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "txgen",
		Short: "Generate synthetic card transactions into the relay's input topic",
		Long: `Generate normal and fraud-like transactions and produce them to Kafka,
keyed by transaction id.

Examples:
  txgen --count 100 --fraud-ratio 0.1
  txgen --brokers kafka:9092 --topic transactions --delay 0 --init-topics`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         run,
	}

	rootCmd.Flags().StringVar(&brokers, "brokers", "localhost:9092", "Kafka bootstrap servers")
	rootCmd.Flags().StringVarP(&topic, "topic", "t", pkg.DefaultInputTopic, "topic to produce to")
	rootCmd.Flags().IntVarP(&count, "count", "n", 100, "number of transactions to generate")
	rootCmd.Flags().Float64Var(&fraudRatio, "fraud-ratio", 0.1, "fraction of fraud-like transactions (0..1)")
	rootCmd.Flags().DurationVar(&delay, "delay", time.Second, "pause between transactions")
	rootCmd.Flags().Uint64Var(&seed, "seed", uint64(time.Now().UnixNano()), "random seed")
	rootCmd.Flags().BoolVar(&initTopics, "init-topics", false, "create the topic before producing")
	rootCmd.Flags().IntVar(&partitions, "partitions", 4, "partitions when creating the topic")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if count < 0 {
		return fmt.Errorf("--count must be >= 0, got %d", count)
	}
	if fraudRatio < 0 || fraudRatio > 1 {
		return fmt.Errorf("--fraud-ratio must be within [0,1], got %v", fraudRatio)
	}

	pkg.InitLogger()
	logger := pkg.Logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if initTopics {
		err := kafkautils.InitKafkaTopics(ctx, logger, kafkautils.KafkaConfig{
			BootstrapServers: brokers,
			Topics:           []kafkautils.TopicConfig{{Topic: topic, NumPartitions: partitions, ReplicationFactor: 1}},
			MaxElapsed:       time.Minute,
		})
		if err != nil {
			return fmt.Errorf("failed to init topic: %w", err)
		}
	}

	producer, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  brokers,
		"acks":               "all",
		"enable.idempotence": true,
	})
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	defer producer.Close()

	logger.Info("txgen_started",
		zap.String("brokers", brokers),
		zap.String(pkg.Topic, topic),
		zap.Int("count", count),
		zap.Float64("fraud_ratio", fraudRatio),
		zap.Duration("delay", delay))

	sum, err := generator.Run(ctx, logger, producer, generator.New(seed), generator.Options{
		Count:      count,
		FraudRatio: fraudRatio,
		Delay:      delay,
		Topic:      topic,
	})
	producer.Flush(5000)

	logger.Info("txgen_completed",
		zap.Int("legitimate", sum.Legitimate),
		zap.Int("fraudulent", sum.Fraudulent),
		zap.Int("failed", sum.Failed))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
