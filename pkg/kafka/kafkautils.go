package kafkautils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

type KafkaConfig struct {
	BootstrapServers string
	Topics           []TopicConfig
	MaxElapsed       time.Duration // total retry budget, defaults to 2 minutes
}

type TopicConfig struct {
	Topic             string
	NumPartitions     int
	ReplicationFactor int
	Config            map[string]string
}

// RetentionConfig returns a delete-policy topic config with the given retention.
func RetentionConfig(retention time.Duration) map[string]string {
	return map[string]string{
		"cleanup.policy": "delete",
		"retention.ms":   fmt.Sprintf("%d", retention.Milliseconds()),
	}
}

// InitKafkaTopics creates the specified Kafka topics, treating "already exists" as success.
// It retries with exponential backoff until MaxElapsed in case the broker is still starting.
func InitKafkaTopics(ctx context.Context, logger *zap.Logger, cnf KafkaConfig) error {
	admin, err := kafka.NewAdminClient(&kafka.ConfigMap{"bootstrap.servers": cnf.BootstrapServers})
	if err != nil {
		return fmt.Errorf("failed to create admin client: %w", err)
	}
	defer admin.Close()

	topics := make([]kafka.TopicSpecification, 0, len(cnf.Topics))
	for _, topic := range cnf.Topics {
		topics = append(topics, kafka.TopicSpecification{
			Topic:             topic.Topic,
			NumPartitions:     topic.NumPartitions,
			ReplicationFactor: topic.ReplicationFactor,
			Config:            topic.Config,
		})
	}

	operation := func() error {
		results, err := admin.CreateTopics(ctx, topics, kafka.SetAdminOperationTimeout(30*time.Second))
		if err != nil {
			return fmt.Errorf("failed to create topics: %w", err)
		}
		var errs []error
		for _, result := range results {
			if result.Error.Code() != kafka.ErrNoError && result.Error.Code() != kafka.ErrTopicAlreadyExists {
				errs = append(errs, fmt.Errorf("kafka topic %s creation failed: %v", result.Topic, result.Error))
				continue
			}
			logger.Info("kafka_topic_ready", zap.String("topic", result.Topic))
		}
		return errors.Join(errs...)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = cnf.MaxElapsed
	if b.MaxElapsedTime <= 0 {
		b.MaxElapsedTime = 2 * time.Minute
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// TopicName returns the topic of a message or "" when unset.
func TopicName(msg *kafka.Message) string {
	if msg == nil || msg.TopicPartition.Topic == nil {
		return ""
	}
	return *msg.TopicPartition.Topic
}

// IsTimeout reports whether err is librdkafka's poll timeout rather than a real failure.
func IsTimeout(err error) bool {
	var kerr kafka.Error
	return errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut
}
