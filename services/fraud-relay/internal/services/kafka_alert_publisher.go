package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"
	"go.uber.org/zap"
)

// Producer is the subset of *kafka.Producer the relay uses.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// AlertPublisher writes alert records to the output topic.
type AlertPublisher interface {
	Publish(ctx context.Context, alerts []views.Alert) error
}

// KafkaAlertPublisherConfig holds configuration for the alert publisher
type KafkaAlertPublisherConfig struct {
	Logger   *zap.Logger
	Producer Producer
	Topic    string
	Timeout  time.Duration // max wait for delivery reports of one call
}

type kafkaAlertPublisher struct {
	logger   *zap.Logger
	producer Producer
	topic    string
	timeout  time.Duration
}

// NewKafkaAlertPublisher creates a publisher keyed by transaction id.
func NewKafkaAlertPublisher(cfg KafkaAlertPublisherConfig) AlertPublisher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &kafkaAlertPublisher{
		logger:   cfg.Logger,
		producer: cfg.Producer,
		topic:    cfg.Topic,
		timeout:  timeout,
	}
}

// Publish produces every alert and blocks until each has a delivery report.
// It returns a connectivity error if any alert is rejected, fails delivery or is not acknowledged in time.
func (p *kafkaAlertPublisher) Publish(ctx context.Context, alerts []views.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	// buffered so late reports after a timeout never block the producer's event loop
	deliveryChan := make(chan kafka.Event, len(alerts))
	topic := p.topic
	for _, alert := range alerts {
		body, err := json.Marshal(alert)
		if err != nil {
			return pkg.NewSerializationError("failed to encode alert", err)
		}
		err = p.producer.Produce(&kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
			Key:            []byte(alert.TransactionID),
			Value:          body,
		}, deliveryChan)
		if err != nil {
			return pkg.NewConnectivityError("failed to enqueue alert", err)
		}
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	var errs []error
	for pending := len(alerts); pending > 0; {
		select {
		case <-ctx.Done():
			return pkg.NewConnectivityError("alert publish interrupted", ctx.Err())
		case <-timer.C:
			return pkg.NewConnectivityError(fmt.Sprintf("%d alert deliveries not acknowledged within %s", pending, p.timeout), nil)
		case ev := <-deliveryChan:
			m, ok := ev.(*kafka.Message)
			if !ok {
				continue
			}
			pending--
			if m.TopicPartition.Error != nil {
				p.logger.Error("alert_delivery_failed",
					zap.ByteString(pkg.TransactionId, m.Key),
					zap.Error(m.TopicPartition.Error))
				errs = append(errs, m.TopicPartition.Error)
			}
		}
	}
	if len(errs) > 0 {
		return pkg.NewConnectivityError("alert delivery failed", errors.Join(errs...))
	}

	p.logger.Debug("alerts_published", zap.String(pkg.Topic, topic), zap.Int("count", len(alerts)))
	return nil
}
