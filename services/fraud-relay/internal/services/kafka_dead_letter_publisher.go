package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	kafkautils "github.com/nimeshabuddhika/fraud-scoring-relay/pkg/kafka"
	"go.uber.org/zap"
)

// Dead-letter headers added to the copied record.
const (
	HeaderDLQReason          = "x-dlq-reason"
	HeaderDLQError           = "x-dlq-error"
	HeaderDLQOriginTopic     = "x-original-topic"
	HeaderDLQOriginPartition = "x-original-partition"
	HeaderDLQOriginOffset    = "x-original-offset"

	DLQReasonUndecodable = "undecodable_transaction"
)

// RejectedRecord is an input message that was skipped, with the reason it was skipped.
type RejectedRecord struct {
	Msg *kafka.Message
	Err error
}

// DeadLetterPublisher copies skipped input records to a dead-letter topic.
type DeadLetterPublisher interface {
	Send(ctx context.Context, records []RejectedRecord) error
}

type KafkaDeadLetterPublisherConfig struct {
	Logger   *zap.Logger
	Producer Producer
	Topic    string
	Timeout  time.Duration
}

type kafkaDeadLetterPublisher struct {
	logger   *zap.Logger
	producer Producer
	topic    string
	timeout  time.Duration
}

// NewKafkaDeadLetterPublisher returns nil when no topic is configured.
func NewKafkaDeadLetterPublisher(cfg KafkaDeadLetterPublisherConfig) DeadLetterPublisher {
	if cfg.Topic == "" {
		return nil
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &kafkaDeadLetterPublisher{
		logger:   cfg.Logger,
		producer: cfg.Producer,
		topic:    cfg.Topic,
		timeout:  timeout,
	}
}

// Send produces the original key, value and headers of every record and waits for their delivery reports.
func (p *kafkaDeadLetterPublisher) Send(ctx context.Context, records []RejectedRecord) error {
	if len(records) == 0 {
		return nil
	}

	deliveryChan := make(chan kafka.Event, len(records))
	topic := p.topic
	for _, rec := range records {
		headers := make([]kafka.Header, 0, len(rec.Msg.Headers)+5)
		headers = append(headers, rec.Msg.Headers...)
		headers = append(headers,
			kafka.Header{Key: HeaderDLQReason, Value: []byte(DLQReasonUndecodable)},
			kafka.Header{Key: HeaderDLQError, Value: []byte(errString(rec.Err))},
			kafka.Header{Key: HeaderDLQOriginTopic, Value: []byte(kafkautils.TopicName(rec.Msg))},
			kafka.Header{Key: HeaderDLQOriginPartition, Value: []byte(strconv.Itoa(int(rec.Msg.TopicPartition.Partition)))},
			kafka.Header{Key: HeaderDLQOriginOffset, Value: []byte(strconv.FormatInt(int64(rec.Msg.TopicPartition.Offset), 10))},
		)
		err := p.producer.Produce(&kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
			Key:            rec.Msg.Key,
			Value:          rec.Msg.Value,
			Headers:        headers,
		}, deliveryChan)
		if err != nil {
			return pkg.NewConnectivityError("failed to enqueue dead letter", err)
		}
	}

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	var errs []error
	for pending := len(records); pending > 0; {
		select {
		case <-ctx.Done():
			return pkg.NewConnectivityError("dead letter publish interrupted", ctx.Err())
		case <-timer.C:
			return pkg.NewConnectivityError(fmt.Sprintf("%d dead letters not acknowledged within %s", pending, p.timeout), nil)
		case ev := <-deliveryChan:
			m, ok := ev.(*kafka.Message)
			if !ok {
				continue
			}
			pending--
			if m.TopicPartition.Error != nil {
				errs = append(errs, m.TopicPartition.Error)
			}
		}
	}
	if len(errs) > 0 {
		return pkg.NewConnectivityError("dead letter delivery failed", errors.Join(errs...))
	}

	p.logger.Info("sent_to_dlq", zap.String(pkg.Topic, topic), zap.Int("count", len(records)))
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
