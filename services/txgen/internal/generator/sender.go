package generator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"go.uber.org/zap"
)

// Producer is the subset of *kafka.Producer the sender uses.
type Producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
}

type Options struct {
	Count      int
	FraudRatio float64
	Delay      time.Duration // pause between transactions
	Topic      string
}

type Summary struct {
	Legitimate int
	Fraudulent int
	Failed     int
}

// Run generates opts.Count transactions and produces each keyed by transaction id, waiting for its delivery report.
// A failed send is logged and counted; it does not stop the run.
func Run(ctx context.Context, logger *zap.Logger, producer Producer, gen *Generator, opts Options) (Summary, error) {
	var sum Summary
	deliveryChan := make(chan kafka.Event, 1)
	topic := opts.Topic

	for i := 0; i < opts.Count; i++ {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		tx, fraud := gen.Next(opts.FraudRatio)
		if fraud {
			sum.Fraudulent++
		} else {
			sum.Legitimate++
		}

		body, err := json.Marshal(tx)
		if err != nil {
			return sum, pkg.NewSerializationError("failed to encode transaction", err)
		}
		err = producer.Produce(&kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
			Key:            []byte(tx.TransactionID),
			Value:          body,
		}, deliveryChan)
		if err == nil {
			err = awaitDelivery(ctx, deliveryChan)
		}
		if err != nil {
			sum.Failed++
			logger.Error("transaction_send_failed", zap.String(pkg.TransactionId, tx.TransactionID), zap.Error(err))
		} else {
			logger.Info("transaction_sent",
				zap.Int("seq", i+1),
				zap.Int("count", opts.Count),
				zap.String(pkg.TransactionId, tx.TransactionID),
				zap.Bool("fraud_like", fraud))
		}

		if opts.Delay > 0 && i < opts.Count-1 {
			select {
			case <-ctx.Done():
				return sum, ctx.Err()
			case <-time.After(opts.Delay):
			}
		}
	}
	return sum, nil
}

func awaitDelivery(ctx context.Context, deliveryChan chan kafka.Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case ev := <-deliveryChan:
		if m, ok := ev.(*kafka.Message); ok && m.TopicPartition.Error != nil {
			return pkg.NewConnectivityError("transaction delivery failed", m.TopicPartition.Error)
		}
		return nil
	}
}
