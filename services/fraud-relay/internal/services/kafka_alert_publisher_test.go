package services

import (
	"context"
	"testing"
	"time"

	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestPublisher(t *testing.T, p Producer, timeout time.Duration) AlertPublisher {
	return NewKafkaAlertPublisher(KafkaAlertPublisherConfig{
		Logger:   zaptest.NewLogger(t),
		Producer: p,
		Topic:    "fraud_alerts",
		Timeout:  timeout,
	})
}

func alertFor(id string, p float64) views.Alert {
	tx := views.Transaction{TransactionID: id, Amount: 10}
	return views.NewAlert(tx, views.NewScoringResult(id, p, 0.8))
}

func TestPublish_KeysByTransactionID(t *testing.T) {
	producer := &fakeProducer{}
	err := newTestPublisher(t, producer, time.Second).Publish(context.Background(),
		[]views.Alert{alertFor("tx-1", 0.9), alertFor("tx-2", 0.95)})

	require.NoError(t, err)
	require.Equal(t, 2, producer.count())
	assert.Equal(t, "tx-1", string(producer.messages[0].Key))
	assert.Equal(t, "fraud_alerts", *producer.messages[0].TopicPartition.Topic)
	assert.Equal(t, 0.95, producer.alerts()[1].FraudProbability)
}

func TestPublish_EmptyIsNoop(t *testing.T) {
	producer := &fakeProducer{}
	require.NoError(t, newTestPublisher(t, producer, time.Second).Publish(context.Background(), nil))
	assert.Zero(t, producer.count())
}

func TestPublish_DeliveryFailureIsConnectivityError(t *testing.T) {
	producer := &fakeProducer{deliver: errDeliveryFailed}
	err := newTestPublisher(t, producer, time.Second).Publish(context.Background(), []views.Alert{alertFor("tx-1", 0.9)})

	require.Error(t, err)
	assert.True(t, pkg.IsConnectivityError(err))
	assert.ErrorIs(t, err, errDeliveryFailed)
}

func TestPublish_EnqueueFailureIsConnectivityError(t *testing.T) {
	producer := &fakeProducer{failNext: 1}
	err := newTestPublisher(t, producer, time.Second).Publish(context.Background(), []views.Alert{alertFor("tx-1", 0.9)})

	require.Error(t, err)
	assert.True(t, pkg.IsConnectivityError(err))
}

func TestPublish_MissingReportTimesOut(t *testing.T) {
	producer := &fakeProducer{silent: true}
	err := newTestPublisher(t, producer, 30*time.Millisecond).Publish(context.Background(), []views.Alert{alertFor("tx-1", 0.9)})

	require.Error(t, err)
	assert.True(t, pkg.IsConnectivityError(err))
	assert.Contains(t, err.Error(), "not acknowledged")
}
