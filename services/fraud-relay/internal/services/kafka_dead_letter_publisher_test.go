package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestDeadLetters(t *testing.T, p Producer, timeout time.Duration) DeadLetterPublisher {
	return NewKafkaDeadLetterPublisher(KafkaDeadLetterPublisherConfig{
		Logger:   zaptest.NewLogger(t),
		Producer: p,
		Topic:    "transactions_dlq",
		Timeout:  timeout,
	})
}

func rejected(offset int64) RejectedRecord {
	return RejectedRecord{
		Msg: rawMessage(inputTopic, offset, []byte("key"), []byte("garbage")),
		Err: pkg.NewSerializationError("failed to decode transaction", errors.New("invalid character")),
	}
}

func TestNewKafkaDeadLetterPublisher_DisabledWithoutTopic(t *testing.T) {
	p := NewKafkaDeadLetterPublisher(KafkaDeadLetterPublisherConfig{Logger: zaptest.NewLogger(t), Producer: &fakeProducer{}})
	assert.Nil(t, p)
}

func TestSend_CopiesRecordsInOrder(t *testing.T) {
	producer := &fakeProducer{}
	err := newTestDeadLetters(t, producer, time.Second).Send(context.Background(), []RejectedRecord{rejected(4), rejected(5)})

	require.NoError(t, err)
	sent := producer.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, []byte("garbage"), sent[0].Value)
	for i, want := range []string{"4", "5"} {
		var offset string
		for _, h := range sent[i].Headers {
			if h.Key == HeaderDLQOriginOffset {
				offset = string(h.Value)
			}
		}
		assert.Equal(t, want, offset)
	}
}

func TestSend_DeliveryFailureIsConnectivityError(t *testing.T) {
	producer := &fakeProducer{deliver: errDeliveryFailed}
	err := newTestDeadLetters(t, producer, time.Second).Send(context.Background(), []RejectedRecord{rejected(0)})

	require.Error(t, err)
	assert.True(t, pkg.IsConnectivityError(err))
	assert.ErrorIs(t, err, errDeliveryFailed)
}

func TestSend_MissingReportTimesOut(t *testing.T) {
	producer := &fakeProducer{silent: true}
	err := newTestDeadLetters(t, producer, 20*time.Millisecond).Send(context.Background(), []RejectedRecord{rejected(0)})

	require.Error(t, err)
	assert.True(t, pkg.IsConnectivityError(err))
	assert.Contains(t, err.Error(), "not acknowledged")
}
