package services

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"
)

// fakeProducer acknowledges every message synchronously unless failNext is set.
type fakeProducer struct {
	mu       sync.Mutex
	messages []*kafka.Message
	failNext int   // number of upcoming Produce calls to reject
	deliver  error // delivery error reported for every message
	silent   bool  // never send delivery reports
}

func (p *fakeProducer) Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext > 0 {
		p.failNext--
		return kafka.NewError(kafka.ErrQueueFull, "queue full", false)
	}
	if p.deliver == nil && !p.silent {
		p.messages = append(p.messages, msg)
	}
	if p.silent {
		return nil
	}
	report := *msg
	report.TopicPartition.Error = p.deliver
	deliveryChan <- &report
	return nil
}

func (p *fakeProducer) Flush(int) int { return 0 }
func (p *fakeProducer) Close()        {}

func (p *fakeProducer) alerts() []views.Alert {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]views.Alert, 0, len(p.messages))
	for _, m := range p.messages {
		var a views.Alert
		if err := json.Unmarshal(m.Value, &a); err == nil {
			out = append(out, a)
		}
	}
	return out
}

func (p *fakeProducer) sent() []*kafka.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*kafka.Message(nil), p.messages...)
}

func (p *fakeProducer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.messages)
}

// fakeSource serves queued messages then reports poll timeouts.
type fakeSource struct {
	mu        sync.Mutex
	queue     []*kafka.Message
	readErrs  []error
	commits   [][]kafka.TopicPartition
	rebalance kafka.RebalanceCb
	closed    bool
}

var errPollTimeout = kafka.NewError(kafka.ErrTimedOut, "timed out", false)

func (s *fakeSource) push(msgs ...*kafka.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = append(s.queue, msgs...)
}

func (s *fakeSource) ReadMessage(timeout time.Duration) (*kafka.Message, error) {
	s.mu.Lock()
	if len(s.readErrs) > 0 {
		err := s.readErrs[0]
		s.readErrs = s.readErrs[1:]
		s.mu.Unlock()
		return nil, err
	}
	if len(s.queue) > 0 {
		m := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()
		return m, nil
	}
	s.mu.Unlock()
	time.Sleep(min(timeout, 5*time.Millisecond))
	return nil, errPollTimeout
}

func (s *fakeSource) CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits = append(s.commits, offsets)
	return offsets, nil
}

func (s *fakeSource) SubscribeTopics(_ []string, cb kafka.RebalanceCb) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rebalance = cb
	return nil
}

func (s *fakeSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// committedOffset returns the highest committed next-offset for partition 0 of topic, -1 if none.
func (s *fakeSource) committedOffset(topic string) int64 {
	return s.committedOffsetFor(topic, 0)
}

func (s *fakeSource) committedOffsetFor(topic string, partition int32) int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var off int64 = -1
	for _, batch := range s.commits {
		for _, tp := range batch {
			if tp.Topic != nil && *tp.Topic == topic && tp.Partition == partition && int64(tp.Offset) > off {
				off = int64(tp.Offset)
			}
		}
	}
	return off
}

func txMessage(topic string, offset int64, tx views.Transaction) *kafka.Message {
	return txMessageOn(topic, 0, offset, tx)
}

func txMessageOn(topic string, partition int32, offset int64, tx views.Transaction) *kafka.Message {
	body, _ := json.Marshal(tx)
	msg := rawMessage(topic, offset, []byte(tx.TransactionID), body)
	msg.TopicPartition.Partition = partition
	return msg
}

func rawMessage(topic string, offset int64, key, value []byte) *kafka.Message {
	t := topic
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &t, Partition: 0, Offset: kafka.Offset(offset)},
		Key:            key,
		Value:          value,
	}
}

var errDeliveryFailed = errors.New("broker unavailable")
