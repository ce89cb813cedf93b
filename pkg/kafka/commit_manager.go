package kafkautils

import (
	"errors"
	"sync"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"go.uber.org/zap"
)

// OffsetCommitter is the subset of *kafka.Consumer the commit manager needs.
type OffsetCommitter interface {
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
}

type tp struct {
	topic     string
	partition int32
}

// CommitManager stages processed offsets per partition and commits them in the background cadence
// chosen by the caller. Acks must arrive in fetch order per partition.
// A held partition stops advancing until it is revoked, so a failed record is replayed on restart.
type CommitManager struct {
	mu         sync.Mutex
	staged     map[tp]int64 // next offset to commit (last processed + 1)
	committed  map[tp]int64
	held       map[tp]struct{}
	committer  OffsetCommitter
	interval   time.Duration
	lastCommit time.Time
	log        *zap.Logger
}

func NewCommitManager(c OffsetCommitter, interval time.Duration, l *zap.Logger) *CommitManager {
	return &CommitManager{
		staged:     make(map[tp]int64),
		committed:  make(map[tp]int64),
		held:       make(map[tp]struct{}),
		committer:  c,
		interval:   interval,
		lastCommit: time.Now(),
		log:        l,
	}
}

// Ack stages msgs as processed and commits if the commit interval has elapsed.
func (m *CommitManager) Ack(msgs ...*kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range msgs {
		key, ok := keyOf(msg)
		if !ok {
			continue
		}
		if _, held := m.held[key]; held {
			continue
		}
		next := int64(msg.TopicPartition.Offset) + 1
		if next > m.staged[key] {
			m.staged[key] = next
		}
	}

	if time.Since(m.lastCommit) >= m.interval {
		_ = m.commitLocked()
	}
}

// Hold freezes the partitions of msgs at their currently staged offsets.
func (m *CommitManager) Hold(msgs ...*kafka.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range msgs {
		key, ok := keyOf(msg)
		if !ok {
			continue
		}
		if _, held := m.held[key]; !held {
			m.log.Warn("partition_commit_held",
				zap.String("topic", key.topic),
				zap.Int32("partition", key.partition),
				zap.Int64("offset", int64(msg.TopicPartition.Offset)))
		}
		m.held[key] = struct{}{}
	}
}

// Revoke commits what is staged for the given partitions and forgets them.
// Called from the consumer rebalance callback.
func (m *CommitManager) Revoke(partitions []kafka.TopicPartition) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var offsets []kafka.TopicPartition
	for _, p := range partitions {
		if p.Topic == nil {
			continue
		}
		key := tp{topic: *p.Topic, partition: p.Partition}
		if next, ok := m.staged[key]; ok && next > m.committed[key] {
			offsets = append(offsets, toTopicPartition(key, next))
		}
		delete(m.staged, key)
		delete(m.committed, key)
		delete(m.held, key)
	}
	if len(offsets) == 0 {
		return
	}
	if _, err := m.committer.CommitOffsets(offsets); err != nil {
		m.log.Error("offset_commit_on_revoke_failed", zap.Error(err))
	}
}

// Commit commits every staged offset that is ahead of the last committed one.
func (m *CommitManager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commitLocked()
}

// Committed returns the last committed next-offset for a partition.
func (m *CommitManager) Committed(topic string, partition int32) (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	off, ok := m.committed[tp{topic: topic, partition: partition}]
	return off, ok
}

func (m *CommitManager) commitLocked() error {
	m.lastCommit = time.Now()

	var offsets []kafka.TopicPartition
	for key, next := range m.staged {
		if next > m.committed[key] {
			offsets = append(offsets, toTopicPartition(key, next))
		}
	}
	if len(offsets) == 0 {
		return nil
	}

	results, err := m.committer.CommitOffsets(offsets)
	if err != nil {
		m.log.Error("offset_commit_failed", zap.Int("partitions", len(offsets)), zap.Error(err))
		return err
	}

	var errs []error
	for _, r := range results {
		if r.Topic == nil {
			continue
		}
		if r.Error != nil {
			errs = append(errs, r.Error)
			m.log.Error("offset_commit_failed",
				zap.String("topic", *r.Topic),
				zap.Int32("partition", r.Partition),
				zap.Error(r.Error))
			continue
		}
		key := tp{topic: *r.Topic, partition: r.Partition}
		m.committed[key] = int64(r.Offset)
		m.log.Debug("offset_committed",
			zap.String("topic", key.topic),
			zap.Int32("partition", key.partition),
			zap.Int64("offset", int64(r.Offset)))
	}
	return errors.Join(errs...)
}

func keyOf(msg *kafka.Message) (tp, bool) {
	if msg == nil || msg.TopicPartition.Topic == nil {
		return tp{}, false
	}
	return tp{topic: *msg.TopicPartition.Topic, partition: msg.TopicPartition.Partition}, true
}

func toTopicPartition(key tp, next int64) kafka.TopicPartition {
	topic := key.topic
	return kafka.TopicPartition{Topic: &topic, Partition: key.partition, Offset: kafka.Offset(next)}
}
