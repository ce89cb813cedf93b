package services

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg"
	kafkautils "github.com/nimeshabuddhika/fraud-scoring-relay/pkg/kafka"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/utils"
	"github.com/nimeshabuddhika/fraud-scoring-relay/pkg/views"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/fraud-relay/configs"
	"github.com/nimeshabuddhika/fraud-scoring-relay/services/fraud-relay/internal/observability"
	"go.uber.org/zap"
)

// TransactionSource is the subset of *kafka.Consumer the relay uses.
type TransactionSource interface {
	ReadMessage(timeout time.Duration) (*kafka.Message, error)
	CommitOffsets(offsets []kafka.TopicPartition) ([]kafka.TopicPartition, error)
	SubscribeTopics(topics []string, rebalanceCb kafka.RebalanceCb) error
	Close() error
}

// KafkaTransactionRelayConfig holds configuration and dependencies for the relay loop.
type KafkaTransactionRelayConfig struct {
	Logger      *zap.Logger
	Config      *configs.Config
	Source      TransactionSource
	Scorer      FraudScorer
	Publisher   AlertPublisher
	DeadLetters DeadLetterPublisher     // optional, skipped records are only logged when nil
	Limiter     *pkg.DistributedLimiter // optional scoring throttle
}

// KafkaTransactionRelay consumes transactions, scores them in batches and publishes alerts.
type KafkaTransactionRelay struct {
	logger      *zap.Logger
	cfg         *configs.Config
	source      TransactionSource
	scorer      FraudScorer
	publisher   AlertPublisher
	deadLetters DeadLetterPublisher
	limiter     *pkg.DistributedLimiter
	commits     *kafkautils.CommitManager
	validate    *validator.Validate

	scoringSem   chan struct{} // bounds concurrent scoring calls
	state        atomic.Int32
	readFailures int // consecutive consumer errors, fetch loop only
}

// relayBatch is one fetched batch travelling from the fetch loop through scoring to the emitter.
type relayBatch struct {
	seq      uint64
	traceID  string
	msgs     []*kafka.Message // every fetched message, decodable or not
	txs      []views.Transaction
	rejected []RejectedRecord
	results  []views.ScoringResult
}

// NewKafkaTransactionRelay wires the relay. The source must be an unsubscribed consumer with auto-commit disabled.
func NewKafkaTransactionRelay(cfg KafkaTransactionRelayConfig) *KafkaTransactionRelay {
	workers := cfg.Config.MaxConcurrentScoring
	if workers < 1 {
		workers = 1
	}
	r := &KafkaTransactionRelay{
		logger:      cfg.Logger,
		cfg:         cfg.Config,
		source:      cfg.Source,
		scorer:      cfg.Scorer,
		publisher:   cfg.Publisher,
		deadLetters: cfg.DeadLetters,
		limiter:     cfg.Limiter,
		commits:     kafkautils.NewCommitManager(cfg.Source, cfg.Config.CommitInterval, cfg.Logger),
		validate:    validator.New(),
		scoringSem:  make(chan struct{}, workers),
	}
	r.state.Store(int32(StateIdle))
	return r
}

// State returns the current lifecycle state.
func (r *KafkaTransactionRelay) State() RelayState {
	return RelayState(r.state.Load())
}

// Run subscribes to the input topic and relays until ctx is cancelled, then drains.
// It returns after staged offsets are committed; the caller closes the source afterwards.
func (r *KafkaTransactionRelay) Run(ctx context.Context) error {
	if err := r.source.SubscribeTopics([]string{r.cfg.KafkaInputTopic}, r.onRebalance); err != nil {
		r.setState(StateStopped)
		return pkg.NewConnectivityError("failed to subscribe to input topic", err)
	}
	r.logger.Info("relay_started",
		zap.String("input_topic", r.cfg.KafkaInputTopic),
		zap.String("output_topic", r.cfg.KafkaOutputTopic),
		zap.String("group", r.cfg.KafkaConsumerGroup),
		zap.Int("batch_size", r.cfg.BatchSize),
		zap.Float64("fraud_threshold", r.cfg.FraudThreshold))

	// in-flight work outlives ctx until the drain timeout
	inflightCtx, cancelInflight := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelInflight()

	// the grace period counts from cancellation, even while the fetch loop waits for a scoring slot
	stopGrace := context.AfterFunc(ctx, func() {
		timer := time.NewTimer(r.cfg.DrainTimeout)
		defer timer.Stop()
		select {
		case <-timer.C:
			r.logger.Warn("drain_timeout_cancelling_inflight", zap.Duration("drain_timeout", r.cfg.DrainTimeout))
			cancelInflight()
		case <-inflightCtx.Done():
		}
	})
	defer stopGrace()

	completed := make(chan *relayBatch, cap(r.scoringSem))
	emitterDone := make(chan struct{})
	go func() {
		defer close(emitterDone)
		r.emit(inflightCtx, completed)
	}()

	var wg sync.WaitGroup
	var seq uint64
	for ctx.Err() == nil {
		msgs := r.fetchBatch(ctx)
		if len(msgs) == 0 {
			r.setState(StateIdle)
			continue
		}
		r.setState(StateScoring)
		if !r.acquireSlot(ctx) {
			// never dispatched, never acked: redelivered after restart
			r.logger.Info("batch_abandoned_on_shutdown", zap.Int("messages", len(msgs)))
			break
		}
		b := r.decodeBatch(seq, msgs)
		seq++

		wg.Add(1)
		observability.InflightBatches.Inc()
		go func(b *relayBatch) {
			defer wg.Done()
			defer func() {
				<-r.scoringSem
				observability.InflightBatches.Dec()
			}()
			r.scoreBatch(inflightCtx, b)
			completed <- b
		}(b)
	}

	return r.drain(&wg, completed, emitterDone)
}

// acquireSlot blocks until a scoring slot is free or ctx is done.
func (r *KafkaTransactionRelay) acquireSlot(ctx context.Context) bool {
	select {
	case r.scoringSem <- struct{}{}:
		return true
	case <-ctx.Done():
		return false
	}
}

// fetchBatch reads up to BatchSize messages within one PollTimeout window.
func (r *KafkaTransactionRelay) fetchBatch(ctx context.Context) []*kafka.Message {
	r.setState(StateFetching)
	deadline := time.Now().Add(r.cfg.PollTimeout)
	msgs := make([]*kafka.Message, 0, r.cfg.BatchSize)

	for len(msgs) < r.cfg.BatchSize && ctx.Err() == nil {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			break
		}
		msg, err := r.source.ReadMessage(remaining)
		if err != nil {
			if kafkautils.IsTimeout(err) {
				break
			}
			r.readFailures++
			observability.ConnectivityErrors.WithLabelValues("kafka_consumer").Inc()
			wait := utils.CalculateExponentialBackoffWithJitter(r.readFailures, r.cfg.RetryBaseBackoff, r.cfg.MaxRetryBackoff)
			r.logger.Warn("kafka_read_failed",
				zap.Int("consecutive_failures", r.readFailures),
				zap.Duration("backoff", wait),
				zap.Error(pkg.NewConnectivityError("failed to read from input topic", err)))
			sleepCtx(ctx, wait)
			break
		}
		r.readFailures = 0
		observability.MessagesReceived.WithLabelValues(kafkautils.TopicName(msg)).Inc()
		msgs = append(msgs, msg)
	}
	return msgs
}

func (r *KafkaTransactionRelay) decodeBatch(seq uint64, msgs []*kafka.Message) *relayBatch {
	b := &relayBatch{
		seq:     seq,
		traceID: uuid.New().String(),
		msgs:    msgs,
		txs:     make([]views.Transaction, 0, len(msgs)),
	}
	for _, msg := range msgs {
		tx, err := r.decode(msg)
		if err != nil {
			b.rejected = append(b.rejected, RejectedRecord{Msg: msg, Err: err})
			observability.SerializationErrors.Inc()
			r.logger.Warn("transaction_skipped",
				zap.String(pkg.Topic, kafkautils.TopicName(msg)),
				zap.Int32(pkg.Partition, msg.TopicPartition.Partition),
				zap.Int64(pkg.Offset, int64(msg.TopicPartition.Offset)),
				zap.Error(err))
			continue
		}
		b.txs = append(b.txs, tx)
	}
	return b
}

// decode parses and validates one record. A missing transaction_id falls back to the message key.
func (r *KafkaTransactionRelay) decode(msg *kafka.Message) (views.Transaction, error) {
	var tx views.Transaction
	if err := json.Unmarshal(msg.Value, &tx); err != nil {
		return tx, pkg.NewSerializationError("failed to decode transaction", err)
	}
	if tx.TransactionID == "" && len(msg.Key) > 0 {
		tx.TransactionID = string(msg.Key)
	}
	if err := r.validate.Struct(&tx); err != nil {
		return tx, pkg.NewSerializationError("invalid transaction", err)
	}
	return tx, nil
}

// scoreBatch fills b.results. It never fails: an unscorable batch gets sentinel results.
func (r *KafkaTransactionRelay) scoreBatch(ctx context.Context, b *relayBatch) {
	if len(b.txs) == 0 {
		return
	}
	start := time.Now()
	probs, err := r.scoreWithRetry(ctx, b)
	observability.ScoringLatency.Observe(time.Since(start).Seconds())

	b.results = make([]views.ScoringResult, len(b.txs))
	if err != nil {
		r.logger.Error("batch_scoring_failed",
			zap.String(pkg.TraceId, b.traceID),
			zap.Int("batch_size", len(b.txs)),
			zap.Error(err))
		for i, tx := range b.txs {
			b.results[i] = views.NewSentinelResult(tx.TransactionID, err.Error())
		}
		observability.RecordsScored.WithLabelValues(observability.OutcomeSentinel).Add(float64(len(b.txs)))
		return
	}

	for i, tx := range b.txs {
		res := views.NewScoringResult(tx.TransactionID, probs[i], r.cfg.FraudThreshold)
		b.results[i] = res
		if res.FraudDetected {
			observability.RecordsScored.WithLabelValues(observability.OutcomeFraud).Inc()
		} else {
			observability.RecordsScored.WithLabelValues(observability.OutcomeClean).Inc()
		}
	}
}

// scoreWithRetry retries connectivity failures only; every other failure is final.
func (r *KafkaTransactionRelay) scoreWithRetry(ctx context.Context, b *relayBatch) ([]float64, error) {
	traceCtx := pkg.ContextWithTraceID(ctx, b.traceID)
	var probs []float64

	operation := func() error {
		if r.limiter != nil {
			if err := r.limiter.Wait(ctx, r.cfg.MlRequestMaxThrottleWait); err != nil {
				return backoff.Permanent(pkg.NewScoringError("scoring call throttled", err))
			}
		}
		p, err := r.scorer.Score(traceCtx, b.txs)
		if err != nil {
			if pkg.IsConnectivityError(err) {
				observability.ConnectivityErrors.WithLabelValues("scoring").Inc()
				return err
			}
			return backoff.Permanent(err)
		}
		probs = p
		return nil
	}
	notify := func(err error, wait time.Duration) {
		r.logger.Warn("scoring_retry",
			zap.String(pkg.TraceId, b.traceID),
			zap.Duration("backoff", wait),
			zap.Error(err))
	}

	policy := utils.NewExponentialBackOff(r.cfg.RetryBaseBackoff, r.cfg.MaxRetryBackoff, 0)
	bo := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(r.cfg.ScoringMaxRetries)), ctx)
	if err := backoff.RetryNotify(operation, bo, notify); err != nil {
		return nil, err
	}
	return probs, nil
}

// emit owns the reorder buffer. It publishes completed batches in fetch order and stages their offsets.
func (r *KafkaTransactionRelay) emit(ctx context.Context, completed <-chan *relayBatch) {
	pending := newReorderBuffer[*relayBatch]()
	interval := r.cfg.CommitInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case b, ok := <-completed:
			if !ok {
				if pending.Len() > 0 {
					r.logger.Warn("unreleased_batches_dropped", zap.Int("count", pending.Len()))
				}
				return
			}
			for _, ready := range pending.Push(b.seq, b) {
				r.publishBatch(ctx, ready)
			}
		case <-ticker.C:
			_ = r.commits.Commit()
		}
	}
}

func (r *KafkaTransactionRelay) publishBatch(ctx context.Context, b *relayBatch) {
	alerts := make([]views.Alert, 0, len(b.results))
	for i, res := range b.results {
		if r.cfg.PublishAll || res.FraudDetected {
			alerts = append(alerts, views.NewAlert(b.txs[i], res))
		}
	}

	deadLetters := r.deadLetters != nil && len(b.rejected) > 0
	if ctx.Err() != nil && (len(alerts) > 0 || deadLetters) {
		r.logger.Warn("batch_held_on_shutdown",
			zap.String(pkg.TraceId, b.traceID),
			zap.Int("alerts", len(alerts)),
			zap.Int("rejected", len(b.rejected)))
		r.commits.Hold(b.msgs...)
		return
	}
	if deadLetters {
		r.sendDeadLetters(ctx, b)
	}

	if len(alerts) > 0 {
		r.setState(StatePublishing)
		defer r.leaveState(StatePublishing)

		operation := func() error {
			err := r.publisher.Publish(ctx, alerts)
			if err != nil && pkg.IsSerializationError(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		notify := func(err error, wait time.Duration) {
			observability.ConnectivityErrors.WithLabelValues("kafka_producer").Inc()
			r.logger.Warn("alert_publish_retry",
				zap.String(pkg.TraceId, b.traceID),
				zap.Duration("backoff", wait),
				zap.Error(err))
		}
		policy := utils.NewExponentialBackOff(r.cfg.RetryBaseBackoff, r.cfg.MaxRetryBackoff, r.cfg.PublishMaxElapsed)
		if err := backoff.RetryNotify(operation, backoff.WithContext(policy, ctx), notify); err != nil {
			observability.PublishFailures.WithLabelValues(r.cfg.KafkaOutputTopic).Inc()
			r.logger.Error("alert_publish_failed",
				zap.String(pkg.TraceId, b.traceID),
				zap.Int("alerts", len(alerts)),
				zap.Error(err))
			r.commits.Hold(b.msgs...)
			return
		}
		observability.AlertsPublished.WithLabelValues(r.cfg.KafkaOutputTopic).Add(float64(len(alerts)))
		for _, a := range alerts {
			r.logger.Info("fraud_alert_published",
				zap.String(pkg.TransactionId, a.TransactionID),
				zap.Float64("fraud_probability", a.FraudProbability),
				zap.Bool("fraud_detected", a.FraudDetected))
		}
	}

	r.commits.Ack(b.msgs...)
}

// sendDeadLetters copies the batch's skipped records to the dead-letter topic. Failures are logged only.
func (r *KafkaTransactionRelay) sendDeadLetters(ctx context.Context, b *relayBatch) {
	n := float64(len(b.rejected))
	if err := r.deadLetters.Send(ctx, b.rejected); err != nil {
		observability.DeadLetters.WithLabelValues(observability.DeadLetterFailed).Add(n)
		r.logger.Error("dlq_publish_failed",
			zap.String(pkg.TraceId, b.traceID),
			zap.Int("records", len(b.rejected)),
			zap.Error(err))
		return
	}
	observability.DeadLetters.WithLabelValues(observability.DeadLetterSent).Add(n)
}

// drain waits for in-flight batches and the emitter, then commits.
// In-flight work is bounded by the grace timer started in Run.
func (r *KafkaTransactionRelay) drain(wg *sync.WaitGroup, completed chan *relayBatch, emitterDone <-chan struct{}) error {
	r.setState(StateDraining)
	r.logger.Info("relay_draining", zap.Duration("drain_timeout", r.cfg.DrainTimeout))

	wg.Wait()
	close(completed)
	<-emitterDone

	err := r.commits.Commit()
	r.setState(StateStopped)
	if err != nil {
		r.logger.Error("final_offset_commit_failed", zap.Error(err))
		return pkg.NewConnectivityError("failed to commit offsets on drain", err)
	}
	r.logger.Info("relay_stopped")
	return nil
}

// onRebalance commits and forgets staged offsets of revoked partitions.
func (r *KafkaTransactionRelay) onRebalance(_ *kafka.Consumer, ev kafka.Event) error {
	switch e := ev.(type) {
	case kafka.AssignedPartitions:
		r.logger.Info("partitions_assigned", zap.Int("count", len(e.Partitions)))
	case kafka.RevokedPartitions:
		r.logger.Info("partitions_revoked", zap.Int("count", len(e.Partitions)))
		r.commits.Revoke(e.Partitions)
	}
	return nil
}

// setState moves to next unless the relay is already draining or stopped.
func (r *KafkaTransactionRelay) setState(next RelayState) {
	for {
		cur := RelayState(r.state.Load())
		if cur == StateStopped || (cur == StateDraining && next != StateStopped) {
			return
		}
		if r.state.CompareAndSwap(int32(cur), int32(next)) {
			observability.RelayState.Set(float64(next))
			return
		}
	}
}

func (r *KafkaTransactionRelay) leaveState(from RelayState) {
	if r.state.CompareAndSwap(int32(from), int32(StateIdle)) {
		observability.RelayState.Set(float64(StateIdle))
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
