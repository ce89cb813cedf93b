//go:build integration

package testutils

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/testcontainers/testcontainers-go"
	tckafkamod "github.com/testcontainers/testcontainers-go/modules/kafka"
	"github.com/testcontainers/testcontainers-go/wait"
)

const kafkaImage = "confluentinc/confluent-local:7.5.0"

// StartKafkaForTests starts a single-node KRaft broker and returns its bootstrap address.
func StartKafkaForTests() (bootstrap string, terminate func(), err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	kc, e := tckafkamod.Run(ctx, kafkaImage, tckafkamod.WithClusterID("fraud-relay-test"))
	if e != nil {
		err = fmt.Errorf("failed to start kafka test container: %w", e)
		return
	}
	brokers, e := kc.Brokers(ctx)
	if e != nil || len(brokers) == 0 {
		_ = kc.Terminate(context.Background())
		err = fmt.Errorf("failed to get kafka brokers: %w", e)
		return
	}
	bootstrap = strings.Join(brokers, ",")

	terminate = func() {
		ctx, c := context.WithTimeout(context.Background(), 30*time.Second)
		defer c()
		_ = kc.Terminate(ctx)
	}
	return
}

// StartRedisForTests spins up a Redis container and returns host:port and a terminate function.
func StartRedisForTests() (addr string, terminate func(), err error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	req := testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(60 * time.Second),
	}
	rc, e := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if e != nil {
		err = fmt.Errorf("failed to start redis test container: %w", e)
		return
	}

	host, e := rc.Host(ctx)
	if e != nil {
		_ = rc.Terminate(context.Background())
		err = fmt.Errorf("failed to get redis host: %w", e)
		return
	}
	mapped, e := rc.MappedPort(ctx, "6379/tcp")
	if e != nil {
		_ = rc.Terminate(context.Background())
		err = fmt.Errorf("failed to get redis mapped port: %w", e)
		return
	}
	addr = fmt.Sprintf("%s:%s", host, mapped.Port())

	terminate = func() {
		ctx, c := context.WithTimeout(context.Background(), 30*time.Second)
		defer c()
		_ = rc.Terminate(ctx)
	}
	return
}

// ConsumeN reads n messages from topic with a fresh consumer group, failing the test on timeout.
func ConsumeN(t *testing.T, bootstrap, topic string, n int, timeout time.Duration) []*kafka.Message {
	t.Helper()
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": bootstrap,
		"group.id":          fmt.Sprintf("test-reader-%d", time.Now().UnixNano()),
		"auto.offset.reset": "earliest",
	})
	if err != nil {
		t.Fatalf("failed to create test consumer: %v", err)
	}
	defer c.Close()
	if err := c.SubscribeTopics([]string{topic}, nil); err != nil {
		t.Fatalf("failed to subscribe test consumer: %v", err)
	}

	var out []*kafka.Message
	deadline := time.Now().Add(timeout)
	for len(out) < n && time.Now().Before(deadline) {
		msg, err := c.ReadMessage(500 * time.Millisecond)
		if err != nil {
			continue
		}
		out = append(out, msg)
	}
	if len(out) < n {
		t.Fatalf("expected %d messages on %s, got %d", n, topic, len(out))
	}
	return out
}
