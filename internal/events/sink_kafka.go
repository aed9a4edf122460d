package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaSink publishes ask events to a Kafka topic.
type KafkaSink struct {
	client *kgo.Client
	topic  string
}

// NewKafkaSink connects to the brokers and ensures the topic exists. Topic
// creation failing because the topic is already there is fine; any other
// failure surfaces so misconfiguration is caught at startup.
func NewKafkaSink(ctx context.Context, brokers []string, topic string) (*KafkaSink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchMaxBytes(1<<20),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka sink: create client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka sink: ping brokers: %w", err)
	}

	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(pingCtx, 1, 1, nil, topic)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("kafka sink: ensure topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		client.Close()
		return nil, fmt.Errorf("kafka sink: create topic %s: %w", topic, resp.Err)
	}

	return &KafkaSink{client: client, topic: topic}, nil
}

// Publish produces the event synchronously, keyed by correlation id so
// replays of one question stay in partition order.
func (s *KafkaSink) Publish(ctx context.Context, event AskEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka sink: marshal event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.CorrelationID),
		Value: payload,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka sink: produce: %w", err)
	}
	return nil
}

// Close flushes and releases the client.
func (s *KafkaSink) Close() error {
	s.client.Close()
	return nil
}
