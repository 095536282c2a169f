// Package kafka publishes audit events to a Kafka topic for downstream
// consumers (registry mirrors, reporting).
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "certflow/pkg/platform/audit"
)

type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects a producer to the given brokers. The caller owns Close.
func New(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

type payload struct {
	Timestamp string `json:"timestamp"`
	ActorID   string `json:"actorId"`
	Role      string `json:"role"`
	Action    string `json:"action"`
	FromState string `json:"fromState,omitempty"`
	ToState   string `json:"toState,omitempty"`
	TargetID  string `json:"targetId"`
	Note      string `json:"note,omitempty"`
}

func (s *Sink) Publish(ctx context.Context, event audit.Event) error {
	body, err := json.Marshal(payload{
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		ActorID:   event.ActorID.String(),
		Role:      event.Role,
		Action:    event.Action,
		FromState: event.FromState,
		ToState:   event.ToState,
		TargetID:  event.TargetID,
		Note:      event.Note,
	})
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.TargetID),
		Value: body,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

func (s *Sink) Close() {
	s.client.Close()
}
