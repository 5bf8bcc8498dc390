package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"otp-auth-service/internal/client"
)

const (
	TypeOTPRequested    = "otp.requested"
	TypeOTPRateLimited  = "otp.rate_limited"
	TypeOTPVerified     = "otp.verified"
	TypeOTPVerifyFailed = "otp.verify_failed"
	TypeOTPSwept        = "otp.swept"
)

// Event is one audit record. Subject is a keyed hash of the email, never
// the address itself.
type Event struct {
	Type       string    `json:"type"`
	Subject    string    `json:"subject,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Count      int       `json:"count,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher emits audit events. Implementations are best effort.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }

// producer is satisfied by *client.KafkaProducer.
type producer interface {
	ProduceMessage(ctx context.Context, key, value []byte, headers map[string]string) error
}

var _ producer = (*client.KafkaProducer)(nil)

// KafkaPublisher writes events as JSON, keyed by subject so one email's
// events stay ordered within a partition.
type KafkaPublisher struct {
	producer producer
}

func NewKafkaPublisher(p producer) *KafkaPublisher {
	return &KafkaPublisher{producer: p}
}

func (p *KafkaPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}
	return p.producer.ProduceMessage(ctx, []byte(ev.Subject), payload, map[string]string{
		"event_type": ev.Type,
	})
}
