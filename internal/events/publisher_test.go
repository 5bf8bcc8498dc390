package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProducer struct {
	key     []byte
	value   []byte
	headers map[string]string
}

func (f *fakeProducer) ProduceMessage(_ context.Context, key, value []byte, headers map[string]string) error {
	f.key, f.value, f.headers = key, value, headers
	return nil
}

func TestKafkaPublisher_Publish(t *testing.T) {
	fp := &fakeProducer{}
	pub := NewKafkaPublisher(fp)

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	err := pub.Publish(context.Background(), Event{
		Type:       TypeOTPVerifyFailed,
		Subject:    "abc123",
		Reason:     "otp_invalid",
		OccurredAt: at,
	})
	require.NoError(t, err)

	assert.Equal(t, []byte("abc123"), fp.key)
	assert.Equal(t, TypeOTPVerifyFailed, fp.headers["event_type"])

	var decoded Event
	require.NoError(t, json.Unmarshal(fp.value, &decoded))
	assert.Equal(t, "otp_invalid", decoded.Reason)
	assert.True(t, at.Equal(decoded.OccurredAt))
}

func TestNopPublisher(t *testing.T) {
	assert.NoError(t, NopPublisher{}.Publish(context.Background(), Event{Type: TypeOTPRequested}))
}
