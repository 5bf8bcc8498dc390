package client

import (
	"context"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"otp-auth-service/internal/config"
)

type recordingWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return w.err
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaProducer_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaProducer(config.KafkaConfig{AuditTopic: "t"}, zap.NewNop())
	assert.Error(t, err)
}

func TestKafkaProducer_ProduceMessage(t *testing.T) {
	w := &recordingWriter{}
	p := newKafkaProducerWithWriter(w, zap.NewNop())

	err := p.ProduceMessage(context.Background(), []byte("k"), []byte(`{"a":1}`), map[string]string{"event_type": "otp.requested"})
	require.NoError(t, err)

	require.Len(t, w.msgs, 1)
	assert.Equal(t, []byte("k"), w.msgs[0].Key)
	require.Len(t, w.msgs[0].Headers, 1)
	assert.Equal(t, "event_type", w.msgs[0].Headers[0].Key)
	assert.Equal(t, []byte("otp.requested"), w.msgs[0].Headers[0].Value)

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaProducer_ProduceMessageError(t *testing.T) {
	p := newKafkaProducerWithWriter(&recordingWriter{err: errors.New("broker down")}, zap.NewNop())
	err := p.ProduceMessage(context.Background(), nil, []byte("v"), nil)
	assert.ErrorContains(t, err, "broker down")
}
