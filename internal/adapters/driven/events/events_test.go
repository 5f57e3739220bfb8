package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaPublisher_RequiresBrokers(t *testing.T) {
	_, err := NewKafkaPublisher(nil, "", nil)
	assert.Error(t, err)

	p, err := NewKafkaPublisher([]string{"localhost:9092"}, "", nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultTopic, p.topic)
}

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{
		writer: w,
		topic:  DefaultTopic,
		topicByEvent: map[domain.EventType]string{
			domain.EventPostFailed: "socialrelay.failures",
		},
	}

	at := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, p.Publish(context.Background(), domain.Event{
		Type:         domain.EventPostPublished,
		UserID:       "u1",
		Platform:     domain.PlatformLinkedIn,
		ConnectionID: "c1",
		Data:         map[string]string{"post_id": "urn:li:share:1"},
		OccurredAt:   at,
	}))
	require.NoError(t, p.Publish(context.Background(), domain.Event{
		Type:   domain.EventPostFailed,
		UserID: "u2",
	}))

	require.Len(t, w.msgs, 2)
	first := w.msgs[0]
	assert.Equal(t, DefaultTopic, first.Topic)
	assert.Equal(t, []byte("u1"), first.Key)
	assert.Equal(t, at, first.Time)
	assert.Equal(t, "post.published", string(first.Headers[0].Value))

	var decoded domain.Event
	require.NoError(t, json.Unmarshal(first.Value, &decoded))
	assert.Equal(t, "urn:li:share:1", decoded.Data["post_id"])

	assert.Equal(t, "socialrelay.failures", w.msgs[1].Topic)
	assert.False(t, w.msgs[1].Time.IsZero())

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}, topic: DefaultTopic}

	err := p.Publish(context.Background(), domain.Event{Type: domain.EventConnectionConnected})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection.connected")
	assert.Contains(t, err.Error(), "broker down")
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(os.Stderr)

	require.NoError(t, LogPublisher{}.Publish(context.Background(), domain.Event{
		Type:     domain.EventConnectionDisconnected,
		UserID:   "u1",
		Platform: domain.PlatformTwitter,
	}))
	assert.Contains(t, buf.String(), "connection.disconnected")
	assert.Contains(t, buf.String(), "u1")
	assert.NoError(t, LogPublisher{}.Close())
}
