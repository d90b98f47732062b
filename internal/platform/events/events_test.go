package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestKafkaPublisher_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &KafkaPublisher{writer: w}

	ev := ResourceEvent{
		ResourceType: "DiagnosticReport",
		Action:       ActionCreated,
		ID:           uuid.New(),
		ResourceID:   "dr-1",
		PatientID:    uuid.NewString(),
		OccurredAt:   time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, p.Publish(context.Background(), ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, ev.ID.String(), string(msg.Key))
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "DiagnosticReport", string(msg.Headers[0].Value))
	assert.Equal(t, "created", string(msg.Headers[1].Value))

	var decoded ResourceEvent
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, ev, decoded)
}

func TestNewKafkaPublisher_FlushesEachMessage(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "clinical.resources")
	w, ok := p.writer.(*kafka.Writer)
	require.True(t, ok)

	assert.Equal(t, 1, w.BatchSize)
	assert.Equal(t, batchTimeout, w.BatchTimeout)
	assert.Less(t, w.BatchTimeout, 100*time.Millisecond)
	assert.Equal(t, "clinical.resources", w.Topic)
	assert.Positive(t, w.MaxAttempts)
}

func TestKafkaPublisher_WriteError(t *testing.T) {
	p := &KafkaPublisher{writer: &fakeWriter{err: errors.New("broker down")}}

	err := p.Publish(context.Background(), ResourceEvent{ID: uuid.New()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker down")
}

func TestKafkaPublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	require.NoError(t, (&KafkaPublisher{writer: w}).Close())
	assert.True(t, w.closed)
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	assert.NoError(t, p.Publish(context.Background(), ResourceEvent{}))
	assert.NoError(t, p.Close())
}
