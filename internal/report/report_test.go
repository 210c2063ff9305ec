package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/eigerco/blocktransfer/internal/store"
	"github.com/eigerco/blocktransfer/internal/transfer"
	"github.com/eigerco/blocktransfer/pkg/db/pebble"
)

type mockWriter struct {
	mock.Mock
}

func (m *mockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *mockWriter) Close() error {
	return m.Called().Error(0)
}

func sampleOutcome() transfer.Outcome {
	return transfer.Outcome{
		AttemptID:  uuid.New(),
		Sender:     "sender",
		Recipient:  "recipient",
		Amount:     42,
		Status:     transfer.StatusFailed,
		Stage:      transfer.StageBalanceCheck,
		Reason:     "insufficient balance",
		FinishedAt: time.Unix(1_700_000_000, 0).UTC(),
	}
}

func TestKafkaSinkMessage(t *testing.T) {
	outcome := sampleOutcome()
	writer := &mockWriter{}
	writer.On("WriteMessages", mock.Anything, mock.MatchedBy(func(msgs []kafka.Message) bool {
		if len(msgs) != 1 {
			return false
		}
		msg := msgs[0]
		var decoded map[string]any
		if err := json.Unmarshal(msg.Value, &decoded); err != nil {
			return false
		}
		return string(msg.Key) == outcome.AttemptID.String() &&
			decoded["status"] == "failed" &&
			decoded["stage"] == "balance-check" &&
			decoded["amount_lamports"] == float64(42) &&
			len(msg.Headers) == 1 && string(msg.Headers[0].Value) == "failed"
	})).Return(nil).Once()
	writer.On("Close").Return(nil)

	sink := &KafkaSink{writer: writer}
	require.NoError(t, sink.Record(context.Background(), outcome))
	require.NoError(t, sink.Close())
	writer.AssertExpectations(t)
}

func TestKafkaSinkError(t *testing.T) {
	writer := &mockWriter{}
	writer.On("WriteMessages", mock.Anything, mock.Anything).Return(errors.New("broker unavailable"))

	err := (&KafkaSink{writer: writer}).Record(context.Background(), sampleOutcome())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish outcome")
}

func TestNewKafkaSinkDefaults(t *testing.T) {
	sink := NewKafkaSink([]string{"localhost:9092"}, "")
	w, ok := sink.writer.(*kafka.Writer)
	require.True(t, ok)
	assert.Equal(t, DefaultTopic, w.Topic)
	assert.Equal(t, "localhost:9092", w.Addr.String())
}

func TestJournalSink(t *testing.T) {
	kv, err := pebble.NewKVStore()
	require.NoError(t, err)
	journal := store.NewOutcomes(kv)
	defer journal.Close()

	outcome := sampleOutcome()
	require.NoError(t, NewJournalSink(journal).Record(context.Background(), outcome))

	stored, err := journal.List()
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, outcome.AttemptID, stored[0].AttemptID)
	assert.Equal(t, outcome.Reason, stored[0].Reason)
}
