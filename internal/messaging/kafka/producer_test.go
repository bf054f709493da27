package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/require"
)

func TestProducer_SendJSON(t *testing.T) {
	t.Parallel()

	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		var got map[string]string
		if err := json.Unmarshal(val, &got); err != nil {
			return err
		}
		if got["order_id"] != "order-1" {
			return fmt.Errorf("unexpected payload %s", val)
		}
		return nil
	})

	producer := NewProducerFrom(mock)
	err := producer.SendJSON(context.Background(), TopicOrderEvents, "order-1", map[string]string{"order_id": "order-1"}, nil)
	require.NoError(t, err)
	require.NoError(t, producer.Close())
}

func TestProducer_SendError(t *testing.T) {
	t.Parallel()

	mock := mocks.NewSyncProducer(t, nil)
	mock.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := NewProducerFrom(mock)
	err := producer.Send(context.Background(), TopicOrderEvents, "order-1", []byte(`{}`), nil)
	require.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, producer.Close())
}

func TestProducer_SendCanceledContext(t *testing.T) {
	t.Parallel()

	mock := mocks.NewSyncProducer(t, nil)
	producer := NewProducerFrom(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, producer.Send(ctx, TopicOrderEvents, "k", nil, nil), context.Canceled)
	require.NoError(t, producer.Close())
}

func TestProducer_NilIsSafe(t *testing.T) {
	t.Parallel()

	var producer *Producer
	require.Error(t, producer.Send(context.Background(), TopicOrderEvents, "k", nil, nil))
	require.NoError(t, producer.Close())
}

func TestProducer_SendJSONMarshalError(t *testing.T) {
	t.Parallel()

	producer := NewProducerFrom(mocks.NewSyncProducer(t, nil))
	err := producer.SendJSON(context.Background(), TopicOrderEvents, "k", make(chan int), nil)
	require.ErrorContains(t, err, "marshal")
	require.NoError(t, producer.Close())
}
