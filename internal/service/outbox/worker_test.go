package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func orderCreated(t *testing.T, repo domain.OutboxRepository, orderID string) domain.OutboxMessage {
	t.Helper()

	msg, err := repo.Enqueue(context.Background(), domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   orderID,
		EventType:     domain.EventTypeOrderCreated,
		Payload:       []byte(`{"order_id":"` + orderID + `"}`),
	})
	require.NoError(t, err)
	return msg
}

func newTestWorker(repo domain.OutboxRepository, publisher domain.OutboxPublisher, opts ...Option) *Worker {
	opts = append([]Option{
		WithRegisterer(prometheus.NewRegistry()),
		WithRetryBaseDelay(0),
		WithMaxAttempts(3),
	}, opts...)
	return NewWorker(repo, publisher, opts...)
}

func pendingCount(t *testing.T, repo domain.OutboxRepository) int {
	t.Helper()
	stats, err := repo.Stats(context.Background())
	require.NoError(t, err)
	return stats.PendingCount
}

func TestWorker_ProcessOnce_PublishesAndMarksSent(t *testing.T) {
	t.Parallel()

	repo := memory.NewStore().Outbox()
	orderCreated(t, repo, "order-1")
	orderCreated(t, repo, "order-2")
	publisher := &stubPublisher{}

	sent := newTestWorker(repo, publisher).ProcessOnce(context.Background())

	require.Equal(t, 2, sent)
	require.Equal(t, 2, publisher.calls())
	require.Zero(t, pendingCount(t, repo))
	require.Equal(t, []string{"order-1", "order-2"}, publisher.aggregateIDs())
}

func TestWorker_ProcessOnce_DLQAfterRetries(t *testing.T) {
	t.Parallel()

	repo := memory.NewStore().Outbox()
	msg := orderCreated(t, repo, "order-1")
	publisher := &stubPublisher{err: errors.New("broker down")}
	dlq := &stubPublisher{}

	sent := newTestWorker(repo, publisher, WithDLQPublisher(dlq)).ProcessOnce(context.Background())

	require.Zero(t, sent)
	require.Equal(t, 3, publisher.calls())
	require.Equal(t, 1, dlq.calls())
	require.Zero(t, pendingCount(t, repo))

	var envelope dlqEnvelope
	require.NoError(t, json.Unmarshal(dlq.last().Payload, &envelope))
	require.Equal(t, msg.ID, envelope.OutboxID)
	require.Contains(t, envelope.PublishError, "broker down")
	require.JSONEq(t, `{"order_id":"order-1"}`, string(envelope.Payload))
}

func TestWorker_ProcessOnce_SucceedsAfterRetry(t *testing.T) {
	t.Parallel()

	repo := memory.NewStore().Outbox()
	orderCreated(t, repo, "order-1")
	publisher := &stubPublisher{sequence: []error{errors.New("attempt 1"), errors.New("attempt 2"), nil}}

	sent := newTestWorker(repo, publisher).ProcessOnce(context.Background())

	require.Equal(t, 1, sent)
	require.Equal(t, 3, publisher.calls())
}

func TestWorker_ProcessOnce_CanceledContext(t *testing.T) {
	t.Parallel()

	repo := memory.NewStore().Outbox()
	orderCreated(t, repo, "order-1")
	publisher := &stubPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.Zero(t, newTestWorker(repo, publisher).ProcessOnce(ctx))
	require.Zero(t, publisher.calls())
	require.Equal(t, 1, pendingCount(t, repo))
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	repo := memory.NewStore().Outbox()
	orderCreated(t, repo, "order-1")
	publisher := &stubPublisher{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		newTestWorker(repo, publisher, WithPollInterval(5*time.Millisecond)).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return publisher.calls() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

func TestWorker_RunWithoutPublisherReturnsImmediately(t *testing.T) {
	t.Parallel()

	w := newTestWorker(memory.NewStore().Outbox(), nil)
	w.Run(context.Background())
}

func TestWorker_Backoff(t *testing.T) {
	t.Parallel()

	w := newTestWorker(nil, nil, WithRetryBaseDelay(100*time.Millisecond))
	require.Equal(t, 100*time.Millisecond, w.backoff(1))
	require.Equal(t, 200*time.Millisecond, w.backoff(2))
	require.Equal(t, 400*time.Millisecond, w.backoff(3))
	require.Equal(t, maxRetryDelay, w.backoff(50))

	require.Zero(t, newTestWorker(nil, nil).backoff(3))
}

func TestNewWorker_Defaults(t *testing.T) {
	t.Parallel()

	w := NewWorker(nil, nil,
		WithRegisterer(prometheus.NewRegistry()),
		WithPollInterval(-1), WithBatchSize(0), WithMaxAttempts(-5), WithRetryBaseDelay(-time.Second),
	)
	require.Equal(t, defaultPollInterval, w.pollInterval)
	require.Equal(t, defaultBatchSize, w.batchSize)
	require.Equal(t, defaultMaxAttempts, w.maxAttempts)
	require.Zero(t, w.retryBaseDelay)
}

type stubPublisher struct {
	mu        sync.Mutex
	err       error
	sequence  []error
	published []domain.OutboxMessage
	count     int
}

func (s *stubPublisher) Publish(_ context.Context, msg domain.OutboxMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	err := s.err
	if len(s.sequence) > 0 {
		err, s.sequence = s.sequence[0], s.sequence[1:]
	}
	if err == nil {
		s.published = append(s.published, msg)
	}
	return err
}

func (s *stubPublisher) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *stubPublisher) last() domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.published[len(s.published)-1]
}

func (s *stubPublisher) aggregateIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.published))
	for _, msg := range s.published {
		ids = append(ids, msg.AggregateID)
	}
	return ids
}
