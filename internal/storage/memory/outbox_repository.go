package memory

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
	outboxStatusFailed  = "failed"
)

// outboxRecord хранит сообщение и служебные поля для in-memory реализации.
type outboxRecord struct {
	msg        domain.OutboxMessage
	seq        int64
	status     string
	attemptCnt int
	createdAt  time.Time
	updatedAt  time.Time
}

// outboxRepository: простое in-memory хранилище для transactional outbox.
type outboxRepository struct {
	scope
}

// Enqueue сохраняет событие со статусом `pending` и возвращает его с заполненным идентификатором.
func (r *outboxRepository) Enqueue(ctx context.Context, msg domain.OutboxMessage) (domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxMessage{}, err
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	r.update(func(onRollback func(func())) {
		s := r.store
		now := s.now()
		s.outboxSeq++
		s.outbox[msg.ID] = &outboxRecord{
			msg:       msg,
			seq:       s.outboxSeq,
			status:    outboxStatusPending,
			createdAt: now,
			updatedAt: now,
		}
		onRollback(func() {
			delete(s.outbox, msg.ID)
		})
	})
	return msg, nil
}

// PullPending возвращает до limit сообщений со статусом `pending` в порядке постановки.
func (r *outboxRepository) PullPending(ctx context.Context, limit int) ([]domain.OutboxMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	var pending []*outboxRecord
	r.view(func() {
		for _, rec := range r.store.outbox {
			if rec.status == outboxStatusPending {
				pending = append(pending, rec)
			}
		}
		sort.Slice(pending, func(i, j int) bool { return pending[i].seq < pending[j].seq })
		if len(pending) > limit {
			pending = pending[:limit]
		}
	})

	result := make([]domain.OutboxMessage, 0, len(pending))
	for _, rec := range pending {
		result = append(result, rec.msg)
	}
	return result, nil
}

// Stats возвращает размер backlog и время самого старого pending-сообщения.
func (r *outboxRepository) Stats(ctx context.Context) (domain.OutboxStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.OutboxStats{}, err
	}

	var stats domain.OutboxStats
	r.view(func() {
		for _, rec := range r.store.outbox {
			if rec.status != outboxStatusPending {
				continue
			}
			stats.PendingCount++
			if stats.OldestPendingAt.IsZero() || rec.createdAt.Before(stats.OldestPendingAt) {
				stats.OldestPendingAt = rec.createdAt
			}
		}
	})
	return stats, nil
}

// MarkSent обновляет статус события после успешной публикации.
func (r *outboxRepository) MarkSent(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusSent)
}

// MarkFailed фиксирует ошибку публикации.
func (r *outboxRepository) MarkFailed(ctx context.Context, id string) error {
	return r.markStatus(ctx, id, outboxStatusFailed)
}

// DeleteSent удаляет самые старые доставленные сообщения.
func (r *outboxRepository) DeleteSent(ctx context.Context, before time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if limit <= 0 {
		limit = 100
	}

	deleted := 0
	r.update(func(onRollback func(func())) {
		var expired []*outboxRecord
		for _, rec := range r.store.outbox {
			if rec.status == outboxStatusSent && !rec.updatedAt.After(before) {
				expired = append(expired, rec)
			}
		}
		sort.Slice(expired, func(i, j int) bool { return expired[i].seq < expired[j].seq })
		if len(expired) > limit {
			expired = expired[:limit]
		}
		for _, rec := range expired {
			delete(r.store.outbox, rec.msg.ID)
			onRollback(func() { r.store.outbox[rec.msg.ID] = rec })
		}
		deleted = len(expired)
	})
	return deleted, nil
}

func (r *outboxRepository) markStatus(ctx context.Context, id, status string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	r.update(func(onRollback func(func())) {
		record, ok := r.store.outbox[id]
		if !ok {
			err = domain.ErrOutboxPublish
			return
		}
		prev := *record
		record.status = status
		record.attemptCnt++
		record.updatedAt = r.store.now()
		onRollback(func() {
			*record = prev
		})
	})
	return err
}

var _ domain.OutboxRepository = (*outboxRepository)(nil)
