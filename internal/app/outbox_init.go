package app

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/service/outbox"
)

const outboxStopTimeout = 5 * time.Second

// startOutboxWorker запускает публикацию outbox в Kafka. Без producer события
// остаются pending до следующего запуска с настроенной Kafka.
func startOutboxWorker(
	ctx context.Context,
	cfg Config,
	repo domain.OutboxRepository,
	producer *kafka.Producer,
	logger *log.Entry,
) (context.CancelFunc, <-chan struct{}) {
	if producer == nil {
		logger.Warn("kafka is not configured, outbox events stay pending")
		return nil, nil
	}

	options := []outbox.Option{
		outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.DLQTopic)),
		outbox.WithLogger(logger.WithField("layer", "outbox")),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if cfg.OutboxBreakerFailures > 0 {
		options = append(options, outbox.WithCircuitBreaker(cfg.OutboxBreakerFailures, cfg.OutboxBreakerCooldown))
	}
	worker := outbox.NewWorker(repo, kafka.NewOutboxPublisher(producer, cfg.OrderTopic), options...)

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(workerCtx)
	}()

	logger.WithFields(log.Fields{
		"topic":         cfg.OrderTopic,
		"dlq_topic":     cfg.DLQTopic,
		"poll_interval": cfg.OutboxPollInterval,
	}).Info("outbox worker started")
	return cancel, done
}

// startOutboxCleanup запускает удаление доставленных событий старше cfg.OutboxRetention.
func startOutboxCleanup(
	ctx context.Context,
	cfg Config,
	repo domain.OutboxRepository,
	logger *log.Entry,
) (context.CancelFunc, <-chan struct{}) {
	if cfg.OutboxRetention <= 0 {
		logger.Info("outbox cleanup is disabled")
		return nil, nil
	}

	worker := outbox.NewCleanupWorker(
		repo,
		outbox.WithCleanupLogger(logger.WithField("layer", "outbox-cleanup")),
		outbox.WithCleanupInterval(cfg.OutboxCleanupInterval),
		outbox.WithRetention(cfg.OutboxRetention),
	)

	workerCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		worker.Run(workerCtx)
	}()
	return cancel, done
}

// shutdownOutboxWorker останавливает воркер и ждёт завершения текущей пачки.
func shutdownOutboxWorker(cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	stopWorker("outbox worker", cancel, done, logger)
}

func stopWorker(name string, cancel context.CancelFunc, done <-chan struct{}, logger *log.Entry) {
	if cancel == nil {
		return
	}
	cancel()
	if done == nil {
		return
	}

	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(outboxStopTimeout):
		logger.Warn(name + " did not stop in time")
	}
}
