package app

import (
	"time"

	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
)

// Поддерживаемые хранилища.
const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
)

// Config описывает настройки запуска сервиса.
type Config struct {
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	// KafkaBrokers: список брокеров через запятую; пусто означает работу без Kafka.
	KafkaBrokers string
	OrderTopic   string
	DLQTopic     string

	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration
	// OutboxMaxPendingAge: возраст самого старого pending-события, после которого /healthz сообщает degraded.
	OutboxMaxPendingAge time.Duration
	// OutboxRetention: сколько хранить доставленные события; 0 отключает очистку.
	OutboxRetention       time.Duration
	OutboxCleanupInterval time.Duration
	// OutboxBreakerFailures: сколько сообщений подряд может не доставиться до паузы; 0 отключает паузу.
	OutboxBreakerFailures int
	OutboxBreakerCooldown time.Duration
}

// DefaultConfig возвращает настройки для локального запуска на in-memory хранилище.
func DefaultConfig() Config {
	return Config{
		GRPCAddr:              ":50051",
		MetricsAddr:           ":9090",
		StorageDriver:         StorageDriverMemory,
		PostgresAutoMigrate:   true,
		OrderTopic:            kafka.TopicOrderEvents,
		DLQTopic:              kafka.TopicDeadLetterQueue,
		OutboxPollInterval:    time.Second,
		OutboxBatchSize:       100,
		OutboxMaxAttempts:     3,
		OutboxRetryDelay:      50 * time.Millisecond,
		OutboxMaxPendingAge:   5 * time.Minute,
		OutboxRetention:       24 * time.Hour,
		OutboxCleanupInterval: 10 * time.Minute,
		OutboxBreakerFailures: 5,
		OutboxBreakerCooldown: 30 * time.Second,
	}
}
