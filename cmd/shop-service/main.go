package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/app"
	"github.com/vladislavdragonenkov/shop/internal/version"
)

const (
	envGRPCAddr            = "SHOP_GRPC_ADDR"
	envMetricsAddr         = "SHOP_METRICS_ADDR"
	envStorageDriver       = "SHOP_STORAGE_DRIVER"
	envPostgresDSN         = "SHOP_POSTGRES_DSN"
	envPostgresAutoMigrate = "SHOP_POSTGRES_AUTO_MIGRATE"
	envKafkaBrokers        = "SHOP_KAFKA_BROKERS"
	envOrderTopic          = "SHOP_ORDER_TOPIC"
	envDLQTopic            = "SHOP_DLQ_TOPIC"
	envOutboxPollInterval  = "SHOP_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize     = "SHOP_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts   = "SHOP_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay    = "SHOP_OUTBOX_RETRY_DELAY"
	envOutboxMaxPendingAge = "SHOP_OUTBOX_MAX_PENDING_AGE"
	envOutboxRetention     = "SHOP_OUTBOX_RETENTION"
	envOutboxCleanup       = "SHOP_OUTBOX_CLEANUP_INTERVAL"
	envBreakerFailures     = "SHOP_OUTBOX_BREAKER_FAILURES"
	envBreakerCooldown     = "SHOP_OUTBOX_BREAKER_COOLDOWN"
	envLogLevel            = "SHOP_LOG_LEVEL"
)

type envLookup func(string) (string, bool)

// configWarning: значение из окружения, которое проигнорировано.
type configWarning struct {
	key   string
	value string
	err   error
}

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)

	raw, ok := lookup(envLogLevel)
	if !ok || strings.TrimSpace(raw) == "" {
		return
	}
	level, err := log.ParseLevel(strings.TrimSpace(raw))
	if err != nil {
		log.WithError(err).WithField("env", envLogLevel).Warn("invalid log level, using info")
		return
	}
	log.SetLevel(level)
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не валят запуск: остаётся значение по умолчанию, а ошибка попадает в warnings.
func readConfigFromEnv(lookup envLookup) (app.Config, []configWarning) {
	cfg := app.DefaultConfig()
	var warnings []configWarning

	setString := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	apply := func(key string, parse func(string) error) {
		v, ok := lookup(key)
		if !ok || strings.TrimSpace(v) == "" {
			return
		}
		if err := parse(v); err != nil {
			warnings = append(warnings, configWarning{key: key, value: v, err: err})
		}
	}

	setString(envGRPCAddr, &cfg.GRPCAddr)
	setString(envMetricsAddr, &cfg.MetricsAddr)
	setString(envPostgresDSN, &cfg.PostgresDSN)
	setString(envKafkaBrokers, &cfg.KafkaBrokers)
	setString(envOrderTopic, &cfg.OrderTopic)
	setString(envDLQTopic, &cfg.DLQTopic)
	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}

	positive := func(v int) bool { return v > 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }

	apply(envPostgresAutoMigrate, func(raw string) error {
		v, err := parseBool(raw)
		if err == nil {
			cfg.PostgresAutoMigrate = v
		}
		return err
	})
	apply(envOutboxPollInterval, func(raw string) error {
		v, err := parseDuration(raw, positiveDuration, "must be > 0")
		if err == nil {
			cfg.OutboxPollInterval = v
		}
		return err
	})
	apply(envOutboxBatchSize, func(raw string) error {
		v, err := parseInt(raw, positive, "must be > 0")
		if err == nil {
			cfg.OutboxBatchSize = v
		}
		return err
	})
	apply(envOutboxMaxAttempts, func(raw string) error {
		v, err := parseInt(raw, positive, "must be > 0")
		if err == nil {
			cfg.OutboxMaxAttempts = v
		}
		return err
	})
	apply(envOutboxRetryDelay, func(raw string) error {
		v, err := parseDuration(raw, func(v time.Duration) bool { return v >= 0 }, "must be >= 0")
		if err == nil {
			cfg.OutboxRetryDelay = v
		}
		return err
	})
	apply(envOutboxMaxPendingAge, func(raw string) error {
		v, err := parseDuration(raw, positiveDuration, "must be > 0")
		if err == nil {
			cfg.OutboxMaxPendingAge = v
		}
		return err
	})
	apply(envOutboxRetention, func(raw string) error {
		v, err := parseDuration(raw, func(v time.Duration) bool { return v >= 0 }, "must be >= 0")
		if err == nil {
			cfg.OutboxRetention = v
		}
		return err
	})
	apply(envOutboxCleanup, func(raw string) error {
		v, err := parseDuration(raw, positiveDuration, "must be > 0")
		if err == nil {
			cfg.OutboxCleanupInterval = v
		}
		return err
	})
	apply(envBreakerFailures, func(raw string) error {
		v, err := parseInt(raw, func(v int) bool { return v >= 0 }, "must be >= 0")
		if err == nil {
			cfg.OutboxBreakerFailures = v
		}
		return err
	})
	apply(envBreakerCooldown, func(raw string) error {
		v, err := parseDuration(raw, positiveDuration, "must be > 0")
		if err == nil {
			cfg.OutboxBreakerCooldown = v
		}
		return err
	})

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q: %w", raw, err)
	}
	if !valid(v) {
		return 0, fmt.Errorf("value %d %s", v, rule)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	if !valid(v) {
		return 0, fmt.Errorf("value %s %s", v, rule)
	}
	return v, nil
}

func main() {
	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.WithError(w.err).WithFields(log.Fields{"env": w.key, "value": w.value}).
			Warn("invalid environment value, using default")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(version.Fields()).WithFields(log.Fields{
		"grpc_addr":    cfg.GRPCAddr,
		"metrics_addr": cfg.MetricsAddr,
		"storage":      cfg.StorageDriver,
		"kafka":        cfg.KafkaBrokers != "",
	}).Info("запускаем ShopService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("ShopService остановлен")
}
