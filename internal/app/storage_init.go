package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
	"github.com/vladislavdragonenkov/shop/internal/storage/postgres"
)

// store: то, что нужно сценариям: единицы работы и чтение вне транзакции.
type store interface {
	domain.UnitOfWork
	Repositories() domain.Repositories
}

type runtimeDependencies struct {
	store          store
	outbox         domain.OutboxRepository
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies открывает выбранное хранилище и, для PostgreSQL, накатывает миграции.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.StorageDriver))
	switch driver {
	case "", StorageDriverMemory:
		s := memory.NewStore()
		logger.WithField("storage", StorageDriverMemory).Info("storage initialized")
		return &runtimeDependencies{
			store:  s,
			outbox: s.Outbox(),
			storageChecker: healthcheck.NewSimpleChecker(StorageDriverMemory, func(context.Context) error {
				return nil
			}),
		}, nil

	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("postgres dsn is required for postgres storage driver")
		}
		s, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if cfg.PostgresAutoMigrate {
			if err := s.MigrateUp(ctx, 0); err != nil {
				_ = s.Close()
				return nil, fmt.Errorf("apply migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		logger.WithField("storage", StorageDriverPostgres).Info("storage initialized")
		return &runtimeDependencies{
			store:          s,
			outbox:         s.Outbox(),
			storageChecker: healthcheck.NewSimpleChecker(StorageDriverPostgres, s.Ping),
			closeFn:        s.Close,
		}, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}

func (d *runtimeDependencies) close(logger *log.Entry) {
	if d == nil || d.closeFn == nil {
		return
	}
	if err := d.closeFn(); err != nil {
		logger.WithError(err).Warn("failed to close storage")
		return
	}
	logger.Info("storage closed")
}
