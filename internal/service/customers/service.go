// Package customers регистрирует клиентов и отдаёт их по id.
package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

// Store: хранилище с единицами работы и чтением вне транзакции.
type Store interface {
	domain.UnitOfWork
	Repositories() domain.Repositories
}

// Service реализует сценарии работы с клиентами.
type Service struct {
	store   Store
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// NewService создаёт сервис клиентов. logger и metrics могут быть nil.
func NewService(store Store, logger *log.Entry, m *metrics.OrderMetrics) *Service {
	if logger == nil {
		logger = log.WithField("component", "customers")
	}
	return &Service{
		store:   store,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateCustomer регистрирует клиента. Email уникален без учёта регистра.
func (s *Service) CreateCustomer(ctx context.Context, name, email string) (domain.Customer, error) {
	now := s.now()
	customer := domain.Customer{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(name),
		Email:     strings.TrimSpace(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errs := customer.Validate(); len(errs) > 0 {
		return domain.Customer{}, errors.Join(errs...)
	}

	err := s.store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		_, err := repos.Customers.FindByEmail(ctx, customer.Email)
		switch {
		case err == nil:
			return fmt.Errorf("email %q: %w", customer.Email, domain.ErrCustomerEmailTaken)
		case !errors.Is(err, domain.ErrCustomerNotFound):
			return fmt.Errorf("find customer by email: %w", err)
		}
		return repos.Customers.Create(ctx, customer)
	})
	if err != nil {
		return domain.Customer{}, err
	}

	s.metrics.RecordCustomerCreated()
	s.logger.WithField("customer_id", customer.ID).Info("customer created")
	return customer, nil
}

// GetCustomer возвращает клиента по id.
func (s *Service) GetCustomer(ctx context.Context, id string) (domain.Customer, error) {
	c, err := s.store.Repositories().Customers.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrCustomerNotFound) {
		return domain.Customer{}, fmt.Errorf("get customer: %w", err)
	}
	return c, err
}
