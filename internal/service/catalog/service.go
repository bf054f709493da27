// Package catalog управляет товарами: создание, чтение и список.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Store: хранилище с единицами работы и чтением вне транзакции.
type Store interface {
	domain.UnitOfWork
	Repositories() domain.Repositories
}

// CreateProductRequest: данные нового товара.
type CreateProductRequest struct {
	Name     string
	Price    decimal.Decimal
	Quantity int64
}

// Service реализует сценарии каталога.
type Service struct {
	store   Store
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	now     func() time.Time
}

// NewService создаёт сервис каталога. logger и metrics могут быть nil.
func NewService(store Store, logger *log.Entry, m *metrics.OrderMetrics) *Service {
	if logger == nil {
		logger = log.WithField("component", "catalog")
	}
	return &Service{
		store:   store,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateProduct создаёт товар с уникальным названием. Цена округляется до двух знаков.
func (s *Service) CreateProduct(ctx context.Context, req CreateProductRequest) (domain.Product, error) {
	now := s.now()
	product := domain.Product{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(req.Name),
		Price:     domain.NormalizePrice(req.Price),
		Quantity:  req.Quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errs := product.Validate(); len(errs) > 0 {
		return domain.Product{}, errors.Join(errs...)
	}

	err := s.store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		_, err := repos.Products.FindByName(ctx, product.Name)
		switch {
		case err == nil:
			return fmt.Errorf("product %q: %w", product.Name, domain.ErrProductNameTaken)
		case !errors.Is(err, domain.ErrProductNotFound):
			return fmt.Errorf("find product by name: %w", err)
		}
		return repos.Products.Create(ctx, product)
	})
	if err != nil {
		return domain.Product{}, err
	}

	s.metrics.RecordProductCreated()
	s.logger.WithFields(log.Fields{
		"product_id": product.ID,
		"name":       product.Name,
		"quantity":   product.Quantity,
	}).Info("product created")
	return product, nil
}

// GetProduct возвращает товар по id.
func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	p, err := s.store.Repositories().Products.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrProductNotFound) {
		return domain.Product{}, fmt.Errorf("get product: %w", err)
	}
	return p, err
}

// ListProducts возвращает товары по названию; limit<=0 означает 100.
func (s *Service) ListProducts(ctx context.Context, limit int) ([]domain.Product, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	products, err := s.store.Repositories().Products.List(ctx, min(limit, maxListLimit))
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}
