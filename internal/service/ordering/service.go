// Package ordering реализует оформление заказов: проверку клиента, товаров и остатков,
// сохранение заказа и списание остатков в одной единице работы.
package ordering

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/shop/internal/metrics"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// Store: хранилище, поддерживающее атомарные единицы работы и чтение вне транзакции.
type Store interface {
	domain.UnitOfWork
	Repositories() domain.Repositories
}

// ItemRequest: одна запрошенная позиция.
type ItemRequest struct {
	ProductID string
	Quantity  int64
}

// CreateOrderRequest: входные данные оформления заказа.
type CreateOrderRequest struct {
	CustomerID string
	Items      []ItemRequest
}

// Option настраивает Service.
type Option func(*Service)

// WithLogger задаёт logger.
func WithLogger(logger *log.Entry) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics задаёт метрики.
func WithMetrics(m *metrics.OrderMetrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator подменяет генератор идентификаторов заказа и позиций.
func WithIDGenerator(newID func() string) Option {
	return func(s *Service) { s.newID = newID }
}

// Service реализует сценарии работы с заказами.
type Service struct {
	store   Store
	logger  *log.Entry
	metrics *metrics.OrderMetrics
	now     func() time.Time
	newID   func() string
}

// NewService создаёт сервис заказов.
func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store: store,
		now:   func() time.Time { return time.Now().UTC() },
		newID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = log.WithField("component", "ordering")
	}
	return s
}

// CreateOrder оформляет заказ. Все проверки выполняются до первой записи;
// при любой ошибке заказ не сохраняется и остатки не меняются.
func (s *Service) CreateOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	started := time.Now()

	order, err := s.createOrder(ctx, req)
	if err != nil {
		reason := rejectReason(err)
		s.metrics.RecordOrderRejected(reason, time.Since(started))
		s.logger.WithError(err).WithFields(log.Fields{
			"customer_id": req.CustomerID,
			"items":       len(req.Items),
			"reason":      reason,
		}).Info("order rejected")
		return domain.Order{}, err
	}

	var units int64
	for _, item := range order.Items {
		units += item.Quantity
	}
	s.metrics.RecordOrderCreated(len(order.Items), units, time.Since(started))
	s.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"items":       len(order.Items),
		"total":       order.Total().StringFixed(domain.PriceScale),
	}).Info("order created")
	return order, nil
}

func (s *Service) createOrder(ctx context.Context, req CreateOrderRequest) (domain.Order, error) {
	requested, err := normalizeItems(req)
	if err != nil {
		return domain.Order{}, err
	}

	var created domain.Order
	err = s.store.Do(ctx, func(ctx context.Context, repos domain.Repositories) error {
		customer, err := repos.Customers.Get(ctx, req.CustomerID)
		if err != nil {
			return lookupError("load customer", err)
		}

		ids := make([]string, 0, len(requested))
		for _, item := range requested {
			ids = append(ids, item.ProductID)
		}
		products, err := repos.Products.FindAllByID(ctx, ids)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}

		byID := make(map[string]domain.Product, len(products))
		for _, p := range products {
			byID[p.ID] = p
		}
		if len(byID) != len(ids) {
			for _, id := range ids {
				if _, ok := byID[id]; !ok {
					return fmt.Errorf("product %s: %w", id, domain.ErrInvalidProduct)
				}
			}
		}
		for _, item := range requested {
			if stock := byID[item.ProductID].Quantity; item.Quantity > stock {
				return fmt.Errorf("product %s: requested %d, in stock %d: %w: %w",
					item.ProductID, item.Quantity, stock, domain.ErrInvalidProduct, domain.ErrInsufficientStock)
			}
		}

		now := s.now()
		order := domain.Order{
			ID:         s.newID(),
			CustomerID: customer.ID,
			Customer:   customer,
			Items:      make([]domain.OrderItem, 0, len(requested)),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		for _, item := range requested {
			order.Items = append(order.Items, domain.OrderItem{
				ID:        s.newID(),
				ProductID: item.ProductID,
				Price:     byID[item.ProductID].Price,
				Quantity:  item.Quantity,
				CreatedAt: now,
			})
		}
		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return fmt.Errorf("%w: %w", domain.ErrInvalidProduct, errors.Join(errs...))
		}

		if err := repos.Orders.Create(ctx, order); err != nil {
			return fmt.Errorf("save order: %w", err)
		}

		if _, err := repos.Products.DecrementQuantity(ctx, requested); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				return fmt.Errorf("%w: %w", domain.ErrInvalidProduct, err)
			}
			return fmt.Errorf("decrement stock: %w", err)
		}

		payload, err := json.Marshal(kafka.NewOrderCreated(order))
		if err != nil {
			return fmt.Errorf("marshal order.created: %w", err)
		}
		if _, err := repos.Outbox.Enqueue(ctx, domain.OutboxMessage{
			AggregateType: domain.AggregateTypeOrder,
			AggregateID:   order.ID,
			EventType:     domain.EventTypeOrderCreated,
			Payload:       payload,
		}); err != nil {
			return fmt.Errorf("enqueue order.created: %w", err)
		}

		created = order
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return created, nil
}

// normalizeItems проверяет позиции и схлопывает повторы одного товара.
func normalizeItems(req CreateOrderRequest) ([]domain.StockAdjustment, error) {
	if req.CustomerID == "" {
		return nil, domain.ErrCustomerRequired
	}
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrInvalidProduct, domain.ErrItemsRequired)
	}

	adjustments := make([]domain.StockAdjustment, 0, len(req.Items))
	for i, item := range req.Items {
		if item.ProductID == "" {
			return nil, fmt.Errorf("item %d: %w: %w", i, domain.ErrInvalidProduct, domain.ErrItemProductRequired)
		}
		if item.Quantity < 1 {
			return nil, fmt.Errorf("item %d (%s): %w: %w", i, item.ProductID, domain.ErrInvalidProduct, domain.ErrItemQtyInvalid)
		}
		adjustments = append(adjustments, domain.StockAdjustment{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return domain.MergeAdjustments(adjustments)
}

// GetOrder возвращает заказ с клиентом и позициями.
func (s *Service) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	order, err := s.store.Repositories().Orders.Get(ctx, id)
	if err != nil {
		return domain.Order{}, lookupError("get order", err)
	}
	return order, nil
}

// ListOrders возвращает заказы клиента, новые первыми. limit<=0 означает 100.
func (s *Service) ListOrders(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if customerID == "" {
		return nil, domain.ErrCustomerRequired
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)

	repos := s.store.Repositories()
	if _, err := repos.Customers.Get(ctx, customerID); err != nil {
		return nil, lookupError("load customer", err)
	}
	orders, err := repos.Orders.ListByCustomer(ctx, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	return orders, nil
}

func lookupError(op string, err error) error {
	if domain.IsNotFound(err) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrCustomerNotFound):
		return metrics.RejectCustomerNotFound
	case domain.IsValidation(err):
		return metrics.RejectInvalidRequest
	case domain.IsInvalidProduct(err):
		return metrics.RejectInvalidProduct
	case errors.Is(err, domain.ErrProductVanished), errors.Is(err, domain.ErrOrderAlreadyExists):
		return metrics.RejectConflict
	default:
		return metrics.RejectInternal
	}
}
