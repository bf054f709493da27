package memory

import (
	"context"
	"sort"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// orderRepository: in-memory реализация OrderRepository.
type orderRepository struct {
	scope
}

func cloneOrder(order domain.Order) domain.Order {
	items := make([]domain.OrderItem, len(order.Items))
	copy(items, order.Items)
	order.Items = items
	return order
}

// Create сохраняет новый заказ, если ID ещё не занят.
func (r *orderRepository) Create(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	r.update(func(onRollback func(func())) {
		s := r.store
		if _, exists := s.orders[order.ID]; exists {
			err = domain.ErrOrderAlreadyExists
			return
		}
		// Сохраняем копию, чтобы избежать непредсказуемых мутаций извне.
		stored := cloneOrder(order)
		stored.Customer = domain.Customer{}
		s.orders[order.ID] = stored
		onRollback(func() {
			delete(s.orders, order.ID)
		})
	})
	return err
}

// Get возвращает заказ вместе с клиентом или ErrOrderNotFound.
func (r *orderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	var (
		order domain.Order
		ok    bool
	)
	r.view(func() {
		order, ok = r.store.orders[id]
		if ok {
			order = cloneOrder(order)
			order.Customer = r.store.customers[order.CustomerID]
		}
	})
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return order, nil
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var result []domain.Order
	r.view(func() {
		customer := r.store.customers[customerID]
		result = make([]domain.Order, 0)
		for _, order := range r.store.orders {
			if order.CustomerID != customerID {
				continue
			}
			order = cloneOrder(order)
			order.Customer = customer
			result = append(result, order)
		}
	})

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

var _ domain.OrderRepository = (*orderRepository)(nil)
