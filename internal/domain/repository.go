package domain

import "context"

// CustomerRepository описывает требования к хранилищу клиентов.
type CustomerRepository interface {
	// Create сохраняет нового клиента. Возвращает ErrCustomerEmailTaken, если email уже занят.
	Create(ctx context.Context, customer Customer) error
	// Get возвращает клиента по идентификатору или ErrCustomerNotFound.
	Get(ctx context.Context, id string) (Customer, error)
	// FindByEmail ищет клиента по email; ErrCustomerNotFound, если такого нет.
	FindByEmail(ctx context.Context, email string) (Customer, error)
}

// ProductRepository описывает требования к хранилищу товаров.
type ProductRepository interface {
	// Create сохраняет новый товар. Возвращает ErrProductNameTaken при дубликате названия.
	Create(ctx context.Context, product Product) error
	// Get возвращает товар по идентификатору или ErrProductNotFound.
	Get(ctx context.Context, id string) (Product, error)
	// FindByName ищет товар по точному названию; ErrProductNotFound, если такого нет.
	FindByName(ctx context.Context, name string) (Product, error)
	// FindAllByID возвращает только найденные товары; результат может быть короче ids.
	FindAllByID(ctx context.Context, ids []string) ([]Product, error)
	// List возвращает товары, упорядоченные по названию, с опциональным ограничением.
	List(ctx context.Context, limit int) ([]Product, error)
	// DecrementQuantity списывает остатки одним батчем.
	// ErrProductVanished: товара нет; ErrInsufficientStock: остатка не хватает.
	// При любой ошибке ни один остаток не меняется.
	DecrementQuantity(ctx context.Context, adjustments []StockAdjustment) ([]Product, error)
}

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create сохраняет новый заказ вместе с позициями. ErrOrderAlreadyExists при дубликате ID.
	Create(ctx context.Context, order Order) error
	// Get возвращает заказ с позициями или ErrOrderNotFound.
	Get(ctx context.Context, id string) (Order, error)
	// ListByCustomer возвращает заказы клиента (новые первыми) с опциональным ограничением.
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]Order, error)
}

// Repositories объединяет хранилища, доступные внутри одной единицы работы.
type Repositories struct {
	Customers CustomerRepository
	Products  ProductRepository
	Orders    OrderRepository
	Outbox    OutboxRepository
}

// UnitOfWork выполняет fn атомарно: изменения фиксируются, только если fn вернула nil.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}
