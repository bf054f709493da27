package memory

import (
	"context"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Store: in-memory хранилище клиентов, товаров, заказов и outbox для локальной разработки и тестов.
//
// Единица работы (Do) удерживает эксклюзивную блокировку на всё время выполнения,
// поэтому промежуточное состояние не видно параллельным читателям.
type Store struct {
	mu sync.RWMutex

	customers      map[string]domain.Customer
	customerEmails map[string]string

	products     map[string]domain.Product
	productNames map[string]string

	orders map[string]domain.Order

	outbox map[string]*outboxRecord
	// outboxSeq задаёт стабильный порядок выдачи pending-сообщений.
	outboxSeq int64

	now func() time.Time
}

// NewStore создаёт пустое in-memory хранилище.
func NewStore() *Store {
	return &Store{
		customers:      make(map[string]domain.Customer),
		customerEmails: make(map[string]string),
		products:       make(map[string]domain.Product),
		productNames:   make(map[string]string),
		orders:         make(map[string]domain.Order),
		outbox:         make(map[string]*outboxRecord),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Customers возвращает репозиторий клиентов вне транзакции.
func (s *Store) Customers() domain.CustomerRepository {
	return &customerRepository{scope: scope{store: s}}
}

// Products возвращает репозиторий товаров вне транзакции.
func (s *Store) Products() domain.ProductRepository {
	return &productRepository{scope: scope{store: s}}
}

// Orders возвращает репозиторий заказов вне транзакции.
func (s *Store) Orders() domain.OrderRepository {
	return &orderRepository{scope: scope{store: s}}
}

// Outbox возвращает outbox-репозиторий вне транзакции.
func (s *Store) Outbox() domain.OutboxRepository {
	return &outboxRepository{scope: scope{store: s}}
}

// Repositories возвращает набор репозиториев вне транзакции.
func (s *Store) Repositories() domain.Repositories {
	return domain.Repositories{
		Customers: s.Customers(),
		Products:  s.Products(),
		Orders:    s.Orders(),
		Outbox:    s.Outbox(),
	}
}

// Do выполняет fn как единицу работы. Если fn вернула ошибку или запаниковала,
// все изменения, сделанные через переданные репозитории, откатываются.
func (s *Store) Do(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &txState{}
	sc := scope{store: s, tx: tx}
	repos := domain.Repositories{
		Customers: &customerRepository{scope: sc},
		Products:  &productRepository{scope: sc},
		Orders:    &orderRepository{scope: sc},
		Outbox:    &outboxRepository{scope: sc},
	}

	defer func() {
		if r := recover(); r != nil {
			tx.rollback()
			panic(r)
		}
	}()

	if err = fn(ctx, repos); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// txState накапливает компенсирующие действия для отката.
type txState struct {
	undo []func()
}

func (t *txState) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// scope определяет, нужно ли брать блокировку: внутри Do она уже удерживается.
type scope struct {
	store *Store
	tx    *txState
}

func (sc scope) view(fn func()) {
	if sc.tx == nil {
		sc.store.mu.RLock()
		defer sc.store.mu.RUnlock()
	}
	fn()
}

func (sc scope) update(fn func(onRollback func(func()))) {
	if sc.tx == nil {
		sc.store.mu.Lock()
		defer sc.store.mu.Unlock()
		fn(func(func()) {})
		return
	}
	fn(func(undo func()) {
		sc.tx.undo = append(sc.tx.undo, undo)
	})
}

var _ domain.UnitOfWork = (*Store)(nil)
