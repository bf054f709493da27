package memory

import (
	"context"
	"fmt"
	"strings"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

type customerRepository struct {
	scope
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create сохраняет клиента, если email ещё не занят.
func (r *customerRepository) Create(ctx context.Context, customer domain.Customer) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	r.update(func(onRollback func(func())) {
		s := r.store
		if _, exists := s.customers[customer.ID]; exists {
			err = fmt.Errorf("customer %s: %w", customer.ID, domain.ErrCustomerAlreadyExists)
			return
		}
		key := emailKey(customer.Email)
		if _, taken := s.customerEmails[key]; taken {
			err = domain.ErrCustomerEmailTaken
			return
		}
		s.customers[customer.ID] = customer
		s.customerEmails[key] = customer.ID
		onRollback(func() {
			delete(s.customers, customer.ID)
			delete(s.customerEmails, key)
		})
	})
	return err
}

// Get возвращает клиента или ErrCustomerNotFound.
func (r *customerRepository) Get(ctx context.Context, id string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	var (
		customer domain.Customer
		ok       bool
	)
	r.view(func() {
		customer, ok = r.store.customers[id]
	})
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

// FindByEmail ищет клиента по email без учёта регистра.
func (r *customerRepository) FindByEmail(ctx context.Context, email string) (domain.Customer, error) {
	if err := ctx.Err(); err != nil {
		return domain.Customer{}, err
	}

	var (
		customer domain.Customer
		ok       bool
	)
	r.view(func() {
		id, found := r.store.customerEmails[emailKey(email)]
		if !found {
			return
		}
		customer, ok = r.store.customers[id]
	})
	if !ok {
		return domain.Customer{}, domain.ErrCustomerNotFound
	}
	return customer, nil
}

var _ domain.CustomerRepository = (*customerRepository)(nil)
