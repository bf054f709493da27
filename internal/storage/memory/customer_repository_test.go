package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func TestCustomerRepository_CreateAndFind(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Customers()

	customer := domain.Customer{ID: "customer-1", Name: "Ann", Email: "Ann@Example.com"}
	if err := repo.Create(ctx, customer); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	got, err := repo.Get(ctx, "customer-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "Ann" {
		t.Fatalf("unexpected customer: %+v", got)
	}

	byEmail, err := repo.FindByEmail(ctx, " ann@example.com ")
	if err != nil {
		t.Fatalf("find by email failed: %v", err)
	}
	if byEmail.ID != customer.ID {
		t.Fatalf("expected %s, got %s", customer.ID, byEmail.ID)
	}
}

func TestCustomerRepository_EmailTaken(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Customers()

	if err := repo.Create(ctx, domain.Customer{ID: "c1", Name: "Ann", Email: "ann@example.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err := repo.Create(ctx, domain.Customer{ID: "c2", Name: "Other Ann", Email: "ANN@example.com"})
	if !errors.Is(err, domain.ErrCustomerEmailTaken) {
		t.Fatalf("expected ErrCustomerEmailTaken, got %v", err)
	}
}

func TestCustomerRepository_IDTaken(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Customers()

	if err := repo.Create(ctx, domain.Customer{ID: "c1", Name: "Ann", Email: "ann@example.com"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	err := repo.Create(ctx, domain.Customer{ID: "c1", Name: "Bob", Email: "bob@example.com"})
	if !errors.Is(err, domain.ErrCustomerAlreadyExists) || errors.Is(err, domain.ErrCustomerEmailTaken) {
		t.Fatalf("expected ErrCustomerAlreadyExists, got %v", err)
	}
}

func TestCustomerRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Customers()

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
	if _, err := repo.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, domain.ErrCustomerNotFound) {
		t.Fatalf("expected ErrCustomerNotFound, got %v", err)
	}
}
