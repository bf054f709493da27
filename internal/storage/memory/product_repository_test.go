package memory_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func seedProducts(t *testing.T, repo domain.ProductRepository, products ...domain.Product) {
	t.Helper()
	for _, p := range products {
		if err := repo.Create(context.Background(), p); err != nil {
			t.Fatalf("seed product %s: %v", p.ID, err)
		}
	}
}

func product(id, name, price string, qty int64) domain.Product {
	return domain.Product{ID: id, Name: name, Price: decimal.RequireFromString(price), Quantity: qty}
}

func TestProductRepository_CreateNameTaken(t *testing.T) {
	repo := memory.NewStore().Products()
	seedProducts(t, repo, product("p1", "Keyboard", "49.90", 10))

	err := repo.Create(context.Background(), product("p2", "Keyboard", "10.00", 1))
	if !errors.Is(err, domain.ErrProductNameTaken) {
		t.Fatalf("expected ErrProductNameTaken, got %v", err)
	}
}

func TestProductRepository_CreateIDTaken(t *testing.T) {
	repo := memory.NewStore().Products()
	seedProducts(t, repo, product("p1", "Keyboard", "49.90", 10))

	err := repo.Create(context.Background(), product("p1", "Mouse", "10.00", 1))
	if !errors.Is(err, domain.ErrProductAlreadyExists) || errors.Is(err, domain.ErrProductNameTaken) {
		t.Fatalf("expected ErrProductAlreadyExists, got %v", err)
	}
}

func TestProductRepository_Lookups(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Products()
	seedProducts(t, repo,
		product("p1", "Keyboard", "49.90", 10),
		product("p2", "Mouse", "19.90", 5),
	)

	got, err := repo.Get(ctx, "p2")
	if err != nil || got.Name != "Mouse" {
		t.Fatalf("get p2: %+v, %v", got, err)
	}

	byName, err := repo.FindByName(ctx, "Keyboard")
	if err != nil || byName.ID != "p1" {
		t.Fatalf("find by name: %+v, %v", byName, err)
	}

	if _, err := repo.Get(ctx, "p3"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
	if _, err := repo.FindByName(ctx, "Monitor"); !errors.Is(err, domain.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got %v", err)
	}
}

func TestProductRepository_FindAllByIDReturnsOnlyMatches(t *testing.T) {
	repo := memory.NewStore().Products()
	seedProducts(t, repo,
		product("p1", "Keyboard", "49.90", 10),
		product("p2", "Mouse", "19.90", 5),
	)

	found, err := repo.FindAllByID(context.Background(), []string{"p2", "missing", "p1", "p2"})
	if err != nil {
		t.Fatalf("find all failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 products, got %d", len(found))
	}
	if found[0].ID != "p2" || found[1].ID != "p1" {
		t.Fatalf("unexpected order: %s, %s", found[0].ID, found[1].ID)
	}
}

func TestProductRepository_List(t *testing.T) {
	repo := memory.NewStore().Products()
	seedProducts(t, repo,
		product("p1", "Mouse", "19.90", 5),
		product("p2", "Keyboard", "49.90", 10),
		product("p3", "Cable", "3.00", 50),
	)

	list, err := repo.List(context.Background(), 2)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(list) != 2 || list[0].Name != "Cable" || list[1].Name != "Keyboard" {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestProductRepository_DecrementQuantity(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewStore().Products()
	seedProducts(t, repo,
		product("p1", "Keyboard", "49.90", 10),
		product("p2", "Mouse", "19.90", 5),
	)

	updated, err := repo.DecrementQuantity(ctx, []domain.StockAdjustment{
		{ProductID: "p1", Quantity: 3},
		{ProductID: "p2", Quantity: 5},
		{ProductID: "p1", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("decrement failed: %v", err)
	}
	if len(updated) != 2 {
		t.Fatalf("expected 2 updated products, got %d", len(updated))
	}
	if updated[0].ID != "p1" || updated[0].Quantity != 6 {
		t.Fatalf("unexpected p1: %+v", updated[0])
	}
	if updated[1].ID != "p2" || updated[1].Quantity != 0 {
		t.Fatalf("unexpected p2: %+v", updated[1])
	}

	stored, err := repo.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Quantity != 6 {
		t.Fatalf("expected persisted quantity 6, got %d", stored.Quantity)
	}
}

func TestProductRepository_DecrementQuantityFailuresWriteNothing(t *testing.T) {
	cases := []struct {
		name    string
		adjs    []domain.StockAdjustment
		wantErr error
	}{
		{
			name:    "vanished product",
			adjs:    []domain.StockAdjustment{{ProductID: "p1", Quantity: 1}, {ProductID: "gone", Quantity: 1}},
			wantErr: domain.ErrProductVanished,
		},
		{
			name:    "insufficient stock",
			adjs:    []domain.StockAdjustment{{ProductID: "p1", Quantity: 1}, {ProductID: "p2", Quantity: 6}},
			wantErr: domain.ErrInsufficientStock,
		},
		{
			name:    "duplicates exceed stock together",
			adjs:    []domain.StockAdjustment{{ProductID: "p2", Quantity: 3}, {ProductID: "p2", Quantity: 3}},
			wantErr: domain.ErrInsufficientStock,
		},
		{
			name:    "non-positive quantity",
			adjs:    []domain.StockAdjustment{{ProductID: "p1", Quantity: 0}},
			wantErr: domain.ErrItemQtyInvalid,
		},
		{
			name:    "duplicates overflow int64",
			adjs:    []domain.StockAdjustment{{ProductID: "p1", Quantity: math.MaxInt64}, {ProductID: "p1", Quantity: 2}},
			wantErr: domain.ErrInsufficientStock,
		},
		{
			name:    "negative line cannot offset another",
			adjs:    []domain.StockAdjustment{{ProductID: "p2", Quantity: -4}, {ProductID: "p2", Quantity: 8}},
			wantErr: domain.ErrItemQtyInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			repo := memory.NewStore().Products()
			seedProducts(t, repo,
				product("p1", "Keyboard", "49.90", 10),
				product("p2", "Mouse", "19.90", 5),
			)

			if _, err := repo.DecrementQuantity(ctx, tc.adjs); !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected %v, got %v", tc.wantErr, err)
			}

			p1, _ := repo.Get(ctx, "p1")
			p2, _ := repo.Get(ctx, "p2")
			if p1.Quantity != 10 || p2.Quantity != 5 {
				t.Fatalf("stock changed after failure: p1=%d p2=%d", p1.Quantity, p2.Quantity)
			}
		})
	}
}
