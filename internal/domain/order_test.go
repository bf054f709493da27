package domain_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// helper для создания базового заказа с двумя позициями.
func makeOrder() domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:         "order-1",
		CustomerID: "customer-1",
		Items: []domain.OrderItem{
			{ID: "item-1", ProductID: "product-1", Price: decimal.RequireFromString("5.00"), Quantity: 3, CreatedAt: now},
			{ID: "item-2", ProductID: "product-2", Price: decimal.RequireFromString("0.10"), Quantity: 7, CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestOrderTotal(t *testing.T) {
	order := makeOrder()

	want := decimal.RequireFromString("15.70")
	if got := order.Total(); !got.Equal(want) {
		t.Fatalf("expected total %s, got %s", want, got)
	}
}

func TestOrderTotal_Empty(t *testing.T) {
	order := domain.Order{}
	if !order.Total().IsZero() {
		t.Fatalf("expected zero total, got %s", order.Total())
	}
}

func TestOrderValidateInvariants_Ok(t *testing.T) {
	order := makeOrder()
	if errs := order.ValidateInvariants(); len(errs) != 0 {
		t.Fatalf("expected no validation errors, got %v", errs)
	}
}

func TestOrderValidateInvariants_Errors(t *testing.T) {
	cases := []struct {
		name string
		mut  func(o *domain.Order)
	}{
		{
			name: "no customer",
			mut: func(o *domain.Order) {
				o.CustomerID = ""
			},
		},
		{
			name: "no items",
			mut: func(o *domain.Order) {
				o.Items = nil
			},
		},
		{
			name: "qty invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Quantity = 0
			},
		},
		{
			name: "product missing",
			mut: func(o *domain.Order) {
				o.Items[1].ProductID = ""
			},
		},
		{
			name: "price invalid",
			mut: func(o *domain.Order) {
				o.Items[0].Price = decimal.NewFromInt(-1)
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			order := makeOrder()
			tc.mut(&order)

			if len(order.ValidateInvariants()) == 0 {
				t.Fatalf("expected validation errors for case %s", tc.name)
			}
		})
	}
}
