package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestProduct_Validate(t *testing.T) {
	tests := []struct {
		name     string
		product  Product
		errCount int
	}{
		{
			name:     "valid product",
			product:  Product{Name: "Keyboard", Price: decimal.RequireFromString("49.90"), Quantity: 10},
			errCount: 0,
		},
		{
			name:     "zero price and stock are allowed",
			product:  Product{Name: "Sticker", Price: decimal.Zero, Quantity: 0},
			errCount: 0,
		},
		{
			name:     "blank name",
			product:  Product{Name: "  ", Price: decimal.NewFromInt(1), Quantity: 1},
			errCount: 1,
		},
		{
			name:     "negative price and stock",
			product:  Product{Name: "Broken", Price: decimal.NewFromInt(-1), Quantity: -5},
			errCount: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := tt.product.Validate()
			if len(errs) != tt.errCount {
				t.Fatalf("expected %d errors, got %d: %v", tt.errCount, len(errs), errs)
			}
		})
	}
}

func TestNormalizePrice(t *testing.T) {
	got := NormalizePrice(decimal.RequireFromString("5.005"))
	if !got.Equal(decimal.RequireFromString("5.01")) {
		t.Fatalf("expected 5.01, got %s", got)
	}
	if got.StringFixed(PriceScale) != "5.01" {
		t.Fatalf("unexpected fixed representation: %s", got.StringFixed(PriceScale))
	}
}

func TestCustomer_Validate(t *testing.T) {
	tests := []struct {
		name     string
		customer Customer
		errCount int
	}{
		{name: "valid", customer: Customer{Name: "Ann", Email: "ann@example.com"}, errCount: 0},
		{name: "missing name", customer: Customer{Email: "ann@example.com"}, errCount: 1},
		{name: "email without at", customer: Customer{Name: "Ann", Email: "ann.example.com"}, errCount: 1},
		{name: "email with trailing at", customer: Customer{Name: "Ann", Email: "ann@"}, errCount: 1},
		{name: "empty", customer: Customer{}, errCount: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if errs := tt.customer.Validate(); len(errs) != tt.errCount {
				t.Fatalf("expected %d errors, got %d: %v", tt.errCount, len(errs), errs)
			}
		})
	}
}

func TestMergeAdjustments(t *testing.T) {
	got, err := MergeAdjustments([]StockAdjustment{
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 4},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []StockAdjustment{
		{ProductID: "p2", Quantity: 5},
		{ProductID: "p1", Quantity: 2},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d adjustments, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("adjustment[%d]: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestMergeAdjustments_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		input []StockAdjustment
		want  []error
	}{
		{
			name: "sum overflows int64",
			input: []StockAdjustment{
				{ProductID: "p1", Quantity: math.MaxInt64},
				{ProductID: "p1", Quantity: math.MaxInt64},
				{ProductID: "p1", Quantity: 3},
			},
			want: []error{ErrInvalidProduct, ErrInsufficientStock},
		},
		{
			name:  "zero quantity",
			input: []StockAdjustment{{ProductID: "p1", Quantity: 0}},
			want:  []error{ErrItemQtyInvalid},
		},
		{
			name:  "negative line among duplicates",
			input: []StockAdjustment{{ProductID: "p1", Quantity: 5}, {ProductID: "p1", Quantity: -2}},
			want:  []error{ErrItemQtyInvalid},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MergeAdjustments(tt.input)
			if got != nil {
				t.Fatalf("expected no adjustments, got %+v", got)
			}
			for _, want := range tt.want {
				if !errors.Is(err, want) {
					t.Fatalf("expected %v in %v", want, err)
				}
			}
		})
	}
}

func TestMergeAdjustments_MaxSingleLine(t *testing.T) {
	got, err := MergeAdjustments([]StockAdjustment{
		{ProductID: "p1", Quantity: math.MaxInt64 - 1},
		{ProductID: "p1", Quantity: 1},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Quantity != math.MaxInt64 {
		t.Fatalf("expected a single MaxInt64 line, got %+v", got)
	}
}
