package domain

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PriceScale: количество знаков после запятой, с которым хранятся цены.
const PriceScale = 2

// Product описывает товар каталога и его складской остаток.
type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
	// Quantity: доступный остаток; создание заказа никогда не уводит его в минус.
	Quantity  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StockAdjustment задаёт списание остатка по одному товару.
type StockAdjustment struct {
	ProductID string
	Quantity  int64
}

// Validate проверяет инварианты товара.
func (p *Product) Validate() []error {
	var errs []error

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, ErrProductNameRequired)
	}
	if p.Price.IsNegative() {
		errs = append(errs, ErrProductPriceNegative)
	}
	if p.Quantity < 0 {
		errs = append(errs, ErrProductQtyNegative)
	}

	return errs
}

// NormalizePrice приводит цену к PriceScale знакам после запятой.
func NormalizePrice(price decimal.Decimal) decimal.Decimal {
	return price.Round(PriceScale)
}

// MergeAdjustments объединяет списания по одному товару, суммируя количества.
// Порядок соответствует первому появлению товара во входном списке.
// Каждое количество должно быть >= 1; сумма, не помещающаяся в int64, не может
// быть покрыта никаким остатком и отклоняется как ErrInsufficientStock.
func MergeAdjustments(adjustments []StockAdjustment) ([]StockAdjustment, error) {
	merged := make([]StockAdjustment, 0, len(adjustments))
	index := make(map[string]int, len(adjustments))
	for _, adj := range adjustments {
		if adj.Quantity < 1 {
			return nil, fmt.Errorf("product %s: %w", adj.ProductID, ErrItemQtyInvalid)
		}
		pos, ok := index[adj.ProductID]
		if !ok {
			index[adj.ProductID] = len(merged)
			merged = append(merged, adj)
			continue
		}
		if merged[pos].Quantity > math.MaxInt64-adj.Quantity {
			return nil, fmt.Errorf("product %s: requested quantity overflows int64: %w: %w",
				adj.ProductID, ErrInvalidProduct, ErrInsufficientStock)
		}
		merged[pos].Quantity += adj.Quantity
	}
	return merged, nil
}
