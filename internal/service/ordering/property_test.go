package ordering

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

// Остаток после заказа равен остатку до минус заказанное количество,
// а отклонённый заказ не меняет ни одного остатка.
func TestCreateOrder_StockProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		productCount := rapid.IntRange(1, 5).Draw(rt, "products")
		products := make([]domain.Product, 0, productCount)
		for i := 0; i < productCount; i++ {
			stock := rapid.Int64Range(0, 20).Draw(rt, fmt.Sprintf("stock-%d", i))
			products = append(products, product(fmt.Sprintf("P%d", i), "1.25", stock))
		}
		f := newFixture(t, products...)

		before := map[string]int64{}
		for _, p := range products {
			before[p.ID] = p.Quantity
		}

		items := rapid.SliceOfN(rapid.Custom(func(rt *rapid.T) ItemRequest {
			return ItemRequest{
				// P<productCount> никогда не существует.
				ProductID: fmt.Sprintf("P%d", rapid.IntRange(0, productCount).Draw(rt, "product")),
				Quantity:  rapid.Int64Range(1, 12).Draw(rt, "qty"),
			}
		}), 1, 6).Draw(rt, "items")

		requested := map[string]int64{}
		for _, item := range items {
			requested[item.ProductID] += item.Quantity
		}
		feasible := true
		for id, qty := range requested {
			stock, ok := before[id]
			if !ok || qty > stock {
				feasible = false
			}
		}

		order, err := f.service.CreateOrder(context.Background(), CreateOrderRequest{CustomerID: "C1", Items: items})

		if !feasible {
			require.True(rt, domain.IsInvalidProduct(err), "expected invalid product, got %v", err)
			for id, stock := range before {
				require.Equal(rt, stock, f.stock(t, id))
			}
			return
		}

		require.NoError(rt, err)
		require.Len(rt, order.Items, len(requested))
		for id, stock := range before {
			require.Equal(rt, stock-requested[id], f.stock(t, id))
		}
		for _, item := range order.Items {
			require.Equal(rt, requested[item.ProductID], item.Quantity)
		}
	})
}
