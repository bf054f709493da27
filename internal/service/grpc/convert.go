package grpcsvc

import (
	"google.golang.org/protobuf/types/known/timestamppb"

	shopv1 "github.com/vladislavdragonenkov/shop/api/shop/v1"
	"github.com/vladislavdragonenkov/shop/internal/domain"
)

func toAPICustomer(c domain.Customer) *shopv1.Customer {
	return &shopv1.Customer{
		Id:        c.ID,
		Name:      c.Name,
		Email:     c.Email,
		CreatedAt: timestamppb.New(c.CreatedAt),
	}
}

func toAPIProduct(p domain.Product) *shopv1.Product {
	return &shopv1.Product{
		Id:        p.ID,
		Name:      p.Name,
		Price:     p.Price.StringFixed(domain.PriceScale),
		Quantity:  p.Quantity,
		CreatedAt: timestamppb.New(p.CreatedAt),
		UpdatedAt: timestamppb.New(p.UpdatedAt),
	}
}

func toAPIOrder(order domain.Order) *shopv1.Order {
	items := make([]*shopv1.OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, &shopv1.OrderItem{
			Id:        item.ID,
			ProductId: item.ProductID,
			Price:     item.Price.StringFixed(domain.PriceScale),
			Quantity:  item.Quantity,
			Subtotal:  item.Subtotal().StringFixed(domain.PriceScale),
		})
	}

	result := &shopv1.Order{
		Id:         order.ID,
		CustomerId: order.CustomerID,
		Items:      items,
		Total:      order.Total().StringFixed(domain.PriceScale),
		CreatedAt:  timestamppb.New(order.CreatedAt),
	}
	if order.Customer.ID != "" {
		result.Customer = toAPICustomer(order.Customer)
	}
	return result
}
