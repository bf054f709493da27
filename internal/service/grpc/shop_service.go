package grpcsvc

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	shopv1 "github.com/vladislavdragonenkov/shop/api/shop/v1"
	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/customers"
	"github.com/vladislavdragonenkov/shop/internal/service/ordering"
)

// ShopService реализует gRPC API поверх сценариев клиентов, каталога и заказов.
type ShopService struct {
	shopv1.UnimplementedShopServiceServer

	customers *customers.Service
	catalog   *catalog.Service
	orders    *ordering.Service
	logger    *log.Entry
}

// NewShopService конструирует сервис с зависимостями.
func NewShopService(
	customerSvc *customers.Service,
	catalogSvc *catalog.Service,
	orderSvc *ordering.Service,
	logger *log.Entry,
) *ShopService {
	if logger == nil {
		logger = log.New().WithField("component", "shop-service")
	}
	return &ShopService{
		customers: customerSvc,
		catalog:   catalogSvc,
		orders:    orderSvc,
		logger:    logger,
	}
}

// CreateCustomer регистрирует клиента.
func (s *ShopService) CreateCustomer(ctx context.Context, req *shopv1.CreateCustomerRequest) (*shopv1.CreateCustomerResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	customer, err := s.customers.CreateCustomer(ctx, req.Name, req.Email)
	if err != nil {
		return nil, s.toStatus(err, "CreateCustomer", "failed to create customer")
	}
	return &shopv1.CreateCustomerResponse{Customer: toAPICustomer(customer)}, nil
}

// GetCustomer возвращает клиента.
func (s *ShopService) GetCustomer(ctx context.Context, req *shopv1.GetCustomerRequest) (*shopv1.GetCustomerResponse, error) {
	if req.GetCustomerId() == "" {
		return nil, status.Error(codes.InvalidArgument, "customer_id is required")
	}

	customer, err := s.customers.GetCustomer(ctx, req.GetCustomerId())
	if err != nil {
		return nil, s.toStatus(err, "GetCustomer", "failed to load customer")
	}
	return &shopv1.GetCustomerResponse{Customer: toAPICustomer(customer)}, nil
}

// CreateProduct добавляет товар в каталог.
func (s *ShopService) CreateProduct(ctx context.Context, req *shopv1.CreateProductRequest) (*shopv1.CreateProductResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	price, err := decimal.NewFromString(strings.TrimSpace(req.Price))
	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "price %q is not a decimal number", req.Price)
	}

	product, err := s.catalog.CreateProduct(ctx, catalog.CreateProductRequest{
		Name:     req.Name,
		Price:    price,
		Quantity: req.Quantity,
	})
	if err != nil {
		return nil, s.toStatus(err, "CreateProduct", "failed to create product")
	}
	return &shopv1.CreateProductResponse{Product: toAPIProduct(product)}, nil
}

// GetProduct возвращает товар.
func (s *ShopService) GetProduct(ctx context.Context, req *shopv1.GetProductRequest) (*shopv1.GetProductResponse, error) {
	if req.GetProductId() == "" {
		return nil, status.Error(codes.InvalidArgument, "product_id is required")
	}

	product, err := s.catalog.GetProduct(ctx, req.GetProductId())
	if err != nil {
		return nil, s.toStatus(err, "GetProduct", "failed to load product")
	}
	return &shopv1.GetProductResponse{Product: toAPIProduct(product)}, nil
}

// ListProducts возвращает каталог, упорядоченный по названию.
func (s *ShopService) ListProducts(ctx context.Context, req *shopv1.ListProductsRequest) (*shopv1.ListProductsResponse, error) {
	var limit int
	if req != nil {
		limit = int(req.PageSize)
	}

	products, err := s.catalog.ListProducts(ctx, limit)
	if err != nil {
		return nil, s.toStatus(err, "ListProducts", "failed to list products")
	}

	result := make([]*shopv1.Product, 0, len(products))
	for _, p := range products {
		result = append(result, toAPIProduct(p))
	}
	return &shopv1.ListProductsResponse{Products: result}, nil
}

// CreateOrder оформляет заказ: снимок цен, списание остатков и событие order.created.
func (s *ShopService) CreateOrder(ctx context.Context, req *shopv1.CreateOrderRequest) (*shopv1.CreateOrderResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	items := make([]ordering.ItemRequest, 0, len(req.Items))
	for idx, item := range req.Items {
		if item == nil {
			return nil, status.Errorf(codes.InvalidArgument, "item[%d] is nil", idx)
		}
		items = append(items, ordering.ItemRequest{ProductID: item.GetProductId(), Quantity: item.GetQuantity()})
	}

	order, err := s.orders.CreateOrder(ctx, ordering.CreateOrderRequest{
		CustomerID: req.GetCustomerId(),
		Items:      items,
	})
	if err != nil {
		return nil, s.toStatus(err, "CreateOrder", "failed to create order")
	}
	return &shopv1.CreateOrderResponse{Order: toAPIOrder(order)}, nil
}

// GetOrder возвращает заказ с позициями.
func (s *ShopService) GetOrder(ctx context.Context, req *shopv1.GetOrderRequest) (*shopv1.GetOrderResponse, error) {
	if req.GetOrderId() == "" {
		return nil, status.Error(codes.InvalidArgument, "order_id is required")
	}

	order, err := s.orders.GetOrder(ctx, req.GetOrderId())
	if err != nil {
		return nil, s.toStatus(err, "GetOrder", "failed to load order")
	}
	return &shopv1.GetOrderResponse{Order: toAPIOrder(order)}, nil
}

// ListOrders возвращает заказы клиента.
func (s *ShopService) ListOrders(ctx context.Context, req *shopv1.ListOrdersRequest) (*shopv1.ListOrdersResponse, error) {
	if req.GetCustomerId() == "" {
		return nil, status.Error(codes.InvalidArgument, "customer_id is required")
	}

	orders, err := s.orders.ListOrders(ctx, req.GetCustomerId(), int(req.PageSize))
	if err != nil {
		return nil, s.toStatus(err, "ListOrders", "failed to list orders")
	}

	result := make([]*shopv1.Order, 0, len(orders))
	for _, order := range orders {
		result = append(result, toAPIOrder(order))
	}
	return &shopv1.ListOrdersResponse{Orders: result}, nil
}

// toStatus переводит доменную ошибку в gRPC-статус. Внутренние ошибки
// логируются, клиенту уходит только internalMsg.
func (s *ShopService) toStatus(err error, operation, internalMsg string) error {
	switch {
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case domain.IsValidation(err):
		return status.Error(codes.InvalidArgument, err.Error())
	case domain.IsNotFound(err):
		return status.Error(codes.NotFound, err.Error())
	case domain.IsInvalidProduct(err):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrProductNameTaken),
		errors.Is(err, domain.ErrCustomerEmailTaken),
		errors.Is(err, domain.ErrProductAlreadyExists),
		errors.Is(err, domain.ErrCustomerAlreadyExists),
		errors.Is(err, domain.ErrOrderAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, domain.ErrProductVanished):
		return status.Error(codes.Aborted, err.Error())
	}

	s.logger.WithError(err).WithField("operation", operation).Error("request failed")
	return status.Error(codes.Internal, internalMsg)
}
