package grpcsvc_test

import (
	"context"
	"math"
	"net"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	shopv1 "github.com/vladislavdragonenkov/shop/api/shop/v1"
	"github.com/vladislavdragonenkov/shop/internal/service/catalog"
	"github.com/vladislavdragonenkov/shop/internal/service/customers"
	grpcsvc "github.com/vladislavdragonenkov/shop/internal/service/grpc"
	"github.com/vladislavdragonenkov/shop/internal/service/ordering"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

const bufSize = 1024 * 1024

func newTestServer(t *testing.T) shopv1.ShopServiceClient {
	t.Helper()

	listener := bufconn.Listen(bufSize)
	store := memory.NewStore()
	logger := loggerForTests()
	service := grpcsvc.NewShopService(
		customers.NewService(store, logger, nil),
		catalog.NewService(store, logger, nil),
		ordering.NewService(store, ordering.WithLogger(logger)),
		logger,
	)

	server := grpc.NewServer()
	shopv1.RegisterShopServiceServer(server, service)

	go func() {
		if err := server.Serve(listener); err != nil {
			logger.WithError(err).Error("grpc serve failed")
		}
	}()

	dialer := func(context.Context, string) (net.Conn, error) {
		return listener.Dial()
	}

	//nolint:staticcheck // grpc.Dial is required for bufconn testing
	conn, err := grpc.Dial("bufnet", grpc.WithContextDialer(dialer), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = conn.Close()
		server.Stop()
	})

	return shopv1.NewShopServiceClient(conn)
}

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: false, DisableTimestamp: true})
	logger.SetLevel(logrus.DebugLevel)
	return logger.WithField("component", "test")
}

func requireCode(t *testing.T, err error, want codes.Code) {
	t.Helper()
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok, "expected grpc status, got %v", err)
	require.Equal(t, want, st.Code(), st.Message())
}

func seed(t *testing.T, client shopv1.ShopServiceClient) (customerID, productID string) {
	t.Helper()
	ctx := context.Background()

	customer, err := client.CreateCustomer(ctx, &shopv1.CreateCustomerRequest{Name: "Alice", Email: "alice@example.com"})
	require.NoError(t, err)
	product, err := client.CreateProduct(ctx, &shopv1.CreateProductRequest{Name: "Widget", Price: "5", Quantity: 10})
	require.NoError(t, err)
	require.Equal(t, "5.00", product.Product.Price)

	return customer.Customer.Id, product.Product.Id
}

func TestCreateOrder_SnapshotsPricesAndDecrementsStock(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()
	customerID, productID := seed(t, client)

	resp, err := client.CreateOrder(ctx, &shopv1.CreateOrderRequest{
		CustomerId: customerID,
		Items:      []*shopv1.CreateOrderItem{{ProductId: productID, Quantity: 3}},
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Order.Id)
	require.Equal(t, customerID, resp.Order.CustomerId)
	require.NotNil(t, resp.Order.Customer)
	require.Equal(t, "Alice", resp.Order.Customer.Name)
	require.Len(t, resp.Order.Items, 1)
	require.Equal(t, "5.00", resp.Order.Items[0].Price)
	require.Equal(t, "15.00", resp.Order.Items[0].Subtotal)
	require.Equal(t, "15.00", resp.Order.Total)

	product, err := client.GetProduct(ctx, &shopv1.GetProductRequest{ProductId: productID})
	require.NoError(t, err)
	require.EqualValues(t, 7, product.Product.Quantity)

	got, err := client.GetOrder(ctx, &shopv1.GetOrderRequest{OrderId: resp.Order.Id})
	require.NoError(t, err)
	require.Equal(t, resp.Order.Id, got.Order.Id)
	require.Equal(t, "15.00", got.Order.Total)

	list, err := client.ListOrders(ctx, &shopv1.ListOrdersRequest{CustomerId: customerID})
	require.NoError(t, err)
	require.Len(t, list.Orders, 1)
}

func TestCreateOrder_Errors(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()
	customerID, productID := seed(t, client)

	tests := []struct {
		name string
		req  *shopv1.CreateOrderRequest
		want codes.Code
	}{
		{
			name: "unknown customer",
			req:  &shopv1.CreateOrderRequest{CustomerId: "missing", Items: []*shopv1.CreateOrderItem{{ProductId: productID, Quantity: 1}}},
			want: codes.NotFound,
		},
		{
			name: "missing customer id",
			req:  &shopv1.CreateOrderRequest{Items: []*shopv1.CreateOrderItem{{ProductId: productID, Quantity: 1}}},
			want: codes.InvalidArgument,
		},
		{
			name: "empty order",
			req:  &shopv1.CreateOrderRequest{CustomerId: customerID},
			want: codes.InvalidArgument,
		},
		{
			name: "zero quantity",
			req:  &shopv1.CreateOrderRequest{CustomerId: customerID, Items: []*shopv1.CreateOrderItem{{ProductId: productID, Quantity: 0}}},
			want: codes.InvalidArgument,
		},
		{
			name: "unknown product",
			req:  &shopv1.CreateOrderRequest{CustomerId: customerID, Items: []*shopv1.CreateOrderItem{{ProductId: "P2", Quantity: 1}}},
			want: codes.FailedPrecondition,
		},
		{
			name: "insufficient stock",
			req:  &shopv1.CreateOrderRequest{CustomerId: customerID, Items: []*shopv1.CreateOrderItem{{ProductId: productID, Quantity: 11}}},
			want: codes.FailedPrecondition,
		},
		{
			name: "duplicate lines overflowing int64",
			req: &shopv1.CreateOrderRequest{CustomerId: customerID, Items: []*shopv1.CreateOrderItem{
				{ProductId: productID, Quantity: math.MaxInt64}, {ProductId: productID, Quantity: math.MaxInt64}, {ProductId: productID, Quantity: 3},
			}},
			want: codes.FailedPrecondition,
		},
		{
			name: "nil item",
			req:  &shopv1.CreateOrderRequest{CustomerId: customerID, Items: []*shopv1.CreateOrderItem{nil}},
			want: codes.InvalidArgument,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.CreateOrder(ctx, tt.req)
			requireCode(t, err, tt.want)
		})
	}

	product, err := client.GetProduct(ctx, &shopv1.GetProductRequest{ProductId: productID})
	require.NoError(t, err)
	require.EqualValues(t, 10, product.Product.Quantity, "rejected orders must not touch stock")

	list, err := client.ListOrders(ctx, &shopv1.ListOrdersRequest{CustomerId: customerID})
	require.NoError(t, err)
	require.Empty(t, list.Orders)
}

func TestCatalogAndCustomers(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()
	customerID, _ := seed(t, client)

	_, err := client.CreateProduct(ctx, &shopv1.CreateProductRequest{Name: "Widget", Price: "1.00", Quantity: 1})
	requireCode(t, err, codes.AlreadyExists)

	_, err = client.CreateProduct(ctx, &shopv1.CreateProductRequest{Name: "Gadget", Price: "abc", Quantity: 1})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.CreateProduct(ctx, &shopv1.CreateProductRequest{Name: "Gadget", Price: "-1", Quantity: 1})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.CreateProduct(ctx, &shopv1.CreateProductRequest{Name: "Gadget", Price: "0.10", Quantity: 2})
	require.NoError(t, err)

	products, err := client.ListProducts(ctx, &shopv1.ListProductsRequest{})
	require.NoError(t, err)
	require.Len(t, products.Products, 2)
	require.Equal(t, "Gadget", products.Products[0].Name)
	require.Equal(t, "Widget", products.Products[1].Name)

	_, err = client.CreateCustomer(ctx, &shopv1.CreateCustomerRequest{Name: "Bob", Email: "ALICE@example.com"})
	requireCode(t, err, codes.AlreadyExists)

	_, err = client.CreateCustomer(ctx, &shopv1.CreateCustomerRequest{Name: "Bob", Email: "bob"})
	requireCode(t, err, codes.InvalidArgument)

	customer, err := client.GetCustomer(ctx, &shopv1.GetCustomerRequest{CustomerId: customerID})
	require.NoError(t, err)
	require.Equal(t, "alice@example.com", customer.Customer.Email)
}

func TestLookups_RequireIDs(t *testing.T) {
	client := newTestServer(t)
	ctx := context.Background()

	_, err := client.GetOrder(ctx, &shopv1.GetOrderRequest{})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.GetOrder(ctx, &shopv1.GetOrderRequest{OrderId: "missing"})
	requireCode(t, err, codes.NotFound)

	_, err = client.GetProduct(ctx, &shopv1.GetProductRequest{})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.GetCustomer(ctx, &shopv1.GetCustomerRequest{CustomerId: "missing"})
	requireCode(t, err, codes.NotFound)

	_, err = client.ListOrders(ctx, &shopv1.ListOrdersRequest{})
	requireCode(t, err, codes.InvalidArgument)

	_, err = client.ListOrders(ctx, &shopv1.ListOrdersRequest{CustomerId: "missing"})
	requireCode(t, err, codes.NotFound)
}
