// loadtest конкурентно оформляет заказы на ограниченный остаток и проверяет,
// что сервис не продал больше, чем было на складе.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	shopv1 "github.com/vladislavdragonenkov/shop/api/shop/v1"
)

type config struct {
	addr        string
	total       int
	concurrency int
	connections int
	timeout     time.Duration
	products    int
	stock       int64
	qty         int64
	price       string
	outputPath  string
}

func parseConfig(args []string) (config, error) {
	var cfg config
	fs := flag.NewFlagSet("loadtest", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&cfg.addr, "addr", "localhost:50051", "gRPC target address")
	fs.IntVar(&cfg.total, "total", 400, "total CreateOrder calls")
	fs.IntVar(&cfg.concurrency, "concurrency", 40, "number of concurrent workers")
	fs.IntVar(&cfg.connections, "connections", 8, "number of gRPC client connections")
	fs.DurationVar(&cfg.timeout, "timeout", 5*time.Second, "per-RPC timeout")
	fs.IntVar(&cfg.products, "products", 1, "number of contended products")
	fs.Int64Var(&cfg.stock, "stock", 100, "initial stock of every product")
	fs.Int64Var(&cfg.qty, "qty", 1, "quantity per order")
	fs.StringVar(&cfg.price, "price", "9.99", "product price")
	fs.StringVar(&cfg.outputPath, "output", "", "optional JSON report output file path")
	if err := fs.Parse(args); err != nil {
		return config{}, err
	}

	switch {
	case cfg.total <= 0:
		return config{}, errors.New("total must be > 0")
	case cfg.concurrency <= 0:
		return config{}, errors.New("concurrency must be > 0")
	case cfg.connections <= 0:
		return config{}, errors.New("connections must be > 0")
	case cfg.timeout <= 0:
		return config{}, errors.New("timeout must be > 0")
	case cfg.products <= 0:
		return config{}, errors.New("products must be > 0")
	case cfg.stock < 0:
		return config{}, errors.New("stock must be >= 0")
	case cfg.qty <= 0:
		return config{}, errors.New("qty must be > 0")
	case strings.TrimSpace(cfg.price) == "":
		return config{}, errors.New("price is required")
	}
	return cfg, nil
}

type fixture struct {
	customerID string
	productIDs []string
}

// prepare создаёт клиента и товары с уникальными для прогона именами.
func prepare(ctx context.Context, client shopv1.ShopServiceClient, cfg config, runID string) (fixture, error) {
	customer, err := client.CreateCustomer(ctx, &shopv1.CreateCustomerRequest{
		Name:  "Load " + runID,
		Email: fmt.Sprintf("load-%s@example.com", runID),
	})
	if err != nil {
		return fixture{}, fmt.Errorf("create customer: %w", err)
	}

	fx := fixture{customerID: customer.Customer.Id}
	for i := 0; i < cfg.products; i++ {
		product, err := client.CreateProduct(ctx, &shopv1.CreateProductRequest{
			Name:     fmt.Sprintf("load-%s-%d", runID, i),
			Price:    cfg.price,
			Quantity: cfg.stock,
		})
		if err != nil {
			return fixture{}, fmt.Errorf("create product %d: %w", i, err)
		}
		fx.productIDs = append(fx.productIDs, product.Product.Id)
	}
	return fx, nil
}

// run выполняет нагрузку и сверяет остатки: initial - sold == final.
func run(ctx context.Context, clients []shopv1.ShopServiceClient, cfg config, runID string) (report, error) {
	if len(clients) == 0 {
		return report{}, errors.New("at least one client is required")
	}

	fx, err := prepare(ctx, clients[0], cfg, runID)
	if err != nil {
		return report{}, err
	}

	col := newCollector()
	jobs := make(chan int, cfg.concurrency*2)
	var wg sync.WaitGroup

	startedAt := time.Now()
	for workerID := 0; workerID < cfg.concurrency; workerID++ {
		wg.Add(1)
		client := clients[workerID%len(clients)]
		go func() {
			defer wg.Done()
			for i := range jobs {
				productID := fx.productIDs[i%len(fx.productIDs)]
				createOrder(ctx, client, cfg, fx.customerID, productID, col)
			}
		}()
	}

	for i := 0; i < cfg.total; i++ {
		if ctx.Err() != nil {
			break
		}
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	result := col.buildReport(startedAt, time.Since(startedAt))
	for _, productID := range fx.productIDs {
		resp, err := clients[0].GetProduct(ctx, &shopv1.GetProductRequest{ProductId: productID})
		if err != nil {
			return result, fmt.Errorf("read final stock of %s: %w", productID, err)
		}
		sold := col.sold(productID)
		final := resp.Product.Quantity
		result.Stock = append(result.Stock, stockCheck{
			ProductID:    productID,
			InitialStock: cfg.stock,
			FinalStock:   final,
			UnitsSold:    sold,
			Consistent:   final >= 0 && cfg.stock-sold == final,
		})
	}
	return result, nil
}

func createOrder(ctx context.Context, client shopv1.ShopServiceClient, cfg config, customerID, productID string, col *collector) {
	callCtx, cancel := context.WithTimeout(ctx, cfg.timeout)
	defer cancel()

	start := time.Now()
	_, err := client.CreateOrder(callCtx, &shopv1.CreateOrderRequest{
		CustomerId: customerID,
		Items:      []*shopv1.CreateOrderItem{{ProductId: productID, Quantity: cfg.qty}},
	})
	col.record(productID, cfg.qty, time.Since(start), grpcCode(err))
}

func grpcCode(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	return status.Code(err)
}

func main() {
	cfg, err := parseConfig(os.Args[1:])
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	conns := make([]*grpc.ClientConn, 0, cfg.connections)
	clients := make([]shopv1.ShopServiceClient, 0, cfg.connections)
	for i := 0; i < cfg.connections; i++ {
		conn, dialErr := grpc.NewClient(cfg.addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
		if dialErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to create grpc client connection: %v\n", dialErr)
			os.Exit(1)
		}
		conns = append(conns, conn)
		clients = append(clients, shopv1.NewShopServiceClient(conn))
	}
	closeAll := func() {
		for _, conn := range conns {
			_ = conn.Close()
		}
	}

	runID := fmt.Sprintf("%d-%d", time.Now().UnixNano(), os.Getpid())
	result, err := run(context.Background(), clients, cfg, runID)
	closeAll()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "load test failed: %v\n", err)
		os.Exit(1)
	}

	printReport(os.Stdout, result)
	if cfg.outputPath != "" {
		if err := writeJSONReport(cfg.outputPath, result); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "failed to write report: %v\n", err)
			os.Exit(1)
		}
	}
	if !result.consistent() {
		os.Exit(1)
	}
}
