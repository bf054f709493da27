package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/shop/internal/health"
	"github.com/vladislavdragonenkov/shop/internal/storage/memory"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())
	return addr
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // test-local URL
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

// startTestMetricsServer поднимает сервер и ждёт, пока /livez начнёт отвечать.
func startTestMetricsServer(t *testing.T, handler *healthcheck.Handler) (string, context.CancelFunc) {
	t.Helper()
	addr := freeAddr(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	srv := startMetricsServer(ctx, addr, log.WithField("test", "http"), handler)
	require.NotNil(t, srv)

	base := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/livez") //nolint:gosec // test-local URL
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	return base, cancel
}

func TestMetricsServer_ProbesReflectComponents(t *testing.T) {
	store := memory.NewStore()
	_, err := store.Outbox().Enqueue(context.Background(), domain.OutboxMessage{AggregateID: "order-1"})
	require.NoError(t, err)

	handler := healthcheck.NewHandler("test")
	handler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func(context.Context) error { return nil }))
	// только что созданное событие старше нулевого лимита
	handler.RegisterChecker("outbox", healthcheck.NewOutboxChecker(store.Outbox(), time.Nanosecond))

	base, _ := startTestMetricsServer(t, handler)

	code, body := get(t, base+"/healthz")
	require.Equal(t, http.StatusOK, code)
	var resp healthcheck.Response
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	require.Equal(t, healthcheck.StatusDegraded, resp.Status)
	require.Equal(t, healthcheck.StatusHealthy, resp.Checks["storage"].Status)
	require.Equal(t, healthcheck.StatusDegraded, resp.Checks["outbox"].Status)
	require.Equal(t, "test", resp.Version)

	code, body = get(t, base+"/readyz")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ready", body)

	code, body = get(t, base+"/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "go_goroutines")
}

func TestMetricsServer_UnhealthyStorage(t *testing.T) {
	handler := healthcheck.NewHandler("test")
	handler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func(context.Context) error {
		return errors.New("connection refused")
	}))

	base, _ := startTestMetricsServer(t, handler)

	code, _ := get(t, base+"/healthz")
	require.Equal(t, http.StatusServiceUnavailable, code)

	code, body := get(t, base+"/readyz")
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "not ready", body)

	code, body = get(t, base+"/livez")
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ok", body)
}

func TestMetricsServer_StopsOnCancel(t *testing.T) {
	base, cancel := startTestMetricsServer(t, healthcheck.NewHandler("test"))
	cancel()

	require.Eventually(t, func() bool {
		resp, err := http.Get(base + "/livez") //nolint:gosec // test-local URL
		if err != nil {
			return true
		}
		_ = resp.Body.Close()
		return false
	}, 2*time.Second, 10*time.Millisecond)
}

func TestMetricsServer_AddressInUseDoesNotPanic(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer listener.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	srv := startMetricsServer(ctx, listener.Addr().String(), log.WithField("test", "http"), healthcheck.NewHandler("test"))
	require.NotNil(t, srv)
}

func TestShutdownHTTP(t *testing.T) {
	logger := log.WithField("test", "http-shutdown")
	shutdownHTTP(nil, logger)

	addr := freeAddr(t)
	srv := &http.Server{Addr: addr, Handler: http.NotFoundHandler(), ReadHeaderTimeout: time.Second}
	served := make(chan error, 1)
	go func() { served <- srv.ListenAndServe() }()

	require.Eventually(t, func() bool {
		conn, err := net.Dial("tcp", addr)
		if err != nil {
			return false
		}
		_ = conn.Close()
		return true
	}, 2*time.Second, 10*time.Millisecond)

	shutdownHTTP(srv, logger)
	select {
	case err := <-served:
		require.ErrorIs(t, err, http.ErrServerClosed)
	case <-time.After(2 * time.Second):
		t.Fatalf("server on %s did not stop", addr)
	}
}
