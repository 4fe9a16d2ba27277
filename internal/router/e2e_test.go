//go:build integration

package router

// End-to-end tests using real Postgres + Redis via testcontainers.
// Run with: go test -tags integration ./internal/router/... -v

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/identity"
	"stockledger/internal/infra"
	"stockledger/internal/metrics"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/worker"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	tcRedis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// ── Helpers ──────────────────────────────────────────────────────────────────

type alertSink struct {
	mu     sync.Mutex
	alerts []model.LowStockAlert
}

func (s *alertSink) Send(_ context.Context, a model.LowStockAlert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, a)
	return nil
}

func (s *alertSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

type testEnv struct {
	server *httptest.Server
	codec  *identity.JWTCodec
	sink   *alertSink
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	pgC, err := tcPostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcPostgres.WithDatabase("stockledger_test"),
		tcPostgres.WithUsername("stockledger"),
		tcPostgres.WithPassword("stockledger"),
		tcPostgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pgC.Terminate(ctx) })

	pgURL, err := pgC.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	rdC, err := tcRedis.RunContainer(ctx,
		testcontainers.WithImage("redis:7-alpine"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdC.Terminate(ctx) })

	rdURL, err := rdC.ConnectionString(ctx)
	require.NoError(t, err)

	cfg := &config.Config{
		Port:           8000,
		Env:            "test",
		AllowedOrigins: "*",
		FrontendURL:    "http://shelf.test",
		RateLimit:      1000,
		StoreDriver:    config.StoreDriverPostgres,
		DatabaseURL:    pgURL,
		DBScopedRole:   "warehouse_user",
		RedisURL:       rdURL,
		IdentityMode:   config.IdentityModeJWT,
		JWTSecret:      testSecret,
		WorkerPoolSize: 1,
	}

	db, err := infra.NewDatabase(cfg.DatabaseURL, cfg.DBScopedRole)
	require.NoError(t, err)
	rdb, err := infra.NewRedis(cfg.RedisURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	reg := metrics.NewRegistry()
	sink := &alertSink{}
	workerCtx, cancel := context.WithCancel(ctx)
	pool := worker.NewPool(rdb, sink, reg)
	pool.Start(workerCtx, cfg.WorkerPoolSize)
	t.Cleanup(func() { cancel(); pool.Wait() })

	codec := identity.NewJWTCodec(cfg.JWTSecret, cfg.JWTAudience)
	engine := New(cfg, Deps{
		Backend:  repository.NewPostgresBackend(db, cfg.DBScopedRole, nil),
		Codec:    codec,
		Redis:    rdb,
		Metrics:  reg,
		Notifier: worker.NewDispatcher(rdb, reg),
	})
	srv := httptest.NewServer(engine)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, codec: codec, sink: sink}
}

func (e *testEnv) token(t *testing.T, role string) string {
	t.Helper()
	tok, err := e.codec.Issue(model.Principal{ID: uuid.New(), Email: "e2e@example.com", Role: role}, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *testEnv) do(t *testing.T, method, path string, body any, token string) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

// ── Tests ────────────────────────────────────────────────────────────────────

func TestE2EStockCycle(t *testing.T) {
	env := setupTestEnv(t)
	staff := env.token(t, "authenticated")

	status, body := env.do(t, http.MethodPost, "/products", map[string]any{"name": "Widget", "sku": "W-1"}, staff)
	require.Equal(t, http.StatusCreated, status, body)
	id := body["product"].(map[string]any)["id"].(string)

	status, _ = env.do(t, http.MethodPost, "/products", map[string]any{"name": "Dup", "sku": "W-1"}, staff)
	assert.Equal(t, http.StatusConflict, status)

	for _, amount := range []int{50, -45, 3} {
		status, body = env.do(t, http.MethodPost, "/update-stock", map[string]any{"product_id": id, "change_amount": amount}, staff)
		require.Equal(t, http.StatusOK, status, body)
	}
	updated := body["updated_product"].(map[string]any)
	assert.EqualValues(t, 8, updated["stock_count"])
	assert.Equal(t, true, updated["low_stock"])

	// the last two changes left the product low, each queues one alert
	require.Eventually(t, func() bool { return env.sink.count() == 2 }, 10*time.Second, 50*time.Millisecond)

	status, body = env.do(t, http.MethodGet, "/low-stock", nil, staff)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["low_stock_products"], 1)

	viewer := env.token(t, repository.RoleViewer)
	status, _ = env.do(t, http.MethodPost, "/update-stock", map[string]any{"product_id": id, "change_amount": 1}, viewer)
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = env.do(t, http.MethodDelete, "/products/"+id, nil, staff)
	require.Equal(t, http.StatusOK, status)

	status, body = env.do(t, http.MethodGet, "/transactions?product_id="+id, nil, staff)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["transactions"], 3)

	status, body = env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "closed", body["circuit"])
}

func TestE2EExpiredCredential(t *testing.T) {
	env := setupTestEnv(t)
	expired, err := env.codec.Issue(model.Principal{ID: uuid.New()}, -time.Minute)
	require.NoError(t, err)

	status, body := env.do(t, http.MethodGet, "/products", nil, expired)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Authentication required", body["detail"])
}
