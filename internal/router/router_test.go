package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"stockledger/internal/config"
	"stockledger/internal/identity"
	"stockledger/internal/metrics"
	"stockledger/internal/model"
	"stockledger/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

const testSecret = "0123456789abcdef0123456789abcdef"

type captureNotifier struct {
	mu     sync.Mutex
	alerts []model.LowStockAlert
}

func (n *captureNotifier) NotifyLowStock(_ context.Context, a model.LowStockAlert) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.alerts = append(n.alerts, a)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Env:            "development",
		AllowedOrigins: "http://app.test",
		FrontendURL:    "http://app.test",
		RateLimit:      1000,
	}
}

func TestRoutesWired(t *testing.T) {
	codec := identity.NewJWTCodec(testSecret, "")
	notifier := &captureNotifier{}
	r := New(testConfig(), Deps{
		Backend:  repository.NewMemoryBackend(nil),
		Codec:    codec,
		Metrics:  metrics.NewRegistry(),
		Notifier: notifier,
	})

	tok, err := codec.Issue(model.Principal{ID: uuid.New(), Role: "authenticated"}, time.Hour)
	require.NoError(t, err)

	call := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+tok)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/", "").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/health", "").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/products", "").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/transactions", "").Code)
	assert.Equal(t, http.StatusOK, call(http.MethodGet, "/low-stock", "").Code)
	assert.Equal(t, http.StatusNotFound, call(http.MethodGet, "/nowhere", "").Code)

	w := call(http.MethodPost, "/products", `{"name":"Widget","sku":"W-1"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = call(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "stockledger_http_request_duration_seconds")
}

func TestLowStockChangeNotifies(t *testing.T) {
	codec := identity.NewJWTCodec(testSecret, "")
	notifier := &captureNotifier{}
	r := New(testConfig(), Deps{
		Backend:  repository.NewMemoryBackend(nil),
		Codec:    codec,
		Metrics:  metrics.NewRegistry(),
		Notifier: notifier,
	})
	tok, err := codec.Issue(model.Principal{ID: uuid.New()}, time.Hour)
	require.NoError(t, err)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Authorization", "Bearer "+tok)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/products", `{"name":"Widget","sku":"W-1","reorder_level":5}`)
	require.Equal(t, http.StatusCreated, w.Code)
	id := strings.Split(strings.Split(w.Body.String(), `"id":"`)[1], `"`)[0]

	w = do(http.MethodPost, "/update-stock", `{"product_id":"`+id+`","change_amount":3}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.alerts, 1)
	assert.Equal(t, "W-1", notifier.alerts[0].SKU)
	assert.EqualValues(t, 3, notifier.alerts[0].CurrentStock)
}
