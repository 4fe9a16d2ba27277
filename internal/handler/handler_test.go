package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockledger/internal/identity"
	"stockledger/internal/infra"
	"stockledger/internal/metrics"
	"stockledger/internal/middleware"
	"stockledger/internal/model"
	"stockledger/internal/repository"
	"stockledger/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() { gin.SetMode(gin.TestMode) }

const testSecret = "0123456789abcdef0123456789abcdef"

// ── Fixture ───────────────────────────────────────────────────────────────────

type fixture struct {
	t       *testing.T
	engine  *gin.Engine
	backend *repository.MemoryBackend
	codec   *identity.JWTCodec
}

func newFixture(t *testing.T) *fixture {
	m := metrics.NewRegistry()
	backend := repository.NewMemoryBackend(nil)
	codec := identity.NewJWTCodec(testSecret, "")
	delegator := identity.NewDelegator(codec, backend, m)

	catalog := service.NewCatalogService(m)
	ledger := service.NewLedgerStore(m)
	projection := service.NewStockProjection(m)
	ledgerSvc := service.NewLedgerService(catalog, ledger, projection, nil, m)

	products := NewProductsHandler(catalog, projection, infra.NewQRCodec("http://shelf.test"))
	stock := NewStockHandler(ledgerSvc, ledger, catalog, projection)

	r := gin.New()
	r.GET("/", Root)
	r.GET("/health", Health(backend, nil))
	api := r.Group("/", middleware.Delegate(delegator))
	api.GET("/products", products.List)
	api.POST("/products", products.Create)
	api.GET("/products/lookup", products.Lookup)
	api.GET("/products/:id", products.Get)
	api.PUT("/products/:id", products.Update)
	api.DELETE("/products/:id", products.Delete)
	api.GET("/products/:id/qr-code", products.QRCode)
	api.POST("/update-stock", stock.UpdateStock)
	api.GET("/transactions", stock.Transactions)
	api.GET("/low-stock", stock.LowStock)

	return &fixture{t: t, engine: r, backend: backend, codec: codec}
}

func (f *fixture) token(role string) string {
	tok, err := f.codec.Issue(model.Principal{ID: uuid.New(), Email: "clerk@example.com", Role: role}, time.Hour)
	require.NoError(f.t, err)
	return tok
}

func (f *fixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (f *fixture) createProduct(token, name, sku string) string {
	w := f.do(http.MethodPost, "/products", token, gin.H{"name": name, "sku": sku})
	require.Equal(f.t, http.StatusCreated, w.Code, w.Body.String())
	return decode(f.t, w)["product"].(map[string]interface{})["id"].(string)
}

// ── Public routes ─────────────────────────────────────────────────────────────

func TestRootAndHealth(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/", "", nil)
	assert.JSONEq(t, `{"message":"Warehouse Management API","version":"1.0.0"}`, w.Body.String())

	w = f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true,"store":"connected","redis":"disabled"}`, w.Body.String())

	f.backend.SetUnavailable(true)
	w = f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestHealthReportsRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r := gin.New()
	r.GET("/health", Health(repository.NewMemoryBackend(nil), rdb))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"redis":"connected"`)
}

func TestProtectedRoutesRequireCredential(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/products", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	expired, err := f.codec.Issue(model.Principal{ID: uuid.New()}, -time.Minute)
	require.NoError(t, err)
	w = f.do(http.MethodGet, "/products", expired, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Zero(t, f.backend.Calls())
}

// ── Products ──────────────────────────────────────────────────────────────────

func TestCreateProduct(t *testing.T) {
	f := newFixture(t)
	tok := f.token("authenticated")

	w := f.do(http.MethodPost, "/products", tok, gin.H{"name": "Widget", "sku": "W-1"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Product created successfully", body["message"])
	product := body["product"].(map[string]interface{})
	assert.Equal(t, "W-1", product["sku"])
	assert.EqualValues(t, 0, product["stock_count"])
	assert.EqualValues(t, 10, product["reorder_level"])
	assert.Equal(t, true, product["low_stock"])

	w = f.do(http.MethodPost, "/products", tok, gin.H{"name": "Other", "sku": "W-1"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(http.MethodPost, "/products", tok, gin.H{"sku": "W-2"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(http.MethodPost, "/products", tok, gin.H{"name": "Bad", "sku": "has space"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/products", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	f.engine.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetUpdateDeleteProduct(t *testing.T) {
	f := newFixture(t)
	tok := f.token("authenticated")
	id := f.createProduct(tok, "Widget", "W-1")

	w := f.do(http.MethodGet, "/products/not-a-uuid", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/products/"+uuid.NewString(), tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = f.do(http.MethodPut, "/products/"+id, tok, gin.H{"reorder_level": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	product := decode(t, w)["product"].(map[string]interface{})
	assert.Equal(t, "Widget", product["name"])
	assert.EqualValues(t, 3, product["reorder_level"])

	w = f.do(http.MethodDelete, "/products/"+id, tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = f.do(http.MethodGet, "/products/"+id, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = f.do(http.MethodDelete, "/products/"+id, tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListProductsCarriesStock(t *testing.T) {
	f := newFixture(t)
	tok := f.token("authenticated")
	b := f.createProduct(tok, "Bolt", "B-1")
	f.createProduct(tok, "Anchor", "A-1")

	w := f.do(http.MethodPost, "/update-stock", tok, gin.H{"product_id": b, "change_amount": 25})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = f.do(http.MethodGet, "/products", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	products := decode(t, w)["products"].([]interface{})
	require.Len(t, products, 2)
	assert.Equal(t, "Anchor", products[0].(map[string]interface{})["name"])
	assert.EqualValues(t, 0, products[0].(map[string]interface{})["stock_count"])
	assert.EqualValues(t, 25, products[1].(map[string]interface{})["stock_count"])
	assert.Equal(t, false, products[1].(map[string]interface{})["low_stock"])
}

func TestViewerCannotWrite(t *testing.T) {
	f := newFixture(t)
	id := f.createProduct(f.token("authenticated"), "Widget", "W-1")
	viewer := f.token(repository.RoleViewer)

	w := f.do(http.MethodPost, "/products", viewer, gin.H{"name": "X", "sku": "X-1"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.JSONEq(t, `{"detail":"Not permitted"}`, w.Body.String())

	w = f.do(http.MethodPost, "/update-stock", viewer, gin.H{"product_id": id, "change_amount": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Zero(t, f.backend.LedgerLen())

	w = f.do(http.MethodGet, "/products/"+id, viewer, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

// ── QR codes ──────────────────────────────────────────────────────────────────

func TestQRCodeAndLookup(t *testing.T) {
	f := newFixture(t)
	tok := f.token("authenticated")
	id := f.createProduct(tok, "Widget", "W-1")

	w := f.do(http.MethodGet, "/products/"+id+"/qr-code", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "http://shelf.test/product/"+id, body["qr_code_data"])
	assert.True(t, strings.HasPrefix(body["qr_code_image"].(string), "data:image/png;base64,"))

	w = f.do(http.MethodGet, "/products/lookup?code=http://shelf.test/product/"+id, tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["product"].(map[string]interface{})["id"])

	w = f.do(http.MethodGet, "/products/lookup?code=garbage", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(http.MethodGet, "/products/lookup?code="+uuid.NewString(), tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ── Stock ─────────────────────────────────────────────────────────────────────

func TestUpdateStockFlow(t *testing.T) {
	f := newFixture(t)
	tok := f.token("authenticated")
	id := f.createProduct(tok, "Widget", "W-1")

	w := f.do(http.MethodPost, "/update-stock", tok, gin.H{"product_id": id, "change_amount": 50, "notes": "delivery"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "Stock updated successfully", body["message"])
	assert.EqualValues(t, 50, body["updated_product"].(map[string]interface{})["stock_count"])
	assert.Equal(t, "delivery", body["transaction"].(map[string]interface{})["notes"])

	w = f.do(http.MethodPost, "/update-stock", tok, gin.H{"product_id": id, "change_amount": -45})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode(t, w)["updated_product"].(map[string]interface{})
	assert.EqualValues(t, 5, updated["stock_count"])
	assert.Equal(t, true, updated["low_stock"])

	w = f.do(http.MethodPost, "/update-stock", tok, gin.H{"product_id": id, "change_amount": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(http.MethodPost, "/update-stock", tok, gin.H{"product_id": uuid.NewString(), "change_amount": 5})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 2, f.backend.LedgerLen())
}

func TestUpdateStockRejectsAmountOutsideColumnRange(t *testing.T) {
	f := newFixture(t)
	tok := f.token("authenticated")
	id := f.createProduct(tok, "Girder", "G-1")

	for _, amount := range []int64{3_000_000_000, -3_000_000_000, 2_147_483_648} {
		w := f.do(http.MethodPost, "/update-stock", tok, gin.H{"product_id": id, "change_amount": amount})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "amount %d", amount)
	}
	assert.Equal(t, 0, f.backend.LedgerLen())

	w := f.do(http.MethodPost, "/update-stock", tok, gin.H{"product_id": id, "change_amount": 2_147_483_647})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestTransactionsAndLowStock(t *testing.T) {
	f := newFixture(t)
	tok := f.token("authenticated")
	a := f.createProduct(tok, "Anchor", "A-1")
	b := f.createProduct(tok, "Bolt", "B-1")

	for _, change := range []gin.H{
		{"product_id": a, "change_amount": 20},
		{"product_id": b, "change_amount": 4},
		{"product_id": a, "change_amount": -1},
	} {
		require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/update-stock", tok, change).Code)
	}

	w := f.do(http.MethodGet, "/transactions", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	txs := decode(t, w)["transactions"].([]interface{})
	require.Len(t, txs, 3)
	assert.EqualValues(t, -1, txs[0].(map[string]interface{})["change_amount"])
	assert.Equal(t, "Anchor", txs[0].(map[string]interface{})["product_name"])

	w = f.do(http.MethodGet, "/transactions?product_id="+b, tok, nil)
	assert.Len(t, decode(t, w)["transactions"].([]interface{}), 1)

	w = f.do(http.MethodGet, "/transactions?limit=1", tok, nil)
	assert.Len(t, decode(t, w)["transactions"].([]interface{}), 1)

	w = f.do(http.MethodGet, "/transactions?product_id=nope", tok, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = f.do(http.MethodGet, "/low-stock", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	low := decode(t, w)["low_stock_products"].([]interface{})
	require.Len(t, low, 1)
	assert.Equal(t, b, low[0].(map[string]interface{})["id"])
	assert.EqualValues(t, 4, low[0].(map[string]interface{})["stock_count"])

	// deleting a product keeps its history, without the catalog fields
	require.Equal(t, http.StatusOK, f.do(http.MethodDelete, "/products/"+b, tok, nil).Code)
	w = f.do(http.MethodGet, "/transactions?product_id="+b, tok, nil)
	txs = decode(t, w)["transactions"].([]interface{})
	require.Len(t, txs, 1)
	_, named := txs[0].(map[string]interface{})["product_name"]
	assert.False(t, named)
}
