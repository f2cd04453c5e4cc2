package cart

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/luxefashion/shop/internal/cartstore"
	"github.com/luxefashion/shop/internal/config"
	"github.com/luxefashion/shop/internal/models"
	"github.com/luxefashion/shop/internal/session"
)

func newTestHandler(t *testing.T) (*CartHandler, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	store := &cartstore.Store{
		DB:                    db,
		FreeShippingThreshold: 500000,
		ShippingFee:           30000,
	}
	return &CartHandler{Store: store, JWTSecret: []byte("test-secret")}, db
}

func newRequest(method, target, body string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	req.AddCookie(&http.Cookie{Name: session.SessionCookie, Value: "test-session"})
	return req
}

func seedProduct(t *testing.T, db *gorm.DB, price float64, stockQty int) models.Product {
	t.Helper()
	p := models.Product{
		Name:          "test product",
		Slug:          "test-product",
		Price:         price,
		Status:        "active",
		StockQuantity: stockQty,
	}
	require.NoError(t, db.Create(&p).Error)
	return p
}

func TestAddToCartEndpoint(t *testing.T) {
	h, db := newTestHandler(t)
	prod := seedProduct(t, db, 100000, 10)

	e := echo.New()
	req := newRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id": `+jsonUint(prod.ID)+`, "quantity": 2}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.NotNil(t, resp.Cart)
	require.Len(t, resp.Cart.Items, 1)
	require.Equal(t, 2, resp.Cart.Items[0].Quantity)
	require.Equal(t, 200000.0, resp.Cart.Subtotal)
	require.Equal(t, 230000.0, resp.Cart.Total)
}

func TestAddToCartInsufficientStock(t *testing.T) {
	h, db := newTestHandler(t)
	prod := seedProduct(t, db, 100000, 2)

	e := echo.New()
	req := newRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id": `+jsonUint(prod.ID)+`, "quantity": 5}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.Equal(t, "only 2 left in stock", resp.Message)
}

func TestAddToCartUnknownProduct(t *testing.T) {
	h, _ := newTestHandler(t)

	e := echo.New()
	req := newRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id": 9999, "quantity": 1}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	require.NoError(t, h.AddToCart(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.False(t, resp.Success)
}

func TestUpdateItemEndpoint(t *testing.T) {
	h, db := newTestHandler(t)
	prod := seedProduct(t, db, 100000, 10)

	e := echo.New()
	addReq := newRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id": `+jsonUint(prod.ID)+`, "quantity": 1}`)
	addRec := httptest.NewRecorder()
	require.NoError(t, h.AddToCart(e.NewContext(addReq, addRec)))

	var addResp cartResponse
	require.NoError(t, json.Unmarshal(addRec.Body.Bytes(), &addResp))
	itemID := addResp.Cart.Items[0].ID

	req := newRequest(http.MethodPatch, "/api/v1/cart/items/1", `{"quantity": 4}`)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(jsonUint(itemID))

	require.NoError(t, h.UpdateItem(c))

	var resp cartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, 4, resp.Cart.Items[0].Quantity)
}

func TestCountEndpoint(t *testing.T) {
	h, db := newTestHandler(t)
	prod := seedProduct(t, db, 100000, 10)

	e := echo.New()
	addReq := newRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id": `+jsonUint(prod.ID)+`, "quantity": 3}`)
	require.NoError(t, h.AddToCart(e.NewContext(addReq, httptest.NewRecorder())))

	req := newRequest(http.MethodGet, "/api/v1/cart/count", "")
	rec := httptest.NewRecorder()
	require.NoError(t, h.Count(e.NewContext(req, rec)))

	var resp map[string]int
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 3, resp["count"])
}

func TestApplyCouponEndpoint(t *testing.T) {
	h, db := newTestHandler(t)
	prod := seedProduct(t, db, 100000, 10)
	cpn := models.Coupon{
		Code: "SAVE", DiscountType: "fixed", DiscountValue: 20000, IsActive: true,
		StartDate: time.Now().Add(-time.Hour), EndDate: time.Now().Add(time.Hour),
	}
	require.NoError(t, db.Create(&cpn).Error)

	e := echo.New()
	addReq := newRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id": `+jsonUint(prod.ID)+`, "quantity": 1}`)
	require.NoError(t, h.AddToCart(e.NewContext(addReq, httptest.NewRecorder())))

	req := newRequest(http.MethodPost, "/api/v1/cart/coupon", `{"code": "SAVE"}`)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ApplyCoupon(e.NewContext(req, rec)))

	var resp struct {
		Success  bool    `json:"success"`
		NewTotal float64 `json:"new_total"`
		Coupon   struct {
			Discount float64 `json:"discount"`
		} `json:"coupon"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	require.Equal(t, 20000.0, resp.Coupon.Discount)
	// 100000 + 30000 shipping - 20000.
	require.Equal(t, 110000.0, resp.NewTotal)
}

func TestApplyCouponInvalid(t *testing.T) {
	h, db := newTestHandler(t)
	prod := seedProduct(t, db, 100000, 10)

	e := echo.New()
	addReq := newRequest(http.MethodPost, "/api/v1/cart/items",
		`{"product_id": `+jsonUint(prod.ID)+`, "quantity": 1}`)
	require.NoError(t, h.AddToCart(e.NewContext(addReq, httptest.NewRecorder())))

	req := newRequest(http.MethodPost, "/api/v1/cart/coupon", `{"code": "NOPE"}`)
	rec := httptest.NewRecorder()
	require.NoError(t, h.ApplyCoupon(e.NewContext(req, rec)))

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, false, resp["success"])
}

func jsonUint(v uint) string {
	return strconv.FormatUint(uint64(v), 10)
}
