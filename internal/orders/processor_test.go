package orders

import (
	"context"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/luxefashion/shop/internal/cartstore"
	"github.com/luxefashion/shop/internal/config"
	"github.com/luxefashion/shop/internal/models"
	"github.com/luxefashion/shop/internal/session"
	"github.com/luxefashion/shop/internal/stock"
)

func newTestProcessor(t *testing.T) *Processor {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to in-memory db: %v", err)
	}
	if err := config.Migrate(db); err != nil {
		t.Fatalf("failed to migrate tables: %v", err)
	}

	cart := &cartstore.Store{
		DB:                    db,
		FreeShippingThreshold: 500000,
		ShippingFee:           30000,
	}
	return &Processor{
		DB:                    db,
		Cart:                  cart,
		FreeShippingThreshold: 500000,
		ShippingFee:           30000,
		OrdersPerPage:         10,
	}
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

func guest(sessionID string) session.Owner {
	return session.Owner{SessionID: sessionID}
}

func validRequest() CreateRequest {
	return CreateRequest{
		CustomerName:    "Linh Tran",
		CustomerEmail:   "linh@example.com",
		CustomerPhone:   "0901234567",
		ShippingAddress: "1 Nguyen Hue, District 1",
		PaymentMethod:   MethodCOD,
	}
}

func TestCreateFullCart(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 200000, 10)
	owner := guest("sess-1")

	_, err := p.Cart.Add(context.Background(), owner, prod.ID, 3, nil)
	require.NoError(t, err)

	result, err := p.Create(context.Background(), owner, validRequest())
	require.NoError(t, err)
	require.NotZero(t, result.OrderID)
	require.True(t, strings.HasPrefix(result.OrderCode, "LX"))
	require.Len(t, result.OrderCode, 14)

	order, err := p.GetByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, order.OrderStatus)
	require.Equal(t, PaymentPending, order.PaymentStatus)
	require.Equal(t, 600000.0, order.Subtotal)
	require.Equal(t, 0.0, order.ShippingFee)
	require.Equal(t, 600000.0, order.TotalAmount)

	var itemsTotal float64
	for _, item := range order.Items {
		itemsTotal += item.TotalPrice
	}
	require.Equal(t, order.Subtotal, itemsTotal)

	var reloaded models.Product
	require.NoError(t, p.DB.First(&reloaded, prod.ID).Error)
	require.Equal(t, 7, reloaded.StockQuantity)
	require.Equal(t, 3, reloaded.SoldCount)

	view, err := p.Cart.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Empty(t, view.Items)
}

func TestCreateFlatShippingFee(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)
	owner := guest("sess-1")

	_, err := p.Cart.Add(context.Background(), owner, prod.ID, 1, nil)
	require.NoError(t, err)

	result, err := p.Create(context.Background(), owner, validRequest())
	require.NoError(t, err)

	order, err := p.GetByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, 100000.0, order.Subtotal)
	require.Equal(t, 30000.0, order.ShippingFee)
	require.Equal(t, 130000.0, order.TotalAmount)
}

func TestCreateBankTransferMarkedPaid(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)
	owner := guest("sess-1")

	_, err := p.Cart.Add(context.Background(), owner, prod.ID, 1, nil)
	require.NoError(t, err)

	req := validRequest()
	req.PaymentMethod = MethodBankTransfer
	result, err := p.Create(context.Background(), owner, req)
	require.NoError(t, err)

	order, err := p.GetByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, PaymentPaid, order.PaymentStatus)
}

func TestCreatePartialLeavesRestUntouched(t *testing.T) {
	p := newTestProcessor(t)
	prod1 := seedProduct(t, p.DB, 100000, 10)
	prod2 := seedProduct(t, p.DB, 150000, 10)
	owner := guest("sess-1")

	_, err := p.Cart.Add(context.Background(), owner, prod1.ID, 2, nil)
	require.NoError(t, err)
	view, err := p.Cart.Add(context.Background(), owner, prod2.ID, 1, nil)
	require.NoError(t, err)

	var keepID, checkoutID uint
	for _, item := range view.Items {
		if item.ProductID == prod1.ID {
			checkoutID = item.ID
		} else {
			keepID = item.ID
		}
	}

	req := validRequest()
	req.Items = []uint{checkoutID}
	result, err := p.Create(context.Background(), owner, req)
	require.NoError(t, err)

	order, err := p.GetByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	require.Equal(t, prod1.ID, order.Items[0].ProductID)
	require.Equal(t, 200000.0, order.Subtotal)

	view, err = p.Cart.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	require.Equal(t, keepID, view.Items[0].ID)
}

func TestCreateEmptySelection(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)
	owner := guest("sess-1")

	_, err := p.Cart.Add(context.Background(), owner, prod.ID, 1, nil)
	require.NoError(t, err)

	req := validRequest()
	req.Items = []uint{9999}
	_, err = p.Create(context.Background(), owner, req)
	require.ErrorIs(t, err, ErrEmptySelection)
}

func TestCreateEmptyCart(t *testing.T) {
	p := newTestProcessor(t)

	_, err := p.Create(context.Background(), guest("sess-1"), validRequest())
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateValidationFailFast(t *testing.T) {
	p := newTestProcessor(t)

	req := validRequest()
	req.CustomerName = ""
	req.CustomerEmail = ""
	_, err := p.Create(context.Background(), guest("sess-1"), req)
	require.ErrorIs(t, err, ErrValidation)
	require.Contains(t, err.Error(), "customer_name")
}

func TestCreateInsufficientStockAbortsEverything(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 3)
	owner := guest("sess-1")

	_, err := p.Cart.Add(context.Background(), owner, prod.ID, 3, nil)
	require.NoError(t, err)

	// Someone else buys one unit between add and checkout.
	require.NoError(t, p.DB.Model(&models.Product{}).
		Where("id = ?", prod.ID).
		Update("stock_quantity", 2).Error)

	_, err = p.Create(context.Background(), owner, validRequest())
	var insufficient *stock.InsufficientError
	require.ErrorAs(t, err, &insufficient)
	require.Equal(t, 2, insufficient.Remaining)

	var orderCount, itemCount int64
	require.NoError(t, p.DB.Model(&models.Order{}).Count(&orderCount).Error)
	require.NoError(t, p.DB.Model(&models.OrderItem{}).Count(&itemCount).Error)
	require.EqualValues(t, 0, orderCount)
	require.EqualValues(t, 0, itemCount)

	var reloaded models.Product
	require.NoError(t, p.DB.First(&reloaded, prod.ID).Error)
	require.Equal(t, 2, reloaded.StockQuantity)
	require.Equal(t, 0, reloaded.SoldCount)

	view, err := p.Cart.Get(context.Background(), owner)
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
}

func TestCreateIncrementsCouponUsage(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)
	owner := guest("sess-1")

	cpn := models.Coupon{
		Code: "SAVE", DiscountType: "fixed", DiscountValue: 10000, IsActive: true,
	}
	require.NoError(t, p.DB.Create(&cpn).Error)

	_, err := p.Cart.Add(context.Background(), owner, prod.ID, 1, nil)
	require.NoError(t, err)

	code := "SAVE"
	req := validRequest()
	req.CouponCode = &code
	req.DiscountAmount = 10000
	result, err := p.Create(context.Background(), owner, req)
	require.NoError(t, err)

	order, err := p.GetByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	// 100000 + 30000 shipping - 10000 discount.
	require.Equal(t, 120000.0, order.TotalAmount)

	var reloaded models.Coupon
	require.NoError(t, p.DB.First(&reloaded, cpn.ID).Error)
	require.Equal(t, 1, reloaded.UsedCount)
}

func TestCreateVariantSnapshot(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)
	v := models.ProductVariant{ProductID: prod.ID, Size: "L", Color: "Navy", StockQuantity: 5}
	require.NoError(t, p.DB.Create(&v).Error)
	owner := guest("sess-1")

	_, err := p.Cart.Add(context.Background(), owner, prod.ID, 2, &v.ID)
	require.NoError(t, err)

	result, err := p.Create(context.Background(), owner, validRequest())
	require.NoError(t, err)

	order, err := p.GetByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	require.NotNil(t, order.Items[0].VariantInfo)
	require.Equal(t, "Size: L, Color: Navy", *order.Items[0].VariantInfo)

	var reloadedVariant models.ProductVariant
	require.NoError(t, p.DB.First(&reloadedVariant, v.ID).Error)
	require.Equal(t, 3, reloadedVariant.StockQuantity)
}

func createOrder(t *testing.T, p *Processor, owner session.Owner, prod models.Product, qty int) *CreateResult {
	t.Helper()
	_, err := p.Cart.Add(context.Background(), owner, prod.ID, qty, nil)
	require.NoError(t, err)
	result, err := p.Create(context.Background(), owner, validRequest())
	require.NoError(t, err)
	return result
}

func TestCancelRestoresStock(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)

	result := createOrder(t, p, guest("sess-1"), prod, 4)

	var afterCheckout models.Product
	require.NoError(t, p.DB.First(&afterCheckout, prod.ID).Error)
	require.Equal(t, 6, afterCheckout.StockQuantity)
	require.Equal(t, 4, afterCheckout.SoldCount)

	require.NoError(t, p.Cancel(context.Background(), result.OrderID, nil))

	order, err := p.GetByID(context.Background(), result.OrderID)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, order.OrderStatus)

	var restored models.Product
	require.NoError(t, p.DB.First(&restored, prod.ID).Error)
	require.Equal(t, 10, restored.StockQuantity)
	require.Equal(t, 0, restored.SoldCount)
}

func TestCancelUnknownOrder(t *testing.T) {
	p := newTestProcessor(t)
	require.ErrorIs(t, p.Cancel(context.Background(), 42, nil), ErrNotFound)
}

func TestCancelForeignOrderForbidden(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)

	uid := uint(7)
	owner := session.Owner{UserID: &uid, SessionID: "sess-1"}
	result := createOrder(t, p, owner, prod, 1)

	other := uint(8)
	require.ErrorIs(t, p.Cancel(context.Background(), result.OrderID, &other), ErrForbidden)

	require.NoError(t, p.Cancel(context.Background(), result.OrderID, &uid))
}

func TestCancelInvalidState(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)

	result := createOrder(t, p, guest("sess-1"), prod, 1)

	require.NoError(t, p.UpdateStatus(context.Background(), result.OrderID, StatusConfirmed))
	require.NoError(t, p.UpdateStatus(context.Background(), result.OrderID, StatusProcessing))

	err := p.Cancel(context.Background(), result.OrderID, nil)
	require.ErrorIs(t, err, ErrInvalidState)

	var reloaded models.Product
	require.NoError(t, p.DB.First(&reloaded, prod.ID).Error)
	require.Equal(t, 9, reloaded.StockQuantity)
}

func TestTrack(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)

	result := createOrder(t, p, guest("sess-1"), prod, 1)

	byEmail, err := p.Track(context.Background(), result.OrderCode, "linh@example.com")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	require.Len(t, byEmail.Items, 1)

	byPhone, err := p.Track(context.Background(), result.OrderCode, "0901234567")
	require.NoError(t, err)
	require.NotNil(t, byPhone)

	miss, err := p.Track(context.Background(), result.OrderCode, "stranger@example.com")
	require.NoError(t, err)
	require.Nil(t, miss)

	miss, err = p.Track(context.Background(), "LX000000FFFFFF", "linh@example.com")
	require.NoError(t, err)
	require.Nil(t, miss)
}

func TestGetByUserPagination(t *testing.T) {
	p := newTestProcessor(t)
	p.OrdersPerPage = 2
	prod := seedProduct(t, p.DB, 100000, 100)

	uid := uint(7)
	owner := session.Owner{UserID: &uid, SessionID: "sess-1"}
	for i := 0; i < 3; i++ {
		createOrder(t, p, owner, prod, 1)
	}

	page1, err := p.GetByUser(context.Background(), uid, 1)
	require.NoError(t, err)
	require.EqualValues(t, 3, page1.Total)
	require.EqualValues(t, 2, page1.TotalPages)
	require.Len(t, page1.Data, 2)
	require.Len(t, page1.Data[0].Items, 1)

	page2, err := p.GetByUser(context.Background(), uid, 2)
	require.NoError(t, err)
	require.Len(t, page2.Data, 1)
}

func TestStatusTransitions(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)

	result := createOrder(t, p, guest("sess-1"), prod, 1)
	id := result.OrderID

	require.ErrorIs(t, p.UpdateStatus(context.Background(), id, StatusShipping), ErrInvalidState)

	require.NoError(t, p.UpdateStatus(context.Background(), id, StatusConfirmed))
	require.NoError(t, p.UpdateStatus(context.Background(), id, StatusProcessing))
	require.NoError(t, p.UpdateStatus(context.Background(), id, StatusShipping))

	order, err := p.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, order.ShippedAt)
	require.Nil(t, order.DeliveredAt)

	require.NoError(t, p.UpdateStatus(context.Background(), id, StatusDelivered))
	order, err = p.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, order.DeliveredAt)

	require.ErrorIs(t, p.UpdateStatus(context.Background(), id, StatusPending), ErrInvalidState)
}

func TestCancelViaUpdateStatusRestoresStock(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)

	result := createOrder(t, p, guest("sess-1"), prod, 2)

	require.NoError(t, p.UpdateStatus(context.Background(), result.OrderID, StatusCancelled))

	var reloaded models.Product
	require.NoError(t, p.DB.First(&reloaded, prod.ID).Error)
	require.Equal(t, 10, reloaded.StockQuantity)
}

func TestPaymentTransitions(t *testing.T) {
	p := newTestProcessor(t)
	prod := seedProduct(t, p.DB, 100000, 10)

	result := createOrder(t, p, guest("sess-1"), prod, 1)
	id := result.OrderID

	require.ErrorIs(t, p.UpdatePaymentStatus(context.Background(), id, PaymentRefunded), ErrInvalidState)

	require.NoError(t, p.UpdatePaymentStatus(context.Background(), id, PaymentPaid))
	require.NoError(t, p.UpdatePaymentStatus(context.Background(), id, PaymentRefunded))

	order, err := p.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.Equal(t, PaymentRefunded, order.PaymentStatus)
}

func TestGenerateOrderCodeShape(t *testing.T) {
	code := GenerateOrderCode()
	require.True(t, strings.HasPrefix(code, "LX"))
	require.Len(t, code, 14)
	require.Equal(t, strings.ToUpper(code), code)
}
