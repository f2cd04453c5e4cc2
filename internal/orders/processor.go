// Package orders converts cart snapshots into persisted orders and manages
// their lifecycle. Checkout and cancellation are each a single transaction;
// a stock guard failure inside either aborts the whole unit.
package orders

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/luxefashion/shop/internal/cartstore"
	"github.com/luxefashion/shop/internal/config"
	"github.com/luxefashion/shop/internal/logging"
	"github.com/luxefashion/shop/internal/models"
	"github.com/luxefashion/shop/internal/session"
	"github.com/luxefashion/shop/internal/stock"
)

var (
	ErrValidation     = errors.New("validation")
	ErrNotFound       = errors.New("order not found")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidState   = errors.New("invalid order state")
	ErrEmptySelection = errors.New("no selected items in cart")
	ErrEmptyCart      = errors.New("cart is empty")
)

const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusShipping   = "shipping"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
	StatusReturned   = "returned"

	PaymentPending  = "pending"
	PaymentPaid     = "paid"
	PaymentFailed   = "failed"
	PaymentRefunded = "refunded"

	MethodCOD          = "cod"
	MethodBankTransfer = "bank_transfer"
)

var orderTransitions = map[string][]string{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusCancelled},
	StatusProcessing: {StatusShipping},
	StatusShipping:   {StatusDelivered},
	StatusDelivered:  {StatusReturned},
}

var paymentTransitions = map[string][]string{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentPaid:    {PaymentRefunded},
}

type Processor struct {
	DB                    *gorm.DB
	Cart                  *cartstore.Store
	FreeShippingThreshold float64
	ShippingFee           float64
	OrdersPerPage         int
}

func New(db *gorm.DB, cart *cartstore.Store, cfg *config.Config) *Processor {
	return &Processor{
		DB:                    db,
		Cart:                  cart,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ShippingFee:           cfg.ShippingFee,
		OrdersPerPage:         cfg.OrdersPerPage,
	}
}

type CreateRequest struct {
	CustomerName    string   `json:"customer_name"`
	CustomerEmail   string   `json:"customer_email"`
	CustomerPhone   string   `json:"customer_phone"`
	ShippingAddress string   `json:"shipping_address"`
	Items           []uint   `json:"items,omitempty"`
	Subtotal        *float64 `json:"subtotal,omitempty"`
	ShippingFee     *float64 `json:"shipping_fee,omitempty"`
	DiscountAmount  float64  `json:"discount_amount,omitempty"`
	CouponCode      *string  `json:"coupon_code,omitempty"`
	PaymentMethod   string   `json:"payment_method"`
	Notes           *string  `json:"notes,omitempty"`
}

type CreateResult struct {
	OrderID   uint   `json:"order_id"`
	OrderCode string `json:"order_code"`
}

type OrderWithItems struct {
	models.Order
	Items []models.OrderItem `json:"items"`
}

type Page struct {
	Data       []OrderWithItems `json:"data"`
	Total      int64            `json:"total"`
	Page       int              `json:"page"`
	PerPage    int              `json:"per_page"`
	TotalPages int64            `json:"total_pages"`
}

func (r *CreateRequest) validate() error {
	required := []struct {
		field, value string
	}{
		{"customer_name", r.CustomerName},
		{"customer_email", r.CustomerEmail},
		{"customer_phone", r.CustomerPhone},
		{"shipping_address", r.ShippingAddress},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s is required", ErrValidation, f.field)
		}
	}
	return nil
}

// Create converts the owner's cart, or the selected subset of it, into an
// order. Header, items, stock decrements, sold counts, coupon usage and
// cart removal commit together or not at all.
func (p *Processor) Create(ctx context.Context, owner session.Owner, req CreateRequest) (*CreateResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	paymentMethod := req.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = MethodCOD
	}
	// Bank-transfer orders trust the client-side QR flow and start out
	// paid; COD stays pending until delivery.
	paymentStatus := PaymentPending
	if paymentMethod == MethodBankTransfer {
		paymentStatus = PaymentPaid
	}

	var result CreateResult

	txErr := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cartID, err := p.Cart.CartIDInTx(tx, owner)
		if err != nil {
			return err
		}
		view, err := p.Cart.ViewInTx(tx, cartID)
		if err != nil {
			return err
		}

		partial := len(req.Items) > 0

		var checkout []cartstore.ItemView
		if partial {
			wanted := make(map[uint]bool, len(req.Items))
			for _, id := range req.Items {
				wanted[id] = true
			}
			for _, item := range view.Items {
				if wanted[item.ID] {
					checkout = append(checkout, item)
				}
			}
			if len(checkout) == 0 {
				return ErrEmptySelection
			}
		} else {
			if len(view.Items) == 0 {
				return ErrEmptyCart
			}
			checkout = view.Items
		}

		subtotal := 0.0
		if req.Subtotal != nil {
			subtotal = *req.Subtotal
		} else {
			for _, item := range checkout {
				subtotal += item.Subtotal
			}
		}

		shippingFee := 0.0
		if req.ShippingFee != nil {
			shippingFee = *req.ShippingFee
		} else if subtotal < p.FreeShippingThreshold {
			shippingFee = p.ShippingFee
		}

		totalAmount := subtotal + shippingFee - req.DiscountAmount

		order := models.Order{
			UserID:          owner.UserID,
			OrderCode:       GenerateOrderCode(),
			CustomerName:    req.CustomerName,
			CustomerEmail:   req.CustomerEmail,
			CustomerPhone:   req.CustomerPhone,
			ShippingAddress: req.ShippingAddress,
			Subtotal:        subtotal,
			ShippingFee:     shippingFee,
			DiscountAmount:  req.DiscountAmount,
			TotalAmount:     totalAmount,
			CouponCode:      req.CouponCode,
			PaymentMethod:   paymentMethod,
			PaymentStatus:   paymentStatus,
			OrderStatus:     StatusPending,
			Notes:           req.Notes,
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		removeIDs := make([]uint, 0, len(checkout))
		for _, item := range checkout {
			oi := models.OrderItem{
				OrderID:     order.ID,
				ProductID:   item.ProductID,
				VariantID:   item.VariantID,
				ProductName: item.Name,
				VariantInfo: variantInfo(item),
				Quantity:    item.Quantity,
				UnitPrice:   item.Price,
				TotalPrice:  item.Subtotal,
			}
			if err := tx.Create(&oi).Error; err != nil {
				return err
			}

			if err := stock.Decrement(tx, item.ProductID, item.VariantID, item.Quantity); err != nil {
				return err
			}
			if err := tx.Model(&models.Product{}).
				Where("id = ?", item.ProductID).
				Update("sold_count", gorm.Expr("sold_count + ?", item.Quantity)).Error; err != nil {
				return err
			}

			removeIDs = append(removeIDs, item.ID)
		}

		if req.CouponCode != nil && *req.CouponCode != "" {
			if err := tx.Model(&models.Coupon{}).
				Where("code = ?", *req.CouponCode).
				Update("used_count", gorm.Expr("used_count + 1")).Error; err != nil {
				return err
			}
		}

		if partial {
			if err := tx.Where("id IN ? AND cart_id = ?", removeIDs, cartID).
				Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
		} else {
			if err := tx.Where("cart_id = ?", cartID).
				Delete(&models.CartItem{}).Error; err != nil {
				return err
			}
		}

		result = CreateResult{OrderID: order.ID, OrderCode: order.OrderCode}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	logging.FromContext(ctx).With("handler", "orders.create").
		Info("order placed", "order_id", result.OrderID, "order_code", result.OrderCode)
	return &result, nil
}

func variantInfo(item cartstore.ItemView) *string {
	parts := make([]string, 0, 2)
	if item.Size != "" {
		parts = append(parts, "Size: "+item.Size)
	}
	if item.Color != "" {
		parts = append(parts, "Color: "+item.Color)
	}
	if len(parts) == 0 {
		return nil
	}
	info := strings.Join(parts, ", ")
	return &info
}

// Cancel flips a pending or confirmed order to cancelled and puts every
// item's quantity back on the stock ledger.
func (p *Processor) Cancel(ctx context.Context, orderID uint, userID *uint) error {
	var order models.Order
	if err := p.DB.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if userID != nil && (order.UserID == nil || *order.UserID != *userID) {
		return ErrForbidden
	}
	if order.OrderStatus != StatusPending && order.OrderStatus != StatusConfirmed {
		return fmt.Errorf("%w: cannot cancel order in status %q", ErrInvalidState, order.OrderStatus)
	}

	err := p.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Order{}).
			Where("id = ?", orderID).
			Update("order_status", StatusCancelled).Error; err != nil {
			return err
		}

		var items []models.OrderItem
		if err := tx.Where("order_id = ?", orderID).Find(&items).Error; err != nil {
			return err
		}
		for _, item := range items {
			if err := stock.Restore(tx, item.ProductID, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	logging.FromContext(ctx).With("handler", "orders.cancel").
		Info("order cancelled", "order_id", orderID)
	return nil
}

// Track is the public lookup. It requires the order code plus a matching
// email or phone and deliberately does not reveal which half was wrong.
func (p *Processor) Track(ctx context.Context, orderCode, contact string) (*OrderWithItems, error) {
	var order models.Order
	err := p.DB.WithContext(ctx).
		Where("order_code = ? AND (customer_email = ? OR customer_phone = ?)", orderCode, contact, contact).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p.withItems(ctx, order)
}

// GetByID loads one order with its item snapshots.
func (p *Processor) GetByID(ctx context.Context, orderID uint) (*OrderWithItems, error) {
	var order models.Order
	if err := p.DB.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return p.withItems(ctx, order)
}

func (p *Processor) withItems(ctx context.Context, order models.Order) (*OrderWithItems, error) {
	var items []models.OrderItem
	if err := p.DB.WithContext(ctx).Where("order_id = ?", order.ID).Find(&items).Error; err != nil {
		return nil, err
	}
	return &OrderWithItems{Order: order, Items: items}, nil
}

// GetByUser lists a user's orders newest first, each with its items.
func (p *Processor) GetByUser(ctx context.Context, userID uint, page int) (*Page, error) {
	perPage := p.OrdersPerPage
	if perPage <= 0 {
		perPage = config.DefaultOrdersPerPage
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * perPage

	q := p.DB.WithContext(ctx).Model(&models.Order{}).Where("user_id = ?", userID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, err
	}

	var ordersList []models.Order
	if err := p.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(perPage).Offset(offset).
		Find(&ordersList).Error; err != nil {
		return nil, err
	}

	data := make([]OrderWithItems, 0, len(ordersList))
	for _, o := range ordersList {
		enriched, err := p.withItems(ctx, o)
		if err != nil {
			return nil, err
		}
		data = append(data, *enriched)
	}

	return &Page{
		Data:       data,
		Total:      total,
		Page:       page,
		PerPage:    perPage,
		TotalPages: (total + int64(perPage) - 1) / int64(perPage),
	}, nil
}

// UpdateStatus advances the order status machine. Shipping and delivery
// stamp their timestamps; cancellation goes through Cancel so the stock
// reversal always happens.
func (p *Processor) UpdateStatus(ctx context.Context, orderID uint, status string) error {
	if status == StatusCancelled {
		return p.Cancel(ctx, orderID, nil)
	}

	var order models.Order
	if err := p.DB.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if !allowed(orderTransitions, order.OrderStatus, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, order.OrderStatus, status)
	}

	updates := map[string]interface{}{"order_status": status}
	now := time.Now()
	switch status {
	case StatusShipping:
		updates["shipped_at"] = &now
	case StatusDelivered:
		updates["delivered_at"] = &now
	}

	return p.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(updates).Error
}

// UpdatePaymentStatus advances the payment status machine.
func (p *Processor) UpdatePaymentStatus(ctx context.Context, orderID uint, status string) error {
	var order models.Order
	if err := p.DB.WithContext(ctx).First(&order, orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if !allowed(paymentTransitions, order.PaymentStatus, status) {
		return fmt.Errorf("%w: payment %s -> %s", ErrInvalidState, order.PaymentStatus, status)
	}

	return p.DB.WithContext(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("payment_status", status).Error
}

func allowed(transitions map[string][]string, from, to string) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// GenerateOrderCode builds the human-facing code: prefix, date, random tail.
func GenerateOrderCode() string {
	buf := make([]byte, 3)
	_, _ = rand.Read(buf)
	return "LX" + time.Now().Format("060102") + strings.ToUpper(hex.EncodeToString(buf))
}
