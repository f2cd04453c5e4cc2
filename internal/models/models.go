package models

import (
	"time"
)

type Product struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"  json:"id"`
	Name          string    `gorm:"not null"                  json:"name"`
	Slug          string    `gorm:"index"                     json:"slug"`
	Description   string    `json:"description"`
	Price         float64   `gorm:"not null"                  json:"price"`
	SalePrice     *float64  `json:"sale_price,omitempty"`
	Image         string    `json:"image,omitempty"`
	Status        string    `gorm:"not null;default:active"   json:"status"`
	StockQuantity int       `gorm:"not null;default:0"        json:"stock_quantity"`
	SoldCount     int       `gorm:"not null;default:0"        json:"sold_count"`
	CreatedAt     time.Time `json:"created_at"`
}

type ProductVariant struct {
	ID            uint   `gorm:"primaryKey"         json:"id"`
	ProductID     uint   `gorm:"index;not null"     json:"product_id"`
	Size          string `json:"size"`
	Color         string `json:"color"`
	ColorCode     string `json:"color_code,omitempty"`
	StockQuantity int    `gorm:"not null;default:0" json:"stock_quantity"`
}

type Coupon struct {
	ID                uint      `gorm:"primaryKey"            json:"id"`
	Code              string    `gorm:"unique;not null"       json:"code"`
	Description       string    `json:"description"`
	DiscountType      string    `gorm:"not null"              json:"discount_type"`
	DiscountValue     float64   `gorm:"not null"              json:"discount_value"`
	MaxDiscountAmount *float64  `json:"max_discount_amount,omitempty"`
	MinOrderAmount    float64   `gorm:"not null;default:0"    json:"min_order_amount"`
	StartDate         time.Time `gorm:"not null"              json:"start_date"`
	EndDate           time.Time `gorm:"not null"              json:"end_date"`
	UsageLimit        int       `gorm:"not null;default:0"    json:"usage_limit"`
	UsedCount         int       `gorm:"not null;default:0"    json:"used_count"`
	IsActive          bool      `gorm:"not null;default:true" json:"is_active"`
}

type Cart struct {
	ID        uint      `gorm:"primaryKey"     json:"id"`
	UserID    *uint     `gorm:"index"          json:"user_id,omitempty"`
	SessionID string    `gorm:"index;not null" json:"session_id"`
	CreatedAt time.Time `json:"created_at"`
}

type CartItem struct {
	ID        uint      `gorm:"primaryKey"                  json:"id"`
	CartID    uint      `gorm:"index;not null"              json:"cart_id"`
	ProductID uint      `gorm:"not null"                    json:"product_id"`
	VariantID *uint     `json:"variant_id,omitempty"`
	Quantity  int       `gorm:"default:1;check:quantity>0"  json:"quantity"`
	Price     float64   `gorm:"not null"                    json:"price"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Order struct {
	ID              uint       `gorm:"primaryKey"         json:"id"`
	UserID          *uint      `gorm:"index"              json:"user_id,omitempty"`
	OrderCode       string     `gorm:"unique;not null"    json:"order_code"`
	CustomerName    string     `gorm:"not null"           json:"customer_name"`
	CustomerEmail   string     `gorm:"not null"           json:"customer_email"`
	CustomerPhone   string     `gorm:"not null"           json:"customer_phone"`
	ShippingAddress string     `gorm:"not null"           json:"shipping_address"`
	Subtotal        float64    `gorm:"not null"           json:"subtotal"`
	ShippingFee     float64    `gorm:"not null"           json:"shipping_fee"`
	DiscountAmount  float64    `gorm:"not null;default:0" json:"discount_amount"`
	TotalAmount     float64    `gorm:"not null"           json:"total_amount"`
	CouponCode      *string    `json:"coupon_code,omitempty"`
	PaymentMethod   string     `gorm:"not null"           json:"payment_method"`
	PaymentStatus   string     `gorm:"not null"           json:"payment_status"`
	OrderStatus     string     `gorm:"not null"           json:"order_status"`
	Notes           *string    `json:"notes,omitempty"`
	ShippedAt       *time.Time `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time `json:"delivered_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type OrderItem struct {
	ID          uint    `gorm:"primaryKey"                json:"id"`
	OrderID     uint    `gorm:"index;not null"            json:"order_id"`
	ProductID   uint    `gorm:"not null"                  json:"product_id"`
	VariantID   *uint   `json:"variant_id,omitempty"`
	ProductName string  `gorm:"not null"                  json:"product_name"`
	VariantInfo *string `json:"variant_info,omitempty"`
	Quantity    int     `gorm:"not null;check:quantity>0" json:"quantity"`
	UnitPrice   float64 `gorm:"not null"                  json:"unit_price"`
	TotalPrice  float64 `gorm:"not null"                  json:"total_price"`
}

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string `gorm:"unique;not null"          json:"username"`
	PasswordHash string `gorm:"not null"                 json:"-"`
	Role         string `gorm:"not null;default:user"    json:"role"`
}
