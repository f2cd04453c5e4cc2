// Package cartstore owns carts and cart items. A cart belongs to exactly
// one owner (guest session or user) and is created lazily on first use;
// totals are recomputed on every read, never cached.
package cartstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/luxefashion/shop/internal/config"
	"github.com/luxefashion/shop/internal/coupon"
	"github.com/luxefashion/shop/internal/logging"
	"github.com/luxefashion/shop/internal/models"
	"github.com/luxefashion/shop/internal/session"
	"github.com/luxefashion/shop/internal/stock"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrItemNotFound    = errors.New("cart item not found")
)

type Store struct {
	DB                    *gorm.DB
	FreeShippingThreshold float64
	ShippingFee           float64
}

func New(db *gorm.DB, cfg *config.Config) *Store {
	return &Store{
		DB:                    db,
		FreeShippingThreshold: cfg.FreeShippingThreshold,
		ShippingFee:           cfg.ShippingFee,
	}
}

type ItemView struct {
	ID            uint     `json:"id"`
	ProductID     uint     `json:"product_id"`
	VariantID     *uint    `json:"variant_id,omitempty"`
	Name          string   `json:"name"`
	Slug          string   `json:"slug"`
	Image         string   `json:"image,omitempty"`
	Size          string   `json:"size,omitempty"`
	Color         string   `json:"color,omitempty"`
	Price         float64  `json:"price"`
	OriginalPrice float64  `json:"original_price"`
	SalePrice     *float64 `json:"sale_price,omitempty"`
	Quantity      int      `json:"quantity"`
	Subtotal      float64  `json:"subtotal"`
}

type View struct {
	Items       []ItemView `json:"items"`
	ItemCount   int        `json:"item_count"`
	Subtotal    float64    `json:"subtotal"`
	ShippingFee float64    `json:"shipping_fee"`
	Total       float64    `json:"total"`
}

type CouponResult struct {
	Code        string  `json:"code"`
	Discount    float64 `json:"discount"`
	Description string  `json:"description"`
	NewTotal    float64 `json:"new_total"`
}

// resolveCart finds the owner's active cart, creating it on first use.
func (s *Store) resolveCart(tx *gorm.DB, owner session.Owner) (*models.Cart, error) {
	var cart models.Cart

	q := tx.Where("session_id = ? AND user_id IS NULL", owner.SessionID)
	if owner.UserID != nil {
		q = tx.Where("user_id = ?", *owner.UserID)
	}
	err := q.First(&cart).Error
	if err == nil {
		return &cart, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	cart = models.Cart{UserID: owner.UserID, SessionID: owner.SessionID}
	if err := tx.Create(&cart).Error; err != nil {
		return nil, err
	}
	return &cart, nil
}

// CartIDInTx resolves the owner's cart id inside an existing transaction.
func (s *Store) CartIDInTx(tx *gorm.DB, owner session.Owner) (uint, error) {
	cart, err := s.resolveCart(tx, owner)
	if err != nil {
		return 0, err
	}
	return cart.ID, nil
}

// findItem enforces the one-row-per-(cart, product, variant) invariant.
func findItem(tx *gorm.DB, cartID, productID uint, variantID *uint) (*models.CartItem, error) {
	var item models.CartItem
	q := tx.Where("cart_id = ? AND product_id = ?", cartID, productID)
	if variantID != nil {
		q = q.Where("variant_id = ?", *variantID)
	} else {
		q = q.Where("variant_id IS NULL")
	}
	if err := q.First(&item).Error; err != nil {
		return nil, err
	}
	return &item, nil
}

// Add puts qty units of a product (or variant) into the owner's cart. A
// repeated add folds into the existing row, and the combined quantity is
// what gets validated against stock.
func (s *Store) Add(ctx context.Context, owner session.Owner, productID uint, qty int, variantID *uint) (*View, error) {
	if qty < 1 {
		qty = 1
	}

	var product models.Product
	if err := s.DB.WithContext(ctx).
		Where("id = ? AND status = ?", productID, "active").
		First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, err
	}

	price := product.Price
	if product.SalePrice != nil && *product.SalePrice < product.Price {
		price = *product.SalePrice
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.resolveCart(tx, owner)
		if err != nil {
			return err
		}

		item, err := findItem(tx, cart.ID, productID, variantID)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		newQty := qty
		if item != nil {
			newQty += item.Quantity
		}
		if err := stock.Check(tx, productID, variantID, newQty); err != nil {
			return err
		}

		if item != nil {
			return tx.Model(item).Updates(map[string]interface{}{
				"quantity":   newQty,
				"updated_at": time.Now(),
			}).Error
		}
		return tx.Create(&models.CartItem{
			CartID:    cart.ID,
			ProductID: productID,
			VariantID: variantID,
			Quantity:  qty,
			Price:     price,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, owner)
}

// Update sets an item's quantity; anything at or below zero removes it.
func (s *Store) Update(ctx context.Context, owner session.Owner, itemID uint, qty int) (*View, error) {
	if qty <= 0 {
		return s.Remove(ctx, owner, itemID)
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.resolveCart(tx, owner)
		if err != nil {
			return err
		}

		var item models.CartItem
		if err := tx.Where("id = ? AND cart_id = ?", itemID, cart.ID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrItemNotFound
			}
			return err
		}

		if err := stock.Check(tx, item.ProductID, item.VariantID, qty); err != nil {
			return err
		}

		return tx.Model(&item).Updates(map[string]interface{}{
			"quantity":   qty,
			"updated_at": time.Now(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return s.Get(ctx, owner)
}

// Remove deletes one item, scoped to the owner's cart so a stale or foreign
// item id cannot touch another cart.
func (s *Store) Remove(ctx context.Context, owner session.Owner, itemID uint) (*View, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.resolveCart(tx, owner)
		if err != nil {
			return err
		}
		return tx.Where("id = ? AND cart_id = ?", itemID, cart.ID).
			Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, owner)
}

// Clear empties the owner's cart.
func (s *Store) Clear(ctx context.Context, owner session.Owner) (*View, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.resolveCart(tx, owner)
		if err != nil {
			return err
		}
		return tx.Where("cart_id = ?", cart.ID).Delete(&models.CartItem{}).Error
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, owner)
}

// Get returns the cart joined with live product display data, with totals
// recomputed from the captured per-item prices.
func (s *Store) Get(ctx context.Context, owner session.Owner) (*View, error) {
	var view *View
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.resolveCart(tx, owner)
		if err != nil {
			return err
		}
		view, err = s.ViewInTx(tx, cart.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return view, nil
}

type itemRow struct {
	ID            uint
	ProductID     uint
	VariantID     *uint
	Quantity      int
	Price         float64
	Name          string
	Slug          string
	Image         *string
	OriginalPrice float64
	SalePrice     *float64
	Size          *string
	Color         *string
}

// ViewInTx builds the cart view inside an existing transaction. Checkout
// uses it to read the snapshot it is about to convert into an order.
func (s *Store) ViewInTx(tx *gorm.DB, cartID uint) (*View, error) {
	var rows []itemRow
	if err := tx.Model(&models.CartItem{}).
		Select("cart_items.id, cart_items.product_id, cart_items.variant_id, cart_items.quantity, cart_items.price, "+
			"products.name, products.slug, products.image, products.price AS original_price, products.sale_price, "+
			"product_variants.size, product_variants.color").
		Joins("JOIN products ON products.id = cart_items.product_id").
		Joins("LEFT JOIN product_variants ON product_variants.id = cart_items.variant_id").
		Where("cart_items.cart_id = ?", cartID).
		Order("cart_items.created_at DESC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	view := &View{Items: make([]ItemView, 0, len(rows))}
	for _, r := range rows {
		item := ItemView{
			ID:            r.ID,
			ProductID:     r.ProductID,
			VariantID:     r.VariantID,
			Name:          r.Name,
			Slug:          r.Slug,
			Price:         r.Price,
			OriginalPrice: r.OriginalPrice,
			SalePrice:     r.SalePrice,
			Quantity:      r.Quantity,
			Subtotal:      r.Price * float64(r.Quantity),
		}
		if r.Image != nil {
			item.Image = *r.Image
		}
		if r.Size != nil {
			item.Size = *r.Size
		}
		if r.Color != nil {
			item.Color = *r.Color
		}
		view.Items = append(view.Items, item)
		view.Subtotal += item.Subtotal
		view.ItemCount += item.Quantity
	}

	if view.Subtotal < s.FreeShippingThreshold {
		view.ShippingFee = s.ShippingFee
	}
	view.Total = view.Subtotal + view.ShippingFee
	return view, nil
}

// Count is the lightweight badge counter: a quantity sum, no join.
func (s *Store) Count(ctx context.Context, owner session.Owner) (int, error) {
	count := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cart, err := s.resolveCart(tx, owner)
		if err != nil {
			return err
		}
		return tx.Model(&models.CartItem{}).
			Where("cart_id = ?", cart.ID).
			Select("COALESCE(SUM(quantity), 0)").
			Scan(&count).Error
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// ApplyCoupon previews a coupon against the current cart. Nothing is
// persisted; used_count moves only when an order is created.
func (s *Store) ApplyCoupon(ctx context.Context, owner session.Owner, code string) (*CouponResult, error) {
	var cpn models.Coupon
	if err := s.DB.WithContext(ctx).Where("code = ?", code).First(&cpn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("coupon not found: %w", coupon.ErrInvalid)
		}
		return nil, err
	}

	cart, err := s.Get(ctx, owner)
	if err != nil {
		return nil, err
	}

	if err := coupon.Validate(&cpn, cart.Subtotal, time.Now()); err != nil {
		return nil, err
	}

	discount := coupon.Discount(&cpn, cart.Subtotal)
	return &CouponResult{
		Code:        cpn.Code,
		Discount:    discount,
		Description: cpn.Description,
		NewTotal:    cart.Total - discount,
	}, nil
}

// MergeGuestCart folds the guest cart of sessionID into the user's cart
// after login. With no user cart present the guest cart is re-owned in
// place; otherwise guest items move over, summing quantities where the
// user cart already holds the same product and variant. Calling it again
// with no guest cart left is a no-op.
func (s *Store) MergeGuestCart(ctx context.Context, sessionID string, userID uint) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var guest models.Cart
		err := tx.Where("session_id = ? AND user_id IS NULL", sessionID).First(&guest).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		var userCart models.Cart
		err = tx.Where("user_id = ?", userID).First(&userCart).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Model(&guest).Update("user_id", userID).Error
		}
		if err != nil {
			return err
		}

		var guestItems []models.CartItem
		if err := tx.Where("cart_id = ?", guest.ID).Find(&guestItems).Error; err != nil {
			return err
		}

		for _, gi := range guestItems {
			existing, err := findItem(tx, userCart.ID, gi.ProductID, gi.VariantID)
			if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
			if existing != nil {
				if err := tx.Model(existing).Updates(map[string]interface{}{
					"quantity":   existing.Quantity + gi.Quantity,
					"updated_at": time.Now(),
				}).Error; err != nil {
					return err
				}
				if err := tx.Delete(&gi).Error; err != nil {
					return err
				}
				continue
			}
			if err := tx.Model(&gi).Update("cart_id", userCart.ID).Error; err != nil {
				return err
			}
		}

		return tx.Delete(&guest).Error
	})
	if err != nil {
		return err
	}

	logging.FromContext(ctx).With("handler", "cart.merge_guest_cart").
		Info("guest cart merged", "user_id", userID)
	return nil
}
