// Package stock is the authoritative ledger of sellable quantity per
// product and variant. Quantity only ever changes through the guarded
// Decrement and the compensating Restore, both meant to run inside the
// caller's transaction.
package stock

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/luxefashion/shop/internal/models"
)

// InsufficientError reports a failed stock check or a failed guarded
// decrement. Remaining is what was left at the time of the failure.
type InsufficientError struct {
	Remaining int
}

func (e *InsufficientError) Error() string {
	if e.Remaining > 0 {
		return fmt.Sprintf("only %d left in stock", e.Remaining)
	}
	return "out of stock"
}

// Available returns the current stock for the product, or for the variant
// when variantID is set.
func Available(tx *gorm.DB, productID uint, variantID *uint) (int, error) {
	if variantID != nil {
		var v models.ProductVariant
		if err := tx.Select("stock_quantity").First(&v, *variantID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return 0, &InsufficientError{Remaining: 0}
			}
			return 0, err
		}
		return v.StockQuantity, nil
	}

	var p models.Product
	if err := tx.Select("stock_quantity").First(&p, productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, &InsufficientError{Remaining: 0}
		}
		return 0, err
	}
	return p.StockQuantity, nil
}

// Check validates that qty units can be satisfied right now.
func Check(tx *gorm.DB, productID uint, variantID *uint, qty int) error {
	avail, err := Available(tx, productID, variantID)
	if err != nil {
		return err
	}
	if avail < qty {
		return &InsufficientError{Remaining: avail}
	}
	return nil
}

// Decrement takes qty units off the ledger, but only if the current
// quantity still covers them. A conditional update touching zero rows is a
// guard failure and must abort the caller's transaction.
func Decrement(tx *gorm.DB, productID uint, variantID *uint, qty int) error {
	if variantID != nil {
		res := tx.Model(&models.ProductVariant{}).
			Where("id = ? AND stock_quantity >= ?", *variantID, qty).
			Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return guardFailure(tx, productID, variantID)
		}
	}

	res := tx.Model(&models.Product{}).
		Where("id = ? AND stock_quantity >= ?", productID, qty).
		Update("stock_quantity", gorm.Expr("stock_quantity - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return guardFailure(tx, productID, nil)
	}
	return nil
}

// Restore reverses a checkout decrement: stock goes back up and the
// product's sold count back down.
func Restore(tx *gorm.DB, productID uint, variantID *uint, qty int) error {
	if err := tx.Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]interface{}{
			"stock_quantity": gorm.Expr("stock_quantity + ?", qty),
			"sold_count":     gorm.Expr("sold_count - ?", qty),
		}).Error; err != nil {
		return err
	}

	if variantID != nil {
		if err := tx.Model(&models.ProductVariant{}).
			Where("id = ?", *variantID).
			Update("stock_quantity", gorm.Expr("stock_quantity + ?", qty)).Error; err != nil {
			return err
		}
	}
	return nil
}

func guardFailure(tx *gorm.DB, productID uint, variantID *uint) error {
	remaining, err := Available(tx, productID, variantID)
	if err != nil {
		var ie *InsufficientError
		if errors.As(err, &ie) {
			return ie
		}
		return err
	}
	return &InsufficientError{Remaining: remaining}
}
