// Package coupon holds the shared discount rules used by the cart preview
// and by checkout. Evaluation never mutates the coupon; used_count moves
// only inside the checkout transaction.
package coupon

import (
	"errors"
	"fmt"
	"time"

	"github.com/luxefashion/shop/internal/models"
)

var ErrInvalid = errors.New("coupon invalid")

const (
	TypePercentage = "percentage"
	TypeFixed      = "fixed"
)

// Validate checks eligibility of the coupon against the current subtotal.
func Validate(c *models.Coupon, subtotal float64, now time.Time) error {
	if !c.IsActive || now.Before(c.StartDate) || now.After(c.EndDate) {
		return fmt.Errorf("coupon expired or inactive: %w", ErrInvalid)
	}
	if c.UsageLimit > 0 && c.UsedCount >= c.UsageLimit {
		return fmt.Errorf("coupon usage limit reached: %w", ErrInvalid)
	}
	if subtotal < c.MinOrderAmount {
		return fmt.Errorf("minimum order amount %.0f not met: %w", c.MinOrderAmount, ErrInvalid)
	}
	return nil
}

// Discount computes the discount for the given subtotal. Percentage
// discounts clamp to the max cap when one is set; fixed discounts use the
// raw value.
func Discount(c *models.Coupon, subtotal float64) float64 {
	if c.DiscountType == TypePercentage {
		d := subtotal * c.DiscountValue / 100
		if c.MaxDiscountAmount != nil && d > *c.MaxDiscountAmount {
			d = *c.MaxDiscountAmount
		}
		return d
	}
	return c.DiscountValue
}
