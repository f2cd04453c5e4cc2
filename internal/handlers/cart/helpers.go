package cart

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/luxefashion/shop/internal/cartstore"
	"github.com/luxefashion/shop/internal/coupon"
	"github.com/luxefashion/shop/internal/stock"
)

func (h *CartHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "cart_events", fmt.Sprint(event["owner"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

// businessMessage maps a domain error to the user-facing failure message.
// The second return is false for unexpected/storage errors, which surface
// as 500s instead of a success=false payload.
func businessMessage(err error) (string, bool) {
	var insufficient *stock.InsufficientError
	switch {
	case errors.Is(err, cartstore.ErrProductNotFound):
		return "product not found", true
	case errors.Is(err, cartstore.ErrItemNotFound):
		return "item not found in cart", true
	case errors.As(err, &insufficient):
		return insufficient.Error(), true
	case errors.Is(err, coupon.ErrInvalid):
		return err.Error(), true
	}
	return "", false
}
