package cart

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/luxefashion/shop/internal/cartstore"
	"github.com/luxefashion/shop/internal/mykafka"
	"github.com/luxefashion/shop/internal/session"
)

type CartHandler struct {
	Store     *cartstore.Store
	Producer  *mykafka.Producer
	JWTSecret []byte
}

type cartResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Cart    *cartstore.View `json:"cart,omitempty"`
}

func (h *CartHandler) owner(c echo.Context) (session.Owner, error) {
	return session.ResolveOwner(c, h.JWTSecret)
}

func (h *CartHandler) respond(c echo.Context, err error, view *cartstore.View, okMessage string) error {
	if err != nil {
		if msg, ok := businessMessage(err); ok {
			return c.JSON(http.StatusOK, cartResponse{Success: false, Message: msg})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cartResponse{Success: true, Message: okMessage, Cart: view})
}

func (h *CartHandler) GetCart(c echo.Context) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	view, err := h.Store.Get(c.Request().Context(), owner)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, cartResponse{Success: true, Cart: view})
}

func (h *CartHandler) AddToCart(c echo.Context) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	var req struct {
		ProductID uint  `json:"product_id"`
		Quantity  int   `json:"quantity"`
		VariantID *uint `json:"variant_id"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	view, err := h.Store.Add(c.Request().Context(), owner, req.ProductID, req.Quantity, req.VariantID)
	if err == nil {
		h.publish(c, map[string]any{
			"type":      "cart_item_added",
			"owner":     owner.SessionID,
			"productID": req.ProductID,
			"quantity":  req.Quantity,
		})
	}
	return h.respond(c, err, view, "added to cart")
}

func (h *CartHandler) UpdateItem(c echo.Context) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Quantity int `json:"quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	view, err := h.Store.Update(c.Request().Context(), owner, uint(id), req.Quantity)
	if err == nil {
		h.publish(c, map[string]any{
			"type":     "cart_item_updated",
			"owner":    owner.SessionID,
			"itemID":   id,
			"quantity": req.Quantity,
		})
	}
	return h.respond(c, err, view, "cart updated")
}

func (h *CartHandler) RemoveItem(c echo.Context) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	view, err := h.Store.Remove(c.Request().Context(), owner, uint(id))
	if err == nil {
		h.publish(c, map[string]any{
			"type":   "cart_item_removed",
			"owner":  owner.SessionID,
			"itemID": id,
		})
	}
	return h.respond(c, err, view, "item removed from cart")
}

func (h *CartHandler) ClearCart(c echo.Context) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	view, err := h.Store.Clear(c.Request().Context(), owner)
	if err == nil {
		h.publish(c, map[string]any{
			"type":  "cart_cleared",
			"owner": owner.SessionID,
		})
	}
	return h.respond(c, err, view, "cart cleared")
}

func (h *CartHandler) Count(c echo.Context) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	count, err := h.Store.Count(c.Request().Context(), owner)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, map[string]int{"count": count})
}

func (h *CartHandler) ApplyCoupon(c echo.Context) error {
	owner, err := h.owner(c)
	if err != nil {
		return err
	}

	var req struct {
		Code string `json:"code"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.Store.ApplyCoupon(c.Request().Context(), owner, req.Code)
	if err != nil {
		if msg, ok := businessMessage(err); ok {
			return c.JSON(http.StatusOK, map[string]any{"success": false, "message": msg})
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"coupon": map[string]any{
			"code":        result.Code,
			"discount":    result.Discount,
			"description": result.Description,
		},
		"new_total": result.NewTotal,
	})
}
