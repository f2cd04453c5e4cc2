package orders

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/luxefashion/shop/internal/mykafka"
	"github.com/luxefashion/shop/internal/orders"
	"github.com/luxefashion/shop/internal/session"
	"github.com/luxefashion/shop/internal/stock"
)

type OrderHandler struct {
	Processor *orders.Processor
	Producer  *mykafka.Producer
	JWTSecret []byte
}

func (h *OrderHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "order_events", fmt.Sprint(event["orderID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func failure(c echo.Context, message string) error {
	return c.JSON(http.StatusOK, map[string]any{"success": false, "message": message})
}

// businessMessage maps domain errors to user-facing failure messages;
// unexpected errors fall through to a 500.
func businessMessage(err error) (string, bool) {
	var insufficient *stock.InsufficientError
	switch {
	case errors.Is(err, orders.ErrValidation):
		return err.Error(), true
	case errors.Is(err, orders.ErrEmptySelection):
		return "selected items not found in cart", true
	case errors.Is(err, orders.ErrEmptyCart):
		return "cart is empty", true
	case errors.Is(err, orders.ErrInvalidState):
		return err.Error(), true
	case errors.Is(err, orders.ErrForbidden):
		return "not allowed to modify this order", true
	case errors.As(err, &insufficient):
		return insufficient.Error(), true
	}
	return "", false
}

func (h *OrderHandler) CreateOrder(c echo.Context) error {
	owner, err := session.ResolveOwner(c, h.JWTSecret)
	if err != nil {
		return err
	}

	var req orders.CreateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.Processor.Create(c.Request().Context(), owner, req)
	if err != nil {
		if msg, ok := businessMessage(err); ok {
			return failure(c, msg)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":      "order_created",
		"orderID":   result.OrderID,
		"orderCode": result.OrderCode,
	})

	return c.JSON(http.StatusOK, map[string]any{
		"success":    true,
		"message":    "order placed",
		"order_id":   result.OrderID,
		"order_code": result.OrderCode,
	})
}

func (h *OrderHandler) CancelOrder(c echo.Context) error {
	userID, err := session.RequireUser(c, h.JWTSecret)
	if err != nil {
		return err
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.Processor.Cancel(c.Request().Context(), uint(id), &userID); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"success": false, "message": "order not found"})
		}
		if msg, ok := businessMessage(err); ok {
			return failure(c, msg)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":    "order_cancelled",
		"orderID": id,
	})

	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "order cancelled"})
}

func (h *OrderHandler) TrackOrder(c echo.Context) error {
	code := c.QueryParam("order_code")
	contact := c.QueryParam("contact")
	if code == "" || contact == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "order_code and contact are required")
	}

	order, err := h.Processor.Track(c.Request().Context(), code, contact)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if order == nil {
		return c.JSON(http.StatusNotFound, map[string]any{"success": false, "message": "order not found"})
	}
	return c.JSON(http.StatusOK, map[string]any{"success": true, "order": order})
}

func (h *OrderHandler) ListOrders(c echo.Context) error {
	userID, err := session.RequireUser(c, h.JWTSecret)
	if err != nil {
		return err
	}

	page, _ := strconv.Atoi(c.QueryParam("page"))
	result, err := h.Processor.GetByUser(c.Request().Context(), userID, page)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

func (h *OrderHandler) UpdateStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.Processor.UpdateStatus(c.Request().Context(), uint(id), req.Status); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"success": false, "message": "order not found"})
		}
		if msg, ok := businessMessage(err); ok {
			return failure(c, msg)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	h.publish(c, map[string]any{
		"type":    "order_status_updated",
		"orderID": id,
		"status":  req.Status,
	})

	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "status updated"})
}

func (h *OrderHandler) UpdatePaymentStatus(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	if err := h.Processor.UpdatePaymentStatus(c.Request().Context(), uint(id), req.Status); err != nil {
		if errors.Is(err, orders.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]any{"success": false, "message": "order not found"})
		}
		if msg, ok := businessMessage(err); ok {
			return failure(c, msg)
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{"success": true, "message": "payment status updated"})
}
