package httpserver

import (
	"github.com/labstack/echo/v4"

	"github.com/luxefashion/shop/internal/handlers"
	carth "github.com/luxefashion/shop/internal/handlers/cart"
	ordersh "github.com/luxefashion/shop/internal/handlers/orders"
	"github.com/luxefashion/shop/internal/metrics"
	"github.com/luxefashion/shop/internal/session"
)

type Deps struct {
	AuthHandler    *handlers.AuthHandler
	ProductHandler *handlers.ProductHandler
	SearchHandler  *handlers.SearchHandler
	CartHandler    *carth.CartHandler
	OrderHandler   *ordersh.OrderHandler
	JWTSecret      []byte
}

func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(200) })
	e.GET("/metrics", metrics.Handler())

	v1 := e.Group("/api/v1", session.EnsureSession())

	v1.POST("/register", d.AuthHandler.Register)
	v1.POST("/login", d.AuthHandler.Login)
	v1.GET("/search", d.SearchHandler.Search)

	products := v1.Group("/products")
	products.GET("", d.ProductHandler.GetProducts)
	products.GET("/:id", d.ProductHandler.GetProduct)

	cart := v1.Group("/cart")
	cart.GET("", d.CartHandler.GetCart)
	cart.POST("", d.CartHandler.AddToCart)
	cart.DELETE("", d.CartHandler.ClearCart)
	cart.GET("/count", d.CartHandler.Count)
	cart.POST("/coupon", d.CartHandler.ApplyCoupon)
	cart.PATCH("/items/:id", d.CartHandler.UpdateItem)
	cart.DELETE("/items/:id", d.CartHandler.RemoveItem)

	orders := v1.Group("/orders")
	orders.POST("", d.OrderHandler.CreateOrder)
	orders.GET("", d.OrderHandler.ListOrders)
	orders.GET("/track", d.OrderHandler.TrackOrder)
	orders.POST("/:id/cancel", d.OrderHandler.CancelOrder)

	admin := v1.Group("/admin", session.AdminOnly(d.JWTSecret))
	admin.POST("/products", d.ProductHandler.CreateProduct)
	admin.PATCH("/products/:id", d.ProductHandler.PatchProduct)
	admin.DELETE("/products/:id", d.ProductHandler.DeleteProduct)
	admin.PATCH("/orders/:id/status", d.OrderHandler.UpdateStatus)
	admin.PATCH("/orders/:id/payment", d.OrderHandler.UpdatePaymentStatus)
}
