package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/luxefashion/shop/internal/models"
	"github.com/luxefashion/shop/internal/mykafka"
	"github.com/luxefashion/shop/internal/service/search"
	"github.com/luxefashion/shop/internal/util"
)

type ProductHandler struct {
	DB       *gorm.DB
	Producer *mykafka.Producer
	ES       *elasticsearch.Client
	Index    string
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func (h *ProductHandler) publish(c echo.Context, event map[string]any) {
	if h.Producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Producer.PublishEvent(ctx, "product_events", fmt.Sprint(event["productID"]), event); err != nil {
		c.Logger().Errorf("Kafka publish error: %v", err)
	}
}

func (h *ProductHandler) index(c echo.Context, p *models.Product) {
	if h.ES == nil {
		return
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := search.IndexProduct(ctx, h.ES, h.Index, p); err != nil {
		c.Logger().Errorf("ES index error: %v", err)
	}
}

func (h *ProductHandler) GetProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var product models.Product
	if err := h.DB.First(&product, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	var variants []models.ProductVariant
	if err := h.DB.Where("product_id = ?", product.ID).Find(&variants).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"product":  product,
		"variants": variants,
	})
}

func (h *ProductHandler) GetProducts(c echo.Context) error {
	page := parseIntDefault(c.QueryParam("page"), 1)
	size := parseIntDefault(c.QueryParam("size"), util.DefaultPageSize)
	offset, limit := util.Calculate(page, size)

	var total int64
	if err := h.DB.Model(&models.Product{}).Where("status = ?", "active").Count(&total).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	var items []models.Product
	if err := h.DB.Where("status = ?", "active").
		Order("id ASC").Offset(offset).Limit(limit).
		Find(&items).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"data": items,
		"meta": map[string]any{
			"page":        page,
			"size":        limit,
			"total":       total,
			"total_pages": (total + int64(limit) - 1) / int64(limit),
			"has_prev":    page > 1,
			"has_next":    int64(offset+limit) < total,
		},
	})
}

func (h *ProductHandler) CreateProduct(c echo.Context) error {
	var req struct {
		Name          string   `json:"name"`
		Slug          string   `json:"slug"`
		Description   string   `json:"description"`
		Price         float64  `json:"price"`
		SalePrice     *float64 `json:"sale_price"`
		Image         string   `json:"image"`
		StockQuantity int      `json:"stock_quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	prod := models.Product{
		Name:          req.Name,
		Slug:          req.Slug,
		Description:   req.Description,
		Price:         req.Price,
		SalePrice:     req.SalePrice,
		Image:         req.Image,
		Status:        "active",
		StockQuantity: req.StockQuantity,
	}
	if err := h.DB.Create(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.index(c, &prod)
	h.publish(c, map[string]any{
		"type":      "product_created",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusCreated, prod)
}

func (h *ProductHandler) PatchProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var req struct {
		Name          *string  `json:"name"`
		Description   *string  `json:"description"`
		Price         *float64 `json:"price"`
		SalePrice     *float64 `json:"sale_price"`
		Status        *string  `json:"status"`
		StockQuantity *int     `json:"stock_quantity"`
	}
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	var prod models.Product
	if err := h.DB.First(&prod, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "product not found")
	}

	if req.Name != nil {
		prod.Name = *req.Name
	}
	if req.Description != nil {
		prod.Description = *req.Description
	}
	if req.Price != nil {
		prod.Price = *req.Price
	}
	if req.SalePrice != nil {
		prod.SalePrice = req.SalePrice
	}
	if req.Status != nil {
		prod.Status = *req.Status
	}
	if req.StockQuantity != nil {
		prod.StockQuantity = *req.StockQuantity
	}

	if err := h.DB.Save(&prod).Error; err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	h.index(c, &prod)
	h.publish(c, map[string]any{
		"type":      "product_updated",
		"productID": prod.ID,
		"name":      prod.Name,
	})

	return c.JSON(http.StatusOK, prod)
}

func (h *ProductHandler) DeleteProduct(c echo.Context) error {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	if err := h.DB.Delete(&models.Product{}, id).Error; err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	if h.ES != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := search.DeleteProduct(ctx, h.ES, h.Index, uint(id)); err != nil {
			c.Logger().Errorf("ES delete error: %v", err)
		}
	}
	h.publish(c, map[string]any{
		"type":      "product_deleted",
		"productID": id,
	})

	return c.NoContent(http.StatusNoContent)
}
