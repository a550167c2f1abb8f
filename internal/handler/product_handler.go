package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Avijadhav01/E-commerce/internal/middleware"
	"github.com/Avijadhav01/E-commerce/internal/query"
	"github.com/Avijadhav01/E-commerce/internal/service"
	appErrors "github.com/Avijadhav01/E-commerce/pkg/errors"
	"github.com/Avijadhav01/E-commerce/pkg/response"
)

// ProductHandler exposes catalog endpoints.
type ProductHandler struct {
	products *service.ProductService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(products *service.ProductService) *ProductHandler {
	return &ProductHandler{products: products}
}

// List godoc
// @Summary List products
// @Description Filtered, paginated catalog listing
// @Tags Products
// @Produce json
// @Param keyword query string false "Keyword to match in product names"
// @Param category query string false "Filter by category"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /products [get]
func (h *ProductHandler) List(c *gin.Context) {
	params := query.ParamsFromValues(c.Request.URL.Query())

	products, pagination, err := h.products.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, products, pagination)
}

// Get godoc
// @Summary Get product detail
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /products/{id} [get]
func (h *ProductHandler) Get(c *gin.Context) {
	product, err := h.products.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, product, nil)
}

// Create godoc
// @Summary Create product
// @Tags Products
// @Accept json
// @Produce json
// @Param payload body service.CreateProductRequest true "Product payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /products [post]
func (h *ProductHandler) Create(c *gin.Context) {
	user := middleware.UserFromContext(c)
	if user == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid product payload"))
		return
	}

	product, err := h.products.Create(c.Request.Context(), req, user.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, product, "product created successfully")
}

// Update godoc
// @Summary Update product
// @Tags Products
// @Accept json
// @Produce json
// @Param id path string true "Product ID"
// @Param payload body service.UpdateProductRequest true "Product payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /products/{id} [put]
func (h *ProductHandler) Update(c *gin.Context) {
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid product payload"))
		return
	}

	product, err := h.products.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, product, nil, "product updated successfully")
}

// Delete godoc
// @Summary Delete product
// @Tags Products
// @Produce json
// @Param id path string true "Product ID"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /products/{id} [delete]
func (h *ProductHandler) Delete(c *gin.Context) {
	if err := h.products.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Export godoc
// @Summary Export catalog
// @Description Export the filtered catalog as CSV or PDF
// @Tags Products
// @Produce octet-stream
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Router /products/export [get]
func (h *ProductHandler) Export(c *gin.Context) {
	params := query.ParamsFromValues(c.Request.URL.Query())
	format := c.DefaultQuery("format", "csv")
	delete(params, "format")

	payload, contentType, err := h.products.Export(c.Request.Context(), params, format)
	if err != nil {
		response.Error(c, err)
		return
	}

	extension := "csv"
	if format == "pdf" {
		extension = "pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="products.%s"`, extension))
	c.Data(http.StatusOK, contentType, payload)
}
