// internal/handlers/catalog.go
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/services"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

type CatalogHandler struct {
	catalogService *services.CatalogService
	log            *logrus.Entry
}

func NewCatalogHandler(catalogService *services.CatalogService, log *logrus.Entry) *CatalogHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &CatalogHandler{
		catalogService: catalogService,
		log:            log.WithField("handler", "catalog"),
	}
}

// GET /api/products
func (h *CatalogHandler) GetProducts(c *gin.Context) {
	payload, err := h.catalogService.Products(c.Request.Context())
	if err != nil {
		h.upstreamError(c, err, "Failed to fetch products", nil)
		return
	}
	utils.PassthroughResponse(c, payload.Value())
}

// GET /api/products/:styleCode
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	h.byStyleCode(c, h.catalogService.Product, "Failed to fetch product details")
}

// GET /api/products/:styleCode/variants
func (h *CatalogHandler) GetProductVariants(c *gin.Context) {
	h.byStyleCode(c, h.catalogService.Variants, "Failed to fetch product variants")
}

// GET /api/products/:styleCode/images
func (h *CatalogHandler) GetProductImages(c *gin.Context) {
	h.byStyleCode(c, h.catalogService.Images, "Failed to fetch product images")
}

// GET /api/colours
func (h *CatalogHandler) GetColours(c *gin.Context) {
	payload, err := h.catalogService.Colours(c.Request.Context())
	if err != nil {
		h.upstreamError(c, err, "Failed to fetch colours", nil)
		return
	}
	utils.PassthroughResponse(c, payload.Value())
}

// GET /api/inventory/items?skuFilter=
func (h *CatalogHandler) GetInventoryItems(c *gin.Context) {
	skuFilter := strings.TrimSpace(c.Query("skuFilter"))
	if skuFilter == "" {
		utils.BadRequestResponse(c, "skuFilter parameter is required", nil)
		return
	}
	if err := utils.ValidateVar(skuFilter, "sku_filter"); err != nil {
		utils.ValidationErrorResponse(c, "Invalid skuFilter", utils.GetValidationErrors(err))
		return
	}

	payload, err := h.catalogService.Inventory(c.Request.Context(), skuFilter)
	if err != nil {
		h.upstreamError(c, err, "Failed to fetch inventory items", logrus.Fields{"sku_filter": skuFilter})
		return
	}
	utils.WrappedSuccessResponse(c, payload.Value())
}

func (h *CatalogHandler) byStyleCode(c *gin.Context, fetch func(context.Context, string) (services.Payload, error), fallback string) {
	styleCode := c.Param("styleCode")
	if err := utils.ValidateVar(styleCode, "required,style_code"); err != nil {
		utils.ValidationErrorResponse(c, "Invalid style code", utils.GetValidationErrors(err))
		return
	}

	payload, err := fetch(c.Request.Context(), styleCode)
	if err != nil {
		h.upstreamError(c, err, fallback, logrus.Fields{"style_code": styleCode})
		return
	}
	utils.PassthroughResponse(c, payload.Value())
}

// upstreamError answers with the upstream status when there is one and 500
// otherwise.
func (h *CatalogHandler) upstreamError(c *gin.Context, err error, fallback string, fields logrus.Fields) {
	entry := h.log.WithError(err).WithField("request_id", utils.GetRequestIDFromContext(c))
	if fields != nil {
		entry = entry.WithFields(fields)
	}
	entry.Error(fallback)

	var upstream *services.UpstreamError
	if errors.As(err, &upstream) {
		var details interface{}
		if upstream.Details != "" {
			details = upstream.Details
		}
		utils.ErrorResponse(c, upstream.StatusCode, upstream.Error(), details)
		return
	}

	message := err.Error()
	if message == "" {
		message = fallback
	}
	utils.ErrorResponse(c, http.StatusInternalServerError, message, nil)
}
