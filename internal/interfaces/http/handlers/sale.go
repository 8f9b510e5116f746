// internal/interfaces/http/handlers/sale.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/cart"
	"github.com/your-org/pos-backoffice/internal/domain/sale"
	"github.com/your-org/pos-backoffice/internal/interfaces/http/middleware"
	"github.com/your-org/pos-backoffice/internal/pkg/notify"
)

// SaleHandler handles sale and reversal endpoints
type SaleHandler struct {
	saleService *sale.Service
	cartService *cart.Service
	config      *config.Config
}

// NewSaleHandler creates a new sale handler
func NewSaleHandler(db *gorm.DB, redisClient *redis.Client, cfg *config.Config, logger *logrus.Logger) *SaleHandler {
	return &SaleHandler{
		saleService: sale.NewService(db, cfg, notify.NewLogNotifier(logger), logger),
		cartService: cart.NewService(db, redisClient, cfg),
		config:      cfg,
	}
}

// CheckoutRequest represents a checkout of the staged session cart
type CheckoutRequest struct {
	Buyer         sale.BuyerInfo     `json:"buyer"`
	PaymentMethod sale.PaymentMethod `json:"payment_method" binding:"required,oneof=cash card transfer credit"`
	AmountPaid    int64              `json:"amount_paid" binding:"min=0"`
	TaxAmount     int64              `json:"tax_amount" binding:"min=0"`
	IsCredit      bool               `json:"is_credit"`
}

// Create handles POST /sales with explicit line items
func (h *SaleHandler) Create(c *gin.Context) {
	sellerID, _ := middleware.GetStaffIDFromContext(c)

	var req sale.CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	created, err := h.saleService.CreateSale(sellerID, &req)
	if err != nil {
		h.writeSaleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Sale completed successfully",
		"data":    created,
	})
}

// Checkout handles POST /sales/checkout, committing the staged session cart
func (h *SaleHandler) Checkout(c *gin.Context) {
	sellerID, _ := middleware.GetStaffIDFromContext(c)

	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "X-Session-ID header required"})
		return
	}

	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	lines, err := h.cartService.CheckoutLines(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, sale.ErrEmptyCart) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load cart"})
		return
	}

	created, err := h.saleService.CreateSale(sellerID, &sale.CreateSaleRequest{
		Items:         lines,
		Buyer:         req.Buyer,
		PaymentMethod: req.PaymentMethod,
		AmountPaid:    req.AmountPaid,
		TaxAmount:     req.TaxAmount,
		IsCredit:      req.IsCredit,
	})
	if err != nil {
		h.writeSaleError(c, err)
		return
	}

	// The sale is durable, the staging cart is disposable.
	_ = h.cartService.Clear(c.Request.Context(), sessionID)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Sale completed successfully",
		"data":    created,
	})
}

// Get handles GET /sales/:id. A non-numeric param is looked up as a
// sale number instead.
func (h *SaleHandler) Get(c *gin.Context) {
	param := c.Param("id")

	var found *sale.Sale
	var err error
	if id, parseErr := strconv.ParseUint(param, 10, 32); parseErr == nil {
		found, err = h.saleService.GetSale(uint(id))
	} else {
		found, err = h.saleService.GetSaleByNumber(param)
	}
	if err != nil {
		if errors.Is(err, sale.ErrSaleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get sale"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": found})
}

// List handles GET /sales
func (h *SaleHandler) List(c *gin.Context) {
	var filter sale.ListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	resp, err := h.saleService.ListSales(&filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list sales"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// Reverse handles POST /sales/:id/reverse
func (h *SaleHandler) Reverse(c *gin.Context) {
	staffID, _ := middleware.GetStaffIDFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid sale ID"})
		return
	}

	var req sale.ReverseSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	reversal, err := h.saleService.ReverseSale(uint(id), staffID, req.Reason)
	if err != nil {
		switch {
		case errors.Is(err, sale.ErrSaleNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
		case errors.Is(err, sale.ErrAlreadyReversed):
			c.JSON(http.StatusConflict, gin.H{"error": "Sale has already been reversed"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reverse sale"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Sale reversed successfully",
		"data":    reversal,
	})
}

// writeSaleError maps sale engine errors onto HTTP responses
func (h *SaleHandler) writeSaleError(c *gin.Context, err error) {
	var stockErr *sale.InsufficientStockError
	var soldErr *sale.AlreadySoldError

	switch {
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":        "Insufficient stock",
			"product_code": stockErr.ProductCode,
			"available":    stockErr.Available,
			"requested":    stockErr.Requested,
		})
	case errors.As(err, &soldErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":        "Product already sold",
			"product_code": soldErr.ProductCode,
			"sku_value":    soldErr.SKUValue,
		})
	case errors.Is(err, sale.ErrProductUnavailable):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, sale.ErrLinePriceConflict):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, sale.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, sale.ErrCategoryNotFound):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, sale.ErrEmptyCart):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Cart is empty"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to complete sale"})
	}
}
