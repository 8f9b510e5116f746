// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/cart"
	"github.com/your-org/pos-backoffice/internal/domain/sale"
)

// CartHandler handles cart staging endpoints
type CartHandler struct {
	cartService *cart.Service
	config      *config.Config
}

// NewCartHandler creates a new cart handler
func NewCartHandler(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *CartHandler {
	return &CartHandler{
		cartService: cart.NewService(db, redisClient, cfg),
		config:      cfg,
	}
}

// getOrCreateSessionID resolves the cart session from the X-Session-ID
// header, minting a new one when absent. The ID is echoed back so clients
// can persist it.
func (h *CartHandler) getOrCreateSessionID(c *gin.Context) string {
	sessionID := c.GetHeader("X-Session-ID")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	c.Header("X-Session-ID", sessionID)
	return sessionID
}

// Get handles GET /cart
func (h *CartHandler) Get(c *gin.Context) {
	sessionID := h.getOrCreateSessionID(c)

	staged, err := h.cartService.Get(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   staged,
		"totals": staged.Totals(),
	})
}

// AddItem handles POST /cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	sessionID := h.getOrCreateSessionID(c)

	var req cart.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	staged, err := h.cartService.AddItem(c.Request.Context(), sessionID, &req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, sale.ErrProductNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item added to cart",
		"data":    staged,
		"totals":  staged.Totals(),
	})
}

// UpdateItem handles PUT /cart/items/:code
func (h *CartHandler) UpdateItem(c *gin.Context) {
	sessionID := h.getOrCreateSessionID(c)
	productCode := c.Param("code")

	var req cart.UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	staged, err := h.cartService.UpdateItem(c.Request.Context(), sessionID, productCode, &req)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, cart.ErrLineNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Cart updated",
		"data":    staged,
		"totals":  staged.Totals(),
	})
}

// RemoveItem handles DELETE /cart/items/:code
func (h *CartHandler) RemoveItem(c *gin.Context) {
	sessionID := h.getOrCreateSessionID(c)
	productCode := c.Param("code")

	staged, err := h.cartService.RemoveItem(c.Request.Context(), sessionID, productCode)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, cart.ErrLineNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Item removed from cart",
		"data":    staged,
	})
}

// Clear handles DELETE /cart
func (h *CartHandler) Clear(c *gin.Context) {
	sessionID := h.getOrCreateSessionID(c)

	if err := h.cartService.Clear(c.Request.Context(), sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear cart"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Cart cleared"})
}
