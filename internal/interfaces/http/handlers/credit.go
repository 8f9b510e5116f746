// internal/interfaces/http/handlers/credit.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/credit"
	"github.com/your-org/pos-backoffice/internal/interfaces/http/middleware"
)

// CreditHandler handles credit account endpoints
type CreditHandler struct {
	creditService *credit.Service
	config        *config.Config
}

// NewCreditHandler creates a new credit handler
func NewCreditHandler(db *gorm.DB, cfg *config.Config) *CreditHandler {
	return &CreditHandler{
		creditService: credit.NewService(db, cfg),
		config:        cfg,
	}
}

// ListOutstanding handles GET /credits
func (h *CreditHandler) ListOutstanding(c *gin.Context) {
	records, err := h.creditService.ListOutstanding()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list credits"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": records})
}

// Get handles GET /credits/:id
func (h *CreditHandler) Get(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credit record ID"})
		return
	}

	record, err := h.creditService.GetRecord(uint(id))
	if err != nil {
		if errors.Is(err, credit.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Credit record not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get credit record"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": record})
}

// RecordPayment handles POST /credits/:id/payments
func (h *CreditHandler) RecordPayment(c *gin.Context) {
	staffID, _ := middleware.GetStaffIDFromContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid credit record ID"})
		return
	}

	var req credit.PaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	record, err := h.creditService.RecordPayment(uint(id), &req, staffID)
	if err != nil {
		switch {
		case errors.Is(err, credit.ErrRecordNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "Credit record not found"})
		case errors.Is(err, credit.ErrAlreadySettled):
			c.JSON(http.StatusConflict, gin.H{"error": "Credit record already settled"})
		case errors.Is(err, credit.ErrOverpayment):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Payment exceeds outstanding balance"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record payment"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Payment recorded successfully",
		"data":    record,
	})
}
