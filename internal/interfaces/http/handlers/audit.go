// internal/interfaces/http/handlers/audit.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/audit"
)

// AuditHandler handles consistency audit endpoints
type AuditHandler struct {
	auditService *audit.Service
	config       *config.Config
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *AuditHandler {
	return &AuditHandler{
		auditService: audit.NewService(db, cfg, logger),
		config:       cfg,
	}
}

// Run handles POST /admin/audit. Scope defaults to all sales; pass a sale
// ID to check one sale, and fix=true to apply repairs.
func (h *AuditHandler) Run(c *gin.Context) {
	scope := c.DefaultQuery("scope", audit.ScopeAll)
	fix := c.Query("fix") == "true"

	report, err := h.auditService.Audit(scope, fix)
	if err != nil {
		if errors.Is(err, audit.ErrSaleNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Sale not found"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Audit completed",
		"data":    report,
	})
}
