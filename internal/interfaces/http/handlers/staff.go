// internal/interfaces/http/handlers/staff.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/staff"
)

// StaffHandler handles staff management endpoints
type StaffHandler struct {
	staffService *staff.Service
	config       *config.Config
}

// NewStaffHandler creates a new staff handler
func NewStaffHandler(db *gorm.DB, cfg *config.Config) *StaffHandler {
	return &StaffHandler{
		staffService: staff.NewService(db, cfg),
		config:       cfg,
	}
}

// Create handles POST /admin/staff
func (h *StaffHandler) Create(c *gin.Context) {
	var req staff.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	member, err := h.staffService.Create(&req)
	if err != nil {
		if errors.Is(err, staff.ErrUsernameTaken) {
			c.JSON(http.StatusConflict, gin.H{"error": "Username already taken"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Staff member created successfully",
		"data":    member,
	})
}

// List handles GET /admin/staff
func (h *StaffHandler) List(c *gin.Context) {
	members, err := h.staffService.List()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list staff"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": members})
}

// SetActive handles PUT /admin/staff/:id/active
func (h *StaffHandler) SetActive(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid staff ID"})
		return
	}

	var req struct {
		Active bool `json:"active"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request data",
			"details": err.Error(),
		})
		return
	}

	member, err := h.staffService.SetActive(uint(id), req.Active)
	if err != nil {
		if errors.Is(err, staff.ErrStaffNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Staff member not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update staff member"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Staff member updated successfully",
		"data":    member,
	})
}
