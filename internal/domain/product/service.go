// internal/domain/product/service.go
package product

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/your-org/pos-backoffice/internal/config"
)

// Service handles product ledger business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new product service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

// CreateCategoryRequest represents a category creation request
type CreateCategoryRequest struct {
	Name         string   `json:"name" binding:"required"`
	Description  string   `json:"description"`
	ItemType     ItemType `json:"item_type" binding:"required,oneof=single bulk"`
	SKULabel     string   `json:"sku_label"`
	ReorderLevel int      `json:"reorder_level" binding:"min=0"`
}

// CreateProductRequest represents a product creation request
type CreateProductRequest struct {
	Code        string `json:"code" binding:"required"`
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	CategoryID  uint   `json:"category_id" binding:"required"`
	Quantity    int    `json:"quantity" binding:"min=0"`
	UnitPrice   int64  `json:"unit_price" binding:"required,min=1"`
	CostPrice   int64  `json:"cost_price" binding:"min=0"`
	SKUValue    string `json:"sku_value"`
	OwnerID     *uint  `json:"owner_id"`
}

// RestockRequest represents a stock replenishment request
type RestockRequest struct {
	Quantity int    `json:"quantity" binding:"required,min=1"`
	Notes    string `json:"notes"`
}

// AdjustmentRequest represents a damaged or lost stock write-off
type AdjustmentRequest struct {
	Quantity     int    `json:"quantity" binding:"required,min=1"`
	MarkDamaged  bool   `json:"mark_damaged"`
	Notes        string `json:"notes"`
}

// ListFilter filters product listings
type ListFilter struct {
	CategoryID uint          `form:"category_id"`
	Status     ProductStatus `form:"status"`
	Search     string        `form:"search"`
	Page       int           `form:"page"`
	Limit      int           `form:"limit"`
}

// ListResponse is a paginated product listing
type ListResponse struct {
	Products   []Product `json:"products"`
	Total      int64     `json:"total"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"total_pages"`
}

var (
	// ErrCategoryNotFound is returned when a referenced category does not exist
	ErrCategoryNotFound = errors.New("category not found")
	// ErrProductNotFound is returned when a product lookup misses
	ErrProductNotFound = errors.New("product not found")
	// ErrDuplicateCode is returned when a product code is already taken
	ErrDuplicateCode = errors.New("product code already exists")
)

// forUpdate applies a row-level write lock where the dialect supports it.
// SQLite serializes writers on its own and rejects FOR UPDATE.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// CreateCategory creates a new category
func (s *Service) CreateCategory(req *CreateCategoryRequest) (*Category, error) {
	category := &Category{
		Name:         req.Name,
		Slug:         slugify(req.Name),
		Description:  req.Description,
		ItemType:     req.ItemType,
		SKULabel:     req.SKULabel,
		ReorderLevel: req.ReorderLevel,
		IsActive:     true,
	}

	if err := s.db.Create(category).Error; err != nil {
		return nil, fmt.Errorf("failed to create category: %w", err)
	}

	return category, nil
}

// GetCategory retrieves a category by ID
func (s *Service) GetCategory(id uint) (*Category, error) {
	var category Category
	if err := s.db.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &category, nil
}

// ListCategories retrieves all active categories
func (s *Service) ListCategories() ([]Category, error) {
	var categories []Category
	if err := s.db.Where("is_active = ?", true).Order("name ASC").Find(&categories).Error; err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return categories, nil
}

// CreateProduct adds a product to the ledger with an opening restock entry
func (s *Service) CreateProduct(req *CreateProductRequest, createdBy uint) (*Product, error) {
	var category Category
	if err := s.db.First(&category, req.CategoryID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, fmt.Errorf("failed to load category: %w", err)
	}

	quantity := req.Quantity
	if category.IsSingleItem() {
		// Single-item products hold exactly one unit
		quantity = 1
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var existing Product
	err := tx.Where("code = ?", req.Code).First(&existing).Error
	if err == nil {
		tx.Rollback()
		return nil, ErrDuplicateCode
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		tx.Rollback()
		return nil, fmt.Errorf("failed to check product code: %w", err)
	}

	p := &Product{
		Code:        req.Code,
		Name:        req.Name,
		Description: req.Description,
		CategoryID:  category.ID,
		Quantity:    quantity,
		Status:      DeriveStatus(category.ItemType, quantity, category.ReorderLevel, StatusAvailable),
		UnitPrice:   req.UnitPrice,
		CostPrice:   req.CostPrice,
		SKUValue:    req.SKUValue,
		OwnerID:     req.OwnerID,
	}

	if err := tx.Create(p).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	if quantity > 0 {
		entry := &StockEntry{
			ProductID:     &p.ID,
			ProductCode:   p.Code,
			EntryType:     EntryRestock,
			QuantityDelta: quantity,
			UnitPrice:     p.UnitPrice,
			TotalAmount:   int64(quantity) * p.UnitPrice,
			Notes:         "initial stock",
			CreatedBy:     createdBy,
		}
		if err := tx.Create(entry).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to record initial stock: %w", err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit product creation: %w", err)
	}

	p.Category = category
	return p, nil
}

// GetProduct retrieves a product by ID with its category
func (s *Service) GetProduct(id uint) (*Product, error) {
	var p Product
	if err := s.db.Preload("Category").First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// GetProductByCode retrieves a product by its code
func (s *Service) GetProductByCode(code string) (*Product, error) {
	var p Product
	if err := s.db.Preload("Category").Where("code = ?", code).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return &p, nil
}

// ListProducts retrieves products with filtering and pagination
func (s *Service) ListProducts(filter *ListFilter) (*ListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	query := s.db.Model(&Product{}).Preload("Category")

	if filter.CategoryID != 0 {
		query = query.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where("name LIKE ? OR code LIKE ? OR sku_value LIKE ?", pattern, pattern, pattern)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count products: %w", err)
	}

	var products []Product
	offset := (filter.Page - 1) * filter.Limit
	if err := query.Order("code ASC").Offset(offset).Limit(filter.Limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &ListResponse{
		Products:   products,
		Total:      total,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalPages: totalPages,
	}, nil
}

// ListAvailable retrieves sellable products for the storefront surface
func (s *Service) ListAvailable(categoryID uint) ([]Product, error) {
	query := s.db.Preload("Category").
		Where("status IN ?", []ProductStatus{StatusAvailable, StatusLowStock})
	if categoryID != 0 {
		query = query.Where("category_id = ?", categoryID)
	}

	var products []Product
	if err := query.Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("failed to list available products: %w", err)
	}
	return products, nil
}

// Restock increases a bulk product's quantity and appends a restock entry
func (s *Service) Restock(productID uint, req *RestockRequest, createdBy uint) (*Product, error) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var p Product
	if err := forUpdate(tx).Preload("Category").First(&p, productID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	if p.Category.IsSingleItem() && p.Quantity+req.Quantity > 1 {
		tx.Rollback()
		return nil, fmt.Errorf("single-item product %s cannot hold more than one unit", p.Code)
	}

	p.Quantity += req.Quantity
	p.Status = DeriveStatus(p.Category.ItemType, p.Quantity, p.Category.ReorderLevel, p.Status)

	if err := tx.Model(&Product{}).Where("id = ?", p.ID).
		Updates(map[string]interface{}{"quantity": p.Quantity, "status": p.Status}).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	entry := &StockEntry{
		ProductID:     &p.ID,
		ProductCode:   p.Code,
		EntryType:     EntryRestock,
		QuantityDelta: req.Quantity,
		UnitPrice:     p.UnitPrice,
		TotalAmount:   int64(req.Quantity) * p.UnitPrice,
		Notes:         req.Notes,
		CreatedBy:     createdBy,
	}
	if err := tx.Create(entry).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to record restock: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit restock: %w", err)
	}
	return &p, nil
}

// Adjust writes off damaged or lost stock with a negative adjustment entry
func (s *Service) Adjust(productID uint, req *AdjustmentRequest, createdBy uint) (*Product, error) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var p Product
	if err := forUpdate(tx).Preload("Category").First(&p, productID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	if req.Quantity > p.Quantity {
		tx.Rollback()
		return nil, fmt.Errorf("cannot write off %d units of %s, only %d on hand", req.Quantity, p.Code, p.Quantity)
	}

	p.Quantity -= req.Quantity
	if req.MarkDamaged {
		p.Status = StatusDamaged
	} else {
		p.Status = DeriveStatus(p.Category.ItemType, p.Quantity, p.Category.ReorderLevel, p.Status)
	}

	if err := tx.Model(&Product{}).Where("id = ?", p.ID).
		Updates(map[string]interface{}{"quantity": p.Quantity, "status": p.Status}).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	entry := &StockEntry{
		ProductID:     &p.ID,
		ProductCode:   p.Code,
		EntryType:     EntryAdjustment,
		QuantityDelta: -req.Quantity,
		UnitPrice:     p.UnitPrice,
		TotalAmount:   -int64(req.Quantity) * p.UnitPrice,
		Notes:         req.Notes,
		CreatedBy:     createdBy,
	}
	if err := tx.Create(entry).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to record adjustment: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit adjustment: %w", err)
	}
	return &p, nil
}

// GetStockEntries retrieves the ledger entries for a product, newest first
func (s *Service) GetStockEntries(productCode string, limit int) ([]StockEntry, error) {
	if limit < 1 || limit > 500 {
		limit = 50
	}
	var entries []StockEntry
	if err := s.db.Where("product_code = ?", productCode).
		Order("created_at DESC, id DESC").Limit(limit).Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("failed to load stock entries: %w", err)
	}
	return entries, nil
}

func slugify(name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.ReplaceAll(slug, " ", "-")
	return slug
}
