// internal/domain/sale/service.go
package sale

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/credit"
	"github.com/your-org/pos-backoffice/internal/domain/product"
)

// Service handles sale transaction business logic
type Service struct {
	db       *gorm.DB
	config   *config.Config
	notifier Notifier
	logger   *logrus.Logger
}

// NewService creates a new sale service. The notifier may be nil.
func NewService(db *gorm.DB, cfg *config.Config, notifier Notifier, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		db:       db,
		config:   cfg,
		notifier: notifier,
		logger:   logger,
	}
}

// CreateSaleRequest represents a checkout request
type CreateSaleRequest struct {
	Items         []CartLine    `json:"items" binding:"required,min=1,dive"`
	Buyer         BuyerInfo     `json:"buyer"`
	PaymentMethod PaymentMethod `json:"payment_method" binding:"required,oneof=cash card transfer credit"`
	AmountPaid    int64         `json:"amount_paid" binding:"min=0"`
	TaxAmount     int64         `json:"tax_amount" binding:"min=0"`
	IsCredit      bool          `json:"is_credit"`
}

// ListFilter filters sale listings
type ListFilter struct {
	SellerID   uint   `form:"seller_id"`
	IsReversed *bool  `form:"is_reversed"`
	IsCredit   *bool  `form:"is_credit"`
	DateFrom   string `form:"date_from"`
	DateTo     string `form:"date_to"`
	Page       int    `form:"page"`
	Limit      int    `form:"limit"`
}

// ListResponse is a paginated sale listing
type ListResponse struct {
	Sales      []Sale     `json:"sales"`
	Pagination Pagination `json:"pagination"`
}

// forUpdate applies a row-level write lock where the dialect supports it.
// SQLite serializes writers on its own and rejects FOR UPDATE.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// lockedLine pairs a validated cart line with its locked product row
type lockedLine struct {
	line    CartLine
	product product.Product
}

// CreateSale commits a checkout as a single transaction. Product rows are
// locked in code order, every line is validated before anything is written,
// and a failed line rolls the whole sale back.
func (s *Service) CreateSale(sellerID uint, req *CreateSaleRequest) (*Sale, error) {
	lines, err := normalizeLines(req.Items)
	if err != nil {
		return nil, err
	}

	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	// Validation pass: lock and check every product before any write.
	locked := make([]lockedLine, 0, len(lines))
	for _, line := range lines {
		var p product.Product
		err := forUpdate(tx).Preload("Category").
			Where("code = ?", line.ProductCode).First(&p).Error
		if err != nil {
			tx.Rollback()
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrProductNotFound, line.ProductCode)
			}
			return nil, fmt.Errorf("failed to lock product %s: %w", line.ProductCode, err)
		}
		if p.Category.ID == 0 {
			tx.Rollback()
			return nil, fmt.Errorf("%w: product %s", ErrCategoryNotFound, p.Code)
		}

		if p.IsDamaged() {
			tx.Rollback()
			return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, p.Code)
		}

		if p.Category.IsSingleItem() {
			if err := s.checkSingleItem(tx, &p, line.Quantity); err != nil {
				tx.Rollback()
				return nil, err
			}
		} else if p.Quantity < line.Quantity {
			tx.Rollback()
			return nil, &InsufficientStockError{
				ProductCode: p.Code,
				Available:   p.Quantity,
				Requested:   line.Quantity,
			}
		}

		locked = append(locked, lockedLine{line: line, product: p})
	}

	// Totals from the cart line prices, which are the agreed sale prices.
	var subtotal int64
	for _, ll := range locked {
		subtotal += int64(ll.line.Quantity) * ll.line.UnitPrice
	}
	totalAmount := subtotal + req.TaxAmount

	now := time.Now()
	newSale := &Sale{
		SaleNumber:    fmt.Sprintf("%s-TEMP-%d", s.config.Sales.NumberPrefix, now.UnixNano()),
		SellerID:      sellerID,
		BuyerName:     req.Buyer.Name,
		BuyerPhone:    req.Buyer.Phone,
		PaymentMethod: req.PaymentMethod,
		Subtotal:      subtotal,
		TaxAmount:     req.TaxAmount,
		TotalAmount:   totalAmount,
		AmountPaid:    req.AmountPaid,
		IsCredit:      req.IsCredit,
		SaleDate:      now,
	}
	if err := tx.Create(newSale).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create sale: %w", err)
	}

	newSale.SaleNumber = fmt.Sprintf("%s-%s-%05d",
		s.config.Sales.NumberPrefix, now.Format("20060102"), newSale.ID)
	if err := tx.Model(newSale).Update("sale_number", newSale.SaleNumber).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to assign sale number: %w", err)
	}

	if req.IsCredit {
		record := &credit.CreditRecord{
			SaleID:     newSale.ID,
			SaleNumber: newSale.SaleNumber,
			BuyerName:  req.Buyer.Name,
			BuyerPhone: req.Buyer.Phone,
			Principal:  totalAmount,
			AmountPaid: req.AmountPaid,
			Balance:    totalAmount - req.AmountPaid,
		}
		if record.Balance <= 0 {
			record.Balance = 0
			record.IsSettled = true
		}
		if err := tx.Create(record).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to create credit record: %w", err)
		}
		newSale.CreditRecordID = &record.ID
		if err := tx.Model(newSale).Update("credit_record_id", record.ID).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to link credit record: %w", err)
		}
	}

	// Mutation pass: items, product state, stock entries.
	lowStock := make([]product.Product, 0)
	for _, ll := range locked {
		p := ll.product
		line := ll.line

		item := &SaleItem{
			SaleID:      newSale.ID,
			ProductID:   p.ID,
			ProductCode: p.Code,
			ProductName: p.Name,
			SKUValue:    p.SKUValue,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TotalPrice:  int64(line.Quantity) * line.UnitPrice,
		}
		if err := tx.Create(item).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to create sale item: %w", err)
		}
		newSale.Items = append(newSale.Items, *item)

		var newQuantity int
		var newStatus product.ProductStatus
		if p.Category.IsSingleItem() {
			newQuantity = 0
			newStatus = product.StatusSold
		} else {
			newQuantity = p.Quantity - line.Quantity
			newStatus = product.DeriveStatus(p.Category.ItemType, newQuantity, p.Category.ReorderLevel, p.Status)
		}
		if err := tx.Model(&product.Product{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{"quantity": newQuantity, "status": newStatus}).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to update product %s: %w", p.Code, err)
		}

		productID := p.ID
		entry := &product.StockEntry{
			ProductID:     &productID,
			ProductCode:   p.Code,
			EntryType:     product.EntrySale,
			QuantityDelta: -line.Quantity,
			UnitPrice:     line.UnitPrice,
			TotalAmount:   -item.TotalPrice,
			ReferenceID:   newSale.SaleNumber,
			CreatedBy:     sellerID,
		}
		if err := tx.Create(entry).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to record stock entry for %s: %w", p.Code, err)
		}

		if newStatus == product.StatusLowStock {
			p.Quantity = newQuantity
			p.Status = newStatus
			lowStock = append(lowStock, p)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit sale: %w", err)
	}

	s.notifyCompleted(newSale)
	s.alertLowStock(lowStock)

	return newSale, nil
}

// checkSingleItem validates a single-item line against its product row and
// against all non-reversed sale items system-wide.
func (s *Service) checkSingleItem(tx *gorm.DB, p *product.Product, quantity int) error {
	if quantity != 1 {
		return &InsufficientStockError{ProductCode: p.Code, Available: 1, Requested: quantity}
	}
	if p.Status == product.StatusSold {
		return &AlreadySoldError{ProductCode: p.Code, SKUValue: p.SKUValue}
	}
	if !p.IsAvailable() || p.Quantity < 1 {
		return &InsufficientStockError{ProductCode: p.Code, Available: p.Quantity, Requested: quantity}
	}

	// One live sale item per tracked unit. The SKU is the physical identity
	// when present, the product code otherwise.
	query := tx.Model(&SaleItem{}).Where("is_reversed = ?", false)
	if p.SKUValue != "" {
		query = query.Where("sku_value = ?", p.SKUValue)
	} else {
		query = query.Where("product_code = ?", p.Code)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check prior sales for %s: %w", p.Code, err)
	}
	if count > 0 {
		return &AlreadySoldError{ProductCode: p.Code, SKUValue: p.SKUValue}
	}
	return nil
}

// normalizeLines merges duplicate product codes and orders lines by code so
// locks are always taken in the same order. Duplicate lines may only merge
// when they agree on the unit price; repricing a submitted line is never ok.
func normalizeLines(items []CartLine) ([]CartLine, error) {
	if len(items) == 0 {
		return nil, ErrEmptyCart
	}

	merged := make(map[string]*CartLine, len(items))
	codes := make([]string, 0, len(items))
	for _, item := range items {
		if item.Quantity < 1 {
			return nil, fmt.Errorf("invalid quantity %d for product %s", item.Quantity, item.ProductCode)
		}
		if existing, ok := merged[item.ProductCode]; ok {
			if existing.UnitPrice != item.UnitPrice {
				return nil, fmt.Errorf("%w for product %s: %d and %d",
					ErrLinePriceConflict, item.ProductCode, existing.UnitPrice, item.UnitPrice)
			}
			existing.Quantity += item.Quantity
			continue
		}
		line := item
		merged[item.ProductCode] = &line
		codes = append(codes, item.ProductCode)
	}
	sort.Strings(codes)

	lines := make([]CartLine, 0, len(codes))
	for _, code := range codes {
		lines = append(lines, *merged[code])
	}
	return lines, nil
}

func (s *Service) notifyCompleted(sl *Sale) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SaleCompleted(sl); err != nil {
		s.logger.WithError(err).WithField("sale_number", sl.SaleNumber).
			Warn("sale completed notification failed")
	}
}

func (s *Service) alertLowStock(products []product.Product) {
	if !s.config.Sales.LowStockAlerts {
		return
	}
	for _, p := range products {
		s.logger.WithFields(logrus.Fields{
			"product_code": p.Code,
			"quantity":     p.Quantity,
		}).Warn("product crossed reorder level")
	}
}

// GetSale retrieves a sale with its items and reversal record
func (s *Service) GetSale(id uint) (*Sale, error) {
	var sl Sale
	if err := s.db.Preload("Items").Preload("Reversal").First(&sl, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return &sl, nil
}

// GetSaleByNumber retrieves a sale by its sale number
func (s *Service) GetSaleByNumber(saleNumber string) (*Sale, error) {
	var sl Sale
	if err := s.db.Preload("Items").Preload("Reversal").
		Where("sale_number = ?", saleNumber).First(&sl).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return &sl, nil
}

// ListSales retrieves sales with filtering and pagination, newest first
func (s *Service) ListSales(filter *ListFilter) (*ListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 || filter.Limit > 100 {
		filter.Limit = 20
	}

	query := s.db.Model(&Sale{})
	if filter.SellerID != 0 {
		query = query.Where("seller_id = ?", filter.SellerID)
	}
	if filter.IsReversed != nil {
		query = query.Where("is_reversed = ?", *filter.IsReversed)
	}
	if filter.IsCredit != nil {
		query = query.Where("is_credit = ?", *filter.IsCredit)
	}
	if filter.DateFrom != "" {
		query = query.Where("sale_date >= ?", filter.DateFrom)
	}
	if filter.DateTo != "" {
		query = query.Where("sale_date <= ?", filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("failed to count sales: %w", err)
	}

	var sales []Sale
	offset := (filter.Page - 1) * filter.Limit
	if err := query.Preload("Items").Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).Find(&sales).Error; err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}

	totalPages := int((total + int64(filter.Limit) - 1) / int64(filter.Limit))
	return &ListResponse{
		Sales: sales,
		Pagination: Pagination{
			Page:       filter.Page,
			Limit:      filter.Limit,
			Total:      total,
			TotalPages: totalPages,
		},
	}, nil
}
