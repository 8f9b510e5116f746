// internal/domain/sale/reversal.go
package sale

import (
	"errors"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/pos-backoffice/internal/domain/product"
)

// ReverseSaleRequest represents a sale reversal request
type ReverseSaleRequest struct {
	Reason string `json:"reason" binding:"required"`
}

// ReverseSale undoes a committed sale in a single transaction: stock is
// restored, one reversal stock entry is written per item, and a SaleReversal
// row marks the sale as reversed. A sale can only be reversed once.
//
// An item whose product row no longer exists is still processed. Its ledger
// entry is written without a product reference and the product restore is
// skipped for the auditor to flag.
func (s *Service) ReverseSale(saleID uint, reversedBy uint, reason string) (*SaleReversal, error) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var sl Sale
	if err := forUpdate(tx).First(&sl, saleID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to lock sale: %w", err)
	}
	if sl.IsReversed {
		tx.Rollback()
		return nil, ErrAlreadyReversed
	}

	var items []SaleItem
	if err := tx.Where("sale_id = ?", sl.ID).Find(&items).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to load sale items: %w", err)
	}

	// Lock products in code order, same as checkout.
	sorted := make([]SaleItem, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ProductCode < sorted[j].ProductCode
	})

	for _, item := range sorted {
		var p product.Product
		err := forUpdate(tx).Preload("Category").
			Where("code = ?", item.ProductCode).First(&p).Error
		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				tx.Rollback()
				return nil, fmt.Errorf("failed to lock product %s: %w", item.ProductCode, err)
			}
			s.logger.WithFields(logrus.Fields{
				"sale_number":  sl.SaleNumber,
				"product_code": item.ProductCode,
			}).Warn("reversal found no product row, restoring ledger only")
			if err := s.writeReversalEntry(tx, &sl, &item, nil, reversedBy); err != nil {
				tx.Rollback()
				return nil, err
			}
			continue
		}

		var newQuantity int
		var newStatus product.ProductStatus
		if p.Category.IsSingleItem() {
			newQuantity = 1
			newStatus = product.DeriveStatus(p.Category.ItemType, newQuantity, p.Category.ReorderLevel, p.Status)
		} else {
			newQuantity = p.Quantity + item.Quantity
			newStatus = product.DeriveStatus(p.Category.ItemType, newQuantity, p.Category.ReorderLevel, p.Status)
		}
		if err := tx.Model(&product.Product{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{"quantity": newQuantity, "status": newStatus}).Error; err != nil {
			tx.Rollback()
			return nil, fmt.Errorf("failed to restore product %s: %w", p.Code, err)
		}

		productID := p.ID
		if err := s.writeReversalEntry(tx, &sl, &item, &productID, reversedBy); err != nil {
			tx.Rollback()
			return nil, err
		}
	}

	if err := tx.Model(&SaleItem{}).Where("sale_id = ?", sl.ID).
		Update("is_reversed", true).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to mark sale items reversed: %w", err)
	}

	reversal := &SaleReversal{
		SaleID:              sl.ID,
		SaleNumber:          sl.SaleNumber,
		ReversedBy:          reversedBy,
		Reason:              reason,
		ItemsProcessed:      len(items),
		TotalAmountReversed: sl.TotalAmount,
	}
	if err := tx.Create(reversal).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to create reversal record: %w", err)
	}

	if err := tx.Model(&Sale{}).Where("id = ?", sl.ID).
		Update("is_reversed", true).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to mark sale reversed: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit reversal: %w", err)
	}

	sl.IsReversed = true
	s.notifyReversed(&sl, reversal)

	return reversal, nil
}

func (s *Service) writeReversalEntry(tx *gorm.DB, sl *Sale, item *SaleItem, productID *uint, reversedBy uint) error {
	entry := &product.StockEntry{
		ProductID:     productID,
		ProductCode:   item.ProductCode,
		EntryType:     product.EntryReversal,
		QuantityDelta: item.Quantity,
		UnitPrice:     item.UnitPrice,
		TotalAmount:   item.TotalPrice,
		ReferenceID:   sl.SaleNumber,
		CreatedBy:     reversedBy,
	}
	if err := tx.Create(entry).Error; err != nil {
		return fmt.Errorf("failed to record reversal entry for %s: %w", item.ProductCode, err)
	}
	return nil
}

func (s *Service) notifyReversed(sl *Sale, r *SaleReversal) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.SaleReversed(sl, r); err != nil {
		s.logger.WithError(err).WithField("sale_number", sl.SaleNumber).
			Warn("sale reversed notification failed")
	}
}
