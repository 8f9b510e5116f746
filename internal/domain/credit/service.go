// internal/domain/credit/service.go
package credit

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/your-org/pos-backoffice/internal/config"
)

// Service handles credit account business logic
type Service struct {
	db     *gorm.DB
	config *config.Config
}

// NewService creates a new credit service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		config: cfg,
	}
}

var (
	// ErrRecordNotFound is returned when a credit record lookup misses
	ErrRecordNotFound = errors.New("credit record not found")
	// ErrAlreadySettled is returned when paying against a settled record
	ErrAlreadySettled = errors.New("credit record already settled")
	// ErrOverpayment is returned when a payment exceeds the open balance
	ErrOverpayment = errors.New("payment exceeds outstanding balance")
)

// PaymentRequest represents a payment against a credit record
type PaymentRequest struct {
	Amount int64  `json:"amount" binding:"required,min=1"`
	Notes  string `json:"notes"`
}

// forUpdate applies a row-level write lock where the dialect supports it.
// SQLite serializes writers on its own and rejects FOR UPDATE.
func forUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// GetRecord retrieves a credit record with its payments
func (s *Service) GetRecord(id uint) (*CreditRecord, error) {
	var record CreditRecord
	if err := s.db.Preload("Payments").First(&record, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get credit record: %w", err)
	}
	return &record, nil
}

// GetRecordBySale retrieves the credit record attached to a sale
func (s *Service) GetRecordBySale(saleID uint) (*CreditRecord, error) {
	var record CreditRecord
	if err := s.db.Preload("Payments").Where("sale_id = ?", saleID).First(&record).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get credit record: %w", err)
	}
	return &record, nil
}

// ListOutstanding retrieves unsettled credit records, oldest first
func (s *Service) ListOutstanding() ([]CreditRecord, error) {
	var records []CreditRecord
	if err := s.db.Where("is_settled = ?", false).
		Order("created_at ASC").Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list outstanding credits: %w", err)
	}
	return records, nil
}

// RecordPayment applies a payment to a credit record and settles it when
// the balance reaches zero
func (s *Service) RecordPayment(recordID uint, req *PaymentRequest, receivedBy uint) (*CreditRecord, error) {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	var record CreditRecord
	if err := forUpdate(tx).First(&record, recordID).Error; err != nil {
		tx.Rollback()
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to lock credit record: %w", err)
	}

	if record.IsSettled {
		tx.Rollback()
		return nil, ErrAlreadySettled
	}
	if req.Amount > record.Balance {
		tx.Rollback()
		return nil, ErrOverpayment
	}

	payment := &CreditPayment{
		CreditRecordID: record.ID,
		Amount:         req.Amount,
		ReceivedBy:     receivedBy,
		Notes:          req.Notes,
	}
	if err := tx.Create(payment).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	record.AmountPaid += req.Amount
	record.Balance -= req.Amount
	record.IsSettled = record.Balance == 0

	if err := tx.Model(&CreditRecord{}).Where("id = ?", record.ID).
		Updates(map[string]interface{}{
			"amount_paid": record.AmountPaid,
			"balance":     record.Balance,
			"is_settled":  record.IsSettled,
		}).Error; err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("failed to update credit record: %w", err)
	}

	if err := tx.Commit().Error; err != nil {
		return nil, fmt.Errorf("failed to commit payment: %w", err)
	}
	return &record, nil
}
