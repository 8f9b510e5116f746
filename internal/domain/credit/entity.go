// internal/domain/credit/entity.go
package credit

import (
	"time"

	"gorm.io/gorm"
)

// CreditRecord tracks the outstanding balance of a sale made on credit
type CreditRecord struct {
	ID         uint           `json:"id" gorm:"primaryKey"`
	SaleID     uint           `json:"sale_id" gorm:"uniqueIndex;not null"`
	SaleNumber string         `json:"sale_number" gorm:"not null;size:50;index"`
	BuyerName  string         `json:"buyer_name" gorm:"size:255"`
	BuyerPhone string         `json:"buyer_phone" gorm:"size:50;index"`
	Principal  int64          `json:"principal" gorm:"not null"` // Amounts in cents
	AmountPaid int64          `json:"amount_paid" gorm:"not null;default:0"`
	Balance    int64          `json:"balance" gorm:"not null"`
	IsSettled  bool           `json:"is_settled" gorm:"default:false;index"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Payments []CreditPayment `json:"payments,omitempty" gorm:"foreignKey:CreditRecordID"`
}

// TableName returns the table name for CreditRecord
func (CreditRecord) TableName() string {
	return "credit_records"
}

// CreditPayment is one payment applied against a credit record
type CreditPayment struct {
	ID             uint      `json:"id" gorm:"primaryKey"`
	CreditRecordID uint      `json:"credit_record_id" gorm:"not null;index"`
	Amount         int64     `json:"amount" gorm:"not null"`
	ReceivedBy     uint      `json:"received_by" gorm:"not null"`
	Notes          string    `json:"notes" gorm:"type:text"`
	CreatedAt      time.Time `json:"created_at"`
}

// TableName returns the table name for CreditPayment
func (CreditPayment) TableName() string {
	return "credit_payments"
}
