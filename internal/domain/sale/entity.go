// internal/domain/sale/entity.go
package sale

import (
	"time"

	"gorm.io/gorm"
)

// PaymentMethod identifies how a buyer settled a sale
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCredit   PaymentMethod = "credit"
)

// Sale represents a committed sale transaction
type Sale struct {
	ID             uint           `json:"id" gorm:"primaryKey"`
	SaleNumber     string         `json:"sale_number" gorm:"uniqueIndex;not null;size:50"`
	SellerID       uint           `json:"seller_id" gorm:"not null;index"`
	BuyerName      string         `json:"buyer_name" gorm:"size:255"`
	BuyerPhone     string         `json:"buyer_phone" gorm:"size:50"`
	PaymentMethod  PaymentMethod  `json:"payment_method" gorm:"not null;size:20"`
	Subtotal       int64          `json:"subtotal" gorm:"not null"` // Amounts in cents
	TaxAmount      int64          `json:"tax_amount" gorm:"default:0"`
	TotalAmount    int64          `json:"total_amount" gorm:"not null"`
	AmountPaid     int64          `json:"amount_paid" gorm:"not null"`
	IsCredit       bool           `json:"is_credit" gorm:"default:false"`
	CreditRecordID *uint          `json:"credit_record_id,omitempty"`
	IsReversed     bool           `json:"is_reversed" gorm:"default:false;index"`
	SaleDate       time.Time      `json:"sale_date" gorm:"index"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Items    []SaleItem    `json:"items,omitempty" gorm:"foreignKey:SaleID"`
	Reversal *SaleReversal `json:"reversal,omitempty" gorm:"foreignKey:SaleID"`
}

// TableName returns the table name for Sale
func (Sale) TableName() string {
	return "sales"
}

// SaleItem is one line of a sale with the product state snapshotted at
// commit time. Snapshots survive later product edits and deletions.
type SaleItem struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	SaleID      uint      `json:"sale_id" gorm:"not null;index"`
	ProductID   uint      `json:"product_id" gorm:"not null;index"`
	ProductCode string    `json:"product_code" gorm:"not null;size:100;index"`
	ProductName string    `json:"product_name" gorm:"not null;size:255"`
	SKUValue    string    `json:"sku_value" gorm:"size:255;index"`
	Quantity    int       `json:"quantity" gorm:"not null"`
	UnitPrice   int64     `json:"unit_price" gorm:"not null"`
	TotalPrice  int64     `json:"total_price" gorm:"not null"`
	IsReversed  bool      `json:"is_reversed" gorm:"default:false;index"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the table name for SaleItem
func (SaleItem) TableName() string {
	return "sale_items"
}

// SaleReversal records the undoing of a sale, one per reversed sale
type SaleReversal struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	SaleID              uint      `json:"sale_id" gorm:"uniqueIndex;not null"`
	SaleNumber          string    `json:"sale_number" gorm:"not null;size:50;index"`
	ReversedBy          uint      `json:"reversed_by" gorm:"not null"`
	Reason              string    `json:"reason" gorm:"type:text"`
	ItemsProcessed      int       `json:"items_processed" gorm:"not null"`
	TotalAmountReversed int64     `json:"total_amount_reversed" gorm:"not null"`
	CreatedAt           time.Time `json:"created_at"`
}

// TableName returns the table name for SaleReversal
func (SaleReversal) TableName() string {
	return "sale_reversals"
}

// CartLine is one checkout line handed to the sale engine
type CartLine struct {
	ProductCode string `json:"product_code" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
	UnitPrice   int64  `json:"unit_price" binding:"required,min=1"`
}

// BuyerInfo carries the optional buyer details for a sale
type BuyerInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Pagination holds the page metadata for listings
type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}
