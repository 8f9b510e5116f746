// internal/domain/product/entity.go
package product

import (
	"time"

	"gorm.io/gorm"
)

// ProductStatus represents the availability state of a product
type ProductStatus string

const (
	StatusAvailable  ProductStatus = "available"
	StatusSold       ProductStatus = "sold"
	StatusLowStock   ProductStatus = "lowstock"
	StatusOutOfStock ProductStatus = "outofstock"
	StatusDamaged    ProductStatus = "damaged"
)

// ItemType distinguishes how a category tracks its stock
type ItemType string

const (
	// ItemTypeSingle tracks one physical unit per product row, quantity 0 or 1
	ItemTypeSingle ItemType = "single"
	// ItemTypeBulk tracks a counted quantity per product row
	ItemTypeBulk ItemType = "bulk"
)

// StockEntryType identifies why a stock entry was written
type StockEntryType string

const (
	EntrySale       StockEntryType = "sale"
	EntryReversal   StockEntryType = "reversal"
	EntryRestock    StockEntryType = "restock"
	EntryAdjustment StockEntryType = "adjustment"
	EntryFix        StockEntryType = "fix"
)

// Category groups products and carries the stock-tracking rules for them
type Category struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Name         string         `json:"name" gorm:"not null;size:255"`
	Slug         string         `json:"slug" gorm:"uniqueIndex;not null;size:255"`
	Description  string         `json:"description" gorm:"type:text"`
	ItemType     ItemType       `json:"item_type" gorm:"not null;default:'bulk';size:20"`
	SKULabel     string         `json:"sku_label" gorm:"size:100"`
	ReorderLevel int            `json:"reorder_level" gorm:"default:0"`
	IsActive     bool           `json:"is_active" gorm:"default:true"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Products []Product `json:"products,omitempty" gorm:"foreignKey:CategoryID"`
}

// TableName returns the table name for Category
func (Category) TableName() string {
	return "categories"
}

// IsSingleItem returns true if products in this category are tracked per unit
func (c *Category) IsSingleItem() bool {
	return c.ItemType == ItemTypeSingle
}

// Product represents one row in the product ledger
type Product struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Code        string         `json:"code" gorm:"uniqueIndex;not null;size:100"`
	Name        string         `json:"name" gorm:"not null;size:255"`
	Description string         `json:"description" gorm:"type:text"`
	CategoryID  uint           `json:"category_id" gorm:"not null;index"`
	Quantity    int            `json:"quantity" gorm:"not null;default:0"`
	Status      ProductStatus  `json:"status" gorm:"not null;default:'available';size:20;index"`
	UnitPrice   int64          `json:"unit_price" gorm:"not null"` // Price in cents
	CostPrice   int64          `json:"cost_price" gorm:"default:0"`
	SKUValue    string         `json:"sku_value" gorm:"size:255;index"`
	OwnerID     *uint          `json:"owner_id,omitempty" gorm:"index"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`

	Category Category `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
}

// TableName returns the table name for Product
func (Product) TableName() string {
	return "products"
}

// IsAvailable returns true if the product can be added to a sale
func (p *Product) IsAvailable() bool {
	return p.Status == StatusAvailable || p.Status == StatusLowStock
}

// IsDamaged returns true if an operator marked the product damaged
func (p *Product) IsDamaged() bool {
	return p.Status == StatusDamaged
}

// DeriveStatus computes the status a product should carry for its current
// quantity. Damaged is an operator decision and is never overwritten here.
func DeriveStatus(itemType ItemType, quantity, reorderLevel int, current ProductStatus) ProductStatus {
	if current == StatusDamaged {
		return StatusDamaged
	}
	if itemType == ItemTypeSingle {
		if quantity <= 0 {
			return StatusSold
		}
		return StatusAvailable
	}
	switch {
	case quantity <= 0:
		return StatusOutOfStock
	case quantity <= reorderLevel:
		return StatusLowStock
	default:
		return StatusAvailable
	}
}

// StockEntry is one append-only row in the stock movement ledger.
// ReferenceID carries the sale number for sale and reversal entries,
// and "FIX-<sale number>" for entries synthesized by the auditor.
type StockEntry struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	ProductID     *uint          `json:"product_id,omitempty" gorm:"index"`
	ProductCode   string         `json:"product_code" gorm:"not null;size:100;index"`
	EntryType     StockEntryType `json:"entry_type" gorm:"not null;size:20;index"`
	QuantityDelta int            `json:"quantity_delta" gorm:"not null"`
	UnitPrice     int64          `json:"unit_price" gorm:"default:0"`
	TotalAmount   int64          `json:"total_amount" gorm:"default:0"`
	ReferenceID   string         `json:"reference_id" gorm:"size:100;index"`
	Notes         string         `json:"notes" gorm:"type:text"`
	CreatedBy     uint           `json:"created_by"`
	CreatedAt     time.Time      `json:"created_at"`
}

// TableName returns the table name for StockEntry
func (StockEntry) TableName() string {
	return "stock_entries"
}
