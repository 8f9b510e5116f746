// internal/domain/cart/entity.go
package cart

import (
	"time"
)

// Cart is the staging area for one session. It lives in Redis only and
// holds nothing durable until checkout turns it into a sale.
type Cart struct {
	SessionID string    `json:"session_id"`
	Lines     []Line    `json:"lines"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Line is one pending item in a cart
type Line struct {
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	SKUValue    string `json:"sku_value,omitempty"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"` // Price in cents
	TotalPrice  int64  `json:"total_price"`
}

// Totals summarizes a cart for display
type Totals struct {
	ItemCount int   `json:"item_count"`
	Subtotal  int64 `json:"subtotal"`
}

// Totals computes the current cart totals
func (c *Cart) Totals() Totals {
	var t Totals
	for _, line := range c.Lines {
		t.ItemCount += line.Quantity
		t.Subtotal += line.TotalPrice
	}
	return t
}

// IsEmpty returns true when the cart holds no lines
func (c *Cart) IsEmpty() bool {
	return len(c.Lines) == 0
}
