package product

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name         string
		itemType     ItemType
		quantity     int
		reorderLevel int
		current      ProductStatus
		want         ProductStatus
	}{
		{"single with stock", ItemTypeSingle, 1, 0, StatusAvailable, StatusAvailable},
		{"single sold out", ItemTypeSingle, 0, 0, StatusAvailable, StatusSold},
		{"single back in stock", ItemTypeSingle, 1, 0, StatusSold, StatusAvailable},
		{"bulk healthy", ItemTypeBulk, 50, 10, StatusAvailable, StatusAvailable},
		{"bulk at reorder level", ItemTypeBulk, 10, 10, StatusAvailable, StatusLowStock},
		{"bulk below reorder level", ItemTypeBulk, 3, 10, StatusAvailable, StatusLowStock},
		{"bulk empty", ItemTypeBulk, 0, 10, StatusLowStock, StatusOutOfStock},
		{"bulk recovers from lowstock", ItemTypeBulk, 25, 10, StatusLowStock, StatusAvailable},
		{"damaged is sticky for bulk", ItemTypeBulk, 100, 10, StatusDamaged, StatusDamaged},
		{"damaged is sticky for single", ItemTypeSingle, 1, 0, StatusDamaged, StatusDamaged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeriveStatus(tt.itemType, tt.quantity, tt.reorderLevel, tt.current)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProductIsAvailable(t *testing.T) {
	assert.True(t, (&Product{Status: StatusAvailable}).IsAvailable())
	assert.True(t, (&Product{Status: StatusLowStock}).IsAvailable())
	assert.False(t, (&Product{Status: StatusSold}).IsAvailable())
	assert.False(t, (&Product{Status: StatusOutOfStock}).IsAvailable())
	assert.False(t, (&Product{Status: StatusDamaged}).IsAvailable())
}

func TestCategoryIsSingleItem(t *testing.T) {
	assert.True(t, (&Category{ItemType: ItemTypeSingle}).IsSingleItem())
	assert.False(t, (&Category{ItemType: ItemTypeBulk}).IsSingleItem())
}
