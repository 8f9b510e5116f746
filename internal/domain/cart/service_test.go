package cart

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/product"
	"github.com/your-org/pos-backoffice/internal/domain/sale"
)

func setupTest(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()

	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis not available, skipping: %v", err)
	}

	dbPath := filepath.Join(t.TempDir(), "cart_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&product.Category{}, &product.Product{}))

	cfg := &config.Config{
		Sales: config.SalesConfig{CartTTL: time.Minute},
	}
	return db, NewService(db, client, cfg)
}

func seedBulk(t *testing.T, db *gorm.DB, code string, qty int, price int64) {
	t.Helper()
	cat := &product.Category{
		Name:     "Bulk " + code,
		Slug:     "bulk-" + code,
		ItemType: product.ItemTypeBulk,
		IsActive: true,
	}
	require.NoError(t, db.Create(cat).Error)
	require.NoError(t, db.Create(&product.Product{
		Code:       code,
		Name:       "Product " + code,
		CategoryID: cat.ID,
		Quantity:   qty,
		Status:     product.StatusAvailable,
		UnitPrice:  price,
	}).Error)
}

func seedSingle(t *testing.T, db *gorm.DB, code, sku string, price int64) {
	t.Helper()
	cat := &product.Category{
		Name:     "Single " + code,
		Slug:     "single-" + code,
		ItemType: product.ItemTypeSingle,
		IsActive: true,
	}
	require.NoError(t, db.Create(cat).Error)
	require.NoError(t, db.Create(&product.Product{
		Code:       code,
		Name:       "Product " + code,
		CategoryID: cat.ID,
		Quantity:   1,
		Status:     product.StatusAvailable,
		UnitPrice:  price,
		SKUValue:   sku,
	}).Error)
}

func TestAddItemAndTotals(t *testing.T) {
	db, svc := setupTest(t)
	seedBulk(t, db, "A1", 10, 500)
	ctx := context.Background()
	session := uuid.New().String()
	defer svc.Clear(ctx, session)

	c, err := svc.AddItem(ctx, session, &AddItemRequest{ProductCode: "A1", Quantity: 2})
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, int64(1000), c.Lines[0].TotalPrice)

	// Adding again merges into the existing line.
	c, err = svc.AddItem(ctx, session, &AddItemRequest{ProductCode: "A1", Quantity: 3})
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)
	assert.Equal(t, 5, c.Lines[0].Quantity)

	totals := c.Totals()
	assert.Equal(t, 5, totals.ItemCount)
	assert.Equal(t, int64(2500), totals.Subtotal)
}

func TestAddItemRejectsOverstaging(t *testing.T) {
	db, svc := setupTest(t)
	seedBulk(t, db, "A1", 3, 500)
	ctx := context.Background()
	session := uuid.New().String()
	defer svc.Clear(ctx, session)

	_, err := svc.AddItem(ctx, session, &AddItemRequest{ProductCode: "A1", Quantity: 5})
	var stockErr *sale.InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, 3, stockErr.Available)
}

func TestAddItemSingleItemOnlyOnce(t *testing.T) {
	db, svc := setupTest(t)
	seedSingle(t, db, "PH1", "IMEI-1", 50000)
	ctx := context.Background()
	session := uuid.New().String()
	defer svc.Clear(ctx, session)

	_, err := svc.AddItem(ctx, session, &AddItemRequest{ProductCode: "PH1", Quantity: 1})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, session, &AddItemRequest{ProductCode: "PH1", Quantity: 1})
	require.ErrorIs(t, err, ErrDuplicateSingleItem)
}

func TestCartIsSessionScoped(t *testing.T) {
	db, svc := setupTest(t)
	seedBulk(t, db, "A1", 10, 500)
	ctx := context.Background()
	first := uuid.New().String()
	second := uuid.New().String()
	defer svc.Clear(ctx, first)

	_, err := svc.AddItem(ctx, first, &AddItemRequest{ProductCode: "A1", Quantity: 2})
	require.NoError(t, err)

	other, err := svc.Get(ctx, second)
	require.NoError(t, err)
	assert.True(t, other.IsEmpty())
}

func TestUpdateAndRemoveItem(t *testing.T) {
	db, svc := setupTest(t)
	seedBulk(t, db, "A1", 10, 500)
	ctx := context.Background()
	session := uuid.New().String()
	defer svc.Clear(ctx, session)

	_, err := svc.AddItem(ctx, session, &AddItemRequest{ProductCode: "A1", Quantity: 2})
	require.NoError(t, err)

	c, err := svc.UpdateItem(ctx, session, "A1", &UpdateItemRequest{Quantity: 4})
	require.NoError(t, err)
	assert.Equal(t, 4, c.Lines[0].Quantity)
	assert.Equal(t, int64(2000), c.Lines[0].TotalPrice)

	c, err = svc.RemoveItem(ctx, session, "A1")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())

	_, err = svc.UpdateItem(ctx, session, "A1", &UpdateItemRequest{Quantity: 1})
	require.ErrorIs(t, err, ErrLineNotFound)
}

func TestCheckoutLines(t *testing.T) {
	db, svc := setupTest(t)
	seedBulk(t, db, "A1", 10, 500)
	seedBulk(t, db, "B2", 5, 1200)
	ctx := context.Background()
	session := uuid.New().String()
	defer svc.Clear(ctx, session)

	_, err := svc.AddItem(ctx, session, &AddItemRequest{ProductCode: "A1", Quantity: 2})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, session, &AddItemRequest{ProductCode: "B2", Quantity: 1})
	require.NoError(t, err)

	lines, err := svc.CheckoutLines(ctx, session)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, sale.CartLine{ProductCode: "A1", Quantity: 2, UnitPrice: 500}, lines[0])
	assert.Equal(t, sale.CartLine{ProductCode: "B2", Quantity: 1, UnitPrice: 1200}, lines[1])

	empty := uuid.New().String()
	_, err = svc.CheckoutLines(ctx, empty)
	require.ErrorIs(t, err, sale.ErrEmptyCart)
}
