package sale

import (
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/credit"
	"github.com/your-org/pos-backoffice/internal/domain/product"
)

func setupTest(t *testing.T) (*gorm.DB, *Service) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "pos_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open test database")

	err = db.AutoMigrate(
		&product.Category{},
		&product.Product{},
		&product.StockEntry{},
		&Sale{},
		&SaleItem{},
		&SaleReversal{},
		&credit.CreditRecord{},
		&credit.CreditPayment{},
	)
	require.NoError(t, err, "failed to migrate test database")

	cfg := &config.Config{
		Sales: config.SalesConfig{
			NumberPrefix:   "SAL",
			LowStockAlerts: true,
		},
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	return db, NewService(db, cfg, nil, log)
}

func seedBulkCategory(t *testing.T, db *gorm.DB, reorderLevel int) *product.Category {
	t.Helper()
	c := &product.Category{
		Name:         "Accessories",
		Slug:         "accessories",
		ItemType:     product.ItemTypeBulk,
		ReorderLevel: reorderLevel,
		IsActive:     true,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedSingleCategory(t *testing.T, db *gorm.DB) *product.Category {
	t.Helper()
	c := &product.Category{
		Name:     "Phones",
		Slug:     "phones",
		ItemType: product.ItemTypeSingle,
		SKULabel: "IMEI",
		IsActive: true,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedProduct(t *testing.T, db *gorm.DB, categoryID uint, code string, qty int, price int64, sku string) *product.Product {
	t.Helper()
	status := product.StatusAvailable
	if qty == 0 {
		status = product.StatusSold
	}
	p := &product.Product{
		Code:       code,
		Name:       "Product " + code,
		CategoryID: categoryID,
		Quantity:   qty,
		Status:     status,
		UnitPrice:  price,
		SKUValue:   sku,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func TestCreateSaleComputesTotalsAndLedger(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedBulkCategory(t, db, 2)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")
	seedProduct(t, db, cat.ID, "B2", 5, 1200, "")

	sl, err := svc.CreateSale(1, &CreateSaleRequest{
		Items: []CartLine{
			{ProductCode: "A1", Quantity: 2, UnitPrice: 500},
			{ProductCode: "B2", Quantity: 1, UnitPrice: 1200},
		},
		PaymentMethod: PaymentCash,
		AmountPaid:    2200,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(2200), sl.Subtotal)
	assert.Equal(t, int64(2200), sl.TotalAmount)
	assert.Regexp(t, `^SAL-\d{8}-\d{5}$`, sl.SaleNumber)
	require.Len(t, sl.Items, 2)
	assert.Equal(t, int64(1000), sl.Items[0].TotalPrice)
	assert.Equal(t, int64(1200), sl.Items[1].TotalPrice)

	var a1, b2 product.Product
	require.NoError(t, db.Where("code = ?", "A1").First(&a1).Error)
	require.NoError(t, db.Where("code = ?", "B2").First(&b2).Error)
	assert.Equal(t, 8, a1.Quantity)
	assert.Equal(t, 4, b2.Quantity)

	var entries []product.StockEntry
	require.NoError(t, db.Where("reference_id = ?", sl.SaleNumber).Order("product_code ASC").Find(&entries).Error)
	require.Len(t, entries, 2)
	assert.Equal(t, -2, entries[0].QuantityDelta)
	assert.Equal(t, product.EntrySale, entries[0].EntryType)
	assert.Equal(t, -1, entries[1].QuantityDelta)
}

func TestCreateSaleRollsBackOnInsufficientStock(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedBulkCategory(t, db, 0)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")
	seedProduct(t, db, cat.ID, "B2", 1, 1200, "")

	_, err := svc.CreateSale(1, &CreateSaleRequest{
		Items: []CartLine{
			{ProductCode: "A1", Quantity: 2, UnitPrice: 500},
			{ProductCode: "B2", Quantity: 3, UnitPrice: 1200},
		},
		PaymentMethod: PaymentCash,
	})
	require.Error(t, err)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	assert.Equal(t, "B2", stockErr.ProductCode)
	assert.Equal(t, 1, stockErr.Available)
	assert.Equal(t, 3, stockErr.Requested)

	// Nothing may survive the rollback.
	var sales, items, entries int64
	db.Model(&Sale{}).Count(&sales)
	db.Model(&SaleItem{}).Count(&items)
	db.Model(&product.StockEntry{}).Count(&entries)
	assert.Zero(t, sales)
	assert.Zero(t, items)
	assert.Zero(t, entries)

	var a1 product.Product
	require.NoError(t, db.Where("code = ?", "A1").First(&a1).Error)
	assert.Equal(t, 10, a1.Quantity)
}

func TestCreateSaleUnknownProduct(t *testing.T) {
	_, svc := setupTest(t)

	_, err := svc.CreateSale(1, &CreateSaleRequest{
		Items:         []CartLine{{ProductCode: "NOPE", Quantity: 1, UnitPrice: 100}},
		PaymentMethod: PaymentCash,
	})
	require.ErrorIs(t, err, ErrProductNotFound)
}

func TestCreateSaleEmptyCart(t *testing.T) {
	_, svc := setupTest(t)

	_, err := svc.CreateSale(1, &CreateSaleRequest{PaymentMethod: PaymentCash})
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestCreateSaleSingleItemDoubleSell(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedSingleCategory(t, db)
	seedProduct(t, db, cat.ID, "PH1", 1, 50000, "IMEI-123")

	_, err := svc.CreateSale(1, &CreateSaleRequest{
		Items:         []CartLine{{ProductCode: "PH1", Quantity: 1, UnitPrice: 50000}},
		PaymentMethod: PaymentCash,
		AmountPaid:    50000,
	})
	require.NoError(t, err)

	var p product.Product
	require.NoError(t, db.Where("code = ?", "PH1").First(&p).Error)
	assert.Equal(t, 0, p.Quantity)
	assert.Equal(t, product.StatusSold, p.Status)

	_, err = svc.CreateSale(1, &CreateSaleRequest{
		Items:         []CartLine{{ProductCode: "PH1", Quantity: 1, UnitPrice: 50000}},
		PaymentMethod: PaymentCash,
	})
	var soldErr *AlreadySoldError
	require.ErrorAs(t, err, &soldErr)
	assert.Equal(t, "PH1", soldErr.ProductCode)

	// A second row carrying the same SKU is still blocked while the first
	// sale item is live.
	seedProduct(t, db, cat.ID, "PH2", 1, 50000, "IMEI-123")
	_, err = svc.CreateSale(1, &CreateSaleRequest{
		Items:         []CartLine{{ProductCode: "PH2", Quantity: 1, UnitPrice: 50000}},
		PaymentMethod: PaymentCash,
	})
	require.ErrorAs(t, err, &soldErr)
}

func TestCreateSaleSingleItemQuantityLimit(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedSingleCategory(t, db)
	seedProduct(t, db, cat.ID, "PH1", 1, 50000, "IMEI-9")

	_, err := svc.CreateSale(1, &CreateSaleRequest{
		Items:         []CartLine{{ProductCode: "PH1", Quantity: 2, UnitPrice: 50000}},
		PaymentMethod: PaymentCash,
	})
	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
}

func TestCreateSaleCreditRecord(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedBulkCategory(t, db, 0)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")

	sl, err := svc.CreateSale(1, &CreateSaleRequest{
		Items:         []CartLine{{ProductCode: "A1", Quantity: 4, UnitPrice: 500}},
		Buyer:         BuyerInfo{Name: "Ada", Phone: "555-0100"},
		PaymentMethod: PaymentCredit,
		AmountPaid:    500,
		IsCredit:      true,
	})
	require.NoError(t, err)
	require.NotNil(t, sl.CreditRecordID)

	var record credit.CreditRecord
	require.NoError(t, db.First(&record, *sl.CreditRecordID).Error)
	assert.Equal(t, sl.ID, record.SaleID)
	assert.Equal(t, int64(2000), record.Principal)
	assert.Equal(t, int64(1500), record.Balance)
	assert.False(t, record.IsSettled)
	assert.Equal(t, "Ada", record.BuyerName)
}

func TestCreateSaleMergesDuplicateLines(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedBulkCategory(t, db, 0)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")

	sl, err := svc.CreateSale(1, &CreateSaleRequest{
		Items: []CartLine{
			{ProductCode: "A1", Quantity: 2, UnitPrice: 500},
			{ProductCode: "A1", Quantity: 3, UnitPrice: 500},
		},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)
	require.Len(t, sl.Items, 1)
	assert.Equal(t, 5, sl.Items[0].Quantity)
	assert.Equal(t, int64(2500), sl.Subtotal)
}

func TestCreateSaleRejectsConflictingDuplicatePrices(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedBulkCategory(t, db, 0)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")

	// Two lines for the same product at different prices must not merge
	// into a single repriced line (900 submitted, never 1000 charged).
	_, err := svc.CreateSale(1, &CreateSaleRequest{
		Items: []CartLine{
			{ProductCode: "A1", Quantity: 1, UnitPrice: 500},
			{ProductCode: "A1", Quantity: 1, UnitPrice: 400},
		},
		PaymentMethod: PaymentCash,
	})
	require.ErrorIs(t, err, ErrLinePriceConflict)

	var sales int64
	db.Model(&Sale{}).Count(&sales)
	assert.Zero(t, sales)

	var a1 product.Product
	require.NoError(t, db.Where("code = ?", "A1").First(&a1).Error)
	assert.Equal(t, 10, a1.Quantity)
}

func TestCreateSaleRejectsDamagedProduct(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedBulkCategory(t, db, 0)
	p := seedProduct(t, db, cat.ID, "A1", 10, 500, "")
	require.NoError(t, db.Model(p).Update("status", product.StatusDamaged).Error)

	_, err := svc.CreateSale(1, &CreateSaleRequest{
		Items:         []CartLine{{ProductCode: "A1", Quantity: 1, UnitPrice: 500}},
		PaymentMethod: PaymentCash,
	})
	require.ErrorIs(t, err, ErrProductUnavailable)

	var a1 product.Product
	require.NoError(t, db.Where("code = ?", "A1").First(&a1).Error)
	assert.Equal(t, 10, a1.Quantity)
	assert.Equal(t, product.StatusDamaged, a1.Status)

	var sales int64
	db.Model(&Sale{}).Count(&sales)
	assert.Zero(t, sales)
}

func TestCreateSaleSingleItemConcurrentAttempts(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedSingleCategory(t, db)
	seedProduct(t, db, cat.ID, "PH1", 1, 50000, "IMEI-42")

	// One connection serializes the transactions the way row locks do on
	// postgres, so the race has a deterministic loser.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CreateSale(1, &CreateSaleRequest{
				Items:         []CartLine{{ProductCode: "PH1", Quantity: 1, UnitPrice: 50000}},
				PaymentMethod: PaymentCash,
			})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var successes, rejections int
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		var soldErr *AlreadySoldError
		require.ErrorAs(t, err, &soldErr)
		rejections++
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, rejections)

	// Exactly one live sale item for the unit, no matter who won.
	var live int64
	require.NoError(t, db.Model(&SaleItem{}).
		Where("sku_value = ? AND is_reversed = ?", "IMEI-42", false).
		Count(&live).Error)
	assert.Equal(t, int64(1), live)
}

func TestReverseSaleRestoresStock(t *testing.T) {
	db, svc := setupTest(t)
	bulk := seedBulkCategory(t, db, 2)
	single := seedSingleCategory(t, db)
	seedProduct(t, db, bulk.ID, "A1", 10, 500, "")
	seedProduct(t, db, single.ID, "PH1", 1, 50000, "IMEI-1")

	sl, err := svc.CreateSale(1, &CreateSaleRequest{
		Items: []CartLine{
			{ProductCode: "A1", Quantity: 3, UnitPrice: 500},
			{ProductCode: "PH1", Quantity: 1, UnitPrice: 50000},
		},
		PaymentMethod: PaymentCash,
		AmountPaid:    51500,
	})
	require.NoError(t, err)

	reversal, err := svc.ReverseSale(sl.ID, 2, "customer returned goods")
	require.NoError(t, err)
	assert.Equal(t, 2, reversal.ItemsProcessed)
	assert.Equal(t, sl.TotalAmount, reversal.TotalAmountReversed)
	assert.Equal(t, sl.SaleNumber, reversal.SaleNumber)

	var a1, ph1 product.Product
	require.NoError(t, db.Where("code = ?", "A1").First(&a1).Error)
	require.NoError(t, db.Where("code = ?", "PH1").First(&ph1).Error)
	assert.Equal(t, 10, a1.Quantity)
	assert.Equal(t, 1, ph1.Quantity)
	assert.Equal(t, product.StatusAvailable, ph1.Status)

	var reloaded Sale
	require.NoError(t, db.Preload("Items").First(&reloaded, sl.ID).Error)
	assert.True(t, reloaded.IsReversed)
	for _, item := range reloaded.Items {
		assert.True(t, item.IsReversed)
	}

	// Ledger entries for the sale must cancel out per product.
	type sum struct {
		ProductCode string
		Total       int
	}
	var sums []sum
	require.NoError(t, db.Model(&product.StockEntry{}).
		Select("product_code, SUM(quantity_delta) as total").
		Where("reference_id = ?", sl.SaleNumber).
		Group("product_code").Scan(&sums).Error)
	require.Len(t, sums, 2)
	for _, s := range sums {
		assert.Zero(t, s.Total, "product %s ledger did not cancel", s.ProductCode)
	}
}

func TestReverseSaleOnlyOnce(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedBulkCategory(t, db, 0)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")

	sl, err := svc.CreateSale(1, &CreateSaleRequest{
		Items:         []CartLine{{ProductCode: "A1", Quantity: 2, UnitPrice: 500}},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	_, err = svc.ReverseSale(sl.ID, 1, "first")
	require.NoError(t, err)

	_, err = svc.ReverseSale(sl.ID, 1, "second")
	require.ErrorIs(t, err, ErrAlreadyReversed)

	var a1 product.Product
	require.NoError(t, db.Where("code = ?", "A1").First(&a1).Error)
	assert.Equal(t, 10, a1.Quantity)
}

func TestReverseSaleToleratesMissingProduct(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedBulkCategory(t, db, 0)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")
	seedProduct(t, db, cat.ID, "B2", 5, 1200, "")

	sl, err := svc.CreateSale(1, &CreateSaleRequest{
		Items: []CartLine{
			{ProductCode: "A1", Quantity: 2, UnitPrice: 500},
			{ProductCode: "B2", Quantity: 1, UnitPrice: 1200},
		},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	require.NoError(t, db.Unscoped().Where("code = ?", "B2").Delete(&product.Product{}).Error)

	reversal, err := svc.ReverseSale(sl.ID, 1, "return")
	require.NoError(t, err)
	assert.Equal(t, 2, reversal.ItemsProcessed)

	var a1 product.Product
	require.NoError(t, db.Where("code = ?", "A1").First(&a1).Error)
	assert.Equal(t, 10, a1.Quantity)

	// The missing product still gets its ledger entry, without a row link.
	var entry product.StockEntry
	require.NoError(t, db.Where("reference_id = ? AND product_code = ? AND entry_type = ?",
		sl.SaleNumber, "B2", product.EntryReversal).First(&entry).Error)
	assert.Nil(t, entry.ProductID)
	assert.Equal(t, 1, entry.QuantityDelta)
}

func TestReversalFreesSKUForResale(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedSingleCategory(t, db)
	seedProduct(t, db, cat.ID, "PH1", 1, 50000, "IMEI-7")

	sl, err := svc.CreateSale(1, &CreateSaleRequest{
		Items:         []CartLine{{ProductCode: "PH1", Quantity: 1, UnitPrice: 50000}},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)

	_, err = svc.ReverseSale(sl.ID, 1, "return")
	require.NoError(t, err)

	// The unit is back on the shelf and can be sold again.
	sl2, err := svc.CreateSale(1, &CreateSaleRequest{
		Items:         []CartLine{{ProductCode: "PH1", Quantity: 1, UnitPrice: 48000}},
		PaymentMethod: PaymentCash,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(48000), sl2.TotalAmount)
}

func TestListSalesPagination(t *testing.T) {
	db, svc := setupTest(t)
	cat := seedBulkCategory(t, db, 0)
	seedProduct(t, db, cat.ID, "A1", 100, 500, "")

	for i := 0; i < 5; i++ {
		_, err := svc.CreateSale(1, &CreateSaleRequest{
			Items:         []CartLine{{ProductCode: "A1", Quantity: 1, UnitPrice: 500}},
			PaymentMethod: PaymentCash,
		})
		require.NoError(t, err)
	}

	resp, err := svc.ListSales(&ListFilter{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, resp.Sales, 2)
	assert.Equal(t, int64(5), resp.Pagination.Total)
	assert.Equal(t, 3, resp.Pagination.TotalPages)
}
