package audit

import (
	"fmt"
	"io"
	"path/filepath"
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
	"github.com/your-org/pos-backoffice/internal/domain/sale"
)

func setupTest(t *testing.T) (*gorm.DB, *Service, *sale.Service) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "audit_test.db")
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "failed to open test database")

	err = db.AutoMigrate(
		&product.Category{},
		&product.Product{},
		&product.StockEntry{},
		&sale.Sale{},
		&sale.SaleItem{},
		&sale.SaleReversal{},
		&credit.CreditRecord{},
		&credit.CreditPayment{},
	)
	require.NoError(t, err, "failed to migrate test database")

	cfg := &config.Config{
		Sales: config.SalesConfig{NumberPrefix: "SAL"},
		Audit: config.AuditConfig{BatchSize: 100},
	}

	log := logrus.New()
	log.SetOutput(io.Discard)

	return db, NewService(db, cfg, log), sale.NewService(db, cfg, nil, log)
}

func seedCategory(t *testing.T, db *gorm.DB, itemType product.ItemType) *product.Category {
	t.Helper()
	c := &product.Category{
		Name:     fmt.Sprintf("Category %s", itemType),
		Slug:     fmt.Sprintf("category-%s", itemType),
		ItemType: itemType,
		SKULabel: "serial",
		IsActive: true,
	}
	require.NoError(t, db.Create(c).Error)
	return c
}

func seedProduct(t *testing.T, db *gorm.DB, categoryID uint, code string, qty int, price int64, sku string) *product.Product {
	t.Helper()
	p := &product.Product{
		Code:       code,
		Name:       "Product " + code,
		CategoryID: categoryID,
		Quantity:   qty,
		Status:     product.StatusAvailable,
		UnitPrice:  price,
		SKUValue:   sku,
	}
	require.NoError(t, db.Create(p).Error)
	return p
}

func sellBulk(t *testing.T, db *gorm.DB, svc *sale.Service, code string, qty int, price int64) *sale.Sale {
	t.Helper()
	sl, err := svc.CreateSale(1, &sale.CreateSaleRequest{
		Items:         []sale.CartLine{{ProductCode: code, Quantity: qty, UnitPrice: price}},
		PaymentMethod: sale.PaymentCash,
	})
	require.NoError(t, err)
	return sl
}

func issueCodes(report *Report) []IssueCode {
	codes := make([]IssueCode, 0, len(report.Issues))
	for _, issue := range report.Issues {
		codes = append(codes, issue.Code)
	}
	return codes
}

func TestAuditCleanSale(t *testing.T) {
	db, auditor, sales := setupTest(t)
	cat := seedCategory(t, db, product.ItemTypeBulk)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")
	sellBulk(t, db, sales, "A1", 2, 500)

	report, err := auditor.Audit(ScopeAll, false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SalesChecked)
	assert.True(t, report.Clean())
}

func TestAuditDetectsAndFixesTotalTampering(t *testing.T) {
	db, auditor, sales := setupTest(t)
	cat := seedCategory(t, db, product.ItemTypeBulk)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")
	sl := sellBulk(t, db, sales, "A1", 2, 500)

	require.NoError(t, db.Model(&sale.Sale{}).Where("id = ?", sl.ID).
		Update("total_amount", sl.TotalAmount+500).Error)

	report, err := auditor.Audit(ScopeAll, false)
	require.NoError(t, err)
	assert.Contains(t, issueCodes(report), IssueTotal)
	assert.Zero(t, report.FixesApplied)

	report, err = auditor.Audit(ScopeAll, true)
	require.NoError(t, err)
	assert.Equal(t, 1, report.FixesApplied)
	require.NotEmpty(t, report.Issues)
	assert.True(t, report.Issues[0].Fixed)

	var fixed sale.Sale
	require.NoError(t, db.First(&fixed, sl.ID).Error)
	assert.Equal(t, int64(1000), fixed.TotalAmount)

	report, err = auditor.Audit(ScopeAll, false)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestAuditSynthesizesMissingLedgerEntry(t *testing.T) {
	db, auditor, sales := setupTest(t)
	cat := seedCategory(t, db, product.ItemTypeBulk)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")
	sl := sellBulk(t, db, sales, "A1", 2, 500)

	require.NoError(t, db.Where("reference_id = ?", sl.SaleNumber).
		Delete(&product.StockEntry{}).Error)

	report, err := auditor.Audit(ScopeAll, true)
	require.NoError(t, err)
	assert.Contains(t, issueCodes(report), IssueLedgerMismatch)
	assert.Equal(t, 1, report.FixesApplied)

	var entry product.StockEntry
	require.NoError(t, db.Where("reference_id = ?", "FIX-"+sl.SaleNumber).First(&entry).Error)
	assert.Equal(t, product.EntryFix, entry.EntryType)
	assert.Equal(t, -2, entry.QuantityDelta)

	report, err = auditor.Audit(ScopeAll, false)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestAuditReconstructsMissingReversalRecord(t *testing.T) {
	db, auditor, sales := setupTest(t)
	cat := seedCategory(t, db, product.ItemTypeBulk)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")
	sl := sellBulk(t, db, sales, "A1", 2, 500)

	_, err := sales.ReverseSale(sl.ID, 1, "return")
	require.NoError(t, err)
	require.NoError(t, db.Where("sale_id = ?", sl.ID).Delete(&sale.SaleReversal{}).Error)

	report, err := auditor.Audit(ScopeAll, true)
	require.NoError(t, err)
	assert.Contains(t, issueCodes(report), IssueMissingReversal)

	var reversal sale.SaleReversal
	require.NoError(t, db.Where("sale_id = ?", sl.ID).First(&reversal).Error)
	assert.Equal(t, 1, reversal.ItemsProcessed)
	assert.Equal(t, sl.TotalAmount, reversal.TotalAmountReversed)

	report, err = auditor.Audit(ScopeAll, false)
	require.NoError(t, err)
	assert.True(t, report.Clean())
}

func TestAuditCorrectsSingleItemState(t *testing.T) {
	db, auditor, sales := setupTest(t)
	cat := seedCategory(t, db, product.ItemTypeSingle)
	seedProduct(t, db, cat.ID, "PH1", 1, 50000, "IMEI-1")

	sl, err := sales.CreateSale(1, &sale.CreateSaleRequest{
		Items:         []sale.CartLine{{ProductCode: "PH1", Quantity: 1, UnitPrice: 50000}},
		PaymentMethod: sale.PaymentCash,
	})
	require.NoError(t, err)

	// Someone hand-edited the product row back to available.
	require.NoError(t, db.Model(&product.Product{}).Where("code = ?", "PH1").
		Updates(map[string]interface{}{"quantity": 1, "status": product.StatusAvailable}).Error)

	report, err := auditor.Audit(fmt.Sprintf("%d", sl.ID), true)
	require.NoError(t, err)
	assert.Contains(t, issueCodes(report), IssueSingleItemState)
	assert.Equal(t, 1, report.SalesChecked)

	var p product.Product
	require.NoError(t, db.Where("code = ?", "PH1").First(&p).Error)
	assert.Equal(t, 0, p.Quantity)
	assert.Equal(t, product.StatusSold, p.Status)
}

func TestAuditScopedToOneSale(t *testing.T) {
	db, auditor, sales := setupTest(t)
	cat := seedCategory(t, db, product.ItemTypeBulk)
	seedProduct(t, db, cat.ID, "A1", 20, 500, "")
	good := sellBulk(t, db, sales, "A1", 2, 500)
	bad := sellBulk(t, db, sales, "A1", 1, 500)

	require.NoError(t, db.Model(&sale.Sale{}).Where("id = ?", bad.ID).
		Update("subtotal", 99999).Error)

	report, err := auditor.Audit(fmt.Sprintf("%d", good.ID), false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.SalesChecked)
	assert.True(t, report.Clean())

	report, err = auditor.Audit(fmt.Sprintf("%d", bad.ID), false)
	require.NoError(t, err)
	assert.Contains(t, issueCodes(report), IssueSubtotal)
}

func TestAuditMissingProductIsReportedNotFixed(t *testing.T) {
	db, auditor, sales := setupTest(t)
	cat := seedCategory(t, db, product.ItemTypeBulk)
	seedProduct(t, db, cat.ID, "A1", 10, 500, "")
	sellBulk(t, db, sales, "A1", 2, 500)

	require.NoError(t, db.Unscoped().Where("code = ?", "A1").Delete(&product.Product{}).Error)

	report, err := auditor.Audit(ScopeAll, true)
	require.NoError(t, err)
	require.Contains(t, issueCodes(report), IssueMissingProduct)
	for _, issue := range report.Issues {
		if issue.Code == IssueMissingProduct {
			assert.False(t, issue.Fixed)
		}
	}
	assert.Empty(t, report.FixFailures)
}

func TestAuditInvalidScope(t *testing.T) {
	_, auditor, _ := setupTest(t)

	_, err := auditor.Audit("not-a-sale", false)
	require.Error(t, err)

	_, err = auditor.Audit("424242", false)
	require.ErrorIs(t, err, ErrSaleNotFound)
}
