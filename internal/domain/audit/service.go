// internal/domain/audit/service.go
package audit

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/product"
	"github.com/your-org/pos-backoffice/internal/domain/sale"
)

// ScopeAll audits every sale in the system
const ScopeAll = "all"

// totalTolerance is the allowed drift between stored and recomputed
// amounts, one cent.
const totalTolerance = 1

// IssueCode classifies a detected inconsistency
type IssueCode string

const (
	IssueItemTotal       IssueCode = "item_total_mismatch"
	IssueSubtotal        IssueCode = "subtotal_mismatch"
	IssueTotal           IssueCode = "total_mismatch"
	IssueSingleItemState IssueCode = "single_item_state"
	IssueLedgerMismatch  IssueCode = "ledger_mismatch"
	IssueMissingReversal IssueCode = "missing_reversal_record"
	IssueOrphanReversal  IssueCode = "orphan_reversal_record"
	IssueReversalCount   IssueCode = "reversal_count_mismatch"
	IssueMissingProduct  IssueCode = "missing_product"
)

// Issue is one inconsistency found on one sale
type Issue struct {
	SaleID     uint      `json:"sale_id"`
	SaleNumber string    `json:"sale_number"`
	Code       IssueCode `json:"code"`
	Detail     string    `json:"detail"`
	Fixed      bool      `json:"fixed"`
}

// FixFailure records a repair that could not be applied
type FixFailure struct {
	SaleNumber string `json:"sale_number"`
	Error      string `json:"error"`
}

// Report is the outcome of one audit run
type Report struct {
	Scope        string       `json:"scope"`
	FixMode      bool         `json:"fix_mode"`
	SalesChecked int          `json:"sales_checked"`
	Issues       []Issue      `json:"issues"`
	FixesApplied int          `json:"fixes_applied"`
	FixFailures  []FixFailure `json:"fix_failures,omitempty"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
}

// Clean returns true when no inconsistencies were found
func (r *Report) Clean() bool {
	return len(r.Issues) == 0
}

// Service walks committed sales and verifies them against the product
// ledger, repairing deterministically when fix mode is on
type Service struct {
	db     *gorm.DB
	config *config.Config
	logger *logrus.Logger
}

// NewService creates a new audit service
func NewService(db *gorm.DB, cfg *config.Config, logger *logrus.Logger) *Service {
	if logger == nil {
		logger = logrus.New()
	}
	return &Service{
		db:     db,
		config: cfg,
		logger: logger,
	}
}

// ErrSaleNotFound is returned when a scoped audit targets an unknown sale
var ErrSaleNotFound = errors.New("sale not found")

// Audit checks the given scope, either ScopeAll or a numeric sale ID.
// Detection never mutates anything. With fix enabled each broken sale is
// repaired in its own transaction, and a failed repair is recorded on the
// report instead of aborting the run.
func (s *Service) Audit(scope string, fix bool) (*Report, error) {
	report := &Report{
		Scope:     scope,
		FixMode:   fix,
		Issues:    []Issue{},
		StartedAt: time.Now(),
	}

	if scope == ScopeAll {
		if err := s.auditAll(report, fix); err != nil {
			return nil, err
		}
	} else {
		saleID, err := strconv.ParseUint(scope, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("invalid audit scope %q: %w", scope, err)
		}
		var sl sale.Sale
		if err := s.db.Preload("Items").Preload("Reversal").First(&sl, uint(saleID)).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrSaleNotFound
			}
			return nil, fmt.Errorf("failed to load sale: %w", err)
		}
		s.auditSale(report, &sl, fix)
	}

	report.FinishedAt = time.Now()
	s.logger.WithFields(logrus.Fields{
		"scope":         report.Scope,
		"fix_mode":      report.FixMode,
		"sales_checked": report.SalesChecked,
		"issues":        len(report.Issues),
		"fixes_applied": report.FixesApplied,
	}).Info("audit run finished")

	return report, nil
}

func (s *Service) auditAll(report *Report, fix bool) error {
	batchSize := s.config.Audit.BatchSize
	if batchSize < 1 {
		batchSize = 500
	}

	var lastID uint
	for {
		var sales []sale.Sale
		err := s.db.Preload("Items").Preload("Reversal").
			Where("id > ?", lastID).Order("id ASC").Limit(batchSize).
			Find(&sales).Error
		if err != nil {
			return fmt.Errorf("failed to load sales batch: %w", err)
		}
		if len(sales) == 0 {
			return nil
		}
		for i := range sales {
			s.auditSale(report, &sales[i], fix)
		}
		lastID = sales[len(sales)-1].ID
	}
}

func (s *Service) auditSale(report *Report, sl *sale.Sale, fix bool) {
	report.SalesChecked++
	issues := s.checkSale(sl)
	if len(issues) == 0 {
		return
	}

	if fix {
		if err := s.fixSale(sl, issues); err != nil {
			report.FixFailures = append(report.FixFailures, FixFailure{
				SaleNumber: sl.SaleNumber,
				Error:      err.Error(),
			})
			s.logger.WithError(err).WithField("sale_number", sl.SaleNumber).
				Error("audit fix failed")
		} else {
			for i := range issues {
				if issues[i].Code != IssueMissingProduct {
					issues[i].Fixed = true
				}
			}
			report.FixesApplied++
		}
	}

	report.Issues = append(report.Issues, issues...)
}

// checkSale runs every detection rule against one sale
func (s *Service) checkSale(sl *sale.Sale) []Issue {
	var issues []Issue
	add := func(code IssueCode, format string, args ...interface{}) {
		issues = append(issues, Issue{
			SaleID:     sl.ID,
			SaleNumber: sl.SaleNumber,
			Code:       code,
			Detail:     fmt.Sprintf(format, args...),
		})
	}

	// Arithmetic on the sale itself.
	var subtotal int64
	for _, item := range sl.Items {
		expected := int64(item.Quantity) * item.UnitPrice
		if item.TotalPrice != expected {
			add(IssueItemTotal, "item %s: total_price %d, expected %d",
				item.ProductCode, item.TotalPrice, expected)
		}
		subtotal += expected
	}
	if diff := sl.Subtotal - subtotal; diff > totalTolerance || diff < -totalTolerance {
		add(IssueSubtotal, "subtotal %d, items sum to %d", sl.Subtotal, subtotal)
	}
	expectedTotal := subtotal + sl.TaxAmount
	if diff := sl.TotalAmount - expectedTotal; diff > totalTolerance || diff < -totalTolerance {
		add(IssueTotal, "total_amount %d, expected %d", sl.TotalAmount, expectedTotal)
	}

	// Product ledger expectations.
	for _, item := range sl.Items {
		var p product.Product
		err := s.db.Preload("Category").Where("code = ?", item.ProductCode).First(&p).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				add(IssueMissingProduct, "item %s has no product row", item.ProductCode)
				continue
			}
			add(IssueMissingProduct, "item %s: product lookup failed: %v", item.ProductCode, err)
			continue
		}
		if !p.Category.IsSingleItem() {
			continue
		}
		if expected, ok := s.expectedSingleItemState(sl, &item, &p); ok {
			if p.Quantity != expected.quantity || p.Status != expected.status {
				add(IssueSingleItemState, "product %s: quantity %d status %s, expected quantity %d status %s",
					p.Code, p.Quantity, p.Status, expected.quantity, expected.status)
			}
		}
	}

	// Ledger reconciliation, fix entries included.
	sums, err := s.ledgerSums(sl.SaleNumber)
	if err != nil {
		add(IssueLedgerMismatch, "ledger query failed: %v", err)
	} else {
		for _, item := range sl.Items {
			expected := -item.Quantity
			if sl.IsReversed {
				expected = 0
			}
			if got := sums[item.ProductCode]; got != expected {
				add(IssueLedgerMismatch, "product %s: ledger sum %d, expected %d",
					item.ProductCode, got, expected)
			}
		}
	}

	// Reversal bookkeeping.
	if sl.IsReversed {
		if sl.Reversal == nil {
			add(IssueMissingReversal, "sale is reversed but has no reversal record")
		} else if sl.Reversal.ItemsProcessed != len(sl.Items) {
			add(IssueReversalCount, "reversal processed %d items, sale has %d",
				sl.Reversal.ItemsProcessed, len(sl.Items))
		}
	} else if sl.Reversal != nil {
		add(IssueOrphanReversal, "sale is not reversed but has reversal record %d", sl.Reversal.ID)
	}

	return issues
}

type singleItemState struct {
	quantity int
	status   product.ProductStatus
}

// expectedSingleItemState returns what the product row should look like for
// this sale item. No expectation is returned when a later live sale of the
// same unit owns the current state, or when the operator marked it damaged.
func (s *Service) expectedSingleItemState(sl *sale.Sale, item *sale.SaleItem, p *product.Product) (singleItemState, bool) {
	if p.IsDamaged() {
		return singleItemState{}, false
	}

	live := !sl.IsReversed && !item.IsReversed
	if live {
		return singleItemState{quantity: 0, status: product.StatusSold}, true
	}

	// Reversed sale: the unit should be back unless it was sold again.
	query := s.db.Model(&sale.SaleItem{}).
		Where("is_reversed = ? AND sale_id <> ?", false, sl.ID)
	if item.SKUValue != "" {
		query = query.Where("sku_value = ?", item.SKUValue)
	} else {
		query = query.Where("product_code = ?", item.ProductCode)
	}
	var resold int64
	if err := query.Count(&resold).Error; err != nil || resold > 0 {
		return singleItemState{}, false
	}
	return singleItemState{quantity: 1, status: product.StatusAvailable}, true
}

// ledgerSums sums quantity deltas per product code across the sale's own
// entries and any auditor-synthesized fix entries
func (s *Service) ledgerSums(saleNumber string) (map[string]int, error) {
	type row struct {
		ProductCode string
		Total       int
	}
	var rows []row
	err := s.db.Model(&product.StockEntry{}).
		Select("product_code, SUM(quantity_delta) as total").
		Where("reference_id IN ?", []string{saleNumber, "FIX-" + saleNumber}).
		Group("product_code").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	sums := make(map[string]int, len(rows))
	for _, r := range rows {
		sums[r.ProductCode] = r.Total
	}
	return sums, nil
}

// fixSale repairs one sale in a single transaction
func (s *Service) fixSale(sl *sale.Sale, issues []Issue) error {
	tx := s.db.Begin()
	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
		}
	}()

	for _, issue := range issues {
		var err error
		switch issue.Code {
		case IssueItemTotal, IssueSubtotal, IssueTotal:
			err = s.fixTotals(tx, sl)
		case IssueSingleItemState:
			err = s.fixSingleItemState(tx, sl)
		case IssueLedgerMismatch:
			err = s.fixLedger(tx, sl)
		case IssueMissingReversal:
			err = s.fixMissingReversal(tx, sl)
		case IssueReversalCount:
			err = tx.Model(&sale.SaleReversal{}).Where("sale_id = ?", sl.ID).
				Update("items_processed", len(sl.Items)).Error
		case IssueOrphanReversal:
			// The reversal record is append-only evidence that a reversal
			// ran, so the sale flag is brought in line with it.
			err = tx.Model(&sale.Sale{}).Where("id = ?", sl.ID).
				Update("is_reversed", true).Error
		case IssueMissingProduct:
			// Not repairable, left on the report.
		}
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("repair %s: %w", issue.Code, err)
		}
	}

	if err := tx.Commit().Error; err != nil {
		return fmt.Errorf("commit repairs: %w", err)
	}
	return nil
}

func (s *Service) fixTotals(tx *gorm.DB, sl *sale.Sale) error {
	var subtotal int64
	for i := range sl.Items {
		item := &sl.Items[i]
		expected := int64(item.Quantity) * item.UnitPrice
		if item.TotalPrice != expected {
			if err := tx.Model(&sale.SaleItem{}).Where("id = ?", item.ID).
				Update("total_price", expected).Error; err != nil {
				return err
			}
			item.TotalPrice = expected
		}
		subtotal += expected
	}

	total := subtotal + sl.TaxAmount
	if err := tx.Model(&sale.Sale{}).Where("id = ?", sl.ID).
		Updates(map[string]interface{}{"subtotal": subtotal, "total_amount": total}).Error; err != nil {
		return err
	}
	sl.Subtotal = subtotal
	sl.TotalAmount = total
	return nil
}

func (s *Service) fixSingleItemState(tx *gorm.DB, sl *sale.Sale) error {
	for i := range sl.Items {
		item := &sl.Items[i]
		var p product.Product
		err := tx.Preload("Category").Where("code = ?", item.ProductCode).First(&p).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				continue
			}
			return err
		}
		if !p.Category.IsSingleItem() {
			continue
		}
		expected, ok := s.expectedSingleItemState(sl, item, &p)
		if !ok {
			continue
		}
		if p.Quantity == expected.quantity && p.Status == expected.status {
			continue
		}
		if err := tx.Model(&product.Product{}).Where("id = ?", p.ID).
			Updates(map[string]interface{}{
				"quantity": expected.quantity,
				"status":   expected.status,
			}).Error; err != nil {
			return err
		}
	}
	return nil
}

// fixLedger writes one synthesized entry per product whose deltas for this
// sale do not add up, bringing the sum to the expected value
func (s *Service) fixLedger(tx *gorm.DB, sl *sale.Sale) error {
	sums, err := s.ledgerSums(sl.SaleNumber)
	if err != nil {
		return err
	}

	for _, item := range sl.Items {
		expected := -item.Quantity
		if sl.IsReversed {
			expected = 0
		}
		got := sums[item.ProductCode]
		if got == expected {
			continue
		}

		entry := &product.StockEntry{
			ProductCode:   item.ProductCode,
			EntryType:     product.EntryFix,
			QuantityDelta: expected - got,
			UnitPrice:     item.UnitPrice,
			ReferenceID:   "FIX-" + sl.SaleNumber,
			Notes:         "synthesized by consistency audit",
		}
		if err := tx.Create(entry).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) fixMissingReversal(tx *gorm.DB, sl *sale.Sale) error {
	reversal := &sale.SaleReversal{
		SaleID:              sl.ID,
		SaleNumber:          sl.SaleNumber,
		Reason:              "reconstructed by consistency audit",
		ItemsProcessed:      len(sl.Items),
		TotalAmountReversed: sl.TotalAmount,
	}
	return tx.Create(reversal).Error
}
