// internal/infrastructure/database/postgres/migration.go
package postgres

import (
	"fmt"
	"log"

	"golang.org/x/crypto/bcrypt"

	"github.com/your-org/pos-backoffice/internal/domain/credit"
	"github.com/your-org/pos-backoffice/internal/domain/product"
	"github.com/your-org/pos-backoffice/internal/domain/sale"
	"github.com/your-org/pos-backoffice/internal/domain/staff"
	"gorm.io/gorm"
)

// Migration handles database migrations
type Migration struct {
	db *gorm.DB
}

// NewMigration creates a new migration instance
func NewMigration(db *gorm.DB) *Migration {
	return &Migration{
		db: db,
	}
}

// RunAutoMigrations runs GORM auto-migrations for all models
func (m *Migration) RunAutoMigrations() error {
	log.Println("🔄 Running database auto-migrations...")

	// Models in dependency order
	models := []interface{}{
		&staff.Staff{},

		&product.Category{},
		&product.Product{},
		&product.StockEntry{},

		&sale.Sale{},
		&sale.SaleItem{},
		&sale.SaleReversal{},

		&credit.CreditRecord{},
		&credit.CreditPayment{},
	}

	for _, model := range models {
		if err := m.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("failed to migrate model %T: %w", model, err)
		}
	}

	log.Println("✅ Database auto-migrations completed successfully")
	return nil
}

// CreateIndexes creates additional indexes for better performance
func (m *Migration) CreateIndexes() error {
	log.Println("🔄 Creating additional database indexes...")

	indexes := []string{
		// Product ledger indexes
		"CREATE INDEX IF NOT EXISTS idx_products_category_status ON products(category_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_products_sku_value ON products(sku_value)",
		"CREATE INDEX IF NOT EXISTS idx_products_created_at ON products(created_at DESC)",

		// Stock entry indexes, the audit walks these by reference
		"CREATE INDEX IF NOT EXISTS idx_stock_entries_reference ON stock_entries(reference_id)",
		"CREATE INDEX IF NOT EXISTS idx_stock_entries_code_created ON stock_entries(product_code, created_at DESC)",
		"CREATE INDEX IF NOT EXISTS idx_stock_entries_type ON stock_entries(entry_type)",

		// Sale indexes
		"CREATE INDEX IF NOT EXISTS idx_sales_seller_date ON sales(seller_id, sale_date DESC)",
		"CREATE INDEX IF NOT EXISTS idx_sales_reversed ON sales(is_reversed)",
		"CREATE INDEX IF NOT EXISTS idx_sales_credit ON sales(is_credit)",
		"CREATE INDEX IF NOT EXISTS idx_sale_items_sale ON sale_items(sale_id)",
		"CREATE INDEX IF NOT EXISTS idx_sale_items_sku_live ON sale_items(sku_value, is_reversed)",
		"CREATE INDEX IF NOT EXISTS idx_sale_items_code_live ON sale_items(product_code, is_reversed)",

		// Reversal indexes
		"CREATE INDEX IF NOT EXISTS idx_sale_reversals_number ON sale_reversals(sale_number)",

		// Credit indexes
		"CREATE INDEX IF NOT EXISTS idx_credit_records_open ON credit_records(is_settled, created_at)",
		"CREATE INDEX IF NOT EXISTS idx_credit_payments_record ON credit_payments(credit_record_id)",
	}

	successCount := 0
	failCount := 0

	for _, indexSQL := range indexes {
		if err := m.db.Exec(indexSQL).Error; err != nil {
			log.Printf("⚠️ Failed to create index: %v", err)
			failCount++
		} else {
			successCount++
		}
	}

	log.Printf("✅ Created %d indexes successfully (%d failed)", successCount, failCount)
	return nil
}

// SeedInitialData inserts initial data into the database
func (m *Migration) SeedInitialData() error {
	log.Println("🌱 Seeding initial data...")

	if err := m.seedAdminStaff(); err != nil {
		return fmt.Errorf("failed to seed admin staff: %w", err)
	}
	if err := m.seedCategories(); err != nil {
		return fmt.Errorf("failed to seed categories: %w", err)
	}
	if err := m.seedSampleProducts(); err != nil {
		return fmt.Errorf("failed to seed sample products: %w", err)
	}

	log.Println("✅ Initial data seeded successfully")
	return nil
}

func (m *Migration) seedAdminStaff() error {
	var existing staff.Staff
	result := m.db.Where("username = ?", "admin").First(&existing)
	if result.Error == nil {
		log.Printf("⏭️ Admin staff already exists with ID: %d", existing.ID)
		return nil
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("Admin123!"), 10)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	admin := staff.Staff{
		Username:     "admin",
		Email:        "admin@example.com",
		PasswordHash: string(hashedPassword),
		FirstName:    "Admin",
		LastName:     "User",
		IsActive:     true,
		IsAdmin:      true,
	}
	if err := m.db.Create(&admin).Error; err != nil {
		return fmt.Errorf("failed to create admin staff: %w", err)
	}

	log.Println("✅ Created admin staff: admin (password: Admin123!)")
	return nil
}

func (m *Migration) seedCategories() error {
	categories := []product.Category{
		{
			Name:        "Phones",
			Slug:        "phones",
			Description: "Serialized handsets tracked one unit per entry",
			ItemType:    product.ItemTypeSingle,
			SKULabel:    "IMEI",
			IsActive:    true,
		},
		{
			Name:         "Accessories",
			Slug:         "accessories",
			Description:  "Cases, chargers, cables and other counted stock",
			ItemType:     product.ItemTypeBulk,
			ReorderLevel: 5,
			IsActive:     true,
		},
		{
			Name:         "Airtime",
			Slug:         "airtime",
			Description:  "Top-up vouchers",
			ItemType:     product.ItemTypeBulk,
			ReorderLevel: 20,
			IsActive:     true,
		},
	}

	for _, category := range categories {
		var existing product.Category
		result := m.db.Where("slug = ?", category.Slug).First(&existing)
		if result.Error != nil {
			if err := m.db.Create(&category).Error; err != nil {
				return err
			}
			log.Printf("✅ Created category: %s", category.Name)
		} else {
			log.Printf("⏭️ Category already exists: %s", category.Name)
		}
	}

	return nil
}

func (m *Migration) seedSampleProducts() error {
	var count int64
	m.db.Model(&product.Product{}).Count(&count)
	if count > 0 {
		log.Println("⏭️ Products already exist, skipping sample products")
		return nil
	}

	var phones, accessories product.Category
	if err := m.db.Where("slug = ?", "phones").First(&phones).Error; err != nil {
		return err
	}
	if err := m.db.Where("slug = ?", "accessories").First(&accessories).Error; err != nil {
		return err
	}

	samples := []product.Product{
		{
			Code:       "PH-0001",
			Name:       "Galaxy A16 128GB",
			CategoryID: phones.ID,
			Quantity:   1,
			Status:     product.StatusAvailable,
			UnitPrice:  1899900,
			CostPrice:  1500000,
			SKUValue:   "356938035643809",
		},
		{
			Code:       "AC-0001",
			Name:       "USB-C Fast Charger 25W",
			CategoryID: accessories.ID,
			Quantity:   40,
			Status:     product.StatusAvailable,
			UnitPrice:  149900,
			CostPrice:  90000,
		},
		{
			Code:       "AC-0002",
			Name:       "Tempered Glass Screen Protector",
			CategoryID: accessories.ID,
			Quantity:   100,
			Status:     product.StatusAvailable,
			UnitPrice:  49900,
			CostPrice:  20000,
		},
	}

	for _, p := range samples {
		if err := m.db.Create(&p).Error; err != nil {
			log.Printf("⚠️ Failed to create sample product %s: %v", p.Code, err)
			continue
		}
		productID := p.ID
		entry := product.StockEntry{
			ProductID:     &productID,
			ProductCode:   p.Code,
			EntryType:     product.EntryRestock,
			QuantityDelta: p.Quantity,
			UnitPrice:     p.UnitPrice,
			TotalAmount:   int64(p.Quantity) * p.UnitPrice,
			Notes:         "initial stock",
		}
		if err := m.db.Create(&entry).Error; err != nil {
			log.Printf("⚠️ Failed to create opening stock entry for %s: %v", p.Code, err)
		}
		log.Printf("✅ Created sample product: %s", p.Name)
	}

	return nil
}

// DropAllTables drops all tables (use with extreme caution)
func (m *Migration) DropAllTables() error {
	log.Println("⚠️ WARNING: Dropping all database tables...")

	// Reverse dependency order
	tables := []string{
		"credit_payments",
		"credit_records",
		"sale_reversals",
		"sale_items",
		"sales",
		"stock_entries",
		"products",
		"categories",
		"staff",
	}

	for _, table := range tables {
		if err := m.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s CASCADE", table)).Error; err != nil {
			log.Printf("⚠️ Failed to drop table %s: %v", table, err)
		} else {
			log.Printf("🗑️ Dropped table: %s", table)
		}
	}

	return nil
}
