// internal/interfaces/http/routes/routes.go
package routes

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/interfaces/http/handlers"
	"github.com/your-org/pos-backoffice/internal/interfaces/http/middleware"
)

// SetupRoutes wires all API routes onto the given group
func SetupRoutes(rg *gin.RouterGroup, db *gorm.DB, redisClient *redis.Client, cfg *config.Config) {
	logger := newLogger(cfg)

	authHandler := handlers.NewAuthHandler(db, cfg)
	staffHandler := handlers.NewStaffHandler(db, cfg)
	productHandler := handlers.NewProductHandler(db, cfg)
	cartHandler := handlers.NewCartHandler(db, redisClient, cfg)
	saleHandler := handlers.NewSaleHandler(db, redisClient, cfg, logger)
	creditHandler := handlers.NewCreditHandler(db, cfg)
	auditHandler := handlers.NewAuditHandler(db, cfg, logger)

	// Public routes
	auth := rg.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
	}

	storefront := rg.Group("/storefront")
	{
		storefront.GET("/products", productHandler.ListAvailable)
		storefront.GET("/products/:id", productHandler.Get)
		storefront.GET("/categories", productHandler.ListCategories)
	}

	// Staff routes, JWT required
	staff := rg.Group("")
	staff.Use(middleware.AuthMiddleware(cfg))
	{
		staff.GET("/auth/me", authHandler.Me)

		staff.GET("/products", productHandler.List)
		staff.GET("/products/:id", productHandler.Get)
		staff.GET("/products/:id/stock-entries", productHandler.StockEntries)
		staff.GET("/categories", productHandler.ListCategories)

		staff.GET("/cart", cartHandler.Get)
		staff.POST("/cart/items", cartHandler.AddItem)
		staff.PUT("/cart/items/:code", cartHandler.UpdateItem)
		staff.DELETE("/cart/items/:code", cartHandler.RemoveItem)
		staff.DELETE("/cart", cartHandler.Clear)

		staff.POST("/sales", saleHandler.Create)
		staff.POST("/sales/checkout", saleHandler.Checkout)
		staff.GET("/sales", saleHandler.List)
		staff.GET("/sales/:id", saleHandler.Get)
		staff.POST("/sales/:id/reverse", saleHandler.Reverse)

		staff.GET("/credits", creditHandler.ListOutstanding)
		staff.GET("/credits/:id", creditHandler.Get)
		staff.POST("/credits/:id/payments", creditHandler.RecordPayment)
	}

	// Admin routes
	admin := rg.Group("/admin")
	admin.Use(middleware.AuthMiddleware(cfg), middleware.AdminMiddleware())
	{
		admin.POST("/categories", productHandler.CreateCategory)
		admin.POST("/products", productHandler.Create)
		admin.POST("/products/:id/restock", productHandler.Restock)
		admin.POST("/products/:id/adjust", productHandler.Adjust)

		admin.POST("/staff", staffHandler.Create)
		admin.GET("/staff", staffHandler.List)
		admin.PUT("/staff/:id/active", staffHandler.SetActive)

		admin.POST("/audit", auditHandler.Run)
	}
}

// newLogger builds the shared application logger from config
func newLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	}

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}
