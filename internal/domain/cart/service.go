// internal/domain/cart/service.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/domain/product"
	"github.com/your-org/pos-backoffice/internal/domain/sale"
)

// Service handles cart staging business logic
type Service struct {
	db     *gorm.DB
	redis  *redis.Client
	config *config.Config
}

// NewService creates a new cart service
func NewService(db *gorm.DB, redisClient *redis.Client, cfg *config.Config) *Service {
	return &Service{
		db:     db,
		redis:  redisClient,
		config: cfg,
	}
}

var (
	// ErrLineNotFound is returned when an update targets a missing line
	ErrLineNotFound = errors.New("cart line not found")
	// ErrProductUnavailable is returned when a product cannot be staged
	ErrProductUnavailable = errors.New("product is not available")
	// ErrDuplicateSingleItem is returned when a single-item product is staged twice
	ErrDuplicateSingleItem = errors.New("single-item product is already in the cart")
)

// AddItemRequest represents an add-to-cart request
type AddItemRequest struct {
	ProductCode string `json:"product_code" binding:"required"`
	Quantity    int    `json:"quantity" binding:"required,min=1"`
}

// UpdateItemRequest represents a quantity change for one line
type UpdateItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=0"`
}

func cartKey(sessionID string) string {
	return fmt.Sprintf("cart:session:%s", sessionID)
}

// Get loads the cart for a session, returning an empty cart when none exists
func (s *Service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	data, err := s.redis.Get(ctx, cartKey(sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &Cart{SessionID: sessionID, Lines: []Line{}}, nil
		}
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}

	var c Cart
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("failed to decode cart: %w", err)
	}
	return &c, nil
}

// AddItem stages a product in the session cart after checking the ledger.
// The unit price is snapshotted from the product at staging time.
func (s *Service) AddItem(ctx context.Context, sessionID string, req *AddItemRequest) (*Cart, error) {
	var p product.Product
	if err := s.db.Preload("Category").Where("code = ?", req.ProductCode).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, sale.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to load product: %w", err)
	}
	if !p.IsAvailable() {
		return nil, fmt.Errorf("%w: %s", ErrProductUnavailable, p.Code)
	}

	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	idx := c.lineIndex(req.ProductCode)
	requested := req.Quantity
	if idx >= 0 {
		requested += c.Lines[idx].Quantity
	}

	if p.Category.IsSingleItem() {
		if requested > 1 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSingleItem, p.Code)
		}
	} else if requested > p.Quantity {
		return nil, &sale.InsufficientStockError{
			ProductCode: p.Code,
			Available:   p.Quantity,
			Requested:   requested,
		}
	}

	if idx >= 0 {
		c.Lines[idx].Quantity = requested
		c.Lines[idx].TotalPrice = int64(requested) * c.Lines[idx].UnitPrice
	} else {
		c.Lines = append(c.Lines, Line{
			ProductCode: p.Code,
			ProductName: p.Name,
			SKUValue:    p.SKUValue,
			Quantity:    req.Quantity,
			UnitPrice:   p.UnitPrice,
			TotalPrice:  int64(req.Quantity) * p.UnitPrice,
		})
	}

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// UpdateItem changes a line's quantity, removing it at zero
func (s *Service) UpdateItem(ctx context.Context, sessionID, productCode string, req *UpdateItemRequest) (*Cart, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	idx := c.lineIndex(productCode)
	if idx < 0 {
		return nil, ErrLineNotFound
	}

	if req.Quantity == 0 {
		c.Lines = append(c.Lines[:idx], c.Lines[idx+1:]...)
	} else {
		var p product.Product
		if err := s.db.Preload("Category").Where("code = ?", productCode).First(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, sale.ErrProductNotFound
			}
			return nil, fmt.Errorf("failed to load product: %w", err)
		}
		if p.Category.IsSingleItem() && req.Quantity > 1 {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateSingleItem, p.Code)
		}
		if !p.Category.IsSingleItem() && req.Quantity > p.Quantity {
			return nil, &sale.InsufficientStockError{
				ProductCode: p.Code,
				Available:   p.Quantity,
				Requested:   req.Quantity,
			}
		}
		c.Lines[idx].Quantity = req.Quantity
		c.Lines[idx].TotalPrice = int64(req.Quantity) * c.Lines[idx].UnitPrice
	}

	if err := s.save(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// RemoveItem drops a line from the cart
func (s *Service) RemoveItem(ctx context.Context, sessionID, productCode string) (*Cart, error) {
	return s.UpdateItem(ctx, sessionID, productCode, &UpdateItemRequest{Quantity: 0})
}

// Clear discards the session cart
func (s *Service) Clear(ctx context.Context, sessionID string) error {
	if err := s.redis.Del(ctx, cartKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cart: %w", err)
	}
	return nil
}

// CheckoutLines converts the staged cart into sale engine input. The cart
// itself stays untouched until the sale commits and Clear is called.
func (s *Service) CheckoutLines(ctx context.Context, sessionID string) ([]sale.CartLine, error) {
	c, err := s.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if c.IsEmpty() {
		return nil, sale.ErrEmptyCart
	}

	lines := make([]sale.CartLine, 0, len(c.Lines))
	for _, line := range c.Lines {
		lines = append(lines, sale.CartLine{
			ProductCode: line.ProductCode,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
		})
	}
	return lines, nil
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = time.Now()
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode cart: %w", err)
	}

	ttl := s.config.Sales.CartTTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.redis.Set(ctx, cartKey(c.SessionID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store cart: %w", err)
	}
	return nil
}

func (c *Cart) lineIndex(productCode string) int {
	for i, line := range c.Lines {
		if line.ProductCode == productCode {
			return i
		}
	}
	return -1
}
