// internal/domain/staff/service.go
package staff

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/your-org/pos-backoffice/internal/config"
	"github.com/your-org/pos-backoffice/internal/pkg/auth"
)

// Service handles staff account business logic
type Service struct {
	db        *gorm.DB
	config    *config.Config
	passwords *auth.PasswordManager
	tokens    *auth.JWTManager
}

// NewService creates a new staff service
func NewService(db *gorm.DB, cfg *config.Config) *Service {
	return &Service{
		db:        db,
		config:    cfg,
		passwords: auth.NewPasswordManager(cfg),
		tokens:    auth.NewJWTManager(cfg),
	}
}

var (
	// ErrStaffNotFound is returned when a staff lookup misses
	ErrStaffNotFound = errors.New("staff member not found")
	// ErrInvalidCredentials is returned on a failed login
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrAccountDisabled is returned when a deactivated account logs in
	ErrAccountDisabled = errors.New("account is disabled")
	// ErrUsernameTaken is returned when the username is already in use
	ErrUsernameTaken = errors.New("username already taken")
)

// CreateRequest represents a staff creation request
type CreateRequest struct {
	Username  string `json:"username" binding:"required,min=3"`
	Email     string `json:"email" binding:"omitempty,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	IsAdmin   bool   `json:"is_admin"`
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse carries the issued tokens and the staff profile
type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Staff        *Staff `json:"staff"`
}

// Create registers a new staff member with a bcrypt-hashed password
func (s *Service) Create(req *CreateRequest) (*Staff, error) {
	var existing Staff
	err := s.db.Where("username = ?", req.Username).First(&existing).Error
	if err == nil {
		return nil, ErrUsernameTaken
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}

	hash, err := s.passwords.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	member := &Staff{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Phone:        req.Phone,
		IsAdmin:      req.IsAdmin,
		IsActive:     true,
	}
	if err := s.db.Create(member).Error; err != nil {
		return nil, fmt.Errorf("failed to create staff member: %w", err)
	}
	return member, nil
}

// Authenticate verifies credentials and issues a token pair
func (s *Service) Authenticate(req *LoginRequest) (*LoginResponse, error) {
	var member Staff
	if err := s.db.Where("username = ?", req.Username).First(&member).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to load staff member: %w", err)
	}

	if !member.IsActive {
		return nil, ErrAccountDisabled
	}
	if err := s.passwords.VerifyPassword(req.Password, member.PasswordHash); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	if err := s.db.Model(&member).Update("last_login_at", now).Error; err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	member.LastLoginAt = &now

	accessToken, err := s.tokens.GenerateAccessToken(member.ID, member.Username, member.IsAdmin)
	if err != nil {
		return nil, fmt.Errorf("failed to issue access token: %w", err)
	}
	refreshToken, err := s.tokens.GenerateRefreshToken(member.ID, member.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to issue refresh token: %w", err)
	}

	return &LoginResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		Staff:        &member,
	}, nil
}

// Get retrieves a staff member by ID
func (s *Service) Get(id uint) (*Staff, error) {
	var member Staff
	if err := s.db.First(&member, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrStaffNotFound
		}
		return nil, fmt.Errorf("failed to get staff member: %w", err)
	}
	return &member, nil
}

// List retrieves all staff members
func (s *Service) List() ([]Staff, error) {
	var members []Staff
	if err := s.db.Order("username ASC").Find(&members).Error; err != nil {
		return nil, fmt.Errorf("failed to list staff: %w", err)
	}
	return members, nil
}

// SetActive enables or disables a staff account
func (s *Service) SetActive(id uint, active bool) (*Staff, error) {
	member, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Model(member).Update("is_active", active).Error; err != nil {
		return nil, fmt.Errorf("failed to update staff member: %w", err)
	}
	member.IsActive = active
	return member, nil
}
