// internal/domain/staff/entity.go
package staff

import (
	"time"

	"gorm.io/gorm"
)

// Staff represents a back office operator who can sell and manage stock
type Staff struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	Username     string         `json:"username" gorm:"uniqueIndex;not null;size:100"`
	Email        string         `json:"email" gorm:"uniqueIndex;size:255"`
	PasswordHash string         `json:"-" gorm:"not null;size:255"`
	FirstName    string         `json:"first_name" gorm:"size:100"`
	LastName     string         `json:"last_name" gorm:"size:100"`
	Phone        string         `json:"phone" gorm:"size:50"`
	IsAdmin      bool           `json:"is_admin" gorm:"default:false"`
	IsActive     bool           `json:"is_active" gorm:"default:true"`
	LastLoginAt  *time.Time     `json:"last_login_at,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// TableName returns the table name for Staff
func (Staff) TableName() string {
	return "staff"
}

// FullName returns the display name for a staff member
func (s *Staff) FullName() string {
	if s.FirstName == "" && s.LastName == "" {
		return s.Username
	}
	return s.FirstName + " " + s.LastName
}
