package model

import (
	"time"

	"github.com/google/uuid"
)

// User role enum constants
const (
	RoleAdmin    = "admin"
	RoleManager  = "manager"
	RoleEmployee = "employee"
)

// ValidRole reports whether role is one of the closed role set.
func ValidRole(role string) bool {
	return role == RoleAdmin || role == RoleManager || role == RoleEmployee
}

// User represents an account inside a company. ManagerID is a
// self-reference forming the reporting forest the approval chain
// resolver walks; cycle checks happen at assignment time.
type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Email     string     `gorm:"type:varchar(120);uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"type:varchar(255);not null" json:"-"` // bcrypt hash, never serialized
	FirstName string     `gorm:"type:varchar(50);not null" json:"first_name"`
	LastName  string     `gorm:"type:varchar(50);not null" json:"last_name"`
	Role      string     `gorm:"type:varchar(20);not null;default:'employee'" json:"role"`
	CompanyID uuid.UUID  `gorm:"type:uuid;not null;index" json:"company_id"`
	Company   *Company   `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	ManagerID *uuid.UUID `gorm:"type:uuid;index" json:"manager_id"`
	Manager   *User      `gorm:"foreignKey:ManagerID" json:"manager,omitempty"`
	IsActive  bool       `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// FullName joins first and last name for display contexts.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}
