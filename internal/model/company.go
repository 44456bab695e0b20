package model

import (
	"time"

	"github.com/google/uuid"
)

// Company is the tenant root: it owns Users, ExpenseCategories and
// ApprovalRules. Currency is fixed at registration and never updated.
type Company struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(120);not null" json:"name"`
	Country   string    `gorm:"type:varchar(80);not null" json:"country"`
	Currency  string    `gorm:"type:varchar(3);not null" json:"currency"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
