package model

import (
	"time"

	"github.com/google/uuid"
)

// ExpenseCategory is a per-company classification for expenses.
// Name is unique within a company; categories are deactivated, not
// deleted, so historical expenses keep their reference.
type ExpenseCategory struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID   uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_category_company_name" json:"company_id"`
	Name        string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_category_company_name" json:"name"`
	Description string    `gorm:"type:text" json:"description"`
	IsActive    bool      `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
