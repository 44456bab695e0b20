package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	ActionRegisterCompany = "REGISTER_COMPANY"
	ActionCreateUser      = "CREATE_USER"
	ActionUpdateUser      = "UPDATE_USER"
	ActionDeactivateUser  = "DEACTIVATE_USER"
	ActionChangePassword  = "CHANGE_PASSWORD"

	ActionCreateCategory = "CREATE_CATEGORY"
	ActionUpdateCategory = "UPDATE_CATEGORY"
	ActionDeleteCategory = "DELETE_CATEGORY"

	ActionCreateApprovalRule = "CREATE_APPROVAL_RULE"
	ActionUpdateApprovalRule = "UPDATE_APPROVAL_RULE"
	ActionDeleteApprovalRule = "DELETE_APPROVAL_RULE"

	// Workflow actions
	ActionSubmitExpense  = "SUBMIT_EXPENSE"
	ActionApproveExpense = "APPROVE_EXPENSE"
	ActionRejectExpense  = "REJECT_EXPENSE"
)

// AuditLog tracks Who, What, and When for critical system changes
type AuditLog struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID  uuid.UUID  `gorm:"type:uuid;not null;index" json:"company_id"`
	UserID     *uuid.UUID `gorm:"type:uuid;index" json:"user_id"` // nullable for automated entries
	User       *User      `gorm:"foreignKey:UserID" json:"user"`
	Action     string     `gorm:"type:varchar(50);not null;index" json:"action"`
	EntityID   string     `gorm:"type:varchar(50);index" json:"entity_id"`
	EntityName string     `gorm:"type:varchar(255)" json:"entity_name,omitempty"`
	Details    string     `gorm:"type:jsonb" json:"details"` // serialized JSON payload of the action
	CreatedAt  time.Time  `gorm:"index" json:"created_at"`
}
