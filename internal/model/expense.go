package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Expense status enum constants
const (
	ExpenseStatusPending  = "PENDING"
	ExpenseStatusApproved = "APPROVED"
	ExpenseStatusRejected = "REJECTED"
)

// Expense represents a submitted claim with multi-currency support.
// AmountCompanyCurrency and ExchangeRate are captured once at submission
// and never recomputed, so the amount the chain approves is stable even
// if the external rate moves mid-workflow.
//
// RuleType, RequiredPercentage and SpecificApproverID are a snapshot of
// the approval rule that applied at submission; in-flight expenses are
// never affected by later rule edits.
type Expense struct {
	ID         uuid.UUID        `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	EmployeeID uuid.UUID        `gorm:"type:uuid;not null;index" json:"employee_id"`
	Employee   *User            `gorm:"foreignKey:EmployeeID" json:"employee,omitempty"`
	CompanyID  uuid.UUID        `gorm:"type:uuid;not null;index" json:"company_id"`
	CategoryID uuid.UUID        `gorm:"type:uuid;not null;index" json:"category_id"`
	Category   *ExpenseCategory `gorm:"foreignKey:CategoryID" json:"category,omitempty"`

	Amount                decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency              string          `gorm:"type:varchar(10);not null" json:"currency"`
	AmountCompanyCurrency decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount_company_currency"`
	ExchangeRate          decimal.Decimal `gorm:"type:decimal(10,6);not null;default:1" json:"exchange_rate"`

	Description string    `gorm:"type:text;not null" json:"description"`
	ExpenseDate time.Time `gorm:"type:date;not null" json:"expense_date"`
	ReceiptPath string    `gorm:"type:varchar(255)" json:"receipt_path,omitempty"`

	// OCR pre-fill, kept for comparison against what the employee typed
	MerchantName    *string          `gorm:"type:varchar(100)" json:"merchant_name,omitempty"`
	ExtractedAmount *decimal.Decimal `gorm:"type:decimal(10,2)" json:"extracted_amount,omitempty"`
	ExtractedDate   *time.Time       `gorm:"type:date" json:"extracted_date,omitempty"`

	Status string `gorm:"type:varchar(20);not null;default:'PENDING';index" json:"status"`

	// Approval rule snapshot frozen at submission
	ApprovalRuleID     *uuid.UUID `gorm:"type:uuid" json:"approval_rule_id,omitempty"`
	RuleType           string     `gorm:"type:varchar(30);not null;default:'SEQUENTIAL'" json:"rule_type"`
	RequiredPercentage *int       `json:"required_percentage,omitempty"`
	SpecificApproverID *uuid.UUID `gorm:"type:uuid" json:"specific_approver_id,omitempty"`

	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// IsTerminal reports whether the expense has reached a final status.
func (e *Expense) IsTerminal() bool {
	return e.Status == ExpenseStatusApproved || e.Status == ExpenseStatusRejected
}
