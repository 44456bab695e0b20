package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ApprovalRule type enum constants
const (
	RuleTypeSequential       = "SEQUENTIAL"
	RuleTypePercentage       = "PERCENTAGE"
	RuleTypeSpecificApprover = "SPECIFIC_APPROVER"
	RuleTypeHybrid           = "HYBRID"
)

// Approval step / decision enum constants
const (
	ApprovalPending  = "PENDING"
	ApprovalApproved = "APPROVED"
	ApprovalRejected = "REJECTED"
	ApprovalSkipped  = "SKIPPED"
)

// ApprovalRule configures, per company, who must approve an expense.
// MinAmount/MaxAmount bound the converted amounts the rule applies to
// (MaxAmount nil means unbounded). Steps order the chain; the optional
// percentage / specific-approver settings allow early finalization.
type ApprovalRule struct {
	ID          uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	CompanyID   uuid.UUID `gorm:"type:uuid;not null;index" json:"company_id"`
	Name        string    `gorm:"type:varchar(100);not null" json:"name"`
	Description string    `gorm:"type:text" json:"description"`

	RuleType string `gorm:"type:varchar(30);not null" json:"rule_type"`

	MinAmount decimal.Decimal  `gorm:"type:decimal(10,2);default:0" json:"min_amount"`
	MaxAmount *decimal.Decimal `gorm:"type:decimal(10,2)" json:"max_amount,omitempty"`

	RequiredPercentage *int       `json:"required_percentage,omitempty"`
	SpecificApproverID *uuid.UUID `gorm:"type:uuid" json:"specific_approver_id,omitempty"`
	SpecificApprover   *User      `gorm:"foreignKey:SpecificApproverID" json:"specific_approver,omitempty"`

	RequiresManagerApproval bool `gorm:"default:true" json:"requires_manager_approval"`

	Steps []ApprovalRuleStep `gorm:"foreignKey:RuleID;constraint:OnDelete:CASCADE" json:"steps"`

	IsActive  bool      `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ApprovalRuleStep is one ordered entry of a rule's chain. Exactly one
// of Role or ApproverID is set: a role step binds by walking the
// submitter's manager chain, a user step binds directly.
type ApprovalRuleStep struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	RuleID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"rule_id"`
	Sequence   int        `gorm:"not null" json:"sequence"`
	Role       string     `gorm:"type:varchar(20)" json:"role,omitempty"`
	ApproverID *uuid.UUID `gorm:"type:uuid" json:"approver_id,omitempty"`
	Approver   *User      `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
}

// ApprovalStep is the per-expense snapshot of the resolved chain,
// written once at submission. Only the workflow state machine mutates
// Status afterwards.
type ApprovalStep struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExpenseID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_step_expense_seq" json:"expense_id"`
	Expense    *Expense  `gorm:"foreignKey:ExpenseID" json:"expense,omitempty"`
	ApproverID uuid.UUID `gorm:"type:uuid;not null;index" json:"approver_id"`
	Approver   *User     `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Sequence   int       `gorm:"not null;uniqueIndex:idx_step_expense_seq" json:"sequence"`
	Status     string    `gorm:"type:varchar(20);not null;default:'PENDING'" json:"status"`
	CreatedAt  time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// ApprovalAction is the append-only decision audit: one row per
// (expense, approver), enforced by the unique index so a second action
// from the same approver fails at the database too.
type ApprovalAction struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	ExpenseID  uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:idx_action_expense_approver" json:"expense_id"`
	Expense    *Expense  `gorm:"foreignKey:ExpenseID" json:"expense,omitempty"`
	ApproverID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_action_expense_approver" json:"approver_id"`
	Approver   *User     `gorm:"foreignKey:ApproverID" json:"approver,omitempty"`
	Decision   string    `gorm:"type:varchar(20);not null" json:"decision"`
	Comment    string    `gorm:"type:text" json:"comment"`
	CreatedAt  time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}
