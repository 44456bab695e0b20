package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RuleRepository interface {
	Create(ctx context.Context, rule *model.ApprovalRule) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRule, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]model.ApprovalRule, error)
	// FindActiveForAmount returns the active rule whose amount band
	// contains amount, preferring the most specific (highest MinAmount)
	// match, or nil when no rule applies. Ties on MinAmount resolve to
	// the oldest rule so repeated submissions pick the same rule.
	FindActiveForAmount(ctx context.Context, companyID uuid.UUID, amount decimal.Decimal) (*model.ApprovalRule, error)
	Update(ctx context.Context, rule *model.ApprovalRule) error
	ReplaceSteps(ctx context.Context, ruleID uuid.UUID, steps []model.ApprovalRuleStep) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type ruleRepository struct {
	db *gorm.DB
}

func NewRuleRepository(db *gorm.DB) RuleRepository {
	return &ruleRepository{db: db}
}

func (r *ruleRepository) Create(ctx context.Context, rule *model.ApprovalRule) error {
	return GetDB(ctx, r.db).Create(rule).Error
}

func (r *ruleRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ApprovalRule, error) {
	var rule model.ApprovalRule
	err := GetDB(ctx, r.db).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("sequence asc") }).
		Preload("Steps.Approver").
		Preload("SpecificApprover").
		First(&rule, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]model.ApprovalRule, error) {
	var rules []model.ApprovalRule
	query := GetDB(ctx, r.db).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("sequence asc") }).
		Preload("Steps.Approver").
		Preload("SpecificApprover").
		Where("company_id = ?", companyID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("created_at asc").Find(&rules).Error; err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *ruleRepository) FindActiveForAmount(ctx context.Context, companyID uuid.UUID, amount decimal.Decimal) (*model.ApprovalRule, error) {
	var rule model.ApprovalRule
	err := GetDB(ctx, r.db).
		Preload("Steps", func(db *gorm.DB) *gorm.DB { return db.Order("sequence asc") }).
		Where("company_id = ? AND is_active = ?", companyID, true).
		Where("min_amount <= ?", amount).
		Where("max_amount IS NULL OR max_amount >= ?", amount).
		Order("min_amount desc, created_at asc, id asc").
		First(&rule).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &rule, nil
}

func (r *ruleRepository) Update(ctx context.Context, rule *model.ApprovalRule) error {
	return GetDB(ctx, r.db).Omit("Steps").Save(rule).Error
}

func (r *ruleRepository) ReplaceSteps(ctx context.Context, ruleID uuid.UUID, steps []model.ApprovalRuleStep) error {
	db := GetDB(ctx, r.db)
	if err := db.Where("rule_id = ?", ruleID).Delete(&model.ApprovalRuleStep{}).Error; err != nil {
		return err
	}
	if len(steps) == 0 {
		return nil
	}
	for i := range steps {
		steps[i].RuleID = ruleID
	}
	return db.Create(&steps).Error
}

func (r *ruleRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.ApprovalRule{}).Where("id = ?", id).Update("is_active", false).Error
}
