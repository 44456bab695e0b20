package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ApprovalRepository persists the per-expense chain snapshot and the
// append-only decision log.
type ApprovalRepository interface {
	CreateSteps(ctx context.Context, steps []model.ApprovalStep) error
	ListSteps(ctx context.Context, expenseID uuid.UUID) ([]model.ApprovalStep, error)
	UpdateStepStatus(ctx context.Context, expenseID uuid.UUID, sequence int, status string) error
	// SkipPendingSteps marks every still-pending step of the expense as
	// skipped; used when a decision finalizes the expense early.
	SkipPendingSteps(ctx context.Context, expenseID uuid.UUID) error
	ListPendingStepsByApprover(ctx context.Context, approverID uuid.UUID) ([]model.ApprovalStep, error)

	CreateAction(ctx context.Context, action *model.ApprovalAction) error
	ListActions(ctx context.Context, expenseID uuid.UUID) ([]model.ApprovalAction, error)
	ListActionsByApprover(ctx context.Context, approverID uuid.UUID, limit int) ([]model.ApprovalAction, error)
}

type approvalRepository struct {
	db *gorm.DB
}

func NewApprovalRepository(db *gorm.DB) ApprovalRepository {
	return &approvalRepository{db: db}
}

func (r *approvalRepository) CreateSteps(ctx context.Context, steps []model.ApprovalStep) error {
	if len(steps) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&steps).Error
}

func (r *approvalRepository) ListSteps(ctx context.Context, expenseID uuid.UUID) ([]model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	err := GetDB(ctx, r.db).
		Preload("Approver").
		Where("expense_id = ?", expenseID).
		Order("sequence asc").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *approvalRepository) UpdateStepStatus(ctx context.Context, expenseID uuid.UUID, sequence int, status string) error {
	return GetDB(ctx, r.db).Model(&model.ApprovalStep{}).
		Where("expense_id = ? AND sequence = ?", expenseID, sequence).
		Update("status", status).Error
}

func (r *approvalRepository) SkipPendingSteps(ctx context.Context, expenseID uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.ApprovalStep{}).
		Where("expense_id = ? AND status = ?", expenseID, model.ApprovalPending).
		Update("status", model.ApprovalSkipped).Error
}

func (r *approvalRepository) ListPendingStepsByApprover(ctx context.Context, approverID uuid.UUID) ([]model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	err := GetDB(ctx, r.db).
		Preload("Expense").
		Preload("Expense.Employee").
		Preload("Expense.Category").
		Joins("JOIN expenses ON expenses.id = approval_steps.expense_id").
		Where("approval_steps.approver_id = ? AND approval_steps.status = ?", approverID, model.ApprovalPending).
		Where("expenses.status = ?", model.ExpenseStatusPending).
		Order("approval_steps.created_at asc").
		Find(&steps).Error
	if err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *approvalRepository) CreateAction(ctx context.Context, action *model.ApprovalAction) error {
	return GetDB(ctx, r.db).Create(action).Error
}

func (r *approvalRepository) ListActions(ctx context.Context, expenseID uuid.UUID) ([]model.ApprovalAction, error) {
	var actions []model.ApprovalAction
	err := GetDB(ctx, r.db).
		Preload("Approver").
		Where("expense_id = ?", expenseID).
		Order("created_at asc").
		Find(&actions).Error
	if err != nil {
		return nil, err
	}
	return actions, nil
}

func (r *approvalRepository) ListActionsByApprover(ctx context.Context, approverID uuid.UUID, limit int) ([]model.ApprovalAction, error) {
	if limit <= 0 {
		limit = 50
	}
	var actions []model.ApprovalAction
	err := GetDB(ctx, r.db).
		Where("approver_id = ?", approverID).
		Order("created_at desc").
		Limit(limit).
		Find(&actions).Error
	if err != nil {
		return nil, err
	}
	return actions, nil
}
