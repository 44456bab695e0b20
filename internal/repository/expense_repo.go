package repository

import (
	"context"
	"time"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ExpenseFilter narrows expense listings. Zero values mean "no filter".
type ExpenseFilter struct {
	EmployeeID  *uuid.UUID
	EmployeeIDs []uuid.UUID
	Status      string
	CategoryID  *uuid.UUID
	StartDate   *time.Time
	EndDate     *time.Time
	Page        int
	Limit       int
}

type ExpenseRepository interface {
	Create(ctx context.Context, expense *model.Expense) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Expense, error)
	// GetByIDForUpdate loads the expense under a SELECT ... FOR UPDATE
	// row lock so concurrent decisions on the same expense serialize.
	// Must be called inside a transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Expense, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, filter ExpenseFilter) ([]model.Expense, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
}

type expenseRepository struct {
	db *gorm.DB
}

func NewExpenseRepository(db *gorm.DB) ExpenseRepository {
	return &expenseRepository{db: db}
}

func (r *expenseRepository) Create(ctx context.Context, expense *model.Expense) error {
	return GetDB(ctx, r.db).Create(expense).Error
}

func (r *expenseRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	var expense model.Expense
	err := GetDB(ctx, r.db).
		Preload("Employee").
		Preload("Category").
		First(&expense, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *expenseRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	var expense model.Expense
	err := GetDB(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&expense, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &expense, nil
}

func (r *expenseRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, filter ExpenseFilter) ([]model.Expense, int64, error) {
	db := GetDB(ctx, r.db)

	applyFilter := func(query *gorm.DB) *gorm.DB {
		query = query.Where("company_id = ?", companyID)
		if filter.EmployeeID != nil {
			query = query.Where("employee_id = ?", *filter.EmployeeID)
		}
		if len(filter.EmployeeIDs) > 0 {
			query = query.Where("employee_id IN ?", filter.EmployeeIDs)
		}
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		if filter.CategoryID != nil {
			query = query.Where("category_id = ?", *filter.CategoryID)
		}
		if filter.StartDate != nil {
			query = query.Where("expense_date >= ?", *filter.StartDate)
		}
		if filter.EndDate != nil {
			query = query.Where("expense_date <= ?", *filter.EndDate)
		}
		return query
	}

	var total int64
	if err := applyFilter(db.Model(&model.Expense{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := filter.Page
	limit := filter.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}

	var expenses []model.Expense
	err := applyFilter(db.Preload("Employee").Preload("Category")).
		Order("created_at desc").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&expenses).Error
	if err != nil {
		return nil, 0, err
	}

	return expenses, total, nil
}

func (r *expenseRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	return GetDB(ctx, r.db).Model(&model.Expense{}).Where("id = ?", id).Update("status", status).Error
}
