package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *model.ExpenseCategory) error
	CreateBatch(ctx context.Context, categories []model.ExpenseCategory) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExpenseCategory, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]model.ExpenseCategory, error)
	ExistsByName(ctx context.Context, companyID uuid.UUID, name string) (bool, error)
	Update(ctx context.Context, category *model.ExpenseCategory) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *model.ExpenseCategory) error {
	return GetDB(ctx, r.db).Create(category).Error
}

func (r *categoryRepository) CreateBatch(ctx context.Context, categories []model.ExpenseCategory) error {
	if len(categories) == 0 {
		return nil
	}
	return GetDB(ctx, r.db).Create(&categories).Error
}

func (r *categoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExpenseCategory, error) {
	var category model.ExpenseCategory
	if err := GetDB(ctx, r.db).First(&category, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]model.ExpenseCategory, error) {
	var categories []model.ExpenseCategory
	query := GetDB(ctx, r.db).Where("company_id = ?", companyID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("name asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) ExistsByName(ctx context.Context, companyID uuid.UUID, name string) (bool, error) {
	var count int64
	err := GetDB(ctx, r.db).Model(&model.ExpenseCategory{}).
		Where("company_id = ? AND name = ?", companyID, name).
		Count(&count).Error
	return count > 0, err
}

func (r *categoryRepository) Update(ctx context.Context, category *model.ExpenseCategory) error {
	return GetDB(ctx, r.db).Save(category).Error
}

func (r *categoryRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.ExpenseCategory{}).Where("id = ?", id).Update("is_active", false).Error
}
