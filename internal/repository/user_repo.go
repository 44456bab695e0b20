package repository

import (
	"context"

	"backend/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRepository defines the interface for data access of User entities
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	ListByCompany(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]model.User, error)
	ListByManager(ctx context.Context, managerID uuid.UUID) ([]model.User, error)
	Update(ctx context.Context, user *model.User) error
	Deactivate(ctx context.Context, id uuid.UUID) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Create(user).Error
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Company").Preload("Manager").First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	if err := GetDB(ctx, r.db).Preload("Company").First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) ListByCompany(ctx context.Context, companyID uuid.UUID, activeOnly bool) ([]model.User, error) {
	var users []model.User
	query := GetDB(ctx, r.db).Preload("Manager").Where("company_id = ?", companyID)
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Order("created_at asc").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) ListByManager(ctx context.Context, managerID uuid.UUID) ([]model.User, error) {
	var users []model.User
	if err := GetDB(ctx, r.db).Where("manager_id = ? AND is_active = ?", managerID, true).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepository) Update(ctx context.Context, user *model.User) error {
	return GetDB(ctx, r.db).Save(user).Error
}

func (r *userRepository) Deactivate(ctx context.Context, id uuid.UUID) error {
	return GetDB(ctx, r.db).Model(&model.User{}).Where("id = ?", id).Update("is_active", false).Error
}
