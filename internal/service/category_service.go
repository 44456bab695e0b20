package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type CategoryRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

type CategoryResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
	CreatedAt   string `json:"created_at"`
}

// --- Interface ---

type CategoryService interface {
	Create(ctx context.Context, actor Identity, req CategoryRequest) (CategoryResponse, error)
	List(ctx context.Context, actor Identity, includeInactive bool) ([]CategoryResponse, error)
	Update(ctx context.Context, actor Identity, categoryID string, req CategoryRequest) (CategoryResponse, error)
	Deactivate(ctx context.Context, actor Identity, categoryID string) error
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	logger       *zap.Logger
}

func NewCategoryService(
	categoryRepo repository.CategoryRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	logger *zap.Logger,
) CategoryService {
	if logger == nil {
		logger = zap.L()
	}
	return &categoryService{
		categoryRepo: categoryRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		logger:       logger.Named("category.service"),
	}
}

// --- Implementation ---

func (s *categoryService) Create(ctx context.Context, actor Identity, req CategoryRequest) (CategoryResponse, error) {
	if actor.Role != model.RoleAdmin {
		return CategoryResponse{}, apperror.ErrForbidden
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return CategoryResponse{}, apperror.Validation("category name is required")
	}
	exists, err := s.categoryRepo.ExistsByName(ctx, actor.CompanyID, name)
	if err != nil {
		return CategoryResponse{}, fmt.Errorf("failed to check category name: %w", err)
	}
	if exists {
		return CategoryResponse{}, apperror.Validation("a category with this name already exists")
	}

	category := model.ExpenseCategory{
		CompanyID:   actor.CompanyID,
		Name:        name,
		Description: req.Description,
		IsActive:    true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.categoryRepo.Create(txCtx, &category); txErr != nil {
			return fmt.Errorf("failed to create category: %w", txErr)
		}
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionCreateCategory,
			EntityID:   category.ID.String(),
			EntityName: category.Name,
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return CategoryResponse{}, err
	}
	return toCategoryResponse(category), nil
}

func (s *categoryService) List(ctx context.Context, actor Identity, includeInactive bool) ([]CategoryResponse, error) {
	// Only admins may inspect deactivated categories.
	if includeInactive && actor.Role != model.RoleAdmin {
		includeInactive = false
	}
	categories, err := s.categoryRepo.ListByCompany(ctx, actor.CompanyID, !includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}

	result := make([]CategoryResponse, 0, len(categories))
	for _, category := range categories {
		result = append(result, toCategoryResponse(category))
	}
	return result, nil
}

func (s *categoryService) Update(ctx context.Context, actor Identity, categoryID string, req CategoryRequest) (CategoryResponse, error) {
	if actor.Role != model.RoleAdmin {
		return CategoryResponse{}, apperror.ErrForbidden
	}

	id, err := uuid.Parse(categoryID)
	if err != nil {
		return CategoryResponse{}, apperror.Validation("invalid category id")
	}
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return CategoryResponse{}, apperror.ErrNotFound
	}
	if category.CompanyID != actor.CompanyID {
		return CategoryResponse{}, apperror.ErrNotFound
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return CategoryResponse{}, apperror.Validation("category name is required")
	}
	if name != category.Name {
		exists, existsErr := s.categoryRepo.ExistsByName(ctx, actor.CompanyID, name)
		if existsErr != nil {
			return CategoryResponse{}, fmt.Errorf("failed to check category name: %w", existsErr)
		}
		if exists {
			return CategoryResponse{}, apperror.Validation("a category with this name already exists")
		}
	}

	category.Name = name
	category.Description = req.Description

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.categoryRepo.Update(txCtx, category); txErr != nil {
			return fmt.Errorf("failed to update category: %w", txErr)
		}
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionUpdateCategory,
			EntityID:   category.ID.String(),
			EntityName: category.Name,
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return CategoryResponse{}, err
	}
	return toCategoryResponse(*category), nil
}

// Deactivate soft-deletes the category. Expenses already filed under it
// keep their reference; new submissions can no longer use it.
func (s *categoryService) Deactivate(ctx context.Context, actor Identity, categoryID string) error {
	if actor.Role != model.RoleAdmin {
		return apperror.ErrForbidden
	}

	id, err := uuid.Parse(categoryID)
	if err != nil {
		return apperror.Validation("invalid category id")
	}
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.ErrNotFound
	}
	if category.CompanyID != actor.CompanyID {
		return apperror.ErrNotFound
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.categoryRepo.Deactivate(txCtx, id); txErr != nil {
			return fmt.Errorf("failed to deactivate category: %w", txErr)
		}
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionDeleteCategory,
			EntityID:   category.ID.String(),
			EntityName: category.Name,
		}
		return s.auditRepo.Log(txCtx, audit)
	})
}

// --- Helpers ---

func toCategoryResponse(category model.ExpenseCategory) CategoryResponse {
	return CategoryResponse{
		ID:          category.ID.String(),
		Name:        category.Name,
		Description: category.Description,
		IsActive:    category.IsActive,
		CreatedAt:   category.CreatedAt.Format(time.RFC3339),
	}
}
