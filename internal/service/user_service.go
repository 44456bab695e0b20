package service

import (
	"context"
	"fmt"
	"strings"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/workflow"
	"backend/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- DTOs ---

type CreateUserRequest struct {
	Email     string  `json:"email" binding:"required"`
	Password  string  `json:"password" binding:"required"`
	FirstName string  `json:"first_name" binding:"required"`
	LastName  string  `json:"last_name" binding:"required"`
	Role      string  `json:"role" binding:"required"`
	ManagerID *string `json:"manager_id"`
}

type UpdateUserRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Role      *string `json:"role"`
	ManagerID *string `json:"manager_id"` // empty string clears the manager
}

// --- Interface ---

type UserService interface {
	Create(ctx context.Context, actor Identity, req CreateUserRequest) (UserResponse, error)
	List(ctx context.Context, actor Identity) ([]UserResponse, error)
	// ListManagers returns the active users eligible as manager
	// assignments or rule step approvers.
	ListManagers(ctx context.Context, actor Identity) ([]UserResponse, error)
	Get(ctx context.Context, actor Identity, userID string) (UserResponse, error)
	Update(ctx context.Context, actor Identity, userID string, req UpdateUserRequest) (UserResponse, error)
	Deactivate(ctx context.Context, actor Identity, userID string) error
}

type userService struct {
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	logger    *zap.Logger
}

func NewUserService(
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	logger *zap.Logger,
) UserService {
	if logger == nil {
		logger = zap.L()
	}
	return &userService{
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		logger:    logger.Named("user.service"),
	}
}

// --- Implementation ---

func (s *userService) Create(ctx context.Context, actor Identity, req CreateUserRequest) (UserResponse, error) {
	if actor.Role != model.RoleAdmin {
		return UserResponse{}, apperror.ErrForbidden
	}
	if !model.ValidRole(req.Role) {
		return UserResponse{}, apperror.Validation("role must be admin, manager, or employee")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRegex.MatchString(email) {
		return UserResponse{}, apperror.Validation("invalid email format")
	}
	if len(req.Password) < 8 {
		return UserResponse{}, apperror.Validation("password must be at least 8 characters")
	}
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return UserResponse{}, apperror.Validation("email already registered")
	}

	var managerID *uuid.UUID
	if req.ManagerID != nil && *req.ManagerID != "" {
		id, err := uuid.Parse(*req.ManagerID)
		if err != nil {
			return UserResponse{}, apperror.Validation("invalid manager_id")
		}
		if err := s.validateManager(ctx, actor.CompanyID, id); err != nil {
			return UserResponse{}, err
		}
		managerID = &id
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return UserResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.User{
		Email:     email,
		Password:  string(hashed),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
		CompanyID: actor.CompanyID,
		ManagerID: managerID,
		IsActive:  true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.userRepo.Create(txCtx, &user); txErr != nil {
			return fmt.Errorf("failed to create user: %w", txErr)
		}
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionCreateUser,
			EntityID:   user.ID.String(),
			EntityName: user.FullName(),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return UserResponse{}, err
	}

	s.logger.Info("user created",
		zap.String("user_id", user.ID.String()),
		zap.String("role", user.Role),
	)
	return toUserResponse(user), nil
}

func (s *userService) List(ctx context.Context, actor Identity) ([]UserResponse, error) {
	var users []model.User
	var err error

	// Admins see the whole company, managers their direct reports,
	// employees only themselves.
	switch actor.Role {
	case model.RoleAdmin:
		users, err = s.userRepo.ListByCompany(ctx, actor.CompanyID, false)
	case model.RoleManager:
		users, err = s.userRepo.ListByManager(ctx, actor.UserID)
		if err == nil {
			if self, selfErr := s.userRepo.GetByID(ctx, actor.UserID); selfErr == nil {
				users = append([]model.User{*self}, users...)
			}
		}
	default:
		self, selfErr := s.userRepo.GetByID(ctx, actor.UserID)
		if selfErr != nil {
			return nil, apperror.ErrUnauthorized
		}
		users = []model.User{*self}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	result := make([]UserResponse, 0, len(users))
	for _, user := range users {
		result = append(result, toUserResponse(user))
	}
	return result, nil
}

func (s *userService) ListManagers(ctx context.Context, actor Identity) ([]UserResponse, error) {
	if actor.Role != model.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	users, err := s.userRepo.ListByCompany(ctx, actor.CompanyID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to list managers: %w", err)
	}

	result := make([]UserResponse, 0, len(users))
	for _, user := range users {
		if user.Role != model.RoleManager && user.Role != model.RoleAdmin {
			continue
		}
		result = append(result, toUserResponse(user))
	}
	return result, nil
}

func (s *userService) Get(ctx context.Context, actor Identity, userID string) (UserResponse, error) {
	id, err := uuid.Parse(userID)
	if err != nil {
		return UserResponse{}, apperror.Validation("invalid user id")
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return UserResponse{}, apperror.ErrNotFound
	}
	if user.CompanyID != actor.CompanyID {
		return UserResponse{}, apperror.ErrNotFound
	}
	if actor.Role == model.RoleEmployee && user.ID != actor.UserID {
		return UserResponse{}, apperror.ErrForbidden
	}
	return toUserResponse(*user), nil
}

func (s *userService) Update(ctx context.Context, actor Identity, userID string, req UpdateUserRequest) (UserResponse, error) {
	if actor.Role != model.RoleAdmin {
		return UserResponse{}, apperror.ErrForbidden
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return UserResponse{}, apperror.Validation("invalid user id")
	}
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return UserResponse{}, apperror.ErrNotFound
	}
	if user.CompanyID != actor.CompanyID {
		return UserResponse{}, apperror.ErrNotFound
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Role != nil {
		if !model.ValidRole(*req.Role) {
			return UserResponse{}, apperror.Validation("role must be admin, manager, or employee")
		}
		user.Role = *req.Role
	}
	if req.ManagerID != nil {
		if *req.ManagerID == "" {
			user.ManagerID = nil
			user.Manager = nil
		} else {
			managerID, parseErr := uuid.Parse(*req.ManagerID)
			if parseErr != nil {
				return UserResponse{}, apperror.Validation("invalid manager_id")
			}
			if managerID == user.ID {
				return UserResponse{}, apperror.Validation("a user cannot be their own manager")
			}
			if validateErr := s.validateManager(ctx, actor.CompanyID, managerID); validateErr != nil {
				return UserResponse{}, validateErr
			}
			if cycleErr := s.checkManagerCycle(ctx, user.ID, managerID); cycleErr != nil {
				return UserResponse{}, cycleErr
			}
			user.ManagerID = &managerID
			user.Manager = nil
		}
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.userRepo.Update(txCtx, user); txErr != nil {
			return fmt.Errorf("failed to update user: %w", txErr)
		}
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionUpdateUser,
			EntityID:   user.ID.String(),
			EntityName: user.FullName(),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return UserResponse{}, err
	}
	return toUserResponse(*user), nil
}

func (s *userService) Deactivate(ctx context.Context, actor Identity, userID string) error {
	if actor.Role != model.RoleAdmin {
		return apperror.ErrForbidden
	}

	id, err := uuid.Parse(userID)
	if err != nil {
		return apperror.Validation("invalid user id")
	}
	if id == actor.UserID {
		return apperror.Validation("you cannot deactivate your own account")
	}

	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.ErrNotFound
	}
	if user.CompanyID != actor.CompanyID {
		return apperror.ErrNotFound
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.userRepo.Deactivate(txCtx, id); txErr != nil {
			return fmt.Errorf("failed to deactivate user: %w", txErr)
		}
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionDeactivateUser,
			EntityID:   user.ID.String(),
			EntityName: user.FullName(),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
}

// --- Helpers ---

// validateManager checks the proposed manager exists in the company, is
// active, and holds a role that can approve expenses.
func (s *userService) validateManager(ctx context.Context, companyID, managerID uuid.UUID) error {
	manager, err := s.userRepo.GetByID(ctx, managerID)
	if err != nil {
		return apperror.Validation("manager not found")
	}
	if manager.CompanyID != companyID || !manager.IsActive {
		return apperror.Validation("manager not found")
	}
	if manager.Role != model.RoleManager && manager.Role != model.RoleAdmin {
		return apperror.Validation("manager must have the manager or admin role")
	}
	return nil
}

// checkManagerCycle rejects an assignment that would make the reporting
// graph cyclic. The walk is capped at the same depth the chain resolver
// uses, so a relationship too deep to resolve is rejected here already.
func (s *userService) checkManagerCycle(ctx context.Context, userID, newManagerID uuid.UUID) error {
	current := newManagerID
	for depth := 0; depth < workflow.DefaultMaxManagerDepth; depth++ {
		if current == userID {
			return apperror.Validation("manager assignment would create a reporting cycle")
		}
		node, err := s.userRepo.GetByID(ctx, current)
		if err != nil || node.ManagerID == nil {
			return nil
		}
		current = *node.ManagerID
	}
	return apperror.Validation("reporting chain is too deep")
}
