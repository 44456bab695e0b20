package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"backend/internal/external"
	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperror"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- DTOs ---

type RegisterRequest struct {
	CompanyName string `json:"company_name" binding:"required"`
	Country     string `json:"country" binding:"required"`
	Email       string `json:"email" binding:"required"`
	Password    string `json:"password" binding:"required"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type UserResponse struct {
	ID        string  `json:"id"`
	Email     string  `json:"email"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Role      string  `json:"role"`
	CompanyID string  `json:"company_id"`
	ManagerID *string `json:"manager_id,omitempty"`
	IsActive  bool    `json:"is_active"`
	CreatedAt string  `json:"created_at"`
}

type CompanyResponse struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Country  string `json:"country"`
	Currency string `json:"currency"`
}

type AuthResponse struct {
	Token   string          `json:"token"`
	User    UserResponse    `json:"user"`
	Company CompanyResponse `json:"company"`
}

// --- Interface ---

// AuthService handles company registration and credentialed login.
// Registration is the only unauthenticated write in the system: it
// creates the company, its admin, and the default expense categories in
// one transaction.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (AuthResponse, error)
	Login(ctx context.Context, req LoginRequest) (AuthResponse, error)
	Me(ctx context.Context, actor Identity) (UserResponse, CompanyResponse, error)
	ChangePassword(ctx context.Context, actor Identity, req ChangePasswordRequest) error
}

type authService struct {
	userRepo     repository.UserRepository
	companyRepo  repository.CompanyRepository
	categoryRepo repository.CategoryRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	countries    external.CountryClient
	logger       *zap.Logger
}

func NewAuthService(
	userRepo repository.UserRepository,
	companyRepo repository.CompanyRepository,
	categoryRepo repository.CategoryRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	countries external.CountryClient,
	logger *zap.Logger,
) AuthService {
	if logger == nil {
		logger = zap.L()
	}
	return &authService{
		userRepo:     userRepo,
		companyRepo:  companyRepo,
		categoryRepo: categoryRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		countries:    countries,
		logger:       logger.Named("auth.service"),
	}
}

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// defaultCategories seed every new company so the first expense can be
// filed without any admin setup.
var defaultCategories = []string{
	"Travel",
	"Meals",
	"Office Supplies",
	"Software",
	"Internet/Phone",
	"Other",
}

// --- Implementation ---

func (s *authService) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if !emailRegex.MatchString(email) {
		return AuthResponse{}, apperror.Validation("invalid email format")
	}
	if len(req.Password) < 8 {
		return AuthResponse{}, apperror.Validation("password must be at least 8 characters")
	}
	if _, err := s.userRepo.GetByEmail(ctx, email); err == nil {
		return AuthResponse{}, apperror.Validation("email already registered")
	}

	// The company currency is derived from the chosen country and never
	// changes afterwards; converted expense amounts depend on it.
	currency, err := s.countries.CurrencyForCountry(ctx, req.Country)
	if err != nil {
		s.logger.Warn("country currency lookup failed",
			zap.String("country", req.Country),
			zap.Error(err),
		)
		return AuthResponse{}, apperror.DependencyUnavailable(err, "could not resolve the country's currency")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return AuthResponse{}, fmt.Errorf("failed to hash password: %w", err)
	}

	company := model.Company{
		Name:     req.CompanyName,
		Country:  req.Country,
		Currency: currency,
	}
	admin := model.User{
		Email:     email,
		Password:  string(hashed),
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      model.RoleAdmin,
		IsActive:  true,
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.companyRepo.Create(txCtx, &company); txErr != nil {
			return fmt.Errorf("failed to create company: %w", txErr)
		}

		admin.CompanyID = company.ID
		if txErr := s.userRepo.Create(txCtx, &admin); txErr != nil {
			return fmt.Errorf("failed to create admin user: %w", txErr)
		}

		categories := make([]model.ExpenseCategory, 0, len(defaultCategories))
		for _, name := range defaultCategories {
			categories = append(categories, model.ExpenseCategory{
				CompanyID: company.ID,
				Name:      name,
				IsActive:  true,
			})
		}
		if txErr := s.categoryRepo.CreateBatch(txCtx, categories); txErr != nil {
			return fmt.Errorf("failed to seed categories: %w", txErr)
		}

		audit := &model.AuditLog{
			CompanyID:  company.ID,
			UserID:     &admin.ID,
			Action:     model.ActionRegisterCompany,
			EntityID:   company.ID.String(),
			EntityName: company.Name,
		}
		if txErr := s.auditRepo.Log(txCtx, audit); txErr != nil {
			return fmt.Errorf("failed to write audit log: %w", txErr)
		}
		return nil
	})
	if err != nil {
		return AuthResponse{}, err
	}

	s.logger.Info("company registered",
		zap.String("company_id", company.ID.String()),
		zap.String("currency", currency),
	)

	token, err := generateToken(&admin)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{
		Token:   token,
		User:    toUserResponse(admin),
		Company: toCompanyResponse(company),
	}, nil
}

func (s *authService) Login(ctx context.Context, req LoginRequest) (AuthResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return AuthResponse{}, apperror.New(apperror.CodeUnauthorized, "invalid email or password", 401)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return AuthResponse{}, apperror.New(apperror.CodeUnauthorized, "invalid email or password", 401)
	}
	if !user.IsActive {
		return AuthResponse{}, apperror.New(apperror.CodeForbidden, "account is deactivated", 403)
	}
	if user.Company == nil {
		return AuthResponse{}, apperror.ErrInternal
	}

	token, err := generateToken(user)
	if err != nil {
		return AuthResponse{}, err
	}
	return AuthResponse{
		Token:   token,
		User:    toUserResponse(*user),
		Company: toCompanyResponse(*user.Company),
	}, nil
}

func (s *authService) Me(ctx context.Context, actor Identity) (UserResponse, CompanyResponse, error) {
	user, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return UserResponse{}, CompanyResponse{}, apperror.ErrUnauthorized
	}
	if user.Company == nil {
		return UserResponse{}, CompanyResponse{}, apperror.ErrInternal
	}
	return toUserResponse(*user), toCompanyResponse(*user.Company), nil
}

func (s *authService) ChangePassword(ctx context.Context, actor Identity, req ChangePasswordRequest) error {
	user, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return apperror.ErrUnauthorized
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return apperror.Validation("current password is incorrect")
	}
	if len(req.NewPassword) < 8 {
		return apperror.Validation("password must be at least 8 characters")
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.Password = string(hashed)

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.userRepo.Update(txCtx, user); txErr != nil {
			return fmt.Errorf("failed to update password: %w", txErr)
		}
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionChangePassword,
			EntityID:   user.ID.String(),
			EntityName: user.FullName(),
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return err
	}

	s.logger.Info("password changed", zap.String("user_id", user.ID.String()))
	return nil
}

// --- Helpers ---

func generateToken(user *model.User) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":        user.ID.String(),
		"role":       user.Role,
		"company_id": user.CompanyID.String(),
		"exp":        time.Now().Add(24 * time.Hour).Unix(),
		"iat":        time.Now().Unix(),
	})
	signed, err := token.SignedString(middleware.GetJWTSecret())
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func toUserResponse(user model.User) UserResponse {
	resp := UserResponse{
		ID:        user.ID.String(),
		Email:     user.Email,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Role:      user.Role,
		CompanyID: user.CompanyID.String(),
		IsActive:  user.IsActive,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	}
	if user.ManagerID != nil {
		managerID := user.ManagerID.String()
		resp.ManagerID = &managerID
	}
	return resp
}

func toCompanyResponse(company model.Company) CompanyResponse {
	return CompanyResponse{
		ID:       company.ID.String(),
		Name:     company.Name,
		Country:  company.Country,
		Currency: company.Currency,
	}
}
