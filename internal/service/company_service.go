package service

import (
	"context"
	"fmt"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperror"

	"go.uber.org/zap"
)

// --- DTOs ---

type UpdateCompanyRequest struct {
	Name    *string `json:"name"`
	Country *string `json:"country"`
}

type CompanyDetailResponse struct {
	CompanyResponse
	TotalUsers    int64 `json:"total_users"`
	AdminCount    int64 `json:"admin_count"`
	ManagerCount  int64 `json:"manager_count"`
	EmployeeCount int64 `json:"employee_count"`
}

// --- Interface ---

type CompanyService interface {
	Get(ctx context.Context, actor Identity) (CompanyDetailResponse, error)
	Update(ctx context.Context, actor Identity, req UpdateCompanyRequest) (CompanyResponse, error)
}

type companyService struct {
	companyRepo repository.CompanyRepository
	logger      *zap.Logger
}

func NewCompanyService(companyRepo repository.CompanyRepository, logger *zap.Logger) CompanyService {
	if logger == nil {
		logger = zap.L()
	}
	return &companyService{
		companyRepo: companyRepo,
		logger:      logger.Named("company.service"),
	}
}

// --- Implementation ---

func (s *companyService) Get(ctx context.Context, actor Identity) (CompanyDetailResponse, error) {
	company, err := s.companyRepo.GetByID(ctx, actor.CompanyID)
	if err != nil {
		return CompanyDetailResponse{}, apperror.ErrNotFound
	}

	detail := CompanyDetailResponse{CompanyResponse: toCompanyResponse(*company)}

	counts := map[string]*int64{
		model.RoleAdmin:    &detail.AdminCount,
		model.RoleManager:  &detail.ManagerCount,
		model.RoleEmployee: &detail.EmployeeCount,
	}
	for role, target := range counts {
		count, countErr := s.companyRepo.CountUsersByRole(ctx, actor.CompanyID, role)
		if countErr != nil {
			return CompanyDetailResponse{}, fmt.Errorf("failed to count users: %w", countErr)
		}
		*target = count
		detail.TotalUsers += count
	}
	return detail, nil
}

// Update changes the company name and country. The currency is fixed at
// registration: converted expense amounts already on the ledger are
// denominated in it.
func (s *companyService) Update(ctx context.Context, actor Identity, req UpdateCompanyRequest) (CompanyResponse, error) {
	if actor.Role != model.RoleAdmin {
		return CompanyResponse{}, apperror.ErrForbidden
	}

	company, err := s.companyRepo.GetByID(ctx, actor.CompanyID)
	if err != nil {
		return CompanyResponse{}, apperror.ErrNotFound
	}

	if req.Name != nil && *req.Name != "" {
		company.Name = *req.Name
	}
	if req.Country != nil && *req.Country != "" {
		company.Country = *req.Country
	}

	if err := s.companyRepo.Update(ctx, company); err != nil {
		return CompanyResponse{}, fmt.Errorf("failed to update company: %w", err)
	}

	s.logger.Info("company updated", zap.String("company_id", company.ID.String()))
	return toCompanyResponse(*company), nil
}
