package service

import (
	"context"
	"fmt"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/pkg/apperror"
	"backend/pkg/pagination"

	"go.uber.org/zap"
)

// --- DTOs ---

type AuditLogResponse struct {
	ID         string `json:"id"`
	UserID     string `json:"user_id,omitempty"`
	UserName   string `json:"user_name,omitempty"`
	Action     string `json:"action"`
	EntityID   string `json:"entity_id,omitempty"`
	EntityName string `json:"entity_name,omitempty"`
	Details    string `json:"details,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// --- Interface ---

type AuditService interface {
	List(ctx context.Context, actor Identity, p pagination.Params) ([]AuditLogResponse, pagination.Meta, error)
}

type auditService struct {
	auditRepo repository.AuditRepository
	logger    *zap.Logger
}

func NewAuditService(auditRepo repository.AuditRepository, logger *zap.Logger) AuditService {
	if logger == nil {
		logger = zap.L()
	}
	return &auditService{
		auditRepo: auditRepo,
		logger:    logger.Named("audit.service"),
	}
}

// --- Implementation ---

func (s *auditService) List(ctx context.Context, actor Identity, p pagination.Params) ([]AuditLogResponse, pagination.Meta, error) {
	if actor.Role != model.RoleAdmin {
		return nil, pagination.Meta{}, apperror.ErrForbidden
	}

	logs, total, err := s.auditRepo.ListByCompany(ctx, actor.CompanyID, p.Page, p.Limit)
	if err != nil {
		return nil, pagination.Meta{}, fmt.Errorf("failed to list audit logs: %w", err)
	}

	result := make([]AuditLogResponse, 0, len(logs))
	for _, entry := range logs {
		item := AuditLogResponse{
			ID:         entry.ID.String(),
			Action:     entry.Action,
			EntityID:   entry.EntityID,
			EntityName: entry.EntityName,
			Details:    entry.Details,
			CreatedAt:  entry.CreatedAt.Format(time.RFC3339),
		}
		if entry.UserID != nil {
			item.UserID = entry.UserID.String()
		}
		if entry.User != nil {
			item.UserName = entry.User.FullName()
		}
		result = append(result, item)
	}
	return result, pagination.NewMeta(p, total), nil
}
