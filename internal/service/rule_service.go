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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type RuleStepRequest struct {
	Sequence   int    `json:"sequence" binding:"required"`
	Role       string `json:"role"`
	ApproverID string `json:"approver_id"`
}

type RuleRequest struct {
	Name                    string            `json:"name" binding:"required"`
	Description             string            `json:"description"`
	RuleType                string            `json:"rule_type" binding:"required"`
	MinAmount               string            `json:"min_amount"`
	MaxAmount               *string           `json:"max_amount"`
	RequiredPercentage      *int              `json:"required_percentage"`
	SpecificApproverID      *string           `json:"specific_approver_id"`
	RequiresManagerApproval *bool             `json:"requires_manager_approval"`
	Steps                   []RuleStepRequest `json:"steps"`
}

type RuleStepResponse struct {
	Sequence     int    `json:"sequence"`
	Role         string `json:"role,omitempty"`
	ApproverID   string `json:"approver_id,omitempty"`
	ApproverName string `json:"approver_name,omitempty"`
}

type RuleResponse struct {
	ID                      string             `json:"id"`
	Name                    string             `json:"name"`
	Description             string             `json:"description,omitempty"`
	RuleType                string             `json:"rule_type"`
	MinAmount               string             `json:"min_amount"`
	MaxAmount               *string            `json:"max_amount,omitempty"`
	RequiredPercentage      *int               `json:"required_percentage,omitempty"`
	SpecificApproverID      *string            `json:"specific_approver_id,omitempty"`
	SpecificApproverName    string             `json:"specific_approver_name,omitempty"`
	RequiresManagerApproval bool               `json:"requires_manager_approval"`
	Steps                   []RuleStepResponse `json:"steps"`
	IsActive                bool               `json:"is_active"`
	CreatedAt               string             `json:"created_at"`
}

// --- Interface ---

// RuleService manages the approval rule configuration. Rule edits only
// affect expenses submitted afterwards; in-flight expenses keep the
// chain and parameters snapshotted at their submission.
type RuleService interface {
	Create(ctx context.Context, actor Identity, req RuleRequest) (RuleResponse, error)
	List(ctx context.Context, actor Identity, includeInactive bool) ([]RuleResponse, error)
	Get(ctx context.Context, actor Identity, ruleID string) (RuleResponse, error)
	Update(ctx context.Context, actor Identity, ruleID string, req RuleRequest) (RuleResponse, error)
	Deactivate(ctx context.Context, actor Identity, ruleID string) error
}

type ruleService struct {
	ruleRepo  repository.RuleRepository
	userRepo  repository.UserRepository
	auditRepo repository.AuditRepository
	txManager repository.TransactionManager
	logger    *zap.Logger
}

func NewRuleService(
	ruleRepo repository.RuleRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	logger *zap.Logger,
) RuleService {
	if logger == nil {
		logger = zap.L()
	}
	return &ruleService{
		ruleRepo:  ruleRepo,
		userRepo:  userRepo,
		auditRepo: auditRepo,
		txManager: txManager,
		logger:    logger.Named("rule.service"),
	}
}

// --- Implementation ---

func (s *ruleService) Create(ctx context.Context, actor Identity, req RuleRequest) (RuleResponse, error) {
	if actor.Role != model.RoleAdmin {
		return RuleResponse{}, apperror.ErrForbidden
	}

	rule, steps, err := s.buildRule(ctx, actor.CompanyID, req)
	if err != nil {
		return RuleResponse{}, err
	}
	rule.Steps = steps

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.ruleRepo.Create(txCtx, rule); txErr != nil {
			return fmt.Errorf("failed to create approval rule: %w", txErr)
		}
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionCreateApprovalRule,
			EntityID:   rule.ID.String(),
			EntityName: rule.Name,
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return RuleResponse{}, err
	}

	s.logger.Info("approval rule created",
		zap.String("rule_id", rule.ID.String()),
		zap.String("rule_type", rule.RuleType),
	)
	return s.toRuleResponse(rule), nil
}

func (s *ruleService) List(ctx context.Context, actor Identity, includeInactive bool) ([]RuleResponse, error) {
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleManager {
		return nil, apperror.ErrForbidden
	}

	rules, err := s.ruleRepo.ListByCompany(ctx, actor.CompanyID, !includeInactive)
	if err != nil {
		return nil, fmt.Errorf("failed to list approval rules: %w", err)
	}

	result := make([]RuleResponse, 0, len(rules))
	for i := range rules {
		result = append(result, s.toRuleResponse(&rules[i]))
	}
	return result, nil
}

func (s *ruleService) Get(ctx context.Context, actor Identity, ruleID string) (RuleResponse, error) {
	if actor.Role != model.RoleAdmin && actor.Role != model.RoleManager {
		return RuleResponse{}, apperror.ErrForbidden
	}

	id, err := uuid.Parse(ruleID)
	if err != nil {
		return RuleResponse{}, apperror.Validation("invalid rule id")
	}
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return RuleResponse{}, apperror.ErrNotFound
	}
	if rule.CompanyID != actor.CompanyID {
		return RuleResponse{}, apperror.ErrNotFound
	}
	return s.toRuleResponse(rule), nil
}

func (s *ruleService) Update(ctx context.Context, actor Identity, ruleID string, req RuleRequest) (RuleResponse, error) {
	if actor.Role != model.RoleAdmin {
		return RuleResponse{}, apperror.ErrForbidden
	}

	id, err := uuid.Parse(ruleID)
	if err != nil {
		return RuleResponse{}, apperror.Validation("invalid rule id")
	}
	existing, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return RuleResponse{}, apperror.ErrNotFound
	}
	if existing.CompanyID != actor.CompanyID {
		return RuleResponse{}, apperror.ErrNotFound
	}

	rule, steps, err := s.buildRule(ctx, actor.CompanyID, req)
	if err != nil {
		return RuleResponse{}, err
	}
	rule.ID = existing.ID
	rule.IsActive = existing.IsActive
	rule.CreatedAt = existing.CreatedAt

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.ruleRepo.Update(txCtx, rule); txErr != nil {
			return fmt.Errorf("failed to update approval rule: %w", txErr)
		}
		if txErr := s.ruleRepo.ReplaceSteps(txCtx, rule.ID, steps); txErr != nil {
			return fmt.Errorf("failed to replace rule steps: %w", txErr)
		}
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionUpdateApprovalRule,
			EntityID:   rule.ID.String(),
			EntityName: rule.Name,
		}
		return s.auditRepo.Log(txCtx, audit)
	})
	if err != nil {
		return RuleResponse{}, err
	}

	rule.Steps = steps
	return s.toRuleResponse(rule), nil
}

func (s *ruleService) Deactivate(ctx context.Context, actor Identity, ruleID string) error {
	if actor.Role != model.RoleAdmin {
		return apperror.ErrForbidden
	}

	id, err := uuid.Parse(ruleID)
	if err != nil {
		return apperror.Validation("invalid rule id")
	}
	rule, err := s.ruleRepo.GetByID(ctx, id)
	if err != nil {
		return apperror.ErrNotFound
	}
	if rule.CompanyID != actor.CompanyID {
		return apperror.ErrNotFound
	}

	return s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if txErr := s.ruleRepo.Deactivate(txCtx, id); txErr != nil {
			return fmt.Errorf("failed to deactivate approval rule: %w", txErr)
		}
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionDeleteApprovalRule,
			EntityID:   rule.ID.String(),
			EntityName: rule.Name,
		}
		return s.auditRepo.Log(txCtx, audit)
	})
}

// --- Helpers ---

// buildRule validates the request and assembles the rule and its steps.
// Shared by Create and Update so both enforce the same constraints.
func (s *ruleService) buildRule(ctx context.Context, companyID uuid.UUID, req RuleRequest) (*model.ApprovalRule, []model.ApprovalRuleStep, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, nil, apperror.Validation("rule name is required")
	}

	switch req.RuleType {
	case model.RuleTypeSequential, model.RuleTypePercentage, model.RuleTypeSpecificApprover, model.RuleTypeHybrid:
	default:
		return nil, nil, apperror.Validation("rule_type must be SEQUENTIAL, PERCENTAGE, SPECIFIC_APPROVER, or HYBRID")
	}

	minAmount := decimal.Zero
	if req.MinAmount != "" {
		parsed, err := decimal.NewFromString(req.MinAmount)
		if err != nil || parsed.IsNegative() {
			return nil, nil, apperror.Validation("invalid min_amount")
		}
		minAmount = parsed
	}
	var maxAmount *decimal.Decimal
	if req.MaxAmount != nil && *req.MaxAmount != "" {
		parsed, err := decimal.NewFromString(*req.MaxAmount)
		if err != nil || parsed.IsNegative() {
			return nil, nil, apperror.Validation("invalid max_amount")
		}
		if parsed.LessThan(minAmount) {
			return nil, nil, apperror.Validation("max_amount must be greater than or equal to min_amount")
		}
		maxAmount = &parsed
	}

	needsPercentage := req.RuleType == model.RuleTypePercentage || req.RuleType == model.RuleTypeHybrid
	if needsPercentage {
		if req.RequiredPercentage == nil {
			return nil, nil, apperror.Validation("required_percentage is required for this rule type")
		}
		if *req.RequiredPercentage < 1 || *req.RequiredPercentage > 100 {
			return nil, nil, apperror.Validation("required_percentage must be between 1 and 100")
		}
	} else if req.RequiredPercentage != nil {
		return nil, nil, apperror.Validation("required_percentage is only valid for PERCENTAGE and HYBRID rules")
	}

	needsSpecific := req.RuleType == model.RuleTypeSpecificApprover || req.RuleType == model.RuleTypeHybrid
	var specificApproverID *uuid.UUID
	if needsSpecific {
		if req.SpecificApproverID == nil || *req.SpecificApproverID == "" {
			return nil, nil, apperror.Validation("specific_approver_id is required for this rule type")
		}
		id, err := uuid.Parse(*req.SpecificApproverID)
		if err != nil {
			return nil, nil, apperror.Validation("invalid specific_approver_id")
		}
		approver, err := s.userRepo.GetByID(ctx, id)
		if err != nil || approver.CompanyID != companyID || !approver.IsActive {
			return nil, nil, apperror.Validation("specific approver not found")
		}
		if approver.Role != model.RoleManager && approver.Role != model.RoleAdmin {
			return nil, nil, apperror.Validation("specific approver must have the manager or admin role")
		}
		specificApproverID = &id
	} else if req.SpecificApproverID != nil && *req.SpecificApproverID != "" {
		return nil, nil, apperror.Validation("specific_approver_id is only valid for SPECIFIC_APPROVER and HYBRID rules")
	}

	steps, err := s.buildSteps(ctx, companyID, req.Steps)
	if err != nil {
		return nil, nil, err
	}

	requiresManager := true
	if req.RequiresManagerApproval != nil {
		requiresManager = *req.RequiresManagerApproval
	}
	// A rule with no steps and no manager requirement can never produce
	// an approver; reject it at configuration time.
	if len(steps) == 0 && !requiresManager {
		return nil, nil, apperror.Validation("rule must require manager approval or define at least one step")
	}

	rule := &model.ApprovalRule{
		CompanyID:               companyID,
		Name:                    name,
		Description:             req.Description,
		RuleType:                req.RuleType,
		MinAmount:               minAmount,
		MaxAmount:               maxAmount,
		RequiredPercentage:      req.RequiredPercentage,
		SpecificApproverID:      specificApproverID,
		RequiresManagerApproval: requiresManager,
		IsActive:                true,
	}
	return rule, steps, nil
}

// buildSteps validates the step list: sequences must be contiguous from
// 1, and each step names exactly one of a role or a concrete approver.
func (s *ruleService) buildSteps(ctx context.Context, companyID uuid.UUID, reqs []RuleStepRequest) ([]model.ApprovalRuleStep, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	seen := make(map[int]bool, len(reqs))
	steps := make([]model.ApprovalRuleStep, 0, len(reqs))
	for _, stepReq := range reqs {
		if stepReq.Sequence < 1 || stepReq.Sequence > len(reqs) || seen[stepReq.Sequence] {
			return nil, apperror.Validation("step sequences must be contiguous starting at 1")
		}
		seen[stepReq.Sequence] = true

		hasRole := stepReq.Role != ""
		hasApprover := stepReq.ApproverID != ""
		if hasRole == hasApprover {
			return nil, apperror.Validation("each step must set exactly one of role or approver_id")
		}

		step := model.ApprovalRuleStep{Sequence: stepReq.Sequence}
		if hasRole {
			if stepReq.Role != model.RoleManager && stepReq.Role != model.RoleAdmin {
				return nil, apperror.Validation("step role must be manager or admin")
			}
			step.Role = stepReq.Role
		} else {
			id, err := uuid.Parse(stepReq.ApproverID)
			if err != nil {
				return nil, apperror.Validation("invalid step approver_id")
			}
			approver, err := s.userRepo.GetByID(ctx, id)
			if err != nil || approver.CompanyID != companyID || !approver.IsActive {
				return nil, apperror.Validation("step approver not found")
			}
			if approver.Role != model.RoleManager && approver.Role != model.RoleAdmin {
				return nil, apperror.Validation("step approver must have the manager or admin role")
			}
			step.ApproverID = &id
		}
		steps = append(steps, step)
	}
	return steps, nil
}

func (s *ruleService) toRuleResponse(rule *model.ApprovalRule) RuleResponse {
	resp := RuleResponse{
		ID:                      rule.ID.String(),
		Name:                    rule.Name,
		Description:             rule.Description,
		RuleType:                rule.RuleType,
		MinAmount:               rule.MinAmount.StringFixed(2),
		RequiredPercentage:      rule.RequiredPercentage,
		RequiresManagerApproval: rule.RequiresManagerApproval,
		IsActive:                rule.IsActive,
		CreatedAt:               rule.CreatedAt.Format(time.RFC3339),
	}
	if rule.MaxAmount != nil {
		maxStr := rule.MaxAmount.StringFixed(2)
		resp.MaxAmount = &maxStr
	}
	if rule.SpecificApproverID != nil {
		idStr := rule.SpecificApproverID.String()
		resp.SpecificApproverID = &idStr
		if rule.SpecificApprover != nil {
			resp.SpecificApproverName = rule.SpecificApprover.FullName()
		}
	}
	for _, step := range rule.Steps {
		stepResp := RuleStepResponse{Sequence: step.Sequence, Role: step.Role}
		if step.ApproverID != nil {
			stepResp.ApproverID = step.ApproverID.String()
			if step.Approver != nil {
				stepResp.ApproverName = step.Approver.FullName()
			}
		}
		resp.Steps = append(resp.Steps, stepResp)
	}
	return resp
}
