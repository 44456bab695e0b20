package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/workflow"
	"backend/pkg/apperror"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// --- DTOs ---

type DecideRequest struct {
	Decision string `json:"decision" binding:"required"` // APPROVED or REJECTED
	Comment  string `json:"comment"`
}

type PendingApprovalResponse struct {
	ExpenseID             string `json:"expense_id"`
	Sequence              int    `json:"sequence"`
	EmployeeName          string `json:"employee_name"`
	CategoryName          string `json:"category_name"`
	Description           string `json:"description"`
	AmountCompanyCurrency string `json:"amount_company_currency"`
	Currency              string `json:"currency"`
	ExpenseDate           string `json:"expense_date"`
	SubmittedAt           string `json:"submitted_at"`
}

type ApprovalActionResponse struct {
	ID           string `json:"id"`
	ExpenseID    string `json:"expense_id"`
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name,omitempty"`
	Decision     string `json:"decision"`
	Comment      string `json:"comment,omitempty"`
	CreatedAt    string `json:"created_at"`
}

type DecideResponse struct {
	ExpenseID      string  `json:"expense_id"`
	Decision       string  `json:"decision"`
	ExpenseStatus  string  `json:"expense_status"`
	Finalized      bool    `json:"finalized"`
	NextApproverID *string `json:"next_approver_id,omitempty"`
}

// --- Interface ---

// ApprovalService records approver decisions and answers the computed
// "what is waiting on me" query.
type ApprovalService interface {
	Decide(ctx context.Context, actor Identity, expenseID string, req DecideRequest) (DecideResponse, error)
	Pending(ctx context.Context, actor Identity) ([]PendingApprovalResponse, error)
	Processed(ctx context.Context, actor Identity, limit int) ([]ApprovalActionResponse, error)
	History(ctx context.Context, actor Identity, expenseID string) ([]ApprovalActionResponse, error)
}

type approvalService struct {
	expenseRepo  repository.ExpenseRepository
	approvalRepo repository.ApprovalRepository
	userRepo     repository.UserRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	notifier     Notifier
	logger       *zap.Logger
}

func NewApprovalService(
	expenseRepo repository.ExpenseRepository,
	approvalRepo repository.ApprovalRepository,
	userRepo repository.UserRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	notifier Notifier,
	logger *zap.Logger,
) ApprovalService {
	if logger == nil {
		logger = zap.L()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &approvalService{
		expenseRepo:  expenseRepo,
		approvalRepo: approvalRepo,
		userRepo:     userRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		notifier:     notifier,
		logger:       logger.Named("approval.service"),
	}
}

// --- Implementation ---

func (s *approvalService) Decide(ctx context.Context, actor Identity, expenseID string, req DecideRequest) (DecideResponse, error) {
	id, err := uuid.Parse(expenseID)
	if err != nil {
		return DecideResponse{}, apperror.Validation("invalid expense id")
	}
	decision := workflow.Decision(req.Decision)
	if !decision.Valid() {
		return DecideResponse{}, apperror.Validation("decision must be APPROVED or REJECTED")
	}
	if actor.Role != model.RoleManager && actor.Role != model.RoleAdmin {
		return DecideResponse{}, apperror.ErrForbidden
	}

	var resp DecideResponse

	// The whole decision runs under a row lock on the expense so two
	// approvers acting at the same moment serialize; the loser re-reads
	// the state the winner committed.
	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		expense, txErr := s.expenseRepo.GetByIDForUpdate(txCtx, id)
		if txErr != nil {
			return apperror.ErrNotFound
		}
		if expense.CompanyID != actor.CompanyID {
			return apperror.ErrForbidden
		}

		steps, txErr := s.approvalRepo.ListSteps(txCtx, id)
		if txErr != nil {
			return fmt.Errorf("failed to load approval steps: %w", txErr)
		}
		actions, txErr := s.approvalRepo.ListActions(txCtx, id)
		if txErr != nil {
			return fmt.Errorf("failed to load approval history: %w", txErr)
		}

		outcome, txErr := workflow.Decide(expense, steps, actions, actor.UserID, decision)
		if txErr != nil {
			return mapDecisionError(txErr)
		}

		action := &model.ApprovalAction{
			ExpenseID:  id,
			ApproverID: actor.UserID,
			Decision:   string(decision),
			Comment:    req.Comment,
		}
		if txErr = s.approvalRepo.CreateAction(txCtx, action); txErr != nil {
			return fmt.Errorf("failed to record decision: %w", txErr)
		}
		if txErr = s.approvalRepo.UpdateStepStatus(txCtx, id, outcome.StepSequence, string(decision)); txErr != nil {
			return fmt.Errorf("failed to update approval step: %w", txErr)
		}

		if outcome.Finalized {
			if txErr = s.approvalRepo.SkipPendingSteps(txCtx, id); txErr != nil {
				return fmt.Errorf("failed to skip remaining steps: %w", txErr)
			}
			if txErr = s.expenseRepo.UpdateStatus(txCtx, id, outcome.ExpenseStatus); txErr != nil {
				return fmt.Errorf("failed to update expense status: %w", txErr)
			}
		}

		auditAction := model.ActionApproveExpense
		if decision == workflow.DecisionRejected {
			auditAction = model.ActionRejectExpense
		}
		details, _ := json.Marshal(map[string]interface{}{
			"decision":       string(decision),
			"step_sequence":  outcome.StepSequence,
			"expense_status": outcome.ExpenseStatus,
			"finalized":      outcome.Finalized,
		})
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     auditAction,
			EntityID:   id.String(),
			EntityName: expense.Description,
			Details:    string(details),
		}
		if txErr = s.auditRepo.Log(txCtx, audit); txErr != nil {
			return fmt.Errorf("failed to write audit log: %w", txErr)
		}

		resp = DecideResponse{
			ExpenseID:     id.String(),
			Decision:      string(decision),
			ExpenseStatus: outcome.ExpenseStatus,
			Finalized:     outcome.Finalized,
		}
		if !outcome.Finalized {
			// Re-read after the update so the sequential pointer reflects
			// the step just resolved.
			remaining, listErr := s.approvalRepo.ListSteps(txCtx, id)
			if listErr == nil {
				if next := workflow.NextApprover(remaining); next != nil {
					nextStr := next.String()
					resp.NextApproverID = &nextStr
				}
			}
		}
		return nil
	})
	if err != nil {
		return DecideResponse{}, err
	}

	s.logger.Info("decision recorded",
		zap.String("expense_id", resp.ExpenseID),
		zap.String("approver_id", actor.UserID.String()),
		zap.String("decision", resp.Decision),
		zap.Bool("finalized", resp.Finalized),
	)
	if resp.Finalized {
		event := "expense.approved"
		if resp.ExpenseStatus == model.ExpenseStatusRejected {
			event = "expense.rejected"
		}
		s.notifier.Publish(actor.CompanyID, event, map[string]interface{}{
			"expense_id":  resp.ExpenseID,
			"approver_id": actor.UserID.String(),
		})
	}
	return resp, nil
}

// Pending returns the expenses actor could decide right now. Eligibility
// is computed from the chain snapshot on every call, never stored.
func (s *approvalService) Pending(ctx context.Context, actor Identity) ([]PendingApprovalResponse, error) {
	if actor.Role != model.RoleManager && actor.Role != model.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	candidates, err := s.approvalRepo.ListPendingStepsByApprover(ctx, actor.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load pending steps: %w", err)
	}

	result := make([]PendingApprovalResponse, 0, len(candidates))
	for _, candidate := range candidates {
		if candidate.Expense == nil || candidate.Expense.CompanyID != actor.CompanyID {
			continue
		}
		steps, stepErr := s.approvalRepo.ListSteps(ctx, candidate.ExpenseID)
		if stepErr != nil {
			return nil, fmt.Errorf("failed to load approval steps: %w", stepErr)
		}
		actions, actionErr := s.approvalRepo.ListActions(ctx, candidate.ExpenseID)
		if actionErr != nil {
			return nil, fmt.Errorf("failed to load approval history: %w", actionErr)
		}
		if !workflow.CanAct(candidate.Expense, steps, actions, actor.UserID) {
			continue
		}

		item := PendingApprovalResponse{
			ExpenseID:             candidate.ExpenseID.String(),
			Sequence:              candidate.Sequence,
			Description:           candidate.Expense.Description,
			AmountCompanyCurrency: candidate.Expense.AmountCompanyCurrency.StringFixed(2),
			Currency:              candidate.Expense.Currency,
			ExpenseDate:           candidate.Expense.ExpenseDate.Format("2006-01-02"),
			SubmittedAt:           candidate.Expense.CreatedAt.Format(time.RFC3339),
		}
		if candidate.Expense.Employee != nil {
			item.EmployeeName = candidate.Expense.Employee.FullName()
		}
		if candidate.Expense.Category != nil {
			item.CategoryName = candidate.Expense.Category.Name
		}
		result = append(result, item)
	}
	return result, nil
}

func (s *approvalService) Processed(ctx context.Context, actor Identity, limit int) ([]ApprovalActionResponse, error) {
	if actor.Role != model.RoleManager && actor.Role != model.RoleAdmin {
		return nil, apperror.ErrForbidden
	}

	actions, err := s.approvalRepo.ListActionsByApprover(ctx, actor.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to load processed decisions: %w", err)
	}

	result := make([]ApprovalActionResponse, 0, len(actions))
	for _, action := range actions {
		result = append(result, toApprovalActionResponse(action))
	}
	return result, nil
}

func (s *approvalService) History(ctx context.Context, actor Identity, expenseID string) ([]ApprovalActionResponse, error) {
	id, err := uuid.Parse(expenseID)
	if err != nil {
		return nil, apperror.Validation("invalid expense id")
	}

	expense, err := s.expenseRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrNotFound
	}
	if expense.CompanyID != actor.CompanyID {
		return nil, apperror.ErrForbidden
	}
	if actor.Role == model.RoleEmployee && expense.EmployeeID != actor.UserID {
		return nil, apperror.ErrForbidden
	}

	actions, err := s.approvalRepo.ListActions(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load approval history: %w", err)
	}

	result := make([]ApprovalActionResponse, 0, len(actions))
	for _, action := range actions {
		result = append(result, toApprovalActionResponse(action))
	}
	return result, nil
}

// --- Helpers ---

func mapDecisionError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrAlreadyFinalized):
		return apperror.Wrap(err, apperror.CodeAlreadyFinalized,
			"expense has already reached a final decision", http.StatusConflict)
	case errors.Is(err, workflow.ErrDuplicateAction):
		return apperror.Wrap(err, apperror.CodeDuplicateAction,
			"you have already acted on this expense", http.StatusConflict)
	case errors.Is(err, workflow.ErrNotAuthorizedApprover):
		return apperror.Wrap(err, apperror.CodeNotAuthorizedApprover,
			"it is not your turn to act on this expense", http.StatusForbidden)
	default:
		return err
	}
}

func toApprovalActionResponse(action model.ApprovalAction) ApprovalActionResponse {
	resp := ApprovalActionResponse{
		ID:         action.ID.String(),
		ExpenseID:  action.ExpenseID.String(),
		ApproverID: action.ApproverID.String(),
		Decision:   action.Decision,
		Comment:    action.Comment,
		CreatedAt:  action.CreatedAt.Format(time.RFC3339),
	}
	if action.Approver != nil {
		resp.ApproverName = action.Approver.FullName()
	}
	return resp
}
