package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"backend/internal/external"
	"backend/internal/model"
	"backend/internal/repository"
	"backend/internal/workflow"
	"backend/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// --- DTOs ---

type SubmitExpenseRequest struct {
	Amount      string `json:"amount" binding:"required"`
	Currency    string `json:"currency" binding:"required"`
	CategoryID  string `json:"category_id" binding:"required"`
	Description string `json:"description" binding:"required"`
	ExpenseDate string `json:"expense_date" binding:"required"` // YYYY-MM-DD

	// Optional OCR pre-fill carried over from /api/ocr/extract
	MerchantName    string `json:"merchant_name"`
	ReceiptPath     string `json:"receipt_path"`
	ExtractedAmount string `json:"extracted_amount"`
	ExtractedDate   string `json:"extracted_date"`
}

type ExpenseFilterRequest struct {
	Status     string
	CategoryID string
	StartDate  string
	EndDate    string
	Page       int
	Limit      int
}

type ExpenseResponse struct {
	ID                    string  `json:"id"`
	EmployeeID            string  `json:"employee_id"`
	EmployeeName          string  `json:"employee_name,omitempty"`
	CategoryID            string  `json:"category_id"`
	CategoryName          string  `json:"category_name,omitempty"`
	Amount                string  `json:"amount"`
	Currency              string  `json:"currency"`
	AmountCompanyCurrency string  `json:"amount_company_currency"`
	ExchangeRate          string  `json:"exchange_rate"`
	Description           string  `json:"description"`
	ExpenseDate           string  `json:"expense_date"`
	ReceiptPath           string  `json:"receipt_path,omitempty"`
	MerchantName          *string `json:"merchant_name,omitempty"`
	Status                string  `json:"status"`
	NextApproverID        *string `json:"next_approver_id,omitempty"`
	CreatedAt             string  `json:"created_at"`
}

type ApprovalStepResponse struct {
	Sequence     int    `json:"sequence"`
	ApproverID   string `json:"approver_id"`
	ApproverName string `json:"approver_name,omitempty"`
	Status       string `json:"status"`
}

type ExpenseDetailResponse struct {
	ExpenseResponse
	Steps   []ApprovalStepResponse   `json:"steps"`
	History []ApprovalActionResponse `json:"history"`
}

type CurrencyInfo struct {
	Code   string `json:"code"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// --- Interface ---

// ExpenseService is the ledger boundary: submission freezes the
// converted amount and the resolved approver chain; afterwards only the
// approval service mutates expense status.
type ExpenseService interface {
	Submit(ctx context.Context, actor Identity, req SubmitExpenseRequest) (ExpenseResponse, error)
	List(ctx context.Context, actor Identity, filter ExpenseFilterRequest) ([]ExpenseResponse, int64, error)
	Get(ctx context.Context, actor Identity, expenseID string) (ExpenseDetailResponse, error)
	Currencies(ctx context.Context, actor Identity) ([]CurrencyInfo, string, error)
}

type expenseService struct {
	expenseRepo  repository.ExpenseRepository
	approvalRepo repository.ApprovalRepository
	categoryRepo repository.CategoryRepository
	userRepo     repository.UserRepository
	ruleRepo     repository.RuleRepository
	auditRepo    repository.AuditRepository
	txManager    repository.TransactionManager
	rates        external.RateClient
	resolver     *workflow.Resolver
	notifier     Notifier
	logger       *zap.Logger
}

func NewExpenseService(
	expenseRepo repository.ExpenseRepository,
	approvalRepo repository.ApprovalRepository,
	categoryRepo repository.CategoryRepository,
	userRepo repository.UserRepository,
	ruleRepo repository.RuleRepository,
	auditRepo repository.AuditRepository,
	txManager repository.TransactionManager,
	rates external.RateClient,
	notifier Notifier,
	logger *zap.Logger,
) ExpenseService {
	if logger == nil {
		logger = zap.L()
	}
	if notifier == nil {
		notifier = NopNotifier{}
	}
	return &expenseService{
		expenseRepo:  expenseRepo,
		approvalRepo: approvalRepo,
		categoryRepo: categoryRepo,
		userRepo:     userRepo,
		ruleRepo:     ruleRepo,
		auditRepo:    auditRepo,
		txManager:    txManager,
		rates:        rates,
		resolver:     workflow.NewResolver(),
		notifier:     notifier,
		logger:       logger.Named("expense.service"),
	}
}

// --- Implementation ---

func (s *expenseService) Submit(ctx context.Context, actor Identity, req SubmitExpenseRequest) (ExpenseResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return ExpenseResponse{}, apperror.Validation("invalid amount format")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return ExpenseResponse{}, apperror.Validation("amount must be greater than 0")
	}

	expenseDate, err := time.Parse("2006-01-02", req.ExpenseDate)
	if err != nil {
		return ExpenseResponse{}, apperror.Validation("invalid expense_date format, expected YYYY-MM-DD")
	}
	if expenseDate.After(time.Now()) {
		return ExpenseResponse{}, apperror.Validation("expense date cannot be in the future")
	}

	categoryID, err := uuid.Parse(req.CategoryID)
	if err != nil {
		return ExpenseResponse{}, apperror.Validation("invalid category_id")
	}
	category, err := s.categoryRepo.GetByID(ctx, categoryID)
	if err != nil || category.CompanyID != actor.CompanyID || !category.IsActive {
		return ExpenseResponse{}, apperror.Validation("invalid category")
	}

	submitter, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil {
		return ExpenseResponse{}, apperror.ErrUnauthorized
	}
	if !submitter.IsActive || submitter.CompanyID != actor.CompanyID || submitter.Company == nil {
		return ExpenseResponse{}, apperror.ErrForbidden
	}
	company := submitter.Company

	// Currency conversion happens exactly once, before the transactional
	// boundary; the captured rate is immutable for the expense lifetime.
	rate := decimal.NewFromInt(1)
	if req.Currency != company.Currency {
		rate, err = s.rates.GetRate(ctx, req.Currency, company.Currency)
		if err != nil {
			s.logger.Warn("currency conversion failed",
				zap.String("from", req.Currency),
				zap.String("to", company.Currency),
				zap.Error(err),
			)
			return ExpenseResponse{}, apperror.DependencyUnavailable(err, "currency conversion failed")
		}
	}
	converted := amount.Mul(rate).Round(2)

	rule, err := s.ruleRepo.FindActiveForAmount(ctx, actor.CompanyID, converted)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("failed to look up approval rule: %w", err)
	}

	companyUsers, err := s.userRepo.ListByCompany(ctx, actor.CompanyID, true)
	if err != nil {
		return ExpenseResponse{}, fmt.Errorf("failed to load company users: %w", err)
	}
	userIndex := make(map[uuid.UUID]*model.User, len(companyUsers))
	for i := range companyUsers {
		userIndex[companyUsers[i].ID] = &companyUsers[i]
	}

	chain, err := s.resolver.Resolve(submitter, userIndex, rule)
	if err != nil {
		// Nothing has been persisted yet, so a failed resolution leaves
		// no trace of the expense.
		return ExpenseResponse{}, mapResolveError(err)
	}

	expense := model.Expense{
		EmployeeID:            submitter.ID,
		CompanyID:             actor.CompanyID,
		CategoryID:            categoryID,
		Amount:                amount,
		Currency:              req.Currency,
		AmountCompanyCurrency: converted,
		ExchangeRate:          rate,
		Description:           req.Description,
		ExpenseDate:           expenseDate,
		ReceiptPath:           req.ReceiptPath,
		Status:                model.ExpenseStatusPending,
		RuleType:              model.RuleTypeSequential,
	}
	if req.MerchantName != "" {
		expense.MerchantName = &req.MerchantName
	}
	if req.ExtractedAmount != "" {
		if extracted, parseErr := decimal.NewFromString(req.ExtractedAmount); parseErr == nil {
			expense.ExtractedAmount = &extracted
		}
	}
	if req.ExtractedDate != "" {
		if extracted, parseErr := time.Parse("2006-01-02", req.ExtractedDate); parseErr == nil {
			expense.ExtractedDate = &extracted
		}
	}
	if rule != nil {
		id := rule.ID
		expense.ApprovalRuleID = &id
		expense.RuleType = rule.RuleType
		expense.RequiredPercentage = rule.RequiredPercentage
		expense.SpecificApproverID = rule.SpecificApproverID
	}

	err = s.txManager.RunInTx(ctx, func(txCtx context.Context) error {
		if createErr := s.expenseRepo.Create(txCtx, &expense); createErr != nil {
			return fmt.Errorf("failed to create expense: %w", createErr)
		}

		steps := make([]model.ApprovalStep, 0, len(chain))
		for i, approverID := range chain {
			steps = append(steps, model.ApprovalStep{
				ExpenseID:  expense.ID,
				ApproverID: approverID,
				Sequence:   i + 1,
				Status:     model.ApprovalPending,
			})
		}
		if createErr := s.approvalRepo.CreateSteps(txCtx, steps); createErr != nil {
			return fmt.Errorf("failed to snapshot approval chain: %w", createErr)
		}

		details, _ := json.Marshal(map[string]interface{}{
			"amount":                  amount.StringFixed(2),
			"currency":                req.Currency,
			"amount_company_currency": converted.StringFixed(2),
			"exchange_rate":           rate.String(),
			"chain_length":            len(chain),
		})
		audit := &model.AuditLog{
			CompanyID:  actor.CompanyID,
			UserID:     &actor.UserID,
			Action:     model.ActionSubmitExpense,
			EntityID:   expense.ID.String(),
			EntityName: req.Description,
			Details:    string(details),
		}
		if auditErr := s.auditRepo.Log(txCtx, audit); auditErr != nil {
			return fmt.Errorf("failed to write audit log: %w", auditErr)
		}

		return nil
	})
	if err != nil {
		return ExpenseResponse{}, err
	}

	s.logger.Info("expense submitted",
		zap.String("expense_id", expense.ID.String()),
		zap.String("employee_id", submitter.ID.String()),
		zap.Int("chain_length", len(chain)),
	)
	s.notifier.Publish(actor.CompanyID, "expense.submitted", map[string]interface{}{
		"expense_id":  expense.ID.String(),
		"employee_id": submitter.ID.String(),
		"amount":      converted.StringFixed(2),
	})

	next := chain[0].String()
	resp := toExpenseResponse(expense)
	resp.EmployeeName = submitter.FullName()
	resp.CategoryName = category.Name
	resp.NextApproverID = &next
	return resp, nil
}

func (s *expenseService) List(ctx context.Context, actor Identity, filter ExpenseFilterRequest) ([]ExpenseResponse, int64, error) {
	repoFilter := repository.ExpenseFilter{
		Status: filter.Status,
		Page:   filter.Page,
		Limit:  filter.Limit,
	}
	if filter.Status != "" && filter.Status != model.ExpenseStatusPending &&
		filter.Status != model.ExpenseStatusApproved && filter.Status != model.ExpenseStatusRejected {
		return nil, 0, apperror.Validation("invalid status filter")
	}
	if filter.CategoryID != "" {
		categoryID, err := uuid.Parse(filter.CategoryID)
		if err != nil {
			return nil, 0, apperror.Validation("invalid category_id filter")
		}
		repoFilter.CategoryID = &categoryID
	}
	if filter.StartDate != "" {
		start, err := time.Parse("2006-01-02", filter.StartDate)
		if err != nil {
			return nil, 0, apperror.Validation("invalid start_date format")
		}
		repoFilter.StartDate = &start
	}
	if filter.EndDate != "" {
		end, err := time.Parse("2006-01-02", filter.EndDate)
		if err != nil {
			return nil, 0, apperror.Validation("invalid end_date format")
		}
		repoFilter.EndDate = &end
	}

	// Employees see their own expenses, managers their team's plus their
	// own, admins the whole company.
	switch actor.Role {
	case model.RoleEmployee:
		id := actor.UserID
		repoFilter.EmployeeID = &id
	case model.RoleManager:
		reports, err := s.userRepo.ListByManager(ctx, actor.UserID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to load team: %w", err)
		}
		ids := make([]uuid.UUID, 0, len(reports)+1)
		ids = append(ids, actor.UserID)
		for _, report := range reports {
			ids = append(ids, report.ID)
		}
		repoFilter.EmployeeIDs = ids
	}

	expenses, total, err := s.expenseRepo.ListByCompany(ctx, actor.CompanyID, repoFilter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch expenses: %w", err)
	}

	result := make([]ExpenseResponse, 0, len(expenses))
	for _, expense := range expenses {
		result = append(result, toExpenseResponse(expense))
	}
	return result, total, nil
}

func (s *expenseService) Get(ctx context.Context, actor Identity, expenseID string) (ExpenseDetailResponse, error) {
	id, err := uuid.Parse(expenseID)
	if err != nil {
		return ExpenseDetailResponse{}, apperror.Validation("invalid expense id")
	}

	expense, err := s.expenseRepo.GetByID(ctx, id)
	if err != nil {
		return ExpenseDetailResponse{}, apperror.ErrNotFound
	}
	if expense.CompanyID != actor.CompanyID {
		return ExpenseDetailResponse{}, apperror.ErrForbidden
	}
	if actor.Role == model.RoleEmployee && expense.EmployeeID != actor.UserID {
		return ExpenseDetailResponse{}, apperror.ErrForbidden
	}

	steps, err := s.approvalRepo.ListSteps(ctx, id)
	if err != nil {
		return ExpenseDetailResponse{}, fmt.Errorf("failed to load approval steps: %w", err)
	}
	actions, err := s.approvalRepo.ListActions(ctx, id)
	if err != nil {
		return ExpenseDetailResponse{}, fmt.Errorf("failed to load approval history: %w", err)
	}

	detail := ExpenseDetailResponse{ExpenseResponse: toExpenseResponse(*expense)}
	if next := workflow.NextApprover(steps); next != nil && expense.Status == model.ExpenseStatusPending {
		nextStr := next.String()
		detail.NextApproverID = &nextStr
	}
	for _, step := range steps {
		stepResp := ApprovalStepResponse{
			Sequence:   step.Sequence,
			ApproverID: step.ApproverID.String(),
			Status:     step.Status,
		}
		if step.Approver != nil {
			stepResp.ApproverName = step.Approver.FullName()
		}
		detail.Steps = append(detail.Steps, stepResp)
	}
	for _, action := range actions {
		detail.History = append(detail.History, toApprovalActionResponse(action))
	}
	return detail, nil
}

func (s *expenseService) Currencies(ctx context.Context, actor Identity) ([]CurrencyInfo, string, error) {
	submitter, err := s.userRepo.GetByID(ctx, actor.UserID)
	if err != nil || submitter.Company == nil {
		return nil, "", apperror.ErrUnauthorized
	}

	currencies := []CurrencyInfo{
		{Code: "USD", Name: "US Dollar", Symbol: "$"},
		{Code: "EUR", Name: "Euro", Symbol: "€"},
		{Code: "GBP", Name: "British Pound", Symbol: "£"},
		{Code: "JPY", Name: "Japanese Yen", Symbol: "¥"},
		{Code: "CAD", Name: "Canadian Dollar", Symbol: "C$"},
		{Code: "AUD", Name: "Australian Dollar", Symbol: "A$"},
		{Code: "INR", Name: "Indian Rupee", Symbol: "₹"},
		{Code: "CNY", Name: "Chinese Yuan", Symbol: "¥"},
	}

	companyCurrency := submitter.Company.Currency
	found := false
	for _, currency := range currencies {
		if currency.Code == companyCurrency {
			found = true
			break
		}
	}
	if !found {
		currencies = append([]CurrencyInfo{{Code: companyCurrency, Name: companyCurrency, Symbol: companyCurrency}}, currencies...)
	}
	return currencies, companyCurrency, nil
}

// --- Helpers ---

func mapResolveError(err error) error {
	switch {
	case errors.Is(err, workflow.ErrNoApproverAvailable):
		return apperror.Wrap(err, apperror.CodeNoApproverAvailable,
			"no approver available: assign a manager or configure an approval rule", http.StatusUnprocessableEntity)
	case errors.Is(err, workflow.ErrIncompleteChain):
		return apperror.Wrap(err, apperror.CodeIncompleteChain,
			"approval chain could not be fully resolved; contact your administrator", http.StatusUnprocessableEntity)
	default:
		return err
	}
}

func toExpenseResponse(e model.Expense) ExpenseResponse {
	resp := ExpenseResponse{
		ID:                    e.ID.String(),
		EmployeeID:            e.EmployeeID.String(),
		CategoryID:            e.CategoryID.String(),
		Amount:                e.Amount.StringFixed(2),
		Currency:              e.Currency,
		AmountCompanyCurrency: e.AmountCompanyCurrency.StringFixed(2),
		ExchangeRate:          e.ExchangeRate.String(),
		Description:           e.Description,
		ExpenseDate:           e.ExpenseDate.Format("2006-01-02"),
		ReceiptPath:           e.ReceiptPath,
		MerchantName:          e.MerchantName,
		Status:                e.Status,
		CreatedAt:             e.CreatedAt.Format(time.RFC3339),
	}
	if e.Employee != nil {
		resp.EmployeeName = e.Employee.FullName()
	}
	if e.Category != nil {
		resp.CategoryName = e.Category.Name
	}
	return resp
}
