package service

import (
	"context"
	"sync"
	"testing"

	"backend/internal/model"
	"backend/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitExpense(t *testing.T, env *testEnv, submitter *model.User) ExpenseResponse {
	t.Helper()
	resp, err := env.expenseService().Submit(context.Background(), env.identity(submitter), env.submitRequest())
	require.NoError(t, err)
	return resp
}

func TestDecideSequentialFlow(t *testing.T) {
	env := newTestEnv(t)
	// Chain: manager, then admin (via a role step).
	rule := &model.ApprovalRule{
		CompanyID:               env.company.ID,
		Name:                    "Two level",
		RuleType:                model.RuleTypeSequential,
		MinAmount:               decimal.Zero,
		RequiresManagerApproval: true,
		IsActive:                true,
		Steps:                   []model.ApprovalRuleStep{{Sequence: 1, Role: model.RoleAdmin}},
	}
	require.NoError(t, env.ruleRepo.Create(context.Background(), rule))

	expense := submitExpense(t, env, env.employee)
	svc := env.approvalService()
	ctx := context.Background()

	// Manager approves: chain advances, not finalized.
	result, err := svc.Decide(ctx, env.identity(env.manager), expense.ID, DecideRequest{Decision: "APPROVED"})
	require.NoError(t, err)
	assert.False(t, result.Finalized)
	assert.Equal(t, model.ExpenseStatusPending, result.ExpenseStatus)
	require.NotNil(t, result.NextApproverID)
	assert.Equal(t, env.admin.ID.String(), *result.NextApproverID)

	// Admin approves: chain exhausted, finalized.
	result, err = svc.Decide(ctx, env.identity(env.admin), expense.ID, DecideRequest{Decision: "APPROVED"})
	require.NoError(t, err)
	assert.True(t, result.Finalized)
	assert.Equal(t, model.ExpenseStatusApproved, result.ExpenseStatus)

	assert.Contains(t, env.notifier.events, "expense.approved")
	// submit + 2 decisions
	assert.Len(t, env.store.audits, 3)
}

func TestDecideRejectionSkipsRemainingSteps(t *testing.T) {
	env := newTestEnv(t)
	rule := &model.ApprovalRule{
		CompanyID:               env.company.ID,
		Name:                    "Two level",
		RuleType:                model.RuleTypeSequential,
		MinAmount:               decimal.Zero,
		RequiresManagerApproval: true,
		IsActive:                true,
		Steps:                   []model.ApprovalRuleStep{{Sequence: 1, Role: model.RoleAdmin}},
	}
	require.NoError(t, env.ruleRepo.Create(context.Background(), rule))

	expense := submitExpense(t, env, env.employee)
	svc := env.approvalService()

	result, err := svc.Decide(context.Background(), env.identity(env.manager), expense.ID, DecideRequest{Decision: "REJECTED", Comment: "missing receipt"})
	require.NoError(t, err)
	assert.True(t, result.Finalized)
	assert.Equal(t, model.ExpenseStatusRejected, result.ExpenseStatus)

	var statuses []string
	for _, step := range env.store.steps {
		statuses = append(statuses, step.Status)
	}
	assert.Equal(t, []string{model.ApprovalRejected, model.ApprovalSkipped}, statuses)
	assert.Contains(t, env.notifier.events, "expense.rejected")
}

func TestDecideOutOfTurnForbidden(t *testing.T) {
	env := newTestEnv(t)
	rule := &model.ApprovalRule{
		CompanyID:               env.company.ID,
		Name:                    "Two level",
		RuleType:                model.RuleTypeSequential,
		MinAmount:               decimal.Zero,
		RequiresManagerApproval: true,
		IsActive:                true,
		Steps:                   []model.ApprovalRuleStep{{Sequence: 1, Role: model.RoleAdmin}},
	}
	require.NoError(t, env.ruleRepo.Create(context.Background(), rule))

	expense := submitExpense(t, env, env.employee)
	svc := env.approvalService()

	// The admin holds step 2 but the manager has not acted yet.
	_, err := svc.Decide(context.Background(), env.identity(env.admin), expense.ID, DecideRequest{Decision: "APPROVED"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeNotAuthorizedApprover, apperror.From(err).Code)
}

func TestDecideDuplicateConflict(t *testing.T) {
	env := newTestEnv(t)
	required := 100
	rule := &model.ApprovalRule{
		CompanyID:               env.company.ID,
		Name:                    "Unanimous",
		RuleType:                model.RuleTypePercentage,
		MinAmount:               decimal.Zero,
		RequiredPercentage:      &required,
		RequiresManagerApproval: true,
		IsActive:                true,
		Steps:                   []model.ApprovalRuleStep{{Sequence: 1, Role: model.RoleAdmin}},
	}
	require.NoError(t, env.ruleRepo.Create(context.Background(), rule))

	expense := submitExpense(t, env, env.employee)
	svc := env.approvalService()
	ctx := context.Background()

	_, err := svc.Decide(ctx, env.identity(env.manager), expense.ID, DecideRequest{Decision: "APPROVED"})
	require.NoError(t, err)

	_, err = svc.Decide(ctx, env.identity(env.manager), expense.ID, DecideRequest{Decision: "APPROVED"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeDuplicateAction, apperror.From(err).Code)
}

func TestDecideConcurrentSameSlot(t *testing.T) {
	env := newTestEnv(t)
	expense := submitExpense(t, env, env.employee)
	svc := env.approvalService()

	// Two simultaneous decisions race for the manager's slot. The
	// transaction serializes them: exactly one commits, the loser sees
	// the committed state and fails as a conflict.
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Decide(context.Background(), env.identity(env.manager), expense.ID, DecideRequest{Decision: "APPROVED"})
		}(i)
	}
	wg.Wait()

	var failures []error
	for _, err := range errs {
		if err != nil {
			failures = append(failures, err)
		}
	}
	require.Len(t, failures, 1)
	code := apperror.From(failures[0]).Code
	assert.Contains(t, []string{apperror.CodeDuplicateAction, apperror.CodeAlreadyFinalized}, code)

	// No double count: one action row, one resolved step, finalized once.
	assert.Len(t, env.store.actions, 1)
	require.Len(t, env.store.steps, 1)
	assert.Equal(t, model.ApprovalApproved, env.store.steps[0].Status)

	stored, err := env.expenseRepo.GetByID(context.Background(), env.store.steps[0].ExpenseID)
	require.NoError(t, err)
	assert.Equal(t, model.ExpenseStatusApproved, stored.Status)
}

func TestDecideOnFinalizedConflict(t *testing.T) {
	env := newTestEnv(t)
	expense := submitExpense(t, env, env.employee)
	svc := env.approvalService()
	ctx := context.Background()

	_, err := svc.Decide(ctx, env.identity(env.manager), expense.ID, DecideRequest{Decision: "APPROVED"})
	require.NoError(t, err)

	// Single-step chain finalized above; the admin arrives late.
	_, err = svc.Decide(ctx, env.identity(env.admin), expense.ID, DecideRequest{Decision: "REJECTED"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeAlreadyFinalized, apperror.From(err).Code)
}

func TestDecideEmployeeForbidden(t *testing.T) {
	env := newTestEnv(t)
	expense := submitExpense(t, env, env.employee)
	svc := env.approvalService()

	_, err := svc.Decide(context.Background(), env.identity(env.employee), expense.ID, DecideRequest{Decision: "APPROVED"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeForbidden, apperror.From(err).Code)
}

func TestDecideInvalidDecision(t *testing.T) {
	env := newTestEnv(t)
	expense := submitExpense(t, env, env.employee)
	svc := env.approvalService()

	_, err := svc.Decide(context.Background(), env.identity(env.manager), expense.ID, DecideRequest{Decision: "MAYBE"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.From(err).Code)
}

func TestDecideUsesSnapshotNotCurrentRule(t *testing.T) {
	env := newTestEnv(t)
	required := 50
	rule := &model.ApprovalRule{
		CompanyID:               env.company.ID,
		Name:                    "Half",
		RuleType:                model.RuleTypePercentage,
		MinAmount:               decimal.Zero,
		RequiredPercentage:      &required,
		RequiresManagerApproval: true,
		IsActive:                true,
		Steps:                   []model.ApprovalRuleStep{{Sequence: 1, Role: model.RoleAdmin}},
	}
	require.NoError(t, env.ruleRepo.Create(context.Background(), rule))

	expense := submitExpense(t, env, env.employee)

	// Tighten the rule to unanimous after submission; the in-flight
	// expense keeps the 50% threshold frozen at submission.
	hundred := 100
	rule.RequiredPercentage = &hundred
	require.NoError(t, env.ruleRepo.Update(context.Background(), rule))

	result, err := env.approvalService().Decide(context.Background(), env.identity(env.manager), expense.ID, DecideRequest{Decision: "APPROVED"})
	require.NoError(t, err)
	// 1 of 2 = 50% >= frozen 50%: finalized despite the tightened rule.
	assert.True(t, result.Finalized)
	assert.Equal(t, model.ExpenseStatusApproved, result.ExpenseStatus)
}

func TestPendingReflectsTurnOrder(t *testing.T) {
	env := newTestEnv(t)
	rule := &model.ApprovalRule{
		CompanyID:               env.company.ID,
		Name:                    "Two level",
		RuleType:                model.RuleTypeSequential,
		MinAmount:               decimal.Zero,
		RequiresManagerApproval: true,
		IsActive:                true,
		Steps:                   []model.ApprovalRuleStep{{Sequence: 1, Role: model.RoleAdmin}},
	}
	require.NoError(t, env.ruleRepo.Create(context.Background(), rule))

	expense := submitExpense(t, env, env.employee)
	svc := env.approvalService()
	ctx := context.Background()

	pending, err := svc.Pending(ctx, env.identity(env.manager))
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, expense.ID, pending[0].ExpenseID)

	// Not the admin's turn yet on a sequential chain.
	pending, err = svc.Pending(ctx, env.identity(env.admin))
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = svc.Decide(ctx, env.identity(env.manager), expense.ID, DecideRequest{Decision: "APPROVED"})
	require.NoError(t, err)

	pending, err = svc.Pending(ctx, env.identity(env.admin))
	require.NoError(t, err)
	require.Len(t, pending, 1)

	pending, err = svc.Pending(ctx, env.identity(env.manager))
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestHistoryOrdering(t *testing.T) {
	env := newTestEnv(t)
	rule := &model.ApprovalRule{
		CompanyID:               env.company.ID,
		Name:                    "Two level",
		RuleType:                model.RuleTypeSequential,
		MinAmount:               decimal.Zero,
		RequiresManagerApproval: true,
		IsActive:                true,
		Steps:                   []model.ApprovalRuleStep{{Sequence: 1, Role: model.RoleAdmin}},
	}
	require.NoError(t, env.ruleRepo.Create(context.Background(), rule))

	expense := submitExpense(t, env, env.employee)
	svc := env.approvalService()
	ctx := context.Background()

	_, err := svc.Decide(ctx, env.identity(env.manager), expense.ID, DecideRequest{Decision: "APPROVED", Comment: "ok"})
	require.NoError(t, err)
	_, err = svc.Decide(ctx, env.identity(env.admin), expense.ID, DecideRequest{Decision: "APPROVED"})
	require.NoError(t, err)

	history, err := svc.History(ctx, env.identity(env.employee), expense.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, env.manager.ID.String(), history[0].ApproverID)
	assert.Equal(t, "ok", history[0].Comment)
	assert.Equal(t, env.admin.ID.String(), history[1].ApproverID)
}
