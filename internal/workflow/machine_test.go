package workflow

import (
	"testing"

	"backend/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingExpense(ruleType string) *model.Expense {
	return &model.Expense{
		ID:       uuid.New(),
		Status:   model.ExpenseStatusPending,
		RuleType: ruleType,
	}
}

func chainOf(expenseID uuid.UUID, approvers ...uuid.UUID) []model.ApprovalStep {
	steps := make([]model.ApprovalStep, 0, len(approvers))
	for i, approver := range approvers {
		steps = append(steps, model.ApprovalStep{
			ExpenseID:  expenseID,
			ApproverID: approver,
			Sequence:   i + 1,
			Status:     model.ApprovalPending,
		})
	}
	return steps
}

func TestSequentialChainApprovesInOrder(t *testing.T) {
	expense := pendingExpense(model.RuleTypeSequential)
	first, second, third := uuid.New(), uuid.New(), uuid.New()
	steps := chainOf(expense.ID, first, second, third)
	var actions []model.ApprovalAction

	out, err := Decide(expense, steps, actions, first, DecisionApproved)
	require.NoError(t, err)
	assert.Equal(t, 1, out.StepSequence)
	assert.Equal(t, model.ExpenseStatusPending, out.ExpenseStatus)
	assert.False(t, out.Finalized)

	steps[0].Status = model.ApprovalApproved
	actions = append(actions, model.ApprovalAction{ExpenseID: expense.ID, ApproverID: first, Decision: "APPROVED"})

	out, err = Decide(expense, steps, actions, second, DecisionApproved)
	require.NoError(t, err)
	assert.False(t, out.Finalized)

	steps[1].Status = model.ApprovalApproved
	actions = append(actions, model.ApprovalAction{ExpenseID: expense.ID, ApproverID: second, Decision: "APPROVED"})

	out, err = Decide(expense, steps, actions, third, DecisionApproved)
	require.NoError(t, err)
	assert.True(t, out.Finalized)
	assert.Equal(t, model.ExpenseStatusApproved, out.ExpenseStatus)
}

func TestSequentialOutOfTurnRejected(t *testing.T) {
	expense := pendingExpense(model.RuleTypeSequential)
	first, second := uuid.New(), uuid.New()
	steps := chainOf(expense.ID, first, second)

	_, err := Decide(expense, steps, nil, second, DecisionApproved)
	assert.ErrorIs(t, err, ErrNotAuthorizedApprover)
}

func TestNonApproverRejected(t *testing.T) {
	expense := pendingExpense(model.RuleTypeSequential)
	steps := chainOf(expense.ID, uuid.New())

	_, err := Decide(expense, steps, nil, uuid.New(), DecisionApproved)
	assert.ErrorIs(t, err, ErrNotAuthorizedApprover)
}

func TestDuplicateDecisionRejected(t *testing.T) {
	expense := pendingExpense(model.RuleTypePercentage)
	actor := uuid.New()
	steps := chainOf(expense.ID, actor, uuid.New())
	actions := []model.ApprovalAction{{ExpenseID: expense.ID, ApproverID: actor, Decision: "APPROVED"}}

	_, err := Decide(expense, steps, actions, actor, DecisionApproved)
	assert.ErrorIs(t, err, ErrDuplicateAction)
}

func TestRejectionFinalizesImmediately(t *testing.T) {
	expense := pendingExpense(model.RuleTypeSequential)
	first, second, third := uuid.New(), uuid.New(), uuid.New()
	steps := chainOf(expense.ID, first, second, third)

	out, err := Decide(expense, steps, nil, first, DecisionRejected)
	require.NoError(t, err)
	assert.True(t, out.Finalized)
	assert.Equal(t, model.ExpenseStatusRejected, out.ExpenseStatus)
}

func TestTerminalExpenseRefusesDecisions(t *testing.T) {
	expense := pendingExpense(model.RuleTypeSequential)
	expense.Status = model.ExpenseStatusRejected
	actor := uuid.New()
	steps := chainOf(expense.ID, actor)

	_, err := Decide(expense, steps, nil, actor, DecisionApproved)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)

	expense.Status = model.ExpenseStatusApproved
	_, err = Decide(expense, steps, nil, actor, DecisionApproved)
	assert.ErrorIs(t, err, ErrAlreadyFinalized)
}

func TestPercentageThresholdFinalizesEarly(t *testing.T) {
	expense := pendingExpense(model.RuleTypePercentage)
	required := 60
	expense.RequiredPercentage = &required
	first, second, third := uuid.New(), uuid.New(), uuid.New()
	steps := chainOf(expense.ID, first, second, third)

	// First approval: 1/3 = 33% < 60%, stays pending.
	out, err := Decide(expense, steps, nil, first, DecisionApproved)
	require.NoError(t, err)
	assert.False(t, out.Finalized)

	steps[0].Status = model.ApprovalApproved
	actions := []model.ApprovalAction{{ExpenseID: expense.ID, ApproverID: first, Decision: "APPROVED"}}

	// Second approval: 2/3 = 66% >= 60%, finalizes without the third.
	out, err = Decide(expense, steps, actions, second, DecisionApproved)
	require.NoError(t, err)
	assert.True(t, out.Finalized)
	assert.Equal(t, model.ExpenseStatusApproved, out.ExpenseStatus)
}

func TestPercentageExactBoundary(t *testing.T) {
	expense := pendingExpense(model.RuleTypePercentage)
	required := 50
	expense.RequiredPercentage = &required
	first, second := uuid.New(), uuid.New()
	steps := chainOf(expense.ID, first, second)

	// 1/2 = exactly 50%: threshold is >=, so it finalizes.
	out, err := Decide(expense, steps, nil, first, DecisionApproved)
	require.NoError(t, err)
	assert.True(t, out.Finalized)
}

func TestPercentageAllowsOutOfOrderApproval(t *testing.T) {
	expense := pendingExpense(model.RuleTypePercentage)
	required := 100
	expense.RequiredPercentage = &required
	first, second := uuid.New(), uuid.New()
	steps := chainOf(expense.ID, first, second)

	// Percentage chains let later members act before earlier ones.
	out, err := Decide(expense, steps, nil, second, DecisionApproved)
	require.NoError(t, err)
	assert.False(t, out.Finalized)
	assert.Equal(t, 2, out.StepSequence)
}

func TestSpecificApproverOverride(t *testing.T) {
	expense := pendingExpense(model.RuleTypeSpecificApprover)
	cfo := uuid.New()
	expense.SpecificApproverID = &cfo
	first := uuid.New()
	steps := chainOf(expense.ID, first, cfo, uuid.New())

	out, err := Decide(expense, steps, nil, cfo, DecisionApproved)
	require.NoError(t, err)
	assert.True(t, out.Finalized)
	assert.Equal(t, model.ExpenseStatusApproved, out.ExpenseStatus)
}

func TestSpecificApproverOtherMembersDoNotFinalize(t *testing.T) {
	expense := pendingExpense(model.RuleTypeSpecificApprover)
	cfo := uuid.New()
	expense.SpecificApproverID = &cfo
	first := uuid.New()
	steps := chainOf(expense.ID, first, cfo)

	out, err := Decide(expense, steps, nil, first, DecisionApproved)
	require.NoError(t, err)
	assert.False(t, out.Finalized)
}

func TestHybridEitherConditionFinalizes(t *testing.T) {
	cfo := uuid.New()
	required := 60

	// Specific approver path
	expense := pendingExpense(model.RuleTypeHybrid)
	expense.SpecificApproverID = &cfo
	expense.RequiredPercentage = &required
	first, second := uuid.New(), uuid.New()
	steps := chainOf(expense.ID, first, second, cfo)

	out, err := Decide(expense, steps, nil, cfo, DecisionApproved)
	require.NoError(t, err)
	assert.True(t, out.Finalized)

	// Percentage path: 2/3 >= 60% without the specific approver.
	expense = pendingExpense(model.RuleTypeHybrid)
	expense.SpecificApproverID = &cfo
	expense.RequiredPercentage = &required
	steps = chainOf(expense.ID, first, second, cfo)
	steps[0].Status = model.ApprovalApproved
	actions := []model.ApprovalAction{{ExpenseID: expense.ID, ApproverID: first, Decision: "APPROVED"}}

	out, err = Decide(expense, steps, actions, second, DecisionApproved)
	require.NoError(t, err)
	assert.True(t, out.Finalized)
	assert.Equal(t, model.ExpenseStatusApproved, out.ExpenseStatus)
}

func TestCanActSequentialTurnOrder(t *testing.T) {
	expense := pendingExpense(model.RuleTypeSequential)
	first, second := uuid.New(), uuid.New()
	steps := chainOf(expense.ID, first, second)

	assert.True(t, CanAct(expense, steps, nil, first))
	assert.False(t, CanAct(expense, steps, nil, second))

	steps[0].Status = model.ApprovalApproved
	actions := []model.ApprovalAction{{ExpenseID: expense.ID, ApproverID: first, Decision: "APPROVED"}}
	assert.False(t, CanAct(expense, steps, actions, first))
	assert.True(t, CanAct(expense, steps, actions, second))
}

func TestCanActPercentageAnyPendingMember(t *testing.T) {
	expense := pendingExpense(model.RuleTypePercentage)
	required := 60
	expense.RequiredPercentage = &required
	first, second := uuid.New(), uuid.New()
	steps := chainOf(expense.ID, first, second)

	assert.True(t, CanAct(expense, steps, nil, first))
	assert.True(t, CanAct(expense, steps, nil, second))
	assert.False(t, CanAct(expense, steps, nil, uuid.New()))
}

func TestCanActTerminalExpense(t *testing.T) {
	expense := pendingExpense(model.RuleTypeSequential)
	expense.Status = model.ExpenseStatusApproved
	actor := uuid.New()
	steps := chainOf(expense.ID, actor)

	assert.False(t, CanAct(expense, steps, nil, actor))
}

func TestNextApproverFollowsChainOrder(t *testing.T) {
	expenseID := uuid.New()
	first, second := uuid.New(), uuid.New()
	steps := chainOf(expenseID, first, second)

	next := NextApprover(steps)
	require.NotNil(t, next)
	assert.Equal(t, first, *next)

	steps[0].Status = model.ApprovalApproved
	next = NextApprover(steps)
	require.NotNil(t, next)
	assert.Equal(t, second, *next)

	steps[1].Status = model.ApprovalSkipped
	assert.Nil(t, NextApprover(steps))
}
