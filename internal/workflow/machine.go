package workflow

import (
	"sort"

	"backend/internal/model"

	"github.com/google/uuid"
)

// Decision is an approver's verdict on a single expense.
type Decision string

const (
	DecisionApproved Decision = "APPROVED"
	DecisionRejected Decision = "REJECTED"
)

// Valid reports whether d is one of the two accepted verdicts.
func (d Decision) Valid() bool {
	return d == DecisionApproved || d == DecisionRejected
}

// Outcome describes the state transition produced by a decision. The
// caller persists it: mark the step, append the action, and update the
// expense status when Finalized.
type Outcome struct {
	// ExpenseStatus is the expense status after the decision.
	ExpenseStatus string
	// StepSequence is the chain position the decision landed on.
	StepSequence int
	// Finalized is true when the expense reached a terminal status and
	// all remaining pending steps should be marked skipped.
	Finalized bool
}

// Decide validates a decision against the expense's snapshotted chain
// and rule, and computes the resulting transition. It mutates nothing;
// the service layer applies the outcome inside one transaction.
//
// The rule parameters (type, percentage threshold, specific approver)
// are read from the snapshot frozen on the expense at submission, so
// rule edits never affect in-flight decisions.
func Decide(expense *model.Expense, steps []model.ApprovalStep, actions []model.ApprovalAction, approverID uuid.UUID, decision Decision) (*Outcome, error) {
	if expense.IsTerminal() || expense.Status != model.ExpenseStatusPending {
		return nil, ErrAlreadyFinalized
	}
	for _, action := range actions {
		if action.ApproverID == approverID {
			return nil, ErrDuplicateAction
		}
	}

	ordered := sortedSteps(steps)

	own := -1
	firstPending := -1
	for i, step := range ordered {
		if step.Status != model.ApprovalPending {
			continue
		}
		if firstPending < 0 {
			firstPending = i
		}
		if step.ApproverID == approverID && own < 0 {
			own = i
		}
	}
	if own < 0 {
		return nil, ErrNotAuthorizedApprover
	}
	// Sequential mode admits only the next unresolved chain entry; the
	// percentage / specific-approver modes let any pending member act.
	if sequentialOnly(expense) && own != firstPending {
		return nil, ErrNotAuthorizedApprover
	}

	out := &Outcome{StepSequence: ordered[own].Sequence}

	if decision == DecisionRejected {
		out.ExpenseStatus = model.ExpenseStatusRejected
		out.Finalized = true
		return out, nil
	}

	// Count approvals including the one being recorded.
	approved := 1
	pendingLeft := 0
	for i, step := range ordered {
		if i == own {
			continue
		}
		switch step.Status {
		case model.ApprovalApproved:
			approved++
		case model.ApprovalPending:
			pendingLeft++
		}
	}

	switch {
	case specificApproverMet(expense, approverID):
		out.ExpenseStatus = model.ExpenseStatusApproved
		out.Finalized = true
	case percentageMet(expense, approved, len(ordered)):
		out.ExpenseStatus = model.ExpenseStatusApproved
		out.Finalized = true
	case pendingLeft == 0:
		out.ExpenseStatus = model.ExpenseStatusApproved
		out.Finalized = true
	default:
		out.ExpenseStatus = model.ExpenseStatusPending
	}
	return out, nil
}

// CanAct reports whether approverID could currently record a decision on
// the expense. It mirrors Decide's preconditions and backs the "pending
// approvals for user" query, which is computed rather than stored.
func CanAct(expense *model.Expense, steps []model.ApprovalStep, actions []model.ApprovalAction, approverID uuid.UUID) bool {
	if expense.Status != model.ExpenseStatusPending {
		return false
	}
	for _, action := range actions {
		if action.ApproverID == approverID {
			return false
		}
	}

	ordered := sortedSteps(steps)
	for _, step := range ordered {
		if step.Status != model.ApprovalPending {
			continue
		}
		if step.ApproverID == approverID {
			return true
		}
		if sequentialOnly(expense) {
			// Someone earlier in the chain still has to act.
			return false
		}
	}
	return false
}

// NextApprover returns the approver expected to act next in chain order,
// or nil when every step is resolved.
func NextApprover(steps []model.ApprovalStep) *uuid.UUID {
	for _, step := range sortedSteps(steps) {
		if step.Status == model.ApprovalPending {
			id := step.ApproverID
			return &id
		}
	}
	return nil
}

func sortedSteps(steps []model.ApprovalStep) []model.ApprovalStep {
	ordered := make([]model.ApprovalStep, len(steps))
	copy(ordered, steps)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Sequence < ordered[j].Sequence })
	return ordered
}

func sequentialOnly(expense *model.Expense) bool {
	switch expense.RuleType {
	case model.RuleTypePercentage, model.RuleTypeSpecificApprover, model.RuleTypeHybrid:
		return false
	default:
		return true
	}
}

func specificApproverMet(expense *model.Expense, approverID uuid.UUID) bool {
	if expense.RuleType != model.RuleTypeSpecificApprover && expense.RuleType != model.RuleTypeHybrid {
		return false
	}
	return expense.SpecificApproverID != nil && *expense.SpecificApproverID == approverID
}

func percentageMet(expense *model.Expense, approved, chainLength int) bool {
	if expense.RuleType != model.RuleTypePercentage && expense.RuleType != model.RuleTypeHybrid {
		return false
	}
	if expense.RequiredPercentage == nil || chainLength == 0 {
		return false
	}
	// Integer cross-multiplication keeps the threshold compare exact.
	return approved*100 >= *expense.RequiredPercentage*chainLength
}
