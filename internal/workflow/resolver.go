package workflow

import (
	"sort"

	"backend/internal/model"

	"github.com/google/uuid"
)

// DefaultMaxManagerDepth caps upward manager-chain walks. The reporting
// relation is supposed to be a forest, but a capped loop keeps a bad
// assignment from looping forever.
const DefaultMaxManagerDepth = 16

// Resolver computes the ordered approver chain for a submitted expense.
// It is pure over (submitter, company user set, rule): no clock, no
// database, so resolving twice with unchanged inputs yields the same
// ordered list.
type Resolver struct {
	MaxManagerDepth int
}

func NewResolver() *Resolver {
	return &Resolver{MaxManagerDepth: DefaultMaxManagerDepth}
}

// Resolve binds rule steps to concrete approvers. users must contain
// every active user of the submitter's company, keyed by id.
//
// When rule is nil, or the rule requires manager approval, the chain
// starts at the submitter's manager. Role steps walk upward from the
// previously bound approver until the role matches; user steps bind
// directly. The first unbindable step aborts with ErrIncompleteChain.
func (r *Resolver) Resolve(submitter *model.User, users map[uuid.UUID]*model.User, rule *model.ApprovalRule) ([]uuid.UUID, error) {
	maxDepth := r.MaxManagerDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxManagerDepth
	}

	var chain []uuid.UUID
	seen := make(map[uuid.UUID]bool)
	appendApprover := func(id uuid.UUID) {
		if !seen[id] {
			seen[id] = true
			chain = append(chain, id)
		}
	}

	cursor := submitter

	managerFirst := rule == nil || rule.RequiresManagerApproval
	if managerFirst {
		if submitter.ManagerID == nil {
			if rule == nil || len(rule.Steps) == 0 {
				return nil, ErrNoApproverAvailable
			}
			// Manager approval is required by configuration but the
			// submitter has none assigned.
			return nil, ErrIncompleteChain
		}
		manager := users[*submitter.ManagerID]
		if manager == nil || !manager.IsActive {
			return nil, ErrIncompleteChain
		}
		appendApprover(manager.ID)
		cursor = manager
	}

	if rule != nil {
		steps := make([]model.ApprovalRuleStep, len(rule.Steps))
		copy(steps, rule.Steps)
		sort.Slice(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })

		for _, step := range steps {
			var approver *model.User
			if step.ApproverID != nil {
				approver = users[*step.ApproverID]
				if approver == nil || !approver.IsActive {
					return nil, ErrIncompleteChain
				}
			} else {
				approver = walkToRole(cursor, users, step.Role, maxDepth)
				if approver == nil {
					return nil, ErrIncompleteChain
				}
			}
			appendApprover(approver.ID)
			cursor = approver
		}
	}

	if len(chain) == 0 {
		return nil, ErrNoApproverAvailable
	}
	return chain, nil
}

// walkToRole climbs the manager chain starting above from, returning the
// first active user holding role. The walk is an explicit adjacency
// lookup bounded by maxDepth, never pointer recursion.
func walkToRole(from *model.User, users map[uuid.UUID]*model.User, role string, maxDepth int) *model.User {
	cursor := from
	for depth := 0; depth < maxDepth; depth++ {
		if cursor.ManagerID == nil {
			return nil
		}
		next := users[*cursor.ManagerID]
		if next == nil {
			return nil
		}
		if next.IsActive && next.Role == role {
			return next
		}
		cursor = next
	}
	return nil
}
