package workflow

import "errors"

var (
	// ErrNoApproverAvailable is returned when neither a manager nor any
	// rule step can produce a chain for the submitter. Submission must
	// fail before anything is persisted.
	ErrNoApproverAvailable = errors.New("no approver available for submitter")

	// ErrIncompleteChain is returned when a rule step cannot be bound to
	// a concrete approver (manager chain exhausted, inactive user). It is
	// a configuration error for the company admin, never silently dropped.
	ErrIncompleteChain = errors.New("approval chain could not be fully resolved")

	// ErrNotAuthorizedApprover is returned when the acting user is not a
	// chain member, or is acting out of turn in sequential mode.
	ErrNotAuthorizedApprover = errors.New("user is not the expected approver")

	// ErrDuplicateAction is returned when an approver who already acted
	// on the expense tries to act again.
	ErrDuplicateAction = errors.New("approver has already acted on this expense")

	// ErrAlreadyFinalized is returned for any decision attempt on a
	// non-pending expense. The attempt has no side effects.
	ErrAlreadyFinalized = errors.New("expense is already finalized")
)
