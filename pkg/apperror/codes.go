package apperror

const (
	// Caller errors (4xx)
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeForbidden    = "FORBIDDEN"
	CodeNotFound     = "NOT_FOUND"

	// Workflow configuration errors, surfaced to admins
	CodeNoApproverAvailable = "NO_APPROVER_AVAILABLE"
	CodeIncompleteChain     = "INCOMPLETE_CHAIN"

	// Workflow ordering / concurrency conflicts
	CodeNotAuthorizedApprover = "NOT_AUTHORIZED_APPROVER"
	CodeDuplicateAction       = "DUPLICATE_ACTION"
	CodeAlreadyFinalized      = "ALREADY_FINALIZED"

	// External dependency failures, retryable by the caller
	CodeDependencyUnavailable = "DEPENDENCY_UNAVAILABLE"

	CodeInternal = "INTERNAL_ERROR"
)
