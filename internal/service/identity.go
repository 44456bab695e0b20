package service

import "github.com/google/uuid"

// Identity is the authenticated caller, extracted from the JWT by the
// middleware and passed explicitly into every service call. There is no
// ambient "current user" state anywhere in the core.
type Identity struct {
	UserID    uuid.UUID
	CompanyID uuid.UUID
	Role      string
}

// Notifier publishes workflow events to interested collaborators (the
// websocket hub in this deployment), scoped to one company's clients.
// Implementations must not block.
type Notifier interface {
	Publish(companyID uuid.UUID, event string, payload interface{})
}

// NopNotifier discards events; used in tests and when no hub is wired.
type NopNotifier struct{}

func (NopNotifier) Publish(uuid.UUID, string, interface{}) {}
