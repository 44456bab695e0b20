package service

import (
	"context"
	"testing"

	"backend/internal/model"
	"backend/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func (e *testEnv) userService() UserService {
	return NewUserService(e.userRepo, e.auditRepo, e.txManager, zap.NewNop())
}

func TestUserCreate(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()

	managerID := env.manager.ID.String()
	created, err := svc.Create(ctx, env.identity(env.admin), CreateUserRequest{
		Email:     "New.Hire@acme.test",
		Password:  "longenough",
		FirstName: "New",
		LastName:  "Hire",
		Role:      model.RoleEmployee,
		ManagerID: &managerID,
	})
	require.NoError(t, err)

	assert.Equal(t, "new.hire@acme.test", created.Email)
	require.NotNil(t, created.ManagerID)
	assert.Equal(t, managerID, *created.ManagerID)
	assert.True(t, created.IsActive)
}

func TestUserCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()
	admin := env.identity(env.admin)

	base := func() CreateUserRequest {
		return CreateUserRequest{
			Email:     "hire@acme.test",
			Password:  "longenough",
			FirstName: "New",
			LastName:  "Hire",
			Role:      model.RoleEmployee,
		}
	}

	req := base()
	req.Role = "supervisor"
	_, err := svc.Create(ctx, admin, req)
	assert.Equal(t, apperror.CodeValidation, apperror.From(err).Code)

	req = base()
	req.Email = env.employee.Email
	_, err = svc.Create(ctx, admin, req)
	assert.Equal(t, apperror.CodeValidation, apperror.From(err).Code)

	// An employee cannot be assigned as a manager.
	req = base()
	employeeID := env.employee.ID.String()
	req.ManagerID = &employeeID
	_, err = svc.Create(ctx, admin, req)
	assert.Equal(t, apperror.CodeValidation, apperror.From(err).Code)

	_, err = svc.Create(ctx, env.identity(env.manager), base())
	assert.Equal(t, apperror.CodeForbidden, apperror.From(err).Code)
}

func TestUserListScopesByRole(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()

	all, err := svc.List(ctx, env.identity(env.admin))
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Manager sees themselves plus their direct report.
	team, err := svc.List(ctx, env.identity(env.manager))
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.Equal(t, env.manager.ID.String(), team[0].ID)

	own, err := svc.List(ctx, env.identity(env.employee))
	require.NoError(t, err)
	require.Len(t, own, 1)
	assert.Equal(t, env.employee.ID.String(), own[0].ID)
}

func TestUserListManagers(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()

	managers, err := svc.ListManagers(ctx, env.identity(env.admin))
	require.NoError(t, err)
	require.Len(t, managers, 2)
	for _, m := range managers {
		assert.Contains(t, []string{model.RoleAdmin, model.RoleManager}, m.Role)
	}

	// Deactivated approvers drop out of the list.
	require.NoError(t, env.userRepo.Deactivate(ctx, env.manager.ID))
	managers, err = svc.ListManagers(ctx, env.identity(env.admin))
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, env.admin.ID.String(), managers[0].ID)

	_, err = svc.ListManagers(ctx, env.identity(env.manager))
	require.Error(t, err)
	assert.Equal(t, apperror.CodeForbidden, apperror.From(err).Code)
}

func TestUserUpdateRejectsReportingCycle(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()
	admin := env.identity(env.admin)

	// manager reports to admin. Pointing the admin at the manager would
	// close the loop.
	managerID := env.manager.ID.String()
	_, err := svc.Update(ctx, admin, env.admin.ID.String(), UpdateUserRequest{ManagerID: &managerID})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.From(err).Code)

	selfID := env.manager.ID.String()
	_, err = svc.Update(ctx, admin, selfID, UpdateUserRequest{ManagerID: &selfID})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.From(err).Code)
}

func TestUserUpdatePartialFields(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()

	newName := "Renamed"
	updated, err := svc.Update(ctx, env.identity(env.admin), env.employee.ID.String(), UpdateUserRequest{FirstName: &newName})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.FirstName)
	// Untouched fields survive.
	assert.Equal(t, env.employee.Email, updated.Email)
	require.NotNil(t, updated.ManagerID)

	// An empty manager_id clears the assignment.
	empty := ""
	updated, err = svc.Update(ctx, env.identity(env.admin), env.employee.ID.String(), UpdateUserRequest{ManagerID: &empty})
	require.NoError(t, err)
	assert.Nil(t, updated.ManagerID)
}

func TestUserDeactivate(t *testing.T) {
	env := newTestEnv(t)
	svc := env.userService()
	ctx := context.Background()
	admin := env.identity(env.admin)

	err := svc.Deactivate(ctx, admin, env.admin.ID.String())
	require.Error(t, err)
	assert.Equal(t, apperror.CodeValidation, apperror.From(err).Code)

	require.NoError(t, svc.Deactivate(ctx, admin, env.employee.ID.String()))
	stored, err := env.userRepo.GetByID(ctx, env.employee.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsActive)

	err = svc.Deactivate(ctx, env.identity(env.manager), env.employee.ID.String())
	assert.Equal(t, apperror.CodeForbidden, apperror.From(err).Code)
}
