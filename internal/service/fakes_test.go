package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"backend/internal/model"
	"backend/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// In-memory repository fakes. The fake transaction manager snapshots the
// store before fn and restores it on error, mirroring a rollback, so the
// atomicity assertions are meaningful.

type memStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*model.User
	company  map[uuid.UUID]*model.Company
	category map[uuid.UUID]*model.ExpenseCategory
	rules    map[uuid.UUID]*model.ApprovalRule
	expenses map[uuid.UUID]*model.Expense
	steps    []model.ApprovalStep
	actions  []model.ApprovalAction
	audits   []model.AuditLog
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[uuid.UUID]*model.User),
		company:  make(map[uuid.UUID]*model.Company),
		category: make(map[uuid.UUID]*model.ExpenseCategory),
		rules:    make(map[uuid.UUID]*model.ApprovalRule),
		expenses: make(map[uuid.UUID]*model.Expense),
	}
}

func (s *memStore) snapshot() *memStore {
	copyUsers := make(map[uuid.UUID]*model.User, len(s.users))
	for k, v := range s.users {
		u := *v
		copyUsers[k] = &u
	}
	copyExpenses := make(map[uuid.UUID]*model.Expense, len(s.expenses))
	for k, v := range s.expenses {
		e := *v
		copyExpenses[k] = &e
	}
	clone := &memStore{
		users:    copyUsers,
		company:  s.company,
		category: s.category,
		rules:    s.rules,
		expenses: copyExpenses,
		steps:    append([]model.ApprovalStep(nil), s.steps...),
		actions:  append([]model.ApprovalAction(nil), s.actions...),
		audits:   append([]model.AuditLog(nil), s.audits...),
	}
	return clone
}

func (s *memStore) restore(from *memStore) {
	s.users = from.users
	s.expenses = from.expenses
	s.steps = from.steps
	s.actions = from.actions
	s.audits = from.audits
}

type fakeTxManager struct {
	store *memStore
}

func (t *fakeTxManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	before := t.store.snapshot()
	if err := fn(ctx); err != nil {
		t.store.restore(before)
		return err
	}
	return nil
}

// --- user repo ---

type fakeUserRepo struct{ store *memStore }

func (r *fakeUserRepo) Create(_ context.Context, user *model.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	u := *user
	r.store.users[user.ID] = &u
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	user, ok := r.store.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	u := *user
	if company, ok := r.store.company[u.CompanyID]; ok {
		c := *company
		u.Company = &c
	}
	return &u, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, user := range r.store.users {
		if user.Email == email {
			u := *user
			if company, ok := r.store.company[u.CompanyID]; ok {
				c := *company
				u.Company = &c
			}
			return &u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) ListByCompany(_ context.Context, companyID uuid.UUID, activeOnly bool) ([]model.User, error) {
	var users []model.User
	for _, user := range r.store.users {
		if user.CompanyID != companyID {
			continue
		}
		if activeOnly && !user.IsActive {
			continue
		}
		users = append(users, *user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID.String() < users[j].ID.String() })
	return users, nil
}

func (r *fakeUserRepo) ListByManager(_ context.Context, managerID uuid.UUID) ([]model.User, error) {
	var users []model.User
	for _, user := range r.store.users {
		if user.ManagerID != nil && *user.ManagerID == managerID && user.IsActive {
			users = append(users, *user)
		}
	}
	return users, nil
}

func (r *fakeUserRepo) Update(_ context.Context, user *model.User) error {
	u := *user
	r.store.users[user.ID] = &u
	return nil
}

func (r *fakeUserRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	if user, ok := r.store.users[id]; ok {
		user.IsActive = false
	}
	return nil
}

// --- category repo ---

type fakeCategoryRepo struct{ store *memStore }

func (r *fakeCategoryRepo) Create(_ context.Context, category *model.ExpenseCategory) error {
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	c := *category
	r.store.category[category.ID] = &c
	return nil
}

func (r *fakeCategoryRepo) CreateBatch(ctx context.Context, categories []model.ExpenseCategory) error {
	for i := range categories {
		if err := r.Create(ctx, &categories[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *fakeCategoryRepo) GetByID(_ context.Context, id uuid.UUID) (*model.ExpenseCategory, error) {
	category, ok := r.store.category[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *category
	return &c, nil
}

func (r *fakeCategoryRepo) ListByCompany(_ context.Context, companyID uuid.UUID, activeOnly bool) ([]model.ExpenseCategory, error) {
	var categories []model.ExpenseCategory
	for _, category := range r.store.category {
		if category.CompanyID != companyID {
			continue
		}
		if activeOnly && !category.IsActive {
			continue
		}
		categories = append(categories, *category)
	}
	return categories, nil
}

func (r *fakeCategoryRepo) ExistsByName(_ context.Context, companyID uuid.UUID, name string) (bool, error) {
	for _, category := range r.store.category {
		if category.CompanyID == companyID && category.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeCategoryRepo) Update(_ context.Context, category *model.ExpenseCategory) error {
	c := *category
	r.store.category[category.ID] = &c
	return nil
}

func (r *fakeCategoryRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	if category, ok := r.store.category[id]; ok {
		category.IsActive = false
	}
	return nil
}

// --- rule repo ---

type fakeRuleRepo struct{ store *memStore }

func (r *fakeRuleRepo) Create(_ context.Context, rule *model.ApprovalRule) error {
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = time.Now().Add(time.Duration(len(r.store.rules)) * time.Millisecond)
	}
	clone := *rule
	r.store.rules[rule.ID] = &clone
	return nil
}

func (r *fakeRuleRepo) GetByID(_ context.Context, id uuid.UUID) (*model.ApprovalRule, error) {
	rule, ok := r.store.rules[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *rule
	return &clone, nil
}

func (r *fakeRuleRepo) ListByCompany(_ context.Context, companyID uuid.UUID, activeOnly bool) ([]model.ApprovalRule, error) {
	var rules []model.ApprovalRule
	for _, rule := range r.store.rules {
		if rule.CompanyID != companyID {
			continue
		}
		if activeOnly && !rule.IsActive {
			continue
		}
		rules = append(rules, *rule)
	}
	return rules, nil
}

func (r *fakeRuleRepo) FindActiveForAmount(_ context.Context, companyID uuid.UUID, amount decimal.Decimal) (*model.ApprovalRule, error) {
	var best *model.ApprovalRule
	for _, rule := range r.store.rules {
		if rule.CompanyID != companyID || !rule.IsActive {
			continue
		}
		if rule.MinAmount.GreaterThan(amount) {
			continue
		}
		if rule.MaxAmount != nil && rule.MaxAmount.LessThan(amount) {
			continue
		}
		switch {
		case best == nil || rule.MinAmount.GreaterThan(best.MinAmount):
			best = rule
		case rule.MinAmount.Equal(best.MinAmount):
			// Same tiebreak as the SQL ordering: oldest rule, then id.
			if rule.CreatedAt.Before(best.CreatedAt) ||
				(rule.CreatedAt.Equal(best.CreatedAt) && rule.ID.String() < best.ID.String()) {
				best = rule
			}
		}
	}
	if best == nil {
		return nil, nil
	}
	clone := *best
	return &clone, nil
}

func (r *fakeRuleRepo) Update(_ context.Context, rule *model.ApprovalRule) error {
	clone := *rule
	if existing, ok := r.store.rules[rule.ID]; ok {
		clone.Steps = existing.Steps
	}
	r.store.rules[rule.ID] = &clone
	return nil
}

func (r *fakeRuleRepo) ReplaceSteps(_ context.Context, ruleID uuid.UUID, steps []model.ApprovalRuleStep) error {
	if rule, ok := r.store.rules[ruleID]; ok {
		rule.Steps = append([]model.ApprovalRuleStep(nil), steps...)
	}
	return nil
}

func (r *fakeRuleRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	if rule, ok := r.store.rules[id]; ok {
		rule.IsActive = false
	}
	return nil
}

// --- expense repo ---

type fakeExpenseRepo struct {
	store     *memStore
	createErr error
}

func (r *fakeExpenseRepo) Create(_ context.Context, expense *model.Expense) error {
	if r.createErr != nil {
		return r.createErr
	}
	if expense.ID == uuid.Nil {
		expense.ID = uuid.New()
	}
	expense.CreatedAt = time.Now()
	clone := *expense
	r.store.expenses[expense.ID] = &clone
	return nil
}

func (r *fakeExpenseRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Expense, error) {
	expense, ok := r.store.expenses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := *expense
	if employee, ok := r.store.users[clone.EmployeeID]; ok {
		e := *employee
		clone.Employee = &e
	}
	if category, ok := r.store.category[clone.CategoryID]; ok {
		c := *category
		clone.Category = &c
	}
	return &clone, nil
}

func (r *fakeExpenseRepo) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Expense, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeExpenseRepo) ListByCompany(_ context.Context, companyID uuid.UUID, filter repository.ExpenseFilter) ([]model.Expense, int64, error) {
	var expenses []model.Expense
	for _, expense := range r.store.expenses {
		if expense.CompanyID != companyID {
			continue
		}
		if filter.EmployeeID != nil && expense.EmployeeID != *filter.EmployeeID {
			continue
		}
		if len(filter.EmployeeIDs) > 0 {
			found := false
			for _, id := range filter.EmployeeIDs {
				if expense.EmployeeID == id {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		if filter.Status != "" && expense.Status != filter.Status {
			continue
		}
		if filter.CategoryID != nil && expense.CategoryID != *filter.CategoryID {
			continue
		}
		expenses = append(expenses, *expense)
	}
	return expenses, int64(len(expenses)), nil
}

func (r *fakeExpenseRepo) UpdateStatus(_ context.Context, id uuid.UUID, status string) error {
	expense, ok := r.store.expenses[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	expense.Status = status
	return nil
}

// --- approval repo ---

type fakeApprovalRepo struct {
	store          *memStore
	createStepsErr error
}

func (r *fakeApprovalRepo) CreateSteps(_ context.Context, steps []model.ApprovalStep) error {
	if r.createStepsErr != nil {
		return r.createStepsErr
	}
	for i := range steps {
		if steps[i].ID == uuid.Nil {
			steps[i].ID = uuid.New()
		}
		steps[i].CreatedAt = time.Now()
	}
	r.store.steps = append(r.store.steps, steps...)
	return nil
}

func (r *fakeApprovalRepo) ListSteps(_ context.Context, expenseID uuid.UUID) ([]model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	for _, step := range r.store.steps {
		if step.ExpenseID == expenseID {
			steps = append(steps, step)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].Sequence < steps[j].Sequence })
	return steps, nil
}

func (r *fakeApprovalRepo) UpdateStepStatus(_ context.Context, expenseID uuid.UUID, sequence int, status string) error {
	for i := range r.store.steps {
		if r.store.steps[i].ExpenseID == expenseID && r.store.steps[i].Sequence == sequence {
			r.store.steps[i].Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeApprovalRepo) SkipPendingSteps(_ context.Context, expenseID uuid.UUID) error {
	for i := range r.store.steps {
		if r.store.steps[i].ExpenseID == expenseID && r.store.steps[i].Status == model.ApprovalPending {
			r.store.steps[i].Status = model.ApprovalSkipped
		}
	}
	return nil
}

func (r *fakeApprovalRepo) ListPendingStepsByApprover(_ context.Context, approverID uuid.UUID) ([]model.ApprovalStep, error) {
	var steps []model.ApprovalStep
	for _, step := range r.store.steps {
		if step.ApproverID != approverID || step.Status != model.ApprovalPending {
			continue
		}
		expense, ok := r.store.expenses[step.ExpenseID]
		if !ok || expense.Status != model.ExpenseStatusPending {
			continue
		}
		clone := *expense
		if employee, ok := r.store.users[clone.EmployeeID]; ok {
			e := *employee
			clone.Employee = &e
		}
		if category, ok := r.store.category[clone.CategoryID]; ok {
			c := *category
			clone.Category = &c
		}
		step.Expense = &clone
		steps = append(steps, step)
	}
	return steps, nil
}

func (r *fakeApprovalRepo) CreateAction(_ context.Context, action *model.ApprovalAction) error {
	for _, existing := range r.store.actions {
		if existing.ExpenseID == action.ExpenseID && existing.ApproverID == action.ApproverID {
			return errors.New("duplicate key value violates unique constraint")
		}
	}
	if action.ID == uuid.Nil {
		action.ID = uuid.New()
	}
	action.CreatedAt = time.Now()
	r.store.actions = append(r.store.actions, *action)
	return nil
}

func (r *fakeApprovalRepo) ListActions(_ context.Context, expenseID uuid.UUID) ([]model.ApprovalAction, error) {
	var actions []model.ApprovalAction
	for _, action := range r.store.actions {
		if action.ExpenseID == expenseID {
			actions = append(actions, action)
		}
	}
	return actions, nil
}

func (r *fakeApprovalRepo) ListActionsByApprover(_ context.Context, approverID uuid.UUID, limit int) ([]model.ApprovalAction, error) {
	var actions []model.ApprovalAction
	for _, action := range r.store.actions {
		if action.ApproverID == approverID {
			actions = append(actions, action)
		}
	}
	if limit > 0 && len(actions) > limit {
		actions = actions[:limit]
	}
	return actions, nil
}

// --- audit repo ---

type fakeAuditRepo struct {
	store  *memStore
	logErr error
}

func (r *fakeAuditRepo) Log(_ context.Context, entry *model.AuditLog) error {
	if r.logErr != nil {
		return r.logErr
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	r.store.audits = append(r.store.audits, *entry)
	return nil
}

func (r *fakeAuditRepo) ListByCompany(_ context.Context, companyID uuid.UUID, page, limit int) ([]model.AuditLog, int64, error) {
	var logs []model.AuditLog
	for _, entry := range r.store.audits {
		if entry.CompanyID == companyID {
			logs = append(logs, entry)
		}
	}
	return logs, int64(len(logs)), nil
}

// --- company repo ---

type fakeCompanyRepo struct{ store *memStore }

func (r *fakeCompanyRepo) Create(_ context.Context, company *model.Company) error {
	if company.ID == uuid.Nil {
		company.ID = uuid.New()
	}
	c := *company
	r.store.company[company.ID] = &c
	return nil
}

func (r *fakeCompanyRepo) GetByID(_ context.Context, id uuid.UUID) (*model.Company, error) {
	company, ok := r.store.company[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	c := *company
	return &c, nil
}

func (r *fakeCompanyRepo) Update(_ context.Context, company *model.Company) error {
	c := *company
	r.store.company[company.ID] = &c
	return nil
}

func (r *fakeCompanyRepo) CountUsersByRole(_ context.Context, companyID uuid.UUID, role string) (int64, error) {
	var count int64
	for _, user := range r.store.users {
		if user.CompanyID != companyID || !user.IsActive {
			continue
		}
		if role != "" && user.Role != role {
			continue
		}
		count++
	}
	return count, nil
}

// --- rate client ---

type fakeRateClient struct {
	rate  decimal.Decimal
	err   error
	calls int
}

func (c *fakeRateClient) GetRate(_ context.Context, from, to string) (decimal.Decimal, error) {
	c.calls++
	if c.err != nil {
		return decimal.Zero, c.err
	}
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	return c.rate, nil
}

// --- notifier ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(_ uuid.UUID, event string, _ interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}
