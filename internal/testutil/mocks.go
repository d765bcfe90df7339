package testutil

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/websocket"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MockPeriodRepository is a thread-safe in-memory implementation of domain.PeriodRepository.
// Like the Postgres schema it allows at most one active period per owner and kind.
type MockPeriodRepository struct {
	mu      sync.Mutex
	Periods map[uuid.UUID]*domain.Period

	// UniqueActive mirrors the partial unique index; disable it to reproduce the unguarded race
	UniqueActive bool

	CreateFn         func(ctx context.Context, period *domain.Period) (*domain.Period, error)
	GetActiveFn      func(ctx context.Context, ownerID uuid.UUID, kind domain.PeriodKind) (*domain.Period, error)
	AfterGetActiveFn func()
	CreateCalls      int
}

// NewMockPeriodRepository creates a new MockPeriodRepository
func NewMockPeriodRepository() *MockPeriodRepository {
	return &MockPeriodRepository{
		Periods:      make(map[uuid.UUID]*domain.Period),
		UniqueActive: true,
	}
}

// AddPeriod adds a period to the mock repository (helper for tests)
func (m *MockPeriodRepository) AddPeriod(period *domain.Period) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if period.ID == uuid.Nil {
		period.ID = uuid.New()
	}
	if period.RolloverStatus == "" {
		period.RolloverStatus = domain.RolloverStatusNone
	}
	m.Periods[period.ID] = clonePeriod(period)
}

// Get returns a copy of the stored period or nil (helper for tests)
func (m *MockPeriodRepository) Get(id uuid.UUID) *domain.Period {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Periods[id]; ok {
		return clonePeriod(p)
	}
	return nil
}

// CountActive returns how many active periods exist for the owner and kind (helper for tests)
func (m *MockPeriodRepository) CountActive(ownerID uuid.UUID, kind domain.PeriodKind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, p := range m.Periods {
		if p.OwnerID == ownerID && p.Kind == kind && p.State == domain.PeriodStateActive {
			count++
		}
	}
	return count
}

// Create inserts a new period
func (m *MockPeriodRepository) Create(ctx context.Context, period *domain.Period) (*domain.Period, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, period)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++

	if m.UniqueActive && period.State == domain.PeriodStateActive {
		for _, p := range m.Periods {
			if p.OwnerID == period.OwnerID && p.Kind == period.Kind && p.State == domain.PeriodStateActive {
				return nil, domain.ErrActivePeriodExists
			}
		}
	}

	created := clonePeriod(period)
	created.ID = uuid.New()
	if created.RolloverStatus == "" {
		created.RolloverStatus = domain.RolloverStatusNone
	}
	now := time.Now()
	created.CreatedAt = now
	created.UpdatedAt = now
	m.Periods[created.ID] = created
	return clonePeriod(created), nil
}

// GetByID retrieves a period scoped to its owner
func (m *MockPeriodRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.Periods[id]; ok && p.OwnerID == ownerID {
		return clonePeriod(p), nil
	}
	return nil, domain.ErrPeriodNotFound
}

// GetActive retrieves the active period of a kind
func (m *MockPeriodRepository) GetActive(ctx context.Context, ownerID uuid.UUID, kind domain.PeriodKind) (*domain.Period, error) {
	if m.GetActiveFn != nil {
		return m.GetActiveFn(ctx, ownerID, kind)
	}
	p, err := m.getActive(ownerID, kind)
	if m.AfterGetActiveFn != nil {
		m.AfterGetActiveFn()
	}
	return p, err
}

func (m *MockPeriodRepository) getActive(ownerID uuid.UUID, kind domain.PeriodKind) (*domain.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.Periods {
		if p.OwnerID == ownerID && p.Kind == kind && p.State == domain.PeriodStateActive {
			return clonePeriod(p), nil
		}
	}
	return nil, domain.ErrPeriodNotFound
}

// GetMostRecentlyClosed retrieves the closed period with the latest end date
func (m *MockPeriodRepository) GetMostRecentlyClosed(ctx context.Context, ownerID uuid.UUID, kind domain.PeriodKind, before *time.Time) (*domain.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *domain.Period
	for _, p := range m.Periods {
		if p.OwnerID != ownerID || p.Kind != kind || p.State != domain.PeriodStateClosed {
			continue
		}
		if before != nil && !p.EndDate.Before(*before) {
			continue
		}
		if latest == nil || p.EndDate.After(latest.EndDate) {
			latest = p
		}
	}
	if latest == nil {
		return nil, domain.ErrPeriodNotFound
	}
	return clonePeriod(latest), nil
}

// List retrieves an owner's periods, newest first
func (m *MockPeriodRepository) List(ctx context.Context, ownerID uuid.UUID, filter domain.PeriodFilter) ([]*domain.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Period, 0)
	for _, p := range m.Periods {
		if p.OwnerID != ownerID {
			continue
		}
		if filter.Kind != nil && p.Kind != *filter.Kind {
			continue
		}
		if filter.State != nil && p.State != *filter.State {
			continue
		}
		result = append(result, clonePeriod(p))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].StartDate.After(result[j].StartDate)
	})
	return result, nil
}

// ListExpiredActive retrieves active periods past their end date across all owners
func (m *MockPeriodRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*domain.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Period, 0)
	for _, p := range m.Periods {
		if p.State == domain.PeriodStateActive && p.EndDate.Before(now) {
			result = append(result, clonePeriod(p))
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].EndDate.Before(result[j].EndDate)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Update applies a field-level patch
func (m *MockPeriodRepository) Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.PeriodPatch) (*domain.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Periods[id]
	if !ok || p.OwnerID != ownerID {
		return nil, domain.ErrPeriodNotFound
	}
	if patch.Salary != nil {
		p.Salary = *patch.Salary
	}
	if patch.Goals != nil {
		p.Goals = *patch.Goals
	}
	if patch.State != nil {
		p.State = *patch.State
	}
	if patch.TotalSpent != nil {
		p.TotalSpent = *patch.TotalSpent
	}
	p.UpdatedAt = time.Now()
	return clonePeriod(p), nil
}

// Close marks a period closed if it is not closed yet
func (m *MockPeriodRepository) Close(ctx context.Context, ownerID, id uuid.UUID, endDate *time.Time) (*domain.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Periods[id]
	if !ok || p.OwnerID != ownerID || p.State == domain.PeriodStateClosed {
		return nil, domain.ErrPeriodNotFound
	}
	if endDate != nil {
		p.EndDate = *endDate
	}
	p.State = domain.PeriodStateClosed
	p.UpdatedAt = time.Now()
	return clonePeriod(p), nil
}

// UpdateBounds overwrites start and end dates
func (m *MockPeriodRepository) UpdateBounds(ctx context.Context, ownerID, id uuid.UUID, startDate, endDate time.Time) (*domain.Period, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Periods[id]
	if !ok || p.OwnerID != ownerID {
		return nil, domain.ErrPeriodNotFound
	}
	p.StartDate = startDate
	p.EndDate = endDate
	p.UpdatedAt = time.Now()
	return clonePeriod(p), nil
}

// SetRolloverStatus records rollover progress
func (m *MockPeriodRepository) SetRolloverStatus(ctx context.Context, ownerID, id uuid.UUID, status domain.RolloverStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Periods[id]
	if !ok || p.OwnerID != ownerID {
		return domain.ErrPeriodNotFound
	}
	p.RolloverStatus = status
	return nil
}

// Delete removes a period
func (m *MockPeriodRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.Periods[id]
	if !ok || p.OwnerID != ownerID {
		return domain.ErrPeriodNotFound
	}
	delete(m.Periods, id)
	return nil
}

func clonePeriod(p *domain.Period) *domain.Period {
	c := *p
	if p.RolloverSourceID != nil {
		id := *p.RolloverSourceID
		c.RolloverSourceID = &id
	}
	return &c
}

// MockExpenseRepository is a thread-safe in-memory implementation of domain.ExpenseRepository
type MockExpenseRepository struct {
	mu       sync.Mutex
	Expenses map[uuid.UUID]*domain.Expense
	order    []uuid.UUID

	CreateFn    func(ctx context.Context, expense *domain.Expense) (*domain.Expense, error)
	CreateCalls int
}

// NewMockExpenseRepository creates a new MockExpenseRepository
func NewMockExpenseRepository() *MockExpenseRepository {
	return &MockExpenseRepository{
		Expenses: make(map[uuid.UUID]*domain.Expense),
	}
}

// AddExpense adds an expense to the mock repository (helper for tests)
func (m *MockExpenseRepository) AddExpense(expense *domain.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if expense.ID == uuid.Nil {
		expense.ID = uuid.New()
	}
	m.insert(expense)
}

// Create inserts an expense
func (m *MockExpenseRepository) Create(ctx context.Context, expense *domain.Expense) (*domain.Expense, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, expense)
	}
	return m.CreateDirect(expense)
}

// CreateDirect inserts without consulting CreateFn (lets CreateFn wrap the default behaviour)
func (m *MockExpenseRepository) CreateDirect(expense *domain.Expense) (*domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++
	if expense.SourceEntryID != nil {
		for _, e := range m.Expenses {
			if e.PeriodID == expense.PeriodID && e.SourceEntryID != nil && *e.SourceEntryID == *expense.SourceEntryID {
				return nil, domain.ErrEntryAlreadyRolled
			}
		}
	}
	if expense.TemplateID != nil {
		for _, e := range m.Expenses {
			if e.PeriodID == expense.PeriodID && e.TemplateID != nil && *e.TemplateID == *expense.TemplateID {
				return nil, domain.ErrTemplateAlreadyApplied
			}
		}
	}
	created := *expense
	created.ID = uuid.New()
	now := time.Now()
	if created.RecordedAt.IsZero() {
		created.RecordedAt = now
	}
	created.CreatedAt = now
	created.UpdatedAt = now
	m.insert(&created)
	c := created
	return &c, nil
}

func (m *MockExpenseRepository) insert(expense *domain.Expense) {
	if _, exists := m.Expenses[expense.ID]; !exists {
		m.order = append(m.order, expense.ID)
	}
	c := *expense
	m.Expenses[expense.ID] = &c
}

// GetByID retrieves an expense scoped to its owner
func (m *MockExpenseRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.Expenses[id]; ok && e.OwnerID == ownerID {
		c := *e
		return &c, nil
	}
	return nil, domain.ErrExpenseNotFound
}

// ListByPeriod lists a period's expenses in insertion order
func (m *MockExpenseRepository) ListByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, filter domain.ExpenseFilter) ([]*domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Expense, 0)
	for _, id := range m.order {
		e, ok := m.Expenses[id]
		if !ok || e.OwnerID != ownerID || e.PeriodID != periodID {
			continue
		}
		if filter.Recurrence != nil && e.Recurrence() != *filter.Recurrence {
			continue
		}
		if filter.CategoryID != nil && e.CategoryID != *filter.CategoryID {
			continue
		}
		c := *e
		result = append(result, &c)
	}
	return result, nil
}

// Update applies a patch to the mutable fields
func (m *MockExpenseRepository) Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.EntryPatch) (*domain.Expense, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Expenses[id]
	if !ok || e.OwnerID != ownerID {
		return nil, domain.ErrExpenseNotFound
	}
	if patch.Name != nil {
		e.Name = *patch.Name
	}
	if patch.Amount != nil {
		e.Amount = *patch.Amount
	}
	if patch.Notes != nil {
		notes := *patch.Notes
		e.Notes = &notes
	}
	e.UpdatedAt = time.Now()
	c := *e
	return &c, nil
}

// Delete removes an expense
func (m *MockExpenseRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.Expenses[id]
	if !ok || e.OwnerID != ownerID {
		return domain.ErrExpenseNotFound
	}
	delete(m.Expenses, id)
	return nil
}

// SumByPeriod sums amounts in a period
func (m *MockExpenseRepository) SumByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, categoryID *uuid.UUID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, e := range m.Expenses {
		if e.OwnerID != ownerID || e.PeriodID != periodID {
			continue
		}
		if categoryID != nil && e.CategoryID != *categoryID {
			continue
		}
		total = total.Add(e.Amount)
	}
	return total, nil
}

// MockContributionRepository is a thread-safe in-memory implementation of domain.ContributionRepository
type MockContributionRepository struct {
	mu            sync.Mutex
	Contributions map[uuid.UUID]*domain.Contribution
	order         []uuid.UUID

	CreateFn func(ctx context.Context, contribution *domain.Contribution) (*domain.Contribution, error)
}

// NewMockContributionRepository creates a new MockContributionRepository
func NewMockContributionRepository() *MockContributionRepository {
	return &MockContributionRepository{
		Contributions: make(map[uuid.UUID]*domain.Contribution),
	}
}

// AddContribution adds a contribution to the mock repository (helper for tests)
func (m *MockContributionRepository) AddContribution(contribution *domain.Contribution) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if contribution.ID == uuid.Nil {
		contribution.ID = uuid.New()
	}
	m.insert(contribution)
}

func (m *MockContributionRepository) insert(contribution *domain.Contribution) {
	if _, exists := m.Contributions[contribution.ID]; !exists {
		m.order = append(m.order, contribution.ID)
	}
	c := *contribution
	m.Contributions[contribution.ID] = &c
}

// Create inserts a contribution
func (m *MockContributionRepository) Create(ctx context.Context, contribution *domain.Contribution) (*domain.Contribution, error) {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, contribution)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if contribution.SourceEntryID != nil {
		for _, c := range m.Contributions {
			if c.PeriodID == contribution.PeriodID && c.SourceEntryID != nil && *c.SourceEntryID == *contribution.SourceEntryID {
				return nil, domain.ErrEntryAlreadyRolled
			}
		}
	}
	created := *contribution
	created.ID = uuid.New()
	now := time.Now()
	if created.RecordedAt.IsZero() {
		created.RecordedAt = now
	}
	created.CreatedAt = now
	created.UpdatedAt = now
	m.insert(&created)
	c := created
	return &c, nil
}

// GetByID retrieves a contribution scoped to its owner
func (m *MockContributionRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.Contributions[id]; ok && c.OwnerID == ownerID {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrContributionNotFound
}

// ListByPeriod lists a period's contributions in insertion order
func (m *MockContributionRepository) ListByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, filter domain.ContributionFilter) ([]*domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.Contribution, 0)
	for _, id := range m.order {
		c, ok := m.Contributions[id]
		if !ok || c.OwnerID != ownerID || c.PeriodID != periodID {
			continue
		}
		if filter.IsFixed != nil && c.IsFixed != *filter.IsFixed {
			continue
		}
		if filter.CategoryID != nil && c.CategoryID != *filter.CategoryID {
			continue
		}
		cp := *c
		result = append(result, &cp)
	}
	return result, nil
}

// Update applies a patch to the mutable fields
func (m *MockContributionRepository) Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.EntryPatch) (*domain.Contribution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Contributions[id]
	if !ok || c.OwnerID != ownerID {
		return nil, domain.ErrContributionNotFound
	}
	if patch.Name != nil {
		c.Name = *patch.Name
	}
	if patch.Amount != nil {
		c.Amount = *patch.Amount
	}
	if patch.Notes != nil {
		notes := *patch.Notes
		c.Notes = &notes
	}
	c.UpdatedAt = time.Now()
	cp := *c
	return &cp, nil
}

// Delete removes a contribution
func (m *MockContributionRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.Contributions[id]
	if !ok || c.OwnerID != ownerID {
		return domain.ErrContributionNotFound
	}
	delete(m.Contributions, id)
	return nil
}

// SumByPeriod sums amounts in a period
func (m *MockContributionRepository) SumByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, categoryID *uuid.UUID) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := decimal.Zero
	for _, c := range m.Contributions {
		if c.OwnerID != ownerID || c.PeriodID != periodID {
			continue
		}
		if categoryID != nil && c.CategoryID != *categoryID {
			continue
		}
		total = total.Add(c.Amount)
	}
	return total, nil
}

// MockCategoryRepository is a thread-safe in-memory implementation of domain.CategoryRepository
type MockCategoryRepository struct {
	mu         sync.Mutex
	Categories map[uuid.UUID]*domain.Category
}

// NewMockCategoryRepository creates a new MockCategoryRepository
func NewMockCategoryRepository() *MockCategoryRepository {
	return &MockCategoryRepository{
		Categories: make(map[uuid.UUID]*domain.Category),
	}
}

// AddCategory adds a category to the mock repository (helper for tests)
func (m *MockCategoryRepository) AddCategory(category *domain.Category) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if category.ID == uuid.Nil {
		category.ID = uuid.New()
	}
	c := *category
	m.Categories[category.ID] = &c
}

// Create inserts a category, rejecting a duplicate slug per owner
func (m *MockCategoryRepository) Create(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.Categories {
		if c.OwnerID == category.OwnerID && c.Slug == category.Slug {
			return nil, domain.ErrAlreadyExists
		}
	}
	created := *category
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.Categories[created.ID] = &created
	c := created
	return &c, nil
}

// GetByID retrieves a category scoped to its owner
func (m *MockCategoryRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.Categories[id]; ok && c.OwnerID == ownerID {
		cp := *c
		return &cp, nil
	}
	return nil, domain.ErrCategoryNotFound
}

// ListByOwner lists an owner's categories in system order
func (m *MockCategoryRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Category, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rank := make(map[domain.CategorySlug]int, len(domain.DefaultCategories))
	for i, d := range domain.DefaultCategories {
		rank[d.Slug] = i
	}
	result := make([]*domain.Category, 0)
	for _, c := range m.Categories {
		if c.OwnerID == ownerID {
			cp := *c
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return rank[result[i].Slug] < rank[result[j].Slug]
	})
	return result, nil
}

// SeedCategories provisions the four system categories for an owner (helper for tests)
func (m *MockCategoryRepository) SeedCategories(ownerID uuid.UUID) domain.FixedCategories {
	var fixed domain.FixedCategories
	for _, d := range domain.DefaultCategories {
		c := &domain.Category{
			ID:          uuid.New(),
			OwnerID:     ownerID,
			Slug:        d.Slug,
			Name:        d.Name,
			HasGoal:     d.HasGoal,
			Description: d.Description,
		}
		m.AddCategory(c)
		switch d.Slug {
		case domain.CategorySavings:
			fixed.Savings = c.ID
		case domain.CategoryRent:
			fixed.Rent = c.ID
		case domain.CategoryCredit:
			fixed.Credit = c.ID
		case domain.CategoryLiquidity:
			fixed.Liquidity = c.ID
		}
	}
	return fixed
}

// MockTemplateRepository is a thread-safe in-memory implementation of domain.TemplateRepository
type MockTemplateRepository struct {
	mu        sync.Mutex
	Templates map[uuid.UUID]*domain.ExpenseTemplate

	ListFn func(ctx context.Context, ownerID uuid.UUID, filter domain.TemplateFilter) ([]*domain.ExpenseTemplate, error)
}

// NewMockTemplateRepository creates a new MockTemplateRepository
func NewMockTemplateRepository() *MockTemplateRepository {
	return &MockTemplateRepository{
		Templates: make(map[uuid.UUID]*domain.ExpenseTemplate),
	}
}

// AddTemplate adds a template to the mock repository (helper for tests)
func (m *MockTemplateRepository) AddTemplate(template *domain.ExpenseTemplate) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}
	c := *template
	m.Templates[template.ID] = &c
}

// Create inserts a template
func (m *MockTemplateRepository) Create(ctx context.Context, template *domain.ExpenseTemplate) (*domain.ExpenseTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	created := *template
	created.ID = uuid.New()
	created.CreatedAt = time.Now()
	created.UpdatedAt = created.CreatedAt
	m.Templates[created.ID] = &created
	c := created
	return &c, nil
}

// GetByID retrieves a template scoped to its owner
func (m *MockTemplateRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.ExpenseTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.Templates[id]; ok && t.OwnerID == ownerID {
		c := *t
		return &c, nil
	}
	return nil, domain.ErrTemplateNotFound
}

// List lists an owner's templates by name
func (m *MockTemplateRepository) List(ctx context.Context, ownerID uuid.UUID, filter domain.TemplateFilter) ([]*domain.ExpenseTemplate, error) {
	if m.ListFn != nil {
		return m.ListFn(ctx, ownerID, filter)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*domain.ExpenseTemplate, 0)
	for _, t := range m.Templates {
		if t.OwnerID != ownerID {
			continue
		}
		if filter.Active != nil && t.Active != *filter.Active {
			continue
		}
		if filter.Kind != nil && t.PaymentMethod.PeriodKind() != *filter.Kind {
			continue
		}
		c := *t
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result, nil
}

// Update applies a patch
func (m *MockTemplateRepository) Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.TemplatePatch) (*domain.ExpenseTemplate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Templates[id]
	if !ok || t.OwnerID != ownerID {
		return nil, domain.ErrTemplateNotFound
	}
	if patch.Name != nil {
		t.Name = *patch.Name
	}
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	if patch.ChargeDay != nil {
		t.ChargeDay = *patch.ChargeDay
	}
	if patch.PaymentMethod != nil {
		t.PaymentMethod = *patch.PaymentMethod
	}
	if patch.Active != nil {
		t.Active = *patch.Active
	}
	if patch.Notes != nil {
		notes := *patch.Notes
		t.Notes = &notes
	}
	t.UpdatedAt = time.Now()
	c := *t
	return &c, nil
}

// Delete removes a template
func (m *MockTemplateRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.Templates[id]
	if !ok || t.OwnerID != ownerID {
		return domain.ErrTemplateNotFound
	}
	delete(m.Templates, id)
	return nil
}

// RecordingPublisher captures published events for assertions
type RecordingPublisher struct {
	mu     sync.Mutex
	Events []websocket.Event
}

// Publish records the event
func (p *RecordingPublisher) Publish(ownerID uuid.UUID, event websocket.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, event)
}

// Types returns the recorded event types in order
func (p *RecordingPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	types := make([]string, len(p.Events))
	for i, e := range p.Events {
		types[i] = e.Type
	}
	return types
}
