package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) addTemplate(categoryID uuid.UUID, name string, amount int64, day int, method domain.PaymentMethod, active bool) *domain.ExpenseTemplate {
	t := &domain.ExpenseTemplate{
		OwnerID:       f.owner,
		CategoryID:    categoryID,
		Name:          name,
		Amount:        dec(amount),
		ChargeDay:     day,
		PaymentMethod: method,
		Active:        active,
	}
	f.templates.AddTemplate(t)
	return t
}

func intPtr(v int) *int { return &v }

func TestTemplateService_CreateTemplate(t *testing.T) {
	f := newFixture(t, date(2025, time.January, 10))
	ctx := context.Background()

	created, err := f.templateSvc.CreateTemplate(ctx, f.owner, CreateTemplateInput{
		CategoryID:    f.fixed.Liquidity,
		Name:          "  Gym  ",
		Amount:        dec(25000),
		ChargeDay:     5,
		PaymentMethod: domain.PaymentDebit,
	})

	require.NoError(t, err)
	assert.Equal(t, "Gym", created.Name)
	assert.True(t, created.Active)
	assert.Equal(t, []string{"template.created"}, f.publisher.Types())
}

func TestTemplateService_CreateTemplate_Validation(t *testing.T) {
	f := newFixture(t, date(2025, time.January, 10))
	ctx := context.Background()

	valid := func() CreateTemplateInput {
		return CreateTemplateInput{
			CategoryID:    f.fixed.Liquidity,
			Name:          "Gym",
			Amount:        dec(25000),
			ChargeDay:     5,
			PaymentMethod: domain.PaymentDebit,
		}
	}

	tests := []struct {
		name    string
		mutate  func(in *CreateTemplateInput)
		wantErr error
	}{
		{"blank name", func(in *CreateTemplateInput) { in.Name = "  " }, domain.ErrNameRequired},
		{"zero amount", func(in *CreateTemplateInput) { in.Amount = dec(0) }, domain.ErrInvalidAmount},
		{"day zero", func(in *CreateTemplateInput) { in.ChargeDay = 0 }, domain.ErrInvalidChargeDay},
		{"day 32", func(in *CreateTemplateInput) { in.ChargeDay = 32 }, domain.ErrInvalidChargeDay},
		{"unknown method", func(in *CreateTemplateInput) { in.PaymentMethod = "cheque" }, domain.ErrInvalidPaymentMethod},
		{"foreign category", func(in *CreateTemplateInput) { in.CategoryID = uuid.New() }, domain.ErrCategoryNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid()
			tt.mutate(&in)

			_, err := f.templateSvc.CreateTemplate(ctx, f.owner, in)

			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
	assert.Empty(t, f.templates.Templates)
}

func TestTemplateService_UpdateAndToggle(t *testing.T) {
	f := newFixture(t, date(2025, time.January, 10))
	ctx := context.Background()
	tmpl := f.addTemplate(f.fixed.Liquidity, "Gym", 25000, 5, domain.PaymentDebit, true)

	updated, err := f.templateSvc.UpdateTemplate(ctx, f.owner, tmpl.ID, domain.TemplatePatch{ChargeDay: intPtr(20)})
	require.NoError(t, err)
	assert.Equal(t, 20, updated.ChargeDay)

	_, err = f.templateSvc.UpdateTemplate(ctx, f.owner, tmpl.ID, domain.TemplatePatch{ChargeDay: intPtr(40)})
	assert.True(t, errors.Is(err, domain.ErrInvalidChargeDay))

	toggled, err := f.templateSvc.ToggleTemplate(ctx, f.owner, tmpl.ID)
	require.NoError(t, err)
	assert.False(t, toggled.Active)

	toggled, err = f.templateSvc.ToggleTemplate(ctx, f.owner, tmpl.ID)
	require.NoError(t, err)
	assert.True(t, toggled.Active)

	_, err = f.templateSvc.ToggleTemplate(ctx, uuid.New(), tmpl.ID)
	assert.True(t, errors.Is(err, domain.ErrTemplateNotFound))

	assert.Equal(t, []string{"template.updated", "template.updated", "template.updated"}, f.publisher.Types())
}

func TestTemplateService_DeleteTemplate_KeepsExpenses(t *testing.T) {
	f := newFixture(t, date(2025, time.January, 10))
	ctx := context.Background()
	january := f.addPeriod(t, domain.PeriodKindStandard, date(2025, time.January, 10), domain.PeriodStateActive)
	tmpl := f.addTemplate(f.fixed.Liquidity, "Gym", 25000, 5, domain.PaymentDebit, true)

	_, err := f.templateSvc.Materialize(ctx, january)
	require.NoError(t, err)

	require.NoError(t, f.templateSvc.DeleteTemplate(ctx, f.owner, tmpl.ID))

	assert.Empty(t, f.templates.Templates)
	assert.Len(t, expensesByName(t, f, january.ID), 1)
	assert.True(t, errors.Is(f.templateSvc.DeleteTemplate(ctx, f.owner, tmpl.ID), domain.ErrTemplateNotFound))
}

func TestTemplateService_Materialize(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	ctx := context.Background()
	february := f.addPeriod(t, domain.PeriodKindStandard, date(2025, time.February, 10), domain.PeriodStateActive)

	gym := f.addTemplate(f.fixed.Liquidity, "Gym", 25000, 31, domain.PaymentDebit, true)
	f.addTemplate(f.fixed.Liquidity, "Streaming", 1500, 3, domain.PaymentCredit, true)
	f.addTemplate(f.fixed.Liquidity, "Paused", 9000, 3, domain.PaymentCash, false)

	result, err := f.templateSvc.Materialize(ctx, february)

	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, 0, result.AlreadyApplied)

	created := result.Created[0]
	assert.Equal(t, "Gym", created.Name)
	assert.Equal(t, domain.Variable{}, created.Schedule)
	require.NotNil(t, created.TemplateID)
	assert.Equal(t, gym.ID, *created.TemplateID)
	assert.Equal(t, time.Date(2025, time.February, 28, 0, 0, 0, 0, time.UTC), created.RecordedAt)
	assert.Equal(t, []string{"expense.created"}, f.publisher.Types())

	again, err := f.templateSvc.Materialize(ctx, february)
	require.NoError(t, err)
	assert.Empty(t, again.Created)
	assert.Equal(t, 1, again.AlreadyApplied)
	assert.Len(t, expensesByName(t, f, february.ID), 1)
}

func TestTemplateService_Materialize_CreditCycle(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	cycle := f.addPeriod(t, domain.PeriodKindCreditCycle, date(2025, time.February, 10), domain.PeriodStateActive)
	f.addTemplate(f.fixed.Credit, "Streaming", 1500, 3, domain.PaymentCredit, true)
	f.addTemplate(f.fixed.Liquidity, "Gym", 25000, 5, domain.PaymentDebit, true)

	result, err := f.templateSvc.Materialize(context.Background(), cycle)

	require.NoError(t, err)
	require.Len(t, result.Created, 1)
	assert.Equal(t, "Streaming", result.Created[0].Name)
	// Jan 25 - Feb 24 cycle: day 3 lands in February
	assert.Equal(t, time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC), result.Created[0].RecordedAt)
}

func TestTemplateService_Materialize_ConcurrentDuplicate(t *testing.T) {
	f := newFixture(t, date(2025, time.January, 10))
	january := f.addPeriod(t, domain.PeriodKindStandard, date(2025, time.January, 10), domain.PeriodStateActive)
	f.addTemplate(f.fixed.Liquidity, "Gym", 25000, 5, domain.PaymentDebit, true)

	// Another run inserted the row between the listing and this insert
	f.expenses.CreateFn = func(ctx context.Context, e *domain.Expense) (*domain.Expense, error) {
		if _, err := f.expenses.CreateDirect(e); err != nil {
			return nil, err
		}
		return f.expenses.CreateDirect(e)
	}

	result, err := f.templateSvc.Materialize(context.Background(), january)

	require.NoError(t, err)
	assert.Empty(t, result.Created)
	assert.Equal(t, 1, result.AlreadyApplied)
	assert.Len(t, expensesByName(t, f, january.ID), 1)
}

func TestTemplateService_Materialize_ClosedPeriod(t *testing.T) {
	f := newFixture(t, date(2025, time.February, 10))
	january := f.addPeriod(t, domain.PeriodKindStandard, date(2025, time.January, 10), domain.PeriodStateClosed)
	f.addTemplate(f.fixed.Liquidity, "Gym", 25000, 5, domain.PaymentDebit, true)

	_, err := f.templateSvc.Materialize(context.Background(), january)

	assert.True(t, errors.Is(err, domain.ErrPeriodClosed))
	assert.Empty(t, f.expenses.Expenses)
}
