package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/util"
	"github.com/dafibh/ledgerflow/internal/websocket"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CreateTemplateInput holds the fields for a new expense template
type CreateTemplateInput struct {
	CategoryID    uuid.UUID
	Name          string
	Amount        decimal.Decimal
	ChargeDay     int
	PaymentMethod domain.PaymentMethod
	Active        *bool
	Notes         *string
}

// MaterializeResult counts what applying templates to a period did
type MaterializeResult struct {
	PeriodID       uuid.UUID         `json:"periodId"`
	Created        []*domain.Expense `json:"created"`
	AlreadyApplied int               `json:"alreadyApplied"`
}

// TemplateService manages expense templates and turns active ones into period expenses
type TemplateService struct {
	templateRepo domain.TemplateRepository
	expenseRepo  domain.ExpenseRepository
	categoryRepo domain.CategoryRepository
	publisher    websocket.EventPublisher
}

// NewTemplateService creates a new TemplateService
func NewTemplateService(
	templateRepo domain.TemplateRepository,
	expenseRepo domain.ExpenseRepository,
	categoryRepo domain.CategoryRepository,
	publisher websocket.EventPublisher,
) *TemplateService {
	if publisher == nil {
		publisher = &websocket.NoOpPublisher{}
	}
	return &TemplateService{
		templateRepo: templateRepo,
		expenseRepo:  expenseRepo,
		categoryRepo: categoryRepo,
		publisher:    publisher,
	}
}

// CreateTemplate validates and stores a template. Templates start active unless told otherwise.
func (s *TemplateService) CreateTemplate(ctx context.Context, ownerID uuid.UUID, input CreateTemplateInput) (*domain.ExpenseTemplate, error) {
	name := strings.TrimSpace(input.Name)
	if err := validateEntry(name, input.Amount, input.Notes); err != nil {
		return nil, err
	}
	if err := domain.ValidateChargeDay(input.ChargeDay); err != nil {
		return nil, err
	}
	if !input.PaymentMethod.Valid() {
		return nil, domain.ErrInvalidPaymentMethod
	}
	if _, err := s.categoryRepo.GetByID(ctx, ownerID, input.CategoryID); err != nil {
		return nil, err
	}

	active := true
	if input.Active != nil {
		active = *input.Active
	}
	created, err := s.templateRepo.Create(ctx, &domain.ExpenseTemplate{
		OwnerID:       ownerID,
		CategoryID:    input.CategoryID,
		Name:          name,
		Amount:        input.Amount,
		ChargeDay:     input.ChargeDay,
		PaymentMethod: input.PaymentMethod,
		Active:        active,
		Notes:         input.Notes,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("owner_id", ownerID.String()).
		Str("template_id", created.ID.String()).
		Str("payment_method", string(created.PaymentMethod)).
		Int("charge_day", created.ChargeDay).
		Msg("Expense template created")
	s.publisher.Publish(ownerID, websocket.TemplateCreated(created))
	return created, nil
}

// GetTemplate retrieves one of the owner's templates
func (s *TemplateService) GetTemplate(ctx context.Context, ownerID, id uuid.UUID) (*domain.ExpenseTemplate, error) {
	return s.templateRepo.GetByID(ctx, ownerID, id)
}

// ListTemplates lists the owner's templates by name
func (s *TemplateService) ListTemplates(ctx context.Context, ownerID uuid.UUID, filter domain.TemplateFilter) ([]*domain.ExpenseTemplate, error) {
	if filter.Kind != nil && !filter.Kind.Valid() {
		return nil, domain.ErrInvalidPeriodKind
	}
	return s.templateRepo.List(ctx, ownerID, filter)
}

// UpdateTemplate applies a partial update. Expenses already produced keep their values.
func (s *TemplateService) UpdateTemplate(ctx context.Context, ownerID, id uuid.UUID, patch domain.TemplatePatch) (*domain.ExpenseTemplate, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		patch.Name = &name
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}
	if patch.IsEmpty() {
		return s.templateRepo.GetByID(ctx, ownerID, id)
	}
	updated, err := s.templateRepo.Update(ctx, ownerID, id, patch)
	if err != nil {
		return nil, err
	}
	s.publisher.Publish(ownerID, websocket.TemplateUpdated(updated))
	return updated, nil
}

// ToggleTemplate flips whether a template is applied to new periods
func (s *TemplateService) ToggleTemplate(ctx context.Context, ownerID, id uuid.UUID) (*domain.ExpenseTemplate, error) {
	current, err := s.templateRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	active := !current.Active
	updated, err := s.templateRepo.Update(ctx, ownerID, id, domain.TemplatePatch{Active: &active})
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("owner_id", ownerID.String()).
		Str("template_id", id.String()).
		Bool("active", updated.Active).
		Msg("Expense template toggled")
	s.publisher.Publish(ownerID, websocket.TemplateUpdated(updated))
	return updated, nil
}

// DeleteTemplate removes a template. Expenses it produced stay in their periods.
func (s *TemplateService) DeleteTemplate(ctx context.Context, ownerID, id uuid.UUID) error {
	template, err := s.templateRepo.GetByID(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.templateRepo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.publisher.Publish(ownerID, websocket.TemplateDeleted(template))
	return nil
}

// Materialize creates one variable expense per active template of the period's kind that the
// period does not hold yet, dated on the template's charge day. Running it twice creates nothing new.
func (s *TemplateService) Materialize(ctx context.Context, period *domain.Period) (*MaterializeResult, error) {
	if period.IsClosed() {
		return nil, domain.ErrPeriodClosed
	}
	result := &MaterializeResult{PeriodID: period.ID, Created: make([]*domain.Expense, 0)}

	active, kind := true, period.Kind
	templates, err := s.templateRepo.List(ctx, period.OwnerID, domain.TemplateFilter{Active: &active, Kind: &kind})
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	if len(templates) == 0 {
		return result, nil
	}

	existing, err := s.expenseRepo.ListByPeriod(ctx, period.OwnerID, period.ID, domain.ExpenseFilter{})
	if err != nil {
		return nil, fmt.Errorf("list period expenses: %w", err)
	}
	applied := make(map[uuid.UUID]bool, len(existing))
	for _, e := range existing {
		if e.TemplateID != nil {
			applied[*e.TemplateID] = true
		}
	}

	for _, t := range templates {
		if applied[t.ID] {
			result.AlreadyApplied++
			continue
		}
		templateID := t.ID
		created, err := s.expenseRepo.Create(ctx, &domain.Expense{
			OwnerID:    period.OwnerID,
			PeriodID:   period.ID,
			CategoryID: t.CategoryID,
			Name:       t.Name,
			Amount:     t.Amount,
			Schedule:   domain.Variable{},
			Notes:      copyString(t.Notes),
			TemplateID: &templateID,
			RecordedAt: util.ChargeDate(period.StartDate, period.EndDate, t.ChargeDay),
		})
		if err != nil {
			if errors.Is(err, domain.ErrTemplateAlreadyApplied) {
				// A concurrent run got there first
				result.AlreadyApplied++
				continue
			}
			return nil, fmt.Errorf("apply template %s: %w", t.ID, err)
		}
		result.Created = append(result.Created, created)
		s.publisher.Publish(period.OwnerID, websocket.ExpenseCreated(created))
	}

	log.Info().
		Str("owner_id", period.OwnerID.String()).
		Str("period_id", period.ID.String()).
		Int("created", len(result.Created)).
		Int("already_applied", result.AlreadyApplied).
		Msg("Expense templates applied")
	return result, nil
}
