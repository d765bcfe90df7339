package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const templateColumns = `id, owner_id, category_id, name, amount, charge_day, payment_method, active,
	notes, created_at, updated_at`

// TemplateRepository implements domain.TemplateRepository using PostgreSQL
type TemplateRepository struct {
	pool *pgxpool.Pool
}

// NewTemplateRepository creates a new TemplateRepository
func NewTemplateRepository(pool *pgxpool.Pool) *TemplateRepository {
	return &TemplateRepository{pool: pool}
}

var _ domain.TemplateRepository = (*TemplateRepository)(nil)

// Create inserts a template
func (r *TemplateRepository) Create(ctx context.Context, template *domain.ExpenseTemplate) (*domain.ExpenseTemplate, error) {
	amount, err := decimalToPgNumeric(template.Amount)
	if err != nil {
		return nil, err
	}
	return r.queryOne(ctx, "template.create", `
		INSERT INTO expense_templates (owner_id, category_id, name, amount, charge_day, payment_method, active, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+templateColumns,
		uuidToPg(template.OwnerID), uuidToPg(template.CategoryID), template.Name, amount,
		int16(template.ChargeDay), string(template.PaymentMethod), template.Active, ptrToPgText(template.Notes))
}

// GetByID retrieves a template within an owner's scope
func (r *TemplateRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.ExpenseTemplate, error) {
	return r.queryOne(ctx, "template.get", `
		SELECT `+templateColumns+` FROM expense_templates WHERE owner_id = $1 AND id = $2`,
		uuidToPg(ownerID), uuidToPg(id))
}

// List lists an owner's templates by name
func (r *TemplateRepository) List(ctx context.Context, ownerID uuid.UUID, filter domain.TemplateFilter) ([]*domain.ExpenseTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM expense_templates WHERE owner_id = $1`
	args := []any{uuidToPg(ownerID)}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		query += fmt.Sprintf(" AND active = $%d", len(args))
	}
	if filter.Kind != nil {
		if *filter.Kind == domain.PeriodKindCreditCycle {
			query += ` AND payment_method = 'credit'`
		} else {
			query += ` AND payment_method <> 'credit'`
		}
	}
	query += ` ORDER BY name, created_at`

	var result []*domain.ExpenseTemplate
	err := withRetry(ctx, "template.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = make([]*domain.ExpenseTemplate, 0)
		for rows.Next() {
			t, err := scanTemplate(rows)
			if err != nil {
				return err
			}
			result = append(result, t)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update patches a template
func (r *TemplateRepository) Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.TemplatePatch) (*domain.ExpenseTemplate, error) {
	var amount pgtype.Numeric
	if patch.Amount != nil {
		var err error
		if amount, err = decimalToPgNumeric(*patch.Amount); err != nil {
			return nil, err
		}
	}
	var (
		name, method pgtype.Text
		day          pgtype.Int2
		active       pgtype.Bool
	)
	if patch.Name != nil {
		name = pgtype.Text{String: *patch.Name, Valid: true}
	}
	if patch.PaymentMethod != nil {
		method = pgtype.Text{String: string(*patch.PaymentMethod), Valid: true}
	}
	if patch.ChargeDay != nil {
		day = pgtype.Int2{Int16: int16(*patch.ChargeDay), Valid: true}
	}
	if patch.Active != nil {
		active = pgtype.Bool{Bool: *patch.Active, Valid: true}
	}
	return r.queryOne(ctx, "template.update", `
		UPDATE expense_templates SET
			name = COALESCE($3, name),
			amount = COALESCE($4, amount),
			charge_day = COALESCE($5, charge_day),
			payment_method = COALESCE($6, payment_method),
			active = COALESCE($7, active),
			notes = COALESCE($8, notes),
			updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
		RETURNING `+templateColumns,
		uuidToPg(ownerID), uuidToPg(id), name, amount, day, method, active, ptrToPgText(patch.Notes))
}

// Delete removes a template. Expenses it produced keep their data and lose the link.
func (r *TemplateRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return withRetry(ctx, "template.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM expense_templates WHERE owner_id = $1 AND id = $2`,
			uuidToPg(ownerID), uuidToPg(id))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrTemplateNotFound
		}
		return nil
	})
}

func (r *TemplateRepository) queryOne(ctx context.Context, op, query string, args ...any) (*domain.ExpenseTemplate, error) {
	var template *domain.ExpenseTemplate
	err := withRetry(ctx, op, func() error {
		var err error
		template, err = scanTemplate(r.pool.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTemplateNotFound
		}
		return nil, err
	}
	return template, nil
}

func scanTemplate(row pgx.Row) (*domain.ExpenseTemplate, error) {
	var (
		id, ownerID, categoryID pgtype.UUID
		amount                  pgtype.Numeric
		day                     int16
		method                  string
		notes                   pgtype.Text
		t                       domain.ExpenseTemplate
	)
	if err := row.Scan(&id, &ownerID, &categoryID, &t.Name, &amount, &day, &method, &t.Active,
		&notes, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ID = pgToUUID(id)
	t.OwnerID = pgToUUID(ownerID)
	t.CategoryID = pgToUUID(categoryID)
	t.Amount = pgNumericToDecimal(amount)
	t.ChargeDay = int(day)
	t.PaymentMethod = domain.PaymentMethod(method)
	t.Notes = pgTextToPtr(notes)
	return &t, nil
}
