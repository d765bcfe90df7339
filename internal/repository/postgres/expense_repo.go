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
	"github.com/shopspring/decimal"
)

const (
	expenseSourceIndex   = "expenses_period_source_key"
	expenseTemplateIndex = "expenses_period_template_key"
)

const expenseColumns = `id, owner_id, period_id, category_id, name, amount, schedule, remaining_cycles,
	notes, source_entry_id, template_id, recorded_at, created_at, updated_at`

// Schedule column values
const (
	scheduleVariable  = "variable"
	schedulePermanent = "permanent"
	scheduleTemporal  = "temporal"
)

// ExpenseRepository implements domain.ExpenseRepository using PostgreSQL
type ExpenseRepository struct {
	pool *pgxpool.Pool
}

// NewExpenseRepository creates a new ExpenseRepository
func NewExpenseRepository(pool *pgxpool.Pool) *ExpenseRepository {
	return &ExpenseRepository{pool: pool}
}

var _ domain.ExpenseRepository = (*ExpenseRepository)(nil)

// Create inserts an expense
func (r *ExpenseRepository) Create(ctx context.Context, expense *domain.Expense) (*domain.Expense, error) {
	amount, err := decimalToPgNumeric(expense.Amount)
	if err != nil {
		return nil, err
	}
	schedule, remaining, err := encodeSchedule(expense.Schedule)
	if err != nil {
		return nil, err
	}
	var recordedAt pgtype.Timestamptz
	if !expense.RecordedAt.IsZero() {
		recordedAt = pgtype.Timestamptz{Time: expense.RecordedAt, Valid: true}
	}

	var created *domain.Expense
	err = withRetry(ctx, "expense.create", func() error {
		row := r.pool.QueryRow(ctx, `
			INSERT INTO expenses (owner_id, period_id, category_id, name, amount, schedule,
				remaining_cycles, notes, source_entry_id, template_id, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, COALESCE($11, NOW()))
			RETURNING `+expenseColumns,
			uuidToPg(expense.OwnerID), uuidToPg(expense.PeriodID), uuidToPg(expense.CategoryID),
			expense.Name, amount, schedule, remaining, ptrToPgText(expense.Notes),
			nullableUUIDToPg(expense.SourceEntryID), nullableUUIDToPg(expense.TemplateID), recordedAt)
		var scanErr error
		created, scanErr = scanExpense(row)
		return scanErr
	})
	if err != nil {
		if isPgUniqueViolation(err, expenseSourceIndex) {
			return nil, domain.ErrEntryAlreadyRolled
		}
		if isPgUniqueViolation(err, expenseTemplateIndex) {
			return nil, domain.ErrTemplateAlreadyApplied
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves an expense within an owner's scope
func (r *ExpenseRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Expense, error) {
	return r.queryOne(ctx, "expense.get", `
		SELECT `+expenseColumns+` FROM expenses WHERE owner_id = $1 AND id = $2`,
		uuidToPg(ownerID), uuidToPg(id))
}

// ListByPeriod lists a period's expenses oldest first
func (r *ExpenseRepository) ListByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, filter domain.ExpenseFilter) ([]*domain.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE owner_id = $1 AND period_id = $2`
	args := []any{uuidToPg(ownerID), uuidToPg(periodID)}
	if filter.Recurrence != nil {
		if *filter.Recurrence == domain.RecurrenceFixed {
			query += ` AND schedule <> 'variable'`
		} else {
			query += ` AND schedule = 'variable'`
		}
	}
	if filter.CategoryID != nil {
		args = append(args, uuidToPg(*filter.CategoryID))
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	query += ` ORDER BY recorded_at, created_at`

	var result []*domain.Expense
	err := withRetry(ctx, "expense.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = make([]*domain.Expense, 0)
		for rows.Next() {
			e, err := scanExpense(rows)
			if err != nil {
				return err
			}
			result = append(result, e)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update patches name, amount and notes. The schedule never changes after creation.
func (r *ExpenseRepository) Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.EntryPatch) (*domain.Expense, error) {
	var amount pgtype.Numeric
	if patch.Amount != nil {
		var err error
		if amount, err = decimalToPgNumeric(*patch.Amount); err != nil {
			return nil, err
		}
	}
	var name pgtype.Text
	if patch.Name != nil {
		name = pgtype.Text{String: *patch.Name, Valid: true}
	}
	return r.queryOne(ctx, "expense.update", `
		UPDATE expenses SET
			name = COALESCE($3, name),
			amount = COALESCE($4, amount),
			notes = COALESCE($5, notes),
			updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
		RETURNING `+expenseColumns,
		uuidToPg(ownerID), uuidToPg(id), name, amount, ptrToPgText(patch.Notes))
}

// Delete removes an expense
func (r *ExpenseRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return withRetry(ctx, "expense.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE owner_id = $1 AND id = $2`,
			uuidToPg(ownerID), uuidToPg(id))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrExpenseNotFound
		}
		return nil
	})
}

// SumByPeriod sums expense amounts in a period
func (r *ExpenseRepository) SumByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, categoryID *uuid.UUID) (decimal.Decimal, error) {
	return sumByPeriod(ctx, r.pool, "expense.sum", "expenses", ownerID, periodID, categoryID)
}

func (r *ExpenseRepository) queryOne(ctx context.Context, op, query string, args ...any) (*domain.Expense, error) {
	var expense *domain.Expense
	err := withRetry(ctx, op, func() error {
		var err error
		expense, err = scanExpense(r.pool.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrExpenseNotFound
		}
		return nil, err
	}
	return expense, nil
}

func scanExpense(row pgx.Row) (*domain.Expense, error) {
	var (
		id, ownerID, periodID, categoryID pgtype.UUID
		sourceID, templateID              pgtype.UUID
		amount                            pgtype.Numeric
		schedule                          string
		remaining                         pgtype.Int4
		notes                             pgtype.Text
		e                                 domain.Expense
	)
	if err := row.Scan(&id, &ownerID, &periodID, &categoryID, &e.Name, &amount, &schedule, &remaining,
		&notes, &sourceID, &templateID, &e.RecordedAt, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	s, err := decodeSchedule(schedule, remaining)
	if err != nil {
		return nil, err
	}
	e.ID = pgToUUID(id)
	e.OwnerID = pgToUUID(ownerID)
	e.PeriodID = pgToUUID(periodID)
	e.CategoryID = pgToUUID(categoryID)
	e.Amount = pgNumericToDecimal(amount)
	e.Schedule = s
	e.Notes = pgTextToPtr(notes)
	e.SourceEntryID = pgToNullableUUID(sourceID)
	e.TemplateID = pgToNullableUUID(templateID)
	return &e, nil
}

func encodeSchedule(s domain.Schedule) (string, pgtype.Int4, error) {
	switch v := s.(type) {
	case domain.Variable:
		return scheduleVariable, pgtype.Int4{}, nil
	case domain.Permanent:
		return schedulePermanent, pgtype.Int4{}, nil
	case domain.Temporal:
		return scheduleTemporal, pgtype.Int4{Int32: int32(v.RemainingCycles), Valid: true}, nil
	default:
		return "", pgtype.Int4{}, domain.ErrInvalidSchedule
	}
}

func decodeSchedule(schedule string, remaining pgtype.Int4) (domain.Schedule, error) {
	switch schedule {
	case scheduleVariable:
		return domain.Variable{}, nil
	case schedulePermanent:
		return domain.Permanent{}, nil
	case scheduleTemporal:
		if !remaining.Valid {
			return nil, fmt.Errorf("temporal expense without remaining cycles: %w", domain.ErrInvalidSchedule)
		}
		return domain.Temporal{RemainingCycles: int(remaining.Int32)}, nil
	default:
		return nil, fmt.Errorf("unknown schedule %q: %w", schedule, domain.ErrInvalidSchedule)
	}
}

// sumByPeriod is shared by the expense and contribution stores
func sumByPeriod(ctx context.Context, pool *pgxpool.Pool, op, table string, ownerID, periodID uuid.UUID, categoryID *uuid.UUID) (decimal.Decimal, error) {
	var total pgtype.Numeric
	err := withRetry(ctx, op, func() error {
		return pool.QueryRow(ctx, `
			SELECT COALESCE(SUM(amount), 0) FROM `+table+`
			WHERE owner_id = $1 AND period_id = $2 AND ($3::uuid IS NULL OR category_id = $3)`,
			uuidToPg(ownerID), uuidToPg(periodID), nullableUUIDToPg(categoryID)).Scan(&total)
	})
	if err != nil {
		return decimal.Zero, err
	}
	return pgNumericToDecimal(total), nil
}
