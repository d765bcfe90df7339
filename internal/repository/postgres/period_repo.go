package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const activePeriodIndex = "periods_one_active_key"

const periodColumns = `id, owner_id, kind, start_date, end_date, salary, goal_savings, goal_rent,
	goal_credit_usable, state, total_spent, rollover_source_id, rollover_status, created_at, updated_at`

// PeriodRepository implements domain.PeriodRepository using PostgreSQL
type PeriodRepository struct {
	pool *pgxpool.Pool
}

// NewPeriodRepository creates a new PeriodRepository
func NewPeriodRepository(pool *pgxpool.Pool) *PeriodRepository {
	return &PeriodRepository{pool: pool}
}

// Ensure PeriodRepository implements domain.PeriodRepository
var _ domain.PeriodRepository = (*PeriodRepository)(nil)

// Create inserts a new period
func (r *PeriodRepository) Create(ctx context.Context, period *domain.Period) (*domain.Period, error) {
	salary, err := decimalToPgNumeric(period.Salary)
	if err != nil {
		return nil, err
	}
	savings, err := decimalToPgNumeric(period.Goals.Savings)
	if err != nil {
		return nil, err
	}
	rent, err := decimalToPgNumeric(period.Goals.Rent)
	if err != nil {
		return nil, err
	}
	credit, err := decimalToPgNumeric(period.Goals.CreditUsable)
	if err != nil {
		return nil, err
	}
	totalSpent, err := decimalToPgNumeric(period.TotalSpent)
	if err != nil {
		return nil, err
	}
	status := period.RolloverStatus
	if status == "" {
		status = domain.RolloverStatusNone
	}

	var created *domain.Period
	err = withRetry(ctx, "period.create", func() error {
		row := r.pool.QueryRow(ctx, `
			INSERT INTO periods (owner_id, kind, start_date, end_date, salary, goal_savings, goal_rent,
				goal_credit_usable, state, total_spent, rollover_source_id, rollover_status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING `+periodColumns,
			uuidToPg(period.OwnerID), string(period.Kind), period.StartDate, period.EndDate,
			salary, savings, rent, credit, string(period.State), totalSpent,
			nullableUUIDToPg(period.RolloverSourceID), string(status))
		var scanErr error
		created, scanErr = scanPeriod(row)
		return scanErr
	})
	if err != nil {
		if isPgUniqueViolation(err, activePeriodIndex) {
			return nil, domain.ErrActivePeriodExists
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a period by ID within an owner's scope
func (r *PeriodRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Period, error) {
	return r.queryOne(ctx, "period.get", `
		SELECT `+periodColumns+` FROM periods
		WHERE owner_id = $1 AND id = $2`,
		uuidToPg(ownerID), uuidToPg(id))
}

// GetActive retrieves the active period of a kind
func (r *PeriodRepository) GetActive(ctx context.Context, ownerID uuid.UUID, kind domain.PeriodKind) (*domain.Period, error) {
	return r.queryOne(ctx, "period.get_active", `
		SELECT `+periodColumns+` FROM periods
		WHERE owner_id = $1 AND kind = $2 AND state = 'active'`,
		uuidToPg(ownerID), string(kind))
}

// GetMostRecentlyClosed retrieves the closed period with the latest end date
func (r *PeriodRepository) GetMostRecentlyClosed(ctx context.Context, ownerID uuid.UUID, kind domain.PeriodKind, before *time.Time) (*domain.Period, error) {
	var beforeArg pgtype.Timestamptz
	if before != nil {
		beforeArg = pgtype.Timestamptz{Time: *before, Valid: true}
	}
	return r.queryOne(ctx, "period.get_most_recently_closed", `
		SELECT `+periodColumns+` FROM periods
		WHERE owner_id = $1 AND kind = $2 AND state = 'closed'
			AND ($3::timestamptz IS NULL OR end_date < $3)
		ORDER BY end_date DESC
		LIMIT 1`,
		uuidToPg(ownerID), string(kind), beforeArg)
}

// List retrieves an owner's periods, newest first
func (r *PeriodRepository) List(ctx context.Context, ownerID uuid.UUID, filter domain.PeriodFilter) ([]*domain.Period, error) {
	conditions := []string{"owner_id = $1"}
	args := []any{uuidToPg(ownerID)}
	if filter.Kind != nil {
		args = append(args, string(*filter.Kind))
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.State != nil {
		args = append(args, string(*filter.State))
		conditions = append(conditions, fmt.Sprintf("state = $%d", len(args)))
	}
	query := `SELECT ` + periodColumns + ` FROM periods WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY start_date DESC, kind`

	var result []*domain.Period
	err := withRetry(ctx, "period.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = make([]*domain.Period, 0)
		for rows.Next() {
			p, err := scanPeriod(rows)
			if err != nil {
				return err
			}
			result = append(result, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListExpiredActive retrieves active periods past their end date across all owners
func (r *PeriodRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]*domain.Period, error) {
	var result []*domain.Period
	err := withRetry(ctx, "period.list_expired_active", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+periodColumns+` FROM periods
			WHERE state = 'active' AND end_date < $1
			ORDER BY end_date, id
			LIMIT $2`,
			pgtype.Timestamptz{Time: now, Valid: true}, limit)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = make([]*domain.Period, 0)
		for rows.Next() {
			p, err := scanPeriod(rows)
			if err != nil {
				return err
			}
			result = append(result, p)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update applies a field-level patch
func (r *PeriodRepository) Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.PeriodPatch) (*domain.Period, error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, ownerID, id)
	}

	sets := make([]string, 0, 6)
	args := []any{uuidToPg(ownerID), uuidToPg(id)}
	addNumeric := func(column string, value decimal.Decimal) error {
		num, err := decimalToPgNumeric(value)
		if err != nil {
			return err
		}
		args = append(args, num)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
		return nil
	}

	if patch.Salary != nil {
		if err := addNumeric("salary", *patch.Salary); err != nil {
			return nil, err
		}
	}
	if patch.Goals != nil {
		if err := addNumeric("goal_savings", patch.Goals.Savings); err != nil {
			return nil, err
		}
		if err := addNumeric("goal_rent", patch.Goals.Rent); err != nil {
			return nil, err
		}
		if err := addNumeric("goal_credit_usable", patch.Goals.CreditUsable); err != nil {
			return nil, err
		}
	}
	if patch.TotalSpent != nil {
		if err := addNumeric("total_spent", *patch.TotalSpent); err != nil {
			return nil, err
		}
	}
	if patch.State != nil {
		args = append(args, string(*patch.State))
		sets = append(sets, fmt.Sprintf("state = $%d", len(args)))
	}

	query := `UPDATE periods SET ` + strings.Join(sets, ", ") + `, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
		RETURNING ` + periodColumns

	updated, err := r.queryOne(ctx, "period.update", query, args...)
	if err != nil && isPgUniqueViolation(err, activePeriodIndex) {
		return nil, domain.ErrActivePeriodExists
	}
	return updated, err
}

// Close marks a period closed. An already closed period does not match, so only one
// concurrent caller gets the row back.
func (r *PeriodRepository) Close(ctx context.Context, ownerID, id uuid.UUID, endDate *time.Time) (*domain.Period, error) {
	var endArg pgtype.Timestamptz
	if endDate != nil {
		endArg = pgtype.Timestamptz{Time: *endDate, Valid: true}
	}
	return r.queryOne(ctx, "period.close", `
		UPDATE periods
		SET state = 'closed', end_date = COALESCE($3, end_date), updated_at = NOW()
		WHERE owner_id = $1 AND id = $2 AND state <> 'closed'
		RETURNING `+periodColumns,
		uuidToPg(ownerID), uuidToPg(id), endArg)
}

// UpdateBounds overwrites start and end dates
func (r *PeriodRepository) UpdateBounds(ctx context.Context, ownerID, id uuid.UUID, startDate, endDate time.Time) (*domain.Period, error) {
	return r.queryOne(ctx, "period.update_bounds", `
		UPDATE periods SET start_date = $3, end_date = $4, updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
		RETURNING `+periodColumns,
		uuidToPg(ownerID), uuidToPg(id), startDate, endDate)
}

// SetRolloverStatus records rollover progress
func (r *PeriodRepository) SetRolloverStatus(ctx context.Context, ownerID, id uuid.UUID, status domain.RolloverStatus) error {
	return withRetry(ctx, "period.set_rollover_status", func() error {
		tag, err := r.pool.Exec(ctx, `
			UPDATE periods SET rollover_status = $3, updated_at = NOW()
			WHERE owner_id = $1 AND id = $2`,
			uuidToPg(ownerID), uuidToPg(id), string(status))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrPeriodNotFound
		}
		return nil
	})
}

// Delete removes a period and, through the foreign keys, its entries
func (r *PeriodRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return withRetry(ctx, "period.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM periods WHERE owner_id = $1 AND id = $2`,
			uuidToPg(ownerID), uuidToPg(id))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrPeriodNotFound
		}
		return nil
	})
}

func (r *PeriodRepository) queryOne(ctx context.Context, op, query string, args ...any) (*domain.Period, error) {
	var period *domain.Period
	err := withRetry(ctx, op, func() error {
		var err error
		period, err = scanPeriod(r.pool.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPeriodNotFound
		}
		return nil, err
	}
	return period, nil
}

func scanPeriod(row pgx.Row) (*domain.Period, error) {
	var (
		id, ownerID, sourceID                   pgtype.UUID
		kind, state, status                     string
		salary, savings, rent, credit, totalSum pgtype.Numeric
		p                                       domain.Period
	)
	if err := row.Scan(&id, &ownerID, &kind, &p.StartDate, &p.EndDate, &salary, &savings, &rent,
		&credit, &state, &totalSum, &sourceID, &status, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = pgToUUID(id)
	p.OwnerID = pgToUUID(ownerID)
	p.Kind = domain.PeriodKind(kind)
	p.State = domain.PeriodState(state)
	p.RolloverStatus = domain.RolloverStatus(status)
	p.Salary = pgNumericToDecimal(salary)
	p.Goals = domain.CategoryGoals{
		Savings:      pgNumericToDecimal(savings),
		Rent:         pgNumericToDecimal(rent),
		CreditUsable: pgNumericToDecimal(credit),
	}
	p.TotalSpent = pgNumericToDecimal(totalSum)
	p.RolloverSourceID = pgToNullableUUID(sourceID)
	return &p, nil
}
