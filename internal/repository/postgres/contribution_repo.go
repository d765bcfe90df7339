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

const contributionSourceIndex = "contributions_period_source_key"

const contributionColumns = `id, owner_id, period_id, category_id, name, amount, is_fixed, notes,
	source_entry_id, recorded_at, created_at, updated_at`

// ContributionRepository implements domain.ContributionRepository using PostgreSQL
type ContributionRepository struct {
	pool *pgxpool.Pool
}

// NewContributionRepository creates a new ContributionRepository
func NewContributionRepository(pool *pgxpool.Pool) *ContributionRepository {
	return &ContributionRepository{pool: pool}
}

var _ domain.ContributionRepository = (*ContributionRepository)(nil)

// Create inserts a contribution
func (r *ContributionRepository) Create(ctx context.Context, contribution *domain.Contribution) (*domain.Contribution, error) {
	amount, err := decimalToPgNumeric(contribution.Amount)
	if err != nil {
		return nil, err
	}
	var recordedAt pgtype.Timestamptz
	if !contribution.RecordedAt.IsZero() {
		recordedAt = pgtype.Timestamptz{Time: contribution.RecordedAt, Valid: true}
	}

	var created *domain.Contribution
	err = withRetry(ctx, "contribution.create", func() error {
		row := r.pool.QueryRow(ctx, `
			INSERT INTO contributions (owner_id, period_id, category_id, name, amount, is_fixed,
				notes, source_entry_id, recorded_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, NOW()))
			RETURNING `+contributionColumns,
			uuidToPg(contribution.OwnerID), uuidToPg(contribution.PeriodID), uuidToPg(contribution.CategoryID),
			contribution.Name, amount, contribution.IsFixed, ptrToPgText(contribution.Notes),
			nullableUUIDToPg(contribution.SourceEntryID), recordedAt)
		var scanErr error
		created, scanErr = scanContribution(row)
		return scanErr
	})
	if err != nil {
		if isPgUniqueViolation(err, contributionSourceIndex) {
			return nil, domain.ErrEntryAlreadyRolled
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a contribution within an owner's scope
func (r *ContributionRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Contribution, error) {
	return r.queryOne(ctx, "contribution.get", `
		SELECT `+contributionColumns+` FROM contributions WHERE owner_id = $1 AND id = $2`,
		uuidToPg(ownerID), uuidToPg(id))
}

// ListByPeriod lists a period's contributions oldest first
func (r *ContributionRepository) ListByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, filter domain.ContributionFilter) ([]*domain.Contribution, error) {
	query := `SELECT ` + contributionColumns + ` FROM contributions WHERE owner_id = $1 AND period_id = $2`
	args := []any{uuidToPg(ownerID), uuidToPg(periodID)}
	if filter.IsFixed != nil {
		args = append(args, *filter.IsFixed)
		query += fmt.Sprintf(" AND is_fixed = $%d", len(args))
	}
	if filter.CategoryID != nil {
		args = append(args, uuidToPg(*filter.CategoryID))
		query += fmt.Sprintf(" AND category_id = $%d", len(args))
	}
	query += ` ORDER BY recorded_at, created_at`

	var result []*domain.Contribution
	err := withRetry(ctx, "contribution.list", func() error {
		rows, err := r.pool.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()

		result = make([]*domain.Contribution, 0)
		for rows.Next() {
			c, err := scanContribution(rows)
			if err != nil {
				return err
			}
			result = append(result, c)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Update patches name, amount and notes
func (r *ContributionRepository) Update(ctx context.Context, ownerID, id uuid.UUID, patch domain.EntryPatch) (*domain.Contribution, error) {
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
	return r.queryOne(ctx, "contribution.update", `
		UPDATE contributions SET
			name = COALESCE($3, name),
			amount = COALESCE($4, amount),
			notes = COALESCE($5, notes),
			updated_at = NOW()
		WHERE owner_id = $1 AND id = $2
		RETURNING `+contributionColumns,
		uuidToPg(ownerID), uuidToPg(id), name, amount, ptrToPgText(patch.Notes))
}

// Delete removes a contribution
func (r *ContributionRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	return withRetry(ctx, "contribution.delete", func() error {
		tag, err := r.pool.Exec(ctx, `DELETE FROM contributions WHERE owner_id = $1 AND id = $2`,
			uuidToPg(ownerID), uuidToPg(id))
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return domain.ErrContributionNotFound
		}
		return nil
	})
}

// SumByPeriod sums contribution amounts in a period
func (r *ContributionRepository) SumByPeriod(ctx context.Context, ownerID, periodID uuid.UUID, categoryID *uuid.UUID) (decimal.Decimal, error) {
	return sumByPeriod(ctx, r.pool, "contribution.sum", "contributions", ownerID, periodID, categoryID)
}

func (r *ContributionRepository) queryOne(ctx context.Context, op, query string, args ...any) (*domain.Contribution, error) {
	var contribution *domain.Contribution
	err := withRetry(ctx, op, func() error {
		var err error
		contribution, err = scanContribution(r.pool.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrContributionNotFound
		}
		return nil, err
	}
	return contribution, nil
}

func scanContribution(row pgx.Row) (*domain.Contribution, error) {
	var (
		id, ownerID, periodID, categoryID, sourceID pgtype.UUID
		amount                                      pgtype.Numeric
		notes                                       pgtype.Text
		c                                           domain.Contribution
	)
	if err := row.Scan(&id, &ownerID, &periodID, &categoryID, &c.Name, &amount, &c.IsFixed,
		&notes, &sourceID, &c.RecordedAt, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = pgToUUID(id)
	c.OwnerID = pgToUUID(ownerID)
	c.PeriodID = pgToUUID(periodID)
	c.CategoryID = pgToUUID(categoryID)
	c.Amount = pgNumericToDecimal(amount)
	c.Notes = pgTextToPtr(notes)
	c.SourceEntryID = pgToNullableUUID(sourceID)
	return &c, nil
}
