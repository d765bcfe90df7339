package postgres

import (
	"context"
	"errors"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

const categoryColumns = `id, owner_id, slug, name, has_goal, description, created_at, updated_at`

// CategoryRepository implements domain.CategoryRepository using PostgreSQL
type CategoryRepository struct {
	pool *pgxpool.Pool
}

// NewCategoryRepository creates a new CategoryRepository
func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

var _ domain.CategoryRepository = (*CategoryRepository)(nil)

// Create inserts a category
func (r *CategoryRepository) Create(ctx context.Context, category *domain.Category) (*domain.Category, error) {
	var created *domain.Category
	err := withRetry(ctx, "category.create", func() error {
		var err error
		created, err = scanCategory(r.pool.QueryRow(ctx, `
			INSERT INTO categories (owner_id, slug, name, has_goal, description)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING `+categoryColumns,
			uuidToPg(category.OwnerID), string(category.Slug), category.Name, category.HasGoal, category.Description))
		return err
	})
	if err != nil {
		if isPgUniqueViolation(err, "categories_owner_slug_key") {
			return nil, domain.ErrAlreadyExists
		}
		return nil, err
	}
	return created, nil
}

// GetByID retrieves a category within an owner's scope
func (r *CategoryRepository) GetByID(ctx context.Context, ownerID, id uuid.UUID) (*domain.Category, error) {
	var category *domain.Category
	err := withRetry(ctx, "category.get", func() error {
		var err error
		category, err = scanCategory(r.pool.QueryRow(ctx, `
			SELECT `+categoryColumns+` FROM categories WHERE owner_id = $1 AND id = $2`,
			uuidToPg(ownerID), uuidToPg(id)))
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrCategoryNotFound
		}
		return nil, err
	}
	return category, nil
}

// ListByOwner lists an owner's categories in system order
func (r *CategoryRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Category, error) {
	var result []*domain.Category
	err := withRetry(ctx, "category.list", func() error {
		rows, err := r.pool.Query(ctx, `
			SELECT `+categoryColumns+` FROM categories
			WHERE owner_id = $1
			ORDER BY CASE slug WHEN 'savings' THEN 1 WHEN 'rent' THEN 2 WHEN 'credit' THEN 3 ELSE 4 END`,
			uuidToPg(ownerID))
		if err != nil {
			return err
		}
		defer rows.Close()

		result = make([]*domain.Category, 0, len(domain.DefaultCategories))
		for rows.Next() {
			c, err := scanCategory(rows)
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

func scanCategory(row pgx.Row) (*domain.Category, error) {
	var (
		id, ownerID pgtype.UUID
		slug        string
		c           domain.Category
	)
	if err := row.Scan(&id, &ownerID, &slug, &c.Name, &c.HasGoal, &c.Description, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.ID = pgToUUID(id)
	c.OwnerID = pgToUUID(ownerID)
	c.Slug = domain.CategorySlug(slug)
	return &c, nil
}
