package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CategorySlug identifies one of the four system categories
type CategorySlug string

const (
	CategorySavings   CategorySlug = "savings"
	CategoryRent      CategorySlug = "rent"
	CategoryCredit    CategorySlug = "credit"
	CategoryLiquidity CategorySlug = "liquidity"
)

type Category struct {
	ID          uuid.UUID    `json:"id"`
	OwnerID     uuid.UUID    `json:"ownerId"`
	Slug        CategorySlug `json:"slug"`
	Name        string       `json:"name"`
	HasGoal     bool         `json:"hasGoal"`
	Description string       `json:"description"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// DefaultCategory is the template used when provisioning an owner's categories
type DefaultCategory struct {
	Slug        CategorySlug
	Name        string
	HasGoal     bool
	Description string
}

// DefaultCategories lists the system categories in display order
var DefaultCategories = []DefaultCategory{
	{Slug: CategorySavings, Name: "Savings", HasGoal: true, Description: "Money set aside every month"},
	{Slug: CategoryRent, Name: "Rent", HasGoal: true, Description: "Housing and related costs"},
	{Slug: CategoryCredit, Name: "Usable Credit", HasGoal: true, Description: "Self-imposed credit card spending limit"},
	{Slug: CategoryLiquidity, Name: "Liquidity", HasGoal: false, Description: "Cash available after fixed commitments"},
}

// FixedCategories holds the ids of an owner's system categories
type FixedCategories struct {
	Savings   uuid.UUID
	Rent      uuid.UUID
	Credit    uuid.UUID
	Liquidity uuid.UUID
}

type CategoryRepository interface {
	// Create inserts a category. Returns ErrAlreadyExists if the owner already has that slug.
	Create(ctx context.Context, category *Category) (*Category, error)
	GetByID(ctx context.Context, ownerID, id uuid.UUID) (*Category, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Category, error)
}
