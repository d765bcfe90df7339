package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CategoryService provisions and looks up the fixed system categories
type CategoryService struct {
	categoryRepo domain.CategoryRepository
}

// NewCategoryService creates a new CategoryService
func NewCategoryService(categoryRepo domain.CategoryRepository) *CategoryService {
	return &CategoryService{categoryRepo: categoryRepo}
}

// EnsureDefaults creates any of the four system categories the owner is missing
func (s *CategoryService) EnsureDefaults(ctx context.Context, ownerID uuid.UUID) ([]*domain.Category, error) {
	existing, err := s.categoryRepo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	have := make(map[domain.CategorySlug]bool, len(existing))
	for _, c := range existing {
		have[c.Slug] = true
	}

	created := 0
	for _, def := range domain.DefaultCategories {
		if have[def.Slug] {
			continue
		}
		_, err := s.categoryRepo.Create(ctx, &domain.Category{
			OwnerID:     ownerID,
			Slug:        def.Slug,
			Name:        def.Name,
			HasGoal:     def.HasGoal,
			Description: def.Description,
		})
		// A concurrent request may have provisioned it already
		if err != nil && !errors.Is(err, domain.ErrAlreadyExists) {
			return nil, fmt.Errorf("create category %s: %w", def.Slug, err)
		}
		created++
	}

	if created == 0 {
		return existing, nil
	}
	log.Info().Str("owner_id", ownerID.String()).Int("created", created).Msg("Default categories provisioned")
	return s.categoryRepo.ListByOwner(ctx, ownerID)
}

// FixedCategories returns the ids of the owner's system categories, provisioning them if needed
func (s *CategoryService) FixedCategories(ctx context.Context, ownerID uuid.UUID) (domain.FixedCategories, error) {
	categories, err := s.EnsureDefaults(ctx, ownerID)
	if err != nil {
		return domain.FixedCategories{}, err
	}
	return fixedFromCategories(categories), nil
}

func fixedFromCategories(categories []*domain.Category) domain.FixedCategories {
	var fixed domain.FixedCategories
	for _, c := range categories {
		switch c.Slug {
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

// GetCategory retrieves one of the owner's categories
func (s *CategoryService) GetCategory(ctx context.Context, ownerID, id uuid.UUID) (*domain.Category, error) {
	return s.categoryRepo.GetByID(ctx, ownerID, id)
}
