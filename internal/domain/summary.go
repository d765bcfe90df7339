package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CategorySummary is the per-category breakdown of a period
type CategorySummary struct {
	CategoryID    uuid.UUID        `json:"categoryId"`
	Slug          CategorySlug     `json:"slug"`
	Name          string           `json:"name"`
	PeriodID      uuid.UUID        `json:"periodId"`
	Expenses      decimal.Decimal  `json:"expenses"`
	Contributions decimal.Decimal  `json:"contributions"`
	RealTotal     decimal.Decimal  `json:"realTotal"`
	Goal          *decimal.Decimal `json:"goal,omitempty"`
}

// LiquiditySummary holds the derived figures of a period
type LiquiditySummary struct {
	Period        *Period           `json:"period"`
	Categories    []CategorySummary `json:"categories"`
	Debt          decimal.Decimal   `json:"debt"`
	DebtPeriodID  *uuid.UUID        `json:"debtPeriodId,omitempty"`
	BaseLiquidity decimal.Decimal   `json:"baseLiquidity"`
	Liquidity     decimal.Decimal   `json:"liquidity"`
}
