package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/dafibh/ledgerflow/internal/domain"
	"github.com/dafibh/ledgerflow/internal/repository/postgres"
	"github.com/dafibh/ledgerflow/internal/service"
	"github.com/dafibh/ledgerflow/internal/util"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// app holds the services a command needs; close releases the pool
type app struct {
	pool       *pgxpool.Pool
	periodRepo domain.PeriodRepository
	periods    *service.PeriodService
	liquidity  *service.LiquidityService
}

func newApp(ctx context.Context) (*app, error) {
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	periodRepo := postgres.NewPeriodRepository(pool)
	expenseRepo := postgres.NewExpenseRepository(pool)
	contributionRepo := postgres.NewContributionRepository(pool)
	categoryRepo := postgres.NewCategoryRepository(pool)

	aggregator := service.NewLedgerAggregator(expenseRepo, contributionRepo)
	rollover := service.NewRolloverService(expenseRepo, contributionRepo)
	periods := service.NewPeriodService(periodRepo, rollover, aggregator, nil)
	periods.SetTemplateService(service.NewTemplateService(postgres.NewTemplateRepository(pool), expenseRepo, categoryRepo, nil))

	return &app{
		pool:       pool,
		periodRepo: periodRepo,
		periods:    periods,
		liquidity:  service.NewLiquidityService(periodRepo, aggregator, service.NewCategoryService(categoryRepo)),
	}, nil
}

func (a *app) close() {
	a.pool.Close()
}

// target resolves the --owner and --kind flags
func target() (uuid.UUID, domain.PeriodKind, error) {
	if ownerFlag == "" {
		return uuid.Nil, "", errors.New("--owner is required")
	}
	ownerID, err := uuid.Parse(ownerFlag)
	if err != nil || ownerID == uuid.Nil {
		return uuid.Nil, "", fmt.Errorf("invalid --owner %q", ownerFlag)
	}
	kind := domain.PeriodKind(kindFlag)
	if !kind.Valid() {
		return uuid.Nil, "", fmt.Errorf("invalid --kind %q", kindFlag)
	}
	return ownerID, kind, nil
}

func rollCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "roll",
		Short: "Close an expired active period and roll its fixed entries into the current one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ownerID, kind, err := target()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			period, err := a.periods.GetOrCreateActive(cmd.Context(), ownerID, kind)
			if err != nil {
				return err
			}
			printPeriods(cmd.OutOrStdout(), []*domain.Period{period})
			return nil
		},
	}
}

func closeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close",
		Short: "Close a period (the active one unless --period is given)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ownerID, kind, err := target()
			if err != nil {
				return err
			}
			periodFlag, _ := cmd.Flags().GetString("period")
			cutoffDay, _ := cmd.Flags().GetInt("cutoff-day")

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			period, err := resolvePeriod(cmd.Context(), a.periods, ownerID, kind, periodFlag)
			if err != nil {
				return err
			}

			var endDate *time.Time
			if cutoffDay > 0 {
				end := cutoffEndDate(period, cutoffDay)
				endDate = &end
			}

			closed, err := a.periods.ClosePeriod(cmd.Context(), ownerID, period.ID, endDate)
			if err != nil {
				return err
			}
			log.Info().Str("period_id", closed.ID.String()).Msg("Period closed")
			printPeriods(cmd.OutOrStdout(), []*domain.Period{closed})
			return nil
		},
	}
	cmd.Flags().String("period", "", "period id to close")
	cmd.Flags().Int("cutoff-day", 0, "close on this day of the period's first month (clamped to the month length)")
	return cmd
}

func repairCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "repair",
		Short: "Realign the active period with the calendar and copy missing fixed entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ownerID, kind, err := target()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			report, err := a.periods.RepairActive(cmd.Context(), ownerID, kind)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printPeriods(out, []*domain.Period{report.Period})
			fmt.Fprintf(out, "\nbounds fixed: %t, salary recovered: %t, goals recovered: %t\n",
				report.BoundsFixed, report.SalaryRecovered, report.GoalsRecovered)
			if report.Rollover != nil {
				fmt.Fprintf(out, "copied %d expenses and %d contributions (%d already present)\n",
					report.Rollover.ExpensesCopied, report.Rollover.ContributionsCopied, report.Rollover.AlreadyCopied)
			}
			if report.Templates != nil && len(report.Templates.Created) > 0 {
				fmt.Fprintf(out, "applied %d expense templates\n", len(report.Templates.Created))
			}
			return nil
		},
	}
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Roll every expired active period across all owners",
		RunE: func(cmd *cobra.Command, _ []string) error {
			batch, _ := cmd.Flags().GetInt("batch")

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			worker := service.NewRolloverWorker(a.periods, a.periodRepo, log.Logger, service.RolloverWorkerConfig{BatchSize: batch})
			result := worker.Sweep(cmd.Context())
			fmt.Fprintf(cmd.OutOrStdout(), "expired: %d, rolled: %d, failed: %d\n", result.Expired, result.Rolled, result.Failed)
			if result.Failed > 0 {
				return fmt.Errorf("%d periods failed to roll", result.Failed)
			}
			return nil
		},
	}
	cmd.Flags().Int("batch", 500, "max expired periods handled in one run")
	return cmd
}

func summaryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the liquidity summary of a period",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ownerID, kind, err := target()
			if err != nil {
				return err
			}
			periodFlag, _ := cmd.Flags().GetString("period")

			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			period, err := resolvePeriod(cmd.Context(), a.periods, ownerID, kind, periodFlag)
			if err != nil {
				return err
			}
			summary, err := a.liquidity.ComputeLiquidity(cmd.Context(), ownerID, period.ID)
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			return nil
		},
	}
	cmd.Flags().String("period", "", "period id (defaults to the active period)")
	return cmd
}

func resolvePeriod(ctx context.Context, periods *service.PeriodService, ownerID uuid.UUID, kind domain.PeriodKind, periodFlag string) (*domain.Period, error) {
	if periodFlag == "" {
		return periods.GetOrCreateActive(ctx, ownerID, kind)
	}
	id, err := uuid.Parse(periodFlag)
	if err != nil {
		return nil, fmt.Errorf("invalid --period %q", periodFlag)
	}
	return periods.GetPeriod(ctx, ownerID, id)
}

// cutoffEndDate returns the end of the cutoff day in the month the period starts in
func cutoffEndDate(period *domain.Period, day int) time.Time {
	start := period.StartDate
	return util.EndOfDay(util.CalculateActualDate(start.Year(), start.Month(), day, start.Location()))
}

func printPeriods(out io.Writer, periods []*domain.Period) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tSTATE\tSTART\tEND\tSALARY\tSPENT\tROLLOVER")
	for _, p := range periods {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ID, p.Kind, p.State,
			p.StartDate.Format("2006-01-02"), p.EndDate.Format("2006-01-02"),
			p.Salary.StringFixed(2), p.TotalSpent.StringFixed(2), p.RolloverStatus)
	}
	_ = w.Flush()
}

func printSummary(out io.Writer, s *domain.LiquiditySummary) {
	printPeriods(out, []*domain.Period{s.Period})
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CATEGORY\tEXPENSES\tCONTRIBUTIONS\tREAL\tGOAL")
	for _, row := range s.Categories {
		goal := "-"
		if row.Goal != nil {
			goal = row.Goal.StringFixed(2)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			row.Name, row.Expenses.StringFixed(2), row.Contributions.StringFixed(2), row.RealTotal.StringFixed(2), goal)
	}
	_ = w.Flush()

	fmt.Fprintf(out, "\ndebt: %s\nbase liquidity: %s\nliquidity: %s\n",
		s.Debt.StringFixed(2), s.BaseLiquidity.StringFixed(2), s.Liquidity.StringFixed(2))
}
