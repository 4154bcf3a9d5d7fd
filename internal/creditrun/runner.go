// Package creditrun turns one validated monthly generation reading into
// confirmed EARNED ledger entries for every user holding capacity in the
// project. A run is idempotent: entries are keyed on the reading, so
// re-running a completed period creates nothing new.
package creditrun

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/solarshare/solarshare/internal/metrics"
	"github.com/solarshare/solarshare/pkg/engine"
	"github.com/solarshare/solarshare/pkg/ledger"
	"github.com/solarshare/solarshare/pkg/plant"
)

// ErrRunnerConfig is returned when a Runner is built without its dependencies.
var ErrRunnerConfig = fmt.Errorf("creditrun: invalid runner configuration")

// PlantDirectory is the slice of the plant service a run reads from.
type PlantDirectory interface {
	GetProject(ctx context.Context, projectID string) (plant.Project, error)
	ListAllocations(ctx context.Context, projectID string) ([]plant.CapacityAllocation, error)
	ValidatedReading(ctx context.Context, projectID string, month, year int) (plant.GenerationReading, error)
}

// CreditLedger is the slice of the ledger service a run writes through.
type CreditLedger interface {
	CreateEntry(ctx context.Context, input ledger.EntryInput) (string, error)
	GetEntry(ctx context.Context, entryID string) (ledger.Entry, error)
	ConfirmEntry(ctx context.Context, entryID string) error
}

// UserOutcome is the result of one user's share of a run. AlreadyPosted marks
// a user whose entry was confirmed by an earlier run of the same reading; no
// row was written for them this time.
type UserOutcome struct {
	UserID        string
	EntryID       string
	AmountCents   ledger.AmountCents
	Skipped       bool
	AlreadyPosted bool
	Err           error
}

// RunReport summarizes one credit run. A run with failures still posts
// credits for every user whose calculation and ledger writes succeeded.
type RunReport struct {
	ProjectID      string
	Month          int
	Year           int
	GenerationKwh  decimal.Decimal
	FormulaVersion string
	PostedCents    int64
	Posted         int
	AlreadyPosted  int
	Skipped        int
	Failed         int
	Outcomes       []UserOutcome
}

// Runner orchestrates monthly credit runs.
type Runner struct {
	plants  PlantDirectory
	credits CreditLedger
	metrics *metrics.Metrics
	logger  *zap.Logger
}

// RunnerOption configures optional Runner collaborators.
type RunnerOption func(*Runner)

// WithMetrics attaches Prometheus collectors to the runner.
func WithMetrics(collectors *metrics.Metrics) RunnerOption {
	return func(runner *Runner) {
		runner.metrics = collectors
	}
}

// WithLogger replaces the runner's no-op logger.
func WithLogger(logger *zap.Logger) RunnerOption {
	return func(runner *Runner) {
		if logger != nil {
			runner.logger = logger
		}
	}
}

// NewRunner builds a Runner over the plant directory and credit ledger.
func NewRunner(plants PlantDirectory, credits CreditLedger, options ...RunnerOption) (*Runner, error) {
	if plants == nil {
		return nil, fmt.Errorf("%w: plant directory is required", ErrRunnerConfig)
	}
	if credits == nil {
		return nil, fmt.Errorf("%w: credit ledger is required", ErrRunnerConfig)
	}
	runner := &Runner{
		plants:  plants,
		credits: credits,
		logger:  zap.NewNop(),
	}
	for _, option := range options {
		option(runner)
	}
	return runner, nil
}

type calculationMetadata struct {
	UserShare      string `json:"user_share"`
	UserGeneration string `json:"user_generation_kwh"`
	GenerationKwh  string `json:"project_generation_kwh"`
	TariffPerKwh   string `json:"tariff_per_kwh"`
}

// Run distributes one month's validated generation as confirmed credits.
// The reading must have passed validation first; a missing or unvalidated
// reading aborts the run before any ledger write. Per-user calculation
// failures never abort the run.
func (runner *Runner) Run(ctx context.Context, projectID string, month, year int) (RunReport, error) {
	project, err := runner.plants.GetProject(ctx, projectID)
	if err != nil {
		return RunReport{}, err
	}
	reading, err := runner.plants.ValidatedReading(ctx, projectID, month, year)
	if err != nil {
		return RunReport{}, err
	}
	allocations, err := runner.plants.ListAllocations(ctx, projectID)
	if err != nil {
		return RunReport{}, err
	}

	report := RunReport{
		ProjectID:      projectID,
		Month:          month,
		Year:           year,
		GenerationKwh:  reading.Kwh,
		FormulaVersion: engine.FormulaVersion,
	}
	if len(allocations) == 0 {
		runner.logger.Info("credit run found no allocations",
			zap.String("project_id", projectID),
			zap.Int("month", month),
			zap.Int("year", year),
		)
		runner.metrics.ObserveCreditRun(metrics.OutcomeSkipped, 0)
		return report, nil
	}

	users := make([]engine.BatchUser, 0, len(allocations))
	for _, allocation := range allocations {
		users = append(users, engine.BatchUser{UserID: allocation.UserID, UserKw: allocation.Kw})
	}
	results := engine.BatchCalculateCredits(users, engine.BatchParams{
		TotalProjectKw: project.TotalKw,
		GenerationKwh:  reading.Kwh,
		Rate:           project.TariffPerKwh,
		Month:          month,
		Year:           year,
	})

	readingRef := fmt.Sprintf("%s:%04d-%02d", projectID, year, month)
	for _, result := range results {
		outcome := runner.postUserCredits(ctx, readingRef, result, reading.Kwh, project.TariffPerKwh)
		switch {
		case outcome.Err != nil:
			report.Failed++
			runner.metrics.ObserveCreditRunUser(metrics.OutcomeError)
			runner.logger.Error("credit run user failed",
				zap.String("project_id", projectID),
				zap.String("user_id", outcome.UserID),
				zap.Error(outcome.Err),
			)
		case outcome.Skipped:
			report.Skipped++
			runner.metrics.ObserveCreditRunUser(metrics.OutcomeSkipped)
		case outcome.AlreadyPosted:
			report.AlreadyPosted++
			runner.metrics.ObserveCreditRunUser(metrics.OutcomeSkipped)
		default:
			report.Posted++
			report.PostedCents += outcome.AmountCents.Int64()
			runner.metrics.ObserveCreditRunUser(metrics.OutcomeOK)
		}
		report.Outcomes = append(report.Outcomes, outcome)
	}

	runOutcome := metrics.OutcomeOK
	if report.Failed > 0 {
		runOutcome = metrics.OutcomeError
	}
	runner.metrics.ObserveCreditRun(runOutcome, report.PostedCents)
	runner.logger.Info("credit run completed",
		zap.String("project_id", projectID),
		zap.Int("month", month),
		zap.Int("year", year),
		zap.Int("posted", report.Posted),
		zap.Int("already_posted", report.AlreadyPosted),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int64("posted_cents", report.PostedCents),
	)
	return report, nil
}

func (runner *Runner) postUserCredits(
	ctx context.Context,
	readingRef string,
	result engine.UserResult,
	generationKwh decimal.Decimal,
	tariff decimal.Decimal,
) UserOutcome {
	outcome := UserOutcome{UserID: result.UserID}
	if result.Err != nil {
		outcome.Err = result.Err
		return outcome
	}

	cents, err := ledger.AmountCentsFromDecimal(result.Result.CreditAmount)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	if cents == 0 {
		outcome.Skipped = true
		return outcome
	}

	metadata, err := json.Marshal(calculationMetadata{
		UserShare:      result.Result.Details.UserShare.String(),
		UserGeneration: result.Result.Details.UserGeneration.String(),
		GenerationKwh:  generationKwh.String(),
		TariffPerKwh:   tariff.String(),
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}

	entryID, err := runner.credits.CreateEntry(ctx, ledger.EntryInput{
		UserID:         result.UserID,
		Type:           ledger.EntryEarned,
		AmountCents:    cents,
		Month:          result.Result.Month,
		Year:           result.Result.Year,
		RefID:          readingRef,
		RefType:        ledger.RefGeneration,
		Description:    fmt.Sprintf("solar generation credits for %04d-%02d", result.Result.Year, result.Result.Month),
		FormulaVersion: result.Result.FormulaVersion,
		MetadataJSON:   string(metadata),
	})
	if err != nil {
		outcome.Err = err
		return outcome
	}

	// CreateEntry dedups on the reading key, so a re-run hands back the entry
	// id from the previous run. A confirmed entry means nothing was written
	// this time and the total must not count it again.
	entry, err := runner.credits.GetEntry(ctx, entryID)
	if err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.EntryID = entryID
	if entry.Status == ledger.StatusConfirmed {
		outcome.AlreadyPosted = true
		outcome.AmountCents = entry.AmountCents
		return outcome
	}

	if err := runner.credits.ConfirmEntry(ctx, entryID); err != nil {
		outcome.Err = err
		return outcome
	}
	outcome.AmountCents = cents
	return outcome
}
