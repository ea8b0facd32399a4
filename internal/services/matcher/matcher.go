// Package matcher implements the case package to disposal organization matching pipeline
package matcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"case-disposition-engine/internal/config"
	"case-disposition-engine/internal/metrics"
	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/utils"
)

// MatcherService runs the score -> rank -> plan pipeline with one weight vector and constraint set
type MatcherService struct {
	weights     models.WeightVector
	constraints models.ConstraintSet
	strict      bool
	workers     int
	logger      *zap.Logger
	newID       func() string
	now         func() time.Time
}

// Option customizes a MatcherService
type Option func(*MatcherService)

// WithStrictWeights turns a weight vector that does not sum to 100 into a validation error
func WithStrictWeights(strict bool) Option {
	return func(m *MatcherService) { m.strict = strict }
}

// WithScoringWorkers sets how many batches are scored concurrently
func WithScoringWorkers(n int) Option {
	return func(m *MatcherService) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithLogger replaces the global logger
func WithLogger(l *zap.Logger) Option {
	return func(m *MatcherService) { m.logger = l }
}

// WithIDGenerator replaces the plan id generator
func WithIDGenerator(fn func() string) Option {
	return func(m *MatcherService) { m.newID = fn }
}

// WithClock replaces the clock used to stamp plans
func WithClock(fn func() time.Time) Option {
	return func(m *MatcherService) { m.now = fn }
}

// MatchOutcome is the ranked candidate list for one batch
type MatchOutcome struct {
	BatchID  string               `json:"batch_id"`
	Results  []models.MatchResult `json:"results"`
	Excluded int                  `json:"excluded"`
	Warnings []models.Warning     `json:"warnings,omitempty"`
}

// PlanningResult contains the complete result of planning a set of batches
type PlanningResult struct {
	Plan                  *models.AssignmentPlan          `json:"plan"`
	Rankings              map[string][]models.MatchResult `json:"rankings"`
	TotalBatches          int                             `json:"total_batches"`
	TotalOrganizations    int                             `json:"total_organizations"`
	EligibleOrganizations int                             `json:"eligible_organizations"`
	PairsScored           int                             `json:"pairs_scored"`
	ProcessingTime        time.Duration                   `json:"processing_time"`
}

// New creates a matcher service with explicit weights and constraints
func New(weights models.WeightVector, constraints models.ConstraintSet, opts ...Option) *MatcherService {
	m := &MatcherService{
		weights:     weights,
		constraints: constraints,
		workers:     1,
		logger:      utils.Component("matcher"),
		newID:       uuid.NewString,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// NewMatcherService creates a matcher service from application configuration
func NewMatcherService(cfg *config.Config) *MatcherService {
	return New(cfg.Weights(), cfg.Constraints(),
		WithStrictWeights(cfg.StrictWeights),
		WithScoringWorkers(cfg.ScoringWorkers),
	)
}

// Weights returns the configured weight vector
func (m *MatcherService) Weights() models.WeightVector {
	return m.weights
}

// Constraints returns the configured constraint set
func (m *MatcherService) Constraints() models.ConstraintSet {
	return m.constraints
}

// WithOverrides returns a copy of the service using the given weights and/or constraints.
// Nil arguments keep the current values.
func (m *MatcherService) WithOverrides(weights *models.WeightVector, constraints *models.ConstraintSet) *MatcherService {
	clone := *m
	if weights != nil {
		clone.weights = *weights
	}
	if constraints != nil {
		clone.constraints = *constraints
	}
	return &clone
}

// Match ranks the candidate organizations for one batch
func (m *MatcherService) Match(ctx context.Context, batch *models.CaseBatch, orgs []*models.Organization) (*MatchOutcome, error) {
	warnings, err := m.validate([]*models.CaseBatch{batch}, orgs, false)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := Rank(batch, orgs, m.weights)
	metrics.MatchesScoredTotal.Add(float64(len(results)))

	m.logger.Info("Ranked organizations for case package",
		utils.BatchID(batch.ID),
		utils.Int("cases", batch.CaseCount),
		utils.Int("candidates", len(orgs)),
		utils.Int("eligible", len(results)),
	)

	if len(results) == 0 {
		warnings = append(warnings, models.Warning{
			Code:    models.WarningNoEligibleOrgs,
			Message: "no active organization with an active membership is available",
		})
	}

	return &MatchOutcome{
		BatchID:  batch.ID,
		Results:  results,
		Excluded: len(orgs) - len(results),
		Warnings: warnings,
	}, nil
}

// PlanAssignments ranks every batch against the pool and builds one assignment plan.
// Scoring runs on up to the configured number of workers; placement is sequential in batch order.
func (m *MatcherService) PlanAssignments(ctx context.Context, batches []*models.CaseBatch, orgs []*models.Organization) (*PlanningResult, error) {
	startTime := time.Now()

	warnings, err := m.validate(batches, orgs, true)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Starting assignment planning",
		utils.Int("batches", len(batches)),
		utils.Int("organizations", len(orgs)),
		utils.Int("workers", m.workers),
	)

	// Stage 1: score and rank each batch independently
	rankings, err := m.rankAll(ctx, batches, orgs)
	if err != nil {
		return nil, err
	}

	ranked := make(map[string][]models.MatchResult, len(batches))
	pairs := 0
	for i, b := range batches {
		ranked[b.ID] = rankings[i]
		pairs += len(rankings[i])
	}
	metrics.MatchesScoredTotal.Add(float64(pairs))

	eligible := 0
	for _, o := range orgs {
		if o.IsEligible() {
			eligible++
		}
	}

	m.logger.Info("Stage 1 complete: scoring",
		utils.Int("pairs_scored", pairs),
		utils.Int("eligible_organizations", eligible),
	)

	// Stage 2: greedy placement under constraints
	plan, err := Plan(batches, ranked, m.constraints)
	if err != nil {
		m.recordValidationFailure(err)
		return nil, err
	}
	plan.ID = m.newID()
	plan.CreatedAt = m.now()
	plan.Warnings = append(warnings, plan.Warnings...)

	elapsed := time.Since(startTime)
	m.recordPlan(plan, elapsed)

	m.logger.Info("Assignment planning complete",
		utils.PlanID(plan.ID),
		utils.Int("total_cases", plan.TotalCases),
		utils.Int("assigned", plan.AssignedCases),
		utils.Int("unassigned", len(plan.UnassignedCases)),
		utils.Float64("success_rate", plan.SuccessRate),
		utils.Duration("processing_time", elapsed),
	)

	return &PlanningResult{
		Plan:                  plan,
		Rankings:              ranked,
		TotalBatches:          len(batches),
		TotalOrganizations:    len(orgs),
		EligibleOrganizations: eligible,
		PairsScored:           pairs,
		ProcessingTime:        elapsed,
	}, nil
}

// rankAll scores batches concurrently and returns the rankings in batch order
func (m *MatcherService) rankAll(ctx context.Context, batches []*models.CaseBatch, orgs []*models.Organization) ([][]models.MatchResult, error) {
	rankings := make([][]models.MatchResult, len(batches))

	if m.workers <= 1 || len(batches) <= 1 {
		for i, b := range batches {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			rankings[i] = Rank(b, orgs, m.weights)
		}
		return rankings, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)
	for i, b := range batches {
		i, b := i, b
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rankings[i] = Rank(b, orgs, m.weights)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to score batches: %w", err)
	}

	return rankings, nil
}

// validate checks all inputs before any scoring happens and returns configuration warnings
func (m *MatcherService) validate(batches []*models.CaseBatch, orgs []*models.Organization, withConstraints bool) ([]models.Warning, error) {
	var errs models.ValidationErrors
	collect := func(err error) {
		var ve models.ValidationErrors
		if errors.As(err, &ve) {
			errs = append(errs, ve...)
		}
	}

	warnings, err := CheckWeights(m.weights, m.strict)
	collect(err)
	if withConstraints {
		collect(models.ValidateConstraints(m.constraints))
	}
	collect(models.ValidateCaseBatches(batches))
	collect(models.ValidateOrganizations(orgs))

	if len(errs) > 0 {
		m.recordValidationFailure(errs)
		return nil, errs
	}

	for _, w := range warnings {
		metrics.ConfigurationWarningsTotal.WithLabelValues(w.Code).Inc()
		m.logger.Warn("Configuration warning", utils.String("code", w.Code), utils.String("message", w.Message))
	}
	return warnings, nil
}

func (m *MatcherService) recordValidationFailure(err error) {
	metrics.ValidationFailuresTotal.Inc()
	m.logger.Warn("Rejected matching input", utils.Error(err))
}

func (m *MatcherService) recordPlan(plan *models.AssignmentPlan, elapsed time.Duration) {
	outcome := "complete"
	switch {
	case plan.AssignedCases == 0:
		outcome = "empty"
	case len(plan.UnassignedCases) > 0:
		outcome = "partial"
	}

	metrics.PlansTotal.WithLabelValues(outcome).Inc()
	metrics.CasesAssignedTotal.Add(float64(plan.AssignedCases))
	metrics.CasesUnassignedTotal.Add(float64(len(plan.UnassignedCases)))
	metrics.LastSuccessRate.Set(plan.SuccessRate)
	metrics.PlanningDuration.Observe(elapsed.Seconds())
}
