// Package models defines the data structures for the case disposition engine.
package models

import (
	"time"
)

// RecommendationTier is the fixed bucket a match score falls into.
type RecommendationTier string

const (
	TierHighlyRecommended RecommendationTier = "highly_recommended"
	TierRecommended       RecommendationTier = "recommended"
	TierSuitable          RecommendationTier = "suitable"
	TierNotSuitable       RecommendationTier = "not_suitable"
)

// TierForScore maps a 0-100 score to its tier. Lower bounds are inclusive.
func TierForScore(score int) RecommendationTier {
	switch {
	case score >= 80:
		return TierHighlyRecommended
	case score >= 60:
		return TierRecommended
	case score >= 40:
		return TierSuitable
	default:
		return TierNotSuitable
	}
}

// SubScores holds the five independent criterion scores, each within [0, 100].
type SubScores struct {
	Region      float64 `json:"region"`
	Capacity    float64 `json:"capacity"`
	Performance float64 `json:"performance"`
	Specialty   float64 `json:"specialty"`
	Cost        float64 `json:"cost"`
}

// MatchResult is the score and explanation for one (batch, organization) pair.
type MatchResult struct {
	BatchID          string             `json:"batch_id"`
	OrganizationID   string             `json:"organization_id"`
	OrganizationName string             `json:"organization_name"`
	Organization     *Organization      `json:"-"`
	Score            int                `json:"score"`
	SubScores        SubScores          `json:"sub_scores"`
	Reasons          []string           `json:"reasons"`
	Tier             RecommendationTier `json:"tier"`
}

// WeightVector controls how sub-scores are combined. Components nominally sum to 100.
type WeightVector struct {
	Region      float64 `json:"region"`
	Performance float64 `json:"performance"`
	Capacity    float64 `json:"capacity"`
	Specialty   float64 `json:"specialty"`
	Cost        float64 `json:"cost"`
}

// DefaultWeights returns the weight vector used when none is configured.
func DefaultWeights() WeightVector {
	return WeightVector{
		Region:      30,
		Performance: 25,
		Capacity:    20,
		Specialty:   15,
		Cost:        10,
	}
}

// Total returns the sum of all weights.
func (w WeightVector) Total() float64 {
	return w.Region + w.Performance + w.Capacity + w.Specialty + w.Cost
}

// ConstraintSet controls the assignment planner.
// MaxCasesPerOrg of zero means no per-organization cap.
type ConstraintSet struct {
	MinMatchScore  int     `json:"min_match_score"`
	MaxCasesPerOrg int     `json:"max_cases_per_org"`
	MaxLoadRate    float64 `json:"max_load_rate"`
}

// DefaultConstraints returns the constraint set used when none is configured.
func DefaultConstraints() ConstraintSet {
	return ConstraintSet{
		MinMatchScore:  60,
		MaxCasesPerOrg: 50,
		MaxLoadRate:    90,
	}
}

// Assignment maps a subset of one batch's cases to one organization.
type Assignment struct {
	BatchID          string   `json:"batch_id"`
	OrganizationID   string   `json:"organization_id"`
	OrganizationName string   `json:"organization_name"`
	CaseIDs          []string `json:"case_ids"`
	CaseCount        int      `json:"case_count"`
	TotalAmount      float64  `json:"total_amount"`
	MatchScore       int      `json:"match_score"`
}

// UnassignedCase records a case the planner could not place.
type UnassignedCase struct {
	BatchID string  `json:"batch_id"`
	CaseID  string  `json:"case_id"`
	Amount  float64 `json:"amount"`
	Reason  string  `json:"reason"`
}

// OrgStats holds the running statistics for one organization within a plan.
type OrgStats struct {
	OrganizationID    string  `json:"organization_id"`
	OrganizationName  string  `json:"organization_name"`
	AssignedCount     int     `json:"assigned_count"`
	TotalAmount       float64 `json:"total_amount"`
	AverageScore      float64 `json:"average_score"`
	ProjectedLoadRate float64 `json:"projected_load_rate"`
}

// AssignmentPlan is the planner output for a set of batches against a candidate pool.
type AssignmentPlan struct {
	ID              string           `json:"id"`
	Assignments     []Assignment     `json:"assignments"`
	UnassignedCases []UnassignedCase `json:"unassigned_cases"`
	OrgStats        []OrgStats       `json:"org_stats"`
	TotalCases      int              `json:"total_cases"`
	AssignedCases   int              `json:"assigned_cases"`
	SuccessRate     float64          `json:"success_rate"`
	Constraints     ConstraintSet    `json:"constraints"`
	Warnings        []Warning        `json:"warnings,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
}

// AssignmentsFor returns the assignments placed with one organization.
func (p *AssignmentPlan) AssignmentsFor(orgID string) []Assignment {
	var out []Assignment
	for _, a := range p.Assignments {
		if a.OrganizationID == orgID {
			out = append(out, a)
		}
	}
	return out
}

// PlanSummary provides summary statistics for a plan.
type PlanSummary struct {
	PlanID             string  `json:"plan_id"`
	TotalCases         int     `json:"total_cases"`
	AssignedCases      int     `json:"assigned_cases"`
	UnassignedCases    int     `json:"unassigned_cases"`
	OrganizationsUsed  int     `json:"organizations_used"`
	SuccessRate        float64 `json:"success_rate"`
	ProcessingTimeMs   int64   `json:"processing_time_ms"`
	ConfigurationNotes int     `json:"configuration_notes"`
}

// Summary builds a PlanSummary for the plan.
func (p *AssignmentPlan) Summary(elapsed time.Duration) PlanSummary {
	return PlanSummary{
		PlanID:             p.ID,
		TotalCases:         p.TotalCases,
		AssignedCases:      p.AssignedCases,
		UnassignedCases:    len(p.UnassignedCases),
		OrganizationsUsed:  len(p.OrgStats),
		SuccessRate:        p.SuccessRate,
		ProcessingTimeMs:   elapsed.Milliseconds(),
		ConfigurationNotes: len(p.Warnings),
	}
}

// Warning is a non-fatal note attached to a result, e.g. a weight vector not summing to 100.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Warning codes.
const (
	WarningWeightsNotNormalized = "WEIGHTS_NOT_NORMALIZED"
	WarningUnassignedCases      = "UNASSIGNED_CASES"
	WarningNoEligibleOrgs       = "NO_ELIGIBLE_ORGANIZATIONS"
)
