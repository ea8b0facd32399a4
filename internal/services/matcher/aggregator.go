package matcher

import (
	"fmt"
	"math"
	"sort"

	"case-disposition-engine/internal/models"
)

// recoveryRateReasonThreshold is the recovery rate above which performance is called out as a reason.
const recoveryRateReasonThreshold = 65.0

// Reason strings attached to a MatchResult, in criterion order.
const (
	ReasonRegion      = "Service regions cover the case package"
	ReasonCapacity    = "Sufficient available monthly capacity"
	ReasonSpecialty   = "Business scope matches the case types"
	ReasonPerformance = "Historical recovery rate above 65%"
)

// Aggregate combines sub-scores as Σ(subscore × weight) / 100, rounded to the nearest integer.
// Weights are applied literally: a vector that does not sum to 100 is not renormalized.
func Aggregate(sub models.SubScores, w models.WeightVector) int {
	total := sub.Region*w.Region +
		sub.Performance*w.Performance +
		sub.Capacity*w.Capacity +
		sub.Specialty*w.Specialty +
		sub.Cost*w.Cost
	return int(math.Round(total / 100))
}

// CheckWeights reports a configuration warning when the weights do not sum to 100.
// In strict mode the same condition is returned as a validation error instead.
func CheckWeights(w models.WeightVector, strict bool) ([]models.Warning, error) {
	if err := models.ValidateWeights(w); err != nil {
		return nil, err
	}

	total := w.Total()
	if math.Abs(total-100) < 1e-9 {
		return nil, nil
	}

	if strict {
		return nil, models.ValidationErrors{{
			Field: "weights",
			Err:   fmt.Errorf("%w: weights sum to %g, expected 100", models.ErrInvalidWeight, total),
		}}
	}

	return []models.Warning{{
		Code:    models.WarningWeightsNotNormalized,
		Message: fmt.Sprintf("weights sum to %g instead of 100; scores use the literal weights", total),
	}}, nil
}

// Evaluate scores one (batch, organization) pair without the eligibility pre-filter.
func Evaluate(batch *models.CaseBatch, org *models.Organization, w models.WeightVector) models.MatchResult {
	sub := ScoreAll(batch, org)
	score := Aggregate(sub, w)

	return models.MatchResult{
		BatchID:          batch.ID,
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Organization:     org,
		Score:            score,
		SubScores:        sub,
		Reasons:          buildReasons(sub, org),
		Tier:             models.TierForScore(score),
	}
}

// Rank scores every eligible organization against the batch and orders the results by
// score descending, then organization id ascending. Organizations that are not active,
// or whose membership has expired, are left out entirely.
func Rank(batch *models.CaseBatch, orgs []*models.Organization, w models.WeightVector) []models.MatchResult {
	results := make([]models.MatchResult, 0, len(orgs))
	for _, org := range orgs {
		if org == nil || !org.IsEligible() {
			continue
		}
		results = append(results, Evaluate(batch, org, w))
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].OrganizationID < results[j].OrganizationID
	})

	return results
}

func buildReasons(sub models.SubScores, org *models.Organization) []string {
	reasons := make([]string, 0, 4)
	if sub.Region > 0 {
		reasons = append(reasons, ReasonRegion)
	}
	if sub.Capacity >= fullScore {
		reasons = append(reasons, ReasonCapacity)
	}
	if sub.Specialty > 0 {
		reasons = append(reasons, ReasonSpecialty)
	}
	if org.Performance.RecoveryRate > recoveryRateReasonThreshold {
		reasons = append(reasons, ReasonPerformance)
	}
	return reasons
}
