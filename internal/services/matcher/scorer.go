package matcher

import (
	"case-disposition-engine/internal/models"
)

const (
	fullScore    = 100.0
	partialScore = 50.0
	// ratingScale maps a 0-5 rating onto 0-100.
	ratingScale = 20.0
)

// ScoreRegion returns 100 when the batch's regions intersect the organization's service regions, else 0.
func ScoreRegion(batch *models.CaseBatch, org *models.Organization) float64 {
	if models.Overlaps(batch.Regions, org.ServiceRegions) {
		return fullScore
	}
	return 0
}

// ScoreCapacity compares the organization's available capacity with what the batch requires.
// A batch without a capacity requirement scores 100.
func ScoreCapacity(batch *models.CaseBatch, org *models.Organization) float64 {
	if batch.MinCapacityRequired <= 0 {
		return fullScore
	}
	return clamp(fullScore * org.AvailableCapacity() / batch.MinCapacityRequired)
}

// ScorePerformance averages the recovery rate with the 0-5 rating scaled to 0-100.
func ScorePerformance(org *models.Organization) float64 {
	perf := org.Performance
	return clamp((perf.RecoveryRate + perf.Rating*ratingScale) / 2)
}

// ScoreSpecialty returns 100 when the batch's business types intersect the organization's business scope, else 0.
func ScoreSpecialty(batch *models.CaseBatch, org *models.Organization) float64 {
	if models.Overlaps(batch.BusinessTypes, org.BusinessScope) {
		return fullScore
	}
	return 0
}

// ScoreCost returns 100 when a preferred settlement method is offered, else 50.
// A mismatch still earns partial credit, unlike region and specialty.
func ScoreCost(batch *models.CaseBatch, org *models.Organization) float64 {
	if models.Overlaps(batch.PreferredSettlementMethods, org.SettlementMethods) {
		return fullScore
	}
	return partialScore
}

// ScoreAll computes every criterion for one (batch, organization) pair.
func ScoreAll(batch *models.CaseBatch, org *models.Organization) models.SubScores {
	return models.SubScores{
		Region:      ScoreRegion(batch, org),
		Capacity:    ScoreCapacity(batch, org),
		Performance: ScorePerformance(org),
		Specialty:   ScoreSpecialty(batch, org),
		Cost:        ScoreCost(batch, org),
	}
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > fullScore {
		return fullScore
	}
	return score
}
