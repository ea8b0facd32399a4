package matcher_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/services/matcher"
)

func TestAggregate_DefaultWeights(t *testing.T) {
	w := models.DefaultWeights()

	all := models.SubScores{Region: 100, Capacity: 100, Performance: 100, Specialty: 100, Cost: 100}
	assert.Equal(t, 100, matcher.Aggregate(all, w))
	assert.Equal(t, 0, matcher.Aggregate(models.SubScores{}, w))

	// 30 + 10 + 18.75 + 0 + 5 = 63.75
	mixed := models.SubScores{Region: 100, Capacity: 50, Performance: 75, Specialty: 0, Cost: 50}
	assert.Equal(t, 64, matcher.Aggregate(mixed, w))
}

func TestAggregate_BoundedWhenWeightsSumTo100(t *testing.T) {
	vectors := []models.WeightVector{
		models.DefaultWeights(),
		{Region: 100},
		{Region: 20, Performance: 20, Capacity: 20, Specialty: 20, Cost: 20},
		{Region: 0.5, Performance: 49.5, Capacity: 25, Specialty: 15, Cost: 10},
	}
	values := []float64{0, 0.4, 33.3, 50, 99.9, 100}

	for _, w := range vectors {
		for _, a := range values {
			for _, b := range values {
				sub := models.SubScores{Region: a, Capacity: b, Performance: a, Specialty: b, Cost: a}
				score := matcher.Aggregate(sub, w)
				assert.GreaterOrEqual(t, score, 0)
				assert.LessOrEqual(t, score, 100)
			}
		}
	}
}

func TestAggregate_NotRenormalized(t *testing.T) {
	w := models.WeightVector{Region: 50, Performance: 50, Capacity: 50, Specialty: 50, Cost: 50}
	all := models.SubScores{Region: 100, Capacity: 100, Performance: 100, Specialty: 100, Cost: 100}

	assert.Equal(t, 250, matcher.Aggregate(all, w))
}

func TestCheckWeights(t *testing.T) {
	t.Run("normalized", func(t *testing.T) {
		warnings, err := matcher.CheckWeights(models.DefaultWeights(), true)
		require.NoError(t, err)
		assert.Empty(t, warnings)
	})

	t.Run("not normalized warns", func(t *testing.T) {
		w := models.WeightVector{Region: 30, Performance: 30, Capacity: 30}
		warnings, err := matcher.CheckWeights(w, false)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Equal(t, models.WarningWeightsNotNormalized, warnings[0].Code)
	})

	t.Run("not normalized strict", func(t *testing.T) {
		w := models.WeightVector{Region: 30, Performance: 30, Capacity: 30}
		warnings, err := matcher.CheckWeights(w, true)
		require.Error(t, err)
		assert.Nil(t, warnings)
		assert.True(t, errors.Is(err, models.ErrValidation))
		assert.True(t, errors.Is(err, models.ErrInvalidWeight))
	})

	t.Run("out of range", func(t *testing.T) {
		w := models.WeightVector{Region: 120, Performance: -5}
		_, err := matcher.CheckWeights(w, false)
		require.Error(t, err)

		var ve models.ValidationErrors
		require.True(t, errors.As(err, &ve))
		assert.ElementsMatch(t, []string{"weights.region", "weights.performance"}, ve.Fields())
	})

	t.Run("all zero", func(t *testing.T) {
		_, err := matcher.CheckWeights(models.WeightVector{}, false)
		assert.True(t, errors.Is(err, models.ErrValidation))
	})
}

func TestTierForScore(t *testing.T) {
	tests := []struct {
		score    int
		expected models.RecommendationTier
	}{
		{100, models.TierHighlyRecommended},
		{80, models.TierHighlyRecommended},
		{79, models.TierRecommended},
		{60, models.TierRecommended},
		{59, models.TierSuitable},
		{40, models.TierSuitable},
		{39, models.TierNotSuitable},
		{0, models.TierNotSuitable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, models.TierForScore(tt.score), "score %d", tt.score)
	}
}

func TestEvaluate_Reasons(t *testing.T) {
	t.Run("all criteria contribute", func(t *testing.T) {
		batch := mockBatch("b1", 2, nil)
		org := mockOrg("org-1", map[string]interface{}{"recovery_rate": float64(70)})

		result := matcher.Evaluate(batch, org, models.DefaultWeights())
		assert.Equal(t, []string{
			matcher.ReasonRegion,
			matcher.ReasonCapacity,
			matcher.ReasonSpecialty,
			matcher.ReasonPerformance,
		}, result.Reasons)
	})

	t.Run("recovery at threshold is not a reason", func(t *testing.T) {
		batch := mockBatch("b1", 2, map[string]interface{}{"region": "south"})
		org := mockOrg("org-1", map[string]interface{}{"recovery_rate": float64(65)})

		result := matcher.Evaluate(batch, org, models.DefaultWeights())
		assert.Equal(t, []string{matcher.ReasonCapacity, matcher.ReasonSpecialty}, result.Reasons)
	})

	t.Run("partial capacity is not a reason", func(t *testing.T) {
		batch := mockBatch("b1", 2, map[string]interface{}{
			"min_capacity_required": float64(800),
			"business_type":         "mortgage",
		})
		org := mockOrg("org-1", map[string]interface{}{"current_load": float64(50)})

		result := matcher.Evaluate(batch, org, models.DefaultWeights())
		assert.Equal(t, []string{matcher.ReasonRegion}, result.Reasons)
	})
}

func TestEvaluate_ScoreAndTier(t *testing.T) {
	batch := mockBatch("b1", 2, nil)
	org := mockOrg("org-1", nil)

	// region 30 + capacity 20 + performance 15 + specialty 15 + cost 5
	result := matcher.Evaluate(batch, org, models.DefaultWeights())
	assert.Equal(t, 85, result.Score)
	assert.Equal(t, models.TierHighlyRecommended, result.Tier)
	assert.Equal(t, "b1", result.BatchID)
	assert.Equal(t, "org-1", result.OrganizationID)
	assert.Same(t, org, result.Organization)
}

func TestRank_TieBrokenByOrganizationID(t *testing.T) {
	batch := mockBatch("b1", 2, nil)
	orgs := []*models.Organization{
		mockOrg("org-2", nil),
		mockOrg("org-1", nil),
	}

	results := matcher.Rank(batch, orgs, models.DefaultWeights())
	require.Len(t, results, 2)
	assert.Equal(t, 85, results[0].Score)
	assert.Equal(t, 85, results[1].Score)
	assert.Equal(t, "org-1", results[0].OrganizationID)
	assert.Equal(t, "org-2", results[1].OrganizationID)
}

func TestRank_OrderedByScore(t *testing.T) {
	batch := mockBatch("b1", 2, nil)
	orgs := []*models.Organization{
		mockOrg("org-a", map[string]interface{}{"service_regions": []string{"south"}}),
		mockOrg("org-b", nil),
		mockOrg("org-c", map[string]interface{}{"recovery_rate": float64(100), "rating": float64(5)}),
	}

	results := matcher.Rank(batch, orgs, models.DefaultWeights())
	require.Len(t, results, 3)
	assert.Equal(t, "org-c", results[0].OrganizationID)
	assert.Equal(t, "org-b", results[1].OrganizationID)
	assert.Equal(t, "org-a", results[2].OrganizationID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestRank_ExcludesIneligible(t *testing.T) {
	batch := mockBatch("b1", 2, nil)
	orgs := []*models.Organization{
		mockOrg("org-busy", map[string]interface{}{"status": models.OperatingStatusBusy}),
		mockOrg("org-full", map[string]interface{}{"status": models.OperatingStatusFull}),
		mockOrg("org-expired", map[string]interface{}{"membership_status": models.MembershipStatusExpired}),
		mockOrg("org-ok", nil),
		nil,
	}

	results := matcher.Rank(batch, orgs, models.DefaultWeights())
	require.Len(t, results, 1)
	assert.Equal(t, "org-ok", results[0].OrganizationID)
}

func TestRank_Deterministic(t *testing.T) {
	batch := mockBatch("b1", 4, nil)
	orgs := []*models.Organization{
		mockOrg("org-3", nil),
		mockOrg("org-1", map[string]interface{}{"current_load": float64(40)}),
		mockOrg("org-2", nil),
		mockOrg("org-4", map[string]interface{}{"settlement_methods": []string{"HALF_RISK"}}),
	}

	first := matcher.Rank(batch, orgs, models.DefaultWeights())
	second := matcher.Rank(batch, orgs, models.DefaultWeights())
	assert.Equal(t, first, second)
}
