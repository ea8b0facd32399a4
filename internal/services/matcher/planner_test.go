package matcher_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/services/matcher"
)

// rankAll ranks every batch against the pool with the default weights
func rankAll(batches []*models.CaseBatch, orgs []*models.Organization) map[string][]models.MatchResult {
	ranked := make(map[string][]models.MatchResult, len(batches))
	for _, b := range batches {
		ranked[b.ID] = matcher.Rank(b, orgs, models.DefaultWeights())
	}
	return ranked
}

// assertCaseConservation checks that every case is either assigned or reported unassigned
func assertCaseConservation(t *testing.T, plan *models.AssignmentPlan) {
	t.Helper()

	assigned := 0
	for _, s := range plan.OrgStats {
		assigned += s.AssignedCount
	}
	assert.Equal(t, plan.TotalCases, assigned+len(plan.UnassignedCases))
	assert.Equal(t, plan.AssignedCases, assigned)
}

func TestPlan_SingleBatchFullyAssigned(t *testing.T) {
	batches := []*models.CaseBatch{mockBatch("b1", 3, nil)}
	orgs := []*models.Organization{mockOrg("org-1", map[string]interface{}{"monthly_capacity": float64(100)})}

	plan, err := matcher.Plan(batches, rankAll(batches, orgs), models.DefaultConstraints())
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 1)
	a := plan.Assignments[0]
	assert.Equal(t, "b1", a.BatchID)
	assert.Equal(t, "org-1", a.OrganizationID)
	assert.Equal(t, []string{"b1-case-00", "b1-case-01", "b1-case-02"}, a.CaseIDs)
	assert.Equal(t, 3, a.CaseCount)
	assert.Equal(t, float64(3000), a.TotalAmount)
	assert.Equal(t, 85, a.MatchScore)

	require.Len(t, plan.OrgStats, 1)
	stats := plan.OrgStats[0]
	assert.Equal(t, 3, stats.AssignedCount)
	assert.Equal(t, float64(3000), stats.TotalAmount)
	assert.Equal(t, float64(85), stats.AverageScore)
	assert.InDelta(t, 3.0, stats.ProjectedLoadRate, 1e-9)

	assert.Empty(t, plan.UnassignedCases)
	assert.Empty(t, plan.Warnings)
	assert.Equal(t, 3, plan.TotalCases)
	assert.Equal(t, 3, plan.AssignedCases)
	assert.Equal(t, float64(100), plan.SuccessRate)
	assert.Equal(t, models.DefaultConstraints(), plan.Constraints)
	assertCaseConservation(t, plan)
}

func TestPlan_OverflowToNextOrganization(t *testing.T) {
	batches := []*models.CaseBatch{mockBatch("b1", 5, nil)}
	orgs := []*models.Organization{
		mockOrg("org-c", nil),
		mockOrg("org-a", nil),
		mockOrg("org-b", nil),
	}
	constraints := models.ConstraintSet{MinMatchScore: 60, MaxCasesPerOrg: 2, MaxLoadRate: 90}

	plan, err := matcher.Plan(batches, rankAll(batches, orgs), constraints)
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 3)
	assert.Equal(t, "org-a", plan.Assignments[0].OrganizationID)
	assert.Equal(t, []string{"b1-case-00", "b1-case-01"}, plan.Assignments[0].CaseIDs)
	assert.Equal(t, "org-b", plan.Assignments[1].OrganizationID)
	assert.Equal(t, []string{"b1-case-02", "b1-case-03"}, plan.Assignments[1].CaseIDs)
	assert.Equal(t, "org-c", plan.Assignments[2].OrganizationID)
	assert.Equal(t, []string{"b1-case-04"}, plan.Assignments[2].CaseIDs)

	assert.Empty(t, plan.UnassignedCases)
	assertCaseConservation(t, plan)
}

func TestPlan_RemainderUnassignedWhenCapsExhausted(t *testing.T) {
	batches := []*models.CaseBatch{mockBatch("b1", 5, nil)}
	orgs := []*models.Organization{mockOrg("org-a", nil), mockOrg("org-b", nil)}
	constraints := models.ConstraintSet{MinMatchScore: 60, MaxCasesPerOrg: 2, MaxLoadRate: 90}

	plan, err := matcher.Plan(batches, rankAll(batches, orgs), constraints)
	require.NoError(t, err)

	assert.Equal(t, 4, plan.AssignedCases)
	require.Len(t, plan.UnassignedCases, 1)
	assert.Equal(t, "b1-case-04", plan.UnassignedCases[0].CaseID)
	assert.Equal(t, matcher.UnassignedCapacity, plan.UnassignedCases[0].Reason)
	assert.Equal(t, float64(80), plan.SuccessRate)

	require.Len(t, plan.Warnings, 1)
	assert.Equal(t, models.WarningUnassignedCases, plan.Warnings[0].Code)
	assertCaseConservation(t, plan)
}

func TestPlan_CapSpansBatches(t *testing.T) {
	batches := []*models.CaseBatch{mockBatch("b1", 2, nil), mockBatch("b2", 2, nil)}
	orgs := []*models.Organization{mockOrg("org-a", nil)}
	constraints := models.ConstraintSet{MinMatchScore: 60, MaxCasesPerOrg: 3, MaxLoadRate: 90}

	plan, err := matcher.Plan(batches, rankAll(batches, orgs), constraints)
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 2)
	assert.Equal(t, 2, plan.Assignments[0].CaseCount)
	assert.Equal(t, 1, plan.Assignments[1].CaseCount)
	require.Len(t, plan.UnassignedCases, 1)
	assert.Equal(t, "b2", plan.UnassignedCases[0].BatchID)
	assert.Equal(t, 3, plan.OrgStats[0].AssignedCount)
	assertCaseConservation(t, plan)
}

func TestPlan_LoadLimit(t *testing.T) {
	orgs := []*models.Organization{mockOrg("org-1", map[string]interface{}{
		"monthly_capacity": float64(10),
		"current_load":     float64(80),
	})}
	constraints := models.ConstraintSet{MinMatchScore: 60, MaxCasesPerOrg: 50, MaxLoadRate: 90}

	t.Run("fits exactly at the limit", func(t *testing.T) {
		batches := []*models.CaseBatch{mockBatch("b1", 1, nil)}
		plan, err := matcher.Plan(batches, rankAll(batches, orgs), constraints)
		require.NoError(t, err)

		assert.Equal(t, 1, plan.AssignedCases)
		assert.InDelta(t, 90.0, plan.OrgStats[0].ProjectedLoadRate, 1e-9)
	})

	t.Run("exceeds the limit", func(t *testing.T) {
		batches := []*models.CaseBatch{mockBatch("b1", 2, nil)}
		plan, err := matcher.Plan(batches, rankAll(batches, orgs), constraints)
		require.NoError(t, err)

		assert.Equal(t, 0, plan.AssignedCases)
		assert.Len(t, plan.UnassignedCases, 2)
		assert.Empty(t, plan.OrgStats)
		assert.Equal(t, float64(0), plan.SuccessRate)
		assertCaseConservation(t, plan)
	})
}

func TestPlan_LoadCheckedAgainstWholeBatch(t *testing.T) {
	constraints := models.ConstraintSet{MinMatchScore: 60, MaxCasesPerOrg: 50, MaxLoadRate: 90}

	t.Run("batch larger than the cap", func(t *testing.T) {
		batches := []*models.CaseBatch{mockBatch("b1", 100, nil)}
		orgs := []*models.Organization{mockOrg("org-1", map[string]interface{}{"monthly_capacity": float64(100)})}

		plan, err := matcher.Plan(batches, rankAll(batches, orgs), constraints)
		require.NoError(t, err)

		assert.Equal(t, 0, plan.AssignedCases)
		assert.Empty(t, plan.Assignments)
		assert.Empty(t, plan.OrgStats)
		require.Len(t, plan.UnassignedCases, 100)
		assert.Equal(t, matcher.UnassignedCapacity, plan.UnassignedCases[0].Reason)
		assertCaseConservation(t, plan)
	})

	t.Run("chunks go only to organizations that fit the batch", func(t *testing.T) {
		batches := []*models.CaseBatch{mockBatch("b1", 4, nil)}
		orgs := []*models.Organization{
			mockOrg("org-a", map[string]interface{}{"monthly_capacity": float64(4)}),
			mockOrg("org-b", nil),
			mockOrg("org-c", nil),
		}
		capped := models.ConstraintSet{MinMatchScore: 60, MaxCasesPerOrg: 2, MaxLoadRate: 90}

		plan, err := matcher.Plan(batches, rankAll(batches, orgs), capped)
		require.NoError(t, err)

		require.Len(t, plan.Assignments, 2)
		assert.Equal(t, "org-b", plan.Assignments[0].OrganizationID)
		assert.Equal(t, []string{"b1-case-00", "b1-case-01"}, plan.Assignments[0].CaseIDs)
		assert.Equal(t, "org-c", plan.Assignments[1].OrganizationID)
		assert.Equal(t, []string{"b1-case-02", "b1-case-03"}, plan.Assignments[1].CaseIDs)
		assert.Empty(t, plan.UnassignedCases)
		assertCaseConservation(t, plan)
	})
}

func TestPlan_LaterBatchesSeeEarlierLoad(t *testing.T) {
	batches := []*models.CaseBatch{mockBatch("b1", 5, nil), mockBatch("b2", 5, nil)}
	orgs := []*models.Organization{mockOrg("org-1", map[string]interface{}{"monthly_capacity": float64(10)})}
	constraints := models.ConstraintSet{MinMatchScore: 60, MaxCasesPerOrg: 0, MaxLoadRate: 90}

	plan, err := matcher.Plan(batches, rankAll(batches, orgs), constraints)
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "b1", plan.Assignments[0].BatchID)
	assert.Len(t, plan.UnassignedCases, 5)
	for _, u := range plan.UnassignedCases {
		assert.Equal(t, "b2", u.BatchID)
	}
	assert.InDelta(t, 50.0, plan.OrgStats[0].ProjectedLoadRate, 1e-9)
	assertCaseConservation(t, plan)
}

func TestPlan_RunningAverageScore(t *testing.T) {
	batches := []*models.CaseBatch{
		mockBatch("b1", 2, nil),
		mockBatch("b2", 1, map[string]interface{}{"region": "south"}),
	}
	orgs := []*models.Organization{mockOrg("org-1", nil)}
	constraints := models.ConstraintSet{MinMatchScore: 50, MaxCasesPerOrg: 50, MaxLoadRate: 90}

	plan, err := matcher.Plan(batches, rankAll(batches, orgs), constraints)
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 2)
	assert.Equal(t, 85, plan.Assignments[0].MatchScore)
	assert.Equal(t, 55, plan.Assignments[1].MatchScore)

	require.Len(t, plan.OrgStats, 1)
	assert.InDelta(t, 75.0, plan.OrgStats[0].AverageScore, 1e-9)
	assert.InDelta(t, 0.3, plan.OrgStats[0].ProjectedLoadRate, 1e-9)
	assert.Equal(t, float64(3000), plan.OrgStats[0].TotalAmount)
}

func TestPlan_MinScoreOfHundred(t *testing.T) {
	batches := []*models.CaseBatch{mockBatch("b1", 3, nil), mockBatch("b2", 2, nil)}
	orgs := []*models.Organization{mockOrg("org-1", nil), mockOrg("org-2", nil)}
	constraints := models.ConstraintSet{MinMatchScore: 100, MaxCasesPerOrg: 50, MaxLoadRate: 90}

	plan, err := matcher.Plan(batches, rankAll(batches, orgs), constraints)
	require.NoError(t, err)

	assert.Empty(t, plan.Assignments)
	assert.Empty(t, plan.OrgStats)
	assert.Len(t, plan.UnassignedCases, 5)
	for _, u := range plan.UnassignedCases {
		assert.Equal(t, matcher.UnassignedBelowMinScore, u.Reason)
	}
	assert.Equal(t, float64(0), plan.SuccessRate)
	assertCaseConservation(t, plan)
}

func TestPlan_NoCandidates(t *testing.T) {
	batches := []*models.CaseBatch{mockBatch("b1", 2, nil)}
	orgs := []*models.Organization{
		mockOrg("org-1", map[string]interface{}{"status": models.OperatingStatusBusy}),
	}

	plan, err := matcher.Plan(batches, rankAll(batches, orgs), models.DefaultConstraints())
	require.NoError(t, err)

	require.Len(t, plan.UnassignedCases, 2)
	assert.Equal(t, matcher.UnassignedNoCandidates, plan.UnassignedCases[0].Reason)
	assert.Equal(t, float64(1000), plan.UnassignedCases[0].Amount)
}

func TestPlan_EmptyBatch(t *testing.T) {
	batches := []*models.CaseBatch{models.NewCaseBatch("b1", nil)}
	orgs := []*models.Organization{mockOrg("org-1", nil)}

	plan, err := matcher.Plan(batches, rankAll(batches, orgs), models.DefaultConstraints())
	require.NoError(t, err)

	assert.Equal(t, 0, plan.TotalCases)
	assert.Equal(t, float64(0), plan.SuccessRate)
	assert.Empty(t, plan.Warnings)
}

func TestPlan_ValidationErrors(t *testing.T) {
	t.Run("negative capacity", func(t *testing.T) {
		batches := []*models.CaseBatch{mockBatch("b1", 1, nil)}
		orgs := []*models.Organization{mockOrg("org-1", map[string]interface{}{"monthly_capacity": float64(-1)})}

		plan, err := matcher.Plan(batches, rankAll(batches, orgs), models.DefaultConstraints())
		assert.Nil(t, plan)
		assert.True(t, errors.Is(err, models.ErrValidation))
		assert.True(t, errors.Is(err, models.ErrNegativeCapacity))
	})

	t.Run("constraint out of range", func(t *testing.T) {
		batches := []*models.CaseBatch{mockBatch("b1", 1, nil)}
		constraints := models.ConstraintSet{MinMatchScore: 120, MaxCasesPerOrg: -1, MaxLoadRate: 150}

		_, err := matcher.Plan(batches, nil, constraints)
		var ve models.ValidationErrors
		require.True(t, errors.As(err, &ve))
		assert.ElementsMatch(t, []string{
			"constraints.min_match_score",
			"constraints.max_cases_per_org",
			"constraints.max_load_rate",
		}, ve.Fields())
	})

	t.Run("no batches", func(t *testing.T) {
		_, err := matcher.Plan(nil, nil, models.DefaultConstraints())
		assert.True(t, errors.Is(err, models.ErrEmptyCollection))
	})

	t.Run("empty organization id", func(t *testing.T) {
		batches := []*models.CaseBatch{mockBatch("b1", 1, nil)}
		org := mockOrg("", nil)
		ranked := map[string][]models.MatchResult{
			"b1": {matcher.Evaluate(batches[0], org, models.DefaultWeights())},
		}

		_, err := matcher.Plan(batches, ranked, models.DefaultConstraints())
		assert.True(t, errors.Is(err, models.ErrEmptyOrganizationID))
	})

	t.Run("result without organization", func(t *testing.T) {
		batches := []*models.CaseBatch{mockBatch("b1", 1, nil)}
		ranked := map[string][]models.MatchResult{
			"b1": {{BatchID: "b1", OrganizationID: "org-1", Score: 90}},
		}

		_, err := matcher.Plan(batches, ranked, models.DefaultConstraints())
		assert.True(t, errors.Is(err, models.ErrValidation))
	})
}
