package models_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"case-disposition-engine/internal/models"
)

func TestUrgencyLevel_IsValid(t *testing.T) {
	tests := []struct {
		level    models.UrgencyLevel
		expected bool
	}{
		{models.UrgencyLow, true},
		{models.UrgencyMedium, true},
		{models.UrgencyHigh, true},
		{models.UrgencyUrgent, true},
		{models.UrgencyLevel("someday"), false},
		{models.UrgencyLevel(""), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.level), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.level.IsValid())
		})
	}
}

func TestNormalizeUrgency(t *testing.T) {
	tests := []struct {
		input    string
		expected models.UrgencyLevel
	}{
		{"low", models.UrgencyLow},
		{"L", models.UrgencyLow},
		{"Normal", models.UrgencyMedium},
		{"", models.UrgencyMedium},
		{" HIGH ", models.UrgencyHigh},
		{"critical", models.UrgencyUrgent},
		{"ASAP", models.UrgencyUrgent},
		{"unknown", models.UrgencyLevel("unknown")}, // Unknown stays lowercase input
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, models.NormalizeUrgency(tt.input))
		})
	}
}

func TestCaseStatus_Transitions(t *testing.T) {
	assert.True(t, models.CaseStatusPending.CanTransitionTo(models.CaseStatusAssigned))
	assert.True(t, models.CaseStatusAssigned.CanTransitionTo(models.CaseStatusInProgress))
	assert.True(t, models.CaseStatusInProgress.CanTransitionTo(models.CaseStatusSettled))
	assert.True(t, models.CaseStatusReturned.CanTransitionTo(models.CaseStatusAssigned))

	assert.False(t, models.CaseStatusPending.CanTransitionTo(models.CaseStatusSettled))
	assert.False(t, models.CaseStatusClosed.CanTransitionTo(models.CaseStatusPending))
	assert.False(t, models.CaseStatus("lost").CanTransitionTo(models.CaseStatusAssigned))

	assert.True(t, models.CaseStatusClosed.IsValid())
	assert.False(t, models.CaseStatus("lost").IsValid())
	assert.Empty(t, models.CaseStatusClosed.NextStatuses())

	next := models.CaseStatusPending.NextStatuses()
	next[0] = models.CaseStatusSettled
	assert.True(t, models.CaseStatusPending.CanTransitionTo(models.CaseStatusAssigned), "NextStatuses returns a copy")
}

func TestBatchStatus_Transitions(t *testing.T) {
	assert.True(t, models.BatchStatusDraft.CanTransitionTo(models.BatchStatusPublished))
	assert.True(t, models.BatchStatusPublished.CanTransitionTo(models.BatchStatusAssigning))
	assert.True(t, models.BatchStatusAssigning.CanTransitionTo(models.BatchStatusAssigned))
	assert.True(t, models.BatchStatusAssigning.CanTransitionTo(models.BatchStatusPublished))
	assert.True(t, models.BatchStatusAssigned.CanTransitionTo(models.BatchStatusClosed))

	assert.False(t, models.BatchStatusDraft.CanTransitionTo(models.BatchStatusAssigned))
	assert.False(t, models.BatchStatusClosed.CanTransitionTo(models.BatchStatusDraft))
	assert.True(t, models.BatchStatusWithdrawn.IsValid())
	assert.False(t, models.BatchStatus("archived").IsValid())
}

func TestNewCaseBatch_DerivedFields(t *testing.T) {
	cases := []*models.Case{
		{ID: "C1", Region: "north", Amount: 1000, BusinessType: "consumer_loan", Urgency: models.UrgencyLow, Qualifications: []string{"litigation"}},
		{ID: "C2", Region: " North", Amount: 2500.5, BusinessType: "mortgage", Urgency: models.UrgencyHigh},
		{ID: "C3", Region: "east", Amount: 500, BusinessType: "consumer_loan", Urgency: models.UrgencyMedium, Qualifications: []string{"Litigation", "mediation"}},
	}

	batch := models.NewCaseBatch("pkg-1", cases)

	assert.Equal(t, "pkg-1", batch.ID)
	assert.Equal(t, 3, batch.CaseCount)
	assert.Equal(t, 4000.5, batch.TotalAmount)
	assert.Equal(t, []string{"north", "east"}, batch.Regions)
	assert.Equal(t, []string{"consumer_loan", "mortgage"}, batch.BusinessTypes)
	assert.Equal(t, []string{"litigation", "mediation"}, batch.RequiredQualifications)
	assert.Equal(t, models.UrgencyHigh, batch.Urgency)
	assert.Equal(t, models.BatchStatusDraft, batch.Status)
}

func TestCaseBatch_RecomputeKeepsConfiguredTags(t *testing.T) {
	batch := &models.CaseBatch{
		ID:      "pkg-1",
		Regions: []string{"west"},
		Urgency: models.UrgencyLow,
		Cases:   []*models.Case{{ID: "C1", Region: "north", Amount: 10, Urgency: models.UrgencyUrgent}},
	}
	batch.Recompute()

	assert.Equal(t, []string{"west", "north"}, batch.Regions)
	assert.Equal(t, models.UrgencyLow, batch.Urgency, "an explicit urgency is not overwritten")
	assert.Equal(t, 1, batch.CaseCount)
}

func TestCaseBatch_RecomputeSkipsNilCases(t *testing.T) {
	var batch models.CaseBatch
	require.NoError(t, json.Unmarshal([]byte(`{"id":"pkg-1","cases":[{"id":"C1","region":"north","amount":100},null,{"id":"C2","region":"north","amount":50}]}`), &batch))

	batch.Recompute()

	require.Len(t, batch.Cases, 3)
	assert.Equal(t, 2, batch.CaseCount)
	assert.Equal(t, float64(150), batch.TotalAmount)
}

func TestOverlaps(t *testing.T) {
	assert.True(t, models.Overlaps([]string{"North"}, []string{"south", " north "}))
	assert.False(t, models.Overlaps([]string{"north"}, []string{"south"}))
	assert.False(t, models.Overlaps(nil, []string{"south"}))
	assert.False(t, models.Overlaps([]string{""}, []string{""}))
}

func TestOrganization_AvailableCapacity(t *testing.T) {
	org := &models.Organization{MonthlyCapacity: 1000, CurrentLoad: 50}
	assert.Equal(t, float64(500), org.AvailableCapacity())

	org.CurrentLoad = 100
	assert.Equal(t, float64(0), org.AvailableCapacity())

	org.CurrentLoad = 120
	assert.Equal(t, float64(0), org.AvailableCapacity(), "never negative")
}

func TestOrganization_IsEligible(t *testing.T) {
	tests := []struct {
		status     models.OperatingStatus
		membership models.MembershipStatus
		expected   bool
	}{
		{models.OperatingStatusActive, models.MembershipStatusActive, true},
		{models.OperatingStatusBusy, models.MembershipStatusActive, false},
		{models.OperatingStatusFull, models.MembershipStatusActive, false},
		{models.OperatingStatusActive, models.MembershipStatusExpired, false},
	}

	for _, tt := range tests {
		org := &models.Organization{Status: tt.status, MembershipStatus: tt.membership}
		assert.Equal(t, tt.expected, org.IsEligible(), "%s/%s", tt.status, tt.membership)
	}
}

func TestValidateOrganization(t *testing.T) {
	valid := &models.Organization{
		ID:              "org-1",
		MonthlyCapacity: 100,
		CurrentLoad:     40,
		Performance:     models.PerformanceMetrics{RecoveryRate: 70, Rating: 4.5},
	}
	assert.NoError(t, models.ValidateOrganization(valid))

	invalid := &models.Organization{
		MonthlyCapacity: -1,
		TeamSize:        -2,
		CurrentLoad:     101,
		Performance:     models.PerformanceMetrics{RecoveryRate: 120, Rating: 6},
	}
	err := models.ValidateOrganization(invalid)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrValidation))

	var ve models.ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{
		"organization.id",
		"organization.monthly_capacity",
		"organization.team_size",
		"organization.current_load",
		"organization.performance.recovery_rate",
		"organization.performance.rating",
	}, ve.Fields())
}

func TestValidateOrganizations_Duplicates(t *testing.T) {
	orgs := []*models.Organization{{ID: "org-1"}, {ID: "org-1"}}

	err := models.ValidateOrganizations(orgs)
	assert.True(t, errors.Is(err, models.ErrDuplicateID))

	err = models.ValidateOrganizations(nil)
	assert.True(t, errors.Is(err, models.ErrEmptyCollection))
}

func TestValidateCaseBatch(t *testing.T) {
	batch := models.NewCaseBatch("", []*models.Case{
		{ID: "C1", Amount: -1},
		{ID: "C1", Amount: 10},
		nil,
	})
	batch.MinCapacityRequired = -5

	err := models.ValidateCaseBatch(batch)
	var ve models.ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, []string{
		"batch.id",
		"batch.min_capacity_required",
		"batch.cases[0].amount",
		"batch.cases[1].id",
		"batch.cases[2]",
	}, ve.Fields())
}

func TestValidateWeights(t *testing.T) {
	assert.NoError(t, models.ValidateWeights(models.DefaultWeights()))
	assert.NoError(t, models.ValidateWeights(models.WeightVector{Region: 10}), "sum is not checked here")
	assert.Error(t, models.ValidateWeights(models.WeightVector{}))
	assert.True(t, errors.Is(models.ValidateWeights(models.WeightVector{Cost: 101}), models.ErrInvalidWeight))
}

func TestValidateConstraints(t *testing.T) {
	assert.NoError(t, models.ValidateConstraints(models.DefaultConstraints()))
	assert.NoError(t, models.ValidateConstraints(models.ConstraintSet{MinMatchScore: 100, MaxCasesPerOrg: 0, MaxLoadRate: 0}))
	assert.Error(t, models.ValidateConstraints(models.ConstraintSet{MinMatchScore: 101}))
	assert.Error(t, models.ValidateConstraints(models.ConstraintSet{MaxCasesPerOrg: -1}))
	assert.Error(t, models.ValidateConstraints(models.ConstraintSet{MaxLoadRate: -0.1}))
}

func TestValidationErrors_JSON(t *testing.T) {
	errs := models.ValidationErrors{{Field: "weights.region", Err: models.ErrInvalidWeight}}

	data, err := json.Marshal(map[string]interface{}{"errors": errs})
	require.NoError(t, err)
	assert.JSONEq(t, `{"errors":["weights.region: weight must be between 0 and 100"]}`, string(data))
}

func TestAssignmentPlan_Summary(t *testing.T) {
	plan := &models.AssignmentPlan{
		ID: "plan-1",
		Assignments: []models.Assignment{
			{OrganizationID: "org-1", CaseCount: 2},
			{OrganizationID: "org-2", CaseCount: 1},
			{OrganizationID: "org-1", CaseCount: 1},
		},
		UnassignedCases: []models.UnassignedCase{{CaseID: "C9"}},
		OrgStats:        []models.OrgStats{{OrganizationID: "org-1"}, {OrganizationID: "org-2"}},
		TotalCases:      5,
		AssignedCases:   4,
		SuccessRate:     80,
	}

	assert.Len(t, plan.AssignmentsFor("org-1"), 2)
	assert.Empty(t, plan.AssignmentsFor("org-3"))

	summary := plan.Summary(1500 * time.Millisecond)
	assert.Equal(t, "plan-1", summary.PlanID)
	assert.Equal(t, 1, summary.UnassignedCases)
	assert.Equal(t, 2, summary.OrganizationsUsed)
	assert.Equal(t, int64(1500), summary.ProcessingTimeMs)
}

func TestMatchResult_OmitsOrganizationInJSON(t *testing.T) {
	result := models.MatchResult{
		OrganizationID: "org-1",
		Organization:   &models.Organization{ID: "org-1", ContactEmail: "ops@example.com"},
		Score:          85,
		Tier:           models.TierHighlyRecommended,
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "ops@example.com")
	assert.Contains(t, string(data), `"tier":"highly_recommended"`)
}
