package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/services/matcher"
)

const batchesJSON = `[
  {"id": "pkg-1", "cases": [
    {"id": "c-1", "region": "north", "amount": 1000, "business_type": "consumer_loan", "urgency": "high"},
    {"id": "c-2", "region": "north", "amount": 2000, "business_type": "consumer_loan", "urgency": "medium"}
  ]}
]`

const orgsJSON = `[
  {"id": "org-b", "name": "Beta", "type": "law_firm", "service_regions": ["north"], "team_size": 5,
   "monthly_capacity": 500, "current_load": 10, "business_scope": ["consumer_loan"], "settlement_methods": ["FULL_RISK"],
   "performance": {"recovery_rate": 70, "rating": 4}, "status": "active", "membership_status": "active"},
  {"id": "org-a", "name": "Alpha", "type": "mediation_center", "service_regions": ["south"], "team_size": 5,
   "monthly_capacity": 500, "current_load": 10, "business_scope": ["credit_card"], "settlement_methods": ["FULL_RISK"],
   "performance": {"recovery_rate": 40, "rating": 2}, "status": "active", "membership_status": "active"},
  {"id": "org-c", "name": "Gamma", "type": "law_firm", "service_regions": ["north"], "team_size": 5,
   "monthly_capacity": 500, "current_load": 10, "business_scope": ["consumer_loan"], "settlement_methods": ["FULL_RISK"],
   "performance": {"recovery_rate": 70, "rating": 4}, "status": "full", "membership_status": "active"}
]`

func writeInputs(t *testing.T) (string, string) {
	t.Helper()
	dir := t.TempDir()
	batches := filepath.Join(dir, "batches.json")
	orgs := filepath.Join(dir, "orgs.json")
	require.NoError(t, os.WriteFile(batches, []byte(batchesJSON), 0o600))
	require.NoError(t, os.WriteFile(orgs, []byte(orgsJSON), 0o600))
	return batches, orgs
}

func testService() *matcher.MatcherService {
	return matcher.New(models.DefaultWeights(), models.DefaultConstraints(), matcher.WithLogger(zap.NewNop()))
}

func TestDoRank(t *testing.T) {
	batches, orgs := writeInputs(t)
	var out bytes.Buffer

	require.NoError(t, doRank(context.Background(), testService(), batches, orgs, &out))

	var outcomes []matcher.MatchOutcome
	require.NoError(t, json.Unmarshal(out.Bytes(), &outcomes))
	require.Len(t, outcomes, 1)

	outcome := outcomes[0]
	assert.Equal(t, "pkg-1", outcome.BatchID)
	assert.Equal(t, 1, outcome.Excluded, "org-c is full")
	require.Len(t, outcome.Results, 2)
	assert.Equal(t, "org-b", outcome.Results[0].OrganizationID)
	assert.Greater(t, outcome.Results[0].Score, outcome.Results[1].Score)
}

func TestDoPlan(t *testing.T) {
	batches, orgs := writeInputs(t)
	var out bytes.Buffer

	require.NoError(t, doPlan(context.Background(), testService(), batches, orgs, &out))

	var result struct {
		Plan    models.AssignmentPlan `json:"plan"`
		Summary models.PlanSummary    `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))

	assert.Equal(t, 2, result.Plan.TotalCases)
	assert.Equal(t, 2, result.Plan.AssignedCases)
	require.Len(t, result.Plan.Assignments, 1)
	assert.Equal(t, "org-b", result.Plan.Assignments[0].OrganizationID)
	assert.Equal(t, []string{"c-1", "c-2"}, result.Plan.Assignments[0].CaseIDs)
	assert.Equal(t, 1, result.Summary.OrganizationsUsed)
}

func TestDoPlan_MissingFile(t *testing.T) {
	_, orgs := writeInputs(t)

	err := doPlan(context.Background(), testService(), "does-not-exist.json", orgs, &bytes.Buffer{})
	assert.ErrorContains(t, err, "failed to read does-not-exist.json")
}

func TestDoImport(t *testing.T) {
	dir := t.TempDir()
	csvFile := filepath.Join(dir, "cases.csv")
	content := "case_id,region,amount,business_type\nc-1,north,\"1,000\",consumer_loan\n,north,5,consumer_loan\n"
	require.NoError(t, os.WriteFile(csvFile, []byte(content), 0o600))

	var out, errOut bytes.Buffer
	require.NoError(t, doImport(csvFile, "pkg-x", &out, &errOut))

	var batches []models.CaseBatch
	require.NoError(t, json.Unmarshal(out.Bytes(), &batches))
	require.Len(t, batches, 1)
	assert.Equal(t, "pkg-x", batches[0].ID)
	assert.Equal(t, 1, batches[0].CaseCount)
	assert.Equal(t, 1000.0, batches[0].TotalAmount)
	assert.Contains(t, errOut.String(), "skipped:")
}
