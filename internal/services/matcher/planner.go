package matcher

import (
	"errors"
	"fmt"
	"sort"

	"case-disposition-engine/internal/models"
)

// Reasons recorded for unassigned cases.
const (
	UnassignedNoCandidates  = "no eligible organization for this package"
	UnassignedBelowMinScore = "no organization reached the minimum match score"
	UnassignedCapacity      = "eligible organizations reached their case or load limits"
)

// loadEpsilon absorbs float noise when comparing projected load with the limit.
const loadEpsilon = 1e-9

// orgState tracks one organization's running totals while a plan is built.
type orgState struct {
	org   *models.Organization
	stats models.OrgStats
	load  float64
}

// Plan greedily assigns each batch's cases to its ranked organizations under the constraints.
//
// Batches are processed in the order given and cases within a batch in their listed order.
// For each batch the ranked list is first filtered to organizations scoring at least MinMatchScore
// whose projected load after taking the whole batch (currentLoad + batchSize/monthlyCapacity×100)
// stays within MaxLoadRate. The batch is then handed out from the top of that list in chunks of
// at most MaxCasesPerOrg. Whatever cannot be placed is reported as unassigned, which is a normal
// outcome rather than an error. Running load carries over from earlier batches.
//
// Plan only fails on malformed input, before anything is placed.
func Plan(batches []*models.CaseBatch, ranked map[string][]models.MatchResult, constraints models.ConstraintSet) (*models.AssignmentPlan, error) {
	if err := validatePlanInput(batches, ranked, constraints); err != nil {
		return nil, err
	}

	plan := &models.AssignmentPlan{
		Assignments:     []models.Assignment{},
		UnassignedCases: []models.UnassignedCase{},
		OrgStats:        []models.OrgStats{},
		Constraints:     constraints,
	}
	states := make(map[string]*orgState)

	for _, batch := range batches {
		pending := make([]*models.Case, 0, len(batch.Cases))
		for _, c := range batch.Cases {
			if c != nil {
				pending = append(pending, c)
			}
		}
		plan.TotalCases += len(pending)
		if len(pending) == 0 {
			continue
		}

		candidates := ranked[batch.ID]
		reason := UnassignedNoCandidates
		if len(candidates) > 0 {
			reason = UnassignedBelowMinScore
		}

		// Eligibility is decided once per batch against the whole batch size.
		eligible := make([]*orgState, 0, len(candidates))
		scores := make([]int, 0, len(candidates))
		visited := make(map[string]struct{}, len(candidates))
		for _, result := range candidates {
			if _, dup := visited[result.OrganizationID]; dup {
				continue
			}
			visited[result.OrganizationID] = struct{}{}

			if result.Score < constraints.MinMatchScore {
				continue
			}
			reason = UnassignedCapacity

			st := states[result.OrganizationID]
			if st == nil {
				st = &orgState{
					org:   result.Organization,
					stats: models.OrgStats{
						OrganizationID:    result.OrganizationID,
						OrganizationName:  result.Organization.Name,
						ProjectedLoadRate: result.Organization.CurrentLoad,
					},
					load: result.Organization.CurrentLoad,
				}
				states[result.OrganizationID] = st
			}

			if !fitsLoad(st, len(pending), constraints.MaxLoadRate) {
				continue
			}
			eligible = append(eligible, st)
			scores = append(scores, result.Score)
		}

		for i, st := range eligible {
			if len(pending) == 0 {
				break
			}

			take := len(pending)
			if constraints.MaxCasesPerOrg > 0 {
				room := constraints.MaxCasesPerOrg - st.stats.AssignedCount
				if room <= 0 {
					continue
				}
				if take > room {
					take = room
				}
			}

			placed := pending[:take]
			pending = pending[take:]
			plan.Assignments = append(plan.Assignments, place(st, batch.ID, placed, scores[i]))
			plan.AssignedCases += take
		}

		for _, c := range pending {
			plan.UnassignedCases = append(plan.UnassignedCases, models.UnassignedCase{
				BatchID: batch.ID,
				CaseID:  c.ID,
				Amount:  c.Amount,
				Reason:  reason,
			})
		}
	}

	for _, st := range states {
		if st.stats.AssignedCount > 0 {
			plan.OrgStats = append(plan.OrgStats, st.stats)
		}
	}
	sort.Slice(plan.OrgStats, func(i, j int) bool {
		return plan.OrgStats[i].OrganizationID < plan.OrgStats[j].OrganizationID
	})

	if plan.TotalCases > 0 {
		plan.SuccessRate = float64(plan.AssignedCases) / float64(plan.TotalCases) * 100
	}

	if n := len(plan.UnassignedCases); n > 0 {
		plan.Warnings = append(plan.Warnings, models.Warning{
			Code:    models.WarningUnassignedCases,
			Message: fmt.Sprintf("%d of %d cases could not be assigned", n, plan.TotalCases),
		})
	}

	return plan, nil
}

// fitsLoad reports whether adding n cases keeps the organization's projected load within limit.
func fitsLoad(st *orgState, n int, limit float64) bool {
	if st.org.MonthlyCapacity <= 0 {
		return false
	}
	projected := st.load + float64(n)/st.org.MonthlyCapacity*100
	return projected <= limit+loadEpsilon
}

// place records the cases against the organization and updates its running statistics.
func place(st *orgState, batchID string, cases []*models.Case, score int) models.Assignment {
	assignment := models.Assignment{
		BatchID:          batchID,
		OrganizationID:   st.stats.OrganizationID,
		OrganizationName: st.stats.OrganizationName,
		CaseIDs:          make([]string, len(cases)),
		CaseCount:        len(cases),
		MatchScore:       score,
	}
	for i, c := range cases {
		assignment.CaseIDs[i] = c.ID
		assignment.TotalAmount += c.Amount
	}

	n := len(cases)
	prev := st.stats.AssignedCount
	st.stats.AssignedCount = prev + n
	st.stats.TotalAmount += assignment.TotalAmount
	st.stats.AverageScore += (float64(score) - st.stats.AverageScore) * float64(n) / float64(prev+n)
	st.load += float64(n) / st.org.MonthlyCapacity * 100
	st.stats.ProjectedLoadRate = st.load

	return assignment
}

func validatePlanInput(batches []*models.CaseBatch, ranked map[string][]models.MatchResult, constraints models.ConstraintSet) error {
	var errs models.ValidationErrors

	collect := func(err error) {
		var ve models.ValidationErrors
		if errors.As(err, &ve) {
			errs = append(errs, ve...)
		}
	}

	collect(models.ValidateConstraints(constraints))
	collect(models.ValidateCaseBatches(batches))

	batchIDs := make([]string, 0, len(ranked))
	for id := range ranked {
		batchIDs = append(batchIDs, id)
	}
	sort.Strings(batchIDs)

	for _, id := range batchIDs {
		for i, result := range ranked[id] {
			field := fmt.Sprintf("ranked[%s][%d]", id, i)
			if result.Organization == nil {
				errs = append(errs, &models.ValidationError{Field: field + ".organization", Err: models.ErrEmptyOrganizationID})
				continue
			}
			if result.OrganizationID != result.Organization.ID {
				errs = append(errs, &models.ValidationError{
					Field: field + ".organization_id",
					Err:   fmt.Errorf("result id %q does not match organization %q", result.OrganizationID, result.Organization.ID),
				})
			}
			if result.Score < 0 {
				errs = append(errs, &models.ValidationError{Field: field + ".score", Err: models.ErrInvalidScore})
			}
			if err := models.ValidateOrganization(result.Organization); err != nil {
				var ve models.ValidationErrors
				if errors.As(err, &ve) {
					for _, e := range ve {
						errs = append(errs, &models.ValidationError{Field: field + "." + e.Field, Err: e.Err})
					}
				}
			}
		}
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
