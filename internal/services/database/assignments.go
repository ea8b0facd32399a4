package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"case-disposition-engine/internal/models"
)

// AssignmentRepository persists confirmed assignment plans.
type AssignmentRepository struct {
	db *DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// ConfirmResult summarizes what a confirmed plan changed.
type ConfirmResult struct {
	PlanID           string   `json:"plan_id"`
	AssignmentsSaved int      `json:"assignments_saved"`
	CasesAssigned    int      `json:"cases_assigned"`
	PackagesAssigned []string `json:"packages_assigned"`
}

// SavePlan confirms a plan in one transaction: the plan and its assignments are stored,
// the assigned cases move to "assigned", each organization's current load grows by the
// cases it received, and published packages with no remaining assignable cases move to "assigned".
//
// A case that is no longer assignable (already taken by another confirmed plan) aborts the
// whole confirmation.
func (r *AssignmentRepository) SavePlan(ctx context.Context, plan *models.AssignmentPlan) (*ConfirmResult, error) {
	if plan == nil || plan.ID == "" {
		return nil, errors.New("plan id is required")
	}

	constraintsJSON, err := json.Marshal(plan.Constraints)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal constraints: %w", err)
	}
	unassignedJSON, err := json.Marshal(plan.UnassignedCases)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal unassigned cases: %w", err)
	}
	warningsJSON, err := json.Marshal(plan.Warnings)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal warnings: %w", err)
	}

	result := &ConfirmResult{PlanID: plan.ID, PackagesAssigned: []string{}}

	err = r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()

		_, err := tx.Exec(ctx, `
			INSERT INTO assignment_plans (
				plan_id, total_cases, assigned_cases, success_rate,
				constraints, unassigned_cases, warnings, created_at, confirmed_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			plan.ID, plan.TotalCases, plan.AssignedCases, plan.SuccessRate,
			constraintsJSON, unassignedJSON, warningsJSON, plan.CreatedAt, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert plan: %w", err)
		}

		packages := make(map[string]struct{})
		for _, a := range plan.Assignments {
			if _, err := tx.Exec(ctx, `
				INSERT INTO assignments (
					plan_id, package_id, org_id, case_ids, case_count, total_amount, match_score, created_at
				) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				plan.ID, a.BatchID, a.OrganizationID, a.CaseIDs, a.CaseCount, a.TotalAmount, a.MatchScore, now,
			); err != nil {
				return fmt.Errorf("failed to insert assignment for %s: %w", a.OrganizationID, err)
			}

			tag, err := tx.Exec(ctx, `
				UPDATE cases SET status = $1, assigned_org_id = $2, plan_id = $3, updated_at = $4
				WHERE case_id = ANY($5) AND status IN ('pending', 'returned')`,
				string(models.CaseStatusAssigned), a.OrganizationID, plan.ID, now, a.CaseIDs,
			)
			if err != nil {
				return fmt.Errorf("failed to mark cases assigned: %w", err)
			}
			if int(tag.RowsAffected()) != a.CaseCount {
				return fmt.Errorf("package %s: %d of %d cases are no longer assignable: %w",
					a.BatchID, a.CaseCount-int(tag.RowsAffected()), a.CaseCount, ErrInvalidTransition)
			}

			if _, err := tx.Exec(ctx, `
				UPDATE organizations
				SET current_load = LEAST(100, current_load + $1::float8 * 100 / NULLIF(monthly_capacity, 0)),
					updated_at = $2
				WHERE org_id = $3`,
				a.CaseCount, now, a.OrganizationID,
			); err != nil {
				return fmt.Errorf("failed to update load for %s: %w", a.OrganizationID, err)
			}

			result.AssignmentsSaved++
			result.CasesAssigned += a.CaseCount
			packages[a.BatchID] = struct{}{}
		}

		for packageID := range packages {
			var remaining int
			if err := tx.QueryRow(ctx,
				"SELECT COUNT(*) FROM cases WHERE package_id = $1 AND status IN ('pending', 'returned')",
				packageID).Scan(&remaining); err != nil {
				return fmt.Errorf("failed to count remaining cases: %w", err)
			}
			if remaining > 0 {
				continue
			}
			advanced, err := advanceToAssigned(ctx, tx, packageID)
			if err != nil {
				return err
			}
			if advanced {
				result.PackagesAssigned = append(result.PackagesAssigned, packageID)
			}
		}
		sort.Strings(result.PackagesAssigned)
		return nil
	})

	if err != nil {
		return nil, fmt.Errorf("failed to confirm plan %s: %w", plan.ID, err)
	}

	return result, nil
}

// SetReportKey records where the plan report was stored.
func (r *AssignmentRepository) SetReportKey(ctx context.Context, planID, key string) error {
	tag, err := r.db.pool.Exec(ctx,
		"UPDATE assignment_plans SET report_key = $1 WHERE plan_id = $2", key, planID)
	if err != nil {
		return fmt.Errorf("failed to set report key: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}
	return nil
}

// GetPlan loads a confirmed plan with its assignments.
func (r *AssignmentRepository) GetPlan(ctx context.Context, planID string) (*models.AssignmentPlan, error) {
	plan := &models.AssignmentPlan{ID: planID}
	var constraintsJSON, unassignedJSON, warningsJSON []byte

	err := r.db.pool.QueryRow(ctx, `
		SELECT total_cases, assigned_cases, success_rate, constraints, unassigned_cases, warnings, created_at
		FROM assignment_plans WHERE plan_id = $1`, planID).Scan(
		&plan.TotalCases, &plan.AssignedCases, &plan.SuccessRate,
		&constraintsJSON, &unassignedJSON, &warningsJSON, &plan.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("plan %s: %w", planID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	if err := json.Unmarshal(constraintsJSON, &plan.Constraints); err != nil {
		return nil, fmt.Errorf("failed to decode constraints: %w", err)
	}
	if err := json.Unmarshal(unassignedJSON, &plan.UnassignedCases); err != nil {
		return nil, fmt.Errorf("failed to decode unassigned cases: %w", err)
	}
	if err := json.Unmarshal(warningsJSON, &plan.Warnings); err != nil {
		return nil, fmt.Errorf("failed to decode warnings: %w", err)
	}

	rows, err := r.db.pool.Query(ctx, `
		SELECT a.package_id, a.org_id, o.name, a.case_ids, a.case_count, a.total_amount, a.match_score
		FROM assignments a
		JOIN organizations o ON o.org_id = a.org_id
		WHERE a.plan_id = $1
		ORDER BY a.id`, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.BatchID, &a.OrganizationID, &a.OrganizationName,
			&a.CaseIDs, &a.CaseCount, &a.TotalAmount, &a.MatchScore); err != nil {
			return nil, fmt.Errorf("failed to scan assignment: %w", err)
		}
		plan.Assignments = append(plan.Assignments, a)
	}

	return plan, rows.Err()
}
