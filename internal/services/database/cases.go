package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"case-disposition-engine/internal/models"
)

// ErrInvalidTransition is returned when a status change is not allowed by the workflow.
var ErrInvalidTransition = errors.New("status transition not allowed")

// CaseRepository handles case and case package database operations.
type CaseRepository struct {
	db *DB
}

// NewCaseRepository creates a new case repository.
func NewCaseRepository(db *DB) *CaseRepository {
	return &CaseRepository{db: db}
}

const upsertPackageSQL = `
	INSERT INTO case_packages (
		package_id, name, status, min_team_size, min_capacity_required,
		preferred_settlement_methods, deadline, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	ON CONFLICT (package_id) DO UPDATE SET
		name = COALESCE(NULLIF(EXCLUDED.name, ''), case_packages.name),
		updated_at = EXCLUDED.updated_at`

const upsertCaseSQL = `
	INSERT INTO cases (
		case_id, package_id, debtor_name, region, amount, business_type,
		urgency, qualifications, status, overdue_days, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
	ON CONFLICT (case_id) DO UPDATE SET
		package_id = EXCLUDED.package_id,
		debtor_name = EXCLUDED.debtor_name,
		region = EXCLUDED.region,
		amount = EXCLUDED.amount,
		business_type = EXCLUDED.business_type,
		urgency = EXCLUDED.urgency,
		qualifications = EXCLUDED.qualifications,
		overdue_days = EXCLUDED.overdue_days,
		updated_at = EXCLUDED.updated_at
	WHERE cases.status = 'pending'`

// ImportBatches stores the packages and their cases. Cases already past pending are left untouched.
func (r *CaseRepository) ImportBatches(ctx context.Context, batches []*models.CaseBatch) (*models.BulkInsertResult, error) {
	result := &models.BulkInsertResult{
		InsertedCount: 0,
		FailedCount:   0,
		Errors:        []string{},
	}

	err := r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		now := time.Now().UTC()

		for _, b := range batches {
			status := b.Status
			if status == "" {
				status = models.BatchStatusDraft
			}
			if _, err := tx.Exec(ctx, upsertPackageSQL,
				b.ID, b.Name, string(status), b.MinTeamSize, b.MinCapacityRequired,
				b.PreferredSettlementMethods, b.Deadline, now,
			); err != nil {
				return fmt.Errorf("failed to upsert package %s: %w", b.ID, err)
			}

			for _, c := range b.Cases {
				tag, err := tx.Exec(ctx, upsertCaseSQL,
					c.ID, b.ID, c.DebtorName, c.Region, c.Amount, c.BusinessType,
					string(c.Urgency), c.Qualifications, string(models.CaseStatusPending), c.OverdueDays, now,
				)
				if err != nil {
					return fmt.Errorf("failed to upsert case %s: %w", c.ID, err)
				}
				if tag.RowsAffected() == 0 {
					result.FailedCount++
					result.Errors = append(result.Errors, fmt.Sprintf("case %s: already in progress, not updated", c.ID))
					continue
				}
				result.InsertedCount++
			}
		}
		return nil
	})

	if err != nil {
		return result, fmt.Errorf("case import failed: %w", err)
	}

	return result, nil
}

// GetPackage loads a package and its cases. Returns ErrNotFound when the package does not exist.
func (r *CaseRepository) GetPackage(ctx context.Context, packageID string) (*models.CaseBatch, error) {
	batches, err := r.GetPackages(ctx, []string{packageID})
	if err != nil {
		return nil, err
	}
	return batches[0], nil
}

// GetPackages loads packages with their cases, in the order requested.
func (r *CaseRepository) GetPackages(ctx context.Context, packageIDs []string) ([]*models.CaseBatch, error) {
	rows, err := r.db.pool.Query(ctx, `
		SELECT package_id, name, status, min_team_size, min_capacity_required,
			preferred_settlement_methods, deadline
		FROM case_packages
		WHERE package_id = ANY($1)`, packageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query packages: %w", err)
	}

	byID := make(map[string]*models.CaseBatch, len(packageIDs))
	for rows.Next() {
		b := &models.CaseBatch{}
		var status string
		if err := rows.Scan(&b.ID, &b.Name, &status, &b.MinTeamSize, &b.MinCapacityRequired,
			&b.PreferredSettlementMethods, &b.Deadline); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan package: %w", err)
		}
		b.Status = models.BatchStatus(status)
		byID[b.ID] = b
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read packages: %w", err)
	}

	cases, err := r.listCases(ctx, r.db.pool, packageIDs)
	if err != nil {
		return nil, err
	}
	for _, c := range cases {
		if b, ok := byID[c.PackageID]; ok {
			b.Cases = append(b.Cases, c)
		}
	}

	out := make([]*models.CaseBatch, 0, len(packageIDs))
	for _, id := range packageIDs {
		b, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("package %s: %w", id, ErrNotFound)
		}
		b.Recompute()
		out = append(out, b)
	}
	return out, nil
}

// listCases returns the assignable cases of the given packages, in import order.
func (r *CaseRepository) listCases(ctx context.Context, q querier, packageIDs []string) ([]*models.Case, error) {
	rows, err := q.Query(ctx, `
		SELECT case_id, package_id, debtor_name, region, amount, business_type,
			urgency, qualifications, status, overdue_days, created_at, updated_at
		FROM cases
		WHERE package_id = ANY($1) AND status IN ('pending', 'returned')
		ORDER BY package_id, created_at, case_id`, packageIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query cases: %w", err)
	}
	defer rows.Close()

	var cases []*models.Case
	for rows.Next() {
		var c models.Case
		var urgency, status string
		if err := rows.Scan(&c.ID, &c.PackageID, &c.DebtorName, &c.Region, &c.Amount, &c.BusinessType,
			&urgency, &c.Qualifications, &status, &c.OverdueDays, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan case: %w", err)
		}
		c.Urgency = models.UrgencyLevel(urgency)
		c.Status = models.CaseStatus(status)
		cases = append(cases, &c)
	}

	return cases, rows.Err()
}

// ListPackageIDs returns the ids of packages in the given status, oldest first.
func (r *CaseRepository) ListPackageIDs(ctx context.Context, status models.BatchStatus) ([]string, error) {
	rows, err := r.db.pool.Query(ctx,
		"SELECT package_id FROM case_packages WHERE status = $1 ORDER BY created_at, package_id",
		string(status))
	if err != nil {
		return nil, fmt.Errorf("failed to list packages: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan package id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// UpdatePackageStatus moves a package to next if the workflow allows it.
func (r *CaseRepository) UpdatePackageStatus(ctx context.Context, packageID string, next models.BatchStatus) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		return updatePackageStatus(ctx, tx, packageID, next)
	})
}

func updatePackageStatus(ctx context.Context, tx pgx.Tx, packageID string, next models.BatchStatus) error {
	var current string
	err := tx.QueryRow(ctx,
		"SELECT status FROM case_packages WHERE package_id = $1 FOR UPDATE", packageID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("package %s: %w", packageID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read package status: %w", err)
	}

	if current == string(next) {
		return nil
	}
	if !models.BatchStatus(current).CanTransitionTo(next) {
		return fmt.Errorf("package %s: %w: %s -> %s", packageID, ErrInvalidTransition, current, next)
	}

	_, err = tx.Exec(ctx,
		"UPDATE case_packages SET status = $1, updated_at = $2 WHERE package_id = $3",
		string(next), time.Now().UTC(), packageID)
	if err != nil {
		return fmt.Errorf("failed to update package status: %w", err)
	}
	return nil
}

// advanceToAssigned walks a package through assigning to assigned.
// Packages whose workflow does not allow it (drafts, withdrawn, closed) are left as they are.
func advanceToAssigned(ctx context.Context, tx pgx.Tx, packageID string) (bool, error) {
	for _, next := range []models.BatchStatus{models.BatchStatusAssigning, models.BatchStatusAssigned} {
		err := updatePackageStatus(ctx, tx, packageID, next)
		if errors.Is(err, ErrInvalidTransition) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
	}
	return true, nil
}
