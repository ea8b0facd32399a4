package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"case-disposition-engine/internal/models"
)

// OrganizationRepository handles disposal organization database operations.
type OrganizationRepository struct {
	db *DB
}

// NewOrganizationRepository creates a new organization repository.
func NewOrganizationRepository(db *DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

const organizationColumns = `
	org_id, name, org_type, service_regions, team_size, monthly_capacity, current_load,
	business_scope, disposal_types, settlement_methods, qualifications,
	recovery_rate, avg_processing_days, rating, reputation,
	status, membership_status, contact_email, created_at, updated_at`

// Upsert inserts or updates an organization.
func (r *OrganizationRepository) Upsert(ctx context.Context, org *models.Organization) error {
	if err := models.ValidateOrganization(org); err != nil {
		return err
	}

	query := `
		INSERT INTO organizations (` + organizationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $19)
		ON CONFLICT (org_id) DO UPDATE SET
			name = EXCLUDED.name,
			org_type = EXCLUDED.org_type,
			service_regions = EXCLUDED.service_regions,
			team_size = EXCLUDED.team_size,
			monthly_capacity = EXCLUDED.monthly_capacity,
			current_load = EXCLUDED.current_load,
			business_scope = EXCLUDED.business_scope,
			disposal_types = EXCLUDED.disposal_types,
			settlement_methods = EXCLUDED.settlement_methods,
			qualifications = EXCLUDED.qualifications,
			recovery_rate = EXCLUDED.recovery_rate,
			avg_processing_days = EXCLUDED.avg_processing_days,
			rating = EXCLUDED.rating,
			reputation = EXCLUDED.reputation,
			status = EXCLUDED.status,
			membership_status = EXCLUDED.membership_status,
			contact_email = EXCLUDED.contact_email,
			updated_at = EXCLUDED.updated_at`

	_, err := r.db.pool.Exec(ctx, query,
		org.ID,
		org.Name,
		string(org.Type),
		org.ServiceRegions,
		org.TeamSize,
		org.MonthlyCapacity,
		org.CurrentLoad,
		org.BusinessScope,
		org.DisposalTypes,
		org.SettlementMethods,
		org.Qualifications,
		org.Performance.RecoveryRate,
		org.Performance.AvgProcessingDays,
		org.Performance.Rating,
		org.Performance.Reputation,
		string(org.Status),
		string(org.MembershipStatus),
		org.ContactEmail,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert organization %s: %w", org.ID, err)
	}

	return nil
}

// GetByID retrieves an organization by id. Returns nil when it does not exist.
func (r *OrganizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	row := r.db.pool.QueryRow(ctx, "SELECT "+organizationColumns+" FROM organizations WHERE org_id = $1", id)

	org, err := scanOrganization(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return org, nil
}

// ListCandidates returns every organization with an active membership, ordered by id.
// Operating status is not filtered here so that ranking can report how many were excluded.
func (r *OrganizationRepository) ListCandidates(ctx context.Context) ([]*models.Organization, error) {
	return r.list(ctx, "SELECT "+organizationColumns+" FROM organizations WHERE membership_status = 'active' ORDER BY org_id")
}

// ListAll returns every organization, ordered by id.
func (r *OrganizationRepository) ListAll(ctx context.Context) ([]*models.Organization, error) {
	return r.list(ctx, "SELECT "+organizationColumns+" FROM organizations ORDER BY org_id")
}

func (r *OrganizationRepository) list(ctx context.Context, query string, args ...any) ([]*models.Organization, error) {
	rows, err := r.db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query organizations: %w", err)
	}
	defer rows.Close()

	var orgs []*models.Organization
	for rows.Next() {
		org, err := scanOrganization(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan organization: %w", err)
		}
		orgs = append(orgs, org)
	}

	return orgs, rows.Err()
}

// UpdateStatus changes an organization's operating status.
func (r *OrganizationRepository) UpdateStatus(ctx context.Context, id string, status models.OperatingStatus) error {
	tag, err := r.db.pool.Exec(ctx,
		"UPDATE organizations SET status = $1, updated_at = $2 WHERE org_id = $3",
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update organization status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("organization %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanOrganization(row pgx.Row) (*models.Organization, error) {
	var org models.Organization
	var orgType, status, membership string

	err := row.Scan(
		&org.ID,
		&org.Name,
		&orgType,
		&org.ServiceRegions,
		&org.TeamSize,
		&org.MonthlyCapacity,
		&org.CurrentLoad,
		&org.BusinessScope,
		&org.DisposalTypes,
		&org.SettlementMethods,
		&org.Qualifications,
		&org.Performance.RecoveryRate,
		&org.Performance.AvgProcessingDays,
		&org.Performance.Rating,
		&org.Performance.Reputation,
		&status,
		&membership,
		&org.ContactEmail,
		&org.CreatedAt,
		&org.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	org.Type = models.OrganizationType(orgType)
	org.Status = models.OperatingStatus(status)
	org.MembershipStatus = models.MembershipStatus(membership)
	return &org, nil
}
