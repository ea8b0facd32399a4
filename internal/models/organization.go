// Package models defines the data structures for the case disposition engine.
package models

import (
	"time"
)

// OrganizationType represents the kind of disposal organization.
type OrganizationType string

const (
	OrganizationTypeLawFirm     OrganizationType = "law_firm"
	OrganizationTypeMediation   OrganizationType = "mediation_center"
	OrganizationTypeCollection  OrganizationType = "collection_agency"
	OrganizationTypeArbitration OrganizationType = "arbitration"
)

// OperatingStatus describes whether an organization can take new work.
type OperatingStatus string

const (
	OperatingStatusActive OperatingStatus = "active"
	OperatingStatusBusy   OperatingStatus = "busy"
	OperatingStatusFull   OperatingStatus = "full"
)

// MembershipStatus describes the organization's platform membership.
type MembershipStatus string

const (
	MembershipStatusActive  MembershipStatus = "active"
	MembershipStatusExpired MembershipStatus = "expired"
)

// PerformanceMetrics holds the historical performance of an organization.
type PerformanceMetrics struct {
	RecoveryRate      float64 `json:"recovery_rate" db:"recovery_rate"`
	AvgProcessingDays float64 `json:"avg_processing_days" db:"avg_processing_days"`
	Rating            float64 `json:"rating" db:"rating"`
	Reputation        float64 `json:"reputation" db:"reputation"`
}

// Organization is a disposal entity eligible to receive cases.
type Organization struct {
	ID                string             `json:"id" db:"org_id"`
	Name              string             `json:"name" db:"name"`
	Type              OrganizationType   `json:"type" db:"org_type"`
	ServiceRegions    []string           `json:"service_regions" db:"service_regions"`
	TeamSize          int                `json:"team_size" db:"team_size"`
	MonthlyCapacity   float64            `json:"monthly_capacity" db:"monthly_capacity"`
	CurrentLoad       float64            `json:"current_load" db:"current_load"`
	BusinessScope     []string           `json:"business_scope" db:"business_scope"`
	DisposalTypes     []string           `json:"disposal_types,omitempty" db:"disposal_types"`
	SettlementMethods []string           `json:"settlement_methods" db:"settlement_methods"`
	Qualifications    []string           `json:"qualifications,omitempty" db:"qualifications"`
	Performance       PerformanceMetrics `json:"performance"`
	Status            OperatingStatus    `json:"status" db:"status"`
	MembershipStatus  MembershipStatus   `json:"membership_status" db:"membership_status"`
	ContactEmail      string             `json:"contact_email,omitempty" db:"contact_email"`
	CreatedAt         time.Time          `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt         time.Time          `json:"updated_at,omitempty" db:"updated_at"`
}

// AvailableCapacity returns monthlyCapacity × (1 − currentLoad/100), never negative.
func (o *Organization) AvailableCapacity() float64 {
	available := o.MonthlyCapacity * (1 - o.CurrentLoad/100)
	if available < 0 {
		return 0
	}
	return available
}

// IsEligible reports whether the organization may be scored at all.
func (o *Organization) IsEligible() bool {
	return o.Status == OperatingStatusActive && o.MembershipStatus == MembershipStatusActive
}

// ToSummary converts an Organization to OrganizationSummary.
func (o *Organization) ToSummary() OrganizationSummary {
	return OrganizationSummary{
		ID:                o.ID,
		Name:              o.Name,
		Type:              o.Type,
		MonthlyCapacity:   o.MonthlyCapacity,
		CurrentLoad:       o.CurrentLoad,
		AvailableCapacity: o.AvailableCapacity(),
		RecoveryRate:      o.Performance.RecoveryRate,
		Rating:            o.Performance.Rating,
	}
}

// OrganizationSummary is a lightweight view for display purposes.
type OrganizationSummary struct {
	ID                string           `json:"id"`
	Name              string           `json:"name"`
	Type              OrganizationType `json:"type"`
	MonthlyCapacity   float64          `json:"monthly_capacity"`
	CurrentLoad       float64          `json:"current_load"`
	AvailableCapacity float64          `json:"available_capacity"`
	RecoveryRate      float64          `json:"recovery_rate"`
	Rating            float64          `json:"rating"`
}
