// Package models defines the data structures for the case disposition engine.
package models

import (
	"strings"
	"time"
)

// UrgencyLevel represents how urgently a case or case package must be worked.
type UrgencyLevel string

const (
	UrgencyLow    UrgencyLevel = "low"
	UrgencyMedium UrgencyLevel = "medium"
	UrgencyHigh   UrgencyLevel = "high"
	UrgencyUrgent UrgencyLevel = "urgent"
)

// ValidUrgencyLevels returns all valid urgency values.
func ValidUrgencyLevels() []UrgencyLevel {
	return []UrgencyLevel{
		UrgencyLow,
		UrgencyMedium,
		UrgencyHigh,
		UrgencyUrgent,
	}
}

// IsValid checks if the urgency level is valid.
func (u UrgencyLevel) IsValid() bool {
	for _, valid := range ValidUrgencyLevels() {
		if u == valid {
			return true
		}
	}
	return false
}

// Rank orders urgency levels from 0 (low) to 3 (urgent). Unknown values rank as medium.
func (u UrgencyLevel) Rank() int {
	switch u {
	case UrgencyLow:
		return 0
	case UrgencyHigh:
		return 2
	case UrgencyUrgent:
		return 3
	default:
		return 1
	}
}

// NormalizeUrgency converts the spellings found in case exports to standard values.
func NormalizeUrgency(level string) UrgencyLevel {
	normalized := strings.ToLower(strings.TrimSpace(level))

	urgencyMap := map[string]UrgencyLevel{
		"":         UrgencyMedium,
		"low":      UrgencyLow,
		"l":        UrgencyLow,
		"normal":   UrgencyMedium,
		"medium":   UrgencyMedium,
		"m":        UrgencyMedium,
		"high":     UrgencyHigh,
		"h":        UrgencyHigh,
		"urgent":   UrgencyUrgent,
		"critical": UrgencyUrgent,
		"asap":     UrgencyUrgent,
	}

	if mapped, ok := urgencyMap[normalized]; ok {
		return mapped
	}

	return UrgencyLevel(normalized)
}

// Case is a single overdue-debt record. The matching engine never mutates it.
type Case struct {
	ID             string       `json:"id" db:"case_id"`
	PackageID      string       `json:"package_id,omitempty" db:"package_id"`
	DebtorName     string       `json:"debtor_name,omitempty" db:"debtor_name"`
	Region         string       `json:"region" db:"region"`
	Amount         float64      `json:"amount" db:"amount"`
	BusinessType   string       `json:"business_type" db:"business_type"`
	Urgency        UrgencyLevel `json:"urgency" db:"urgency"`
	Qualifications []string     `json:"qualifications,omitempty" db:"qualifications"`
	Status         CaseStatus   `json:"status,omitempty" db:"status"`
	OverdueDays    int          `json:"overdue_days,omitempty" db:"overdue_days"`
	CreatedAt      time.Time    `json:"created_at,omitempty" db:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at,omitempty" db:"updated_at"`
}

// CaseBatch is a group of cases published together for assignment (a case package).
type CaseBatch struct {
	ID                         string       `json:"id"`
	Name                       string       `json:"name,omitempty"`
	Cases                      []*Case      `json:"cases"`
	CaseCount                  int          `json:"case_count"`
	TotalAmount                float64      `json:"total_amount"`
	Regions                    []string     `json:"regions"`
	BusinessTypes              []string     `json:"business_types"`
	MinTeamSize                int          `json:"min_team_size,omitempty"`
	MinCapacityRequired        float64      `json:"min_capacity_required,omitempty"`
	RequiredQualifications     []string     `json:"required_qualifications,omitempty"`
	PreferredSettlementMethods []string     `json:"preferred_settlement_methods,omitempty"`
	Urgency                    UrgencyLevel `json:"urgency,omitempty"`
	Deadline                   *time.Time   `json:"deadline,omitempty"`
	Status                     BatchStatus  `json:"status,omitempty"`
}

// NewCaseBatch builds a batch from its member cases and derives the aggregate fields.
func NewCaseBatch(id string, cases []*Case) *CaseBatch {
	b := &CaseBatch{
		ID:     id,
		Cases:  cases,
		Status: BatchStatusDraft,
	}
	b.Recompute()
	return b
}

// Recompute derives count, amount, regions, business types, qualifications and urgency from the member cases.
// Explicitly configured regions and business types are kept and extended. Nil entries are not counted.
func (b *CaseBatch) Recompute() {
	b.CaseCount = 0
	b.TotalAmount = 0

	highest := UrgencyLevel("")
	for _, c := range b.Cases {
		if c == nil {
			continue
		}
		b.CaseCount++
		b.TotalAmount += c.Amount
		b.Regions = appendUnique(b.Regions, c.Region)
		b.BusinessTypes = appendUnique(b.BusinessTypes, c.BusinessType)
		for _, q := range c.Qualifications {
			b.RequiredQualifications = appendUnique(b.RequiredQualifications, q)
		}
		if highest == "" || c.Urgency.Rank() > highest.Rank() {
			highest = c.Urgency
		}
	}

	if b.Urgency == "" && highest != "" {
		b.Urgency = highest
	}
}

// ToSummary converts a CaseBatch to a lightweight view without member cases.
func (b *CaseBatch) ToSummary() CaseBatchSummary {
	return CaseBatchSummary{
		ID:          b.ID,
		Name:        b.Name,
		CaseCount:   b.CaseCount,
		TotalAmount: b.TotalAmount,
		Regions:     b.Regions,
		Urgency:     b.Urgency,
		Status:      b.Status,
	}
}

// CaseBatchSummary is a lightweight view for display purposes.
type CaseBatchSummary struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	CaseCount   int          `json:"case_count"`
	TotalAmount float64      `json:"total_amount"`
	Regions     []string     `json:"regions"`
	Urgency     UrgencyLevel `json:"urgency,omitempty"`
	Status      BatchStatus  `json:"status,omitempty"`
}

// BulkInsertResult contains the results of a bulk insert operation.
type BulkInsertResult struct {
	InsertedCount int      `json:"inserted_count"`
	FailedCount   int      `json:"failed_count"`
	Errors        []string `json:"errors,omitempty"`
}

// Overlaps reports whether two tag sets share at least one value.
// Comparison ignores surrounding whitespace and letter case.
func Overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	seen := make(map[string]struct{}, len(a))
	for _, v := range a {
		if key := normalizeTag(v); key != "" {
			seen[key] = struct{}{}
		}
	}
	for _, v := range b {
		if _, ok := seen[normalizeTag(v)]; ok {
			return true
		}
	}
	return false
}

func normalizeTag(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

func appendUnique(values []string, v string) []string {
	key := normalizeTag(v)
	if key == "" {
		return values
	}
	for _, existing := range values {
		if normalizeTag(existing) == key {
			return values
		}
	}
	return append(values, strings.TrimSpace(v))
}
