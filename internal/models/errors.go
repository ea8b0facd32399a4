// Package models defines the data structures for the case disposition engine.
package models

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors
var (
	ErrValidation          = errors.New("validation failed")
	ErrEmptyCaseID         = errors.New("case id cannot be empty")
	ErrEmptyBatchID        = errors.New("batch id cannot be empty")
	ErrEmptyOrganizationID = errors.New("organization id cannot be empty")
	ErrNegativeAmount      = errors.New("amount cannot be negative")
	ErrNegativeCapacity    = errors.New("capacity cannot be negative")
	ErrInvalidLoad         = errors.New("current load must be between 0 and 100")
	ErrInvalidScore        = errors.New("score must be between 0 and 100")
	ErrInvalidRating       = errors.New("rating must be between 0 and 5")
	ErrInvalidWeight       = errors.New("weight must be between 0 and 100")
	ErrNegativeCount       = errors.New("count cannot be negative")
	ErrInvalidUrgency      = errors.New("invalid urgency level")
	ErrDuplicateID         = errors.New("duplicate id")
	ErrEmptyCollection     = errors.New("collection cannot be empty")
)

// ValidationError describes one malformed input field.
type ValidationError struct {
	Field string `json:"field"`
	Err   error  `json:"-"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// MarshalText lets validation errors render as plain strings in JSON responses.
func (e *ValidationError) MarshalText() ([]byte, error) {
	return []byte(e.Error()), nil
}

// ValidationErrors aggregates every problem found in one input.
type ValidationErrors []*ValidationError

func (v ValidationErrors) Error() string {
	msgs := make([]string, len(v))
	for i, e := range v {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("%s: %s", ErrValidation, strings.Join(msgs, "; "))
}

// Is makes errors.Is(err, ErrValidation) hold for any ValidationErrors value.
func (v ValidationErrors) Is(target error) bool {
	return target == ErrValidation
}

// Unwrap exposes the individual field errors to errors.Is / errors.As.
func (v ValidationErrors) Unwrap() []error {
	out := make([]error, len(v))
	for i, e := range v {
		out[i] = e
	}
	return out
}

// Fields lists the offending field paths.
func (v ValidationErrors) Fields() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.Field
	}
	return out
}

type validator struct {
	errs ValidationErrors
}

func (v *validator) add(field string, err error) {
	v.errs = append(v.errs, &ValidationError{Field: field, Err: err})
}

func (v *validator) err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return v.errs
}

// ValidateCase validates a single case.
func ValidateCase(c *Case) error {
	v := &validator{}
	validateCase(v, "case", c)
	return v.err()
}

func validateCase(v *validator, field string, c *Case) {
	if c == nil {
		v.add(field, ErrEmptyCaseID)
		return
	}
	if strings.TrimSpace(c.ID) == "" {
		v.add(field+".id", ErrEmptyCaseID)
	}
	if c.Amount < 0 {
		v.add(field+".amount", ErrNegativeAmount)
	}
	if c.Urgency != "" && !c.Urgency.IsValid() {
		v.add(field+".urgency", ErrInvalidUrgency)
	}
}

// ValidateCaseBatch validates a batch and all of its member cases.
func ValidateCaseBatch(b *CaseBatch) error {
	v := &validator{}
	validateBatch(v, "batch", b)
	return v.err()
}

func validateBatch(v *validator, field string, b *CaseBatch) {
	if b == nil {
		v.add(field, ErrEmptyBatchID)
		return
	}
	if strings.TrimSpace(b.ID) == "" {
		v.add(field+".id", ErrEmptyBatchID)
	}
	if b.MinCapacityRequired < 0 {
		v.add(field+".min_capacity_required", ErrNegativeCapacity)
	}
	if b.MinTeamSize < 0 {
		v.add(field+".min_team_size", ErrNegativeCount)
	}
	seen := make(map[string]struct{}, len(b.Cases))
	for i, c := range b.Cases {
		caseField := fmt.Sprintf("%s.cases[%d]", field, i)
		validateCase(v, caseField, c)
		if c == nil || c.ID == "" {
			continue
		}
		if _, dup := seen[c.ID]; dup {
			v.add(caseField+".id", fmt.Errorf("%w: %s", ErrDuplicateID, c.ID))
		}
		seen[c.ID] = struct{}{}
	}
}

// ValidateCaseBatches validates every batch and rejects duplicate batch ids.
func ValidateCaseBatches(batches []*CaseBatch) error {
	v := &validator{}
	if len(batches) == 0 {
		v.add("batches", ErrEmptyCollection)
	}
	seen := make(map[string]struct{}, len(batches))
	for i, b := range batches {
		field := fmt.Sprintf("batches[%d]", i)
		validateBatch(v, field, b)
		if b == nil || b.ID == "" {
			continue
		}
		if _, dup := seen[b.ID]; dup {
			v.add(field+".id", fmt.Errorf("%w: %s", ErrDuplicateID, b.ID))
		}
		seen[b.ID] = struct{}{}
	}
	return v.err()
}

// ValidateOrganization validates a single organization.
func ValidateOrganization(o *Organization) error {
	v := &validator{}
	validateOrganization(v, "organization", o)
	return v.err()
}

func validateOrganization(v *validator, field string, o *Organization) {
	if o == nil {
		v.add(field, ErrEmptyOrganizationID)
		return
	}
	if strings.TrimSpace(o.ID) == "" {
		v.add(field+".id", ErrEmptyOrganizationID)
	}
	if o.MonthlyCapacity < 0 {
		v.add(field+".monthly_capacity", ErrNegativeCapacity)
	}
	if o.TeamSize < 0 {
		v.add(field+".team_size", ErrNegativeCount)
	}
	if o.CurrentLoad < 0 || o.CurrentLoad > 100 {
		v.add(field+".current_load", ErrInvalidLoad)
	}
	if o.Performance.RecoveryRate < 0 || o.Performance.RecoveryRate > 100 {
		v.add(field+".performance.recovery_rate", ErrInvalidScore)
	}
	if o.Performance.Rating < 0 || o.Performance.Rating > 5 {
		v.add(field+".performance.rating", ErrInvalidRating)
	}
}

// ValidateOrganizations validates a candidate pool and rejects duplicate ids.
func ValidateOrganizations(orgs []*Organization) error {
	v := &validator{}
	if len(orgs) == 0 {
		v.add("organizations", ErrEmptyCollection)
	}
	seen := make(map[string]struct{}, len(orgs))
	for i, o := range orgs {
		field := fmt.Sprintf("organizations[%d]", i)
		validateOrganization(v, field, o)
		if o == nil || o.ID == "" {
			continue
		}
		if _, dup := seen[o.ID]; dup {
			v.add(field+".id", fmt.Errorf("%w: %s", ErrDuplicateID, o.ID))
		}
		seen[o.ID] = struct{}{}
	}
	return v.err()
}

// ValidateWeights checks every weight is within [0, 100] and the total is positive.
func ValidateWeights(w WeightVector) error {
	v := &validator{}
	components := []struct {
		name  string
		value float64
	}{
		{"weights.region", w.Region},
		{"weights.performance", w.Performance},
		{"weights.capacity", w.Capacity},
		{"weights.specialty", w.Specialty},
		{"weights.cost", w.Cost},
	}
	for _, c := range components {
		if c.value < 0 || c.value > 100 {
			v.add(c.name, ErrInvalidWeight)
		}
	}
	if len(v.errs) == 0 && w.Total() <= 0 {
		v.add("weights", errors.New("weights must have a positive total"))
	}
	return v.err()
}

// ValidateConstraints checks the constraint set is within range.
func ValidateConstraints(c ConstraintSet) error {
	v := &validator{}
	if c.MinMatchScore < 0 || c.MinMatchScore > 100 {
		v.add("constraints.min_match_score", ErrInvalidScore)
	}
	if c.MaxCasesPerOrg < 0 {
		v.add("constraints.max_cases_per_org", ErrNegativeCount)
	}
	if c.MaxLoadRate < 0 || c.MaxLoadRate > 100 {
		v.add("constraints.max_load_rate", ErrInvalidLoad)
	}
	return v.err()
}
