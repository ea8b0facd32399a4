package models

// CaseStatus represents where a case is in the disposition workflow.
type CaseStatus string

const (
	CaseStatusPending    CaseStatus = "pending"
	CaseStatusAssigned   CaseStatus = "assigned"
	CaseStatusInProgress CaseStatus = "in_progress"
	CaseStatusSettled    CaseStatus = "settled"
	CaseStatusReturned   CaseStatus = "returned"
	CaseStatusClosed     CaseStatus = "closed"
)

var caseTransitions = map[CaseStatus][]CaseStatus{
	CaseStatusPending:    {CaseStatusAssigned, CaseStatusClosed},
	CaseStatusAssigned:   {CaseStatusInProgress, CaseStatusReturned},
	CaseStatusInProgress: {CaseStatusSettled, CaseStatusReturned},
	CaseStatusReturned:   {CaseStatusAssigned, CaseStatusClosed},
	CaseStatusSettled:    {CaseStatusClosed},
	CaseStatusClosed:     {},
}

// IsValid checks if the case status is known.
func (s CaseStatus) IsValid() bool {
	_, ok := caseTransitions[s]
	return ok
}

// NextStatuses returns the statuses reachable from s in one step.
func (s CaseStatus) NextStatuses() []CaseStatus {
	next := caseTransitions[s]
	out := make([]CaseStatus, len(next))
	copy(out, next)
	return out
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s CaseStatus) CanTransitionTo(next CaseStatus) bool {
	for _, allowed := range caseTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// BatchStatus represents the publication state of a case package.
type BatchStatus string

const (
	BatchStatusDraft     BatchStatus = "draft"
	BatchStatusPublished BatchStatus = "published"
	BatchStatusAssigning BatchStatus = "assigning"
	BatchStatusAssigned  BatchStatus = "assigned"
	BatchStatusClosed    BatchStatus = "closed"
	BatchStatusWithdrawn BatchStatus = "withdrawn"
)

var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchStatusDraft:     {BatchStatusPublished, BatchStatusWithdrawn},
	BatchStatusPublished: {BatchStatusAssigning, BatchStatusWithdrawn},
	BatchStatusAssigning: {BatchStatusAssigned, BatchStatusPublished},
	BatchStatusAssigned:  {BatchStatusClosed},
	BatchStatusWithdrawn: {BatchStatusDraft},
	BatchStatusClosed:    {},
}

// IsValid checks if the batch status is known.
func (s BatchStatus) IsValid() bool {
	_, ok := batchTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s BatchStatus) CanTransitionTo(next BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
