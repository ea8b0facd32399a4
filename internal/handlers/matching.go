package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-lambda-go/events"

	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/services/matcher"
	"case-disposition-engine/internal/utils"
)

// PackageStore loads stored case packages by id.
type PackageStore interface {
	GetPackages(ctx context.Context, packageIDs []string) ([]*models.CaseBatch, error)
}

// OrganizationSource loads the candidate organization pool.
type OrganizationSource interface {
	ListCandidates(ctx context.Context) ([]*models.Organization, error)
}

// MatchRequest asks for the ranked organizations of one case package.
// Either Batch or BatchID is given; Organizations defaults to the stored candidate pool.
type MatchRequest struct {
	Batch         *models.CaseBatch      `json:"batch,omitempty"`
	BatchID       string                 `json:"batch_id,omitempty"`
	Organizations []*models.Organization `json:"organizations,omitempty"`
	Weights       *models.WeightVector   `json:"weights,omitempty"`
	Constraints   *models.ConstraintSet  `json:"constraints,omitempty"`
}

// PlanRequest asks for an assignment plan over several case packages.
type PlanRequest struct {
	Batches       []*models.CaseBatch    `json:"batches,omitempty"`
	BatchIDs      []string               `json:"batch_ids,omitempty"`
	Organizations []*models.Organization `json:"organizations,omitempty"`
	Weights       *models.WeightVector   `json:"weights,omitempty"`
	Constraints   *models.ConstraintSet  `json:"constraints,omitempty"`
}

// MatchingHandler serves match and plan previews.
type MatchingHandler struct {
	matcher  *matcher.MatcherService
	packages PackageStore
	orgs     OrganizationSource
}

// NewMatchingHandler creates a matching handler. packages and orgs may be nil,
// in which case requests must carry their batches and organizations inline.
func NewMatchingHandler(svc *matcher.MatcherService, packages PackageStore, orgs OrganizationSource) *MatchingHandler {
	return &MatchingHandler{matcher: svc, packages: packages, orgs: orgs}
}

// Match ranks organizations for the requested package.
func (h *MatchingHandler) Match(ctx context.Context, req MatchRequest) (*matcher.MatchOutcome, error) {
	batch := req.Batch
	if batch == nil {
		if req.BatchID == "" {
			return nil, missingField("batch", "batch or batch_id is required")
		}
		batches, err := h.loadBatches(ctx, []string{req.BatchID})
		if err != nil {
			return nil, err
		}
		batch = batches[0]
	} else if len(batch.Cases) > 0 {
		batch.Recompute()
	}

	orgs, err := h.loadOrganizations(ctx, req.Organizations)
	if err != nil {
		return nil, err
	}

	return h.matcher.WithOverrides(req.Weights, req.Constraints).Match(ctx, batch, orgs)
}

// Plan builds an assignment plan for the requested packages.
func (h *MatchingHandler) Plan(ctx context.Context, req PlanRequest) (*matcher.PlanningResult, error) {
	batches := req.Batches
	if len(batches) == 0 && len(req.BatchIDs) > 0 {
		loaded, err := h.loadBatches(ctx, req.BatchIDs)
		if err != nil {
			return nil, err
		}
		batches = loaded
	}
	for _, b := range batches {
		if b != nil && len(b.Cases) > 0 {
			b.Recompute()
		}
	}

	orgs, err := h.loadOrganizations(ctx, req.Organizations)
	if err != nil {
		return nil, err
	}

	return h.matcher.WithOverrides(req.Weights, req.Constraints).PlanAssignments(ctx, batches, orgs)
}

// HandleMatch processes POST /match requests.
func (h *MatchingHandler) HandleMatch(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := corsHeaders("POST,OPTIONS")
	if resp, ok := preflight(request, headers); ok {
		return resp, nil
	}

	var req MatchRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(headers, http.StatusBadRequest, "Invalid JSON in request body", nil)
	}

	outcome, err := h.Match(ctx, req)
	if err != nil {
		utils.Component("matching").Warn("Match request failed", utils.Error(err))
		return serviceErrorResponse(headers, err)
	}

	return jsonResponse(headers, http.StatusOK, fmt.Sprintf("%d organizations ranked", len(outcome.Results)), outcome)
}

// HandlePlan processes POST /plan requests.
func (h *MatchingHandler) HandlePlan(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := corsHeaders("POST,OPTIONS")
	if resp, ok := preflight(request, headers); ok {
		return resp, nil
	}

	var req PlanRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(headers, http.StatusBadRequest, "Invalid JSON in request body", nil)
	}

	result, err := h.Plan(ctx, req)
	if err != nil {
		utils.Component("matching").Warn("Plan request failed", utils.Error(err))
		return serviceErrorResponse(headers, err)
	}

	message := fmt.Sprintf("%d of %d cases assigned", result.Plan.AssignedCases, result.Plan.TotalCases)
	return jsonResponse(headers, http.StatusOK, message, result)
}

func (h *MatchingHandler) loadBatches(ctx context.Context, ids []string) ([]*models.CaseBatch, error) {
	if h.packages == nil {
		return nil, missingField("batches", "case packages must be sent inline when no database is configured")
	}
	batches, err := h.packages.GetPackages(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load case packages: %w", err)
	}
	return batches, nil
}

func (h *MatchingHandler) loadOrganizations(ctx context.Context, inline []*models.Organization) ([]*models.Organization, error) {
	if len(inline) > 0 {
		return inline, nil
	}
	if h.orgs == nil {
		return nil, missingField("organizations", "organizations must be sent inline when no database is configured")
	}
	orgs, err := h.orgs.ListCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load organizations: %w", err)
	}
	return orgs, nil
}

func missingField(field, message string) error {
	return models.ValidationErrors{{Field: field, Err: errors.New(message)}}
}
