package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/services/database"
	"case-disposition-engine/internal/services/ses"
	"case-disposition-engine/internal/utils"
)

// PlanStore persists confirmed plans.
type PlanStore interface {
	SavePlan(ctx context.Context, plan *models.AssignmentPlan) (*database.ConfirmResult, error)
	SetReportKey(ctx context.Context, planID, key string) error
}

// ReportStore keeps the JSON report of a confirmed plan.
type ReportStore interface {
	PutPlanReport(ctx context.Context, plan *models.AssignmentPlan, elapsed time.Duration) (string, error)
}

// Notifier sends assignment emails to organizations.
type Notifier interface {
	SendAssignmentNotifications(ctx context.Context, notifications []ses.AssignmentNotificationParams) ([]ses.SendEmailResult, []error)
}

// CacheInvalidator drops cached organization data after loads change.
type CacheInvalidator interface {
	Invalidate(ctx context.Context) error
}

// ConfirmResponse reports what a confirmation changed.
type ConfirmResponse struct {
	Plan               *models.AssignmentPlan  `json:"plan"`
	Summary            models.PlanSummary      `json:"summary"`
	Confirmed          *database.ConfirmResult `json:"confirmed"`
	ReportKey          string                  `json:"report_key,omitempty"`
	NotificationsSent  int                     `json:"notifications_sent"`
	NotificationErrors []string                `json:"notification_errors,omitempty"`
}

// ConfirmHandler plans and then commits an assignment.
// Reports and notifications are best effort: their failures are logged and reported, not returned.
type ConfirmHandler struct {
	matching *MatchingHandler
	plans    PlanStore
	reports  ReportStore
	notifier Notifier
	cache    CacheInvalidator
}

// NewConfirmHandler creates a confirm handler. reports, notifier and cache are optional.
func NewConfirmHandler(matching *MatchingHandler, plans PlanStore, reports ReportStore, notifier Notifier, cache CacheInvalidator) *ConfirmHandler {
	return &ConfirmHandler{
		matching: matching,
		plans:    plans,
		reports:  reports,
		notifier: notifier,
		cache:    cache,
	}
}

// Confirm plans the request and persists the result.
func (h *ConfirmHandler) Confirm(ctx context.Context, req PlanRequest) (*ConfirmResponse, error) {
	logger := utils.Component("confirm")

	result, err := h.matching.Plan(ctx, req)
	if err != nil {
		return nil, err
	}
	plan := result.Plan

	if plan.AssignedCases == 0 {
		return nil, missingField("assignments", "plan has no assignments to confirm")
	}

	confirmed, err := h.plans.SavePlan(ctx, plan)
	if err != nil {
		return nil, err
	}

	logger.Info("Assignment plan confirmed",
		utils.PlanID(plan.ID),
		utils.Int("assignments", confirmed.AssignmentsSaved),
		utils.Int("cases", confirmed.CasesAssigned),
		utils.Strings("packages_assigned", confirmed.PackagesAssigned),
	)

	if h.cache != nil {
		if err := h.cache.Invalidate(ctx); err != nil {
			logger.Warn("Failed to invalidate organization cache", utils.Error(err))
		}
	}

	resp := &ConfirmResponse{
		Plan:      plan,
		Summary:   plan.Summary(result.ProcessingTime),
		Confirmed: confirmed,
	}

	if h.reports != nil {
		key, err := h.reports.PutPlanReport(ctx, plan, result.ProcessingTime)
		if err != nil {
			logger.Warn("Failed to store plan report", utils.PlanID(plan.ID), utils.Error(err))
		} else if err := h.plans.SetReportKey(ctx, plan.ID, key); err != nil {
			logger.Warn("Failed to record plan report key", utils.PlanID(plan.ID), utils.Error(err))
		} else {
			resp.ReportKey = key
		}
	}

	if h.notifier != nil {
		orgs, err := h.matching.loadOrganizations(ctx, req.Organizations)
		if err != nil {
			logger.Warn("Failed to load organizations for notification", utils.Error(err))
		} else {
			byID := make(map[string]*models.Organization, len(orgs))
			for _, o := range orgs {
				byID[o.ID] = o
			}
			params := ses.BuildAssignmentNotificationParams(plan, byID, resp.ReportKey)
			sent, errs := h.notifier.SendAssignmentNotifications(ctx, params)
			resp.NotificationsSent = len(sent)
			for _, e := range errs {
				resp.NotificationErrors = append(resp.NotificationErrors, e.Error())
			}
		}
	}

	return resp, nil
}

// HandleConfirm processes POST /plans/confirm requests.
func (h *ConfirmHandler) HandleConfirm(ctx context.Context, request events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	headers := corsHeaders("POST,OPTIONS")
	if resp, ok := preflight(request, headers); ok {
		return resp, nil
	}

	var req PlanRequest
	if err := json.Unmarshal([]byte(request.Body), &req); err != nil {
		return errorResponse(headers, http.StatusBadRequest, "Invalid JSON in request body", nil)
	}

	resp, err := h.Confirm(ctx, req)
	if err != nil {
		utils.Component("confirm").Warn("Confirm request failed", utils.Error(err))
		return serviceErrorResponse(headers, err)
	}

	message := fmt.Sprintf("plan %s confirmed: %d cases assigned", resp.Plan.ID, resp.Confirmed.CasesAssigned)
	return jsonResponse(headers, http.StatusCreated, message, resp)
}
