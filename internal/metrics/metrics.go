// Package metrics provides Prometheus metrics for the matching engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry is the custom prometheus registry for the engine.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// PlansTotal counts assignment plans produced, labelled by outcome (complete, partial, empty).
var PlansTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "casematch",
	Name:      "plans_total",
	Help:      "Number of assignment plans produced, by outcome",
}, []string{"outcome"})

// CasesAssignedTotal counts cases placed with an organization.
var CasesAssignedTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "casematch",
	Name:      "cases_assigned_total",
	Help:      "Total number of cases placed with an organization",
})

// CasesUnassignedTotal counts cases no eligible organization could take.
var CasesUnassignedTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "casematch",
	Name:      "cases_unassigned_total",
	Help:      "Total number of cases left unassigned by the planner",
})

// LastSuccessRate is the success rate of the most recent plan (0-100).
var LastSuccessRate = factory.NewGauge(prometheus.GaugeOpts{
	Namespace: "casematch",
	Name:      "last_plan_success_rate",
	Help:      "Success rate of the most recent assignment plan",
})

// MatchesScoredTotal counts (batch, organization) pairs scored.
var MatchesScoredTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "casematch",
	Name:      "matches_scored_total",
	Help:      "Total number of batch/organization pairs scored",
})

// ValidationFailuresTotal counts requests rejected before scoring.
var ValidationFailuresTotal = factory.NewCounter(prometheus.CounterOpts{
	Namespace: "casematch",
	Name:      "validation_failures_total",
	Help:      "Number of requests rejected by input validation",
})

// ConfigurationWarningsTotal counts non-fatal configuration warnings, by code.
var ConfigurationWarningsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "casematch",
	Name:      "configuration_warnings_total",
	Help:      "Number of non-fatal configuration warnings attached to results",
}, []string{"code"})

// PlanningDuration observes end-to-end planning time in seconds.
var PlanningDuration = factory.NewHistogram(prometheus.HistogramOpts{
	Namespace: "casematch",
	Name:      "planning_duration_seconds",
	Help:      "Time spent validating, scoring and planning one request",
	Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
})

// OrgCacheRequestsTotal counts organization pool cache lookups by result (hit, miss, error).
var OrgCacheRequestsTotal = factory.NewCounterVec(prometheus.CounterOpts{
	Namespace: "casematch",
	Name:      "org_cache_requests_total",
	Help:      "Organization pool cache lookups, by result",
}, []string{"result"})
