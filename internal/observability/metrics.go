package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Ingestion results used as the "result" label of LeadsIngested.
const (
	IngestCreated = "created"
	IngestUpdated = "updated"
	IngestInvalid = "invalid"
	IngestError   = "error"
)

// Domain counters. HTTP traffic metrics live in the middleware package.
var (
	// LeadsIngested counts ingestion calls by outcome.
	LeadsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leads_ingested_total",
			Help: "Lead ingestion calls by result (created, updated, invalid, error).",
		},
		[]string{"result"},
	)

	// ReconcileChanges counts category rows whose status the reconciler flipped.
	ReconcileChanges = promauto.NewCounter(prometheus.CounterOpts{
		Name: "category_reconcile_changes_total",
		Help: "Category status changes written by the reconciler.",
	})

	// ReconcileFailures counts reconciliation runs that errored and were swallowed.
	ReconcileFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "category_reconcile_failures_total",
		Help: "Best-effort category reconciliation runs that failed.",
	})

	// WorkflowTriggerErrors counts failed hand-offs to the scraping workflow.
	WorkflowTriggerErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_trigger_errors_total",
			Help: "Failed zip-request workflow triggers by driver.",
		},
		[]string{"driver"},
	)

	// NotificationFailures counts new-lead emails that could not be sent.
	NotificationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lead_notifications_failed_total",
		Help: "New-lead notification emails that failed to send.",
	})
)
