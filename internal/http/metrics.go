package http

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Funnel counters, one per stage. The admin view derives its numbers from
// the store; these exist for dashboards and alerting.
var (
	sessionsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procbse_sessions_created_total",
		Help: "New visitor sessions created.",
	})

	pageViews = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procbse_page_views_total",
		Help: "Page views recorded.",
	})

	registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procbse_registrations_total",
		Help: "Completed registrations.",
	})

	verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "procbse_screenshot_verifications_total",
		Help: "Screenshot verification verdicts by step and outcome.",
	}, []string{"step", "verdict"})

	rewardDisclosures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "procbse_reward_disclosures_total",
		Help: "First-time reward link disclosures.",
	})
)
