package dispatch

import "github.com/prometheus/client_golang/prometheus"

var (
	jobsSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_jobs_submitted_total",
			Help: "Jobs written into an engine queue.",
		},
		[]string{"engine"},
	)

	jobOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ttsgate_job_outcomes_total",
			Help: "Terminal outcomes observed by the dispatcher.",
		},
		[]string{"engine", "outcome"},
	)

	// Cleanup is best-effort and never surfaces to the caller; this counter
	// is the observability channel for the swallowed failures.
	cleanupFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ttsgate_cleanup_failures_total",
			Help: "Job-scoped file deletions that failed during cleanup.",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsSubmitted)
	prometheus.MustRegister(jobOutcomes)
	prometheus.MustRegister(cleanupFailures)
}
