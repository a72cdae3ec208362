package worker

import "github.com/prometheus/client_golang/prometheus"

var jobsProcessed = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ttsgate_worker_jobs_processed_total",
		Help: "Jobs driven to a terminal marker by a worker loop.",
	},
	[]string{"engine", "outcome"},
)

func init() {
	prometheus.MustRegister(jobsProcessed)
}
