package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(jobsProcessedTotal, jobsInflight) }

var jobsProcessedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "spider_jobs_processed_total",
		Help: "Total number of scrape jobs finished, labeled by status.",
	},
	[]string{"status"}, // 'completed', 'failed'
)

var jobsInflight = prometheus.NewGauge(
	prometheus.GaugeOpts{
		Name: "spider_jobs_inflight",
		Help: "Number of worker slots currently occupied by running jobs.",
	},
)

func IncJob(status string) {
	jobsProcessedTotal.WithLabelValues(norm(status)).Inc()
}

func SetJobsInflight(n int) {
	jobsInflight.Set(float64(n))
}
