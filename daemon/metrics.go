package daemon

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	workermetrics "github.com/fluxcd/artifactory-worker/metrics"
)

var (
	// From acknowledging to cleaning up. Most of it is the download
	// and npm publish.
	jobDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "artifactory_worker",
		Subsystem: "daemon",
		Name:      "job_duration_seconds",
		Help:      "Duration of job execution, in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 15, 20, 30, 45, 60, 120, 300},
	}, []string{workermetrics.LabelSuccess})

	jobsTotal = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "artifactory_worker",
		Subsystem: "daemon",
		Name:      "jobs_total",
		Help:      "Count of jobs claimed, by outcome.",
	}, []string{workermetrics.LabelOutcome})
)
