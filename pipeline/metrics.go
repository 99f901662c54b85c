package pipeline

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	pollErrors = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "artifactory_worker",
		Subsystem: "pipeline",
		Name:      "poll_errors_total",
		Help:      "Count of polls for jobs that failed, and were retried.",
	}, []string{})

	pollsEmpty = prometheus.NewCounterFrom(stdprometheus.CounterOpts{
		Namespace: "artifactory_worker",
		Subsystem: "pipeline",
		Name:      "polls_empty_total",
		Help:      "Count of polls for jobs that found none.",
	}, []string{})
)
