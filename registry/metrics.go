package registry

import (
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"

	workermetrics "github.com/fluxcd/artifactory-worker/metrics"
)

var (
	// Mostly npm talking to the registry.
	publishDuration = prometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
		Namespace: "artifactory_worker",
		Subsystem: "registry",
		Name:      "publish_duration_seconds",
		Help:      "Duration of publishing an artifact, in seconds.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
	}, []string{workermetrics.LabelArtifactType, workermetrics.LabelSuccess})
)
