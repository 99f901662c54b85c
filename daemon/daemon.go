// Package daemon runs the worker: it takes one job at a time from
// the pipeline through download, expansion and publishing, reports
// the outcome, and cleans up after it.
package daemon

import (
	"context"

	"github.com/go-kit/kit/log"

	worker "github.com/fluxcd/artifactory-worker"
)

// JobSource claims jobs; *pipeline.Source is one.
type JobSource interface {
	Poll(ctx context.Context) (worker.Job, error)
	Acknowledge(ctx context.Context, id worker.JobID, nonce string) error
}

// Reporter reports outcomes; *pipeline.Reporter is one.
type Reporter interface {
	SignalSuccess(ctx context.Context, id worker.JobID) error
	SignalFailure(ctx context.Context, id worker.JobID, msg string)
}

// Fetcher downloads input artifacts; *artifact.Fetcher is one.
type Fetcher interface {
	FetchInput(ctx context.Context, loc worker.Location, creds worker.Credentials) (string, worker.Workspace, error)
}

// Expander unpacks downloads; *artifact.Expander is one.
type Expander interface {
	Expand(filename, priorRoot string) (worker.Workspace, error)
}

// Publisher publishes workspaces, and owns the state shared between
// jobs that has to be cleared after each; *registry.Publisher is one.
type Publisher interface {
	PublishJob(ctx context.Context, config worker.ActionConfiguration, ws worker.Workspace) (worker.PublishResult, error)
	RemoveCredentialFile() error
	CleanCache(ctx context.Context) error
}

// Daemon holds the components a job passes through. Only one job is
// ever in flight.
type Daemon struct {
	Source    JobSource
	Reporter  Reporter
	Fetcher   Fetcher
	Expander  Expander
	Publisher Publisher
	Logger    log.Logger
}
