package daemon

import (
	"context"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
	workermetrics "github.com/fluxcd/artifactory-worker/metrics"
)

// Outcomes, as counted in metrics.
const (
	outcomeSucceeded  = "succeeded"
	outcomeFailed     = "failed"
	outcomeAbandoned  = "abandoned"
	outcomeUnreported = "unreported"
)

// Loop polls for jobs and processes them, one after the other, until
// stop is closed or a job's success cannot be reported. Closing stop
// interrupts polling, but never a job in flight.
func (d *Daemon) Loop(stop chan struct{}, logger log.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		job, err := d.Source.Poll(ctx)
		if ctx.Err() != nil {
			logger.Log("stopping", "true")
			return nil
		}
		if err != nil && job.ID == "" {
			logger.Log("err", err)
			continue
		}
		// jobs are not cancelled once claimed
		if err := d.Process(context.Background(), job, err); err != nil {
			return err
		}
	}
}

// Process takes a claimed job to a reported outcome, and always
// cleans up after it. A job that could not be fully read is given as
// invalid, and is acknowledged and then failed.
//
// The error returned is the failure to report a success, after which
// the worker should not carry on.
func (d *Daemon) Process(ctx context.Context, job worker.Job, invalid error) error {
	logger := log.With(d.Logger, "jobID", job.ID)
	logger.Log("state", worker.StateClaimed)
	start := time.Now()

	var dirs scratch
	var outcome string
	defer func() {
		d.cleanup(ctx, dirs, logger)
		logger.Log("state", worker.StateCleanedUp, "outcome", outcome)
		jobsTotal.With(workermetrics.LabelOutcome, outcome).Add(1)
		jobDuration.With(
			workermetrics.LabelSuccess, boolString(outcome == outcomeSucceeded),
		).Observe(time.Since(start).Seconds())
	}()

	if err := d.Source.Acknowledge(ctx, job.ID, job.Nonce); err != nil {
		outcome = outcomeAbandoned
		logger.Log("state", worker.StateAbandoned, "err", err)
		return nil
	}
	logger.Log("state", worker.StateAcknowledged, "config", job.Config)

	err := invalid
	if err == nil {
		err = d.run(ctx, job, &dirs, logger)
	}
	if err != nil {
		outcome = outcomeFailed
		logger.Log("state", worker.StateFailed, "kind", worker.KindOf(err), "err", err)
		d.Reporter.SignalFailure(ctx, job.ID, worker.FailureMessage(err))
		logger.Log("state", worker.StateReported, "success", "false")
		return nil
	}

	if err := d.Reporter.SignalSuccess(ctx, job.ID); err != nil {
		outcome = outcomeUnreported
		logger.Log("state", worker.StateReportMissing, "err", err)
		return err
	}
	outcome = outcomeSucceeded
	logger.Log("state", worker.StateReported, "success", "true")
	return nil
}

// run does the work of the job, recording the scratch directories it
// makes in dirs as it goes.
func (d *Daemon) run(ctx context.Context, job worker.Job, dirs *scratch, logger log.Logger) error {
	filename, download, err := d.Fetcher.FetchInput(ctx, job.Input, job.Credentials)
	if err != nil {
		return err
	}
	dirs.download = download.Root
	logger.Log("state", worker.StateDownloaded, "input", job.Input, "file", filename)

	ws, err := d.Expander.Expand(filename, download.Root)
	if err != nil {
		return err
	}
	dirs.download = ""
	dirs.final = ws.Root
	logger.Log("state", worker.StateExpanded, "dir", ws.Root, "entries", len(ws.Entries))

	res, err := d.Publisher.PublishJob(ctx, job.Config, ws)
	if err == nil && !res.Success() {
		err = worker.PublishError(errors.Errorf("publish exited with code %d", res.ExitCode))
	}
	if err != nil {
		return err
	}
	logger.Log("state", worker.StatePublished, "artifact_type", job.Config.ArtifactType, "repo", job.Config.RepoKey)
	return nil
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
