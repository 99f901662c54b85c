// Package pipeline talks to the orchestrator, AWS CodePipeline: it
// claims jobs for the custom action and reports their results.
package pipeline

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/codepipeline"
	"github.com/aws/aws-sdk-go/service/codepipeline/codepipelineiface"
	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
)

const (
	DefaultProvider     = "Artifactory"
	DefaultVersion      = "1"
	DefaultPollInterval = 10 * time.Second
)

// ActionType identifies the custom action this worker does the work
// for. The category and owner are fixed.
type ActionType struct {
	Provider string
	Version  string
}

func (a ActionType) apiValue() *codepipeline.ActionTypeId {
	return &codepipeline.ActionTypeId{
		Category: aws.String(codepipeline.ActionCategoryDeploy),
		Owner:    aws.String(codepipeline.ActionOwnerCustom),
		Provider: aws.String(a.Provider),
		Version:  aws.String(a.Version),
	}
}

// Source claims jobs from CodePipeline, one at a time.
type Source struct {
	client     codepipelineiface.CodePipelineAPI
	actionType ActionType
	interval   time.Duration
	logger     log.Logger

	// replaceable for tests
	sleep func(context.Context, time.Duration) error
}

func NewSource(client codepipelineiface.CodePipelineAPI, actionType ActionType, interval time.Duration, logger log.Logger) *Source {
	if actionType.Provider == "" {
		actionType.Provider = DefaultProvider
	}
	if actionType.Version == "" {
		actionType.Version = DefaultVersion
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Source{
		client:     client,
		actionType: actionType,
		interval:   interval,
		logger:     logger,
		sleep:      sleepContext,
	}
}

// Poll blocks until there is a job, and returns it. Errors from
// CodePipeline are logged and treated like an empty poll.
//
// A job that cannot be read in full is returned along with a
// ConfigError, so that it can be acknowledged and failed. Otherwise
// the only error returned is that of the context, once cancelled.
func (s *Source) Poll(ctx context.Context) (worker.Job, error) {
	input := &codepipeline.PollForJobsInput{
		ActionTypeId: s.actionType.apiValue(),
		MaxBatchSize: aws.Int64(1),
	}
	for {
		if err := ctx.Err(); err != nil {
			return worker.Job{}, err
		}
		out, err := s.client.PollForJobsWithContext(ctx, input)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return worker.Job{}, ctx.Err()
			}
			pollErrors.Add(1)
			s.logger.Log("err", worker.TransientPollError(err), "retry", s.interval)
		case len(out.Jobs) == 0:
			pollsEmpty.Add(1)
		default:
			job, err := JobFromAPI(out.Jobs[0])
			if err == nil || job.ID != "" {
				s.logger.Log("event", "job found", "jobID", job.ID)
				return job, err
			}
			s.logger.Log("err", err)
		}
		if err := s.sleep(ctx, s.interval); err != nil {
			return worker.Job{}, err
		}
	}
}

// Acknowledge claims the job for this worker. An error means the
// job is not ours to work on, and nothing can be reported for it.
func (s *Source) Acknowledge(ctx context.Context, id worker.JobID, nonce string) error {
	out, err := s.client.AcknowledgeJobWithContext(ctx, &codepipeline.AcknowledgeJobInput{
		JobId: aws.String(string(id)),
		Nonce: aws.String(nonce),
	})
	if err != nil {
		return worker.AcknowledgeError(errors.Wrapf(err, "acknowledging job %s", id))
	}
	s.logger.Log("event", "acknowledged", "jobID", id, "status", aws.StringValue(out.Status))
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
