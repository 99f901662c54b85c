package pipeline

import (
	"context"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/codepipeline"
	"github.com/aws/aws-sdk-go/service/codepipeline/codepipelineiface"
	"github.com/go-kit/kit/log"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
)

const (
	successSummary = "Job completed successfully"
	// CodePipeline rejects failure messages longer than this.
	maxFailureMessage = 5000
)

// Reporter tells CodePipeline how a job turned out.
type Reporter struct {
	client codepipelineiface.CodePipelineAPI
	logger log.Logger
}

func NewReporter(client codepipelineiface.CodePipelineAPI, logger log.Logger) *Reporter {
	return &Reporter{client: client, logger: logger}
}

// SignalSuccess reports the job as complete. If this fails, the
// pipeline will never learn that the job finished, so the error is a
// ReportError and the caller is expected to give up.
func (r *Reporter) SignalSuccess(ctx context.Context, id worker.JobID) error {
	r.logger.Log("event", "signalling success", "jobID", id)
	_, err := r.client.PutJobSuccessResultWithContext(ctx, &codepipeline.PutJobSuccessResultInput{
		JobId: aws.String(string(id)),
		CurrentRevision: &codepipeline.CurrentRevision{
			Revision:         aws.String(string(id)),
			ChangeIdentifier: aws.String(string(id)),
		},
		ExecutionDetails: &codepipeline.ExecutionDetails{
			Summary:             aws.String(successSummary),
			ExternalExecutionId: aws.String(uuid.New().String()),
			PercentComplete:     aws.Int64(100),
		},
	})
	if err != nil {
		return worker.ReportError(errors.Wrapf(err, "putting success result for job %s", id))
	}
	return nil
}

// SignalFailure reports the job as failed. This is best effort: an
// error is logged and otherwise ignored, since the pipeline will time
// the job out eventually anyway.
func (r *Reporter) SignalFailure(ctx context.Context, id worker.JobID, msg string) {
	msg = truncate(msg, maxFailureMessage)
	r.logger.Log("event", "signalling failure", "jobID", id, "reason", msg)
	_, err := r.client.PutJobFailureResultWithContext(ctx, &codepipeline.PutJobFailureResultInput{
		JobId: aws.String(string(id)),
		FailureDetails: &codepipeline.FailureDetails{
			Type:    aws.String(codepipeline.FailureTypeJobFailed),
			Message: aws.String(msg),
		},
	})
	if err != nil {
		r.logger.Log("err", errors.Wrapf(err, "putting failure result for job %s", id))
	}
}

// truncate cuts s to at most n bytes, without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
