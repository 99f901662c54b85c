package pipeline

import (
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/codepipeline"
	"github.com/aws/aws-sdk-go/service/codepipeline/codepipelineiface"
)

// mockPipeline answers polls from a script of responses; the last
// response repeats once the script runs out.
type mockPipeline struct {
	codepipelineiface.CodePipelineAPI

	mu        sync.Mutex
	polls     []pollResponse
	pollCount int
	lastPoll  *codepipeline.PollForJobsInput

	ackErr     error
	acked      []*codepipeline.AcknowledgeJobInput
	successErr error
	successes  []*codepipeline.PutJobSuccessResultInput
	failureErr error
	failures   []*codepipeline.PutJobFailureResultInput
}

type pollResponse struct {
	jobs []*codepipeline.Job
	err  error
}

func (m *mockPipeline) PollForJobsWithContext(ctx aws.Context, in *codepipeline.PollForJobsInput, _ ...request.Option) (*codepipeline.PollForJobsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastPoll = in
	i := m.pollCount
	if i >= len(m.polls) {
		i = len(m.polls) - 1
	}
	m.pollCount++
	resp := m.polls[i]
	if resp.err != nil {
		return nil, resp.err
	}
	return &codepipeline.PollForJobsOutput{Jobs: resp.jobs}, nil
}

func (m *mockPipeline) AcknowledgeJobWithContext(ctx aws.Context, in *codepipeline.AcknowledgeJobInput, _ ...request.Option) (*codepipeline.AcknowledgeJobOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acked = append(m.acked, in)
	if m.ackErr != nil {
		return nil, m.ackErr
	}
	return &codepipeline.AcknowledgeJobOutput{Status: aws.String(codepipeline.JobStatusInProgress)}, nil
}

func (m *mockPipeline) PutJobSuccessResultWithContext(ctx aws.Context, in *codepipeline.PutJobSuccessResultInput, _ ...request.Option) (*codepipeline.PutJobSuccessResultOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successes = append(m.successes, in)
	if m.successErr != nil {
		return nil, m.successErr
	}
	return &codepipeline.PutJobSuccessResultOutput{}, nil
}

func (m *mockPipeline) PutJobFailureResultWithContext(ctx aws.Context, in *codepipeline.PutJobFailureResultInput, _ ...request.Option) (*codepipeline.PutJobFailureResultOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, in)
	if m.failureErr != nil {
		return nil, m.failureErr
	}
	return &codepipeline.PutJobFailureResultOutput{}, nil
}

func apiJob(id string, withOutput bool) *codepipeline.Job {
	s3artifact := func(bucket, key string) *codepipeline.Artifact {
		return &codepipeline.Artifact{
			Name: aws.String("artifact"),
			Location: &codepipeline.ArtifactLocation{
				Type: aws.String(codepipeline.ArtifactLocationTypeS3),
				S3Location: &codepipeline.S3ArtifactLocation{
					BucketName: aws.String(bucket),
					ObjectKey:  aws.String(key),
				},
			},
		}
	}
	data := &codepipeline.JobData{
		InputArtifacts: []*codepipeline.Artifact{s3artifact("pipeline-bucket", "pipe/SourceArti/abc123")},
		ArtifactCredentials: &codepipeline.AWSSessionCredentials{
			AccessKeyId:     aws.String("AKIA"),
			SecretAccessKey: aws.String("secret"),
			SessionToken:    aws.String("session"),
		},
		ActionConfiguration: &codepipeline.ActionConfiguration{
			Configuration: aws.StringMap(map[string]string{
				"ArtifactoryHost": "https://example.jfrog.io",
				"UserName":        "deployer",
				"Password":        "hunter2",
				"RepoKey":         "npm-local",
				"TypeOfArtifact":  "npm",
				"EmailAddress":    "ci@example.com",
			}),
		},
	}
	if withOutput {
		data.OutputArtifacts = []*codepipeline.Artifact{s3artifact("pipeline-bucket", "pipe/Output/def456")}
	}
	return &codepipeline.Job{
		Id:    aws.String(id),
		Nonce: aws.String("nonce-" + id),
		Data:  data,
	}
}
