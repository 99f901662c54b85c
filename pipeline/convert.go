package pipeline

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/codepipeline"
	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
)

// JobFromAPI reads a job record as delivered by CodePipeline. The ID
// and nonce are filled in whenever they are present, even if the
// rest of the record is unusable.
//
// A job without output artifacts is fine: the output location is
// left empty.
func JobFromAPI(j *codepipeline.Job) (worker.Job, error) {
	if j == nil {
		return worker.Job{}, worker.ConfigError(errors.New("empty job record"))
	}
	job := worker.Job{
		ID:    worker.JobID(aws.StringValue(j.Id)),
		Nonce: aws.StringValue(j.Nonce),
	}
	if job.ID == "" || job.Nonce == "" {
		return job, worker.ConfigError(errors.New("job record has no id or nonce"))
	}
	data := j.Data
	if data == nil {
		return job, worker.ConfigError(errors.New("job record has no data"))
	}

	input, ok := firstLocation(data.InputArtifacts)
	if !ok {
		return job, worker.ConfigError(errors.New("job has no S3 input artifact"))
	}
	job.Input = input
	job.Output, _ = firstLocation(data.OutputArtifacts)

	if creds := data.ArtifactCredentials; creds != nil {
		job.Credentials = worker.Credentials{
			AccessKeyID:     aws.StringValue(creds.AccessKeyId),
			SecretAccessKey: aws.StringValue(creds.SecretAccessKey),
			SessionToken:    aws.StringValue(creds.SessionToken),
		}
	}
	if job.Credentials.AccessKeyID == "" || job.Credentials.SecretAccessKey == "" {
		return job, worker.ConfigError(errors.New("job has no artifact credentials"))
	}

	var configMap map[string]string
	if data.ActionConfiguration != nil {
		configMap = aws.StringValueMap(data.ActionConfiguration.Configuration)
	}
	config, err := worker.ParseActionConfiguration(configMap)
	job.Config = config
	return job, err
}

func firstLocation(artifacts []*codepipeline.Artifact) (worker.Location, bool) {
	if len(artifacts) == 0 || artifacts[0] == nil || artifacts[0].Location == nil {
		return worker.Location{}, false
	}
	s3 := artifacts[0].Location.S3Location
	if s3 == nil {
		return worker.Location{}, false
	}
	loc := worker.Location{
		Bucket: aws.StringValue(s3.BucketName),
		Key:    aws.StringValue(s3.ObjectKey),
	}
	return loc, loc.Bucket != "" && loc.Key != ""
}
