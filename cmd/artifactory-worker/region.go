package main

import (
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/ec2metadata"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
)

// workerRegion decides the region the worker talks to CodePipeline
// in: the one given, otherwise what local AWS config says, otherwise
// what the EC2 metadata service says about the instance.
func workerRegion(sess *session.Session, given string) (region, source string, err error) {
	if given != "" {
		return given, "flag", nil
	}
	if r := aws.StringValue(sess.Config.Region); r != "" {
		return r, "local config", nil
	}
	r, err := ec2metadata.New(sess).Region()
	if err != nil {
		return "", "", errors.Wrap(err, "fetching region from EC2 metadata service; supply --region")
	}
	return r, "EC2 metadata service", nil
}
