package worker

import (
	"github.com/pkg/errors"
)

// Kind classifies an error by what the worker has to do about it;
// i.e., is this error:
//  - a transient problem with the pipeline, so worth polling again?
//  - the end of the current job, to be reported as a failure?
//  - the end of the current job, with nobody left to report to?
//  - the end of the worker?
type Kind string

const (
	KindUnknown       Kind = ""
	KindTransientPoll Kind = "TransientPollError"
	KindAcknowledge   Kind = "AcknowledgeError"
	KindConfig        Kind = "ConfigError"
	KindFetch         Kind = "FetchError"
	KindExtract       Kind = "ExtractError"
	KindAuth          Kind = "AuthError"
	KindPublish       Kind = "PublishError"
	KindRequest       Kind = "RequestError"
	KindReport        Kind = "ReportError"
)

// Error is an error that happened at a particular stage of a job.
type Error struct {
	Kind Kind
	// the underlying error, which can be logged, and is reported to
	// the pipeline as the failure message
	Err error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Cause() error {
	return e.Err
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Help is a message fit for a pipeline's failure details.
func (e *Error) Help() string {
	switch e.Kind {
	case KindFetch:
		return "could not download the input artifact: " + e.Err.Error()
	case KindExtract:
		return "could not extract the input artifact: " + e.Err.Error()
	case KindAuth:
		return "could not obtain a token from Artifactory: " + e.Err.Error()
	case KindConfig:
		return "invalid job: " + e.Err.Error()
	}
	return e.Err.Error()
}

// KindOf finds the kind of the outermost *Error in the chain, or
// KindUnknown if there isn't one.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Reportable says whether a job failing with the error should be
// reported to the pipeline as a failure. A job that was never
// acknowledged cannot be, and a failed success report has already
// used up the job.
func Reportable(err error) bool {
	switch KindOf(err) {
	case KindAcknowledge, KindReport, KindTransientPoll:
		return false
	}
	return true
}

// Fatal says whether the worker process should exit after the error.
func Fatal(err error) bool {
	return KindOf(err) == KindReport
}

// FailureMessage gives the message to report to the pipeline for a
// failed job.
func FailureMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Help()
	}
	return err.Error()
}

func newError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

func TransientPollError(err error) error { return newError(KindTransientPoll, err) }
func AcknowledgeError(err error) error   { return newError(KindAcknowledge, err) }
func ConfigError(err error) error        { return newError(KindConfig, err) }
func FetchError(err error) error         { return newError(KindFetch, err) }
func ExtractError(err error) error       { return newError(KindExtract, err) }
func AuthError(err error) error          { return newError(KindAuth, err) }
func PublishError(err error) error       { return newError(KindPublish, err) }
func RequestError(err error) error       { return newError(KindRequest, err) }
func ReportError(err error) error        { return newError(KindReport, err) }
