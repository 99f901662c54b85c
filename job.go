package worker

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Configuration keys of the custom action, as they appear in the
// action configuration map of a CodePipeline job.
const (
	ConfigHost         = "ArtifactoryHost"
	ConfigUsername     = "UserName"
	ConfigPassword     = "Password"
	ConfigRepoKey      = "RepoKey"
	ConfigArtifactType = "TypeOfArtifact"
	ConfigEmail        = "EmailAddress"
)

// ArtifactTypeNPM selects the package publish path; every other
// artifact type is uploaded file by file to a generic repository.
const ArtifactTypeNPM = "npm"

type JobID string

// Location is an S3 object location.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) IsZero() bool {
	return l.Bucket == "" && l.Key == ""
}

func (l Location) String() string {
	return "s3://" + l.Bucket + "/" + l.Key
}

// Credentials are the temporary AWS credentials handed out with a
// job. They are used to read the input artifact, and for nothing
// else.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
}

// ActionConfiguration is the per-job configuration of the custom
// action. It is supplied by the pipeline and never changed by the
// worker.
type ActionConfiguration struct {
	Host         string
	Username     string
	Password     string
	RepoKey      string
	ArtifactType string
	Email        string
}

// ParseActionConfiguration reads an action configuration from the
// configuration map of a job. All keys but the email address are
// required.
func ParseActionConfiguration(m map[string]string) (ActionConfiguration, error) {
	config := ActionConfiguration{
		Host:         strings.TrimSuffix(m[ConfigHost], "/"),
		Username:     m[ConfigUsername],
		Password:     m[ConfigPassword],
		RepoKey:      m[ConfigRepoKey],
		ArtifactType: m[ConfigArtifactType],
		Email:        m[ConfigEmail],
	}
	var missing []string
	for _, k := range []string{ConfigHost, ConfigUsername, ConfigPassword, ConfigRepoKey, ConfigArtifactType} {
		if m[k] == "" {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return config, ConfigError(fmt.Errorf("action configuration is missing %s", strings.Join(missing, ", ")))
	}
	return config, nil
}

// PackageRegistryURL is the registry URL a package manager is pointed
// at to publish into the configured repository.
func (c ActionConfiguration) PackageRegistryURL() string {
	return c.Host + "/artifactory/api/" + c.ArtifactType + "/" + c.RepoKey
}

// GenericURL is the URL a single file is uploaded to in a generic
// repository.
func (c ActionConfiguration) GenericURL(artifactPath string) string {
	return c.Host + "/artifactory/" + c.RepoKey + "/" + artifactPath
}

// MarshalJSON elides the password, so configurations can be logged.
func (c ActionConfiguration) MarshalJSON() ([]byte, error) {
	type redacted ActionConfiguration
	r := redacted(c)
	if r.Password != "" {
		r.Password = "<redacted>"
	}
	return json.Marshal(r)
}

// String is the redacted JSON form, which is what loggers print.
func (c ActionConfiguration) String() string {
	bytes, err := c.MarshalJSON()
	if err != nil {
		return "<unprintable action configuration>"
	}
	return string(bytes)
}

// Job is one unit of work claimed from the pipeline.
type Job struct {
	ID          JobID
	Nonce       string
	Input       Location
	Output      Location
	Credentials Credentials
	Config      ActionConfiguration
}

// Workspace is a scratch directory owned by a single phase of a
// single job.
type Workspace struct {
	Root string
	// Entries are the sorted names of the top-level entries of Root.
	Entries []string
}

// AuthToken is a short-lived registry token, good for one publish
// attempt.
type AuthToken struct {
	Value    string
	Username string
}

func (t AuthToken) String() string {
	return "<token for " + t.Username + ">"
}

type PublishResult struct {
	ExitCode int
}

func (r PublishResult) Success() bool {
	return r.ExitCode == 0
}
