// Package registry publishes unpacked artifacts to Artifactory, either
// as an npm package or as plain files in a generic repository.
package registry

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
	workermetrics "github.com/fluxcd/artifactory-worker/metrics"
)

const (
	DefaultNPM         = "npm"
	DefaultHTTPTimeout = time.Minute
	npmrcName          = ".npmrc"
	npmCacheName       = ".npm"
)

type Config struct {
	// NPM is the npm executable, looked up in PATH if not a path.
	NPM string
	// UserConfig is the npm config file the registry credential is
	// written to.
	UserConfig string
	// CacheDir is npm's package cache.
	CacheDir string
	// Client is used for token requests and generic uploads.
	Client *http.Client
}

// DefaultConfig puts the npm config and cache where npm keeps them
// for the invoking user.
func DefaultConfig() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.Wrap(err, "finding home directory")
	}
	return Config{
		NPM:        DefaultNPM,
		UserConfig: filepath.Join(home, npmrcName),
		CacheDir:   filepath.Join(home, npmCacheName),
		Client:     &http.Client{Timeout: DefaultHTTPTimeout},
	}, nil
}

// Publisher publishes artifacts. The npm config file and cache it
// uses are shared by every job the process runs, so there must be one
// Publisher, in one worker process, per host.
type Publisher struct {
	config Config
	logger log.Logger

	// held from writing the credential file until it is removed
	credentialMu sync.Mutex
}

func NewPublisher(config Config, logger log.Logger) (*Publisher, error) {
	if config.NPM == "" {
		config.NPM = DefaultNPM
	}
	if config.UserConfig == "" || config.CacheDir == "" {
		return nil, errors.New("npm user config and cache paths must be given")
	}
	if config.Client == nil {
		config.Client = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Publisher{config: config, logger: logger}, nil
}

// PublishJob publishes the workspace according to the job's artifact
// type. An npm publish authenticates first, and holds a registry
// credential on disk for exactly as long as npm runs.
func (p *Publisher) PublishJob(ctx context.Context, config worker.ActionConfiguration, ws worker.Workspace) (res worker.PublishResult, err error) {
	start := time.Now()
	defer func() {
		publishDuration.With(
			workermetrics.LabelArtifactType, config.ArtifactType,
			workermetrics.LabelSuccess, boolString(err == nil),
		).Observe(time.Since(start).Seconds())
	}()

	if config.ArtifactType != worker.ArtifactTypeNPM {
		if err := p.UploadGeneric(ctx, config, ws); err != nil {
			return worker.PublishResult{ExitCode: -1}, err
		}
		return worker.PublishResult{}, nil
	}

	token, err := p.Authenticate(ctx, config)
	if err != nil {
		return worker.PublishResult{ExitCode: -1}, err
	}
	p.logger.Log("state", worker.StateAuthenticated, "host", config.Host, "username", token.Username)

	p.credentialMu.Lock()
	defer p.credentialMu.Unlock()
	if _, err := p.WriteCredentialFile(config, token); err != nil {
		return worker.PublishResult{ExitCode: -1}, err
	}
	defer func() {
		if rmErr := p.RemoveCredentialFile(); rmErr != nil {
			p.logger.Log("err", rmErr)
		}
	}()
	return p.Publish(ctx, config, ws)
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
