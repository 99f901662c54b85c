package registry

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
)

// Env vars that are allowed to be inherited from the os
var allowedEnvVars = []string{"PATH", "HOME", "http_proxy", "https_proxy", "no_proxy", "HTTP_PROXY", "HTTPS_PROXY", "NO_PROXY", "NODE_EXTRA_CA_CERTS"}

// keep this much of npm's output for the log
const maxOutput = 4096

// Publish publishes the package in the workspace with npm. The
// workspace is the package: its root holds package.json. npm is run
// once to point it at the registry, and once to publish.
//
// A non-zero exit from npm publish is returned in the result, along
// with a PublishError naming the exit code.
func (p *Publisher) Publish(ctx context.Context, config worker.ActionConfiguration, ws worker.Workspace) (worker.PublishResult, error) {
	url := config.PackageRegistryURL()
	p.logger.Log("event", "publishing", "registry", url, "dir", ws.Root, "entries", strings.Join(ws.Entries, ","))

	if code, out, err := p.execNPM(ctx, ws.Root, "config", "set", "registry", url); err != nil {
		return worker.PublishResult{ExitCode: -1}, worker.PublishError(err)
	} else if code != 0 {
		p.logger.Log("warning", "npm config set registry failed", "code", code, "output", out)
	}

	code, out, err := p.execNPM(ctx, ws.Root, "publish", "--registry", url)
	if err != nil {
		return worker.PublishResult{ExitCode: -1}, worker.PublishError(err)
	}
	p.logger.Log("event", "npm publish finished", "code", code)
	res := worker.PublishResult{ExitCode: code}
	if !res.Success() {
		p.logger.Log("output", out)
		return res, worker.PublishError(errors.Errorf("npm ERR! received non-OK response while publishing to Artifactory; npm publish exited with code %d", code))
	}
	return res, nil
}

// CleanCache empties npm's cache, through npm and then by removing
// the cache directory, since packages of one job must not be seen by
// the next.
func (p *Publisher) CleanCache(ctx context.Context) error {
	var cleanErr error
	if code, out, err := p.execNPM(ctx, "", "cache", "clean", "--force"); err != nil {
		cleanErr = errors.Wrap(err, "npm cache clean")
	} else if code != 0 {
		cleanErr = errors.Errorf("npm cache clean exited with code %d: %s", code, out)
	}
	if err := os.RemoveAll(p.config.CacheDir); err != nil {
		return errors.Wrap(err, "removing npm cache")
	}
	return cleanErr
}

// execNPM runs npm and returns its exit code. The error is only for
// when npm could not be run at all.
func (p *Publisher) execNPM(ctx context.Context, dir string, args ...string) (int, string, error) {
	c := exec.CommandContext(ctx, p.config.NPM, args...)
	if dir != "" {
		c.Dir = dir
	}
	c.Env = p.env()
	out := &bytes.Buffer{}
	c.Stdout = out
	c.Stderr = out

	err := c.Run()
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode(), tail(out.String()), nil
	}
	if err != nil {
		return -1, "", errors.Wrapf(err, "running %s %s", p.config.NPM, strings.Join(args, " "))
	}
	return 0, tail(out.String()), nil
}

func (p *Publisher) env() []string {
	env := []string{
		"NPM_CONFIG_USERCONFIG=" + p.config.UserConfig,
		"NPM_CONFIG_CACHE=" + p.config.CacheDir,
		"NPM_CONFIG_UPDATE_NOTIFIER=false",
	}
	for _, k := range allowedEnvVars {
		if v, ok := os.LookupEnv(k); ok {
			env = append(env, k+"="+v)
		}
	}
	return env
}

func tail(s string) string {
	if len(s) > maxOutput {
		return s[len(s)-maxOutput:]
	}
	return s
}
