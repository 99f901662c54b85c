package registry

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/stretchr/testify/require"

	worker "github.com/fluxcd/artifactory-worker"
)

// fakeNPM stands in for npm: it records each invocation, and a copy
// of the npm config at the time of publishing, in dir.
const fakeNPM = `#!/bin/sh
echo "$PWD|$NPM_CONFIG_USERCONFIG|$*" >> %[1]s/calls
case "$1" in
publish)
	cp "$NPM_CONFIG_USERCONFIG" %[1]s/npmrc-at-publish
	exit %[2]d
	;;
esac
exit 0
`

type fixture struct {
	logs      *bytes.Buffer
	dir       string
	home      string
	server    *httptest.Server
	publisher *Publisher
	config    worker.ActionConfiguration
}

func newFixture(t *testing.T, publishExit int, handler http.Handler) *fixture {
	dir, err := ioutil.TempDir("", "registry-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })

	home := filepath.Join(dir, "home")
	require.NoError(t, os.MkdirAll(filepath.Join(home, npmCacheName, "_cacache"), 0755))
	npm := filepath.Join(dir, "npm")
	require.NoError(t, ioutil.WriteFile(npm, []byte(fmt.Sprintf(fakeNPM, dir, publishExit)), 0755))

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logs := &bytes.Buffer{}
	p, err := NewPublisher(Config{
		NPM:        npm,
		UserConfig: filepath.Join(home, npmrcName),
		CacheDir:   filepath.Join(home, npmCacheName),
		Client:     server.Client(),
	}, log.NewLogfmtLogger(log.NewSyncWriter(logs)))
	require.NoError(t, err)

	return &fixture{
		logs:      logs,
		dir:       dir,
		home:      home,
		server:    server,
		publisher: p,
		config: worker.ActionConfiguration{
			Host:         server.URL,
			Username:     "deployer",
			Password:     "hunter2",
			RepoKey:      "npm-local",
			ArtifactType: "npm",
			Email:        "ci@example.com",
		},
	}
}

// calls gives the recorded npm invocations, as "dir|userconfig|args".
func (f *fixture) calls(t *testing.T) []string {
	bytes, err := ioutil.ReadFile(filepath.Join(f.dir, "calls"))
	if os.IsNotExist(err) {
		return nil
	}
	require.NoError(t, err)
	return strings.Split(strings.TrimSpace(string(bytes)), "\n")
}

func (f *fixture) workspace(t *testing.T, files map[string]string) worker.Workspace {
	root, err := ioutil.TempDir(f.dir, "ws")
	require.NoError(t, err)
	ws := worker.Workspace{Root: root}
	for name, body := range files {
		require.NoError(t, ioutil.WriteFile(filepath.Join(root, name), []byte(body), 0644))
		ws.Entries = append(ws.Entries, name)
	}
	return ws
}

// tokenHandler issues a token to deployer/hunter2, and nobody else.
func tokenHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != tokenPath || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "deployer" || pass != "hunter2" {
			w.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(w, `{"errors":[{"status":401,"message":"Bad credentials"}]}`)
			return
		}
		if err := r.ParseForm(); err != nil || r.PostForm.Get("username") != "deployer" || r.PostForm.Get("scope") != tokenScope {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"scope":"member-of-groups:*","access_token":"tok3n","expires_in":3600,"token_type":"Bearer"}`)
	}
}
