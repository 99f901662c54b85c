package daemon

import (
	"archive/zip"
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/go-kit/kit/log"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	worker "github.com/fluxcd/artifactory-worker"
	"github.com/fluxcd/artifactory-worker/artifact"
)

// recorder keeps the order in which the components were called.
type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(event string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

type mockSource struct {
	*recorder
	jobs   []worker.Job
	errs   []error
	ackErr error
	// closed once the jobs run out
	drained chan struct{}
}

func (m *mockSource) Poll(ctx context.Context) (worker.Job, error) {
	m.record("poll")
	if len(m.jobs) == 0 {
		if m.drained != nil {
			close(m.drained)
			m.drained = nil
		}
		<-ctx.Done()
		return worker.Job{}, ctx.Err()
	}
	job, err := m.jobs[0], m.errs[0]
	m.jobs, m.errs = m.jobs[1:], m.errs[1:]
	return job, err
}

func (m *mockSource) Acknowledge(ctx context.Context, id worker.JobID, nonce string) error {
	m.record("acknowledge")
	return m.ackErr
}

type mockReporter struct {
	*recorder
	successErr error
	failures   []string
}

func (m *mockReporter) SignalSuccess(ctx context.Context, id worker.JobID) error {
	m.record("success")
	return m.successErr
}

func (m *mockReporter) SignalFailure(ctx context.Context, id worker.JobID, msg string) {
	m.record("failure")
	m.failures = append(m.failures, msg)
}

// mockFetcher "downloads" a zip holding the given files.
type mockFetcher struct {
	*recorder
	tmp   string
	files map[string]string
	err   error
	roots []string
}

func (m *mockFetcher) FetchInput(ctx context.Context, loc worker.Location, creds worker.Credentials) (string, worker.Workspace, error) {
	m.record("fetch")
	if m.err != nil {
		return "", worker.Workspace{}, m.err
	}
	root, err := ioutil.TempDir(m.tmp, "download")
	if err != nil {
		return "", worker.Workspace{}, worker.FetchError(err)
	}
	m.roots = append(m.roots, root)
	filename := filepath.Join(root, filepath.FromSlash(loc.Key))
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return "", worker.Workspace{}, worker.FetchError(err)
	}
	out, err := os.Create(filename)
	if err != nil {
		return "", worker.Workspace{}, worker.FetchError(err)
	}
	defer out.Close()
	w := zip.NewWriter(out)
	for name, body := range m.files {
		f, err := w.Create(name)
		if err != nil {
			return "", worker.Workspace{}, worker.FetchError(err)
		}
		if _, err := f.Write([]byte(body)); err != nil {
			return "", worker.Workspace{}, worker.FetchError(err)
		}
	}
	if err := w.Close(); err != nil {
		return "", worker.Workspace{}, worker.FetchError(err)
	}
	return filename, worker.Workspace{Root: root}, nil
}

type recordingExpander struct {
	*recorder
	expander *artifact.Expander
	roots    []string
}

func (e *recordingExpander) Expand(filename, priorRoot string) (worker.Workspace, error) {
	e.record("expand")
	ws, err := e.expander.Expand(filename, priorRoot)
	if err == nil {
		e.roots = append(e.roots, ws.Root)
	}
	return ws, err
}

// mockPublisher behaves like the real one as far as the credential
// file goes: it exists only while "npm" runs.
type mockPublisher struct {
	*recorder
	credentialFile string
	result         worker.PublishResult
	err            error
	// whether the workspace had a package.json when publishing
	sawManifest bool
}

func (m *mockPublisher) PublishJob(ctx context.Context, config worker.ActionConfiguration, ws worker.Workspace) (worker.PublishResult, error) {
	m.record("publish")
	if m.err != nil {
		return worker.PublishResult{ExitCode: -1}, m.err
	}
	if err := ioutil.WriteFile(m.credentialFile, []byte("_auth = x"), 0600); err != nil {
		return worker.PublishResult{}, err
	}
	_, err := os.Stat(filepath.Join(ws.Root, "package.json"))
	m.sawManifest = err == nil
	if err := os.Remove(m.credentialFile); err != nil {
		return worker.PublishResult{}, err
	}
	if !m.result.Success() {
		return m.result, worker.PublishError(errors.Errorf("npm publish exited with code %d", m.result.ExitCode))
	}
	return m.result, nil
}

func (m *mockPublisher) RemoveCredentialFile() error {
	m.record("remove-credential")
	if err := os.Remove(m.credentialFile); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (m *mockPublisher) CleanCache(ctx context.Context) error {
	m.record("clean-cache")
	return nil
}

type fixture struct {
	tmp       string
	rec       *recorder
	source    *mockSource
	reporter  *mockReporter
	fetcher   *mockFetcher
	expander  *recordingExpander
	publisher *mockPublisher
	daemon    *Daemon
}

func newFixture(t *testing.T) *fixture {
	tmp, err := ioutil.TempDir("", "daemon-test")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(tmp) })

	rec := &recorder{}
	f := &fixture{
		tmp:      tmp,
		rec:      rec,
		source:   &mockSource{recorder: rec},
		reporter: &mockReporter{recorder: rec},
		fetcher: &mockFetcher{recorder: rec, tmp: tmp, files: map[string]string{
			"package.json": `{"name":"left-pad","version":"1.0.0"}`,
		}},
		expander:  &recordingExpander{recorder: rec, expander: &artifact.Expander{TempDir: tmp}},
		publisher: &mockPublisher{recorder: rec, credentialFile: filepath.Join(tmp, ".npmrc")},
	}
	f.daemon = &Daemon{
		Source:    f.source,
		Reporter:  f.reporter,
		Fetcher:   f.fetcher,
		Expander:  f.expander,
		Publisher: f.publisher,
		Logger:    log.NewNopLogger(),
	}
	return f
}

// leftovers lists whatever is still in the fixture's temp dir.
func (f *fixture) leftovers(t *testing.T) []string {
	infos, err := ioutil.ReadDir(f.tmp)
	require.NoError(t, err)
	var names []string
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}

func testJob(id string) worker.Job {
	return worker.Job{
		ID:     worker.JobID(id),
		Nonce:  "nonce-" + id,
		Input:  worker.Location{Bucket: "pipeline-bucket", Key: "pipe/SourceArti/" + id},
		Config: worker.ActionConfiguration{ArtifactType: "npm", RepoKey: "npm-local"},
	}
}
