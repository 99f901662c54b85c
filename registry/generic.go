package registry

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
)

// UploadGeneric puts each regular file at the top level of the
// workspace into the configured generic repository. Artifactory
// answers a successful deploy with 201 Created; anything else fails
// the upload.
func (p *Publisher) UploadGeneric(ctx context.Context, config worker.ActionConfiguration, ws worker.Workspace) error {
	var uploaded int
	for _, name := range ws.Entries {
		path := filepath.Join(ws.Root, name)
		info, err := os.Stat(path)
		if err != nil {
			return worker.PublishError(errors.Wrapf(err, "reading %s", name))
		}
		if !info.Mode().IsRegular() {
			continue
		}
		if err := p.uploadFile(ctx, config, path, name, info.Size()); err != nil {
			return err
		}
		uploaded++
	}
	if uploaded == 0 {
		return worker.PublishError(errors.New("artifact has no files to upload"))
	}
	return nil
}

func (p *Publisher) uploadFile(ctx context.Context, config worker.ActionConfiguration, path, name string, size int64) error {
	f, err := os.Open(path)
	if err != nil {
		return worker.PublishError(errors.Wrapf(err, "opening %s", name))
	}
	defer f.Close()

	target := config.GenericURL(url.PathEscape(name))
	p.logger.Log("event", "uploading", "file", name, "url", target)
	req, err := http.NewRequest(http.MethodPut, target, f)
	if err != nil {
		return worker.PublishError(errors.Wrap(err, "constructing upload request"))
	}
	req = req.WithContext(ctx)
	req.ContentLength = size
	req.SetBasicAuth(config.Username, config.Password)

	resp, err := p.config.Client.Do(req)
	if err != nil {
		return worker.RequestError(errors.Wrapf(err, "uploading %s", name))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return worker.PublishError(errors.Errorf("received non-201 response uploading %s to Artifactory: %s: %s", name, resp.Status, strings.TrimSpace(string(body))))
	}
	return nil
}
