package registry

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
)

// credentialFile is the content of an npm config that authenticates
// every request as the token's user.
func credentialFile(config worker.ActionConfiguration, token worker.AuthToken) []byte {
	auth := base64.StdEncoding.EncodeToString([]byte(token.Username + ":" + token.Value))
	return []byte(fmt.Sprintf("_auth = %s\nemail = %s\nalways-auth = true\n", auth, config.Email))
}

// WriteCredentialFile writes the npm config holding the registry
// credential, and returns its path. Whatever was at the path before
// is removed first, rather than overwritten, so no credential of a
// previous job can survive in it.
func (p *Publisher) WriteCredentialFile(config worker.ActionConfiguration, token worker.AuthToken) (string, error) {
	path := p.config.UserConfig
	if err := removeIfExists(path); err != nil {
		return "", errors.Wrap(err, "removing stale npm config")
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return "", errors.Wrap(err, "creating npm config")
	}
	if _, err := f.Write(credentialFile(config, token)); err != nil {
		f.Close()
		os.Remove(path)
		return "", errors.Wrap(err, "writing npm config")
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", errors.Wrap(err, "writing npm config")
	}
	p.logger.Log("event", "wrote npm config", "path", path)
	return path, nil
}

// RemoveCredentialFile removes the npm config. It is not an error if
// there is none.
func (p *Publisher) RemoveCredentialFile() error {
	return errors.Wrap(removeIfExists(p.config.UserConfig), "removing npm config")
}

// CredentialFile is where the credential is written while publishing.
func (p *Publisher) CredentialFile() string {
	return p.config.UserConfig
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
