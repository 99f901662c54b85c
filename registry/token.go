package registry

import (
	"context"
	"encoding/json"
	"io"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	worker "github.com/fluxcd/artifactory-worker"
)

const (
	tokenPath = "/artifactory/api/security/token"
	// the token acts with the groups of the user it is issued for
	tokenScope = "member-of-groups:*"
	// enough of a response body to say what went wrong
	maxErrorBody = 512
)

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}

// Authenticate asks Artifactory for a token for the configured user,
// so that the user's password never has to be written to disk.
func (p *Publisher) Authenticate(ctx context.Context, config worker.ActionConfiguration) (worker.AuthToken, error) {
	form := url.Values{}
	form.Set("username", config.Username)
	form.Set("scope", tokenScope)

	req, err := http.NewRequest(http.MethodPost, config.Host+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return worker.AuthToken{}, worker.AuthError(errors.Wrap(err, "constructing token request"))
	}
	req = req.WithContext(ctx)
	req.SetBasicAuth(config.Username, config.Password)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := p.config.Client.Do(req)
	if err != nil {
		return worker.AuthToken{}, worker.RequestError(errors.Wrap(err, "requesting token"))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := ioutil.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return worker.AuthToken{}, worker.AuthError(errors.Errorf("token request returned %s: %s", resp.Status, strings.TrimSpace(string(body))))
	}
	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return worker.AuthToken{}, worker.AuthError(errors.Wrap(err, "decoding token response"))
	}
	if token.AccessToken == "" {
		return worker.AuthToken{}, worker.AuthError(errors.New("token response has no access_token"))
	}
	p.logger.Log("event", "token issued", "username", config.Username, "expires_in", token.ExpiresIn)
	return worker.AuthToken{Value: token.AccessToken, Username: config.Username}, nil
}
