/*
Copyright 2021 Stefan Prodan

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package openshift

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/go-logr/logr"
)

const (
	// ChallengingClientID is the OAuth client that answers the implicit grant
	// with a redirect instead of a login page.
	ChallengingClientID = "openshift-challenging-client"

	authorizePath = "/oauth/authorize?client_id=" + ChallengingClientID + "&response_type=token"
)

var accessTokenPattern = regexp.MustCompile(`access_token=(.*?)&`)

// Authenticator turns a Credential into an Authorization header value.
type Authenticator struct {
	client *http.Client
	log    logr.Logger
}

// NewAuthenticator returns an Authenticator that uses the given client for the
// OAuth exchange. The client must not follow redirects.
func NewAuthenticator(client *http.Client, log logr.Logger) *Authenticator {
	return &Authenticator{client: client, log: log}
}

// AuthorizationHeader returns "Bearer <token>". For username/password
// credentials the token is requested from the OAuth server with a single call.
func (a *Authenticator) AuthorizationHeader(ctx context.Context, cfg ClientConfig) (string, error) {
	if err := cfg.Credential.validate(); err != nil {
		return "", err
	}

	if cfg.Credential.IsToken() {
		return "Bearer " + cfg.Credential.Token, nil
	}

	token, err := a.requestToken(ctx, cfg)
	if err != nil {
		return "", err
	}
	return "Bearer " + token, nil
}

func (a *Authenticator) requestToken(ctx context.Context, cfg ClientConfig) (string, error) {
	url := JoinURL(cfg.ServerURL, authorizePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", configError("invalid server URL %q: %v", cfg.ServerURL, err)
	}

	basic := base64.StdEncoding.EncodeToString([]byte(cfg.Credential.Username + ":" + cfg.Credential.Password))
	req.Header.Set("Authorization", "Basic "+basic)
	req.Header.Set("X-CSRF-Token", "1")
	req.Header.Set("Content-Type", "application/json")

	a.log.V(1).Info("requesting OAuth token", "url", url, "username", cfg.Credential.Username)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", &TransportError{Method: http.MethodGet, URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransportError{Method: http.MethodGet, URL: url, Err: err}
	}

	token, ok := ExtractAccessToken(responseText(resp, body))
	if !ok {
		return "", fmt.Errorf("%w: no access token in the OAuth response for user %s (status %d)",
			ErrAuth, cfg.Credential.Username, resp.StatusCode)
	}

	return token, nil
}

// ExtractAccessToken returns the first access_token value found in the given text.
func ExtractAccessToken(text string) (string, bool) {
	m := accessTokenPattern.FindStringSubmatch(text)
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// responseText is the redirect location followed by the response body.
func responseText(resp *http.Response, body []byte) string {
	var builder strings.Builder
	builder.WriteString(resp.Header.Get("Location"))
	builder.WriteString("\n")
	builder.Write(body)
	return builder.String()
}
