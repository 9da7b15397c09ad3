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
	"time"
)

const (
	DefaultAPIVersion = "v1"
	DefaultTimeout    = 30 * time.Second
)

// Credential holds either a username/password pair or a pre-issued bearer token.
type Credential struct {
	Username string
	Password string
	Token    string
}

// BasicCredential returns a credential that is exchanged for a bearer token
// through the OAuth implicit grant.
func BasicCredential(username, password string) Credential {
	return Credential{Username: username, Password: password}
}

// TokenCredential returns a credential for a pre-issued bearer token.
func TokenCredential(token string) Credential {
	return Credential{Token: token}
}

// IsToken returns true if the credential is a bearer token.
func (c Credential) IsToken() bool {
	return c.Token != ""
}

func (c Credential) validate() error {
	basic := c.Username != "" || c.Password != ""
	switch {
	case basic && c.Token != "":
		return configError("either username/password or token must be set, not both")
	case c.Token != "":
		return nil
	case c.Username == "" || c.Password == "":
		return configError("missing username/password or token")
	}
	return nil
}

// TLSConfig holds the server certificate verification settings.
type TLSConfig struct {
	Insecure bool
	CAFile   string
	CAData   []byte
}

// ClientConfig holds the connection settings of a deployment run.
// The server URL is used as given, callers must supply it without a trailing slash.
type ClientConfig struct {
	ServerURL  string
	APIVersion string
	Project    string
	Service    string
	Timeout    time.Duration
	Credential Credential
	TLS        TLSConfig
}

// Validate checks that the config can be used to build a client.
func (c ClientConfig) Validate() error {
	if c.ServerURL == "" {
		return configError("server URL is required")
	}
	if c.Project == "" {
		return configError("project is required")
	}
	if c.Service == "" {
		return configError("service is required")
	}
	if c.Timeout < 0 {
		return configError("timeout must be positive, got %s", c.Timeout)
	}
	return c.Credential.validate()
}

// withDefaults returns a copy with the API version and timeout defaults applied.
func (c ClientConfig) withDefaults() ClientConfig {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	if c.TLS.CAData != nil {
		c.TLS.CAData = append([]byte(nil), c.TLS.CAData...)
	}
	return c
}
