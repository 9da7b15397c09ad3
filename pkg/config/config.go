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

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"sigs.k8s.io/yaml"
)

const (
	ConfigKind       = "Config"
	ConfigAPIVersion = "ocdeploy.raffs.dev/v1"

	DefaultAPIVersion  = "v1"
	DefaultVarsDir     = "vars"
	DefaultDeployFile  = "Deployment"
	DefaultMaxAttempts = 120
)

var (
	DefaultNetworkTimeout = 30 * time.Second
	DefaultPollInterval   = 5 * time.Second
)

type Config struct {
	metav1.TypeMeta `json:",inline"`

	// Server holds the OpenShift API defaults.
	Server *Server `json:"server,omitempty"`

	// Rollout holds the polling settings used when waiting for a rollout.
	Rollout *Rollout `json:"rollout,omitempty"`

	// Source holds the git repository layout of the deployment templates.
	Source *Source `json:"source,omitempty"`
}

type Server struct {
	// URL of the OpenShift API, e.g. https://api.example.com:8443
	URL string `json:"url,omitempty"`

	// APIVersion of the /oapi endpoints.
	APIVersion string `json:"apiVersion"`

	// NetworkTimeout applies to connect, TLS handshake and each request.
	NetworkTimeout metav1.Duration `json:"networkTimeout"`
}

type Rollout struct {
	// Interval between two readiness checks.
	Interval metav1.Duration `json:"interval"`

	// MaxAttempts is the number of readiness checks before giving up.
	MaxAttempts int `json:"maxAttempts"`
}

type Source struct {
	// Repository is the git URL holding the deployment templates.
	Repository string `json:"repository,omitempty"`

	// Branch to check out, the remote HEAD when empty.
	Branch string `json:"branch,omitempty"`

	// VarsDir is the directory of the environment variables files.
	VarsDir string `json:"varsDir"`

	// DeployFile is the template file name without extension.
	DeployFile string `json:"deployFile"`
}

// NewConfig returns a config with the default values.
func NewConfig() *Config {
	return &Config{
		TypeMeta: metav1.TypeMeta{
			Kind:       ConfigKind,
			APIVersion: ConfigAPIVersion,
		},
		Server:  defaultServer(),
		Rollout: defaultRollout(),
		Source:  defaultSource(),
	}
}

func defaultServer() *Server {
	return &Server{
		APIVersion:     DefaultAPIVersion,
		NetworkTimeout: metav1.Duration{Duration: DefaultNetworkTimeout},
	}
}

func defaultRollout() *Rollout {
	return &Rollout{
		Interval:    metav1.Duration{Duration: DefaultPollInterval},
		MaxAttempts: DefaultMaxAttempts,
	}
}

func defaultSource() *Source {
	return &Source{
		VarsDir:    DefaultVarsDir,
		DeployFile: DefaultDeployFile,
	}
}

// DefaultConfigPath returns '$HOME/.ocdeploy/config'
func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".ocdeploy", "config"), nil
}

// Read loads the config from the specified path,
// if the config file is not found, a default is returned.
func Read(configPath string) (*Config, error) {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return nil, fmt.Errorf("$HOME dir can't be determined, error: %w", err)
		}
		configPath = p
	}

	if _, err := os.Stat(configPath); errors.Is(err, os.ErrNotExist) {
		return NewConfig(), nil
	}

	cfgData, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.UnmarshalStrict(cfgData, cfg); err != nil {
		return nil, fmt.Errorf("decoding %s failed: %w", configPath, err)
	}

	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	return cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server == nil {
		c.Server = defaultServer()
	}
	if c.Server.APIVersion == "" {
		c.Server.APIVersion = DefaultAPIVersion
	}
	if c.Server.NetworkTimeout.Duration == 0 {
		c.Server.NetworkTimeout.Duration = DefaultNetworkTimeout
	}

	if c.Rollout == nil {
		c.Rollout = defaultRollout()
	}
	if c.Rollout.Interval.Duration == 0 {
		c.Rollout.Interval.Duration = DefaultPollInterval
	}
	if c.Rollout.MaxAttempts == 0 {
		c.Rollout.MaxAttempts = DefaultMaxAttempts
	}

	if c.Source == nil {
		c.Source = defaultSource()
	}
	if c.Source.VarsDir == "" {
		c.Source.VarsDir = DefaultVarsDir
	}
	if c.Source.DeployFile == "" {
		c.Source.DeployFile = DefaultDeployFile
	}
}

// Validate checks the values that have no usable zero value.
func (c *Config) Validate() error {
	if c.Server.NetworkTimeout.Duration < 0 {
		return fmt.Errorf("server.networkTimeout can't be negative")
	}
	if c.Rollout.Interval.Duration < 0 {
		return fmt.Errorf("rollout.interval can't be negative")
	}
	if c.Rollout.MaxAttempts < 0 {
		return fmt.Errorf("rollout.maxAttempts can't be negative")
	}
	return nil
}

// Write saves the config at the given path, if no path is specified
// it will create or override '$HOME/.ocdeploy/config'.
func (c *Config) Write(configPath string) error {
	if configPath == "" {
		p, err := DefaultConfigPath()
		if err != nil {
			return err
		}
		configPath = p
	}

	if err := os.MkdirAll(filepath.Dir(configPath), os.FileMode(0755)); err != nil {
		return err
	}

	cfgData, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	return os.WriteFile(configPath, cfgData, os.FileMode(0644))
}
