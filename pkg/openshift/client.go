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
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"
	"k8s.io/apimachinery/pkg/runtime"
)

// Client performs the DeploymentConfig and Pod operations of a single
// project/service pair. A Client is immutable and meant for sequential use.
type Client struct {
	config    ClientConfig
	transport *Transport
	log       logr.Logger
}

// Option configures the construction of a Client.
type Option func(*options)

type options struct {
	log        logr.Logger
	httpClient *http.Client
	authClient *http.Client
}

// WithLogger sets the logger, the default discards all output.
func WithLogger(log logr.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

// WithHTTPClient overrides the clients used for API calls and for the OAuth
// exchange. The OAuth client must not follow redirects.
func WithHTTPClient(api, auth *http.Client) Option {
	return func(o *options) {
		o.httpClient = api
		o.authClient = auth
	}
}

// NewClient validates the config, acquires the Authorization header and
// returns a Client ready to use.
func NewClient(ctx context.Context, cfg ClientConfig, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	o := &options{log: logr.Discard()}
	for _, opt := range opts {
		opt(o)
	}

	if o.httpClient == nil {
		c, err := newHTTPClient(cfg.Timeout, cfg.TLS, true)
		if err != nil {
			return nil, err
		}
		o.httpClient = c
	}
	if o.authClient == nil {
		c, err := newHTTPClient(cfg.Timeout, cfg.TLS, false)
		if err != nil {
			return nil, err
		}
		o.authClient = c
	}

	authorization, err := NewAuthenticator(o.authClient, o.log).AuthorizationHeader(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &Client{
		config:    cfg,
		transport: NewTransport(cfg.ServerURL, authorization, o.httpClient),
		log:       o.log,
	}, nil
}

// Config returns the client configuration with defaults applied.
func (c *Client) Config() ClientConfig {
	return c.config
}

// ServerStatus returns the status code of the API root.
func (c *Client) ServerStatus(ctx context.Context) (int, error) {
	resp, err := c.transport.Do(ctx, http.MethodGet, c.oapiPath("/"), nil)
	if err != nil {
		return 0, err
	}
	return resp.StatusCode, nil
}

// CheckProject returns true if the project exists and false on 404.
func (c *Client) CheckProject(ctx context.Context, name string) (bool, error) {
	resp, err := c.transport.Do(ctx, http.MethodGet, c.oapiPath("/projects/"+name), nil)
	if err != nil {
		return false, err
	}
	return existence(fmt.Sprintf("check project %s", name), resp)
}

// CheckService returns true if the DeploymentConfig exists and false on 404.
func (c *Client) CheckService(ctx context.Context, name string) (bool, error) {
	resp, err := c.transport.Do(ctx, http.MethodGet, c.deploymentConfigPath(name), nil)
	if err != nil {
		return false, err
	}
	return existence(fmt.Sprintf("check service %s/%s", c.config.Project, name), resp)
}

// GetDeploymentConfig returns the stored DeploymentConfig of the service.
func (c *Client) GetDeploymentConfig(ctx context.Context) (*unstructured.Unstructured, error) {
	resp, err := c.transport.Do(ctx, http.MethodGet, c.deploymentConfigPath(c.config.Service), nil)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(c.op("get deploymentconfig"), resp)
	}
	return &unstructured.Unstructured{Object: resp.Body}, nil
}

// SetDeploymentConfig replaces the stored DeploymentConfig. The document must
// carry the stored metadata and the next latestVersion, see MergeForUpdate.
func (c *Client) SetDeploymentConfig(ctx context.Context, doc *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	stored, err := c.GetDeploymentConfig(ctx)
	if err != nil {
		return nil, err
	}

	if err := ValidateUpdate(stored, doc); err != nil {
		return nil, fmt.Errorf("%s: %w", c.op("update deploymentconfig"), err)
	}

	resp, err := c.transport.Do(ctx, http.MethodPut, c.deploymentConfigPath(c.config.Service), doc.Object)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(c.op("update deploymentconfig"), resp)
	}

	c.log.V(1).Info("deploymentconfig updated", "project", c.config.Project, "service", c.config.Service,
		"latestVersion", latestVersion(doc))
	return &unstructured.Unstructured{Object: resp.Body}, nil
}

// UpdateDeploymentConfig merges the rendered document with the stored one
// and replaces it, which triggers a new rollout.
func (c *Client) UpdateDeploymentConfig(ctx context.Context, rendered *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	stored, err := c.GetDeploymentConfig(ctx)
	if err != nil {
		return nil, err
	}

	doc, err := MergeForUpdate(stored, rendered)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.op("merge deploymentconfig"), err)
	}

	return c.SetDeploymentConfig(ctx, doc)
}

// CreateDeploymentConfig creates the DeploymentConfig in the project.
func (c *Client) CreateDeploymentConfig(ctx context.Context, doc *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	path := c.oapiPath(fmt.Sprintf("/namespaces/%s/deploymentconfigs", c.config.Project))
	resp, err := c.transport.Do(ctx, http.MethodPost, path, doc.Object)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError(c.op("create deploymentconfig"), resp)
	}

	c.log.V(1).Info("deploymentconfig created", "project", c.config.Project, "service", c.config.Service)
	return &unstructured.Unstructured{Object: resp.Body}, nil
}

// ListPods returns the pods of the namespace that match the label selector.
func (c *Client) ListPods(ctx context.Context, namespace, selector string) (*corev1.PodList, error) {
	path := fmt.Sprintf("/api/v1/namespaces/%s/pods?labelSelector=%s", namespace, selector)
	resp, err := c.transport.Do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	op := fmt.Sprintf("list pods %s -l %s", namespace, selector)
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(op, resp)
	}

	if _, ok := resp.Body["items"]; !ok {
		return nil, fmt.Errorf("%s: %w: response has no items", op, ErrAPI)
	}

	pods := &corev1.PodList{}
	if err := runtime.DefaultUnstructuredConverter.FromUnstructured(resp.Body, pods); err != nil {
		return nil, fmt.Errorf("%s: %w: decoding pod list failed: %v", op, ErrAPI, err)
	}
	return pods, nil
}

func (c *Client) oapiPath(suffix string) string {
	return fmt.Sprintf("/oapi/%s%s", c.config.APIVersion, suffix)
}

func (c *Client) deploymentConfigPath(service string) string {
	return c.oapiPath(fmt.Sprintf("/namespaces/%s/deploymentconfigs/%s", c.config.Project, service))
}

func (c *Client) op(action string) string {
	return fmt.Sprintf("%s %s/%s", action, c.config.Project, c.config.Service)
}

func existence(op string, resp *Response) (bool, error) {
	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusError(op, resp)
	}
}
