/*
Copyright 2021 Stefan Prodan
Copyright 2021 The Flux authors

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

package rollout

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-logr/logr"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/raffs/ocdeploy/pkg/objectutil"
	"github.com/raffs/ocdeploy/pkg/openshift"
)

// ResourceClient is the subset of openshift.Client used to provision a DeploymentConfig.
type ResourceClient interface {
	ServerStatus(ctx context.Context) (int, error)
	CheckProject(ctx context.Context, name string) (bool, error)
	CheckService(ctx context.Context, name string) (bool, error)
	CreateDeploymentConfig(ctx context.Context, doc *unstructured.Unstructured) (*unstructured.Unstructured, error)
	UpdateDeploymentConfig(ctx context.Context, rendered *unstructured.Unstructured) (*unstructured.Unstructured, error)
}

// Deployer creates or updates the DeploymentConfig of a service.
type Deployer struct {
	client  ResourceClient
	project string
	service string
	log     logr.Logger
}

func NewDeployer(client ResourceClient, project, service string, log logr.Logger) *Deployer {
	return &Deployer{
		client:  client,
		project: project,
		service: service,
		log:     log,
	}
}

// Deploy checks that the API server and the project are available, then
// creates the DeploymentConfig if the service does not exist or replaces
// it otherwise. Each replacement starts a new rollout.
func (d *Deployer) Deploy(ctx context.Context, rendered *unstructured.Unstructured) (*ChangeSetEntry, error) {
	obj, err := d.normalize(rendered)
	if err != nil {
		return nil, err
	}

	code, err := d.client.ServerStatus(ctx)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("%w: API server is not available, received status %d", openshift.ErrAPI, code)
	}

	exists, err := d.client.CheckProject(ctx, d.project)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("project %s: %w", d.project, openshift.ErrNotFound)
	}

	exists, err = d.client.CheckService(ctx, d.service)
	if err != nil {
		return nil, err
	}

	entry := &ChangeSetEntry{Subject: objectutil.FmtUnstructured(obj)}
	var result *unstructured.Unstructured
	if exists {
		d.log.V(1).Info("updating deploymentconfig", "subject", entry.Subject)
		result, err = d.client.UpdateDeploymentConfig(ctx, obj)
		entry.Action = ConfiguredAction
	} else {
		d.log.V(1).Info("creating deploymentconfig", "subject", entry.Subject)
		result, err = d.client.CreateDeploymentConfig(ctx, obj)
		entry.Action = CreatedAction
	}
	if err != nil {
		return nil, err
	}

	entry.LatestVersion, _, _ = unstructured.NestedInt64(result.Object, "status", "latestVersion")
	return entry, nil
}

// normalize returns a copy addressed to the project and service of the deployer.
func (d *Deployer) normalize(rendered *unstructured.Unstructured) (*unstructured.Unstructured, error) {
	if rendered == nil {
		return nil, fmt.Errorf("%w: no DeploymentConfig to deploy", openshift.ErrConfiguration)
	}
	if kind := rendered.GetKind(); kind != objectutil.DeploymentConfigKind {
		return nil, fmt.Errorf("%w: expected kind %s, got %q", openshift.ErrConfiguration, objectutil.DeploymentConfigKind, kind)
	}

	obj := rendered.DeepCopy()
	if name := obj.GetName(); name != "" && name != d.service {
		return nil, fmt.Errorf("%w: DeploymentConfig name %q does not match service %q",
			openshift.ErrConfiguration, name, d.service)
	}
	if ns := obj.GetNamespace(); ns != "" && ns != d.project {
		return nil, fmt.Errorf("%w: DeploymentConfig namespace %q does not match project %q",
			openshift.ErrConfiguration, ns, d.project)
	}
	obj.SetName(d.service)
	obj.SetNamespace(d.project)
	return obj, nil
}
