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

package main

import (
	"context"
	"fmt"
	"strings"

	"k8s.io/client-go/rest"

	"github.com/raffs/ocdeploy/pkg/openshift"
)

// newRESTConfig loads the kubeconfig with the command line overrides,
// the server from the config file is used when neither sets one.
func newRESTConfig() (*rest.Config, error) {
	restConfig, err := kubeconfigArgs.ToRESTConfig()
	if err != nil {
		if cfg.Server.URL == "" {
			return nil, fmt.Errorf("kubeconfig load failed: %w", err)
		}
		restConfig = &rest.Config{
			Host: cfg.Server.URL,
			TLSClientConfig: rest.TLSClientConfig{
				Insecure: kubeconfigArgs.Insecure != nil && *kubeconfigArgs.Insecure,
				CAFile:   stringValue(kubeconfigArgs.CAFile),
			},
		}
	}

	// clientcmd drops the user credentials of plain http servers
	token := stringValue(kubeconfigArgs.BearerToken)
	username := stringValue(kubeconfigArgs.Username)
	if token != "" || username != "" {
		restConfig.BearerToken = token
		restConfig.Username = username
		restConfig.Password = stringValue(kubeconfigArgs.Password)
	}
	return restConfig, nil
}

// resolveProject returns the --namespace value or the namespace of the
// current kubeconfig context.
func resolveProject() (string, error) {
	if p := stringValue(kubeconfigArgs.Namespace); p != "" {
		return p, nil
	}
	project, _, err := kubeconfigArgs.ToRawKubeConfigLoader().Namespace()
	if err != nil || project == "" {
		return "", fmt.Errorf("you must specify a project with --namespace")
	}
	return project, nil
}

func newClientConfig(service string) (openshift.ClientConfig, error) {
	project, err := resolveProject()
	if err != nil {
		return openshift.ClientConfig{}, err
	}

	restConfig, err := newRESTConfig()
	if err != nil {
		return openshift.ClientConfig{}, err
	}

	credential := openshift.BasicCredential(restConfig.Username, restConfig.Password)
	if restConfig.BearerToken != "" {
		credential = openshift.TokenCredential(restConfig.BearerToken)
	}

	return openshift.ClientConfig{
		ServerURL:  strings.TrimSuffix(restConfig.Host, "/"),
		APIVersion: cfg.Server.APIVersion,
		Project:    project,
		Service:    service,
		Timeout:    cfg.Server.NetworkTimeout.Duration,
		Credential: credential,
		TLS: openshift.TLSConfig{
			Insecure: restConfig.Insecure,
			CAFile:   restConfig.CAFile,
			CAData:   restConfig.CAData,
		},
	}, nil
}

func newOpenShiftClient(ctx context.Context, service string) (*openshift.Client, error) {
	clientConfig, err := newClientConfig(service)
	if err != nil {
		return nil, err
	}

	client, err := openshift.NewClient(ctx, clientConfig, openshift.WithLogger(logger.Logr()))
	if err != nil {
		return nil, fmt.Errorf("openshift client initialization failed: %w", err)
	}
	return client, nil
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
