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

// Package openshift contains a client for the OpenShift REST API that
// provisions and updates a single DeploymentConfig.
//
// The Client can be used to:
// - obtain a bearer token from the OAuth server with a username and password
// - check that the API server, the project and the DeploymentConfig exist
// - create or replace a DeploymentConfig, carrying over the server-assigned metadata
// - list the pods of a rollout
//
// The ReadinessWatcher reduces the pods of the latest rollout to a single
// converged signal, meant to be called repeatedly by a polling loop.
package openshift
