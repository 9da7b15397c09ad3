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

package main

import (
	"fmt"
	"net/http"
	"testing"

	. "github.com/onsi/gomega"

	"github.com/raffs/ocdeploy/pkg/openshift/fakeapi"
)

func TestGet(t *testing.T) {
	g := NewWithT(t)

	srv, conn := newTestServer(t, "dev")
	srv.AddDeploymentConfig(testDeploymentConfig("dev", "frontend", "nginx:1.21"))

	output, err := executeCommand(fmt.Sprintf("get frontend %s", conn))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(output).To(ContainSubstring("image: nginx:1.21"))
	g.Expect(output).To(ContainSubstring("latestVersion: 1"))

	output, err = executeCommand(fmt.Sprintf("get frontend %s -o json", conn))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(output).To(ContainSubstring(`"latestVersion": 1`))

	_, err = executeCommand(fmt.Sprintf("get frontend %s -o xml", conn))
	g.Expect(err).To(MatchError(ContainSubstring("unsupported output format")))

	_, err = executeCommand(fmt.Sprintf("get backend %s", conn))
	g.Expect(err).To(MatchError(ContainSubstring("received status 404")))
}

func TestCheck(t *testing.T) {
	g := NewWithT(t)

	srv, conn := newTestServer(t, "dev")

	output, err := executeCommand(fmt.Sprintf("check frontend %s", conn))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(output).To(ContainSubstring(fmt.Sprintf("API server %s is available", srv.URL)))
	g.Expect(output).To(ContainSubstring("project dev found"))
	g.Expect(output).To(ContainSubstring("service frontend not found, deploy will create it"))

	srv.AddDeploymentConfig(testDeploymentConfig("dev", "frontend", "nginx:1.21"))
	output, err = executeCommand(fmt.Sprintf("check frontend %s", conn))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(output).To(ContainSubstring("service frontend found, deploy will update it"))

	_, err = executeCommand(fmt.Sprintf("check frontend --server=%s --token=%s -n prod", srv.URL, fakeapi.Token))
	g.Expect(err).To(MatchError("project prod not found"))

	srv.Fail(http.MethodGet, "/oapi/v1/", http.StatusServiceUnavailable, "")
	_, err = executeCommand(fmt.Sprintf("check frontend %s", conn))
	g.Expect(err).To(MatchError(ContainSubstring("received status 503")))
}
