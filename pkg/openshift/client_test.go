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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/onsi/gomega"
	corev1 "k8s.io/api/core/v1"
	"k8s.io/apimachinery/pkg/apis/meta/v1/unstructured"

	"github.com/raffs/ocdeploy/pkg/openshift/fakeapi"
)

func newTestClient(t *testing.T, serverURL, project, service string) *Client {
	t.Helper()
	c, err := NewClient(context.Background(), ClientConfig{
		ServerURL:  serverURL,
		Project:    project,
		Service:    service,
		Credential: TokenCredential(fakeapi.Token),
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func newDeploymentConfig(namespace, name, image string) *unstructured.Unstructured {
	return &unstructured.Unstructured{Object: map[string]interface{}{
		"apiVersion": "v1",
		"kind":       "DeploymentConfig",
		"metadata": map[string]interface{}{
			"name":      name,
			"namespace": namespace,
		},
		"spec": map[string]interface{}{
			"replicas": int64(2),
			"selector": map[string]interface{}{"app": name},
			"template": map[string]interface{}{
				"metadata": map[string]interface{}{
					"creationTimestamp": nil,
					"labels":            map[string]interface{}{"app": name},
				},
				"spec": map[string]interface{}{
					"containers": []interface{}{
						map[string]interface{}{"name": name, "image": image},
					},
				},
			},
		},
	}}
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClientConfig
	}{
		{name: "no server", cfg: ClientConfig{Project: "p", Service: "s", Credential: TokenCredential("t")}},
		{name: "no project", cfg: ClientConfig{ServerURL: "https://h", Service: "s", Credential: TokenCredential("t")}},
		{name: "no service", cfg: ClientConfig{ServerURL: "https://h", Project: "p", Credential: TokenCredential("t")}},
		{name: "no credential", cfg: ClientConfig{ServerURL: "https://h", Project: "p", Service: "s"}},
		{name: "two credentials", cfg: ClientConfig{ServerURL: "https://h", Project: "p", Service: "s",
			Credential: Credential{Username: "u", Password: "p", Token: "t"}}},
		{name: "negative timeout", cfg: ClientConfig{ServerURL: "https://h", Project: "p", Service: "s",
			Credential: TokenCredential("t"), Timeout: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewWithT(t)
			_, err := NewClient(context.Background(), tt.cfg)
			g.Expect(errors.Is(err, ErrConfiguration)).To(BeTrue(), "got %v", err)
		})
	}
}

func TestNewClient_Defaults(t *testing.T) {
	g := NewWithT(t)

	srv := fakeapi.New(t)
	c := newTestClient(t, srv.URL, "dev", "frontend")

	g.Expect(c.Config().APIVersion).To(Equal(DefaultAPIVersion))
	g.Expect(c.Config().Timeout).To(Equal(DefaultTimeout))

	code, err := c.ServerStatus(context.Background())
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(code).To(Equal(http.StatusOK))
	g.Expect(srv.Requests()).To(Equal([]string{"GET /oapi/v1/"}))
}

func TestNewClient_PasswordLogin(t *testing.T) {
	g := NewWithT(t)

	srv := fakeapi.New(t)
	srv.AddProject("dev")

	c, err := NewClient(context.Background(), ClientConfig{
		ServerURL:  srv.URL,
		Project:    "dev",
		Service:    "frontend",
		Credential: BasicCredential(fakeapi.Username, fakeapi.Password),
	})
	g.Expect(err).NotTo(HaveOccurred())

	exists, err := c.CheckProject(context.Background(), "dev")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(exists).To(BeTrue())
}

func TestCheckProject_StatusMapping(t *testing.T) {
	codes := []int{200, 201, 204, 400, 401, 403, 404, 409, 422, 500, 502, 503}

	for _, code := range codes {
		t.Run(fmt.Sprint(code), func(t *testing.T) {
			g := NewWithT(t)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(code)
				if code != http.StatusNoContent {
					_, _ = fmt.Fprintf(w, `{"kind":"Status","code":%d,"message":"platform says %d"}`, code, code)
				}
			}))
			defer srv.Close()

			c := newTestClient(t, srv.URL, "dev", "frontend")
			exists, err := c.CheckProject(context.Background(), "dev")

			switch code {
			case http.StatusOK:
				g.Expect(err).NotTo(HaveOccurred())
				g.Expect(exists).To(BeTrue())
			case http.StatusNotFound:
				g.Expect(err).NotTo(HaveOccurred())
				g.Expect(exists).To(BeFalse())
			case http.StatusUnauthorized, http.StatusForbidden:
				g.Expect(errors.Is(err, ErrAuthz)).To(BeTrue())
				g.Expect(errors.Is(err, ErrAPI)).To(BeFalse())
			default:
				g.Expect(errors.Is(err, ErrAPI)).To(BeTrue())
				g.Expect(errors.Is(err, ErrAuthz)).To(BeFalse())
				var se *StatusError
				g.Expect(errors.As(err, &se)).To(BeTrue())
				g.Expect(se.Code).To(Equal(code))
				if code != http.StatusNoContent {
					g.Expect(se.Message).To(Equal(fmt.Sprintf("platform says %d", code)))
				}
			}
		})
	}
}

func TestCheckService(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	srv := fakeapi.New(t)
	srv.AddProject("dev")
	srv.AddDeploymentConfig(newDeploymentConfig("dev", "frontend", "nginx:1.21"))
	c := newTestClient(t, srv.URL, "dev", "frontend")

	exists, err := c.CheckService(ctx, "frontend")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(exists).To(BeTrue())

	exists, err = c.CheckService(ctx, "backend")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(exists).To(BeFalse())

	srv.Fail(http.MethodGet, "/oapi/v1/namespaces/dev/deploymentconfigs/frontend", http.StatusForbidden,
		`User "developer" cannot get deploymentconfigs`)
	_, err = c.CheckService(ctx, "frontend")
	g.Expect(errors.Is(err, ErrAuthz)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("cannot get deploymentconfigs"))
}

func TestCreateWhenServiceMissing(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	srv := fakeapi.New(t)
	srv.AddProject("dev")
	c := newTestClient(t, srv.URL, "dev", "frontend")

	exists, err := c.CheckProject(ctx, "dev")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(exists).To(BeTrue())

	exists, err = c.CheckService(ctx, "frontend")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(exists).To(BeFalse())

	// replacing a missing object is rejected before any write
	_, err = c.SetDeploymentConfig(ctx, newDeploymentConfig("dev", "frontend", "nginx:1.21"))
	g.Expect(IsNotFound(err)).To(BeTrue())
	for _, req := range srv.Requests() {
		g.Expect(req).NotTo(HavePrefix(http.MethodPut))
	}

	created, err := c.CreateDeploymentConfig(ctx, newDeploymentConfig("dev", "frontend", "nginx:1.21"))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(created.GetResourceVersion()).NotTo(BeEmpty())

	exists, err = c.CheckService(ctx, "frontend")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(exists).To(BeTrue())

	_, err = c.CreateDeploymentConfig(ctx, newDeploymentConfig("dev", "frontend", "nginx:1.21"))
	var se *StatusError
	g.Expect(errors.As(err, &se)).To(BeTrue())
	g.Expect(se.Code).To(Equal(http.StatusConflict))
}

func TestSetDeploymentConfig_RejectsInvalidUpdate(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	srv := fakeapi.New(t)
	srv.AddDeploymentConfig(newDeploymentConfig("dev", "frontend", "nginx:1.21"))
	c := newTestClient(t, srv.URL, "dev", "frontend")

	stored, err := c.GetDeploymentConfig(ctx)
	g.Expect(err).NotTo(HaveOccurred())

	// same version as the stored object
	doc := newDeploymentConfig("dev", "frontend", "nginx:1.22")
	metadata, _, _ := unstructured.NestedMap(stored.Object, "metadata")
	delete(metadata, "creationTimestamp")
	g.Expect(unstructured.SetNestedMap(doc.Object, metadata, "metadata")).To(Succeed())
	g.Expect(unstructured.SetNestedField(doc.Object, latestVersion(stored), "status", "latestVersion")).To(Succeed())

	_, err = c.SetDeploymentConfig(ctx, doc)
	g.Expect(errors.Is(err, ErrInvalidUpdate)).To(BeTrue())

	// fresh metadata without the server-assigned fields
	doc = newDeploymentConfig("dev", "frontend", "nginx:1.22")
	g.Expect(unstructured.SetNestedField(doc.Object, latestVersion(stored)+1, "status", "latestVersion")).To(Succeed())

	_, err = c.SetDeploymentConfig(ctx, doc)
	g.Expect(errors.Is(err, ErrInvalidUpdate)).To(BeTrue())

	for _, req := range srv.Requests() {
		g.Expect(req).NotTo(HavePrefix(http.MethodPut))
	}

	// the merged document is accepted
	merged, err := MergeForUpdate(stored, newDeploymentConfig("dev", "frontend", "nginx:1.22"))
	g.Expect(err).NotTo(HaveOccurred())
	_, err = c.SetDeploymentConfig(ctx, merged)
	g.Expect(err).NotTo(HaveOccurred())
}

func TestUpdateDeploymentConfig(t *testing.T) {
	g := NewWithT(t)
	ctx := context.Background()

	srv := fakeapi.New(t)
	srv.AddDeploymentConfig(newDeploymentConfig("dev", "frontend", "nginx:1.21"))
	c := newTestClient(t, srv.URL, "dev", "frontend")

	before, err := c.GetDeploymentConfig(ctx)
	g.Expect(err).NotTo(HaveOccurred())

	for i := int64(1); i <= 2; i++ {
		_, err := c.UpdateDeploymentConfig(ctx, newDeploymentConfig("dev", "frontend", fmt.Sprintf("nginx:1.2%d", i)))
		g.Expect(err).NotTo(HaveOccurred())

		after := srv.DeploymentConfig("dev", "frontend")
		g.Expect(latestVersion(after)).To(Equal(latestVersion(before) + i))
		g.Expect(after.GetUID()).To(Equal(before.GetUID()))
		g.Expect(after.GetCreationTimestamp()).To(Equal(before.GetCreationTimestamp()))

		containers, _, _ := unstructured.NestedSlice(after.Object, "spec", "template", "spec", "containers")
		g.Expect(containers[0]).To(HaveKeyWithValue("image", fmt.Sprintf("nginx:1.2%d", i)))
	}

	srv.Fail(http.MethodPut, "/oapi/v1/namespaces/dev/deploymentconfigs/frontend", http.StatusUnprocessableEntity,
		"spec.template.spec.containers[0].image: Required value")
	_, err = c.UpdateDeploymentConfig(ctx, newDeploymentConfig("dev", "frontend", ""))
	g.Expect(errors.Is(err, ErrAPI)).To(BeTrue())
	g.Expect(err.Error()).To(ContainSubstring("openshift message: spec.template.spec.containers[0].image: Required value"))
}

func TestListPods(t *testing.T) {
	g := NewWithT(t)

	srv := fakeapi.New(t)
	srv.AddPods("dev",
		fakeapi.Pod("frontend-2-a", "frontend-2", corev1.PodRunning, true),
		fakeapi.Pod("frontend-1-a", "frontend-1", corev1.PodRunning, true),
	)
	c := newTestClient(t, srv.URL, "dev", "frontend")

	pods, err := c.ListPods(context.Background(), "dev", "deployment=frontend-2")
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(pods.Items).To(HaveLen(1))
	g.Expect(pods.Items[0].Name).To(Equal("frontend-2-a"))
	g.Expect(pods.Items[0].Status.Phase).To(Equal(corev1.PodRunning))

	last := srv.Requests()[len(srv.Requests())-1]
	g.Expect(last).To(Equal("GET /api/v1/namespaces/dev/pods?labelSelector=deployment=frontend-2"))
	g.Expect(strings.Count(last, "?")).To(Equal(1))
}
